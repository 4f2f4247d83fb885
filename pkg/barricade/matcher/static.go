package matcher

import (
	"context"

	"github.com/himanishpuri/barricade/pkg/models"
)

// StaticRecognizer returns the same outcome for every clip.
type StaticRecognizer struct {
	Outcome models.Outcome
}

// Mock is the canned result used when no real matcher is available.
func Mock() StaticRecognizer {
	return StaticRecognizer{Outcome: models.Match{
		Title:      "Sweetener (Simulator Mock)",
		Artist:     "Ariana Grande",
		ArtworkURL: "https://example.com/artwork.jpg",
		Link:       "https://music.apple.com/example",
	}}
}

func (s StaticRecognizer) Recognize(ctx context.Context, clipPath string) models.Outcome {
	if err := ctx.Err(); err != nil {
		return models.Failure{Err: err}
	}
	if s.Outcome == nil {
		return models.NoMatch{}
	}
	return s.Outcome
}
