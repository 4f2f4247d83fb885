package barricade

import (
	"context"

	"github.com/himanishpuri/barricade/pkg/barricade/clip"
	"github.com/himanishpuri/barricade/pkg/barricade/detect"
)

// StartDetection imports src and identifies its song in the background.
// Poll Detection or call WaitDetection for the result.
func (s *Service) StartDetection(ctx context.Context, concertID string, src clip.Source) error {
	return s.coord.Start(ctx, concertID, src)
}

// DetectSong imports src, identifies its song and updates the concert's
// setlist on a match. NoMatch is not an error; the snapshot then carries the
// clip reference to pass to AddSong.
func (s *Service) DetectSong(ctx context.Context, concertID string, src clip.Source) (detect.Snapshot, error) {
	return s.coord.Detect(ctx, concertID, src)
}

func (s *Service) Detection() detect.Snapshot {
	return s.coord.Snapshot()
}

func (s *Service) WaitDetection(ctx context.Context) (detect.Snapshot, error) {
	return s.coord.Wait(ctx)
}

// CancelDetection abandons the detection in flight and reports whether there was one.
func (s *Service) CancelDetection() bool {
	return s.coord.Cancel()
}

// ResetDetection dismisses a finished detection.
func (s *Service) ResetDetection() error {
	return s.coord.Reset()
}

// Matching reports whether a recognizer session is running.
func (s *Service) Matching() bool {
	return s.adapter.Active()
}
