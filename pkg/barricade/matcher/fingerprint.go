package matcher

import (
	"context"
	"os"
	"sort"

	"github.com/himanishpuri/barricade/pkg/barricade/audio"
	"github.com/himanishpuri/barricade/pkg/barricade/fingerprint"
	"github.com/himanishpuri/barricade/pkg/errors"
	"github.com/himanishpuri/barricade/pkg/logger"
	"github.com/himanishpuri/barricade/pkg/models"
	"github.com/himanishpuri/barricade/pkg/utils"
)

const (
	DefaultMinConfidence = 50.0
	DefaultMinScore      = 5
	maxCandidates        = 10
)

// Catalog is the read side of the fingerprint database.
type Catalog interface {
	GetCouplesByHashes(hashes []uint32) (map[uint32][]models.Couple, error)
	GetTrack(id string) (*models.CatalogTrack, error)
	GetFingerprintCount(trackID string) (int, error)
}

type FingerprintConfig struct {
	TempDir       string
	SampleRate    int
	MinConfidence float64
	MinScore      int
	Logger        *logger.Logger
}

// FingerprintRecognizer matches clips against the landmark catalog.
type FingerprintRecognizer struct {
	catalog Catalog
	cfg     FingerprintConfig
	log     *logger.Logger
}

func NewFingerprintRecognizer(catalog Catalog, cfg FingerprintConfig) *FingerprintRecognizer {
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = audio.DefaultSampleRate
	}
	if cfg.MinConfidence == 0 {
		cfg.MinConfidence = DefaultMinConfidence
	}
	if cfg.MinScore == 0 {
		cfg.MinScore = DefaultMinScore
	}
	log := cfg.Logger
	if log == nil {
		log = logger.GetLogger()
	}
	return &FingerprintRecognizer{catalog: catalog, cfg: cfg, log: log}
}

// Analysis is a clip reduced to its landmarks.
type Analysis struct {
	Peaks       []fingerprint.Peak
	DurationSec float64
}

// Analyze extracts the audio track of path and finds its spectral peaks.
func (r *FingerprintRecognizer) Analyze(ctx context.Context, path string) (*Analysis, error) {
	wavPath, err := audio.ExtractAudioTrack(ctx, path, r.cfg.TempDir, audio.ConvertWAVConfig{
		SampleRate: r.cfg.SampleRate,
	})
	if err != nil {
		return nil, err
	}
	defer utils.DeleteFile(wavPath)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	spec, samples, err := fingerprint.FromWAV(wavPath)
	if err != nil {
		return nil, err
	}
	peaks := fingerprint.ExtractPeaks(spec)
	r.log.Debugf("extracted %d peaks from %s", len(peaks), path)

	return &Analysis{
		Peaks:       peaks,
		DurationSec: float64(len(samples)) / float64(spec.SampleRate),
	}, nil
}

// Candidates scores catalog tracks against a clip, best first.
func (r *FingerprintRecognizer) Candidates(ctx context.Context, clipPath string) ([]models.Candidate, error) {
	const op errors.Op = "matcher.Candidates"

	analysis, err := r.Analyze(ctx, clipPath)
	if err != nil {
		return nil, errors.E(op, errors.MatchError, err)
	}

	query := fingerprint.QueryHashes(analysis.Peaks)
	queryCount := fingerprint.CountHashes(query)
	if queryCount == 0 {
		return nil, nil
	}

	hashes := make([]uint32, 0, len(query))
	for h := range query {
		hashes = append(hashes, h)
	}
	db, err := r.catalog.GetCouplesByHashes(hashes)
	if err != nil {
		return nil, errors.E(op, errors.MatchError, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	votes := fingerprint.Vote(query, db)
	if len(votes) > maxCandidates {
		votes = votes[:maxCandidates]
	}
	r.log.Debugf("%d query hashes, %d buckets hit, %d tracks voted", queryCount, len(db), len(votes))

	out := make([]models.Candidate, 0, len(votes))
	for _, v := range votes {
		track, err := r.catalog.GetTrack(v.TrackID)
		if err != nil {
			r.log.Warnf("skipping candidate %s: %v", v.TrackID, err)
			continue
		}
		trackCount, err := r.catalog.GetFingerprintCount(v.TrackID)
		if err != nil {
			r.log.Warnf("fingerprint count for %s: %v", v.TrackID, err)
			trackCount = queryCount
		}
		out = append(out, models.Candidate{
			TrackID:    track.ID,
			Title:      track.Title,
			Artist:     track.Artist,
			YouTubeID:  track.YouTubeID,
			Score:      v.Count,
			OffsetMs:   v.OffsetMs,
			Confidence: fingerprint.Confidence(v.Count, queryCount, trackCount),
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}

// Recognize turns the best candidate into a Match when it clears both the
// confidence and score thresholds.
func (r *FingerprintRecognizer) Recognize(ctx context.Context, clipPath string) models.Outcome {
	candidates, err := r.Candidates(ctx, clipPath)
	if err != nil {
		return models.Failure{Err: err}
	}
	if len(candidates) == 0 {
		return models.NoMatch{}
	}

	best := candidates[0]
	if best.Confidence < r.cfg.MinConfidence || best.Score < r.cfg.MinScore {
		r.log.Infof("best candidate %q below threshold (score %d, confidence %.1f%%)",
			best.Title, best.Score, best.Confidence)
		return models.NoMatch{}
	}

	return models.Match{
		Title:      best.Title,
		Artist:     best.Artist,
		ArtworkURL: utils.ThumbnailURL(best.YouTubeID),
		Link:       utils.WatchURL(best.YouTubeID),
		Candidate:  &best,
	}
}
