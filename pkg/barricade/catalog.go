package barricade

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/himanishpuri/barricade/pkg/barricade/audio"
	"github.com/himanishpuri/barricade/pkg/barricade/fingerprint"
	"github.com/himanishpuri/barricade/pkg/errors"
	"github.com/himanishpuri/barricade/pkg/models"
	"github.com/himanishpuri/barricade/pkg/utils"
)

// AddTrack fingerprints a local audio (or video) file and enrolls it in the
// reference catalog. Enrolling the same title and artist twice returns the
// existing track.
func (s *Service) AddTrack(ctx context.Context, audioPath, title, artist, youtubeID string) (string, error) {
	const op errors.Op = "barricade.AddTrack"

	title, artist = strings.TrimSpace(title), strings.TrimSpace(artist)
	if title == "" {
		return "", errors.E(op, errors.InvalidArgument, errors.Info("title"), "title is empty")
	}
	s.log.Infof("Processing track: %s by %s", title, artist)

	analysis, err := s.fp.Analyze(ctx, audioPath)
	if err != nil {
		return "", errors.E(op, errors.ImportError, errors.Info(audioPath), err)
	}
	s.log.Infof("Extracted %d peaks", len(analysis.Peaks))

	var trackID string
	err = s.writer.Do(ctx, func() error {
		var err error
		trackID, err = s.store.RegisterTrack(title, artist, youtubeID, int(analysis.DurationSec*1000))
		if err != nil {
			return err
		}
		existing, err := s.store.GetFingerprintCount(trackID)
		if err != nil {
			return err
		}
		if existing > 0 {
			s.log.Infof("track %s already fingerprinted (%d hashes)", trackID, existing)
			return nil
		}

		fps := fingerprint.Fingerprint(analysis.Peaks, trackID)
		s.log.Infof("Generated %d unique hashes", len(fps))
		if err := s.store.StoreFingerprints(fps); err != nil {
			if delErr := s.store.DeleteTrack(trackID); delErr != nil {
				s.log.Errorf("rolling back track %s: %v", trackID, delErr)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return "", errors.E(op, err)
	}

	s.log.Infof("Successfully added track ID=%s", trackID)
	return trackID, nil
}

// AddTrackFromURL downloads the audio of a YouTube video and enrolls it.
// Empty title or artist are taken from the video metadata.
func (s *Service) AddTrackFromURL(ctx context.Context, url, title, artist string) (string, error) {
	const op errors.Op = "barricade.AddTrackFromURL"

	if !utils.IsYouTubeURL(url) {
		return "", errors.E(op, errors.InvalidArgument, errors.Info("url"), fmt.Sprintf("not a YouTube URL: %s", url))
	}

	path, meta, err := audio.DownloadYouTubeAudio(ctx, url, s.config.TempDir)
	if err != nil {
		return "", errors.E(op, errors.ImportError, err)
	}
	defer utils.DeleteFile(path)

	if strings.TrimSpace(title) == "" {
		title = meta.TrackTitle()
	}
	if strings.TrimSpace(artist) == "" {
		artist = meta.ArtistName()
	}
	youtubeID := meta.ID
	if youtubeID == "" {
		youtubeID, _ = utils.ExtractYouTubeID(url)
	}
	return s.AddTrack(ctx, path, title, artist, youtubeID)
}

func (s *Service) ListTracks() ([]models.CatalogTrack, error) {
	return s.store.ListTracks()
}

func (s *Service) GetTrack(id string) (*models.CatalogTrack, error) {
	return s.store.GetTrack(id)
}

// DeleteTrack removes a track and its fingerprints from the catalog.
func (s *Service) DeleteTrack(ctx context.Context, id string) error {
	const op errors.Op = "barricade.DeleteTrack"
	err := s.writer.Do(ctx, func() error {
		return s.store.DeleteTrack(id)
	})
	if err != nil {
		return errors.E(op, err)
	}
	return nil
}

// MatchCandidates scores every catalog track against a clip without touching
// any setlist.
func (s *Service) MatchCandidates(ctx context.Context, clipPath string) ([]models.Candidate, error) {
	return s.fp.Candidates(ctx, clipPath)
}

// RenderSpectrogram draws the spectrogram of a clip's audio to pngPath.
func (s *Service) RenderSpectrogram(ctx context.Context, clipPath, pngPath string, opts fingerprint.RenderOptions) error {
	const op errors.Op = "barricade.RenderSpectrogram"

	wavPath, err := audio.ExtractAudioTrack(ctx, clipPath, s.config.TempDir, audio.ConvertWAVConfig{
		SampleRate: s.config.SampleRate,
	})
	if err != nil {
		return errors.E(op, errors.InvalidArgument, errors.Info(clipPath), err)
	}
	defer utils.DeleteFile(wavPath)

	if err := utils.MakeDir(filepath.Dir(pngPath)); err != nil {
		return errors.E(op, err)
	}
	if err := fingerprint.RenderPNG(wavPath, pngPath, opts); err != nil {
		return errors.E(op, err)
	}
	return nil
}
