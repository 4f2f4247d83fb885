package barricade

import (
	"context"
	"strings"

	"github.com/himanishpuri/barricade/pkg/barricade/clip"
	"github.com/himanishpuri/barricade/pkg/barricade/detect"
	"github.com/himanishpuri/barricade/pkg/barricade/matcher"
	"github.com/himanishpuri/barricade/pkg/barricade/storage"
	"github.com/himanishpuri/barricade/pkg/barricade/writer"
	"github.com/himanishpuri/barricade/pkg/errors"
	"github.com/himanishpuri/barricade/pkg/logger"
	"github.com/himanishpuri/barricade/pkg/models"
)

// Service is the concert log: concerts and their setlists, song detection
// from clips and the reference catalog the detector matches against.
type Service struct {
	store   Store
	clips   clip.Store
	fp      *matcher.FingerprintRecognizer
	adapter *matcher.Adapter
	coord   *detect.Coordinator
	writer  *writer.Writer
	log     *logger.Logger
	config  *Config
}

func NewService(opts ...Option) (*Service, error) {
	const op errors.Op = "barricade.NewService"

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger()
	}

	store := cfg.Store
	if store == nil {
		db, err := storage.Open(cfg.DBDriver, cfg.DBPath)
		if err != nil {
			return nil, errors.E(op, err)
		}
		store = db
	}

	clips := cfg.ClipStore
	if clips == nil {
		local, err := clip.NewLocalStore(cfg.ClipDir)
		if err != nil {
			store.Close()
			return nil, errors.E(op, errors.ImportError, errors.Info(cfg.ClipDir), err)
		}
		clips = local
	}

	fp := matcher.NewFingerprintRecognizer(store, matcher.FingerprintConfig{
		TempDir:       cfg.TempDir,
		SampleRate:    cfg.SampleRate,
		MinConfidence: cfg.MinConfidence,
		MinScore:      cfg.MinScore,
		Logger:        cfg.Logger,
	})
	var recognizer matcher.Recognizer = fp
	if cfg.Recognizer != nil {
		recognizer = cfg.Recognizer
	}

	adapterOpts := []matcher.AdapterOption{matcher.WithLogger(cfg.Logger)}
	if cfg.Player != nil {
		adapterOpts = append(adapterOpts, matcher.WithPlayer(cfg.Player))
	}
	adapter := matcher.NewAdapter(recognizer, adapterOpts...)

	w := writer.New()
	coord := detect.New(detect.Config{
		Store:    store,
		Importer: clip.NewImporter(clips, cfg.Logger),
		Clips:    clips,
		Matcher:  adapter,
		Writer:   w,
		Metrics:  detect.NewMetrics(cfg.Registerer),
		Logger:   cfg.Logger,
	})

	return &Service{
		store:   store,
		clips:   clips,
		fp:      fp,
		adapter: adapter,
		coord:   coord,
		writer:  w,
		log:     cfg.Logger,
		config:  cfg,
	}, nil
}

// Concerts

func validateConcert(op errors.Op, c models.Concert) error {
	if strings.TrimSpace(c.Artist) == "" {
		return errors.E(op, errors.InvalidArgument, errors.Info("artist"), "artist is empty")
	}
	if c.Date.IsZero() {
		return errors.E(op, errors.InvalidArgument, errors.Info("date"), "date is missing")
	}
	return nil
}

func (s *Service) CreateConcert(ctx context.Context, concert models.Concert) (models.Concert, error) {
	const op errors.Op = "barricade.CreateConcert"
	if err := validateConcert(op, concert); err != nil {
		return models.Concert{}, err
	}

	var created models.Concert
	err := s.writer.Do(ctx, func() error {
		var err error
		created, err = s.store.CreateConcert(concert)
		return err
	})
	if err != nil {
		return models.Concert{}, errors.E(op, err)
	}
	s.log.Infof("created concert %s (%s)", created.ID, created.DisplayName())
	return created, nil
}

// UpdateConcert overwrites the concert's details; its setlist is kept.
func (s *Service) UpdateConcert(ctx context.Context, concert models.Concert) (models.Concert, error) {
	const op errors.Op = "barricade.UpdateConcert"
	if err := validateConcert(op, concert); err != nil {
		return models.Concert{}, err
	}

	var updated models.Concert
	err := s.writer.Do(ctx, func() error {
		var err error
		updated, err = s.store.UpdateConcert(concert)
		return err
	})
	if err != nil {
		return models.Concert{}, errors.E(op, err)
	}
	return updated, nil
}

func (s *Service) GetConcert(id string) (*models.Concert, error) {
	return s.store.GetConcert(id)
}

// ListConcerts returns all concerts, newest first.
func (s *Service) ListConcerts() ([]models.Concert, error) {
	return s.store.ListConcerts()
}

// DeleteConcert removes the concert, its songs and their clips.
func (s *Service) DeleteConcert(ctx context.Context, id string) error {
	const op errors.Op = "barricade.DeleteConcert"

	var clips []string
	err := s.writer.Do(ctx, func() error {
		var err error
		clips, err = s.store.DeleteConcert(id)
		return err
	})
	if err != nil {
		return errors.E(op, err)
	}
	s.removeClips(clips)
	s.log.Infof("deleted concert %s and %d clips", id, len(clips))
	return nil
}

// Songs

// AddSong enters a song by hand. A song with exactly the same title is reused
// and gets clipRef attached, otherwise a new song is appended.
func (s *Service) AddSong(ctx context.Context, concertID, title, artist, clipRef string) (models.Resolution, error) {
	return s.coord.ManualEntry(ctx, concertID, title, artist, clipRef)
}

func (s *Service) GetSong(id string) (*models.Song, error) {
	return s.store.GetSong(id)
}

// DeleteSong removes one song and its clips. The other songs keep their order.
func (s *Service) DeleteSong(ctx context.Context, id string) error {
	const op errors.Op = "barricade.DeleteSong"

	var clips []string
	err := s.writer.Do(ctx, func() error {
		var err error
		clips, err = s.store.DeleteSong(id)
		return err
	})
	if err != nil {
		return errors.E(op, err)
	}
	s.removeClips(clips)
	return nil
}

// ReorderSetlist sets the setlist to songIDs, renumbering orders from 0.
func (s *Service) ReorderSetlist(ctx context.Context, concertID string, songIDs []string) (models.Setlist, error) {
	const op errors.Op = "barricade.ReorderSetlist"

	var setlist models.Setlist
	err := s.writer.Do(ctx, func() error {
		var err error
		setlist, err = s.store.ReorderSetlist(concertID, songIDs)
		return err
	})
	if err != nil {
		return nil, errors.E(op, err)
	}
	return setlist, nil
}

// MoveSong moves the song at position from to position to.
func (s *Service) MoveSong(ctx context.Context, concertID string, from, to int) (models.Setlist, error) {
	const op errors.Op = "barricade.MoveSong"

	var setlist models.Setlist
	err := s.writer.Do(ctx, func() error {
		concert, err := s.store.GetConcert(concertID)
		if err != nil {
			return err
		}
		ids, ok := concert.Setlist.Move(from, to)
		if !ok {
			return errors.E(errors.InvalidArgument, errors.Info("position"),
				"position out of range")
		}
		setlist, err = s.store.ReorderSetlist(concertID, ids)
		return err
	})
	if err != nil {
		return nil, errors.E(op, errors.ID(concertID), err)
	}
	return setlist, nil
}

// SetSongLink sets or clears the external link of a song.
func (s *Service) SetSongLink(ctx context.Context, songID, link string) (models.Song, error) {
	const op errors.Op = "barricade.SetSongLink"

	var updated models.Song
	err := s.writer.Do(ctx, func() error {
		song, err := s.store.GetSong(songID)
		if err != nil {
			return err
		}
		song.Link = strings.TrimSpace(link)
		updated, err = s.store.UpdateSong(*song)
		return err
	})
	if err != nil {
		return models.Song{}, errors.E(op, err)
	}
	return updated, nil
}

func (s *Service) removeClips(refs []string) {
	for _, ref := range refs {
		if err := s.clips.Remove(context.Background(), ref); err != nil {
			s.log.Warnf("removing clip %s: %v", ref, err)
		}
	}
}

// Close stops the detection in flight, if any, and closes the store.
func (s *Service) Close() error {
	s.coord.Cancel()
	s.writer.Close()
	return s.store.Close()
}
