package detect

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/himanishpuri/barricade/pkg/barricade/clip"
	"github.com/himanishpuri/barricade/pkg/barricade/writer"
	"github.com/himanishpuri/barricade/pkg/errors"
	"github.com/himanishpuri/barricade/pkg/logger"
	"github.com/himanishpuri/barricade/pkg/models"
)

// Importer persists a clip and returns its reference.
type Importer interface {
	Import(ctx context.Context, src clip.Source) (string, error)
}

// Matcher runs one recognition session at a time.
type Matcher interface {
	Match(ctx context.Context, clipPath string) models.Outcome
	Stop()
}

type Config struct {
	Store    SetlistStore
	Importer Importer
	Clips    clip.Store
	Matcher  Matcher
	Writer   *writer.Writer
	Metrics  *Metrics
	Logger   *logger.Logger
}

// Coordinator drives import, matching and setlist reconciliation for one
// detection at a time.
type Coordinator struct {
	store    SetlistStore
	importer Importer
	clips    clip.Store
	matcher  Matcher
	writer   *writer.Writer
	metrics  *Metrics
	log      *logger.Logger

	mu     sync.Mutex
	snap   Snapshot
	gen    uint64
	cancel context.CancelFunc
	done   chan struct{}
}

func New(cfg Config) *Coordinator {
	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger()
	}
	return &Coordinator{
		store:    cfg.Store,
		importer: cfg.Importer,
		clips:    cfg.Clips,
		matcher:  cfg.Matcher,
		writer:   cfg.Writer,
		metrics:  cfg.Metrics,
		log:      cfg.Logger,
	}
}

// Snapshot returns the current state.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap
}

// Start begins a detection in the background. The detection outlives ctx's
// cancellation but keeps its values; use Cancel to stop it.
func (c *Coordinator) Start(ctx context.Context, concertID string, src clip.Source) error {
	taskCtx, gen, done, err := c.begin(context.WithoutCancel(ctx), concertID)
	if err != nil {
		return err
	}
	go func() {
		defer close(done)
		c.run(taskCtx, gen, concertID, src)
	}()
	return nil
}

// Detect runs a detection to completion and returns the final snapshot.
// Cancelling ctx abandons the detection like Cancel and returns Canceled.
func (c *Coordinator) Detect(ctx context.Context, concertID string, src clip.Source) (Snapshot, error) {
	const op errors.Op = "detect.Detect"

	taskCtx, gen, done, err := c.begin(ctx, concertID)
	if err != nil {
		return c.Snapshot(), err
	}
	defer close(done)
	snap, settled := c.run(taskCtx, gen, concertID, src)
	if !settled {
		if err := ctx.Err(); err != nil {
			return snap, errors.E(op, errors.Canceled, err)
		}
		return snap, errors.E(op, errors.Canceled, "detection cancelled")
	}
	return snap, snap.Err
}

// Wait blocks until the current detection, if any, has finished.
func (c *Coordinator) Wait(ctx context.Context) (Snapshot, error) {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()

	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return c.Snapshot(), ctx.Err()
		}
	}
	return c.Snapshot(), nil
}

func (c *Coordinator) begin(ctx context.Context, concertID string) (context.Context, uint64, chan struct{}, error) {
	const op errors.Op = "detect.Start"

	if _, err := c.store.GetConcert(concertID); err != nil {
		return nil, 0, nil, errors.E(op, errors.ID(concertID), err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.snap.State.Busy() {
		return nil, 0, nil, errors.E(op, errors.DetectionBusy, errors.ID(c.snap.ConcertID))
	}

	taskCtx, cancel := context.WithCancel(ctx)
	c.gen++
	c.cancel = cancel
	c.done = make(chan struct{})
	c.snap = Snapshot{
		State:     Importing,
		ConcertID: concertID,
		StartedAt: time.Now(),
	}
	c.metrics.started()
	return taskCtx, c.gen, c.done, nil
}

// current reports whether gen is still the live detection. Callers hold c.mu.
func (c *Coordinator) current(gen uint64) bool {
	return c.gen == gen && c.snap.State.Busy()
}

// run drives detection gen to its end. settled is false when the detection
// was abandoned instead of resolved.
func (c *Coordinator) run(ctx context.Context, gen uint64, concertID string, src clip.Source) (snap Snapshot, settled bool) {
	const op errors.Op = "detect.run"

	ref, err := c.importer.Import(ctx, src)
	if ctx.Err() != nil {
		// cancelled while importing, the clip is ours to clean up
		if !c.abort(gen, ref) && ref != "" {
			c.removeClip(ref)
		}
		return Snapshot{State: Idle}, false
	}

	c.mu.Lock()
	if !c.current(gen) {
		c.mu.Unlock()
		if err == nil {
			c.removeClip(ref)
		}
		return Snapshot{State: Idle}, false
	}
	if err != nil {
		c.mu.Unlock()
		return c.finish(gen, models.Failure{Err: err}, nil, errors.E(op, err))
	}
	c.snap.State = Detecting
	c.snap.ClipRef = ref
	c.mu.Unlock()

	c.log.Infof("detecting song for clip %s (concert %s)", ref, concertID)
	outcome := c.match(ctx, ref)
	if ctx.Err() != nil {
		c.abort(gen, ref)
		return Snapshot{State: Idle}, false
	}

	switch o := outcome.(type) {
	case models.Match:
		return c.commit(ctx, gen, concertID, ref, o)
	case models.Failure:
		return c.finish(gen, o, nil, errors.E(op, o.Err))
	default:
		return c.finish(gen, outcome, nil, nil)
	}
}

func (c *Coordinator) match(ctx context.Context, ref string) models.Outcome {
	const op errors.Op = "detect.match"

	path, release, err := c.clips.LocalPath(ctx, ref)
	if err != nil {
		return models.Failure{Err: errors.E(op, errors.MatchError, errors.ID(ref), err)}
	}
	defer release()

	outcome := c.matcher.Match(ctx, path)
	if m, ok := outcome.(models.Match); ok && !m.Succeeded() {
		return models.Failure{Err: errors.E(op, errors.MatchError, "match without a title")}
	}
	return outcome
}

// commit reconciles a match with the setlist. The generation check and the
// write happen under c.mu so a Cancel either wins before the write or sees
// the detection already resolved.
func (c *Coordinator) commit(ctx context.Context, gen uint64, concertID, ref string, m models.Match) (Snapshot, bool) {
	const op errors.Op = "detect.commit"

	var (
		res       models.Resolution
		resErr    error
		snap      Snapshot
		abandoned bool
	)
	err := c.writer.Do(ctx, func() error {
		c.mu.Lock()
		defer c.mu.Unlock()
		if !c.current(gen) {
			abandoned = true
			return nil
		}
		res, resErr = Resolve(c.store, concertID, Entry{
			Title:   m.Title,
			Artist:  m.Artist,
			Link:    m.Link,
			ClipRef: ref,
		})
		c.settle(m, &res, resErr)
		snap = c.snap
		return resErr
	})
	if abandoned {
		return Snapshot{State: Idle}, false
	}
	if resErr != nil {
		c.log.Errorf("saving match %q failed: %v", m.Title, resErr)
		return snap, true
	}
	if err != nil {
		// never reached the writer
		if ctx.Err() != nil {
			c.abort(gen, ref)
			return Snapshot{State: Idle}, false
		}
		return c.finish(gen, models.Failure{Err: err}, nil, errors.E(op, err))
	}

	if res.Created {
		c.log.Infof("added %q to the setlist at position %d", res.Song.Title, res.Song.Order)
	} else {
		c.log.Infof("attached clip to existing song %q", res.Song.Title)
	}
	c.metrics.resolved(res.Created)
	return snap, true
}

// finish resolves the detection unless it was cancelled in the meantime.
func (c *Coordinator) finish(gen uint64, outcome models.Outcome, res *models.Resolution, err error) (Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.current(gen) {
		return Snapshot{State: Idle}, false
	}
	c.settle(outcome, res, err)
	return c.snap, true
}

// settle moves to Resolved. Callers hold c.mu.
func (c *Coordinator) settle(outcome models.Outcome, res *models.Resolution, err error) {
	if res != nil && err != nil {
		res = nil
	}
	c.snap.State = Resolved
	c.snap.Outcome = outcome
	c.snap.Resolution = res
	c.snap.Err = err
	c.snap.FinishedAt = time.Now()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}

	label := models.OutcomeLabel(outcome)
	if err != nil && label == "match" {
		label = "error"
	}
	c.metrics.finished(label, c.snap.StartedAt)
}

// Cancel abandons an in-flight detection: the state goes back to Idle, the
// matcher session is stopped, the task context is cancelled and the imported
// clip is removed. It reports whether there was anything to cancel.
func (c *Coordinator) Cancel() bool {
	c.mu.Lock()
	if !c.snap.State.Busy() {
		c.mu.Unlock()
		return false
	}
	c.gen++
	ref := c.snap.ClipRef
	started := c.snap.StartedAt
	cancel := c.cancel
	c.cancel = nil
	c.snap = Snapshot{State: Idle}
	c.mu.Unlock()

	c.matcher.Stop()
	if cancel != nil {
		cancel()
	}
	if ref != "" {
		c.removeClip(ref)
	}
	c.metrics.finished("cancelled", started)
	c.log.Infof("detection cancelled")
	return true
}

// abort ends detection gen after its context was cancelled, with the same
// cleanup as Cancel. It reports false when gen was no longer live, in which
// case nothing is touched.
func (c *Coordinator) abort(gen uint64, ref string) bool {
	c.mu.Lock()
	if !c.current(gen) {
		c.mu.Unlock()
		return false
	}
	c.gen++
	started := c.snap.StartedAt
	cancel := c.cancel
	c.cancel = nil
	c.snap = Snapshot{State: Idle}
	c.mu.Unlock()

	c.matcher.Stop()
	if cancel != nil {
		cancel()
	}
	if ref != "" {
		c.removeClip(ref)
	}
	c.metrics.finished("cancelled", started)
	c.log.Infof("detection abandoned by its caller")
	return true
}

// Reset dismisses a resolved detection.
func (c *Coordinator) Reset() error {
	const op errors.Op = "detect.Reset"

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.snap.State.Busy() {
		return errors.E(op, errors.DetectionBusy)
	}
	c.snap = Snapshot{State: Idle}
	return nil
}

// ManualEntry names the song of a clip by hand, typically after NoMatch or a
// failure. It goes through the same title dedup as a match. A non-empty
// clipRef must name a clip in the clip store.
func (c *Coordinator) ManualEntry(ctx context.Context, concertID, title, artist, clipRef string) (models.Resolution, error) {
	const op errors.Op = "detect.ManualEntry"

	title = strings.TrimSpace(title)
	if title == "" {
		return models.Resolution{}, errors.E(op, errors.InvalidArgument, errors.Info("title"), "title is empty")
	}
	if clipRef != "" {
		if err := c.checkClip(ctx, clipRef); err != nil {
			return models.Resolution{}, errors.E(op, err)
		}
	}

	var res models.Resolution
	err := c.writer.Do(ctx, func() error {
		var err error
		res, err = Resolve(c.store, concertID, Entry{
			Title:   title,
			Artist:  strings.TrimSpace(artist),
			ClipRef: clipRef,
		})
		return err
	})
	if err != nil {
		return models.Resolution{}, errors.E(op, err)
	}
	c.metrics.resolved(res.Created)

	c.mu.Lock()
	if c.snap.State == Resolved && clipRef != "" && c.snap.ClipRef == clipRef {
		c.snap.Resolution = &res
	}
	c.mu.Unlock()
	return res, nil
}

func (c *Coordinator) checkClip(ctx context.Context, ref string) error {
	if !clip.ValidRef(ref) {
		return errors.E(errors.InvalidArgument, errors.ID(ref), errors.Info("clip_ref"), "malformed clip reference")
	}
	ok, err := c.clips.Exists(ctx, ref)
	if err != nil {
		return errors.E(errors.ImportError, errors.ID(ref), err)
	}
	if !ok {
		return errors.E(errors.InvalidArgument, errors.ID(ref), errors.Info("clip_ref"), "unknown clip")
	}
	return nil
}

func (c *Coordinator) removeClip(ref string) {
	if err := c.clips.Remove(context.Background(), ref); err != nil {
		c.log.Warnf("removing clip %s: %v", ref, err)
	}
}
