package detect

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/himanishpuri/barricade/pkg/barricade/clip"
	"github.com/himanishpuri/barricade/pkg/barricade/writer"
	"github.com/himanishpuri/barricade/pkg/errors"
	"github.com/himanishpuri/barricade/pkg/logger"
	"github.com/himanishpuri/barricade/pkg/models"
	"github.com/himanishpuri/barricade/pkg/utils"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory SetlistStore.
type memStore struct {
	mu       sync.Mutex
	concerts map[string]*models.Concert
	failNext error
}

func newMemStore(ids ...string) *memStore {
	s := &memStore{concerts: make(map[string]*models.Concert)}
	for _, id := range ids {
		s.concerts[id] = &models.Concert{ID: id, Artist: "Taylor Swift"}
	}
	return s
}

func (s *memStore) GetConcert(id string) (*models.Concert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.concerts[id]
	if !ok {
		return nil, errors.E(errors.ConcertUnknown, errors.ID(id))
	}
	cp := *c
	cp.Setlist = make(models.Setlist, len(c.Setlist))
	for i, song := range c.Setlist {
		song.Clips = append([]string(nil), song.Clips...)
		cp.Setlist[i] = song
	}
	cp.Setlist = cp.Setlist.Sorted()
	return &cp, nil
}

func (s *memStore) AppendSong(concertID string, song models.Song) (models.Song, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext != nil {
		err := s.failNext
		s.failNext = nil
		return models.Song{}, err
	}
	c, ok := s.concerts[concertID]
	if !ok {
		return models.Song{}, errors.E(errors.ConcertUnknown, errors.ID(concertID))
	}
	song.ID = utils.GenerateUUID()
	song.ConcertID = concertID
	song.CreatedAt = time.Now()
	c.Setlist = append(c.Setlist, song)
	return song, nil
}

func (s *memStore) AttachClip(songID, clipRef string) (models.Song, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.concerts {
		for i := range c.Setlist {
			if c.Setlist[i].ID == songID {
				if !slices.Contains(c.Setlist[i].Clips, clipRef) {
					c.Setlist[i].Clips = append(c.Setlist[i].Clips, clipRef)
				}
				return c.Setlist[i], nil
			}
		}
	}
	return models.Song{}, errors.E(errors.SongUnknown, errors.ID(songID))
}

func (s *memStore) ClipOwner(clipRef string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.concerts {
		for _, song := range c.Setlist {
			if slices.Contains(song.Clips, clipRef) {
				return song.ID, nil
			}
		}
	}
	return "", nil
}

func (s *memStore) setlist(t *testing.T, id string) models.Setlist {
	t.Helper()
	c, err := s.GetConcert(id)
	require.NoError(t, err)
	return c.Setlist
}

// scriptedMatcher hands out outcomes in order. With gate set, each Match
// waits for the gate or for its session to be stopped.
type scriptedMatcher struct {
	mu       sync.Mutex
	outcomes []models.Outcome
	started  chan struct{}
	gate     chan struct{}
	stops    int
	cancel   context.CancelFunc
}

func (m *scriptedMatcher) Match(ctx context.Context, clipPath string) models.Outcome {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	m.mu.Lock()
	m.cancel = cancel
	var out models.Outcome = models.NoMatch{}
	if len(m.outcomes) > 0 {
		out, m.outcomes = m.outcomes[0], m.outcomes[1:]
	}
	gate, started := m.gate, m.started
	m.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return models.Failure{Err: errors.E(errors.Canceled, ctx.Err())}
		}
	}
	return out
}

func (m *scriptedMatcher) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stops++
	if m.cancel != nil {
		m.cancel()
	}
}

type harness struct {
	coord   *Coordinator
	store   *memStore
	matcher *scriptedMatcher
	fs      afero.Fs
	writer  *writer.Writer
}

func newHarness(t *testing.T, outcomes ...models.Outcome) *harness {
	t.Helper()
	fs := afero.NewMemMapFs()
	clips := clip.NewFsStore(fs)
	h := &harness{
		store:   newMemStore("c1", "c2"),
		matcher: &scriptedMatcher{outcomes: outcomes},
		fs:      fs,
		writer:  writer.New(),
	}
	h.coord = New(Config{
		Store:    h.store,
		Importer: clip.NewImporter(clips, logger.Nop()),
		Clips:    clips,
		Matcher:  h.matcher,
		Writer:   h.writer,
		Metrics:  NewMetrics(prometheus.NewRegistry()),
		Logger:   logger.Nop(),
	})
	t.Cleanup(h.writer.Close)
	return h
}

func video(name string) clip.Source {
	return clip.ReaderSource{Name: name, ContentType: "video/quicktime", Reader: strings.NewReader("moov")}
}

func (h *harness) clipExists(t *testing.T, ref string) bool {
	t.Helper()
	ok, err := afero.Exists(h.fs, ref)
	require.NoError(t, err)
	return ok
}

func match(title string) models.Outcome {
	return models.Match{Title: title, Artist: "Taylor Swift"}
}

func TestDetectMatchAppendsSong(t *testing.T) {
	h := newHarness(t, match("Cruel Summer"), match("Anti-Hero"))
	ctx := context.Background()

	snap, err := h.coord.Detect(ctx, "c1", video("a.mov"))
	require.NoError(t, err)
	assert.Equal(t, Resolved, snap.State)
	require.NotNil(t, snap.Resolution)
	assert.True(t, snap.Resolution.Created)
	assert.Equal(t, 0, snap.Resolution.Song.Order)
	assert.Equal(t, []string{snap.ClipRef}, snap.Resolution.Song.Clips)

	snap, err = h.coord.Detect(ctx, "c1", video("b.mov"))
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Resolution.Song.Order)
	assert.Equal(t, "Anti-Hero", snap.Resolution.Song.Title)
	assert.Equal(t, "Taylor Swift", snap.Resolution.Song.Artist)
}

func TestDetectDedupByTitle(t *testing.T) {
	h := newHarness(t, match("Anti-Hero"), match("Anti-Hero"))
	ctx := context.Background()

	first, err := h.coord.Detect(ctx, "c1", video("a.mov"))
	require.NoError(t, err)
	second, err := h.coord.Detect(ctx, "c1", video("b.mov"))
	require.NoError(t, err)

	assert.False(t, second.Resolution.Created)
	setlist := h.store.setlist(t, "c1")
	require.Len(t, setlist, 1)
	assert.Equal(t, []string{first.ClipRef, second.ClipRef}, setlist[0].Clips)
}

func TestDedupIsCaseSensitive(t *testing.T) {
	h := newHarness(t, match("Anti-Hero"), match("anti-hero"))
	ctx := context.Background()
	_, err := h.coord.Detect(ctx, "c1", video("a.mov"))
	require.NoError(t, err)
	_, err = h.coord.Detect(ctx, "c1", video("b.mov"))
	require.NoError(t, err)

	assert.Len(t, h.store.setlist(t, "c1"), 2)
}

func TestNonSuccessDoesNotMutate(t *testing.T) {
	h := newHarness(t, models.NoMatch{}, models.Failure{Err: errors.E(errors.MatchError, "mic unavailable")})
	ctx := context.Background()

	snap, err := h.coord.Detect(ctx, "c1", video("a.mov"))
	require.NoError(t, err)
	assert.Equal(t, models.NoMatch{}, snap.Outcome)
	assert.True(t, snap.NeedsManualEntry())
	assert.True(t, h.clipExists(t, snap.ClipRef), "clip is kept for manual entry")

	snap, err = h.coord.Detect(ctx, "c1", video("b.mov"))
	assert.True(t, errors.Is(errors.MatchError, err))
	assert.Equal(t, Resolved, snap.State)
	_, isFailure := snap.Outcome.(models.Failure)
	assert.True(t, isFailure)

	assert.Empty(t, h.store.setlist(t, "c1"))
}

func TestImportFailureResolvesWithError(t *testing.T) {
	h := newHarness(t, match("Karma"))

	snap, err := h.coord.Detect(context.Background(), "c1", clip.ReaderSource{
		Name: "voice.m4a", ContentType: "audio/mp4", Reader: strings.NewReader("x"),
	})
	assert.True(t, errors.Is(errors.ImportError, err))
	assert.Equal(t, Resolved, snap.State)
	assert.Empty(t, snap.ClipRef)
	assert.Empty(t, h.store.setlist(t, "c1"))
}

func TestDetectUnknownConcert(t *testing.T) {
	h := newHarness(t)
	_, err := h.coord.Detect(context.Background(), "nope", video("a.mov"))
	assert.True(t, errors.Is(errors.ConcertUnknown, err))
	assert.Equal(t, Idle, h.coord.Snapshot().State)
}

func TestPersistenceErrorIsSurfaced(t *testing.T) {
	h := newHarness(t, match("Karma"))
	h.store.failNext = errors.New("disk full")

	snap, err := h.coord.Detect(context.Background(), "c1", video("a.mov"))
	assert.True(t, errors.Is(errors.PersistenceError, err))
	assert.Equal(t, Resolved, snap.State)
	assert.Nil(t, snap.Resolution)
	assert.Equal(t, "Karma", snap.Outcome.(models.Match).Title)
}

func TestStartWhileBusy(t *testing.T) {
	h := newHarness(t, match("Karma"))
	h.matcher.gate = make(chan struct{})
	h.matcher.started = make(chan struct{}, 1)
	ctx := context.Background()

	require.NoError(t, h.coord.Start(ctx, "c1", video("a.mov")))
	<-h.matcher.started
	assert.Equal(t, Detecting, h.coord.Snapshot().State)

	err := h.coord.Start(ctx, "c2", video("b.mov"))
	assert.True(t, errors.Is(errors.DetectionBusy, err))
	assert.True(t, errors.Is(errors.DetectionBusy, h.coord.Reset()))

	close(h.matcher.gate)
	snap, err := h.coord.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, Resolved, snap.State)

	// a resolved detection can be followed by a new one
	h.matcher.gate = nil
	require.NoError(t, h.coord.Start(ctx, "c1", video("c.mov")))
	_, err = h.coord.Wait(ctx)
	require.NoError(t, err)
}

func TestStartOutlivesCallerContext(t *testing.T) {
	h := newHarness(t, match("Willow"))
	h.matcher.gate = make(chan struct{})
	h.matcher.started = make(chan struct{}, 1)

	reqCtx, cancel := context.WithCancel(context.Background())
	require.NoError(t, h.coord.Start(reqCtx, "c1", video("a.mov")))
	<-h.matcher.started
	cancel()
	close(h.matcher.gate)

	snap, err := h.coord.Wait(context.Background())
	require.NoError(t, err)
	require.NotNil(t, snap.Resolution)
	assert.Equal(t, "Willow", snap.Resolution.Song.Title)
}

func TestCancelDuringDetection(t *testing.T) {
	h := newHarness(t, match("Karma"))
	h.matcher.gate = make(chan struct{})
	h.matcher.started = make(chan struct{}, 1)
	ctx := context.Background()

	require.NoError(t, h.coord.Start(ctx, "c1", video("a.mov")))
	<-h.matcher.started
	ref := h.coord.Snapshot().ClipRef
	require.NotEmpty(t, ref)

	assert.True(t, h.coord.Cancel())
	assert.Equal(t, Idle, h.coord.Snapshot().State, "cancel is immediate")

	snap, err := h.coord.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, Idle, snap.State)
	assert.Nil(t, snap.Outcome)
	assert.Empty(t, h.store.setlist(t, "c1"))
	assert.Equal(t, 1, h.matcher.stops)
	assert.False(t, h.clipExists(t, ref), "cancelled clip must be removed")

	assert.False(t, h.coord.Cancel(), "nothing left to cancel")
}

// gatedSource holds the import open until released.
type gatedSource struct {
	opened  chan struct{}
	release chan struct{}
}

func (g gatedSource) Open(ctx context.Context) (io.ReadCloser, string, string, error) {
	close(g.opened)
	<-g.release
	return io.NopCloser(strings.NewReader("moov")), "late.mov", "video/quicktime", nil
}

func TestCancelDuringImport(t *testing.T) {
	h := newHarness(t, match("Karma"))
	opened := make(chan struct{})
	release := make(chan struct{})
	src := gatedSource{opened: opened, release: release}
	ctx := context.Background()

	require.NoError(t, h.coord.Start(ctx, "c1", src))
	<-opened
	assert.Equal(t, Importing, h.coord.Snapshot().State)

	assert.True(t, h.coord.Cancel())
	close(release)

	snap, err := h.coord.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, Idle, snap.State)
	assert.Empty(t, h.store.setlist(t, "c1"))
	assert.Equal(t, 1, len(h.matcher.outcomes), "matcher never ran")
}

type detectResult struct {
	snap Snapshot
	err  error
}

func (h *harness) detectAsync(ctx context.Context, src clip.Source) <-chan detectResult {
	done := make(chan detectResult, 1)
	go func() {
		snap, err := h.coord.Detect(ctx, "c1", src)
		done <- detectResult{snap: snap, err: err}
	}()
	return done
}

func (h *harness) storedClips(t *testing.T) []string {
	t.Helper()
	infos, err := afero.ReadDir(h.fs, "/")
	require.NoError(t, err)
	var names []string
	for _, fi := range infos {
		if !fi.IsDir() {
			names = append(names, fi.Name())
		}
	}
	return names
}

func TestDetectContextCancelledDuringMatch(t *testing.T) {
	h := newHarness(t, match("Karma"))
	h.matcher.gate = make(chan struct{})
	h.matcher.started = make(chan struct{}, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := h.detectAsync(ctx, video("a.mov"))
	<-h.matcher.started
	ref := h.coord.Snapshot().ClipRef
	require.NotEmpty(t, ref)
	cancel()

	res := <-done
	require.Error(t, res.err)
	assert.True(t, errors.Is(errors.Canceled, res.err))
	assert.Equal(t, Idle, res.snap.State)
	assert.False(t, res.snap.NeedsManualEntry())

	snap := h.coord.Snapshot()
	assert.Equal(t, Idle, snap.State)
	assert.Nil(t, snap.Outcome)
	assert.Empty(t, h.store.setlist(t, "c1"))
	assert.False(t, h.clipExists(t, ref), "abandoned clip must be removed")
	assert.False(t, h.coord.Cancel(), "nothing left to cancel")

	assert.Equal(t, 1.0, testutil.ToFloat64(h.coord.metrics.detections.WithLabelValues("cancelled")))
	assert.Equal(t, 0.0, testutil.ToFloat64(h.coord.metrics.detections.WithLabelValues("error")))
	assert.Equal(t, 0.0, testutil.ToFloat64(h.coord.metrics.inFlight))

	// the coordinator is free for the next clip
	h.matcher.gate = nil
	h.matcher.started = nil
	h.matcher.outcomes = []models.Outcome{match("Karma")}
	next, err := h.coord.Detect(context.Background(), "c1", video("b.mov"))
	require.NoError(t, err)
	assert.Equal(t, Resolved, next.State)
	require.Len(t, h.store.setlist(t, "c1"), 1)
}

func TestDetectContextCancelledDuringImport(t *testing.T) {
	h := newHarness(t, match("Karma"))
	opened := make(chan struct{})
	release := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := h.detectAsync(ctx, gatedSource{opened: opened, release: release})
	<-opened
	cancel()
	close(release)

	res := <-done
	assert.True(t, errors.Is(errors.Canceled, res.err))
	assert.Equal(t, Idle, res.snap.State)
	assert.Equal(t, Idle, h.coord.Snapshot().State)
	assert.Empty(t, h.store.setlist(t, "c1"))
	assert.Empty(t, h.storedClips(t))
	assert.Equal(t, 1, len(h.matcher.outcomes), "matcher never ran")
}

func TestResetAfterResolved(t *testing.T) {
	h := newHarness(t, models.NoMatch{})
	_, err := h.coord.Detect(context.Background(), "c1", video("a.mov"))
	require.NoError(t, err)

	require.NoError(t, h.coord.Reset())
	snap := h.coord.Snapshot()
	assert.Equal(t, Idle, snap.State)
	assert.Empty(t, snap.ClipRef)
}

func TestManualEntryVampire(t *testing.T) {
	h := newHarness(t, match("Cruel Summer"), models.NoMatch{})
	ctx := context.Background()
	_, err := h.coord.Detect(ctx, "c1", video("a.mov"))
	require.NoError(t, err)

	snap, err := h.coord.Detect(ctx, "c1", video("b.mov"))
	require.NoError(t, err)
	require.True(t, snap.NeedsManualEntry())

	res, err := h.coord.ManualEntry(ctx, "c1", "  Vampire ", "", snap.ClipRef)
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, "Vampire", res.Song.Title)
	assert.Empty(t, res.Song.Artist)
	assert.Equal(t, 1, res.Song.Order)
	assert.Equal(t, []string{snap.ClipRef}, res.Song.Clips)

	setlist := h.store.setlist(t, "c1")
	require.Len(t, setlist, 2)
	assert.Equal(t, "Vampire", setlist[1].Title)

	after := h.coord.Snapshot()
	require.NotNil(t, after.Resolution)
	assert.False(t, after.NeedsManualEntry())
}

func TestManualEntryValidation(t *testing.T) {
	h := newHarness(t)
	_, err := h.coord.ManualEntry(context.Background(), "c1", "   ", "x", "")
	assert.True(t, errors.Is(errors.InvalidArgument, err))

	_, err = h.coord.ManualEntry(context.Background(), "missing", "Karma", "", "")
	assert.True(t, errors.Is(errors.ConcertUnknown, err))
}

func TestManualEntryDedupWithoutClip(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first, err := h.coord.ManualEntry(ctx, "c1", "Karma", "", "")
	require.NoError(t, err)
	second, err := h.coord.ManualEntry(ctx, "c1", "Karma", "", "")
	require.NoError(t, err)

	assert.True(t, first.Created)
	assert.False(t, second.Created)
	assert.Equal(t, first.Song.ID, second.Song.ID)
	assert.Empty(t, second.Song.Clips)
}

func TestManualEntryRejectsUnknownClip(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for _, ref := range []string{"nope.mov", "../etc/passwd", "a/b.mov", ".."} {
		_, err := h.coord.ManualEntry(ctx, "c1", "Karma", "", ref)
		assert.True(t, errors.Is(errors.InvalidArgument, err), ref)
	}
	assert.Empty(t, h.store.setlist(t, "c1"))
}

func TestManualEntryRepeatedKeepsOneClip(t *testing.T) {
	h := newHarness(t, models.NoMatch{})
	ctx := context.Background()
	snap, err := h.coord.Detect(ctx, "c1", video("b.mov"))
	require.NoError(t, err)

	first, err := h.coord.ManualEntry(ctx, "c1", "Vampire", "", snap.ClipRef)
	require.NoError(t, err)
	second, err := h.coord.ManualEntry(ctx, "c1", "Vampire", "", snap.ClipRef)
	require.NoError(t, err)

	assert.True(t, first.Created)
	assert.False(t, second.Created)
	assert.Equal(t, first.Song.ID, second.Song.ID)
	assert.Equal(t, []string{snap.ClipRef}, second.Song.Clips)

	setlist := h.store.setlist(t, "c1")
	require.Len(t, setlist, 1)
	assert.Equal(t, []string{snap.ClipRef}, setlist[0].Clips)
}

func TestManualEntryRejectsClipOfAnotherSong(t *testing.T) {
	h := newHarness(t, match("Cruel Summer"))
	ctx := context.Background()
	snap, err := h.coord.Detect(ctx, "c1", video("a.mov"))
	require.NoError(t, err)
	require.NotNil(t, snap.Resolution)

	_, err = h.coord.ManualEntry(ctx, "c1", "Vampire", "", snap.ClipRef)
	assert.True(t, errors.Is(errors.InvalidArgument, err))

	setlist := h.store.setlist(t, "c1")
	require.Len(t, setlist, 1)
	assert.Equal(t, "Cruel Summer", setlist[0].Title)
	assert.Equal(t, []string{snap.ClipRef}, setlist[0].Clips)

	// naming the owning song again is fine
	res, err := h.coord.ManualEntry(ctx, "c1", "Cruel Summer", "", snap.ClipRef)
	require.NoError(t, err)
	assert.Equal(t, setlist[0].ID, res.Song.ID)
	assert.Equal(t, []string{snap.ClipRef}, res.Song.Clips)
}

func TestMatchesNeverProduceDuplicateTitlesOrOrders(t *testing.T) {
	titles := []string{"Anti-Hero", "Karma", "Willow", "Cruel Summer"}

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	p := gopter.NewProperties(parameters)

	p.Property("dedup and append order", prop.ForAll(
		func(picks []int) bool {
			outcomes := make([]models.Outcome, len(picks))
			for i, pick := range picks {
				outcomes[i] = match(titles[pick])
			}
			h := newHarness(t, outcomes...)

			seen := map[string]int{}
			var firstSeen []string
			for i := range picks {
				snap, err := h.coord.Detect(context.Background(), "c1", video(fmt.Sprintf("%d.mov", i)))
				if err != nil || snap.Resolution == nil {
					return false
				}
				title := titles[picks[i]]
				if _, ok := seen[title]; !ok {
					if !snap.Resolution.Created || snap.Resolution.Song.Order != len(firstSeen) {
						return false
					}
					firstSeen = append(firstSeen, title)
				} else if snap.Resolution.Created {
					return false
				}
				seen[title]++
			}

			setlist := h.store.setlist(t, "c1")
			if len(setlist) != len(firstSeen) || !setlist.Contiguous() {
				return false
			}
			for i, song := range setlist {
				if song.Title != firstSeen[i] || len(song.Clips) != seen[song.Title] {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, len(titles)-1)),
	))

	p.Property("non-success outcomes leave the setlist alone", prop.ForAll(
		func(kinds []int) bool {
			outcomes := make([]models.Outcome, len(kinds))
			matches := 0
			for i, k := range kinds {
				switch k {
				case 0:
					outcomes[i] = models.NoMatch{}
				case 1:
					outcomes[i] = models.Failure{Err: errors.E(errors.MatchError, "offline")}
				default:
					outcomes[i] = match(fmt.Sprintf("Song %d", i))
					matches++
				}
			}
			h := newHarness(t, outcomes...)
			for i := range kinds {
				snap, _ := h.coord.Detect(context.Background(), "c1", video(fmt.Sprintf("%d.mov", i)))
				if snap.State != Resolved {
					return false
				}
				if !snap.Outcome.Succeeded() && snap.Resolution != nil {
					return false
				}
			}
			return len(h.store.setlist(t, "c1")) == matches
		},
		gen.SliceOf(gen.IntRange(0, 2)),
	))

	p.TestingRun(t)
}
