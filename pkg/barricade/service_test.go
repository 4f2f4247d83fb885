package barricade

import (
	"context"
	"math"
	"math/rand"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/himanishpuri/barricade/pkg/barricade/audio"
	"github.com/himanishpuri/barricade/pkg/barricade/clip"
	"github.com/himanishpuri/barricade/pkg/barricade/detect"
	"github.com/himanishpuri/barricade/pkg/barricade/fingerprint"
	"github.com/himanishpuri/barricade/pkg/barricade/matcher"
	"github.com/himanishpuri/barricade/pkg/errors"
	"github.com/himanishpuri/barricade/pkg/logger"
	"github.com/himanishpuri/barricade/pkg/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	svc *Service
	fs  afero.Fs
}

func setupService(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	fs := afero.NewMemMapFs()
	base := []Option{
		WithDBPath(filepath.Join(t.TempDir(), "test.sqlite3")),
		WithClipStore(clip.NewFsStore(fs)),
		WithTempDir(t.TempDir()),
		WithRecognizer(matcher.Mock()),
		WithRegisterer(prometheus.NewRegistry()),
		WithLogger(logger.Nop()),
	}
	svc, err := NewService(append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })
	return &testEnv{svc: svc, fs: fs}
}

func (e *testEnv) concert(t *testing.T) models.Concert {
	t.Helper()
	c, err := e.svc.CreateConcert(context.Background(), models.Concert{
		Date:   time.Date(2024, 5, 9, 20, 0, 0, 0, time.UTC),
		Artist: "Taylor Swift",
		Tour:   "The Eras Tour",
		City:   "Paris",
	})
	require.NoError(t, err)
	return c
}

func (e *testEnv) exists(t *testing.T, ref string) bool {
	t.Helper()
	ok, err := afero.Exists(e.fs, ref)
	require.NoError(t, err)
	return ok
}

func upload(name string) clip.Source {
	return clip.ReaderSource{Name: name, ContentType: "video/mp4", Reader: strings.NewReader("ftyp")}
}

func TestCreateConcertValidation(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	_, err := env.svc.CreateConcert(ctx, models.Concert{Date: time.Now()})
	assert.True(t, errors.Is(errors.InvalidArgument, err))

	_, err = env.svc.CreateConcert(ctx, models.Concert{Artist: "Phoebe Bridgers"})
	assert.True(t, errors.Is(errors.InvalidArgument, err))

	c := env.concert(t)
	assert.Equal(t, models.DefaultColorHex, c.ColorHex)
	assert.Empty(t, c.Nickname)
}

func TestUpdateConcertKeepsSetlist(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()
	c := env.concert(t)
	_, err := env.svc.AddSong(ctx, c.ID, "Willow", "", "")
	require.NoError(t, err)

	c.Nickname = "Paris N1"
	c.ColorHex = "#00aaff"
	updated, err := env.svc.UpdateConcert(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, "Paris N1", updated.DisplayName())
	assert.Equal(t, "00AAFF", updated.ColorHex)
	assert.Len(t, updated.Setlist, 1)

	c.ID = "missing"
	_, err = env.svc.UpdateConcert(ctx, c)
	assert.True(t, errors.Is(errors.ConcertUnknown, err))
}

// The mock recognizer always answers with the same song, so the second
// detection attaches to the song the first one created.
func TestDetectSongWithMock(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()
	c := env.concert(t)

	first, err := env.svc.DetectSong(ctx, c.ID, upload("IMG_0001.MP4"))
	require.NoError(t, err)
	require.NotNil(t, first.Resolution)
	assert.True(t, first.Resolution.Created)
	assert.Equal(t, "Sweetener (Simulator Mock)", first.Resolution.Song.Title)
	assert.Equal(t, "https://music.apple.com/example", first.Resolution.Song.Link)
	assert.True(t, strings.HasSuffix(first.ClipRef, ".mp4"))

	second, err := env.svc.DetectSong(ctx, c.ID, upload("IMG_0002.MP4"))
	require.NoError(t, err)
	assert.False(t, second.Resolution.Created)

	got, err := env.svc.GetConcert(c.ID)
	require.NoError(t, err)
	require.Len(t, got.Setlist, 1)
	assert.Equal(t, []string{first.ClipRef, second.ClipRef}, got.Setlist[0].Clips)
	assert.False(t, env.svc.Matching())
}

func TestStartDetectionAndWait(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()
	c := env.concert(t)

	require.NoError(t, env.svc.StartDetection(ctx, c.ID, upload("a.mov")))
	snap, err := env.svc.WaitDetection(ctx)
	require.NoError(t, err)
	assert.Equal(t, detect.Resolved, snap.State)
	assert.Equal(t, snap, env.svc.Detection())

	require.NoError(t, env.svc.ResetDetection())
	assert.Equal(t, detect.Idle, env.svc.Detection().State)
	assert.False(t, env.svc.CancelDetection())
}

func TestNoMatchThenManualEntry(t *testing.T) {
	env := setupService(t, WithRecognizer(matcher.StaticRecognizer{Outcome: models.NoMatch{}}))
	ctx := context.Background()
	c := env.concert(t)
	_, err := env.svc.AddSong(ctx, c.ID, "Cruel Summer", "Taylor Swift", "")
	require.NoError(t, err)

	snap, err := env.svc.DetectSong(ctx, c.ID, upload("b.mov"))
	require.NoError(t, err)
	require.True(t, snap.NeedsManualEntry())

	got, err := env.svc.GetConcert(c.ID)
	require.NoError(t, err)
	assert.Len(t, got.Setlist, 1, "no match leaves the setlist alone")

	res, err := env.svc.AddSong(ctx, c.ID, "Vampire", "", snap.ClipRef)
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, 1, res.Song.Order)
	assert.Empty(t, res.Song.Artist)
	assert.Equal(t, []string{snap.ClipRef}, res.Song.Clips)

	got, err = env.svc.GetConcert(c.ID)
	require.NoError(t, err)
	require.Len(t, got.Setlist, 2)
	assert.True(t, got.Setlist.Contiguous())
}

func TestDetectionFailureIsSurfaced(t *testing.T) {
	env := setupService(t, WithRecognizer(matcher.StaticRecognizer{
		Outcome: models.Failure{Err: errors.New("recognizer offline")},
	}))
	c := env.concert(t)

	snap, err := env.svc.DetectSong(context.Background(), c.ID, upload("c.mov"))
	assert.True(t, errors.Is(errors.MatchError, err))
	assert.True(t, snap.NeedsManualEntry())
}

func TestMoveSongAndReorder(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()
	c := env.concert(t)
	for _, title := range []string{"Cruel Summer", "The Man", "Lover"} {
		_, err := env.svc.AddSong(ctx, c.ID, title, "", "")
		require.NoError(t, err)
	}

	setlist, err := env.svc.MoveSong(ctx, c.ID, 2, 0)
	require.NoError(t, err)
	assert.True(t, setlist.Contiguous())
	assert.Equal(t, []string{"Lover", "Cruel Summer", "The Man"}, titles(setlist))

	_, err = env.svc.MoveSong(ctx, c.ID, 0, 3)
	assert.True(t, errors.Is(errors.InvalidArgument, err))

	ids := []string{setlist[2].ID, setlist[1].ID, setlist[0].ID}
	setlist, err = env.svc.ReorderSetlist(ctx, c.ID, ids)
	require.NoError(t, err)
	assert.Equal(t, []string{"The Man", "Cruel Summer", "Lover"}, titles(setlist))

	_, err = env.svc.ReorderSetlist(ctx, c.ID, ids[:2])
	assert.True(t, errors.Is(errors.InvalidArgument, err))
}

func TestSetSongLink(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()
	c := env.concert(t)
	res, err := env.svc.AddSong(ctx, c.ID, "Karma", "", "")
	require.NoError(t, err)

	song, err := env.svc.SetSongLink(ctx, res.Song.ID, " https://www.youtube.com/watch?v=XzOvgu3GPwY ")
	require.NoError(t, err)
	assert.Equal(t, "https://www.youtube.com/watch?v=XzOvgu3GPwY", song.Link)
	assert.Equal(t, "Karma", song.Title)

	_, err = env.svc.SetSongLink(ctx, "missing", "x")
	assert.True(t, errors.Is(errors.SongUnknown, err))
}

func TestDeleteSongRemovesItsClips(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()
	c := env.concert(t)

	snap, err := env.svc.DetectSong(ctx, c.ID, upload("a.mov"))
	require.NoError(t, err)
	keep, err := env.svc.AddSong(ctx, c.ID, "Willow", "", "")
	require.NoError(t, err)
	require.True(t, env.exists(t, snap.ClipRef))

	require.NoError(t, env.svc.DeleteSong(ctx, snap.Resolution.Song.ID))
	assert.False(t, env.exists(t, snap.ClipRef))

	got, err := env.svc.GetConcert(c.ID)
	require.NoError(t, err)
	require.Len(t, got.Setlist, 1)
	assert.Equal(t, keep.Song.ID, got.Setlist[0].ID)
	assert.Equal(t, 1, got.Setlist[0].Order, "siblings keep their order")

	assert.True(t, errors.Is(errors.SongUnknown, env.svc.DeleteSong(ctx, snap.Resolution.Song.ID)))
}

func TestDeleteConcertCascades(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()
	c := env.concert(t)
	other := env.concert(t)

	snap, err := env.svc.DetectSong(ctx, c.ID, upload("a.mov"))
	require.NoError(t, err)
	res, err := env.svc.AddSong(ctx, c.ID, "Willow", "", "")
	require.NoError(t, err)
	_, err = env.svc.AddSong(ctx, other.ID, "Willow", "", "")
	require.NoError(t, err)

	require.NoError(t, env.svc.DeleteConcert(ctx, c.ID))

	_, err = env.svc.GetConcert(c.ID)
	assert.True(t, errors.Is(errors.ConcertUnknown, err))
	_, err = env.svc.GetSong(res.Song.ID)
	assert.True(t, errors.Is(errors.SongUnknown, err))
	assert.False(t, env.exists(t, snap.ClipRef))

	left, err := env.svc.ListConcerts()
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Len(t, left[0].Setlist, 1)
}

func TestNewServiceUnknownDriver(t *testing.T) {
	_, err := NewService(WithDBDriver("oracle"), WithLogger(logger.Nop()))
	assert.True(t, errors.Is(errors.StorageUnknown, err))
}

func titles(s models.Setlist) []string {
	out := make([]string, len(s))
	for i, song := range s {
		out[i] = song.Title
	}
	return out
}

func tone(seed int64, seconds float64, rate int) []float64 {
	r := rand.New(rand.NewSource(seed))
	out := make([]float64, int(seconds*float64(rate)))
	var freqs [3]float64
	for i := range out {
		if i%(rate/10) == 0 {
			for k := range freqs {
				freqs[k] = 200 + r.Float64()*3800
			}
		}
		var v float64
		for _, f := range freqs {
			v += math.Sin(2 * math.Pi * f * float64(i) / float64(rate))
		}
		out[i] = v / 4
	}
	return out
}

func TestCatalogEnrollAndMatch(t *testing.T) {
	for _, tool := range []string{"ffmpeg", "ffprobe"} {
		if _, err := exec.LookPath(tool); err != nil {
			t.Skipf("%s not installed", tool)
		}
	}
	env := setupService(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	dir := t.TempDir()
	rate := audio.DefaultSampleRate

	track := tone(7, 20, rate)
	trackPath := filepath.Join(dir, "anti-hero.wav")
	require.NoError(t, audio.WriteMonoWAV(trackPath, track, rate))

	id, err := env.svc.AddTrack(ctx, trackPath, "Anti-Hero", "Taylor Swift", "b1kbLwvqugk")
	require.NoError(t, err)
	again, err := env.svc.AddTrack(ctx, trackPath, "Anti-Hero", "Taylor Swift", "")
	require.NoError(t, err)
	assert.Equal(t, id, again)

	tracks, err := env.svc.ListTracks()
	require.NoError(t, err)
	require.Len(t, tracks, 1)
	assert.Equal(t, "b1kbLwvqugk", tracks[0].YouTubeID)

	start := 100 * fingerprint.HopSize
	clipPath := filepath.Join(dir, "clip.wav")
	require.NoError(t, audio.WriteMonoWAV(clipPath, track[start:start+6*rate], rate))

	candidates, err := env.svc.MatchCandidates(ctx, clipPath)
	require.NoError(t, err)
	require.NotEmpty(t, candidates)
	assert.Equal(t, id, candidates[0].TrackID)

	png := filepath.Join(dir, "out", "clip.png")
	require.NoError(t, env.svc.RenderSpectrogram(ctx, clipPath, png, fingerprint.RenderOptions{Width: 256, Height: 128}))
	assert.FileExists(t, png)

	require.NoError(t, env.svc.DeleteTrack(ctx, id))
	_, err = env.svc.GetTrack(id)
	assert.True(t, errors.Is(errors.TrackUnknown, err))
}

func TestAddTrackValidation(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	_, err := env.svc.AddTrack(ctx, "song.wav", "  ", "x", "")
	assert.True(t, errors.Is(errors.InvalidArgument, err))

	_, err = env.svc.AddTrackFromURL(ctx, "https://example.com/song.mp3", "", "")
	assert.True(t, errors.Is(errors.InvalidArgument, err))
}
