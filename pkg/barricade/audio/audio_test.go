package audio

import (
	"context"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sine(freq float64, sampleRate, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 0.5 * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
	return out
}

func requireTool(t *testing.T, name string) {
	t.Helper()
	if _, err := exec.LookPath(name); err != nil {
		t.Skipf("%s not installed", name)
	}
}

func TestWavRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	in := sine(440, 8000, 8000)

	require.NoError(t, WriteMonoWAV(path, in, 8000))

	out, sr, err := ReadWavAsFloat64(path)
	require.NoError(t, err)
	assert.Equal(t, 8000, sr)
	require.Len(t, out, len(in))
	for i := 0; i < len(in); i += 500 {
		assert.InDelta(t, in[i], out[i], 1e-3)
	}
}

func TestReadWavInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "invalid.wav")
	require.NoError(t, os.WriteFile(path, []byte("INVALID HEADER DATA"), 0o644))

	_, _, err := ReadWavAsFloat64(path)
	assert.Error(t, err)

	_, _, err = ReadWavAsFloat64(filepath.Join(t.TempDir(), "missing.wav"))
	assert.Error(t, err)
}

func TestParseProbe(t *testing.T) {
	withAudio := []byte(`{
		"format": {"filename": "/clips/a.mov", "duration": "12.5", "format_name": "mov,mp4", "tags": {"title": "IMG_0001"}},
		"streams": [
			{"codec_type": "video"},
			{"codec_type": "audio", "sample_rate": "44100", "channels": 2}
		]
	}`)
	meta, err := parseProbe(withAudio, "/clips/a.mov")
	require.NoError(t, err)
	assert.Equal(t, "a.mov", meta.Filename)
	assert.Equal(t, 12.5, meta.DurationSec)
	assert.Equal(t, 44100, meta.SampleRate)
	assert.Equal(t, 2, meta.Channels)
	assert.True(t, meta.HasVideo)
	assert.Equal(t, "IMG_0001", meta.Title)

	silent := []byte(`{"format": {"duration": "3"}, "streams": [{"codec_type": "video"}]}`)
	_, err = parseProbe(silent, "silent.mp4")
	assert.ErrorIs(t, err, ErrNoAudioStream)
}

func TestParseYTDLPJSON(t *testing.T) {
	stdout := "[youtube] something\n" +
		`{"id": "b1kbLwvqugk", "title": "Anti-Hero", "channel": "Taylor Swift", "duration": 200.5, "ext": "m4a"}` + "\n"
	meta, err := parseYTDLPJSON(stdout)
	require.NoError(t, err)
	assert.Equal(t, "b1kbLwvqugk", meta.ID)
	assert.Equal(t, "m4a", meta.Ext)
	assert.Equal(t, "Taylor Swift", pickArtist(*meta))

	_, err = parseYTDLPJSON(`{"title": "no id"}`)
	assert.Error(t, err)
	_, err = parseYTDLPJSON("nothing here")
	assert.Error(t, err)
}

func TestPickArtistFallback(t *testing.T) {
	assert.Equal(t, "A", pickArtist(YTMetadata{Artist: "A", Channel: "C"}))
	assert.Equal(t, "U", pickArtist(YTMetadata{Uploader: "U"}))
	assert.Equal(t, "Unknown Artist", pickArtist(YTMetadata{}))
}

func TestConvertToMonoWAV(t *testing.T) {
	requireTool(t, "ffmpeg")

	dir := t.TempDir()
	src := filepath.Join(dir, "source.wav")
	require.NoError(t, WriteMonoWAV(src, sine(1000, 22050, 22050), 22050))

	out, err := ConvertToMonoWAV(context.Background(), src, filepath.Join(dir, "out"), ConvertWAVConfig{})
	require.NoError(t, err)
	assert.NotEqual(t, filepath.Base(src), filepath.Base(out))

	samples, sr, err := ReadWavAsFloat64(out)
	require.NoError(t, err)
	assert.Equal(t, DefaultSampleRate, sr)
	assert.InDelta(t, DefaultSampleRate, len(samples), 200)
}

func TestExtractAudioTrackMissingClip(t *testing.T) {
	_, err := ExtractAudioTrack(context.Background(), filepath.Join(t.TempDir(), "nope.mov"), t.TempDir(), ConvertWAVConfig{})
	assert.Error(t, err)
}

func TestFFPlayStopWithoutPlayback(t *testing.T) {
	p := NewFFPlay()
	p.Stop()
	assert.False(t, p.Playing())
}
