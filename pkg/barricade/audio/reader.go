package audio

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ReadWavAsFloat64 decodes a PCM WAV into mono samples in [-1, 1]. Multi-channel
// input is averaged down to one channel.
func ReadWavAsFloat64(path string) ([]float64, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("opening wav: %w", err)
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		return nil, 0, errors.New("not a valid WAV file")
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("reading samples: %w", err)
	}
	if buf == nil || len(buf.Data) == 0 {
		return nil, 0, errors.New("wav has no samples")
	}

	return toMonoFloat(buf, int(decoder.BitDepth)), int(decoder.SampleRate), nil
}

func toMonoFloat(buf *audio.IntBuffer, bitDepth int) []float64 {
	channels := 1
	if buf.Format != nil && buf.Format.NumChannels > 0 {
		channels = buf.Format.NumChannels
	}
	if bitDepth <= 0 {
		bitDepth = 16
	}
	maxVal := float64(int(1) << (uint(bitDepth) - 1))

	frames := len(buf.Data) / channels
	samples := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for ch := 0; ch < channels; ch++ {
			sum += float64(buf.Data[i*channels+ch])
		}
		samples[i] = sum / float64(channels) / maxVal
	}
	return samples
}

// WriteMonoWAV encodes samples in [-1, 1] as a 16-bit mono WAV.
func WriteMonoWAV(path string, samples []float64, sampleRate int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating wav: %w", err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	data := make([]int, len(samples))
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		data[i] = int(s * 32767)
	}
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("encoding wav: %w", err)
	}
	return enc.Close()
}
