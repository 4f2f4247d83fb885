package fingerprint

import (
	"fmt"
	"image"
	"image/draw"

	"github.com/eligwz/spectrogram"
	"github.com/himanishpuri/barricade/pkg/barricade/audio"
)

type RenderOptions struct {
	Width  int
	Height int
	Log10  bool
}

// RenderPNG draws the spectrogram of a WAV file to a PNG, for looking at why
// a clip did or did not match.
func RenderPNG(wavPath, pngPath string, opts RenderOptions) error {
	if opts.Width == 0 {
		opts.Width = 2048
	}
	if opts.Height == 0 {
		opts.Height = 512
	}

	samples, sr, err := audio.ReadWavAsFloat64(wavPath)
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		return ErrEmptySamples
	}

	img := spectrogram.NewImage128(image.Rect(0, 0, opts.Width, opts.Height))
	black := spectrogram.ParseColor("000000")
	draw.Draw(img, img.Bounds(), image.NewUniform(black), image.Point{}, draw.Src)

	// hamming window, FFT, magnitude
	spectrogram.Drawfft(img, samples, uint32(sr), uint32(opts.Height), false, false, true, opts.Log10)

	if err := spectrogram.SavePng(img, pngPath); err != nil {
		return fmt.Errorf("saving spectrogram png: %w", err)
	}
	return nil
}
