package fingerprint

import (
	"errors"
	"math"
	"math/cmplx"

	"github.com/himanishpuri/barricade/pkg/barricade/audio"
	"github.com/mjibson/go-dsp/fft"
)

const (
	WindowSize = 1024
	HopSize    = 256
)

var (
	ErrEmptySamples = errors.New("samples cannot be empty")
	ErrTooShort     = errors.New("audio too short for window size")
)

// Spectrogram is a magnitude STFT: Frames[t][bin], bins up to Nyquist.
type Spectrogram struct {
	Frames     [][]float64
	SampleRate int
	WindowSize int
	HopSize    int
}

// Duration is the length in seconds of the audio the spectrogram covers.
func (s Spectrogram) Duration() float64 {
	if s.SampleRate == 0 {
		return 0
	}
	return float64(len(s.Frames)*s.HopSize+s.WindowSize-s.HopSize) / float64(s.SampleRate)
}

func (s Spectrogram) freqResolution() float64 {
	return float64(s.SampleRate) / float64(s.WindowSize)
}

func (s Spectrogram) frameTime() float64 {
	return float64(s.HopSize) / float64(s.SampleRate)
}

func Hamming(n int) []float64 {
	w := make([]float64, n)
	for i := 0; i < n; i++ {
		w[i] = 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return w
}

func magnitudes(spectrum []complex128) []float64 {
	half := len(spectrum) / 2
	mag := make([]float64, half)
	for i := 0; i < half; i++ {
		mag[i] = cmplx.Abs(spectrum[i])
	}
	return mag
}

// STFT computes windowed magnitude frames with the given window and hop.
func STFT(samples []float64, windowSize, hopSize int, window []float64) ([][]float64, error) {
	if len(window) != windowSize {
		return nil, errors.New("window length must equal windowSize")
	}
	if len(samples) < windowSize {
		return nil, ErrTooShort
	}

	frames := make([][]float64, 0, (len(samples)-windowSize)/hopSize+1)
	frame := make([]float64, windowSize)
	for start := 0; start+windowSize <= len(samples); start += hopSize {
		for i := 0; i < windowSize; i++ {
			frame[i] = samples[start+i] * window[i]
		}
		frames = append(frames, magnitudes(fft.FFTReal(frame)))
	}
	return frames, nil
}

// FromSamples builds a spectrogram with the default window and hop when
// windowSize or hopSize are zero.
func FromSamples(samples []float64, sampleRate, windowSize, hopSize int) (Spectrogram, error) {
	if len(samples) == 0 {
		return Spectrogram{}, ErrEmptySamples
	}
	if sampleRate <= 0 {
		return Spectrogram{}, errors.New("sample rate must be positive")
	}
	if windowSize == 0 {
		windowSize = WindowSize
	}
	if hopSize == 0 {
		hopSize = HopSize
	}

	frames, err := STFT(samples, windowSize, hopSize, Hamming(windowSize))
	if err != nil {
		return Spectrogram{}, err
	}
	return Spectrogram{
		Frames:     frames,
		SampleRate: sampleRate,
		WindowSize: windowSize,
		HopSize:    hopSize,
	}, nil
}

// FromWAV reads a WAV file and computes its spectrogram.
func FromWAV(wavPath string) (Spectrogram, []float64, error) {
	samples, sr, err := audio.ReadWavAsFloat64(wavPath)
	if err != nil {
		return Spectrogram{}, nil, err
	}
	spec, err := FromSamples(samples, sr, 0, 0)
	return spec, samples, err
}
