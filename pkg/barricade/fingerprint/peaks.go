package fingerprint

import (
	"math"
	"sort"
)

type Peak struct {
	TimeIdx int
	FreqIdx int
	Time    float64 // seconds
	Freq    float64 // Hz
	MagDB   float64
}

const (
	freqNeighbour = 3
	timeNeighbour = 1
	minDbAboveAvg = 3.0
	eps           = 1e-10
)

// bands splits nBins into a low band then octave-wide bands.
func bands(nBins int) [][2]int {
	out := [][2]int{{0, min(10, nBins)}}
	for start := 10; start < nBins; start *= 2 {
		end := min(start*2, nBins)
		out = append(out, [2]int{start, end})
		if end == nBins {
			break
		}
	}
	return out
}

func toDB(mag float64) float64 {
	return 20.0 * math.Log10(mag+eps)
}

// ExtractPeaks picks the loudest bin of every band in every frame and keeps it
// when it stands above the frame's band average and is a local maximum in its
// time/frequency neighbourhood. Peaks come back sorted by time then frequency.
func ExtractPeaks(spec Spectrogram) []Peak {
	if len(spec.Frames) == 0 || len(spec.Frames[0]) == 0 {
		return nil
	}

	nFrames := len(spec.Frames)
	nBins := len(spec.Frames[0])
	freqRes := spec.freqResolution()
	frameTime := spec.frameTime()
	bs := bands(nBins)

	peaks := make([]Peak, 0, nFrames*2)
	bandMag := make([]float64, len(bs))
	bandIdx := make([]int, len(bs))

	for t, frame := range spec.Frames {
		var sumDb float64
		for bi, b := range bs {
			bandMag[bi], bandIdx[bi] = 0, b[0]
			for i := b[0]; i < b[1]; i++ {
				if frame[i] > bandMag[bi] {
					bandMag[bi], bandIdx[bi] = frame[i], i
				}
			}
			sumDb += toDB(bandMag[bi])
		}
		avgDb := sumDb / float64(len(bs))

		for bi, mag := range bandMag {
			if mag <= 0 {
				continue
			}
			magDb := toDB(mag)
			if magDb < avgDb+minDbAboveAvg {
				continue
			}
			bin := bandIdx[bi]
			if !isLocalMax(spec.Frames, t, bin, mag) {
				continue
			}
			peaks = append(peaks, Peak{
				TimeIdx: t,
				FreqIdx: bin,
				Time:    float64(t) * frameTime,
				Freq:    float64(bin) * freqRes,
				MagDB:   magDb,
			})
		}
	}

	sort.Slice(peaks, func(i, j int) bool {
		if peaks[i].TimeIdx == peaks[j].TimeIdx {
			return peaks[i].FreqIdx < peaks[j].FreqIdx
		}
		return peaks[i].TimeIdx < peaks[j].TimeIdx
	})
	return peaks
}

func isLocalMax(frames [][]float64, t, bin int, mag float64) bool {
	for dt := -timeNeighbour; dt <= timeNeighbour; dt++ {
		ti := t + dt
		if ti < 0 || ti >= len(frames) {
			continue
		}
		for df := -freqNeighbour; df <= freqNeighbour; df++ {
			fi := bin + df
			if fi < 0 || fi >= len(frames[ti]) || (dt == 0 && df == 0) {
				continue
			}
			if frames[ti][fi] > mag {
				return false
			}
		}
	}
	return true
}
