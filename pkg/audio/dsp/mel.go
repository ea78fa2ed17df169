package dsp

import (
	"math"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
)

// MelOptions configures mel spectrogram extraction. Zero values fall back to
// nFFT 1024, hop 256, 64 mel bands.
type MelOptions struct {
	NFFT    int
	Hop     int
	NumMels int
}

func (o MelOptions) params() (nfft, hop, mels int) {
	nfft, hop, mels = o.NFFT, o.Hop, o.NumMels
	if nfft <= 0 {
		nfft = 1024
	}
	if hop <= 0 {
		hop = 256
	}
	if mels <= 0 {
		mels = 64
	}
	return nfft, hop, mels
}

// MelSpectrogram computes a dB mel spectrogram of the audio: a Hann-windowed
// power spectrogram per hop projected through a triangular mel filterbank
// spanning 0..sr/2, floored at 1e-10 before the 10·log10 conversion.
//
// Row order is reversed for image display: melDB[0] is the HIGHEST band and
// melDB[len-1] the lowest. Each row is parallel to times, which holds the
// frame start offsets in seconds. Empty or too-short input returns nil.
func MelSpectrogram(audio []float32, sr int, opts MelOptions) (melDB [][]float32, times []float32) {
	if len(audio) == 0 {
		return nil, nil
	}
	nfft, hop, nmels := opts.params()
	if len(audio) < nfft {
		return nil, nil
	}

	bank := melFilterBank(sr, nfft, nmels)
	numFrames := (len(audio)-nfft)/hop + 1
	half := nfft/2 + 1

	melDB = make([][]float32, nmels)
	for m := range melDB {
		melDB[m] = make([]float32, numFrames)
	}
	times = make([]float32, numFrames)

	frame := make([]float64, nfft)
	power := make([]float64, half)
	for t := 0; t < numFrames; t++ {
		start := t * hop
		for i := 0; i < nfft; i++ {
			frame[i] = float64(audio[start+i])
		}
		window.Apply(frame, window.Hann)
		coeffs := fft.FFTReal(frame)
		for i := 0; i < half; i++ {
			re, im := real(coeffs[i]), imag(coeffs[i])
			power[i] = re*re + im*im
		}
		for m := 0; m < nmels; m++ {
			var sum float64
			for _, bw := range bank[m] {
				sum += bw.w * power[bw.k]
			}
			if sum < 1e-10 {
				sum = 1e-10
			}
			// Reversed row order: band m lands in row nmels-1-m.
			melDB[nmels-1-m][t] = float32(10 * math.Log10(sum))
		}
		times[t] = float32(start) / float32(sr)
	}
	return melDB, times
}

// hzToMel converts Hz to the HTK mel scale.
func hzToMel(hz float64) float64 {
	return 2595.0 * math.Log10(1.0+hz/700.0)
}

// melToHz converts mel back to Hz.
func melToHz(mel float64) float64 {
	return 700.0 * (math.Pow(10.0, mel/2595.0) - 1.0)
}

// binWeight is one non-zero filterbank coefficient: weight w applied to
// power bin k.
type binWeight struct {
	k int
	w float64
}

// melFilterBank builds nmels triangular filters over FFT bins 0..nfft/2.
// Degenerate filters are widened by one bin so no band is all-zero.
// Filters are returned sparse, lowest band first.
func melFilterBank(sr, nfft, nmels int) [][]binWeight {
	half := nfft/2 + 1
	lowMel := hzToMel(0)
	highMel := hzToMel(float64(sr) / 2)

	bins := make([]int, nmels+2)
	for i := range bins {
		mel := lowMel + (highMel-lowMel)*float64(i)/float64(nmels+1)
		hz := melToHz(mel)
		bins[i] = int(math.Floor(float64(nfft+1) * hz / float64(sr)))
	}

	bank := make([][]binWeight, nmels)
	for m := 0; m < nmels; m++ {
		left, center, right := bins[m], bins[m+1], bins[m+2]
		if center == left {
			center++
		}
		if right == center {
			right++
		}
		var filter []binWeight
		for j := left; j < center && j < half; j++ {
			w := float64(j-left) / float64(max(center-left, 1))
			if w > 0 {
				filter = append(filter, binWeight{k: j, w: w})
			}
		}
		for j := center; j < right && j < half; j++ {
			w := float64(right-j) / float64(max(right-center, 1))
			if w > 0 {
				filter = append(filter, binWeight{k: j, w: w})
			}
		}
		bank[m] = filter
	}
	return bank
}
