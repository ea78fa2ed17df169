// Package dsp provides the stateless numeric routines behind waveform
// visualization and clip analysis: RMS, FFT spectrum, pitch estimation
// (two interchangeable algorithms), f0 contours, mel spectrograms, power
// curves and note/frequency/MIDI conversions.
//
// All functions are pure: they share no state and are safe to call
// concurrently from analysis workers.
package dsp

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
)

// NoiseGateRMS is the RMS level below which a frame is treated as silence
// by the pitch estimators.
const NoiseGateRMS = 0.01

// RMS returns the root-mean-square of the frame, 0 for empty input.
func RMS(frame []float32) float64 {
	if len(frame) == 0 {
		return 0
	}
	var sum float64
	for _, s := range frame {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(frame)))
}

// Spectrum computes the Hann-windowed magnitude spectrum of the frame.
// It returns the frequency of each bin and its magnitude for bins
// 0..len(frame)/2. Empty input yields empty outputs.
func Spectrum(frame []float32, sr int) (freqs, mags []float64) {
	if len(frame) == 0 {
		return nil, nil
	}
	buf := make([]float64, len(frame))
	for i, s := range frame {
		buf[i] = float64(s)
	}
	window.Apply(buf, window.Hann)
	coeffs := fft.FFTReal(buf)

	half := len(frame)/2 + 1
	freqs = make([]float64, half)
	mags = make([]float64, half)
	for i := 0; i < half; i++ {
		freqs[i] = float64(i) * float64(sr) / float64(len(frame))
		mags[i] = cmplx.Abs(coeffs[i])
	}
	return freqs, mags
}
