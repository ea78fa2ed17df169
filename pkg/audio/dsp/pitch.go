package dsp

import "math"

// PitchOptions bounds the pitch search band. Zero values fall back to the
// defaults (50..1000 Hz), which cover the vocal range with headroom.
type PitchOptions struct {
	FMin float64 // lowest candidate f0 in Hz
	FMax float64 // highest candidate f0 in Hz
}

func (o PitchOptions) band() (fmin, fmax float64) {
	fmin, fmax = o.FMin, o.FMax
	if fmin <= 0 {
		fmin = 50
	}
	if fmax <= 0 {
		fmax = 1000
	}
	return fmin, fmax
}

// EstimateF0 estimates the fundamental frequency of a single frame using
// mean-removed autocorrelation. It reports ok=false for frames rejected by
// the noise gate (RMS below NoiseGateRMS or peak amplitude below 1e-4) and
// for autocorrelation peaks too weak to be voiced (normalized value < 0.2).
func EstimateF0(frame []float32, sr int, opts PitchOptions) (f0 float64, ok bool) {
	if len(frame) == 0 {
		return 0, false
	}
	buf, ok := gated(frame)
	if !ok {
		return 0, false
	}

	// Autocorrelation at lag 0 is the frame energy; zero energy cannot
	// happen past the gate but guard the division anyway.
	var energy float64
	for _, s := range buf {
		energy += s * s
	}
	if energy == 0 {
		return 0, false
	}

	fmin, fmax := opts.band()
	lagMin := int(float64(sr) / fmax)
	lagMax := int(float64(sr) / fmin)
	if lagMax > len(buf)-1 {
		lagMax = len(buf) - 1
	}
	if lagMax <= lagMin {
		return 0, false
	}

	bestLag, bestVal := 0, math.Inf(-1)
	for lag := lagMin; lag < lagMax; lag++ {
		var ac float64
		for i := 0; i+lag < len(buf); i++ {
			ac += buf[i] * buf[i+lag]
		}
		if ac > bestVal {
			bestVal = ac
			bestLag = lag
		}
	}
	if bestLag == 0 || bestVal/energy < 0.2 {
		return 0, false
	}
	return float64(sr) / float64(bestLag), true
}

// gated removes the frame mean and applies the noise gate. It returns the
// mean-removed samples as float64 and whether the frame passed the gate.
func gated(frame []float32) ([]float64, bool) {
	var mean float64
	for _, s := range frame {
		mean += float64(s)
	}
	mean /= float64(len(frame))

	buf := make([]float64, len(frame))
	var sumSq, peak float64
	for i, s := range frame {
		v := float64(s) - mean
		buf[i] = v
		sumSq += v * v
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}
	rms := math.Sqrt(sumSq / float64(len(frame)))
	if rms < NoiseGateRMS || peak < 1e-4 {
		return nil, false
	}
	return buf, true
}
