package dsp

import "math"

// yinThreshold is the absolute threshold on the cumulative mean normalized
// difference below which a lag is accepted as periodic.
const yinThreshold = 0.15

// EstimateF0YIN estimates the fundamental frequency of a single frame using
// the YIN difference function. It shares EstimateF0's noise gate and search
// band and is interchangeable with it via Algorithm.
func EstimateF0YIN(frame []float32, sr int, opts PitchOptions) (f0 float64, ok bool) {
	if len(frame) == 0 {
		return 0, false
	}
	buf, ok := gated(frame)
	if !ok {
		return 0, false
	}

	half := len(buf) / 2
	fmin, fmax := opts.band()
	tauMin := int(float64(sr) / fmax)
	tauMax := int(float64(sr) / fmin)
	if tauMax > half-1 {
		tauMax = half - 1
	}
	if tauMin < 1 {
		tauMin = 1
	}
	if tauMax <= tauMin {
		return 0, false
	}

	// Difference function over a half-frame window.
	d := make([]float64, tauMax+1)
	for tau := 1; tau <= tauMax; tau++ {
		var sum float64
		for i := 0; i < half; i++ {
			diff := buf[i] - buf[i+tau]
			sum += diff * diff
		}
		d[tau] = sum
	}

	// Cumulative mean normalized difference.
	cmnd := make([]float64, tauMax+1)
	cmnd[0] = 1
	var running float64
	for tau := 1; tau <= tauMax; tau++ {
		running += d[tau]
		if running == 0 {
			cmnd[tau] = 1
		} else {
			cmnd[tau] = d[tau] * float64(tau) / running
		}
	}

	// First dip below the threshold wins; follow it to its local minimum.
	tau := -1
	for t := tauMin; t <= tauMax; t++ {
		if cmnd[t] < yinThreshold {
			for t+1 <= tauMax && cmnd[t+1] < cmnd[t] {
				t++
			}
			tau = t
			break
		}
	}
	if tau < 0 {
		return 0, false
	}

	// Parabolic interpolation around the chosen lag for sub-sample accuracy.
	better := float64(tau)
	if tau > tauMin && tau < tauMax {
		s0, s1, s2 := cmnd[tau-1], cmnd[tau], cmnd[tau+1]
		denom := s0 - 2*s1 + s2
		if denom != 0 {
			adj := (s0 - s2) / (2 * denom)
			if math.Abs(adj) < 1 {
				better += adj
			}
		}
	}
	if better <= 0 {
		return 0, false
	}
	return float64(sr) / better, true
}
