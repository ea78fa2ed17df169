package dsp

import "fmt"

// Algorithm selects the pitch estimator used for contour extraction.
// It is a closed set: adding an estimator means adding a constant here and a
// case in estimate.
type Algorithm int

const (
	// AlgoClassic is the mean-removed autocorrelation estimator.
	AlgoClassic Algorithm = iota
	// AlgoYIN is the YIN cumulative-mean-difference estimator.
	AlgoYIN
)

// String returns the identifier persisted in cache metadata.
func (a Algorithm) String() string {
	switch a {
	case AlgoYIN:
		return "yin"
	default:
		return "classic"
	}
}

// ParseAlgorithm maps a config/CLI string to an Algorithm.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch s {
	case "classic", "":
		return AlgoClassic, nil
	case "yin":
		return AlgoYIN, nil
	}
	return AlgoClassic, fmt.Errorf("dsp: unknown pitch algorithm %q", s)
}

func (a Algorithm) estimate(frame []float32, sr int, opts PitchOptions) (float64, bool) {
	switch a {
	case AlgoYIN:
		return EstimateF0YIN(frame, sr, opts)
	default:
		return EstimateF0(frame, sr, opts)
	}
}

// ContourOptions configures frame-hopped contour extraction.
// Zero values fall back to frame size 1024, hop 256.
type ContourOptions struct {
	FrameSize int
	Hop       int
	Pitch     PitchOptions
}

func (o ContourOptions) sizes() (frame, hop int) {
	frame, hop = o.FrameSize, o.Hop
	if frame <= 0 {
		frame = 1024
	}
	if hop <= 0 {
		hop = 256
	}
	return frame, hop
}

// F0Contour applies the selected pitch estimator over sliding frames.
// Unvoiced frames report 0. The returned slices are parallel: times[i] is the
// start of frame i in seconds, f0s[i] its estimate in Hz.
func F0Contour(audio []float32, sr int, algo Algorithm, opts ContourOptions) (times, f0s []float32) {
	if len(audio) == 0 {
		return nil, nil
	}
	frameSize, hop := opts.sizes()
	if len(audio) < frameSize {
		return nil, nil
	}

	n := (len(audio)-frameSize)/hop + 1
	times = make([]float32, n)
	f0s = make([]float32, n)
	for i := 0; i < n; i++ {
		start := i * hop
		f0, ok := algo.estimate(audio[start:start+frameSize], sr, opts.Pitch)
		if ok {
			f0s[i] = float32(f0)
		}
		times[i] = float32(start) / float32(sr)
	}
	return times, f0s
}
