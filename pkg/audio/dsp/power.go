package dsp

import "math"

// PowerOptions configures power curve extraction. Zero values fall back to
// frame size 1024, hop 256.
type PowerOptions struct {
	FrameSize int
	Hop       int
}

// PowerCurve computes a frame-hopped RMS power curve in dBFS. The floor is
// tied to the quantization step of the session's reference bit depth, so an
// 8-bit session bottoms out higher than a 24-bit one. refBits outside 1..32
// is treated as 16.
func PowerCurve(audio []float32, sr int, refBits int, opts PowerOptions) (times, db []float32) {
	if len(audio) == 0 {
		return nil, nil
	}
	frameSize, hop := opts.FrameSize, opts.Hop
	if frameSize <= 0 {
		frameSize = 1024
	}
	if hop <= 0 {
		hop = 256
	}
	if len(audio) < frameSize {
		return nil, nil
	}
	if refBits < 1 || refBits > 32 {
		refBits = 16
	}
	floor := 1.0 / float64(int64(1)<<(refBits-1))

	n := (len(audio)-frameSize)/hop + 1
	times = make([]float32, n)
	db = make([]float32, n)
	for i := 0; i < n; i++ {
		start := i * hop
		rms := RMS(audio[start : start+frameSize])
		if rms < floor {
			rms = floor
		}
		times[i] = float32(start) / float32(sr)
		db[i] = float32(20 * math.Log10(rms))
	}
	return times, db
}
