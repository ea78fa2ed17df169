// Package analysis computes the offline curves for a recorded clip: pitch
// contour, mel spectrogram and power envelope. Results are shaped as cache
// entries so callers can persist and merge them directly.
package analysis

import (
	"fmt"
	"os"

	"github.com/vocorder/vocorder/pkg/analysis/cache"
	"github.com/vocorder/vocorder/pkg/audio/dsp"
	"github.com/vocorder/vocorder/pkg/audio/wavio"
)

// Options tunes an analysis pass. Zero values use the dsp defaults
// (1024-sample frames, 256 hop, 64 mel bands, 16-bit reference).
type Options struct {
	Algo dsp.Algorithm
	// SampleRate is the session rate every clip is resampled to before
	// analysis; it keys the cache, so a rate change invalidates entries.
	// Zero keeps each clip's native rate.
	SampleRate int
	RefBits    int
	Frame      int
	Hop        int
	NumMels    int
}

func (o Options) refBits() int {
	if o.RefBits <= 0 {
		return 16
	}
	return o.RefBits
}

// Identify stats and decodes the clip and returns its cache identity under
// these options, together with the decoded samples and rate.
func Identify(path string, opts Options) (cache.Identity, []float32, int, error) {
	st, err := os.Stat(path)
	if err != nil {
		return cache.Identity{}, nil, 0, fmt.Errorf("analysis: stat clip: %w", err)
	}
	var samples []float32
	var sr int
	if opts.SampleRate > 0 {
		sr = opts.SampleRate
		samples, err = wavio.ReadMonoAt(path, sr)
	} else {
		samples, sr, err = wavio.ReadMono(path)
	}
	if err != nil {
		return cache.Identity{}, nil, 0, err
	}
	id := cache.Identity{
		Path:       path,
		MTime:      float64(st.ModTime().UnixNano()) / 1e9,
		Algo:       opts.Algo.String(),
		SampleRate: sr,
		RefBits:    opts.refBits(),
	}
	return id, samples, sr, nil
}

// Pitch runs the pitch contour pass and labels the clip's dominant note.
func Pitch(path string, opts Options) (*cache.Entry, error) {
	id, samples, sr, err := Identify(path, opts)
	if err != nil {
		return nil, err
	}
	return PitchFrom(id, samples, sr, opts), nil
}

// PitchFrom is Pitch for an already-decoded clip.
func PitchFrom(id cache.Identity, samples []float32, sr int, opts Options) *cache.Entry {
	times, f0s := dsp.F0Contour(samples, sr, opts.Algo, dsp.ContourOptions{
		FrameSize: opts.Frame,
		Hop:       opts.Hop,
	})
	if times == nil {
		times, f0s = []float32{}, []float32{}
	}

	return &cache.Entry{
		Meta:  cache.Meta{Identity: id, HasPitch: true, Note: dsp.DominantNote(f0s)},
		Times: times,
		F0s:   f0s,
	}
}

// Spectral runs the mel spectrogram and power envelope passes.
func Spectral(path string, opts Options) (*cache.Entry, error) {
	id, samples, sr, err := Identify(path, opts)
	if err != nil {
		return nil, err
	}
	return SpectralFrom(id, samples, sr, opts), nil
}

// SpectralFrom is Spectral for an already-decoded clip.
func SpectralFrom(id cache.Identity, samples []float32, sr int, opts Options) *cache.Entry {
	melDB, melTimes := dsp.MelSpectrogram(samples, sr, dsp.MelOptions{
		NFFT:    opts.Frame,
		Hop:     opts.Hop,
		NumMels: opts.NumMels,
	})
	powerTimes, powerDB := dsp.PowerCurve(samples, sr, opts.refBits(), dsp.PowerOptions{
		FrameSize: opts.Frame,
		Hop:       opts.Hop,
	})
	if powerTimes == nil {
		powerTimes, powerDB = []float32{}, []float32{}
	}

	e := &cache.Entry{
		Meta:       cache.Meta{Identity: id, HasMel: true, HasPower: true},
		MelTimes:   melTimes,
		PowerTimes: powerTimes,
		PowerDB:    powerDB,
	}
	if rows := len(melDB); rows > 0 {
		e.MelRows = rows
		flat := make([]float32, 0, rows*len(melTimes))
		for _, row := range melDB {
			flat = append(flat, row...)
		}
		e.MelDB = flat
	} else {
		// Clip shorter than one frame: an empty but valid mel payload.
		e.MelRows = 1
		e.MelTimes = []float32{}
	}
	return e
}

// Full runs both passes in one go, for synchronous callers.
func Full(path string, opts Options) (*cache.Entry, error) {
	p, err := Pitch(path, opts)
	if err != nil {
		return nil, err
	}
	s, err := Spectral(path, opts)
	if err != nil {
		return nil, err
	}
	s.Meta.HasPitch = true
	s.Times, s.F0s = p.Times, p.F0s
	s.Meta.Note = p.Meta.Note
	return s, nil
}
