// Package synth generates reference audio for recording sessions: pitch cue
// tones, mora-paced tone sequences and metronome click tracks. All output is
// normalized mono float32 at the caller's sample rate.
//
// Tones carry a fixed attack/release envelope (20 ms up, 50 ms down) so
// starting and stopping them never clicks.
package synth

import (
	"fmt"
	"math"
	"time"

	"github.com/vocorder/vocorder/pkg/audio/dsp"
)

const (
	toneAmplitude = 0.2
	attack        = 20 * time.Millisecond
	release       = 50 * time.Millisecond
)

// Samples converts a duration to a sample count at the given rate.
func Samples(d time.Duration, sr int) int {
	return int(time.Duration(sr) * d / time.Second)
}

// Silence returns d worth of zero samples.
func Silence(d time.Duration, sr int) []float32 {
	n := Samples(d, sr)
	if n < 0 {
		n = 0
	}
	return make([]float32, n)
}

// Tone synthesizes a sine cue tone for the given note name ("A4", "C#3", ...)
// with the standard attack/release envelope.
func Tone(note string, dur time.Duration, sr int) ([]float32, error) {
	freq, err := dsp.NoteToFreq(note)
	if err != nil {
		return nil, err
	}
	if dur <= 0 {
		return nil, fmt.Errorf("synth: invalid tone duration %v", dur)
	}
	return tone(freq, dur, sr), nil
}

func tone(freq float64, dur time.Duration, sr int) []float32 {
	n := Samples(dur, sr)
	out := make([]float32, n)
	durSec := dur.Seconds()
	attackSec := attack.Seconds()
	releaseSec := release.Seconds()
	for i := range out {
		t := float64(i) / float64(sr)
		v := toneAmplitude * math.Sin(2*math.Pi*freq*t)
		env := math.Min(1, t/attackSec) * math.Min(1, (durSec-t)/releaseSec)
		if env < 0 {
			env = 0
		} else if env > 1 {
			env = 1
		}
		out[i] = float32(v * env)
	}
	return out
}

// ToneWithPadding wraps Tone with leading and trailing silence, the shape
// used for generated BGM.
func ToneWithPadding(note string, dur, pre, post time.Duration, sr int) ([]float32, error) {
	body, err := Tone(note, dur, sr)
	if err != nil {
		return nil, err
	}
	out := make([]float32, 0, Samples(pre, sr)+len(body)+Samples(post, sr))
	out = append(out, Silence(pre, sr)...)
	out = append(out, body...)
	out = append(out, Silence(post, sr)...)
	return out, nil
}

// MoraSequence synthesizes count short cue tones paced at bpm (one mora per
// beat) with a gap of silence between them, padded by pre/post silence.
// The gap is clamped to half a beat and each tone lasts at least 10 ms.
func MoraSequence(note string, bpm float64, count int, gap, pre, post time.Duration, sr int) ([]float32, error) {
	if bpm <= 0 || count <= 0 {
		return nil, fmt.Errorf("synth: invalid bpm %v or mora count %d", bpm, count)
	}
	freq, err := dsp.NoteToFreq(note)
	if err != nil {
		return nil, err
	}

	moraDur := time.Duration(60 / bpm * float64(time.Second))
	if gap < 0 {
		gap = 0
	}
	if gap > moraDur/2 {
		gap = moraDur / 2
	}
	toneDur := moraDur - gap
	if toneDur < 10*time.Millisecond {
		toneDur = 10 * time.Millisecond
	}

	out := Silence(pre, sr)
	for i := 0; i < count; i++ {
		out = append(out, tone(freq, toneDur, sr)...)
		if i < count-1 {
			out = append(out, Silence(gap, sr)...)
		}
	}
	return append(out, Silence(post, sr)...), nil
}

// ClickOptions configures Metronome. Zero values fall back to a 2 kHz 20 ms
// click with an accent every 4 beats.
type ClickOptions struct {
	ClickHz     float64
	ClickLen    time.Duration
	AccentEvery int
}

func (o ClickOptions) params() (hz float64, clickLen time.Duration, accent int) {
	hz, clickLen, accent = o.ClickHz, o.ClickLen, o.AccentEvery
	if hz <= 0 {
		hz = 2000
	}
	if clickLen <= 0 {
		clickLen = 20 * time.Millisecond
	}
	if accent == 0 {
		accent = 4
	}
	return hz, clickLen, accent
}

// Metronome synthesizes a click track at bpm for the given duration.
// Every AccentEvery-th beat (starting with the first) is boosted by 1.5x;
// the result is clipped to [-1, 1].
func Metronome(bpm float64, dur time.Duration, opts ClickOptions, sr int) ([]float32, error) {
	if bpm <= 0 || dur <= 0 {
		return nil, fmt.Errorf("synth: invalid bpm %v or duration %v", bpm, dur)
	}
	clickHz, clickLen, accentEvery := opts.params()

	total := Samples(dur, sr)
	out := make([]float32, total)

	// One base click with short 2 ms/5 ms ramps to avoid clicky edges.
	n := Samples(clickLen, sr)
	if n < 1 {
		n = 1
	}
	base := make([]float32, n)
	lastT := float64(n-1) / float64(sr)
	for i := range base {
		t := float64(i) / float64(sr)
		v := math.Sin(2 * math.Pi * clickHz * t)
		env := math.Min(1, t/0.002)
		if lastT > 0 {
			env *= math.Min(1, (lastT-t)/0.005)
		}
		if env < 0 {
			env = 0
		}
		base[i] = float32(v * env)
	}

	beatSec := 60 / bpm
	beat := 0
	for {
		start := int(float64(beat) * beatSec * float64(sr))
		if start >= total {
			break
		}
		gain := float32(1)
		if accentEvery > 0 && beat%accentEvery == 0 {
			gain = 1.5
		}
		for i := 0; i < len(base) && start+i < total; i++ {
			v := out[start+i] + base[i]*gain
			if v > 1 {
				v = 1
			} else if v < -1 {
				v = -1
			}
			out[start+i] = v
		}
		beat++
	}
	return out, nil
}
