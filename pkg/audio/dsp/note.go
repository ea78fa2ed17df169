package dsp

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// NoteNames are the 12 pitch-class names, C first.
var NoteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// UnvoicedLabel is the note label reported when no pitch is present.
const UnvoicedLabel = "--"

// F0ToMIDI converts a frequency in Hz to a fractional MIDI note number
// (A4 = 440 Hz = 69). Non-positive input reports ok=false.
func F0ToMIDI(f0 float64) (float64, bool) {
	if f0 <= 0 {
		return 0, false
	}
	return 69 + 12*math.Log2(f0/440.0), true
}

// MIDIToNote returns the note name for a (fractional) MIDI number,
// e.g. 69 -> "A4". Octaves may be negative.
func MIDIToNote(midi float64) string {
	rounded := int(math.Round(midi))
	name := NoteNames[((rounded%12)+12)%12]
	octave := rounded/12 - 1
	if rounded < 0 && rounded%12 != 0 {
		octave--
	}
	return fmt.Sprintf("%s%d", name, octave)
}

// NoteFromF0 returns the nearest note name and the deviation from it in
// cents. Unvoiced input yields UnvoicedLabel and 0 cents.
func NoteFromF0(f0 float64) (note string, cents float64) {
	midi, ok := F0ToMIDI(f0)
	if !ok {
		return UnvoicedLabel, 0
	}
	rounded := math.Round(midi)
	return MIDIToNote(rounded), (midi - rounded) * 100
}

// NoteToFreq parses a note name of the form <Letter>[#]<octave> (octave may
// be negative, e.g. "C-1") and returns its frequency in Hz.
func NoteToFreq(note string) (float64, error) {
	s := strings.ToUpper(strings.TrimSpace(note))
	if len(s) < 2 {
		return 0, fmt.Errorf("dsp: invalid note %q", note)
	}
	var name, octaveStr string
	if s[1] == '#' {
		name, octaveStr = s[:2], s[2:]
	} else {
		name, octaveStr = s[:1], s[1:]
	}
	class := -1
	for i, n := range NoteNames {
		if n == name {
			class = i
			break
		}
	}
	if class < 0 {
		return 0, fmt.Errorf("dsp: invalid note %q", note)
	}
	octave, err := strconv.Atoi(octaveStr)
	if err != nil {
		return 0, fmt.Errorf("dsp: invalid note %q", note)
	}
	midi := (octave+1)*12 + class
	return 440.0 * math.Pow(2, float64(midi-69)/12), nil
}

// DominantNote reduces an f0 contour to a single note label: the note of the
// mean MIDI value across voiced frames, or UnvoicedLabel when none are voiced.
func DominantNote(f0s []float32) string {
	var sum float64
	var n int
	for _, f := range f0s {
		if midi, ok := F0ToMIDI(float64(f)); ok {
			sum += midi
			n++
		}
	}
	if n == 0 {
		return UnvoicedLabel
	}
	return MIDIToNote(sum / float64(n))
}
