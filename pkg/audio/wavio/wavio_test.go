package wavio

import (
	"math"
	"path/filepath"
	"testing"
)

func TestWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tone.wav")

	sr := 44100
	in := make([]float32, sr/10)
	for i := range in {
		in[i] = float32(0.5 * math.Sin(2*math.Pi*440*float64(i)/float64(sr)))
	}

	if err := Write(path, in, sr, 16, 1); err != nil {
		t.Fatalf("Write: %v", err)
	}

	out, gotSR, err := ReadMono(path)
	if err != nil {
		t.Fatalf("ReadMono: %v", err)
	}
	if gotSR != sr {
		t.Fatalf("sample rate = %d, want %d", gotSR, sr)
	}
	if len(out) != len(in) {
		t.Fatalf("length = %d, want %d", len(out), len(in))
	}
	for i := range in {
		// 16-bit quantization error bound.
		if math.Abs(float64(out[i]-in[i])) > 1.0/32000 {
			t.Fatalf("sample %d: got %v, want %v", i, out[i], in[i])
		}
	}
}

func TestWriteStereoDownmix(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stereo.wav")

	in := []float32{0.25, -0.25, 0.5, -0.5}
	if err := Write(path, in, 22050, 16, 2); err != nil {
		t.Fatalf("Write: %v", err)
	}
	out, sr, err := ReadMono(path)
	if err != nil {
		t.Fatalf("ReadMono: %v", err)
	}
	if sr != 22050 {
		t.Fatalf("sample rate = %d", sr)
	}
	// Both channels carry the same signal, so the downmix reproduces it.
	if len(out) != len(in) {
		t.Fatalf("length = %d, want %d", len(out), len(in))
	}
	for i := range in {
		if math.Abs(float64(out[i]-in[i])) > 1.0/32000 {
			t.Fatalf("sample %d: got %v, want %v", i, out[i], in[i])
		}
	}
}

func TestReadMonoMissing(t *testing.T) {
	if _, _, err := ReadMono(filepath.Join(t.TempDir(), "nope.wav")); err == nil {
		t.Fatal("ReadMono accepted a missing file")
	}
}

func TestWriteInvalidParams(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.wav")
	if err := Write(path, nil, 0, 16, 1); err == nil {
		t.Fatal("Write accepted zero sample rate")
	}
	if err := Write(path, nil, 44100, 12, 1); err == nil {
		t.Fatal("Write accepted 12-bit depth")
	}
}
