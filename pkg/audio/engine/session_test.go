package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/vocorder/vocorder/pkg/audio/wavio"
)

func TestSessionCollectsChunks(t *testing.T) {
	final := filepath.Join(t.TempDir(), "take.wav")
	s, err := newSession(final, 44100, 16, 1)
	if err != nil {
		t.Fatalf("newSession: %v", err)
	}
	defer s.discardTemp()

	s.push([]float32{0.1, 0.2})
	s.push([]float32{0.3})
	got := s.samples()
	want := []float32{0.1, 0.2, 0.3}
	if len(got) != len(want) {
		t.Fatalf("samples = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("samples = %v, want %v", got, want)
		}
	}

	if err := s.finish(); err != nil {
		t.Fatalf("finish: %v", err)
	}
}

func TestSessionPushAfterFinishDropped(t *testing.T) {
	final := filepath.Join(t.TempDir(), "take.wav")
	s, err := newSession(final, 44100, 16, 1)
	if err != nil {
		t.Fatalf("newSession: %v", err)
	}
	defer s.discardTemp()

	s.push([]float32{0.1})
	if err := s.finish(); err != nil {
		t.Fatalf("finish: %v", err)
	}
	s.push([]float32{0.9})
	if n := len(s.samples()); n != 1 {
		t.Fatalf("post-finish push landed, samples = %d", n)
	}
}

func TestSessionTempIsValidWAV(t *testing.T) {
	final := filepath.Join(t.TempDir(), "take.wav")
	s, err := newSession(final, 44100, 16, 1)
	if err != nil {
		t.Fatalf("newSession: %v", err)
	}

	block := make([]float32, 1024)
	for i := range block {
		block[i] = 0.25
	}
	s.push(block)
	if err := s.finish(); err != nil {
		t.Fatalf("finish: %v", err)
	}

	samples, sr, err := wavio.ReadMono(s.tempPath)
	if err != nil {
		t.Fatalf("read temp: %v", err)
	}
	if sr != 44100 {
		t.Fatalf("temp sample rate = %d", sr)
	}
	if len(samples) != len(block) {
		t.Fatalf("temp length = %d, want %d", len(samples), len(block))
	}
	s.discardTemp()
	if _, err := os.Stat(s.tempPath); !os.IsNotExist(err) {
		t.Fatal("discardTemp left the temp file")
	}
}

func TestSessionTempHasEveryBlock(t *testing.T) {
	final := filepath.Join(t.TempDir(), "take.wav")
	s, err := newSession(final, 44100, 16, 1)
	if err != nil {
		t.Fatalf("newSession: %v", err)
	}
	defer s.discardTemp()

	const blocks = 50
	block := make([]float32, 256)
	for i := range block {
		block[i] = 0.25
	}
	for i := 0; i < blocks; i++ {
		s.push(block)
	}
	if err := s.finish(); err != nil {
		t.Fatalf("finish: %v", err)
	}

	samples, _, err := wavio.ReadMono(s.tempPath)
	if err != nil {
		t.Fatalf("read temp: %v", err)
	}
	if len(samples) != blocks*len(block) {
		t.Fatalf("temp holds %d samples, want %d", len(samples), blocks*len(block))
	}
	for i, v := range samples {
		if v < 0.24 || v > 0.26 {
			t.Fatalf("temp sample %d = %v, want ~0.25", i, v)
		}
	}
}

func TestLoadBGMLoopsByDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bgm.wav")
	if err := wavio.Write(path, []float32{0.5, 0.5, 0.5, 0.5}, 44100, 16, 1); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	e := New(Config{})
	if err := e.LoadBGM(path); err != nil {
		t.Fatalf("LoadBGM: %v", err)
	}
	e.core.startPlayback(0)
	buf := make([]float32, 16)
	e.core.fillBGM(buf)
	if !e.core.isPlaying() {
		t.Fatal("single backing track stopped instead of looping")
	}
	for i, v := range buf {
		if v == 0 {
			t.Fatalf("loop gap at sample %d: %v", i, buf)
		}
	}
}

func TestSessionPromoteTemp(t *testing.T) {
	final := filepath.Join(t.TempDir(), "take.wav")
	s, err := newSession(final, 44100, 16, 1)
	if err != nil {
		t.Fatalf("newSession: %v", err)
	}
	s.push([]float32{0.5, 0.5})
	if err := s.finish(); err != nil {
		t.Fatalf("finish: %v", err)
	}
	if err := s.promoteTemp(); err != nil {
		t.Fatalf("promoteTemp: %v", err)
	}
	if _, err := os.Stat(final); err != nil {
		t.Fatalf("final missing after promote: %v", err)
	}
	if _, err := os.Stat(s.tempPath); !os.IsNotExist(err) {
		t.Fatal("temp still present after promote")
	}
}

func TestSessionTempNameShape(t *testing.T) {
	dir := t.TempDir()
	final := filepath.Join(dir, "morning take.wav")
	s, err := newSession(final, 22050, 16, 1)
	if err != nil {
		t.Fatalf("newSession: %v", err)
	}
	defer s.discardTemp()
	defer s.finish()

	if filepath.Dir(s.tempPath) != dir {
		t.Fatalf("temp not alongside final: %s", s.tempPath)
	}
	base := filepath.Base(s.tempPath)
	if got, want := base[:len("morning take.tmp-")], "morning take.tmp-"; got != want {
		t.Fatalf("temp name %q does not start with %q", base, want)
	}
	if filepath.Ext(base) != ".wav" {
		t.Fatalf("temp name %q not a .wav", base)
	}
}

func TestConfigDefaults(t *testing.T) {
	c := Config{}.withDefaults()
	if c.SampleRate != 44100 || c.Channels != 1 || c.BitDepth != 16 || c.BlockSize != 1024 {
		t.Fatalf("unexpected defaults: %+v", c)
	}
	if c.TrimTail.Milliseconds() != 50 {
		t.Fatalf("TrimTail = %v", c.TrimTail)
	}
	if c.MicGain != 1 || c.BGMGain != 1 || c.OverlayGain != 1 || c.MonitorGain != 0 {
		t.Fatalf("unexpected gain defaults: %+v", c)
	}
	if c.RingSeconds != 5 {
		t.Fatalf("RingSeconds = %d", c.RingSeconds)
	}
}

func TestStateString(t *testing.T) {
	for s, want := range map[State]string{
		StateIdle:       "idle",
		StateRecording:  "recording",
		StatePreviewing: "previewing",
	} {
		if got := s.String(); got != want {
			t.Fatalf("State(%d).String() = %q, want %q", int(s), got, want)
		}
	}
}
