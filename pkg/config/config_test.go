package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vocorder/vocorder/pkg/audio/dsp"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	if cfg.SampleRate != 44100 || cfg.BitDepth != 16 || cfg.BlockSize != 1024 {
		t.Fatalf("defaults = %+v", cfg)
	}
	if cfg.Algorithm() != dsp.AlgoClassic {
		t.Fatal("default algorithm not classic")
	}
}

func TestLoadEmptyPath(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg != Default() {
		t.Fatal("empty path did not return defaults")
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, strings.Join([]string{
		"sample_rate: 48000",
		"pitch_algo: yin",
		"note_workers: 8",
		"monitor_gain: 0.5",
	}, "\n"))

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SampleRate != 48000 {
		t.Fatalf("sample_rate = %d", cfg.SampleRate)
	}
	if cfg.Algorithm() != dsp.AlgoYIN {
		t.Fatal("pitch_algo not applied")
	}
	if cfg.NoteWorkers != 8 || cfg.MonitorGain != 0.5 {
		t.Fatalf("overrides lost: %+v", cfg)
	}
	// Untouched fields keep their defaults.
	if cfg.BlockSize != 1024 || cfg.BitDepth != 16 {
		t.Fatalf("defaults lost: %+v", cfg)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	for name, body := range map[string]string{
		"zero rate":    "sample_rate: 0",
		"bad depth":    "bit_depth: 12",
		"bad algo":     "pitch_algo: autotune",
		"neg gain":     "bgm_gain: -1",
		"neg preroll":  "pre_roll_ms: -10",
		"neg workers":  "note_workers: -1",
		"neg mem":      "cache_memory_limit: -1",
		"neg channels": "channels: -2",
	} {
		if _, err := Load(writeConfig(t, body)); err == nil {
			t.Fatalf("%s: accepted %q", name, body)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("accepted missing file")
	}
}

func TestLoadRejectsGarbage(t *testing.T) {
	if _, err := Load(writeConfig(t, "::: not yaml {")); err == nil {
		t.Fatal("accepted malformed yaml")
	}
}

func TestEngineConfig(t *testing.T) {
	cfg := Default()
	cfg.PreRollMs = 250
	ec := cfg.EngineConfig()
	if ec.SampleRate != cfg.SampleRate || ec.BitDepth != cfg.BitDepth {
		t.Fatalf("engine config = %+v", ec)
	}
	if ec.PreRoll.Milliseconds() != 250 || ec.TrimTail.Milliseconds() != 50 {
		t.Fatalf("durations = %v/%v", ec.PreRoll, ec.TrimTail)
	}
}
