// Package config loads the application configuration from YAML.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/vocorder/vocorder/pkg/audio/dsp"
	"github.com/vocorder/vocorder/pkg/audio/engine"
)

// Config is the on-disk configuration. Missing fields keep their defaults.
type Config struct {
	SampleRate int `yaml:"sample_rate"`
	Channels   int `yaml:"channels"`
	BitDepth   int `yaml:"bit_depth"`
	BlockSize  int `yaml:"block_size"`

	PreRollMs  int `yaml:"pre_roll_ms"`
	TrimTailMs int `yaml:"trim_tail_ms"`

	MicGain     float64 `yaml:"mic_gain"`
	BGMGain     float64 `yaml:"bgm_gain"`
	OverlayGain float64 `yaml:"overlay_gain"`
	MonitorGain float64 `yaml:"monitor_gain"`

	PitchAlgo   string `yaml:"pitch_algo"`
	NoteWorkers int    `yaml:"note_workers"`

	CacheDir         string `yaml:"cache_dir"`
	CacheMemoryLimit int    `yaml:"cache_memory_limit"`

	// Recordings is where takes and the note index live.
	Recordings string `yaml:"recordings"`
}

// Default returns the built-in configuration rooted under the user's home.
func Default() Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	root := filepath.Join(home, ".vocorder")
	return Config{
		SampleRate:       44100,
		Channels:         1,
		BitDepth:         16,
		BlockSize:        1024,
		PreRollMs:        500,
		TrimTailMs:       50,
		MicGain:          1,
		BGMGain:          1,
		OverlayGain:      1,
		MonitorGain:      0,
		PitchAlgo:        "classic",
		NoteWorkers:      2,
		CacheDir:         filepath.Join(root, "cache"),
		CacheMemoryLimit: 64,
		Recordings:       filepath.Join(root, "recordings"),
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects values the engine or analyzers cannot work with.
func (c Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("config: sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.Channels <= 0 {
		return fmt.Errorf("config: channels must be positive, got %d", c.Channels)
	}
	switch c.BitDepth {
	case 8, 16, 24, 32:
	default:
		return fmt.Errorf("config: bit_depth must be 8, 16, 24 or 32, got %d", c.BitDepth)
	}
	if c.BlockSize <= 0 {
		return fmt.Errorf("config: block_size must be positive, got %d", c.BlockSize)
	}
	if c.PreRollMs < 0 {
		return fmt.Errorf("config: pre_roll_ms must not be negative, got %d", c.PreRollMs)
	}
	if c.TrimTailMs < 0 {
		return fmt.Errorf("config: trim_tail_ms must not be negative, got %d", c.TrimTailMs)
	}
	for name, g := range map[string]float64{
		"mic_gain":     c.MicGain,
		"bgm_gain":     c.BGMGain,
		"overlay_gain": c.OverlayGain,
		"monitor_gain": c.MonitorGain,
	} {
		if g < 0 {
			return fmt.Errorf("config: %s must not be negative, got %v", name, g)
		}
	}
	if _, err := dsp.ParseAlgorithm(c.PitchAlgo); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.NoteWorkers < 0 {
		return fmt.Errorf("config: note_workers must not be negative, got %d", c.NoteWorkers)
	}
	if c.CacheMemoryLimit < 0 {
		return fmt.Errorf("config: cache_memory_limit must not be negative, got %d", c.CacheMemoryLimit)
	}
	return nil
}

// Algorithm returns the configured pitch algorithm.
func (c Config) Algorithm() dsp.Algorithm {
	a, _ := dsp.ParseAlgorithm(c.PitchAlgo)
	return a
}

// EngineConfig maps the file values onto an engine configuration.
func (c Config) EngineConfig() engine.Config {
	return engine.Config{
		SampleRate:  c.SampleRate,
		Channels:    c.Channels,
		BitDepth:    c.BitDepth,
		BlockSize:   c.BlockSize,
		PreRoll:     time.Duration(c.PreRollMs) * time.Millisecond,
		TrimTail:    time.Duration(c.TrimTailMs) * time.Millisecond,
		MicGain:     c.MicGain,
		BGMGain:     c.BGMGain,
		OverlayGain: c.OverlayGain,
		MonitorGain: c.MonitorGain,
	}
}
