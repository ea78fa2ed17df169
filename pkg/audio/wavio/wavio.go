// Package wavio reads and writes WAV files as normalized mono float32 clips.
// It is the only place the engine and the analysis workers touch sound files.
package wavio

import (
	"fmt"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/vocorder/vocorder/pkg/audio/resampler"
)

// ReadMono decodes a WAV file into normalized mono float32 samples.
// Multi-channel files are downmixed by averaging. It returns the samples and
// the file's sample rate.
func ReadMono(path string) ([]float32, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("wavio: open %s: %w", path, err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, 0, fmt.Errorf("wavio: %s is not a valid WAV file", path)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("wavio: decode %s: %w", path, err)
	}
	if buf.Format == nil || buf.Format.NumChannels <= 0 {
		return nil, 0, fmt.Errorf("wavio: %s has no channel info", path)
	}

	channels := buf.Format.NumChannels
	scale := float64(int64(1) << (dec.BitDepth - 1))
	frames := len(buf.Data) / channels

	samples := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += float64(buf.Data[i*channels+c]) / scale
		}
		samples[i] = float32(sum / float64(channels))
	}
	return samples, buf.Format.SampleRate, nil
}

// ReadMonoAt decodes a WAV file and resamples it to targetSR if needed.
func ReadMonoAt(path string, targetSR int) ([]float32, error) {
	samples, sr, err := ReadMono(path)
	if err != nil {
		return nil, err
	}
	if sr == targetSR {
		return samples, nil
	}
	out, err := resampler.Resample(samples, sr, targetSR)
	if err != nil {
		return nil, fmt.Errorf("wavio: resample %s: %w", path, err)
	}
	return out, nil
}

// Write encodes mono float32 samples as a fixed-point WAV file. Samples are
// clipped to [-1, 1]; mono input is duplicated across the requested channel
// count. bits is typically 16.
func Write(path string, samples []float32, sr, bits, channels int) error {
	if sr <= 0 {
		return fmt.Errorf("wavio: invalid sample rate %d", sr)
	}
	if bits != 8 && bits != 16 && bits != 24 && bits != 32 {
		return fmt.Errorf("wavio: unsupported bit depth %d", bits)
	}
	if channels <= 0 {
		channels = 1
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("wavio: create %s: %w", path, err)
	}

	enc := wav.NewEncoder(f, sr, bits, channels, 1)
	maxVal := float64(int64(1)<<(bits-1) - 1)
	minVal := -float64(int64(1) << (bits - 1))

	data := make([]int, len(samples)*channels)
	for i, s := range samples {
		v := float64(s) * maxVal
		if v > maxVal {
			v = maxVal
		} else if v < minVal {
			v = minVal
		}
		iv := int(v)
		for c := 0; c < channels; c++ {
			data[i*channels+c] = iv
		}
	}

	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: sr},
		SourceBitDepth: bits,
		Data:           data,
	}
	if err := enc.Write(buf); err != nil {
		enc.Close()
		f.Close()
		return fmt.Errorf("wavio: encode %s: %w", path, err)
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return fmt.Errorf("wavio: finalize %s: %w", path, err)
	}
	return f.Close()
}
