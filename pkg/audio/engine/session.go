package engine

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/google/uuid"
)

// session is one recording take. The audio callback appends gained mic
// blocks and streams each one into a temp WAV next to the final path, under
// a lock held only for the append and the encoder write, so a crash never
// loses more than the block in flight and the temp file never has gaps.
type session struct {
	tempPath  string
	finalPath string

	f   *os.File
	enc *wav.Encoder

	mu        sync.Mutex
	open      bool
	chunks    [][]float32
	cached    []float32
	length    int
	writerErr error

	maxVal float64
	buf    *audio.IntBuffer
	data   []int
}

func newSession(finalPath string, sr, bits, channels int) (*session, error) {
	dir := filepath.Dir(finalPath)
	stem := strings.TrimSuffix(filepath.Base(finalPath), filepath.Ext(finalPath))
	tempPath := filepath.Join(dir, fmt.Sprintf("%s.tmp-%s.wav", stem, uuid.NewString()))

	f, err := os.Create(tempPath)
	if err != nil {
		return nil, fmt.Errorf("engine: create temp recording: %w", err)
	}

	return &session{
		tempPath:  tempPath,
		finalPath: finalPath,
		f:         f,
		enc:       wav.NewEncoder(f, sr, bits, channels, 1),
		open:      true,
		maxVal:    float64(int64(1)<<(bits-1) - 1),
		buf: &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: channels, SampleRate: sr},
			SourceBitDepth: bits,
		},
	}, nil
}

// push stores one mic block and writes it through to the temp WAV. Called
// from the audio callback; finish takes the same lock, so every pushed
// block lands in the temp file before it closes.
func (s *session) push(block []float32) {
	cp := make([]float32, len(block))
	copy(cp, block)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return
	}
	s.chunks = append(s.chunks, cp)
	s.cached = nil
	s.length += len(cp)
	s.writeBlock(cp)
}

// writeBlock encodes one block into the temp WAV. Write failures are
// remembered, not surfaced; the in-memory chunks stay authoritative.
// Caller holds s.mu.
func (s *session) writeBlock(block []float32) {
	channels := s.buf.Format.NumChannels
	if cap(s.data) < len(block)*channels {
		s.data = make([]int, len(block)*channels)
	}
	data := s.data[:len(block)*channels]
	for i, v := range block {
		f := float64(v) * s.maxVal
		if f > s.maxVal {
			f = s.maxVal
		} else if f < -s.maxVal {
			f = -s.maxVal
		}
		iv := int(f)
		for c := 0; c < channels; c++ {
			data[i*channels+c] = iv
		}
	}
	s.buf.Data = data
	if err := s.enc.Write(s.buf); err != nil && s.writerErr == nil {
		s.writerErr = err
	}
}

// samples concatenates the recorded chunks. The concat is cached until the
// next push, so repeated waveform reads stay cheap.
func (s *session) samples() []float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cached == nil {
		s.cached = make([]float32, 0, s.length)
		for _, c := range s.chunks {
			s.cached = append(s.cached, c...)
		}
	}
	return s.cached
}

// finish stops accepting blocks and finalizes the temp file.
func (s *session) finish() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return nil
	}
	s.open = false

	if err := s.enc.Close(); err != nil {
		s.f.Close()
		return fmt.Errorf("engine: finalize temp recording: %w", err)
	}
	if err := s.f.Close(); err != nil {
		return fmt.Errorf("engine: close temp recording: %w", err)
	}
	return s.writerErr
}

// promoteTemp salvages the temp file as the final recording when the
// trimmed re-encode failed. Rename first, byte copy as the cross-device
// fallback.
func (s *session) promoteTemp() error {
	if err := os.Rename(s.tempPath, s.finalPath); err == nil {
		return nil
	}
	src, err := os.Open(s.tempPath)
	if err != nil {
		return fmt.Errorf("engine: recover temp recording: %w", err)
	}
	defer src.Close()
	dst, err := os.Create(s.finalPath)
	if err != nil {
		return fmt.Errorf("engine: recover temp recording: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("engine: recover temp recording: %w", err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("engine: recover temp recording: %w", err)
	}
	os.Remove(s.tempPath)
	return nil
}

func (s *session) discardTemp() {
	os.Remove(s.tempPath)
}
