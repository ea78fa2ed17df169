// Package ring provides a fixed-capacity sample ring buffer for waveform
// visualization. Unlike a streaming FIFO, the buffer silently overwrites the
// oldest samples once full, keeping a sliding window of the most recent audio.
//
// Push is cheap enough to call from the audio callback: it never allocates
// beyond the fixed backing array and holds its lock only for the copy.
package ring

import "sync"

// Buffer is a fixed-capacity circular store of float32 samples.
type Buffer struct {
	mu    sync.Mutex
	buf   []float32
	index int
	full  bool
}

// New creates a Buffer with the given capacity in samples.
func New(size int) *Buffer {
	if size <= 0 {
		size = 1
	}
	return &Buffer{buf: make([]float32, size)}
}

// Push appends samples, overwriting the oldest data once the buffer is full.
// If len(samples) >= capacity the buffer becomes exactly the last capacity
// samples and the cursor resets.
func (b *Buffer) Push(samples []float32) {
	if len(samples) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	size := len(b.buf)
	if len(samples) >= size {
		copy(b.buf, samples[len(samples)-size:])
		b.index = 0
		b.full = true
		return
	}

	end := b.index + len(samples)
	if end < size {
		copy(b.buf[b.index:], samples)
	} else {
		first := size - b.index
		copy(b.buf[b.index:], samples[:first])
		copy(b.buf, samples[first:])
	}
	b.index = end % size
	if end >= size {
		b.full = true
	}
}

// Get returns the most recent min(n, available) samples in chronological
// order. The result is a copy; an empty buffer yields an empty slice.
func (b *Buffer) Get(n int) []float32 {
	b.mu.Lock()
	defer b.mu.Unlock()

	avail := b.index
	if b.full {
		avail = len(b.buf)
	}
	if n > avail {
		n = avail
	}
	if n <= 0 {
		return nil
	}

	out := make([]float32, n)
	start := b.index - n
	if start >= 0 {
		copy(out, b.buf[start:b.index])
		return out
	}
	start += len(b.buf)
	m := copy(out, b.buf[start:])
	copy(out[m:], b.buf[:b.index])
	return out
}

// Len returns the number of samples currently available.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.full {
		return len(b.buf)
	}
	return b.index
}

// Cap returns the buffer capacity.
func (b *Buffer) Cap() int {
	return len(b.buf)
}

// Reset discards all buffered samples.
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.index = 0
	b.full = false
}
