package ring_test

import (
	"testing"

	"github.com/vocorder/vocorder/pkg/audio/ring"
)

func seq(start, n int) []float32 {
	s := make([]float32, n)
	for i := range s {
		s[i] = float32(start + i)
	}
	return s
}

func equal(a, b []float32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestEmpty(t *testing.T) {
	b := ring.New(16)
	if got := b.Get(8); len(got) != 0 {
		t.Fatalf("Get on empty buffer = %v, want empty", got)
	}
	if b.Len() != 0 {
		t.Fatalf("Len = %d, want 0", b.Len())
	}
}

func TestGetReturnsLastPushed(t *testing.T) {
	b := ring.New(8)
	b.Push(seq(0, 5))
	if got := b.Get(3); !equal(got, seq(2, 3)) {
		t.Fatalf("Get(3) = %v, want %v", got, seq(2, 3))
	}
	// Get never returns more than has been pushed.
	if got := b.Get(100); !equal(got, seq(0, 5)) {
		t.Fatalf("Get(100) = %v, want %v", got, seq(0, 5))
	}
}

func TestWrapAround(t *testing.T) {
	b := ring.New(8)
	b.Push(seq(0, 6))
	b.Push(seq(6, 5)) // wraps
	if b.Len() != 8 {
		t.Fatalf("Len = %d, want 8 after wrap", b.Len())
	}
	// Last 8 of the 11 pushed samples: 3..10.
	if got := b.Get(8); !equal(got, seq(3, 8)) {
		t.Fatalf("Get(8) = %v, want %v", got, seq(3, 8))
	}
}

func TestOversizePush(t *testing.T) {
	b := ring.New(4)
	b.Push(seq(0, 10))
	// Buffer becomes exactly the tail of the push.
	if got := b.Get(4); !equal(got, seq(6, 4)) {
		t.Fatalf("Get(4) = %v, want %v", got, seq(6, 4))
	}
	// And stays consistent across further pushes.
	b.Push(seq(10, 2))
	if got := b.Get(4); !equal(got, seq(8, 4)) {
		t.Fatalf("Get(4) = %v, want %v", got, seq(8, 4))
	}
}

func TestManySmallPushes(t *testing.T) {
	b := ring.New(7)
	for i := 0; i < 100; i++ {
		b.Push(seq(i*3, 3))
	}
	// 300 samples pushed, buffer holds the last 7: 293..299.
	if got := b.Get(7); !equal(got, seq(293, 7)) {
		t.Fatalf("Get(7) = %v, want %v", got, seq(293, 7))
	}
}

func TestReset(t *testing.T) {
	b := ring.New(8)
	b.Push(seq(0, 8))
	b.Reset()
	if b.Len() != 0 {
		t.Fatalf("Len after Reset = %d, want 0", b.Len())
	}
	b.Push(seq(0, 2))
	if got := b.Get(8); !equal(got, seq(0, 2)) {
		t.Fatalf("Get after Reset = %v, want %v", got, seq(0, 2))
	}
}
