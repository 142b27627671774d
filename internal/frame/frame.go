// Package frame holds decoded video frames and the single-value slot used to
// hand the newest one from the stream reader to the publisher.
package frame

import (
	"context"
	"image"
	"sync"
	"sync/atomic"
	"time"
)

// Frame is a decoded image at the relay's output resolution.
// It must not be modified once stored in a Slot.
type Frame struct {
	Image      *image.RGBA
	Seq        uint64
	CapturedAt time.Time
}

// Width returns the frame width in pixels.
func (f *Frame) Width() int { return f.Image.Rect.Dx() }

// Height returns the frame height in pixels.
func (f *Frame) Height() int { return f.Image.Rect.Dy() }

// Slot keeps only the most recently stored frame. Stores and loads are
// atomic pointer swaps; the last write wins.
type Slot struct {
	current atomic.Pointer[Frame]

	mu       sync.Mutex
	ready    chan struct{}
	signaled bool
}

// NewSlot creates an empty slot.
func NewSlot() *Slot {
	return &Slot{ready: make(chan struct{})}
}

// Store publishes f as the current frame. Nil is ignored.
func (s *Slot) Store(f *Frame) {
	if f == nil {
		return
	}
	s.current.Store(f)

	s.mu.Lock()
	if !s.signaled {
		s.signaled = true
		close(s.ready)
	}
	s.mu.Unlock()
}

// Load returns the current frame, or false if nothing was stored yet.
func (s *Slot) Load() (*Frame, bool) {
	f := s.current.Load()
	return f, f != nil
}

// Reset empties the slot. Waiters blocked on an empty slot stay attached
// and are released by the next Store.
func (s *Slot) Reset() {
	s.current.Store(nil)

	s.mu.Lock()
	if s.signaled {
		s.ready = make(chan struct{})
		s.signaled = false
	}
	s.mu.Unlock()
}

// Ready is closed once a frame has been stored since creation or the last Reset.
func (s *Slot) Ready() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// Wait blocks until a frame is available or ctx is done.
func (s *Slot) Wait(ctx context.Context) (*Frame, error) {
	select {
	case <-s.Ready():
		f, _ := s.Load()
		return f, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
