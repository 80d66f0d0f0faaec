package scheduler

import (
	"sync"
	"time"
)

// submitter is satisfied by both ThreadScheduler and LoopScheduler.
type submitter interface {
	Submit(delay time.Duration, file string, line int, fn func()) Handle
	Cancel(h Handle)
}

// ScopedScheduler wraps a submitter and tracks every handle it ever
// issues, canceling all of them on Close (RAII-style), per spec.md
// section 4.6. This is the seam the peer candidate and peer connection
// use so that closing a candidate never leaves a stray keep-alive or
// connect-timeout task running against a LoopScheduler shared by other
// candidates.
type ScopedScheduler struct {
	mu      sync.Mutex
	inner   submitter
	handles []Handle
	closed  bool
}

// NewScopedScheduler wraps inner.
func NewScopedScheduler(inner submitter) *ScopedScheduler {
	return &ScopedScheduler{inner: inner}
}

// Submit forwards to the wrapped submitter and remembers the handle.
func (s *ScopedScheduler) Submit(delay time.Duration, file string, line int, fn func()) Handle {
	h := s.inner.Submit(delay, file, line, fn)
	s.mu.Lock()
	if !s.closed {
		s.handles = append(s.handles, h)
	} else {
		s.mu.Unlock()
		s.inner.Cancel(h)
		return h
	}
	s.mu.Unlock()
	return h
}

// Cancel forwards to the wrapped submitter.
func (s *ScopedScheduler) Cancel(h Handle) {
	s.inner.Cancel(h)
}

// Close cancels every handle this ScopedScheduler has ever submitted.
// Idempotent.
func (s *ScopedScheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	handles := s.handles
	s.handles = nil
	s.mu.Unlock()

	for _, h := range handles {
		s.inner.Cancel(h)
	}
}
