// Package scheduler provides the three delayed-task-queue flavors of
// spec.md section 4.6: a dedicated-goroutine ThreadScheduler, a
// single-threaded LoopScheduler meant to be driven from the network
// thread's own poll loop, and a ScopedScheduler that cancels every task it
// ever submitted on Close. Grounded on original_source/scheduler.cpp for
// the operation set, adapted to goroutines+channels — a Go-idiomatic
// replacement for the mutex+condvar worker thread — and on the teacher's
// background-loop idiom in async/retrieval_scheduler.go (running bool,
// stopChan chan struct{}, one goroutine per scheduler).
package scheduler

import (
	"errors"
	"sync"
	"time"

	"github.com/kmansoft/srtc-go/clock"
)

// ErrSelfDestruct is returned by ThreadScheduler.Close when called from
// its own worker goroutine, per spec.md section 9's Open Question:
// rather than silently detaching (the original's fragile C++ behavior),
// this implementation explicitly fails.
var ErrSelfDestruct = errors.New("scheduler: Close called from the scheduler's own worker goroutine")

// Handle identifies one submitted task. It is safe to call Cancel more
// than once; cancellation is idempotent.
type Handle struct {
	id int64
}

type task struct {
	id       int64
	when     time.Time
	fn       func()
	file     string
	line     int
	canceled bool
}
