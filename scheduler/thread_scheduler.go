package scheduler

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/kmansoft/srtc-go/clock"
)

// ThreadScheduler runs submitted tasks on a dedicated worker goroutine, a
// mutex-protected slice of pending tasks ordered by due time. Not used by
// this client's own network thread (which uses LoopScheduler instead,
// per spec.md section 5), but kept as the general-purpose flavor spec.md
// section 4.6 names.
type ThreadScheduler struct {
	mu     sync.Mutex
	tasks  []*task
	nextID int64
	clock  clock.Source

	wake chan struct{}
	stop chan struct{}
	done chan struct{}

	executing int32 // atomic: task id currently running, 0 if idle
	onWorker  atomic.Bool
}

// NewThreadScheduler creates and starts a ThreadScheduler.
func NewThreadScheduler(src clock.Source) *ThreadScheduler {
	if src == nil {
		src = clock.Default
	}
	s := &ThreadScheduler{
		clock: src,
		wake:  make(chan struct{}, 1),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go s.run()
	return s
}

// Submit schedules fn to run after delay. file/line are carried only for
// diagnostic logging parity with the original's submit(delay, file, line,
// func) signature; they are not otherwise interpreted.
func (s *ThreadScheduler) Submit(delay time.Duration, file string, line int, fn func()) Handle {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	t := &task{id: id, when: s.clock.Now().Add(delay), fn: fn, file: file, line: line}
	s.tasks = append(s.tasks, t)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return Handle{id: id}
}

// Cancel cancels a previously submitted task. If the task is currently
// executing, Cancel blocks until it finishes, matching the original's
// "cancel() blocks if the task is currently executing" contract.
func (s *ThreadScheduler) Cancel(h Handle) {
	for {
		s.mu.Lock()
		for _, t := range s.tasks {
			if t.id == h.id {
				t.canceled = true
			}
		}
		executing := atomic.LoadInt32(&s.executing) == int32(h.id)
		s.mu.Unlock()
		if !executing {
			return
		}
		// Briefly yield while the task finishes running; it holds no lock
		// we need, so this just avoids a busy spin.
		time.Sleep(time.Millisecond)
	}
}

// Update atomically removes and reinserts a task at a new delay from now,
// returning the new handle (the original task's id is retired).
func (s *ThreadScheduler) Update(h Handle, newDelay time.Duration, fn func()) Handle {
	s.Cancel(h)
	return s.Submit(newDelay, "", 0, fn)
}

// Close stops the worker goroutine and waits for it to exit. Per spec.md
// section 9's Open Question, calling Close from the scheduler's own
// worker goroutine returns ErrSelfDestruct instead of silently detaching.
func (s *ThreadScheduler) Close() error {
	if s.onWorker.Load() {
		return ErrSelfDestruct
	}
	close(s.stop)
	<-s.done
	return nil
}

func (s *ThreadScheduler) run() {
	s.onWorker.Store(true)
	defer close(s.done)

	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		next, ok := s.popDue()
		if ok {
			s.runTask(next)
			continue
		}

		wait := s.nextWait()
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-s.stop:
			return
		case <-s.wake:
		case <-timer.C:
		}
	}
}

func (s *ThreadScheduler) popDue() (*task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	kept := s.tasks[:0]
	var due *task
	for _, t := range s.tasks {
		if t.canceled {
			continue
		}
		if !t.when.After(now) && (due == nil || t.when.Before(due.when)) {
			if due != nil {
				kept = append(kept, due)
			}
			due = t
			continue
		}
		kept = append(kept, t)
	}
	s.tasks = kept
	return due, due != nil
}

func (s *ThreadScheduler) nextWait() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.tasks) == 0 {
		return time.Hour
	}
	earliest := s.tasks[0].when
	for _, t := range s.tasks[1:] {
		if t.when.Before(earliest) {
			earliest = t.when
		}
	}
	wait := earliest.Sub(s.clock.Now())
	if wait < 0 {
		wait = 0
	}
	return wait
}

func (s *ThreadScheduler) runTask(t *task) {
	atomic.StoreInt32(&s.executing, int32(t.id))
	defer atomic.StoreInt32(&s.executing, 0)
	t.fn()
}
