package scheduler

import (
	"time"

	"github.com/kmansoft/srtc-go/clock"
)

// LoopScheduler is the single-threaded flavor of spec.md section 4.6,
// meant to be driven from inside the network thread's own poll loop
// rather than a dedicated goroutine: GetTimeoutMillis bounds the poll
// wait, and Run executes everything due once the loop wakes up. This is
// the scheduler package.PeerConnection actually uses, per spec.md section
// 5's single-threaded network-thread model.
type LoopScheduler struct {
	tasks  []*task
	nextID int64
	clock  clock.Source
}

// NewLoopScheduler creates a LoopScheduler.
func NewLoopScheduler(src clock.Source) *LoopScheduler {
	if src == nil {
		src = clock.Default
	}
	return &LoopScheduler{clock: src}
}

// Submit schedules fn to run after delay, the next time Run is called
// with a time at or past its due time.
func (s *LoopScheduler) Submit(delay time.Duration, file string, line int, fn func()) Handle {
	s.nextID++
	id := s.nextID
	s.tasks = append(s.tasks, &task{id: id, when: s.clock.Now().Add(delay), fn: fn, file: file, line: line})
	return Handle{id: id}
}

// Cancel marks a submitted task as canceled; idempotent.
func (s *LoopScheduler) Cancel(h Handle) {
	for _, t := range s.tasks {
		if t.id == h.id {
			t.canceled = true
			return
		}
	}
}

// Update cancels h and submits fn anew at newDelay from now.
func (s *LoopScheduler) Update(h Handle, newDelay time.Duration, fn func()) Handle {
	s.Cancel(h)
	return s.Submit(newDelay, "", 0, fn)
}

// GetTimeoutMillis returns how many milliseconds until the next due task,
// or defaultMillis if nothing is pending — the value the peer connection
// poll loop feeds into event_loop.wait, capped by the caller at 1 s per
// spec.md section 5.
func (s *LoopScheduler) GetTimeoutMillis(defaultMillis int) int {
	next, ok := s.nextDue()
	if !ok {
		return defaultMillis
	}
	wait := next.Sub(s.clock.Now())
	if wait <= 0 {
		return 0
	}
	ms := int(wait / time.Millisecond)
	if ms > defaultMillis {
		return defaultMillis
	}
	return ms
}

func (s *LoopScheduler) nextDue() (time.Time, bool) {
	var earliest time.Time
	found := false
	for _, t := range s.tasks {
		if t.canceled {
			continue
		}
		if !found || t.when.Before(earliest) {
			earliest = t.when
			found = true
		}
	}
	return earliest, found
}

// Run pops and executes every non-canceled task due at or before now, in
// due-time order, then compacts the remaining slice.
func (s *LoopScheduler) Run(now time.Time) {
	var due []*task
	kept := s.tasks[:0]
	for _, t := range s.tasks {
		if t.canceled {
			continue
		}
		if !t.when.After(now) {
			due = append(due, t)
		} else {
			kept = append(kept, t)
		}
	}
	s.tasks = kept

	for i := 0; i < len(due); i++ {
		for j := i + 1; j < len(due); j++ {
			if due[j].when.Before(due[i].when) {
				due[i], due[j] = due[j], due[i]
			}
		}
	}
	for _, t := range due {
		if !t.canceled {
			t.fn()
		}
	}
}

// PendingCount reports how many non-canceled tasks remain scheduled.
func (s *LoopScheduler) PendingCount() int {
	n := 0
	for _, t := range s.tasks {
		if !t.canceled {
			n++
		}
	}
	return n
}
