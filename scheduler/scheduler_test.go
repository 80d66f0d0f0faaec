package scheduler

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoopSchedulerRunsDueTasksInOrder(t *testing.T) {
	s := NewLoopScheduler(nil)
	base := time.Now()

	var order []int
	s.Submit(30*time.Millisecond, "", 0, func() { order = append(order, 3) })
	s.Submit(10*time.Millisecond, "", 0, func() { order = append(order, 1) })
	s.Submit(20*time.Millisecond, "", 0, func() { order = append(order, 2) })

	s.Run(base)
	require.Empty(t, order)

	s.Run(base.Add(25 * time.Millisecond))
	require.Equal(t, []int{1, 2}, order)

	s.Run(base.Add(35 * time.Millisecond))
	require.Equal(t, []int{1, 2, 3}, order)
}

func TestLoopSchedulerCancel(t *testing.T) {
	s := NewLoopScheduler(nil)
	ran := false
	h := s.Submit(10*time.Millisecond, "", 0, func() { ran = true })
	s.Cancel(h)
	s.Run(time.Now().Add(time.Second))
	require.False(t, ran)
}

func TestLoopSchedulerGetTimeoutMillis(t *testing.T) {
	s := NewLoopScheduler(nil)
	require.Equal(t, 500, s.GetTimeoutMillis(500))

	s.Submit(50*time.Millisecond, "", 0, func() {})
	ms := s.GetTimeoutMillis(1000)
	require.LessOrEqual(t, ms, 50)
}

func TestThreadSchedulerRunsTask(t *testing.T) {
	s := NewThreadScheduler(nil)
	defer s.Close()

	var ran int32
	s.Submit(5*time.Millisecond, "", 0, func() { atomic.StoreInt32(&ran, 1) })

	require.Eventually(t, func() bool { return atomic.LoadInt32(&ran) == 1 }, time.Second, time.Millisecond)
}

func TestThreadSchedulerCancel(t *testing.T) {
	s := NewThreadScheduler(nil)
	defer s.Close()

	var ran int32
	h := s.Submit(20*time.Millisecond, "", 0, func() { atomic.StoreInt32(&ran, 1) })
	s.Cancel(h)

	time.Sleep(50 * time.Millisecond)
	require.EqualValues(t, 0, atomic.LoadInt32(&ran))
}

func TestScopedSchedulerCancelsAllOnClose(t *testing.T) {
	inner := NewLoopScheduler(nil)
	scoped := NewScopedScheduler(inner)

	var ran int32
	scoped.Submit(10*time.Millisecond, "", 0, func() { atomic.AddInt32(&ran, 1) })
	scoped.Submit(20*time.Millisecond, "", 0, func() { atomic.AddInt32(&ran, 1) })

	scoped.Close()
	inner.Run(time.Now().Add(time.Second))
	require.EqualValues(t, 0, ran)
}
