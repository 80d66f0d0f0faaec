package srtc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }
func (c *fakeClock) MicrosSinceEpoch() int64 {
	return c.now.UnixMicro()
}

func TestSenderReportHistoryCalculateRtt(t *testing.T) {
	fc := &fakeClock{now: time.Now()}
	h := NewSenderReportHistory(fc)

	ntp := NtpTimeFromTime(fc.now)
	h.Save(1234, ntp)

	// Remote echoes back 100ms after receiving our SR (delaySinceLastSR in
	// 1/65536 second units).
	fc.now = fc.now.Add(150 * time.Millisecond)
	delay := uint32(100 * 65536 / 1000)

	rtt, ok := h.CalculateRtt(1234, ntp.Middle32(), delay)
	require.True(t, ok)
	// Expected round trip ~= 2 * (150ms - 100ms) = 100ms.
	require.InDelta(t, 100.0, rtt, 5.0)
}

func TestSenderReportHistoryCalculateRttUnknownSSRC(t *testing.T) {
	fc := &fakeClock{now: time.Now()}
	h := NewSenderReportHistory(fc)

	_, ok := h.CalculateRtt(9999, 0, 0)
	require.False(t, ok)
}

func TestSenderReportHistoryBoundedSize(t *testing.T) {
	fc := &fakeClock{now: time.Now()}
	h := NewSenderReportHistory(fc)

	for i := 0; i < senderReportHistorySize+5; i++ {
		h.Save(1, NtpTimeFromTime(fc.now))
		fc.now = fc.now.Add(time.Second)
	}

	h.mu.Lock()
	n := len(h.reports[1])
	h.mu.Unlock()
	require.Equal(t, senderReportHistorySize, n)
}
