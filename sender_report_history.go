package srtc

import (
	"sync"
	"time"

	"github.com/kmansoft/srtc-go/clock"
)

// senderReportHistorySize bounds the number of sent SRs remembered per
// SSRC, matching original_source/src/sender_reports_history.cpp's
// kMaxHistory.
const senderReportHistorySize = 16

type sentReport struct {
	ntp  NtpTime
	sent time.Time
}

// SenderReportHistory remembers the NTP stamps of Sender Reports this
// peer recently sent, per SSRC, and uses them to turn a Receiver
// Report's (last SR, delay since last SR) pair, which echoes one of those
// stamps, into a round-trip time. Grounded on
// original_source/include/srtc/sender_reports_history.h and
// src/sender_reports_history.cpp.
type SenderReportHistory struct {
	mu      sync.Mutex
	clock   clock.Source
	reports map[uint32][]sentReport
}

// NewSenderReportHistory creates an empty SenderReportHistory.
func NewSenderReportHistory(src clock.Source) *SenderReportHistory {
	if src == nil {
		src = clock.Default
	}
	return &SenderReportHistory{clock: src, reports: make(map[uint32][]sentReport)}
}

// Save records that an SR with the given NTP timestamp was sent for ssrc.
func (h *SenderReportHistory) Save(ssrc uint32, ntp NtpTime) {
	h.mu.Lock()
	defer h.mu.Unlock()

	list := h.reports[ssrc]
	list = append(list, sentReport{ntp: ntp, sent: h.clock.Now()})
	if len(list) > senderReportHistorySize {
		list = list[len(list)-senderReportHistorySize:]
	}
	h.reports[ssrc] = list
}

// CalculateRtt resolves a Receiver Report's lastSR/delaySinceLastSR pair
// against this SSRC's remembered SRs and returns the round-trip time in
// milliseconds, or false if lastSR does not match any remembered SR, or
// the computed round-trip would be negative (clock skew/stale report).
func (h *SenderReportHistory) CalculateRtt(ssrc uint32, lastSR uint32, delaySinceLastSR uint32) (float64, bool) {
	h.mu.Lock()
	list := h.reports[ssrc]
	h.mu.Unlock()

	for i := len(list) - 1; i >= 0; i-- {
		item := list[i]
		if item.ntp.Middle32() != lastSR {
			continue
		}

		delayMicros := int64(delaySinceLastSR) * 1000000 / 65536
		received := item.sent.Add(time.Duration(delayMicros) * time.Microsecond)

		now := h.clock.Now()
		if now.Before(received) {
			return 0, false
		}

		// The 2x is so we get the actual back-and-forth (round trip) value.
		rttMicros := now.Sub(received).Microseconds()
		return 2 * float64(rttMicros) / 1000.0, true
	}

	return 0, false
}
