package srtc

import "sync"

// SenderReport is one parsed incoming RTCP Sender Report's timing fields:
// the NTP wall-clock time it was generated, the corresponding RTP
// timestamp, and the sender's cumulative packet/octet counts. Grounded on
// original_source/include/srtc/sender_report.h.
type SenderReport struct {
	NtpTime     NtpTime
	RtpTime     uint32
	PacketCount uint32
	OctetCount  uint32
}

// TrackStats holds one track's mutable send/receive counters plus the
// extended highest-received-SEQ and most recently received SenderReport,
// used to compute RTT and to populate outgoing Receiver Reports. Grounded
// on original_source/include/srtc/track_stats.h; safe for concurrent use
// since stats are updated from the network thread and read from stats
// callbacks on another goroutine.
type TrackStats struct {
	mu sync.Mutex

	sentPackets     uint32
	sentBytes       uint32
	receivedPackets uint32
	receivedBytes   uint32

	receivedHighestSeq *ExtendedValue
	receivedSR         *SenderReport
}

// NewTrackStats creates an empty TrackStats.
func NewTrackStats() *TrackStats {
	return &TrackStats{receivedHighestSeq: NewExtendedValue16()}
}

// Clear resets all counters and history, used when a track is reset on
// reconnection.
func (s *TrackStats) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sentPackets = 0
	s.sentBytes = 0
	s.receivedPackets = 0
	s.receivedBytes = 0
	s.receivedHighestSeq = NewExtendedValue16()
	s.receivedSR = nil
}

func (s *TrackStats) SentPackets() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sentPackets
}

func (s *TrackStats) SentBytes() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sentBytes
}

func (s *TrackStats) IncrementSentPackets(n uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sentPackets += n
}

func (s *TrackStats) IncrementSentBytes(n uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sentBytes += n
}

func (s *TrackStats) ReceivedPackets() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.receivedPackets
}

func (s *TrackStats) ReceivedBytes() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.receivedBytes
}

func (s *TrackStats) IncrementReceivedPackets(n uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.receivedPackets += n
}

func (s *TrackStats) IncrementReceivedBytes(n uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.receivedBytes += n
}

// SetHighestReceivedSeq feeds the latest received RTP SEQ through the
// extended-value rollover tracker.
func (s *TrackStats) SetHighestReceivedSeq(seq uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.receivedHighestSeq.Extend(uint64(seq))
}

// ReceivedHighestSeqEx returns the extended (64-bit) highest received SEQ.
func (s *TrackStats) ReceivedHighestSeqEx() (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.receivedHighestSeq.Get()
}

// SetReceivedSenderReport records the most recently parsed SR for this
// track, used as the LSR source for the next outgoing RR.
func (s *TrackStats) SetReceivedSenderReport(sr SenderReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := sr
	s.receivedSR = &cp
}

// ReceivedSenderReport returns the last SR recorded, if any.
func (s *TrackStats) ReceivedSenderReport() (SenderReport, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.receivedSR == nil {
		return SenderReport{}, false
	}
	return *s.receivedSR, true
}
