// Package twcc implements the publish-side Transport-Wide Congestion
// Control pipeline of spec.md section 4.3: 16-bit feedback sequence
// assignment, a 2048-slot publish packet ring, feedback parsing, the
// loss/trendline/probe analysis passes, and the pacing hint they produce.
//
// The RTCP 205/FMT=15 feedback packet is parsed by hand against
// internal/bytesio rather than through a third-party RTCP library: TWCC is
// one of spec.md's five core from-scratch deliverables (section 1, item
// 3), the same tier as the SRTP engine and the ICE agent, so its wire
// codec is built here the way package ice hand-rolls STUN. Grounded on
// original_source/twcc.cpp and rtp_extension_source_twcc.cpp.
package twcc

import "sync"

// SeqAllocator hands out the monotone, wrapping 16-bit TWCC sequence
// numbers stamped into the transport-wide-cc header extension of each
// outgoing packet (spec.md section 4.3 "Outgoing stamping").
type SeqAllocator struct {
	mu   sync.Mutex
	next uint16
}

// NewSeqAllocator creates an allocator starting from start.
func NewSeqAllocator(start uint16) *SeqAllocator {
	return &SeqAllocator{next: start}
}

// Next returns the next TWCC sequence number and advances the counter,
// wrapping at 2^16 as an ordinary uint16 already does.
func (a *SeqAllocator) Next() uint16 {
	a.mu.Lock()
	defer a.mu.Unlock()
	seq := a.next
	a.next++
	return seq
}
