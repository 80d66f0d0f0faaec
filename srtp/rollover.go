package srtp

// RolloverState tracks the 32-bit rollover counter for one (SSRC, PT)
// channel, matching the hysteresis rule of spec.md section 3: a 16-bit SEQ
// swing only counts as a wrap if last >= 0xF000 && new <= 0x1000 (forward),
// or last <= 0x1000 && new >= 0xF000 (stale — the counter is not
// decremented, but roc-1 is returned for that one packet only).
type RolloverState struct {
	roc     uint32
	lastSeq uint16
	hasSeen bool
}

// Update advances r's high-water mark for the observed 16-bit seq and
// returns the rollover counter value that should be used to extend *this*
// packet's sequence number for cryptographic purposes. The stored
// counter itself is only ever incremented, never decremented.
func (r *RolloverState) Update(seq uint16) uint32 {
	if !r.hasSeen {
		r.hasSeen = true
		r.lastSeq = seq
		r.roc = 0
		return r.roc
	}

	last := r.lastSeq
	switch {
	case last >= 0xF000 && seq <= 0x1000:
		// Forward wrap: the stream has genuinely rolled over.
		r.roc++
		r.lastSeq = seq
		return r.roc
	case last <= 0x1000 && seq >= 0xF000:
		// A packet from just before the wrap arrived late. Don't
		// decrement the stored counter; just use roc-1 for this packet.
		return r.roc - 1
	default:
		if seqGreater(seq, last) {
			r.lastSeq = seq
		}
		return r.roc
	}
}

// ExtendedSeq combines a rollover counter with a 16-bit sequence number
// into the 48-bit SRTP extended sequence number (returned here as uint64).
func ExtendedSeq(roc uint32, seq uint16) uint64 {
	return uint64(roc)<<16 | uint64(seq)
}

// seqGreater reports whether a is ahead of b in 16-bit circular sequence
// space, using the standard RTP serial-number-arithmetic comparison
// (RFC 1982): true when a-b, interpreted as a signed 16-bit delta, is
// positive.
func seqGreater(a, b uint16) bool {
	return int16(a-b) > 0
}
