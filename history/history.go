// Package history keeps a bounded per-SSRC ring of recently sent RTP
// packets so a later incoming NACK can be resolved into a retransmission,
// and builds the RTX (or plain resend) packet for each missing sequence
// number. Grounded on original_source/send_history.cpp for the ring size
// and lookup-by-(SSRC,SEQ) shape, and on spec.md section 3's "Send History
// Entry" / section 4.1's NACK handling for the RTX-regeneration rule.
package history

import (
	"github.com/kmansoft/srtc-go/rtppacket"
)

// Size is the fixed per-SSRC ring capacity spec.md section 3 specifies.
const Size = 100

// entry is one ring slot. occupied distinguishes a never-written slot
// from one whose packet has sequence number 0.
type entry struct {
	occupied bool
	seq      uint16
	packet   *rtppacket.Packet
}

// Ring is the bounded send history for one SSRC.
type Ring struct {
	slots [Size]entry
}

// NewRing creates an empty ring.
func NewRing() *Ring {
	return &Ring{}
}

// Save mirrors a sent packet into the ring, keyed by its sequence number.
// Per spec.md section 3's invariant, callers only do this for tracks that
// have NACK enabled or an RTX payload type configured.
func (r *Ring) Save(p *rtppacket.Packet) {
	slot := &r.slots[p.SequenceNumber%Size]
	slot.occupied = true
	slot.seq = p.SequenceNumber
	slot.packet = clone(p)
}

// Lookup finds the packet previously saved under seq, if the ring slot it
// maps to still holds it (it may have been overwritten by a newer packet
// with the same seq%Size).
func (r *Ring) Lookup(seq uint16) (*rtppacket.Packet, bool) {
	slot := &r.slots[seq%Size]
	if !slot.occupied || slot.seq != seq {
		return nil, false
	}
	return slot.packet, true
}

// clone makes a deep-enough copy of p for storage: the byte slices are not
// expected to be mutated by the caller after Save, but Payload/Extensions
// are copied defensively since the pacer may reuse buffers.
func clone(p *rtppacket.Packet) *rtppacket.Packet {
	cp := *p
	cp.Payload = append([]byte(nil), p.Payload...)
	if p.CSRC != nil {
		cp.CSRC = append([]uint32(nil), p.CSRC...)
	}
	if p.Extensions != nil {
		cp.Extensions = append([]rtppacket.Extension(nil), p.Extensions...)
	}
	return rtppacket.New(cp.Params)
}

// Manager owns one Ring per SSRC a track sends on (its primary SSRC; RTX
// streams are not themselves NACK'd).
type Manager struct {
	rings map[uint32]*Ring
}

// NewManager creates an empty Manager.
func NewManager() *Manager {
	return &Manager{rings: make(map[uint32]*Ring)}
}

// Save records p into the ring for its SSRC, creating the ring on first
// use.
func (m *Manager) Save(p *rtppacket.Packet) {
	r, ok := m.rings[p.SSRC]
	if !ok {
		r = NewRing()
		m.rings[p.SSRC] = r
	}
	r.Save(p)
}

// Lookup finds a previously saved packet by (ssrc, seq).
func (m *Manager) Lookup(ssrc uint32, seq uint16) (*rtppacket.Packet, bool) {
	r, ok := m.rings[ssrc]
	if !ok {
		return nil, false
	}
	return r.Lookup(seq)
}

// RebuildForResend produces the packet to actually retransmit for a NACK'd
// (ssrc, seq): either an RFC 4588 RTX wrapper (if rtxSSRC/rtxPT/nextRTXSeq
// are provided, i.e. the track has RTX enabled) or the original packet
// unchanged. It reports ok=false if nothing was found in history, per
// spec.md section 4.1: "RTX regeneration failures are logged and skipped;
// the packet is treated as permanently lost."
func (m *Manager) RebuildForResend(ssrc uint32, seq uint16, rtxSSRC uint32, rtxPT uint8, nextRTXSeq uint16) (pkt *rtppacket.Packet, ok bool) {
	original, found := m.Lookup(ssrc, seq)
	if !found {
		return nil, false
	}
	if rtxPT == 0 {
		return original, true
	}
	return original.BuildRTX(rtxSSRC, rtxPT, nextRTXSeq), true
}
