package rtppacket

import "sync"

// Packetizer allocates sequence numbers and RTP timestamps for one SSRC,
// generalizing the teacher's AudioPacketizer counter bookkeeping
// (av/rtp/packet.go: sequenceNumber/timestamp fields, mutex-guarded) to a
// payload-agnostic packetizer — actual per-frame media framing (H.264
// NALs, Opus frames) is this package's caller's job.
type Packetizer struct {
	mu sync.Mutex

	ssrc        uint32
	payloadType uint8
	clockRate   uint32

	seq       uint16
	timestamp uint32
}

// NewPacketizer creates a Packetizer for ssrc/payloadType, with sequence
// number and timestamp starting from the given values (spec.md requires
// both to start from a random or caller-chosen value per track, not zero,
// to avoid leaking stream start time/order across tracks).
func NewPacketizer(ssrc uint32, payloadType uint8, clockRate, startSeq, startTimestamp uint32) *Packetizer {
	return &Packetizer{
		ssrc:        ssrc,
		payloadType: payloadType,
		clockRate:   clockRate,
		seq:         uint16(startSeq),
		timestamp:   startTimestamp,
	}
}

// ClockRate returns the packetizer's media clock rate in Hz.
func (pz *Packetizer) ClockRate() uint32 {
	return pz.clockRate
}

// SSRC returns the packetizer's SSRC.
func (pz *Packetizer) SSRC() uint32 {
	return pz.ssrc
}

// Timestamp returns the packetizer's current RTP timestamp, used to
// build an outgoing Sender Report's RTP-timestamp field between frames.
func (pz *Packetizer) Timestamp() uint32 {
	pz.mu.Lock()
	defer pz.mu.Unlock()
	return pz.timestamp
}

// AdvanceTimestamp adds samples (in clockRate units) to the running RTP
// timestamp and returns the new value, to be used for the next Build call.
func (pz *Packetizer) AdvanceTimestamp(samples uint32) uint32 {
	pz.mu.Lock()
	defer pz.mu.Unlock()
	pz.timestamp += samples
	return pz.timestamp
}

// Build assigns the next sequence number and the packetizer's current
// timestamp to a new outgoing packet.
func (pz *Packetizer) Build(payload []byte, marker bool, extensions []Extension, paddingSize uint8) *Packet {
	pz.mu.Lock()
	seq := pz.seq
	pz.seq++
	ts := pz.timestamp
	pz.mu.Unlock()

	return New(Params{
		SSRC:           pz.ssrc,
		PayloadType:    pz.payloadType,
		SequenceNumber: seq,
		Timestamp:      ts,
		Marker:         marker,
		Extensions:     extensions,
		Payload:        payload,
		PaddingSize:    paddingSize,
	})
}
