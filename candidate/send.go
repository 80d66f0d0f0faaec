package candidate

import (
	"github.com/kmansoft/srtc-go/rtppacket"
	"github.com/kmansoft/srtc-go/twcc"
)

// TrackSink is the subset of *srtc.Track a Candidate needs to drive the
// outbound publish path and send-history bookkeeping of spec.md section
// 4.1, kept as a seam so tests can substitute a minimal fake track.
type TrackSink interface {
	PrimarySSRC() uint32
	PayloadType() uint8
	IsVideo() bool
	HasNack() bool
	RtxInfo() (ssrc uint32, pt uint8, ok bool)
	NextRtxSeq() uint16
	IncrementSentPackets(n uint32)
	IncrementSentBytes(n uint32)
}

// FrameToSend mirrors spec.md section 4.1's outbound per-frame input: a
// track, its already-built RTP packet list (the codec-specific
// packetizer's job, outside this package), and the layer's share of the
// simulcast track's total bandwidth, used to scale the pacing spread.
type FrameToSend struct {
	Track      TrackSink
	Packets    []*rtppacket.Packet
	LayerShare float64
}

// SendFrame implements spec.md section 4.1's outbound path: flush any
// older queued packets for this track, then either send the single
// packet immediately or spread the list across the TWCC-derived pacing
// interval.
func (c *Candidate) SendFrame(f FrameToSend) {
	if len(f.Packets) == 0 {
		return
	}
	ssrc := f.Track.PrimarySSRC()
	c.pacer.Flush(ssrc)

	if len(f.Packets) <= 1 {
		c.pacer.SendNow(ssrc, f.Track.IsVideo(), f.Packets[0])
		return
	}

	total := 0
	for _, p := range f.Packets {
		total += len(p.Payload)
	}
	layerScale := f.LayerShare
	if layerScale <= 0 {
		layerScale = 1
	}
	spread := defaultPacingSpreadMillis
	if c.twcc != nil {
		spread = c.twcc.GetPacingSpreadMillis(total, layerScale, defaultPacingSpreadMillis)
	}
	c.pacer.SendPaced(ssrc, f.Track.IsVideo(), f.Packets, spread)
}

// defaultPacingSpreadMillis is used when TWCC is disabled or has no
// bandwidth estimate yet, per spec.md section 4.3.
const defaultPacingSpreadMillis = 15.0

// sendImpl is the pacer.SendFunc this candidate supplies to its Pacer: it
// runs the full per-packet send pipeline of spec.md section 4.4 in order
// — TWCC sequence stamping, send-history save, SRTP protection, stats,
// TWCC accounting, then the raw UDP write.
func (c *Candidate) sendImpl(p *rtppacket.Packet) {
	media := twcc.MediaAudio
	track, hasTrack := c.trackFor(p.SSRC)
	if hasTrack && track.IsVideo() {
		media = twcc.MediaVideo
	}

	var twccSeq uint16
	twccActive := c.twcc != nil && c.twcc.Enabled()
	if twccActive {
		twccSeq = c.twcc.OnBeforeGeneratingRtpPacket()
		p.SetTWCCSeq(c.twccExtID, twccSeq)
	}

	if hasTrack && track.HasNack() {
		c.history.Save(p)
	}

	header, payload, err := p.HeaderAndPayload()
	if err != nil {
		c.logger.WithError(err).Warn("candidate: generating rtp packet failed")
		return
	}
	generatedSize := len(header) + len(payload)

	ciphertext, err := c.srtp.ProtectRTP(p.SSRC, p.PayloadType, p.SequenceNumber, header, payload)
	if err != nil {
		c.logger.WithError(err).Warn("candidate: srtp protect failed")
		return
	}
	encryptedSize := len(header) + len(ciphertext)

	if track, ok := c.trackFor(p.SSRC); ok {
		track.IncrementSentPackets(1)
		track.IncrementSentBytes(uint32(encryptedSize))
	}

	if twccActive {
		c.twcc.OnBeforeSendingRtpPacket(twccSeq, media, int(p.PaddingSize), len(p.Payload), generatedSize, encryptedSize)
	}

	full := make([]byte, 0, len(header)+len(ciphertext))
	full = append(full, header...)
	full = append(full, ciphertext...)
	c.sendUDP(full)
}

// trackFor looks up the outbound track whose primary SSRC or RTX SSRC is
// ssrc. It is populated by RegisterTrack, called once per track when the
// owning session wires a Candidate up.
func (c *Candidate) trackFor(ssrc uint32) (TrackSink, bool) {
	t, ok := c.tracks[ssrc]
	return t, ok
}

// RegisterTrack makes t's packets recognizable to sendImpl/resendForNack
// by their primary SSRC, and by its RFC 4588 RTX SSRC if it has one, so a
// rebuilt retransmission (which carries the RTX SSRC, not the primary
// one) is still accounted against the owning track's sent-packet/byte
// counters instead of silently missing trackFor. The owning session
// calls this once per track after constructing the Candidate.
func (c *Candidate) RegisterTrack(t TrackSink) {
	if c.tracks == nil {
		c.tracks = make(map[uint32]TrackSink)
	}
	c.tracks[t.PrimarySSRC()] = t
	if rtxSSRC, _, ok := t.RtxInfo(); ok {
		c.tracks[rtxSSRC] = t
	}
}

// SetTWCCExtensionID tells sendImpl which negotiated header-extension id
// to stamp the TWCC sequence number into, per spec.md section 6's
// one-byte extension form (this id is always well under 15).
func (c *Candidate) SetTWCCExtensionID(id uint8) {
	c.twccExtID = id
}

// resendForNack implements spec.md section 4.1's NACK handling: look the
// sequence up in send history, regenerate as RTX (or plain resend) and
// re-send. A miss (nothing in history) is logged and skipped, treating
// the packet as permanently lost, per spec.md section 7's error policy.
func (c *Candidate) resendForNack(ssrc uint32, seq uint16) {
	if c.twcc != nil && c.twcc.Enabled() {
		c.twcc.OnPacketWasNacked(seq)
	}

	track, ok := c.trackFor(ssrc)
	if !ok {
		return
	}

	var rtxSSRC uint32
	var rtxPT uint8
	var rtxSeq uint16
	if s, pt, ok := track.RtxInfo(); ok {
		rtxSSRC, rtxPT = s, pt
		rtxSeq = track.NextRtxSeq()
	}

	pkt, ok := c.history.RebuildForResend(ssrc, seq, rtxSSRC, rtxPT, rtxSeq)
	if !ok {
		c.logger.WithField("seq", seq).Debug("candidate: nack miss, packet lost")
		return
	}
	c.sendImpl(pkt)
}

// SendRTCP protects and sends one compound RTCP packet (SR, RR, PLI,
// SDES) from localSSRC, per spec.md section 4.1's "Outbound RTCP
// control". The per-SSRC SRTCP index is srtp.Connection's own
// ProtectRTCP's concern, not this package's.
func (c *Candidate) SendRTCP(localSSRC uint32, data []byte) error {
	if len(data) < 8 {
		return nil
	}
	header := data[:8]
	ciphertext, err := c.srtp.ProtectRTCP(localSSRC, header, data[8:])
	if err != nil {
		return err
	}
	full := make([]byte, 0, len(header)+len(ciphertext))
	full = append(full, header...)
	full = append(full, ciphertext...)
	c.sendUDP(full)
	return nil
}
