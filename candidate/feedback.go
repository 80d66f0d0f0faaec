package candidate

import (
	"github.com/kmansoft/srtc-go/rtcp"
)

// handleIncomingRTCP unprotects an inbound SRTCP compound packet and
// routes each constituent per spec.md section 4.1: NACK drives RTX
// regeneration, TWCC feedback drives the publish pipeline, everything
// else (SR/RR/PLI/SDES) is handed to onOtherRTCP for the owning session
// to consume (RTT correlation, key-frame requests).
func (c *Candidate) handleIncomingRTCP(data []byte) {
	if len(data) < 8 {
		return
	}
	header := data[:8]
	ssrc := uint32FromBytes(header[4:8])
	plain, err := c.srtp.UnprotectRTCP(ssrc, header, data[8:])
	if err != nil {
		c.logger.WithError(err).Debug("candidate: rtcp unprotect failed")
		return
	}
	full := make([]byte, 0, len(header)+len(plain))
	full = append(full, header...)
	full = append(full, plain...)

	raws, err := rtcp.SplitCompound(full)
	if err != nil {
		c.logger.WithError(err).Debug("candidate: rtcp compound split failed")
		return
	}

	for _, raw := range raws {
		switch {
		case raw.IsTWCCFeedback():
			c.handleTWCCFeedback(raw)
		case raw.IsNack():
			c.handleNack(raw)
		default:
			c.deliverOtherRTCP(raw)
		}
	}
}

func (c *Candidate) handleTWCCFeedback(raw rtcp.RawPacket) {
	if c.twcc == nil || !c.twcc.Enabled() {
		return
	}
	result, err := c.twcc.OnReceivedRtcpPacket(raw.Body())
	if err != nil {
		c.logger.WithError(err).Debug("candidate: twcc feedback parse failed")
		return
	}
	if c.twcc.Enabled() {
		c.pacer.SetProbeRate(result.Stats.BandwidthActualKbps * 1000 / 8)
	}
}

// handleNack decodes one NACK packet's (pid, blp) pairs and calls
// resendForNack (send.go) once for each missing sequence number.
func (c *Candidate) handleNack(raw rtcp.RawPacket) {
	pkts, err := rtcp.ParseCompound(raw.Raw)
	if err != nil || len(pkts) == 0 {
		return
	}
	nack, ok := rtcp.AsNack(pkts[0])
	if !ok {
		return
	}
	for _, seq := range rtcp.MissingSequences(nack) {
		c.resendForNack(nack.MediaSSRC, seq)
	}
}

func (c *Candidate) deliverOtherRTCP(raw rtcp.RawPacket) {
	if c.OnOtherRTCP != nil {
		c.OnOtherRTCP(raw)
	}
}

func uint32FromBytes(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
