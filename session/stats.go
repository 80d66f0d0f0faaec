package session

import (
	pionrtcp "github.com/pion/rtcp"

	srtc "github.com/kmansoft/srtc-go"
	"github.com/kmansoft/srtc-go/rtcp"
)

// ntpUint64 combines an NtpTime's seconds/fraction halves into the
// single 64-bit field github.com/pion/rtcp's SenderReport expects.
func ntpUint64(n srtc.NtpTime) uint64 {
	return uint64(n.Seconds)<<32 | uint64(n.Fraction)
}

// onSenderReportTick sends one SR per active track on the selected
// candidate and reschedules itself, per spec.md section 4.5's 1 s
// cadence. Grounded on original_source/peer_connection.cpp's periodic SR
// task and rtcp_packet_source.cpp's SR field population.
func (pc *PeerConnection) onSenderReportTick() {
	pc.mu.Lock()
	sel := pc.selected
	pc.mu.Unlock()

	if sel != nil {
		now := ntpUint64(srtc.NtpTimeFromTime(pc.clock.Now()))
		for _, t := range pc.tracksToRegister() {
			track, ok := t.(*srtc.Track)
			if !ok {
				continue
			}
			pz := track.Packetizer()
			if pz == nil {
				continue
			}
			sr := rtcp.BuildSenderReport(track.PrimarySSRC(), now, pz.Timestamp(), track.Stats().SentPackets(), track.Stats().SentBytes())
			cname := rtcp.BuildCNAME(track.PrimarySSRC(), pc.offer.Config.Cname)
			data, err := rtcp.Marshal([]pionrtcp.Packet{sr, cname})
			if err != nil {
				pc.logger.WithError(err).Warn("session: marshaling sender report failed")
				continue
			}
			if err := sel.SendRTCP(track.PrimarySSRC(), data); err != nil {
				pc.logger.WithError(err).Warn("session: sending sender report failed")
			}
		}
	}

	pc.senderReportH = pc.sched.Submit(senderReportPeriod, "stats.go", 0, pc.onSenderReportTick)
}

// onStatsTick publishes a PublishConnectionStats snapshot and reschedules
// itself, per spec.md section 4.5's 5 s cadence.
func (pc *PeerConnection) onStatsTick() {
	pc.mu.Lock()
	sel := pc.selected
	pc.mu.Unlock()

	stats := PublishConnectionStats{
		PacketsLostPercent:              -1,
		RttMs:                           -1,
		BandwidthActualKbitPerSecond:    -1,
		BandwidthSuggestedKbitPerSecond: -1,
	}

	for _, t := range pc.tracksToRegister() {
		track, ok := t.(*srtc.Track)
		if !ok {
			continue
		}
		stats.PacketCount += track.Stats().SentPackets()
		stats.ByteCount += track.Stats().SentBytes()
	}

	if sel != nil && pc.twcc.Enabled() {
		tw := pc.twcc.Stats()
		if tw.HasBandwidthEstimate {
			stats.BandwidthActualKbitPerSecond = tw.BandwidthActualKbps
			stats.BandwidthSuggestedKbitPerSecond = tw.BandwidthSuggestedKbps
		}
		stats.PacketsLostPercent = tw.PacketsLostPercent
	}

	pc.fireStats(stats)

	pc.statsH = pc.sched.Submit(connectionStatsPeriod, "stats.go", 0, pc.onStatsTick)
}
