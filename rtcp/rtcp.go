// Package rtcp builds and parses the RTCP packet types this client needs
// — sender/receiver reports, NACK, PLI, TWCC feedback and a minimal CNAME
// SDES — as thin helpers over github.com/pion/rtcp, the same kind of
// library delegation the teacher uses for RTP in av/rtp/packet.go. Field
// semantics are grounded on original_source/rtcp_packet.cpp and
// rtcp_packet_source.cpp, which is where the original core decides which
// fields of each packet type it actually reads or writes.
package rtcp

import (
	"github.com/pion/rtcp"

	"github.com/kmansoft/srtc-go/errs"
)

// ParseCompound decodes a compound RTCP packet (already SRTCP-unprotected)
// into its constituent packets.
func ParseCompound(data []byte) ([]rtcp.Packet, error) {
	pkts, err := rtcp.Unmarshal(data)
	if err != nil {
		return nil, errs.Wrap(errs.InvalidData, "parsing rtcp compound packet", err)
	}
	return pkts, nil
}

// Marshal encodes a set of RTCP packets into one compound wire packet.
func Marshal(pkts []rtcp.Packet) ([]byte, error) {
	data, err := rtcp.Marshal(pkts)
	if err != nil {
		return nil, errs.Wrap(errs.InvalidData, "marshaling rtcp compound packet", err)
	}
	return data, nil
}

// BuildSenderReport constructs an SR for the local ssrc, grounded on
// rtcp_packet_source.cpp's SR builder (NTP/RTP timestamp pair, cumulative
// packet/octet counts; no reception report blocks — this is a publish-only
// client, so there is nothing of the peer's stream to report on).
func BuildSenderReport(ssrc uint32, ntpTime uint64, rtpTime, packetCount, octetCount uint32) *rtcp.SenderReport {
	return &rtcp.SenderReport{
		SSRC:        ssrc,
		NTPTime:     ntpTime,
		RTPTime:     rtpTime,
		PacketCount: packetCount,
		OctetCount:  octetCount,
	}
}

// BuildReceiverReport constructs an RR for the local ssrc carrying a
// single reception report block for the remote media SSRC.
func BuildReceiverReport(ssrc uint32, report rtcp.ReceptionReport) *rtcp.ReceiverReport {
	return &rtcp.ReceiverReport{
		SSRC:    ssrc,
		Reports: []rtcp.ReceptionReport{report},
	}
}

// BuildCNAME constructs a minimal SDES packet carrying only a CNAME item
// for ssrc, per spec.md section 6's mention of SDES without further
// detail — the original core writes nothing else into SDES either.
func BuildCNAME(ssrc uint32, cname string) *rtcp.SourceDescription {
	return &rtcp.SourceDescription{
		Chunks: []rtcp.SourceDescriptionChunk{
			{
				Source: ssrc,
				Items: []rtcp.SourceDescriptionItem{
					{Type: rtcp.SDESCNAME, Text: cname},
				},
			},
		},
	}
}

// BuildPLI constructs a Picture Loss Indication requesting a new key
// frame from mediaSSRC.
func BuildPLI(senderSSRC, mediaSSRC uint32) *rtcp.PictureLossIndication {
	return &rtcp.PictureLossIndication{SenderSSRC: senderSSRC, MediaSSRC: mediaSSRC}
}

// BuildNack constructs a Transport Layer NACK for the given missing
// sequence numbers on mediaSSRC, grouping them into PID/BLP pairs.
func BuildNack(senderSSRC, mediaSSRC uint32, missing []uint16) *rtcp.TransportLayerNack {
	return &rtcp.TransportLayerNack{
		SenderSSRC: senderSSRC,
		MediaSSRC:  mediaSSRC,
		Nacks:      rtcp.NackPairsFromSequenceNumbers(missing),
	}
}

// MissingSequences expands a NACK's PID/BLP pairs back into the flat list
// of missing sequence numbers it encodes.
func MissingSequences(nack *rtcp.TransportLayerNack) []uint16 {
	var out []uint16
	for _, pair := range nack.Nacks {
		out = append(out, pair.PacketList()...)
	}
	return out
}

// AsTWCC type-asserts a parsed RTCP packet as a transport-wide congestion
// control feedback packet, reporting ok=false for anything else.
func AsTWCC(pkt rtcp.Packet) (*rtcp.TransportLayerCC, bool) {
	cc, ok := pkt.(*rtcp.TransportLayerCC)
	return cc, ok
}

// AsNack type-asserts a parsed RTCP packet as a transport layer NACK.
func AsNack(pkt rtcp.Packet) (*rtcp.TransportLayerNack, bool) {
	nack, ok := pkt.(*rtcp.TransportLayerNack)
	return nack, ok
}

// AsPLI type-asserts a parsed RTCP packet as a picture loss indication.
func AsPLI(pkt rtcp.Packet) (*rtcp.PictureLossIndication, bool) {
	pli, ok := pkt.(*rtcp.PictureLossIndication)
	return pli, ok
}

// AsReceiverReport type-asserts a parsed RTCP packet as a receiver report.
func AsReceiverReport(pkt rtcp.Packet) (*rtcp.ReceiverReport, bool) {
	rr, ok := pkt.(*rtcp.ReceiverReport)
	return rr, ok
}
