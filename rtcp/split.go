package rtcp

import "github.com/kmansoft/srtc-go/errs"

// RawPacket is one still-unparsed RTCP packet split out of a compound
// buffer: its standard 4-byte header fields plus the full packet bytes
// (header included), so a caller can route by (PT, FMT) before deciding
// which parser to hand it to.
type RawPacket struct {
	// FMT holds the header's low 5 bits, which RFC 3550 defines as a
	// packet-count for SR/RR and RFC 4585 redefines as a feedback message
	// type for RTPFB/PSFB (205/206) packets.
	FMT uint8
	PT  uint8
	Raw []byte
}

// SplitCompound walks a compound RTCP buffer's standard RFC 3550 framing
// (32-bit-word length per packet) without interpreting any packet's body,
// so the transport-wide-cc feedback packet (PT=205, FMT=15) can be routed
// to this package's hand-rolled twcc parser while every other packet type
// still goes through ParseCompound's pion/rtcp delegation.
func SplitCompound(data []byte) ([]RawPacket, error) {
	var out []RawPacket
	offset := 0
	for offset < len(data) {
		if len(data)-offset < 4 {
			return nil, errs.New(errs.InvalidData, "rtcp: compound packet truncated before header")
		}
		fmtOrRC := data[offset] & 0x1f
		pt := data[offset+1]
		length := int(data[offset+2])<<8 | int(data[offset+3])
		size := (length + 1) * 4
		if offset+size > len(data) {
			return nil, errs.New(errs.InvalidData, "rtcp: compound packet length exceeds buffer")
		}
		out = append(out, RawPacket{FMT: fmtOrRC, PT: pt, Raw: data[offset : offset+size]})
		offset += size
	}
	return out, nil
}

// IsTWCCFeedback reports whether a RawPacket is a transport-wide-cc
// feedback packet (RTPFB, PT=205, FMT=15).
func (p RawPacket) IsTWCCFeedback() bool {
	return p.PT == 205 && p.FMT == 15
}

// IsNack reports whether a RawPacket is a generic NACK (RTPFB, PT=205,
// FMT=1).
func (p RawPacket) IsNack() bool {
	return p.PT == 205 && p.FMT == 1
}

// Body returns the packet bytes after the 4-byte RTCP header, i.e. what
// twcc.ParseFeedback expects as input: it starts with the 8-byte
// sender/media SSRC pair every RTPFB/PSFB packet carries, which
// ParseFeedback reads itself.
func (p RawPacket) Body() []byte {
	return p.Raw[4:]
}
