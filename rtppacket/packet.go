// Package rtppacket assembles and parses individual RTP packets: header,
// CSRC, header extensions, payload and padding, plus the RFC 4588 RTX
// wrapping used for retransmission. It leaves rollover tracking to package
// srtp (the data model of spec.md section 3 ties rollover state to the
// SRTP channel, not to the packet itself) and leaves SRTP
// protect/unprotect to the caller, which splits a marshaled packet at the
// header boundary before handing header+payload to srtp.Connection.
//
// Wire marshal/unmarshal of the RTP header itself is delegated to
// github.com/pion/rtp, the same library the teacher uses in
// av/rtp/packet.go, rather than hand-rolling the RFC 3550 header layout.
package rtppacket

import (
	"encoding/binary"

	"github.com/pion/rtp"

	"github.com/kmansoft/srtc-go/errs"
)

// Extension is one RTP header extension element, identified by its
// negotiated one-byte or two-byte extension id (spec.md's Extension Map).
type Extension struct {
	ID      uint8
	Payload []byte
}

// Params describes one outgoing RTP packet prior to marshaling, matching
// the "RTP Packet" data model of spec.md section 3.
type Params struct {
	SSRC           uint32
	PayloadType    uint8
	CSRC           []uint32
	SequenceNumber uint16
	Timestamp      uint32
	Marker         bool
	Extensions     []Extension
	Payload        []byte
	PaddingSize    uint8
}

// Packet is a ready-to-marshal outgoing RTP packet.
type Packet struct {
	Params
}

// New wraps p as a Packet.
func New(p Params) *Packet {
	return &Packet{Params: p}
}

// HeaderAndPayload builds the wire-format RTP header (including CSRC and
// header extensions) and the payload-plus-padding bytes separately. SRTP
// protection authenticates the header as additional data and encrypts
// only the payload, so callers need the two halves kept apart rather than
// a single marshaled blob.
func (p *Packet) HeaderAndPayload() (header, payload []byte, err error) {
	hdr := rtp.Header{
		Version:        2,
		Padding:        p.PaddingSize > 0,
		Marker:         p.Marker,
		PayloadType:    p.PayloadType,
		SequenceNumber: p.SequenceNumber,
		Timestamp:      p.Timestamp,
		SSRC:           p.SSRC,
		CSRC:           p.CSRC,
	}
	for _, ext := range p.Extensions {
		if ext.ID == 0 {
			continue
		}
		if err := hdr.SetExtension(ext.ID, ext.Payload); err != nil {
			return nil, nil, errs.Wrap(errs.InvalidData, "setting rtp header extension", err)
		}
	}

	headerBytes, err := hdr.Marshal()
	if err != nil {
		return nil, nil, errs.Wrap(errs.InvalidData, "marshaling rtp header", err)
	}

	body := p.Payload
	if p.PaddingSize > 0 {
		padded := make([]byte, len(body)+int(p.PaddingSize))
		copy(padded, body)
		padded[len(padded)-1] = p.PaddingSize
		body = padded
	}

	return headerBytes, body, nil
}

// SetTWCCSeq writes (or replaces) the transport-wide-cc header extension
// at extID with seq as a big-endian uint16, per spec.md section 4.3's
// "Outgoing stamping": the packetizer writes a placeholder value during
// size measurement and the pacer's sendImpl overwrites it with the
// actual allocated TWCC sequence right before protection.
func (p *Packet) SetTWCCSeq(extID uint8, seq uint16) {
	if extID == 0 {
		return
	}
	payload := []byte{byte(seq >> 8), byte(seq)}
	for i := range p.Extensions {
		if p.Extensions[i].ID == extID {
			p.Extensions[i].Payload = payload
			return
		}
	}
	p.Extensions = append(p.Extensions, Extension{ID: extID, Payload: payload})
}

// Marshal returns the complete unencrypted wire bytes: header immediately
// followed by payload and padding. Used only for plaintext paths (e.g.
// loopback tests); the send path keeps header and payload separate so
// they can be run through srtp.Connection.ProtectRTP.
func (p *Packet) Marshal() ([]byte, error) {
	header, payload, err := p.HeaderAndPayload()
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(header)+len(payload))
	out = append(out, header...)
	out = append(out, payload...)
	return out, nil
}

// Parse decodes a plaintext RTP packet (already SRTP-unprotected) into a
// Packet plus the extension ids/values the sender wrote.
func Parse(data []byte) (*Packet, error) {
	var pkt rtp.Packet
	if err := pkt.Unmarshal(data); err != nil {
		return nil, errs.Wrap(errs.InvalidData, "parsing rtp packet", err)
	}

	var extensions []Extension
	for _, id := range pkt.Header.GetExtensionIDs() {
		extensions = append(extensions, Extension{ID: id, Payload: pkt.Header.GetExtension(id)})
	}

	// pion/rtp already strips the padding bytes out of Payload and reports
	// their count in PaddingSize, so there's nothing left to decode here.
	return &Packet{Params: Params{
		SSRC:           pkt.SSRC,
		PayloadType:    pkt.PayloadType,
		CSRC:           pkt.CSRC,
		SequenceNumber: pkt.SequenceNumber,
		Timestamp:      pkt.Timestamp,
		Marker:         pkt.Marker,
		Extensions:     extensions,
		Payload:        pkt.Payload,
		PaddingSize:    pkt.PaddingSize,
	}}, nil
}

// BuildRTX wraps p as an RFC 4588 retransmission packet: a new RTP packet
// on rtxSSRC/rtxPT/rtxSeq whose payload is p's original 16-bit sequence
// number (OSN) followed by p's original payload, with everything else
// (timestamp, marker, CSRC, extensions, padding) carried over unchanged —
// per DESIGN.md's Open Question decision, a retransmitted packet's VLA
// extension is copied as-is, not recomputed.
func (p *Packet) BuildRTX(rtxSSRC uint32, rtxPT uint8, rtxSeq uint16) *Packet {
	wrapped := make([]byte, 2+len(p.Payload))
	binary.BigEndian.PutUint16(wrapped, p.SequenceNumber)
	copy(wrapped[2:], p.Payload)

	return &Packet{Params: Params{
		SSRC:           rtxSSRC,
		PayloadType:    rtxPT,
		CSRC:           p.CSRC,
		SequenceNumber: rtxSeq,
		Timestamp:      p.Timestamp,
		Marker:         p.Marker,
		Extensions:     p.Extensions,
		Payload:        wrapped,
		PaddingSize:    p.PaddingSize,
	}}
}

// UnwrapRTX extracts the original sequence number and payload from an
// RFC 4588 RTX packet's payload.
func UnwrapRTX(rtxPayload []byte) (originalSeq uint16, originalPayload []byte, err error) {
	if len(rtxPayload) < 2 {
		return 0, nil, errs.New(errs.InvalidData, "rtx payload shorter than osn field")
	}
	return binary.BigEndian.Uint16(rtxPayload[:2]), rtxPayload[2:], nil
}
