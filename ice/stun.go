// Package ice implements the STUN binding request/response codec and the
// minimal ICE agent this client needs: host candidates only, no trickle,
// no TURN. Message construction/verification is hand-rolled (the same way
// original_source/ice_agent.cpp and stunmessage.cpp build it, and the way
// opd-ai-toxcore/transport/stun_client.go builds STUN parsing over plain
// encoding/binary) rather than delegated to a STUN library, since spec.md
// lists this as one of the core deliverables to build from scratch.
package ice

import (
	"encoding/binary"
	"hash/crc32"
	"net"

	"github.com/kmansoft/srtc-go/errs"
	"github.com/kmansoft/srtc-go/internal/rtpcrypto"
)

// MagicCookie is the RFC 5389 fixed cookie placed at byte offset 4 of
// every STUN message.
const MagicCookie uint32 = 0x2112A442

// fingerprintXOR is XORed into the FINGERPRINT attribute's CRC-32 value
// per RFC 5389 section 15.5.
const fingerprintXOR uint32 = 0x5354554E

// MessageType identifies a STUN message's class and method.
type MessageType uint16

const (
	BindingRequest         MessageType = 0x0001
	BindingSuccessResponse MessageType = 0x0101
	BindingErrorResponse   MessageType = 0x0111
)

// Attribute type values used by this client's STUN subset (RFC 5389).
const (
	attrMappedAddress    uint16 = 0x0001
	attrUsername         uint16 = 0x0006
	attrMessageIntegrity uint16 = 0x0008
	attrErrorCode        uint16 = 0x0009
	attrXorMappedAddress uint16 = 0x0020
	attrSoftware         uint16 = 0x8022
	attrFingerprint      uint16 = 0x8028
	// ICE-specific attributes (RFC 5245 section 19.1).
	attrPriority       uint16 = 0x0024
	attrUseCandidate   uint16 = 0x0025
	attrIceControlled  uint16 = 0x8029
	attrIceControlling uint16 = 0x802A
)

const software = "srtc"

// headerSize is the fixed 20-byte STUN message header.
const headerSize = 20

// TransactionID is a STUN transaction's random 96-bit identifier.
type TransactionID [12]byte

// rawAttribute is a decoded but not yet interpreted TLV. HeaderOffset is
// the attribute's TLV header position within the owning Message's Raw
// bytes, used to recompute MESSAGE-INTEGRITY/FINGERPRINT over the exact
// byte range that preceded each attribute on the wire.
type rawAttribute struct {
	Type         uint16
	Value        []byte
	HeaderOffset int
}

// Message is a parsed STUN message plus its raw encoded bytes (needed to
// recompute MESSAGE-INTEGRITY/FINGERPRINT over the original byte range).
type Message struct {
	Type          MessageType
	TransactionID TransactionID
	Attributes    []rawAttribute
	Raw           []byte
}

// IsStunPacket reports whether data looks like a STUN message: RFC 5389
// section 6 says the first two bits of a STUN message are always 0, and
// offset 4 carries the magic cookie.
func IsStunPacket(data []byte) bool {
	if len(data) < headerSize {
		return false
	}
	if data[0]&0xC0 != 0 {
		return false
	}
	return binary.BigEndian.Uint32(data[4:8]) == MagicCookie
}

// ParseMessage decodes a raw STUN message, validating the header and
// attribute TLV framing but not any attribute's semantic content.
func ParseMessage(data []byte) (*Message, error) {
	if len(data) < headerSize {
		return nil, errs.New(errs.InvalidData, "stun message shorter than header")
	}
	if len(data) > 1500 {
		return nil, errs.New(errs.InvalidData, "stun message exceeds 1500 bytes")
	}
	msgType := MessageType(binary.BigEndian.Uint16(data[0:2]))
	length := binary.BigEndian.Uint16(data[2:4])
	cookie := binary.BigEndian.Uint32(data[4:8])
	if cookie != MagicCookie {
		return nil, errs.New(errs.InvalidData, "stun message has wrong magic cookie")
	}
	if int(length)+headerSize > len(data) {
		return nil, errs.New(errs.InvalidData, "stun message truncated")
	}

	var tid TransactionID
	copy(tid[:], data[8:20])

	body := data[headerSize : headerSize+int(length)]
	attrs, err := parseAttributes(body)
	if err != nil {
		return nil, err
	}

	return &Message{
		Type:          msgType,
		TransactionID: tid,
		Attributes:    attrs,
		Raw:           data[:headerSize+int(length)],
	}, nil
}

func parseAttributes(body []byte) ([]rawAttribute, error) {
	var attrs []rawAttribute
	offset := 0
	for offset+4 <= len(body) {
		headerOffset := offset
		attrType := binary.BigEndian.Uint16(body[offset : offset+2])
		attrLen := int(binary.BigEndian.Uint16(body[offset+2 : offset+4]))
		offset += 4
		if offset+attrLen > len(body) {
			return nil, errs.New(errs.InvalidData, "stun attribute truncated")
		}
		attrs = append(attrs, rawAttribute{
			Type:         attrType,
			Value:        body[offset : offset+attrLen],
			HeaderOffset: headerSize + headerOffset,
		})
		offset += attrLen
		offset += (4 - attrLen%4) % 4 // skip padding to the next 4-byte boundary
	}
	return attrs, nil
}

func (m *Message) find(attrType uint16) ([]byte, bool) {
	for _, a := range m.Attributes {
		if a.Type == attrType {
			return a.Value, true
		}
	}
	return nil, false
}

func (m *Message) findRaw(attrType uint16) (rawAttribute, bool) {
	for _, a := range m.Attributes {
		if a.Type == attrType {
			return a, true
		}
	}
	return rawAttribute{}, false
}

// Username returns the decoded USERNAME attribute, if present.
func (m *Message) Username() (string, bool) {
	v, ok := m.find(attrUsername)
	if !ok {
		return "", false
	}
	return string(v), true
}

// errorCode returns the numeric STUN error code from an ERROR-CODE
// attribute, if present (class*100 + number, per RFC 5389 section 15.6).
func (m *Message) errorCode() (int, bool) {
	v, ok := m.find(attrErrorCode)
	if !ok || len(v) < 4 {
		return 0, false
	}
	class := int(v[2] & 0x07)
	number := int(v[3])
	return class*100 + number, true
}

func appendAttr(body []byte, attrType uint16, value []byte) []byte {
	var header [4]byte
	binary.BigEndian.PutUint16(header[0:2], attrType)
	binary.BigEndian.PutUint16(header[2:4], uint16(len(value)))
	body = append(body, header[:]...)
	body = append(body, value...)
	if pad := (4 - len(value)%4) % 4; pad > 0 {
		body = append(body, make([]byte, pad)...)
	}
	return body
}

func encodeHeader(msgType MessageType, bodyLen int, tid TransactionID) []byte {
	buf := make([]byte, headerSize)
	binary.BigEndian.PutUint16(buf[0:2], uint16(msgType))
	binary.BigEndian.PutUint16(buf[2:4], uint16(bodyLen))
	binary.BigEndian.PutUint32(buf[4:8], MagicCookie)
	copy(buf[8:20], tid[:])
	return buf
}

// finishMessage appends MESSAGE-INTEGRITY and FINGERPRINT to an
// in-progress message body and returns the complete wire bytes, patching
// the header's length field at each stage per RFC 5389 section 15.4/15.5:
// the length used for the MESSAGE-INTEGRITY HMAC must already account for
// the MESSAGE-INTEGRITY attribute's own bytes, and the length used for the
// FINGERPRINT CRC must already account for FINGERPRINT's own bytes.
func finishMessage(msgType MessageType, tid TransactionID, body []byte, password string) []byte {
	const miAttrSize = 4 + 20
	header := encodeHeader(msgType, len(body)+miAttrSize, tid)
	mi := rtpcrypto.HMACSHA1([]byte(password), header, body)
	body = appendAttr(body, attrMessageIntegrity, mi)

	const fpAttrSize = 4 + 4
	header = encodeHeader(msgType, len(body)+fpAttrSize, tid)
	checksum := crc32.ChecksumIEEE(append(append([]byte{}, header...), body...)) ^ fingerprintXOR
	var fpBytes [4]byte
	binary.BigEndian.PutUint32(fpBytes[:], checksum)
	body = appendAttr(body, attrFingerprint, fpBytes[:])

	return append(header, body...)
}

// verifyIntegrityAndFingerprint checks a parsed message's FINGERPRINT and
// MESSAGE-INTEGRITY attributes against password, matching
// original_source/ice_agent.cpp's verifyRequestMessage/verifyResponseMessage.
func verifyIntegrityAndFingerprint(m *Message, password string) bool {
	fp, ok := m.findRaw(attrFingerprint)
	if !ok || len(fp.Value) != 4 {
		return false
	}
	gotFP := binary.BigEndian.Uint32(fp.Value)
	// FINGERPRINT's own length field must reflect the message as it stood
	// with FINGERPRINT included, so recompute the header with that length
	// before hashing the prefix up to (not including) FINGERPRINT.
	wantFP := crc32.ChecksumIEEE(prefixExcluding(m.Raw, fp.HeaderOffset, 8)) ^ fingerprintXOR
	if gotFP != wantFP {
		return false
	}

	mi, ok := m.findRaw(attrMessageIntegrity)
	if !ok || len(mi.Value) != 20 {
		return false
	}
	wantMI := rtpcrypto.HMACSHA1([]byte(password), prefixExcluding(m.Raw, mi.HeaderOffset, 24))
	return rtpcrypto.ConstantTimeEqual(mi.Value, wantMI)
}

// prefixExcluding returns raw[:headerOffset] (everything before the named
// attribute) with the STUN header's length field rewritten to the size
// that attribute's wire form (ownSize bytes) would bring the message to —
// matching what the sender hashed before appending it, per RFC 5389
// section 15.4/15.5.
func prefixExcluding(raw []byte, headerOffset, ownSize int) []byte {
	out := append([]byte{}, raw[:headerOffset]...)
	binary.BigEndian.PutUint16(out[2:4], uint16(headerOffset-headerSize+ownSize))
	return out
}

// BuildBindingRequest constructs a STUN binding request. priority follows
// the RFC 5245 section 4.1.2.1 formula; useCandidate marks the
// nomination round.
func BuildBindingRequest(tid TransactionID, username, password string, priority uint32, iceControllingTie uint64, useCandidate bool) []byte {
	var body []byte
	body = appendAttr(body, attrSoftware, []byte(software))
	var tieBytes [8]byte
	binary.BigEndian.PutUint64(tieBytes[:], iceControllingTie)
	body = appendAttr(body, attrIceControlling, tieBytes[:])
	if useCandidate {
		body = appendAttr(body, attrUseCandidate, nil)
	}
	var prioBytes [4]byte
	binary.BigEndian.PutUint32(prioBytes[:], priority)
	body = appendAttr(body, attrPriority, prioBytes[:])
	body = appendAttr(body, attrUsername, []byte(username))

	return finishMessage(BindingRequest, tid, body, password)
}

// BuildBindingSuccessResponse constructs a binding success response
// carrying XOR-MAPPED-ADDRESS for the peer's observed source address.
func BuildBindingSuccessResponse(tid TransactionID, password string, mapped *net.UDPAddr) []byte {
	var body []byte
	body = appendAttr(body, attrSoftware, []byte(software))
	body = appendAttr(body, attrXorMappedAddress, encodeXorMappedAddress(tid, mapped))
	return finishMessage(BindingSuccessResponse, tid, body, password)
}

// VerifyRequestMessage parses data as a STUN binding request and checks
// its USERNAME and MESSAGE-INTEGRITY/FINGERPRINT against the expected
// credentials.
func VerifyRequestMessage(data []byte, username, password string) (*Message, bool) {
	m, err := ParseMessage(data)
	if err != nil || m.Type != BindingRequest {
		return nil, false
	}
	got, ok := m.Username()
	if !ok || got != username {
		return nil, false
	}
	if !verifyIntegrityAndFingerprint(m, password) {
		return nil, false
	}
	return m, true
}

// VerifyResponseMessage parses data as a STUN binding response and checks
// MESSAGE-INTEGRITY/FINGERPRINT. It reports the message, whether it
// verified, and any STUN error code present (0 if none).
func VerifyResponseMessage(data []byte, password string) (m *Message, ok bool, errorCode int) {
	m, err := ParseMessage(data)
	if err != nil || m.Type == BindingRequest {
		return nil, false, 0
	}
	if code, present := m.errorCode(); present {
		errorCode = code
	}
	if m.Type == BindingErrorResponse {
		return m, false, errorCode
	}
	if !verifyIntegrityAndFingerprint(m, password) {
		return nil, false, errorCode
	}
	return m, true, errorCode
}

// XorMappedAddress decodes the XOR-MAPPED-ADDRESS attribute, if present.
func (m *Message) XorMappedAddress() (*net.UDPAddr, bool) {
	v, ok := m.find(attrXorMappedAddress)
	if !ok {
		return nil, false
	}
	return decodeXorMappedAddress(m.TransactionID, v)
}

func encodeXorMappedAddress(tid TransactionID, addr *net.UDPAddr) []byte {
	ip4 := addr.IP.To4()
	if ip4 != nil {
		out := make([]byte, 8)
		out[1] = 0x01 // family IPv4
		binary.BigEndian.PutUint16(out[2:4], uint16(addr.Port)^uint16(MagicCookie>>16))
		var cookieBytes [4]byte
		binary.BigEndian.PutUint32(cookieBytes[:], MagicCookie)
		for i := 0; i < 4; i++ {
			out[4+i] = ip4[i] ^ cookieBytes[i]
		}
		return out
	}

	ip6 := addr.IP.To16()
	out := make([]byte, 20)
	out[1] = 0x02 // family IPv6
	var cookieBytes [4]byte
	binary.BigEndian.PutUint32(cookieBytes[:], MagicCookie)
	binary.BigEndian.PutUint16(out[2:4], uint16(addr.Port)^uint16(MagicCookie>>16))
	xorKey := append(append([]byte{}, cookieBytes[:]...), tid[:]...)
	for i := 0; i < 16; i++ {
		out[4+i] = ip6[i] ^ xorKey[i]
	}
	return out
}

func decodeXorMappedAddress(tid TransactionID, v []byte) (*net.UDPAddr, bool) {
	if len(v) < 8 {
		return nil, false
	}
	family := v[1]
	port := binary.BigEndian.Uint16(v[2:4]) ^ uint16(MagicCookie>>16)

	var cookieBytes [4]byte
	binary.BigEndian.PutUint32(cookieBytes[:], MagicCookie)

	switch family {
	case 0x01:
		if len(v) < 8 {
			return nil, false
		}
		ip := make([]byte, 4)
		for i := 0; i < 4; i++ {
			ip[i] = v[4+i] ^ cookieBytes[i]
		}
		return &net.UDPAddr{IP: ip, Port: int(port)}, true
	case 0x02:
		if len(v) < 20 {
			return nil, false
		}
		xorKey := append(append([]byte{}, cookieBytes[:]...), tid[:]...)
		ip := make([]byte, 16)
		for i := 0; i < 16; i++ {
			ip[i] = v[4+i] ^ xorKey[i]
		}
		return &net.UDPAddr{IP: ip, Port: int(port)}, true
	default:
		return nil, false
	}
}
