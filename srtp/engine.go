// Package srtp implements the SRTP protect/unprotect engine: per-channel
// rollover and replay state layered over internal/rtpcrypto's cipher
// primitives. It knows RTP/RTCP wire layout (header, ciphertext, tag,
// trailer placement) but not how to parse RTP header fields from a raw
// packet — that split is the caller's job (package rtppacket).
//
// Grounded on original_source/srtp_crypto.cpp's protect/unprotect family.
package srtp

import (
	"encoding/binary"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/kmansoft/srtc-go/errs"
	"github.com/kmansoft/srtc-go/internal/rtpcrypto"
)

// rtcpEBit marks an SRTCP trailer as carrying an encrypted payload.
const rtcpEBit uint32 = 0x80000000

// Connection holds one SRTP session's send and receive keys and all
// per-channel crypto state. A Connection is only ever touched from the
// single goroutine that owns the peer connection's network loop; it does
// not lock internally.
type Connection struct {
	profile rtpcrypto.Profile

	sendKeys *rtpcrypto.SessionKeys
	recvKeys *rtpcrypto.SessionKeys

	media   map[ChannelKey]*mediaChannelState
	control map[ChannelKey]*controlChannelState

	logger *logrus.Entry
}

// NewConnection derives send/receive session keys from the DTLS-exported
// master key material and returns a ready-to-use Connection.
func NewConnection(profile rtpcrypto.Profile, sendKey, sendSalt, recvKey, recvSalt []byte, logger *logrus.Entry) (*Connection, error) {
	if !profile.Valid() {
		return nil, errs.New(errs.InvalidData, fmt.Sprintf("unsupported srtp profile 0x%04x", uint16(profile)))
	}
	sendKeys, err := rtpcrypto.DeriveSessionKeys(profile, sendKey, sendSalt)
	if err != nil {
		return nil, errs.Wrap(errs.InvalidData, "deriving send session keys", err)
	}
	recvKeys, err := rtpcrypto.DeriveSessionKeys(profile, recvKey, recvSalt)
	if err != nil {
		return nil, errs.Wrap(errs.InvalidData, "deriving receive session keys", err)
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Connection{
		profile:  profile,
		sendKeys: sendKeys,
		recvKeys: recvKeys,
		media:    make(map[ChannelKey]*mediaChannelState),
		control:  make(map[ChannelKey]*controlChannelState),
		logger:   logger.WithField("component", "srtp"),
	}, nil
}

// Reset discards every per-channel rollover counter and replay window,
// for an ICE restart after connection loss (spec.md section 4.2's "Reset
// on reconnection"): the peer may reuse sequence numbers from scratch
// once reconnected, so the old replay windows must not reject them as
// duplicates. Send/receive key material is unaffected; only the fresh
// per-(SSRC,PT) state that a packet flow builds up over time is cleared.
func (c *Connection) Reset() {
	c.media = make(map[ChannelKey]*mediaChannelState)
	c.control = make(map[ChannelKey]*controlChannelState)
}

func (c *Connection) mediaChannel(key ChannelKey) *mediaChannelState {
	ch, ok := c.media[key]
	if !ok {
		ch = &mediaChannelState{}
		c.media[key] = ch
	}
	return ch
}

func (c *Connection) controlChannel(ssrc uint32) *controlChannelState {
	key := ChannelKey{SSRC: ssrc, PT: ControlPT}
	ch, ok := c.control[key]
	if !ok {
		ch = &controlChannelState{}
		c.control[key] = ch
	}
	return ch
}

// ProtectRTP encrypts an outgoing RTP packet. header is the plaintext
// fixed+CSRC+extension prefix (sent as-is); payload is the media bytes to
// encrypt. seq is the packet's 16-bit RTP sequence number.
func (c *Connection) ProtectRTP(ssrc uint32, pt uint8, seq uint16, header, payload []byte) ([]byte, error) {
	ch := c.mediaChannel(ChannelKey{SSRC: ssrc, PT: pt})
	roc := ch.sendROC.Update(seq)

	if c.profile.IsGCM() {
		iv := computeRtpIV(c.sendKeys.RtpSalt, ssrc, roc, seq)
		sealed, err := rtpcrypto.GCMSeal(c.sendKeys.RtpKey, iv, header, payload)
		if err != nil {
			return nil, errs.Wrap(errs.OsError, "rtp gcm seal", err)
		}
		out := make([]byte, 0, len(header)+len(sealed))
		out = append(out, header...)
		out = append(out, sealed...)
		return out, nil
	}

	iv := computeRtpIV(c.sendKeys.RtpSalt, ssrc, roc, seq)
	ciphertext, err := rtpcrypto.CTRCrypt(c.sendKeys.RtpKey, iv, payload)
	if err != nil {
		return nil, errs.Wrap(errs.OsError, "rtp ctr encrypt", err)
	}
	body := make([]byte, 0, len(header)+len(ciphertext))
	body = append(body, header...)
	body = append(body, ciphertext...)

	var rocBytes [4]byte
	binary.BigEndian.PutUint32(rocBytes[:], roc)
	tag := rtpcrypto.HMACSHA1(c.sendKeys.RtpAuth, body, rocBytes[:])
	tagLen := c.profile.AuthTagLen()

	out := make([]byte, 0, len(body)+tagLen)
	out = append(out, body...)
	out = append(out, tag[:tagLen]...)
	return out, nil
}

// UnprotectRTP decrypts an incoming RTP packet, verifying authenticity and
// replay protection. header/ciphertext is the packet already split at the
// RTP header boundary; the returned slice is the recovered plaintext
// payload. The replay window is updated only once decryption and
// authentication both succeed.
func (c *Connection) UnprotectRTP(ssrc uint32, pt uint8, seq uint16, header, ciphertext []byte) ([]byte, error) {
	ch := c.mediaChannel(ChannelKey{SSRC: ssrc, PT: pt})
	roc := ch.recvROC.Update(seq)
	extended := ExtendedSeq(roc, seq)

	if !ch.replay.CanProceed(extended) {
		return nil, errs.New(errs.InvalidData, "rtp replay rejected")
	}

	if c.profile.IsGCM() {
		iv := computeRtpIV(c.recvKeys.RtpSalt, ssrc, roc, seq)
		plain, err := rtpcrypto.GCMOpen(c.recvKeys.RtpKey, iv, header, ciphertext)
		if err != nil {
			return nil, errs.Wrap(errs.InvalidData, "rtp gcm open", err)
		}
		ch.replay.Set(extended)
		return plain, nil
	}

	tagLen := c.profile.AuthTagLen()
	if len(ciphertext) < tagLen {
		return nil, errs.New(errs.InvalidData, "rtp packet shorter than auth tag")
	}
	body := ciphertext[:len(ciphertext)-tagLen]
	gotTag := ciphertext[len(ciphertext)-tagLen:]

	var rocBytes [4]byte
	binary.BigEndian.PutUint32(rocBytes[:], roc)
	fullAuth := make([]byte, 0, len(header)+len(body))
	fullAuth = append(fullAuth, header...)
	fullAuth = append(fullAuth, body...)
	wantTag := rtpcrypto.HMACSHA1(c.recvKeys.RtpAuth, fullAuth, rocBytes[:])
	if !rtpcrypto.ConstantTimeEqual(gotTag, wantTag[:tagLen]) {
		return nil, errs.New(errs.InvalidData, "rtp auth tag mismatch")
	}

	iv := computeRtpIV(c.recvKeys.RtpSalt, ssrc, roc, seq)
	plain, err := rtpcrypto.CTRCrypt(c.recvKeys.RtpKey, iv, body)
	if err != nil {
		return nil, errs.Wrap(errs.OsError, "rtp ctr decrypt", err)
	}
	ch.replay.Set(extended)
	return plain, nil
}

// ProtectRTCP encrypts an outgoing RTCP compound packet. header is the
// first 8 bytes (RTCP header + SSRC); payload is everything after it.
func (c *Connection) ProtectRTCP(ssrc uint32, header, payload []byte) ([]byte, error) {
	ch := c.controlChannel(ssrc)
	index := ch.sendIndex
	ch.sendIndex++

	trailer := rtcpEBit | (index & 0x7fffffff)
	var trailerBytes [4]byte
	binary.BigEndian.PutUint32(trailerBytes[:], trailer)

	if c.profile.IsGCM() {
		iv := computeRtcpIV(c.sendKeys.RtcpSalt, ssrc, index)
		aad := make([]byte, 0, len(header)+4)
		aad = append(aad, header...)
		aad = append(aad, trailerBytes[:]...)
		sealed, err := rtpcrypto.GCMSeal(c.sendKeys.RtcpKey, iv, aad, payload)
		if err != nil {
			return nil, errs.Wrap(errs.OsError, "rtcp gcm seal", err)
		}
		out := make([]byte, 0, len(header)+len(sealed)+4)
		out = append(out, header...)
		out = append(out, sealed...)
		out = append(out, trailerBytes[:]...)
		return out, nil
	}

	iv := computeRtcpIV(c.sendKeys.RtcpSalt, ssrc, index)
	ciphertext, err := rtpcrypto.CTRCrypt(c.sendKeys.RtcpKey, iv, payload)
	if err != nil {
		return nil, errs.Wrap(errs.OsError, "rtcp ctr encrypt", err)
	}
	body := make([]byte, 0, len(header)+len(ciphertext)+4)
	body = append(body, header...)
	body = append(body, ciphertext...)
	body = append(body, trailerBytes[:]...)

	tag := rtpcrypto.HMACSHA1(c.sendKeys.RtcpAuth, body)
	tagLen := c.profile.AuthTagLen()
	out := make([]byte, 0, len(body)+tagLen)
	out = append(out, body...)
	out = append(out, tag[:tagLen]...)
	return out, nil
}

// UnprotectRTCP decrypts an incoming RTCP compound packet. header is the
// leading 8 bytes; rest is everything that followed it on the wire.
//
// Trailer placement differs by profile, matching ProtectRTCP's layout: for
// GCM the 16-byte tag is bundled into the sealed blob immediately after the
// ciphertext (Seal's convention) and the trailer comes last; for CTR+HMAC
// the trailer sits right after the ciphertext and the truncated HMAC tag
// comes last.
func (c *Connection) UnprotectRTCP(ssrc uint32, header, rest []byte) ([]byte, error) {
	if c.profile.IsGCM() {
		return c.unprotectRTCPGCM(ssrc, header, rest)
	}
	return c.unprotectRTCPCTR(ssrc, header, rest)
}

func (c *Connection) unprotectRTCPGCM(ssrc uint32, header, rest []byte) ([]byte, error) {
	if len(rest) < 4 {
		return nil, errs.New(errs.InvalidData, "rtcp packet too short for trailer")
	}
	trailerBytes := rest[len(rest)-4:]
	trailer := binary.BigEndian.Uint32(trailerBytes)
	index := trailer & 0x7fffffff
	encrypted := trailer&rtcpEBit != 0
	body := rest[:len(rest)-4]

	ch := c.controlChannel(ssrc)
	if !ch.replay.CanProceed(uint64(index)) {
		return nil, errs.New(errs.InvalidData, "rtcp replay rejected")
	}
	if !encrypted {
		ch.replay.Set(uint64(index))
		return body, nil
	}

	iv := computeRtcpIV(c.recvKeys.RtcpSalt, ssrc, index)
	aad := make([]byte, 0, len(header)+4)
	aad = append(aad, header...)
	aad = append(aad, trailerBytes...)
	plain, err := rtpcrypto.GCMOpen(c.recvKeys.RtcpKey, iv, aad, body)
	if err != nil {
		return nil, errs.Wrap(errs.InvalidData, "rtcp gcm open", err)
	}
	ch.replay.Set(uint64(index))
	return plain, nil
}

func (c *Connection) unprotectRTCPCTR(ssrc uint32, header, rest []byte) ([]byte, error) {
	tagLen := c.profile.AuthTagLen()
	if len(rest) < tagLen+4 {
		return nil, errs.New(errs.InvalidData, "rtcp packet too short for trailer and auth tag")
	}
	gotTag := rest[len(rest)-tagLen:]
	withoutTag := rest[:len(rest)-tagLen]
	trailerBytes := withoutTag[len(withoutTag)-4:]
	trailer := binary.BigEndian.Uint32(trailerBytes)
	index := trailer & 0x7fffffff
	encrypted := trailer&rtcpEBit != 0
	ciphertext := withoutTag[:len(withoutTag)-4]

	ch := c.controlChannel(ssrc)
	if !ch.replay.CanProceed(uint64(index)) {
		return nil, errs.New(errs.InvalidData, "rtcp replay rejected")
	}

	fullAuth := make([]byte, 0, len(header)+len(withoutTag))
	fullAuth = append(fullAuth, header...)
	fullAuth = append(fullAuth, withoutTag...)
	wantTag := rtpcrypto.HMACSHA1(c.recvKeys.RtcpAuth, fullAuth)
	if !rtpcrypto.ConstantTimeEqual(gotTag, wantTag[:tagLen]) {
		return nil, errs.New(errs.InvalidData, "rtcp auth tag mismatch")
	}

	if !encrypted {
		ch.replay.Set(uint64(index))
		return ciphertext, nil
	}

	iv := computeRtcpIV(c.recvKeys.RtcpSalt, ssrc, index)
	plain, err := rtpcrypto.CTRCrypt(c.recvKeys.RtcpKey, iv, ciphertext)
	if err != nil {
		return nil, errs.Wrap(errs.OsError, "rtcp ctr decrypt", err)
	}
	ch.replay.Set(uint64(index))
	return plain, nil
}
