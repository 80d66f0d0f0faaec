package rtpcrypto

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"
)

// Key derivation labels per RFC 3711 section 4.3.2.
const (
	LabelRtpKey   byte = 0
	LabelRtpAuth  byte = 1
	LabelRtpSalt  byte = 2
	LabelRtcpKey  byte = 3
	LabelRtcpAuth byte = 4
	LabelRtcpSalt byte = 5
)

// DeriveKey implements the RFC 3711 appendix B.3 key derivation function:
// x = master_salt XOR (label << 48), then AES-CTR-encrypt consecutive
// zero blocks starting at IV = x << 16, taking the first outLen bytes.
//
// masterSalt must be 12 or 14 bytes; masterKey 16 or 32 bytes. Grounded on
// original_source/srtp_util.cpp's KeyDerivation::generate.
func DeriveKey(masterKey, masterSalt []byte, label byte, outLen int) ([]byte, error) {
	if len(masterKey) != 16 && len(masterKey) != 32 {
		return nil, fmt.Errorf("rtpcrypto: master key must be 16 or 32 bytes, got %d", len(masterKey))
	}
	if len(masterSalt) != 12 && len(masterSalt) != 14 {
		return nil, fmt.Errorf("rtpcrypto: master salt must be 12 or 14 bytes, got %d", len(masterSalt))
	}
	if outLen <= 0 || outLen > 32 {
		return nil, fmt.Errorf("rtpcrypto: invalid output length %d", outLen)
	}

	block, err := aes.NewCipher(masterKey)
	if err != nil {
		return nil, fmt.Errorf("rtpcrypto: aes.NewCipher: %w", err)
	}

	// The salt is copied to the start of a 16-byte buffer (the trailing
	// bytes stay zero), and the label is XORed into byte 7 — this matches
	// the original's "input[7] ^= label" after copying the salt into a
	// 16-byte all-zero buffer.
	var iv [16]byte
	copy(iv[:], masterSalt)
	iv[7] ^= label

	blockCount := (outLen + 15) / 16
	out := make([]byte, 0, blockCount*16)
	zero := make([]byte, 16)

	for i := 0; i < blockCount; i++ {
		counterIV := iv
		counterIV[14] ^= byte(i >> 8)
		counterIV[15] ^= byte(i)

		stream := cipher.NewCTR(block, counterIV[:])
		dst := make([]byte, 16)
		stream.XORKeyStream(dst, zero)
		out = append(out, dst...)
	}

	return out[:outLen], nil
}

// SessionKeys holds all six keys/salts derived from one master key/salt
// pair for one direction (send or receive).
type SessionKeys struct {
	RtpKey   []byte
	RtpAuth  []byte
	RtpSalt  []byte
	RtcpKey  []byte
	RtcpAuth []byte
	RtcpSalt []byte
}

// DeriveSessionKeys derives all six labels for profile from one master key
// and salt. RTP/RTCP auth keys are always 20 bytes (the SHA-1 digest
// length) regardless of the truncated tag length used on the
// wire; key and salt sizes follow the profile.
func DeriveSessionKeys(profile Profile, masterKey, masterSalt []byte) (*SessionKeys, error) {
	keyLen := profile.KeyLen()
	saltLen := profile.SaltLen()
	if len(masterKey) != keyLen {
		return nil, fmt.Errorf("rtpcrypto: master key length %d does not match profile %s (want %d)", len(masterKey), profile, keyLen)
	}
	if len(masterSalt) != saltLen {
		return nil, fmt.Errorf("rtpcrypto: master salt length %d does not match profile %s (want %d)", len(masterSalt), profile, saltLen)
	}

	derive := func(label byte, outLen int) ([]byte, error) {
		return DeriveKey(masterKey, masterSalt, label, outLen)
	}

	rtpKey, err := derive(LabelRtpKey, keyLen)
	if err != nil {
		return nil, err
	}
	rtpAuth, err := derive(LabelRtpAuth, 20)
	if err != nil {
		return nil, err
	}
	rtpSalt, err := derive(LabelRtpSalt, saltLen)
	if err != nil {
		return nil, err
	}
	rtcpKey, err := derive(LabelRtcpKey, keyLen)
	if err != nil {
		return nil, err
	}
	rtcpAuth, err := derive(LabelRtcpAuth, 20)
	if err != nil {
		return nil, err
	}
	rtcpSalt, err := derive(LabelRtcpSalt, saltLen)
	if err != nil {
		return nil, err
	}

	return &SessionKeys{
		RtpKey:   rtpKey,
		RtpAuth:  rtpAuth,
		RtpSalt:  rtpSalt,
		RtcpKey:  rtcpKey,
		RtcpAuth: rtcpAuth,
		RtcpSalt: rtcpSalt,
	}, nil
}
