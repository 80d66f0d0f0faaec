package srtp

import "encoding/binary"

// computeRtpIV builds the per-packet IV for RTP encryption, grounded on
// original_source/srtp_crypto.cpp's RTP IV construction:
//
//	(0,0) || SSRC(4) || ROC(4) || SEQ(2)   XOR send_rtp_salt
//
// For a 12-byte (GCM) salt this yields the 12-byte GCM nonce directly. For
// a 14-byte (CTR) salt, the field layout occupies the first 14 bytes of a
// 16-byte buffer and the trailing 2 bytes are left as the zero starting
// counter that AES-CTR advances across blocks.
func computeRtpIV(salt []byte, ssrc uint32, roc uint32, seq uint16) []byte {
	if len(salt) == 12 {
		buf := make([]byte, 12)
		binary.BigEndian.PutUint32(buf[2:6], ssrc)
		binary.BigEndian.PutUint32(buf[6:10], roc)
		binary.BigEndian.PutUint16(buf[10:12], seq)
		xorInPlace(buf, salt)
		return buf
	}
	buf := make([]byte, 16)
	binary.BigEndian.PutUint32(buf[2:6], ssrc)
	binary.BigEndian.PutUint32(buf[6:10], roc)
	binary.BigEndian.PutUint16(buf[10:12], seq)
	xorInPlace(buf[:14], salt)
	return buf
}

// computeRtcpIV builds the per-packet IV for RTCP encryption:
//
//	(0,0) || SSRC(4) || 0 || 0 || seq(4)   XOR send_rtcp_salt
//
// seq here is the 31-bit SRTCP index (the trailer value with the E-bit
// cleared). That layout is the 12-byte (GCM) case. For a 14-byte (CTR)
// salt the 16-byte buffer carries SSRC at bytes 4..7 and the index at
// bytes 10..13, the salt covers the first 14 bytes, and the trailing 2
// bytes are the zero starting counter.
func computeRtcpIV(salt []byte, ssrc uint32, seq uint32) []byte {
	if len(salt) == 12 {
		buf := make([]byte, 12)
		binary.BigEndian.PutUint32(buf[2:6], ssrc)
		binary.BigEndian.PutUint32(buf[8:12], seq)
		xorInPlace(buf, salt)
		return buf
	}
	buf := make([]byte, 16)
	binary.BigEndian.PutUint32(buf[4:8], ssrc)
	binary.BigEndian.PutUint32(buf[10:14], seq)
	xorInPlace(buf[:14], salt)
	return buf
}

func xorInPlace(dst, salt []byte) {
	for i := range dst {
		dst[i] ^= salt[i]
	}
}
