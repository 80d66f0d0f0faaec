// Package rtpcrypto implements the SRTP cryptographic primitives: RFC 3711
// appendix B.3 key derivation, and the AES-GCM / AES-CTR+HMAC-SHA1
// protect/unprotect transforms. It knows nothing about RTP/RTCP packet
// structure or channel bookkeeping; that lives in package srtp, which
// layers on top of this one. Grounded on original_source/srtp_util.cpp and
// srtp_crypto.cpp.
package rtpcrypto

import "fmt"

// Profile identifies one of the four SRTP protection profiles this client
// offers, in the order spec.md section 6 requires them to be offered.
type Profile uint16

// DTLS-SRTP profile IDs per RFC 5764 / RFC 7714.
const (
	ProfileAeadAes128Gcm  Profile = 0x0007
	ProfileAeadAes256Gcm  Profile = 0x0008
	ProfileAes128CmSha180 Profile = 0x0001
	ProfileAes128CmSha132 Profile = 0x0002
)

// OfferedProfiles lists the profiles in the exact order they must be
// offered to the DTLS-SRTP extension.
var OfferedProfiles = []Profile{
	ProfileAeadAes128Gcm,
	ProfileAeadAes256Gcm,
	ProfileAes128CmSha180,
	ProfileAes128CmSha132,
}

// KeyLen returns the AES key size in bytes for the profile.
func (p Profile) KeyLen() int {
	switch p {
	case ProfileAeadAes256Gcm:
		return 32
	case ProfileAeadAes128Gcm, ProfileAes128CmSha180, ProfileAes128CmSha132:
		return 16
	default:
		return 0
	}
}

// SaltLen returns the master salt size in bytes for the profile.
func (p Profile) SaltLen() int {
	switch p {
	case ProfileAeadAes128Gcm, ProfileAeadAes256Gcm:
		return 12
	case ProfileAes128CmSha180, ProfileAes128CmSha132:
		return 14
	default:
		return 0
	}
}

// IsGCM reports whether the profile uses AES-GCM (as opposed to AES-CTR
// with a separate HMAC-SHA1 tag).
func (p Profile) IsGCM() bool {
	return p == ProfileAeadAes128Gcm || p == ProfileAeadAes256Gcm
}

// AuthTagLen returns the length in bytes of the authentication tag
// appended to an RTP packet (16 for GCM, 10 or 4 for the two CM profiles).
func (p Profile) AuthTagLen() int {
	switch p {
	case ProfileAeadAes128Gcm, ProfileAeadAes256Gcm:
		return 16
	case ProfileAes128CmSha180:
		return 10
	case ProfileAes128CmSha132:
		return 4
	default:
		return 0
	}
}

// Valid reports whether p is one of the four supported profiles.
func (p Profile) Valid() bool {
	switch p {
	case ProfileAeadAes128Gcm, ProfileAeadAes256Gcm, ProfileAes128CmSha180, ProfileAes128CmSha132:
		return true
	default:
		return false
	}
}

func (p Profile) String() string {
	switch p {
	case ProfileAeadAes128Gcm:
		return "SRTP_AEAD_AES_128_GCM"
	case ProfileAeadAes256Gcm:
		return "SRTP_AEAD_AES_256_GCM"
	case ProfileAes128CmSha180:
		return "SRTP_AES128_CM_SHA1_80"
	case ProfileAes128CmSha132:
		return "SRTP_AES128_CM_SHA1_32"
	default:
		return fmt.Sprintf("unknown(0x%04x)", uint16(p))
	}
}
