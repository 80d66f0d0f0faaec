package rtpcrypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha1" //nolint:gosec // HMAC-SHA1 is mandated by SRTP (RFC 3711), not used standalone.
	"crypto/subtle"
	"fmt"
)

// GCMTagSize is the AES-GCM authentication tag size SRTP always uses.
const GCMTagSize = 16

// GCMSeal encrypts plaintext with AES-GCM under key/iv, authenticating aad,
// and returns ciphertext with the 16-byte tag appended.
func GCMSeal(key, iv, aad, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("rtpcrypto: aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, len(iv))
	if err != nil {
		return nil, fmt.Errorf("rtpcrypto: cipher.NewGCM: %w", err)
	}
	return gcm.Seal(nil, iv, plaintext, aad), nil
}

// GCMOpen decrypts and authenticates ciphertext (which includes the
// trailing tag) with AES-GCM under key/iv and aad.
func GCMOpen(key, iv, aad, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("rtpcrypto: aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, len(iv))
	if err != nil {
		return nil, fmt.Errorf("rtpcrypto: cipher.NewGCM: %w", err)
	}
	plain, err := gcm.Open(nil, iv, ciphertext, aad)
	if err != nil {
		return nil, fmt.Errorf("rtpcrypto: GCM auth failed: %w", err)
	}
	return plain, nil
}

// CTRCrypt XORs data with the AES-CTR keystream under key/iv. It is its
// own inverse, matching encrypt and decrypt.
func CTRCrypt(key, iv, data []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("rtpcrypto: aes.NewCipher: %w", err)
	}
	if len(iv) != block.BlockSize() {
		return nil, fmt.Errorf("rtpcrypto: iv must be %d bytes, got %d", block.BlockSize(), len(iv))
	}
	stream := cipher.NewCTR(block, iv)
	out := make([]byte, len(data))
	stream.XORKeyStream(out, data)
	return out, nil
}

// HMACSHA1 computes the full 20-byte HMAC-SHA1 digest over data under key.
func HMACSHA1(key []byte, data ...[]byte) []byte {
	mac := hmac.New(sha1.New, key)
	for _, d := range data {
		mac.Write(d) //nolint:errcheck // hash.Hash.Write never errors.
	}
	return mac.Sum(nil)
}

// ConstantTimeEqual reports whether a and b are equal using constant-time
// comparison, for authentication tag and certificate fingerprint checks.
func ConstantTimeEqual(a, b []byte) bool {
	return len(a) == len(b) && subtle.ConstantTimeCompare(a, b) == 1
}
