package rtpcrypto

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func randBytes(t *testing.T, n int) []byte {
	t.Helper()
	b := make([]byte, n)
	_, err := rand.Read(b)
	require.NoError(t, err)
	return b
}

func TestDeriveKeyDeterministicAndLength(t *testing.T) {
	key := randBytes(t, 16)
	salt := randBytes(t, 14)

	a, err := DeriveKey(key, salt, LabelRtpKey, 16)
	require.NoError(t, err)
	require.Len(t, a, 16)

	b, err := DeriveKey(key, salt, LabelRtpKey, 16)
	require.NoError(t, err)
	require.Equal(t, a, b, "derivation must be deterministic for the same inputs")
}

func TestDeriveKeyDistinctAcrossLabels(t *testing.T) {
	key := randBytes(t, 16)
	salt := randBytes(t, 14)

	labels := []byte{LabelRtpKey, LabelRtpAuth, LabelRtpSalt, LabelRtcpKey, LabelRtcpAuth, LabelRtcpSalt}
	seen := map[string]bool{}
	for _, label := range labels {
		out, err := DeriveKey(key, salt, label, 20)
		require.NoError(t, err)
		require.False(t, seen[string(out)], "label %d collided with a previous label's output", label)
		seen[string(out)] = true
	}
}

func TestDeriveKeyLongOutputSpansMultipleBlocks(t *testing.T) {
	key := randBytes(t, 32)
	salt := randBytes(t, 12)

	out, err := DeriveKey(key, salt, LabelRtcpKey, 32)
	require.NoError(t, err)
	require.Len(t, out, 32)
	require.False(t, bytes.Equal(out[:16], out[16:]), "two AES-CTR blocks must not collide")
}

func TestDeriveSessionKeysSizesMatchProfile(t *testing.T) {
	for _, p := range OfferedProfiles {
		key := randBytes(t, p.KeyLen())
		salt := randBytes(t, p.SaltLen())

		sk, err := DeriveSessionKeys(p, key, salt)
		require.NoError(t, err)
		require.Len(t, sk.RtpKey, p.KeyLen())
		require.Len(t, sk.RtpSalt, p.SaltLen())
		require.Len(t, sk.RtcpKey, p.KeyLen())
		require.Len(t, sk.RtcpSalt, p.SaltLen())
		require.Len(t, sk.RtpAuth, 20)
		require.Len(t, sk.RtcpAuth, 20)
	}
}

func TestGCMSealOpenRoundTrip(t *testing.T) {
	key := randBytes(t, 16)
	iv := randBytes(t, 12)
	aad := []byte("aad-header-bytes")
	plain := []byte("some rtp payload bytes here")

	sealed, err := GCMSeal(key, iv, aad, plain)
	require.NoError(t, err)
	require.Len(t, sealed, len(plain)+GCMTagSize)

	opened, err := GCMOpen(key, iv, aad, sealed)
	require.NoError(t, err)
	require.Equal(t, plain, opened)
}

func TestGCMOpenRejectsTamperedTag(t *testing.T) {
	key := randBytes(t, 16)
	iv := randBytes(t, 12)
	sealed, err := GCMSeal(key, iv, nil, []byte("payload"))
	require.NoError(t, err)

	sealed[len(sealed)-1] ^= 0xff
	_, err = GCMOpen(key, iv, nil, sealed)
	require.Error(t, err)
}

func TestCTRCryptIsSelfInverse(t *testing.T) {
	key := randBytes(t, 16)
	iv := randBytes(t, 16)
	plain := []byte("some rtp payload that needs encrypting here")

	cipherText, err := CTRCrypt(key, iv, plain)
	require.NoError(t, err)
	require.NotEqual(t, plain, cipherText)

	decrypted, err := CTRCrypt(key, iv, cipherText)
	require.NoError(t, err)
	require.Equal(t, plain, decrypted)
}

func TestHMACSHA1Deterministic(t *testing.T) {
	key := randBytes(t, 20)
	a := HMACSHA1(key, []byte("part one"), []byte("part two"))
	b := HMACSHA1(key, []byte("part onepart two"))
	require.Equal(t, a, b, "HMAC over concatenated parts must match HMAC over the joined buffer")
	require.Len(t, a, 20)
}

func TestConstantTimeEqual(t *testing.T) {
	a := []byte{1, 2, 3, 4}
	b := []byte{1, 2, 3, 4}
	c := []byte{1, 2, 3, 5}
	require.True(t, ConstantTimeEqual(a, b))
	require.False(t, ConstantTimeEqual(a, c))
	require.False(t, ConstantTimeEqual(a, []byte{1, 2, 3}))
}
