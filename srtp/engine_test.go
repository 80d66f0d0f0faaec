package srtp

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kmansoft/srtc-go/internal/rtpcrypto"
)

func randBytes(t *testing.T, n int) []byte {
	t.Helper()
	b := make([]byte, n)
	_, err := rand.Read(b)
	require.NoError(t, err)
	return b
}

func newTestConnection(t *testing.T, profile rtpcrypto.Profile) (*Connection, *Connection) {
	t.Helper()
	keyA := randBytes(t, profile.KeyLen())
	saltA := randBytes(t, profile.SaltLen())
	keyB := randBytes(t, profile.KeyLen())
	saltB := randBytes(t, profile.SaltLen())

	// Connection A sends with (keyA,saltA) and receives with (keyB,saltB);
	// connection B is the mirror image, matching a real DTLS-SRTP export
	// where each side's "client write key" is the other's "client read key".
	a, err := NewConnection(profile, keyA, saltA, keyB, saltB, nil)
	require.NoError(t, err)
	b, err := NewConnection(profile, keyB, saltB, keyA, saltA, nil)
	require.NoError(t, err)
	return a, b
}

func TestProtectUnprotectRTPRoundTripAllProfiles(t *testing.T) {
	for _, profile := range rtpcrypto.OfferedProfiles {
		profile := profile
		t.Run(profile.String(), func(t *testing.T) {
			sender, receiver := newTestConnection(t, profile)

			header := []byte{0x80, 0x60, 0x00, 0x01, 0, 0, 0, 1, 0, 0, 0x12, 0x34}
			payload := []byte("this is a fake video frame payload")

			wire, err := sender.ProtectRTP(0x12340001, 0x60, 1, header, payload)
			require.NoError(t, err)
			require.True(t, bytes.HasPrefix(wire, header))

			ciphertext := wire[len(header):]
			plain, err := receiver.UnprotectRTP(0x12340001, 0x60, 1, header, ciphertext)
			require.NoError(t, err)
			require.Equal(t, payload, plain)
		})
	}
}

func TestUnprotectRTPRejectsTamperedPayload(t *testing.T) {
	for _, profile := range rtpcrypto.OfferedProfiles {
		profile := profile
		t.Run(profile.String(), func(t *testing.T) {
			sender, receiver := newTestConnection(t, profile)
			header := []byte{0x80, 0x60, 0x00, 0x01, 0, 0, 0, 1, 0, 0, 0x12, 0x34}
			payload := []byte("frame data")

			wire, err := sender.ProtectRTP(0xAABBCCDD, 0x60, 1, header, payload)
			require.NoError(t, err)

			ciphertext := append([]byte{}, wire[len(header):]...)
			ciphertext[0] ^= 0xff

			_, err = receiver.UnprotectRTP(0xAABBCCDD, 0x60, 1, header, ciphertext)
			require.Error(t, err)
		})
	}
}

func TestUnprotectRTPRejectsReplay(t *testing.T) {
	sender, receiver := newTestConnection(t, rtpcrypto.ProfileAeadAes128Gcm)
	header := []byte{0x80, 0x60, 0x00, 0x01, 0, 0, 0, 1, 0, 0, 0x12, 0x34}
	payload := []byte("frame data")

	wire, err := sender.ProtectRTP(0x1, 0x60, 7, header, payload)
	require.NoError(t, err)
	ciphertext := wire[len(header):]

	_, err = receiver.UnprotectRTP(0x1, 0x60, 7, header, ciphertext)
	require.NoError(t, err)

	_, err = receiver.UnprotectRTP(0x1, 0x60, 7, header, ciphertext)
	require.Error(t, err, "replaying the same sequence must be rejected")
}

func TestResetAllowsReuseOfPreviouslySeenSequenceNumbers(t *testing.T) {
	sender, receiver := newTestConnection(t, rtpcrypto.ProfileAeadAes128Gcm)
	header := []byte{0x80, 0x60, 0x00, 0x01, 0, 0, 0, 1, 0, 0, 0x12, 0x34}
	payload := []byte("frame data")

	wire, err := sender.ProtectRTP(0x1, 0x60, 7, header, payload)
	require.NoError(t, err)
	ciphertext := wire[len(header):]

	_, err = receiver.UnprotectRTP(0x1, 0x60, 7, header, ciphertext)
	require.NoError(t, err)

	// Both sides reset their channel state on reconnection, per spec.md
	// section 4.2: the peer's resumed stream reuses sequence numbers from
	// scratch, so this must no longer be rejected as a replay.
	sender.Reset()
	receiver.Reset()

	wire, err = sender.ProtectRTP(0x1, 0x60, 7, header, payload)
	require.NoError(t, err)
	ciphertext = wire[len(header):]

	plain, err := receiver.UnprotectRTP(0x1, 0x60, 7, header, ciphertext)
	require.NoError(t, err, "a reset replay window must accept a seq number already seen before the reset")
	require.Equal(t, payload, plain)
}

func TestProtectUnprotectRTCPRoundTripAllProfiles(t *testing.T) {
	for _, profile := range rtpcrypto.OfferedProfiles {
		profile := profile
		t.Run(profile.String(), func(t *testing.T) {
			sender, receiver := newTestConnection(t, profile)

			header := []byte{0x80, 0xc8, 0x00, 0x06, 0, 0, 0, 0x99}
			payload := []byte("fake sender report blocks go here")

			wire, err := sender.ProtectRTCP(0x99, header, payload)
			require.NoError(t, err)
			require.True(t, bytes.HasPrefix(wire, header))

			rest := wire[len(header):]
			plain, err := receiver.UnprotectRTCP(0x99, header, rest)
			require.NoError(t, err)
			require.Equal(t, payload, plain)
		})
	}
}

func TestUnprotectRTCPRejectsReplay(t *testing.T) {
	sender, receiver := newTestConnection(t, rtpcrypto.ProfileAes128CmSha180)
	header := []byte{0x80, 0xc8, 0x00, 0x06, 0, 0, 0, 0x42}
	payload := []byte("report")

	wire, err := sender.ProtectRTCP(0x42, header, payload)
	require.NoError(t, err)
	rest := wire[len(header):]

	_, err = receiver.UnprotectRTCP(0x42, header, rest)
	require.NoError(t, err)
	_, err = receiver.UnprotectRTCP(0x42, header, rest)
	require.Error(t, err)
}
