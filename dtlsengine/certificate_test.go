package dtlsengine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateSelfSignedCertificateFingerprintRoundTrip(t *testing.T) {
	cert, err := GenerateSelfSignedCertificate()
	require.NoError(t, err)
	require.Len(t, cert.Certificate, 1)

	hex := Sha256FingerprintHex(cert.Certificate[0])
	require.Contains(t, hex, ":")

	require.True(t, VerifyFingerprint(cert.Certificate[0], "sha-256", hex))
	require.True(t, VerifyFingerprint(cert.Certificate[0], "SHA-256", hex))
	require.False(t, VerifyFingerprint(cert.Certificate[0], "sha-1", hex))
}

func TestVerifyFingerprintRejectsMismatch(t *testing.T) {
	cert, err := GenerateSelfSignedCertificate()
	require.NoError(t, err)

	require.False(t, VerifyFingerprint(cert.Certificate[0], "sha-256", "00:11:22:33"))
}
