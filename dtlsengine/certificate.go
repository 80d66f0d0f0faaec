package dtlsengine

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"strings"
	"time"
)

// GenerateSelfSignedCertificate builds an ECDSA P-256 self-signed
// certificate valid for one year, matching
// original_source/src/x509_certificate.cpp's X509Certificate constructor
// (same curve, same one-year validity, same subject fields).
func GenerateSelfSignedCertificate() (tls.Certificate, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("dtlsengine: generate key: %w", err)
	}

	subject := pkix.Name{
		Country:      []string{"US"},
		Organization: []string{"MyCompany Inc."},
		CommonName:   "localhost",
	}

	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      subject,
		Issuer:       subject,
		NotBefore:    time.Now(),
		NotAfter:     time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("dtlsengine: create certificate: %w", err)
	}

	leaf, err := x509.ParseCertificate(der)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("dtlsengine: parse certificate: %w", err)
	}

	return tls.Certificate{
		Certificate: [][]byte{der},
		PrivateKey:  key,
		Leaf:        leaf,
	}, nil
}

// Sha256FingerprintHex returns the SHA-256 fingerprint of a certificate's
// DER encoding as lowercase colon-separated hex, matching
// original_source/src/x509_certificate.cpp's X509_digest + bin_to_hex
// pairing (the format SDP's a=fingerprint attribute expects).
func Sha256FingerprintHex(der []byte) string {
	sum := sha256.Sum256(der)
	parts := make([]string, len(sum))
	for i, b := range sum {
		parts[i] = fmt.Sprintf("%02x", b)
	}
	return strings.Join(parts, ":")
}

// VerifyFingerprint reports whether der's SHA-256 fingerprint matches
// expectedHex (case-insensitively, colon or no-colon). This is the
// dtlsengine equivalent of original_source/x509_hash.cpp's X509Hash
// comparison used by peer_candidate.cpp to authenticate the remote DTLS
// certificate against the SDP answer's a=fingerprint.
func VerifyFingerprint(der []byte, alg string, expectedHex string) bool {
	if !strings.EqualFold(alg, "sha-256") {
		return false
	}
	got := Sha256FingerprintHex(der)
	return strings.EqualFold(normalizeHex(got), normalizeHex(expectedHex))
}

func normalizeHex(s string) string {
	return strings.ReplaceAll(strings.ToLower(s), ":", "")
}
