// Package dtlsengine is the DTLS-SRTP engine external collaborator of
// spec.md section 4.1 step 4 and section 9: it wraps
// github.com/pion/dtls/v2 behind a datagram-feed interface so the peer
// candidate state machine never touches pion/dtls's net.Conn-shaped API
// directly. Grounded on original_source/peer_candidate.cpp's DTLS
// handshake driving (the `onConnectedDtls`/handshake loop section) and on
// original_source/src/x509_certificate.cpp for certificate generation.
package dtlsengine

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"time"

	"github.com/pion/dtls/v2"
	"github.com/sirupsen/logrus"

	"github.com/kmansoft/srtc-go/errs"
	"github.com/kmansoft/srtc-go/internal/rtpcrypto"
)

// Role is which side of the DTLS handshake this engine plays, set from
// the SDP answer's setup role (spec.md section 3).
type Role int

const (
	RoleClient Role = iota // answer setup=passive -> we are DTLS client
	RoleServer             // answer setup=active -> we are DTLS server
)

// handshakeTimeout bounds how long Handshake will wait for the DTLS
// handshake to complete. It is longer than the peer candidate's own 5 s
// connect-timeout, which fails the candidate independently of this bound.
const handshakeTimeout = 10 * time.Second

// Engine drives one DTLS-SRTP handshake and, once connected, exports the
// SRTP keying material and negotiated profile the srtp package needs to
// derive session keys.
type Engine struct {
	role              Role
	cert              tls.Certificate
	verifyFingerprint func(der []byte) bool

	conn *datagramConn
	dtls *dtls.Conn

	logger *logrus.Entry
}

// NewEngine builds an Engine. cert is this client's self-signed
// certificate (GenerateSelfSignedCertificate); verifyFingerprint is
// called with the remote's leaf certificate DER during the handshake to
// authenticate it against the SDP answer's a=fingerprint, matching
// peer_candidate.cpp's fingerprint check. send transmits outbound DTLS
// records via the caller's real UDP socket.
func NewEngine(role Role, cert tls.Certificate, verifyFingerprint func(der []byte) bool, send SendFunc, logger *logrus.Entry) *Engine {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Engine{
		role:              role,
		cert:              cert,
		verifyFingerprint: verifyFingerprint,
		conn:              newDatagramConn(send),
		logger:            logger.WithField("component", "dtlsengine"),
	}
}

// Feed enqueues one received datagram (already classified as DTLS by the
// peer candidate's first-byte demux per RFC 7983) for the handshake/record
// layer to consume.
func (e *Engine) Feed(data []byte) error {
	return e.conn.Feed(data)
}

// config builds the dtls.Config for this engine's role.
func (e *Engine) config() *dtls.Config {
	profiles := make([]dtls.SRTPProtectionProfile, 0, len(rtpcrypto.OfferedProfiles))
	for _, p := range rtpcrypto.OfferedProfiles {
		profiles = append(profiles, dtls.SRTPProtectionProfile(p))
	}

	return &dtls.Config{
		Certificates:           []tls.Certificate{e.cert},
		InsecureSkipVerify:     true,
		ExtendedMasterSecret:   dtls.RequireExtendedMasterSecret,
		SRTPProtectionProfiles: profiles,
		LoggerFactory:          NewLoggerFactory(e.logger),
		VerifyPeerCertificate: func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
			if len(rawCerts) == 0 {
				return errs.New(errs.InvalidData, "dtlsengine: no peer certificate presented")
			}
			if e.verifyFingerprint != nil && !e.verifyFingerprint(rawCerts[0]) {
				return errs.New(errs.InvalidData, "dtlsengine: remote certificate fingerprint mismatch")
			}
			return nil
		},
	}
}

// Handshake drives the DTLS handshake to completion (or ctx's deadline),
// blocking the calling goroutine; the peer candidate runs this on its own
// worker, not the network thread, per spec.md section 5's Open Question 1.
func (e *Engine) Handshake(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, handshakeTimeout)
	defer cancel()

	cfg := e.config()

	var conn *dtls.Conn
	var err error
	switch e.role {
	case RoleClient:
		conn, err = dtls.ClientWithContext(ctx, e.conn, cfg)
	default:
		conn, err = dtls.ServerWithContext(ctx, e.conn, cfg)
	}
	if err != nil {
		return errs.Wrap(errs.InvalidData, "dtlsengine: handshake failed", err)
	}

	e.dtls = conn
	e.logger.Info("dtls handshake complete")
	return nil
}

// ExportKeyingMaterial exports length bytes of SRTP keying material per
// RFC 5764, using the label DTLS-SRTP requires.
func (e *Engine) ExportKeyingMaterial(length int) ([]byte, error) {
	if e.dtls == nil {
		return nil, errs.New(errs.InvalidData, "dtlsengine: not connected")
	}
	material, err := e.dtls.ExportKeyingMaterial("EXTRACTOR-dtls_srtp", nil, length)
	if err != nil {
		return nil, errs.Wrap(errs.OsError, "dtlsengine: export keying material", err)
	}
	return material, nil
}

// SelectedProfile returns the negotiated SRTP protection profile.
func (e *Engine) SelectedProfile() (rtpcrypto.Profile, error) {
	if e.dtls == nil {
		return 0, errs.New(errs.InvalidData, "dtlsengine: not connected")
	}
	profile := e.dtls.ConnectionState().SRTPProtectionProfile
	p := rtpcrypto.Profile(profile)
	if !p.Valid() {
		return 0, errs.New(errs.InvalidData, fmt.Sprintf("dtlsengine: unsupported negotiated profile 0x%04x", uint16(profile)))
	}
	return p, nil
}

// Close shuts down the DTLS connection and the underlying datagram queue.
func (e *Engine) Close() error {
	if e.dtls != nil {
		_ = e.dtls.Close()
	}
	return e.conn.Close()
}
