// Package candidate implements one peer candidate: the per-remote-host
// state machine that carries a connection from ICE through DTLS to a
// running SRTP session, per spec.md section 4.1. Grounded throughout on
// original_source/src/peer_candidate.cpp and
// original_source/include/srtc/peer_candidate.h, adapted from that
// file's OpenSSL-BIO-driven state machine to pion/dtls's net.Conn-shaped
// handshake via package dtlsengine.
package candidate

import "time"

// DtlsState is this candidate's connection state, per spec.md section
// 4.1's DtlsState enum.
type DtlsState int

const (
	StateInactive DtlsState = iota
	StateActivating
	StateCompleted
	StateFailed
)

func (s DtlsState) String() string {
	switch s {
	case StateInactive:
		return "Inactive"
	case StateActivating:
		return "Activating"
	case StateCompleted:
		return "Completed"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Listener receives this candidate's lifecycle events. Every field is
// optional; a nil field is simply not invoked. All calls happen from
// whatever goroutine drives Candidate.Poll, matching spec.md section 5's
// single-network-thread invocation rule for the owning PeerConnection.
type Listener struct {
	// OnConnecting fires when Start is called, and again each time a lost
	// connection starts reconnecting.
	OnConnecting func()
	// OnIceSelected fires when the STUN binding handshake first succeeds.
	OnIceSelected func()
	// OnConnected fires once the DTLS handshake completes and the SRTP
	// connection and pacer are ready, and again each time a reconnect
	// succeeds.
	OnConnected func()
	// OnFailedToConnect fires on any terminal failure (connect timeout,
	// fingerprint mismatch, handshake error).
	OnFailedToConnect func(err error)
}

func (l Listener) fireConnecting() {
	if l.OnConnecting != nil {
		l.OnConnecting()
	}
}

func (l Listener) fireIceSelected() {
	if l.OnIceSelected != nil {
		l.OnIceSelected()
	}
}

func (l Listener) fireConnected() {
	if l.OnConnected != nil {
		l.OnConnected()
	}
}

func (l Listener) fireFailed(err error) {
	if l.OnFailedToConnect != nil {
		l.OnFailedToConnect(err)
	}
}

// Timeouts per spec.md section 5's constants table.
const (
	connectTimeout        = 5 * time.Second
	connectionLostTimeout = 5 * time.Second
	keepAliveCheckPeriod  = 1 * time.Second
	keepAliveTrigger      = 3 * time.Second
	stunRetransmitBase    = 100 * time.Millisecond
	stunRetransmitStep    = 100 * time.Millisecond
)
