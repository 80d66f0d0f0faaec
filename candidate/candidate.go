package candidate

import (
	"context"
	"crypto/tls"
	"net"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kmansoft/srtc-go/clock"
	"github.com/kmansoft/srtc-go/dtlsengine"
	"github.com/kmansoft/srtc-go/errs"
	"github.com/kmansoft/srtc-go/history"
	"github.com/kmansoft/srtc-go/ice"
	"github.com/kmansoft/srtc-go/internal/rtpcrypto"
	"github.com/kmansoft/srtc-go/pacer"
	"github.com/kmansoft/srtc-go/rtcp"
	"github.com/kmansoft/srtc-go/scheduler"
	"github.com/kmansoft/srtc-go/srtp"
	"github.com/kmansoft/srtc-go/twcc"
)

// RawSender transmits one raw UDP datagram to this candidate's remote
// host. The owning peer connection supplies this; a Candidate never
// opens a socket itself.
type RawSender func(data []byte) error

// dtlsEngine is the subset of *dtlsengine.Engine a Candidate drives.
// Accepting the interface rather than the concrete type lets tests
// substitute a fake handshake without a real DTLS round trip.
type dtlsEngine interface {
	Feed(data []byte) error
	Handshake(ctx context.Context) error
	ExportKeyingMaterial(length int) ([]byte, error)
	SelectedProfile() (rtpcrypto.Profile, error)
	Close() error
}

// srtpConnection is the subset of *srtp.Connection a Candidate needs.
// *srtp.Connection satisfies it directly; the seam exists so tests can
// substitute a fake and exercise the NACK/send paths without real SRTP
// key material.
type srtpConnection interface {
	ProtectRTP(ssrc uint32, pt uint8, seq uint16, header, payload []byte) ([]byte, error)
	UnprotectRTP(ssrc uint32, pt uint8, seq uint16, header, ciphertext []byte) ([]byte, error)
	ProtectRTCP(ssrc uint32, header, payload []byte) ([]byte, error)
	UnprotectRTCP(ssrc uint32, header, rest []byte) ([]byte, error)
	Reset()
}

// Config bundles the per-candidate construction parameters that come from
// the negotiated offer/answer rather than from runtime events.
type Config struct {
	// LocalUfrag/LocalPwd are this client's ICE credentials (from the
	// offer); RemoteUfrag/RemotePwd are the answer's.
	LocalUfrag  string
	LocalPwd    string
	RemoteUfrag string
	RemotePwd   string

	// Certificate is this client's self-signed DTLS certificate.
	Certificate tls.Certificate

	// RemoteFingerprintSHA256 is the answer's certificate fingerprint,
	// verified bytewise against the peer's leaf cert at handshake end.
	RemoteFingerprintSHA256 []byte

	// Role resolves the SDP "actpass" setup negotiation: DTLS client if
	// the answer said passive, server if it said active.
	Role dtlsengine.Role

	// RemoteAddr is this candidate's one remote host:port.
	RemoteAddr *net.UDPAddr

	DebugDropPackets bool

	Logger *logrus.Entry
}

// Candidate is one remote-host connection attempt, per spec.md section
// 4.1. A Candidate is only ever driven from one goroutine (the owning
// peer connection's network loop), except for the DTLS handshake, which
// runs on its own goroutine per spec.md section 5's Open Question 1 and
// reports back through handshakeDone, drained by Poll.
type Candidate struct {
	cfg      Config
	send     RawSender
	listener Listener
	clock    clock.Source
	logger   *logrus.Entry

	sched *scheduler.ScopedScheduler

	ice *ice.Agent

	state DtlsState

	stunTID          ice.TransactionID
	stunAttempt      int
	stunRetransmitH  scheduler.Handle
	sentUseCandidate bool
	iceSelected      bool
	reconnecting     bool

	connectTimeoutH scheduler.Handle
	lostTimeoutH    scheduler.Handle
	keepAliveH      scheduler.Handle

	newDtlsEngine func(role dtlsengine.Role) dtlsEngine
	dtls          dtlsEngine
	handshakeDone chan handshakeResult

	srtp srtpConnection

	history *history.Manager
	pacer   *pacer.Pacer
	twcc    *twcc.Pipeline

	lastSend    time.Time
	lastReceive time.Time

	tracks    map[uint32]TrackSink
	twccExtID uint8

	// OnOtherRTCP receives every inbound RTCP packet that isn't a NACK or
	// TWCC feedback (SR, RR, PLI, SDES), for the owning session to use for
	// RTT correlation and key-frame request handling.
	OnOtherRTCP func(raw rtcp.RawPacket)
}

type handshakeResult struct {
	err     error
	profile rtpcrypto.Profile
	keys    []byte
}

// New builds an inactive Candidate. Call Start to begin connecting.
func New(cfg Config, send RawSender, listener Listener, sched *scheduler.ScopedScheduler, src clock.Source, twccPipeline *twcc.Pipeline) *Candidate {
	if src == nil {
		src = clock.Default
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	logger = logger.WithField("component", "candidate").WithField("remote", cfg.RemoteAddr.String())

	c := &Candidate{
		cfg:           cfg,
		send:          send,
		listener:      listener,
		clock:         src,
		logger:        logger,
		sched:         sched,
		ice:           ice.NewAgent(src),
		state:         StateInactive,
		history:       history.NewManager(),
		twcc:          twccPipeline,
		handshakeDone: make(chan handshakeResult, 1),
		tracks:        make(map[uint32]TrackSink),
	}
	c.newDtlsEngine = func(role dtlsengine.Role) dtlsEngine {
		return dtlsengine.NewEngine(role, cfg.Certificate, c.verifyFingerprint, c.sendDtlsRaw, logger)
	}
	return c
}

// State returns the current DtlsState.
func (c *Candidate) State() DtlsState {
	return c.state
}

// RemoteAddr returns this candidate's remote host address.
func (c *Candidate) RemoteAddr() *net.UDPAddr {
	return c.cfg.RemoteAddr
}

// Start begins the connect sequence: spec.md section 4.1 steps 1-2.
func (c *Candidate) Start() {
	c.listener.fireConnecting()
	c.connectTimeoutH = c.sched.Submit(connectTimeout, "candidate.go", 0, c.onConnectTimeout)
	c.sendStunBindingRequest(false)
}

// Close tears down this candidate's scheduled tasks and DTLS engine.
func (c *Candidate) Close() {
	c.sched.Close()
	if c.dtls != nil {
		_ = c.dtls.Close()
	}
}

func (c *Candidate) onConnectTimeout() {
	if c.state == StateCompleted {
		return
	}
	c.fail(errs.New(errs.InvalidData, "candidate: connect timeout"))
}

func (c *Candidate) fail(err error) {
	c.state = StateFailed
	c.logger.WithError(err).Warn("candidate failed")
	c.listener.fireFailed(err)
}

// Poll drives time-based work that isn't a scheduler task: draining a
// completed DTLS handshake result and flushing due paced packets. The
// owning peer connection calls this once per event-loop wakeup, after
// running the shared LoopScheduler.
func (c *Candidate) Poll(now time.Time) {
	select {
	case res := <-c.handshakeDone:
		c.onHandshakeDone(res)
	default:
	}
	if c.pacer != nil {
		c.pacer.Run(now)
	}
	if c.twcc != nil && c.twcc.Enabled() && c.state == StateCompleted {
		c.twcc.MaybeStartProbe(now)
	}
}

// NextDueTime returns the earliest time this candidate needs Poll called
// again (its pacer's next due packet), used by the owning peer connection
// to bound its event-loop wait per spec.md section 5.
func (c *Candidate) NextDueTime() (time.Time, bool) {
	if c.pacer == nil {
		return time.Time{}, false
	}
	return c.pacer.NextDueTime()
}
