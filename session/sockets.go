package session

import (
	"net"
	"time"

	srtc "github.com/kmansoft/srtc-go"
	"github.com/kmansoft/srtc-go/candidate"
	"github.com/kmansoft/srtc-go/dtlsengine"
	"github.com/kmansoft/srtc-go/errs"
	"github.com/kmansoft/srtc-go/rtcp"
	"github.com/kmansoft/srtc-go/scheduler"
)

// maxDatagramSize matches candidate/inbound.go's read buffer: the widest
// STUN/DTLS/SRTP datagram this transport ever receives.
const maxDatagramSize = 16 * 1024

// inboundDatagram is one received UDP datagram tagged with which host
// candidate it arrived on.
type inboundDatagram struct {
	index int
	data  []byte
}

// udpSocket is one candidate's dedicated socket and reader goroutine,
// per spec.md section 4.1: every candidate dials its own remote host
// independently.
type udpSocket struct {
	conn *net.UDPConn
}

func newUDPSocket(remote *net.UDPAddr) (*udpSocket, error) {
	conn, err := net.DialUDP("udp", nil, remote)
	if err != nil {
		return nil, errs.Wrap(errs.OsError, "session: dial candidate socket", err)
	}
	return &udpSocket{conn: conn}, nil
}

func (s *udpSocket) writeTo(data []byte) error {
	_, err := s.conn.Write(data)
	if err != nil {
		return errs.Wrap(errs.OsError, "session: write candidate socket", err)
	}
	return nil
}

func (s *udpSocket) close() {
	_ = s.conn.Close()
}

// readLoop feeds every datagram received on s into out, tagged with
// index, until the socket is closed.
func (s *udpSocket) readLoop(index int, out chan<- inboundDatagram) {
	buf := make([]byte, maxDatagramSize)
	for {
		n, err := s.conn.Read(buf)
		if err != nil {
			return
		}
		cp := make([]byte, n)
		copy(cp, buf[:n])
		select {
		case out <- inboundDatagram{index: index, data: cp}:
		default:
			// Back-pressure: the run loop is behind. Dropping here matches
			// spec.md section 7's policy of treating a lost datagram like
			// a lost UDP packet rather than blocking the reader goroutine.
		}
	}
}

// Start begins connecting, per spec.md section 4.5 step 1: generate a
// certificate, build one Candidate and socket per answer candidate,
// stagger their starts by candidateStartStagger, and launch the network
// run loop goroutine.
func (pc *PeerConnection) Start() error {
	pc.mu.Lock()
	if pc.state != StateInactive {
		pc.mu.Unlock()
		return errs.New(errs.InvalidData, "session: Start called more than once")
	}
	pc.mu.Unlock()

	cert, err := dtlsengine.GenerateSelfSignedCertificate()
	if err != nil {
		return err
	}

	// spec.md section 3: the answer's setup=active means the remote plays
	// DTLS client, so we must act as server, and vice versa.
	role := dtlsengine.RoleClient
	if pc.answer.SetupRole == srtc.SetupRoleActive {
		role = dtlsengine.RoleServer
	}

	twccExtID := uint8(0)
	for _, em := range pc.answer.ExtensionMaps {
		if id, ok := em.IDForURI(srtc.ExtensionURITransportWideCC); ok {
			twccExtID = id
			break
		}
	}

	for i, ic := range pc.answer.Candidates {
		remote := &net.UDPAddr{IP: net.ParseIP(ic.IP), Port: ic.Port}
		sock, err := newUDPSocket(remote)
		if err != nil {
			pc.logger.WithError(err).WithField("remote", remote.String()).Warn("session: candidate socket failed")
			continue
		}

		idx := i
		cfg := candidate.Config{
			LocalUfrag:              pc.offer.IceUfrag,
			LocalPwd:                pc.offer.IcePassword,
			RemoteUfrag:             pc.answer.IceUfrag,
			RemotePwd:               pc.answer.IcePassword,
			Certificate:             cert,
			RemoteFingerprintSHA256: pc.answer.RemoteFingerprint.Binary,
			Role:                    role,
			RemoteAddr:              remote,
			DebugDropPackets:        pc.offer.Config.DebugDropPackets,
			Logger:                  pc.logger,
		}

		listener := candidate.Listener{
			OnConnected:       func() { pc.onCandidateConnected(idx) },
			OnFailedToConnect: func(err error) { pc.onCandidateFailed(idx, err) },
		}

		cand := candidate.New(cfg, sock.writeTo, listener, scheduler.NewScopedScheduler(pc.sched), pc.clock, pc.twcc)
		cand.SetTWCCExtensionID(twccExtID)
		cand.OnOtherRTCP = func(raw rtcp.RawPacket) { pc.onOtherRTCP(idx, raw) }

		for _, t := range pc.tracksToRegister() {
			cand.RegisterTrack(t)
		}

		pc.hosts = append(pc.hosts, &hostCandidate{cand: cand, conn: sock})
		go sock.readLoop(idx, pc.inbound)
	}

	if len(pc.hosts) == 0 {
		pc.setState(StateFailed)
		return errs.New(errs.InvalidData, "session: no usable ice candidates in answer")
	}

	pc.mu.Lock()
	pc.startedAt = pc.clock.Now()
	pc.mu.Unlock()

	pc.setState(StateConnecting)

	go pc.runLoop()

	for i, h := range pc.hosts {
		if i > 0 {
			time.Sleep(candidateStartStagger)
		}
		h.cand.Start()
	}

	return nil
}

func (pc *PeerConnection) tracksToRegister() []candidate.TrackSink {
	var out []candidate.TrackSink
	if pc.videoTrack != nil {
		out = append(out, pc.videoTrack)
	}
	for _, t := range pc.videoSimulcast {
		out = append(out, t)
	}
	if pc.audioTrack != nil {
		out = append(out, pc.audioTrack)
	}
	return out
}

func (pc *PeerConnection) onCandidateConnected(idx int) {
	pc.mu.Lock()
	if pc.selected != nil {
		pc.mu.Unlock()
		return
	}
	pc.selected = pc.hosts[idx].cand
	pc.mu.Unlock()

	pc.twcc.ArmProbing(pc.clock.Now())
	pc.senderReportH = pc.sched.Submit(senderReportPeriod, "connection.go", 0, pc.onSenderReportTick)
	pc.statsH = pc.sched.Submit(connectionStatsPeriod, "connection.go", 0, pc.onStatsTick)

	pc.setState(StateConnected)
}

func (pc *PeerConnection) onCandidateFailed(idx int, err error) {
	pc.logger.WithError(err).WithField("candidate", idx).Warn("session: candidate failed")
	if pc.allCandidatesFailed() {
		pc.setState(StateFailed)
	}
}

func (pc *PeerConnection) onOtherRTCP(idx int, raw rtcp.RawPacket) {
	pc.logger.WithField("candidate", idx).WithField("pt", raw.PT).Debug("session: other rtcp received")
}
