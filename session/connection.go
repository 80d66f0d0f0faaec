// Package session implements spec.md section 4.5's PeerConnection: the
// top-level object an application holds. It owns the negotiated
// offer/answer, the track set, one candidate per remote host, the
// network run loop, and the frame/stats/sender-report dispatch that
// drives them. Grounded on original_source/peer_connection.cpp/.h for
// the operation set, and on the teacher's async/manager.go for the
// Start/Stop lifecycle idiom (mutex-guarded running flag, a dedicated
// background goroutine, a stop channel).
//
// spec.md section 4.5 describes a single-threaded epoll-style event loop
// polling every candidate's socket with one wait call. Go's netpoller
// already makes a blocking ReadFrom on a net.PacketConn non-blocking in
// effect, so this package instead runs one reader goroutine per
// candidate socket, fanning inbound datagrams into a single channel that
// the run loop goroutine selects on alongside the scheduler's timer and
// the application frame queue (DESIGN.md's Open Question 1). Only the
// run loop goroutine ever mutates candidate/SRTP/TWCC/pacer state,
// preserving spec.md section 5's single-network-thread invariant.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	srtc "github.com/kmansoft/srtc-go"
	"github.com/kmansoft/srtc-go/candidate"
	"github.com/kmansoft/srtc-go/clock"
	"github.com/kmansoft/srtc-go/scheduler"
	"github.com/kmansoft/srtc-go/twcc"
)

// ConnectionState is the PeerConnection's overall lifecycle state, per
// spec.md section 4.5: Inactive -> Connecting -> (Connected | Failed) ->
// Closed. Once Failed or Closed, it never transitions again.
type ConnectionState int

const (
	StateInactive ConnectionState = iota
	StateConnecting
	StateConnected
	StateFailed
	StateClosed
)

func (s ConnectionState) String() string {
	switch s {
	case StateInactive:
		return "Inactive"
	case StateConnecting:
		return "Connecting"
	case StateConnected:
		return "Connected"
	case StateFailed:
		return "Failed"
	case StateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// candidateStartStagger is the delay spec.md section 4.5 step 1 imposes
// between starting consecutive per-host candidates.
const candidateStartStagger = 100 * time.Millisecond

// senderReportPeriod and connectionStatsPeriod are spec.md section 4.5's
// repeating-task cadences, armed once a candidate is selected.
const (
	senderReportPeriod    = 1 * time.Second
	connectionStatsPeriod = 5 * time.Second
)

// pollCap bounds the run loop's wait per spec.md section 5.
const pollCap = 1 * time.Second

// PublishConnectionStats is the per-5s stats snapshot delivered to the
// application listener, per spec.md section 7.
type PublishConnectionStats struct {
	PacketCount                     uint32
	ByteCount                       uint32
	PacketsLostPercent              float64 // -1 if unknown
	RttMs                           float64 // -1 if unknown
	BandwidthActualKbitPerSecond    float64 // -1 if unknown
	BandwidthSuggestedKbitPerSecond float64 // -1 if unknown
}

// Listener receives PeerConnection lifecycle and stats events. Every
// field is optional. Calls happen from the network run loop goroutine,
// per spec.md section 5: applications must not block in these.
type Listener struct {
	OnStateChange func(state ConnectionState)
	OnStats       func(stats PublishConnectionStats)
}

// hostCandidate pairs one running Candidate with its dedicated UDP
// socket and reader goroutine.
type hostCandidate struct {
	cand *candidate.Candidate
	conn *udpSocket
}

// PeerConnection is spec.md section 4.5's top-level object: it holds the
// negotiated tracks/packetizers, runs one candidate per remote host,
// picks the winner, and owns the network run loop.
type PeerConnection struct {
	id uuid.UUID

	offer  srtc.Offer
	answer srtc.Answer

	videoTrack     *srtc.Track
	videoSimulcast []*srtc.Track
	audioTrack     *srtc.Track

	twcc *twcc.Pipeline

	mu          sync.Mutex
	state       ConnectionState
	listenerMu  sync.Mutex
	listener    Listener
	frameQueue  []candidate.FrameToSend
	interruptCh chan struct{}

	hosts    []*hostCandidate
	selected *candidate.Candidate

	sched *scheduler.LoopScheduler
	clock clock.Source

	logger *logrus.Entry

	quit      chan struct{}
	closed    bool
	done      chan struct{}
	inbound   chan inboundDatagram
	startedAt time.Time

	senderReportH scheduler.Handle
	statsH        scheduler.Handle
}

// New constructs a PeerConnection from a completed offer/answer exchange
// and the track list the answer resolved. It does not start networking;
// call Start for that.
func New(offer srtc.Offer, answer srtc.Answer, src clock.Source, logger *logrus.Entry) *PeerConnection {
	if src == nil {
		src = clock.Default
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	id := uuid.New()
	logger = logger.WithField("component", "session").WithField("pc", id.String())

	bweEnabled := offer.Config.EnableBwe && bweNegotiated(answer)

	pc := &PeerConnection{
		id:          id,
		offer:       offer,
		answer:      answer,
		twcc:        twcc.NewPipeline(bweEnabled, src, logger),
		state:       StateInactive,
		interruptCh: make(chan struct{}, 1),
		sched:       scheduler.NewLoopScheduler(src),
		clock:       src,
		logger:      logger,
		quit:        make(chan struct{}),
		done:        make(chan struct{}),
		inbound:     make(chan inboundDatagram, 256),
	}

	for _, t := range answer.Tracks {
		switch {
		case t.Media == srtc.MediaVideo && t.Simulcast == nil:
			pc.videoTrack = t
		case t.Media == srtc.MediaVideo && t.Simulcast != nil:
			pc.videoSimulcast = append(pc.videoSimulcast, t)
		case t.Media == srtc.MediaAudio:
			pc.audioTrack = t
		}
	}

	return pc
}

// bweNegotiated implements spec.md section 4.3's gating rule: the answer
// must carry the transport-wide-cc extension URI in every present media
// section.
func bweNegotiated(answer srtc.Answer) bool {
	if len(answer.ExtensionMaps) == 0 {
		return false
	}
	for _, em := range answer.ExtensionMaps {
		if _, ok := em.IDForURI(srtc.ExtensionURITransportWideCC); !ok {
			return false
		}
	}
	return true
}

// ID returns this connection's identifier, carried in every log line.
func (pc *PeerConnection) ID() uuid.UUID {
	return pc.id
}

// SetListener installs the state/stats listener under the dedicated
// listener mutex, per spec.md section 5's shared-state rule.
func (pc *PeerConnection) SetListener(l Listener) {
	pc.listenerMu.Lock()
	defer pc.listenerMu.Unlock()
	pc.listener = l
}

func (pc *PeerConnection) fireState(s ConnectionState) {
	pc.listenerMu.Lock()
	l := pc.listener
	pc.listenerMu.Unlock()
	if l.OnStateChange != nil {
		l.OnStateChange(s)
	}
}

func (pc *PeerConnection) fireStats(s PublishConnectionStats) {
	pc.listenerMu.Lock()
	l := pc.listener
	pc.listenerMu.Unlock()
	if l.OnStats != nil {
		l.OnStats(s)
	}
}

// setState transitions state, refusing any further transition once
// Failed or Closed, per spec.md section 4.5.
func (pc *PeerConnection) setState(s ConnectionState) {
	pc.mu.Lock()
	cur := pc.state
	if cur == StateFailed || cur == StateClosed {
		pc.mu.Unlock()
		return
	}
	pc.state = s
	pc.mu.Unlock()
	pc.fireState(s)
}

// State returns the current connection state.
func (pc *PeerConnection) State() ConnectionState {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.state
}

// PublishVideoFrame enqueues a video frame for the selected candidate,
// per spec.md section 4.5 step 4: the application thread only ever
// touches the mutex-guarded frame queue and interrupts the run loop,
// never the candidate directly.
func (pc *PeerConnection) PublishVideoFrame(f candidate.FrameToSend) {
	pc.enqueueFrame(f)
}

// PublishAudioFrame enqueues an audio frame; kept as a distinct method
// name (not just a generic Publish) to mirror the teacher's and the
// original's per-media-type send entry points.
func (pc *PeerConnection) PublishAudioFrame(f candidate.FrameToSend) {
	pc.enqueueFrame(f)
}

func (pc *PeerConnection) enqueueFrame(f candidate.FrameToSend) {
	pc.mu.Lock()
	pc.frameQueue = append(pc.frameQueue, f)
	pc.mu.Unlock()
	pc.interrupt()
}

func (pc *PeerConnection) interrupt() {
	select {
	case pc.interruptCh <- struct{}{}:
	default:
	}
}

func (pc *PeerConnection) drainFrameQueue() []candidate.FrameToSend {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	if len(pc.frameQueue) == 0 {
		return nil
	}
	out := pc.frameQueue
	pc.frameQueue = nil
	return out
}

// Close implements spec.md section 5's cancellation rule: it sets the
// quit flag, interrupts the run loop and waits for it to tear every
// candidate's scheduled tasks and socket down. Safe to call more than
// once; safe to call before Start (the run loop simply never started).
func (pc *PeerConnection) Close() {
	pc.mu.Lock()
	if pc.closed {
		pc.mu.Unlock()
		return
	}
	pc.closed = true
	started := pc.startedAt != (time.Time{})
	pc.mu.Unlock()

	close(pc.quit)
	pc.interrupt()
	if started {
		<-pc.done
	} else {
		close(pc.done)
	}
	pc.setState(StateClosed)
}

func (pc *PeerConnection) allCandidatesFailed() bool {
	for _, h := range pc.hosts {
		if h.cand.State() != candidate.StateFailed {
			return false
		}
	}
	return len(pc.hosts) > 0
}
