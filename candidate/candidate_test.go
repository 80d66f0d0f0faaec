package candidate

import (
	"context"
	"crypto/sha256"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kmansoft/srtc-go/internal/rtpcrypto"
	"github.com/kmansoft/srtc-go/pacer"
	"github.com/kmansoft/srtc-go/rtppacket"
	"github.com/kmansoft/srtc-go/scheduler"
)

type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time          { return f.now }
func (f *fakeClock) MicrosSinceEpoch() int64 { return f.now.UnixMicro() }

type fakeTrack struct {
	ssrc         uint32
	pt           uint8
	video        bool
	nack         bool
	rtxSSRC      uint32
	rtxPT        uint8
	hasRtx       bool
	sentPackets  uint32
	sentBytes    uint32
	nextRtxSeq   uint16
}

func (t *fakeTrack) PrimarySSRC() uint32 { return t.ssrc }
func (t *fakeTrack) PayloadType() uint8  { return t.pt }
func (t *fakeTrack) IsVideo() bool       { return t.video }
func (t *fakeTrack) HasNack() bool       { return t.nack }
func (t *fakeTrack) RtxInfo() (uint32, uint8, bool) {
	return t.rtxSSRC, t.rtxPT, t.hasRtx
}
func (t *fakeTrack) NextRtxSeq() uint16 {
	t.nextRtxSeq++
	return t.nextRtxSeq
}
func (t *fakeTrack) IncrementSentPackets(n uint32) { t.sentPackets += n }
func (t *fakeTrack) IncrementSentBytes(n uint32)   { t.sentBytes += n }

func newTestCandidate(t *testing.T, fc *fakeClock) (*Candidate, *[][]byte) {
	t.Helper()
	var sent [][]byte
	cfg := Config{
		LocalUfrag:  "lfrag",
		LocalPwd:    "lpwd",
		RemoteUfrag: "rfrag",
		RemotePwd:   "rpwd",
		RemoteAddr:  &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 5000},
	}
	send := func(data []byte) error {
		cp := make([]byte, len(data))
		copy(cp, data)
		sent = append(sent, cp)
		return nil
	}
	sched := scheduler.NewScopedScheduler(scheduler.NewLoopScheduler(fc))
	c := New(cfg, send, Listener{}, sched, fc, nil)
	return c, &sent
}

func TestVerifyFingerprintMatchesSHA256OfCertDER(t *testing.T) {
	fc := &fakeClock{now: time.Unix(1000, 0)}
	c, _ := newTestCandidate(t, fc)

	der := []byte{1, 2, 3, 4, 5}
	sum := sha256.Sum256(der)
	c.cfg.RemoteFingerprintSHA256 = sum[:]

	require.True(t, c.verifyFingerprint(der))
	require.False(t, c.verifyFingerprint([]byte{9, 9, 9}))
}

func TestHandleDatagramRoutesByFirstByte(t *testing.T) {
	fc := &fakeClock{now: time.Unix(1000, 0)}
	c, _ := newTestCandidate(t, fc)

	// Too large: dropped before any classification.
	c.HandleDatagram(make([]byte, maxDatagramSize+1))
	require.Equal(t, StateInactive, c.State())

	// An RTP/RTCP-range datagram with no SRTP connection yet is ignored,
	// not routed anywhere that would panic on a nil c.srtp.
	require.NotPanics(t, func() {
		c.HandleDatagram([]byte{0x80, 0x00, 0x00, 0x01})
	})
}

func TestRegisterTrackAndLookupBySSRC(t *testing.T) {
	fc := &fakeClock{now: time.Unix(1000, 0)}
	c, _ := newTestCandidate(t, fc)

	track := &fakeTrack{ssrc: 42}
	c.RegisterTrack(track)

	got, ok := c.trackFor(42)
	require.True(t, ok)
	require.Same(t, track, got.(*fakeTrack))

	_, ok = c.trackFor(7)
	require.False(t, ok)
}

func TestSendFrameSingleLayerPacketGoesOutImmediately(t *testing.T) {
	fc := &fakeClock{now: time.Unix(1000, 0)}
	c, _ := newTestCandidate(t, fc)

	var sent []uint16
	c.pacer = pacer.New(func(p *rtppacket.Packet) { sent = append(sent, p.SequenceNumber) }, fc, false)

	track := &fakeTrack{ssrc: 1}
	pkt := rtppacket.New(rtppacket.Params{SSRC: 1, SequenceNumber: 5})
	c.SendFrame(FrameToSend{Track: track, Packets: []*rtppacket.Packet{pkt}})

	require.Equal(t, []uint16{5}, sent)
}

func TestSendFrameEmptyPacketListIsANoop(t *testing.T) {
	fc := &fakeClock{now: time.Unix(1000, 0)}
	c, _ := newTestCandidate(t, fc)

	var sent []uint16
	c.pacer = pacer.New(func(p *rtppacket.Packet) { sent = append(sent, p.SequenceNumber) }, fc, false)

	c.SendFrame(FrameToSend{Track: &fakeTrack{ssrc: 1}})
	require.Empty(t, sent)
}

func TestResendForNackMissIsSkippedSilently(t *testing.T) {
	fc := &fakeClock{now: time.Unix(1000, 0)}
	c, _ := newTestCandidate(t, fc)
	c.pacer = pacer.New(func(*rtppacket.Packet) {}, fc, false)

	track := &fakeTrack{ssrc: 1, nack: true}
	c.RegisterTrack(track)

	// Nothing was ever sent through c.history, so this is a guaranteed
	// miss; it must not panic and must not touch the track's RTX counter.
	require.NotPanics(t, func() { c.resendForNack(1, 99) })
	require.Equal(t, uint16(0), track.nextRtxSeq)
}

func TestStartArmsConnectTimeoutAndSendsStunRequest(t *testing.T) {
	fc := &fakeClock{now: time.Unix(1000, 0)}
	c, sent := newTestCandidate(t, fc)

	var connecting bool
	c.listener = Listener{OnConnecting: func() { connecting = true }}

	c.Start()

	require.True(t, connecting)
	require.Len(t, *sent, 1, "Start must send exactly one STUN binding request")
}

// fakeDTLSEngine satisfies the package-private dtlsEngine seam so
// handshake-adjacent wiring can be exercised without a real DTLS round
// trip, mirroring srtp's own fake-connection test style.
type fakeDTLSEngine struct {
	fed     [][]byte
	hsErr   error
	profile rtpcrypto.Profile
	closed  bool
}

func (f *fakeDTLSEngine) Feed(data []byte) error {
	cp := make([]byte, len(data))
	copy(cp, data)
	f.fed = append(f.fed, cp)
	return nil
}
func (f *fakeDTLSEngine) Handshake(ctx context.Context) error { return f.hsErr }
func (f *fakeDTLSEngine) ExportKeyingMaterial(length int) ([]byte, error) {
	return make([]byte, length), nil
}
func (f *fakeDTLSEngine) SelectedProfile() (rtpcrypto.Profile, error) { return f.profile, nil }
func (f *fakeDTLSEngine) Close() error                                { f.closed = true; return nil }

func TestHandleDtlsDatagramFeedsExistingEngine(t *testing.T) {
	fc := &fakeClock{now: time.Unix(1000, 0)}
	c, _ := newTestCandidate(t, fc)

	fake := &fakeDTLSEngine{}
	c.dtls = fake

	c.handleDtlsDatagram([]byte{20, 1, 2, 3})
	require.Len(t, fake.fed, 1)
	require.Equal(t, []byte{20, 1, 2, 3}, fake.fed[0])
}
