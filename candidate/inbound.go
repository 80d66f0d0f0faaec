package candidate

import (
	"bytes"
	"context"
	"crypto/sha256"

	"github.com/kmansoft/srtc-go/dtlsengine"
	"github.com/kmansoft/srtc-go/errs"
	"github.com/kmansoft/srtc-go/ice"
	"github.com/kmansoft/srtc-go/internal/rtpcrypto"
	"github.com/kmansoft/srtc-go/pacer"
	"github.com/kmansoft/srtc-go/rtppacket"
	"github.com/kmansoft/srtc-go/srtp"
)

// maxDatagramSize is the receive-buffer bound of spec.md section 5:
// datagrams larger than this are rejected at recv time.
const maxDatagramSize = 16 * 1024

// HandleDatagram classifies and routes one inbound UDP datagram per RFC
// 7983, matching spec.md section 4.1's "Inbound demux".
func (c *Candidate) HandleDatagram(data []byte) {
	if len(data) == 0 || len(data) > maxDatagramSize {
		return
	}
	c.lastReceive = c.clock.Now()

	first := data[0]
	switch {
	case first <= 3:
		if ice.IsStunPacket(data) {
			c.handleStunMessage(data)
		}
	case first >= 20 && first <= 24:
		c.handleDtlsDatagram(data)
	case first >= 128 && first <= 191:
		c.handleRtcDatagram(data)
	}
}

func (c *Candidate) handleDtlsDatagram(data []byte) {
	if c.dtls == nil {
		c.startDtlsHandshake()
	}
	if err := c.dtls.Feed(data); err != nil {
		c.logger.WithError(err).Debug("candidate: dtls feed failed")
	}
}

// startDtlsHandshake implements spec.md section 4.1 step 4: the first
// DTLS datagram cancels the USE-CANDIDATE retransmit loop and starts the
// handshake, driven from its own goroutine so the network thread is
// never blocked on a TLS round trip.
func (c *Candidate) startDtlsHandshake() {
	c.sched.Cancel(c.stunRetransmitH)
	c.dtls = c.newDtlsEngine(c.cfg.Role)

	go func() {
		err := c.dtls.Handshake(context.Background())
		if err != nil {
			c.handshakeDone <- handshakeResult{err: err}
			return
		}
		profile, err := c.dtls.SelectedProfile()
		if err != nil {
			c.handshakeDone <- handshakeResult{err: err}
			return
		}
		keyLen, saltLen := profile.KeyLen(), profile.SaltLen()
		material, err := c.dtls.ExportKeyingMaterial(2 * (keyLen + saltLen))
		if err != nil {
			c.handshakeDone <- handshakeResult{err: err}
			return
		}
		c.handshakeDone <- handshakeResult{profile: profile, keys: material}
	}()
}

// verifyFingerprint is the dtlsengine.Engine callback that authenticates
// the peer's leaf certificate against the answer's a=fingerprint, per
// spec.md section 4.1 step 5.
func (c *Candidate) verifyFingerprint(der []byte) bool {
	sum := sha256.Sum256(der)
	return bytes.Equal(sum[:], c.cfg.RemoteFingerprintSHA256)
}

// sendDtlsRaw is the dtlsengine.SendFunc this candidate gives its DTLS
// engine: every DTLS record goes out over the same raw UDP path as STUN
// and RTP/RTCP.
func (c *Candidate) sendDtlsRaw(data []byte) error {
	c.sendUDP(data)
	return nil
}

// onHandshakeDone completes spec.md section 4.1 steps 5-7, run from
// Poll (the network thread) once the handshake goroutine reports back.
func (c *Candidate) onHandshakeDone(res handshakeResult) {
	if res.err != nil {
		c.fail(errs.Wrap(errs.InvalidData, "candidate: dtls handshake failed", res.err))
		return
	}

	keyLen := res.profile.KeyLen()
	saltLen := res.profile.SaltLen()
	clientKey := res.keys[0:keyLen]
	serverKey := res.keys[keyLen : 2*keyLen]
	clientSalt := res.keys[2*keyLen : 2*keyLen+saltLen]
	serverSalt := res.keys[2*keyLen+saltLen : 2*keyLen+2*saltLen]

	var sendKey, sendSalt, recvKey, recvSalt []byte
	if c.cfg.Role == dtlsengine.RoleClient {
		sendKey, sendSalt = clientKey, clientSalt
		recvKey, recvSalt = serverKey, serverSalt
	} else {
		sendKey, sendSalt = serverKey, serverSalt
		recvKey, recvSalt = clientKey, clientSalt
	}

	conn, err := srtp.NewConnection(res.profile, sendKey, sendSalt, recvKey, recvSalt, c.logger)
	if err != nil {
		c.fail(errs.Wrap(errs.InvalidData, "candidate: srtp connection setup failed", err))
		return
	}
	c.srtp = conn
	c.pacer = pacer.New(c.sendImpl, c.clock, c.cfg.DebugDropPackets)

	c.state = StateCompleted
	c.sched.Cancel(c.connectTimeoutH)
	now := c.clock.Now()
	c.lostTimeoutH = c.sched.Submit(connectionLostTimeout, "inbound.go", 0, c.onConnectionLost)
	c.keepAliveH = c.sched.Submit(keepAliveCheckPeriod, "inbound.go", 0, c.onKeepAliveTick)
	if c.twcc != nil {
		c.twcc.ArmProbing(now)
	}
	c.listener.fireConnected()
}

func (c *Candidate) onConnectionLost() {
	if c.clock.Now().Sub(c.lastReceive) < connectionLostTimeout {
		c.lostTimeoutH = c.sched.Submit(connectionLostTimeout, "inbound.go", 0, c.onConnectionLost)
		return
	}
	c.logger.Warn("candidate: connection lost, restarting")
	c.reconnecting = true
	c.listener.fireConnecting()
	c.connectTimeoutH = c.sched.Submit(connectTimeout, "inbound.go", 0, c.onConnectTimeout)
	c.sendStunBindingRequest(false)
}

// onKeepAliveTick implements spec.md section 4.1's keep-alive: if neither
// a send nor a receive happened in the last keepAliveTrigger, send a
// fresh STUN binding request.
func (c *Candidate) onKeepAliveTick() {
	c.keepAliveH = c.sched.Submit(keepAliveCheckPeriod, "inbound.go", 0, c.onKeepAliveTick)
	if c.state != StateCompleted {
		return
	}
	now := c.clock.Now()
	idle := now.Sub(c.lastSend)
	if now.Sub(c.lastReceive) < idle {
		idle = now.Sub(c.lastReceive)
	}
	if idle >= keepAliveTrigger {
		tid := ice.NewTransactionID()
		c.ice.RegisterTransaction(tid)
		msg := ice.BuildBindingRequest(tid, c.requestUsername(), c.cfg.RemotePwd, hostCandidatePriority, c.ice.Tie(), true)
		c.sendUDP(msg)
	}
}

// handleRtcDatagram routes an inbound RTP/RTCP datagram per spec.md
// section 4.1's "second byte's low 7 bits in [64,95] marks RTCP".
func (c *Candidate) handleRtcDatagram(data []byte) {
	if len(data) < 2 {
		return
	}
	if c.srtp == nil {
		return
	}
	low7 := data[1] & 0x7f
	if low7 >= 64 && low7 <= 95 {
		c.handleIncomingRTCP(data)
		return
	}
	c.handleIncomingRTP(data)
}

// handleIncomingRTP unprotects and parses an inbound RTP packet. This
// client is publish-only in its primary path (spec.md section 1), so
// incoming RTP only arises from a subscribe track. It returns the
// plaintext packet; handleRtcDatagram discards it, and nothing here
// passes it on to a jitter buffer.
func (c *Candidate) handleIncomingRTP(data []byte) (*rtppacket.Packet, error) {
	plain, err := parseAndUnprotectRTP(c.srtp, data)
	if err != nil {
		c.logger.WithError(err).Debug("candidate: rtp unprotect failed")
		return nil, err
	}
	return plain, nil
}

func parseAndUnprotectRTP(conn srtpConnection, data []byte) (*rtppacket.Packet, error) {
	pkt, err := rtppacket.Parse(data)
	if err != nil {
		return nil, err
	}
	header, ciphertext, err := pkt.HeaderAndPayload()
	if err != nil {
		return nil, err
	}
	plain, err := conn.UnprotectRTP(pkt.SSRC, pkt.PayloadType, pkt.SequenceNumber, header, ciphertext)
	if err != nil {
		return nil, err
	}
	pkt.Payload = plain
	return pkt, nil
}
