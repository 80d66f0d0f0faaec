package candidate

import (
	"time"

	"github.com/kmansoft/srtc-go/ice"
)

// hostCandidatePriority is the fixed RFC 5245 4.1.2.1 priority this
// client offers, per spec.md section 6: this codebase only ever offers
// one local host candidate per remote host, so the formula collapses to
// a constant.
const hostCandidatePriority = (1 << 24) * 200 + (1 << 8) * 10 + (256 - 1)

// requestUsername is this candidate's outbound STUN USERNAME, per
// spec.md section 6: "RFRAG:LFRAG" from the recipient's point of view.
func (c *Candidate) requestUsername() string {
	return c.cfg.RemoteUfrag + ":" + c.cfg.LocalUfrag
}

func (c *Candidate) sendStunBindingRequest(useCandidate bool) {
	c.stunTID = ice.NewTransactionID()
	c.ice.RegisterTransaction(c.stunTID)
	msg := ice.BuildBindingRequest(c.stunTID, c.requestUsername(), c.cfg.RemotePwd, hostCandidatePriority, c.ice.Tie(), useCandidate)
	c.sendUDP(msg)
	c.sentUseCandidate = useCandidate
	c.stunAttempt = 0
	c.armStunRetransmit()
}

func (c *Candidate) armStunRetransmit() {
	delay := stunRetransmitBase + time.Duration(c.stunAttempt)*stunRetransmitStep
	c.stunRetransmitH = c.sched.Submit(delay, "stun.go", 0, c.onStunRetransmit)
}

func (c *Candidate) onStunRetransmit() {
	c.stunAttempt++
	msg := ice.BuildBindingRequest(c.stunTID, c.requestUsername(), c.cfg.RemotePwd, hostCandidatePriority, c.ice.Tie(), c.sentUseCandidate)
	c.sendUDP(msg)
	c.armStunRetransmit()
}

func (c *Candidate) sendUDP(data []byte) {
	if err := c.send(data); err != nil {
		c.logger.WithError(err).Debug("candidate: udp send failed")
		return
	}
	c.lastSend = c.clock.Now()
}

// handleStunMessage routes one datagram already classified as STUN by
// HandleDatagram: a binding request (we act as the STUN server) or a
// binding response (we act as the STUN client checking our own request).
func (c *Candidate) handleStunMessage(data []byte) {
	if m, ok := ice.VerifyRequestMessage(data, c.cfg.LocalUfrag+":"+c.cfg.RemoteUfrag, c.cfg.LocalPwd); ok {
		c.handleStunRequest(m)
		return
	}
	c.handleStunResponse(data)
}

func (c *Candidate) handleStunRequest(m *ice.Message) {
	resp := ice.BuildBindingSuccessResponse(m.TransactionID, c.cfg.LocalPwd, c.cfg.RemoteAddr)
	c.sendUDP(resp)
}

func (c *Candidate) handleStunResponse(data []byte) {
	m, ok, errorCode := ice.VerifyResponseMessage(data, c.cfg.RemotePwd)
	if !ok {
		if errorCode != 0 {
			c.logger.WithField("stun_error", errorCode).Debug("candidate: stun binding error response")
		}
		return
	}
	found, rtt := c.ice.ForgetTransaction(m.TransactionID)
	if !found {
		return
	}
	_ = rtt

	if c.reconnecting {
		c.onReconnected()
		return
	}

	if c.iceSelected {
		return
	}

	c.iceSelected = true
	c.listener.fireIceSelected()
	c.sched.Cancel(c.stunRetransmitH)
	c.state = StateActivating
	c.sendStunBindingRequest(true)
}

// onReconnected implements spec.md section 4.2's "Reset on reconnection":
// a binding response arriving while reconnecting confirms the path is
// alive again after a connection-lost restart (scenario S6). It cancels
// the connect-timeout onConnectionLost re-armed, resets SRTP's per-channel
// rollover and replay state so the peer's resumed sequence numbers aren't
// rejected as duplicates of the pre-loss stream, and re-fires OnConnected
// so the owning session knows the candidate is live again.
func (c *Candidate) onReconnected() {
	c.reconnecting = false
	c.sched.Cancel(c.stunRetransmitH)
	c.sched.Cancel(c.connectTimeoutH)
	if c.srtp != nil {
		c.srtp.Reset()
	}
	c.lastReceive = c.clock.Now()
	c.state = StateCompleted
	c.listener.fireConnected()
}
