package session

import (
	"time"
)

// runLoop is the single goroutine that ever touches candidate/SRTP/TWCC
// state, per spec.md section 5. It wakes on three things: an inbound
// datagram fanned in by a socket reader goroutine, an application
// PublishVideoFrame/PublishAudioFrame interrupt, or its own wait timer
// bound by the scheduler's next due task (capped at pollCap, per spec.md
// section 5's poll-wait rule).
func (pc *PeerConnection) runLoop() {
	defer pc.shutdown()

	timer := time.NewTimer(pollCap)
	defer timer.Stop()

	for {
		pc.resetWaitTimer(timer)

		select {
		case <-pc.quit:
			return
		case dg := <-pc.inbound:
			pc.handleInbound(dg)
		case <-pc.interruptCh:
			pc.flushFrameQueue()
		case now := <-timer.C:
			pc.runDueWork(now)
		}
	}
}

func (pc *PeerConnection) resetWaitTimer(timer *time.Timer) {
	waitMs := pc.sched.GetTimeoutMillis(int(pollCap / time.Millisecond))
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
	timer.Reset(time.Duration(waitMs) * time.Millisecond)
}

func (pc *PeerConnection) runDueWork(now time.Time) {
	pc.sched.Run(now)
	for _, h := range pc.hosts {
		h.cand.Poll(now)
	}
}

func (pc *PeerConnection) handleInbound(dg inboundDatagram) {
	if dg.index < 0 || dg.index >= len(pc.hosts) {
		return
	}
	pc.hosts[dg.index].cand.HandleDatagram(dg.data)
	pc.runDueWork(pc.clock.Now())
}

func (pc *PeerConnection) flushFrameQueue() {
	frames := pc.drainFrameQueue()
	if len(frames) == 0 {
		return
	}
	pc.mu.Lock()
	sel := pc.selected
	pc.mu.Unlock()
	if sel == nil {
		return
	}
	for _, f := range frames {
		sel.SendFrame(f)
	}
}

func (pc *PeerConnection) shutdown() {
	pc.sched.Cancel(pc.senderReportH)
	pc.sched.Cancel(pc.statsH)
	for _, h := range pc.hosts {
		h.cand.Close()
		h.conn.close()
	}
	close(pc.done)
}
