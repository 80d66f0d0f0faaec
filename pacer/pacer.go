// Package pacer implements the send pacer of spec.md section 4.4: a
// time-ordered queue of pending RTP packets, immediate or spread-out
// sending, and the per-track flush used when a newer frame preempts
// stale paced packets. Grounded on
// original_source/include/srtc/send_pacer.h for the operation set;
// golang.org/x/time/rate shapes TWCC probe/padding bursts on top of the
// due-time queue per SPEC_FULL.md's domain-stack wiring.
package pacer

import (
	"math/rand"
	"sort"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/kmansoft/srtc-go/clock"
	"github.com/kmansoft/srtc-go/rtppacket"
)

// SendFunc performs the full sendImpl pipeline of spec.md section 4.4 for
// one packet: TWCC sequence stamping, send-history save, RTP generation,
// SRTP protection, stats, and the actual UDP write. It is supplied by the
// peer candidate, which owns all of those subsystems; the Pacer itself
// only knows about timing.
type SendFunc func(pkt *rtppacket.Packet)

// pending is one queued-but-not-yet-sent packet.
type pending struct {
	due     time.Time
	ssrc    uint32
	isVideo bool
	pkt     *rtppacket.Packet
}

// debugDropRate is the fraction of video packets spec.md section 4.4
// drops when debug_drop_packets is set, to exercise the NACK path.
const debugDropRate = 0.05

// Pacer is one peer candidate's send pacer. Like every other piece of
// per-candidate state, it is only ever touched from the network thread,
// so it does not lock its own queue against concurrent access beyond
// what's needed to keep Queue's slice append-safe under test helpers.
type Pacer struct {
	mu    sync.Mutex
	queue []pending

	send  SendFunc
	clock clock.Source

	debugDropPackets bool
	rng              *rand.Rand

	probeLimiter *rate.Limiter
}

// New creates a Pacer that calls send for every packet once it's due.
func New(send SendFunc, src clock.Source, debugDropPackets bool) *Pacer {
	if src == nil {
		src = clock.Default
	}
	return &Pacer{
		send:             send,
		clock:            src,
		debugDropPackets: debugDropPackets,
		rng:              rand.New(rand.NewSource(1)),
		probeLimiter:     rate.NewLimiter(rate.Inf, 1),
	}
}

// SendNow protects and sends pkt immediately, bypassing the queue.
func (p *Pacer) SendNow(ssrc uint32, isVideo bool, pkt *rtppacket.Packet) {
	if p.shouldDrop(isVideo) {
		return
	}
	p.send(pkt)
}

// SendPaced enqueues list to be sent spread evenly across spreadMillis
// milliseconds, preserving list's order (spec.md section 8 property 8:
// packets exit Run in the order they entered SendPaced).
func (p *Pacer) SendPaced(ssrc uint32, isVideo bool, list []*rtppacket.Packet, spreadMillis float64) {
	if len(list) == 0 {
		return
	}
	if len(list) == 1 {
		p.SendNow(ssrc, isVideo, list[0])
		return
	}

	now := p.clock.Now()
	deltaMicros := spreadMillis * 1000 / float64(len(list))

	p.mu.Lock()
	defer p.mu.Unlock()
	for i, pkt := range list {
		due := now.Add(time.Duration(float64(i)*deltaMicros) * time.Microsecond)
		p.queue = append(p.queue, pending{due: due, ssrc: ssrc, isVideo: isVideo, pkt: pkt})
	}
}

// Flush removes every queued packet for ssrc and sends each immediately,
// in the order it was enqueued, per spec.md section 4.1: "pacer.flush
// (track) first to drain any older packets for the same track" whenever
// a newer frame for that track arrives.
func (p *Pacer) Flush(ssrc uint32) {
	p.mu.Lock()
	var toSend []pending
	kept := p.queue[:0]
	for _, e := range p.queue {
		if e.ssrc == ssrc {
			toSend = append(toSend, e)
		} else {
			kept = append(kept, e)
		}
	}
	p.queue = kept
	p.mu.Unlock()

	for _, e := range toSend {
		if p.shouldDrop(e.isVideo) {
			continue
		}
		p.send(e.pkt)
	}
}

// Run pops and sends every entry whose due time has arrived, in due-time
// order.
func (p *Pacer) Run(now time.Time) {
	p.mu.Lock()
	var due []pending
	kept := p.queue[:0]
	for _, e := range p.queue {
		if !e.due.After(now) {
			due = append(due, e)
		} else {
			kept = append(kept, e)
		}
	}
	p.queue = kept
	sort.Slice(due, func(i, j int) bool { return due[i].due.Before(due[j].due) })
	p.mu.Unlock()

	for _, e := range due {
		if p.shouldDrop(e.isVideo) {
			continue
		}
		p.send(e.pkt)
	}
}

// NextDueTime returns the earliest due time currently queued, used by the
// peer connection's poll loop to bound its wait, per spec.md section 5.
func (p *Pacer) NextDueTime() (time.Time, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.queue) == 0 {
		return time.Time{}, false
	}
	earliest := p.queue[0].due
	for _, e := range p.queue[1:] {
		if e.due.Before(earliest) {
			earliest = e.due
		}
	}
	return earliest, true
}

// shouldDrop implements spec.md section 4.4's debug NACK-exercise hook: a
// 5% chance of dropping a video packet, active only when debug_drop_packets
// is set.
func (p *Pacer) shouldDrop(isVideo bool) bool {
	if !p.debugDropPackets || !isVideo {
		return false
	}
	return p.rng.Float64() < debugDropRate
}

// AllowProbe checks the token-bucket guarding TWCC probe bursts: n is the
// number of probe/padding bytes about to be sent. SetProbeRate should be
// called first to size the bucket to the current actual-bandwidth
// estimate.
func (p *Pacer) AllowProbe(n int) bool {
	return p.probeLimiter.AllowN(p.clock.Now(), n)
}

// SetProbeRate sets the probe token bucket's refill rate to bytesPerSecond
// bytes per second, called whenever the TWCC actual-bandwidth estimate
// updates.
func (p *Pacer) SetProbeRate(bytesPerSecond float64) {
	p.probeLimiter.SetLimit(rate.Limit(bytesPerSecond))
}
