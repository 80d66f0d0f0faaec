// Package jitter implements the subscribe-path reorder ring of spec.md
// section 4.7: packets are stamped with an extended (rollover-resolved)
// sequence number and RTP timestamp before reaching here, held until
// their predecessors arrive or are given up on, and drained to the
// depacketizer in order. A short NACK fuse requests a retransmit for a
// gap shortly after it's noticed and abandons it if it still hasn't
// arrived a bit later, rather than stalling playout indefinitely.
// Grounded on original_source/include/srtc/jitter_buffer_item.h for the
// per-item field set.
package jitter

import (
	"sync"
	"time"

	"github.com/kmansoft/srtc-go/clock"
)

// Kind classifies one received packet's place in a (possibly
// fragmented) frame, mirroring original_source's PacketKind enum.
// Classification is codec-specific (package codec supplies it for
// H.264); jitter itself only needs to know fragment boundaries to group
// a Start..Middle*..End run for the depacketizer.
type Kind int

const (
	KindStandalone Kind = iota
	KindStart
	KindMiddle
	KindEnd
)

// Classifier inspects one RTP payload and reports its Kind, supplied by
// the codec package so this package stays codec-agnostic.
type Classifier func(payload []byte) Kind

// Item is one buffered packet, per original_source's JitterBufferItem.
type Item struct {
	WhenReceived time.Time

	NackNeeded      bool
	NackRequestTime time.Time
	NackAbandonTime time.Time

	Kind Kind

	SeqExt          uint64
	RTPTimestampExt uint64
	Marker          bool

	Payload []byte
}

// Fuse timing constants for spec.md section 4.7's gap-recovery policy: a
// NACK is requested shortly after a gap is first noticed, and abandoned
// (the packet is treated as permanently lost) if it still hasn't arrived
// well after that, so playout never stalls waiting on a single lost
// packet.
const (
	nackRequestDelay = 5 * time.Millisecond
	nackAbandonDelay = 60 * time.Millisecond
)

// Buffer is one track's reorder ring.
type Buffer struct {
	mu sync.Mutex

	classifier Classifier
	clock      clock.Source

	initialized bool
	nextOut     uint64
	highestSeen uint64

	items map[uint64]*Item
}

// NewBuffer creates an empty Buffer. classifier may be nil, in which
// case every item is treated as Standalone (suitable for Opus, which
// never fragments a frame across packets).
func NewBuffer(classifier Classifier, src clock.Source) *Buffer {
	if classifier == nil {
		classifier = func([]byte) Kind { return KindStandalone }
	}
	if src == nil {
		src = clock.Default
	}
	return &Buffer{classifier: classifier, clock: src, items: make(map[uint64]*Item)}
}

// Push inserts one received packet. A packet before the next expected
// output position is a duplicate or already-abandoned gap and is silently
// dropped, per spec.md section 7's lost/duplicate policy.
func (b *Buffer) Push(seqExt, rtpTimestampExt uint64, marker bool, payload []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.initialized {
		b.initialized = true
		b.nextOut = seqExt
		b.highestSeen = seqExt
	}
	if seqExt < b.nextOut {
		return
	}
	if seqExt > b.highestSeen {
		b.highestSeen = seqExt
	}

	cp := make([]byte, len(payload))
	copy(cp, payload)

	b.items[seqExt] = &Item{
		WhenReceived:    b.clock.Now(),
		Kind:            b.classifier(cp),
		SeqExt:          seqExt,
		RTPTimestampExt: rtpTimestampExt,
		Marker:          marker,
		Payload:         cp,
	}
}

// DueNacks returns the extended sequence numbers of gaps that have been
// missing for at least nackRequestDelay and haven't been requested yet,
// marking them requested so they aren't returned again.
func (b *Buffer) DueNacks(now time.Time) []uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []uint64
	for seq := b.nextOut; seq < b.highestSeen; seq++ {
		item, ok := b.items[seq]
		if ok && len(item.Payload) > 0 {
			continue // already received
		}
		if !ok {
			item = &Item{SeqExt: seq, WhenReceived: now}
			b.items[seq] = item
		}
		if item.NackRequestTime.IsZero() {
			item.NackRequestTime = now.Add(nackRequestDelay)
			item.NackAbandonTime = now.Add(nackAbandonDelay)
			continue
		}
		if item.NackNeeded {
			continue
		}
		if !now.Before(item.NackRequestTime) {
			item.NackNeeded = true
			out = append(out, seq)
		}
	}
	return out
}

// AbandonExpired gives up on any gap whose abandon deadline has passed,
// advancing nextOut past it so DrainReady can keep making progress
// instead of stalling on one lost packet forever.
func (b *Buffer) AbandonExpired(now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for {
		item, ok := b.items[b.nextOut]
		if !ok || len(item.Payload) > 0 {
			return
		}
		if item.NackAbandonTime.IsZero() || now.Before(item.NackAbandonTime) {
			return
		}
		delete(b.items, b.nextOut)
		b.nextOut++
		if b.nextOut > b.highestSeen {
			return
		}
	}
}

// DrainReady pops every contiguous received item starting at nextOut,
// in order, advancing nextOut past them.
func (b *Buffer) DrainReady() []*Item {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []*Item
	for {
		item, ok := b.items[b.nextOut]
		if !ok || len(item.Payload) == 0 {
			return out
		}
		delete(b.items, b.nextOut)
		out = append(out, item)
		b.nextOut++
	}
}
