package twcc

// RingSize is the fixed TWCC publish-packet history size of spec.md
// section 3: "Stored in a flat array of size 2048, indexed by seq & 2047".
const RingSize = 2048

// ReportedStatus is the feedback-confirmed disposition of one published
// packet, per spec.md section 3's "reported status" field.
type ReportedStatus int

const (
	StatusUnknown ReportedStatus = iota
	StatusNotReceived
	StatusReceivedSmallDelta
	StatusReceivedLargeDelta
)

// MediaType distinguishes audio from video publish packets for the probe
// and bandwidth analysis passes, which weight/inflate them differently.
type MediaType int

const (
	MediaVideo MediaType = iota
	MediaAudio
)

// PublishPacket is one outgoing packet's TWCC bookkeeping entry, matching
// spec.md section 3's "TWCC Publish Packet".
type PublishPacket struct {
	Seq uint16

	SentTimeMicros     int64
	ReceivedTimeMicros int64

	PaddingSize   int
	PayloadSize   int
	GeneratedSize int
	EncryptedSize int

	NackCount int
	Media     MediaType

	ReportedStatus ReportedStatus

	ReportedChecked     bool
	ReportedAsNotRecv   bool
	ReceivedTimePresent bool
	occupied            bool
}

// History is the flat, sliding-window ring of PublishPacket entries that
// backs the whole analysis pipeline.
type History struct {
	slots [RingSize]PublishPacket

	hasAny bool
	minSeq uint16
	maxSeq uint16
}

// NewHistory creates an empty history.
func NewHistory() *History {
	return &History{}
}

func slot(seq uint16) uint16 {
	return seq % RingSize
}

// inWindow reports whether seq currently lies within [minSeq, maxSeq] in
// wrapping 16-bit sequence space.
func (h *History) inWindow(seq uint16) bool {
	if !h.hasAny {
		return false
	}
	span := h.maxSeq - h.minSeq
	return seq-h.minSeq <= span
}

// Save records a freshly sent packet at the index its sequence number
// maps to. Per spec.md section 3's invariant, a write that would push
// [min_seq, max_seq] past RingSize entries advances min_seq and zeros the
// displaced slot first.
func (h *History) Save(p PublishPacket) {
	p.occupied = true

	if !h.hasAny {
		h.hasAny = true
		h.minSeq = p.Seq
		h.maxSeq = p.Seq
		h.slots[slot(p.Seq)] = p
		return
	}

	// Advance maxSeq to at least p.Seq, evicting from minSeq forward as
	// needed to keep the window length at or below RingSize.
	if seqAhead(p.Seq, h.maxSeq) && p.Seq-h.maxSeq >= RingSize {
		h.maxSeq = p.Seq
		h.minSeq = p.Seq - (RingSize - 1)
		// Every slot is logically stale now except the one we're about to
		// write; zero them all so stale entries never leak into analysis.
		for i := range h.slots {
			h.slots[i] = PublishPacket{}
		}
	} else if seqAhead(p.Seq, h.maxSeq) {
		h.maxSeq = p.Seq
		if h.maxSeq-h.minSeq >= RingSize {
			h.minSeq = h.maxSeq - (RingSize - 1)
		}
	}

	h.slots[slot(p.Seq)] = p
}

// seqAhead reports whether a is ahead of b in 16-bit circular space.
func seqAhead(a, b uint16) bool {
	return int16(a-b) > 0
}

// Get returns the entry stored for seq, if it's both occupied and still
// within the active window (a slot can be occupied by a stale entry from
// before the window last advanced past it without eviction zeroing it,
// which Save above prevents by always zeroing on a window jump).
func (h *History) Get(seq uint16) (PublishPacket, bool) {
	if !h.inWindow(seq) {
		return PublishPacket{}, false
	}
	e := h.slots[slot(seq)]
	if !e.occupied || e.Seq != seq {
		return PublishPacket{}, false
	}
	return e, true
}

// Update applies fn to the entry for seq in place, if present.
func (h *History) Update(seq uint16, fn func(*PublishPacket)) {
	if !h.inWindow(seq) {
		return
	}
	e := &h.slots[slot(seq)]
	if !e.occupied || e.Seq != seq {
		return
	}
	fn(e)
}

// Range calls fn for every occupied entry from minSeq to maxSeq in order.
// The walk is bounded at RingSize iterations regardless of window size.
func (h *History) Range(fn func(PublishPacket)) {
	if !h.hasAny {
		return
	}
	for seq := h.minSeq; ; seq++ {
		if e := h.slots[slot(seq)]; e.occupied && e.Seq == seq {
			fn(e)
		}
		if seq == h.maxSeq {
			break
		}
	}
}

// Bounds returns the current occupied window, and whether anything has
// ever been saved.
func (h *History) Bounds() (minSeq, maxSeq uint16, ok bool) {
	return h.minSeq, h.maxSeq, h.hasAny
}
