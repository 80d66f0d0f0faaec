// Package codec turns reordered jitter.Items back into complete Annex-B
// H.264 access units, per spec.md section 4.7. Grounded on
// original_source/src/depacketizer_h264.cpp: STAP-A unbundling, FU-A
// reassembly, a single leading 4-byte Annex-B start code per NAL, and a
// gate that drops non-IDR slice NALs (type 1) until SPS, PPS and IDR have
// each been seen once. Other NAL types pass the gate unchanged.
package codec

import (
	"github.com/kmansoft/srtc-go/jitter"
)

// H.264 NAL unit type values, per RFC 6184 section 5.4 and RFC 6184's
// reference to ITU-T H.264's NAL unit type table.
const (
	naluTypeNonKeyFrame uint8 = 1
	naluTypeSPS         uint8 = 7
	naluTypePPS         uint8 = 8
	naluTypeKeyFrame    uint8 = 5
	naluTypeSTAPA       uint8 = 24
	naluTypeFUA         uint8 = 28
)

var annexBStartCode = [4]byte{0, 0, 0, 1}

const (
	haveSPS = 0x01
	havePPS = 0x02
	haveKey = 0x04
	haveAll = haveSPS | havePPS | haveKey
)

// ClassifyH264 implements jitter.Classifier for H.264: STAP-A and any
// single NAL (type 1-23) are Standalone; an FU-A's Start/Middle/End bit
// in its FU header (RFC 6184 section 5.8) says where it sits in a
// fragmented NAL.
func ClassifyH264(payload []byte) jitter.Kind {
	if len(payload) < 1 {
		return jitter.KindStandalone
	}
	naluType := payload[0] & 0x1F
	switch naluType {
	case naluTypeSTAPA:
		return jitter.KindStandalone
	case naluTypeFUA:
		if len(payload) < 2 {
			return jitter.KindStandalone
		}
		header := payload[1]
		switch {
		case header&0x80 != 0:
			return jitter.KindStart
		case header&0x40 != 0:
			return jitter.KindEnd
		default:
			return jitter.KindMiddle
		}
	default:
		if naluType >= 1 && naluType <= 23 {
			return jitter.KindStandalone
		}
		return jitter.KindStandalone
	}
}

// H264Depacketizer reassembles access units from a sequence of
// jitter.Items that have already been drained from a jitter.Buffer in
// order. One depacketizer instance serves one track and is not safe for
// concurrent use.
type H264Depacketizer struct {
	haveBits  int
	frame     []byte
	lastRTPTs uint64
	fua       fuaAssembly
}

// NewH264Depacketizer creates an empty depacketizer, gated closed until
// the first SPS/PPS/IDR set is seen.
func NewH264Depacketizer() *H264Depacketizer {
	return &H264Depacketizer{}
}

// Reset clears accumulated state, used when a track's SSRC changes on
// reconnection.
func (d *H264Depacketizer) Reset() {
	d.haveBits = 0
	d.frame = nil
	d.lastRTPTs = 0
	d.fua.buf = nil
}

// Feed processes one drained jitter.Item (Standalone, or one element of
// a Start..Middle*..End fragmented run) and returns a complete access
// unit whenever the item's marker bit closes one out, or nil if more
// input is needed. A STAP-A Standalone item may itself bundle several
// NALs; each is appended to the same access unit in order since they
// share one RTP timestamp.
func (d *H264Depacketizer) Feed(item *jitter.Item) [][]byte {
	switch item.Kind {
	case jitter.KindStandalone:
		return d.feedStandalone(item)
	case jitter.KindStart, jitter.KindMiddle, jitter.KindEnd:
		return d.feedFragment(item)
	default:
		return nil
	}
}

func (d *H264Depacketizer) feedStandalone(item *jitter.Item) [][]byte {
	payload := item.Payload
	if len(payload) < 1 {
		return nil
	}
	naluType := payload[0] & 0x1F

	var out [][]byte
	if naluType == naluTypeSTAPA {
		pos := 1
		for pos+2 <= len(payload) {
			size := int(payload[pos])<<8 | int(payload[pos+1])
			pos += 2
			if pos+size > len(payload) {
				break
			}
			out = append(out, d.extract(item, payload[pos:pos+size])...)
			pos += size
		}
	} else {
		out = append(out, d.extract(item, payload)...)
	}
	return out
}

// feedFragment accumulates a run of FU-A fragments into one reassembled
// NAL; the caller is responsible for passing Start, any number of
// Middle, then End items from one run in order (as jitter.Buffer.
// DrainReady naturally yields them, since they share consecutive
// extended sequence numbers).
type fuaAssembly struct {
	buf []byte
}

func (d *H264Depacketizer) feedFragment(item *jitter.Item) [][]byte {
	payload := item.Payload
	if len(payload) < 2 {
		return nil
	}
	indicator := payload[0]
	header := payload[1]
	nri := indicator & 0x60
	naluType := header & 0x1F

	if item.Kind == jitter.KindStart {
		d.fua.buf = d.fua.buf[:0]
		d.fua.buf = append(d.fua.buf, nri|naluType)
	}
	if len(d.fua.buf) == 0 {
		// A Middle/End arrived without its Start (the Start was NACK-abandoned);
		// nothing can be reconstructed for this NAL.
		return nil
	}
	d.fua.buf = append(d.fua.buf, payload[2:]...)

	if item.Kind != jitter.KindEnd {
		return nil
	}
	nal := d.fua.buf
	d.fua.buf = nil
	return d.extract(item, nal)
}

// extract applies the leading-key-frame gate and Annex-B framing of
// original_source's extractImpl, starting a new access unit whenever the
// RTP timestamp changes and closing it out on the item's marker bit.
func (d *H264Depacketizer) extract(item *jitter.Item, nal []byte) [][]byte {
	if len(nal) == 0 {
		return nil
	}

	if d.haveBits != haveAll {
		switch nal[0] & 0x1F {
		case naluTypeNonKeyFrame:
			return nil
		case naluTypeSPS:
			d.haveBits |= haveSPS
		case naluTypePPS:
			d.haveBits |= havePPS
		case naluTypeKeyFrame:
			d.haveBits |= haveKey
		}
	}

	if d.lastRTPTs != item.RTPTimestampExt {
		d.lastRTPTs = item.RTPTimestampExt
		d.frame = d.frame[:0]
	}

	d.frame = append(d.frame, annexBStartCode[:]...)
	d.frame = append(d.frame, nal...)

	if !item.Marker {
		return nil
	}

	out := d.frame
	d.frame = nil
	return [][]byte{out}
}
