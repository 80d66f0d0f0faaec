package twcc

import (
	"github.com/kmansoft/srtc-go/errs"
	"github.com/kmansoft/srtc-go/internal/bytesio"
)

// RTCP type/FMT values for the transport-wide-cc feedback packet (the
// draft-holmer-rmcat-transport-wide-cc-extensions-01 packet spec.md
// section 6 names, carried over RTCP PT=205).
const (
	rtcpPT  uint8 = 205
	rtcpFMT uint8 = 15
)

// referenceTimeUnitMicros is the 64 ms unit spec.md section 4.3 assigns to
// the feedback header's reference time field.
const referenceTimeUnitMicros = 64 * 1000

// deltaUnitMicros is the 250 us unit spec.md section 4.3 assigns to both
// the one-byte (small) and two-byte (large) per-packet deltas.
const deltaUnitMicros = 250

// chunkSymbol is one packet's reception status as a 1- or 2-bit chunk
// symbol, per spec.md section 4.3's "Feedback parse" chunk encodings.
type chunkSymbol int

const (
	symbolNotReceived         chunkSymbol = 0
	symbolReceivedSmallDelta  chunkSymbol = 1
	symbolReceivedLargeDelta  chunkSymbol = 2
)

// Entry is one decoded per-packet status from a feedback packet, before
// it's merged into a History.
type Entry struct {
	Seq                uint16
	Status             ReportedStatus
	ReceivedTimeMicros int64 // only meaningful if Status != StatusNotReceived
}

// Feedback is a decoded RTCP 205/15 transport-wide-cc packet.
type Feedback struct {
	SenderSSRC uint32
	MediaSSRC  uint32

	BaseSeq       uint16
	StatusCount   uint16
	ReferenceTime int32 // 24-bit signed, in referenceTimeUnitMicros units
	FbPktCount    uint8

	Entries []Entry
}

// ParseFeedback decodes the RTCP-header-stripped body of a transport-wide-
// cc feedback packet: sender/media SSRC, the feedback header, the chunk
// stream and the deltas that follow it, resolving absolute received times
// by running sum from ReferenceTime.
//
// body must start right after the standard 4-byte RTCP header (so its
// first 8 bytes are SenderSSRC/MediaSSRC).
func ParseFeedback(body []byte) (*Feedback, error) {
	r := bytesio.NewReader(body)

	senderSSRC, err := r.ReadU32()
	if err != nil {
		return nil, errs.Wrap(errs.InvalidData, "twcc: reading sender ssrc", err)
	}
	mediaSSRC, err := r.ReadU32()
	if err != nil {
		return nil, errs.Wrap(errs.InvalidData, "twcc: reading media ssrc", err)
	}
	baseSeq, err := r.ReadU16()
	if err != nil {
		return nil, errs.Wrap(errs.InvalidData, "twcc: reading base sequence", err)
	}
	statusCount, err := r.ReadU16()
	if err != nil {
		return nil, errs.Wrap(errs.InvalidData, "twcc: reading status count", err)
	}
	refTime, err := r.ReadI24()
	if err != nil {
		return nil, errs.Wrap(errs.InvalidData, "twcc: reading reference time", err)
	}
	fbPktCount, err := r.ReadU8()
	if err != nil {
		return nil, errs.Wrap(errs.InvalidData, "twcc: reading fb packet count", err)
	}

	symbols := make([]chunkSymbol, 0, statusCount)
	for uint16(len(symbols)) < statusCount {
		chunk, err := r.ReadU16()
		if err != nil {
			return nil, errs.Wrap(errs.InvalidData, "twcc: reading status chunk", err)
		}
		symbols = appendChunkSymbols(symbols, chunk)
	}
	symbols = symbols[:statusCount]

	entries := make([]Entry, 0, len(symbols))
	runningTimeMicros := int64(refTime) * referenceTimeUnitMicros
	seq := baseSeq
	for _, sym := range symbols {
		e := Entry{Seq: seq}
		switch sym {
		case symbolNotReceived:
			e.Status = StatusNotReceived
		case symbolReceivedSmallDelta:
			d, err := r.ReadU8()
			if err != nil {
				return nil, errs.Wrap(errs.InvalidData, "twcc: reading small delta", err)
			}
			runningTimeMicros += int64(d) * deltaUnitMicros
			e.Status = StatusReceivedSmallDelta
			e.ReceivedTimeMicros = runningTimeMicros
		case symbolReceivedLargeDelta:
			raw, err := r.ReadU16()
			if err != nil {
				return nil, errs.Wrap(errs.InvalidData, "twcc: reading large delta", err)
			}
			runningTimeMicros += int64(int16(raw)) * deltaUnitMicros
			e.Status = StatusReceivedLargeDelta
			e.ReceivedTimeMicros = runningTimeMicros
		default:
			return nil, errs.New(errs.InvalidData, "twcc: unknown status symbol")
		}
		entries = append(entries, e)
		seq++
	}

	return &Feedback{
		SenderSSRC:    senderSSRC,
		MediaSSRC:     mediaSSRC,
		BaseSeq:       baseSeq,
		StatusCount:   statusCount,
		ReferenceTime: refTime,
		FbPktCount:    fbPktCount,
		Entries:       entries,
	}, nil
}

// appendChunkSymbols decodes one 16-bit chunk into the symbols it encodes
// per spec.md section 4.3: a run-length chunk (MSB=0) repeats one symbol
// `length` times; a status-vector chunk (MSB=1) carries either fourteen
// 1-bit symbols (S=0) or seven 2-bit symbols (S=1) directly. The caller
// truncates the accumulated slice to the packet's declared status count,
// since the final chunk commonly over-covers it.
func appendChunkSymbols(symbols []chunkSymbol, chunk uint16) []chunkSymbol {
	if chunk&0x8000 == 0 {
		// Run-length chunk: bit 14-13 symbol, bits 12-0 length.
		sym := chunkSymbol((chunk >> 13) & 0x3)
		length := int(chunk & 0x1fff)
		for i := 0; i < length; i++ {
			symbols = append(symbols, sym)
		}
		return symbols
	}

	if chunk&0x4000 == 0 {
		// Status-vector chunk, S=0: 14 one-bit symbols.
		for i := 13; i >= 0; i-- {
			bit := (chunk >> uint(i)) & 0x1
			if bit == 0 {
				symbols = append(symbols, symbolNotReceived)
			} else {
				symbols = append(symbols, symbolReceivedSmallDelta)
			}
		}
		return symbols
	}

	// Status-vector chunk, S=1: 7 two-bit symbols.
	for i := 6; i >= 0; i-- {
		v := (chunk >> uint(i*2)) & 0x3
		symbols = append(symbols, chunkSymbol(v))
	}
	return symbols
}

// BuildFeedback encodes entries (in ascending, gap-free sequence order
// starting at baseSeq) into a transport-wide-cc feedback RTCP body, using
// run-length chunks whenever consecutive entries share a status and
// status-vector chunks otherwise. referenceTime is in
// referenceTimeUnitMicros units. This is used only to construct synthetic
// feedback in tests (spec.md section 8 property 7's round-trip check);
// the client itself only ever parses feedback, never emits it, since TWCC
// is produced by the remote receiver.
func BuildFeedback(senderSSRC, mediaSSRC uint32, baseSeq uint16, referenceTime int32, fbPktCount uint8, entries []Entry) ([]byte, error) {
	w := bytesio.NewBuffer(64)
	bw := bytesio.NewWriter(w)

	bw.WriteU32(senderSSRC)
	bw.WriteU32(mediaSSRC)
	bw.WriteU16(baseSeq)
	bw.WriteU16(uint16(len(entries)))
	// Reference time is a 24-bit field; write it big-endian via the 32-bit
	// helper's low 3 bytes.
	var refBytes [4]byte
	refBytes[0] = byte(referenceTime >> 16)
	refBytes[1] = byte(referenceTime >> 8)
	refBytes[2] = byte(referenceTime)
	bw.WriteBytes(refBytes[:3])
	bw.WriteU8(fbPktCount)

	symbols := make([]chunkSymbol, len(entries))
	for i, e := range entries {
		switch e.Status {
		case StatusNotReceived:
			symbols[i] = symbolNotReceived
		case StatusReceivedSmallDelta:
			symbols[i] = symbolReceivedSmallDelta
		case StatusReceivedLargeDelta:
			symbols[i] = symbolReceivedLargeDelta
		default:
			return nil, errs.New(errs.InvalidData, "twcc: entry has no reported status")
		}
	}
	writeChunks(bw, symbols)

	runningTimeMicros := int64(referenceTime) * referenceTimeUnitMicros
	for _, e := range entries {
		switch e.Status {
		case StatusNotReceived:
			continue
		case StatusReceivedSmallDelta:
			delta := (e.ReceivedTimeMicros - runningTimeMicros) / deltaUnitMicros
			runningTimeMicros = e.ReceivedTimeMicros
			bw.WriteU8(uint8(delta))
		case StatusReceivedLargeDelta:
			delta := (e.ReceivedTimeMicros - runningTimeMicros) / deltaUnitMicros
			runningTimeMicros = e.ReceivedTimeMicros
			bw.WriteU16(uint16(int16(delta)))
		}
	}

	return w.Bytes(), nil
}

// writeChunks groups symbols into run-length chunks for maximal runs of an
// identical symbol and falls back to status-vector chunks otherwise: the
// 1-bit form (14 symbols) when none of the next 14 symbols is a large
// delta, else the 2-bit form (7 symbols).
func writeChunks(bw *bytesio.Writer, symbols []chunkSymbol) {
	const runLengthMin = 1
	i := 0
	for i < len(symbols) {
		j := i + 1
		for j < len(symbols) && symbols[j] == symbols[i] && j-i < 0x1fff {
			j++
		}
		runLen := j - i
		if runLen >= runLengthMin && (runLen > 7 || j == len(symbols)) {
			bw.WriteU16(uint16(symbols[i])<<13 | uint16(runLen))
			i = j
			continue
		}

		// Pack the next symbols into a status-vector chunk.
		perChunk, twoBit := 14, false
		for k := i; k < i+14 && k < len(symbols); k++ {
			if symbols[k] == symbolReceivedLargeDelta {
				perChunk, twoBit = 7, true
				break
			}
		}
		end := i + perChunk
		if end > len(symbols) {
			end = len(symbols)
		}
		var chunk uint16 = 0x8000
		if twoBit {
			chunk |= 0x4000
		}
		for k := i; k < end; k++ {
			if twoBit {
				chunk |= uint16(symbols[k]) << uint(2*(6-(k-i)))
			} else if symbols[k] == symbolReceivedSmallDelta {
				chunk |= 1 << uint(13-(k-i))
			}
		}
		bw.WriteU16(chunk)
		i = end
	}
}
