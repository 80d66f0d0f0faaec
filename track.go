package srtc

import (
	"github.com/kmansoft/srtc-go/rtppacket"
)

// Direction is a track's data flow relative to this client.
type Direction int

const (
	DirectionPublish Direction = iota
	DirectionSubscribe
)

// MediaType is a track's media kind. Grounded on
// original_source/include/srtc/srtc.h's MediaType enum.
type MediaType int

const (
	MediaNone MediaType = iota
	MediaVideo
	MediaAudio
)

// Codec identifies the payload codec, per
// original_source/include/srtc/srtc.h's Codec enum; Rtx is the
// pseudo-codec value used internally for a track's RTX payload type.
type Codec int

const (
	CodecNone Codec = iota
	CodecH264 Codec = 1
	CodecOpus Codec = 100
	CodecRtx  Codec = 200
)

// CodecOptions carries the handful of codec-specific SDP fmtp
// parameters the core cares about without being a full fmtp parser,
// per spec.md section 3.
type CodecOptions struct {
	ProfileLevelID string // H.264 profile-level-id
	Minptime       int    // Opus minptime
	Stereo         bool   // Opus stereo
}

// Track is a media stream identity: direction, media type, SDP mid,
// primary and optional RTX SSRC/PT, codec, clock rate, NACK/PLI support,
// and optional simulcast layer. Immutable once constructed during answer
// parsing; holds mutable sub-objects (packetizer, TrackStats) whose
// lifetime equals the peer connection's. Grounded on spec.md section 3
// and original_source/include/srtc/track.h's Track.
type Track struct {
	Direction Direction
	Media     MediaType
	Mid       string

	SSRC uint32
	PT   uint8

	HasRtx  bool
	RtxSSRC uint32
	RtxPT   uint8

	Codec        Codec
	CodecOptions CodecOptions
	ClockRate    uint32

	NackSupported bool
	PliSupported  bool

	Simulcast *SimulcastLayer

	stats      *TrackStats
	packetizer *rtppacket.Packetizer
	nextRtxSeq uint16
}

// NewTrack constructs an immutable Track and its mutable sub-objects.
// startSeq/startTimestamp seed the packetizer (publish tracks only; a
// subscribe track's packetizer is nil).
func NewTrack(dir Direction, media MediaType, mid string, ssrc uint32, pt uint8, codec Codec, clockRate uint32, startSeq, startTimestamp uint32) *Track {
	t := &Track{
		Direction: dir,
		Media:     media,
		Mid:       mid,
		SSRC:      ssrc,
		PT:        pt,
		Codec:     codec,
		ClockRate: clockRate,
		stats:     NewTrackStats(),
	}
	if dir == DirectionPublish {
		t.packetizer = rtppacket.NewPacketizer(ssrc, pt, clockRate, startSeq, startTimestamp)
	}
	return t
}

// SetRtx equips the track with an RTX SSRC/PT pair, per RFC 4588.
func (t *Track) SetRtx(rtxSSRC uint32, rtxPT uint8) {
	t.HasRtx = true
	t.RtxSSRC = rtxSSRC
	t.RtxPT = rtxPT
}

// Stats returns this track's counters and sender-report state.
func (t *Track) Stats() *TrackStats {
	return t.stats
}

// Packetizer returns this track's outgoing packetizer, or nil for a
// subscribe track.
func (t *Track) Packetizer() *rtppacket.Packetizer {
	return t.packetizer
}

// PrimarySSRC returns the track's primary SSRC, satisfying
// candidate.TrackSink. Named PrimarySSRC (not SSRC) because SSRC is
// already an exported field.
func (t *Track) PrimarySSRC() uint32 {
	return t.SSRC
}

// PayloadType returns the track's primary RTP payload type, satisfying
// candidate.TrackSink.
func (t *Track) PayloadType() uint8 {
	return t.PT
}

// IsVideo reports whether this track carries video, satisfying
// candidate.TrackSink.
func (t *Track) IsVideo() bool {
	return t.Media == MediaVideo
}

// HasNack reports whether NACK-based loss recovery applies to this
// track: either the negotiated nack flag or an RTX payload type, per
// spec.md section 3's send-history invariant.
func (t *Track) HasNack() bool {
	return t.NackSupported || t.HasRtx
}

// RtxInfo returns the track's RTX SSRC/PT pair, satisfying
// candidate.TrackSink. Named RtxInfo (not RtxSSRC) because RtxSSRC is
// already an exported field.
func (t *Track) RtxInfo() (ssrc uint32, pt uint8, ok bool) {
	if !t.HasRtx {
		return 0, 0, false
	}
	return t.RtxSSRC, t.RtxPT, true
}

// NextRtxSeq allocates the next RTX sequence number for this track's RTX
// stream, satisfying candidate.TrackSink.
func (t *Track) NextRtxSeq() uint16 {
	seq := t.nextRtxSeq
	t.nextRtxSeq++
	return seq
}

// IncrementSentPackets adds n to this track's sent-packet counter,
// satisfying candidate.TrackSink.
func (t *Track) IncrementSentPackets(n uint32) {
	t.stats.IncrementSentPackets(n)
}

// IncrementSentBytes adds n to this track's sent-byte counter, satisfying
// candidate.TrackSink.
func (t *Track) IncrementSentBytes(n uint32) {
	t.stats.IncrementSentBytes(n)
}
