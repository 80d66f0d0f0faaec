package srtc

// SimulcastLayer describes one encoding of a simulcast video track: a
// name (the SDP rid), target resolution, frame rate and bitrate, plus
// the ordinal Index this layer occupies in its track's layer list (the
// rid_index written into the Google VLA header extension). Grounded on
// original_source/include/srtc/simulcast_layer.h.
type SimulcastLayer struct {
	Name             string
	Width            uint16
	Height           uint16
	FramesPerSecond  uint16
	KilobitPerSecond uint32
	Index            int
}
