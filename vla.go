package srtc

import "github.com/kmansoft/srtc-go/internal/bytesio"

// BuildGoogleVLA encodes the Google Video Layers Allocation header
// extension payload for one simulcast layer list, per spec.md section 6:
// first byte (rid_index<<6)|((num_layers-1)<<4)|0x01, then a reserved
// zero byte, then each layer's kilobit-per-second as LEB128, then for
// each layer width-1 and height-1 as big-endian u16 followed by the frame
// rate as u8. Grounded on original_source/test_google_vla.cpp's
// RtpExtensionBuilder::addGoogleVLA expectations and on
// src/rtp_extension_builder.cpp's layout.
func BuildGoogleVLA(ridIndex int, layers []SimulcastLayer) []byte {
	if len(layers) == 0 {
		return nil
	}

	buf := &bytesio.Buffer{}
	w := bytesio.NewWriter(buf)

	header := byte(ridIndex&0x03)<<6 | byte((len(layers)-1)&0x0F)<<4 | 0x01
	w.WriteU8(header)
	w.WriteU8(0)

	for _, l := range layers {
		w.WriteLEB128(uint64(l.KilobitPerSecond))
	}
	for _, l := range layers {
		w.WriteU16(l.Width - 1)
		w.WriteU16(l.Height - 1)
		w.WriteU8(uint8(l.FramesPerSecond))
	}

	return buf.Bytes()
}
