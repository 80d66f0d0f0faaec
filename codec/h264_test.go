package codec

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kmansoft/srtc-go/jitter"
)

func nal(naluType uint8, body ...byte) []byte {
	return append([]byte{naluType}, body...)
}

func TestClassifyH264(t *testing.T) {
	require.Equal(t, jitter.KindStandalone, ClassifyH264(nal(naluTypeSTAPA)))
	require.Equal(t, jitter.KindStandalone, ClassifyH264(nal(naluTypeKeyFrame, 0xAA)))
	require.Equal(t, jitter.KindStart, ClassifyH264([]byte{naluTypeFUA, 0x80 | naluTypeKeyFrame}))
	require.Equal(t, jitter.KindMiddle, ClassifyH264([]byte{naluTypeFUA, naluTypeKeyFrame}))
	require.Equal(t, jitter.KindEnd, ClassifyH264([]byte{naluTypeFUA, 0x40 | naluTypeKeyFrame}))
}

func keyFrameSequence(d *H264Depacketizer, ts uint64) {
	d.Feed(&jitter.Item{Kind: jitter.KindStandalone, RTPTimestampExt: ts, Marker: false, Payload: nal(naluTypeSPS, 1, 2)})
	d.Feed(&jitter.Item{Kind: jitter.KindStandalone, RTPTimestampExt: ts, Marker: false, Payload: nal(naluTypePPS, 3, 4)})
}

func TestH264DepacketizerGatesUntilKeyFrame(t *testing.T) {
	d := NewH264Depacketizer()

	out := d.Feed(&jitter.Item{Kind: jitter.KindStandalone, RTPTimestampExt: 1, Marker: true, Payload: nal(naluTypeNonKeyFrame, 9)})
	require.Nil(t, out)

	keyFrameSequence(d, 1)
	out = d.Feed(&jitter.Item{Kind: jitter.KindStandalone, RTPTimestampExt: 1, Marker: true, Payload: nal(naluTypeKeyFrame, 5, 6)})
	require.Len(t, out, 1)

	frame := out[0]
	expectedPrefix := append(append([]byte{}, annexBStartCode[:]...), nal(naluTypeSPS, 1, 2)...)
	require.Equal(t, expectedPrefix, frame[:len(expectedPrefix)])
}

func TestH264DepacketizerUnbundlesStapA(t *testing.T) {
	d := NewH264Depacketizer()
	keyFrameSequence(d, 5)

	spsNal := nal(naluTypeSPS, 0xAA)
	ppsNal := nal(naluTypePPS, 0xBB)
	stap := []byte{naluTypeSTAPA}
	stap = append(stap, byte(len(spsNal)>>8), byte(len(spsNal)))
	stap = append(stap, spsNal...)
	stap = append(stap, byte(len(ppsNal)>>8), byte(len(ppsNal)))
	stap = append(stap, ppsNal...)

	out := d.Feed(&jitter.Item{Kind: jitter.KindStandalone, RTPTimestampExt: 5, Marker: false, Payload: stap})
	require.Nil(t, out)

	out = d.Feed(&jitter.Item{Kind: jitter.KindStandalone, RTPTimestampExt: 5, Marker: true, Payload: nal(naluTypeKeyFrame, 1)})
	require.Len(t, out, 1)
}

func TestH264DepacketizerReassemblesFUA(t *testing.T) {
	d := NewH264Depacketizer()
	keyFrameSequence(d, 9)

	indicator := byte(0x60) // nri bits
	start := []byte{indicator | naluTypeFUA, 0x80 | naluTypeKeyFrame, 0x01, 0x02}
	mid := []byte{indicator | naluTypeFUA, naluTypeKeyFrame, 0x03, 0x04}
	end := []byte{indicator | naluTypeFUA, 0x40 | naluTypeKeyFrame, 0x05}

	require.Nil(t, d.Feed(&jitter.Item{Kind: jitter.KindStart, RTPTimestampExt: 9, Payload: start}))
	require.Nil(t, d.Feed(&jitter.Item{Kind: jitter.KindMiddle, RTPTimestampExt: 9, Payload: mid}))
	out := d.Feed(&jitter.Item{Kind: jitter.KindEnd, RTPTimestampExt: 9, Marker: true, Payload: end})

	require.Len(t, out, 1)
	// The SPS and PPS fed by keyFrameSequence share RTP timestamp 9, so they
	// lead the same access unit; the reassembled NAL follows them.
	var expected []byte
	expected = append(expected, annexBStartCode[:]...)
	expected = append(expected, nal(naluTypeSPS, 1, 2)...)
	expected = append(expected, annexBStartCode[:]...)
	expected = append(expected, nal(naluTypePPS, 3, 4)...)
	expected = append(expected, annexBStartCode[:]...)
	expected = append(expected, indicator|naluTypeKeyFrame, 0x01, 0x02, 0x03, 0x04, 0x05)
	require.Equal(t, expected, out[0])
}
