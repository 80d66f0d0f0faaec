package srtc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewTrackPublishHasPacketizer(t *testing.T) {
	tr := NewTrack(DirectionPublish, MediaVideo, "0", 0xAABBCCDD, 96, CodecH264, 90000, 1000, 5000)
	require.NotNil(t, tr.Packetizer())
	require.Equal(t, uint32(90000), tr.Packetizer().ClockRate())

	tr.SetRtx(0x11223344, 97)
	require.True(t, tr.HasRtx)
	require.EqualValues(t, 97, tr.RtxPT)
}

func TestNewTrackSubscribeHasNoPacketizer(t *testing.T) {
	tr := NewTrack(DirectionSubscribe, MediaAudio, "1", 0x1, 111, CodecOpus, 48000, 0, 0)
	require.Nil(t, tr.Packetizer())
}

func TestExtendedValueRollover16(t *testing.T) {
	ev := NewExtendedValue16()
	require.EqualValues(t, 0xFFF0, ev.Extend(0xFFF0))
	require.EqualValues(t, 0x10010, ev.Extend(0x0010))

	got, ok := ev.Get()
	require.True(t, ok)
	require.EqualValues(t, 0x10010, got)
}

func TestExtensionMapLookups(t *testing.T) {
	m := &ExtensionMap{}
	m.Add(1, ExtensionURIMid)
	m.Add(4, ExtensionURIGoogleVLA)

	id, ok := m.IDForURI(ExtensionURIGoogleVLA)
	require.True(t, ok)
	require.EqualValues(t, 4, id)

	uri, ok := m.URIForID(1)
	require.True(t, ok)
	require.Equal(t, ExtensionURIMid, uri)

	_, ok = m.IDForURI("urn:unknown")
	require.False(t, ok)
}
