package rtppacket

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderAndPayloadRoundTripsThroughParse(t *testing.T) {
	p := New(Params{
		SSRC:           0x12345678,
		PayloadType:    96,
		SequenceNumber: 1000,
		Timestamp:      90000,
		Marker:         true,
		Extensions:     []Extension{{ID: 1, Payload: []byte{0x01, 0x02, 0x03}}},
		Payload:        []byte("hello rtp"),
	})

	header, payload, err := p.HeaderAndPayload()
	require.NoError(t, err)

	wire := append(append([]byte{}, header...), payload...)
	got, err := Parse(wire)
	require.NoError(t, err)

	assert.Equal(t, p.SSRC, got.SSRC)
	assert.Equal(t, p.PayloadType, got.PayloadType)
	assert.Equal(t, p.SequenceNumber, got.SequenceNumber)
	assert.Equal(t, p.Timestamp, got.Timestamp)
	assert.Equal(t, p.Marker, got.Marker)
	assert.Equal(t, p.Payload, got.Payload)
	require.Len(t, got.Extensions, 1)
	assert.Equal(t, uint8(1), got.Extensions[0].ID)
	assert.Equal(t, []byte{0x01, 0x02, 0x03}, got.Extensions[0].Payload)
}

func TestMarshalAppliesPadding(t *testing.T) {
	p := New(Params{
		SSRC:           1,
		PayloadType:    100,
		SequenceNumber: 1,
		Timestamp:      1,
		Payload:        []byte{0xAA, 0xBB},
		PaddingSize:    4,
	})

	wire, err := p.Marshal()
	require.NoError(t, err)

	got, err := Parse(wire)
	require.NoError(t, err)
	assert.Equal(t, uint8(4), got.PaddingSize)
	assert.Equal(t, []byte{0xAA, 0xBB}, got.Payload)
}

func TestBuildRTXPrependsOriginalSequence(t *testing.T) {
	p := New(Params{
		SSRC:           1,
		PayloadType:    96,
		SequenceNumber: 42,
		Timestamp:      1000,
		Marker:         true,
		Payload:        []byte("media"),
	})

	rtx := p.BuildRTX(2, 97, 7)
	assert.Equal(t, uint32(2), rtx.SSRC)
	assert.Equal(t, uint8(97), rtx.PayloadType)
	assert.Equal(t, uint16(7), rtx.SequenceNumber)
	assert.Equal(t, p.Timestamp, rtx.Timestamp)
	assert.Equal(t, p.Marker, rtx.Marker)

	seq, payload, err := UnwrapRTX(rtx.Payload)
	require.NoError(t, err)
	assert.Equal(t, uint16(42), seq)
	assert.Equal(t, []byte("media"), payload)
}

func TestUnwrapRTXRejectsTooShortPayload(t *testing.T) {
	_, _, err := UnwrapRTX([]byte{0x01})
	assert.Error(t, err)
}

func TestPacketizerAssignsIncrementingSequenceAndSharedTimestamp(t *testing.T) {
	pz := NewPacketizer(0xAABBCCDD, 96, 48000, 1000, 5000)

	p1 := pz.Build([]byte("a"), false, nil, 0)
	p2 := pz.Build([]byte("b"), false, nil, 0)

	assert.Equal(t, uint16(1000), p1.SequenceNumber)
	assert.Equal(t, uint16(1001), p2.SequenceNumber)
	assert.Equal(t, uint32(5000), p1.Timestamp)
	assert.Equal(t, uint32(5000), p2.Timestamp)

	pz.AdvanceTimestamp(960)
	p3 := pz.Build([]byte("c"), false, nil, 0)
	assert.Equal(t, uint16(1002), p3.SequenceNumber)
	assert.Equal(t, uint32(5960), p3.Timestamp)
}

func TestPacketizerSequenceWrapsAt16Bits(t *testing.T) {
	pz := NewPacketizer(1, 96, 48000, 0xFFFF, 0)
	p1 := pz.Build(nil, false, nil, 0)
	p2 := pz.Build(nil, false, nil, 0)

	assert.Equal(t, uint16(0xFFFF), p1.SequenceNumber)
	assert.Equal(t, uint16(0), p2.SequenceNumber)
}
