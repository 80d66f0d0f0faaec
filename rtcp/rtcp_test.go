package rtcp

import (
	"testing"

	"github.com/pion/rtcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSenderReportRoundTripsThroughCompound(t *testing.T) {
	sr := BuildSenderReport(0x1111, 0x0102030405060708, 90000, 42, 12345)
	data, err := Marshal([]rtcp.Packet{sr})
	require.NoError(t, err)

	pkts, err := ParseCompound(data)
	require.NoError(t, err)
	require.Len(t, pkts, 1)

	got, ok := pkts[0].(*rtcp.SenderReport)
	require.True(t, ok)
	assert.Equal(t, uint32(0x1111), got.SSRC)
	assert.Equal(t, uint32(42), got.PacketCount)
	assert.Equal(t, uint32(12345), got.OctetCount)
}

func TestCNAMERoundTrips(t *testing.T) {
	sdes := BuildCNAME(0x2222, "example-cname")
	data, err := Marshal([]rtcp.Packet{sdes})
	require.NoError(t, err)

	pkts, err := ParseCompound(data)
	require.NoError(t, err)
	require.Len(t, pkts, 1)

	got, ok := pkts[0].(*rtcp.SourceDescription)
	require.True(t, ok)
	require.Len(t, got.Chunks, 1)
	require.Len(t, got.Chunks[0].Items, 1)
	assert.Equal(t, "example-cname", got.Chunks[0].Items[0].Text)
}

func TestNackRoundTripsAndExpandsMissingSequences(t *testing.T) {
	missing := []uint16{10, 11, 13, 40}
	nack := BuildNack(0x3333, 0x4444, missing)

	data, err := Marshal([]rtcp.Packet{nack})
	require.NoError(t, err)

	pkts, err := ParseCompound(data)
	require.NoError(t, err)
	require.Len(t, pkts, 1)

	got, ok := AsNack(pkts[0])
	require.True(t, ok)
	assert.Equal(t, uint32(0x3333), got.SenderSSRC)
	assert.Equal(t, uint32(0x4444), got.MediaSSRC)
	assert.ElementsMatch(t, missing, MissingSequences(got))
}

func TestPLIRoundTrips(t *testing.T) {
	pli := BuildPLI(0x5555, 0x6666)
	data, err := Marshal([]rtcp.Packet{pli})
	require.NoError(t, err)

	pkts, err := ParseCompound(data)
	require.NoError(t, err)
	require.Len(t, pkts, 1)

	got, ok := AsPLI(pkts[0])
	require.True(t, ok)
	assert.Equal(t, uint32(0x5555), got.SenderSSRC)
	assert.Equal(t, uint32(0x6666), got.MediaSSRC)
}

func TestReceiverReportRoundTrips(t *testing.T) {
	rr := BuildReceiverReport(0x7777, rtcp.ReceptionReport{
		SSRC:               0x8888,
		FractionLost:       5,
		TotalLost:          10,
		LastSequenceNumber: 1000,
		Jitter:             50,
	})

	data, err := Marshal([]rtcp.Packet{rr})
	require.NoError(t, err)

	pkts, err := ParseCompound(data)
	require.NoError(t, err)
	require.Len(t, pkts, 1)

	got, ok := AsReceiverReport(pkts[0])
	require.True(t, ok)
	assert.Equal(t, uint32(0x7777), got.SSRC)
	require.Len(t, got.Reports, 1)
	assert.Equal(t, uint32(0x8888), got.Reports[0].SSRC)
	assert.Equal(t, uint32(10), got.Reports[0].TotalLost)
}

func TestCompoundPacketWithMultipleTypes(t *testing.T) {
	sr := BuildSenderReport(1, 2, 3, 4, 5)
	pli := BuildPLI(1, 6)

	data, err := Marshal([]rtcp.Packet{sr, pli})
	require.NoError(t, err)

	pkts, err := ParseCompound(data)
	require.NoError(t, err)
	require.Len(t, pkts, 2)
}
