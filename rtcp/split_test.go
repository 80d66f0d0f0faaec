package rtcp

import (
	"testing"

	"github.com/pion/rtcp"
	"github.com/stretchr/testify/require"
)

func TestSplitCompoundRoutesByPTAndFMT(t *testing.T) {
	sr := BuildSenderReport(1, 2, 3, 4, 5)
	nack := BuildNack(1, 2, []uint16{10})
	data, err := Marshal([]rtcp.Packet{sr, nack})
	require.NoError(t, err)

	raw, err := SplitCompound(data)
	require.NoError(t, err)
	require.Len(t, raw, 2)

	require.False(t, raw[0].IsNack())
	require.False(t, raw[0].IsTWCCFeedback())
	require.True(t, raw[1].IsNack())
}

func TestSplitCompoundTruncated(t *testing.T) {
	_, err := SplitCompound([]byte{0x80, 0xc8, 0x00})
	require.Error(t, err)
}
