package twcc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFeedbackRoundTripSmallDeltaRun(t *testing.T) {
	// Scenario S3: 14 video packets, TWCC seqs 200..213, reported received
	// 1ms apart (4 units of 250us each).
	entries := make([]Entry, 14)
	for i := range entries {
		entries[i] = Entry{
			Seq:                uint16(200 + i),
			Status:             StatusReceivedSmallDelta,
			ReceivedTimeMicros: int64(1+i) * 1000,
		}
	}

	data, err := BuildFeedback(0x1111, 0x2222, 200, 0, 1, entries)
	require.NoError(t, err)

	fb, err := ParseFeedback(data)
	require.NoError(t, err)
	require.EqualValues(t, 200, fb.BaseSeq)
	require.EqualValues(t, 14, fb.StatusCount)
	require.Len(t, fb.Entries, 14)

	for i, e := range fb.Entries {
		require.EqualValues(t, 200+i, e.Seq)
		require.Equal(t, StatusReceivedSmallDelta, e.Status)
		require.InDelta(t, entries[i].ReceivedTimeMicros, e.ReceivedTimeMicros, 250)
	}
}

func TestFeedbackRoundTripMixedStatuses(t *testing.T) {
	entries := []Entry{
		{Seq: 10, Status: StatusNotReceived},
		{Seq: 11, Status: StatusReceivedSmallDelta, ReceivedTimeMicros: 1000},
		{Seq: 12, Status: StatusNotReceived},
		{Seq: 13, Status: StatusReceivedLargeDelta, ReceivedTimeMicros: 50000},
	}
	data, err := BuildFeedback(1, 2, 10, 0, 0, entries)
	require.NoError(t, err)

	fb, err := ParseFeedback(data)
	require.NoError(t, err)
	require.Len(t, fb.Entries, 4)
	require.Equal(t, StatusNotReceived, fb.Entries[0].Status)
	require.Equal(t, StatusReceivedSmallDelta, fb.Entries[1].Status)
	require.Equal(t, StatusNotReceived, fb.Entries[2].Status)
	require.Equal(t, StatusReceivedLargeDelta, fb.Entries[3].Status)
}

func TestHistorySlidingWindowEvictsOldest(t *testing.T) {
	h := NewHistory()
	for seq := 0; seq < RingSize+10; seq++ {
		h.Save(PublishPacket{Seq: uint16(seq), SentTimeMicros: int64(seq)})
	}
	minSeq, maxSeq, ok := h.Bounds()
	require.True(t, ok)
	require.EqualValues(t, 10, minSeq)
	require.EqualValues(t, RingSize+9, maxSeq)

	_, found := h.Get(5)
	require.False(t, found)
	_, found = h.Get(10)
	require.True(t, found)
}

func TestPipelineLossAndBandwidth(t *testing.T) {
	p := NewPipeline(true, nil, nil)
	for i := 0; i < 40; i++ {
		seq := p.OnBeforeGeneratingRtpPacket()
		p.OnBeforeSendingRtpPacket(seq, MediaVideo, 0, 1200, 1212, 1228)
	}

	entries := make([]Entry, 40)
	for i := range entries {
		entries[i] = Entry{Seq: uint16(i), Status: StatusReceivedSmallDelta, ReceivedTimeMicros: int64(i+1) * 25000}
	}
	data, err := BuildFeedback(1, 2, 0, 0, 0, entries)
	require.NoError(t, err)

	result, err := p.OnReceivedRtcpPacket(data)
	require.NoError(t, err)
	require.True(t, result.Stats.HasBandwidthEstimate)
	require.Greater(t, result.Stats.BandwidthActualKbps, 0.0)
}

func TestPacingSpreadFallsBackToDefaultWithoutEstimate(t *testing.T) {
	p := NewPipeline(true, nil, nil)
	spread := p.GetPacingSpreadMillis(50000, 1.0, 15)
	require.Equal(t, 15.0, spread)
}
