package srtc

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func hexNoColon(s string) string {
	return strings.ReplaceAll(s, ":", "")
}

func TestBuildGoogleVLA(t *testing.T) {
	layers := []SimulcastLayer{
		{Name: "low", Width: 320, Height: 180, FramesPerSecond: 15, KilobitPerSecond: 500},
		{Name: "mid", Width: 640, Height: 360, FramesPerSecond: 15, KilobitPerSecond: 1500},
		{Name: "high", Width: 1280, Height: 720, FramesPerSecond: 15, KilobitPerSecond: 2500},
	}

	expected := []string{
		"21:00:f4:03:dc:0b:c4:13:01:3f:00:b3:0f:02:7f:01:67:0f:04:ff:02:cf:0f",
		"61:00:f4:03:dc:0b:c4:13:01:3f:00:b3:0f:02:7f:01:67:0f:04:ff:02:cf:0f",
		"a1:00:f4:03:dc:0b:c4:13:01:3f:00:b3:0f:02:7f:01:67:0f:04:ff:02:cf:0f",
	}

	for i := 0; i < 3; i++ {
		got := BuildGoogleVLA(i, layers)
		want, err := hex.DecodeString(hexNoColon(expected[i]))
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestBuildGoogleVLAEmpty(t *testing.T) {
	require.Nil(t, BuildGoogleVLA(0, nil))
}
