package history

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kmansoft/srtc-go/rtppacket"
)

func makePacket(ssrc uint32, seq uint16) *rtppacket.Packet {
	return rtppacket.New(rtppacket.Params{
		SSRC:           ssrc,
		PayloadType:    96,
		SequenceNumber: seq,
		Timestamp:      1000,
		Payload:        []byte{1, 2, 3},
	})
}

func TestRingSaveAndLookup(t *testing.T) {
	r := NewRing()
	p := makePacket(0x1111, 1023)
	r.Save(p)

	got, ok := r.Lookup(1023)
	require.True(t, ok)
	require.Equal(t, p.SequenceNumber, got.SequenceNumber)
	require.Equal(t, p.Payload, got.Payload)

	_, ok = r.Lookup(1024)
	require.False(t, ok)
}

func TestRingOverwriteBySameSlot(t *testing.T) {
	r := NewRing()
	r.Save(makePacket(0x1111, 5))
	r.Save(makePacket(0x1111, 5+Size))

	// The slot 5%Size now holds seq 5+Size, so the original seq 5 lookup
	// must miss rather than return stale data.
	_, ok := r.Lookup(5)
	require.False(t, ok)

	got, ok := r.Lookup(5 + Size)
	require.True(t, ok)
	require.EqualValues(t, 5+Size, got.SequenceNumber)
}

func TestManagerRebuildForResendPlain(t *testing.T) {
	m := NewManager()
	m.Save(makePacket(0x1111, 1023))

	pkt, ok := m.RebuildForResend(0x1111, 1023, 0, 0, 0)
	require.True(t, ok)
	require.EqualValues(t, 96, pkt.PayloadType)
	require.EqualValues(t, 1023, pkt.SequenceNumber)
}

func TestManagerRebuildForResendRTX(t *testing.T) {
	m := NewManager()
	m.Save(makePacket(0x11112222, 1023))

	pkt, ok := m.RebuildForResend(0x11112222, 1023, 0x33334444, 97, 7)
	require.True(t, ok)
	require.EqualValues(t, 97, pkt.PayloadType)
	require.EqualValues(t, 0x33334444, pkt.SSRC)
	require.EqualValues(t, 7, pkt.SequenceNumber)

	osn, payload, err := rtppacket.UnwrapRTX(pkt.Payload)
	require.NoError(t, err)
	require.EqualValues(t, 1023, osn)
	require.Equal(t, []byte{1, 2, 3}, payload)
}

func TestManagerRebuildForResendMiss(t *testing.T) {
	m := NewManager()
	_, ok := m.RebuildForResend(0x1111, 42, 0, 97, 0)
	require.False(t, ok)
}
