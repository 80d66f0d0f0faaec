package bytesio

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriterReaderRoundTrip(t *testing.T) {
	buf := NewBuffer(16)
	w := NewWriter(buf)
	w.WriteU8(0x12)
	w.WriteU16(0x3456)
	w.WriteU32(0x789abcde)
	w.WriteBytes([]byte{1, 2, 3})

	r := NewReader(buf.Bytes())

	u8, err := r.ReadU8()
	require.NoError(t, err)
	require.Equal(t, uint8(0x12), u8)

	u16, err := r.ReadU16()
	require.NoError(t, err)
	require.Equal(t, uint16(0x3456), u16)

	u32, err := r.ReadU32()
	require.NoError(t, err)
	require.Equal(t, uint32(0x789abcde), u32)

	rest, err := r.ReadBytes(3)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, rest)

	require.Equal(t, 0, r.Remaining())
}

func TestLEB128RoundTrip(t *testing.T) {
	values := []uint64{0, 1, 127, 128, 300, 16384, 1 << 40}
	for _, v := range values {
		buf := NewBuffer(16)
		w := NewWriter(buf)
		w.WriteLEB128(v)

		r := NewReader(buf.Bytes())
		got, err := r.ReadLEB128()
		require.NoError(t, err)
		require.Equal(t, v, got, "value %d", v)
	}
}

func TestReadI24SignExtends(t *testing.T) {
	r := NewReader([]byte{0xff, 0xff, 0xff})
	v, err := r.ReadI24()
	require.NoError(t, err)
	require.Equal(t, int32(-1), v)

	r2 := NewReader([]byte{0x00, 0x00, 0x01})
	v2, err := r2.ReadI24()
	require.NoError(t, err)
	require.Equal(t, int32(1), v2)
}

func TestBitReader(t *testing.T) {
	// 0xB5 = 1011 0101
	r := NewBitReader([]byte{0xB5})
	forbidden, err := r.ReadBit()
	require.NoError(t, err)
	require.Equal(t, uint8(1), forbidden)

	nri, err := r.ReadBits(2)
	require.NoError(t, err)
	require.Equal(t, uint32(1), nri)

	nalType, err := r.ReadBits(5)
	require.NoError(t, err)
	require.Equal(t, uint32(0x15), nalType)
}
