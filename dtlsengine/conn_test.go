package dtlsengine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDatagramConnFeedAndRead(t *testing.T) {
	var sent [][]byte
	c := newDatagramConn(func(data []byte) error {
		cp := append([]byte(nil), data...)
		sent = append(sent, cp)
		return nil
	})
	defer c.Close()

	require.NoError(t, c.Feed([]byte{1, 2, 3}))

	buf := make([]byte, 16)
	n, err := c.Read(buf)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, buf[:n])

	n, err = c.Write([]byte{4, 5})
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, [][]byte{{4, 5}}, sent)
}
