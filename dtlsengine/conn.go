package dtlsengine

import (
	"net"
	"time"

	"github.com/pion/transport/v2/packetio"
)

// SendFunc transmits one outbound datagram (a DTLS record) over the
// caller's actual UDP socket. The candidate package supplies this; this
// package never opens a socket itself, per spec.md section 9's "DTLS BIO"
// external-collaborator contract.
type SendFunc func(data []byte) error

// datagramAddr is a placeholder net.Addr: pion/dtls only uses
// net.Conn.LocalAddr/RemoteAddr for logging, never for routing, since all
// routing here is already resolved by the peer candidate that owns the
// real socket.
type datagramAddr string

func (a datagramAddr) Network() string { return "udp" }
func (a datagramAddr) String() string  { return string(a) }

// datagramConn is a net.Conn backed by a packetio.Buffer for inbound
// datagrams and a caller-supplied SendFunc for outbound ones. This is the
// datagram BIO spec.md section 9 names: it lets pion/dtls, which expects
// a net.Conn, run its handshake and record layer over a peer candidate's
// already-demultiplexed inbound datagram stream.
type datagramConn struct {
	incoming *packetio.Buffer
	send     SendFunc
}

func newDatagramConn(send SendFunc) *datagramConn {
	buf := packetio.NewBuffer()
	buf.SetLimitSize(4 * 1024 * 1024)
	return &datagramConn{incoming: buf, send: send}
}

// Feed enqueues one received datagram for the DTLS engine to read.
func (c *datagramConn) Feed(data []byte) error {
	_, err := c.incoming.Write(data)
	return err
}

func (c *datagramConn) Read(p []byte) (int, error) {
	return c.incoming.Read(p)
}

func (c *datagramConn) Write(p []byte) (int, error) {
	if err := c.send(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (c *datagramConn) Close() error {
	return c.incoming.Close()
}

func (c *datagramConn) LocalAddr() net.Addr  { return datagramAddr("local") }
func (c *datagramConn) RemoteAddr() net.Addr { return datagramAddr("remote") }

func (c *datagramConn) SetDeadline(t time.Time) error {
	return c.incoming.SetReadDeadline(t)
}

func (c *datagramConn) SetReadDeadline(t time.Time) error {
	return c.incoming.SetReadDeadline(t)
}

func (c *datagramConn) SetWriteDeadline(t time.Time) error {
	return nil
}
