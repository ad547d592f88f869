package lbus

import (
	"encoding/binary"
	"errors"
	"math/rand/v2"
	"net"
	"strconv"
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"
)

const (
	// DefaultPort is the UDP port of the lbus gateware.
	DefaultPort = 803
	// DefaultTimeout is how long to wait for a reply before giving up.
	DefaultTimeout = 1020 * time.Millisecond
)

var _ Connection = &UDPConnection{}

// UDPConnection talks to lbus gateware over UDP. One request is in flight at
// a time.
type UDPConnection struct {
	addr    string
	timeout time.Duration

	mu   sync.Mutex
	conn net.Conn
	buf  []byte
}

// NewUDPConnection returns a connection to host:port. It is not dialed until Open.
func NewUDPConnection(host string, port int, timeout time.Duration) *UDPConnection {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &UDPConnection{
		addr:    net.JoinHostPort(host, strconv.Itoa(port)),
		timeout: timeout,
		buf:     make([]byte, 2048),
	}
}

// Addr returns the remote address in host:port form.
func (c *UDPConnection) Addr() string {
	return c.addr
}

// Open dials the device. Calling Open on an open connection is a no-op.
func (c *UDPConnection) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return nil
	}
	conn, err := net.DialTimeout("udp", c.addr, c.timeout)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to dial %s", c.addr)
	}
	c.conn = conn
	return nil
}

// Close releases the socket.
func (c *UDPConnection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to close connection to %s", c.addr)
	}
	return nil
}

// Exchange sends one request packet and waits for its reply.
func (c *UDPConnection) Exchange(addrs []uint32, values []uint32) ([]uint32, error) {
	ops, err := buildOps(addrs, values)
	if err != nil {
		return nil, err
	}
	req := &Packet{Ops: ops}
	binary.BigEndian.PutUint64(req.Nonce[:], rand.Uint64())

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil, ErrNotOpen
	}

	if _, err := c.conn.Write(req.Marshal()); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to send request to %s", c.addr)
	}

	if err := c.conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to set read deadline")
	}
	n, err := c.conn.Read(c.buf)
	if err != nil {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return nil, pkgerrors.Wrapf(ErrTimeout, "no reply from %s after %s", c.addr, c.timeout)
		}
		return nil, pkgerrors.Wrapf(err, "failed to receive reply from %s", c.addr)
	}

	reply := &Packet{}
	if err := reply.Unmarshal(c.buf[:n]); err != nil {
		return nil, pkgerrors.Wrapf(ErrMalformedReply, "reply from %s: %v", c.addr, err)
	}
	return matchReply(req, reply, len(addrs))
}
