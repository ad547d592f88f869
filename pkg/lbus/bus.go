package lbus

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/charlie0129/vcxoscan/pkg/metrics"
)

// Bus is a wrapper of Connection that logs and meters every transaction.
type Bus struct {
	conn Connection
}

// New returns a Bus talking to the device at host:port over UDP.
func New(host string, port int, timeout time.Duration) *Bus {
	return &Bus{
		conn: NewUDPConnection(host, port, timeout),
	}
}

// NewWithConnection wraps an existing Connection.
func NewWithConnection(conn Connection) *Bus {
	return &Bus{
		conn: conn,
	}
}

// NewMock returns a new mocked Bus with prefill register values.
func NewMock(prefillValues map[uint32]uint32) *Bus {
	conn := NewMockConnection()

	for addr, value := range prefillValues {
		conn.Set(addr, value)
	}

	return &Bus{
		conn: conn,
	}
}

// Connection returns the underlying connection.
func (b *Bus) Connection() Connection {
	return b.conn
}

// Open opens the connection.
func (b *Bus) Open() error {
	return b.conn.Open()
}

// Close closes the connection.
func (b *Bus) Close() error {
	return b.conn.Close()
}

// Exchange runs a batch of transactions; see Connection.
func (b *Bus) Exchange(addrs []uint32, values []uint32) ([]uint32, error) {
	fields := logrus.Fields{
		"addrs":  addrs,
		"values": values,
	}
	logrus.WithFields(fields).Trace("Trying to exchange on lbus")

	start := time.Now()
	ret, err := b.conn.Exchange(addrs, values)
	metrics.RecordExchange(values == nil, len(addrs), time.Since(start), err)
	if err != nil {
		return nil, err
	}

	fields["ret"] = ret
	logrus.WithFields(fields).Trace("Exchange on lbus succeed")

	return ret, nil
}

// Read reads one register.
func (b *Bus) Read(addr uint32) (uint32, error) {
	ret, err := b.Exchange([]uint32{addr}, nil)
	if err != nil {
		return 0, err
	}
	return ret[0], nil
}

// Write writes one register.
func (b *Bus) Write(addr uint32, value uint32) error {
	_, err := b.Exchange([]uint32{addr}, []uint32{value})
	return err
}
