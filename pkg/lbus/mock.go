package lbus

import (
	"fmt"
	"sync"
)

var _ Connection = &MockConnection{}

// MockConnection is an in-memory register file. Unset registers read as zero.
// Every transaction is appended to a journal that tests can inspect.
type MockConnection struct {
	mu      sync.Mutex
	regs    map[uint32]uint32
	journal []Op
	open    bool
}

// NewMockConnection returns an empty register file.
func NewMockConnection() *MockConnection {
	return &MockConnection{
		regs: make(map[uint32]uint32),
	}
}

// Set stores a register value without recording a transaction.
func (m *MockConnection) Set(addr, value uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.regs[addr] = value
}

// Get returns a register value without recording a transaction.
func (m *MockConnection) Get(addr uint32) uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.regs[addr]
}

// Journal returns a copy of all transactions so far.
func (m *MockConnection) Journal() []Op {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Op(nil), m.journal...)
}

// IsOpen reports whether Open was called without a matching Close.
func (m *MockConnection) IsOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.open
}

func (m *MockConnection) Open() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open = true
	return nil
}

func (m *MockConnection) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open = false
	return nil
}

func (m *MockConnection) Exchange(addrs []uint32, values []uint32) ([]uint32, error) {
	if values != nil && len(values) != len(addrs) {
		return nil, fmt.Errorf("%w: %d addresses but %d values", ErrBadRequest, len(addrs), len(values))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.open {
		return nil, ErrNotOpen
	}

	out := make([]uint32, len(addrs))
	for i, a := range addrs {
		if values == nil {
			out[i] = m.regs[a]
			m.journal = append(m.journal, Op{Read: true, Addr: a, Data: out[i]})
			continue
		}
		m.regs[a] = values[i]
		out[i] = values[i]
		m.journal = append(m.journal, Op{Addr: a, Data: values[i]})
	}
	return out, nil
}

// ReadRegister lets a MockConnection back a Server.
func (m *MockConnection) ReadRegister(addr uint32) uint32 {
	return m.Get(addr)
}

// WriteRegister lets a MockConnection back a Server.
func (m *MockConnection) WriteRegister(addr uint32, value uint32) {
	m.Set(addr, value)
}
