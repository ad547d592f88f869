package lbus

// Connection is a transport able to run a batch of register transactions.
// When values is nil every address is read; otherwise values must have the
// same length as addrs and every address is written. The returned slice has
// one data word per address.
type Connection interface {
	Open() error
	Close() error
	Exchange(addrs []uint32, values []uint32) ([]uint32, error)
}
