package lbus

import (
	"encoding/binary"
	"fmt"
)

// Packet layout, big-endian, identical for requests and replies:
//
//	+----------------+----------------+----------------+---
//	| nonce (8 B)    | ctl (4) data(4)| ctl (4) data(4)| ...
//	+----------------+----------------+----------------+---
//
// ctl bit 28 marks a read; bits 23:0 hold the register address. The device
// echoes the nonce and every control word, filling in data for reads.
const (
	headerLen  = 8
	recordLen  = 8
	minRecords = 3
	// maxRecords fills a 1472-byte UDP payload (1500 MTU).
	maxRecords = (1472 - headerLen) / recordLen

	readFlag = 0x10000000
	addrMask = 0x00ffffff

	// MaxAddress is the highest register address the protocol can carry.
	MaxAddress = addrMask
)

// Op is one register transaction inside a packet.
type Op struct {
	Read bool
	Addr uint32
	Data uint32
}

// Packet is a decoded lbus datagram.
type Packet struct {
	Nonce [headerLen]byte
	Ops   []Op
}

// Marshal encodes the packet.
func (p *Packet) Marshal() []byte {
	b := make([]byte, headerLen+recordLen*len(p.Ops))
	copy(b, p.Nonce[:])
	for i, op := range p.Ops {
		ctl := op.Addr & addrMask
		if op.Read {
			ctl |= readFlag
		}
		off := headerLen + i*recordLen
		binary.BigEndian.PutUint32(b[off:], ctl)
		binary.BigEndian.PutUint32(b[off+4:], op.Data)
	}
	return b
}

// Unmarshal decodes b into the packet.
func (p *Packet) Unmarshal(b []byte) error {
	if len(b) < headerLen || (len(b)-headerLen)%recordLen != 0 {
		return fmt.Errorf("%w: length %d is not a header plus whole records", ErrMalformedPacket, len(b))
	}
	n := (len(b) - headerLen) / recordLen
	if n > maxRecords {
		return fmt.Errorf("%w: %d records exceed the maximum of %d", ErrMalformedPacket, n, maxRecords)
	}
	copy(p.Nonce[:], b[:headerLen])
	p.Ops = make([]Op, n)
	for i := range p.Ops {
		off := headerLen + i*recordLen
		ctl := binary.BigEndian.Uint32(b[off:])
		p.Ops[i] = Op{
			Read: ctl&readFlag != 0,
			Addr: ctl & addrMask,
			Data: binary.BigEndian.Uint32(b[off+4:]),
		}
	}
	return nil
}

// buildOps turns an Exchange call into packet ops, padded to the minimum
// packet size with reads of address 0.
func buildOps(addrs []uint32, values []uint32) ([]Op, error) {
	if len(addrs) == 0 {
		return nil, fmt.Errorf("%w: no addresses", ErrBadRequest)
	}
	if values != nil && len(values) != len(addrs) {
		return nil, fmt.Errorf("%w: %d addresses but %d values", ErrBadRequest, len(addrs), len(values))
	}
	if len(addrs) > maxRecords {
		return nil, fmt.Errorf("%w: %d transactions exceed the maximum of %d", ErrBadRequest, len(addrs), maxRecords)
	}

	ops := make([]Op, 0, max(len(addrs), minRecords))
	for i, a := range addrs {
		if a > MaxAddress {
			return nil, fmt.Errorf("%w: %#x", ErrInvalidAddress, a)
		}
		op := Op{Read: values == nil, Addr: a}
		if values != nil {
			op.Data = values[i]
		}
		ops = append(ops, op)
	}
	for len(ops) < minRecords {
		ops = append(ops, Op{Read: true})
	}
	return ops, nil
}

// matchReply checks that reply answers req and returns the data words of the
// first n transactions.
func matchReply(req, reply *Packet, n int) ([]uint32, error) {
	if reply.Nonce != req.Nonce {
		return nil, fmt.Errorf("%w: nonce mismatch", ErrMalformedReply)
	}
	if len(reply.Ops) != len(req.Ops) {
		return nil, fmt.Errorf("%w: %d records in reply, %d sent", ErrMalformedReply, len(reply.Ops), len(req.Ops))
	}
	out := make([]uint32, n)
	for i := range req.Ops {
		if reply.Ops[i].Read != req.Ops[i].Read || reply.Ops[i].Addr != req.Ops[i].Addr {
			return nil, fmt.Errorf("%w: record %d does not echo its request", ErrMalformedReply, i)
		}
		if i < n {
			out[i] = reply.Ops[i].Data
		}
	}
	return out, nil
}
