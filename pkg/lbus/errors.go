package lbus

import "errors"

var (
	// ErrTimeout is returned when the device does not answer within the read deadline.
	ErrTimeout = errors.New("lbus: timed out waiting for reply")

	// ErrMalformedReply is returned when a reply does not match its request.
	ErrMalformedReply = errors.New("lbus: malformed reply")

	// ErrMalformedPacket is returned when a datagram cannot be decoded.
	ErrMalformedPacket = errors.New("lbus: malformed packet")

	// ErrNotOpen is returned when exchanging on a connection that is not open.
	ErrNotOpen = errors.New("lbus: connection not open")

	// ErrInvalidAddress is returned for addresses that do not fit in 24 bits.
	ErrInvalidAddress = errors.New("lbus: address out of range")

	// ErrBadRequest is returned for malformed exchange arguments.
	ErrBadRequest = errors.New("lbus: bad request")
)
