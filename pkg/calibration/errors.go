package calibration

import "errors"

var (
	// ErrInvalidChannel is returned when the DAC channel is not 1 or 2.
	ErrInvalidChannel = errors.New("invalid DAC channel")

	// ErrValueOutOfRange is returned when a DAC value does not fit in the 16-bit field.
	ErrValueOutOfRange = errors.New("DAC value out of range")

	// ErrInvalidLadder is returned when ladder parameters cannot produce a sweep.
	ErrInvalidLadder = errors.New("invalid sweep ladder")
)
