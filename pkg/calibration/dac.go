package calibration

import (
	"fmt"
	"time"
)

const (
	// RegDACControl is the write-only register that selects a DAC and sets its code.
	RegDACControl uint32 = 327689
	// RegFreqCount is the free-running frequency counter.
	RegFreqCount uint32 = 5
	// RegGPSCount is the GPS-PPS disciplined frequency counter.
	RegGPSCount uint32 = 13

	// MaxDACValue is the largest code accepted by the 16-bit DACs.
	MaxDACValue uint32 = 1<<16 - 1

	// CountingWindow is the gateware counter update period: 2^27 cycles of the
	// 125 MHz reference.
	CountingWindow = (1 << 27) * 8 * time.Nanosecond
	// DefaultPause is slightly longer than one CountingWindow, so a fully
	// elapsed window is captured after every DAC change.
	DefaultPause = 1100 * time.Millisecond
)

// Channel selects one of the two DACs on the board.
// DAC1 tunes the precision 25 MHz VCXO.
type Channel int

const (
	DAC1 Channel = 1
	DAC2 Channel = 2
)

var channelPrefix = map[Channel]uint32{
	DAC1: 0x10000,
	DAC2: 0x20000,
}

// Valid reports whether c names a DAC on the board.
func (c Channel) Valid() bool {
	_, ok := channelPrefix[c]
	return ok
}

// Prefix returns the address-space prefix OR'd into the DAC code.
func (c Channel) Prefix() (uint32, error) {
	p, ok := channelPrefix[c]
	if !ok {
		return 0, fmt.Errorf("%w: %d (must be 1 or 2)", ErrInvalidChannel, int(c))
	}
	return p, nil
}

func (c Channel) String() string {
	return fmt.Sprintf("DAC%d", int(c))
}

// EncodeDAC returns the value written to RegDACControl to set channel to value.
// Codes above MaxDACValue are rejected rather than truncated, because the
// prefix bits sit directly above the 16-bit value field.
func EncodeDAC(channel Channel, value uint32) (uint32, error) {
	prefix, err := channel.Prefix()
	if err != nil {
		return 0, err
	}
	if value > MaxDACValue {
		return 0, fmt.Errorf("%w: %d (must be 0..%d)", ErrValueOutOfRange, value, MaxDACValue)
	}
	return value | prefix, nil
}
