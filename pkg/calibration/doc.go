// Package calibration defines the types and the arithmetic used by the VCXO
// characterization sweep. It contains:
//
//   - Channel and the DAC write encoding (EncodeDAC)
//   - Mode: the two frequency-counter measurement modes and their ppm conversion
//   - Ladder: the saturating sequence of DAC control values visited by a sweep
//   - SweepPoint / SweepResult: the in-memory result of one sweep
//   - Phase / Status: a synthesized view model used by the monitor
//
// These types are shared across the controller, reporter and monitor code to
// avoid duplicate definitions and keep JSON contracts consistent.
package calibration
