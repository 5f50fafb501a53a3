package aqueduct

import "errors"

var (
	// ErrInvalidValueType is returned when a setpoint, recordable or input is
	// given a value or dtype outside the supported kinds.
	ErrInvalidValueType = errors.New("invalid value type")

	// ErrInvalidTimeout is returned when a prompt or input is created with a
	// negative or non-numeric timeout.
	ErrInvalidTimeout = errors.New("invalid timeout")

	// ErrUnknownRecordName is returned by the explicit Remove* calls when no
	// record with that name is registered. Dispose swallows it.
	ErrUnknownRecordName = errors.New("unknown record name")

	// ErrEmptyName is returned when a setpoint or recordable has no name.
	ErrEmptyName = errors.New("record name cannot be empty")
)
