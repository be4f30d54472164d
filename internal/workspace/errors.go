package workspace

import "errors"

// Structural errors are synchronous and pre-mutation: when one of these
// comes back from Apply, the workspace is provably unchanged.
var (
	ErrNotFound         = errors.New("not found")
	ErrContractMismatch = errors.New("contract mismatch")
	ErrPortOccupied     = errors.New("input port occupied")
	ErrCycleDetected    = errors.New("cycle detected")
	ErrNotSettable      = errors.New("node kind does not accept direct values")
	ErrViewExists       = errors.New("view already exists")
)
