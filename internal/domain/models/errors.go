package models

import "errors"

// Error taxonomy of the factor layer. Callers match with errors.Is; every
// returned error wraps exactly one of these.
var (
	// ErrInvalidRange reports a malformed date range (start after end).
	ErrInvalidRange = errors.New("invalid date range")
	// ErrOutOfRange reports a query outside the known calendar bounds.
	ErrOutOfRange = errors.New("date out of calendar range")
	// ErrInvalidDate reports a query point that is not a trading day.
	ErrInvalidDate = errors.New("not a trading day")
	// ErrDataIntegrity reports duplicate keys or undecodable values in storage.
	ErrDataIntegrity = errors.New("data integrity violation")
	// ErrInvalidArgument reports bad numeric parameters.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrUnknownFactor reports a factor name missing from the catalog.
	ErrUnknownFactor = errors.New("unknown factor")
)
