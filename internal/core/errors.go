package core

import "errors"

// Error kinds produced by ingestion. They are wrapped with context via %w and
// tested with errors.Is; none of them is fatal to the poller.
var (
	// ErrSourceUnreachable covers a missing or unopenable file and any remote
	// transport or authentication failure.
	ErrSourceUnreachable = errors.New("source unreachable")

	// ErrMalformedRow marks a single row that failed to parse. The row is
	// skipped and ingestion of the remaining rows continues.
	ErrMalformedRow = errors.New("malformed row")

	// ErrInvalidReference is returned when a spreadsheet URL has no "d" path
	// segment followed by an identifier.
	ErrInvalidReference = errors.New("invalid spreadsheet reference")
)
