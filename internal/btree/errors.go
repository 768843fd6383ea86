package btree

import "errors"

var (
	// ErrNullKey is returned when a NULL key is inserted. NULLs are never
	// indexed; callers skip them.
	ErrNullKey = errors.New("btree: NULL key")

	// ErrInvalidOrder rejects branching factors below 3.
	ErrInvalidOrder = errors.New("btree: order must be at least 3")
)
