package subscriber

import "errors"

// Sentinel errors for the subscriber service layer.
var (
	ErrNotFound     = errors.New("subscriber not found")
	ErrListNotFound = errors.New("list not found")
)
