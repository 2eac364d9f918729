package campaign

import "errors"

// Sentinel errors for the campaign service layer.
var (
	ErrNotFound    = errors.New("campaign not found")
	ErrURLNotFound = errors.New("tracked url not found")
)
