package overview

import "errors"

// Sentinel errors for the overview service layer.
var (
	ErrInvalidRange = errors.New("invalid date range")
)
