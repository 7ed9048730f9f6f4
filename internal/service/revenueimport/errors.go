package revenueimport

import "errors"

// Sentinel errors for the revenue import service layer.
var (
	ErrNotFound       = errors.New("import batch not found")
	ErrBatchFinalized = errors.New("import batch is already finalized")
)
