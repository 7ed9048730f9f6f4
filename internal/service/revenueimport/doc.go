// Package revenueimport runs revenue file imports end to end.
//
// A submitted file is detected, ingested and mapped before anything is
// written. Only then is an ImportBatch created in the processing state; rows
// are normalized, records are stored in chunks with the batch progress
// checkpointed along the way, and the batch is finalized as completed or
// error. Terminal batches are never modified again.
//
// The service depends on the Repository interface in repository.go and on
// optional Archive and Invalidator collaborators. It never imports net/http
// or database/sql directly.
package revenueimport
