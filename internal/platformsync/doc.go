// Package platformsync pulls per-account metric entries from platform sources
// into storage.
//
// A sync round lists active accounts, asks the source registered for each
// account's platform for entries in the lookback window and stores them. A
// failing account is logged, counted and reported; it never blocks the
// others. Rounds are guarded by a distributed lock so a fleet of workers
// syncs at most once at a time.
package platformsync
