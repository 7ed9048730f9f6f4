// Package overview serves the read side of the hub: cross-platform overview
// statistics, revenue listings, summaries and exports for a date range.
//
// Overviews are computed by the aggregate package from accounts, their
// metric entries and revenue records, and cached in Redis when a client is
// configured. The cache is versioned; Invalidate bumps the version so every
// previously cached overview is ignored.
package overview
