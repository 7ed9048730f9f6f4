// Package aggregate rolls platform metric entries and revenue records up into
// date-range-scoped overview statistics.
//
// Everything here is a pure function of its arguments. Given the same inputs
// the results are identical, including floating point totals: sums run over
// shopspring/decimal values in a fixed key order.
package aggregate
