package datanorm

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrEmptyFile         = errors.New("file is empty")
	ErrMappingIncomplete = errors.New("date and revenue columns must both be mapped")
	ErrDuplicateMapping  = errors.New("column or field mapped more than once")
	ErrUnknownField      = errors.New("unknown canonical field")
	ErrUnknownColumn     = errors.New("mapped column not found")
)

// ParseError aborts an ingest. It carries the underlying parser message.
type ParseError struct {
	Kind FileKind
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Kind, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// RowErrorKind classifies a rejected row.
type RowErrorKind string

const (
	RowMissingField   RowErrorKind = "missing_field"
	RowInvalidDate    RowErrorKind = "invalid_date"
	RowInvalidRevenue RowErrorKind = "invalid_revenue"
)

// RowError describes one skipped row. Row is 1-indexed from the first data row.
type RowError struct {
	Row  int
	Kind RowErrorKind
	Raw  string
}

func (e RowError) Error() string {
	switch e.Kind {
	case RowMissingField:
		return fmt.Sprintf("Row %d: missing date or revenue", e.Row)
	case RowInvalidDate:
		return fmt.Sprintf("Row %d: invalid date format (%s)", e.Row, e.Raw)
	case RowInvalidRevenue:
		return fmt.Sprintf("Row %d: invalid revenue (%s)", e.Row, e.Raw)
	default:
		return fmt.Sprintf("Row %d: %s", e.Row, e.Kind)
	}
}
