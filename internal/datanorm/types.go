package datanorm

import (
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/ignite/metrics-hub/internal/domain"
)

// CellKind tags the variant held by a Cell.
type CellKind uint8

const (
	CellAbsent CellKind = iota
	CellString
	CellNumber
)

// Cell is one loosely typed value read from an uploaded file.
type Cell struct {
	Kind CellKind
	Str  string
	Num  float64
}

func StringCell(s string) Cell  { return Cell{Kind: CellString, Str: s} }
func NumberCell(f float64) Cell { return Cell{Kind: CellNumber, Num: f} }

// IsEmpty reports whether the cell is absent or holds only whitespace.
func (c Cell) IsEmpty() bool {
	switch c.Kind {
	case CellNumber:
		return false
	case CellString:
		return strings.TrimSpace(c.Str) == ""
	default:
		return true
	}
}

// String renders the cell the way it appeared in the source.
func (c Cell) String() string {
	switch c.Kind {
	case CellNumber:
		return strconv.FormatFloat(c.Num, 'f', -1, 64)
	case CellString:
		return c.Str
	default:
		return ""
	}
}

// MarshalJSON renders numbers as JSON numbers, strings as strings and absent cells as null.
func (c Cell) MarshalJSON() ([]byte, error) {
	switch c.Kind {
	case CellNumber:
		return []byte(strconv.FormatFloat(c.Num, 'f', -1, 64)), nil
	case CellString:
		return json.Marshal(validText(c.Str))
	default:
		return []byte("null"), nil
	}
}

// RawRow maps a column name to its cell. Missing keys read as absent.
type RawRow map[string]Cell

func (r RawRow) Get(column string) Cell {
	return r[column]
}

// FileKind is the declared format of an upload.
type FileKind string

const (
	KindCSV  FileKind = "csv"
	KindXLSX FileKind = "xlsx"
	KindXLS  FileKind = "xls"
)

// FileType collapses the kind onto the persisted batch file type.
func (k FileKind) FileType() domain.FileType {
	if k == KindCSV {
		return domain.FileTypeCSV
	}
	return domain.FileTypeExcel
}

// Table is the result of ingesting one file.
type Table struct {
	Columns []string
	Rows    []RawRow
}
