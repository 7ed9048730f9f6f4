package datanorm

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
)

// numericCell matches cells that are coerced to numbers. Locale formatted
// values such as "125,50" stay strings and are handled by the normalizer.
var numericCell = regexp.MustCompile(`^\s*-?(\d+\.?|\.\d+|\d+\.\d+)([eE][-+]?\d+)?\s*$`)

// Ingest parses an uploaded file into rows keyed by column name. Any parse
// failure aborts the whole ingest and no rows are returned.
func Ingest(data []byte, kind FileKind) (*Table, error) {
	switch kind {
	case KindCSV, KindXLSX, KindXLS:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, kind)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &ParseError{Kind: kind, Err: ErrEmptyFile}
	}

	switch kind {
	case KindCSV:
		return ingestCSV(data)
	case KindXLSX:
		matrix, err := readXLSX(data)
		if err != nil {
			return nil, &ParseError{Kind: kind, Err: err}
		}
		return tableFromSheet(matrix), nil
	default:
		matrix, err := readXLS(data)
		if err != nil {
			return nil, &ParseError{Kind: kind, Err: err}
		}
		return tableFromSheet(matrix), nil
	}
}

func ingestCSV(data []byte) (*Table, error) {
	// Spreadsheet exports on Windows are often Windows-1252 rather than UTF-8.
	if !utf8.Valid(data) {
		decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
		if err != nil {
			return nil, &ParseError{Kind: KindCSV, Err: err}
		}
		data = decoded
	}
	reader := csv.NewReader(stripBOM(bytes.NewReader(data)))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &ParseError{Kind: KindCSV, Err: ErrEmptyFile}
		}
		return nil, &ParseError{Kind: KindCSV, Err: err}
	}
	columns := headerNames(header)

	t := &Table{Columns: compactColumns(columns)}
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &ParseError{Kind: KindCSV, Err: err}
		}
		if isBlank(rec) {
			continue
		}
		t.Rows = append(t.Rows, buildRow(columns, rec))
	}
	return t, nil
}

// tableFromSheet turns a sheet into a table. The first non-blank row is the
// header; columns are the headers that carry a value in the first data row.
func tableFromSheet(matrix [][]string) *Table {
	var columns []string
	t := &Table{}
	for _, rec := range matrix {
		if isBlank(rec) {
			continue
		}
		if columns == nil {
			columns = headerNames(rec)
			continue
		}
		t.Rows = append(t.Rows, buildRow(columns, rec))
	}

	if len(t.Rows) == 0 {
		t.Columns = compactColumns(columns)
		return t
	}
	first := t.Rows[0]
	for _, c := range columns {
		if c != "" && !first.Get(c).IsEmpty() {
			t.Columns = append(t.Columns, c)
		}
	}
	return t
}

func readXLSX(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, errors.New("workbook has no sheets")
	}
	return f.GetRows(sheet, excelize.Options{RawCellValue: true})
}

func readXLS(data []byte) (matrix [][]string, err error) {
	// The BIFF reader panics on some truncated files.
	defer func() {
		if r := recover(); r != nil {
			matrix, err = nil, fmt.Errorf("corrupt workbook: %v", r)
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, err
	}
	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, errors.New("workbook has no sheets")
	}
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheetRow(sheet, i)
		if row == nil {
			continue
		}
		rec := make([]string, row.LastCol())
		for j := row.FirstCol(); j < row.LastCol(); j++ {
			rec[j] = row.Col(j)
		}
		matrix = append(matrix, rec)
	}
	return matrix, nil
}

// sheetRow returns nil for rows the sheet does not define. WorkSheet.Row
// dereferences missing rows, which blank lines in a workbook produce.
func sheetRow(sheet *xls.WorkSheet, i int) (row *xls.Row) {
	defer func() {
		if recover() != nil {
			row = nil
		}
	}()
	return sheet.Row(i)
}

// headerNames trims header cells and disambiguates duplicates with a numeric
// suffix so that no column shadows another.
func headerNames(header []string) []string {
	names := make([]string, len(header))
	seen := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(validText(h))
		if h == "" {
			continue
		}
		if n, dup := seen[h]; dup {
			seen[h] = n + 1
			h = h + "_" + strconv.Itoa(n)
		} else {
			seen[h] = 1
		}
		names[i] = h
	}
	return names
}

func compactColumns(columns []string) []string {
	out := make([]string, 0, len(columns))
	for _, c := range columns {
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}

func buildRow(columns, rec []string) RawRow {
	row := make(RawRow, len(columns))
	for i, col := range columns {
		if col == "" || i >= len(rec) {
			continue
		}
		if c := coerce(rec[i]); c.Kind != CellAbsent {
			row[col] = c
		}
	}
	return row
}

// coerce is best effort and never fails.
func coerce(s string) Cell {
	s = validText(s)
	if strings.TrimSpace(s) == "" {
		return Cell{}
	}
	if numericCell.MatchString(s) {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return NumberCell(f)
		}
	}
	return StringCell(s)
}

// validText replaces byte sequences that are not UTF-8 so cells can be
// rendered as JSON and stored in text columns.
func validText(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, "\uFFFD")
}

func isBlank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// stripBOM wraps a reader to strip a UTF-8 BOM if present.
func stripBOM(r io.Reader) io.Reader {
	buf := make([]byte, 3)
	n, err := io.ReadFull(r, buf)
	if err != nil || n < 3 {
		return io.MultiReader(bytes.NewReader(buf[:n]), r)
	}
	if buf[0] == 0xEF && buf[1] == 0xBB && buf[2] == 0xBF {
		return r
	}
	return io.MultiReader(bytes.NewReader(buf[:n]), r)
}
