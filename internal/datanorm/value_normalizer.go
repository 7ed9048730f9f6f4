package datanorm

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const isoDate = "2006-01-02"

// directLayouts are tried before the day-first fallback. Slash separated
// numeric layouts are absent so "01/02/2024" reads day first.
var directLayouts = []string{
	isoDate,
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006/01/02",
	"2 Jan 2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 January 2006",
	"Mon, 02 Jan 2006",
	time.RFC1123,
	time.RFC1123Z,
}

// Spreadsheet serial dates count days from this epoch.
var serialEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

const maxSerialDate = 2958465 // 9999-12-31

// ParseDate resolves a cell into a YYYY-MM-DD date. Time of day is dropped.
func ParseDate(c Cell) (string, bool) {
	switch c.Kind {
	case CellNumber:
		return parseNumericDate(c.Num)
	case CellString:
		return parseDateString(strings.TrimSpace(c.Str))
	}
	return "", false
}

func parseDateString(s string) (string, bool) {
	if s == "" {
		return "", false
	}
	for _, layout := range directLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(isoDate), true
		}
	}

	// Day-first fallback: DD/MM/YYYY, DD-MM-YYYY, DD.MM.YYYY.
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == '/' || r == '-' || r == '.'
	})
	if len(parts) != 3 || len(parts[2]) != 4 {
		return "", false
	}
	rebuilt := fmt.Sprintf("%s-%s-%s", parts[2], pad2(parts[1]), pad2(parts[0]))
	t, err := time.Parse(isoDate, rebuilt)
	if err != nil {
		return "", false
	}
	return t.Format(isoDate), true
}

// parseNumericDate accepts compact YYYYMMDD integers and spreadsheet serials.
func parseNumericDate(f float64) (string, bool) {
	if f < 1 {
		return "", false
	}
	if f >= 19000101 && f <= 99991231 && f == math.Trunc(f) {
		t, err := time.Parse("20060102", fmt.Sprintf("%d", int64(f)))
		if err != nil {
			return "", false
		}
		return t.Format(isoDate), true
	}
	if f >= 1 && f <= maxSerialDate {
		return serialEpoch.AddDate(0, 0, int(math.Floor(f))).Format(isoDate), true
	}
	return "", false
}

func pad2(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}

// ParseAmount reads a numeric cell. Text is stripped to digits, commas and
// dots, the first comma becomes the decimal point, and the longest leading
// decimal is taken. Text carrying a minus sign and negative numbers are
// rejected.
func ParseAmount(c Cell) (decimal.Decimal, bool) {
	switch c.Kind {
	case CellNumber:
		if math.IsNaN(c.Num) || math.IsInf(c.Num, 0) || c.Num < 0 {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat(c.Num), true
	case CellString:
		return parseAmountString(c.Str)
	}
	return decimal.Zero, false
}

func parseAmountString(raw string) (decimal.Decimal, bool) {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "-") || strings.HasSuffix(s, "-") ||
		(strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")")) {
		return decimal.Zero, false
	}

	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == ',' || r == '.' {
			b.WriteRune(r)
		}
	}
	cleaned := strings.Replace(b.String(), ",", ".", 1)

	num := leadingDecimal(cleaned)
	if num == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(num)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// leadingDecimal returns the longest prefix of the form digits[.digits]
// containing at least one digit.
func leadingDecimal(s string) string {
	end, digits, dot := 0, 0, false
scan:
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c >= '0' && c <= '9':
			digits++
			end = i + 1
		case c == '.' && !dot:
			dot = true
			end = i + 1
		default:
			break scan
		}
	}
	if digits == 0 {
		return ""
	}
	out := strings.TrimSuffix(s[:end], ".")
	if strings.HasPrefix(out, ".") {
		out = "0" + out
	}
	return out
}
