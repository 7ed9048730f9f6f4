package datanorm

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ignite/metrics-hub/internal/domain"
)

var (
	revenueLimit = decimal.NewFromFloat(domain.RevenueLimit)
	countLimit   = decimal.NewFromInt(math.MaxInt64)
)

// ProgressFunc is called after every chunk of rows.
type ProgressFunc func(processed, total int)

// Normalizer turns mapped raw rows into revenue records. It holds no state
// between calls and may be shared by concurrent imports.
type Normalizer struct {
	newID     func() string
	now       func() time.Time
	chunkSize int
	progress  ProgressFunc
}

type Option func(*Normalizer)

// WithIDFunc overrides record id generation.
func WithIDFunc(fn func() string) Option {
	return func(n *Normalizer) { n.newID = fn }
}

// WithClock overrides the creation timestamp source.
func WithClock(fn func() time.Time) Option {
	return func(n *Normalizer) { n.now = fn }
}

// WithProgress reports progress every chunkSize rows.
func WithProgress(chunkSize int, fn ProgressFunc) Option {
	return func(n *Normalizer) {
		n.chunkSize = chunkSize
		n.progress = fn
	}
}

func NewNormalizer(opts ...Option) *Normalizer {
	n := &Normalizer{
		newID:     uuid.NewString,
		now:       time.Now,
		chunkSize: 500,
	}
	for _, o := range opts {
		o(n)
	}
	return n
}

// Result holds every record that normalized cleanly and one error per
// skipped row, in row order.
type Result struct {
	Records  []domain.RevenueRecord
	Errors   []RowError
	RowCount int
}

// Messages renders the row errors for persistence.
func (r *Result) Messages() []string {
	out := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		out[i] = e.Error()
	}
	return out
}

// Normalize converts rows using mappings. Row-level problems never abort the
// call; the returned error is reserved for unusable arguments.
func (n *Normalizer) Normalize(rows []RawRow, mappings Mappings, platform domain.Platform, currency string) (*Result, error) {
	if !platform.IsValid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownPlatform, platform)
	}
	dateCol, okDate := mappings.ColumnFor(FieldDate)
	revCol, okRev := mappings.ColumnFor(FieldRevenue)
	if !okDate || !okRev {
		return nil, ErrMappingIncomplete
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = domain.DefaultCurrency
	}

	res := &Result{RowCount: len(rows)}
	createdAt := n.now().UTC()
	for i, row := range rows {
		rowNum := i + 1

		dateCell, revCell := row.Get(dateCol), row.Get(revCol)
		if dateCell.IsEmpty() || revCell.IsEmpty() {
			res.Errors = append(res.Errors, RowError{Row: rowNum, Kind: RowMissingField})
		} else if date, ok := ParseDate(dateCell); !ok {
			res.Errors = append(res.Errors, RowError{Row: rowNum, Kind: RowInvalidDate, Raw: dateCell.String()})
		} else if amount, ok := ParseAmount(revCell); !ok || amount.Round(4).GreaterThanOrEqual(revenueLimit) {
			res.Errors = append(res.Errors, RowError{Row: rowNum, Kind: RowInvalidRevenue, Raw: revCell.String()})
		} else {
			rec := domain.RevenueRecord{
				ID:        n.newID(),
				Platform:  platform,
				Date:      date,
				Revenue:   amount.InexactFloat64(),
				Currency:  currency,
				Source:    domain.SourceCSV,
				CreatedAt: createdAt,
			}
			applyOptional(&rec, row, mappings)
			res.Records = append(res.Records, rec)
		}

		if n.progress != nil && n.chunkSize > 0 && (rowNum%n.chunkSize == 0 || rowNum == len(rows)) {
			n.progress(rowNum, len(rows))
		}
	}
	return res, nil
}

// Normalize runs a default Normalizer.
func Normalize(rows []RawRow, mappings Mappings, platform domain.Platform, currency string) (*Result, error) {
	return NewNormalizer().Normalize(rows, mappings, platform, currency)
}

// applyOptional fills the optional metrics that are mapped and parse. Unmapped
// or unreadable values stay nil so they read as not reported, as do counts
// past the int64 range.
func applyOptional(rec *domain.RevenueRecord, row RawRow, mappings Mappings) {
	amount := func(f CanonicalField) (decimal.Decimal, bool) {
		col, ok := mappings.ColumnFor(f)
		if !ok {
			return decimal.Zero, false
		}
		c := row.Get(col)
		if c.IsEmpty() {
			return decimal.Zero, false
		}
		return ParseAmount(c)
	}
	count := func(f CanonicalField) *int64 {
		d, ok := amount(f)
		if !ok || d.GreaterThan(countLimit) {
			return nil
		}
		v := d.IntPart()
		return &v
	}
	ratio := func(f CanonicalField) *float64 {
		d, ok := amount(f)
		if !ok {
			return nil
		}
		v := d.InexactFloat64()
		return &v
	}

	rec.Impressions = count(FieldImpressions)
	rec.Clicks = count(FieldClicks)
	rec.CTR = ratio(FieldCTR)
	rec.CPM = ratio(FieldCPM)
	rec.EstimatedEarnings = ratio(FieldEstimatedEarnings)
}

// Project returns up to limit rows reduced to their mapped fields.
func Project(rows []RawRow, mappings Mappings, limit int) []map[CanonicalField]Cell {
	if limit <= 0 || limit > len(rows) {
		limit = len(rows)
	}
	out := make([]map[CanonicalField]Cell, 0, limit)
	for _, row := range rows[:limit] {
		p := make(map[CanonicalField]Cell, len(mappings))
		for _, m := range mappings {
			p[m.Field] = row.Get(m.Column)
		}
		out = append(out, p)
	}
	return out
}
