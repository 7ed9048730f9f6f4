package datanorm

import (
	"fmt"
	"strings"
)

// CanonicalField is a column of the revenue schema.
type CanonicalField string

const (
	FieldDate              CanonicalField = "date"
	FieldRevenue           CanonicalField = "revenue"
	FieldImpressions       CanonicalField = "impressions"
	FieldClicks            CanonicalField = "clicks"
	FieldCTR               CanonicalField = "ctr"
	FieldCPM               CanonicalField = "cpm"
	FieldEstimatedEarnings CanonicalField = "estimated_earnings"
)

// fieldSpec describes how a canonical field is recognized in a header.
type fieldSpec struct {
	Field    CanonicalField
	Label    string
	Required bool
	Aliases  []string
}

// canonicalFields is ordered: when a header matches several fields the
// earliest one wins.
var canonicalFields = []fieldSpec{
	{Field: FieldDate, Label: "Date", Required: true},
	{Field: FieldRevenue, Label: "Revenu", Required: true},
	{Field: FieldImpressions, Label: "Impressions"},
	{Field: FieldClicks, Label: "Clics"},
	{Field: FieldCTR, Label: "CTR (%)"},
	{Field: FieldCPM, Label: "CPM"},
	{Field: FieldEstimatedEarnings, Label: "Gains estimés", Aliases: []string{"gains", "earnings"}},
}

// Fields returns the canonical fields in matching order.
func Fields() []CanonicalField {
	out := make([]CanonicalField, len(canonicalFields))
	for i, s := range canonicalFields {
		out[i] = s.Field
	}
	return out
}

// Label returns the display label of a field.
func (f CanonicalField) Label() string {
	for _, s := range canonicalFields {
		if s.Field == f {
			return s.Label
		}
	}
	return string(f)
}

// IsValid reports whether f is part of the revenue schema.
func (f CanonicalField) IsValid() bool {
	for _, s := range canonicalFields {
		if s.Field == f {
			return true
		}
	}
	return false
}

// IsRequired reports whether normalization needs the field mapped.
func (f CanonicalField) IsRequired() bool {
	for _, s := range canonicalFields {
		if s.Field == f {
			return s.Required
		}
	}
	return false
}

func (s fieldSpec) matches(lowerHeader string) bool {
	if strings.Contains(lowerHeader, string(s.Field)) || strings.Contains(lowerHeader, strings.ToLower(s.Label)) {
		return true
	}
	for _, a := range s.Aliases {
		if strings.Contains(lowerHeader, a) {
			return true
		}
	}
	return false
}

// ColumnMapping binds a source column to a canonical field.
type ColumnMapping struct {
	Column string         `json:"column"`
	Field  CanonicalField `json:"field"`
}

// Mappings is a mapping set holding at most one entry per column and per field.
type Mappings []ColumnMapping

// AutoMap maps columns by lower-cased substring match against each field's
// key, label and aliases. A field is claimed by the first column, in column
// order, that matches it; later matches are left unmapped.
func AutoMap(columns []string) Mappings {
	var out Mappings
	claimed := make(map[CanonicalField]bool)
	for _, col := range columns {
		lower := strings.ToLower(strings.TrimSpace(col))
		if lower == "" {
			continue
		}
		for _, spec := range canonicalFields {
			if !spec.matches(lower) {
				continue
			}
			if !claimed[spec.Field] {
				claimed[spec.Field] = true
				out = append(out, ColumnMapping{Column: col, Field: spec.Field})
			}
			break
		}
	}
	return out
}

// SetMapping returns a copy of current with column bound to field. An empty
// field removes the column's mapping. Assignment is last-write-wins per field:
// any other column previously bound to field is unmapped.
func SetMapping(current Mappings, column string, field CanonicalField) Mappings {
	out := make(Mappings, 0, len(current)+1)
	for _, m := range current {
		if m.Column == column {
			continue
		}
		if field != "" && m.Field == field {
			continue
		}
		out = append(out, m)
	}
	if field != "" {
		out = append(out, ColumnMapping{Column: column, Field: field})
	}
	return out
}

// ColumnFor returns the column bound to field.
func (m Mappings) ColumnFor(field CanonicalField) (string, bool) {
	for _, cm := range m {
		if cm.Field == field {
			return cm.Column, true
		}
	}
	return "", false
}

// IsReady reports whether both required fields are mapped.
func (m Mappings) IsReady() bool {
	return len(m.MissingRequired()) == 0
}

// MissingRequired lists required fields that are not mapped yet.
func (m Mappings) MissingRequired() []CanonicalField {
	var missing []CanonicalField
	for _, s := range canonicalFields {
		if !s.Required {
			continue
		}
		if _, ok := m.ColumnFor(s.Field); !ok {
			missing = append(missing, s.Field)
		}
	}
	return missing
}

// Validate checks a client supplied mapping set.
func (m Mappings) Validate() error {
	cols := make(map[string]bool, len(m))
	fields := make(map[CanonicalField]bool, len(m))
	for _, cm := range m {
		if !cm.Field.IsValid() {
			return fmt.Errorf("%w: %q", ErrUnknownField, cm.Field)
		}
		if cols[cm.Column] || fields[cm.Field] {
			return fmt.Errorf("%w: %s -> %s", ErrDuplicateMapping, cm.Column, cm.Field)
		}
		cols[cm.Column] = true
		fields[cm.Field] = true
	}
	if missing := m.MissingRequired(); len(missing) > 0 {
		return fmt.Errorf("%w: missing %v", ErrMappingIncomplete, missing)
	}
	return nil
}
