package datanorm

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/ignite/metrics-hub/internal/domain"
)

// ExportHeader is the first line of a revenue export.
var ExportHeader = []string{"Date", "Plateforme", "Revenu", "Impressions", "Clics", "CTR", "CPM"}

// WriteCSV renders records in export order. Unreported optional values are
// written as empty cells so a re-import keeps them unreported.
func WriteCSV(w io.Writer, records []domain.RevenueRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ExportHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range records {
		row := []string{
			r.Date,
			string(r.Platform),
			strconv.FormatFloat(r.Revenue, 'f', 2, 64),
			formatCount(r.Impressions),
			formatCount(r.Clicks),
			formatRatio(r.CTR),
			formatRatio(r.CPM),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write record %s: %w", r.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportFileName names an export of the given range.
func ExportFileName(r domain.DateRange) string {
	return fmt.Sprintf("revenus_%s_%s.csv", r.Start, r.End)
}

func formatCount(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

func formatRatio(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}
