package datanorm

import (
	"fmt"

	"github.com/ignite/metrics-hub/internal/domain"
)

// TemplateCSV is the downloadable example of a well formed revenue upload.
const TemplateCSV = "Date,Revenu,Impressions,Clics,CTR,CPM,Gains_Estimes\n" +
	"2024-01-01,125.50,15000,250,1.67,8.37,125.50\n" +
	"2024-01-02,98.30,12000,180,1.50,8.19,98.30\n" +
	"2024-01-03,156.80,18000,320,1.78,8.71,156.80\n"

// TemplateFileName names the template download for a platform.
func TemplateFileName(p domain.Platform) string {
	return fmt.Sprintf("template_%s_revenus.csv", p)
}
