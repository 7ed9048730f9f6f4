package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entryRequest struct {
	Platform string  `json:"platform" validate:"required,platform"`
	Date     string  `json:"date" validate:"required,isodate"`
	Revenue  float64 `json:"revenue" validate:"gte=0"`
	Currency string  `json:"currency" validate:"omitempty,iso4217"`
}

func TestStruct(t *testing.T) {
	tests := []struct {
		name       string
		req        entryRequest
		wantFields []string
	}{
		{"valid", entryRequest{Platform: "youtube", Date: "2024-02-29", Revenue: 3, Currency: "EUR"}, nil},
		{"valid without currency", entryRequest{Platform: "AdSense", Date: "2024-01-01"}, nil},
		{"bad platform", entryRequest{Platform: "myspace", Date: "2024-01-01"}, []string{"platform"}},
		{"bad date", entryRequest{Platform: "tiktok", Date: "2023-02-29"}, []string{"date"}},
		{"negative revenue and currency", entryRequest{Platform: "tiktok", Date: "2024-01-01", Revenue: -1, Currency: "EURO"}, []string{"revenue", "currency"}},
		{"missing everything", entryRequest{}, []string{"platform", "date"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Struct(tt.req)
			if tt.wantFields == nil {
				assert.NoError(t, err)
				return
			}
			var verr *Error
			require.True(t, errors.As(err, &verr))
			var got []string
			for _, f := range verr.Fields {
				got = append(got, f.Field)
			}
			assert.Equal(t, tt.wantFields, got)
		})
	}
}

func TestMessages(t *testing.T) {
	err := Struct(entryRequest{Platform: "tiktok", Date: "01/02/2024", Revenue: -5})
	require.Error(t, err)
	assert.Equal(t, "date must be a date in YYYY-MM-DD format; revenue must be greater than or equal to 0", err.Error())
}
