package receipt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cents(v int64) *int64 { return &v }

func TestParse(t *testing.T) {
	text := "TRATTORIA ROMA\nVia Appia 12\n2x Pasta 24.00\nWine 18.50\nTotal 42.50\nDate: 2025-10-03"

	fields := Parse(text)

	assert.Equal(t, "TRATTORIA ROMA", fields.MerchantName)
	require.NotNil(t, fields.AmountCents)
	assert.Equal(t, int64(4250), *fields.AmountCents, "largest monetary value wins")
	assert.Equal(t, "2025-10-03", fields.Date)
	assert.Equal(t, text, fields.Description)
}

func TestParse_Empty(t *testing.T) {
	fields := Parse("")
	assert.Equal(t, "", fields.Description)
	assert.Equal(t, "", fields.MerchantName)
	assert.Nil(t, fields.AmountCents)
	assert.Equal(t, "", fields.Date)
}

func TestParse_Amounts(t *testing.T) {
	tests := []struct {
		name string
		text string
		want *int64
	}{
		{"plain", "total 12.34", cents(1234)},
		{"thousands separator", "grand total 1,234.56", cents(123456)},
		{"largest of several", "9.99 then 100.00 then 15.25", cents(10000)},
		{"integer is not monetary", "table 12", nil},
		{"long digit runs are ignored", "card 4111111111.11", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.text).AmountCents
			if tt.want == nil {
				assert.Nil(t, got)
			} else {
				require.NotNil(t, got)
				assert.Equal(t, *tt.want, *got)
			}
		})
	}
}

func TestParse_Dates(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"iso", "issued 2025-10-03 thanks", "2025-10-03"},
		{"slash", "03/10/2025", "03/10/2025"},
		{"dash", "03-10-2025", "03-10-2025"},
		{"iso preferred over slash", "03/10/2025 and 2025-10-03", "2025-10-03"},
		{"none", "no date here", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.text).Date)
		})
	}
}

func TestParse_MerchantLine(t *testing.T) {
	assert.Equal(t, "ACME STORE", Parse("\n  \nA\nACME STORE\nmore").MerchantName,
		"short lines are skipped")

	long := strings.Repeat("M", 200)
	assert.Len(t, Parse(long).MerchantName, 120)
}

func TestParse_DescriptionTruncated(t *testing.T) {
	long := strings.Repeat("x", 600)
	assert.Len(t, Parse(long).Description, 500)
}
