// Package external declares the collaborator contracts the workflow engine
// consumes. Real clients (REST currency lookup, FX rates, OCR) live outside
// this repository; the engine only depends on these interfaces and degrades
// gracefully when a collaborator is unavailable.
package external

import (
	"context"
)

// CurrencyLookup resolves a country's primary currency code, e.g. "US" -> "USD".
// The second result is false when the country is unknown or the lookup failed.
type CurrencyLookup interface {
	CurrencyForCountry(ctx context.Context, countryCode string) (string, bool)
}

// RateConverter converts an amount between currencies. The second result is
// false when no rate is available; callers fall back to the original amount.
type RateConverter interface {
	Convert(ctx context.Context, amountCents int64, fromCurrency, toCurrency string) (int64, bool)
}

// ReceiptScanner extracts raw text from a receipt image, best effort.
type ReceiptScanner interface {
	ExtractText(ctx context.Context, image []byte) (string, error)
}

// Services bundles the collaborators handed to the controller. Nil fields
// are replaced by no-op implementations.
type Services struct {
	Currency CurrencyLookup
	Rates    RateConverter
	Receipts ReceiptScanner
}

// WithDefaults returns a copy with nil collaborators replaced by no-ops.
func (s Services) WithDefaults() Services {
	if s.Currency == nil {
		s.Currency = noopCurrency{}
	}
	if s.Rates == nil {
		s.Rates = noopRates{}
	}
	if s.Receipts == nil {
		s.Receipts = noopReceipts{}
	}
	return s
}

type noopCurrency struct{}

func (noopCurrency) CurrencyForCountry(context.Context, string) (string, bool) {
	return "", false
}

type noopRates struct{}

func (noopRates) Convert(context.Context, int64, string, string) (int64, bool) {
	return 0, false
}

type noopReceipts struct{}

func (noopReceipts) ExtractText(context.Context, []byte) (string, error) {
	return "", nil
}
