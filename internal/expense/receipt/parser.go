// Package receipt turns raw OCR text into expense pre-fill fields. The
// heuristics are intentionally simple: first usable line as merchant, the
// largest monetary value as the amount, the first recognizable date.
package receipt

import (
	"regexp"
	"strconv"
	"strings"
)

// Fields are best-effort values extracted from a receipt. AmountCents is nil
// and Date empty when nothing usable was found.
type Fields struct {
	Description  string
	MerchantName string
	AmountCents  *int64
	Date         string
}

var (
	tokenSplit   = regexp.MustCompile(`[^0-9.,]+`)
	monetaryForm = regexp.MustCompile(`^\d{1,3}(?:[.,]\d{3})*[.,]\d{2}$`)
	normalized   = regexp.MustCompile(`^(\d+)\.(\d{2})$`)

	datePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\d{4}-\d{2}-\d{2}`),
		regexp.MustCompile(`\d{2}/\d{2}/\d{4}`),
		regexp.MustCompile(`\d{2}-\d{2}-\d{4}`),
	}
)

// Parse extracts pre-fill fields from OCR text. Empty input yields empty fields.
func Parse(text string) Fields {
	text = strings.TrimSpace(text)

	f := Fields{}
	if len(text) > 500 {
		f.Description = strings.TrimSpace(text[:500])
	} else {
		f.Description = text
	}
	f.MerchantName = merchantLine(text)
	f.AmountCents = maxAmount(text)
	f.Date = firstDate(text)
	return f
}

// merchantLine picks the first non-empty line of at least 3 characters,
// truncated to 120.
func merchantLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		ln := strings.TrimSpace(line)
		if len(ln) >= 3 {
			if len(ln) > 120 {
				ln = ln[:120]
			}
			return ln
		}
	}
	return ""
}

// maxAmount scans for monetary values like 1234.56 or 1,234.56 and returns
// the largest one in cents.
func maxAmount(text string) *int64 {
	var best *int64
	for _, tok := range tokenSplit.Split(text, -1) {
		if !monetaryForm.MatchString(tok) {
			continue
		}
		cents, ok := toCents(tok)
		if !ok {
			continue
		}
		if best == nil || cents > *best {
			v := cents
			best = &v
		}
	}
	return best
}

func toCents(s string) (int64, bool) {
	m := normalized.FindStringSubmatch(strings.ReplaceAll(s, ",", ""))
	if m == nil {
		return 0, false
	}
	whole, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	frac, err := strconv.ParseInt(m[2], 10, 64)
	if err != nil {
		return 0, false
	}
	return whole*100 + frac, true
}

func firstDate(text string) string {
	for _, pat := range datePatterns {
		if m := pat.FindString(text); m != "" {
			return m
		}
	}
	return ""
}
