package rules

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const dateLayout = "02/01/2006"

var (
	dateRe = regexp.MustCompile(`\b(\d{2}/\d{2}/\d{4})\b`)

	// A monetary amount as OCR renders it: leading digit, optional
	// space-separated thousands groups, two decimals after , or .
	amountPattern = `(\d[\d ]*[.,]\d{2})`
)

// ParseDate parses a dd/mm/yyyy literal into a calendar date. Literals that
// match the shape but denote no real date (31/02/…) report !ok.
func ParseDate(s string) (time.Time, bool) {
	d, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

// FormatDate renders a date back in the dd/mm/yyyy form used in problems.
func FormatDate(d time.Time) string {
	return d.Format(dateLayout)
}

// FindDate returns the first dd/mm/yyyy pattern found anywhere in the text,
// parsed. Only the first pattern occurrence is considered; if it is not a
// valid calendar date the result is absent, not an error.
func FindDate(text string) (time.Time, bool) {
	m := dateRe.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, false
	}
	return ParseDate(m[1])
}

// FindLabeledDateRaw returns the literal of the first date pattern
// immediately following the label phrase, tolerating up to 30 intervening
// non-digit characters for OCR punctuation noise between label and value.
func FindLabeledDateRaw(text, label string) (string, bool) {
	re := regexp.MustCompile(regexp.QuoteMeta(label) + `[^0-9]{0,30}(\d{2}/\d{2}/\d{4})`)
	m := re.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// FindLabeledDate is FindLabeledDateRaw plus calendar validation; a matched
// but invalid literal is absent, not an error.
func FindLabeledDate(text, label string) (time.Time, bool) {
	raw, ok := FindLabeledDateRaw(text, label)
	if !ok {
		return time.Time{}, false
	}
	return ParseDate(raw)
}

// FindAmountNear returns the raw text of the first amount found after the
// anchor phrase. On normalized text the lookahead is deliberately unbounded:
// the anchor says "the next number is the value".
func FindAmountNear(text, anchor string) (string, bool) {
	re := regexp.MustCompile(regexp.QuoteMeta(anchor) + `.*?` + amountPattern)
	m := re.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// ParseAmount turns an OCR amount literal into a decimal. Space and no-break
// space thousands separators are dropped, a decimal comma becomes a dot.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "\u00a0", "")
	s = strings.ReplaceAll(s, ",", ".")
	return decimal.NewFromString(s)
}
