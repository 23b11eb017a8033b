// Package normalize holds the coercion rules shared by listing ingestion and
// change detection. Both sides of a comparison must go through the same rules,
// otherwise representation differences show up as changes.
package normalize

import (
	"math"
	"strconv"
	"strings"
	"time"

	"estate_tracker/internal/domain"
)

// CanonicalTimeLayout is the single format timestamps are compared in.
const CanonicalTimeLayout = "2006-01-02T15:04:05"

var timeLayouts = []string{
	"2006-01-02T15:04:05.999999999Z",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Price parses a scraped price. Empty, non-numeric or zero prices become the
// -1 sentinel so a missing price never blocks ingestion.
func Price(v domain.Flex) float64 {
	if !v.Valid() {
		return domain.PriceUnknown
	}
	f, ok := parseFloat(v.String())
	if !ok || f == 0 {
		return domain.PriceUnknown
	}
	return Round2(f)
}

func Round2(f float64) float64 {
	return math.Round(f*100) / 100
}

// Float parses a numeric attribute, dropping a trailing "+" ("5+" rooms).
func Float(v domain.Flex) *float64 {
	if !v.Valid() {
		return nil
	}
	f, ok := parseFloat(StripPlus(v.String()))
	if !ok {
		return nil
	}
	return &f
}

// Int parses an integral attribute. Fractional input is truncated.
func Int(v domain.Flex) *int64 {
	f := Float(v)
	if f == nil {
		return nil
	}
	i := int64(*f)
	return &i
}

// Text returns nil for missing or blank strings.
func Text(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	v := *s
	return &v
}

// FlexText is Text for loosely typed scalars, with "+" suffixes removed.
func FlexText(v domain.Flex) *string {
	if !v.Valid() {
		return nil
	}
	s := StripPlus(v.String())
	return Text(&s)
}

func StripPlus(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "+", ""))
}

// Timestamp parses any accepted timestamp layout, truncated to seconds in UTC.
// Unparsable input yields nil.
func Timestamp(s *string) *time.Time {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			t = t.UTC().Truncate(time.Second)
			return &t
		}
	}
	return nil
}

func FormatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func FormatTime(t time.Time) string {
	return t.UTC().Format(CanonicalTimeLayout)
}

func parseFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
