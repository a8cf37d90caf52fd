package model

import (
	"slices"
	"strings"
	"time"
)

// NormalizeKey turns a topic or speaker name into its index key:
// trimmed, case-folded, inner whitespace collapsed.
func NormalizeKey(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// NormalizeKeys normalizes, deduplicates and sorts a key set.
// Blank names are dropped.
func NormalizeKeys(names []string) []string {
	keys := make([]string, 0, len(names))
	for _, n := range names {
		if k := NormalizeKey(n); k != "" {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return slices.Compact(keys)
}

// NormalizeText folds claim text for structural comparison.
// Trailing sentence punctuation is ignored.
func NormalizeText(s string) string {
	s = NormalizeKey(s)
	return strings.TrimRight(s, ".!?;:")
}

// Tokens splits normalized text into words, stripping edge punctuation
func Tokens(s string) []string {
	fields := strings.Fields(NormalizeText(s))
	out := fields[:0]
	for _, f := range fields {
		f = strings.Trim(f, ".,!?;:\"'()[]")
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// ParseDate parses a calendar date into UTC midnight
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, strings.TrimSpace(s))
}

// Window bounds temporal proximity around a date, inclusive on both sides
type Window struct {
	Months int `json:"months" yaml:"months" mapstructure:"months"`
	Days   int `json:"days" yaml:"days" mapstructure:"days"`
}

// DefaultWindow is +-6 months
var DefaultWindow = Window{Months: 6}

// Bounds returns the first and last date inside the window around d
func (w Window) Bounds(d time.Time) (time.Time, time.Time) {
	return d.AddDate(0, -w.Months, -w.Days), d.AddDate(0, w.Months, w.Days)
}

// IsZero reports whether no window was configured
func (w Window) IsZero() bool {
	return w.Months == 0 && w.Days == 0
}
