package csvita

import "strings"

// Bounds of a signed 128-bit integer, without sign.
const (
	maxInt128Digits = "170141183460469231731687303715884105727"
	minInt128Digits = "170141183460469231731687303715884105728"
)

// Policy decides how a single field is rendered on output.
//
// Fields are always wrapped in double quotes unless one of the short-circuits
// applies. SkipEmpty is tested before SkipNumeric; the two never overlap since
// the empty string is not an integer.
type Policy struct {
	// Escape writes embedded quotes as \" instead of "".
	Escape bool
	// SkipEmpty leaves empty fields unquoted.
	SkipEmpty bool
	// SkipNumeric leaves fields that parse as a signed 128-bit integer unquoted.
	SkipNumeric bool
}

// Transform returns the output form of field.
func (p Policy) Transform(field string) string {
	if !p.quotes(field) {
		return field
	}

	var b strings.Builder
	b.Grow(len(field) + 2)
	b.WriteByte('"')
	b.WriteString(strings.ReplaceAll(field, `"`, p.escapedQuote()))
	b.WriteByte('"')
	return b.String()
}

// TransformRecord applies Transform to every field of record, in order.
func (p Policy) TransformRecord(record []string) []string {
	out := make([]string, len(record))
	for i, field := range record {
		out[i] = p.Transform(field)
	}
	return out
}

// quotes reports whether field gets wrapped in quotes.
func (p Policy) quotes(field string) bool {
	if p.SkipEmpty && field == "" {
		return false
	}
	if p.SkipNumeric && IsInt128(field) {
		return false
	}
	return true
}

func (p Policy) escapedQuote() string {
	if p.Escape {
		return `\"`
	}
	return `""`
}

// IsInt128 reports whether s is a base-10 integer, with an optional leading
// sign, that fits in a signed 128-bit integer. Leading zeros are allowed.
// Anything else, including decimals, exponents and digit separators, is not.
func IsInt128(s string) bool {
	limit := maxInt128Digits
	switch {
	case strings.HasPrefix(s, "-"):
		limit = minInt128Digits
		s = s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}

	s = strings.TrimLeft(s, "0")
	if len(s) != len(limit) {
		return len(s) < len(limit)
	}
	return s <= limit
}
