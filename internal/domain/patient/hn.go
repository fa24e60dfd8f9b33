package patient

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	hnPrefix     = "HN"
	hnDigits     = 6
	maxSurrogate = 999999
)

// HN is a canonical hospital number: "HN" followed by exactly six digits.
// The zero value is not a valid HN.
type HN string

func (h HN) String() string { return string(h) }

// Surrogate returns the integer encoded in the digits of the hospital number.
// It is a compatibility artifact for numeric call sites; HN stays the key.
func (h HN) Surrogate() int {
	n, err := strconv.Atoi(strings.TrimPrefix(string(h), hnPrefix))
	if err != nil {
		return -1
	}
	return n
}

// Valid reports whether h is already in canonical form.
func (h HN) Valid() bool {
	s := string(h)
	if len(s) != len(hnPrefix)+hnDigits || !strings.HasPrefix(s, hnPrefix) {
		return false
	}
	return allDigits(s[len(hnPrefix):])
}

// ParseHN canonicalizes raw input into an HN. Characters outside [A-Z0-9]
// are dropped after upper-casing, and one to six digits after the prefix are
// left-padded with zeros.
func ParseHN(raw string) (HN, error) {
	hn, code := parseHN(raw)
	if code != "" {
		return "", &FormatError{Input: raw, Code: code}
	}
	return hn, nil
}

// parseHN returns the canonical HN or a reason code. It never panics.
func parseHN(raw string) (HN, string) {
	var b strings.Builder
	for _, r := range strings.ToUpper(raw) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	s := b.String()
	switch {
	case s == "":
		return "", CodeRequired
	case !strings.HasPrefix(s, hnPrefix):
		return "", CodeHNPrefix
	}

	digits := s[len(hnPrefix):]
	switch {
	case digits == "":
		return "", CodeHNNoDigits
	case !allDigits(digits):
		return "", CodeInvalidFormat
	case len(digits) > hnDigits:
		return "", CodeHNTooManyDigits
	}
	return HN(hnPrefix + strings.Repeat("0", hnDigits-len(digits)) + digits), ""
}

// FromSurrogate formats n as a hospital number.
func FromSurrogate(n int) (HN, error) {
	if n < 0 || n > maxSurrogate {
		return "", &FormatError{Input: strconv.Itoa(n), Code: CodeHNOutOfRange}
	}
	return HN(fmt.Sprintf("%s%0*d", hnPrefix, hnDigits, n)), nil
}

// ParseRef resolves a path reference that is either a hospital number or a
// bare numeric surrogate.
func ParseRef(ref string) (HN, error) {
	ref = strings.TrimSpace(ref)
	if ref != "" && allDigits(ref) {
		if len(ref) > hnDigits {
			return "", &FormatError{Input: ref, Code: CodeHNOutOfRange}
		}
		n, _ := strconv.Atoi(ref)
		return FromSurrogate(n)
	}
	return ParseHN(ref)
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}
