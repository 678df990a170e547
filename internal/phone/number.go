// Package phone provides the PhoneNumber value object and the normalizer that
// turns free-form user input into canonical E.164 form.
//
// Domain Purity: no I/O and no network access. Parsing the same input always
// yields the same Number.
package phone

import (
	"errors"
	"strings"

	"golang.org/x/text/unicode/norm"
)

const (
	minDigits = 8
	maxDigits = 15
)

// ErrInvalidFormat indicates the input cannot be read as an international number.
var ErrInvalidFormat = errors.New("invalid phone number: expected +<country code><subscriber> with 8-15 digits")

// Number is a canonical E.164 phone number.
//
// Invariants:
//   - canonical form is "+" followed by 8-15 digits, first digit non-zero
//   - equality is by canonical string
type Number struct {
	e164    string
	country string
	valid   bool
}

// Parse normalizes raw text without a default calling code.
func Parse(raw string) (Number, error) {
	return Normalizer{}.Normalize(raw)
}

// MustParse parses raw text, panicking if invalid.
// Use only in tests or when the value is known to be valid.
func MustParse(raw string) Number {
	n, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return n
}

// String returns the canonical E.164 form.
func (n Number) String() string {
	return n.e164
}

// Country returns the ISO 3166-1 alpha-2 code derived from the calling code,
// or "" when the calling code is not recognised.
func (n Number) Country() string {
	return n.country
}

// Valid reports whether the calling code maps to a known country.
func (n Number) Valid() bool {
	return n.valid
}

// IsZero returns true if this is the zero value.
func (n Number) IsZero() bool {
	return n.e164 == ""
}

// Digits returns the canonical number without the leading "+".
func (n Number) Digits() string {
	return strings.TrimPrefix(n.e164, "+")
}

// MarshalText encodes the number as its canonical string.
func (n Number) MarshalText() ([]byte, error) {
	return []byte(n.e164), nil
}

// UnmarshalText re-parses the canonical string so decoded values keep their invariants.
func (n *Number) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*n = Number{}
		return nil
	}
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*n = parsed
	return nil
}

// Normalizer parses candidate numbers. The zero value accepts only input with
// a leading "+". DefaultCallingCode enables the national dialling forms: a
// "00" international prefix and a trunk "0" prefix (e.g. "0412 345 678"
// with "61").
type Normalizer struct {
	DefaultCallingCode string
}

// Normalize converts raw text into a Number or returns ErrInvalidFormat.
func (z Normalizer) Normalize(raw string) (Number, error) {
	compact, ok := compactNumber(raw)
	if !ok {
		return Number{}, ErrInvalidFormat
	}

	switch {
	case strings.HasPrefix(compact, "+"):
	case z.DefaultCallingCode != "" && strings.HasPrefix(compact, "00"):
		compact = "+" + compact[2:]
	case z.DefaultCallingCode != "" && strings.HasPrefix(compact, "0"):
		compact = "+" + z.DefaultCallingCode + compact[1:]
	default:
		return Number{}, ErrInvalidFormat
	}

	digits := compact[1:]
	if len(digits) < minDigits || len(digits) > maxDigits || digits[0] == '0' {
		return Number{}, ErrInvalidFormat
	}

	country, known := countryForDigits(digits)
	return Number{e164: compact, country: country, valid: known}, nil
}

// compactNumber folds compatibility characters (full-width digits, plus signs)
// and strips separators. A "+" is only accepted in leading position.
func compactNumber(raw string) (string, bool) {
	s := strings.TrimSpace(norm.NFKC.String(raw))
	if s == "" {
		return "", false
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+':
			if b.Len() != 0 {
				return "", false
			}
			b.WriteRune(r)
		case isSeparator(r):
		default:
			return "", false
		}
	}
	out := b.String()
	if out == "" || out == "+" {
		return "", false
	}
	return out, true
}

func isSeparator(r rune) bool {
	switch r {
	case ' ', '\t', '-', '.', '(', ')', '/':
		return true
	}
	return false
}

// Mask hides the middle of a number for logs: "+61412345678" -> "+61******678".
func Mask(number string) string {
	if len(number) <= 6 {
		return strings.Repeat("*", len(number))
	}
	return number[:3] + strings.Repeat("*", len(number)-6) + number[len(number)-3:]
}
