// Package money implements fixed-point decimal amounts for the AP core.
//
// All amounts in the system are fixed-point integers (minor units) paired
// with a scale, never floats. Internal arithmetic (Add/Sub/Cmp) is always
// exact integer math; rounding only ever happens when an amount crosses
// between two different scales, and then only half-up — banker's rounding
// is never used anywhere in this package.
package money

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// MinScale is the minimum scale the system stores amounts at (spec §3:
// "scale >= 4").
const MinScale = 4

// Money is a fixed-point decimal amount: Minor * 10^-Scale.
type Money struct {
	Minor int64
	Scale int
}

// Zero returns a zero amount at MinScale.
func Zero() Money { return Money{Minor: 0, Scale: MinScale} }

// ErrInvalidDecimal is returned when a string cannot be parsed as a decimal.
var ErrInvalidDecimal = errors.New("money: invalid decimal string")

// Parse parses a decimal string (e.g. "12345.67", "-0.5", "100") into a
// Money value. The result is rescaled up to at least MinScale; a string
// with more fractional digits than MinScale keeps its own (larger) scale
// exactly — no precision is lost on parse.
func Parse(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, fmt.Errorf("%w: empty string", ErrInvalidDecimal)
	}
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	} else if strings.HasPrefix(s, "+") {
		s = s[1:]
	}
	intPart := s
	fracPart := ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart = s[:i]
		fracPart = s[i+1:]
	}
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart + fracPart {
		if r < '0' || r > '9' {
			return Money{}, fmt.Errorf("%w: %q", ErrInvalidDecimal, s)
		}
	}
	scale := len(fracPart)
	digits := intPart + fracPart
	minor, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q: %w", ErrInvalidDecimal, s, err)
	}
	if neg {
		minor = -minor
	}
	m := Money{Minor: minor, Scale: scale}
	if scale < MinScale {
		m = m.RescaleTo(MinScale)
	}
	return m, nil
}

// MustParse parses s and panics on error. Intended for constants/tests.
func MustParse(s string) Money {
	m, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return m
}

// RescaleTo converts m to a new scale, rounding half-up on the way down.
// Rescaling up is always exact.
func (m Money) RescaleTo(newScale int) Money {
	if newScale == m.Scale {
		return m
	}
	if newScale > m.Scale {
		factor := pow10(newScale - m.Scale)
		return Money{Minor: m.Minor * factor, Scale: newScale}
	}
	// Scaling down: round half up (away from zero on .5 boundary).
	drop := m.Scale - newScale
	factor := pow10(drop)
	half := factor / 2
	minor := m.Minor
	sign := int64(1)
	if minor < 0 {
		sign = -1
		minor = -minor
	}
	rounded := (minor + half) / factor
	return Money{Minor: sign * rounded, Scale: newScale}
}

func pow10(n int) int64 {
	v := int64(1)
	for i := 0; i < n; i++ {
		v *= 10
	}
	return v
}

// commonScale rescales a and b up to the larger of their two scales.
func commonScale(a, b Money) (Money, Money) {
	s := a.Scale
	if b.Scale > s {
		s = b.Scale
	}
	return a.RescaleTo(s), b.RescaleTo(s)
}

// Add returns a+b, rescaled to the larger of the two scales.
func (m Money) Add(o Money) Money {
	a, b := commonScale(m, o)
	return Money{Minor: a.Minor + b.Minor, Scale: a.Scale}
}

// Sub returns m-o, rescaled to the larger of the two scales.
func (m Money) Sub(o Money) Money {
	a, b := commonScale(m, o)
	return Money{Minor: a.Minor - b.Minor, Scale: a.Scale}
}

// Abs returns the absolute value of m.
func (m Money) Abs() Money {
	if m.Minor < 0 {
		return Money{Minor: -m.Minor, Scale: m.Scale}
	}
	return m
}

// Neg returns -m.
func (m Money) Neg() Money { return Money{Minor: -m.Minor, Scale: m.Scale} }

// IsZero reports whether m is exactly zero.
func (m Money) IsZero() bool { return m.Minor == 0 }

// Cmp returns -1, 0, or 1 comparing m to o (after rescaling to a common scale).
func (m Money) Cmp(o Money) int {
	a, b := commonScale(m, o)
	switch {
	case a.Minor < b.Minor:
		return -1
	case a.Minor > b.Minor:
		return 1
	default:
		return 0
	}
}

// Equal reports whether m == o numerically, regardless of scale.
func (m Money) Equal(o Money) bool { return m.Cmp(o) == 0 }

// WithinTolerance reports whether |m-o| <= tol. Ties (exact equality to the
// tolerance) pass — the comparison is inclusive, per spec §8 boundary
// behavior ("a 0.05 difference passes, 0.0501 fails").
func (m Money) WithinTolerance(o, tol Money) bool {
	diff := m.Sub(o).Abs()
	return diff.Cmp(tol) <= 0
}

// Sum adds a slice of Money values, starting from zero at MinScale.
func Sum(values []Money) Money {
	total := Zero()
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// String renders the amount as a decimal string with exactly Scale
// fractional digits, e.g. "12345.6700". This is a display-only
// representation; it never rounds (the value is already fixed-point).
func (m Money) String() string {
	scale := m.Scale
	if scale < 0 {
		scale = 0
	}
	neg := m.Minor < 0
	minor := m.Minor
	if neg {
		minor = -minor
	}
	digits := strconv.FormatInt(minor, 10)
	for len(digits) <= scale {
		digits = "0" + digits
	}
	var intPart, fracPart string
	if scale == 0 {
		intPart, fracPart = digits, ""
	} else {
		intPart, fracPart = digits[:len(digits)-scale], digits[len(digits)-scale:]
	}
	var b bytes.Buffer
	if neg {
		b.WriteByte('-')
	}
	b.WriteString(intPart)
	if fracPart != "" {
		b.WriteByte('.')
		b.WriteString(fracPart)
	}
	return b.String()
}

// DisplayRounded renders m rounded half-up to displayScale fractional
// digits — the one place spec §3 permits rounding ("round half up on
// display only"). Internal storage/comparisons are never affected.
func (m Money) DisplayRounded(displayScale int) string {
	return m.RescaleTo(displayScale).String()
}

// MarshalJSON encodes Money as a decimal string, matching the ERP payload
// convention in spec §6 ("Amount fields are decimal strings with explicit
// scale").
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON accepts either a JSON string ("123.45") or a JSON number
// (123.45), since extractor output may return either shape.
func (m *Money) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		parsed, perr := Parse(s)
		if perr != nil {
			return perr
		}
		*m = parsed
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("money: cannot unmarshal %s: %w", data, err)
	}
	parsed, perr := Parse(strconv.FormatFloat(f, 'f', -1, 64))
	if perr != nil {
		return perr
	}
	*m = parsed
	return nil
}

// Value implements driver.Valuer so Money can be written directly by
// database/sql as its canonical decimal string.
func (m Money) Value() (driver.Value, error) {
	return m.String(), nil
}

// Scan implements sql.Scanner, accepting string, []byte, int64, or float64.
func (m *Money) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*m = Zero()
		return nil
	case string:
		parsed, err := Parse(v)
		if err != nil {
			return err
		}
		*m = parsed
		return nil
	case []byte:
		parsed, err := Parse(string(v))
		if err != nil {
			return err
		}
		*m = parsed
		return nil
	case int64:
		*m = Money{Minor: v * pow10(MinScale), Scale: MinScale}
		return nil
	case float64:
		parsed, err := Parse(strconv.FormatFloat(v, 'f', -1, 64))
		if err != nil {
			return err
		}
		*m = parsed
		return nil
	default:
		return fmt.Errorf("money: unsupported scan type %T", src)
	}
}
