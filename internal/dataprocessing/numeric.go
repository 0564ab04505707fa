package dataprocessing

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"rejectcli/internal/workbook"
)

// ErrNumericCoercion is matched by every CoercionError.
var ErrNumericCoercion = errors.New("numeric coercion failure")

// DefaultSentinels are the formula error markers written by LibreOffice and
// Excel in place of a computed value.
var DefaultSentinels = []string{
	"#DIV/0!",
	"#VALUE!",
	"#N/A",
	"#REF!",
	"#NUM!",
	"#NAME?",
	"#NULL!",
	"Err:502",
	"Err:503",
}

// Coercion is the outcome of a successful coercion. Missing is set for empty
// input and formula errors; Value is then 0 and must not be used.
type Coercion struct {
	Value   float64
	Missing bool
	// Sentinel is the matched formula error, if any.
	Sentinel string
}

// CoercionError carries input that held no parsable number.
type CoercionError struct {
	Input  string
	Reason string
}

func (e *CoercionError) Error() string {
	return fmt.Sprintf("numeric coercion failure: %q: %s", e.Input, e.Reason)
}

func (e *CoercionError) Unwrap() error {
	return ErrNumericCoercion
}

// NumericCoercer turns loosely formatted cell text into numbers.
type NumericCoercer struct {
	Sentinels []string
	// CommaDecimal rewrites ',' to '.' before stripping.
	CommaDecimal bool
}

// NewNumericCoercer returns a coercer; nil sentinels select DefaultSentinels.
func NewNumericCoercer(sentinels []string, commaDecimal bool) NumericCoercer {
	if sentinels == nil {
		sentinels = DefaultSentinels
	}
	return NumericCoercer{Sentinels: sentinels, CommaDecimal: commaDecimal}
}

// IsSentinel reports whether s is one of the configured formula errors.
func (c NumericCoercer) IsSentinel(s string) bool {
	s = strings.TrimSpace(s)
	for _, sentinel := range c.Sentinels {
		if strings.EqualFold(s, sentinel) {
			return true
		}
	}
	return false
}

// Coerce removes every character that is not a digit or a decimal point and
// parses the rest.
func (c NumericCoercer) Coerce(raw string) (Coercion, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Coercion{Missing: true}, nil
	}
	if c.IsSentinel(s) {
		return Coercion{Missing: true, Sentinel: s}, nil
	}

	if c.CommaDecimal {
		s = strings.ReplaceAll(s, ",", ".")
	}

	var b strings.Builder
	digits := 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
			b.WriteRune(r)
		case r == '.':
			b.WriteRune(r)
		}
	}
	if digits == 0 {
		return Coercion{}, &CoercionError{Input: raw, Reason: "no digits"}
	}

	v, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return Coercion{}, &CoercionError{Input: raw, Reason: fmt.Sprintf("%q is not a number", b.String())}
	}
	return Coercion{Value: v}, nil
}

// CoerceCell passes finite Number cells through and coerces String cells.
func (c NumericCoercer) CoerceCell(cell workbook.Cell) (Coercion, error) {
	switch cell.Kind {
	case workbook.Number:
		if math.IsNaN(cell.Number) || math.IsInf(cell.Number, 0) {
			return Coercion{}, &CoercionError{Input: cell.Value(), Reason: "not a finite number"}
		}
		return Coercion{Value: cell.Number}, nil
	case workbook.String:
		return c.Coerce(cell.Text)
	default:
		return Coercion{Missing: true}, nil
	}
}
