// Package obfuscate deterministically masks sensitive values before they
// are persisted: every alphanumeric character becomes '0', separators and
// signs survive so the shape of the value stays recognizable.
//
// Values enter through a closed set of variants (IntValue, FloatValue,
// StringValue); anything else is rejected at the boundary instead of being
// dispatched on runtime type.
package obfuscate

import (
	"fmt"
	"strconv"
	"unicode"
)

// Value is the closed set of maskable kinds.
type Value interface {
	isValue()
	// Mask returns the obfuscated value of the same kind.
	Mask() Value
}

// IntValue is a maskable integer.
type IntValue int64

// FloatValue is a maskable float.
type FloatValue float64

// StringValue is a maskable string.
type StringValue string

func (IntValue) isValue()    {}
func (FloatValue) isValue()  {}
func (StringValue) isValue() {}

// Mask zeroes the digits of the integer, keeping the sign.
func (v IntValue) Mask() Value {
	masked := maskString(strconv.FormatInt(int64(v), 10))
	n, err := strconv.ParseInt(masked, 10, 64)
	if err != nil {
		// Digits masked to zero always reparse; keep the fallback anyway.
		return IntValue(0)
	}
	return IntValue(n)
}

// Mask zeroes the digits of the float, keeping sign, decimal point and
// exponent separators.
func (v FloatValue) Mask() Value {
	masked := maskString(strconv.FormatFloat(float64(v), 'f', -1, 64))
	f, err := strconv.ParseFloat(masked, 64)
	if err != nil {
		return FloatValue(0)
	}
	return FloatValue(f)
}

// Mask replaces every alphanumeric character with '0'.
func (v StringValue) Mask() Value {
	return StringValue(maskString(string(v)))
}

// UnsupportedTypeError marks a value kind the masker cannot represent.
type UnsupportedTypeError struct {
	Kind string
}

func (e *UnsupportedTypeError) Error() string {
	return "obfuscation for type " + e.Kind + " is not supported"
}

// FromAny converts a dynamically-typed value into a Value, rejecting
// unrepresentable kinds. JSON numbers arrive as float64.
func FromAny(v any) (Value, error) {
	switch val := v.(type) {
	case int:
		return IntValue(val), nil
	case int64:
		return IntValue(val), nil
	case float64:
		return FloatValue(val), nil
	case string:
		return StringValue(val), nil
	default:
		return nil, &UnsupportedTypeError{Kind: fmt.Sprintf("%T", v)}
	}
}

// String masks a string value through the variant boundary.
func String(s string) string {
	v, _ := FromAny(s) // strings are always representable
	return string(v.Mask().(StringValue))
}

// Int64 masks an integer value through the variant boundary.
func Int64(n int64) int64 {
	v, _ := FromAny(n) // int64 is always representable
	return int64(v.Mask().(IntValue))
}

func maskString(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			out = append(out, '0')
		} else {
			out = append(out, r)
		}
	}
	return string(out)
}
