package param

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
)

// ErrBadValue indicates a serialized parameter value of an unsupported shape.
var ErrBadValue = errors.New("unsupported parameter value")

// ValueKind discriminates the shapes a parameter value can take.
type ValueKind uint8

const (
	// ValueNumber is a numeric parameter (mix amount, size, time).
	ValueNumber ValueKind = iota
	// ValueText is an enum-style parameter (mood, character).
	ValueText
	// ValueFlag is a boolean parameter (sidechain active, bypass).
	ValueFlag
)

// Value is one parameter value inside a plugin's settings.
// The zero value is the number 0.
type Value struct {
	kind ValueKind
	num  float64
	text string
	flag bool
}

// Number creates a numeric value.
func Number(v float64) Value {
	return Value{kind: ValueNumber, num: v}
}

// Text creates an enum-style text value.
func Text(v string) Value {
	return Value{kind: ValueText, text: v}
}

// Flag creates a boolean value.
func Flag(v bool) Value {
	return Value{kind: ValueFlag, flag: v}
}

// Kind returns the shape of the value.
func (v Value) Kind() ValueKind {
	return v.kind
}

// Float returns the numeric content, or 0 for non-numeric values.
// Non-finite numbers come back as 0 so frame math never sees NaN or Inf.
func (v Value) Float() float64 {
	if v.kind != ValueNumber {
		return 0
	}
	if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
		return 0
	}
	return v.num
}

// Text returns the text content, or "" for non-text values.
func (v Value) Text() string {
	if v.kind != ValueText {
		return ""
	}
	return v.text
}

// Bool returns the flag content, or false for non-flag values.
func (v Value) Bool() bool {
	if v.kind != ValueFlag {
		return false
	}
	return v.flag
}

// Equal reports whether two values have the same kind and content.
func (v Value) Equal(other Value) bool {
	return v == other
}

// String returns a debug representation of the value.
func (v Value) String() string {
	switch v.kind {
	case ValueText:
		return v.text
	case ValueFlag:
		return strconv.FormatBool(v.flag)
	default:
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	}
}

// MarshalJSON serializes the value as a bare JSON number, string, or bool so
// savedata and presets stay human-readable.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case ValueText:
		return json.Marshal(v.text)
	case ValueFlag:
		return json.Marshal(v.flag)
	default:
		if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
			return json.Marshal(0.0)
		}
		return json.Marshal(v.num)
	}
}

// UnmarshalJSON restores a value from its bare JSON form.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch typed := raw.(type) {
	case float64:
		*v = Number(typed)
	case string:
		*v = Text(typed)
	case bool:
		*v = Flag(typed)
	default:
		return fmt.Errorf("%w: %T", ErrBadValue, raw)
	}
	return nil
}
