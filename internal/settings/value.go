// Package settings defines the shared data model for privacy settings:
// typed setting values, per-user settings maps, and the structural schema
// (categories and setting definitions) that templates are built from.
package settings

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Kind discriminates the value union.
type Kind uint8

const (
	// KindBool is a toggle state.
	KindBool Kind = iota + 1
	// KindText is free-form text.
	KindText
	// KindChoice is one option out of a declared set (radio/select).
	KindChoice
	// KindRaw preserves any other JSON verbatim. Values scraped outside the
	// known vocabulary (numbers, nested objects) round-trip through storage
	// untouched.
	KindRaw
)

// Value is a tagged union for one setting value: Bool | Text | Choice | Raw.
// The zero Value is "absent" and marshals to JSON null.
type Value struct {
	kind Kind
	b    bool
	s    string
	raw  json.RawMessage
}

// Bool returns a toggle value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Text returns a free-form text value.
func Text(s string) Value { return Value{kind: KindText, s: s} }

// Choice returns a selected-option value.
func Choice(s string) Value { return Value{kind: KindChoice, s: s} }

// Raw returns a verbatim JSON value. The input is compacted so that equal
// documents compare equal regardless of whitespace.
func Raw(data []byte) Value {
	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		// Not valid JSON: keep the bytes as-is so nothing is lost.
		return Value{kind: KindRaw, raw: append(json.RawMessage(nil), data...)}
	}
	return Value{kind: KindRaw, raw: append(json.RawMessage(nil), buf.Bytes()...)}
}

// Kind reports which branch of the union is set.
func (v Value) Kind() Kind { return v.kind }

// IsZero reports whether the value is absent.
func (v Value) IsZero() bool { return v.kind == 0 }

// AsBool returns the toggle state and whether the value is a bool.
func (v Value) AsBool() (bool, bool) {
	return v.b, v.kind == KindBool
}

// AsString returns the string content and whether the value is text or choice.
func (v Value) AsString() (string, bool) {
	return v.s, v.kind == KindText || v.kind == KindChoice
}

// MarshalJSON writes the underlying JSON scalar (or verbatim raw document).
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindBool:
		if v.b {
			return []byte("true"), nil
		}
		return []byte("false"), nil
	case KindText, KindChoice:
		return json.Marshal(v.s)
	case KindRaw:
		return v.raw, nil
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON classifies the incoming scalar: booleans become KindBool,
// strings KindText, everything else KindRaw (preserved verbatim).
func (v *Value) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return fmt.Errorf("settings: empty value")
	}
	switch {
	case bytes.Equal(trimmed, []byte("true")):
		*v = Bool(true)
	case bytes.Equal(trimmed, []byte("false")):
		*v = Bool(false)
	case trimmed[0] == '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return fmt.Errorf("settings: bad string value: %w", err)
		}
		*v = Text(s)
	case bytes.Equal(trimmed, []byte("null")):
		*v = Value{}
	default:
		*v = Raw(trimmed)
	}
	return nil
}

// Equal reports deep equality of two values. Text and Choice carry the same
// payload and compare equal when their strings match: a scraped "enabled"
// equals a declared Choice("enabled").
func Equal(a, b Value) bool {
	if a.kind == KindBool && b.kind == KindBool {
		return a.b == b.b
	}
	aStr, aOK := a.AsString()
	bStr, bOK := b.AsString()
	if aOK && bOK {
		return aStr == bStr
	}
	if a.kind == KindRaw && b.kind == KindRaw {
		return bytes.Equal(a.raw, b.raw)
	}
	return a.kind == 0 && b.kind == 0
}
