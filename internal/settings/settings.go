package settings

import (
	"encoding/json"
	"strings"
)

// Setting types as exposed by platform settings pages.
const (
	TypeToggle = "toggle"
	TypeRadio  = "radio"
	TypeSelect = "select"
	TypeText   = "text"
)

// KnownType reports whether t is a valid setting type.
func KnownType(t string) bool {
	switch t {
	case TypeToggle, TypeRadio, TypeSelect, TypeText:
		return true
	}
	return false
}

// Setting is one declared setting inside a template category.
type Setting struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	Default   Value  `json:"defaultValue"`
	RiskLevel string `json:"riskLevel"`
	Impact    string `json:"impact,omitempty"`
}

// Category groups settings under a page section.
type Category struct {
	Name     string             `json:"name"`
	Settings map[string]Setting `json:"settings"`
}

// Structure is a full structural schema: category id → settings.
type Structure map[string]Category

// UserSettings holds concrete values: category id → setting id → value.
// In compressed form it contains only values that differ from the template
// defaults, plus anything the template does not know about.
type UserSettings map[string]map[string]Value

// Get returns the value at (category, setting), if present.
func (u UserSettings) Get(category, setting string) (Value, bool) {
	cat, ok := u[category]
	if !ok {
		return Value{}, false
	}
	v, ok := cat[setting]
	return v, ok
}

// Set stores a value, allocating the category map if needed.
func (u UserSettings) Set(category, setting string, v Value) {
	cat, ok := u[category]
	if !ok {
		cat = make(map[string]Value)
		u[category] = cat
	}
	cat[setting] = v
}

// Clone returns a deep copy of the settings map.
func (u UserSettings) Clone() UserSettings {
	out := make(UserSettings, len(u))
	for c, m := range u {
		cm := make(map[string]Value, len(m))
		for k, v := range m {
			cm[k] = v
		}
		out[c] = cm
	}
	return out
}

// CanonicalJSON serialises v with stable key ordering. encoding/json sorts
// map keys, which is exactly the canonical form template hashing relies on.
func CanonicalJSON(v any) ([]byte, error) {
	return json.Marshal(v)
}

// DisplayName turns a kebab-case setting id into a human-readable name:
// "ad-personalization" → "Ad Personalization".
func DisplayName(id string) string {
	parts := strings.Split(id, "-")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}

// Compatible reports whether a scraped value's runtime kind matches a
// declared setting type: toggles expect booleans, everything else strings.
// This is structural, not value-based — it answers "does the page still
// expose this field in the shape the template expects".
func Compatible(declared string, v Value) bool {
	switch declared {
	case TypeToggle:
		return v.Kind() == KindBool
	case TypeRadio, TypeSelect, TypeText:
		return v.Kind() == KindText || v.Kind() == KindChoice
	}
	return false
}
