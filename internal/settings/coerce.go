package settings

import "strings"

// onWords are the strings a toggle-shaped value may be spelled as when a
// platform renders it through a select control.
var onWords = map[string]bool{
	"enabled": true,
	"on":      true,
	"true":    true,
	"1":       true,
}

// toggleVocabulary is the set of strings recognised as toggle states during
// type inference.
var toggleVocabulary = map[string]bool{
	"on": true, "off": true,
	"enabled": true, "disabled": true,
	"true": true, "false": true,
}

// IsToggleWord reports whether s spells a toggle state ("on", "disabled", …).
func IsToggleWord(s string) bool {
	return toggleVocabulary[strings.ToLower(s)]
}

// ToggleToChoice maps a toggle state to its select-control spelling.
func ToggleToChoice(on bool) Value {
	if on {
		return Choice("enabled")
	}
	return Choice("disabled")
}

// ChoiceToToggle maps a select-control spelling back to a toggle state.
// Anything outside the on-vocabulary (case-insensitive) means off.
func ChoiceToToggle(s string) Value {
	return Bool(onWords[strings.ToLower(s)])
}

// InferType guesses the setting type from a scraped value: booleans are
// toggles, strings spelling a toggle state are toggles, other strings are
// selects, anything else is text.
func InferType(v Value) string {
	if _, ok := v.AsBool(); ok {
		return TypeToggle
	}
	if s, ok := v.AsString(); ok {
		if IsToggleWord(s) {
			return TypeToggle
		}
		return TypeSelect
	}
	return TypeText
}
