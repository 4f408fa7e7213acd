package template

import (
	"github.com/AustinZ21/Privyloop-sub001/internal/settings"
)

// Migrate carries a user's compressed settings from one template version to
// another. The old delta is decompressed to full values, each setting the
// new template declares is carried forward through the type-coercion table,
// and the result is re-compressed against the new template. Settings absent
// from the user's old data are skipped — there is nothing to migrate.
func Migrate(oldT, newT *Template, compressedOld settings.UserSettings) settings.UserSettings {
	full := Decompress(oldT, compressedOld)

	migrated := make(settings.UserSettings)
	for catID, cat := range newT.Structure {
		for setID, newDef := range cat.Settings {
			v, ok := full.Get(catID, setID)
			if !ok {
				continue
			}
			migrated.Set(catID, setID, coerce(oldType(oldT, catID, setID, v), newDef, v))
		}
	}
	return Compress(newT, migrated)
}

// oldType resolves the declared type of a setting under the old template,
// falling back to inference for values the old template never declared.
func oldType(t *Template, catID, setID string, v settings.Value) string {
	if cat, ok := t.Structure[catID]; ok {
		if def, ok := cat.Settings[setID]; ok {
			return def.Type
		}
	}
	return settings.InferType(v)
}

// coerce adapts an old value to a new setting's declared type:
//
//	toggle → select  true/false become "enabled"/"disabled"
//	select → toggle  "enabled","on","true","1" (ci) become true, else false
//	same type        pass through unchanged
//	anything else    fall back to the new setting's default
func coerce(oldType string, newDef settings.Setting, v settings.Value) settings.Value {
	if oldType == newDef.Type {
		return v
	}
	switch {
	case oldType == settings.TypeToggle && newDef.Type == settings.TypeSelect:
		if on, ok := v.AsBool(); ok {
			return settings.ToggleToChoice(on)
		}
	case oldType == settings.TypeSelect && newDef.Type == settings.TypeToggle:
		if s, ok := v.AsString(); ok {
			return settings.ChoiceToToggle(s)
		}
	}
	return newDef.Default
}
