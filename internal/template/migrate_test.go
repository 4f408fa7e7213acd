package template

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/AustinZ21/Privyloop-sub001/internal/settings"
)

func TestMigrateSameTypesKeepsDeviations(t *testing.T) {
	oldT := testTemplate()
	newT := testTemplate()
	newT.ID, newT.Version = "tpl_2", "2.0.0"

	compressed := settings.UserSettings{
		"privacy": {"ad-personalization": settings.Bool(false)},
	}
	got := Migrate(oldT, newT, compressed)
	if diff := cmp.Diff(compressed, got, valueComparer()); diff != "" {
		t.Errorf("identical-template migration mismatch (-want +got):\n%s", diff)
	}
}

func TestMigrateTypeCoercions(t *testing.T) {
	oldT := testTemplate()
	newT := testTemplate()
	newT.ID, newT.Version = "tpl_2", "2.0.0"

	// ad-personalization becomes a select; email-frequency becomes a toggle.
	privacy := newT.Structure["privacy"]
	privacy.Settings["ad-personalization"] = settings.Setting{
		Name: "Ad Personalization", Type: settings.TypeSelect,
		Default: settings.Choice("enabled"), RiskLevel: "high",
	}
	notifications := newT.Structure["notifications"]
	notifications.Settings["email-frequency"] = settings.Setting{
		Name: "Email Frequency", Type: settings.TypeToggle,
		Default: settings.Bool(true), RiskLevel: "low",
	}

	// User had turned ad personalization off; email frequency was at the old
	// default "weekly".
	compressed := settings.UserSettings{
		"privacy": {"ad-personalization": settings.Bool(false)},
	}

	got := Migrate(oldT, newT, compressed)
	want := settings.UserSettings{
		// toggle false → select "disabled"; differs from new default.
		"privacy": {"ad-personalization": settings.Choice("disabled")},
		// select "weekly" → toggle false; differs from new default true.
		"notifications": {"email-frequency": settings.Bool(false)},
	}
	if diff := cmp.Diff(want, got, valueComparer()); diff != "" {
		t.Errorf("coercion migration mismatch (-want +got):\n%s", diff)
	}
}

func TestMigrateDroppedSettingDisappears(t *testing.T) {
	oldT := testTemplate()
	newT := testTemplate()
	newT.ID, newT.Version = "tpl_2", "2.0.0"
	delete(newT.Structure["notifications"].Settings, "display-name")

	compressed := settings.UserSettings{
		"notifications": {"display-name": settings.Text("Alice")},
	}
	got := Migrate(oldT, newT, compressed)
	if _, ok := got.Get("notifications", "display-name"); ok {
		t.Errorf("dropped setting survived migration: %v", got)
	}
}

func TestMigrateIncompatibleFallsBackToDefault(t *testing.T) {
	oldT := testTemplate()
	newT := testTemplate()
	newT.ID, newT.Version = "tpl_2", "2.0.0"

	// display-name text → toggle: no coercion exists, new default applies.
	notifications := newT.Structure["notifications"]
	notifications.Settings["display-name"] = settings.Setting{
		Name: "Display Name", Type: settings.TypeToggle,
		Default: settings.Bool(false), RiskLevel: "low",
	}

	compressed := settings.UserSettings{
		"notifications": {"display-name": settings.Text("Alice")},
	}
	got := Migrate(oldT, newT, compressed)
	// The value collapses to the new default, so compression drops it.
	if _, ok := got.Get("notifications", "display-name"); ok {
		t.Errorf("incompatible value kept through migration: %v", got)
	}
}
