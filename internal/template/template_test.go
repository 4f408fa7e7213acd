package template

import (
	"context"
	"testing"

	"github.com/AustinZ21/Privyloop-sub001/internal/dbopen"
	"github.com/AustinZ21/Privyloop-sub001/internal/settings"
	"github.com/AustinZ21/Privyloop-sub001/internal/store"

	_ "modernc.org/sqlite"
)

func testSystem(t *testing.T) (*System, *store.Store) {
	t.Helper()
	db := dbopen.OpenMemory(t, dbopen.WithSchema(store.Schema))
	st := store.New(db)
	return New(st, nil), st
}

func seedPlatform(t *testing.T, st *store.Store, id string) {
	t.Helper()
	err := st.InsertPlatform(context.Background(), &store.Platform{
		ID: id, Slug: "google", Name: "Google", Domain: "google.com",
		ConfigVersion: "v1", IsActive: true, IsSupported: true,
	})
	if err != nil {
		t.Fatalf("insert platform: %v", err)
	}
}

func TestMatchScore(t *testing.T) {
	tpl := testTemplate()

	// Full structural match regardless of values.
	extracted := settings.UserSettings{
		"privacy": {
			"ad-personalization": settings.Bool(false),
			"activity-history":   settings.Bool(false),
		},
		"notifications": {
			"email-frequency": settings.Choice("never"),
			"display-name":    settings.Text("Bob"),
		},
	}
	if got := MatchScore(tpl.Structure, extracted); got != 1.0 {
		t.Errorf("full match score = %v, want 1.0", got)
	}

	// Half the declared settings missing.
	partial := settings.UserSettings{
		"privacy": {
			"ad-personalization": settings.Bool(true),
			"activity-history":   settings.Bool(true),
		},
	}
	if got := MatchScore(tpl.Structure, partial); got != 0.5 {
		t.Errorf("partial score = %v, want 0.5", got)
	}

	// Wrong runtime kind does not count as a match.
	wrongKind := settings.UserSettings{
		"privacy": {
			"ad-personalization": settings.Text("yes"),
			"activity-history":   settings.Bool(true),
		},
	}
	if got := MatchScore(tpl.Structure, wrongKind); got != 0.25 {
		t.Errorf("wrong-kind score = %v, want 0.25", got)
	}

	// Empty structure never matches.
	if got := MatchScore(settings.Structure{}, extracted); got != 0 {
		t.Errorf("empty structure score = %v, want 0", got)
	}
}

func TestCreateNewTemplate(t *testing.T) {
	sys, st := testSystem(t)
	ctx := context.Background()
	seedPlatform(t, st, "plt_1")

	extracted := settings.UserSettings{
		"privacy": {"ads": settings.Bool(true)},
	}
	tpl, err := sys.CreateNewTemplate(ctx, "plt_1", extracted)
	if err != nil {
		t.Fatalf("CreateNewTemplate: %v", err)
	}

	if tpl.Version != "1.0.0" {
		t.Errorf("Version = %q, want %q", tpl.Version, "1.0.0")
	}
	if tpl.Hash == "" {
		t.Error("Hash is empty")
	}
	def, ok := tpl.Structure["privacy"].Settings["ads"]
	if !ok {
		t.Fatal("structure missing privacy/ads")
	}
	if def.Type != settings.TypeToggle {
		t.Errorf("inferred type = %q, want toggle", def.Type)
	}
	if !settings.Equal(def.Default, settings.Bool(true)) {
		t.Errorf("default = %v, want true", def.Default)
	}
	if def.Name != "Ads" {
		t.Errorf("display name = %q, want %q", def.Name, "Ads")
	}

	// A second template for the same platform gets the next major version.
	tpl2, err := sys.CreateNewTemplate(ctx, "plt_1", settings.UserSettings{
		"privacy": {"tracking": settings.Bool(false)},
	})
	if err != nil {
		t.Fatalf("CreateNewTemplate #2: %v", err)
	}
	if tpl2.Version != "2.0.0" {
		t.Errorf("second Version = %q, want %q", tpl2.Version, "2.0.0")
	}
}

func TestFindMatchingTemplate(t *testing.T) {
	sys, st := testSystem(t)
	ctx := context.Background()
	seedPlatform(t, st, "plt_1")

	extracted := settings.UserSettings{
		"privacy": {"ads": settings.Bool(true), "tracking": settings.Bool(false)},
	}
	created, err := sys.CreateNewTemplate(ctx, "plt_1", extracted)
	if err != nil {
		t.Fatalf("CreateNewTemplate: %v", err)
	}

	// Same structure, different values → same template.
	found, err := sys.FindMatchingTemplate(ctx, "plt_1", settings.UserSettings{
		"privacy": {"ads": settings.Bool(false), "tracking": settings.Bool(true)},
	})
	if err != nil {
		t.Fatalf("FindMatchingTemplate: %v", err)
	}
	if found == nil || found.ID != created.ID {
		t.Fatalf("found = %v, want template %s", found, created.ID)
	}

	// Drifted structure → no match.
	found, err = sys.FindMatchingTemplate(ctx, "plt_1", settings.UserSettings{
		"account": {"something-else": settings.Text("x")},
	})
	if err != nil {
		t.Fatalf("FindMatchingTemplate: %v", err)
	}
	if found != nil {
		t.Errorf("drifted structure matched template %s", found.ID)
	}
}

func TestFindOrCreate(t *testing.T) {
	sys, st := testSystem(t)
	ctx := context.Background()
	seedPlatform(t, st, "plt_1")

	extracted := settings.UserSettings{
		"privacy": {"ads": settings.Bool(true)},
	}
	first, err := sys.FindOrCreate(ctx, "plt_1", extracted)
	if err != nil {
		t.Fatalf("FindOrCreate: %v", err)
	}
	second, err := sys.FindOrCreate(ctx, "plt_1", extracted)
	if err != nil {
		t.Fatalf("FindOrCreate #2: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("second call created %s, want reuse of %s", second.ID, first.ID)
	}
}

func TestArchiveTemplateExcludedFromMatching(t *testing.T) {
	sys, st := testSystem(t)
	ctx := context.Background()
	seedPlatform(t, st, "plt_1")

	extracted := settings.UserSettings{
		"privacy": {"ads": settings.Bool(true)},
	}
	tpl, err := sys.CreateNewTemplate(ctx, "plt_1", extracted)
	if err != nil {
		t.Fatalf("CreateNewTemplate: %v", err)
	}

	ok, err := sys.ArchiveTemplate(ctx, tpl.ID)
	if err != nil || !ok {
		t.Fatalf("ArchiveTemplate: ok=%v err=%v", ok, err)
	}

	found, err := sys.FindMatchingTemplate(ctx, "plt_1", extracted)
	if err != nil {
		t.Fatalf("FindMatchingTemplate: %v", err)
	}
	if found != nil {
		t.Errorf("archived template %s still matched", found.ID)
	}

	// Archived templates remain readable for migrations.
	got, err := sys.GetTemplate(ctx, tpl.ID)
	if err != nil {
		t.Fatalf("GetTemplate: %v", err)
	}
	if got == nil || got.IsActive {
		t.Errorf("archived template = %+v, want inactive but present", got)
	}
}

func TestHashStructureStable(t *testing.T) {
	tpl := testTemplate()
	h1, err := HashStructure(tpl.Structure)
	if err != nil {
		t.Fatalf("HashStructure: %v", err)
	}
	h2, err := HashStructure(testTemplate().Structure)
	if err != nil {
		t.Fatalf("HashStructure: %v", err)
	}
	if h1 != h2 {
		t.Errorf("hash not stable: %s != %s", h1, h2)
	}

	changed := testTemplate()
	cat := changed.Structure["privacy"]
	cat.Settings["ad-personalization"] = settings.Setting{
		Name: "Ad Personalization", Type: settings.TypeToggle,
		Default: settings.Bool(false), RiskLevel: "high",
	}
	h3, err := HashStructure(changed.Structure)
	if err != nil {
		t.Fatalf("HashStructure: %v", err)
	}
	if h3 == h1 {
		t.Error("hash unchanged after structural edit")
	}
}
