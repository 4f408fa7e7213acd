// Package template implements the template engine: matching extracted
// settings against known structural schemas, creating new template versions
// on structural drift, compressing user settings to per-template deltas, and
// migrating users across template versions.
//
// Thousands of users share near-identical settings structures per platform;
// storing only the values that differ from the active template's defaults
// keeps snapshots small.
package template

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"

	"github.com/AustinZ21/Privyloop-sub001/internal/idgen"
	"github.com/AustinZ21/Privyloop-sub001/internal/settings"
	"github.com/AustinZ21/Privyloop-sub001/internal/store"
)

// Template is re-exported from internal/store for external callers.
type Template = store.Template

// Match thresholds. A score at or above MatchThreshold short-circuits the
// search; between AcceptThreshold and MatchThreshold the best candidate is
// still used; below AcceptThreshold the structure has drifted and a new
// template version is needed.
const (
	MatchThreshold  = 0.95
	AcceptThreshold = 0.80
)

// System is the template engine.
type System struct {
	store  *store.Store
	logger *slog.Logger
	newID  idgen.Generator
}

// New creates a System.
func New(s *store.Store, logger *slog.Logger) *System {
	if logger == nil {
		logger = slog.Default()
	}
	return &System{
		store:  s,
		logger: logger,
		newID:  idgen.Prefixed("tpl_", idgen.Default),
	}
}

// FindMatchingTemplate scores extracted data against the platform's active
// templates, newest first. Returns the first template at or above
// MatchThreshold, otherwise the best one at or above AcceptThreshold,
// otherwise nil.
func (sys *System) FindMatchingTemplate(ctx context.Context, platformID string, extracted settings.UserSettings) (*Template, error) {
	templates, err := sys.store.ListActiveTemplates(ctx, platformID)
	if err != nil {
		return nil, fmt.Errorf("template: list active: %w", err)
	}

	var best *Template
	bestScore := 0.0
	for _, t := range templates {
		score := MatchScore(t.Structure, extracted)
		if score >= MatchThreshold {
			sys.logger.Debug("template: high-confidence match",
				"template_id", t.ID, "platform_id", platformID, "score", score)
			return t, nil
		}
		if score > bestScore {
			best, bestScore = t, score
		}
	}

	if best != nil && bestScore >= AcceptThreshold {
		sys.logger.Debug("template: accepted best match",
			"template_id", best.ID, "platform_id", platformID, "score", bestScore)
		return best, nil
	}
	return nil, nil
}

// MatchScore measures how much of a template's declared structure the
// extracted data still exposes: for every declared (category, setting) pair,
// the pair counts as matched when the extracted data holds a value of a
// compatible runtime kind at that path. Structure-based on purpose — it asks
// whether the page still has the fields, not whether values equal defaults.
func MatchScore(structure settings.Structure, extracted settings.UserSettings) float64 {
	total, match := 0, 0
	for catID, cat := range structure {
		for setID, def := range cat.Settings {
			total++
			if v, ok := extracted.Get(catID, setID); ok && settings.Compatible(def.Type, v) {
				match++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(match) / float64(total)
}

// CreateNewTemplate synthesises a template from extracted data: one
// category/setting entry per extracted key, types inferred from the runtime
// values, risk level defaulting to "medium". The structure is hashed over
// its canonical JSON form, and the version is derived from how many
// templates the platform already has.
func (sys *System) CreateNewTemplate(ctx context.Context, platformID string, extracted settings.UserSettings) (*Template, error) {
	structure := make(settings.Structure, len(extracted))
	for catID, values := range extracted {
		cat := settings.Category{
			Name:     settings.DisplayName(catID),
			Settings: make(map[string]settings.Setting, len(values)),
		}
		for setID, v := range values {
			cat.Settings[setID] = settings.Setting{
				Name:      settings.DisplayName(setID),
				Type:      settings.InferType(v),
				Default:   v,
				RiskLevel: "medium",
			}
		}
		structure[catID] = cat
	}

	hash, err := HashStructure(structure)
	if err != nil {
		return nil, fmt.Errorf("template: hash structure: %w", err)
	}

	n, err := sys.store.CountTemplates(ctx, platformID)
	if err != nil {
		return nil, fmt.Errorf("template: count: %w", err)
	}

	t := &Template{
		ID:         sys.newID(),
		PlatformID: platformID,
		Version:    fmt.Sprintf("%d.0.0", n+1),
		Hash:       hash,
		Structure:  structure,
		IsActive:   true,
	}
	if err := sys.store.InsertTemplate(ctx, t); err != nil {
		return nil, fmt.Errorf("template: insert: %w", err)
	}

	sys.logger.Info("template: created",
		"template_id", t.ID, "platform_id", platformID,
		"version", t.Version, "categories", len(structure))
	return t, nil
}

// FindOrCreate returns a matching template or creates a new version when
// none scores high enough.
func (sys *System) FindOrCreate(ctx context.Context, platformID string, extracted settings.UserSettings) (*Template, error) {
	t, err := sys.FindMatchingTemplate(ctx, platformID, extracted)
	if err != nil {
		return nil, err
	}
	if t != nil {
		return t, nil
	}
	return sys.CreateNewTemplate(ctx, platformID, extracted)
}

// GetTemplate retrieves a template by ID.
func (sys *System) GetTemplate(ctx context.Context, id string) (*Template, error) {
	return sys.store.GetTemplate(ctx, id)
}

// ArchiveTemplate marks a template inactive. Archived templates stay in the
// store: existing snapshots reference them and migrations read from them.
func (sys *System) ArchiveTemplate(ctx context.Context, id string) (bool, error) {
	ok, err := sys.store.ArchiveTemplate(ctx, id)
	if err != nil {
		return false, fmt.Errorf("template: archive: %w", err)
	}
	if ok {
		sys.logger.Info("template: archived", "template_id", id)
	}
	return ok, nil
}

// RecordUsage bumps a template's usage counter.
func (sys *System) RecordUsage(ctx context.Context, id string) error {
	return sys.store.IncrementTemplateUsage(ctx, id)
}

// HashStructure computes the content hash of a structure: SHA-256 over the
// canonical (stable key order) JSON serialisation.
func HashStructure(structure settings.Structure) (string, error) {
	canonical, err := settings.CanonicalJSON(structure)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
