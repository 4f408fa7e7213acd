package template

import (
	"github.com/AustinZ21/Privyloop-sub001/internal/settings"
)

// Difference impact levels.
const (
	ImpactBreaking = "breaking"
	ImpactMinor    = "minor"
)

// Difference describes one structural divergence between two templates.
type Difference struct {
	Category string `json:"category"`
	Setting  string `json:"setting,omitempty"` // empty for category-level differences
	Change   string `json:"change"`            // added | removed | changed
	Field    string `json:"field,omitempty"`   // for changed: type | defaultValue | name | riskLevel | impact
	Impact   string `json:"impact"`
}

// Comparison is the outcome of comparing two template structures.
type Comparison struct {
	Similarity       float64      `json:"similarity"`
	Differences      []Difference `json:"differences"`
	NeedsNewTemplate bool         `json:"needsNewTemplate"`
}

// Compare diffs two templates structurally. Category additions and removals
// are breaking (a whole page section appeared or vanished), setting additions
// are minor, setting removals breaking; for settings present on both sides a
// type or default change is breaking, any other field change minor.
//
// Similarity is (totalSettings − breakingSettings) / totalSettings over the
// union of declared settings; 1.0 when neither template declares anything.
// A new template is needed when similarity drops below MatchThreshold.
func Compare(a, b *Template) *Comparison {
	var diffs []Difference
	total, breaking := 0, 0

	for catID, catA := range a.Structure {
		catB, ok := b.Structure[catID]
		if !ok {
			// Category vanished: every setting in it counts as breaking.
			diffs = append(diffs, Difference{Category: catID, Change: "removed", Impact: ImpactBreaking})
			total += len(catA.Settings)
			breaking += len(catA.Settings)
			continue
		}
		d, t, br := compareCategory(catID, catA, catB)
		diffs = append(diffs, d...)
		total += t
		breaking += br
	}

	for catID, catB := range b.Structure {
		if _, ok := a.Structure[catID]; ok {
			continue
		}
		diffs = append(diffs, Difference{Category: catID, Change: "added", Impact: ImpactBreaking})
		total += len(catB.Settings)
		breaking += len(catB.Settings)
	}

	similarity := 1.0
	if total > 0 {
		similarity = float64(total-breaking) / float64(total)
		if similarity < 0 {
			similarity = 0
		}
	}

	return &Comparison{
		Similarity:       similarity,
		Differences:      diffs,
		NeedsNewTemplate: similarity < MatchThreshold,
	}
}

func compareCategory(catID string, a, b settings.Category) (diffs []Difference, total, breaking int) {
	for setID, defA := range a.Settings {
		total++
		defB, ok := b.Settings[setID]
		if !ok {
			diffs = append(diffs, Difference{Category: catID, Setting: setID, Change: "removed", Impact: ImpactBreaking})
			breaking++
			continue
		}
		d, br := compareSetting(catID, setID, defA, defB)
		diffs = append(diffs, d...)
		if br {
			breaking++
		}
	}
	for setID := range b.Settings {
		if _, ok := a.Settings[setID]; ok {
			continue
		}
		total++
		diffs = append(diffs, Difference{Category: catID, Setting: setID, Change: "added", Impact: ImpactMinor})
	}
	return diffs, total, breaking
}

func compareSetting(catID, setID string, a, b settings.Setting) (diffs []Difference, breaking bool) {
	changed := func(field, impact string) {
		diffs = append(diffs, Difference{
			Category: catID, Setting: setID,
			Change: "changed", Field: field, Impact: impact,
		})
		if impact == ImpactBreaking {
			breaking = true
		}
	}

	if a.Type != b.Type {
		changed("type", ImpactBreaking)
	}
	if !settings.Equal(a.Default, b.Default) {
		changed("defaultValue", ImpactBreaking)
	}
	if a.Name != b.Name {
		changed("name", ImpactMinor)
	}
	if a.RiskLevel != b.RiskLevel {
		changed("riskLevel", ImpactMinor)
	}
	if a.Impact != b.Impact {
		changed("impact", ImpactMinor)
	}
	return diffs, breaking
}
