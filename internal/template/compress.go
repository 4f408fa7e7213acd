package template

import (
	"github.com/AustinZ21/Privyloop-sub001/internal/settings"
)

// Compress reduces full user settings to the delta against a template's
// defaults. A value is kept only when the template does not declare its
// category or setting (unknown extension — always kept), or when it differs
// from the declared default. Categories left empty are omitted entirely.
//
// Law: Decompress(t, Compress(t, x)) == x for any x whose known keys fit the
// template and whose unknown keys are arbitrary.
func Compress(t *Template, full settings.UserSettings) settings.UserSettings {
	compressed := make(settings.UserSettings)
	for catID, values := range full {
		cat, knownCat := t.Structure[catID]
		for setID, v := range values {
			if knownCat {
				if def, knownSet := cat.Settings[setID]; knownSet {
					if settings.Equal(v, def.Default) {
						continue
					}
				}
			}
			compressed.Set(catID, setID, v)
		}
	}
	return compressed
}

// Decompress rebuilds full user settings from a compressed delta: every
// template default first, then every compressed entry overlaid on top —
// including entries for categories the template does not know (pass-through).
func Decompress(t *Template, compressed settings.UserSettings) settings.UserSettings {
	full := make(settings.UserSettings)
	for catID, cat := range t.Structure {
		for setID, def := range cat.Settings {
			full.Set(catID, setID, def.Default)
		}
	}
	for catID, values := range compressed {
		for setID, v := range values {
			full.Set(catID, setID, v)
		}
	}
	return full
}

// CompressionStats reports how much storage compression saves for one user.
type CompressionStats struct {
	OriginalSize     int     `json:"originalSize"`
	CompressedSize   int     `json:"compressedSize"`
	CompressionRatio float64 `json:"compressionRatio"`
	Savings          int     `json:"savings"`
}

// Stats measures sizes as UTF-8 byte lengths of canonical JSON: the original
// is the template structure and the full settings combined (what storing
// without templates would cost per user), the compressed is the delta alone.
func Stats(t *Template, full settings.UserSettings) (*CompressionStats, error) {
	combined := struct {
		Structure settings.Structure    `json:"structure"`
		Settings  settings.UserSettings `json:"settings"`
	}{t.Structure, full}

	original, err := settings.CanonicalJSON(combined)
	if err != nil {
		return nil, err
	}
	compressed, err := settings.CanonicalJSON(Compress(t, full))
	if err != nil {
		return nil, err
	}

	stats := &CompressionStats{
		OriginalSize:   len(original),
		CompressedSize: len(compressed),
	}
	stats.Savings = stats.OriginalSize - stats.CompressedSize
	if stats.OriginalSize > 0 {
		stats.CompressionRatio = float64(stats.CompressedSize) / float64(stats.OriginalSize)
	}
	return stats, nil
}
