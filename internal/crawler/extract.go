package crawler

import (
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"

	"github.com/AustinZ21/Privyloop-sub001/internal/settings"
)

// extractSettings walks the static HTML for recognisable settings controls:
// checkboxes, elements carrying role=switch or aria-checked, and select
// elements. Returns the extracted settings keyed by category and the number
// of controls found.
func extractSettings(html string) (settings.UserSettings, int, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, 0, err
	}

	out := make(settings.UserSettings)
	found := 0
	add := func(sel *goquery.Selection, id string, v settings.Value) {
		key := slugify(id)
		if key == "" {
			return
		}
		cat := categoryOf(sel)
		if out[cat] == nil {
			out[cat] = make(map[string]settings.Value)
		}
		if _, dup := out[cat][key]; dup {
			return
		}
		out[cat][key] = v
		found++
	}

	doc.Find(`input[type="checkbox"]`).Each(func(_ int, s *goquery.Selection) {
		_, checked := s.Attr("checked")
		add(s, controlID(s), settings.Bool(checked))
	})

	doc.Find(`[role="switch"], [aria-checked]`).Each(func(_ int, s *goquery.Selection) {
		if goquery.NodeName(s) == "input" && s.AttrOr("type", "") == "checkbox" {
			return // already handled above
		}
		state := strings.EqualFold(s.AttrOr("aria-checked", ""), "true")
		add(s, controlID(s), settings.Bool(state))
	})

	doc.Find("select").Each(func(_ int, s *goquery.Selection) {
		opt := s.Find("option[selected]").First()
		if opt.Length() == 0 {
			opt = s.Find("option").First()
		}
		if opt.Length() == 0 {
			return
		}
		val := opt.AttrOr("value", strings.TrimSpace(opt.Text()))
		add(s, controlID(s), settings.Choice(val))
	})

	doc.Find(`input[type="text"][data-setting], input[type="email"][data-setting]`).Each(func(_ int, s *goquery.Selection) {
		add(s, controlID(s), settings.Text(s.AttrOr("value", "")))
	})

	return out, found, nil
}

// controlID picks the most stable identifier available for a control.
func controlID(s *goquery.Selection) string {
	for _, attr := range []string{"data-setting", "id", "name", "aria-label"} {
		if v := strings.TrimSpace(s.AttrOr(attr, "")); v != "" {
			return v
		}
	}
	return ""
}

// categoryOf derives a category key from the nearest enclosing section or
// fieldset; controls outside any get "general".
func categoryOf(s *goquery.Selection) string {
	anc := s.Closest("section, fieldset")
	if anc.Length() == 0 {
		return "general"
	}
	for _, attr := range []string{"data-category", "id", "aria-label"} {
		if v := slugify(anc.AttrOr(attr, "")); v != "" {
			return v
		}
	}
	if legend := strings.TrimSpace(anc.Find("legend, h1, h2, h3").First().Text()); legend != "" {
		if v := slugify(legend); v != "" {
			return v
		}
	}
	return "general"
}

// slugify lowercases and kebab-cases an identifier so extracted keys line up
// with template setting names.
func slugify(s string) string {
	var b strings.Builder
	lastDash := true // suppress leading dashes
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}
