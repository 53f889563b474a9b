// Package location extracts a coarse location signal from free-form user text.
// It is a keyword matcher, not a parser: false negatives are expected and the
// caller asks the user to rephrase.
package location

import (
	"strings"
)

// Preference is a free-text preference tag.
type Preference string

// Preference tags.
const (
	PreferQuality Preference = "quality"
	PreferNearby  Preference = "nearby"
	PreferReviews Preference = "reviews"
)

// Signal is the location information found in one utterance.
type Signal struct {
	HasLocation bool         `json:"has_location"`
	District    string       `json:"district,omitempty"`
	NearCenter  bool         `json:"near_center"`
	Preferences []Preference `json:"preferences,omitempty"`
}

// Prefers reports whether p was detected.
func (s Signal) Prefers(p Preference) bool {
	for _, v := range s.Preferences {
		if v == p {
			return true
		}
	}
	return false
}

// Stems are matched as substrings of the lower-cased text so that inflected
// forms ("улице", "Московском районе") are recognised.
var locationKeywords = []string{
	"улиц", "ул.", "проспект", "пр-т", "пр.", "переул", "пер.", "шоссе", "бульвар",
	"набережн", "площад", "район", "рядом", "около", "возле", "недалеко", "близко",
	"центр", "окраин",
}

const centerStem = "центр"

type district struct {
	stem string
	name string
}

var districts = []district{
	{"ленинск", "ленинский"},
	{"московск", "московский"},
	{"октябрьск", "октябрьский"},
	{"центральн", "центральный"},
}

var preferenceGroups = []struct {
	pref  Preference
	words []string
}{
	{PreferQuality, []string{"хорош", "лучш", "опытн", "проверенн"}},
	{PreferNearby, []string{"близко", "рядом", "недалеко", "около"}},
	{PreferReviews, []string{"отзыв", "рейтинг", "рекомендуют"}},
}

// Extract derives a Signal from raw user text. It never fails.
func Extract(text string) Signal {
	lower := strings.ToLower(text)
	var s Signal

	for _, kw := range locationKeywords {
		if strings.Contains(lower, kw) {
			s.HasLocation = true
			break
		}
	}

	// The district mentioned earliest in the text wins.
	best := -1
	for _, d := range districts {
		if i := strings.Index(lower, d.stem); i >= 0 && (best < 0 || i < best) {
			best = i
			s.District = d.name
		}
	}
	if s.District != "" {
		s.HasLocation = true
	}

	if strings.Contains(lower, centerStem) {
		s.NearCenter = true
		s.HasLocation = true
	}

	for _, g := range preferenceGroups {
		for _, w := range g.words {
			if strings.Contains(lower, w) {
				s.Preferences = append(s.Preferences, g.pref)
				break
			}
		}
	}

	return s
}

// DistrictStem returns the matching stem for a district name produced by Extract.
func DistrictStem(name string) string {
	for _, d := range districts {
		if d.name == name {
			return d.stem
		}
	}
	return name
}
