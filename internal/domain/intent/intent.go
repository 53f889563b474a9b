// Package intent interprets oracle output against catalog ground truth.
package intent

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/kailas-cloud/docfinder/internal/domain/catalog"
	"github.com/kailas-cloud/docfinder/internal/domain/location"
)

// Synonym maps a colloquial term to a canonical specialty name.
type Synonym struct {
	Term      string
	Canonical string
}

// Synonyms is ordered: longer, more specific terms come first.
var Synonyms = []Synonym{
	{"детский врач", "педиатр"},
	{"ухо-горло-нос", "оториноларинголог"},
	{"ухогорлонос", "оториноларинголог"},
	{"окулист", "офтальмолог"},
	{"глазной", "офтальмолог"},
	{"зубной", "стоматолог"},
	{"дантист", "стоматолог"},
	{"лор", "оториноларинголог"},
	{"невролог", "невролог"},
	{"психиатр", "психиатр"},
	{"хирург", "хирург"},
	{"терапевт", "терапевт"},
}

// ResolveSpecialty finds the catalog specialty mentioned in text.
// Known names are matched first, then the synonym table.
func ResolveSpecialty(text string, specialties []catalog.Specialty) (catalog.Specialty, bool) {
	lower := strings.ToLower(text)

	for _, s := range specialties {
		name := strings.ToLower(strings.TrimSpace(s.Name))
		if name != "" && strings.Contains(lower, name) {
			return s, true
		}
	}

	for _, syn := range Synonyms {
		if !strings.Contains(lower, syn.Term) {
			continue
		}
		for _, s := range specialties {
			if strings.Contains(strings.ToLower(s.Name), syn.Canonical) {
				return s, true
			}
		}
	}

	return catalog.Specialty{}, false
}

// Outcome classifies a location filter interpretation.
type Outcome int

const (
	// NoOpinion means the oracle returned no usable index.
	NoOpinion Outcome = iota
	// Validated means at least one selected hospital passed the city check.
	Validated
	// Unvalidated means the oracle selected hospitals but none passed the city check.
	Unvalidated
)

func (o Outcome) String() string {
	switch o {
	case Validated:
		return "validated"
	case Unvalidated:
		return "unvalidated"
	default:
		return "no_opinion"
	}
}

// FilterResult is the interpretation of a location filter answer.
type FilterResult struct {
	Outcome Outcome
	// Hospitals holds the selection that passed the city check.
	Hospitals []catalog.Hospital
	// Candidates holds every in-range selection before the city check.
	Candidates []catalog.Hospital
}

var numberRe = regexp.MustCompile(`\d+`)

// ParseIndices returns every integer in text in order of appearance.
func ParseIndices(text string) []int {
	matches := numberRe.FindAllString(text, -1)
	out := make([]int, 0, len(matches))
	for _, m := range matches {
		n, err := strconv.Atoi(m)
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	return out
}

// ResolveLocationFilter maps 1-based indices in text onto hospitals, the exact
// sequence enumerated in the prompt. Out-of-range indices are discarded and
// duplicates collapse. Selected hospitals whose address lacks every city token
// are dropped from Hospitals but kept in Candidates.
func ResolveLocationFilter(text string, hospitals []catalog.Hospital, cityTokens []string) FilterResult {
	seen := make(map[int]bool)
	var candidates []catalog.Hospital
	for _, idx := range ParseIndices(text) {
		if idx < 1 || idx > len(hospitals) || seen[idx] {
			continue
		}
		seen[idx] = true
		candidates = append(candidates, hospitals[idx-1])
	}
	if len(candidates) == 0 {
		return FilterResult{Outcome: NoOpinion}
	}

	var validated []catalog.Hospital
	for _, h := range candidates {
		if InCity(h.Address, cityTokens) {
			validated = append(validated, h)
		}
	}
	if len(validated) == 0 {
		return FilterResult{Outcome: Unvalidated, Candidates: candidates}
	}
	return FilterResult{Outcome: Validated, Hospitals: validated, Candidates: candidates}
}

// InCity reports whether address contains any of the city tokens (case-insensitive).
// An empty token list accepts every non-empty address.
func InCity(address string, cityTokens []string) bool {
	lower := strings.ToLower(address)
	if strings.TrimSpace(lower) == "" {
		return false
	}
	if len(cityTokens) == 0 {
		return true
	}
	for _, tok := range cityTokens {
		if tok != "" && strings.Contains(lower, strings.ToLower(tok)) {
			return true
		}
	}
	return false
}

var centerStreets = []string{"центр", "ленина", "кирова", "театральная", "площадь", "октябрьская"}

var queryStopWords = map[string]bool{
	"улица": true, "улице": true, "улицу": true, "улицы": true,
	"проспект": true, "проспекте": true, "переулок": true, "переулке": true,
	"район": true, "районе": true, "рядом": true, "около": true, "возле": true,
	"недалеко": true, "близко": true, "нужен": true, "нужна": true, "найти": true,
	"врач": true, "врача": true, "доктор": true, "доктора": true, "пожалуйста": true,
}

// MatchAddress is the no-oracle fallback: it reports whether a hospital address
// plausibly matches the user's location query by district, city centre streets,
// or any significant query word.
func MatchAddress(address, query string) bool {
	addr := strings.ToLower(address)
	if strings.TrimSpace(addr) == "" {
		return false
	}
	sig := location.Extract(query)

	if sig.District != "" && strings.Contains(addr, location.DistrictStem(sig.District)) {
		return true
	}
	if sig.NearCenter {
		for _, kw := range centerStreets {
			if strings.Contains(addr, kw) {
				return true
			}
		}
	}

	words := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	})
	for _, w := range words {
		if utf8.RuneCountInString(w) <= 3 || queryStopWords[w] {
			continue
		}
		if strings.Contains(addr, w) {
			return true
		}
	}
	return false
}

// FilterByAddress applies MatchAddress to every hospital, preserving order.
func FilterByAddress(hospitals []catalog.Hospital, query string) []catalog.Hospital {
	var out []catalog.Hospital
	for _, h := range hospitals {
		if MatchAddress(h.Address, query) {
			out = append(out, h)
		}
	}
	return out
}
