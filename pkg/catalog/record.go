// Package catalog holds the in-memory service catalog: record
// construction, keyword extraction, category assignment and the
// inverted index used for keyword matching.
package catalog

import (
	"strings"
	"unicode/utf8"
)

// CategoryOther is assigned when no category pattern matches at all.
const CategoryOther = "Övrig"

type categoryPattern struct {
	name     string
	keywords []string
}

// categoryPatterns is scored top to bottom. The order is load-bearing:
// on a score tie the earlier category wins, so reordering entries
// changes categorization of ambiguous services.
var categoryPatterns = []categoryPattern{
	{"IT och Digital", []string{
		"system", "digital", "webb", "app", "api", "databas", "server", "nätverk",
		"internet", "email", "epost", "programvara", "mjukvara", "it", "dator",
		"teknologi", "mobil", "uppkoppling", "anslutning", "wifi", "fiber",
	}},
	{"Kommunikation", []string{
		"kommunikation", "telefon", "samtal", "videokonferens", "möte", "meddelande",
		"anslagstavla", "information", "publicera", "kommunicera", "kontakt",
	}},
	{"Säkerhet", []string{
		"säkerhet", "brandskydd", "övervakning", "kamera", "larm", "skydd", "säker",
		"behörighet", "access", "inloggning", "authentication", "autentisering",
	}},
	{"Transport", []string{
		"transport", "fordons", "bil", "buss", "cykel", "parkering", "trafik",
		"väg", "resa", "mobilitet", "kollektivtrafik",
	}},
	{"Fastighet och Lokaler", []string{
		"fastighet", "lokal", "byggnad", "hyra", "uthyrning", "utrymme", "rum",
		"kontor", "mötesrum", "facilitet", "underhåll", "rengöring",
	}},
	{"Miljö och Hållbarhet", []string{
		"miljö", "hållbar", "energi", "avfall", "återvinning", "klimat", "grön",
		"förnybar", "koldioxid", "utsläpp", "natur", "ekologi",
	}},
	{"Utbildning", []string{
		"utbildning", "kurs", "träning", "lärande", "skola", "undervisning",
		"kompetensutveckling", "workshop", "seminarium", "certifiering",
	}},
}

// CategoryNames returns the category labels in scoring order, ending
// with the fallback.
func CategoryNames() []string {
	names := make([]string, 0, len(categoryPatterns)+1)
	for _, cp := range categoryPatterns {
		names = append(names, cp.name)
	}
	return append(names, CategoryOther)
}

// Categorize picks the pattern set with the most keywords present as
// substrings of name+description. Ties keep the first-scored category.
func Categorize(name, description string) string {
	text := strings.ToLower(name + " " + description)
	best := CategoryOther
	bestScore := 0
	for _, cp := range categoryPatterns {
		score := 0
		for _, kw := range cp.keywords {
			if strings.Contains(text, kw) {
				score++
			}
		}
		if score > bestScore {
			best = cp.name
			bestScore = score
		}
	}
	return best
}

// ServiceRecord is one existing organizational service, created from a
// catalog row and immutable afterwards.
type ServiceRecord struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	StartDate   string   `json:"start_date,omitempty"`
	Keywords    []string `json:"keywords"`
	Category    string   `json:"category"`
}

// NewServiceRecord derives keywords and category from the row cells.
func NewServiceRecord(name, description, startDate string) ServiceRecord {
	return ServiceRecord{
		Name:        name,
		Description: description,
		StartDate:   startDate,
		Keywords:    ExtractKeywords(name + " " + description),
		Category:    Categorize(name, description),
	}
}

// nameTokens are the record's name words eligible for indexing. They
// skip the stopword filter on purpose so a literal name mention in an
// idea always surfaces the record.
func (r ServiceRecord) nameTokens() []string {
	var out []string
	for _, tok := range Tokenize(r.Name) {
		if utf8.RuneCountInString(tok) >= 3 {
			out = append(out, tok)
		}
	}
	return out
}
