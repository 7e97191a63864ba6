package analyze

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// category pairs an id with its display name and the fallback keywords
// used when the model answers in prose instead of a number.
type category struct {
	ID       int
	Name     string
	Keywords []string
}

// fallbackCategory catches answers matching nothing above.
var fallbackCategory = category{ID: 5, Name: "Innovation och utveckling"}

var categories = []category{
	{1, "Digital transformation", []string{"digital", "teknologi", "ai", "automation", "system"}},
	{2, "Medborgarservice", []string{"medborgare", "service", "tjänst", "kundtjänst", "användar"}},
	{3, "Miljö och klimat", []string{"miljö", "klimat", "hållbar", "grön", "energi"}},
	{4, "Processer och effektivitet", []string{"process", "effektiv", "förbättr", "optimering", "kostnad"}},
	{5, "Innovation och utveckling", []string{"innovation", "utveckling", "forskning", "ny", "kreativ"}},
}

var (
	digitRE    = regexp.MustCompile(`\d+`)
	tagRE      = regexp.MustCompile(`^[a-zåäöA-ZÅÄÖ\s-]+$`)
	tagSpaceRE = regexp.MustCompile(`\s+`)
)

// responsePrefixes are boilerplate lead-ins models put before the
// answer. Stripped in order; each may fire once.
var responsePrefixes = []string{
	"svaret är:", "svar:", "resultat:", "kategorin är:",
	"prioriteten är:", "taggarna är:", "sentiment:",
	"status:", "kategori:",
}

// cleanResponse strips whitespace, surrounding quotes and boilerplate
// prefixes from a model answer.
func cleanResponse(raw string) string {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.Trim(cleaned, `"'`)
	for _, prefix := range responsePrefixes {
		if strings.HasPrefix(strings.ToLower(cleaned), prefix) {
			cleaned = strings.TrimSpace(cleaned[len(prefix):])
		}
	}
	return cleaned
}

// parseCategory extracts a category id 1-5, falling back to keyword
// matching on the answer text and finally to category 5.
func parseCategory(raw string) (int, string) {
	cleaned := cleanResponse(raw)
	if m := digitRE.FindString(cleaned); m != "" {
		if id, err := strconv.Atoi(m); err == nil && id >= 1 && id <= 5 {
			return id, categories[id-1].Name
		}
	}
	lower := strings.ToLower(cleaned)
	for _, cat := range categories {
		for _, kw := range cat.Keywords {
			if strings.Contains(lower, kw) {
				return cat.ID, cat.Name
			}
		}
	}
	return fallbackCategory.ID, fallbackCategory.Name
}

func parsePriority(raw string) Priority {
	cleaned := strings.ToLower(cleanResponse(raw))
	switch {
	case strings.Contains(cleaned, "hög") || strings.Contains(cleaned, "high"):
		return PriorityHigh
	case strings.Contains(cleaned, "låg") || strings.Contains(cleaned, "low"):
		return PriorityLow
	default:
		return PriorityMedium
	}
}

// parseTags splits a comma-separated answer into lowercase tags of 2
// to 20 letters (Swedish letters, spaces and hyphens), spaces
// normalized to hyphens, deduplicated and capped at five.
func parseTags(raw string) []string {
	cleaned := cleanResponse(raw)
	if cleaned == "" {
		return nil
	}
	var tags []string
	seen := make(map[string]struct{})
	for _, part := range strings.Split(cleaned, ",") {
		tag := strings.ToLower(strings.TrimSpace(part))
		if n := utf8.RuneCountInString(tag); n < 2 || n > 20 {
			continue
		}
		if !tagRE.MatchString(tag) {
			continue
		}
		tag = tagSpaceRE.ReplaceAllString(tag, "-")
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
		if len(tags) == 5 {
			break
		}
	}
	return tags
}

func parseSentiment(raw string) string {
	return cleanResponse(raw)
}

func parseStatus(raw string) Status {
	cleaned := strings.ToLower(cleanResponse(raw))
	switch {
	case strings.Contains(cleaned, "granskning"):
		return StatusReviewing
	case strings.Contains(cleaned, "godkänd"):
		return StatusApproved
	default:
		return StatusNew
	}
}
