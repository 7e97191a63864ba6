package catalog

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// maxKeywords bounds the keyword set kept per record and per query.
const maxKeywords = 10

// nonLetterRE splits on anything that is not a letter, which drops
// digits and punctuation while keeping åäö and other accented letters.
var nonLetterRE = regexp.MustCompile(`[^\pL]+`)

// stopwords are common Swedish function words plus a few domain nouns
// (tjänst, system, lösning) too generic to discriminate between
// services.
var stopwords = map[string]struct{}{
	"och": {}, "att": {}, "det": {}, "en": {}, "är": {}, "för": {},
	"av": {}, "med": {}, "som": {}, "på": {}, "till": {}, "den": {},
	"har": {}, "de": {}, "i": {}, "om": {}, "var": {}, "inte": {},
	"kan": {}, "vi": {}, "ett": {}, "han": {}, "hon": {}, "du": {},
	"ska": {}, "blir": {}, "eller": {}, "så": {}, "från": {}, "när": {},
	"över": {}, "under": {}, "efter": {}, "före": {}, "mellan": {},
	"hos": {}, "inom": {}, "utan": {}, "genom": {}, "mot": {}, "vid": {},
	"upp": {}, "ner": {}, "ut": {}, "in": {}, "bara": {}, "också": {},
	"mycket": {}, "mer": {}, "än": {}, "här": {}, "där": {}, "nu": {},
	"då": {}, "sedan": {}, "bäst": {}, "passar": {}, "används": {},
	"tjänst": {}, "service": {}, "system": {}, "lösning": {},
}

// Tokenize lowercases text and splits it into letter-only tokens.
func Tokenize(text string) []string {
	parts := nonLetterRE.Split(strings.ToLower(text), -1)
	tokens := parts[:0]
	for _, p := range parts {
		if p != "" {
			tokens = append(tokens, p)
		}
	}
	return tokens
}

// ExtractKeywords returns up to maxKeywords deduplicated tokens from
// text, skipping stopwords and tokens shorter than three runes.
func ExtractKeywords(text string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, tok := range Tokenize(text) {
		if utf8.RuneCountInString(tok) < 3 {
			continue
		}
		if _, stop := stopwords[tok]; stop {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
		if len(out) == maxKeywords {
			break
		}
	}
	return out
}
