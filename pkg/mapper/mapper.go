// Package mapper is the decision layer between an idea and the service
// catalog. It tries retrieval tiers in a fixed order, applies the score
// thresholds of the tier that answered, and always produces a
// MatchResult. Failures lower a tier, they never propagate.
package mapper

import (
	"context"
	"fmt"
	"strings"

	"github.com/Frallans76Organisation/innovation-hub/pkg/catalog"
	"github.com/Frallans76Organisation/innovation-hub/pkg/logger"
	"github.com/Frallans76Organisation/innovation-hub/pkg/rag"
)

const defaultTopK = 10

// SemanticSearcher is the retrieval side the mapper consumes. A nil
// searcher means keyword-only operation.
type SemanticSearcher interface {
	Search(ctx context.Context, query string, k int) ([]rag.Candidate, error)
}

// KeywordMatcher scores catalog records by keyword overlap.
type KeywordMatcher interface {
	Match(query string, topK int) []catalog.Match
}

// Mapper maps ideas onto catalog services. Construct once and share;
// both dependencies are safe for concurrent use.
type Mapper struct {
	semantic SemanticSearcher
	keywords KeywordMatcher
	topK     int
}

func New(semantic SemanticSearcher, keywords KeywordMatcher, topK int) *Mapper {
	if topK < 1 {
		topK = defaultTopK
	}
	return &Mapper{semantic: semantic, keywords: keywords, topK: topK}
}

// tier is one retrieval attempt. An error or an empty candidate list
// moves Map on to the next tier.
type tier struct {
	name     string
	failNote string
	try      func(ctx context.Context, query string) ([]MatchCandidate, error)
}

func (m *Mapper) tiers() []tier {
	ts := make([]tier, 0, 2)
	if m.semantic != nil {
		ts = append(ts, tier{
			name:     "semantic",
			failNote: "Semantisk sökning otillgänglig - använder nyckelordsmatchning.",
			try:      m.trySemantic,
		})
	}
	if m.keywords != nil {
		ts = append(ts, tier{name: "keyword", try: m.tryKeywords})
	}
	return ts
}

// Map runs the decision sequence for an idea. It never returns an
// error: a failed or empty tier falls through to the next one, and when
// every tier comes up empty the no-match result is the answer. Empty
// idea text short-circuits to no-match.
func (m *Mapper) Map(ctx context.Context, title, description string) MatchResult {
	query := buildQuery(title, description)
	if query == "" {
		return noMatch(nil)
	}

	var notes []string
	for _, t := range m.tiers() {
		cands, err := t.try(ctx, query)
		if err != nil {
			if rag.IsUnavailable(err) {
				logger.Debug(fmt.Sprintf("mapper: %s tier unavailable: %v", t.name, err))
			} else {
				logger.Warn(fmt.Sprintf("mapper: %s tier failed: %v", t.name, err))
			}
			if t.failNote != "" {
				notes = append(notes, t.failNote)
			}
			continue
		}
		if len(cands) == 0 {
			continue
		}
		return decide(cands, notes)
	}
	return noMatch(notes)
}

// decide applies the fixed thresholds to the best candidate. The same
// rule serves whichever tier produced the candidates.
func decide(cands []MatchCandidate, notes []string) MatchResult {
	best := cands[0]
	s := best.Score
	switch {
	case s >= 0.7:
		return MatchResult{
			Recommendation: RecommendExisting,
			Confidence:     s,
			Reasoning:      fmt.Sprintf("Stark matchning (%d%%) mot befintlig tjänst: %s", int(s*100), best.Name),
			Candidates:     cands,
			Impact:         ImpactLow,
			BestScore:      s,
			Notes:          notes,
		}
	case s >= 0.5:
		return MatchResult{
			Recommendation: RecommendDevelop,
			Confidence:     0.7,
			Reasoning:      fmt.Sprintf("Medel matchning (%d%%) - kan utveckla befintlig tjänst: %s", int(s*100), best.Name),
			Candidates:     cands,
			Impact:         ImpactMedium,
			BestScore:      s,
			Notes:          notes,
		}
	default:
		return MatchResult{
			Recommendation: RecommendNew,
			Confidence:     0.8,
			Reasoning:      fmt.Sprintf("Låg matchning (%d%%) - ny tjänst behövs troligen.", int(s*100)),
			Candidates:     cands,
			Impact:         ImpactHigh,
			BestScore:      s,
			Notes:          notes,
		}
	}
}

func (m *Mapper) trySemantic(ctx context.Context, query string) ([]MatchCandidate, error) {
	found, err := m.semantic.Search(ctx, query, m.topK)
	if err != nil {
		return nil, err
	}
	cands := make([]MatchCandidate, 0, len(found))
	for _, c := range found {
		cands = append(cands, MatchCandidate{
			Name:        c.Source,
			Description: excerpt(c.Text, excerptLimit),
			Category:    c.Category,
			Score:       c.Similarity,
		})
	}
	return cands, nil
}

func (m *Mapper) tryKeywords(_ context.Context, query string) ([]MatchCandidate, error) {
	matches := m.keywords.Match(query, m.topK)
	cands := make([]MatchCandidate, 0, len(matches))
	for _, mt := range matches {
		cands = append(cands, MatchCandidate{
			Name:        mt.Record.Name,
			Description: excerpt(mt.Record.Description, excerptLimit),
			Category:    mt.Record.Category,
			Score:       mt.Score,
		})
	}
	return cands, nil
}

// CategorizeDevelopmentNeed is the keyword-only entry point. Its
// thresholds (0.6/0.3) sit lower than Map's because normalized keyword
// overlap runs colder than cosine similarity; the two scales are
// deliberately not unified.
func (m *Mapper) CategorizeDevelopmentNeed(title, description string) MatchResult {
	query := buildQuery(title, description)
	var matches []catalog.Match
	if m.keywords != nil && query != "" {
		matches = m.keywords.Match(query, m.topK)
	}
	if len(matches) == 0 {
		return MatchResult{
			Recommendation: RecommendNew,
			Confidence:     0.9,
			Reasoning:      "Ingen befintlig tjänst hittades som matchar behovet.",
			Candidates:     []MatchCandidate{},
			Impact:         ImpactHigh,
		}
	}

	cands := make([]MatchCandidate, 0, len(matches))
	for _, mt := range matches {
		cands = append(cands, MatchCandidate{
			Name:        mt.Record.Name,
			Description: excerpt(mt.Record.Description, excerptLimit),
			Category:    mt.Record.Category,
			Score:       mt.Score,
		})
	}
	best := cands[0]
	s := best.Score
	switch {
	case s >= 0.6:
		return MatchResult{
			Recommendation: RecommendExisting,
			Confidence:     min(0.9, s+0.2),
			Reasoning:      fmt.Sprintf("Befintlig tjänst '%s' kan troligen möta behovet.", best.Name),
			Candidates:     capCandidates(cands, 3),
			Impact:         ImpactLow,
			BestScore:      s,
		}
	case s >= 0.3:
		return MatchResult{
			Recommendation: RecommendDevelop,
			Confidence:     0.7,
			Reasoning:      fmt.Sprintf("Befintlig tjänst '%s' skulle kunna utvecklas för att möta behovet.", best.Name),
			Candidates:     capCandidates(cands, 5),
			Impact:         ImpactMedium,
			BestScore:      s,
		}
	default:
		return MatchResult{
			Recommendation: RecommendNew,
			Confidence:     0.8,
			Reasoning:      "Ingen befintlig tjänst matchar tillräckligt väl - ny tjänst behövs troligen.",
			Candidates:     capCandidates(cands, 3),
			Impact:         ImpactHigh,
			BestScore:      s,
		}
	}
}

func capCandidates(cands []MatchCandidate, n int) []MatchCandidate {
	if len(cands) > n {
		return cands[:n]
	}
	return cands
}

func noMatch(notes []string) MatchResult {
	return MatchResult{
		Recommendation: RecommendNew,
		Confidence:     0.8,
		Reasoning:      "Inga tjänster tillgängliga för matchning - ny tjänst behövs troligen.",
		Candidates:     []MatchCandidate{},
		Impact:         ImpactHigh,
		Notes:          notes,
	}
}

func buildQuery(title, description string) string {
	title = strings.TrimSpace(title)
	description = strings.TrimSpace(description)
	switch {
	case title == "":
		return description
	case description == "":
		return title
	}
	return title + ". " + description
}
