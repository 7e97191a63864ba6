package mapper

// Recommendation is the decision for an idea: use a service as is,
// extend one, or build new.
type Recommendation string

const (
	RecommendExisting Recommendation = "existing_service"
	RecommendDevelop  Recommendation = "develop_existing"
	RecommendNew      Recommendation = "new_service"
)

// Impact grades the development effort implied by a recommendation.
type Impact string

const (
	ImpactLow    Impact = "low"
	ImpactMedium Impact = "medium"
	ImpactHigh   Impact = "high"
)

// MatchCandidate is one ranked service in a result. Description is an
// excerpt capped at 200 runes.
type MatchCandidate struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Category    string  `json:"category,omitempty"`
	Score       float64 `json:"match_score"`
}

// MatchResult is the single normalized answer shape for every matching
// path. Candidates are sorted by descending score; the recommendation
// is a pure function of the best score and the thresholds of the path
// that produced it.
type MatchResult struct {
	Recommendation Recommendation   `json:"service_recommendation"`
	Confidence     float64          `json:"service_confidence"`
	Reasoning      string           `json:"service_reasoning"`
	Candidates     []MatchCandidate `json:"matching_services"`
	Impact         Impact           `json:"development_impact"`
	BestScore      float64          `json:"best_match_score"`

	// Notes records degradations taken while producing the result,
	// such as a semantic tier that was skipped or failed.
	Notes []string `json:"notes,omitempty"`
}

const excerptLimit = 200

func excerpt(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
