package eval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/Frallans76Organisation/innovation-hub/pkg/mapper"
)

// IdeaMapper is the slice of the mapper the runner drives.
type IdeaMapper interface {
	Map(ctx context.Context, title, description string) mapper.MatchResult
}

// CaseResult holds the outcome of one golden case.
type CaseResult struct {
	CaseID         string                `json:"case_id"`
	Idea           string                `json:"idea"`
	Ranked         []string              `json:"ranked_services"`
	Recommendation mapper.Recommendation `json:"recommendation"`
	Expected       string                `json:"expected_recommendation,omitempty"`
	Correct        bool                  `json:"recommendation_correct"`
	Judged         bool                  `json:"judged"`
	Metrics        MetricsSet            `json:"metrics"`
	Notes          []string              `json:"notes,omitempty"`
}

// Report aggregates a full evaluation run.
type Report struct {
	RunID       string        `json:"run_id"`
	Dataset     string        `json:"dataset"`
	GeneratedAt time.Time     `json:"generated_at"`
	CatalogSize int           `json:"catalog_size"`
	Cases       []CaseResult  `json:"cases"`
	Metrics     MetricsSet    `json:"metrics"`
	Judged      int           `json:"judged_cases"`
	Checked     int           `json:"checked_recommendations"`
	Accuracy    float64       `json:"recommendation_accuracy"`
	Duration    time.Duration `json:"duration"`
}

// WriteJSON renders the report as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// RunConfig controls an evaluation run.
type RunConfig struct {
	// CatalogSize is recorded in the report for context.
	CatalogSize int

	// LogFunc receives per-case progress lines.
	LogFunc func(string)
}

// Run maps every golden case and scores the outcome. Retrieval
// metrics average over cases with relevance judgments; recommendation
// accuracy covers cases with an expected decision.
func Run(ctx context.Context, ds *Dataset, m IdeaMapper, cfg RunConfig) (*Report, error) {
	if ds == nil || len(ds.Cases) == 0 {
		return nil, errors.New("eval: empty dataset")
	}
	if m == nil {
		return nil, errors.New("eval: no mapper")
	}
	log := cfg.LogFunc
	if log == nil {
		log = func(string) {}
	}

	start := time.Now()
	report := &Report{
		RunID:       uuid.NewString(),
		Dataset:     ds.Name,
		GeneratedAt: start,
		CatalogSize: cfg.CatalogSize,
		Cases:       make([]CaseResult, 0, len(ds.Cases)),
	}

	var judged []MetricsSet
	correct := 0
	for _, c := range ds.Cases {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		res := m.Map(ctx, c.Title, c.Description)
		cr := CaseResult{
			CaseID:         c.ID,
			Idea:           ideaLabel(c),
			Ranked:         rankedServices(res.Candidates),
			Recommendation: res.Recommendation,
			Notes:          res.Notes,
		}
		if len(c.Relevance) > 0 {
			cr.Judged = true
			cr.Metrics = ComputeAll(cr.Ranked, c.Relevance)
			judged = append(judged, cr.Metrics)
		}
		if c.ExpectRecommendation != "" {
			cr.Expected = c.ExpectRecommendation
			cr.Correct = string(res.Recommendation) == c.ExpectRecommendation
			report.Checked++
			if cr.Correct {
				correct++
			}
		}
		report.Cases = append(report.Cases, cr)
		log(fmt.Sprintf("  %s: %s (best %.2f, %d candidates)",
			c.ID, res.Recommendation, res.BestScore, len(res.Candidates)))
	}

	report.Metrics = AverageMetrics(judged)
	report.Judged = len(judged)
	if report.Checked > 0 {
		report.Accuracy = float64(correct) / float64(report.Checked)
	}
	report.Duration = time.Since(start)
	return report, nil
}

// rankedServices returns candidate names deduplicated in rank order.
// Several chunks of one service document can surface as separate
// candidates; the metrics judge services, not chunks.
func rankedServices(cands []mapper.MatchCandidate) []string {
	seen := make(map[string]bool, len(cands))
	var ranked []string
	for _, c := range cands {
		if c.Name == "" || seen[c.Name] {
			continue
		}
		seen[c.Name] = true
		ranked = append(ranked, c.Name)
	}
	return ranked
}

func ideaLabel(c Case) string {
	if c.Title != "" {
		return c.Title
	}
	return c.Description
}
