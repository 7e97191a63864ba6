package analyze

import (
	"fmt"
	"strings"
	"time"

	"github.com/Frallans76Organisation/innovation-hub/pkg/mapper"
)

// Idea is the analyzer input. A title or a description is required;
// the other fields enrich the prompt context.
type Idea struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Type        string `json:"type,omitempty"`
	TargetGroup string `json:"target_group,omitempty"`
}

// Priority is the suggested handling priority.
type Priority string

const (
	PriorityLow    Priority = "låg"
	PriorityMedium Priority = "medel"
	PriorityHigh   Priority = "hög"
)

// Status is the suggested initial workflow status for an idea.
type Status string

const (
	StatusNew       Status = "ny"
	StatusReviewing Status = "granskning"
	StatusApproved  Status = "godkänd"
)

// Report aggregates one full idea analysis. Classifier fields stay at
// their zero value when the corresponding task failed; ServiceMapping
// is nil only when no mapper was configured.
type Report struct {
	ID    string `json:"id"`
	Title string `json:"title"`

	CategoryID int    `json:"category_id,omitempty"`
	Category   string `json:"category_name,omitempty"`

	Priority  Priority `json:"priority,omitempty"`
	Status    Status   `json:"status,omitempty"`
	Tags      []string `json:"tags,omitempty"`
	Sentiment string   `json:"sentiment,omitempty"`

	ServiceMapping *mapper.MatchResult `json:"service_mapping,omitempty"`

	// ConfidenceScore is the fraction of classifier tasks that
	// completed. Service mapping is excluded: it degrades internally
	// and always answers.
	ConfidenceScore float64 `json:"confidence_score"`

	Notes      string    `json:"analysis_notes"`
	AnalyzedAt time.Time `json:"analyzed_at"`
}

var recommendationNotes = map[mapper.Recommendation]string{
	mapper.RecommendExisting: "Befintlig tjänst kan användas",
	mapper.RecommendDevelop:  "Befintlig tjänst kan utvecklas",
	mapper.RecommendNew:      "Ny tjänst behövs",
}

// buildNotes renders the human-readable summary line.
func buildNotes(r *Report) string {
	var notes []string
	if r.Category != "" {
		notes = append(notes, "Kategoriserad som: "+r.Category)
	}
	if r.Priority != "" {
		notes = append(notes, "Prioritet: "+string(r.Priority))
	}
	if r.Sentiment != "" {
		notes = append(notes, "Sentiment: "+r.Sentiment)
	}
	if len(r.Tags) > 0 {
		notes = append(notes, "Taggar: "+strings.Join(r.Tags, ", "))
	}
	if r.ServiceMapping != nil {
		text, ok := recommendationNotes[r.ServiceMapping.Recommendation]
		if !ok {
			text = string(r.ServiceMapping.Recommendation)
		}
		notes = append(notes, "Tjänstebehov: "+text)
	}
	if r.ConfidenceScore > 0 {
		notes = append(notes, fmt.Sprintf("AI-analys tillförlitlighet: %d%%", int(r.ConfidenceScore*100)))
	}
	if len(notes) == 0 {
		return "AI-analys genomförd"
	}
	return strings.Join(notes, " | ")
}
