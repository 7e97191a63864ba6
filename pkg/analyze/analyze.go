// Package analyze runs the full idea analysis: five chat-completion
// classifiers (category, priority, tags, sentiment, status) fanned out
// concurrently next to the service mapping, with every task isolated.
// A failed classifier lowers the confidence score instead of failing
// the analysis.
package analyze

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Frallans76Organisation/innovation-hub/pkg/logger"
	"github.com/Frallans76Organisation/innovation-hub/pkg/mapper"
)

const defaultConcurrency = 5

// ErrEmptyIdea rejects input with neither title nor description.
var ErrEmptyIdea = errors.New("empty idea")

var errNoChatClient = errors.New("chat client not configured")

// IdeaMapper is the mapping side of the analysis.
type IdeaMapper interface {
	Map(ctx context.Context, title, description string) mapper.MatchResult
}

// Analyzer coordinates the classifier fan-out and service mapping.
// Both collaborators may be nil: a nil client turns every classifier
// into its fallback default, a nil mapper skips service mapping.
type Analyzer struct {
	client ChatClient
	ideas  IdeaMapper
	limit  int
}

func NewAnalyzer(client ChatClient, ideas IdeaMapper, concurrency int) *Analyzer {
	if concurrency < 1 {
		concurrency = defaultConcurrency
	}
	return &Analyzer{client: client, ideas: ideas, limit: concurrency}
}

type outcome struct {
	raw string
	err error
}

// Analyze runs all tasks for one idea and aggregates the report. Task
// failures are absorbed into the confidence score; the returned error
// is limited to empty input and context cancellation.
func (a *Analyzer) Analyze(ctx context.Context, idea Idea) (*Report, error) {
	if strings.TrimSpace(idea.Title) == "" && strings.TrimSpace(idea.Description) == "" {
		return nil, ErrEmptyIdea
	}

	report := &Report{
		ID:         uuid.NewString(),
		Title:      idea.Title,
		AnalyzedAt: time.Now(),
	}

	outcomes := make([]outcome, len(classifierTasks))
	var g errgroup.Group
	g.SetLimit(a.limit)

	if a.client == nil {
		logger.Warn("analyze: no chat client configured, classifiers fall back to defaults")
		for i := range outcomes {
			outcomes[i] = outcome{err: errNoChatClient}
		}
	} else {
		for i, t := range classifierTasks {
			g.Go(func() error {
				raw, err := a.client.Complete(ctx, systemPrompt(t), userPrompt(t, idea))
				outcomes[i] = outcome{raw: raw, err: err}
				return nil
			})
		}
	}

	var mapping mapper.MatchResult
	haveMapping := false
	if a.ideas != nil {
		g.Go(func() error {
			mapping = a.ideas.Map(ctx, idea.Title, idea.Description)
			haveMapping = true
			return nil
		})
	}

	// Task errors are recorded in outcomes, never returned through
	// the group.
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	successful := 0
	for i, t := range classifierTasks {
		res := outcomes[i]
		if res.err != nil {
			if !errors.Is(res.err, errNoChatClient) {
				logger.Warn(fmt.Sprintf("analyze: %s classifier failed: %v", t, res.err))
			}
			continue
		}
		successful++
		switch t {
		case taskCategory:
			report.CategoryID, report.Category = parseCategory(res.raw)
		case taskPriority:
			report.Priority = parsePriority(res.raw)
		case taskTags:
			report.Tags = parseTags(res.raw)
		case taskSentiment:
			report.Sentiment = parseSentiment(res.raw)
		case taskStatus:
			report.Status = parseStatus(res.raw)
		}
	}
	report.ConfidenceScore = float64(successful) / float64(len(classifierTasks))

	if haveMapping {
		report.ServiceMapping = &mapping
	}
	report.Notes = buildNotes(report)
	return report, nil
}
