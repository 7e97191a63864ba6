package mapper

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/Frallans76Organisation/innovation-hub/pkg/catalog"
	"github.com/Frallans76Organisation/innovation-hub/pkg/rag"
)

type fakeSearcher struct {
	cands    []rag.Candidate
	err      error
	calls    int
	gotQuery string
	gotK     int
}

func (f *fakeSearcher) Search(_ context.Context, query string, k int) ([]rag.Candidate, error) {
	f.calls++
	f.gotQuery = query
	f.gotK = k
	if f.err != nil {
		return nil, f.err
	}
	return f.cands, nil
}

type fakeMatcher struct {
	matches  []catalog.Match
	gotQuery string
	gotTopK  int
}

func (f *fakeMatcher) Match(query string, topK int) []catalog.Match {
	f.gotQuery = query
	f.gotTopK = topK
	return f.matches
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestMapSemanticThresholds(t *testing.T) {
	cases := []struct {
		name       string
		score      float64
		recommend  Recommendation
		confidence float64
		impact     Impact
		reasoning  string
	}{
		{
			name:       "strong match recommends existing service",
			score:      0.75,
			recommend:  RecommendExisting,
			confidence: 0.75,
			impact:     ImpactLow,
			reasoning:  "Stark matchning (75%) mot befintlig tjänst: Parkeringstillstånd",
		},
		{
			name:       "medium match recommends development",
			score:      0.55,
			recommend:  RecommendDevelop,
			confidence: 0.7,
			impact:     ImpactMedium,
			reasoning:  "Medel matchning (55%) - kan utveckla befintlig tjänst: Parkeringstillstånd",
		},
		{
			name:       "percent is truncated not rounded",
			score:      0.559,
			recommend:  RecommendDevelop,
			confidence: 0.7,
			impact:     ImpactMedium,
			reasoning:  "Medel matchning (55%) - kan utveckla befintlig tjänst: Parkeringstillstånd",
		},
		{
			name:       "weak match recommends new service",
			score:      0.2,
			recommend:  RecommendNew,
			confidence: 0.8,
			impact:     ImpactHigh,
			reasoning:  "Låg matchning (20%) - ny tjänst behövs troligen.",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			searcher := &fakeSearcher{cands: []rag.Candidate{{
				Source:     "Parkeringstillstånd",
				Text:       "Tjänst: Parkeringstillstånd",
				Category:   "Transport",
				Similarity: tc.score,
			}}}
			m := New(searcher, nil, 5)

			res := m.Map(context.Background(), "Smidigare parkering", "Digital ansökan om boendeparkering")
			if res.Recommendation != tc.recommend {
				t.Errorf("recommendation = %q, want %q", res.Recommendation, tc.recommend)
			}
			if !approx(res.Confidence, tc.confidence) {
				t.Errorf("confidence = %v, want %v", res.Confidence, tc.confidence)
			}
			if res.Impact != tc.impact {
				t.Errorf("impact = %q, want %q", res.Impact, tc.impact)
			}
			if res.Reasoning != tc.reasoning {
				t.Errorf("reasoning = %q, want %q", res.Reasoning, tc.reasoning)
			}
			if res.BestScore != tc.score {
				t.Errorf("best score = %v, want %v", res.BestScore, tc.score)
			}
			if len(res.Candidates) != 1 || res.Candidates[0].Name != "Parkeringstillstånd" {
				t.Fatalf("candidates = %+v, want the single semantic hit", res.Candidates)
			}
			if res.Candidates[0].Category != "Transport" {
				t.Errorf("candidate category = %q, want Transport", res.Candidates[0].Category)
			}
			if len(res.Notes) != 0 {
				t.Errorf("notes = %v, want none on the happy path", res.Notes)
			}
		})
	}
}

func TestMapQueryComposition(t *testing.T) {
	cases := []struct {
		name        string
		title       string
		description string
		want        string
	}{
		{"title and description joined", " Laddstolpar ", "Fler laddplatser i centrum", "Laddstolpar. Fler laddplatser i centrum"},
		{"title only", "Laddstolpar", "   ", "Laddstolpar"},
		{"description only", "", "Fler laddplatser i centrum", "Fler laddplatser i centrum"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			searcher := &fakeSearcher{}
			m := New(searcher, nil, 7)
			m.Map(context.Background(), tc.title, tc.description)
			if searcher.gotQuery != tc.want {
				t.Errorf("query = %q, want %q", searcher.gotQuery, tc.want)
			}
			if searcher.gotK != 7 {
				t.Errorf("k = %d, want 7", searcher.gotK)
			}
		})
	}
}

func TestMapEmptyIdeaIsNoMatch(t *testing.T) {
	searcher := &fakeSearcher{}
	m := New(searcher, catalog.New(), 5)

	res := m.Map(context.Background(), "  ", "\n")
	if searcher.calls != 0 {
		t.Errorf("search calls = %d, want none for empty input", searcher.calls)
	}
	if res.Recommendation != RecommendNew || !approx(res.Confidence, 0.8) || res.Impact != ImpactHigh {
		t.Errorf("result = %+v, want the no-match shape", res)
	}
	if res.Reasoning != "Inga tjänster tillgängliga för matchning - ny tjänst behövs troligen." {
		t.Errorf("reasoning = %q", res.Reasoning)
	}
	if res.Candidates == nil || len(res.Candidates) != 0 {
		t.Errorf("candidates = %v, want present but empty", res.Candidates)
	}
}

func TestMapFallsBackToKeywordsOnSemanticFailure(t *testing.T) {
	failures := []struct {
		name string
		err  error
	}{
		{"transport error", errors.New("connection refused")},
		{"semantic unavailable", fmt.Errorf("%w: no embedding provider", rag.ErrSemanticUnavailable)},
	}

	for _, tc := range failures {
		t.Run(tc.name, func(t *testing.T) {
			cat := catalog.New()
			cat.Add(catalog.NewServiceRecord("Parkeringstillstånd", "Tillstånd för boendeparkering i centrala staden", ""))
			m := New(&fakeSearcher{err: tc.err}, cat, 5)

			res := m.Map(context.Background(), "Parkeringstillstånd", "Tillstånd för boendeparkering")
			if res.Recommendation != RecommendExisting {
				t.Fatalf("recommendation = %q, want existing via keyword fallback", res.Recommendation)
			}
			if res.BestScore != 1.0 {
				t.Errorf("best score = %v, want 1.0 (clamped)", res.BestScore)
			}
			if len(res.Candidates) != 1 || res.Candidates[0].Name != "Parkeringstillstånd" {
				t.Fatalf("candidates = %+v, want the catalog record", res.Candidates)
			}
			if len(res.Notes) != 1 || res.Notes[0] != "Semantisk sökning otillgänglig - använder nyckelordsmatchning." {
				t.Errorf("notes = %v, want the degradation note", res.Notes)
			}
		})
	}
}

func TestMapSemanticEmptyFallsThroughSilently(t *testing.T) {
	cat := catalog.New()
	cat.Add(catalog.NewServiceRecord("Parkeringstillstånd", "Tillstånd för boendeparkering i centrala staden", ""))
	m := New(&fakeSearcher{}, cat, 5)

	res := m.Map(context.Background(), "Parkeringstillstånd", "Tillstånd för boendeparkering")
	if res.Recommendation != RecommendExisting {
		t.Fatalf("recommendation = %q, want keyword tier to answer", res.Recommendation)
	}
	if len(res.Notes) != 0 {
		t.Errorf("notes = %v, want none when a tier is merely empty", res.Notes)
	}
}

func TestMapNoMatchWhenAllTiersComeUpEmpty(t *testing.T) {
	unmatched := catalog.New()
	unmatched.Add(catalog.NewServiceRecord("Cykelpool", "Lånecyklar för anställda vid kommunhuset", ""))

	cases := []struct {
		name string
		m    *Mapper
	}{
		{"no tiers configured", New(nil, nil, 0)},
		{"empty catalog", New(nil, catalog.New(), 5)},
		{"query matches nothing", New(nil, unmatched, 5)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := tc.m.Map(context.Background(), "Rymdraket", "Bemannad resa mot månen")
			if res.Recommendation != RecommendNew || !approx(res.Confidence, 0.8) || res.Impact != ImpactHigh {
				t.Errorf("result = %+v, want the no-match shape", res)
			}
			if res.BestScore != 0 {
				t.Errorf("best score = %v, want 0", res.BestScore)
			}
			if len(res.Candidates) != 0 {
				t.Errorf("candidates = %+v, want none", res.Candidates)
			}
		})
	}
}

func TestMapPreservesCandidateOrderAndCapsExcerpts(t *testing.T) {
	long := strings.Repeat("å", 250)
	searcher := &fakeSearcher{cands: []rag.Candidate{
		{Source: "Cykelpool", Text: long, Similarity: 0.9},
		{Source: "Parkeringstillstånd", Text: "kort text", Similarity: 0.8},
		{Source: "Bygglov", Text: "annan text", Similarity: 0.75},
	}}
	m := New(searcher, nil, 5)

	res := m.Map(context.Background(), "Mobilitet", "Delade cyklar i hela kommunen")
	if len(res.Candidates) != 3 {
		t.Fatalf("candidates = %d, want 3", len(res.Candidates))
	}
	for i, want := range []string{"Cykelpool", "Parkeringstillstånd", "Bygglov"} {
		if res.Candidates[i].Name != want {
			t.Errorf("candidate %d = %q, want %q", i, res.Candidates[i].Name, want)
		}
	}
	got := res.Candidates[0].Description
	if n := utf8.RuneCountInString(got); n != 200 {
		t.Errorf("excerpt length = %d runes, want 200", n)
	}
	if !utf8.ValidString(got) {
		t.Error("excerpt split a multibyte rune")
	}
	if res.Candidates[1].Description != "kort text" {
		t.Errorf("short description = %q, want unchanged", res.Candidates[1].Description)
	}
}

func TestMapDefaultsTopK(t *testing.T) {
	fm := &fakeMatcher{}
	New(nil, fm, 0).Map(context.Background(), "Idé", "")
	if fm.gotTopK != 10 {
		t.Errorf("default topK = %d, want 10", fm.gotTopK)
	}

	New(nil, fm, 3).Map(context.Background(), "Idé", "")
	if fm.gotTopK != 3 {
		t.Errorf("topK = %d, want 3", fm.gotTopK)
	}
}

func TestCategorizeDevelopmentNeed(t *testing.T) {
	cat := catalog.New()
	cat.Add(catalog.NewServiceRecord("Cykelpool", "Lånecyklar för anställda vid kommunhuset", ""))
	m := New(nil, cat, 10)

	t.Run("no match", func(t *testing.T) {
		res := m.CategorizeDevelopmentNeed("Rymdraket", "Bemannad resa mot månen")
		if res.Recommendation != RecommendNew || !approx(res.Confidence, 0.9) {
			t.Errorf("result = %+v, want new service at 0.9", res)
		}
		if res.Reasoning != "Ingen befintlig tjänst hittades som matchar behovet." {
			t.Errorf("reasoning = %q", res.Reasoning)
		}
		if len(res.Candidates) != 0 || res.BestScore != 0 {
			t.Errorf("candidates = %v, best = %v, want empty and 0", res.Candidates, res.BestScore)
		}
	})

	t.Run("strong overlap maps to existing", func(t *testing.T) {
		// "cykelpool" is indexed both as keyword and name token, so the
		// single-keyword query scores 2/1 and clamps to 1.0.
		res := m.CategorizeDevelopmentNeed("Cykelpool", "")
		if res.Recommendation != RecommendExisting {
			t.Fatalf("recommendation = %q, want existing", res.Recommendation)
		}
		if !approx(res.Confidence, 0.9) {
			t.Errorf("confidence = %v, want capped at 0.9", res.Confidence)
		}
		if res.Reasoning != "Befintlig tjänst 'Cykelpool' kan troligen möta behovet." {
			t.Errorf("reasoning = %q", res.Reasoning)
		}
		if res.Impact != ImpactLow || res.BestScore != 1.0 {
			t.Errorf("impact = %q best = %v, want low and 1.0", res.Impact, res.BestScore)
		}
	})

	t.Run("uncapped confidence is score plus margin", func(t *testing.T) {
		// Keywords lånecyklar, anställda, vinterfest: two single-posted
		// hits out of three keywords.
		res := m.CategorizeDevelopmentNeed("Lånecyklar anställda vinterfest", "")
		if res.Recommendation != RecommendExisting {
			t.Fatalf("recommendation = %q, want existing at 2/3", res.Recommendation)
		}
		want := 2.0/3.0 + 0.2
		if !approx(res.Confidence, want) {
			t.Errorf("confidence = %v, want %v", res.Confidence, want)
		}
	})

	t.Run("partial overlap maps to development", func(t *testing.T) {
		// Keywords elcyklar, lånecyklar: one hit of two.
		res := m.CategorizeDevelopmentNeed("Elcyklar med lånecyklar", "")
		if res.Recommendation != RecommendDevelop || !approx(res.Confidence, 0.7) {
			t.Fatalf("result = %+v, want development at 0.7", res)
		}
		if res.Reasoning != "Befintlig tjänst 'Cykelpool' skulle kunna utvecklas för att möta behovet." {
			t.Errorf("reasoning = %q", res.Reasoning)
		}
		if res.Impact != ImpactMedium || !approx(res.BestScore, 0.5) {
			t.Errorf("impact = %q best = %v, want medium and 0.5", res.Impact, res.BestScore)
		}
	})

	t.Run("weak overlap maps to new service", func(t *testing.T) {
		// One hit of five keywords scores 0.2, below the development
		// floor.
		res := m.CategorizeDevelopmentNeed("Elbilar laddstationer parkeringshus samt lånecyklar", "")
		if res.Recommendation != RecommendNew || !approx(res.Confidence, 0.8) {
			t.Fatalf("result = %+v, want new service at 0.8", res)
		}
		if res.Reasoning != "Ingen befintlig tjänst matchar tillräckligt väl - ny tjänst behövs troligen." {
			t.Errorf("reasoning = %q", res.Reasoning)
		}
		if res.Impact != ImpactHigh || !approx(res.BestScore, 0.2) {
			t.Errorf("impact = %q best = %v, want high and 0.2", res.Impact, res.BestScore)
		}
	})
}

func TestCategorizeDevelopmentNeedCapsCandidates(t *testing.T) {
	cat := catalog.New()
	for _, suffix := range []string{"Alfa", "Beta", "Gamma", "Delta", "Epsilon", "Zeta"} {
		cat.Add(catalog.NewServiceRecord("Solpanel "+suffix, "Montering på kommunala tak", ""))
	}
	m := New(nil, cat, 10)

	t.Run("existing branch keeps three", func(t *testing.T) {
		res := m.CategorizeDevelopmentNeed("Solpanel", "")
		if res.Recommendation != RecommendExisting {
			t.Fatalf("recommendation = %q, want existing", res.Recommendation)
		}
		if len(res.Candidates) != 3 {
			t.Fatalf("candidates = %d, want 3", len(res.Candidates))
		}
		for i, want := range []string{"Solpanel Alfa", "Solpanel Beta", "Solpanel Gamma"} {
			if res.Candidates[i].Name != want {
				t.Errorf("candidate %d = %q, want %q (ties keep catalog order)", i, res.Candidates[i].Name, want)
			}
		}
	})

	t.Run("development branch keeps five", func(t *testing.T) {
		// Four keywords with two hits each score 0.5.
		res := m.CategorizeDevelopmentNeed("Solpanel vindkraft batterier laddare", "")
		if res.Recommendation != RecommendDevelop {
			t.Fatalf("recommendation = %q, want development", res.Recommendation)
		}
		if len(res.Candidates) != 5 {
			t.Errorf("candidates = %d, want 5", len(res.Candidates))
		}
	})

	t.Run("new service branch keeps three", func(t *testing.T) {
		// Seven keywords with two hits each score under 0.3.
		res := m.CategorizeDevelopmentNeed("Solpanel vindkraft batterier laddare kablar växelriktare montörer", "")
		if res.Recommendation != RecommendNew {
			t.Fatalf("recommendation = %q, want new service", res.Recommendation)
		}
		if len(res.Candidates) != 3 {
			t.Errorf("candidates = %d, want 3", len(res.Candidates))
		}
	})
}
