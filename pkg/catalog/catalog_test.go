package catalog

import (
	"fmt"
	"sync"
	"testing"
)

func testCatalog() *Catalog {
	c := New()
	c.Add(NewServiceRecord("Parkeringstillstånd", "Ansökan om parkering och boendeparkering", "2019-01-01"))
	c.Add(NewServiceRecord("Digital Anslagstavla", "Publicera information digitalt", "2021-06-01"))
	c.Add(NewServiceRecord("Lokalbokning", "Boka mötesrum och lokaler", "2020-03-01"))
	return c
}

func TestMatchRanking(t *testing.T) {
	c := testCatalog()
	got := c.Match("Vi vill boka lokaler och mötesrum för föreningar", 10)
	if len(got) == 0 {
		t.Fatal("expected matches")
	}
	if got[0].Record.Name != "Lokalbokning" {
		t.Errorf("best match = %q, want Lokalbokning", got[0].Record.Name)
	}
	for i := 1; i < len(got); i++ {
		if got[i].Hits > got[i-1].Hits {
			t.Errorf("matches not sorted by hits: %d before %d", got[i-1].Hits, got[i].Hits)
		}
	}
	for _, m := range got {
		if m.Score < 0 || m.Score > 1 {
			t.Errorf("score %f outside [0,1]", m.Score)
		}
	}
}

// A name token that is also a record keyword posts the record twice, so
// the raw ratio can pass 1. The normalized score must stay clamped.
func TestMatchScoreClamped(t *testing.T) {
	c := New()
	c.Add(NewServiceRecord("Parkering", "Parkering i centrum", ""))

	got := c.Match("parkering", 5)
	if len(got) != 1 {
		t.Fatalf("expected 1 match, got %d", len(got))
	}
	if got[0].Hits != 2 {
		t.Errorf("hits = %d, want 2 (keyword slot plus name slot)", got[0].Hits)
	}
	if got[0].Score != 1.0 {
		t.Errorf("score = %f, want clamped 1.0", got[0].Score)
	}
}

func TestMatchTieBreakByPosition(t *testing.T) {
	c := New()
	c.Add(NewServiceRecord("Cykelgarage Nord", "Säker cykelparkering", ""))
	c.Add(NewServiceRecord("Cykelgarage Syd", "Säker cykelparkering", ""))

	got := c.Match("cykelparkering", 10)
	if len(got) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(got))
	}
	if got[0].Record.Name != "Cykelgarage Nord" || got[1].Record.Name != "Cykelgarage Syd" {
		t.Errorf("tie not broken by catalog position: %q before %q", got[0].Record.Name, got[1].Record.Name)
	}
}

func TestMatchTopK(t *testing.T) {
	c := New()
	for i := 0; i < 8; i++ {
		c.Add(NewServiceRecord(fmt.Sprintf("Bibliotek %d", i), "Utlåning av böcker", ""))
	}
	if got := c.Match("bibliotek", 3); len(got) != 3 {
		t.Errorf("topK not applied: got %d matches", len(got))
	}
}

func TestMatchNoUsableKeywords(t *testing.T) {
	c := testCatalog()
	for _, q := range []string{"", "och att det en är", "!!! 123"} {
		if got := c.Match(q, 5); got != nil {
			t.Errorf("Match(%q) = %v, want nil", q, got)
		}
	}
}

func TestMatchUnknownQuery(t *testing.T) {
	c := testCatalog()
	if got := c.Match("rymdraket till månen", 5); len(got) != 0 {
		t.Errorf("expected no matches, got %v", got)
	}
}

func TestDeleteIdempotent(t *testing.T) {
	c := testCatalog()
	if n := c.Delete("Lokalbokning"); n != 1 {
		t.Errorf("first delete = %d, want 1", n)
	}
	if n := c.Delete("Lokalbokning"); n != 0 {
		t.Errorf("second delete = %d, want 0", n)
	}
	if got := c.Match("boka mötesrum", 5); len(got) != 0 {
		t.Errorf("deleted record still matches: %v", got)
	}
	if c.Len() != 2 {
		t.Errorf("len = %d, want 2", c.Len())
	}
}

func TestDeleteReindexesSurvivors(t *testing.T) {
	c := testCatalog()
	c.Delete("Parkeringstillstånd")
	got := c.Match("publicera information", 5)
	if len(got) == 0 || got[0].Record.Name != "Digital Anslagstavla" {
		t.Fatalf("surviving record not reachable after delete: %v", got)
	}
}

func TestReplace(t *testing.T) {
	c := testCatalog()
	c.Replace([]ServiceRecord{NewServiceRecord("Snöröjning", "Snöröjning av gator", "")})
	if c.Len() != 1 {
		t.Fatalf("len = %d, want 1", c.Len())
	}
	if got := c.Match("boka lokaler", 5); len(got) != 0 {
		t.Errorf("old records still indexed: %v", got)
	}
	if got := c.Match("snöröjning", 5); len(got) != 1 {
		t.Errorf("new records not indexed: %v", got)
	}
}

func TestGet(t *testing.T) {
	c := testCatalog()
	rec, ok := c.Get("Lokalbokning")
	if !ok || rec.Description != "Boka mötesrum och lokaler" {
		t.Errorf("Get = %+v, %v", rec, ok)
	}
	if _, ok := c.Get("Okänd"); ok {
		t.Error("Get should miss unknown names")
	}
}

func TestStats(t *testing.T) {
	c := testCatalog()
	s := c.Stats()
	if s.Records != 3 {
		t.Errorf("records = %d", s.Records)
	}
	if s.AvgKeywords <= 0 {
		t.Errorf("avg keywords = %f", s.AvgKeywords)
	}
	if len(s.SampleServices) != 3 {
		t.Errorf("samples = %v", s.SampleServices)
	}
	total := 0
	for _, n := range s.Categories {
		total += n
	}
	if total != 3 {
		t.Errorf("category counts sum to %d", total)
	}
}

// Queries racing ingestion must see either the old or the new index,
// never a broken one. Run with -race.
func TestConcurrentMatchAndAdd(t *testing.T) {
	c := testCatalog()
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				c.Add(NewServiceRecord(fmt.Sprintf("Tjänst %d-%d", i, j), "Generell beskrivning av parkering", ""))
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				c.Match("parkering i centrum", 5)
			}
		}()
	}
	wg.Wait()
	if c.Len() < 3+200 {
		t.Errorf("len = %d after concurrent adds", c.Len())
	}
}
