package catalog

import (
	"sort"
	"sync"
)

// Match is one scored catalog hit. Score is the hit count normalized by
// the number of query keywords, clamped to [0,1]; Hits keeps the raw
// count used for ranking.
type Match struct {
	Record ServiceRecord
	Score  float64
	Hits   int
}

// Catalog is the in-memory record store plus an inverted index over
// record keywords and name words. Reads and writes may overlap, so all
// access goes through a read-write lock.
type Catalog struct {
	mu      sync.RWMutex
	records []ServiceRecord
	index   map[string][]int
}

func New() *Catalog {
	return &Catalog{index: make(map[string][]int)}
}

// Add appends a record and indexes it, returning its position.
func (c *Catalog) Add(rec ServiceRecord) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	pos := len(c.records)
	c.records = append(c.records, rec)
	c.indexLocked(pos, rec)
	return pos
}

// Replace swaps the whole catalog in one step, used by re-ingestion so
// queries never observe a half-built index.
func (c *Catalog) Replace(records []ServiceRecord) {
	idx := buildIndex(records)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = records
	c.index = idx
}

// indexLocked posts the record under each keyword and each name token.
// A token present in both lists is posted twice, which is why Match
// clamps the normalized score.
func (c *Catalog) indexLocked(pos int, rec ServiceRecord) {
	for _, kw := range rec.Keywords {
		c.index[kw] = append(c.index[kw], pos)
	}
	for _, tok := range rec.nameTokens() {
		c.index[tok] = append(c.index[tok], pos)
	}
}

func buildIndex(records []ServiceRecord) map[string][]int {
	idx := make(map[string][]int)
	c := &Catalog{index: idx}
	for pos, rec := range records {
		c.indexLocked(pos, rec)
	}
	return idx
}

// Match scores records by shared keywords with the query text. Results
// are ordered by raw hit count, ties by catalog position, and capped at
// topK. A query with no usable keywords matches nothing.
func (c *Catalog) Match(query string, topK int) []Match {
	if topK < 1 {
		topK = 1
	}
	keywords := ExtractKeywords(query)
	if len(keywords) == 0 {
		return nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	hits := make(map[int]int)
	for _, kw := range keywords {
		for _, pos := range c.index[kw] {
			hits[pos]++
		}
	}
	if len(hits) == 0 {
		return nil
	}

	positions := make([]int, 0, len(hits))
	for pos := range hits {
		positions = append(positions, pos)
	}
	sort.Slice(positions, func(i, j int) bool {
		if hits[positions[i]] != hits[positions[j]] {
			return hits[positions[i]] > hits[positions[j]]
		}
		return positions[i] < positions[j]
	})
	if len(positions) > topK {
		positions = positions[:topK]
	}

	out := make([]Match, 0, len(positions))
	for _, pos := range positions {
		score := float64(hits[pos]) / float64(len(keywords))
		if score > 1 {
			score = 1
		}
		out = append(out, Match{Record: c.records[pos], Score: score, Hits: hits[pos]})
	}
	return out
}

// Delete removes every record named name and rebuilds the index. It
// returns the number of records removed and is safe to repeat.
func (c *Catalog) Delete(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	kept := c.records[:0]
	removed := 0
	for _, rec := range c.records {
		if rec.Name == name {
			removed++
			continue
		}
		kept = append(kept, rec)
	}
	if removed == 0 {
		return 0
	}

	c.records = kept
	c.index = buildIndex(c.records)
	return removed
}

// Get returns the first record with the given name.
func (c *Catalog) Get(name string) (ServiceRecord, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, rec := range c.records {
		if rec.Name == name {
			return rec, true
		}
	}
	return ServiceRecord{}, false
}

// Records returns a copy of the record sequence in catalog order.
func (c *Catalog) Records() []ServiceRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]ServiceRecord, len(c.records))
	copy(out, c.records)
	return out
}

func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

// Stats summarizes the catalog for the CLI and logs.
type Stats struct {
	Records        int            `json:"total_services"`
	Categories     map[string]int `json:"categories"`
	AvgKeywords    float64        `json:"avg_keywords_per_service"`
	IndexedTokens  int            `json:"indexed_tokens"`
	SampleServices []string       `json:"sample_services"`
}

func (c *Catalog) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Stats{
		Records:    len(c.records),
		Categories: make(map[string]int),
	}
	totalKeywords := 0
	for _, rec := range c.records {
		s.Categories[rec.Category]++
		totalKeywords += len(rec.Keywords)
	}
	if len(c.records) > 0 {
		s.AvgKeywords = float64(totalKeywords) / float64(len(c.records))
	}
	s.IndexedTokens = len(c.index)
	for _, rec := range c.records {
		s.SampleServices = append(s.SampleServices, rec.Name)
		if len(s.SampleServices) == 5 {
			break
		}
	}
	return s
}
