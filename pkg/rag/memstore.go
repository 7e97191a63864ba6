package rag

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/wizenheimer/comet"

	"github.com/Frallans76Organisation/innovation-hub/pkg/logger"
)

// memoryStore keeps documents, vectors and a BM25 text index in memory,
// with an optional on-disk snapshot for restarts. Vector search scans
// the matrix directly; catalogs are small enough that an approximate
// index would buy nothing.
type memoryStore struct {
	mu      sync.RWMutex
	docs    []Document
	vectors [][]float32
	txtIdx  *comet.BM25SearchIndex
	snap    *Snapshot
	dirty   bool
}

// newMemoryStore builds the store, restoring a snapshot from
// snapshotDir when given. A corrupt snapshot is reported as is so the
// caller can reset and reingest.
func newMemoryStore(snapshotDir string) (*memoryStore, error) {
	m := &memoryStore{txtIdx: comet.NewBM25SearchIndex()}
	if snapshotDir == "" {
		return m, nil
	}

	snap, err := OpenSnapshot(snapshotDir)
	if err != nil {
		return nil, err
	}
	m.snap = snap

	docs, vectors, err := snap.Load()
	if err != nil {
		snap.Close()
		return nil, err
	}
	m.docs = docs
	m.vectors = make([][]float32, len(docs))
	copy(m.vectors, vectors)
	if err := m.rebuildTextIndex(); err != nil {
		snap.Close()
		return nil, err
	}
	if snap.IsDirty() {
		// The previous process mutated after its last flush.
		m.dirty = true
		logger.Warn("vector store: snapshot has unflushed changes from a previous run, reingest to refresh")
	}
	return m, nil
}

func (m *memoryStore) Name() string { return "memory" }

func (m *memoryStore) Capabilities() Capabilities {
	return Capabilities{TextSearch: true, Persistent: m.snap != nil}
}

func (m *memoryStore) rebuildTextIndex() error {
	idx := comet.NewBM25SearchIndex()
	for i, doc := range m.docs {
		if err := idx.Add(uint32(i), doc.Text); err != nil {
			return fmt.Errorf("bm25 add document %d: %w", i, err)
		}
	}
	m.txtIdx = idx
	return nil
}

func (m *memoryStore) Add(_ context.Context, docs []Document, vectors [][]float32) error {
	if vectors != nil && len(vectors) != len(docs) {
		return fmt.Errorf("add: %d documents with %d vectors", len(docs), len(vectors))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i, doc := range docs {
		pos := len(m.docs)
		m.docs = append(m.docs, doc)
		if vectors != nil {
			m.vectors = append(m.vectors, vectors[i])
		} else {
			m.vectors = append(m.vectors, nil)
		}
		if err := m.txtIdx.Add(uint32(pos), doc.Text); err != nil {
			return fmt.Errorf("bm25 add document %d: %w", pos, err)
		}
	}
	m.markDirtyLocked()
	return nil
}

func (m *memoryStore) Search(_ context.Context, vector []float32, k int) ([]Hit, error) {
	if k < 1 {
		k = 1
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	hits := make([]Hit, 0, len(m.docs))
	for i, vec := range m.vectors {
		if vec == nil {
			continue
		}
		hits = append(hits, Hit{Doc: m.docs[i], Distance: cosineDistance(vector, vec)})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (m *memoryStore) SearchText(_ context.Context, query string, k int) ([]Hit, error) {
	if k < 1 {
		k = 1
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.docs) == 0 {
		return nil, nil
	}

	results, err := m.txtIdx.NewSearch().
		WithQuery(query).
		WithK(k).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("bm25 search: %w", err)
	}

	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		id := int(r.Id)
		if id < 0 || id >= len(m.docs) {
			continue
		}
		hits = append(hits, Hit{Doc: m.docs[id], Score: float64(r.Score)})
	}
	return hits, nil
}

func (m *memoryStore) DeleteSource(_ context.Context, source string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	keptDocs := m.docs[:0]
	keptVecs := m.vectors[:0]
	removed := 0
	for i, doc := range m.docs {
		if doc.Source == source {
			removed++
			continue
		}
		keptDocs = append(keptDocs, doc)
		keptVecs = append(keptVecs, m.vectors[i])
	}
	if removed == 0 {
		return 0, nil
	}

	m.docs = keptDocs
	m.vectors = keptVecs
	// BM25 postings have no removal path, rebuild from the survivors.
	if err := m.rebuildTextIndex(); err != nil {
		return removed, err
	}
	m.markDirtyLocked()
	return removed, nil
}

func (m *memoryStore) Count(context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs), nil
}

func (m *memoryStore) markDirtyLocked() {
	m.dirty = true
	if m.snap != nil {
		if err := m.snap.SetDirty(true); err != nil {
			logger.Warn(fmt.Sprintf("vector store: mark dirty: %v", err))
		}
	}
}

// IsDirty reports whether in-memory state is ahead of the snapshot.
func (m *memoryStore) IsDirty() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dirty
}

// Flush writes the snapshot when one is configured. Documents without
// vectors flush as a document-only snapshot.
func (m *memoryStore) Flush() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snap == nil {
		m.dirty = false
		return nil
	}

	vectors := make([][]float32, 0, len(m.vectors))
	dims := 0
	for _, vec := range m.vectors {
		if vec == nil {
			vectors = vectors[:0]
			dims = 0
			break
		}
		vectors = append(vectors, vec)
		dims = len(vec)
	}

	if err := m.snap.SaveDocuments(m.docs, dims); err != nil {
		return err
	}
	if err := m.snap.SaveVectors(vectors); err != nil {
		return err
	}
	if err := m.snap.SetDirty(false); err != nil {
		return err
	}
	m.dirty = false
	return nil
}

func (m *memoryStore) Close() error {
	if m.snap == nil {
		return nil
	}
	return m.snap.Close()
}

// cosineDistance returns 1 minus the cosine similarity of a and b.
// Vectors of unequal length compare over the shorter prefix; different
// embedding generations may disagree on dims and should still rank.
func cosineDistance(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}
