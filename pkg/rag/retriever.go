package rag

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/Frallans76Organisation/innovation-hub/pkg/config"
	"github.com/Frallans76Organisation/innovation-hub/pkg/document"
	"github.com/Frallans76Organisation/innovation-hub/pkg/logger"
)

// embedBatchSize bounds a single embedding request. Providers cap batch
// sizes well above this, so the limit protects request latency, not
// correctness.
const embedBatchSize = 64

// Candidate is one retrieval result mapped into matching terms: the
// source a chunk came from, its text, and a similarity in [0,1] derived
// from the store distance.
type Candidate struct {
	Source     string            `json:"source"`
	Text       string            `json:"text"`
	Category   string            `json:"category,omitempty"`
	Similarity float64           `json:"similarity"`
	Meta       map[string]string `json:"metadata,omitempty"`
}

// RetrieverStats summarizes the semantic index for status output.
type RetrieverStats struct {
	Store      string `json:"vector_store"`
	Documents  int    `json:"total_documents"`
	Provider   string `json:"embedding_provider,omitempty"`
	Model      string `json:"embedding_model,omitempty"`
	SemanticOK bool   `json:"semantic_ready"`
	Persistent bool   `json:"persistent"`
}

// Retriever centralizes chunking, embedding, and vector storage so every
// entry point gets identical behavior. A retriever without an embedder
// still accepts and serves documents; only vector search is refused, with
// ErrSemanticUnavailable, so callers can fall back to keyword matching.
type Retriever struct {
	cfg      config.RAGConfig
	chunker  document.Chunker
	embedder Embedder
	store    VectorStore
}

// Option configures optional Retriever dependencies.
type Option func(*Retriever)

// WithEmbedder overrides the embedder created from config. Useful for
// testing with a fake embedder that doesn't require API keys.
func WithEmbedder(e Embedder) Option {
	return func(r *Retriever) { r.embedder = e }
}

// WithStore overrides the vector store created from config.
func WithStore(s VectorStore) Option {
	return func(r *Retriever) { r.store = s }
}

// NewRetriever builds the retrieval pipeline from config. Misconfigured
// embeddings degrade to keyword-only operation; only an unusable store
// is a hard error, because serving from a broken index would silently
// diverge from the catalog.
func NewRetriever(ctx context.Context, cfg config.RAGConfig, dataDir string, opts ...Option) (*Retriever, error) {
	r := &Retriever{
		cfg:      cfg,
		chunker:  document.NewChunker(cfg.ChunkSize, cfg.ChunkOverlap),
		embedder: newEmbedder(cfg),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.store == nil {
		store, err := newStore(ctx, cfg, dataDir)
		if err != nil {
			return nil, err
		}
		r.store = store
	}
	return r, nil
}

func newStore(ctx context.Context, cfg config.RAGConfig, dataDir string) (VectorStore, error) {
	switch cfg.VectorStore {
	case "chroma":
		return newChromaStore(ctx, cfg.ChromaURL, cfg.ChromaCollection)
	default:
		return newMemoryStore(snapshotDir(dataDir))
	}
}

func snapshotDir(dataDir string) string {
	if dataDir == "" {
		return ""
	}
	return filepath.Join(dataDir, "rag")
}

// ResetSnapshot discards the on-disk semantic index under dataDir so a
// corrupt snapshot can be rebuilt by reingesting the catalog.
func ResetSnapshot(dataDir string) error {
	if dataDir == "" {
		return nil
	}
	snap, err := OpenSnapshot(snapshotDir(dataDir))
	if err != nil {
		return err
	}
	defer snap.Close()
	return snap.Reset()
}

// Ready reports whether vector search is available. False means the
// retriever runs keyword-only.
func (r *Retriever) Ready() bool { return r.embedder != nil }

// StoreName identifies the configured vector store backend.
func (r *Retriever) StoreName() string { return r.store.Name() }

// AddText chunks text, embeds the chunks, and stores them under source.
// Returns the number of chunks stored. With no embedder the chunks are
// stored without vectors so lexical search and later re-embedding still
// work. It satisfies document.TextSink.
func (r *Retriever) AddText(ctx context.Context, source, text string, meta map[string]string) (int, error) {
	chunks := r.chunker.Split(text)
	if len(chunks) == 0 {
		return 0, nil
	}

	now := time.Now().Unix()
	docs := make([]Document, len(chunks))
	for i, chunk := range chunks {
		m := make(map[string]string, len(meta)+1)
		for k, v := range meta {
			m[k] = v
		}
		m["timestamp"] = fmt.Sprintf("%d", now)
		docs[i] = Document{
			ID:      fmt.Sprintf("%s_chunk_%d_%d", source, i, now),
			Source:  source,
			Text:    chunk,
			Meta:    m,
			Ordinal: i,
			Total:   len(chunks),
		}
	}

	var vectors [][]float32
	if r.embedder != nil {
		var err error
		vectors, err = r.embedBatches(ctx, chunks)
		if err != nil {
			return 0, fmt.Errorf("embed %q: %w", source, err)
		}
	}
	if err := r.store.Add(ctx, docs, vectors); err != nil {
		return 0, fmt.Errorf("store %q: %w", source, err)
	}
	return len(docs), nil
}

// AddDocument stores one logical document under source. It satisfies
// catalog.SemanticSink.
func (r *Retriever) AddDocument(ctx context.Context, source, text string, meta map[string]string) error {
	_, err := r.AddText(ctx, source, text, meta)
	return err
}

func (r *Retriever) embedBatches(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += embedBatchSize {
		end := min(start+embedBatchSize, len(texts))
		batch, err := r.embedder.Embed(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		if len(batch) != end-start {
			return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(batch), end-start)
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

// Search embeds the query and returns the k nearest candidates ordered
// by descending similarity, where similarity is 1-distance floored at
// zero. Without an embedder it returns ErrSemanticUnavailable.
func (r *Retriever) Search(ctx context.Context, query string, k int) ([]Candidate, error) {
	if r.embedder == nil {
		return nil, ErrSemanticUnavailable
	}
	if k < 1 {
		k = r.cfg.TopK
	}
	vecs, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for one query", len(vecs))
	}
	hits, err := r.store.Search(ctx, vecs[0], k)
	if err != nil {
		return nil, err
	}
	return toCandidates(hits, true), nil
}

// SearchText runs lexical retrieval when the store supports it. Scores
// are backend-relative ranks, not similarities.
func (r *Retriever) SearchText(ctx context.Context, query string, k int) ([]Candidate, error) {
	if !r.store.Capabilities().TextSearch {
		return nil, fmt.Errorf("%s store has no lexical search", r.store.Name())
	}
	if k < 1 {
		k = r.cfg.TopK
	}
	hits, err := r.store.SearchText(ctx, query, k)
	if err != nil {
		return nil, err
	}
	return toCandidates(hits, false), nil
}

func toCandidates(hits []Hit, fromDistance bool) []Candidate {
	out := make([]Candidate, 0, len(hits))
	for _, h := range hits {
		sim := h.Score
		if fromDistance {
			sim = max(0, 1-h.Distance)
		}
		out = append(out, Candidate{
			Source:     h.Doc.Source,
			Text:       h.Doc.Text,
			Category:   h.Doc.Meta["category"],
			Similarity: sim,
			Meta:       h.Doc.Meta,
		})
	}
	return out
}

// DeleteSource removes every chunk stored under source and returns how
// many were removed. Deleting an absent source returns zero.
func (r *Retriever) DeleteSource(ctx context.Context, source string) (int, error) {
	return r.store.DeleteSource(ctx, source)
}

// Count returns the number of stored chunks.
func (r *Retriever) Count(ctx context.Context) (int, error) {
	return r.store.Count(ctx)
}

// Stats reports index composition for the stats command.
func (r *Retriever) Stats(ctx context.Context) RetrieverStats {
	n, err := r.store.Count(ctx)
	if err != nil {
		logger.Warn(fmt.Sprintf("rag: count failed: %v", err))
		n = 0
	}
	stats := RetrieverStats{
		Store:      r.store.Name(),
		Documents:  n,
		SemanticOK: r.embedder != nil,
		Persistent: r.store.Capabilities().Persistent,
	}
	if r.embedder != nil {
		stats.Provider = r.cfg.EmbeddingProvider
		stats.Model = r.cfg.EmbeddingModel
	}
	return stats
}

// IsDirty reports whether the store holds changes not yet flushed to its
// snapshot. Stores without local snapshots are never dirty. It satisfies
// catalog.Flusher together with Flush.
func (r *Retriever) IsDirty() bool {
	if ds, ok := r.store.(interface{ IsDirty() bool }); ok {
		return ds.IsDirty()
	}
	return false
}

// Flush persists buffered state to the store's snapshot.
func (r *Retriever) Flush() error { return r.store.Flush() }

// Close flushes and releases the underlying store.
func (r *Retriever) Close() error {
	if r == nil || r.store == nil {
		return nil
	}
	if err := r.store.Flush(); err != nil {
		logger.Warn(fmt.Sprintf("rag: flush on close failed: %v", err))
	}
	return r.store.Close()
}
