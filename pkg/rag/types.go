// Package rag provides the semantic side of idea matching: embedding
// catalog documents, storing their vectors and retrieving nearest
// neighbors for a query.
package rag

import (
	"context"
	"errors"
)

// Sentinel errors. Callers match with errors.Is or the helpers below.
var (
	// ErrSemanticUnavailable means no embedder is configured or the
	// vector store cannot serve queries; matching falls back to the
	// keyword index.
	ErrSemanticUnavailable = errors.New("semantic index unavailable")

	// ErrSnapshotCorrupt means the persisted document and vector sets
	// diverged. This is a programming or corruption fault, not a
	// degradation case: rebuild the snapshot from the catalog.
	ErrSnapshotCorrupt = errors.New("vector snapshot corrupt")
)

// IsUnavailable reports whether err represents a degradation to
// keyword-only matching rather than a hard failure.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrSemanticUnavailable)
}

// Document is one indexed unit of text. Catalog services are stored as
// one document each; larger files are split into chunk documents that
// share a Source.
type Document struct {
	ID      string            `json:"id"`
	Source  string            `json:"source"`
	Text    string            `json:"text"`
	Meta    map[string]string `json:"metadata,omitempty"`
	Ordinal int               `json:"chunk_index"`
	Total   int               `json:"total_chunks"`
}

// Hit is a store-level search result. Distance is cosine distance for
// vector search; Score is the lexical score for text search. Only one
// of the two is meaningful per search path.
type Hit struct {
	Doc      Document
	Distance float64
	Score    float64
}

// Capabilities describes what a store implementation can do.
type Capabilities struct {
	TextSearch bool
	Persistent bool
}

// VectorStore persists documents with their embeddings and serves
// nearest-neighbor queries. Implementations must be safe for
// concurrent use.
type VectorStore interface {
	// Add stores documents with parallel vectors. vectors may be nil
	// when no embedder is configured; such documents are only reachable
	// through SearchText.
	Add(ctx context.Context, docs []Document, vectors [][]float32) error

	// Search returns up to k hits ordered by ascending distance.
	Search(ctx context.Context, vector []float32, k int) ([]Hit, error)

	// SearchText runs lexical search when the store supports it, see
	// Capabilities.
	SearchText(ctx context.Context, query string, k int) ([]Hit, error)

	// DeleteSource removes every document with the given source and
	// returns how many were removed. Unknown sources remove zero.
	DeleteSource(ctx context.Context, source string) (int, error)

	Count(ctx context.Context) (int, error)
	Flush() error
	Close() error
	Name() string
	Capabilities() Capabilities
}
