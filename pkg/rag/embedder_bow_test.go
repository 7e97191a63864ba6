package rag

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"
)

// bowDims fixes the fake vector width so snapshots stay uniform across
// Embed calls.
const bowDims = 256

// bowEmbedder is a deterministic bag-of-words embedder for tests. A
// shared vocabulary assigns each new token the next slot of a fixed-width
// vector, so identical texts embed identically and texts without common
// tokens are orthogonal. No API key needed. Not suitable for production,
// only for testing the retrieval pipeline.
type bowEmbedder struct {
	vocab map[string]int
}

func newBOWEmbedder() *bowEmbedder {
	return &bowEmbedder{vocab: make(map[string]int)}
}

func (b *bowEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, bowDims)
		for _, tok := range bowTokenize(text) {
			idx, ok := b.vocab[tok]
			if !ok {
				idx = len(b.vocab)
				if idx >= bowDims {
					return nil, fmt.Errorf("bow vocabulary overflow at %q", tok)
				}
				b.vocab[tok] = idx
			}
			vec[idx]++
		}

		// L2 normalize
		var norm float64
		for _, v := range vec {
			norm += float64(v) * float64(v)
		}
		if norm > 0 {
			norm = math.Sqrt(norm)
			for j := range vec {
				vec[j] = float32(float64(vec[j]) / norm)
			}
		}
		vecs[i] = vec
	}
	return vecs, nil
}

func (b *bowEmbedder) Dims() int {
	return bowDims
}

var bowSplitRE = regexp.MustCompile(`[^\p{L}\p{N}]+`)

func bowTokenize(s string) []string {
	parts := bowSplitRE.Split(strings.ToLower(s), -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" && len(p) > 1 {
			out = append(out, p)
		}
	}
	return out
}
