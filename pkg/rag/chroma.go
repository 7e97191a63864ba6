package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Frallans76Organisation/innovation-hub/pkg/logger"
)

var (
	errChromaNotFound = errors.New("chroma resource not found")
	errChromaConflict = errors.New("chroma resource conflict")
)

// chromaStore talks to a ChromaDB server over its v1 REST API. The
// server owns persistence, so Flush is a no-op; an unreachable server
// degrades queries to the keyword tier instead of failing them.
type chromaStore struct {
	client     *http.Client
	baseURL    string
	collection string

	mu        sync.RWMutex
	collID    string
	available bool
}

func newChromaStore(ctx context.Context, rawURL, collection string) (*chromaStore, error) {
	if collection == "" {
		return nil, errors.New("chroma collection name required")
	}
	c := &chromaStore{
		client:     &http.Client{Timeout: 30 * time.Second},
		baseURL:    strings.TrimRight(rawURL, "/") + "/api/v1",
		collection: collection,
	}
	if err := c.ensureReady(ctx); err != nil {
		logger.Warn(fmt.Sprintf("chroma: not ready at %s: %v", rawURL, err))
	}
	return c, nil
}

func (c *chromaStore) Name() string { return "chroma" }

func (c *chromaStore) Capabilities() Capabilities {
	return Capabilities{TextSearch: false, Persistent: true}
}

// ensureReady checks the heartbeat with short backoff and resolves the
// collection id, creating the collection on first use.
func (c *chromaStore) ensureReady(ctx context.Context) error {
	c.mu.RLock()
	ready := c.available && c.collID != ""
	c.mu.RUnlock()
	if ready {
		return nil
	}

	const maxAttempts = 3
	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err = c.doRequest(ctx, http.MethodGet, c.baseURL+"/heartbeat", nil, nil); err == nil {
			break
		}
		if attempt == maxAttempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt+1) * 250 * time.Millisecond):
		}
	}
	if err != nil {
		c.setAvailable(false)
		return err
	}

	id, err := c.resolveCollection(ctx)
	if err != nil {
		c.setAvailable(false)
		return err
	}
	c.mu.Lock()
	c.collID = id
	c.available = true
	c.mu.Unlock()
	return nil
}

func (c *chromaStore) setAvailable(v bool) {
	c.mu.Lock()
	c.available = v
	c.mu.Unlock()
}

func (c *chromaStore) resolveCollection(ctx context.Context) (string, error) {
	if id, err := c.lookupCollection(ctx); err == nil && id != "" {
		return id, nil
	}

	var created struct {
		ID string `json:"id"`
	}
	payload := map[string]any{"name": c.collection, "get_or_create": true}
	err := c.doRequest(ctx, http.MethodPost, c.baseURL+"/collections", payload, &created)
	if errors.Is(err, errChromaConflict) {
		// Lost a create race; the collection exists now.
		id, err := c.lookupCollection(ctx)
		if err != nil {
			return "", err
		}
		if id == "" {
			return "", fmt.Errorf("collection %q conflicted but cannot be found", c.collection)
		}
		return id, nil
	}
	if err != nil {
		return "", err
	}
	return created.ID, nil
}

func (c *chromaStore) lookupCollection(ctx context.Context) (string, error) {
	var list struct {
		Collections []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"collections"`
	}
	endpoint := c.baseURL + "/collections?name=" + url.QueryEscape(c.collection)
	if err := c.doRequest(ctx, http.MethodGet, endpoint, nil, &list); err != nil && !errors.Is(err, errChromaNotFound) {
		if err := c.doRequest(ctx, http.MethodGet, c.baseURL+"/collections", nil, &list); err != nil {
			return "", err
		}
	}
	for _, col := range list.Collections {
		if strings.EqualFold(col.Name, c.collection) {
			return col.ID, nil
		}
	}
	return "", nil
}

func (c *chromaStore) collectionURL(suffix string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return fmt.Sprintf("%s/collections/%s/%s", c.baseURL, url.PathEscape(c.collID), suffix)
}

func (c *chromaStore) Add(ctx context.Context, docs []Document, vectors [][]float32) error {
	if len(docs) == 0 {
		return nil
	}
	if vectors != nil && len(vectors) != len(docs) {
		return fmt.Errorf("add: %d documents with %d vectors", len(docs), len(vectors))
	}
	if err := c.ensureReady(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrSemanticUnavailable, err)
	}

	ids := make([]string, len(docs))
	documents := make([]string, len(docs))
	metadatas := make([]map[string]any, len(docs))
	for i, doc := range docs {
		ids[i] = doc.ID
		documents[i] = doc.Text
		metadatas[i] = chromaMeta(doc)
	}
	payload := map[string]any{
		"ids":       ids,
		"documents": documents,
		"metadatas": metadatas,
	}
	if vectors != nil {
		payload["embeddings"] = vectors
	}

	err := c.doRequest(ctx, http.MethodPost, c.collectionURL("upsert"), payload, nil)
	if errors.Is(err, errChromaNotFound) {
		// Older servers lack upsert.
		err = c.doRequest(ctx, http.MethodPost, c.collectionURL("add"), payload, nil)
	}
	return err
}

func chromaMeta(doc Document) map[string]any {
	meta := make(map[string]any, len(doc.Meta)+3)
	for k, v := range doc.Meta {
		meta[k] = v
	}
	meta["source"] = doc.Source
	meta["chunk_index"] = doc.Ordinal
	meta["total_chunks"] = doc.Total
	return meta
}

func (c *chromaStore) Search(ctx context.Context, vector []float32, k int) ([]Hit, error) {
	if k < 1 {
		k = 1
	}
	if err := c.ensureReady(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSemanticUnavailable, err)
	}

	body := map[string]any{
		"query_embeddings": [][]float32{vector},
		"n_results":        k,
		"include":          []string{"documents", "metadatas", "distances"},
	}
	var resp struct {
		IDs       [][]string         `json:"ids"`
		Documents [][]string         `json:"documents"`
		Metadatas [][]map[string]any `json:"metadatas"`
		Distances [][]float64        `json:"distances"`
	}
	if err := c.doRequest(ctx, http.MethodPost, c.collectionURL("query"), body, &resp); err != nil {
		return nil, err
	}
	if len(resp.IDs) == 0 {
		return nil, nil
	}

	hits := make([]Hit, 0, len(resp.IDs[0]))
	for i, id := range resp.IDs[0] {
		doc := Document{ID: id}
		if len(resp.Documents) > 0 && i < len(resp.Documents[0]) {
			doc.Text = resp.Documents[0][i]
		}
		if len(resp.Metadatas) > 0 && i < len(resp.Metadatas[0]) {
			doc.Source, doc.Ordinal, doc.Total, doc.Meta = splitChromaMeta(resp.Metadatas[0][i])
		}
		hit := Hit{Doc: doc}
		if len(resp.Distances) > 0 && i < len(resp.Distances[0]) {
			hit.Distance = resp.Distances[0][i]
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

func splitChromaMeta(raw map[string]any) (source string, ordinal, total int, meta map[string]string) {
	meta = make(map[string]string, len(raw))
	for k, v := range raw {
		switch k {
		case "source":
			source, _ = v.(string)
		case "chunk_index":
			ordinal = asInt(v)
		case "total_chunks":
			total = asInt(v)
		default:
			meta[k] = fmt.Sprintf("%v", v)
		}
	}
	return source, ordinal, total, meta
}

func asInt(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case string:
		i, _ := strconv.Atoi(n)
		return i
	}
	return 0
}

func (c *chromaStore) SearchText(context.Context, string, int) ([]Hit, error) {
	return nil, errors.New("chroma store has no lexical search")
}

func (c *chromaStore) DeleteSource(ctx context.Context, source string) (int, error) {
	if err := c.ensureReady(ctx); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrSemanticUnavailable, err)
	}

	var got struct {
		IDs []string `json:"ids"`
	}
	body := map[string]any{
		"where":   map[string]any{"source": source},
		"include": []string{},
	}
	if err := c.doRequest(ctx, http.MethodPost, c.collectionURL("get"), body, &got); err != nil {
		return 0, err
	}
	if len(got.IDs) == 0 {
		return 0, nil
	}
	if err := c.doRequest(ctx, http.MethodPost, c.collectionURL("delete"), map[string]any{"ids": got.IDs}, nil); err != nil {
		return 0, err
	}
	return len(got.IDs), nil
}

func (c *chromaStore) Count(ctx context.Context) (int, error) {
	if err := c.ensureReady(ctx); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrSemanticUnavailable, err)
	}
	var count int
	if err := c.doRequest(ctx, http.MethodGet, c.collectionURL("count"), nil, &count); err != nil {
		return 0, err
	}
	return count, nil
}

func (c *chromaStore) Flush() error { return nil }

func (c *chromaStore) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

func (c *chromaStore) doRequest(ctx context.Context, method, endpoint string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return errChromaNotFound
	case resp.StatusCode == http.StatusConflict:
		return errChromaConflict
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("chroma %s %s: %s", method, endpoint, strings.TrimSpace(string(data)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
