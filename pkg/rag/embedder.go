package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/Frallans76Organisation/innovation-hub/pkg/config"
	"github.com/Frallans76Organisation/innovation-hub/pkg/logger"
)

// ollamaClient is shared for quick availability checks against a local
// Ollama daemon; model pulls get a much longer timeout.
var (
	ollamaClient     = &http.Client{Timeout: 5 * time.Second}
	ollamaPullClient = &http.Client{Timeout: 10 * time.Minute}
)

// Embedder computes dense vector representations for text. Implementations
// must be safe for concurrent use.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dims() int
}

type embeddingProviderInfo struct {
	BaseURL      string
	DefaultModel string
	Dims         int
	NeedsKey     bool
}

// embeddingProviders holds per-provider defaults:
//
//	openai  text-embedding-3-small  1536d  hosted, default for the portal
//	ollama  nomic-embed-text        768d   local, no key, good for air-gapped setups
//	nvidia  NV-Embed-QA             1024d  hosted, free tier
//	zhipu   embedding-3             2048d  hosted
//	vllm    (user picks model)      -      self-hosted OpenAI-compatible server
var embeddingProviders = map[string]embeddingProviderInfo{
	"openai": {
		BaseURL:      "https://api.openai.com/v1",
		DefaultModel: "text-embedding-3-small",
		Dims:         1536,
		NeedsKey:     true,
	},
	"ollama": {
		BaseURL:      "http://localhost:11434/v1",
		DefaultModel: "nomic-embed-text",
		Dims:         768,
		NeedsKey:     false,
	},
	"nvidia": {
		BaseURL:      "https://integrate.api.nvidia.com/v1",
		DefaultModel: "NV-Embed-QA",
		Dims:         1024,
		NeedsKey:     true,
	},
	"zhipu": {
		BaseURL:      "https://open.bigmodel.cn/api/paas/v4",
		DefaultModel: "embedding-3",
		Dims:         2048,
		NeedsKey:     true,
	},
	"vllm": {
		BaseURL:      "",
		DefaultModel: "",
		Dims:         0,
		NeedsKey:     false,
	},
}

// newEmbedder constructs an Embedder from config. It returns nil with a
// logged warning when the provider is unsupported or incompletely
// configured; callers then run keyword-only matching.
func newEmbedder(cfg config.RAGConfig) Embedder {
	provider := strings.ToLower(strings.TrimSpace(cfg.EmbeddingProvider))
	if provider == "" {
		return nil
	}

	info, supported := embeddingProviders[provider]
	if !supported {
		logger.Warn(fmt.Sprintf("embeddings: provider %q unsupported; semantic matching disabled", provider))
		return nil
	}

	apiBase := cfg.EmbeddingAPIBase
	if apiBase == "" {
		apiBase = info.BaseURL
	}
	if apiBase == "" {
		logger.Warn(fmt.Sprintf("embeddings: provider %q needs embedding_api_base; semantic matching disabled", provider))
		return nil
	}

	apiKey := cfg.EmbeddingAPIKey.Value()
	if apiKey == "" && info.NeedsKey {
		logger.Warn(fmt.Sprintf("embeddings: provider %q needs an api key; semantic matching disabled", provider))
		return nil
	}

	model := cfg.EmbeddingModel
	if model == "" {
		model = info.DefaultModel
	}
	if model == "" {
		logger.Warn(fmt.Sprintf("embeddings: provider %q needs embedding_model; semantic matching disabled", provider))
		return nil
	}

	timeout := cfg.EmbeddingTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	e := &httpEmbedder{
		apiBase:  strings.TrimRight(apiBase, "/"),
		apiKey:   apiKey,
		model:    model,
		provider: provider,
		dims:     info.Dims, // 0 means discover from the first response
		client:   &http.Client{Timeout: timeout},
	}
	if cfg.EmbeddingRPS > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(cfg.EmbeddingRPS), 1)
	}

	if provider == "ollama" {
		ensureOllamaModel(e.ollamaBase(), model)
	}
	return e
}

// httpEmbedder calls an OpenAI-compatible /embeddings endpoint.
type httpEmbedder struct {
	apiBase  string
	apiKey   string
	model    string
	provider string
	client   *http.Client
	limiter  *rate.Limiter
	dimsOnce sync.Once
	dims     int
}

func (e *httpEmbedder) ollamaBase() string {
	return strings.TrimSuffix(strings.TrimRight(e.apiBase, "/"), "/v1")
}

// ensureOllamaModel pulls the embedding model if the local daemon does
// not have it yet. Best-effort: Embed reports the real error if the
// model stays unavailable.
func ensureOllamaModel(base, model string) {
	resp, err := ollamaClient.Get(base + "/api/tags")
	if err != nil {
		logger.Info(fmt.Sprintf("embeddings: ollama not reachable at %s: %v", base, err))
		return
	}
	defer resp.Body.Close()

	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tags); err == nil {
		for _, m := range tags.Models {
			if m.Name == model || strings.Split(m.Name, ":")[0] == model {
				return
			}
		}
	}

	logger.Info(fmt.Sprintf("embeddings: pulling ollama model %q", model))
	body, _ := json.Marshal(map[string]any{"name": model, "stream": false})
	pullResp, err := ollamaPullClient.Post(base+"/api/pull", "application/json", bytes.NewReader(body))
	if err != nil {
		logger.Warn(fmt.Sprintf("embeddings: ollama pull %q failed: %v", model, err))
		return
	}
	defer pullResp.Body.Close()
	io.Copy(io.Discard, pullResp.Body)
	if pullResp.StatusCode != http.StatusOK {
		logger.Warn(fmt.Sprintf("embeddings: ollama pull %q returned status %d", model, pullResp.StatusCode))
	}
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

func (e *httpEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	body, err := json.Marshal(embeddingRequest{Model: e.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.apiBase+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("embedding API returned %d: %s", resp.StatusCode, string(respBody))
	}

	var result embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode embedding response: %w", err)
	}
	if len(result.Data) != len(texts) {
		return nil, fmt.Errorf("embedding response has %d vectors for %d inputs", len(result.Data), len(texts))
	}

	vecs := make([][]float32, len(texts))
	for _, d := range result.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, fmt.Errorf("embedding response index %d out of range", d.Index)
		}
		vecs[d.Index] = d.Embedding
	}

	if e.dims == 0 && len(vecs[0]) > 0 {
		e.dimsOnce.Do(func() { e.dims = len(vecs[0]) })
	}
	return vecs, nil
}

func (e *httpEmbedder) Dims() int {
	return e.dims
}
