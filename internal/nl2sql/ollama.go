package nl2sql

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultOllamaModel   = "mannix/defog-llama3-sqlcoder-8b"
	defaultContextWindow = 2048
	defaultOllamaTimeout = 300 * time.Second
)

type OllamaConfig struct {
	BaseURL       string
	Model         string
	ContextWindow int
	Temperature   float64
	Timeout       time.Duration
}

// OllamaTranslator calls the Ollama completion endpoint without streaming.
type OllamaTranslator struct {
	baseURL       string
	model         string
	contextWindow int
	temperature   float64
	client        *http.Client
}

func NewOllamaTranslator(cfg OllamaConfig) (*OllamaTranslator, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultOllamaModel
	}
	contextWindow := cfg.ContextWindow
	if contextWindow <= 0 {
		contextWindow = defaultContextWindow
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultOllamaTimeout
	}
	return &OllamaTranslator{
		baseURL:       strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		model:         model,
		contextWindow: contextWindow,
		temperature:   cfg.Temperature,
		client:        &http.Client{Timeout: timeout},
	}, nil
}

type ollamaGenerateRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	NumCtx      int     `json:"num_ctx"`
	Temperature float64 `json:"temperature"`
}

func (t *OllamaTranslator) Translate(ctx context.Context, req Request) (Result, error) {
	body, err := json.Marshal(ollamaGenerateRequest{
		Model:  t.model,
		Prompt: BuildPrompt(req.Question, req.Schema),
		Stream: false,
		Options: ollamaOptions{
			NumCtx:      t.contextWindow,
			Temperature: t.temperature,
		},
	})
	if err != nil {
		return Result{}, generationError("marshal generate payload: %v", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return Result{}, generationError("build generate request: %v", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return Result{}, generationError("request completion: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	rawRespBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, generationError("read completion body: %v", err)
	}
	if resp.StatusCode >= 400 {
		return Result{}, generationError("completion failed status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(rawRespBody)))
	}

	var parsed struct {
		Response string `json:"response"`
		Error    string `json:"error"`
	}
	if err := json.Unmarshal(rawRespBody, &parsed); err != nil {
		return Result{}, generationError("decode completion response: %v", err)
	}
	if parsed.Error != "" {
		return Result{}, generationError("ollama error: %s", parsed.Error)
	}
	return finishResult(parsed.Response, ProviderOllama, t.model)
}
