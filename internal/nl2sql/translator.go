// Package nl2sql turns a natural-language question into SQL with a language
// model.
package nl2sql

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sqlagent/sqlagent/internal/config"
)

// ErrGenerationFailed wraps every failure to obtain SQL from a model.
var ErrGenerationFailed = errors.New("sql generation failed")

const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai-compatible"
	ProviderGemini = "gemini"
)

type Request struct {
	Question string `json:"question"`
	// Schema is the rendered schema description, embedded verbatim.
	Schema string `json:"schema"`
}

type Result struct {
	SQL      string `json:"sql"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

type Translator interface {
	Translate(ctx context.Context, req Request) (Result, error)
}

// New builds the translator selected by cfg.Provider.
func New(ctx context.Context, cfg config.LLMConfig) (Translator, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case config.LLMProviderOllama, "":
		return NewOllamaTranslator(OllamaConfig{
			BaseURL:       cfg.BaseURL,
			Model:         cfg.Model,
			ContextWindow: cfg.ContextWindow,
			Temperature:   cfg.Temperature,
			Timeout:       cfg.Timeout,
		})
	case config.LLMProviderOpenAI:
		return NewOpenAITranslator(OpenAIConfig{
			BaseURL:     cfg.BaseURL,
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
		})
	case config.LLMProviderGemini:
		return NewGeminiTranslator(ctx, GeminiConfig{
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
		})
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
}

func generationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrGenerationFailed, fmt.Sprintf(format, args...))
}

// finishResult strips fences from raw model output and rejects empty SQL.
func finishResult(raw, provider, model string) (Result, error) {
	sql := StripCodeFences(raw)
	if sql == "" {
		return Result{}, generationError("%s model %s returned empty SQL", provider, model)
	}
	return Result{SQL: sql, Provider: provider, Model: model}, nil
}
