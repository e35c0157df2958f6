// Package ollama builds the Ollama chat model used by the query chain.
package ollama

import (
	"fmt"
	"net/url"

	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/transitguard/transitguard-kg/engine/domain"
)

// DefaultURL is the local Ollama server address.
const DefaultURL = "http://localhost:11434"

// NewLLM creates an Ollama model client for model at baseURL. It does not
// contact the server.
func NewLLM(baseURL, model string) (*ollama.LLM, error) {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	if model == "" {
		return nil, domain.Errorf(domain.KindConfig, "ollama", "model name is required")
	}
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, domain.Errorf(domain.KindConfig, "ollama", "invalid server url %q", baseURL)
	}

	llm, err := ollama.New(
		ollama.WithServerURL(baseURL),
		ollama.WithModel(model),
	)
	if err != nil {
		return nil, domain.E(domain.KindConfig, "ollama", fmt.Errorf("create client: %w", err))
	}
	return llm, nil
}
