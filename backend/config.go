package backend

import "fmt"

// Kind identifies a provider family. Each kind has its own validation rules,
// applied at session-creation time rather than at first use.
type Kind string

const (
	// KindAnthropic targets the Anthropic Messages API.
	KindAnthropic Kind = "anthropic"
	// KindOpenAI targets the OpenAI Chat Completions API.
	KindOpenAI Kind = "openai"
	// KindOpenAICompatible targets any server speaking the OpenAI wire format
	// (Ollama, LM Studio, vLLM, NIM endpoints). Requires a base URL.
	KindOpenAICompatible Kind = "openai_compatible"
	// KindMock is a deterministic in-memory backend for tests and demos.
	KindMock Kind = "mock"
)

// Config is the immutable description of a bound model. It is created at
// session-creation time and never mutated afterwards.
type Config struct {
	ID            string            `json:"id" yaml:"id"`
	Kind          Kind              `json:"provider" yaml:"provider"`
	ModelName     string            `json:"model_name" yaml:"model_name"`
	Role          string            `json:"role,omitempty" yaml:"role,omitempty"`
	SystemPrompt  string            `json:"system_prompt,omitempty" yaml:"system_prompt,omitempty"`
	Temperature   float64           `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	MaxTokens     int64             `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
	StopSequences []string          `json:"stop_sequences,omitempty" yaml:"stop_sequences,omitempty"`
	APIKey        string            `json:"-" yaml:"api_key,omitempty"`
	BaseURL       string            `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Validate checks the per-kind required fields.
func (c Config) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("%w: backend id is required", ErrInvalidConfig)
	}
	if c.ModelName == "" {
		return fmt.Errorf("%w: model name is required for backend %q", ErrInvalidConfig, c.ID)
	}
	switch c.Kind {
	case KindAnthropic, KindOpenAI:
		// API key may come from the environment; nothing else to check.
	case KindOpenAICompatible:
		if c.BaseURL == "" {
			return fmt.Errorf("%w: backend %q requires a base URL", ErrInvalidConfig, c.ID)
		}
	case KindMock:
	default:
		return fmt.Errorf("%w: unknown provider kind %q for backend %q", ErrInvalidConfig, c.Kind, c.ID)
	}
	return nil
}
