// Package openai provides a backend for the OpenAI Chat Completions API and
// for any server speaking the same wire format (LM Studio, vLLM, Ollama, NIM
// endpoints) via a base URL override. Compatible servers are treated as free;
// the hosted API prices by model.
package openai

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"controlroom/backend"
)

// pricing is dollars per million tokens, keyed by model name. Only applied to
// the hosted API; compatible local servers cost nothing.
var pricing = map[string]struct{ input, output float64 }{
	"gpt-4o":      {2.50, 10.00},
	"gpt-4o-mini": {0.15, 0.60},
	"gpt-4-turbo": {10.00, 30.00},
}

var defaultPricing = struct{ input, output float64 }{2.50, 10.00}

// Options configures the OpenAI backend adapter.
type Options struct {
	Model         string
	Temperature   float64
	MaxTokens     int64
	APIKey        string
	SystemPrompt  string
	StopSequences []string
	// BaseURL points the client at an OpenAI-compatible server. When set the
	// adapter reports zero cost, matching local inference.
	BaseURL string
}

// Adapter wraps the Chat Completions API behind the backend.Backend interface.
type Adapter struct {
	client     *openai.Client
	info       backend.Info
	opts       Options
	compatible bool
}

var _ backend.Backend = (*Adapter)(nil)

// New creates a new OpenAI backend using the official client.
func New(id string, optFns ...func(o *Options)) *Adapter {
	opts := Options{
		Model:       openai.ChatModelGPT4oMini,
		Temperature: 0.7,
		MaxTokens:   4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}
	client := openai.NewClient(clientOpts...)

	provider := "openai"
	if opts.BaseURL != "" {
		provider = "openai_compatible"
	}

	return &Adapter{
		client:     &client,
		info:       backend.Info{ID: id, Provider: provider, ModelName: opts.Model},
		opts:       opts,
		compatible: opts.BaseURL != "",
	}
}

// Build constructs an Adapter from a backend.Config; it serves both
// backend.KindOpenAI and backend.KindOpenAICompatible.
func Build(cfg backend.Config) (backend.Backend, error) {
	a := New(cfg.ID, func(o *Options) {
		o.Model = cfg.ModelName
		o.APIKey = cfg.APIKey
		o.BaseURL = cfg.BaseURL
		o.SystemPrompt = cfg.SystemPrompt
		o.StopSequences = cfg.StopSequences
		if cfg.Temperature > 0 {
			o.Temperature = cfg.Temperature
		}
		if cfg.MaxTokens > 0 {
			o.MaxTokens = cfg.MaxTokens
		}
	})
	a.info.Role = cfg.Role
	return a, nil
}

// Info implements backend.Backend.
func (a *Adapter) Info() backend.Info { return a.info }

// Send implements backend.Backend using a non-streaming completion.
func (a *Adapter) Send(ctx context.Context, messages []backend.ChatMessage, params backend.SamplingParams) (*backend.Reply, error) {
	start := time.Now()

	resp, err := a.client.Chat.Completions.New(ctx, a.buildParams(messages, params))
	if err != nil {
		return nil, fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai api error: no choices returned")
	}

	inputTokens := int(resp.Usage.PromptTokens)
	outputTokens := int(resp.Usage.CompletionTokens)

	return &backend.Reply{
		Content:   resp.Choices[0].Message.Content,
		BackendID: a.info.ID,
		Tokens:    int(resp.Usage.TotalTokens),
		Cost:      a.EstimateCost(inputTokens, outputTokens),
		LatencyMS: float64(time.Since(start)) / float64(time.Millisecond),
		Timestamp: time.Now().UTC(),
		Metadata: map[string]any{
			"provider":      a.info.Provider,
			"model":         a.opts.Model,
			"input_tokens":  inputTokens,
			"output_tokens": outputTokens,
		},
	}, nil
}

// Stream implements backend.Backend forwarding content deltas as they arrive.
func (a *Adapter) Stream(ctx context.Context, messages []backend.ChatMessage, params backend.SamplingParams) (<-chan backend.Chunk, <-chan error) {
	chunkCh := make(chan backend.Chunk, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(chunkCh)
		defer close(errCh)

		p := a.buildParams(messages, params)
		p.StreamOptions = openai.ChatCompletionStreamOptionsParam{IncludeUsage: openai.Bool(true)}

		stream := a.client.Chat.Completions.NewStreaming(ctx, p)
		tokens := 0
		for stream.Next() {
			ck := stream.Current()
			if ck.Usage.TotalTokens > 0 {
				tokens = int(ck.Usage.TotalTokens)
			}
			for _, ch := range ck.Choices {
				if ch.Delta.Content == "" {
					continue
				}
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case chunkCh <- backend.Chunk{Content: ch.Delta.Content, BackendID: a.info.ID}:
				}
			}
		}
		if err := stream.Err(); err != nil {
			errCh <- fmt.Errorf("openai streaming error: %w", err)
			return
		}
		chunkCh <- backend.Chunk{Done: true, BackendID: a.info.ID, Tokens: tokens}
	}()

	return chunkCh, errCh
}

// HealthCheck implements backend.Backend by listing models.
func (a *Adapter) HealthCheck(ctx context.Context) bool {
	_, err := a.client.Models.List(ctx)
	return err == nil
}

// EstimateCost implements backend.Backend. Compatible local servers are free.
func (a *Adapter) EstimateCost(inputTokens, outputTokens int) float64 {
	if a.compatible {
		return 0
	}
	p, ok := pricing[a.opts.Model]
	if !ok {
		p = defaultPricing
	}
	return float64(inputTokens)/1_000_000*p.input + float64(outputTokens)/1_000_000*p.output
}

func (a *Adapter) buildParams(messages []backend.ChatMessage, params backend.SamplingParams) openai.ChatCompletionNewParams {
	temperature := a.opts.Temperature
	if params.Temperature > 0 {
		temperature = params.Temperature
	}
	maxTokens := a.opts.MaxTokens
	if params.MaxTokens > 0 {
		maxTokens = params.MaxTokens
	}

	converted := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages)+1)
	if a.opts.SystemPrompt != "" {
		converted = append(converted, openai.SystemMessage(a.opts.SystemPrompt))
	}
	for _, msg := range messages {
		switch msg.Role {
		case "system":
			converted = append(converted, openai.SystemMessage(msg.Content))
		case "assistant":
			converted = append(converted, openai.AssistantMessage(msg.Content))
		default:
			converted = append(converted, openai.UserMessage(msg.Content))
		}
	}

	p := openai.ChatCompletionNewParams{
		Messages:            converted,
		Model:               a.opts.Model,
		Temperature:         openai.Float(temperature),
		MaxCompletionTokens: openai.Int(maxTokens),
	}
	if len(a.opts.StopSequences) > 0 {
		p.Stop = openai.ChatCompletionNewParamsStopUnion{OfStringArray: a.opts.StopSequences}
	}
	return p
}
