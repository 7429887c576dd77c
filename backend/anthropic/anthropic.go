// Package anthropic provides a backend wrapper for the Anthropic Claude API.
package anthropic

import (
	"context"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"controlroom/backend"
)

// pricing is dollars per million tokens, keyed by model name.
var pricing = map[string]struct{ input, output float64 }{
	"claude-3-opus-20240229":     {15.00, 75.00},
	"claude-3-5-sonnet-20241022": {3.00, 15.00},
	"claude-3-sonnet-20240229":   {3.00, 15.00},
	"claude-3-haiku-20240307":    {0.25, 1.25},
}

var defaultPricing = struct{ input, output float64 }{3.00, 15.00}

// Options configures the Anthropic backend adapter.
type Options struct {
	Model         anthropic.Model
	Temperature   float64
	MaxTokens     int64
	APIKey        string
	SystemPrompt  string
	StopSequences []string
}

// Adapter wraps the Anthropic Messages API behind the backend.Backend interface.
type Adapter struct {
	client *anthropic.Client
	info   backend.Info
	opts   Options
}

var _ backend.Backend = (*Adapter)(nil)

// New creates a new Anthropic backend using the official client.
func New(id string, optFns ...func(o *Options)) *Adapter {
	opts := Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
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
	client := anthropic.NewClient(clientOpts...)

	return &Adapter{
		client: &client,
		info:   backend.Info{ID: id, Provider: "anthropic", ModelName: string(opts.Model)},
		opts:   opts,
	}
}

// Build constructs an Adapter from a backend.Config; it is the Builder
// registered for backend.KindAnthropic.
func Build(cfg backend.Config) (backend.Backend, error) {
	a := New(cfg.ID, func(o *Options) {
		o.Model = anthropic.Model(cfg.ModelName)
		o.APIKey = cfg.APIKey
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

// Send implements backend.Backend using the non-streaming Messages API.
func (a *Adapter) Send(ctx context.Context, messages []backend.ChatMessage, params backend.SamplingParams) (*backend.Reply, error) {
	start := time.Now()

	resp, err := a.client.Messages.New(ctx, a.buildParams(messages, params))
	if err != nil {
		return nil, fmt.Errorf("anthropic api error: %w", err)
	}

	var content string
	for _, block := range resp.Content {
		if block.Type == "text" {
			content += block.AsText().Text
		}
	}

	inputTokens := int(resp.Usage.InputTokens)
	outputTokens := int(resp.Usage.OutputTokens)

	return &backend.Reply{
		Content:   content,
		BackendID: a.info.ID,
		Tokens:    inputTokens + outputTokens,
		Cost:      a.EstimateCost(inputTokens, outputTokens),
		LatencyMS: float64(time.Since(start)) / float64(time.Millisecond),
		Timestamp: time.Now().UTC(),
		Metadata: map[string]any{
			"provider":      "anthropic",
			"model":         string(a.opts.Model),
			"input_tokens":  inputTokens,
			"output_tokens": outputTokens,
		},
	}, nil
}

// Stream implements backend.Backend emitting text deltas as they arrive.
func (a *Adapter) Stream(ctx context.Context, messages []backend.ChatMessage, params backend.SamplingParams) (<-chan backend.Chunk, <-chan error) {
	chunkCh := make(chan backend.Chunk, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(chunkCh)
		defer close(errCh)

		stream := a.client.Messages.NewStreaming(ctx, a.buildParams(messages, params))
		acc := anthropic.Message{}
		for stream.Next() {
			event := stream.Current()
			if err := acc.Accumulate(event); err != nil {
				errCh <- fmt.Errorf("anthropic streaming error: %w", err)
				return
			}
			switch ev := event.AsAny().(type) {
			case anthropic.ContentBlockDeltaEvent:
				switch delta := ev.Delta.AsAny().(type) {
				case anthropic.TextDelta:
					select {
					case <-ctx.Done():
						errCh <- ctx.Err()
						return
					case chunkCh <- backend.Chunk{Content: delta.Text, BackendID: a.info.ID}:
					}
				}
			}
		}
		if err := stream.Err(); err != nil {
			errCh <- fmt.Errorf("anthropic streaming error: %w", err)
			return
		}
		chunkCh <- backend.Chunk{
			Done:      true,
			BackendID: a.info.ID,
			Tokens:    int(acc.Usage.InputTokens + acc.Usage.OutputTokens),
		}
	}()

	return chunkCh, errCh
}

// HealthCheck implements backend.Backend with a one-token probe request.
func (a *Adapter) HealthCheck(ctx context.Context) bool {
	_, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     a.opts.Model,
		MaxTokens: 1,
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock("hi"))},
	})
	return err == nil
}

// EstimateCost implements backend.Backend using the per-model pricing table.
func (a *Adapter) EstimateCost(inputTokens, outputTokens int) float64 {
	p, ok := pricing[string(a.opts.Model)]
	if !ok {
		p = defaultPricing
	}
	return float64(inputTokens)/1_000_000*p.input + float64(outputTokens)/1_000_000*p.output
}

// buildParams converts chat messages into Anthropic request parameters.
// System messages are extracted into system blocks as the API requires.
func (a *Adapter) buildParams(messages []backend.ChatMessage, params backend.SamplingParams) anthropic.MessageNewParams {
	temperature := a.opts.Temperature
	if params.Temperature > 0 {
		temperature = params.Temperature
	}
	maxTokens := a.opts.MaxTokens
	if params.MaxTokens > 0 {
		maxTokens = params.MaxTokens
	}

	var system []anthropic.TextBlockParam
	if a.opts.SystemPrompt != "" {
		system = append(system, anthropic.TextBlockParam{Text: a.opts.SystemPrompt})
	}
	var converted []anthropic.MessageParam
	for _, msg := range messages {
		switch msg.Role {
		case "system":
			system = append(system, anthropic.TextBlockParam{Text: msg.Content})
		case "assistant":
			converted = append(converted, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			converted = append(converted, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}

	p := anthropic.MessageNewParams{
		Model:       a.opts.Model,
		Messages:    converted,
		MaxTokens:   maxTokens,
		Temperature: anthropic.Float(temperature),
	}
	if len(system) > 0 {
		p.System = system
	}
	if len(a.opts.StopSequences) > 0 {
		p.StopSequences = a.opts.StopSequences
	}
	return p
}
