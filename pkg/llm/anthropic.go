package llm

import (
	"bufio"
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
	defaultAnthropicBaseURL = "https://api.anthropic.com/v1"
	defaultAnthropicModel   = "claude-sonnet-4-20250514"
	anthropicVersion        = "2023-06-01"
	anthropicMaxTokens      = 4096
)

// AnthropicProvider adapts the contract to the Anthropic Messages API.
//
// The Messages API differs from the shared shape in two ways: the system
// prompt is a top-level field rather than a message role, and max_tokens
// is mandatory. Both translations happen in buildRequest.
type AnthropicProvider struct {
	settings BackendSettings
	client   *http.Client
	avail    availability
}

var _ Provider = (*AnthropicProvider)(nil)

// NewAnthropicProvider creates an adapter for the Anthropic Messages API.
func NewAnthropicProvider(settings BackendSettings) *AnthropicProvider {
	if settings.BaseURL == "" {
		settings.BaseURL = defaultAnthropicBaseURL
	}
	if settings.Model == "" {
		settings.Model = defaultAnthropicModel
	}
	return &AnthropicProvider{
		settings: settings,
		client:   &http.Client{},
	}
}

// Name implements Provider.
func (p *AnthropicProvider) Name() string { return ProviderAnthropic }

// DefaultModel implements Provider.
func (p *AnthropicProvider) DefaultModel() string { return p.settings.Model }

type anthropicRequest struct {
	Model       string             `json:"model"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature,omitempty"`
	TopP        float64            `json:"top_p,omitempty"`
	Stop        []string           `json:"stop_sequences,omitempty"`
	Stream      bool               `json:"stream,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// anthropicStreamEvent covers the SSE event payloads we care about:
// content_block_delta carries text, message_delta carries the stop reason.
type anthropicStreamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
}

// buildRequest translates the shared shapes into the Messages API format.
// System messages are concatenated into the top-level system field.
func (p *AnthropicProvider) buildRequest(messages []Message, cfg GenerationConfig, stream bool) anthropicRequest {
	model := cfg.Model
	if model == "" {
		model = p.settings.Model
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = anthropicMaxTokens
	}

	var system []string
	wire := make([]anthropicMessage, 0, len(messages))
	for _, m := range messages {
		if m.Role == RoleSystem {
			system = append(system, m.Content)
			continue
		}
		wire = append(wire, anthropicMessage{Role: string(m.Role), Content: m.Content})
	}

	return anthropicRequest{
		Model:       model,
		System:      strings.Join(system, "\n\n"),
		Messages:    wire,
		MaxTokens:   maxTokens,
		Temperature: cfg.Temperature,
		TopP:        cfg.TopP,
		Stop:        cfg.Stop,
		Stream:      stream,
	}
}

// Generate implements Provider.
func (p *AnthropicProvider) Generate(ctx context.Context, messages []Message, cfg GenerationConfig) (*Response, error) {
	if p.settings.APIKey == "" {
		return nil, &AuthError{Provider: ProviderAnthropic, Message: "API key not configured"}
	}

	ctx, cancel := context.WithTimeout(ctx, p.settings.TimeoutDuration())
	defer cancel()

	reqBody := p.buildRequest(messages, cfg, false)
	resp, err := p.send(ctx, reqBody)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(ProviderAnthropic, err)
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, &ProviderError{Provider: ProviderAnthropic, Message: fmt.Sprintf("decode response: %v", err)}
	}

	var text strings.Builder
	for _, block := range parsed.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	return &Response{
		Content:      text.String(),
		Model:        parsed.Model,
		FinishReason: parsed.StopReason,
		Usage: Usage{
			InputTokens:  parsed.Usage.InputTokens,
			OutputTokens: parsed.Usage.OutputTokens,
			TotalTokens:  parsed.Usage.InputTokens + parsed.Usage.OutputTokens,
		},
		Raw: raw,
	}, nil
}

// GenerateStream implements Provider.
// The Messages API streams named SSE events; text arrives in
// content_block_delta events and message_stop ends the stream.
func (p *AnthropicProvider) GenerateStream(ctx context.Context, messages []Message, cfg GenerationConfig) (<-chan StreamChunk, error) {
	if p.settings.APIKey == "" {
		return nil, &AuthError{Provider: ProviderAnthropic, Message: "API key not configured"}
	}

	reqBody := p.buildRequest(messages, cfg, true)
	resp, err := p.send(ctx, reqBody)
	if err != nil {
		return nil, err
	}

	chunks := make(chan StreamChunk)
	go func() {
		defer close(chunks)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	scan:
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))

			var event anthropicStreamEvent
			if err := json.Unmarshal([]byte(payload), &event); err != nil {
				continue
			}

			switch event.Type {
			case "content_block_delta":
				if event.Delta.Text == "" {
					continue
				}
				select {
				case chunks <- StreamChunk{Content: event.Delta.Text}:
				case <-ctx.Done():
					return
				}
			case "message_stop":
				break scan
			}
		}
		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			select {
			case chunks <- StreamChunk{Err: transportError(ProviderAnthropic, err)}:
			case <-ctx.Done():
			}
			return
		}

		select {
		case chunks <- StreamChunk{Done: true}:
		case <-ctx.Done():
		}
	}()

	return chunks, nil
}

// Available implements Provider.
// There is no cheap unauthenticated health endpoint, so the probe is a
// minimal one-token completion. The result is memoized.
func (p *AnthropicProvider) Available(ctx context.Context) bool {
	return p.avail.memoize(func() bool {
		if p.settings.APIKey == "" {
			return false
		}
		probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		probe := anthropicRequest{
			Model:     p.settings.Model,
			Messages:  []anthropicMessage{{Role: "user", Content: "ping"}},
			MaxTokens: 1,
		}
		resp, err := p.send(probeCtx, probe)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		io.Copy(io.Discard, resp.Body)
		return true
	})
}

// ResetAvailability implements Provider.
func (p *AnthropicProvider) ResetAvailability() { p.avail.reset() }

func (p *AnthropicProvider) send(ctx context.Context, body anthropicRequest) (*http.Response, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, &ProviderError{Provider: ProviderAnthropic, Message: fmt.Sprintf("encode request: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.settings.BaseURL+"/messages", bytes.NewReader(encoded))
	if err != nil {
		return nil, &ProviderError{Provider: ProviderAnthropic, Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.settings.APIKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, transportError(ProviderAnthropic, err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, errorFromStatus(ProviderAnthropic, resp.StatusCode, string(msg), body.Model, retryAfterHint(resp))
	}

	return resp, nil
}
