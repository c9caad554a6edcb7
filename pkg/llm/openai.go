package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Backend identifiers recognized by the factory.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultOpenAIModel   = "gpt-4o-mini"
)

// OpenAIProvider adapts the contract to an OpenAI-compatible chat
// completions API. Any backend speaking the same wire shape (vLLM,
// LiteLLM proxies, etc.) works by overriding BaseURL.
type OpenAIProvider struct {
	settings BackendSettings
	client   *http.Client
	avail    availability
}

// Compile-time interface check.
var _ Provider = (*OpenAIProvider)(nil)

// NewOpenAIProvider creates an adapter for an OpenAI-compatible backend.
func NewOpenAIProvider(settings BackendSettings) *OpenAIProvider {
	if settings.BaseURL == "" {
		settings.BaseURL = defaultOpenAIBaseURL
	}
	if settings.Model == "" {
		settings.Model = defaultOpenAIModel
	}
	return &OpenAIProvider{
		settings: settings,
		// No client-level timeout: streaming responses outlive any fixed
		// bound. Non-streaming calls get a per-request context deadline.
		client: &http.Client{},
	}
}

// Name implements Provider.
func (p *OpenAIProvider) Name() string { return ProviderOpenAI }

// DefaultModel implements Provider.
func (p *OpenAIProvider) DefaultModel() string { return p.settings.Model }

// openAIRequest is the chat completions request body.
type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature float64         `json:"temperature,omitempty"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	TopP        float64         `json:"top_p,omitempty"`
	Stop        []string        `json:"stop,omitempty"`
	Stream      bool            `json:"stream,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// buildRequest translates the shared shapes into the OpenAI wire format.
func (p *OpenAIProvider) buildRequest(messages []Message, cfg GenerationConfig, stream bool) openAIRequest {
	model := cfg.Model
	if model == "" {
		model = p.settings.Model
	}
	wire := make([]openAIMessage, 0, len(messages))
	for _, m := range messages {
		wire = append(wire, openAIMessage{Role: string(m.Role), Content: m.Content})
	}
	return openAIRequest{
		Model:       model,
		Messages:    wire,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		TopP:        cfg.TopP,
		Stop:        cfg.Stop,
		Stream:      stream,
	}
}

// Generate implements Provider.
func (p *OpenAIProvider) Generate(ctx context.Context, messages []Message, cfg GenerationConfig) (*Response, error) {
	if p.settings.APIKey == "" {
		return nil, &AuthError{Provider: ProviderOpenAI, Message: "API key not configured"}
	}

	ctx, cancel := context.WithTimeout(ctx, p.settings.TimeoutDuration())
	defer cancel()

	reqBody := p.buildRequest(messages, cfg, false)
	raw, err := p.post(ctx, "/chat/completions", reqBody)
	if err != nil {
		return nil, err
	}

	var parsed openAIResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, &ProviderError{Provider: ProviderOpenAI, Message: fmt.Sprintf("decode response: %v", err)}
	}
	if len(parsed.Choices) == 0 {
		return nil, &ProviderError{Provider: ProviderOpenAI, Message: "response contained no choices"}
	}

	return &Response{
		Content:      parsed.Choices[0].Message.Content,
		Model:        parsed.Model,
		FinishReason: parsed.Choices[0].FinishReason,
		Usage: Usage{
			InputTokens:  parsed.Usage.PromptTokens,
			OutputTokens: parsed.Usage.CompletionTokens,
			TotalTokens:  parsed.Usage.TotalTokens,
		},
		Raw: raw,
	}, nil
}

// GenerateStream implements Provider.
// The backend streams server-sent events: "data: {json}" lines with a
// final "data: [DONE]" terminator.
func (p *OpenAIProvider) GenerateStream(ctx context.Context, messages []Message, cfg GenerationConfig) (<-chan StreamChunk, error) {
	if p.settings.APIKey == "" {
		return nil, &AuthError{Provider: ProviderOpenAI, Message: "API key not configured"}
	}

	reqBody := p.buildRequest(messages, cfg, true)
	resp, err := p.send(ctx, "/chat/completions", reqBody)
	if err != nil {
		return nil, err
	}

	chunks := make(chan StreamChunk)
	go func() {
		defer close(chunks)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if payload == "[DONE]" {
				break
			}

			var event openAIResponse
			if err := json.Unmarshal([]byte(payload), &event); err != nil {
				continue // tolerate malformed keep-alive frames
			}
			if len(event.Choices) == 0 {
				continue
			}
			delta := event.Choices[0].Delta.Content
			if delta == "" {
				continue
			}

			select {
			case chunks <- StreamChunk{Content: delta}:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			select {
			case chunks <- StreamChunk{Err: transportError(ProviderOpenAI, err)}:
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
// Probes the models listing endpoint, which also validates credentials.
func (p *OpenAIProvider) Available(ctx context.Context) bool {
	return p.avail.memoize(func() bool {
		if p.settings.APIKey == "" {
			return false
		}
		probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, p.settings.BaseURL+"/models", nil)
		if err != nil {
			return false
		}
		req.Header.Set("Authorization", "Bearer "+p.settings.APIKey)

		resp, err := p.client.Do(req)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		io.Copy(io.Discard, resp.Body)
		return resp.StatusCode == http.StatusOK
	})
}

// ResetAvailability implements Provider.
func (p *OpenAIProvider) ResetAvailability() { p.avail.reset() }

// send issues the request and maps non-2xx statuses onto the error taxonomy.
func (p *OpenAIProvider) send(ctx context.Context, path string, body openAIRequest) (*http.Response, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, &ProviderError{Provider: ProviderOpenAI, Message: fmt.Sprintf("encode request: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.settings.BaseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return nil, &ProviderError{Provider: ProviderOpenAI, Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.settings.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, transportError(ProviderOpenAI, err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, errorFromStatus(ProviderOpenAI, resp.StatusCode, string(msg), body.Model, retryAfterHint(resp))
	}

	return resp, nil
}

// post issues the request and returns the full response body.
func (p *OpenAIProvider) post(ctx context.Context, path string, body openAIRequest) (json.RawMessage, error) {
	resp, err := p.send(ctx, path, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(ProviderOpenAI, err)
	}
	return raw, nil
}

// retryAfterHint parses the Retry-After header, if present.
func retryAfterHint(resp *http.Response) time.Duration {
	header := resp.Header.Get("Retry-After")
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}
