package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultOllamaBaseURL = "http://localhost:11434"
	defaultOllamaModel   = "llama3.1"
)

// OllamaProvider adapts the contract to a local Ollama daemon.
// Ollama needs no credentials and streams newline-delimited JSON rather
// than server-sent events.
type OllamaProvider struct {
	settings BackendSettings
	client   *http.Client
	avail    availability
}

var _ Provider = (*OllamaProvider)(nil)

// NewOllamaProvider creates an adapter for an Ollama daemon.
func NewOllamaProvider(settings BackendSettings) *OllamaProvider {
	if settings.BaseURL == "" {
		settings.BaseURL = defaultOllamaBaseURL
	}
	if settings.Model == "" {
		settings.Model = defaultOllamaModel
	}
	return &OllamaProvider{
		settings: settings,
		client:   &http.Client{},
	}
}

// Name implements Provider.
func (p *OllamaProvider) Name() string { return ProviderOllama }

// DefaultModel implements Provider.
func (p *OllamaProvider) DefaultModel() string { return p.settings.Model }

type ollamaRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  ollamaOptions   `json:"options,omitempty"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOptions struct {
	Temperature float64  `json:"temperature,omitempty"`
	NumPredict  int      `json:"num_predict,omitempty"`
	TopP        float64  `json:"top_p,omitempty"`
	Stop        []string `json:"stop,omitempty"`
}

// ollamaResponse is one NDJSON frame of /api/chat output. A non-streaming
// call returns a single frame with done=true.
type ollamaResponse struct {
	Model   string `json:"model"`
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done            bool   `json:"done"`
	DoneReason      string `json:"done_reason"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

func (p *OllamaProvider) buildRequest(messages []Message, cfg GenerationConfig, stream bool) ollamaRequest {
	model := cfg.Model
	if model == "" {
		model = p.settings.Model
	}
	wire := make([]ollamaMessage, 0, len(messages))
	for _, m := range messages {
		wire = append(wire, ollamaMessage{Role: string(m.Role), Content: m.Content})
	}
	return ollamaRequest{
		Model:    model,
		Messages: wire,
		Stream:   stream,
		Options: ollamaOptions{
			Temperature: cfg.Temperature,
			NumPredict:  cfg.MaxTokens,
			TopP:        cfg.TopP,
			Stop:        cfg.Stop,
		},
	}
}

// Generate implements Provider.
func (p *OllamaProvider) Generate(ctx context.Context, messages []Message, cfg GenerationConfig) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, p.settings.TimeoutDuration())
	defer cancel()

	resp, err := p.send(ctx, p.buildRequest(messages, cfg, false))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(ProviderOllama, err)
	}

	var parsed ollamaResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, &ProviderError{Provider: ProviderOllama, Message: fmt.Sprintf("decode response: %v", err)}
	}

	return &Response{
		Content:      parsed.Message.Content,
		Model:        parsed.Model,
		FinishReason: parsed.DoneReason,
		Usage: Usage{
			InputTokens:  parsed.PromptEvalCount,
			OutputTokens: parsed.EvalCount,
			TotalTokens:  parsed.PromptEvalCount + parsed.EvalCount,
		},
		Raw: raw,
	}, nil
}

// GenerateStream implements Provider.
// Frames arrive as newline-delimited JSON; the final frame has done=true.
func (p *OllamaProvider) GenerateStream(ctx context.Context, messages []Message, cfg GenerationConfig) (<-chan StreamChunk, error) {
	resp, err := p.send(ctx, p.buildRequest(messages, cfg, true))
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
			var frame ollamaResponse
			if err := json.Unmarshal(scanner.Bytes(), &frame); err != nil {
				continue
			}
			if frame.Message.Content != "" {
				select {
				case chunks <- StreamChunk{Content: frame.Message.Content}:
				case <-ctx.Done():
					return
				}
			}
			if frame.Done {
				break
			}
		}
		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			select {
			case chunks <- StreamChunk{Err: transportError(ProviderOllama, err)}:
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
// The daemon's tag listing doubles as a health check.
func (p *OllamaProvider) Available(ctx context.Context) bool {
	return p.avail.memoize(func() bool {
		probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, p.settings.BaseURL+"/api/tags", nil)
		if err != nil {
			return false
		}
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
func (p *OllamaProvider) ResetAvailability() { p.avail.reset() }

func (p *OllamaProvider) send(ctx context.Context, body ollamaRequest) (*http.Response, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, &ProviderError{Provider: ProviderOllama, Message: fmt.Sprintf("encode request: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.settings.BaseURL+"/api/chat", bytes.NewReader(encoded))
	if err != nil {
		return nil, &ProviderError{Provider: ProviderOllama, Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, transportError(ProviderOllama, err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, errorFromStatus(ProviderOllama, resp.StatusCode, string(msg), body.Model, retryAfterHint(resp))
	}

	return resp, nil
}
