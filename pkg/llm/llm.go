package llm

import (
	"context"
	"encoding/json"
)

// Role identifies the message sender.
type Role string

// Standard message roles.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single conversation turn sent to a backend.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// GenerationConfig configures a generation call.
// Zero values mean "backend default".
type GenerationConfig struct {
	Model       string   `json:"model,omitempty"`
	Temperature float64  `json:"temperature,omitempty"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
	TopP        float64  `json:"top_p,omitempty"`
	Stop        []string `json:"stop,omitempty"`
}

// Usage tracks token consumption for a call.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Add accumulates another call's usage into this one.
func (u *Usage) Add(other Usage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.TotalTokens += other.TotalTokens
}

// Response is the uniform output of a generation call.
type Response struct {
	Content      string `json:"content"`
	Model        string `json:"model"`
	FinishReason string `json:"finish_reason"`
	Usage        Usage  `json:"usage"`

	// Raw is the backend's unmodified response payload, for diagnostics.
	Raw json.RawMessage `json:"-"`
}

// StreamChunk is a piece of a streaming response.
// The final chunk has Done=true and empty Content. Err is non-nil if
// streaming failed mid-way; no further chunks follow an error.
type StreamChunk struct {
	Content string `json:"content,omitempty"`
	Done    bool   `json:"done"`
	Err     error  `json:"-"`
}

// Provider is the uniform contract over heterogeneous LLM backends.
// Implementations translate the shared message/config shapes to the
// backend wire format and map backend failures onto the shared error
// taxonomy (AuthError, RateLimitError, ModelNotFoundError, ProviderError).
//
// Implementations must be safe for concurrent use.
type Provider interface {
	// Name returns the backend identifier (e.g. "openai", "ollama").
	Name() string

	// DefaultModel returns the configured default model id.
	DefaultModel() string

	// Generate performs a blocking completion call.
	Generate(ctx context.Context, messages []Message, cfg GenerationConfig) (*Response, error)

	// GenerateStream produces an incremental, finite, non-restartable
	// sequence of chunks. The channel is closed after the final chunk.
	// Cancelling ctx stops backend I/O; the producer goroutine exits and
	// the connection is released even if the consumer stops reading.
	GenerateStream(ctx context.Context, messages []Message, cfg GenerationConfig) (<-chan StreamChunk, error)

	// Available reports whether the backend is reachable with valid
	// credentials. The result is memoized after the first probe; use
	// ResetAvailability for a fresh check.
	Available(ctx context.Context) bool

	// ResetAvailability clears the memoized probe result.
	ResetAvailability()
}
