package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func anthropicTestServer(t *testing.T, handler http.HandlerFunc) *AnthropicProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewAnthropicProvider(BackendSettings{
		APIKey:  "test-key",
		BaseURL: srv.URL,
		Model:   "claude-sonnet-4-20250514",
		Timeout: 5,
	})
}

func TestAnthropicGenerate(t *testing.T) {
	p := anthropicTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))
		w.Write([]byte(`{
			"model": "claude-sonnet-4-20250514",
			"content": [{"type": "text", "text": "hello"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 8, "output_tokens": 2}
		}`))
	})

	resp, err := p.Generate(context.Background(),
		[]Message{{Role: RoleUser, Content: "hi"}}, GenerationConfig{})
	require.NoError(t, err)

	assert.Equal(t, "hello", resp.Content)
	assert.Equal(t, "end_turn", resp.FinishReason)
	assert.Equal(t, 10, resp.Usage.TotalTokens)
}

func TestAnthropicSystemPromptExtraction(t *testing.T) {
	var got anthropicRequest
	p := anthropicTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, readJSON(r, &got))
		w.Write([]byte(`{"content": [{"type": "text", "text": "ok"}]}`))
	})

	_, err := p.Generate(context.Background(), []Message{
		{Role: RoleSystem, Content: "be terse"},
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAssistant, Content: "hello"},
		{Role: RoleUser, Content: "again"},
	}, GenerationConfig{})
	require.NoError(t, err)

	assert.Equal(t, "be terse", got.System)
	require.Len(t, got.Messages, 3)
	for _, m := range got.Messages {
		assert.NotEqual(t, "system", m.Role)
	}
}

func TestAnthropicDefaultMaxTokens(t *testing.T) {
	var got anthropicRequest
	p := anthropicTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, readJSON(r, &got))
		w.Write([]byte(`{"content": []}`))
	})

	_, err := p.Generate(context.Background(),
		[]Message{{Role: RoleUser, Content: "hi"}}, GenerationConfig{})
	require.NoError(t, err)
	assert.Equal(t, anthropicMaxTokens, got.MaxTokens)
}

func TestAnthropicGenerateStream(t *testing.T) {
	p := anthropicTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte("event: message_start\n"))
		w.Write([]byte("data: {\"type\":\"message_start\"}\n\n"))
		w.Write([]byte("event: content_block_delta\n"))
		w.Write([]byte("data: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"hel\"}}\n\n"))
		w.Write([]byte("event: content_block_delta\n"))
		w.Write([]byte("data: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"lo\"}}\n\n"))
		w.Write([]byte("event: message_stop\n"))
		w.Write([]byte("data: {\"type\":\"message_stop\"}\n\n"))
	})

	chunks, err := p.GenerateStream(context.Background(),
		[]Message{{Role: RoleUser, Content: "hi"}}, GenerationConfig{})
	require.NoError(t, err)

	var content string
	var done bool
	for chunk := range chunks {
		require.NoError(t, chunk.Err)
		content += chunk.Content
		done = done || chunk.Done
	}
	assert.Equal(t, "hello", content)
	assert.True(t, done)
}

func TestAnthropicGenerateWithoutKey(t *testing.T) {
	p := NewAnthropicProvider(BackendSettings{})

	_, err := p.Generate(context.Background(), nil, GenerationConfig{})
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.False(t, p.Available(context.Background()))
}

func TestAnthropicGenerateMapsStatusErrors(t *testing.T) {
	p := anthropicTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := p.Generate(context.Background(),
		[]Message{{Role: RoleUser, Content: "hi"}},
		GenerationConfig{Model: "claude-nonexistent"})

	var notFound *ModelNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "claude-nonexistent", notFound.Model)
}
