package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openAITestServer(t *testing.T, handler http.HandlerFunc) *OpenAIProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewOpenAIProvider(BackendSettings{
		APIKey:  "test-key",
		BaseURL: srv.URL,
		Model:   "gpt-4o-mini",
		Timeout: 5,
	})
}

func TestOpenAIGenerate(t *testing.T) {
	p := openAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Write([]byte(`{
			"model": "gpt-4o-mini",
			"choices": [{"message": {"content": "hello"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 2, "total_tokens": 12}
		}`))
	})

	resp, err := p.Generate(context.Background(),
		[]Message{{Role: RoleUser, Content: "hi"}}, GenerationConfig{})
	require.NoError(t, err)

	assert.Equal(t, "hello", resp.Content)
	assert.Equal(t, "stop", resp.FinishReason)
	assert.Equal(t, 12, resp.Usage.TotalTokens)
}

func TestOpenAIGenerateWithoutKey(t *testing.T) {
	p := NewOpenAIProvider(BackendSettings{})

	_, err := p.Generate(context.Background(), nil, GenerationConfig{})
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, ProviderOpenAI, authErr.Provider)
}

func TestOpenAIGenerateMapsStatusErrors(t *testing.T) {
	p := openAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "3")
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := p.Generate(context.Background(),
		[]Message{{Role: RoleUser, Content: "hi"}}, GenerationConfig{})

	var rateErr *RateLimitError
	require.ErrorAs(t, err, &rateErr)
	assert.Equal(t, 3*time.Second, rateErr.RetryAfter)
}

func TestOpenAIGenerateStream(t *testing.T) {
	p := openAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"hel\"}}]}\n\n"))
		w.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"lo\"}}]}\n\n"))
		w.Write([]byte("data: [DONE]\n\n"))
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

func TestOpenAIAvailableMemoized(t *testing.T) {
	var probes int
	p := openAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
		probes++
		assert.Equal(t, "/models", r.URL.Path)
		w.Write([]byte(`{"data": []}`))
	})

	ctx := context.Background()
	assert.True(t, p.Available(ctx))
	assert.True(t, p.Available(ctx))
	assert.Equal(t, 1, probes)

	p.ResetAvailability()
	assert.True(t, p.Available(ctx))
	assert.Equal(t, 2, probes)
}

func TestOpenAIModelOverride(t *testing.T) {
	var gotModel string
	p := openAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req openAIRequest
		require.NoError(t, readJSON(r, &req))
		gotModel = req.Model
		w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	})

	_, err := p.Generate(context.Background(),
		[]Message{{Role: RoleUser, Content: "hi"}},
		GenerationConfig{Model: "gpt-4o"})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", gotModel)
}
