// Package llm provides a uniform contract over heterogeneous LLM
// backends and the machinery to keep calls flowing when one of them
// misbehaves.
//
// Three adapters ship in the box: OpenAI-compatible chat completions,
// the Anthropic Messages API, and a local Ollama daemon. All of them
// translate the shared Message/GenerationConfig shapes to their wire
// format and map failures onto one error taxonomy (AuthError,
// RateLimitError, ModelNotFoundError, ProviderError).
//
// The Factory caches one adapter per backend and resolves a fallback
// chain, local-and-free before paid-and-remote by default. The Client
// layers per-backend circuit breakers on top and retries retryable
// failures against the next backend in the chain:
//
//	factory, err := llm.NewFactoryFromEnv()
//	if err != nil {
//		return err
//	}
//	client := llm.NewClient(factory)
//	resp, err := client.Generate(ctx, []llm.Message{
//		{Role: llm.RoleUser, Content: "summarize this RFQ"},
//	}, llm.GenerationConfig{})
//
// Availability probes are memoized per adapter; call ResetAvailability
// to force a re-probe after an outage.
package llm
