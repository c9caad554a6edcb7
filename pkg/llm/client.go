package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Client is the high-level entry point for generation calls. It walks
// the factory's fallback chain, feeds the per-backend circuit breakers,
// and moves to the next backend on retryable failures. A backend is
// tried at most once per call.
type Client struct {
	factory *Factory
	logger  *slog.Logger
}

// NewClient wraps a factory in a fallback-aware client.
func NewClient(factory *Factory) *Client {
	return &Client{
		factory: factory,
		logger:  slog.Default().With("component", "llm_client"),
	}
}

// Generate performs a completion against the first healthy backend in
// the chain. Preferred backends, if given, are tried before the
// configured chain.
func (c *Client) Generate(ctx context.Context, messages []Message, cfg GenerationConfig, preferred ...string) (*Response, error) {
	chain := append(append([]string{}, preferred...), c.factory.FallbackOrder()...)

	var attempted []string
	var lastErr error
	seen := make(map[string]bool, len(chain))
	for _, name := range chain {
		if seen[name] {
			continue
		}
		seen[name] = true

		p, err := c.factory.Get(name)
		if err != nil {
			continue
		}
		attempted = append(attempted, name)

		breaker := BreakerFor(name)
		if !breaker.CanExecute() {
			c.logger.Warn("circuit breaker open, skipping backend", "provider", name)
			continue
		}
		if !p.Available(ctx) {
			continue
		}

		resp, err := p.Generate(ctx, messages, cfg)
		if err == nil {
			breaker.RecordSuccess()
			return resp, nil
		}

		breaker.RecordFailure()
		lastErr = err
		c.logger.Warn("backend call failed",
			"provider", name,
			"error", err,
			"retryable", IsRetryable(err))

		// A dead context dooms every remaining backend too.
		if ctx.Err() != nil {
			break
		}
		// Non-retryable failures other than auth problems stop the walk:
		// a bad model id or malformed request will fail everywhere the
		// same way. Auth failures are backend-specific, so keep walking.
		var authErr *AuthError
		if !IsRetryable(err) && !errors.As(err, &authErr) {
			break
		}
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return nil, fmt.Errorf("%w (tried: %s)", ErrNoProviderAvailable, strings.Join(attempted, ", "))
}

// GenerateStream opens a stream against the first healthy backend in the
// chain. Fallback only covers call setup; once streaming has begun a
// mid-stream failure surfaces as an error chunk and is not retried.
func (c *Client) GenerateStream(ctx context.Context, messages []Message, cfg GenerationConfig, preferred ...string) (<-chan StreamChunk, error) {
	p, err := c.factory.GetAvailable(ctx, preferred...)
	if err != nil {
		return nil, err
	}

	breaker := BreakerFor(p.Name())
	if !breaker.CanExecute() {
		return nil, fmt.Errorf("%w (breaker open for %s)", ErrNoProviderAvailable, p.Name())
	}

	chunks, err := p.GenerateStream(ctx, messages, cfg)
	if err != nil {
		breaker.RecordFailure()
		return nil, err
	}
	breaker.RecordSuccess()
	return chunks, nil
}
