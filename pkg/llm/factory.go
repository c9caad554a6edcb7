package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/randalmurphal/procura/pkg/registry"
)

// defaultFallbackOrder walks free/local backends before paid ones.
var defaultFallbackOrder = []string{ProviderOllama, ProviderOpenAI, ProviderAnthropic}

// Factory creates and caches provider adapters from a Settings block.
// Adapters built from the factory's own settings are cached per backend;
// adapters built with explicit overrides are always fresh.
type Factory struct {
	settings Settings
	cache    *registry.Registry[string, Provider]
	logger   *slog.Logger
}

// NewFactory creates a provider factory.
func NewFactory(settings Settings) *Factory {
	return &Factory{
		settings: settings,
		cache:    registry.New[string, Provider](),
		logger:   slog.Default().With("component", "llm_factory"),
	}
}

// NewFactoryFromEnv loads settings from the environment and wraps them
// in a factory.
func NewFactoryFromEnv() (*Factory, error) {
	settings, err := SettingsFromEnv()
	if err != nil {
		return nil, err
	}
	return NewFactory(settings), nil
}

// build constructs an adapter for a named backend.
func build(name string, settings BackendSettings) (Provider, error) {
	switch name {
	case ProviderOpenAI:
		return NewOpenAIProvider(settings), nil
	case ProviderAnthropic:
		return NewAnthropicProvider(settings), nil
	case ProviderOllama:
		return NewOllamaProvider(settings), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
}

// Get returns the cached adapter for a named backend, creating it from
// the factory settings on first use.
func (f *Factory) Get(name string) (Provider, error) {
	if p, ok := f.cache.Get(name); ok {
		return p, nil
	}

	settings, ok := f.settings.backend(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	p, err := build(name, settings)
	if err != nil {
		return nil, err
	}
	f.cache.Register(name, p)
	return p, nil
}

// GetWithSettings returns a fresh, uncached adapter using explicit
// backend settings. Use this for one-off overrides (alternate base URL,
// different credentials) without disturbing the shared instances.
func (f *Factory) GetWithSettings(name string, settings BackendSettings) (Provider, error) {
	return build(name, settings)
}

// Default returns the adapter for the configured default backend.
func (f *Factory) Default() (Provider, error) {
	name := f.settings.DefaultProvider
	if name == "" {
		name = ProviderOllama
	}
	return f.Get(name)
}

// FallbackOrder returns the configured chain, or the default
// free-before-paid order when none is configured.
func (f *Factory) FallbackOrder() []string {
	if len(f.settings.FallbackOrder) > 0 {
		return f.settings.FallbackOrder
	}
	return defaultFallbackOrder
}

// GetAvailable walks the fallback chain and returns the first backend
// that passes its availability probe. Preferred backends, if given, are
// tried first, then the configured chain. Each backend is probed at most
// once per walk; duplicates are skipped.
//
// Returns ErrNoProviderAvailable naming every attempted backend when the
// whole chain is down.
func (f *Factory) GetAvailable(ctx context.Context, preferred ...string) (Provider, error) {
	chain := append(append([]string{}, preferred...), f.FallbackOrder()...)

	var attempted []string
	seen := make(map[string]bool, len(chain))
	for _, name := range chain {
		if seen[name] {
			continue
		}
		seen[name] = true

		p, err := f.Get(name)
		if err != nil {
			f.logger.Warn("skipping unknown backend in fallback chain", "provider", name)
			continue
		}
		attempted = append(attempted, name)

		if !BreakerFor(name).CanExecute() {
			f.logger.Warn("circuit breaker open, skipping backend", "provider", name)
			continue
		}
		if p.Available(ctx) {
			f.logger.Debug("selected backend", "provider", name, "model", p.DefaultModel())
			return p, nil
		}
		f.logger.Warn("backend unavailable", "provider", name)
	}

	return nil, fmt.Errorf("%w (tried: %s)", ErrNoProviderAvailable, strings.Join(attempted, ", "))
}

// Clear drops all cached adapters. Intended for tests.
func (f *Factory) Clear() {
	f.cache.Clear()
}
