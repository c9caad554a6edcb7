package llm

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// BackendSettings holds the environment-style configuration for one backend.
type BackendSettings struct {
	APIKey  string `envconfig:"API_KEY"`
	BaseURL string `envconfig:"BASE_URL"`
	Model   string `envconfig:"MODEL"`
	// Timeout bounds a single non-streaming backend call, in seconds.
	Timeout int `envconfig:"TIMEOUT" default:"30"`
}

// TimeoutDuration returns the call timeout as a duration.
func (b BackendSettings) TimeoutDuration() time.Duration {
	if b.Timeout <= 0 {
		return 30 * time.Second
	}
	return time.Duration(b.Timeout) * time.Second
}

// Settings holds the provider-layer configuration: per-backend settings
// plus the default-provider selector and fallback-chain override.
type Settings struct {
	DefaultProvider string   `envconfig:"DEFAULT_PROVIDER" default:"ollama"`
	FallbackOrder   []string `envconfig:"FALLBACK_ORDER"`

	OpenAI    BackendSettings `ignored:"true"`
	Anthropic BackendSettings `ignored:"true"`
	Ollama    BackendSettings `ignored:"true"`
}

// SettingsFromEnv loads Settings from the environment. A .env file in
// the working directory is folded in first when present (missing files
// are not an error).
//
// Variables use the PROCURA_ prefix, with per-backend sub-prefixes:
//
//	PROCURA_DEFAULT_PROVIDER=openai
//	PROCURA_FALLBACK_ORDER=ollama,openai,anthropic
//	PROCURA_OPENAI_API_KEY=sk-...
//	PROCURA_OPENAI_BASE_URL=https://api.openai.com/v1
//	PROCURA_OLLAMA_BASE_URL=http://localhost:11434
func SettingsFromEnv() (Settings, error) {
	_ = godotenv.Load()

	var s Settings
	if err := envconfig.Process("PROCURA", &s); err != nil {
		return Settings{}, fmt.Errorf("process provider settings: %w", err)
	}
	if err := envconfig.Process("PROCURA_OPENAI", &s.OpenAI); err != nil {
		return Settings{}, fmt.Errorf("process openai settings: %w", err)
	}
	if err := envconfig.Process("PROCURA_ANTHROPIC", &s.Anthropic); err != nil {
		return Settings{}, fmt.Errorf("process anthropic settings: %w", err)
	}
	if err := envconfig.Process("PROCURA_OLLAMA", &s.Ollama); err != nil {
		return Settings{}, fmt.Errorf("process ollama settings: %w", err)
	}
	return s, nil
}

// backend returns the settings block for a named backend.
func (s Settings) backend(name string) (BackendSettings, bool) {
	switch name {
	case ProviderOpenAI:
		return s.OpenAI, true
	case ProviderAnthropic:
		return s.Anthropic, true
	case ProviderOllama:
		return s.Ollama, true
	default:
		return BackendSettings{}, false
	}
}
