package llm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingsFromEnv(t *testing.T) {
	t.Setenv("PROCURA_DEFAULT_PROVIDER", "openai")
	t.Setenv("PROCURA_FALLBACK_ORDER", "openai,anthropic,ollama")
	t.Setenv("PROCURA_OPENAI_API_KEY", "sk-test")
	t.Setenv("PROCURA_OPENAI_TIMEOUT", "60")
	t.Setenv("PROCURA_OLLAMA_BASE_URL", "http://gpu-box:11434")

	s, err := SettingsFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "openai", s.DefaultProvider)
	assert.Equal(t, []string{"openai", "anthropic", "ollama"}, s.FallbackOrder)
	assert.Equal(t, "sk-test", s.OpenAI.APIKey)
	assert.Equal(t, 60*time.Second, s.OpenAI.TimeoutDuration())
	assert.Equal(t, "http://gpu-box:11434", s.Ollama.BaseURL)
}

func TestSettingsDefaults(t *testing.T) {
	s, err := SettingsFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "ollama", s.DefaultProvider)
	assert.Equal(t, 30*time.Second, s.OpenAI.TimeoutDuration())
}

func TestBackendLookup(t *testing.T) {
	s := Settings{
		OpenAI: BackendSettings{APIKey: "a"},
		Ollama: BackendSettings{BaseURL: "http://localhost:11434"},
	}

	got, ok := s.backend(ProviderOpenAI)
	require.True(t, ok)
	assert.Equal(t, "a", got.APIKey)

	_, ok = s.backend("vertex")
	assert.False(t, ok)
}

func TestTimeoutDurationGuardsNonPositive(t *testing.T) {
	assert.Equal(t, 30*time.Second, BackendSettings{Timeout: 0}.TimeoutDuration())
	assert.Equal(t, 30*time.Second, BackendSettings{Timeout: -5}.TimeoutDuration())
	assert.Equal(t, 10*time.Second, BackendSettings{Timeout: 10}.TimeoutDuration())
}
