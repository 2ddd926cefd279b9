package llm

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
)

// ProviderFactory creates providers from config.
type ProviderFactory func(cfg ProviderConfig) (Provider, error)

// DefaultModels maps provider names to the model used when none is set.
var DefaultModels = map[string]string{
	"anthropic":  "claude-3-5-haiku-latest",
	"openai":     "gpt-4o-mini",
	"openrouter": "openrouter/auto",
	"ollama":     "llama3.2",
}

// providerEnvKeys maps provider names to their API key environment variables.
var providerEnvKeys = map[string]string{
	"anthropic":  "ANTHROPIC_API_KEY",
	"openai":     "OPENAI_API_KEY",
	"openrouter": "OPENROUTER_API_KEY",
}

var (
	registryMu sync.RWMutex
	registry   = map[string]ProviderFactory{
		"anthropic": func(cfg ProviderConfig) (Provider, error) {
			return NewAnthropicProvider(cfg)
		},
		"openai": func(cfg ProviderConfig) (Provider, error) {
			return NewOpenAIProvider(cfg)
		},
		"openrouter": func(cfg ProviderConfig) (Provider, error) {
			return NewOpenRouterProvider(cfg)
		},
		"ollama": func(cfg ProviderConfig) (Provider, error) {
			return NewOllamaProvider(cfg)
		},
	}
)

// NewProvider creates a provider by name. An empty API key is filled from
// the provider's environment variable.
func NewProvider(name string, cfg ProviderConfig) (Provider, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s (available: %s)", name, strings.Join(AvailableProviders(), ", "))
	}

	if cfg.APIKey == "" {
		if env, ok := providerEnvKeys[name]; ok {
			cfg.APIKey = os.Getenv(env)
		}
	}
	return factory(cfg)
}

// RegisterProvider adds a custom provider factory.
func RegisterProvider(name string, factory ProviderFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// AvailableProviders returns the registered provider names, sorted.
func AvailableProviders() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	providers := make([]string, 0, len(registry))
	for name := range registry {
		providers = append(providers, name)
	}
	sort.Strings(providers)
	return providers
}

// DetectProvider picks a provider from the API keys present in the
// environment, falling back to ollama which needs none.
// Priority: ANTHROPIC_API_KEY > OPENAI_API_KEY > OPENROUTER_API_KEY > ollama
func DetectProvider() string {
	for _, name := range []string{"anthropic", "openai", "openrouter"} {
		if os.Getenv(providerEnvKeys[name]) != "" {
			return name
		}
	}
	return "ollama"
}
