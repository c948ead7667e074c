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

// DefaultModels maps provider names to their default models.
var DefaultModels = map[string]string{
	"ollama":    DefaultOllamaModel,
	"openai":    "gpt-4o-mini",
	"anthropic": "claude-sonnet-4-20250514",
}

var (
	registryMu sync.RWMutex
	registry   = map[string]ProviderFactory{}
)

func init() {
	RegisterProvider("ollama", func(cfg ProviderConfig) (Provider, error) {
		return NewOllamaProvider(cfg)
	})
	RegisterProvider("openai", func(cfg ProviderConfig) (Provider, error) {
		return NewOpenAIProvider(cfg)
	})
	RegisterProvider("anthropic", func(cfg ProviderConfig) (Provider, error) {
		return NewAnthropicProvider(cfg)
	})
}

// NewProvider creates a provider by name. An empty API key is filled from the
// provider's environment variable.
func NewProvider(name string, cfg ProviderConfig) (Provider, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s (available: %s)", name, strings.Join(AvailableProviders(), ", "))
	}

	if cfg.APIKey == "" {
		if envKey, ok := providerEnvKeys[name]; ok {
			cfg.APIKey = os.Getenv(envKey)
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

// AvailableProviders returns the sorted list of registered providers.
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

// GetDefaultModel returns the default model for a provider.
func GetDefaultModel(provider string) string {
	return DefaultModels[provider]
}

// providerEnvKeys maps provider names to their API key environment variables.
var providerEnvKeys = map[string]string{
	"anthropic": "ANTHROPIC_API_KEY",
	"openai":    "OPENAI_API_KEY",
}
