package provider

import (
	"fmt"
	"log/slog"

	"github.com/cursorconnect/cursorconnect/internal/config"
)

// Constructor is a function that creates a new Provider.
type Constructor func(baseURL, apiKey, model string) Provider

// registry holds registered provider constructors.
var registry = map[string]Constructor{}

// Register registers a provider constructor by name.
func Register(name string, constructor Constructor) {
	registry[name] = constructor
}

// New creates a Provider based on the given configuration. If no API key can
// be resolved for the selected provider, a mock provider is returned so the
// server still runs end to end without credentials.
func New(cfg *config.Config) (Provider, error) {
	name := cfg.Provider.Default

	constructor, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %q", name)
	}

	var baseURL, model, keySource, keyValue, envVar string
	switch name {
	case "openai":
		pc := cfg.Provider.OpenAI
		baseURL, model = pc.BaseURL, pc.Model
		keySource, keyValue, envVar = pc.APIKeySource, pc.APIKey, "OPENAI_API_KEY"
	case "gemini":
		pc := cfg.Provider.Gemini
		baseURL, model = pc.BaseURL, pc.Model
		keySource, keyValue, envVar = pc.APIKeySource, pc.APIKey, "GEMINI_API_KEY"
	default:
		return nil, fmt.Errorf("no configuration for provider: %q", name)
	}

	apiKey, err := config.ResolveAPIKey(keySource, keyValue, envVar)
	if err != nil {
		slog.Warn("no API key available, using mock provider", "provider", name, "reason", err)
		return NewMock(model + "-mock"), nil
	}

	return constructor(baseURL, apiKey, model), nil
}
