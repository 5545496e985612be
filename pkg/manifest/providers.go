package manifest

import (
	"fmt"

	"github.com/kadirpekel/lev/pkg/llm"
)

// BuildRegistry creates one provider per needed role from the manifest's
// llm_config and the loaded provider profiles.
func BuildRegistry(cfg LLMConfig, profiles map[string]ProviderProfile) (*llm.Registry, error) {
	providers := make(map[string]llm.Provider)

	for _, role := range cfg.RolesNeeded() {
		resolved, err := Resolve(cfg, role, profiles)
		if err != nil {
			return nil, fmt.Errorf("failed to create provider for role %q: %w", role, err)
		}
		provider, err := newProvider(resolved)
		if err != nil {
			return nil, fmt.Errorf("failed to create provider for role %q: %w", role, err)
		}
		providers[role] = provider
	}

	return llm.NewRegistry(providers)
}

// PersonaFor returns the persona key configured for a role, if any.
func PersonaFor(cfg LLMConfig, role string, profiles map[string]ProviderProfile) string {
	resolved, err := Resolve(cfg, role, profiles)
	if err != nil {
		return ""
	}
	return resolved.Persona
}

func newProvider(resolved ResolvedLLMConfig) (llm.Provider, error) {
	config := llm.Config{
		Model:            resolved.Model,
		APIKey:           resolved.APIKey,
		BaseURL:          resolved.BaseURL,
		APIVersion:       resolved.APIVersion,
		Temperature:      resolved.Parameters.Temperature,
		TopP:             resolved.Parameters.TopP,
		FrequencyPenalty: resolved.Parameters.FrequencyPenalty,
		PresencePenalty:  resolved.Parameters.PresencePenalty,
	}
	if resolved.Parameters.MaxTokens != nil {
		config.MaxTokens = *resolved.Parameters.MaxTokens
	}
	// Azure resource endpoints arrive via environment lookup.
	if resolved.Endpoint != "" {
		config.BaseURL = resolved.Endpoint
	}

	switch resolved.Provider {
	case "openai":
		return llm.NewOpenAIProvider(config)
	case "azure_openai":
		return llm.NewAzureProvider(config)
	case "lmstudio", "lm_studio":
		return llm.NewLMStudioProvider(config)
	default:
		return nil, fmt.Errorf("unsupported provider %q", resolved.Provider)
	}
}
