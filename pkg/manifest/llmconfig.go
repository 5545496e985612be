package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Model variants a profile can map to concrete model names.
const (
	VariantDefault   = "default"
	VariantReasoning = "reasoning"
	VariantFast      = "fast"
)

// Environment variables that steer profile resolution.
const (
	EnvProviderProfile = "EVAL_PROVIDER_PROFILE"
	EnvProfilesPath    = "EVAL_PROFILES_PATH"
)

// ModelMapping maps capability variants to model names.
type ModelMapping struct {
	Default   string `json:"default"`
	Reasoning string `json:"reasoning,omitempty"`
	Fast      string `json:"fast,omitempty"`
}

// Model returns the model name for a variant, falling back to default.
func (m ModelMapping) Model(variant string) string {
	switch variant {
	case VariantReasoning:
		if m.Reasoning != "" {
			return m.Reasoning
		}
	case VariantFast:
		if m.Fast != "" {
			return m.Fast
		}
	}
	return m.Default
}

// ProviderProfile is one named provider configuration from the profiles
// file. Secrets are referenced by environment variable name, never inline.
type ProviderProfile struct {
	Provider    string       `json:"provider"`
	Models      ModelMapping `json:"models"`
	APIKeyEnv   string       `json:"api_key_env,omitempty"`
	EndpointEnv string       `json:"endpoint_env,omitempty"`
	APIVersion  string       `json:"api_version,omitempty"`
	BaseURL     string       `json:"base_url,omitempty"`
	Region      string       `json:"region,omitempty"`
}

// ModelParameters are per-role sampling settings. Pointers distinguish
// "unset" from zero so merges only override what was given.
type ModelParameters struct {
	Temperature      *float64 `json:"temperature,omitempty"`
	MaxTokens        *int     `json:"max_tokens,omitempty"`
	TopP             *float64 `json:"top_p,omitempty"`
	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64 `json:"presence_penalty,omitempty"`
}

func (p ModelParameters) merge(override ModelParameters) ModelParameters {
	out := p
	if override.Temperature != nil {
		out.Temperature = override.Temperature
	}
	if override.MaxTokens != nil {
		out.MaxTokens = override.MaxTokens
	}
	if override.TopP != nil {
		out.TopP = override.TopP
	}
	if override.FrequencyPenalty != nil {
		out.FrequencyPenalty = override.FrequencyPenalty
	}
	if override.PresencePenalty != nil {
		out.PresencePenalty = override.PresencePenalty
	}
	return out
}

// RoleConfig configures one role (solver, judge, asker).
type RoleConfig struct {
	ModelVariant    string          `json:"model_variant,omitempty"`
	ModelParameters ModelParameters `json:"model_parameters,omitempty"`
	Persona         string          `json:"persona,omitempty"`
}

func (r RoleConfig) merge(override RoleConfig) RoleConfig {
	out := r
	if override.ModelVariant != "" {
		out.ModelVariant = override.ModelVariant
	}
	out.ModelParameters = r.ModelParameters.merge(override.ModelParameters)
	if override.Persona != "" {
		out.Persona = override.Persona
	}
	return out
}

// LLMConfig is the manifest's llm_config block.
type LLMConfig struct {
	ActiveProfile string                `json:"active_profile"`
	Defaults      RoleConfig            `json:"defaults,omitempty"`
	Overrides     map[string]RoleConfig `json:"overrides,omitempty"`
}

// RolesNeeded returns the roles that require a provider: the solver plus
// the base role of every override (dotted variants collapse to their base).
func (c LLMConfig) RolesNeeded() []string {
	needed := map[string]struct{}{"solver": {}}
	for role := range c.Overrides {
		base, _, _ := strings.Cut(role, ".")
		needed[base] = struct{}{}
	}
	roles := make([]string, 0, len(needed))
	for role := range needed {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	return roles
}

// ResolvedLLMConfig is a fully materialized per-role provider config with
// environment variables already looked up.
type ResolvedLLMConfig struct {
	Provider   string
	Model      string
	Parameters ModelParameters
	Persona    string
	APIKey     string
	Endpoint   string
	APIVersion string
	BaseURL    string
	Region     string
}

// LoadProfiles reads the provider profiles file. An empty path searches, in
// order: EVAL_PROFILES_PATH, ./provider_profiles.json, and
// ~/.config/eval/provider_profiles.json.
func LoadProfiles(path string) (map[string]ProviderProfile, error) {
	resolved, err := profilesPath(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return nil, fmt.Errorf("provider profiles %q: %w", resolved, err)
	}

	var doc struct {
		Profiles map[string]ProviderProfile `json:"profiles"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("provider profiles %q: %w", resolved, err)
	}
	return doc.Profiles, nil
}

func profilesPath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	if env := os.Getenv(EnvProfilesPath); env != "" {
		return env, nil
	}
	if _, err := os.Stat("provider_profiles.json"); err == nil {
		return "provider_profiles.json", nil
	}
	home, err := os.UserHomeDir()
	if err == nil {
		candidate := filepath.Join(home, ".config", "eval", "provider_profiles.json")
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no provider profiles found: create provider_profiles.json or set %s", EnvProfilesPath)
}

// Resolve materializes the configuration for one role: the active profile
// (overridable via EVAL_PROVIDER_PROFILE), the merged role config, the
// variant-selected model, and resolved secrets.
func Resolve(cfg LLMConfig, role string, profiles map[string]ProviderProfile) (ResolvedLLMConfig, error) {
	profileName := cfg.ActiveProfile
	if env := os.Getenv(EnvProviderProfile); env != "" {
		profileName = env
	}

	profile, ok := profiles[profileName]
	if !ok {
		names := make([]string, 0, len(profiles))
		for name := range profiles {
			names = append(names, name)
		}
		sort.Strings(names)
		return ResolvedLLMConfig{}, fmt.Errorf("profile %q not found, available profiles: %s", profileName, strings.Join(names, ", "))
	}

	roleConfig := cfg.Defaults
	if override, ok := cfg.Overrides[role]; ok {
		roleConfig = roleConfig.merge(override)
	} else {
		// Dotted variants like "solver.reasoning" apply to their base role.
		// Keys are scanned in sorted order so resolution is deterministic.
		keys := make([]string, 0, len(cfg.Overrides))
		for key := range cfg.Overrides {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			if strings.HasPrefix(key, role+".") {
				roleConfig = roleConfig.merge(cfg.Overrides[key])
				break
			}
		}
	}

	variant := roleConfig.ModelVariant
	if variant == "" {
		variant = VariantDefault
	}

	resolved := ResolvedLLMConfig{
		Provider:   profile.Provider,
		Model:      profile.Models.Model(variant),
		Parameters: roleConfig.ModelParameters,
		Persona:    roleConfig.Persona,
		APIVersion: profile.APIVersion,
		BaseURL:    profile.BaseURL,
		Region:     profile.Region,
	}

	if profile.APIKeyEnv != "" {
		key := os.Getenv(profile.APIKeyEnv)
		// Azure OpenAI may authenticate without a key (integrated auth).
		if key == "" && profile.Provider != "azure_openai" {
			return ResolvedLLMConfig{}, fmt.Errorf("environment variable %s not set", profile.APIKeyEnv)
		}
		resolved.APIKey = key
	}
	if profile.EndpointEnv != "" {
		resolved.Endpoint = os.Getenv(profile.EndpointEnv)
	}

	return resolved, nil
}
