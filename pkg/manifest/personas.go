package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// Persona is one named system prompt from the personas file.
type Persona struct {
	SystemPrompt string `json:"system_prompt"`
}

// LoadPersonas reads a personas file mapping persona key to prompt.
func LoadPersonas(path string) (map[string]Persona, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("personas file %q: %w", path, err)
	}

	var personas map[string]Persona
	if err := json.Unmarshal(data, &personas); err != nil {
		return nil, fmt.Errorf("personas file %q: %w", path, err)
	}
	return personas, nil
}

// PersonaSystemPrompt resolves one persona key to its system prompt.
func PersonaSystemPrompt(key, path string) (string, error) {
	personas, err := LoadPersonas(path)
	if err != nil {
		return "", err
	}

	persona, ok := personas[key]
	if !ok {
		available := make([]string, 0, len(personas))
		for name := range personas {
			available = append(available, name)
		}
		sort.Strings(available)
		return "", fmt.Errorf("unknown persona %q, available personas: %v", key, available)
	}
	return persona.SystemPrompt, nil
}
