// Package manifest loads and validates eval suite manifests: the JSON data
// model, LLM provider-profile resolution, and persona files.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kadirpekel/lev/pkg/mcp"
	"github.com/kadirpekel/lev/pkg/scoring"
)

// DatasetTypeMcpEval is the only dataset type this harness runs.
const DatasetTypeMcpEval = "mcp_eval"

// legacyFields are pre-llm_config manifest blocks. Their presence means the
// document predates the current schema and must be rejected outright.
var legacyFields = []string{"solver", "asker", "judge", "model_config"}

// SolverOptions bounds the host loop for one eval.
type SolverOptions struct {
	MaxReasoningSteps     int `json:"max_reasoning_steps"`
	MaxRetrospectiveTurns int `json:"max_retrospective_turns"`
}

// AskerOptions bounds the outer ask workflow for one eval.
type AskerOptions struct {
	MaxTurns int `json:"max_turns"`
}

// Execution declares which servers an eval may use and its loop bounds.
// Solver and asker bounds are optional; unset bounds leave the host and
// workflow defaults in place.
type Execution struct {
	MCPs   []string       `json:"mcps"`
	Solver *SolverOptions `json:"solver,omitempty"`
	Asker  *AskerOptions  `json:"asker,omitempty"`
}

// Eval is one evaluation case.
type Eval struct {
	ID           string                 `json:"id"`
	Question     string                 `json:"question"`
	Execution    Execution              `json:"execution"`
	Scoring      []scoring.ScorerConfig `json:"scoring"`
	Expectations map[string]any         `json:"expectations,omitempty"`
}

// Logging toggles the optional output surfaces.
type Logging struct {
	McpCalls    bool   `json:"mcp_calls,omitempty"`
	Results     bool   `json:"results,omitempty"`
	ResultsSink string `json:"results_sink,omitempty"`
}

// Manifest is the parsed eval suite document.
type Manifest struct {
	SchemaVersion string                      `json:"schema_version"`
	Type          string                      `json:"type"`
	Description   string                      `json:"description"`
	LLMConfig     LLMConfig                   `json:"llm_config"`
	McpServers    map[string]mcp.ServerConfig `json:"mcp_servers"`
	Evals         []Eval                      `json:"evals"`
	Logging       *Logging                    `json:"logging,omitempty"`

	// Name is the manifest file's stem, used for output file naming.
	Name string `json:"-"`
}

// Load reads, parses, and validates a manifest file.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("manifest file %q: %w", path, err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("manifest %q: %w", path, err)
	}
	m.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return m, nil
}

// Parse decodes and validates a manifest document.
func Parse(data []byte) (*Manifest, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	for _, field := range legacyFields {
		if _, ok := raw[field]; ok {
			return nil, fmt.Errorf("top-level %q is a legacy schema field: migrate to llm_config and set schema_version", field)
		}
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	if m.Type != DatasetTypeMcpEval {
		return nil, fmt.Errorf("Expected mcp_eval dataset, got %s", m.Type)
	}

	// Server configs carry their registry name; fill it from the map key.
	for name, cfg := range m.McpServers {
		if cfg.Name == "" {
			cfg.Name = name
			m.McpServers[name] = cfg
		}
	}

	for _, eval := range m.Evals {
		for _, server := range eval.Execution.MCPs {
			if _, ok := m.McpServers[server]; !ok {
				return nil, fmt.Errorf("eval %q references unknown MCP %q not in manifest", eval.ID, server)
			}
		}
	}

	return &m, nil
}

// Servers returns the server configs in name order.
func (m *Manifest) Servers() []mcp.ServerConfig {
	names := make([]string, 0, len(m.McpServers))
	for name := range m.McpServers {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]mcp.ServerConfig, 0, len(names))
	for _, name := range names {
		out = append(out, m.McpServers[name])
	}
	return out
}

// McpCallLogging reports whether per-call telemetry is enabled.
func (m *Manifest) McpCallLogging() bool {
	return m.Logging != nil && m.Logging.McpCalls
}

// ResultsLogging reports whether the result sink is enabled and which sink
// type to use (empty means the default).
func (m *Manifest) ResultsLogging() (bool, string) {
	if m.Logging == nil || !m.Logging.Results {
		return false, ""
	}
	return true, m.Logging.ResultsSink
}

// Discover lists eval manifest files (*.evl) in a directory, sorted.
func Discover(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.evl"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}
