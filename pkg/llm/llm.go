// Package llm defines the model-facing boundary: the Provider contract every
// model adapter satisfies, the wire-level tool definition envelope, and the
// role-keyed provider registry.
package llm

import (
	"context"

	"github.com/kadirpekel/lev/pkg/chat"
)

// ToolDefinition is the JSON Schema envelope a model expects for one tool.
type ToolDefinition struct {
	Type     string             `json:"type"`
	Function ToolDefinitionSpec `json:"function"`
}

// ToolDefinitionSpec carries the advertised name, description, and parameter
// schema of one tool.
type ToolDefinitionSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Usage reports token accounting from a completion, when the provider
// supplies it.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ModelResponse is the raw result of one chat completion. Non-empty
// ToolCalls means the host loop must execute them; empty ToolCalls with
// non-empty Content is a candidate final answer.
type ModelResponse struct {
	Content      string
	ToolCalls    []chat.ToolCallRef
	FinishReason string
	Usage        *Usage
}

// Provider is the contract a model adapter satisfies.
type Provider interface {
	Name() string
	DefaultModel() string
	SupportsTools() bool

	// ChatComplete sends the serialized transcript (and optionally the tool
	// menu) to the model and returns its raw response.
	ChatComplete(ctx context.Context, messages []chat.Message, tools []ToolDefinition) (*ModelResponse, error)
}
