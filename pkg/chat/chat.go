// Package chat holds the append-only conversation transcript shared by the
// agent, the host loop, and the scorers. Messages are serialized for the
// model through ToModelMessages and rendered for humans (and LLM judges)
// through RenderTrace.
package chat

import "time"

// Role identifies the author of a transcript message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
	RoleDeveloper Role = "developer"
	RolePlatform  Role = "platform"
)

// ToolCallRef is a single tool-call request issued by the model. The id is
// assigned by the model producer and echoed on the matching tool response.
type ToolCallRef struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// Message is one transcript entry. Immutable once appended.
type Message struct {
	Role       Role          `json:"role"`
	Content    string        `json:"content"`
	Timestamp  time.Time     `json:"timestamp"`
	ToolCalls  []ToolCallRef `json:"tool_calls,omitempty"`
	ToolCallID string        `json:"tool_call_id,omitempty"`
}

// ToolInvocation records one completed tool call with its normalized result.
// Kept separately from the message log: scorers reason over invocations
// structurally while the model reasons over messages textually.
type ToolInvocation struct {
	ToolName   string         `json:"tool_name"`
	Arguments  map[string]any `json:"arguments"`
	Result     map[string]any `json:"result"`
	ServerName string         `json:"server_name"`
	Timestamp  time.Time      `json:"timestamp"`
}
