package chat

import (
	"time"
)

// History is the ordered message log plus the invocation log for one
// conversation. Not safe for concurrent use; the host loop is the single
// writer.
type History struct {
	messages    []Message
	invocations []ToolInvocation

	// now is swappable for deterministic tests.
	now func() time.Time
}

func NewHistory() *History {
	return &History{now: time.Now}
}

func (h *History) Len() int { return len(h.messages) }

// Messages returns a copy of the message log.
func (h *History) Messages() []Message {
	out := make([]Message, len(h.messages))
	copy(out, h.messages)
	return out
}

// Invocations returns a copy of the tool invocation log.
func (h *History) Invocations() []ToolInvocation {
	out := make([]ToolInvocation, len(h.invocations))
	copy(out, h.invocations)
	return out
}

// Append adds a message with the given role and content.
func (h *History) Append(role Role, content string) {
	h.messages = append(h.messages, Message{Role: role, Content: content, Timestamp: h.now()})
}

func (h *History) AppendSystem(content string)    { h.Append(RoleSystem, content) }
func (h *History) AppendUser(content string)      { h.Append(RoleUser, content) }
func (h *History) AppendAssistant(content string) { h.Append(RoleAssistant, content) }
func (h *History) AppendDeveloper(content string) { h.Append(RoleDeveloper, content) }

// AppendAssistantToolCall adds an assistant message carrying tool-call
// requests. Content may be empty.
func (h *History) AppendAssistantToolCall(content string, calls []ToolCallRef) {
	h.messages = append(h.messages, Message{
		Role:      RoleAssistant,
		Content:   content,
		ToolCalls: calls,
		Timestamp: h.now(),
	})
}

// AppendToolResponse adds a tool response bound to a prior tool-call id.
// Content is the JSON-serialized normalized result.
func (h *History) AppendToolResponse(callID, content string) {
	h.messages = append(h.messages, Message{
		Role:       RoleTool,
		Content:    content,
		ToolCallID: callID,
		Timestamp:  h.now(),
	})
}

// RecordInvocation logs a completed tool call for the scorers.
func (h *History) RecordInvocation(server, tool string, args, result map[string]any) {
	h.invocations = append(h.invocations, ToolInvocation{
		ServerName: server,
		ToolName:   tool,
		Arguments:  args,
		Result:     result,
		Timestamp:  h.now(),
	})
}

// UserMessages returns all user messages in order.
func (h *History) UserMessages() []Message {
	var out []Message
	for _, m := range h.messages {
		if m.Role == RoleUser {
			out = append(out, m)
		}
	}
	return out
}

// AssistantMessages returns all assistant messages in order.
func (h *History) AssistantMessages() []Message {
	var out []Message
	for _, m := range h.messages {
		if m.Role == RoleAssistant {
			out = append(out, m)
		}
	}
	return out
}

// LastAssistantContent returns the most recent assistant message with
// non-empty content, or "" if none exists.
func (h *History) LastAssistantContent() string {
	for i := len(h.messages) - 1; i >= 0; i-- {
		if h.messages[i].Role == RoleAssistant && h.messages[i].Content != "" {
			return h.messages[i].Content
		}
	}
	return ""
}

// ToModelMessages serializes the transcript for the model boundary.
// User and assistant messages always pass; tool_calls are carried only when
// withTools is set, tool responses only when withTools is set (always with
// their tool_call_id), and system/developer/platform messages only when
// withSystem is set.
func (h *History) ToModelMessages(withSystem, withTools bool) []Message {
	var out []Message
	for _, m := range h.messages {
		switch m.Role {
		case RoleUser:
			out = append(out, Message{Role: m.Role, Content: m.Content})
		case RoleAssistant:
			msg := Message{Role: m.Role, Content: m.Content}
			if withTools && len(m.ToolCalls) > 0 {
				msg.ToolCalls = m.ToolCalls
			}
			out = append(out, msg)
		case RoleTool:
			if withTools {
				out = append(out, Message{Role: m.Role, Content: m.Content, ToolCallID: m.ToolCallID})
			}
		case RoleSystem, RoleDeveloper, RolePlatform:
			if withSystem {
				out = append(out, Message{Role: m.Role, Content: m.Content})
			}
		}
	}
	return out
}
