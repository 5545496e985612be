package chat

import (
	"fmt"
	"sort"
	"strings"
)

// DefaultTracePreview is the character budget for tool response previews in
// RenderTrace.
const DefaultTracePreview = 100

const traceIndent = "          " // fixed 10-space continuation indent

// RenderTrace renders the conversation as a console-style trace:
//
//	USER      → <content>
//	ASSISTANT → [tool_call:<server>.<tool>](k="v", ...)
//	          ← <tool response preview>
//	          💬 <assistant text>
//
// Tool-free assistant replies render as `ASSISTANT 💬 <text>`. Tool response
// previews longer than maxPreview characters are truncated with an
// excluded-token suffix.
func (h *History) RenderTrace(maxPreview int) string {
	var lines []string
	inAssistantBlock := false

	for _, msg := range h.messages {
		switch msg.Role {
		case RoleUser:
			lines = append(lines, "USER      → "+msg.Content)
			inAssistantBlock = false

		case RoleAssistant:
			for _, tc := range msg.ToolCalls {
				server := h.serverOfTool(tc.Name)
				prefix := "ASSISTANT → "
				if inAssistantBlock {
					prefix = traceIndent
				}
				lines = append(lines, fmt.Sprintf("%s[tool_call:%s.%s](%s)", prefix, server, tc.Name, formatArgs(tc.Arguments)))
				inAssistantBlock = true
			}
			if msg.Content != "" {
				if inAssistantBlock {
					lines = append(lines, traceIndent+"💬 "+msg.Content)
				} else {
					lines = append(lines, "ASSISTANT 💬 "+msg.Content)
				}
				inAssistantBlock = false
			}

		case RoleTool:
			lines = append(lines, traceIndent+"← "+previewText(msg.Content, maxPreview))
			// remain in the assistant block
		}
	}

	return strings.Join(lines, "\n")
}

func (h *History) serverOfTool(name string) string {
	for _, inv := range h.invocations {
		if inv.ToolName == name {
			return inv.ServerName
		}
	}
	return "unknown"
}

func formatArgs(args map[string]any) string {
	if len(args) == 0 {
		return ""
	}
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=\"%v\"", k, args[k]))
	}
	return strings.Join(parts, ", ")
}

func previewText(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	cut := maxLen - 3 // leave room for the ellipsis
	if cut < 0 {
		cut = 0
	}
	trimmed := string(runes[:cut])
	excluded := len(strings.Fields(s)) - len(strings.Fields(trimmed))
	return fmt.Sprintf("%s... (%d tokens excluded)", trimmed, excluded)
}
