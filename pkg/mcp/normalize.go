package mcp

import (
	"encoding/json"
	"strings"

	mcpwire "github.com/mark3labs/mcp-go/mcp"
)

// Normalize flattens a raw tool response into a map with a success flag and
// either a result, content, or error field. Structured content wins over
// text blocks; text blocks are treated as possibly-JSON payloads.
//
// findErrors gates the heuristic that re-classifies a plain-text result
// beginning with "error" as a failure. Scorers depend on the success flag,
// so the heuristic defaults to on.
func Normalize(resp *mcpwire.CallToolResult, findErrors bool) map[string]any {
	if resp == nil {
		return map[string]any{"success": false, "error": "No response from server"}
	}

	texts := textBlocks(resp)

	if resp.IsError {
		errText := "unknown error"
		if len(texts) > 0 {
			errText = texts[0]
		}
		return map[string]any{"success": false, "error": errText}
	}

	if out := normalizeStructured(resp.StructuredContent); out != nil {
		return out
	}

	var out map[string]any
	switch len(texts) {
	case 0:
		return map[string]any{"success": false, "error": "No response from server"}

	case 1:
		out = normalizeText(texts[0])

	default:
		items := make([]any, 0, len(texts))
		for _, text := range texts {
			var parsed any
			if err := json.Unmarshal([]byte(text), &parsed); err == nil {
				items = append(items, parsed)
			} else {
				items = append(items, text)
			}
		}
		out = map[string]any{"result": items, "success": true}
	}

	if findErrors {
		if content, ok := out["content"].(string); ok {
			if looksLikeError(content) {
				return map[string]any{"success": false, "error": content}
			}
		}
	}
	return out
}

func textBlocks(resp *mcpwire.CallToolResult) []string {
	var texts []string
	for _, content := range resp.Content {
		if textContent, ok := content.(mcpwire.TextContent); ok {
			texts = append(texts, textContent.Text)
		}
	}
	return texts
}

func normalizeStructured(sc any) map[string]any {
	switch v := sc.(type) {
	case nil:
		return nil
	case map[string]any:
		if len(v) == 0 {
			return nil
		}
		result := any(v)
		if r, ok := v["result"]; ok {
			result = r
		}
		return map[string]any{"result": result, "success": true}
	default:
		return map[string]any{"result": v, "success": true}
	}
}

func normalizeText(text string) map[string]any {
	var parsed any
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return map[string]any{"content": text, "success": true}
	}

	switch v := parsed.(type) {
	case map[string]any:
		if _, ok := v["success"]; !ok {
			v["success"] = true
		}
		return v
	default:
		return map[string]any{"result": v, "success": true}
	}
}

func looksLikeError(content string) bool {
	head := content
	if len(head) > 10 {
		head = head[:10]
	}
	return strings.HasPrefix(strings.ToLower(head), "error")
}
