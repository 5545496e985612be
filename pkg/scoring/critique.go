package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kadirpekel/lev/pkg/chat"
	"github.com/kadirpekel/lev/pkg/prompts"
)

const (
	// critiqueTokenBudget caps the critique prompt; over it, the whole
	// prompt goes through the compressor.
	critiqueTokenBudget = 10_000

	// templateReserve keeps room for the template scaffolding when sizing
	// the tool-call trace.
	templateReserve = 200
)

// LLMCritiqueScorer asks the judge whether the assistant adequately
// answered the user.
type LLMCritiqueScorer struct {
	judge *Judge
}

var _ Scorer = (*LLMCritiqueScorer)(nil)

func NewLLMCritiqueScorer(judge *Judge) *LLMCritiqueScorer {
	return &LLMCritiqueScorer{judge: judge}
}

func (s *LLMCritiqueScorer) DisplayName() string { return "llm_critique" }

func (s *LLMCritiqueScorer) Score(ctx context.Context, sc *Context) Score {
	userMessages := sc.History.UserMessages()
	if len(userMessages) == 0 {
		return Score{0.0, "No user query found"}
	}
	userQuery := userMessages[0].Content
	trace := sc.History.RenderTrace(chat.DefaultTracePreview)

	remainingBudget := critiqueTokenBudget - len(userQuery) - len(trace) - templateReserve
	if remainingBudget < 0 {
		remainingBudget = 0
	}
	toolCallsTrace := serializeToolCalls(sc.ToolCalls, remainingBudget)

	prompt := strings.NewReplacer(
		"{user_query}", userQuery,
		"{conversation}", trace,
		"{tool_calls_trace}", toolCallsTrace,
	).Replace(prompts.CritiqueTemplate)

	if CountTokens(prompt) > critiqueTokenBudget {
		prompt = s.judge.Compressor().CompressPrompt(ctx, prompt)
	}

	text, err := s.judge.complete(ctx, prompt)
	if err != nil {
		return Score{0.0, fmt.Sprintf("Evaluation failed: %v", err)}
	}

	var verdict struct {
		Answered      bool    `json:"answered"`
		Score         float64 `json:"score"`
		Justification string  `json:"justification"`
	}
	if err := json.Unmarshal([]byte(text), &verdict); err != nil {
		return Score{0.0, fmt.Sprintf("Evaluation failed: %v", err)}
	}

	justification := verdict.Justification
	if justification == "" {
		justification = "No justification provided"
	}
	return Score{verdict.Score, justification}
}

// serializeToolCalls renders the invocation log as JSON under a character
// budget, degrading in stages: full payloads, then without heavy result
// fields, then function names and arguments only, then a summary line.
func serializeToolCalls(calls []chat.ToolInvocation, maxLength int) string {
	if len(calls) == 0 {
		return "None"
	}

	full := marshalIndent(invocationMaps(calls))
	if len(full) <= maxLength {
		return full
	}

	heavyKeys := []string{"response", "content", "tool_result", "result", "output", "return_value"}
	pruned := invocationMaps(calls)
	for _, call := range pruned {
		for _, key := range heavyKeys {
			delete(call, key)
		}
	}
	prunedJSON := marshalIndent(pruned)
	if len(prunedJSON) <= maxLength {
		return prunedJSON
	}

	functionsOnly := make([]map[string]any, 0, len(calls))
	for _, call := range calls {
		functionsOnly = append(functionsOnly, map[string]any{
			"function": call.ToolName,
			"args":     call.Arguments,
		})
	}
	functionsJSON := marshalIndent(functionsOnly)
	if len(functionsJSON) <= maxLength {
		return functionsJSON
	}

	return fmt.Sprintf("[Tool calls omitted: %d calls, %d chars over %d limit]",
		len(calls), len(full), maxLength)
}

func invocationMaps(calls []chat.ToolInvocation) []map[string]any {
	out := make([]map[string]any, 0, len(calls))
	for _, call := range calls {
		out = append(out, map[string]any{
			"tool_name":   call.ToolName,
			"server_name": call.ServerName,
			"arguments":   call.Arguments,
			"result":      call.Result,
		})
	}
	return out
}

func marshalIndent(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
