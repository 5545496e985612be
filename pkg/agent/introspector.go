package agent

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/kadirpekel/lev/pkg/chat"
	"github.com/kadirpekel/lev/pkg/llm"
	"github.com/kadirpekel/lev/pkg/prompts"
)

const defaultFollowup = "Please provide more details."

// Validation is the outcome of an answer-validation pass.
type Validation struct {
	Valid    bool
	Reason   string
	Followup string
}

// Plan is the outcome of a continue-or-finish pass after tool execution.
type Plan struct {
	Continue   bool
	Reason     string
	NextPrompt string
}

// Introspector wraps a secondary agent that judges the primary agent's
// progress. Both modes fail open: a model error or malformed JSON never
// blocks the run.
type Introspector struct {
	agent *ToolAgent
}

// NewIntrospector builds an introspector over its own agent with the
// introspection system prompt. It shares no state with the primary agent.
func NewIntrospector(provider llm.Provider) (*Introspector, error) {
	a, err := New(provider, prompts.IntrospectorSystemPrompt)
	if err != nil {
		return nil, err
	}
	return &Introspector{agent: a}, nil
}

// Validate asks whether candidateAnswer settles the conversation. Parse
// failures and model errors are treated as valid to avoid infinite loops.
func (i *Introspector) Validate(ctx context.Context, trace, candidateAnswer string) Validation {
	if i == nil || i.agent == nil {
		return Validation{Valid: true}
	}

	prompt := strings.NewReplacer(
		"{conversation_history}", trace,
		"{response_to_validate}", candidateAnswer,
	).Replace(prompts.AnswerValidationTemplate)

	i.agent.Reset()
	resp, err := i.agent.Propose(ctx, prompt, chat.RoleUser, nil)
	if err != nil || resp == nil {
		return Validation{Valid: true}
	}

	var decision struct {
		Valid            *bool  `json:"valid"`
		Reason           string `json:"reason"`
		FollowupQuestion string `json:"followup_question"`
	}
	if err := json.Unmarshal([]byte(extractJSON(resp.Content)), &decision); err != nil {
		return Validation{Valid: true}
	}
	if decision.Valid == nil || *decision.Valid {
		return Validation{Valid: true, Reason: decision.Reason}
	}

	followup := decision.FollowupQuestion
	if followup == "" {
		followup = defaultFollowup
	}
	return Validation{Valid: false, Reason: decision.Reason, Followup: followup}
}

// PlanNext asks whether the primary agent should keep going after tool
// execution. Parse failures and model errors mean stop.
func (i *Introspector) PlanNext(ctx context.Context, trace string) Plan {
	if i == nil || i.agent == nil {
		return Plan{Continue: false}
	}

	i.agent.Reset()
	resp, err := i.agent.Propose(ctx, trace, chat.RoleUser, nil)
	if err != nil || resp == nil {
		return Plan{Continue: false}
	}

	var decision struct {
		Continue   bool   `json:"continue"`
		Reason     string `json:"reason"`
		NextPrompt string `json:"next_prompt"`
	}
	if err := json.Unmarshal([]byte(extractJSON(resp.Content)), &decision); err != nil {
		return Plan{Continue: false}
	}
	return Plan{Continue: decision.Continue, Reason: decision.Reason, NextPrompt: decision.NextPrompt}
}

// extractJSON trims markdown code fences some models wrap around JSON.
func extractJSON(content string) string {
	s := strings.TrimSpace(content)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}
	if s == "" {
		return "{}"
	}
	return s
}
