package host

import (
	"context"

	"github.com/kadirpekel/lev/pkg/agent"
	"github.com/kadirpekel/lev/pkg/chat"
)

const (
	defaultFollowup  = "Clarify and answer precisely."
	defaultNext      = "Proceed."
	synthesisRequest = "Synthesize the final answer using the tool results."
	noFinalAnswer    = "No final answer."
)

// Workflow composes a Host with an Introspector to answer one question.
// The introspector validates tools-free answers and decides whether to keep
// going after tool execution; its guidance enters the transcript as
// developer messages so it never masquerades as the end user.
type Workflow struct {
	host         *Host
	introspector *agent.Introspector
	maxSteps     int
}

func NewWorkflow(h *Host, introspector *agent.Introspector, maxSteps int) *Workflow {
	if maxSteps <= 0 {
		maxSteps = DefaultConfig().MaxSteps
	}
	return &Workflow{host: h, introspector: introspector, maxSteps: maxSteps}
}

func (w *Workflow) History() *chat.History { return w.host.History() }

// Ask drives the question to a final answer. A fatal turn yields a
// diagnostic answer the runner scores as zero.
func (w *Workflow) Ask(ctx context.Context, question string) string {
	w.host.Reset(ctx)

	role, prompt := chat.RoleUser, question
	done := false

	for i := 0; i < w.maxSteps; i++ {
		turn := w.host.Step(ctx, prompt, role)
		if turn.FatalError != "" {
			return "HostError: " + turn.FatalError
		}

		if !turn.HadTools {
			// Only validate if the previous iteration did not already
			// declare completion.
			if done {
				return turn.Content
			}
			v := w.introspector.Validate(ctx, w.trace(), turn.Content)
			if v.Valid {
				return turn.Content
			}
			role, prompt = chat.RoleDeveloper, withDefault(v.Followup, defaultFollowup)
			continue
		}

		plan := w.introspector.PlanNext(ctx, w.trace())
		if plan.Continue {
			role, prompt = chat.RoleDeveloper, withDefault(plan.NextPrompt, defaultNext)
			continue
		}

		role, prompt = chat.RoleDeveloper, synthesisRequest
		done = true
	}

	if content := w.host.History().LastAssistantContent(); content != "" {
		return content
	}
	return noFinalAnswer
}

func (w *Workflow) trace() string {
	return w.host.History().RenderTrace(chat.DefaultTracePreview)
}

func withDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
