// Package runner drives a full evaluation suite: per-eval agent and host
// construction, workflow execution, scoring with the MCP-usage validity
// check, console reporting, and the result sink.
package runner

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/kadirpekel/lev/pkg/agent"
	"github.com/kadirpekel/lev/pkg/chat"
	"github.com/kadirpekel/lev/pkg/host"
	"github.com/kadirpekel/lev/pkg/llm"
	"github.com/kadirpekel/lev/pkg/logger"
	"github.com/kadirpekel/lev/pkg/manifest"
	"github.com/kadirpekel/lev/pkg/mcp"
	"github.com/kadirpekel/lev/pkg/scoring"
)

// Broker is the registry surface the runner hands to hosts. *mcp.Registry
// satisfies it.
type Broker interface {
	host.Broker
	ListServers() []string
}

// Runner executes every eval in a manifest sequentially.
type Runner struct {
	manifest  *manifest.Manifest
	providers *llm.Registry
	broker    Broker

	sink         Sink
	out          io.Writer
	limit        int
	solverPrompt string
}

// Option configures a Runner.
type Option func(*Runner)

// WithSink attaches a result sink; each result is written as it completes.
func WithSink(sink Sink) Option {
	return func(r *Runner) { r.sink = sink }
}

// WithOutput redirects console reporting (default os.Stdout).
func WithOutput(w io.Writer) Option {
	return func(r *Runner) { r.out = w }
}

// WithLimit caps how many evals run (0 means all).
func WithLimit(limit int) Option {
	return func(r *Runner) { r.limit = limit }
}

// WithSolverPrompt overrides the solver agent's system prompt, typically
// with a resolved persona.
func WithSolverPrompt(prompt string) Option {
	return func(r *Runner) { r.solverPrompt = prompt }
}

func New(m *manifest.Manifest, providers *llm.Registry, broker Broker, opts ...Option) *Runner {
	r := &Runner{
		manifest:  m,
		providers: providers,
		broker:    broker,
		out:       os.Stdout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes the suite and returns every result. Per-eval failures are
// recorded as zero-score results rather than aborting the run.
func (r *Runner) Run(ctx context.Context) ([]Result, error) {
	evals := r.manifest.Evals
	if r.limit > 0 && r.limit < len(evals) {
		evals = evals[:r.limit]
	}

	r.printHeader(evals)
	defer r.broker.CloseAll()

	results := make([]Result, 0, len(evals))
	for i, eval := range evals {
		select {
		case <-ctx.Done():
			return results, ctx.Err()
		default:
		}

		fmt.Fprintf(r.out, "\n[%d/%d] Eval: %s\n", i+1, len(evals), eval.ID)
		fmt.Fprintln(r.out, strings.Repeat("-", 20))
		fmt.Fprintf(r.out, "Question: %s\n", eval.Question)

		result := r.runEval(ctx, eval)
		results = append(results, result)

		if r.sink != nil {
			if err := r.sink.Write([]Result{result}); err != nil {
				logger.GetLogger().Warn("Failed to write result", "eval", eval.ID, "error", err)
			}
		}
		fmt.Fprintln(r.out, strings.Repeat("-", 40))
	}

	fmt.Fprintf(r.out, "\nCompleted %d evaluations for %s\n", len(results), r.manifest.Name)
	return results, nil
}

func (r *Runner) printHeader(evals []manifest.Eval) {
	fmt.Fprintln(r.out, "🧪 MCP Host Evaluation Suite")
	fmt.Fprintf(r.out, "Manifest: %s (%d evals)\n", r.manifest.Name, len(evals))

	servers := "None"
	if names := r.broker.ListServers(); len(names) > 0 {
		servers = strings.Join(names, ", ")
	}
	fmt.Fprintf(r.out, "MCP Servers: [%s]\n", servers)

	fmt.Fprintln(r.out, "Active Providers:")
	info := r.providers.ActiveProviders()
	for _, role := range r.providers.Roles() {
		fmt.Fprintf(r.out, "  %s: %s (%s)\n", role, info[role].Name, info[role].Model)
	}
	fmt.Fprintln(r.out, strings.Repeat("=", 80))
	fmt.Fprintln(r.out)
}

// runEval builds a fresh agent, introspector, host, and workflow for one
// eval, asks the question, and scores the outcome.
func (r *Runner) runEval(ctx context.Context, eval manifest.Eval) Result {
	result := Result{
		EvalID:   eval.ID,
		Question: eval.Question,
		Mcps:     eval.Execution.MCPs,
		McpValid: true,
	}

	workflow, h, err := r.buildWorkflow(eval)
	if err != nil {
		result.Answer = fmt.Sprintf("Error: %v", err)
		result.Reason = err.Error()
		fmt.Fprintf(r.out, "❌ Error in eval %s: %v\n", eval.ID, err)
		return result
	}
	defer h.Cleanup()

	answer := workflow.Ask(ctx, eval.Question)
	fmt.Fprintf(r.out, "Answer: %s\n", answer)

	history := h.History()
	toolCalls := history.Invocations()

	result.Answer = answer
	result.ToolCount = len(toolCalls)
	result.ToolCalls = toolCalls
	result.ConversationTrace = history.RenderTrace(chat.DefaultTracePreview)

	score := r.scoreEval(ctx, eval, history, answer, toolCalls)

	result.McpValid = scoring.ValidateMcpUsage(eval.Execution.MCPs, usedServers(toolCalls))
	if !result.McpValid {
		score.Value /= 2
		score.Reason += "\ninvalid MCP usage"
	}
	result.Score = score.Value
	result.Reason = score.Reason

	fmt.Fprintln(r.out, strings.Repeat("-", 20))
	fmt.Fprintf(r.out, "Score: %.2f\n", score.Value)
	fmt.Fprintln(r.out, strings.Repeat("-", 20))
	fmt.Fprintf(r.out, "Reasoning: \n%s\n", score.Reason)

	return result
}

func (r *Runner) buildWorkflow(eval manifest.Eval) (*host.Workflow, *host.Host, error) {
	solver, err := agent.New(r.providers.Solver(), r.solverPrompt,
		agent.WithBroker(r.broker, eval.Execution.MCPs))
	if err != nil {
		return nil, nil, err
	}

	introspector, err := agent.NewIntrospector(r.providers.Solver())
	if err != nil {
		return nil, nil, err
	}

	config := host.DefaultConfig()
	if eval.Execution.Solver != nil && eval.Execution.Solver.MaxReasoningSteps > 0 {
		config.MaxSteps = eval.Execution.Solver.MaxReasoningSteps
	}

	h := host.New(solver, r.broker, eval.Execution.MCPs, config)
	return host.NewWorkflow(h, introspector, 0), h, nil
}

func (r *Runner) scoreEval(ctx context.Context, eval manifest.Eval, history *chat.History, answer string, toolCalls []chat.ToolInvocation) scoring.Score {
	judge := scoring.NewJudge(r.providers.Judge(), "")

	scorers, err := scoring.BuildScorers(eval.Scoring, judge)
	if err != nil {
		fmt.Fprintf(r.out, "❌ Scoring failed: %v\n", err)
		return scoring.Score{Value: 0.0, Reason: fmt.Sprintf("Scoring failed: %v", err)}
	}

	sc := &scoring.Context{
		History:   history,
		Answer:    answer,
		ToolCalls: toolCalls,
		Expected:  eval.Expectations,
	}
	return scoring.NewScoreFunction(scorers).Score(ctx, sc)
}

func usedServers(calls []chat.ToolInvocation) []string {
	seen := make(map[string]struct{})
	var used []string
	for _, call := range calls {
		if call.ServerName == "" {
			continue
		}
		if _, ok := seen[call.ServerName]; !ok {
			seen[call.ServerName] = struct{}{}
			used = append(used, call.ServerName)
		}
	}
	return used
}

// BuildRegistry constructs an MCP registry from the manifest's server
// configs, wiring per-call telemetry when logging.mcp_calls is enabled.
func BuildRegistry(m *manifest.Manifest) *mcp.Registry {
	var telemetry *mcp.CallLogger
	if m.McpCallLogging() {
		telemetry = mcp.NewCallLogger(m.Name + "_mcp_log.csv")
	}

	registry := mcp.NewRegistry()
	for _, cfg := range m.Servers() {
		client := mcp.NewClient(cfg)
		if telemetry != nil {
			client.SetTelemetry(telemetry)
		}
		registry.Register(client)
	}
	return registry
}
