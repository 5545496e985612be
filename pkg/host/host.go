// Package host drives one evaluation case: Host runs the model→tool loop
// for a single prompt, Workflow layers the introspection policy on top to
// turn a question into a final answer.
package host

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/kadirpekel/lev/pkg/agent"
	"github.com/kadirpekel/lev/pkg/chat"
	"github.com/kadirpekel/lev/pkg/llm"
)

// maxStepsError is the fatal diagnostic when the tool loop exhausts its
// budget with calls still pending.
const maxStepsError = "Max steps reached with pending tool calls"

// ToolError records one failed tool call within a Turn.
type ToolError struct {
	ToolCallID string
	ServerName string
	ToolName   string
	Message    string
}

// Turn is the outcome of one Host.Step: the assistant's text, whether tools
// ran, which calls failed, and a fatal error if the step could not finish.
type Turn struct {
	Content    string
	HadTools   bool
	ToolErrors []ToolError
	FatalError string
}

// ToolsFailed reports whether any tool call in the turn failed.
func (t Turn) ToolsFailed() bool { return len(t.ToolErrors) > 0 }

// Broker is the slice of the tool registry the host routes through.
// *mcp.Registry satisfies it.
type Broker interface {
	GatherSpecs(servers []string) []llm.ToolDefinition
	CallTool(ctx context.Context, toolName string, args map[string]any) (string, map[string]any, error)
	ConnectAll(ctx context.Context)
	CloseAll()
}

// Config bounds the inner tool loop.
type Config struct {
	MaxSteps int
}

func DefaultConfig() Config { return Config{MaxSteps: 8} }

// Host owns the model→tool execution loop for one agent.
type Host struct {
	agent   *agent.ToolAgent
	broker  Broker
	servers []string
	config  Config
}

func New(a *agent.ToolAgent, broker Broker, servers []string, config Config) *Host {
	if config.MaxSteps <= 0 {
		config.MaxSteps = DefaultConfig().MaxSteps
	}
	return &Host{agent: a, broker: broker, servers: servers, config: config}
}

func (h *Host) History() *chat.History { return h.agent.History() }

// Reset clears the agent transcript and re-initializes its connections.
func (h *Host) Reset(ctx context.Context) {
	h.agent.Reset()
	h.agent.Initialize(ctx)
}

// WarmUp eagerly connects all tool servers.
func (h *Host) WarmUp(ctx context.Context) {
	if h.broker != nil {
		h.broker.ConnectAll(ctx)
	}
}

// Cleanup disconnects the agent and its tool servers.
func (h *Host) Cleanup() {
	h.agent.Cleanup()
	if h.broker != nil {
		h.broker.CloseAll()
	}
}

// Step performs one round-trip: send the prompt, execute any tool calls the
// model requests, feed results back until the model answers in text or the
// step budget runs out. Failed tool calls do not abort the loop; the model
// sees the error payload and may retry.
func (h *Host) Step(ctx context.Context, prompt string, role chat.Role) Turn {
	if !h.agent.IsInitialized() {
		h.agent.Initialize(ctx)
	}

	tools := h.gatherSpecs()

	resp, err := h.agent.Propose(ctx, prompt, role, tools)
	if err != nil {
		return Turn{FatalError: err.Error()}
	}

	if len(resp.ToolCalls) == 0 {
		if resp.Content == "" {
			return Turn{FatalError: "model returned empty content with no tool calls"}
		}
		h.agent.History().AppendAssistant(resp.Content)
		return Turn{Content: resp.Content}
	}

	var allErrors []ToolError
	hadTools := false

	for counter := 0; counter < h.config.MaxSteps; counter++ {
		fillToolCallIDs(resp.ToolCalls)
		h.agent.History().AppendAssistantToolCall(resp.Content, resp.ToolCalls)
		allErrors = append(allErrors, h.executeToolCalls(ctx, resp.ToolCalls)...)
		hadTools = true

		resp, err = h.agent.ProposeExisting(ctx, tools)
		if err != nil {
			return Turn{HadTools: hadTools, ToolErrors: allErrors, FatalError: err.Error()}
		}

		if len(resp.ToolCalls) == 0 {
			h.agent.History().AppendAssistant(resp.Content)
			return Turn{Content: resp.Content, HadTools: hadTools, ToolErrors: allErrors}
		}
	}

	return Turn{HadTools: hadTools, ToolErrors: allErrors, FatalError: maxStepsError}
}

// fillToolCallIDs assigns ids to tool calls that arrived without one. Local
// OpenAI-compatible servers sometimes omit them, and every tool response
// message must reference an id.
func fillToolCallIDs(calls []chat.ToolCallRef) {
	for i := range calls {
		if calls[i].ID == "" {
			calls[i].ID = "call_" + uuid.NewString()
		}
	}
}

func (h *Host) gatherSpecs() []llm.ToolDefinition {
	if h.broker == nil {
		return nil
	}
	return h.broker.GatherSpecs(h.servers)
}

// executeToolCalls runs each requested call, appends the JSON-serialized
// normalized result as a tool-response message, and records the invocation.
func (h *Host) executeToolCalls(ctx context.Context, calls []chat.ToolCallRef) []ToolError {
	var toolErrors []ToolError

	for _, call := range calls {
		server, result, err := h.callTool(ctx, call)

		if err != nil {
			result = map[string]any{"success": false, "error": err.Error()}
			toolErrors = append(toolErrors, ToolError{
				ToolCallID: call.ID,
				ServerName: server,
				ToolName:   call.Name,
				Message:    err.Error(),
			})
		} else if success, ok := result["success"].(bool); ok && !success {
			message := "Tool call failed"
			if errText, ok := result["error"].(string); ok {
				message = errText
			}
			toolErrors = append(toolErrors, ToolError{
				ToolCallID: call.ID,
				ServerName: server,
				ToolName:   call.Name,
				Message:    message,
			})
		}

		h.agent.History().RecordInvocation(server, call.Name, call.Arguments, result)

		payload, marshalErr := json.Marshal(result)
		if marshalErr != nil {
			payload = []byte(`{"success":false,"error":"unserializable tool result"}`)
		}
		h.agent.History().AppendToolResponse(call.ID, string(payload))
	}

	return toolErrors
}

func (h *Host) callTool(ctx context.Context, call chat.ToolCallRef) (string, map[string]any, error) {
	if h.broker == nil {
		return "", nil, fmt.Errorf("Tool %s not found in any connected MCP client", call.Name)
	}
	return h.broker.CallTool(ctx, call.Name, call.Arguments)
}
