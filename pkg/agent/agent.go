// Package agent pairs a model provider with a chat transcript. ToolAgent is
// the primary tool-calling agent; Introspector is the secondary agent that
// gates whether the primary one should continue.
package agent

import (
	"context"
	"fmt"

	"github.com/kadirpekel/lev/pkg/chat"
	"github.com/kadirpekel/lev/pkg/llm"
	"github.com/kadirpekel/lev/pkg/prompts"
)

// ToolBroker is the slice of the tool registry an agent needs: the tool menu
// plus connection lifecycle. *mcp.Registry satisfies it.
type ToolBroker interface {
	GatherSpecs(servers []string) []llm.ToolDefinition
	ConnectAll(ctx context.Context)
	CloseAll()
}

// ToolAgent holds a model provider, a system prompt, and the transcript of
// one conversation. It proposes model responses; writing assistant turns
// back into the transcript is the caller's job, which lets the host run
// several model and tool iterations inside one step.
type ToolAgent struct {
	provider     llm.Provider
	systemPrompt string
	broker       ToolBroker
	servers      []string
	history      *chat.History
	initialized  bool
}

// Option configures a ToolAgent.
type Option func(*ToolAgent)

// WithBroker attaches a tool broker and the server names whose tools the
// agent may use.
func WithBroker(broker ToolBroker, servers []string) Option {
	return func(a *ToolAgent) {
		a.broker = broker
		a.servers = servers
	}
}

// New builds a ToolAgent. The provider must support tool calling; an empty
// system prompt falls back to the default solver prompt.
func New(provider llm.Provider, systemPrompt string, opts ...Option) (*ToolAgent, error) {
	if provider == nil {
		return nil, fmt.Errorf("agent: provider is required")
	}
	if !provider.SupportsTools() {
		return nil, fmt.Errorf("provider %s does not support tool calling", provider.Name())
	}
	if systemPrompt == "" {
		systemPrompt = prompts.SolverSystemPrompt
	}

	a := &ToolAgent{
		provider:     provider,
		systemPrompt: systemPrompt,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.Reset()
	return a, nil
}

func (a *ToolAgent) History() *chat.History { return a.history }

func (a *ToolAgent) Provider() llm.Provider { return a.provider }

func (a *ToolAgent) IsInitialized() bool { return a.initialized }

// Reset clears the transcript and re-seeds the system message.
func (a *ToolAgent) Reset() {
	a.history = chat.NewHistory()
	a.history.AppendSystem(a.systemPrompt)
}

// Initialize eagerly connects the agent's tool servers.
func (a *ToolAgent) Initialize(ctx context.Context) {
	if a.broker != nil {
		a.broker.ConnectAll(ctx)
	}
	a.initialized = true
}

// Cleanup disconnects the agent's tool servers.
func (a *ToolAgent) Cleanup() {
	if a.broker != nil {
		a.broker.CloseAll()
	}
	a.initialized = false
}

// Propose appends a message with the supplied role and asks the model for
// its next move. The raw response is returned without touching the
// transcript further. A nil tools slice means "use the broker's menu".
func (a *ToolAgent) Propose(ctx context.Context, prompt string, role chat.Role, tools []llm.ToolDefinition) (*llm.ModelResponse, error) {
	a.history.Append(role, prompt)

	if tools == nil && a.broker != nil {
		tools = a.broker.GatherSpecs(a.servers)
	}

	messages := a.history.ToModelMessages(true, true)
	return a.provider.ChatComplete(ctx, messages, tools)
}

// ProposeExisting re-invokes the model on the transcript as it stands,
// without appending a new prompt. Tool responses already in the transcript
// are the stimulus.
func (a *ToolAgent) ProposeExisting(ctx context.Context, tools []llm.ToolDefinition) (*llm.ModelResponse, error) {
	messages := a.history.ToModelMessages(true, true)
	return a.provider.ChatComplete(ctx, messages, tools)
}
