package host

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/lev/pkg/agent"
	"github.com/kadirpekel/lev/pkg/chat"
	"github.com/kadirpekel/lev/pkg/llm"
)

// scriptedProvider replays responses in order; the last one repeats.
type scriptedProvider struct {
	responses []*llm.ModelResponse
	err       error
	calls     int
}

func (p *scriptedProvider) Name() string         { return "scripted" }
func (p *scriptedProvider) DefaultModel() string { return "test-model" }
func (p *scriptedProvider) SupportsTools() bool  { return true }

func (p *scriptedProvider) ChatComplete(ctx context.Context, messages []chat.Message, tools []llm.ToolDefinition) (*llm.ModelResponse, error) {
	if p.err != nil {
		return nil, p.err
	}
	idx := p.calls
	if idx >= len(p.responses) {
		idx = len(p.responses) - 1
	}
	p.calls++
	return p.responses[idx], nil
}

// scriptedBroker resolves every tool to one fake server and returns canned
// results per tool name.
type scriptedBroker struct {
	server  string
	results map[string]map[string]any
	errs    map[string]error
	calls   []string
}

func (b *scriptedBroker) GatherSpecs(servers []string) []llm.ToolDefinition {
	var specs []llm.ToolDefinition
	for name := range b.results {
		specs = append(specs, llm.ToolDefinition{
			Type:     "function",
			Function: llm.ToolDefinitionSpec{Name: name},
		})
	}
	return specs
}

func (b *scriptedBroker) CallTool(ctx context.Context, toolName string, args map[string]any) (string, map[string]any, error) {
	b.calls = append(b.calls, toolName)
	if err, ok := b.errs[toolName]; ok {
		return "", nil, err
	}
	result, ok := b.results[toolName]
	if !ok {
		return "", nil, fmt.Errorf("Tool %s not found in any connected MCP client", toolName)
	}
	return b.server, result, nil
}

func (b *scriptedBroker) ConnectAll(ctx context.Context) {}
func (b *scriptedBroker) CloseAll()                      {}

func newHost(t *testing.T, provider llm.Provider, broker Broker, maxSteps int) *Host {
	t.Helper()
	a, err := agent.New(provider, "")
	require.NoError(t, err)
	return New(a, broker, []string{"calc"}, Config{MaxSteps: maxSteps})
}

func TestStepPlainAnswer(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.ModelResponse{{Content: "Paris"}}}
	h := newHost(t, provider, &scriptedBroker{}, 8)

	turn := h.Step(context.Background(), "Capital of France?", chat.RoleUser)

	assert.Equal(t, "Paris", turn.Content)
	assert.False(t, turn.HadTools)
	assert.Empty(t, turn.FatalError)

	msgs := h.History().Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, chat.RoleAssistant, msgs[2].Role)
}

func TestStepSingleToolCall(t *testing.T) {
	call := chat.ToolCallRef{ID: "call_1", Name: "add", Arguments: map[string]any{"a": float64(2), "b": float64(3)}}
	provider := &scriptedProvider{responses: []*llm.ModelResponse{
		{ToolCalls: []chat.ToolCallRef{call}},
		{Content: "5"},
	}}
	broker := &scriptedBroker{
		server:  "calc",
		results: map[string]map[string]any{"add": {"result": float64(5), "success": true}},
	}
	h := newHost(t, provider, broker, 8)

	turn := h.Step(context.Background(), "What is 2+3? Use the add tool.", chat.RoleUser)

	assert.Equal(t, "5", turn.Content)
	assert.True(t, turn.HadTools)
	assert.False(t, turn.ToolsFailed())
	assert.Equal(t, []string{"add"}, broker.calls)

	// system, user, assistant-with-tool-call, tool, assistant
	msgs := h.History().Messages()
	require.Len(t, msgs, 5)
	assert.Equal(t, chat.RoleTool, msgs[3].Role)
	assert.Equal(t, "call_1", msgs[3].ToolCallID)

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(msgs[3].Content), &payload))
	assert.Equal(t, true, payload["success"])

	// the requested call is reachable verbatim on the assistant message
	require.Len(t, msgs[2].ToolCalls, 1)
	assert.Equal(t, call, msgs[2].ToolCalls[0])

	invs := h.History().Invocations()
	require.Len(t, invs, 1)
	assert.Equal(t, "calc", invs[0].ServerName)
	assert.Equal(t, "add", invs[0].ToolName)
}

func TestStepFillsMissingToolCallIDs(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.ModelResponse{
		{ToolCalls: []chat.ToolCallRef{{Name: "add", Arguments: map[string]any{}}}},
		{Content: "done"},
	}}
	broker := &scriptedBroker{
		server:  "calc",
		results: map[string]map[string]any{"add": {"result": float64(1), "success": true}},
	}
	h := newHost(t, provider, broker, 8)

	h.Step(context.Background(), "q", chat.RoleUser)

	msgs := h.History().Messages()
	require.Len(t, msgs, 5)
	require.Len(t, msgs[2].ToolCalls, 1)
	assert.True(t, strings.HasPrefix(msgs[2].ToolCalls[0].ID, "call_"))
	assert.Equal(t, msgs[2].ToolCalls[0].ID, msgs[3].ToolCallID)
}

func TestStepToolFailureDoesNotAbort(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.ModelResponse{
		{ToolCalls: []chat.ToolCallRef{{ID: "c1", Name: "read_file", Arguments: map[string]any{"path": "/x"}}}},
		{Content: "The file does not exist."},
	}}
	broker := &scriptedBroker{
		server:  "fs",
		results: map[string]map[string]any{"read_file": {"success": false, "error": "no such file"}},
	}
	h := newHost(t, provider, broker, 8)

	turn := h.Step(context.Background(), "Read /x", chat.RoleUser)

	assert.Equal(t, "The file does not exist.", turn.Content)
	assert.True(t, turn.ToolsFailed())
	require.Len(t, turn.ToolErrors, 1)
	assert.Equal(t, "c1", turn.ToolErrors[0].ToolCallID)
	assert.Equal(t, "fs", turn.ToolErrors[0].ServerName)
	assert.Equal(t, "no such file", turn.ToolErrors[0].Message)

	// the error payload is in the transcript so the model can observe it
	msgs := h.History().Messages()
	assert.Contains(t, msgs[3].Content, "no such file")
}

func TestStepToolNotFound(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.ModelResponse{
		{ToolCalls: []chat.ToolCallRef{{ID: "c1", Name: "mystery"}}},
		{Content: "giving up"},
	}}
	broker := &scriptedBroker{server: "fs", results: map[string]map[string]any{}}
	h := newHost(t, provider, broker, 8)

	turn := h.Step(context.Background(), "do it", chat.RoleUser)

	require.Len(t, turn.ToolErrors, 1)
	assert.Contains(t, turn.ToolErrors[0].Message, "Tool mystery not found in any connected MCP client")
	assert.Empty(t, turn.FatalError, "unresolvable tools are not fatal to the case")
}

func TestStepMaxStepsExhaustion(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.ModelResponse{
		{ToolCalls: []chat.ToolCallRef{{ID: "c1", Name: "add", Arguments: map[string]any{}}}},
	}}
	broker := &scriptedBroker{
		server:  "calc",
		results: map[string]map[string]any{"add": {"result": float64(1), "success": true}},
	}
	h := newHost(t, provider, broker, 2)

	turn := h.Step(context.Background(), "loop forever", chat.RoleUser)

	assert.Equal(t, "Max steps reached with pending tool calls", turn.FatalError)
	assert.True(t, turn.HadTools)
	assert.Empty(t, turn.Content)
	assert.Len(t, broker.calls, 2)
}

func TestStepModelErrorIsFatal(t *testing.T) {
	provider := &scriptedProvider{err: errors.New("connection refused")}
	h := newHost(t, provider, &scriptedBroker{}, 8)

	turn := h.Step(context.Background(), "q", chat.RoleUser)
	assert.Equal(t, "connection refused", turn.FatalError)
}

func TestStepEmptyAnswerIsFatal(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.ModelResponse{{Content: ""}}}
	h := newHost(t, provider, &scriptedBroker{}, 8)

	turn := h.Step(context.Background(), "q", chat.RoleUser)
	assert.Contains(t, turn.FatalError, "empty content")
}

func TestTranscriptTimestampsNondecreasing(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.ModelResponse{
		{ToolCalls: []chat.ToolCallRef{{ID: "c1", Name: "add", Arguments: map[string]any{}}}},
		{Content: "done"},
	}}
	broker := &scriptedBroker{
		server:  "calc",
		results: map[string]map[string]any{"add": {"result": float64(1), "success": true}},
	}
	h := newHost(t, provider, broker, 8)
	h.Step(context.Background(), "q", chat.RoleUser)

	msgs := h.History().Messages()
	for i := 1; i < len(msgs); i++ {
		assert.False(t, msgs[i].Timestamp.Before(msgs[i-1].Timestamp))
	}
}
