package mcp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/lev/pkg/llm"
)

// fakeClient is an in-process ToolClient for routing tests.
type fakeClient struct {
	name      string
	tools     []string
	connected bool
	calls     []string
	result    map[string]any
	err       error
}

func (f *fakeClient) ServerName() string                  { return f.name }
func (f *fakeClient) IsConnected() bool                   { return f.connected }
func (f *fakeClient) Connect(ctx context.Context) error   { f.connected = true; return nil }
func (f *fakeClient) Disconnect() error                   { f.connected = false; return nil }
func (f *fakeClient) ListTools() []string                 { return f.tools }

func (f *fakeClient) GetToolSpecs() []llm.ToolDefinition {
	specs := make([]llm.ToolDefinition, 0, len(f.tools))
	for _, name := range f.tools {
		specs = append(specs, llm.ToolDefinition{
			Type:     "function",
			Function: llm.ToolDefinitionSpec{Name: name},
		})
	}
	return specs
}

func (f *fakeClient) CallTool(ctx context.Context, name string, args map[string]any) (map[string]any, error) {
	f.calls = append(f.calls, name)
	return f.result, f.err
}

func TestRegistryFindToolServer(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&fakeClient{name: "weather", tools: []string{"current_temp"}, connected: true})
	reg.Register(&fakeClient{name: "fs", tools: []string{"read_file", "list_dir"}, connected: true})

	server, ok := reg.FindToolServer("read_file")
	require.True(t, ok)
	assert.Equal(t, "fs", server)

	_, ok = reg.FindToolServer("no_such_tool")
	assert.False(t, ok)
}

func TestRegistryFindToolServerSkipsDisconnected(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&fakeClient{name: "fs", tools: []string{"read_file"}, connected: false})

	_, ok := reg.FindToolServer("read_file")
	assert.False(t, ok)
}

func TestRegistryDeterministicResolution(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&fakeClient{name: "beta", tools: []string{"shared"}, connected: true})
	reg.Register(&fakeClient{name: "alpha", tools: []string{"shared"}, connected: true})

	// Sorted scan order makes the first owner stable.
	server, ok := reg.FindToolServer("shared")
	require.True(t, ok)
	assert.Equal(t, "alpha", server)
}

func TestRegistryCallTool(t *testing.T) {
	fs := &fakeClient{
		name: "fs", tools: []string{"read_file"}, connected: true,
		result: map[string]any{"content": "data", "success": true},
	}
	reg := NewRegistry()
	reg.Register(fs)

	server, result, err := reg.CallTool(context.Background(), "read_file", map[string]any{"path": "/tmp/x"})
	require.NoError(t, err)
	assert.Equal(t, "fs", server)
	assert.Equal(t, true, result["success"])
	assert.Equal(t, []string{"read_file"}, fs.calls)
}

func TestRegistryCallToolNotFound(t *testing.T) {
	reg := NewRegistry()
	_, _, err := reg.CallTool(context.Background(), "missing", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Tool missing not found in any connected MCP client")
}

func TestRegistryGatherSpecs(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&fakeClient{name: "fs", tools: []string{"read_file", "list_dir"}, connected: true})
	reg.Register(&fakeClient{name: "weather", tools: []string{"current_temp"}, connected: true})
	reg.Register(&fakeClient{name: "down", tools: []string{"never"}, connected: false})

	specs := reg.GatherSpecs([]string{"fs", "weather", "down", "unknown"})
	require.Len(t, specs, 3)

	names := make([]string, 0, len(specs))
	for _, s := range specs {
		names = append(names, s.Function.Name)
	}
	assert.Equal(t, []string{"read_file", "list_dir", "current_temp"}, names)
}

func TestRegistryConnectAndCloseAll(t *testing.T) {
	a := &fakeClient{name: "a"}
	b := &fakeClient{name: "b", connected: true}
	reg := NewRegistry()
	reg.Register(a)
	reg.Register(b)

	reg.ConnectAll(context.Background())
	assert.True(t, a.connected)
	assert.True(t, b.connected)

	reg.CloseAll()
	assert.False(t, a.connected)
	assert.False(t, b.connected)

	assert.Equal(t, []string{"a", "b"}, reg.ListServers())
}
