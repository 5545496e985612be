package mcp

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kadirpekel/lev/pkg/llm"
	"github.com/kadirpekel/lev/pkg/logger"
)

// ToolClient is the per-server contract the registry routes through.
// *Client satisfies it; tests substitute in-process fakes.
type ToolClient interface {
	ServerName() string
	IsConnected() bool
	Connect(ctx context.Context) error
	Disconnect() error
	ListTools() []string
	GetToolSpecs() []llm.ToolDefinition
	CallTool(ctx context.Context, name string, args map[string]any) (map[string]any, error)
}

// Registry holds the connected tool clients for one run and routes tool
// calls to the owning client.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]ToolClient
}

func NewRegistry() *Registry {
	return &Registry{clients: make(map[string]ToolClient)}
}

// Register adds a client under its server name, replacing any previous
// client with that name.
func (r *Registry) Register(client ToolClient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[client.ServerName()] = client
}

// GetClient returns the client for a server name.
func (r *Registry) GetClient(name string) (ToolClient, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[name]
	return c, ok
}

// ListServers returns the registered server names, sorted.
func (r *Registry) ListServers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FindToolServer resolves a tool name to the server that advertises it.
// Servers are scanned in sorted name order so resolution is deterministic
// when two servers advertise the same tool.
func (r *Registry) FindToolServer(toolName string) (string, bool) {
	for _, server := range r.ListServers() {
		client, ok := r.GetClient(server)
		if !ok || !client.IsConnected() {
			continue
		}
		for _, name := range client.ListTools() {
			if name == toolName {
				return server, true
			}
		}
	}
	return "", false
}

// GatherSpecs collects the tool definitions advertised by the named servers.
// Unknown or disconnected servers contribute nothing.
func (r *Registry) GatherSpecs(servers []string) []llm.ToolDefinition {
	var specs []llm.ToolDefinition
	for _, server := range servers {
		client, ok := r.GetClient(server)
		if !ok || !client.IsConnected() {
			continue
		}
		specs = append(specs, client.GetToolSpecs()...)
	}
	return specs
}

// CallTool routes one tool call to its owning server. The returned server
// name identifies the client that handled the call.
func (r *Registry) CallTool(ctx context.Context, toolName string, args map[string]any) (string, map[string]any, error) {
	server, ok := r.FindToolServer(toolName)
	if !ok {
		return "", nil, fmt.Errorf("Tool %s not found in any connected MCP client", toolName)
	}
	client, _ := r.GetClient(server)
	result, err := client.CallTool(ctx, toolName, args)
	return server, result, err
}

// ConnectAll connects every registered client. A client that fails to
// connect is left Closed; its tools simply become unresolvable.
func (r *Registry) ConnectAll(ctx context.Context) {
	for _, server := range r.ListServers() {
		client, _ := r.GetClient(server)
		if client.IsConnected() {
			continue
		}
		if err := client.Connect(ctx); err != nil {
			logger.GetLogger().Warn("MCP server unavailable", "name", server, "error", err)
		}
	}
}

// CloseAll disconnects every registered client.
func (r *Registry) CloseAll() {
	for _, server := range r.ListServers() {
		client, _ := r.GetClient(server)
		_ = client.Disconnect()
	}
}
