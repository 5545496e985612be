// Package mcp manages tool-server subprocesses. Each Client owns one child
// process and its stdio MCP session; the Registry routes tool calls to the
// owning client and fans specs out to the model boundary.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	mcpwire "github.com/mark3labs/mcp-go/mcp"

	"github.com/kadirpekel/lev/pkg/llm"
	"github.com/kadirpekel/lev/pkg/logger"
)

const (
	clientName      = "lev"
	clientVersion   = "0.1.0"
	protocolVersion = "2024-11-05"

	// suppressOutputEnv tells well-behaved tool servers to keep their own
	// stdout chatter off the wire.
	suppressOutputEnv = "MCP_SUPPRESS_OUTPUT=1"
)

// State is the lifecycle phase of a Client.
type State int

const (
	Unconnected State = iota
	Connecting
	Ready
	Closing
	Closed
)

func (s State) String() string {
	switch s {
	case Unconnected:
		return "unconnected"
	case Connecting:
		return "connecting"
	case Ready:
		return "ready"
	case Closing:
		return "closing"
	default:
		return "closed"
	}
}

// ServerConfig describes one tool-server subprocess.
type ServerConfig struct {
	Name    string            `json:"name"`
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`

	// SuppressOutput controls the MCP_SUPPRESS_OUTPUT=1 sentinel that asks
	// the server to keep its own stdout chatter off the wire. Defaults to on.
	SuppressOutput *bool `json:"suppress_output,omitempty"`

	// FindErrorsInContent gates the heuristic that re-classifies tool
	// results whose text begins with "error" as failures. Defaults to on.
	FindErrorsInContent *bool `json:"find_errors_in_content,omitempty"`
}

func (c ServerConfig) suppressOutput() bool {
	return c.SuppressOutput == nil || *c.SuppressOutput
}

func (c ServerConfig) findErrors() bool {
	return c.FindErrorsInContent == nil || *c.FindErrorsInContent
}

// ConnectError reports a failed connect with the original cause chained.
type ConnectError struct {
	Server string
	Err    error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("failed to connect to MCP server %q: %v", e.Server, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// Client owns one tool-server subprocess and its MCP session.
type Client struct {
	cfg ServerConfig

	mu           sync.Mutex
	state        State
	session      *client.Client
	instructions string
	tools        []mcpwire.Tool

	telemetry *CallLogger
}

func NewClient(cfg ServerConfig) *Client {
	return &Client{cfg: cfg, state: Unconnected}
}

// SetTelemetry attaches an optional call logger; every normalized tool
// response is appended to it.
func (c *Client) SetTelemetry(logger *CallLogger) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.telemetry = logger
}

func (c *Client) ServerName() string { return c.cfg.Name }

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) IsConnected() bool { return c.State() == Ready }

// Instructions returns the server-advertised usage instructions from the
// initialize handshake, if any.
func (c *Client) Instructions() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.instructions
}

// Connect spawns the subprocess and performs the MCP handshake. Any failure
// leaves the client Closed after best-effort cleanup.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state == Ready {
		c.mu.Unlock()
		return nil
	}
	c.state = Connecting
	c.mu.Unlock()

	session, err := client.NewStdioMCPClient(c.cfg.Command, c.buildEnv(), c.cfg.Args...)
	if err != nil {
		return c.failConnect(fmt.Errorf("failed to create MCP client: %w", err))
	}

	if err := session.Start(ctx); err != nil {
		session.Close()
		return c.failConnect(fmt.Errorf("failed to start MCP client: %w", err))
	}

	initReq := mcpwire.InitializeRequest{}
	initReq.Params.ClientInfo = mcpwire.Implementation{
		Name:    clientName,
		Version: clientVersion,
	}
	initReq.Params.ProtocolVersion = protocolVersion

	initResp, err := session.Initialize(ctx, initReq)
	if err != nil {
		session.Close()
		return c.failConnect(fmt.Errorf("failed to initialize MCP: %w", err))
	}

	listResp, err := session.ListTools(ctx, mcpwire.ListToolsRequest{})
	if err != nil {
		session.Close()
		return c.failConnect(fmt.Errorf("failed to list tools: %w", err))
	}

	c.mu.Lock()
	c.session = session
	c.instructions = initResp.Instructions
	c.tools = listResp.Tools
	c.state = Ready
	c.mu.Unlock()

	logger.GetLogger().Info("Connected to MCP server",
		"name", c.cfg.Name, "command", c.cfg.Command, "tools", len(listResp.Tools))
	return nil
}

func (c *Client) failConnect(err error) error {
	c.mu.Lock()
	c.state = Closed
	c.session = nil
	c.mu.Unlock()
	return &ConnectError{Server: c.cfg.Name, Err: err}
}

func (c *Client) buildEnv() []string {
	env := os.Environ()
	for k, v := range c.cfg.Env {
		env = append(env, k+"="+v)
	}
	if c.cfg.suppressOutput() {
		env = append(env, suppressOutputEnv)
	}
	return env
}

// Disconnect tears down the session and the subprocess. Teardown errors are
// terminal and swallowed.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	session := c.session
	c.state = Closing
	c.session = nil
	c.mu.Unlock()

	if session != nil {
		if err := session.Close(); err != nil {
			logger.GetLogger().Debug("Error closing MCP client", "name", c.cfg.Name, "error", err)
		}
	}

	c.mu.Lock()
	c.state = Closed
	c.mu.Unlock()
	return nil
}

// ListTools returns the advertised tool names.
func (c *Client) ListTools() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.tools))
	for _, t := range c.tools {
		names = append(names, t.Name)
	}
	return names
}

// GetToolSpecs returns the advertised tools as model-facing definitions.
func (c *Client) GetToolSpecs() []llm.ToolDefinition {
	c.mu.Lock()
	defer c.mu.Unlock()
	specs := make([]llm.ToolDefinition, 0, len(c.tools))
	for _, t := range c.tools {
		specs = append(specs, llm.ToolDefinition{
			Type: "function",
			Function: llm.ToolDefinitionSpec{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  convertSchema(t.InputSchema),
			},
		})
	}
	return specs
}

// CallTool invokes one tool and returns the normalized result.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (map[string]any, error) {
	c.mu.Lock()
	session := c.session
	connected := c.state == Ready
	telemetry := c.telemetry
	c.mu.Unlock()

	if !connected || session == nil {
		return nil, fmt.Errorf("MCP client %q not connected", c.cfg.Name)
	}

	req := mcpwire.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	resp, err := session.CallTool(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("MCP call failed: %w", err)
	}

	result := Normalize(resp, c.cfg.findErrors())

	if telemetry != nil {
		telemetry.Log(c.cfg.Name, name, args, result)
	}
	return result, nil
}

// convertSchema flattens the wire schema into a plain map for the model
// boundary.
func convertSchema(schema mcpwire.ToolInputSchema) map[string]any {
	data, err := json.Marshal(schema)
	if err != nil {
		return nil
	}
	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		return nil
	}
	return result
}
