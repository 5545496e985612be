package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kadirpekel/lev/pkg/chat"
	"github.com/kadirpekel/lev/pkg/httpclient"
	"github.com/kadirpekel/lev/pkg/logger"
)

const (
	defaultOpenAIBaseURL   = "https://api.openai.com/v1"
	defaultLMStudioBaseURL = "http://localhost:1234/v1"
	defaultTimeout         = 120 * time.Second
)

// Config holds the settings for an OpenAI-compatible chat completions
// endpoint. Azure deployments set APIVersion; local gateways like LM Studio
// leave APIKey empty.
type Config struct {
	Model      string
	APIKey     string
	BaseURL    string
	APIVersion string

	Temperature      *float64
	TopP             *float64
	MaxTokens        int
	FrequencyPenalty *float64
	PresencePenalty  *float64

	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// OpenAIProvider speaks the OpenAI chat completions wire format. It covers
// OpenAI itself plus Azure OpenAI and LM Studio endpoints.
type OpenAIProvider struct {
	name       string
	config     Config
	httpClient *httpclient.Client
	azure      bool
}

var _ Provider = (*OpenAIProvider)(nil)

// NewOpenAIProvider builds a provider for the public OpenAI API.
func NewOpenAIProvider(config Config) (*OpenAIProvider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("openai: api key is required")
	}
	return newProvider("openai", config, false)
}

// NewLMStudioProvider builds a provider for a local LM Studio gateway.
// No API key is required.
func NewLMStudioProvider(config Config) (*OpenAIProvider, error) {
	if config.BaseURL == "" {
		config.BaseURL = defaultLMStudioBaseURL
	}
	return newProvider("lm_studio", config, false)
}

// NewAzureProvider builds a provider for an Azure OpenAI deployment.
// BaseURL is the resource endpoint; Model names the deployment.
func NewAzureProvider(config Config) (*OpenAIProvider, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("azure_openai: base url is required")
	}
	if config.APIVersion == "" {
		config.APIVersion = "2024-06-01"
	}
	return newProvider("azure_openai", config, true)
}

func newProvider(name string, config Config, azure bool) (*OpenAIProvider, error) {
	if config.Model == "" {
		return nil, fmt.Errorf("%s: model is required", name)
	}
	if config.BaseURL == "" {
		config.BaseURL = defaultOpenAIBaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 3
	}
	if config.RetryDelay == 0 {
		config.RetryDelay = 2 * time.Second
	}

	client := httpclient.New(
		httpclient.WithHTTPClient(&http.Client{Timeout: config.Timeout}),
		httpclient.WithMaxRetries(config.MaxRetries),
		httpclient.WithBaseDelay(config.RetryDelay),
		httpclient.WithHeaderParser(httpclient.ParseOpenAIHeaders),
	)

	return &OpenAIProvider{
		name:       name,
		config:     config,
		httpClient: client,
		azure:      azure,
	}, nil
}

func (p *OpenAIProvider) Name() string { return p.name }

func (p *OpenAIProvider) DefaultModel() string { return p.config.Model }

func (p *OpenAIProvider) SupportsTools() bool { return true }

// ChatComplete sends one chat completion request and parses the response
// into content and tool calls.
func (p *OpenAIProvider) ChatComplete(ctx context.Context, messages []chat.Message, tools []ToolDefinition) (*ModelResponse, error) {
	reqBody := p.buildRequest(messages, tools)

	body, err := p.makeRequest(ctx, reqBody)
	if err != nil {
		return nil, err
	}

	var resp openAIResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("API error: %s", resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	choice := resp.Choices[0]
	toolCalls, err := parseToolCalls(choice.Message.ToolCalls)
	if err != nil {
		return nil, err
	}

	result := &ModelResponse{
		Content:      choice.Message.Content,
		ToolCalls:    toolCalls,
		FinishReason: choice.FinishReason,
	}
	if resp.Usage != nil {
		result.Usage = &Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}
	return result, nil
}

// Wire types for the chat completions endpoint.

type openAIRequest struct {
	Model            string           `json:"model"`
	Messages         []openAIMessage  `json:"messages"`
	Tools            []ToolDefinition `json:"tools,omitempty"`
	Temperature      *float64         `json:"temperature,omitempty"`
	TopP             *float64         `json:"top_p,omitempty"`
	MaxTokens        int              `json:"max_tokens,omitempty"`
	FrequencyPenalty *float64         `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64         `json:"presence_penalty,omitempty"`
}

type openAIMessage struct {
	Role       string           `json:"role"`
	Content    string           `json:"content"`
	ToolCalls  []openAIToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
}

type openAIToolCall struct {
	ID       string             `json:"id"`
	Type     string             `json:"type"`
	Function openAIFunctionCall `json:"function"`
}

type openAIFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type openAIResponse struct {
	Choices []openAIChoice `json:"choices"`
	Usage   *openAIUsage   `json:"usage"`
	Error   *openAIError   `json:"error"`
}

type openAIChoice struct {
	Message      openAIMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

type openAIUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type openAIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    any    `json:"code"`
}

func (p *OpenAIProvider) buildRequest(messages []chat.Message, tools []ToolDefinition) openAIRequest {
	req := openAIRequest{
		Model:            p.config.Model,
		Messages:         convertMessages(messages),
		Temperature:      p.config.Temperature,
		TopP:             p.config.TopP,
		MaxTokens:        p.config.MaxTokens,
		FrequencyPenalty: p.config.FrequencyPenalty,
		PresencePenalty:  p.config.PresencePenalty,
	}
	if len(tools) > 0 {
		req.Tools = tools
	}
	return req
}

// convertMessages maps transcript messages to the wire format. Developer and
// platform turns travel as system messages; tool-call arguments are encoded
// as JSON strings per the OpenAI schema.
func convertMessages(messages []chat.Message) []openAIMessage {
	out := make([]openAIMessage, 0, len(messages))
	for _, m := range messages {
		wire := openAIMessage{Content: m.Content}

		switch m.Role {
		case chat.RoleDeveloper, chat.RolePlatform:
			wire.Role = string(chat.RoleSystem)
		default:
			wire.Role = string(m.Role)
		}

		for _, tc := range m.ToolCalls {
			args, err := json.Marshal(tc.Arguments)
			if err != nil {
				args = []byte("{}")
			}
			wire.ToolCalls = append(wire.ToolCalls, openAIToolCall{
				ID:   tc.ID,
				Type: "function",
				Function: openAIFunctionCall{
					Name:      tc.Name,
					Arguments: string(args),
				},
			})
		}
		wire.ToolCallID = m.ToolCallID

		out = append(out, wire)
	}
	return out
}

func parseToolCalls(calls []openAIToolCall) ([]chat.ToolCallRef, error) {
	if len(calls) == 0 {
		return nil, nil
	}
	out := make([]chat.ToolCallRef, 0, len(calls))
	for _, tc := range calls {
		args := map[string]any{}
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				return nil, fmt.Errorf("failed to parse tool call arguments for %s: %w", tc.Function.Name, err)
			}
		}
		out = append(out, chat.ToolCallRef{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: args,
		})
	}
	return out, nil
}

func (p *OpenAIProvider) endpoint() string {
	if p.azure {
		return fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
			p.config.BaseURL, p.config.Model, p.config.APIVersion)
	}
	return p.config.BaseURL + "/chat/completions"
}

func (p *OpenAIProvider) makeRequest(ctx context.Context, reqBody openAIRequest) ([]byte, error) {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint(), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// GetBody lets the retry client replay the payload.
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(payload)), nil
	}

	req.Header.Set("Content-Type", "application/json")
	if p.azure {
		req.Header.Set("api-key", p.config.APIKey)
	} else if p.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.config.APIKey)
	}

	logger.GetLogger().Debug("Sending chat completion request",
		"provider", p.name, "model", p.config.Model, "messages", len(reqBody.Messages), "tools", len(reqBody.Tools))

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, parseErrorResponse(resp.StatusCode, body)
	}

	return body, nil
}

func parseErrorResponse(statusCode int, body []byte) error {
	var errResp openAIResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != nil {
		return fmt.Errorf("API error (HTTP %d): %s", statusCode, errResp.Error.Message)
	}
	return fmt.Errorf("API error (HTTP %d): %s", statusCode, string(body))
}
