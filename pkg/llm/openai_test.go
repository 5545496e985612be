package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/lev/pkg/chat"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) (*OpenAIProvider, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	provider, err := NewOpenAIProvider(Config{
		Model:   "gpt-4o",
		APIKey:  "test-key",
		BaseURL: server.URL,
	})
	require.NoError(t, err)
	return provider, server
}

func TestChatCompleteContent(t *testing.T) {
	provider, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "Paris"}, "finish_reason": "stop"},
			},
			"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 2, "total_tokens": 12},
		})
	})

	resp, err := provider.ChatComplete(context.Background(), []chat.Message{
		{Role: chat.RoleUser, Content: "Capital of France?"},
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, "Paris", resp.Content)
	assert.Empty(t, resp.ToolCalls)
	assert.Equal(t, "stop", resp.FinishReason)
	require.NotNil(t, resp.Usage)
	assert.Equal(t, 12, resp.Usage.TotalTokens)
}

func TestChatCompleteToolCalls(t *testing.T) {
	provider, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{
					"message": map[string]any{
						"role":    "assistant",
						"content": "",
						"tool_calls": []map[string]any{
							{
								"id":   "call_1",
								"type": "function",
								"function": map[string]any{
									"name":      "get_weather",
									"arguments": `{"city":"Paris","units":"metric"}`,
								},
							},
						},
					},
					"finish_reason": "tool_calls",
				},
			},
		})
	})

	resp, err := provider.ChatComplete(context.Background(), []chat.Message{
		{Role: chat.RoleUser, Content: "Weather in Paris?"},
	}, nil)
	require.NoError(t, err)

	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "call_1", resp.ToolCalls[0].ID)
	assert.Equal(t, "get_weather", resp.ToolCalls[0].Name)
	assert.Equal(t, map[string]any{"city": "Paris", "units": "metric"}, resp.ToolCalls[0].Arguments)
}

func TestChatCompleteMalformedToolArguments(t *testing.T) {
	provider, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{
					"message": map[string]any{
						"role": "assistant",
						"tool_calls": []map[string]any{
							{
								"id":       "call_1",
								"type":     "function",
								"function": map[string]any{"name": "get_weather", "arguments": "not json"},
							},
						},
					},
				},
			},
		})
	})

	_, err := provider.ChatComplete(context.Background(), []chat.Message{
		{Role: chat.RoleUser, Content: "Weather?"},
	}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get_weather")
}

func TestChatCompleteAPIError(t *testing.T) {
	provider, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "invalid api key", "type": "auth_error"},
		})
	})

	_, err := provider.ChatComplete(context.Background(), []chat.Message{
		{Role: chat.RoleUser, Content: "hi"},
	}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid api key")
}

func TestConvertMessagesRoundTrip(t *testing.T) {
	messages := []chat.Message{
		{Role: chat.RoleSystem, Content: "be brief"},
		{Role: chat.RoleDeveloper, Content: "Proceed."},
		{Role: chat.RoleUser, Content: "hi"},
		{
			Role: chat.RoleAssistant,
			ToolCalls: []chat.ToolCallRef{
				{ID: "call_1", Name: "search", Arguments: map[string]any{"q": "go"}},
			},
		},
		{Role: chat.RoleTool, Content: `{"result":1,"success":true}`, ToolCallID: "call_1"},
	}

	wire := convertMessages(messages)
	require.Len(t, wire, 5)

	assert.Equal(t, "system", wire[0].Role)
	assert.Equal(t, "system", wire[1].Role, "developer turns travel as system")
	assert.Equal(t, "user", wire[2].Role)

	require.Len(t, wire[3].ToolCalls, 1)
	assert.Equal(t, "function", wire[3].ToolCalls[0].Type)
	assert.JSONEq(t, `{"q":"go"}`, wire[3].ToolCalls[0].Function.Arguments)

	assert.Equal(t, "tool", wire[4].Role)
	assert.Equal(t, "call_1", wire[4].ToolCallID)

	// A tool call serialized out then parsed back keeps its arguments.
	parsed, err := parseToolCalls(wire[3].ToolCalls)
	require.NoError(t, err)
	assert.Equal(t, messages[3].ToolCalls, parsed)
}

func TestAzureEndpointAndAuth(t *testing.T) {
	var gotPath, gotQuery, gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotKey = r.Header.Get("api-key")
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "ok"}},
			},
		})
	}))
	defer server.Close()

	provider, err := NewAzureProvider(Config{
		Model:      "gpt-4o-deployment",
		APIKey:     "azure-key",
		BaseURL:    server.URL,
		APIVersion: "2024-06-01",
	})
	require.NoError(t, err)

	_, err = provider.ChatComplete(context.Background(), []chat.Message{
		{Role: chat.RoleUser, Content: "hi"},
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, "/openai/deployments/gpt-4o-deployment/chat/completions", gotPath)
	assert.Equal(t, "api-version=2024-06-01", gotQuery)
	assert.Equal(t, "azure-key", gotKey)
}

func TestProviderValidation(t *testing.T) {
	_, err := NewOpenAIProvider(Config{Model: "gpt-4o"})
	assert.Error(t, err, "missing api key")

	_, err = NewOpenAIProvider(Config{APIKey: "k"})
	assert.Error(t, err, "missing model")

	_, err = NewAzureProvider(Config{Model: "d", APIKey: "k"})
	assert.Error(t, err, "missing base url")

	p, err := NewLMStudioProvider(Config{Model: "qwen2.5-7b"})
	require.NoError(t, err, "lm studio needs no api key")
	assert.Equal(t, "lm_studio", p.Name())
	assert.True(t, p.SupportsTools())
}
