package scoring

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/lev/pkg/chat"
	"github.com/kadirpekel/lev/pkg/llm"
)

// stubJudgeProvider replays canned judge replies and records the prompts it
// was asked.
type stubJudgeProvider struct {
	replies []string
	err     error
	prompts []string
}

func (p *stubJudgeProvider) Name() string         { return "stub" }
func (p *stubJudgeProvider) DefaultModel() string { return "stub-model" }
func (p *stubJudgeProvider) SupportsTools() bool  { return false }

func (p *stubJudgeProvider) ChatComplete(ctx context.Context, messages []chat.Message, tools []llm.ToolDefinition) (*llm.ModelResponse, error) {
	p.prompts = append(p.prompts, messages[len(messages)-1].Content)
	if p.err != nil {
		return nil, p.err
	}
	reply := ""
	if len(p.replies) > 0 {
		reply = p.replies[0]
		p.replies = p.replies[1:]
	}
	return &llm.ModelResponse{Content: reply}, nil
}

func historyWithExchange(question, answer string) *chat.History {
	h := chat.NewHistory()
	h.AppendUser(question)
	h.AppendAssistant(answer)
	return h
}

func TestLLMCritiqueScorer(t *testing.T) {
	provider := &stubJudgeProvider{replies: []string{
		`{"answered": true, "score": 0.9, "justification": "thorough and correct"}`,
	}}
	s := NewLLMCritiqueScorer(NewJudge(provider, "judge prompt"))

	sc := &Context{History: historyWithExchange("what is 2+3?", "5")}
	got := s.Score(context.Background(), sc)

	assert.Equal(t, 0.9, got.Value)
	assert.Equal(t, "thorough and correct", got.Reason)
	require.Len(t, provider.prompts, 1)
	assert.Contains(t, provider.prompts[0], "what is 2+3?")
}

func TestLLMCritiqueScorerNoUserQuery(t *testing.T) {
	s := NewLLMCritiqueScorer(NewJudge(&stubJudgeProvider{}, ""))
	got := s.Score(context.Background(), &Context{History: chat.NewHistory()})
	assert.Equal(t, Score{0.0, "No user query found"}, got)
}

func TestLLMCritiqueScorerJudgeFailure(t *testing.T) {
	provider := &stubJudgeProvider{err: errors.New("connection refused")}
	s := NewLLMCritiqueScorer(NewJudge(provider, ""))

	got := s.Score(context.Background(), &Context{History: historyWithExchange("q", "a")})
	assert.Equal(t, 0.0, got.Value)
	assert.True(t, strings.HasPrefix(got.Reason, "Evaluation failed:"), got.Reason)
}

func TestLLMCritiqueScorerMalformedVerdict(t *testing.T) {
	provider := &stubJudgeProvider{replies: []string{"excellent work"}}
	s := NewLLMCritiqueScorer(NewJudge(provider, ""))

	got := s.Score(context.Background(), &Context{History: historyWithExchange("q", "a")})
	assert.Equal(t, 0.0, got.Value)
	assert.True(t, strings.HasPrefix(got.Reason, "Evaluation failed:"), got.Reason)
}

func TestSerializeToolCallsStages(t *testing.T) {
	calls := []chat.ToolInvocation{
		{
			ServerName: "math",
			ToolName:   "add",
			Arguments:  map[string]any{"a": 2, "b": 3},
			Result:     map[string]any{"result": strings.Repeat("x", 500), "success": true},
		},
	}

	full := serializeToolCalls(calls, 10_000)
	assert.Contains(t, full, strings.Repeat("x", 500))

	pruned := serializeToolCalls(calls, 400)
	assert.NotContains(t, pruned, "xxx")
	assert.Contains(t, pruned, "add")
	assert.Contains(t, pruned, "arguments")

	functionsOnly := serializeToolCalls(calls, 90)
	assert.Contains(t, functionsOnly, `"function": "add"`)
	assert.NotContains(t, functionsOnly, "server_name")

	summary := serializeToolCalls(calls, 10)
	assert.True(t, strings.HasPrefix(summary, "[Tool calls omitted: 1 calls,"), summary)

	assert.Equal(t, "None", serializeToolCalls(nil, 10_000))
}

func TestLLMExtractValueScorer(t *testing.T) {
	tests := []struct {
		name       string
		expected   any
		reply      string
		wantValue  float64
		wantReason string
	}{
		{
			name:       "integer match",
			expected:   42,
			reply:      "42",
			wantValue:  1.0,
			wantReason: "Expected: 42, Extracted: 42, Match: true",
		},
		{
			name:      "float within tolerance",
			expected:  3.14159,
			reply:     "3.1412",
			wantValue: 1.0,
		},
		{
			name:      "number outside tolerance",
			expected:  42,
			reply:     "43",
			wantValue: 0.0,
		},
		{
			name:       "string case insensitive",
			expected:   "Paris",
			reply:      "paris",
			wantValue:  1.0,
			wantReason: "Expected: Paris, Extracted: paris, Match: true",
		},
		{
			name:      "string mismatch",
			expected:  "Paris",
			reply:     "Lyon",
			wantValue: 0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &stubJudgeProvider{replies: []string{tt.reply}}
			s := NewLLMExtractValueScorer(NewJudge(provider, ""), tt.expected)

			got := s.Score(context.Background(), &Context{History: historyWithExchange("q", "a")})
			assert.Equal(t, tt.wantValue, got.Value)
			if tt.wantReason != "" {
				assert.Equal(t, tt.wantReason, got.Reason)
			}
		})
	}
}

func TestLLMExtractValueScorerGuards(t *testing.T) {
	judge := NewJudge(&stubJudgeProvider{}, "")

	got := NewLLMExtractValueScorer(judge, nil).Score(context.Background(), &Context{History: historyWithExchange("q", "a")})
	assert.Equal(t, Score{0.0, "No expected value provided"}, got)

	got = NewLLMExtractValueScorer(judge, 42).Score(context.Background(), &Context{History: chat.NewHistory()})
	assert.Equal(t, Score{0.0, "No user question found"}, got)

	h := chat.NewHistory()
	h.AppendUser("q")
	got = NewLLMExtractValueScorer(judge, 42).Score(context.Background(), &Context{History: h})
	assert.Equal(t, Score{0.0, "No assistant answer found"}, got)
}

func TestLLMExtractValueScorerJudgeFailure(t *testing.T) {
	provider := &stubJudgeProvider{err: errors.New("timeout")}
	s := NewLLMExtractValueScorer(NewJudge(provider, ""), 42)

	got := s.Score(context.Background(), &Context{History: historyWithExchange("q", "a")})
	assert.Equal(t, 0.0, got.Value)
	assert.True(t, strings.HasPrefix(got.Reason, "Extraction failed:"), got.Reason)
}

func TestContextCompressorFallsBack(t *testing.T) {
	c := NewContextCompressor(&stubJudgeProvider{err: errors.New("down")})
	assert.Equal(t, "big prompt", c.CompressPrompt(context.Background(), "big prompt"))
	assert.Equal(t, "", c.CompressMessages(context.Background(), nil))

	out := c.CompressMessages(context.Background(), []string{"main", "extra one", "extra two"})
	assert.Equal(t, "main\n\nAdditional context: extra one extra two", out)
}

func TestContextCompressorUsesModelOutput(t *testing.T) {
	provider := &stubJudgeProvider{replies: []string{"condensed"}}
	c := NewContextCompressor(provider)

	out := c.CompressMessages(context.Background(), []string{"first", "second"})
	assert.Equal(t, "condensed", out)
	require.Len(t, provider.prompts, 1)
	assert.Contains(t, provider.prompts[0], "1. first")
	assert.Contains(t, provider.prompts[0], "2. second")
}
