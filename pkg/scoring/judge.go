package scoring

import (
	"context"
	"fmt"

	"github.com/kadirpekel/lev/pkg/chat"
	"github.com/kadirpekel/lev/pkg/llm"
)

// Judge bundles the judge-role provider with an optional system prompt and
// a context compressor for oversized prompts.
type Judge struct {
	provider     llm.Provider
	systemPrompt string
	compressor   *ContextCompressor
}

func NewJudge(provider llm.Provider, systemPrompt string) *Judge {
	return &Judge{
		provider:     provider,
		systemPrompt: systemPrompt,
		compressor:   NewContextCompressor(provider),
	}
}

func (j *Judge) Provider() llm.Provider         { return j.provider }
func (j *Judge) SystemPrompt() string           { return j.systemPrompt }
func (j *Judge) Compressor() *ContextCompressor { return j.compressor }

// complete sends one prompt to the judge model and returns its text reply.
func (j *Judge) complete(ctx context.Context, prompt string) (string, error) {
	var messages []chat.Message
	if j.systemPrompt != "" {
		messages = append(messages, chat.Message{Role: chat.RoleSystem, Content: j.systemPrompt})
	}
	messages = append(messages, chat.Message{Role: chat.RoleUser, Content: prompt})

	resp, err := j.provider.ChatComplete(ctx, messages, nil)
	if err != nil {
		return "", err
	}
	if resp.Content == "" {
		return "", fmt.Errorf("Empty LLM result")
	}
	return resp.Content, nil
}
