package scoring

import (
	"context"
	"fmt"
	"strings"

	"github.com/kadirpekel/lev/pkg/chat"
	"github.com/kadirpekel/lev/pkg/llm"
	"github.com/kadirpekel/lev/pkg/prompts"
)

// ContextCompressor shrinks oversized prompts through an LLM pass. Any
// failure falls back to the uncompressed input, never an error.
type ContextCompressor struct {
	provider llm.Provider
}

func NewContextCompressor(provider llm.Provider) *ContextCompressor {
	return &ContextCompressor{provider: provider}
}

// CompressPrompt rewrites one oversized prompt into its most concise form.
func (c *ContextCompressor) CompressPrompt(ctx context.Context, prompt string) string {
	return c.compress(ctx, []string{prompt}, prompt)
}

// CompressMessages compresses a message sequence into a single context
// string, falling back to plain concatenation on failure.
func (c *ContextCompressor) CompressMessages(ctx context.Context, messages []string) string {
	if len(messages) == 0 {
		return ""
	}
	return c.compress(ctx, messages, fallbackConcatenate(messages))
}

func (c *ContextCompressor) compress(ctx context.Context, messages []string, fallback string) string {
	sequence := formatMessageSequence(messages)
	prompt := strings.ReplaceAll(prompts.CompressTemplate, "{message_sequence}", sequence)

	resp, err := c.provider.ChatComplete(ctx, []chat.Message{
		{Role: chat.RoleUser, Content: prompt},
	}, nil)
	if err != nil || resp == nil {
		return fallback
	}

	compressed := strings.TrimSpace(resp.Content)
	if compressed == "" {
		return fallback
	}
	return compressed
}

func formatMessageSequence(messages []string) string {
	formatted := make([]string, 0, len(messages))
	for i, msg := range messages {
		formatted = append(formatted, fmt.Sprintf("%d. %s", i+1, msg))
	}
	return strings.Join(formatted, "\n")
}

func fallbackConcatenate(messages []string) string {
	if len(messages) == 1 {
		return messages[0]
	}
	return fmt.Sprintf("%s\n\nAdditional context: %s", messages[0], strings.Join(messages[1:], " "))
}
