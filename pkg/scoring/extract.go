package scoring

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/kadirpekel/lev/pkg/prompts"
)

// LLMExtractValueScorer asks the judge to extract the scalar answer from
// the assistant messages and compares it to an expected value. Numbers
// match within 1e-3; strings match case-insensitively.
type LLMExtractValueScorer struct {
	judge    *Judge
	expected any
}

var _ Scorer = (*LLMExtractValueScorer)(nil)

func NewLLMExtractValueScorer(judge *Judge, expected any) *LLMExtractValueScorer {
	return &LLMExtractValueScorer{judge: judge, expected: expected}
}

func (s *LLMExtractValueScorer) DisplayName() string { return "llm_extract" }

func (s *LLMExtractValueScorer) Score(ctx context.Context, sc *Context) Score {
	if s.expected == nil {
		return Score{0.0, "No expected value provided"}
	}

	userMessages := sc.History.UserMessages()
	if len(userMessages) == 0 {
		return Score{0.0, "No user question found"}
	}
	question := userMessages[0].Content

	assistantMessages := sc.History.AssistantMessages()
	if len(assistantMessages) == 0 {
		return Score{0.0, "No assistant answer found"}
	}
	parts := make([]string, 0, len(assistantMessages))
	for _, msg := range assistantMessages {
		parts = append(parts, msg.Content)
	}
	answer := strings.Join(parts, "\n")

	prompt := strings.NewReplacer(
		"{question}", question,
		"{answer}", answer,
	).Replace(prompts.ExtractTemplate)

	text, err := s.judge.complete(ctx, prompt)
	if err != nil {
		return Score{0.0, fmt.Sprintf("Extraction failed: %v", err)}
	}

	extracted := parseToExpectedType(strings.TrimSpace(text), s.expected)
	match := valuesEqual(extracted, s.expected)

	value := 0.0
	if match {
		value = 1.0
	}
	return Score{value, fmt.Sprintf("Expected: %v, Extracted: %v, Match: %t", s.expected, extracted, match)}
}

// parseToExpectedType coerces the extracted string toward the expected
// value's type: int first, then float, else the raw string.
func parseToExpectedType(s string, expected any) any {
	if _, ok := toFloat(expected); !ok {
		return s
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

func valuesEqual(a, b any) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		diff := af - bf
		if diff < 0 {
			diff = -diff
		}
		return diff < 1e-3
	}
	return strings.EqualFold(fmt.Sprintf("%v", a), fmt.Sprintf("%v", b))
}
