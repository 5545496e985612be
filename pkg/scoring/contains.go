package scoring

import (
	"context"
	"fmt"
	"strings"
)

// ContainsStringScorer checks whether the final answer contains a target
// substring.
type ContainsStringScorer struct {
	Target        string
	CaseSensitive bool
}

var _ Scorer = (*ContainsStringScorer)(nil)

func (s *ContainsStringScorer) DisplayName() string { return "contains_string" }

func (s *ContainsStringScorer) Score(ctx context.Context, sc *Context) Score {
	if sc.Answer == "" {
		return Score{0.0, fmt.Sprintf("No answer to check for '%s'", s.Target)}
	}

	haystack, needle := sc.Answer, s.Target
	if !s.CaseSensitive {
		haystack = strings.ToLower(haystack)
		needle = strings.ToLower(needle)
	}

	if strings.Contains(haystack, needle) {
		return Score{1.0, fmt.Sprintf("Found '%s' in answer", s.Target)}
	}
	return Score{0.0, fmt.Sprintf("'%s' not found in answer", s.Target)}
}
