// Package scoring turns a finished evaluation case into a bounded score.
// Deterministic scorers check tool usage structurally; LLM scorers ask a
// judge model; ScoreFunction aggregates them by weight.
package scoring

import (
	"context"
	"fmt"
	"strings"

	"github.com/kadirpekel/lev/pkg/chat"
)

// Score is the result of one scoring operation: a value in [0,1] and a
// human-readable reason.
type Score struct {
	Value  float64 `json:"value"`
	Reason string  `json:"reason"`
}

// Context carries everything a scorer may inspect about one finished case.
type Context struct {
	History   *chat.History
	Answer    string
	ToolCalls []chat.ToolInvocation
	Expected  map[string]any
}

// Scorer is the contract every scoring implementation satisfies.
type Scorer interface {
	DisplayName() string
	Score(ctx context.Context, sc *Context) Score
}

// WeightedScorer pairs a scorer with its aggregation weight.
type WeightedScorer struct {
	Weight float64
	Scorer Scorer
}

// ScoreFunction aggregates multiple weighted scorers into one score.
type ScoreFunction struct {
	scorers []WeightedScorer
}

func NewScoreFunction(scorers []WeightedScorer) *ScoreFunction {
	return &ScoreFunction{scorers: scorers}
}

// Score runs every positive-weight scorer on the same context and returns
// the weighted average. The reason is a newline-joined trace of each
// scorer's name, value, own reason, and weight.
func (f *ScoreFunction) Score(ctx context.Context, sc *Context) Score {
	if len(f.scorers) == 0 {
		return Score{Value: 0.0, Reason: "No scorers configured"}
	}

	var active []WeightedScorer
	for _, ws := range f.scorers {
		if ws.Weight > 0 {
			active = append(active, ws)
		}
	}
	if len(active) == 0 {
		return Score{Value: 0.0, Reason: "No active scorers (all weights are 0)"}
	}

	subtotal := 0.0
	totalWeight := 0.0
	reasons := make([]string, 0, len(active))

	for _, ws := range active {
		result := ws.Scorer.Score(ctx, sc)
		subtotal += ws.Weight * result.Value
		totalWeight += ws.Weight
		reasons = append(reasons, fmt.Sprintf("%s=%.2f (%s) *%g",
			ws.Scorer.DisplayName(), result.Value, result.Reason, ws.Weight))
	}

	return Score{
		Value:  subtotal / totalWeight,
		Reason: strings.Join(reasons, "\n"),
	}
}

// ValidateMcpUsage reports whether every used MCP server was allowed by the
// eval's declaration.
func ValidateMcpUsage(allowed, used []string) bool {
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, name := range allowed {
		allowedSet[name] = struct{}{}
	}
	for _, name := range used {
		if _, ok := allowedSet[name]; !ok {
			return false
		}
	}
	return true
}
