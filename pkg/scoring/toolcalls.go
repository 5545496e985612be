package scoring

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/kadirpekel/lev/pkg/chat"
)

// CallConstraint bounds how often one tool must be called. Exact overrides
// Min/Max when set.
type CallConstraint struct {
	Exact *int `json:"exact,omitempty" mapstructure:"exact"`
	Min   *int `json:"min,omitempty" mapstructure:"min"`
	Max   *int `json:"max,omitempty" mapstructure:"max"`
}

// ToolCallCountScorer validates call-count constraints per tool, and
// optionally that first occurrences follow the declared order.
type ToolCallCountScorer struct {
	Calls        map[string]CallConstraint
	CallOrder    []string
	OrderMatters bool
}

var _ Scorer = (*ToolCallCountScorer)(nil)

func (s *ToolCallCountScorer) DisplayName() string { return "tool_call_count" }

func (s *ToolCallCountScorer) Score(ctx context.Context, sc *Context) Score {
	if len(sc.ToolCalls) == 0 {
		for tool, spec := range s.Calls {
			if spec.Exact != nil && *spec.Exact > 0 {
				return Score{0.0, fmt.Sprintf("%s: expected %d, got 0", tool, *spec.Exact)}
			}
			if spec.Min != nil && *spec.Min > 0 {
				return Score{0.0, fmt.Sprintf("%s: min %d, got 0", tool, *spec.Min)}
			}
		}
		return Score{1.0, "no tool calls required or made"}
	}

	hist := make(map[string]int)
	var sequence []string
	for _, call := range sc.ToolCalls {
		hist[call.ToolName]++
		sequence = append(sequence, call.ToolName)
	}

	for tool, spec := range s.Calls {
		actual := hist[tool]
		if spec.Exact != nil {
			if actual != *spec.Exact {
				return Score{0.0, fmt.Sprintf("%s: expected exactly %d, got %d", tool, *spec.Exact, actual)}
			}
			continue
		}
		if spec.Min != nil && actual < *spec.Min {
			return Score{0.0, fmt.Sprintf("%s: min %d, got %d", tool, *spec.Min, actual)}
		}
		if spec.Max != nil && actual > *spec.Max {
			return Score{0.0, fmt.Sprintf("%s: max %d, got %d", tool, *spec.Max, actual)}
		}
	}

	if s.OrderMatters {
		expected := s.CallOrder
		inExpected := make(map[string]bool, len(expected))
		for _, tool := range expected {
			inExpected[tool] = true
		}
		var filtered []string
		for _, tool := range sequence {
			if inExpected[tool] {
				filtered = append(filtered, tool)
			}
		}
		for i, tool := range expected {
			if i >= len(filtered) || filtered[i] != tool {
				return Score{0.0, fmt.Sprintf("sequence mismatch: expected %v, got %v", expected, filtered)}
			}
		}
	}

	return Score{1.0, fmt.Sprintf("call counts satisfied: %v", hist)}
}

// InputCheck is one constraint on a recorded tool argument.
type InputCheck struct {
	Field string `json:"field" mapstructure:"field"`
	Value string `json:"value" mapstructure:"value"`
	Mode  string `json:"mode,omitempty" mapstructure:"mode"`
}

// ToolCallInputScorer validates recorded arguments of the first invocation
// of each listed tool.
type ToolCallInputScorer struct {
	Inputs map[string][]InputCheck
}

var _ Scorer = (*ToolCallInputScorer)(nil)

func (s *ToolCallInputScorer) DisplayName() string { return "tool_call_input" }

func (s *ToolCallInputScorer) Score(ctx context.Context, sc *Context) Score {
	if len(sc.ToolCalls) == 0 {
		if len(s.Inputs) > 0 {
			return Score{0.0, "no tool calls made but input validation expected"}
		}
		return Score{1.0, "no tool calls or input validation required"}
	}

	firstCall := firstInvocations(sc.ToolCalls)

	for tool, checks := range s.Inputs {
		call, ok := firstCall[tool]
		if !ok {
			return Score{0.0, fmt.Sprintf("missing tool calls for %s", tool)}
		}

		for _, check := range checks {
			raw, ok := call.Arguments[check.Field]
			if !ok {
				return Score{0.0, fmt.Sprintf("%s.%s missing in arguments", tool, check.Field)}
			}
			actual := fmt.Sprintf("%v", raw)

			mode := check.Mode
			if mode == "" {
				mode = "exact"
			}

			switch mode {
			case "exact":
				if actual != check.Value {
					return Score{0.0, fmt.Sprintf("%s.%s: expected '%s', got '%s'", tool, check.Field, check.Value, actual)}
				}
			case "contains":
				if !strings.Contains(actual, check.Value) {
					return Score{0.0, fmt.Sprintf("%s.%s: '%s' not found in '%s'", tool, check.Field, check.Value, actual)}
				}
			case "regex":
				matched, err := regexp.MatchString(check.Value, actual)
				if err != nil || !matched {
					return Score{0.0, fmt.Sprintf("%s.%s: pattern '%s' not matched in '%s'", tool, check.Field, check.Value, actual)}
				}
			default:
				return Score{0.0, fmt.Sprintf("invalid mode '%s' for %s.%s", mode, tool, check.Field)}
			}
		}
	}

	return Score{1.0, "all input validations passed"}
}

// ToolCallOutputScorer validates the normalized result of the first
// invocation of each listed tool against an expected fragment.
type ToolCallOutputScorer struct {
	Results     map[string]map[string]any
	Tolerance   float64
	IgnoreExtra bool
}

var _ Scorer = (*ToolCallOutputScorer)(nil)

func (s *ToolCallOutputScorer) DisplayName() string { return "tool_call_output" }

func (s *ToolCallOutputScorer) Score(ctx context.Context, sc *Context) Score {
	if len(sc.ToolCalls) == 0 {
		if len(s.Results) > 0 {
			return Score{0.0, "no tool calls made but output validation expected"}
		}
		return Score{1.0, "no tool calls or output validation required"}
	}

	tolerance := s.Tolerance
	if tolerance == 0 {
		tolerance = 1e-6
	}

	firstCall := firstInvocations(sc.ToolCalls)

	for tool, expected := range s.Results {
		call, ok := firstCall[tool]
		if !ok {
			return Score{0.0, fmt.Sprintf("missing tool calls for %s", tool)}
		}

		actual := call.Result
		if !deepCompare(expected, actual, tolerance, s.IgnoreExtra) {
			return Score{0.0, fmt.Sprintf("result mismatch for %s: expected subset of %v, got %v", tool, expected, actual)}
		}
	}

	return Score{1.0, "all output validations passed"}
}

func firstInvocations(calls []chat.ToolInvocation) map[string]chat.ToolInvocation {
	first := make(map[string]chat.ToolInvocation)
	for _, call := range calls {
		if _, ok := first[call.ToolName]; !ok {
			first[call.ToolName] = call
		}
	}
	return first
}

// deepCompare matches an expected fragment against an actual mapping:
// mappings by shared keys, lists elementwise, numeric leaves within
// tolerance, everything else by equality.
func deepCompare(expected, actual map[string]any, tolerance float64, ignoreExtra bool) bool {
	for key, ev := range expected {
		av, ok := actual[key]
		if !ok {
			return false
		}
		if !compareValue(ev, av, tolerance, ignoreExtra) {
			return false
		}
	}
	if !ignoreExtra {
		for key := range actual {
			if _, ok := expected[key]; !ok {
				return false
			}
		}
	}
	return true
}

func compareValue(expected, actual any, tolerance float64, ignoreExtra bool) bool {
	switch ev := expected.(type) {
	case map[string]any:
		am, ok := actual.(map[string]any)
		if !ok {
			return false
		}
		return deepCompare(ev, am, tolerance, ignoreExtra)
	case []any:
		aa, ok := actual.([]any)
		if !ok || len(ev) != len(aa) {
			return false
		}
		for i := range ev {
			if !compareValue(ev[i], aa[i], tolerance, ignoreExtra) {
				return false
			}
		}
		return true
	default:
		if en, ok := toFloat(expected); ok {
			an, ok := toFloat(actual)
			return ok && math.Abs(an-en) <= tolerance
		}
		return expected == actual
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

