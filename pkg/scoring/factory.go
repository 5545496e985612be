package scoring

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// ScorerConfig is one scorer entry in an eval's scoring list.
type ScorerConfig struct {
	Type       string         `json:"type"`
	Weight     *float64       `json:"weight,omitempty"`
	Mode       string         `json:"mode,omitempty"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

func (c ScorerConfig) weight() float64 {
	if c.Weight == nil {
		return 1.0
	}
	return *c.Weight
}

// BuildScorers turns scorer configurations into weighted scorers. LLM
// scorer types draw their provider and system prompt from the judge.
func BuildScorers(configs []ScorerConfig, judge *Judge) ([]WeightedScorer, error) {
	weighted := make([]WeightedScorer, 0, len(configs))

	for _, cfg := range configs {
		scorer, err := buildScorer(cfg, judge)
		if err != nil {
			return nil, err
		}
		weighted = append(weighted, WeightedScorer{Weight: cfg.weight(), Scorer: scorer})
	}

	return weighted, nil
}

func buildScorer(cfg ScorerConfig, judge *Judge) (Scorer, error) {
	params := make(map[string]any, len(cfg.Parameters)+1)
	for k, v := range cfg.Parameters {
		params[k] = v
	}
	if cfg.Mode != "" {
		params["mode"] = cfg.Mode
	}

	switch cfg.Type {
	case "llm_critique":
		return NewLLMCritiqueScorer(judge), nil

	case "llm_extract":
		expected, ok := params["expected"]
		if !ok || expected == nil {
			return nil, fmt.Errorf("missing required 'expected' parameter for llm_extract scorer")
		}
		return NewLLMExtractValueScorer(judge, expected), nil

	case "contains_string":
		var p struct {
			TargetString  string `mapstructure:"target_string"`
			Target        string `mapstructure:"target"`
			CaseSensitive bool   `mapstructure:"case_sensitive"`
		}
		if err := decodeParams(params, &p); err != nil {
			return nil, fmt.Errorf("contains_string: %w", err)
		}
		target := p.TargetString
		if target == "" {
			target = p.Target
		}
		return &ContainsStringScorer{Target: target, CaseSensitive: p.CaseSensitive}, nil

	case "tool_call_count":
		var p struct {
			Calls        map[string]CallConstraint `mapstructure:"calls"`
			CallOrder    []string                  `mapstructure:"call_order"`
			OrderMatters bool                      `mapstructure:"order_matters"`
		}
		if err := decodeParams(params, &p); err != nil {
			return nil, fmt.Errorf("tool_call_count: %w", err)
		}
		return &ToolCallCountScorer{Calls: p.Calls, CallOrder: p.CallOrder, OrderMatters: p.OrderMatters}, nil

	case "tool_call_input":
		var p struct {
			Inputs map[string][]InputCheck `mapstructure:"inputs"`
		}
		if err := decodeParams(params, &p); err != nil {
			return nil, fmt.Errorf("tool_call_input: %w", err)
		}
		return &ToolCallInputScorer{Inputs: p.Inputs}, nil

	case "tool_call_output":
		var p struct {
			Results     map[string]map[string]any `mapstructure:"results"`
			Tolerance   float64                   `mapstructure:"tolerance"`
			IgnoreExtra *bool                     `mapstructure:"ignore_extra"`
		}
		if err := decodeParams(params, &p); err != nil {
			return nil, fmt.Errorf("tool_call_output: %w", err)
		}
		ignoreExtra := true
		if p.IgnoreExtra != nil {
			ignoreExtra = *p.IgnoreExtra
		}
		return &ToolCallOutputScorer{Results: p.Results, Tolerance: p.Tolerance, IgnoreExtra: ignoreExtra}, nil

	default:
		return nil, fmt.Errorf("Unknown scorer type: %s", cfg.Type)
	}
}

// decodeParams fills a typed parameter struct from the raw config map,
// coercing compatible scalar types along the way.
func decodeParams(params map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(params)
}
