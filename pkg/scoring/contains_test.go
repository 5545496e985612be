package scoring

import (
	"context"
	"testing"
)

func TestContainsStringScorer(t *testing.T) {
	tests := []struct {
		name       string
		scorer     ContainsStringScorer
		answer     string
		wantValue  float64
		wantReason string
	}{
		{
			name:       "case insensitive by default",
			scorer:     ContainsStringScorer{Target: "Paris"},
			answer:     "the capital of France is PARIS",
			wantValue:  1.0,
			wantReason: "Found 'Paris' in answer",
		},
		{
			name:       "case sensitive miss",
			scorer:     ContainsStringScorer{Target: "Paris", CaseSensitive: true},
			answer:     "the capital of France is PARIS",
			wantValue:  0.0,
			wantReason: "'Paris' not found in answer",
		},
		{
			name:       "empty answer",
			scorer:     ContainsStringScorer{Target: "Paris"},
			answer:     "",
			wantValue:  0.0,
			wantReason: "No answer to check for 'Paris'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.scorer.Score(context.Background(), &Context{Answer: tt.answer})
			if got.Value != tt.wantValue || got.Reason != tt.wantReason {
				t.Errorf("got %+v, want value %v reason %q", got, tt.wantValue, tt.wantReason)
			}
		})
	}
}
