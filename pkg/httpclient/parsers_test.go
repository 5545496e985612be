package httpclient

import (
	"net/http"
	"testing"
	"time"
)

func TestParseOpenAIHeaders(t *testing.T) {
	headers := http.Header{}
	headers.Set("Retry-After", "30")
	headers.Set("x-ratelimit-remaining-requests", "42")
	headers.Set("x-ratelimit-remaining-tokens", "9000")

	info := ParseOpenAIHeaders(headers)

	if info.RetryAfter != 30*time.Second {
		t.Errorf("RetryAfter = %v, want 30s", info.RetryAfter)
	}
	if info.RequestsRemaining != 42 {
		t.Errorf("RequestsRemaining = %d, want 42", info.RequestsRemaining)
	}
	if info.TokensRemaining != 9000 {
		t.Errorf("TokensRemaining = %d, want 9000", info.TokensRemaining)
	}
}

func TestParseOpenAIHeadersEmpty(t *testing.T) {
	info := ParseOpenAIHeaders(http.Header{})
	if info.RetryAfter != 0 || info.ResetTime != 0 {
		t.Errorf("expected zero info for empty headers, got %+v", info)
	}
}
