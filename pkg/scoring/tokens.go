package scoring

import (
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var (
	encoderOnce sync.Once
	encoder     *tiktoken.Tiktoken
)

// CountTokens counts BPE tokens with the cl100k_base encoding. If the
// encoding cannot be loaded (the vocabulary is fetched lazily), it falls
// back to word count so budget checks never fail at runtime.
func CountTokens(text string) int {
	encoderOnce.Do(func() {
		if enc, err := tiktoken.GetEncoding("cl100k_base"); err == nil {
			encoder = enc
		}
	})
	if encoder != nil {
		return len(encoder.Encode(text, nil, nil))
	}
	return len(strings.Fields(text))
}
