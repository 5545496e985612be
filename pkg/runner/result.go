package runner

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/kadirpekel/lev/pkg/chat"
)

// Result is one evaluation's outcome as written to the sink.
type Result struct {
	EvalID            string                `json:"eval_id"`
	Question          string                `json:"question"`
	Answer            string                `json:"answer"`
	Score             float64               `json:"score"`
	Reason            string                `json:"reason"`
	ToolCount         int                   `json:"tool_count"`
	McpValid          bool                  `json:"mcp_valid"`
	Mcps              []string              `json:"mcps"`
	ToolCalls         []chat.ToolInvocation `json:"tool_calls_sequence"`
	ConversationTrace string                `json:"conversation_trace"`
	IndividualScores  map[string]float64    `json:"individual_scores,omitempty"`
}

// Sink receives evaluation results.
type Sink interface {
	Write(results []Result) error
}

var tsvHeader = []string{
	"eval_id", "question", "answer", "score", "reason",
	"tool_count", "mcp_valid", "mcps", "tool_calls_sequence",
	"conversation_trace", "individual_scores",
}

// TsvSink appends results to a tab-delimited file. Complex fields are
// JSON-encoded within their cell; the header is written once when the file
// is new or empty.
type TsvSink struct {
	path string
}

// NewTsvSink creates a sink with a timestamped filename derived from the
// manifest name.
func NewTsvSink(manifestName string) *TsvSink {
	return &TsvSink{path: fmt.Sprintf("%s_results_%d.tsv", manifestName, time.Now().Unix())}
}

func (s *TsvSink) Path() string { return s.path }

func (s *TsvSink) Write(results []Result) error {
	if len(results) == 0 {
		return nil
	}

	info, err := os.Stat(s.path)
	needHeader := err != nil || info.Size() == 0

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("result sink %q: %w", s.path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	w.Comma = '\t'

	if needHeader {
		if err := w.Write(tsvHeader); err != nil {
			return err
		}
	}
	for _, result := range results {
		if err := w.Write(resultRow(result)); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

func resultRow(r Result) []string {
	return []string{
		r.EvalID,
		r.Question,
		r.Answer,
		strconv.FormatFloat(r.Score, 'f', 2, 64),
		r.Reason,
		strconv.Itoa(r.ToolCount),
		strconv.FormatBool(r.McpValid),
		jsonCell(r.Mcps),
		jsonCell(r.ToolCalls),
		jsonCell(r.ConversationTrace),
		jsonCell(r.IndividualScores),
	}
}

func jsonCell(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
