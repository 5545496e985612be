package mcp

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/kadirpekel/lev/pkg/logger"
)

const telemetryHeader = "timestamp,server_name,tool_name,arguments,response_size_tokens,response_size_bytes\n"

// CallLogger appends one CSV row per normalized tool response. Writes are
// line-atomic under the mutex; the header is written once when the file is
// created or empty.
type CallLogger struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

func NewCallLogger(path string) *CallLogger {
	return &CallLogger{path: path, now: time.Now}
}

func (l *CallLogger) Path() string { return l.path }

// Log records one tool call. Token count approximates as word count; size
// is the UTF-8 byte length of the serialized response.
func (l *CallLogger) Log(serverName, toolName string, args, response map[string]any) {
	argsJSON, err := json.Marshal(args)
	if err != nil {
		argsJSON = []byte("{}")
	}
	respJSON, err := json.Marshal(response)
	if err != nil {
		respJSON = []byte("{}")
	}

	timestamp := l.now().UTC().Format("2006-01-02T15:04:05.000") + "Z"
	tokens := len(strings.Fields(string(respJSON)))
	row := fmt.Sprintf("%s,%s,%s,%s,%d,%d\n",
		timestamp, csvEscape(serverName), csvEscape(toolName), csvEscape(string(argsJSON)),
		tokens, len(respJSON))

	l.mu.Lock()
	defer l.mu.Unlock()

	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		logger.GetLogger().Warn("Failed to open MCP call log", "path", l.path, "error", err)
		return
	}
	defer file.Close()

	if info, err := file.Stat(); err == nil && info.Size() == 0 {
		if _, err := file.WriteString(telemetryHeader); err != nil {
			logger.GetLogger().Warn("Failed to write MCP call log header", "error", err)
			return
		}
	}

	if _, err := file.WriteString(row); err != nil {
		logger.GetLogger().Warn("Failed to write MCP call log row", "error", err)
	}
}

func csvEscape(field string) string {
	if strings.ContainsAny(field, ",\"\n") {
		return `"` + strings.ReplaceAll(field, `"`, `""`) + `"`
	}
	return field
}
