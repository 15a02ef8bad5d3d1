package app

import (
	"bytes"
	"encoding/json"
	"strings"
	"sync"

	"pkt.systems/pslog"
)

type logCapture struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (c *logCapture) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.Write(p)
}

func (c *logCapture) logger() pslog.Logger {
	return pslog.NewWithOptions(c, pslog.Options{
		Mode:          pslog.ModeStructured,
		NoColor:       true,
		VerboseFields: true,
		MinLevel:      pslog.DebugLevel,
	})
}

type logEntry struct {
	Level   string
	Message string
	Fields  map[string]any
}

func (c *logCapture) entries() []logEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []logEntry
	for _, line := range strings.Split(strings.TrimSpace(c.buf.String()), "\n") {
		payload := map[string]any{}
		if err := json.Unmarshal([]byte(line), &payload); err != nil {
			continue
		}
		entry := logEntry{Fields: payload}
		if v, ok := payload["level"].(string); ok {
			entry.Level = v
		} else if v, ok := payload["lvl"].(string); ok {
			entry.Level = v
		}
		if v, ok := payload["message"].(string); ok {
			entry.Message = v
		} else if v, ok := payload["msg"].(string); ok {
			entry.Message = v
		}
		out = append(out, entry)
	}
	return out
}

// messages returns the messages logged at level, in order.
func (c *logCapture) messages(level string) []string {
	var out []string
	for _, entry := range c.entries() {
		if entry.Level == level {
			out = append(out, entry.Message)
		}
	}
	return out
}
