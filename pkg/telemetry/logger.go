package telemetry

import (
	"encoding/json"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

// NewLogger returns a stdlib logger that writes one JSON object per line.
// A leading "[LEVEL]" in the message sets the entry level; INFO otherwise.
func NewLogger(service string, out io.Writer) *log.Logger {
	return log.New(newJSONWriter(service, out), "", 0)
}

type jsonWriter struct {
	mu      sync.Mutex
	service string
	out     io.Writer
	now     func() time.Time
}

func newJSONWriter(service string, out io.Writer) *jsonWriter {
	if out == nil {
		out = os.Stdout
	}
	return &jsonWriter{service: service, out: out, now: time.Now}
}

func (w *jsonWriter) Write(p []byte) (int, error) {
	level, msg := parseLevel(string(p))

	data, err := json.Marshal(map[string]string{
		"ts":      w.now().UTC().Format(time.RFC3339Nano),
		"level":   level,
		"service": w.service,
		"msg":     msg,
	})
	if err != nil {
		return 0, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.out.Write(append(data, '\n')); err != nil {
		return 0, err
	}
	return len(p), nil
}

func parseLevel(message string) (string, string) {
	trimmed := strings.TrimSpace(message)
	if strings.HasPrefix(trimmed, "[") {
		if idx := strings.Index(trimmed, "]"); idx > 1 {
			level := strings.ToUpper(trimmed[1:idx])
			if isLevel(level) {
				return level, strings.TrimSpace(trimmed[idx+1:])
			}
		}
	}
	return "INFO", trimmed
}

func isLevel(level string) bool {
	switch level {
	case "INFO", "ERROR", "WARN", "DEBUG":
		return true
	default:
		return false
	}
}
