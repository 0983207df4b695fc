// Package logger provides leveled, structured JSON logging with e-mail
// redaction. Each entry is one JSON object per line.
package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"
)

// Level represents the severity of a log entry.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

var levelNames = map[Level]string{
	DEBUG: "DEBUG",
	INFO:  "INFO",
	WARN:  "WARN",
	ERROR: "ERROR",
}

func (l Level) String() string { return levelNames[l] }

// ParseLevel maps a config string ("debug", "info", ...) to a Level.
// Unknown values fall back to INFO.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DEBUG
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	default:
		return INFO
	}
}

// Logger writes structured JSON entries. A Logger derived with With shares
// its parent's output and lock.
type Logger struct {
	level     Level
	redactPII bool
	out       io.Writer
	mu        *sync.Mutex
	fields    []interface{}
	now       func() time.Time
}

// New creates a Logger writing to w. A nil w means os.Stderr.
func New(w io.Writer, level Level, redactPII bool) *Logger {
	if w == nil {
		w = os.Stderr
	}
	return &Logger{
		level:     level,
		redactPII: redactPII,
		out:       w,
		mu:        &sync.Mutex{},
		now:       time.Now,
	}
}

// Discard returns a Logger that drops everything. Handy in tests.
func Discard() *Logger { return New(io.Discard, ERROR+1, false) }

// With returns a child logger that adds the given key/value pairs to every entry.
func (l *Logger) With(fields ...interface{}) *Logger {
	child := *l
	child.fields = append(append([]interface{}{}, l.fields...), fields...)
	return &child
}

// Debug emits a DEBUG-level entry.
func (l *Logger) Debug(msg string, fields ...interface{}) { l.log(DEBUG, msg, fields...) }

// Info emits an INFO-level entry.
func (l *Logger) Info(msg string, fields ...interface{}) { l.log(INFO, msg, fields...) }

// Warn emits a WARN-level entry.
func (l *Logger) Warn(msg string, fields ...interface{}) { l.log(WARN, msg, fields...) }

// Error emits an ERROR-level entry.
func (l *Logger) Error(msg string, fields ...interface{}) { l.log(ERROR, msg, fields...) }

func (l *Logger) log(level Level, msg string, fields ...interface{}) {
	if l == nil || level < l.level {
		return
	}

	entry := map[string]interface{}{
		"time":  l.now().UTC().Format(time.RFC3339),
		"level": levelNames[level],
		"msg":   msg,
	}

	all := append(append([]interface{}{}, l.fields...), fields...)
	for i := 0; i < len(all)-1; i += 2 {
		key := fmt.Sprintf("%v", all[i])
		val := fmt.Sprintf("%v", all[i+1])
		if l.redactPII {
			val = redactPIIValue(key, val)
		}
		entry[key] = val
	}

	data, _ := json.Marshal(entry)
	l.mu.Lock()
	fmt.Fprintln(l.out, string(data))
	l.mu.Unlock()
}

var defaultLogger = New(os.Stderr, INFO, true)

// Default returns the process-wide logger.
func Default() *Logger { return defaultLogger }

// SetDefault replaces the process-wide logger.
func SetDefault(l *Logger) { defaultLogger = l }

// Info emits an INFO-level entry on the default logger.
func Info(msg string, fields ...interface{}) { defaultLogger.log(INFO, msg, fields...) }

// Warn emits a WARN-level entry on the default logger.
func Warn(msg string, fields ...interface{}) { defaultLogger.log(WARN, msg, fields...) }

// Error emits an ERROR-level entry on the default logger.
func Error(msg string, fields ...interface{}) { defaultLogger.log(ERROR, msg, fields...) }

var emailRegex = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

func redactPIIValue(key, val string) string {
	key = strings.ToLower(key)
	if strings.Contains(key, "email") || key == "recipient" {
		return RedactEmail(val)
	}
	// Addresses embedded in error strings and other free-form fields.
	return emailRegex.ReplaceAllStringFunc(val, RedactEmail)
}
