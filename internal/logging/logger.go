// Package logging provides simple structured logging for the device manager.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"
)

// Logger wraps stdlib log with level support and request-scoped context.
type Logger struct {
	logger *log.Logger
	level  LogLevel
	format string // "text" or "json"
	fields []field
	mu     *sync.Mutex
}

var (
	defaultLogger *Logger
	defaultMu     sync.RWMutex
)

// LogLevel represents the available log levels.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

type field struct {
	key string
	val any
}

// Config holds logging configuration.
type Config struct {
	Level   LogLevel
	Format  string // "text" (default) or "json"
	Output  io.Writer
	NoColor bool // reserved for terminal output; unused for json format
	Sync    bool // reserved for future async writers; no-op today
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() *Config {
	return &Config{
		Level:  LevelInfo,
		Format: "text",
		Output: os.Stderr,
	}
}

// NewLogger creates a new logger.
func NewLogger(config *Config) *Logger {
	if config == nil {
		config = DefaultConfig()
	}
	output := config.Output
	if output == nil {
		output = os.Stderr
	}
	format := config.Format
	if format == "" {
		format = "text"
	}
	return &Logger{
		logger: log.New(output, "", log.LstdFlags),
		level:  config.Level,
		format: format,
		mu:     &sync.Mutex{},
	}
}

// Default returns the default logger, creating it if necessary.
func Default() *Logger {
	defaultMu.RLock()
	if defaultLogger != nil {
		defer defaultMu.RUnlock()
		return defaultLogger
	}
	defaultMu.RUnlock()

	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultLogger == nil {
		defaultLogger = NewLogger(nil)
	}
	return defaultLogger
}

// SetDefault sets the default logger.
func SetDefault(logger *Logger) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLogger = logger
}

// with returns a copy of the logger carrying an additional field.
func (l *Logger) with(key string, val any) *Logger {
	return &Logger{
		logger: l.logger,
		level:  l.level,
		format: l.format,
		mu:     l.mu,
		fields: append(append([]field{}, l.fields...), field{key, val}),
	}
}

// WithModel scopes the logger to a (model_path, model_type) pair.
func (l *Logger) WithModel(modelPath, modelType string) *Logger {
	return l.with("model_path", modelPath).with("model_type", modelType)
}

// WithRequest scopes the logger to a request_id and action.
func (l *Logger) WithRequest(requestID, action string) *Logger {
	return l.with("request_id", requestID).with("action", action)
}

// WithError attaches an error to subsequent log lines.
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return l.with("error", err.Error())
}

func formatArgs(args []any) string {
	if len(args) == 0 {
		return ""
	}
	var result string
	for i := 0; i < len(args); i += 2 {
		if i+1 < len(args) {
			if result != "" {
				result += " "
			}
			result += fmt.Sprintf("%v=%v", args[i], args[i+1])
		}
	}
	if result != "" {
		return " " + result
	}
	return ""
}

func (l *Logger) fieldArgs() []any {
	if len(l.fields) == 0 {
		return nil
	}
	out := make([]any, 0, len(l.fields)*2)
	for _, f := range l.fields {
		out = append(out, f.key, f.val)
	}
	return out
}

func (l *Logger) log(level LogLevel, prefix, msg string, args ...any) {
	if level < l.level {
		return
	}
	allArgs := append(l.fieldArgs(), args...)

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.format == "json" {
		entry := map[string]any{
			"ts":    time.Now().UTC().Format(time.RFC3339Nano),
			"level": prefix,
			"msg":   msg,
		}
		for i := 0; i+1 < len(allArgs); i += 2 {
			if k, ok := allArgs[i].(string); ok {
				entry[k] = allArgs[i+1]
			}
		}
		b, err := json.Marshal(entry)
		if err != nil {
			l.logger.Printf("%s %s%s", prefix, msg, formatArgs(allArgs))
			return
		}
		l.logger.Output(2, string(b))
		return
	}

	l.logger.Printf("%s %s%s", prefix, msg, formatArgs(allArgs))
}

func (l *Logger) Debug(msg string, args ...any) { l.log(LevelDebug, "[DEBUG]", msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.log(LevelInfo, "[INFO]", msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.log(LevelWarn, "[WARN]", msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.log(LevelError, "[ERROR]", msg, args...) }

// Debugf is printf-style logging at debug level.
func (l *Logger) Debugf(format string, args ...any) {
	l.log(LevelDebug, "[DEBUG]", fmt.Sprintf(format, args...))
}
func (l *Logger) Infof(format string, args ...any) {
	l.log(LevelInfo, "[INFO]", fmt.Sprintf(format, args...))
}
func (l *Logger) Warnf(format string, args ...any) {
	l.log(LevelWarn, "[WARN]", fmt.Sprintf(format, args...))
}
func (l *Logger) Errorf(format string, args ...any) {
	l.log(LevelError, "[ERROR]", fmt.Sprintf(format, args...))
}

// Printf exists for compatibility with the interfaces.Logger contract.
func (l *Logger) Printf(format string, args ...any) { l.Infof(format, args...) }

// Global convenience functions operating on the default logger.
func Debug(msg string, args ...any) { Default().Debug(msg, args...) }
func Info(msg string, args ...any)  { Default().Info(msg, args...) }
func Warn(msg string, args ...any)  { Default().Warn(msg, args...) }
func Error(msg string, args ...any) { Default().Error(msg, args...) }
