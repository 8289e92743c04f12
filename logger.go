package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-githubactions"
	"golang.org/x/term"
)

type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l LogLevel) color() string {
	switch l {
	case LogLevelDebug:
		return "\033[90m"
	case LogLevelWarn:
		return "\033[33m"
	case LogLevelError:
		return "\033[31m"
	default:
		return "\033[36m"
	}
}

const colorReset = "\033[0m"

func ParseLogLevel(level string) LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return LogLevelDebug
	case "warn":
		return LogLevelWarn
	case "error":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

// Logger writes leveled messages as text, JSON, or GitHub workflow commands
// ("actions" format).
type Logger struct {
	mu     sync.Mutex
	level  LogLevel
	format string
	output io.Writer
	color  bool
	runID  string
	action *githubactions.Action
}

var (
	defaultLogger *Logger
	defaultMu     sync.Mutex
)

func NewLogger(level, format string, w io.Writer) *Logger {
	if w == nil {
		w = os.Stdout
	}
	return &Logger{
		level:  ParseLogLevel(level),
		format: strings.ToLower(format),
		output: w,
		color:  isTerminal(w),
		runID:  uuid.NewString(),
		action: githubactions.New(githubactions.WithWriter(w)),
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// InitLogger replaces the package default logger.
func InitLogger(level, format string) *Logger {
	logger := NewLogger(level, format, os.Stdout)
	SetDefault(logger)
	return logger
}

func SetDefault(l *Logger) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLogger = l
}

func GetLogger() *Logger {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultLogger == nil {
		defaultLogger = NewLogger("info", "text", os.Stdout)
	}
	return defaultLogger
}

func (l *Logger) RunID() string {
	return l.runID
}

func (l *Logger) write(level LogLevel, fields map[string]interface{}, format string, args ...interface{}) {
	if level < l.level {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	msg := fmt.Sprintf(format, args...)

	switch l.format {
	case "json":
		entry := map[string]interface{}{
			"timestamp": time.Now().Format("2006-01-02T15:04:05.000Z07:00"),
			"level":     level.String(),
			"message":   msg,
			"run_id":    l.runID,
		}
		for k, v := range fields {
			entry[k] = v
		}
		jsonBytes, _ := json.Marshal(entry)
		fmt.Fprintln(l.output, string(jsonBytes))
	case "actions":
		l.writeWorkflowCommand(level, msg+formatFields(fields))
	default:
		tag := level.String()
		if l.color {
			tag = level.color() + tag + colorReset
		}
		timestamp := time.Now().Format("2006-01-02T15:04:05.000Z07:00")
		fmt.Fprintf(l.output, "[%s] [%s]%s %s\n", timestamp, tag, formatFields(fields), msg)
	}
}

// writeWorkflowCommand renders msg for the Actions runner. Info has no
// command and is printed as plain output, folded onto one line so message
// text can never start a line with "::".
func (l *Logger) writeWorkflowCommand(level LogLevel, msg string) {
	switch level {
	case LogLevelDebug:
		l.action.Debugf("%s", msg)
	case LogLevelWarn:
		l.action.Warningf("%s", msg)
	case LogLevelError:
		l.action.Errorf("%s", msg)
	default:
		l.action.Infof("%s", singleLine(msg))
	}
}

var lineBreakReplacer = strings.NewReplacer("\r", "%0D", "\n", "%0A")

func singleLine(s string) string {
	return lineBreakReplacer.Replace(s)
}

func formatFields(fields map[string]interface{}) string {
	if len(fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, fields[k])
	}
	return b.String()
}

func (l *Logger) Debug(format string, args ...interface{}) {
	l.write(LogLevelDebug, nil, format, args...)
}

func (l *Logger) Info(format string, args ...interface{}) {
	l.write(LogLevelInfo, nil, format, args...)
}

func (l *Logger) Warn(format string, args ...interface{}) {
	l.write(LogLevelWarn, nil, format, args...)
}

func (l *Logger) Error(format string, args ...interface{}) {
	l.write(LogLevelError, nil, format, args...)
}

func (l *Logger) WithField(key string, value interface{}) *LogEntry {
	return &LogEntry{
		logger: l,
		fields: map[string]interface{}{key: value},
	}
}

func (l *Logger) WithFields(fields map[string]interface{}) *LogEntry {
	return &LogEntry{
		logger: l,
		fields: fields,
	}
}

type LogEntry struct {
	logger *Logger
	fields map[string]interface{}
}

func (e *LogEntry) Debug(format string, args ...interface{}) {
	e.logger.write(LogLevelDebug, e.fields, format, args...)
}

func (e *LogEntry) Info(format string, args ...interface{}) {
	e.logger.write(LogLevelInfo, e.fields, format, args...)
}

func (e *LogEntry) Warn(format string, args ...interface{}) {
	e.logger.write(LogLevelWarn, e.fields, format, args...)
}

func (e *LogEntry) Error(format string, args ...interface{}) {
	e.logger.write(LogLevelError, e.fields, format, args...)
}
