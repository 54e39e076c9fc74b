// Package logx provides component-scoped logging with structured fields,
// env-driven debug domains and an in-memory buffer of recent entries.
package logx

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// Level is the severity of a log entry.
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

const timestampFormat = "2006-01-02T15:04:05.000Z"

// Logger writes lines of the form "[timestamp] [component] LEVEL: message".
// A nil *Logger and the logger returned by Nop discard everything.
type Logger struct {
	component string
	nop       bool
}

// LogEntry is one buffered log line.
type LogEntry struct {
	Timestamp string         `json:"timestamp"`
	Component string         `json:"component"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Domain    string         `json:"domain,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// DebugConfig controls debug logging behavior.
type DebugConfig struct {
	Enabled bool
	Domains map[string]bool // Which domains to enable debug for (nil = all)
}

// InMemoryLogBuffer stores recent log entries.
type InMemoryLogBuffer struct {
	entries []LogEntry
	mutex   sync.RWMutex
	maxSize int
}

//nolint:gochecknoglobals // process-wide logging state
var (
	debugConfig = &DebugConfig{}
	debugMutex  sync.RWMutex

	logWriter     io.Writer
	logWriterLock sync.Mutex

	logBuffer = &InMemoryLogBuffer{
		entries: make([]LogEntry, 0),
		maxSize: 1000,
	}

	nopLogger = &Logger{nop: true}
)

func init() { //nolint:gochecknoinits // Required for env var initialization
	initDebugFromEnv()
}

// initDebugFromEnv reads DEBUG=1|true and DEBUG_DOMAINS=decompose,selector.
func initDebugFromEnv() {
	debugMutex.Lock()
	defer debugMutex.Unlock()

	if debug := os.Getenv("DEBUG"); debug == "1" || strings.EqualFold(debug, "true") {
		debugConfig.Enabled = true
	}

	if domains := os.Getenv("DEBUG_DOMAINS"); domains != "" {
		debugConfig.Domains = make(map[string]bool)
		for _, domain := range strings.Split(domains, ",") {
			debugConfig.Domains[strings.TrimSpace(domain)] = true
		}
	}
}

// NewLogger returns a logger tagged with the given component name.
func NewLogger(component string) *Logger {
	return &Logger{component: component}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return nopLogger
}

// OrNop returns l, or the no-op logger when l is nil.
func OrNop(l *Logger) *Logger {
	if l == nil {
		return nopLogger
	}
	return l
}

// SetOutput redirects all loggers. A nil writer restores stderr.
func SetOutput(w io.Writer) {
	logWriterLock.Lock()
	logWriter = w
	logWriterLock.Unlock()
}

func writeLine(line string) {
	logWriterLock.Lock()
	defer logWriterLock.Unlock()
	w := logWriter
	if w == nil {
		w = os.Stderr
	}
	fmt.Fprintln(w, line)
}

// SetDebugConfig toggles debug logging.
func SetDebugConfig(enabled bool) {
	debugMutex.Lock()
	defer debugMutex.Unlock()
	debugConfig.Enabled = enabled
}

// SetDebugDomains configures which domains should have debug logging enabled.
func SetDebugDomains(domains []string) {
	debugMutex.Lock()
	defer debugMutex.Unlock()

	if len(domains) == 0 {
		debugConfig.Domains = nil
		return
	}
	debugConfig.Domains = make(map[string]bool)
	for _, domain := range domains {
		debugConfig.Domains[strings.TrimSpace(domain)] = true
	}
}

// IsDebugEnabled returns whether debug logging is enabled.
func IsDebugEnabled() bool {
	debugMutex.RLock()
	defer debugMutex.RUnlock()
	return debugConfig.Enabled
}

// IsDebugEnabledForDomain returns whether debug logging is enabled for a specific domain.
func IsDebugEnabledForDomain(domain string) bool {
	debugMutex.RLock()
	defer debugMutex.RUnlock()

	if !debugConfig.Enabled {
		return false
	}
	if debugConfig.Domains == nil {
		return true
	}
	return debugConfig.Domains[domain]
}

// AddLogEntry adds a log entry to the buffer, evicting the oldest past maxSize.
func (b *InMemoryLogBuffer) AddLogEntry(entry *LogEntry) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.entries = append(b.entries, *entry)
	if len(b.entries) > b.maxSize {
		b.entries = b.entries[len(b.entries)-b.maxSize:]
	}
}

// GetLogEntries returns a copy of current log entries, optionally filtered.
func (b *InMemoryLogBuffer) GetLogEntries(component string, since time.Time) []LogEntry {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	filtered := make([]LogEntry, 0, len(b.entries))
	for i := range b.entries {
		entry := &b.entries[i]
		if component != "" && !strings.EqualFold(entry.Component, component) {
			continue
		}
		if !since.IsZero() {
			entryTime, err := time.Parse(timestampFormat, entry.Timestamp)
			if err != nil || entryTime.Before(since) {
				continue
			}
		}
		filtered = append(filtered, *entry)
	}
	return filtered
}

// RecentEntries returns buffered entries for a component (empty = all) at or after since.
func RecentEntries(component string, since time.Time) []LogEntry {
	return logBuffer.GetLogEntries(component, since)
}

// FormatData renders fields as sorted key=value pairs.
func FormatData(data map[string]any) string {
	if len(data) == 0 {
		return ""
	}
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, data[k]))
	}
	return strings.Join(parts, " ")
}

// Log writes a structured entry. Debug entries are dropped unless debug is
// enabled for the logger's component.
func (l *Logger) Log(level Level, message string, data map[string]any) {
	if l == nil || l.nop {
		return
	}
	if level == LevelDebug && !IsDebugEnabledForDomain(l.component) {
		return
	}

	timestamp := time.Now().UTC().Format(timestampFormat)
	line := fmt.Sprintf("[%s] [%s] %s: %s", timestamp, l.component, level, message)
	if fields := FormatData(data); fields != "" {
		line += " " + fields
	}
	writeLine(line)

	logBuffer.AddLogEntry(&LogEntry{
		Timestamp: timestamp,
		Component: l.component,
		Level:     string(level),
		Message:   message,
		Data:      data,
	})
}

func (l *Logger) Debug(format string, args ...any) {
	l.Log(LevelDebug, fmt.Sprintf(format, args...), nil)
}

func (l *Logger) Info(format string, args ...any) {
	l.Log(LevelInfo, fmt.Sprintf(format, args...), nil)
}

func (l *Logger) Warn(format string, args ...any) {
	l.Log(LevelWarn, fmt.Sprintf(format, args...), nil)
}

func (l *Logger) Error(format string, args ...any) {
	l.Log(LevelError, fmt.Sprintf(format, args...), nil)
}

// Component returns the logger's component name.
func (l *Logger) Component() string {
	if l == nil {
		return ""
	}
	return l.component
}

// WithComponent returns a logger for a sub-component sharing the same output.
func (l *Logger) WithComponent(component string) *Logger {
	if l == nil || l.nop {
		return nopLogger
	}
	return &Logger{component: component}
}

type ctxKey struct{}

// WithRequestID tags ctx so package-level Debug lines carry the request id.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, requestID)
}

// RequestID returns the id stored by WithRequestID, or "".
func RequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(ctxKey{}).(string); ok {
		return id
	}
	return ""
}

// Debug logs a debug message with context and domain filtering.
//
//	DEBUG=1                              # all domains
//	DEBUG=1 DEBUG_DOMAINS=decompose      # one domain
//	DEBUG=1 DEBUG_DOMAINS=selector,run   # several
func Debug(ctx context.Context, domain, format string, args ...any) {
	if !IsDebugEnabledForDomain(domain) {
		return
	}

	component := RequestID(ctx)
	if component == "" {
		component = "unknown"
	}
	message := fmt.Sprintf(format, args...)

	timestamp := time.Now().UTC().Format(timestampFormat)
	writeLine(fmt.Sprintf("[%s] [%s] %s: [%s] %s", timestamp, component, LevelDebug, domain, message))

	logBuffer.AddLogEntry(&LogEntry{
		Timestamp: timestamp,
		Component: component,
		Level:     string(LevelDebug),
		Message:   message,
		Domain:    domain,
	})
}

var defaultLogger = NewLogger("system") //nolint:gochecknoglobals

func Infof(format string, args ...any) {
	defaultLogger.Info(format, args...)
}

func Warnf(format string, args ...any) {
	defaultLogger.Warn(format, args...)
}

// Errorf logs and returns the formatted error.
//
//	err := logx.Errorf("setup failed: %w", err)
func Errorf(format string, args ...any) error {
	err := fmt.Errorf(format, args...)
	defaultLogger.Error("%s", err.Error())
	return err
}

// Wrap logs msg + ": " + err.Error() and returns fmt.Errorf("%s: %w", msg, err).
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	wrappedErr := fmt.Errorf("%s: %w", msg, err)
	defaultLogger.Error("%s", wrappedErr.Error())
	return wrappedErr
}
