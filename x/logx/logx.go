// Package logx is the structured logger shared by the services. Interrupt
// handlers must never call it.
package logx

import (
	"io"
	"log/slog"
	"os"
	"sync"
)

// Component identifies a subsystem for log filtering.
type Component string

const (
	ComponentSoftUART Component = "softuart"
	ComponentConfig   Component = "config"
	ComponentReader   Component = "uartio"
	ComponentBridge   Component = "ptybridge"
	ComponentGNSS     Component = "gnss"
	ComponentMonitor  Component = "heartbeat"
	ComponentConsole  Component = "console"
	ComponentApp      Component = "app"
)

var (
	level = new(slog.LevelVar)

	mu     sync.RWMutex
	logger *slog.Logger
)

func init() {
	level.Set(slog.LevelWarn)
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// SetLevel sets the minimum level of the default logger.
func SetLevel(l slog.Level) { level.Set(l) }

// Level returns the current minimum level.
func Level() slog.Level { return level.Level() }

// SetLogger replaces the logger. A nil logger restores the stderr default.
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	}
	mu.Lock()
	logger = l
	mu.Unlock()
}

// New returns a text logger on w that honours the shared level.
func New(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func current() *slog.Logger {
	mu.RLock()
	l := logger
	mu.RUnlock()
	return l
}

func Debug(c Component, msg string, args ...any) {
	current().Debug(msg, append([]any{"component", string(c)}, args...)...)
}

func Info(c Component, msg string, args ...any) {
	current().Info(msg, append([]any{"component", string(c)}, args...)...)
}

func Warn(c Component, msg string, args ...any) {
	current().Warn(msg, append([]any{"component", string(c)}, args...)...)
}

func Error(c Component, msg string, args ...any) {
	current().Error(msg, append([]any{"component", string(c)}, args...)...)
}
