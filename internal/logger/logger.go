// Package logger provides leveled logging for sercha-kb.
//
// Debug and info messages are printed only in verbose mode (--verbose).
// Warnings and errors are always printed. Output goes to stderr through
// log/slog; the default "plain" format keeps the short "[LEVEL] message"
// lines, while "text" and "json" select the slog handlers for servers.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Output formats.
const (
	FormatPlain = "plain"
	FormatText  = "text"
	FormatJSON  = "json"
)

var (
	mu      sync.RWMutex
	verbose bool
	output  io.Writer = os.Stderr
	format            = FormatPlain
	log               = build()

	// writeMu serialises plain writes across rebuilt handlers.
	writeMu sync.Mutex
)

// build must be called with mu held for writing, or during init.
func build() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	switch format {
	case FormatText:
		h = slog.NewTextHandler(output, opts)
	case FormatJSON:
		h = slog.NewJSONHandler(output, opts)
	default:
		h = &plainHandler{w: output, level: level}
	}
	return slog.New(h)
}

// SetVerbose enables or disables verbose logging.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
	log = build()
}

// IsVerbose returns true if verbose mode is enabled.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetOutput sets the output writer for logs.
// Defaults to os.Stderr. Useful for testing.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
	log = build()
}

// SetFormat selects plain, text or json output.
func SetFormat(f string) error {
	f = strings.ToLower(strings.TrimSpace(f))
	if f == "" {
		f = FormatPlain
	}
	switch f {
	case FormatPlain, FormatText, FormatJSON:
	default:
		return fmt.Errorf("unknown log format %q (want plain, text or json)", f)
	}
	mu.Lock()
	defer mu.Unlock()
	format = f
	log = build()
	return nil
}

// Logger returns the current structured logger.
func Logger() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

func logf(level slog.Level, msg string, args ...any) {
	l := Logger()
	if !l.Enabled(context.Background(), level) {
		return
	}
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	l.Log(context.Background(), level, msg)
}

// Debug prints a message if verbose mode is enabled.
func Debug(format string, args ...any) {
	logf(slog.LevelDebug, format, args...)
}

// Info prints an informational message if verbose mode is enabled.
func Info(format string, args ...any) {
	logf(slog.LevelInfo, format, args...)
}

// Warn prints a warning message.
func Warn(format string, args ...any) {
	logf(slog.LevelWarn, format, args...)
}

// Error prints an error message.
func Error(format string, args ...any) {
	logf(slog.LevelError, format, args...)
}

// Section prints a section header if verbose mode is enabled.
func Section(name string) {
	mu.RLock()
	defer mu.RUnlock()
	if !verbose {
		return
	}
	if format == FormatPlain {
		fmt.Fprintf(output, "\n=== %s ===\n", name)
		return
	}
	log.Debug("section", slog.String("name", name))
}

// plainHandler writes "[LEVEL] message key=value" lines.
type plainHandler struct {
	w     io.Writer
	level slog.Level
	attrs []slog.Attr
}

func (h *plainHandler) Enabled(_ context.Context, l slog.Level) bool {
	return l >= h.level
}

func (h *plainHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	b.WriteString("[")
	b.WriteString(r.Level.String())
	b.WriteString("] ")
	b.WriteString(r.Message)
	write := func(a slog.Attr) bool {
		a.Value = a.Value.Resolve()
		if a.Equal(slog.Attr{}) {
			return true
		}
		fmt.Fprintf(&b, " %s=%v", a.Key, a.Value.Any())
		return true
	}
	for _, a := range h.attrs {
		write(a)
	}
	r.Attrs(write)
	b.WriteString("\n")

	writeMu.Lock()
	defer writeMu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

func (h *plainHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &next
}

// WithGroup is flattened; plain output has no nesting.
func (h *plainHandler) WithGroup(_ string) slog.Handler {
	return h
}
