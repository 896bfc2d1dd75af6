// Package logger is a small ring-buffer logger used throughout the symbol
// collection pipeline. Entries carry a tag (the component that produced
// them) and a detail, and logging can be gated per-call-site by a
// Permission, so that verbose collaborators (e.g. a per-function warning
// during a large collection run) can be silenced without touching call
// sites.
package logger

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Permission is consulted before an entry is recorded. Most call sites pass
// the Allow value; types that want to conditionally suppress logging (rate
// limiting, a quiet flag, etc.) can implement it themselves.
type Permission interface {
	AllowLogging() bool
}

type allow struct{}

func (allow) AllowLogging() bool { return true }

// Allow is the Permission that always allows logging.
var Allow Permission = allow{}

type entry struct {
	tag    string
	detail string
}

func (e entry) String() string {
	return fmt.Sprintf("%s: %s", e.tag, e.detail)
}

// Logger is a bounded ring-buffer of log entries. The zero value is not
// usable; use NewLogger.
type Logger struct {
	crit    sync.Mutex
	entries []entry
	limit   int
}

// NewLogger creates a Logger that retains at most limit entries, discarding
// the oldest when full.
func NewLogger(limit int) *Logger {
	if limit <= 0 {
		limit = 1
	}
	return &Logger{
		entries: make([]entry, 0, limit),
		limit:   limit,
	}
}

// Clear empties the logger.
func (l *Logger) Clear() {
	l.crit.Lock()
	defer l.crit.Unlock()
	l.entries = l.entries[:0]
}

func detailString(detail interface{}) string {
	switch v := detail.(type) {
	case error:
		return v.Error()
	case fmt.Stringer:
		return v.String()
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Log records detail under tag, unless perm denies it.
func (l *Logger) Log(perm Permission, tag string, detail interface{}) {
	if perm == nil || !perm.AllowLogging() {
		return
	}

	l.crit.Lock()
	defer l.crit.Unlock()

	e := entry{tag: tag, detail: detailString(detail)}
	if len(l.entries) >= l.limit {
		l.entries = l.entries[1:]
	}
	l.entries = append(l.entries, e)
}

// Logf is Log with fmt.Sprintf-style formatting of detail.
func (l *Logger) Logf(perm Permission, tag string, format string, args ...interface{}) {
	l.Log(perm, tag, fmt.Sprintf(format, args...))
}

// Write emits every retained entry to w, one per line.
func (l *Logger) Write(w io.Writer) {
	l.crit.Lock()
	defer l.crit.Unlock()

	var b strings.Builder
	for _, e := range l.entries {
		b.WriteString(e.String())
		b.WriteString("\n")
	}
	io.WriteString(w, b.String())
}

// Tail emits the last n entries (or fewer, if the logger holds fewer than n).
func (l *Logger) Tail(w io.Writer, n int) {
	l.crit.Lock()
	defer l.crit.Unlock()

	if n > len(l.entries) {
		n = len(l.entries)
	}

	var b strings.Builder
	for _, e := range l.entries[len(l.entries)-n:] {
		b.WriteString(e.String())
		b.WriteString("\n")
	}
	io.WriteString(w, b.String())
}

// global is the process-wide logger used by package-level Log/Logf. Its
// capacity is generous because a single collection run can touch many
// thousands of functions.
var global = NewLogger(10000)

// Log records detail under tag on the package-level logger.
func Log(perm Permission, tag string, detail interface{}) {
	global.Log(perm, tag, detail)
}

// Logf is Log with formatting.
func Logf(perm Permission, tag string, format string, args ...interface{}) {
	global.Logf(perm, tag, format, args...)
}

// Write emits the package-level logger's entries to w.
func Write(w io.Writer) {
	global.Write(w)
}

// Tail emits the package-level logger's last n entries to w.
func Tail(w io.Writer, n int) {
	global.Tail(w, n)
}

// Clear empties the package-level logger. Exposed mainly for tests.
func Clear() {
	global.Clear()
}

// ErrSuppressed can be returned by collaborators that silently swallowed an
// error after logging it, so that callers can still distinguish "logged and
// continued" from "nothing happened" in tests without inspecting the logger.
var ErrSuppressed = errors.New("logger: error was logged and suppressed")
