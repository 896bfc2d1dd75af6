package logger_test

import (
	"strings"
	"testing"

	"github.com/symcollect/dump-syms/internal/logger"
)

func TestCentralLogger(t *testing.T) {
	log := logger.NewLogger(100)
	w := &strings.Builder{}

	log.Write(w)
	if w.String() != "" {
		t.Fatalf("expected empty log, got %q", w.String())
	}

	log.Log(logger.Allow, "test", "this is a test")
	log.Write(w)
	if w.String() != "test: this is a test\n" {
		t.Fatalf("unexpected log output: %q", w.String())
	}

	w.Reset()
	log.Log(logger.Allow, "test2", "this is another test")
	log.Write(w)
	want := "test: this is a test\ntest2: this is another test\n"
	if w.String() != want {
		t.Fatalf("got %q want %q", w.String(), want)
	}

	w.Reset()
	log.Tail(w, 1)
	if w.String() != "test2: this is another test\n" {
		t.Fatalf("unexpected tail: %q", w.String())
	}

	w.Reset()
	log.Tail(w, 0)
	if w.String() != "" {
		t.Fatalf("expected empty tail, got %q", w.String())
	}
}

type prohibitLogging struct{ allow bool }

func (p prohibitLogging) AllowLogging() bool { return p.allow }

func TestPermissions(t *testing.T) {
	log := logger.NewLogger(100)
	w := &strings.Builder{}

	log.Log(prohibitLogging{allow: false}, "tag", "detail")
	log.Write(w)
	if w.String() != "" {
		t.Fatalf("expected suppressed log, got %q", w.String())
	}

	w.Reset()
	log.Log(prohibitLogging{allow: true}, "tag", "detail")
	log.Write(w)
	if w.String() != "tag: detail\n" {
		t.Fatalf("unexpected log output: %q", w.String())
	}
}

func TestRingEviction(t *testing.T) {
	log := logger.NewLogger(2)
	w := &strings.Builder{}

	log.Log(logger.Allow, "a", "1")
	log.Log(logger.Allow, "b", "2")
	log.Log(logger.Allow, "c", "3")
	log.Write(w)

	want := "b: 2\nc: 3\n"
	if w.String() != want {
		t.Fatalf("got %q want %q", w.String(), want)
	}
}
