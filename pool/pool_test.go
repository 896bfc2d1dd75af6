package pool

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/symcollect/dump-syms/breakpad"
)

func newModule(debugID, fileName string) *breakpad.ModuleInfo {
	return breakpad.NewModuleInfo(breakpad.Linux, "x86_64", debugID, fileName, breakpad.DebugInfo, nil)
}

func TestRunEmitsOneModulePerDistinctDebugID(t *testing.T) {
	collect := func(_ context.Context, path string) (*breakpad.ModuleInfo, error) {
		switch path {
		case "a":
			return newModule("ID1", "a.so"), nil
		case "b":
			return newModule("ID2", "b.so"), nil
		}
		return nil, errors.New("unexpected path")
	}

	var mu sync.Mutex
	var emitted []string
	emit := func(_ context.Context, mod *breakpad.ModuleInfo) error {
		mu.Lock()
		defer mu.Unlock()
		emitted = append(emitted, mod.DebugID)
		return nil
	}

	p := New(2, collect, emit)
	if err := p.Run(context.Background(), []string{"a", "b"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(emitted) != 2 {
		t.Fatalf("expected 2 emitted modules, got %d: %v", len(emitted), emitted)
	}
}

func TestRunMergesSameDebugID(t *testing.T) {
	collect := func(_ context.Context, path string) (*breakpad.ModuleInfo, error) {
		return newModule("SHARED", path), nil
	}

	var mu sync.Mutex
	count := 0
	emit := func(_ context.Context, mod *breakpad.ModuleInfo) error {
		mu.Lock()
		defer mu.Unlock()
		count++
		return nil
	}

	p := New(3, collect, emit)
	if err := p.Run(context.Background(), []string{"x", "y", "z"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one emitted (merged) module, got %d", count)
	}
}

func TestRunPropagatesCollectError(t *testing.T) {
	wantErr := errors.New("boom")
	collect := func(_ context.Context, path string) (*breakpad.ModuleInfo, error) {
		return nil, wantErr
	}
	emit := func(_ context.Context, mod *breakpad.ModuleInfo) error { return nil }

	p := New(2, collect, emit)
	err := p.Run(context.Background(), []string{"a"})
	if err == nil {
		t.Fatal("expected an error")
	}
}

func TestRunWithNoInputsReturnsImmediately(t *testing.T) {
	collect := func(_ context.Context, path string) (*breakpad.ModuleInfo, error) {
		t.Fatal("collect should not be called")
		return nil, nil
	}
	emit := func(_ context.Context, mod *breakpad.ModuleInfo) error {
		t.Fatal("emit should not be called")
		return nil
	}

	p := New(2, collect, emit)
	if err := p.Run(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
