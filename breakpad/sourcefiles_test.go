package breakpad

import (
	"strings"
	"testing"

	"github.com/symcollect/dump-syms/internal/logger"
	"github.com/symcollect/dump-syms/internal/testhelper"
)

func TestInternDedupesIdenticalPaths(t *testing.T) {
	idx := NewSourceFileIndex(nil)
	a := idx.Intern(Linux, "/build", "src", "main.c")
	b := idx.Intern(Linux, "/build", "src", "main.c")
	testhelper.Equate(t, a, b)
	testhelper.Equate(t, idx.Len(), 1)
}

func TestInternHandlesAbsoluteDir(t *testing.T) {
	idx := NewSourceFileIndex(nil)
	a := idx.Intern(Linux, "/build", "/abs/src", "main.c")
	idx.Promote(a)
	testhelper.Equate(t, idx.FinalList()[0], "/abs/src/main.c")
}

func TestInternWindowsAbsoluteDrivePath(t *testing.T) {
	idx := NewSourceFileIndex(nil)
	a := idx.Intern(Win, `c:\build`, `c:\src`, "main.cpp")
	idx.Promote(a)
	testhelper.Equate(t, idx.FinalList()[0], `c:\src/main.cpp`)
}

func TestPromoteOnlyIncludesReferencedPaths(t *testing.T) {
	idx := NewSourceFileIndex(nil)
	used := idx.Intern(Linux, "/build", "", "used.c")
	_ = idx.Intern(Linux, "/build", "", "unused.c")
	idx.Promote(used)

	testhelper.Equate(t, idx.Len(), 2)
	testhelper.Equate(t, idx.PromotedLen(), 1)
	testhelper.Equate(t, idx.FinalList(), []string{"/build/used.c"})
}

func TestPromoteIsIdempotent(t *testing.T) {
	idx := NewSourceFileIndex(nil)
	a := idx.Intern(Linux, "/build", "", "a.c")
	first := idx.Promote(a)
	second := idx.Promote(a)
	testhelper.Equate(t, first, second)
	testhelper.Equate(t, idx.PromotedLen(), 1)
}

type prefixMapper struct{ prefix string }

func (m prefixMapper) Map(p string) (string, bool) { return m.prefix + p, true }

func TestPathMapperRunsOnceAtIntern(t *testing.T) {
	idx := NewSourceFileIndex(prefixMapper{prefix: "git:"})
	a := idx.Intern(Linux, "/build", "", "a.c")
	idx.Promote(a)
	testhelper.Equate(t, idx.FinalList()[0], "git:/build/a.c")
}

type noMatchMapper struct{}

func (noMatchMapper) Map(p string) (string, bool) { return "", false }

func TestPathMapperNoMatchLeavesPathUnchangedAndWarns(t *testing.T) {
	idx := NewSourceFileIndex(noMatchMapper{})
	a := idx.Intern(Linux, "/build", "", "a.c")
	idx.Promote(a)
	testhelper.Equate(t, idx.FinalList()[0], "/build/a.c")

	var sb strings.Builder
	logger.Tail(&sb, 1)
	if !strings.Contains(sb.String(), "/build/a.c") {
		t.Fatalf("expected a mapping warning naming /build/a.c, got %q", sb.String())
	}
}
