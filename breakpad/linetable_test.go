package breakpad

import (
	"strings"
	"testing"

	"github.com/symcollect/dump-syms/internal/testhelper"
)

func TestLineTableFinalizeComputesLengths(t *testing.T) {
	lt := NewLineTable()
	lt.AddLine(0x100, 10, 0)
	lt.AddLine(0x110, 11, 0)
	lt.AddLine(0x120, 12, 0)
	lt.Finalize(0x100, 0x40, nil)

	lines := lt.Lines()
	testhelper.Equate(t, len(lines), 3)
	testhelper.Equate(t, lines[0].Length, uint32(0x10))
	testhelper.Equate(t, lines[1].Length, uint32(0x10))
	testhelper.Equate(t, lines[2].Length, uint32(0x100+0x40-0x120))
}

func TestLineTableSortsUnsortedInput(t *testing.T) {
	lt := NewLineTable()
	lt.AddLine(0x120, 1, 0)
	lt.AddLine(0x100, 2, 0)
	lt.Finalize(0x100, 0x30, nil)

	lines := lt.Lines()
	testhelper.Equate(t, lines[0].RVA, uint32(0x100))
	testhelper.Equate(t, lines[1].RVA, uint32(0x120))
}

func TestLineTableCoalescesInlineRanges(t *testing.T) {
	lt := NewLineTable()
	site := InlineSite{OriginID: 1, CallDepth: 0, CallLine: 5, CallFileID: 0}
	lt.AddInline(site, InlineRange{RVA: 0x10, Length: 0x10})
	lt.AddInline(site, InlineRange{RVA: 0x20, Length: 0x10})
	lt.AddInline(site, InlineRange{RVA: 0x40, Length: 0x10})
	lt.Finalize(0x0, 0x100, nil)

	ranges := lt.Inlines()[site]
	testhelper.Equate(t, len(ranges), 2)
	testhelper.Equate(t, ranges[0], InlineRange{RVA: 0x10, Length: 0x20})
	testhelper.Equate(t, ranges[1], InlineRange{RVA: 0x40, Length: 0x10})
}

type constantMapper struct {
	out []InlineRange
}

func (m constantMapper) Translate(rva, length uint32) []InlineRange {
	return m.out
}

func TestLineTableAddressMapperSplitsRecords(t *testing.T) {
	lt := NewLineTable()
	lt.AddLine(0x0, 1, 0)
	mapper := constantMapper{out: []InlineRange{{RVA: 0x200, Length: 0x10}, {RVA: 0x100, Length: 0x10}}}
	lt.Finalize(0x0, 0x10, mapper)

	lines := lt.Lines()
	testhelper.Equate(t, len(lines), 2)
	testhelper.Equate(t, lines[0].RVA, uint32(0x100))
	testhelper.Equate(t, lines[1].RVA, uint32(0x200))
}

func TestLineTableEmitPromotesFileIDs(t *testing.T) {
	files := NewSourceFileIndex(nil)
	a := files.Intern(Linux, "/src", "", "a.c")
	b := files.Intern(Linux, "/src", "", "b.c")

	lt := NewLineTable()
	lt.AddLine(0x10, 1, b)
	lt.AddLine(0x20, 2, a)
	lt.Finalize(0x10, 0x20, nil)

	var sb strings.Builder
	if err := lt.Emit(&sb, files); err != nil {
		t.Fatalf("Emit: %v", err)
	}

	testhelper.Equate(t, files.PromotedLen(), 2)
	out := sb.String()
	if !strings.Contains(out, "10 10 1 0") {
		t.Fatalf("expected first line to promote file b.c to id 0, got %q", out)
	}
}

func TestLineTableEmitOrdersInlinesByRVAThenDepth(t *testing.T) {
	lt := NewLineTable()
	outer := InlineSite{OriginID: 0, CallDepth: 0, CallLine: 1, CallFileID: 0}
	inner := InlineSite{OriginID: 1, CallDepth: 1, CallLine: 2, CallFileID: 0}
	lt.AddInline(outer, InlineRange{RVA: 0x10, Length: 0x20})
	lt.AddInline(inner, InlineRange{RVA: 0x10, Length: 0x10})
	lt.Finalize(0x0, 0x30, nil)

	files := NewSourceFileIndex(nil)
	var sb strings.Builder
	if err := lt.Emit(&sb, files); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	out := sb.String()
	outerIdx := strings.Index(out, "INLINE 0 1 0 0")
	innerIdx := strings.Index(out, "INLINE 1 2 0 1")
	if outerIdx < 0 || innerIdx < 0 || outerIdx > innerIdx {
		t.Fatalf("expected depth-0 INLINE before depth-1 at same rva, got %q", out)
	}
}
