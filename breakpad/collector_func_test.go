package breakpad

import (
	"testing"

	"github.com/symcollect/dump-syms/internal/testhelper"
)

func newTestModule() *ModuleInfo {
	return NewModuleInfo(Linux, "x86_64", "AAA", "a.so", DebugInfo, nil)
}

func TestFunctionCollectorSkipsZeroAddress(t *testing.T) {
	mod := newTestModule()
	fc := NewFunctionCollector(mod, nil, false, nil)
	fc.Collect(&ParsedFunction{Address: 0, Size: 0x10, MangledName: "f"})
	testhelper.Equate(t, mod.Symbols.Len(), 0)
}

func TestFunctionCollectorNoInlinesDedupesConsecutiveLines(t *testing.T) {
	mod := newTestModule()
	fc := NewFunctionCollector(mod, nil, false, nil)
	fc.Collect(&ParsedFunction{
		Address: 0x10,
		Size:    0x30,
		IsC:     true,
		Lines: []ParsedLine{
			{Addr: 0x10, Line: 5, File: 0},
			{Addr: 0x18, Line: 5, File: 0},
			{Addr: 0x20, Line: 6, File: 0},
		},
	})

	sym, ok := mod.Symbols.Get(0x10)
	testhelper.ExpectSuccess(t, ok)
	testhelper.Equate(t, len(sym.Lines.Lines()), 2)
}

func TestFunctionCollectorMarksCollisionMultiple(t *testing.T) {
	mod := newTestModule()
	fc := NewFunctionCollector(mod, nil, false, nil)
	fc.Collect(&ParsedFunction{Address: 0x10, Size: 0x10, IsC: true, MangledName: "a"})
	fc.Collect(&ParsedFunction{Address: 0x10, Size: 0x10, IsC: true, MangledName: "b"})

	sym, _ := mod.Symbols.Get(0x10)
	testhelper.Equate(t, sym.IsMultiple, true)
}

type stubDemangler struct{}

func (stubDemangler) Demangle(name string) (string, bool) {
	if name == "_Z3foov" {
		return "foo()", true
	}
	return "", false
}

func TestFunctionCollectorDemangles(t *testing.T) {
	mod := newTestModule()
	fc := NewFunctionCollector(mod, stubDemangler{}, false, nil)
	fc.Collect(&ParsedFunction{Address: 0x10, Size: 0x10, MangledName: "_Z3foov"})

	sym, _ := mod.Symbols.Get(0x10)
	testhelper.Equate(t, sym.Name, "foo()")
}

func TestFunctionCollectorKeepsMangledOnDemangleFailure(t *testing.T) {
	mod := newTestModule()
	fc := NewFunctionCollector(mod, stubDemangler{}, false, nil)
	fc.Collect(&ParsedFunction{Address: 0x10, Size: 0x10, MangledName: "weird"})

	sym, _ := mod.Symbols.Get(0x10)
	testhelper.Equate(t, sym.Name, "weird")
}

func TestTranslateFunctionLinesSplitsAroundInlinedCall(t *testing.T) {
	mod := newTestModule()
	fc := NewFunctionCollector(mod, nil, true, nil)

	inlinee := &ParsedInlinee{
		OriginMangledName: "inlined_fn",
		Ranges:            []AddrRange{{Start: 0x18, End: 0x20}},
		Lines: []ParsedLine{
			{Addr: 0x18, Size: 8, Line: 100, File: 0},
		},
	}

	fc.Collect(&ParsedFunction{
		Address: 0x10,
		Size:    0x20,
		IsC:     true,
		Lines: []ParsedLine{
			{Addr: 0x10, Size: 8, Line: 1, File: 0},
			{Addr: 0x18, Size: 8, Line: 1, File: 0}, // covered entirely by the inline call
		},
		Inlinees: []*ParsedInlinee{inlinee},
	})

	sym, ok := mod.Symbols.Get(0x10)
	testhelper.ExpectSuccess(t, ok)
	lines := sym.Lines.Lines()

	// outer leaf line for [0x10,0x18), inline body leaf line for [0x18,0x20)
	testhelper.Equate(t, len(lines), 2)
	testhelper.Equate(t, lines[0].RVA, uint32(0x10))
	testhelper.Equate(t, lines[1].RVA, uint32(0x18))
	testhelper.Equate(t, lines[1].LineNumber, uint32(100))

	inlines := sym.Lines.Inlines()
	testhelper.Equate(t, len(inlines), 1)
	for site, ranges := range inlines {
		testhelper.Equate(t, site.CallDepth, uint32(0))
		testhelper.Equate(t, ranges[0], InlineRange{RVA: 0x18, Length: 0x8})
	}
}

func TestTranslateFunctionLinesIgnoresZeroLineInlinee(t *testing.T) {
	mod := newTestModule()
	fc := NewFunctionCollector(mod, nil, true, nil)

	inlinee := &ParsedInlinee{
		OriginMangledName: "empty_inline",
		Ranges:            []AddrRange{{Start: 0x18, End: 0x20}},
	}

	fc.Collect(&ParsedFunction{
		Address: 0x10,
		Size:    0x20,
		IsC:     true,
		Lines: []ParsedLine{
			{Addr: 0x10, Size: 0x10, Line: 1, File: 0},
		},
		Inlinees: []*ParsedInlinee{inlinee},
	})

	sym, _ := mod.Symbols.Get(0x10)
	testhelper.Equate(t, len(sym.Lines.Inlines()), 0)
	testhelper.Equate(t, len(sym.Lines.Lines()), 1)
}
