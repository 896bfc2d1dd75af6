package breakpad

import (
	"testing"

	"github.com/symcollect/dump-syms/internal/testhelper"
)

func TestParseCDecoratedNameStdcall(t *testing.T) {
	name, size := ParseCDecoratedName("_Foo@8")
	testhelper.Equate(t, name, "Foo")
	if size == nil || *size != 8 {
		t.Fatalf("expected param size 8, got %v", size)
	}
}

func TestParseCDecoratedNameFastcall(t *testing.T) {
	name, size := ParseCDecoratedName("@Bar@12")
	testhelper.Equate(t, name, "Bar")
	if size == nil || *size != 12 {
		t.Fatalf("expected param size 12, got %v", size)
	}
}

func TestParseCDecoratedNameVectorcall(t *testing.T) {
	name, size := ParseCDecoratedName("Baz@@16")
	testhelper.Equate(t, name, "Baz")
	if size == nil || *size != 16 {
		t.Fatalf("expected param size 16, got %v", size)
	}
}

func TestParseCDecoratedNameCdecl(t *testing.T) {
	name, size := ParseCDecoratedName("_main")
	testhelper.Equate(t, name, "main")
	testhelper.Equate(t, size == nil, true)
}

func TestParseCDecoratedNameLeavesAlreadyDemangledNamesAlone(t *testing.T) {
	name, size := ParseCDecoratedName("ns::Foo::Bar(int)")
	testhelper.Equate(t, name, "ns::Foo::Bar(int)")
	testhelper.Equate(t, size == nil, true)
}

func TestParseCDecoratedNamePlainNameUnchanged(t *testing.T) {
	name, size := ParseCDecoratedName("plainGlobal")
	testhelper.Equate(t, name, "plainGlobal")
	testhelper.Equate(t, size == nil, true)
}

func TestSkipPublicNameMSVCConstants(t *testing.T) {
	for _, n := range []string{"??_C@_0BA@abc", "__real@40490fdb", "__xmm@00000000000000000000000000000001", "__ymm@0"} {
		if !skipPublicName(n) {
			t.Errorf("expected %q to be skipped", n)
		}
	}
	if skipPublicName("normalName") {
		t.Errorf("did not expect normalName to be skipped")
	}
}

func TestPublicsCollectorWindowsParsesDecoratedName(t *testing.T) {
	mod := NewModuleInfo(Win, "x86", "DEBUGID", "a.dll", DebugInfo, nil)
	pc := NewPublicsCollector(mod, true)
	pc.Collect(&ParsedPublic{Addr: 0x100, Name: "_Foo@8"})

	sym, ok := mod.Symbols.Get(0x100)
	testhelper.ExpectSuccess(t, ok)
	testhelper.Equate(t, sym.Name, "Foo")
	testhelper.Equate(t, sym.ParamSize, uint32(8))
}

func TestWindowsFinalStubAppendsPastLastSymbol(t *testing.T) {
	mod := NewModuleInfo(Win, "x86", "DEBUGID", "a.dll", DebugInfo, nil)
	mod.Symbols.InsertFunction(&Symbol{RVA: 0x100, Length: 0x10, Name: "fn"})
	WindowsFinalStub(mod)

	sym, ok := mod.Symbols.Get(0x110)
	testhelper.ExpectSuccess(t, ok)
	testhelper.Equate(t, sym.IsSynthetic, true)
	testhelper.Equate(t, sym.IsPublic, true)
}

func TestWindowsPlaceholdersInsertAsFunctions(t *testing.T) {
	mod := NewModuleInfo(Win, "x86", "DEBUGID", "a.dll", DebugInfo, nil)
	WindowsPlaceholders(mod, []AddrRange{{Start: 0x100, End: 0x110}})

	sym, ok := mod.Symbols.Get(0x100)
	testhelper.ExpectSuccess(t, ok)
	testhelper.Equate(t, sym.IsSynthetic, true)
	testhelper.Equate(t, sym.IsPublic, false)
}

func TestExecutableSectionStubsSkipOccupiedAddresses(t *testing.T) {
	mod := NewModuleInfo(Linux, "x86_64", "DEBUGID", "a.so", DebugInfo, nil)
	mod.Symbols.InsertFunction(&Symbol{RVA: 0x1000, Length: 0x100, Name: "fn"})
	ExecutableSectionStubs(mod, []ExecutableSection{{Name: ".text", Addr: 0x1000}, {Name: ".init", Addr: 0x2000}})

	testhelper.Equate(t, mod.Symbols.Len(), 2)
	sym, ok := mod.Symbols.Get(0x2000)
	testhelper.ExpectSuccess(t, ok)
	testhelper.Equate(t, sym.IsPublic, true)
}
