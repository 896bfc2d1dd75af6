// Package machosrc adapts a Mach-O binary (thin or one architecture slice
// picked out of a fat binary) into the breakpad collection engine. The
// container is read with blacktop/go-macho, whose File.DWARF accessor
// returns the same stdlib *debug/dwarf.Data type debug/elf.File.DWARF does,
// so the DIE-walking algorithm lives once, in dwarfsrc, and is shared here.
package machosrc

import (
	"encoding/hex"
	"strings"

	macho "github.com/blacktop/go-macho"

	"github.com/symcollect/dump-syms/breakpad"
	"github.com/symcollect/dump-syms/dwarfsrc"
	"github.com/symcollect/dump-syms/internal/curatederrors"
)

// Adapter holds one opened Mach-O slice.
type Adapter struct {
	file *macho.File
}

// Open parses filename, selecting arch out of a fat binary when non-empty
// ("x86_64", "arm64", ...); ignored for thin binaries.
func Open(filename, arch string) (*Adapter, error) {
	var f *macho.File
	var err error
	if arch != "" {
		fat, ferr := macho.OpenFat(filename)
		if ferr == nil {
			defer fat.Close()
			for _, a := range fat.Arches {
				if cpuName(a.File.CPU) == arch {
					f = a.File
					break
				}
			}
			if f == nil {
				return nil, curatederrors.Errorf(curatederrors.ParseError, "architecture "+arch+" not present in fat binary")
			}
		}
	}
	if f == nil {
		f, err = macho.Open(filename)
		if err != nil {
			return nil, curatederrors.Errorf(curatederrors.ParseError, err)
		}
	}
	return &Adapter{file: f}, nil
}

// Close releases the underlying file.
func (a *Adapter) Close() error {
	return a.file.Close()
}

// CPU reports the breakpad CPU token for this slice's architecture.
func (a *Adapter) CPU() string {
	return cpuName(a.file.CPU)
}

func cpuName(cpu interface{ String() string }) string {
	switch cpu.String() {
	case "x86_64":
		return "x86_64"
	case "arm64":
		return "arm64"
	case "arm":
		return "arm"
	case "386":
		return "x86"
	default:
		return "unknown"
	}
}

// CodeID returns the hex-encoded LC_UUID load command payload, Mach-O's
// analogue of an ELF build-id.
func (a *Adapter) CodeID() string {
	if a.file.UUID() == nil {
		return ""
	}
	return strings.ToUpper(hex.EncodeToString(a.file.UUID().UUID[:]))
}

// DebugID renders the LC_UUID as breakpad's 32-hex-char + 8-hex-digit-age
// debug-id. Mach-O has no separate "age" either, so it is always zero; the
// 16-byte UUID already fits the 32-char GUID field exactly.
func (a *Adapter) DebugID() string {
	id := strings.ToUpper(a.CodeID())
	switch {
	case len(id) < 32:
		id += strings.Repeat("0", 32-len(id))
	case len(id) > 32:
		id = id[:32]
	}
	return id + "00000000"
}

// CollectPublics feeds every exported/local symbol table entry into pc and
// stubs uncovered executable sections.
func (a *Adapter) CollectPublics(pc *breakpad.PublicsCollector, mod *breakpad.ModuleInfo) error {
	if a.file.Symtab != nil {
		for _, sym := range a.file.Symtab.Syms {
			if sym.Name == "" || sym.Value == 0 {
				continue
			}
			pc.Collect(&breakpad.ParsedPublic{Addr: sym.Value, Name: sym.Name})
		}
	}

	var sections []breakpad.ExecutableSection
	for _, sec := range a.file.Sections {
		if sec.Addr == 0 || !isExecutableSection(sec.Seg, sec.Name) {
			continue
		}
		sections = append(sections, breakpad.ExecutableSection{Name: sec.Name, Addr: sec.Addr})
	}
	breakpad.ExecutableSectionStubs(mod, sections)

	return nil
}

// isExecutableSection recognizes the handful of Mach-O section names that
// hold executable code, by the __TEXT-segment convention rather than by
// section flags (which vary across go-macho's struct versions): __text is
// ordinary compiled code, __stubs and __stub_helper are PLT-style dynamic
// call thunks that also deserve a stub symbol if otherwise unnamed.
func isExecutableSection(segment, name string) bool {
	if segment != "__TEXT" {
		return false
	}
	switch name {
	case "__text", "__stubs", "__stub_helper":
		return true
	}
	return false
}

// CollectFunctions walks this slice's embedded DWARF (if any) via the
// shared dwarfsrc algorithm.
func (a *Adapter) CollectFunctions(fc *breakpad.FunctionCollector, files *breakpad.SourceFileIndex) error {
	dwrf, err := a.file.DWARF()
	if err != nil || dwrf == nil {
		return nil // stripped Mach-O with a companion dSYM is handled by pointing Open at the dSYM instead
	}
	return dwarfsrc.CollectFunctions(dwrf, fc, files)
}
