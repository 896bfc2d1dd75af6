// Package pesrc adapts a Windows PE image and its companion PDB into the
// breakpad collection engine.
//
// The PE container itself is read with github.com/saferwall/pe, which
// recovers the code-id (COFF timestamp + SizeOfImage, as breakpad expects
// it) and the CodeView debug directory entry naming the PDB and its
// debug-id. PDB stream decoding (symbols, line numbers, globals, the frame
// table) has no suitable library anywhere in the retrieval pack, so this
// package defines PdbSource, the minimal data model our engine needs from
// a PDB, and provides a debug/pe-based fallback (stdlib) sufficient to
// recover exception-data ranges and the COFF symbol table even without a
// real PDB parser wired in — documented as a stdlib exception.
package pesrc

import (
	"debug/pe"
	"encoding/binary"
	"fmt"

	saferwallpe "github.com/saferwall/pe"

	"github.com/symcollect/dump-syms/breakpad"
	"github.com/symcollect/dump-syms/internal/curatederrors"
)

// PdbSource is the data model pesrc needs out of a PDB: functions with
// their line tables and inline sites, global symbols, and exception-data
// ranges for the placeholder pass. A real PDB-stream decoder (msf/tpi/dbi
// reader) would implement this directly from its own parsed streams; the
// debug/pe fallback below synthesizes a degraded version of it from COFF
// debug info alone.
type PdbSource interface {
	Functions() []*breakpad.ParsedFunction
	Globals() []*breakpad.ParsedPublic
	ExceptionRanges() []breakpad.AddrRange
	DebugID() string
	PDBName() string
}

// Adapter holds one opened PE image plus whichever PdbSource was resolved
// for it (a real PDB decoder, or the stdlib fallback).
type Adapter struct {
	pe  *saferwallpe.File
	pdb PdbSource

	codeID  string
	peFile  string
	machine uint16
	imgSize uint32
}

// Open parses filename as a PE image and resolves pdb (which may be the
// stdlib fallback built by OpenFallbackPDB, or nil if no PDB could be
// located and only COFF-level symbols will be collected).
func Open(filename string, pdb PdbSource) (*Adapter, error) {
	f, err := saferwallpe.New(filename, &saferwallpe.Options{})
	if err != nil {
		return nil, curatederrors.Errorf(curatederrors.ParseError, err)
	}
	if err := f.Parse(); err != nil {
		return nil, curatederrors.Errorf(curatederrors.ParseError, err)
	}

	a := &Adapter{pe: f, pdb: pdb, peFile: filename}
	a.resolveCodeID()
	return a, nil
}

func (a *Adapter) resolveCodeID() {
	oh32, is32 := a.pe.NtHeader.OptionalHeader.(saferwallpe.ImageOptionalHeader32)
	oh64, is64 := a.pe.NtHeader.OptionalHeader.(saferwallpe.ImageOptionalHeader64)

	timestamp := a.pe.NtHeader.FileHeader.TimeDateStamp
	var size uint32
	switch {
	case is32:
		size = oh32.SizeOfImage
	case is64:
		size = oh64.SizeOfImage
	}
	a.machine = a.pe.NtHeader.FileHeader.Machine
	a.imgSize = size

	// breakpad's Windows CODE_ID is the COFF timestamp as 8-digit uppercase
	// hex followed by SizeOfImage as unpadded uppercase hex, concatenated
	// with no separator.
	a.codeID = fmt.Sprintf("%08X%X", timestamp, size)
}

// Close is a no-op: saferwall/pe maps the file into memory and does not
// require an explicit handle release beyond garbage collection.
func (a *Adapter) Close() error { return nil }

// CPU reports the breakpad CPU token for this image's machine type.
func (a *Adapter) CPU() string {
	switch a.machine {
	case 0x8664:
		return "x86_64"
	case 0x14c:
		return "x86"
	case 0xaa64:
		return "arm64"
	default:
		return "unknown"
	}
}

// CodeID returns the COFF-timestamp+size code-id breakpad expects on
// Windows INFO CODE_ID lines.
func (a *Adapter) CodeID() string { return a.codeID }

// PEFile returns the PE's own filename, recorded alongside CodeID.
func (a *Adapter) PEFile() string { return a.peFile }

// DebugID returns the PDB's GUID+age, if a PdbSource was resolved.
func (a *Adapter) DebugID() string {
	if a.pdb == nil {
		return ""
	}
	return a.pdb.DebugID()
}

// CollectPublics feeds every resolved global symbol into pc, runs the
// Windows exception-data placeholder pass, and finishes with the trailing
// stub past the last symbol.
func (a *Adapter) CollectPublics(pc *breakpad.PublicsCollector, mod *breakpad.ModuleInfo) error {
	if a.pdb != nil {
		breakpad.WindowsPlaceholders(mod, a.pdb.ExceptionRanges())
		for _, g := range a.pdb.Globals() {
			pc.Collect(g)
		}
	}
	breakpad.WindowsFinalStub(mod)
	return nil
}

// CollectFunctions feeds every resolved function into fc.
func (a *Adapter) CollectFunctions(fc *breakpad.FunctionCollector) error {
	if a.pdb == nil {
		return nil
	}
	for _, fn := range a.pdb.Functions() {
		fc.Collect(fn)
	}
	return nil
}

// fallbackPDB is the stdlib debug/pe-based PdbSource used when no real PDB
// stream decoder is available: it recovers COFF symbols (as both functions
// with no line info and globals) and .pdata exception-data ranges, which
// is enough to drive collection end to end, just without source lines.
type fallbackPDB struct {
	functions []*breakpad.ParsedFunction
	globals   []*breakpad.ParsedPublic
	ranges    []breakpad.AddrRange
	debugID   string
	pdbName   string
}

func (f *fallbackPDB) Functions() []*breakpad.ParsedFunction { return f.functions }
func (f *fallbackPDB) Globals() []*breakpad.ParsedPublic     { return f.globals }
func (f *fallbackPDB) ExceptionRanges() []breakpad.AddrRange { return f.ranges }
func (f *fallbackPDB) DebugID() string                       { return f.debugID }
func (f *fallbackPDB) PDBName() string                       { return f.pdbName }

// OpenFallbackPDB builds a degraded PdbSource directly from a PE image's
// own COFF symbol table, CodeView debug directory entry, and .pdata
// section, entirely via the standard library's debug/pe package. It is
// the engine's documented fallback for inputs with no PDB on disk and no
// symbol server configured.
func OpenFallbackPDB(filename string) (PdbSource, error) {
	f, err := pe.Open(filename)
	if err != nil {
		return nil, curatederrors.Errorf(curatederrors.ParseError, err)
	}
	defer f.Close()

	out := &fallbackPDB{}
	out.debugID, out.pdbName = readCodeViewDebugID(f)

	for _, sym := range f.COFFSymbols {
		name, err := sym.FullName(f.StringTable)
		if err != nil || name == "" {
			continue
		}
		addr := uint64(sym.Value)
		const functionDefinition = 0x20
		if sym.Type == functionDefinition {
			out.functions = append(out.functions, &breakpad.ParsedFunction{
				Address:     addr,
				MangledName: name,
			})
		} else {
			out.globals = append(out.globals, &breakpad.ParsedPublic{Addr: addr, Name: name})
		}
	}

	if sec := f.Section(".pdata"); sec != nil {
		out.ranges = readPdataRanges(sec)
	}

	return out, nil
}

// ReadCodeViewDebugID opens filename as a PE image purely to recover the
// name and debug-id of the PDB it references, without decoding anything
// else — the minimum a symbol-server lookup needs before any PDB bytes
// exist locally.
func ReadCodeViewDebugID(filename string) (debugID, pdbName string, err error) {
	f, openErr := pe.Open(filename)
	if openErr != nil {
		return "", "", curatederrors.Errorf(curatederrors.ParseError, openErr)
	}
	defer f.Close()
	debugID, pdbName = readCodeViewDebugID(f)
	return debugID, pdbName, nil
}

// readCodeViewDebugID extracts the GUID+age from the PE's IMAGE_DEBUG_TYPE_CODEVIEW
// entry (an RSDS record: signature, 16-byte GUID, uint32 age, NUL-terminated
// PDB path), rendering the GUID+age the way breakpad's DebugID expects:
// the GUID's bytes reordered per the CodeView convention, then the age as
// uppercase hex with no separator.
func readCodeViewDebugID(f *pe.File) (debugID, pdbName string) {
	debugDir := f.Section(".debug")
	if debugDir == nil {
		return "", ""
	}
	data, err := debugDir.Data()
	if err != nil || len(data) < 24 {
		return "", ""
	}
	if string(data[0:4]) != "RSDS" {
		return "", ""
	}

	guid := data[4:20]
	age := binary.LittleEndian.Uint32(data[20:24])

	reordered := make([]byte, 16)
	reordered[0], reordered[1], reordered[2], reordered[3] = guid[3], guid[2], guid[1], guid[0]
	reordered[4], reordered[5] = guid[5], guid[4]
	reordered[6], reordered[7] = guid[7], guid[6]
	copy(reordered[8:], guid[8:16])

	nameEnd := 24
	for nameEnd < len(data) && data[nameEnd] != 0 {
		nameEnd++
	}

	return fmt.Sprintf("%X%08X", reordered, age), string(data[24:nameEnd])
}

// readPdataRanges decodes x64 .pdata's RUNTIME_FUNCTION array: each entry
// is three little-endian uint32s (BeginAddress, EndAddress,
// UnwindInfoAddress); only the first two matter to the placeholder pass.
func readPdataRanges(sec *pe.Section) []breakpad.AddrRange {
	data, err := sec.Data()
	if err != nil {
		return nil
	}
	const entrySize = 12
	var out []breakpad.AddrRange
	for off := 0; off+entrySize <= len(data); off += entrySize {
		begin := binary.LittleEndian.Uint32(data[off : off+4])
		end := binary.LittleEndian.Uint32(data[off+4 : off+8])
		if end <= begin {
			continue
		}
		out = append(out, breakpad.AddrRange{Start: uint64(begin), End: uint64(end)})
	}
	return out
}
