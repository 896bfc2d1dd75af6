// Package dwarfsrc adapts an ELF binary carrying its own DWARF debug
// information into the breakpad package's collection engine.
// .gnu_debuglink is not followed and .gnu_debugdata is not decoded by Open.
//
// The DIE-walking idiom below is grounded on the debugger's own DWARF
// builder: a flat, offset-keyed map of every concrete subprogram and
// inlined-subroutine entry in a compile unit, each resolved to a [low,high)
// address range from its Lowpc/Highpc attributes (handling both the
// dwarf-2 absolute-address and dwarf-4 length-as-constant encodings of
// Highpc), with inline call trees reconstructed by range containment
// rather than by re-walking DIE parent/child nesting.
package dwarfsrc

import (
	"bytes"
	"debug/dwarf"
	"debug/elf"
	"io"
	"sort"
	"strings"

	"github.com/ulikunitz/xz"

	"github.com/symcollect/dump-syms/breakpad"
	"github.com/symcollect/dump-syms/internal/curatederrors"
)

// Adapter holds one opened ELF file and its resolved DWARF data, ready to
// drive a ModuleInfo's collection.
type Adapter struct {
	elf  *elf.File
	dwrf *dwarf.Data

	buildID string
}

// Open parses filename as an ELF binary and reads only the DWARF the file
// itself carries. If it carries none, the Adapter still serves
// publics-only collection. Open does not follow .gnu_debuglink and does not
// decode .gnu_debugdata; DecompressMiniDebugInfo is a separate helper that
// Open does not call.
func Open(filename string) (*Adapter, error) {
	f, err := elf.Open(filename)
	if err != nil {
		return nil, curatederrors.Errorf(curatederrors.ParseError, err)
	}

	a := &Adapter{elf: f}
	a.buildID = readBuildID(f)

	dwrf, err := f.DWARF()
	if err != nil {
		return a, nil // no DWARF: publics-only collection is still valid
	}
	a.dwrf = dwrf
	return a, nil
}

// Close releases the underlying file.
func (a *Adapter) Close() error {
	return a.elf.Close()
}

// CPU reports the breakpad CPU token for this binary's machine type.
func (a *Adapter) CPU() string {
	switch a.elf.Machine {
	case elf.EM_X86_64:
		return "x86_64"
	case elf.EM_386:
		return "x86"
	case elf.EM_AARCH64:
		return "arm64"
	case elf.EM_ARM:
		return "arm"
	default:
		return "unknown"
	}
}

// CodeID returns the uppercase hex ELF build-id, or "" if the binary
// carries none.
func (a *Adapter) CodeID() string {
	return strings.ToUpper(a.buildID)
}

// DebugID renders this ELF binary's build-id as breakpad's 32-hex-char +
// 8-hex-digit-age debug-id: ELF has no real "age" concept, so the age is
// always zero, and the build-id (rarely exactly 16 bytes) is right-padded
// (zeros appended) or truncated to fill the 32-char GUID field.
func (a *Adapter) DebugID() string {
	id := strings.ToUpper(a.buildID)
	switch {
	case len(id) < 32:
		id += strings.Repeat("0", 32-len(id))
	case len(id) > 32:
		id = id[:32]
	}
	return id + "00000000"
}

func readBuildID(f *elf.File) string {
	sec := f.Section(".note.gnu.build-id")
	if sec == nil {
		return ""
	}
	data, err := sec.Data()
	if err != nil {
		return ""
	}
	return parseBuildIDNote(data)
}

// parseBuildIDNote decodes a single ELF note record: namesz, descsz, type
// (each a 4-byte little-endian word), then the name and description,
// each padded to a 4-byte boundary.
func parseBuildIDNote(data []byte) string {
	if len(data) < 12 {
		return ""
	}
	namesz := le32(data[0:4])
	descsz := le32(data[4:8])
	nameOff := 12
	nameEnd := nameOff + pad4(int(namesz))
	descOff := nameEnd
	descEnd := descOff + int(descsz)
	if descEnd > len(data) {
		return ""
	}
	desc := data[descOff:descEnd]

	const hex = "0123456789abcdef"
	out := make([]byte, len(desc)*2)
	for i, b := range desc {
		out[i*2] = hex[b>>4]
		out[i*2+1] = hex[b&0xf]
	}
	return string(out)
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func pad4(n int) int {
	if n%4 == 0 {
		return n
	}
	return n + (4 - n%4)
}

// DecompressMiniDebugInfo decompresses a .gnu_debugdata section's xz
// payload into a fresh ELF image the caller can feed back through Open (by
// writing it to a temp file) or through elf.NewFile directly.
func DecompressMiniDebugInfo(compressed []byte) ([]byte, error) {
	r, err := xz.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, curatederrors.Errorf(curatederrors.ParseError, err)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, curatederrors.Errorf(curatederrors.IoError, err)
	}
	return out, nil
}

// CollectPublics feeds every STT_FUNC/STT_OBJECT symbol from the ELF
// symbol table (preferring .symtab, falling back to .dynsym for stripped
// binaries) into pc, then stubs every executable section not already
// covered by a real symbol.
func (a *Adapter) CollectPublics(pc *breakpad.PublicsCollector, mod *breakpad.ModuleInfo) error {
	syms, err := a.elf.Symbols()
	if err != nil || len(syms) == 0 {
		syms, err = a.elf.DynamicSymbols()
	}
	if err != nil && len(syms) == 0 {
		// No symbol table at all is not an error: a fully stripped binary
		// with separate DWARF-only debug info can still be collected.
		err = nil
	}

	for _, s := range syms {
		if elf.ST_TYPE(s.Info) != elf.STT_FUNC && elf.ST_TYPE(s.Info) != elf.STT_OBJECT {
			continue
		}
		if s.Name == "" || s.Value == 0 {
			continue
		}
		pc.Collect(&breakpad.ParsedPublic{Addr: s.Value, Name: s.Name})
	}

	var sections []breakpad.ExecutableSection
	for _, sec := range a.elf.Sections {
		if sec.Flags&elf.SHF_EXECINSTR == 0 || sec.Addr == 0 {
			continue
		}
		sections = append(sections, breakpad.ExecutableSection{Name: sec.Name, Addr: sec.Addr})
	}
	breakpad.ExecutableSectionStubs(mod, sections)

	return nil
}

// frame is one concrete subprogram or inlined-subroutine DIE, resolved to
// an address range, ready for containment-based tree reconstruction.
type frame struct {
	low, high  uint64
	isInline   bool
	originName string // only set for inline frames
	parent     *frame
	children   []*frame
}

func (fr *frame) size() uint64 { return fr.high - fr.low }

// CollectFunctions walks every compile unit's DWARF entries, reconstructs
// each concrete subprogram's inline-call tree by address-range
// containment, attributes line-table entries to the frame whose range
// contains them, and feeds the result to fc.
func (a *Adapter) CollectFunctions(fc *breakpad.FunctionCollector, files *breakpad.SourceFileIndex) error {
	if a.dwrf == nil {
		return nil
	}
	return CollectFunctions(a.dwrf, fc, files)
}

// CollectFunctions is the container-agnostic half of the DWARF walk: given
// already-resolved *dwarf.Data (from debug/elf.File.DWARF,
// debug/macho.File.DWARF, or an equivalent third-party accessor), it walks
// every compile unit exactly as the ELF adapter does. machosrc calls this
// directly so both container formats share one DWARF implementation.
func CollectFunctions(dwrf *dwarf.Data, fc *breakpad.FunctionCollector, files *breakpad.SourceFileIndex) error {
	r := dwrf.Reader()
	var cu *dwarf.Entry
	var compDir string
	abstractNames := make(map[dwarf.Offset]string)
	var frames []*frame

	flush := func() error {
		if cu == nil {
			return nil
		}
		return collectCompileUnit(dwrf, cu, compDir, frames, fc, files)
	}

	for {
		entry, err := r.Next()
		if err != nil {
			return curatederrors.Errorf(curatederrors.ParseError, err)
		}
		if entry == nil {
			break
		}
		if entry.Offset == 0 {
			continue
		}

		switch entry.Tag {
		case dwarf.TagCompileUnit:
			if err := flush(); err != nil {
				return err
			}
			cu = entry
			frames = nil
			abstractNames = make(map[dwarf.Offset]string)
			if f := entry.AttrField(dwarf.AttrCompDir); f != nil {
				compDir, _ = f.Val.(string)
			} else {
				compDir = ""
			}

		case dwarf.TagSubprogram:
			low, high, ok := pcRange(entry)
			name := attrString(entry, dwarf.AttrName)
			if name == "" {
				name = attrString(entry, dwarf.AttrLinkageName)
			}
			if name != "" {
				abstractNames[entry.Offset] = name
			}
			if !ok {
				continue // abstract/declaration-only subprogram
			}
			fr := &frame{low: low, high: high}
			frames = append(frames, fr)

		case dwarf.TagInlinedSubroutine:
			low, high, ok := pcRange(entry)
			if !ok {
				continue
			}
			origin := ""
			if of := entry.AttrField(dwarf.AttrAbstractOrigin); of != nil {
				if off, ok := of.Val.(dwarf.Offset); ok {
					origin = abstractNames[off]
				}
			}
			fr := &frame{low: low, high: high, isInline: true, originName: origin}
			frames = append(frames, fr)
		}
	}

	return flush()
}

// pcRange resolves an entry's [low, high) address range from its
// DW_AT_low_pc/DW_AT_high_pc attributes, handling both encodings of
// high_pc: an absolute address (dwarf-2, ClassAddress) or a length
// relative to low_pc (dwarf-4, ClassConstant).
func pcRange(entry *dwarf.Entry) (low, high uint64, ok bool) {
	lowField := entry.AttrField(dwarf.AttrLowpc)
	if lowField == nil {
		return 0, 0, false
	}
	lv, isAddr := lowField.Val.(uint64)
	if !isAddr {
		return 0, 0, false
	}
	low = lv

	highField := entry.AttrField(dwarf.AttrHighpc)
	if highField == nil {
		return 0, 0, false
	}
	switch highField.Class {
	case dwarf.ClassAddress:
		high, ok = highField.Val.(uint64)
		return low, high, ok
	case dwarf.ClassConstant:
		length, isInt := highField.Val.(int64)
		if !isInt {
			return 0, 0, false
		}
		return low, low + uint64(length), true
	default:
		return 0, 0, false
	}
}

func attrString(entry *dwarf.Entry, attr dwarf.Attr) string {
	f := entry.AttrField(attr)
	if f == nil {
		return ""
	}
	s, _ := f.Val.(string)
	return s
}

// collectCompileUnit reconstructs the containment tree for one compile
// unit's frames, reads its line program once, and feeds each root
// (non-inline) frame to fc as a ParsedFunction.
func collectCompileUnit(dwrf *dwarf.Data, cu *dwarf.Entry, compDir string, frames []*frame, fc *breakpad.FunctionCollector, files *breakpad.SourceFileIndex) error {
	if len(frames) == 0 {
		return nil
	}

	attachParents(frames)

	lr, err := dwrf.LineReader(cu)
	if err != nil {
		return curatederrors.Errorf(curatederrors.ParseError, err)
	}
	lines, err := readLineProgram(lr, compDir, files)
	if err != nil {
		return err
	}

	for _, fr := range frames {
		if fr.isInline || fr.parent != nil {
			continue // only roots (concrete subprograms) start a collection
		}
		pf := &breakpad.ParsedFunction{
			Address:  fr.low,
			Size:     fr.size(),
			Lines:    linesInRange(lines, fr.low, fr.high),
			Inlinees: buildInlinees(fr, lines),
		}
		fc.Collect(pf)
	}

	return nil
}

// attachParents assigns each inline frame its tightest containing frame
// (the smallest-range frame, other than itself, whose range contains it),
// reconstructing the inline call tree without needing DIE parent/child
// traversal.
func attachParents(frames []*frame) {
	sorted := make([]*frame, len(frames))
	copy(sorted, frames)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].size() < sorted[j].size() })

	for _, fr := range frames {
		if !fr.isInline {
			continue
		}
		var best *frame
		for _, cand := range sorted {
			if cand == fr {
				continue
			}
			if cand.low <= fr.low && fr.high <= cand.high && cand.size() > fr.size() {
				best = cand
				break
			}
		}
		fr.parent = best
		if best != nil {
			best.children = append(best.children, fr)
		}
	}
}

func buildInlinees(parent *frame, lines []breakpad.ParsedLine) []*breakpad.ParsedInlinee {
	if len(parent.children) == 0 {
		return nil
	}
	out := make([]*breakpad.ParsedInlinee, 0, len(parent.children))
	for _, child := range parent.children {
		out = append(out, &breakpad.ParsedInlinee{
			OriginMangledName: child.originName,
			Ranges:            []breakpad.AddrRange{{Start: child.low, End: child.high}},
			Lines:             linesInRange(lines, child.low, child.high),
			Inlinees:          buildInlinees(child, lines),
		})
	}
	return out
}

func linesInRange(lines []breakpad.ParsedLine, low, high uint64) []breakpad.ParsedLine {
	start := sort.Search(len(lines), func(i int) bool { return lines[i].Addr >= low })
	end := sort.Search(len(lines), func(i int) bool { return lines[i].Addr >= high })
	if start >= end {
		return nil
	}
	out := make([]breakpad.ParsedLine, end-start)
	copy(out, lines[start:end])
	return out
}

// readLineProgram drains a compile unit's line number program into a flat,
// address-sorted slice, interning each referenced file into files and
// skipping DW_LNE_end_sequence markers (they close a contiguous run, they
// don't describe a real instruction).
func readLineProgram(lr *dwarf.LineReader, compDir string, files *breakpad.SourceFileIndex) ([]breakpad.ParsedLine, error) {
	var out []breakpad.ParsedLine
	var entry dwarf.LineEntry
	for {
		err := lr.Next(&entry)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, curatederrors.Errorf(curatederrors.ParseError, err)
		}
		if entry.EndSequence {
			continue
		}
		var fileID uint32
		if entry.File != nil {
			fileID = files.Intern(breakpad.Linux, compDir, "", entry.File.Name)
		}
		out = append(out, breakpad.ParsedLine{
			Addr: entry.Address,
			Line: uint32(entry.Line),
			File: fileID,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Addr < out[j].Addr })
	return out, nil
}
