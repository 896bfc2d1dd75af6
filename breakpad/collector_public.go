package breakpad

import "strings"

// ParsedPublic is one entry from a parsed global/public symbol table.
type ParsedPublic struct {
	Addr      uint64
	Name      string
	ParamSize uint32 // only meaningful on Windows; 0 otherwise
}

// skipPublicName reports whether name is one of the MSVC-internal symbols
// that should never appear as a breakpad PUBLIC record: constant strings
// ("??_C") and constant numeric literals ("__real@", "__xmm@", "__ymm@").
func skipPublicName(name string) bool {
	switch {
	case strings.HasPrefix(name, "??_C"):
		return true
	case strings.HasPrefix(name, "__real@"):
		return true
	case strings.HasPrefix(name, "__xmm@"):
		return true
	case strings.HasPrefix(name, "__ymm@"):
		return true
	}
	return false
}

// ParseCDecoratedName implements §4.6's Windows C-decorated-name parser.
// It only applies to names containing neither ':' nor '(' (anything else
// is assumed already demangled/undecorated and is returned unchanged).
//
// There is exactly one implementation of this logic in this engine — the
// original source carried two near-identical copies (one per platform
// variant), which spec §9's Open Questions flags as something an
// implementer should collapse into one.
func ParseCDecoratedName(name string) (string, *uint32) {
	if strings.ContainsAny(name, ":(") {
		return name, nil
	}

	// __vectorcall: "name@@N"
	if at := strings.LastIndex(name, "@@"); at >= 0 {
		if n, ok := parseDecimalSuffix(name[at+2:]); ok {
			return name[:at], &n
		}
	}

	// __stdcall / __fastcall: "_name@N" or "@name@N"
	if len(name) > 0 && (name[0] == '_' || name[0] == '@') {
		if at := strings.LastIndex(name, "@"); at > 0 {
			if n, ok := parseDecimalSuffix(name[at+1:]); ok {
				return name[1:at], &n
			}
		}
	}

	// __cdecl: "_name"
	if len(name) > 0 && name[0] == '_' {
		return name[1:], nil
	}

	return name, nil
}

func parseDecimalSuffix(s string) (uint32, bool) {
	if s == "" {
		return 0, false
	}
	var n uint32
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + uint32(c-'0')
	}
	return n, true
}

// PublicsCollector walks a parsed public/global symbol list, reconciling
// each entry with whatever FunctionCollector already inserted.
type PublicsCollector struct {
	mod     *ModuleInfo
	windows bool
}

// NewPublicsCollector creates a collector writing into mod. windows enables
// the §4.6 C-decorated-name parsing step.
func NewPublicsCollector(mod *ModuleInfo, windows bool) *PublicsCollector {
	return &PublicsCollector{mod: mod, windows: windows}
}

// Collect processes one public symbol per §4.6.
func (pc *PublicsCollector) Collect(p *ParsedPublic) {
	if skipPublicName(p.Name) {
		return
	}

	name := p.Name
	paramSize := p.ParamSize
	if pc.windows {
		parsed, size := ParseCDecoratedName(p.Name)
		name = parsed
		if size != nil {
			paramSize = *size
		}
	}

	sym := &Symbol{
		RVA:       uint32(p.Addr),
		Name:      name,
		ParamSize: paramSize,
	}
	pc.mod.Symbols.InsertPublic(sym, pc.windows)
}

// WindowsPlaceholders runs the §4.6 placeholder pass between
// FunctionCollector and PublicsCollector: for each PE exception-data
// (begin, end) pair not already covered by any symbol, insert a synthetic
// placeholder symbol of that length.
func WindowsPlaceholders(mod *ModuleInfo, ranges []AddrRange) {
	for _, r := range ranges {
		if r.End <= r.Start {
			continue
		}
		rva := uint32(r.Start)
		if _, ok := mod.Symbols.Get(rva); ok {
			continue
		}
		if mod.Symbols.Covers(rva) {
			continue
		}
		mod.Symbols.InsertSynthetic(&Symbol{
			RVA:    rva,
			Length: uint32(r.End - r.Start),
			Name:   "<unknown in " + mod.FileName + ">",
		}, false)
	}
}

// ExecutableSectionStubs runs the Linux/Mac post-publics pass: for each
// executable section header not already represented, insert a zero-length
// synthetic public named "<SECTION ELF section in MODULE>".
//
// Per spec §9's Open Question on this pass: a zero-length synthetic public
// can sit at an address below a real function without violating the
// no-overlap invariant, because SymbolTable.covers treats length-0 ranges
// as covering nothing.
func ExecutableSectionStubs(mod *ModuleInfo, sections []ExecutableSection) {
	for _, s := range sections {
		rva := uint32(s.Addr)
		if _, ok := mod.Symbols.Get(rva); ok {
			continue
		}
		mod.Symbols.InsertSynthetic(&Symbol{
			RVA:  rva,
			Name: "<" + s.Name + " ELF section in " + mod.FileName + ">",
		}, true)
	}
}

// ExecutableSection is one executable section header from a parsed
// ELF/Mach-O image.
type ExecutableSection struct {
	Name string
	Addr uint64
}

// WindowsFinalStub appends one synthetic public symbol just past the last
// symbol's end, per §4.6's "Windows final stub".
func WindowsFinalStub(mod *ModuleInfo) {
	all := mod.Symbols.Ascending()
	if len(all) == 0 {
		return
	}
	last := all[len(all)-1]
	length := last.Length
	if length == 0 {
		length = 1
	}
	rva := last.RVA + length
	mod.Symbols.InsertSynthetic(&Symbol{
		RVA:  rva,
		Name: "<unknown in " + mod.FileName + ">",
	}, true)
}
