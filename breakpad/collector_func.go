package breakpad


// ParsedLine is one line-table entry as read from debug info: the half-open
// address range [Addr, Addr+Size) executes source Line of File. Size may be
// zero, meaning "unknown — treat as 1 byte" (§4.1.1 edge case). Line may be
// zero, meaning "skip this record entirely".
type ParsedLine struct {
	Addr uint64
	Size uint64
	Line uint32
	File uint32 // SourceFileIndex provisional id, already interned by the adapter
}

// ParsedInlinee is one direct inlined call within a function or another
// inlinee: the origin function's mangled name, the address ranges the call
// was instantiated at (may be discontiguous), its own body's line records,
// and any further nested inlinees.
type ParsedInlinee struct {
	OriginMangledName string
	Ranges            []AddrRange
	Lines             []ParsedLine
	Inlinees          []*ParsedInlinee
}

// AddrRange is a half-open [Start, End) address range.
type AddrRange struct {
	Start, End uint64
}

// ParsedFunction is the adapter-supplied view of one function: its address,
// size, mangled name, the flat sorted line records covering its own body
// (excluding anything attributed to an inlinee), and its direct inlinees.
type ParsedFunction struct {
	Address     uint64
	Size        uint64
	MangledName string
	IsC         bool // true if the source language is known to be C: skip demangling
	Lines       []ParsedLine
	Inlinees    []*ParsedInlinee
}

// FunctionCollector walks a parsed debug session's functions into a
// ModuleInfo's SymbolTable, translating each function's mixed self/inline
// line stream per §4.1.1 when emitInlines is set.
type FunctionCollector struct {
	mod         *ModuleInfo
	demangler   Demangler
	emitInlines bool
	addressMap  AddressMapper
}

// NewFunctionCollector creates a collector writing into mod.
func NewFunctionCollector(mod *ModuleInfo, demangler Demangler, emitInlines bool, addressMap AddressMapper) *FunctionCollector {
	return &FunctionCollector{
		mod:         mod,
		demangler:   demangler,
		emitInlines: emitInlines,
		addressMap:  addressMap,
	}
}

// Collect processes fn per §4.5: skip functions at address zero, skip
// (marking multiple) functions that collide with an already-collected
// function, translate the line stream, finalize, demangle, and insert.
func (fc *FunctionCollector) Collect(fn *ParsedFunction) {
	if fn.Address == 0 {
		return
	}
	rva := uint32(fn.Address)

	if existing, ok := fc.mod.Symbols.Get(rva); ok && !existing.IsPublic {
		existing.IsMultiple = true
		logFunctionCollectionWarning(rva, "address already claimed by "+existing.Name)
		return
	}

	lt := NewLineTable()
	if fc.emitInlines {
		translateFunctionLines(lt, fn.Lines, fn.Inlinees, 0, fc.mod.InlineOrigins, fc.demangler)
	} else {
		addLeafLinesNoInlines(lt, fn.Lines)
	}
	lt.Finalize(rva, uint32(fn.Size), fc.addressMap)

	name := fn.MangledName
	if !fn.IsC {
		if fc.demangler != nil {
			if d, ok := fc.demangler.Demangle(fn.MangledName); ok {
				name = d
			} else {
				logDemangleWarning(fn.MangledName)
			}
		}
	}

	sym := &Symbol{
		RVA:    rva,
		Length: uint32(fn.Size),
		Name:   name,
		Lines:  lt,
	}
	fc.mod.Symbols.InsertFunction(sym)
}

// addLeafLinesNoInlines is the §4.5 "no-inlines path": filter zero-line
// records and dedupe consecutive equal (line,file) tuples, ignoring
// inlinees entirely.
func addLeafLinesNoInlines(lt *LineTable, lines []ParsedLine) {
	var lastLine, lastFile uint32
	haveLast := false
	for _, l := range lines {
		if l.Line == 0 {
			continue
		}
		if haveLast && l.Line == lastLine && l.File == lastFile {
			continue
		}
		lt.AddLine(uint32(l.Addr), l.Line, l.File)
		lastLine, lastFile = l.Line, l.File
		haveLast = true
	}
}

// rangedOrigin pairs one inlinee's flattened address ranges with the
// inline-origin id assigned to its mangled name, for the parallel walk in
// translateFunctionLines.
type rangedOrigin struct {
	start, end uint64
	originID   uint32
	inlinee    *ParsedInlinee
}

// translateFunctionLines implements §4.1.1: it recurses into direct
// inlinees first (their own bodies become leaf lines/deeper inline sites at
// depth+1), then walks the function's own (or inlinee's own) flat line list
// in parallel with the sorted list of direct-inlinee ranges, splitting each
// outer line record into the portions not covered by any direct inlinee
// (emitted as deduped leaf lines) and the portions that are (emitted as
// INLINE records keyed by the enclosing line's source location).
func translateFunctionLines(lt *LineTable, lines []ParsedLine, inlinees []*ParsedInlinee, depth uint32, origins *InlineOriginIndex, demangler Demangler) {
	// Step 1: gather direct inlinees' ranges with their origin id, ignoring
	// inlinees with no line records of their own (edge case: "inlinee with
	// zero line records -> ignore").
	var ranged []rangedOrigin
	for _, inl := range inlinees {
		if len(inl.Lines) == 0 {
			continue
		}
		id := origins.GetID(inl.OriginMangledName, demangler)
		for _, r := range inl.Ranges {
			if r.End <= r.Start {
				continue
			}
			ranged = append(ranged, rangedOrigin{start: r.Start, end: r.End, originID: id, inlinee: inl})
		}
	}
	sortRangedOrigins(ranged)

	// Step 2: recurse into each inlinee's own body at depth+1. This is
	// independent of where the call site is textually positioned, since
	// DWARF line addresses are real instantiated addresses either way.
	seen := make(map[*ParsedInlinee]bool)
	for _, ro := range ranged {
		if seen[ro.inlinee] {
			continue
		}
		seen[ro.inlinee] = true
		translateFunctionLines(lt, ro.inlinee.Lines, ro.inlinee.Inlinees, depth+1, origins, demangler)
	}

	// Step 3/4: walk the outer line list against the inline-range list.
	var lastLine, lastFile uint32
	haveLast := false
	rangeIdx := 0
	var globalCursor uint64
	haveCursor := false

	for _, l := range lines {
		if l.Line == 0 {
			continue
		}
		size := l.Size
		if size == 0 {
			size = 1
		}
		start, end := l.Addr, l.Addr+size

		// Defensive: skip stale call-line records re-emitted by faulty
		// debug info.
		if haveCursor && start < globalCursor {
			continue
		}

		cursor := start
		for cursor < end {
			// advance rangeIdx past any already-consumed entries
			for rangeIdx < len(ranged) && ranged[rangeIdx].end <= cursor {
				rangeIdx++
			}

			if rangeIdx < len(ranged) && ranged[rangeIdx].start <= cursor && ranged[rangeIdx].start < end {
				ro := ranged[rangeIdx]
				rangeIdx++

				site := InlineSite{
					OriginID:   ro.originID,
					CallDepth:  depth,
					CallLine:   l.Line,
					CallFileID: l.File,
				}
				ilen := ro.end - ro.start
				lt.AddInline(site, InlineRange{RVA: uint32(ro.start), Length: uint32(ilen)})

				if ro.end > end {
					// faulty DI: inline range larger than enclosing line;
					// still emit one record, cursor jumps past the outer
					// record's end rather than past the inline range.
					cursor = end
				} else {
					cursor = ro.end
				}
				continue
			}

			if rangeIdx < len(ranged) && ranged[rangeIdx].start > cursor && ranged[rangeIdx].start < end {
				// leaf line up to the next inline range's start
				if !haveLast || l.Line != lastLine || l.File != lastFile {
					lt.AddLine(uint32(cursor), l.Line, l.File)
					lastLine, lastFile = l.Line, l.File
					haveLast = true
				}
				cursor = ranged[rangeIdx].start
				continue
			}

			// no more relevant inline ranges in this outer record
			if !haveLast || l.Line != lastLine || l.File != lastFile {
				lt.AddLine(uint32(cursor), l.Line, l.File)
				lastLine, lastFile = l.Line, l.File
				haveLast = true
			}
			cursor = end
		}

		globalCursor = cursor
		haveCursor = true
	}
}

func sortRangedOrigins(r []rangedOrigin) {
	// simple insertion sort is fine: direct-inlinee counts per function are
	// small, and this keeps the comparison explicit and stable.
	for i := 1; i < len(r); i++ {
		j := i
		for j > 0 && r[j-1].start > r[j].start {
			r[j-1], r[j] = r[j], r[j-1]
			j--
		}
	}
}
