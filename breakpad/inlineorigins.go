package breakpad

// Demangler attempts to demangle a mangled symbol name. It returns ok=false
// if it could not make sense of name, in which case callers keep the
// mangled form.
type Demangler interface {
	Demangle(name string) (demangled string, ok bool)
}

// InlineOriginIndex interns the (demangled) names of inlined functions,
// single-phase: every distinct mangled name seen gets a dense id the first
// time it's requested, unlike SourceFileIndex's deferred promotion, because
// every inline origin referenced by collected code does end up emitted (it
// always backs at least one INLINE record).
type InlineOriginIndex struct {
	ids   map[string]uint32
	names []string
}

// NewInlineOriginIndex creates an empty index.
func NewInlineOriginIndex() *InlineOriginIndex {
	return &InlineOriginIndex{ids: make(map[string]uint32)}
}

// GetID returns the dense id for mangledName, demangling it (via d, which
// may be nil to mean "never demangle") the first time it's seen.
func (idx *InlineOriginIndex) GetID(mangledName string, d Demangler) uint32 {
	if id, ok := idx.ids[mangledName]; ok {
		return id
	}

	name := mangledName
	if d != nil {
		if demangled, ok := d.Demangle(mangledName); ok {
			name = demangled
		}
	}

	id := uint32(len(idx.names))
	idx.ids[mangledName] = id
	idx.names = append(idx.names, name)
	return id
}

// FinalList returns the dense list of names in insertion order. An empty
// name is rendered as "<name omitted>" by Emit, per §4.7.
func (idx *InlineOriginIndex) FinalList() []string {
	out := make([]string, len(idx.names))
	copy(out, idx.names)
	return out
}

// Len reports how many distinct origins have been interned.
func (idx *InlineOriginIndex) Len() int {
	return len(idx.names)
}

// Append adds name as a new origin unconditionally, without an id-dedup
// lookup, and returns its new id. Used by Merge (§4.8 step 4) to append the
// right-hand side's origins wholesale.
func (idx *InlineOriginIndex) Append(name string) uint32 {
	id := uint32(len(idx.names))
	idx.names = append(idx.names, name)
	return id
}
