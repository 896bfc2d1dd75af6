package breakpad

import (
	"sort"
	"strings"
)

// Symbol is one entry of a SymbolTable: either a PUBLIC (no line data) or a
// FUNC (carries a LineTable, possibly empty if the function has no line
// information at all).
type Symbol struct {
	RVA         uint32
	Length      uint32
	ParamSize   uint32
	Name        string
	IsPublic    bool
	IsMultiple  bool
	IsSynthetic bool
	Lines       *LineTable
}

// SymbolTable is an ordered map rva→Symbol enforcing the no-overlap and
// multiplicity rules of §4.4. It is the Go analogue of the teacher's
// disassembly/symbols table type: a map for O(1) exact-address lookup plus
// a parallel ordered index, kept in ascending-rva order on every insert.
type SymbolTable struct {
	byRVA map[uint32]*Symbol
	order []uint32 // ascending, kept in sync with byRVA
}

// NewSymbolTable creates an empty table.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{byRVA: make(map[uint32]*Symbol)}
}

// Get returns the symbol at exactly rva, if any.
func (t *SymbolTable) Get(rva uint32) (*Symbol, bool) {
	s, ok := t.byRVA[rva]
	return s, ok
}

// Len reports how many symbols the table holds.
func (t *SymbolTable) Len() int {
	return len(t.order)
}

// Ascending returns the symbols in ascending rva order (invariant 1).
func (t *SymbolTable) Ascending() []*Symbol {
	out := make([]*Symbol, len(t.order))
	for i, rva := range t.order {
		out[i] = t.byRVA[rva]
	}
	return out
}

// insertSorted adds a brand-new rva key to the order slice, keeping it sorted.
func (t *SymbolTable) insertSorted(rva uint32, sym *Symbol) {
	idx := sort.Search(len(t.order), func(i int) bool { return t.order[i] >= rva })
	t.order = append(t.order, 0)
	copy(t.order[idx+1:], t.order[idx:])
	t.order[idx] = rva
	t.byRVA[rva] = sym
}

// covers reports whether some prior symbol's [rva, rva+len) range covers
// the given rva, i.e. there exists a symbol with a strictly smaller rva
// whose range extends past it. Per the relaxation noted in spec §9 (Open
// Question 4), a zero-length symbol never "covers" anything — this allows
// the Linux/Mac zero-length executable-section stubs to coexist below real
// functions without tripping the no-overlap invariant.
func (t *SymbolTable) covers(rva uint32) bool {
	idx := sort.Search(len(t.order), func(i int) bool { return t.order[i] >= rva })
	if idx == 0 {
		return false
	}
	prev := t.byRVA[t.order[idx-1]]
	if prev.Length == 0 {
		return false
	}
	return t.order[idx-1]+prev.Length > rva
}

// InsertFunction applies the §4.4 insertion rules for a function symbol:
//   - empty slot: inserted as-is (IsPublic=false)
//   - occupied by a function: first-writer wins; the existing entry is
//     marked IsMultiple and sym is discarded
//   - occupied by a public: sym replaces it, marked IsMultiple
func (t *SymbolTable) InsertFunction(sym *Symbol) {
	sym.IsPublic = false

	if existing, ok := t.byRVA[sym.RVA]; ok {
		if existing.IsPublic {
			sym.IsMultiple = true
			t.byRVA[sym.RVA] = sym
		} else {
			existing.IsMultiple = true
		}
		return
	}

	t.insertSorted(sym.RVA, sym)
}

// InsertPublic applies the §4.4 insertion rules for a public symbol.
// windows enables the Windows-only name-enrichment rule when a public
// collides with a function at the same rva.
func (t *SymbolTable) InsertPublic(sym *Symbol, windows bool) {
	sym.IsPublic = true

	if existing, ok := t.byRVA[sym.RVA]; ok {
		if existing.IsPublic {
			existing.IsMultiple = true
			if sym.Name < existing.Name {
				existing.Name = sym.Name
			}
		} else {
			// function occupies the slot; same rva, not a range-cover case.
			if windows && !strings.Contains(existing.Name, "(") {
				existing.Name = sym.Name
			}
			if sym.ParamSize != 0 {
				existing.ParamSize = sym.ParamSize
			}
		}
		return
	}

	if t.covers(sym.RVA) {
		return // silently skip: already inside a function's range
	}

	t.insertSorted(sym.RVA, sym)
}

// InsertSynthetic inserts a placeholder symbol only if rva is completely
// unoccupied; it never overwrites any existing entry, public or function.
// isPublic controls whether the placeholder emits as a PUBLIC or a FUNC
// record: the Linux/Mac section stubs and the Windows final stub are
// synthetic publics (§4.6), while the Windows exception-data placeholders
// are synthetic functions.
func (t *SymbolTable) InsertSynthetic(sym *Symbol, isPublic bool) {
	sym.IsPublic = isPublic
	sym.IsSynthetic = true

	if _, ok := t.byRVA[sym.RVA]; ok {
		return
	}
	if t.covers(sym.RVA) {
		return
	}
	t.insertSorted(sym.RVA, sym)
}

// MergePublic applies §4.8 step 5's merge-specific collision rule for an
// incoming public symbol, which differs from InsertPublic's ordinary §4.4
// tie-break: a synthetic placeholder never survives a collision with a
// non-synthetic symbol from the other side, and two colliding real publics
// keep the existing entry's name (marked is_multiple) rather than taking
// whichever name sorts first.
func (t *SymbolTable) MergePublic(sym *Symbol) {
	sym.IsPublic = true

	if t.covers(sym.RVA) {
		return
	}

	existing, ok := t.byRVA[sym.RVA]
	if !ok {
		t.insertSorted(sym.RVA, sym)
		return
	}

	switch {
	case sym.IsSynthetic:
		return
	case existing.IsSynthetic:
		sym.IsMultiple = existing.IsMultiple
		t.byRVA[sym.RVA] = sym
	case existing.Name != sym.Name:
		existing.IsMultiple = true
	}
}

// Covers reports whether rva falls within the range of some already
// inserted symbol, per the same rule InsertPublic/InsertSynthetic use. It
// is exported so adapters implementing the Windows placeholder pass and the
// PublicsCollector's preflight checks (§4.6) can reuse exactly this
// predicate instead of re-deriving it.
func (t *SymbolTable) Covers(rva uint32) bool {
	return t.covers(rva)
}
