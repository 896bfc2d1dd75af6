package breakpad

import (
	"fmt"
	"io"
	"sort"
)

// LineRecord is one disjoint leaf line: the range [RVA, RVA+Length) of a
// function's own body that executes source line LineNumber of file FileID.
// FileID is a SourceFileIndex provisional id until Emit promotes it.
type LineRecord struct {
	RVA        uint32
	Length     uint32
	LineNumber uint32
	FileID     uint32
}

// InlineSite identifies one distinct inlined call by the inlined function's
// origin, how deep the inlining nests (0 = called directly from the
// enclosing function), and the call-site's source location. Two inline
// sites with equal fields are the same site, possibly with multiple
// discontiguous address ranges (e.g. if the compiler split the call across
// basic blocks).
type InlineSite struct {
	OriginID   uint32
	CallDepth  uint32
	CallLine   uint32
	CallFileID uint32
}

// InlineRange is one address span covered by an InlineSite.
type InlineRange struct {
	RVA    uint32
	Length uint32
}

// LineTable holds one function's leaf line records and its inline-call
// tree. It defers sorting (the "sorted_flag" of §4.1) so that a
// FunctionCollector that already has rva-ordered input pays nothing extra.
type LineTable struct {
	lines   []LineRecord
	inlines map[InlineSite][]InlineRange

	sorted  bool
	lastRVA uint32
	hasLast bool
}

// NewLineTable creates an empty LineTable.
func NewLineTable() *LineTable {
	return &LineTable{
		inlines: make(map[InlineSite][]InlineRange),
		sorted:  true,
	}
}

// AddLine appends a leaf line record with length 0 (filled in by Finalize).
func (lt *LineTable) AddLine(rva, lineNo, fileID uint32) {
	if lt.hasLast && rva < lt.lastRVA {
		lt.sorted = false
	}
	lt.lastRVA = rva
	lt.hasLast = true
	lt.lines = append(lt.lines, LineRecord{RVA: rva, LineNumber: lineNo, FileID: fileID})
}

// AddInline appends rng to the address ranges recorded for site.
func (lt *LineTable) AddInline(site InlineSite, rng InlineRange) {
	lt.inlines[site] = append(lt.inlines[site], rng)
}

// AddressMapper translates addresses from an internal (e.g. PDB) address
// space into true binary RVAs. A single input span may need to become
// several output spans, e.g. when the compiler's internal numbering packed
// what are, in the real binary, discontiguous regions.
type AddressMapper interface {
	Translate(rva, length uint32) []InlineRange
}

// Finalize sorts line records if required, computes each record's length
// from the following record's rva (or, for the last record, from
// symRVA+symLen), sorts and coalesces each inline site's ranges, and — if
// mapper is non-nil (the Windows PDB path) — translates every record's rva
// into the true binary address space, which may split one record into
// several; the result is re-sorted if that disturbed ordering.
func (lt *LineTable) Finalize(symRVA, symLen uint32, mapper AddressMapper) {
	if !lt.sorted {
		sort.SliceStable(lt.lines, func(i, j int) bool {
			return lt.lines[i].RVA < lt.lines[j].RVA
		})
		lt.sorted = true
	}

	for i := range lt.lines {
		if i+1 < len(lt.lines) {
			lt.lines[i].Length = lt.lines[i+1].RVA - lt.lines[i].RVA
		} else {
			lt.lines[i].Length = symRVA + symLen - lt.lines[i].RVA
		}
	}

	for site, ranges := range lt.inlines {
		lt.inlines[site] = sortAndCoalesce(ranges)
	}

	if mapper != nil {
		var mapped []LineRecord
		for _, rec := range lt.lines {
			spans := mapper.Translate(rec.RVA, rec.Length)
			for _, span := range spans {
				mapped = append(mapped, LineRecord{
					RVA:        span.RVA,
					Length:     span.Length,
					LineNumber: rec.LineNumber,
					FileID:     rec.FileID,
				})
			}
		}
		sort.SliceStable(mapped, func(i, j int) bool {
			return mapped[i].RVA < mapped[j].RVA
		})
		lt.lines = mapped
	}
}

// sortAndCoalesce sorts ranges by rva and merges adjacent touching ranges
// (a.rva+a.len == b.rva), per invariant 6.
func sortAndCoalesce(ranges []InlineRange) []InlineRange {
	sort.Slice(ranges, func(i, j int) bool { return ranges[i].RVA < ranges[j].RVA })

	out := ranges[:0:0]
	for _, r := range ranges {
		if n := len(out); n > 0 && out[n-1].RVA+out[n-1].Length == r.RVA {
			out[n-1].Length += r.Length
			continue
		}
		out = append(out, r)
	}
	return out
}

// inlineEntry is one (site, ranges) pair used for Emit's deterministic
// ordering.
type inlineEntry struct {
	site   InlineSite
	ranges []InlineRange
}

// Emit writes this function's INLINE records (sorted by first-range rva,
// then call depth) followed by its leaf line records in rva order, per
// §4.1's emit operation. File ids are promoted to true ids as they are
// written, which is what drives SourceFileIndex's two-phase interning.
func (lt *LineTable) Emit(w io.Writer, files *SourceFileIndex) error {
	entries := make([]inlineEntry, 0, len(lt.inlines))
	for site, ranges := range lt.inlines {
		entries = append(entries, inlineEntry{site: site, ranges: ranges})
	}
	sort.Slice(entries, func(i, j int) bool {
		ai, aj := entries[i], entries[j]
		if ai.ranges[0].RVA != aj.ranges[0].RVA {
			return ai.ranges[0].RVA < aj.ranges[0].RVA
		}
		return ai.site.CallDepth < aj.site.CallDepth
	})

	for _, e := range entries {
		callFileID := files.Promote(e.site.CallFileID)
		if _, err := fmt.Fprintf(w, "INLINE %d %d %d %d", e.site.CallDepth, e.site.CallLine, callFileID, e.site.OriginID); err != nil {
			return err
		}
		for _, r := range e.ranges {
			if _, err := fmt.Fprintf(w, " %x %x", r.RVA, r.Length); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}

	for _, rec := range lt.lines {
		fileID := files.Promote(rec.FileID)
		if _, err := fmt.Fprintf(w, "%x %x %d %d\n", rec.RVA, rec.Length, rec.LineNumber, fileID); err != nil {
			return err
		}
	}

	return nil
}

// Lines exposes the finalized leaf line records, for tests and for Merge's
// file-id remapping.
func (lt *LineTable) Lines() []LineRecord {
	return lt.lines
}

// SetLines replaces the leaf line records wholesale (used by Merge's remap).
func (lt *LineTable) SetLines(lines []LineRecord) {
	lt.lines = lines
}

// Inlines exposes the inline-site map for tests and for Merge's remapping.
func (lt *LineTable) Inlines() map[InlineSite][]InlineRange {
	return lt.inlines
}

// SetInlines replaces the inline-site map wholesale (used by Merge's remap).
func (lt *LineTable) SetInlines(m map[InlineSite][]InlineRange) {
	lt.inlines = m
}
