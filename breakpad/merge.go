package breakpad

import (
	"strings"

	"github.com/symcollect/dump-syms/internal/curatederrors"
)

// Merge combines left and right into a single ModuleInfo per §4.8. Both
// must share the same DebugID; otherwise a curated MismatchError is
// returned and neither input is mutated.
//
// To keep the remap bookkeeping proportional to the smaller side, Merge
// swaps its operands so that left (the side whose tables are copied
// wholesale into the result) is always the one with more symbols already
// collected. The swap also decides precedence: left's CFI, files and inline
// origins come first in the result, and on a public/public name clash
// left's name is kept.
func Merge(left, right *ModuleInfo) (*ModuleInfo, error) {
	if left.DebugID != right.DebugID {
		return nil, curatederrors.Errorf(curatederrors.MismatchError, left.DebugID, right.DebugID)
	}

	if left.Symbols.Len() < right.Symbols.Len() {
		left, right = right, left
	}

	out := &ModuleInfo{
		Platform: left.Platform,
		CPU:      left.CPU,
		DebugID:  left.DebugID,
		FileName: left.FileName,
		BinType:  left.BinType,
	}

	out.CodeID = left.CodeID
	if out.CodeID == "" {
		out.CodeID = right.CodeID
	}
	out.PEFile = left.PEFile
	if out.PEFile == "" {
		out.PEFile = right.PEFile
	}

	// §4.8 step 7: a stripped binary carries the runtime-visible file name.
	if right.BinType == Stripped {
		out.FileName = right.FileName
	}

	// §4.8 step 2: an empty left.CFI is simply replaced by right's; otherwise
	// left's block is newline-terminated before right's is appended, so two
	// STACK CFI blocks never run together on one line.
	switch {
	case left.CFI == "":
		out.CFI = right.CFI
	case right.CFI == "":
		out.CFI = left.CFI
	default:
		lcfi := left.CFI
		if !strings.HasSuffix(lcfi, "\n") {
			lcfi += "\n"
		}
		out.CFI = lcfi + right.CFI
	}

	out.Files = left.Files
	out.InlineOrigins = left.InlineOrigins
	out.Symbols = left.Symbols

	// Step: build a remap array from right's provisional file ids to out's
	// (= left's) provisional ids, unifying identical resolved paths (§4.8
	// step 3). File/call-site ids inside not-yet-emitted LineRecords are
	// still provisional at this point — true ids are only settled lazily
	// when the merged module is eventually emitted.
	fileRemap := out.Files.MergeFrom(right.Files)

	// Inline origins are appended wholesale, without dedup (§4.8 step 4):
	// two origins with the same demangled name but different mangled
	// spellings are not assumed equivalent.
	rightOrigins := right.InlineOrigins.FinalList()
	originRemap := make([]uint32, len(rightOrigins))
	for i, name := range rightOrigins {
		originRemap[i] = out.InlineOrigins.Append(name)
	}

	// §4.8 step 5: functions collide exactly like an ordinary InsertFunction
	// (the spec's occupied-by-public/occupied-by-function cases reduce to
	// the same first-writer/replace-and-mark-multiple rule §4.4 already
	// defines), but publics use the merge-specific MergePublic rule instead
	// of InsertPublic's lexicographic-minimum tie-break.
	for _, sym := range right.Symbols.Ascending() {
		remapped := *sym
		if sym.Lines != nil {
			remapped.Lines = remapLineTable(sym.Lines, fileRemap, originRemap)
		}
		if sym.IsPublic {
			out.Symbols.MergePublic(&remapped)
		} else {
			out.Symbols.InsertFunction(&remapped)
		}
	}

	return out, nil
}

// remapLineTable copies lt's line and inline records into a new LineTable
// with file/origin ids translated through fileRemap/originRemap.
func remapLineTable(lt *LineTable, fileRemap, originRemap []uint32) *LineTable {
	out := NewLineTable()

	lines := lt.Lines()
	remappedLines := make([]LineRecord, len(lines))
	for i, rec := range lines {
		remappedLines[i] = LineRecord{
			RVA:        rec.RVA,
			Length:     rec.Length,
			LineNumber: rec.LineNumber,
			FileID:     remapID(fileRemap, rec.FileID),
		}
	}
	out.SetLines(remappedLines)

	inlines := make(map[InlineSite][]InlineRange, len(lt.Inlines()))
	for site, ranges := range lt.Inlines() {
		newSite := InlineSite{
			OriginID:   remapID(originRemap, site.OriginID),
			CallDepth:  site.CallDepth,
			CallLine:   site.CallLine,
			CallFileID: remapID(fileRemap, site.CallFileID),
		}
		cp := make([]InlineRange, len(ranges))
		copy(cp, ranges)
		inlines[newSite] = cp
	}
	out.SetInlines(inlines)

	return out
}

func remapID(table []uint32, id uint32) uint32 {
	if int(id) >= len(table) {
		return id
	}
	return table[id]
}
