package breakpad

import (
	"path"
	"strings"
)

// PathMapper applies the CLI's optional path-mapping transformation to an
// absolute source path, producing the URL/path that should actually be
// recorded in the FILE record. A nil PathMapper leaves paths unchanged.
// The bool result reports whether any rule matched; a mapper that never
// matches absolutePath must return (anything, false) rather than echoing
// it back as a matched value, so callers can tell "left unchanged because
// nothing matched" apart from "mapped to the same string".
type PathMapper interface {
	Map(absolutePath string) (string, bool)
}

// SourceFileIndex interns source-file paths in two phases, mirroring the
// teacher's disassembly/symbols table: every path seen while reading line
// records gets a provisional id immediately (cheap, no ordering
// requirement), but only paths that end up attached to an emitted line are
// promoted to a dense, final id. This keeps the emitted FILE list free of
// entries that were only ever referenced by dead code or by inlinee
// call-sites whose caller line was itself deduped away.
type SourceFileIndex struct {
	// pathToProvisional dedupes interning by the resulting absolute path so
	// that two interns of the same directory+name pair return the same
	// provisional id.
	pathToProvisional map[string]uint32
	provisionalPaths  []string
	trueID            []int32 // -1 until promoted, indexed by provisional id
	trueList          []string

	mapper PathMapper
}

// NewSourceFileIndex creates an empty index. mapper may be nil.
func NewSourceFileIndex(mapper PathMapper) *SourceFileIndex {
	return &SourceFileIndex{
		pathToProvisional: make(map[string]uint32),
		mapper:            mapper,
	}
}

// isAbsolute reports whether dir is already an absolute path for the given
// platform: a leading '/' on Linux/Mac, or a drive-letter-style first
// segment ending in ':' on Windows.
func isAbsolute(platform Platform, dir string) bool {
	if dir == "" {
		return false
	}
	if platform == Win {
		if i := strings.IndexAny(dir, `/\`); i >= 0 {
			return strings.HasSuffix(dir[:i], ":")
		}
		return strings.HasSuffix(dir, ":")
	}
	return dir[0] == '/'
}

func joinSourcePath(platform Platform, compDir, dir, name string) string {
	var base string
	switch {
	case isAbsolute(platform, dir):
		base = dir
	case dir == "":
		base = compDir
	default:
		base = path.Join(compDir, dir)
	}
	full := path.Join(base, name)
	return path.Clean(full)
}

// Intern records comp_dir/file as a candidate source path (building its
// absolute form per platform rules) and returns a provisional id. Calling
// Intern again with the same effective path returns the same id. The path
// mapper, if set, runs exactly once per distinct path, at first interning.
func (idx *SourceFileIndex) Intern(platform Platform, compDir, dir, name string) uint32 {
	full := joinSourcePath(platform, compDir, dir, name)

	if id, ok := idx.pathToProvisional[full]; ok {
		return id
	}

	mapped := full
	if idx.mapper != nil {
		if m, ok := idx.mapper.Map(full); ok {
			mapped = m
		} else {
			logMappingWarning(full)
		}
	}

	id := uint32(len(idx.provisionalPaths))
	idx.provisionalPaths = append(idx.provisionalPaths, mapped)
	idx.trueID = append(idx.trueID, -1)
	idx.pathToProvisional[full] = id
	return id
}

// Promote assigns provID its dense true id on first call, and is a no-op
// (returning the same id) on subsequent calls. Only ids passed to Promote
// ever appear in FinalList.
func (idx *SourceFileIndex) Promote(provID uint32) uint32 {
	if int(provID) >= len(idx.trueID) {
		return 0
	}
	if idx.trueID[provID] < 0 {
		idx.trueID[provID] = int32(len(idx.trueList))
		idx.trueList = append(idx.trueList, idx.provisionalPaths[provID])
	}
	return uint32(idx.trueID[provID])
}

// FinalList returns the dense list of promoted paths in true-id order.
func (idx *SourceFileIndex) FinalList() []string {
	out := make([]string, len(idx.trueList))
	copy(out, idx.trueList)
	return out
}

// Len reports how many paths have been interned (promoted or not).
func (idx *SourceFileIndex) Len() int {
	return len(idx.provisionalPaths)
}

// PromotedLen reports how many paths have been promoted to true ids.
func (idx *SourceFileIndex) PromotedLen() int {
	return len(idx.trueList)
}

// MergeFrom interns every path already known to other into idx, keyed by
// the fully-resolved (already path-mapped) string rather than re-running
// idx's mapper, and returns a remap slice from other's provisional ids to
// idx's provisional ids. This implements §4.8 step 3: every path in right
// is either unified with an existing equal path in left or appended as a
// new entry; since LineRecord/InlineSite file ids are provisional ids (true
// ids are only settled lazily at Emit time, via Promote), the remap must
// operate over the full provisional set, not just the paths already
// promoted on either side.
func (idx *SourceFileIndex) MergeFrom(other *SourceFileIndex) []uint32 {
	remap := make([]uint32, len(other.provisionalPaths))
	for i, path := range other.provisionalPaths {
		if id, ok := idx.pathToProvisional[path]; ok {
			remap[i] = id
			continue
		}
		id := uint32(len(idx.provisionalPaths))
		idx.provisionalPaths = append(idx.provisionalPaths, path)
		idx.trueID = append(idx.trueID, -1)
		idx.pathToProvisional[path] = id
		remap[i] = id
	}
	return remap
}
