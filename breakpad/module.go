package breakpad

// ModuleInfo is the top-level aggregate: one module's platform, identity,
// and all three collected sub-tables. It is built by a parsing adapter
// (dwarfsrc, machosrc, pesrc) driving FunctionCollector and
// PublicsCollector. Emit promotes file ids in Files as it writes, and Merge
// reuses and extends the sub-tables of its larger operand, so a ModuleInfo
// must not be shared between goroutines while either runs on it.
type ModuleInfo struct {
	Platform Platform
	CPU      string

	// DebugID is the 32 hex-char GUID plus 8 hex-digit age, as rendered on
	// the MODULE line. Two ModuleInfo values are only mergeable if these
	// are equal.
	DebugID string

	// CodeID is the platform-specific identifier of the shipped binary
	// (PE timestamp+size, or ELF build-id), uppercase hex. Empty if unknown.
	CodeID string

	// PEFile is the filename of the companion PE, recorded on the INFO
	// CODE_ID line. Windows-only; empty elsewhere.
	PEFile string

	// FileName is the module's display name, printed on the MODULE line.
	FileName string

	// CFI is the pre-rendered STACK CFI text block, emitted verbatim.
	CFI string

	BinType BinType

	Files         *SourceFileIndex
	InlineOrigins *InlineOriginIndex
	Symbols       *SymbolTable
}

// NewModuleInfo creates an empty ModuleInfo ready for FunctionCollector and
// PublicsCollector to populate.
func NewModuleInfo(platform Platform, cpu, debugID, fileName string, binType BinType, mapper PathMapper) *ModuleInfo {
	return &ModuleInfo{
		Platform:      platform,
		CPU:           cpu,
		DebugID:       debugID,
		FileName:      fileName,
		BinType:       binType,
		Files:         NewSourceFileIndex(mapper),
		InlineOrigins: NewInlineOriginIndex(),
		Symbols:       NewSymbolTable(),
	}
}
