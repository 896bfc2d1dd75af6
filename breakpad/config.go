package breakpad

// Config carries the CLI-level toggles that change collection and emission
// behaviour. The command-line surface that populates this struct (argument
// parsing, environment lookups, symbol-server configuration) lives outside
// this package; the engine only ever reads these fields.
type Config struct {
	// EmitInlines enables §4.1.1's mixed-line translation and INLINE record
	// emission. When false, FunctionCollector takes the simpler no-inlines
	// path (filter zero-line records, dedupe consecutive equal (line,file)).
	EmitInlines bool

	// CheckCFI makes emission fail with MissingCfiError if the module's
	// CFI text is empty.
	CheckCFI bool

	// KeepMangled disables demangling entirely; function and inline-origin
	// names are kept exactly as found in debug info.
	KeepMangled bool

	// Arch selects one architecture slice out of a fat Mach-O input.
	// Ignored for non-Mach-O inputs.
	Arch string

	// FileTypeHint disambiguates the input format when it cannot be
	// sniffed unambiguously (for example, when multiple inputs are given).
	FileTypeHint string

	// SymbolServerURL, when non-empty, is consulted to fetch a PE's
	// companion PDB when it isn't found alongside the binary.
	SymbolServerURL string

	// PathMappings is an ordered list of (regex, replacement) pairs applied
	// to each interned source path, once, at first interning.
	PathMappings []PathMapping

	// NumWorkerJobs sizes the worker pool described in spec §5. The CLI
	// defaults it to the logical CPU count; pool.New treats any value below
	// 1 as a single worker.
	NumWorkerJobs int
}

// PathMapping is one (regex, replacement) pair from the CLI surface. The
// pathmap package implements the actual substitution engine; this struct is
// just the data shape the engine's Config carries.
type PathMapping struct {
	Pattern     string
	Replacement string
}
