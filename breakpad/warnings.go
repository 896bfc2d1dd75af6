package breakpad

import "github.com/symcollect/dump-syms/internal/logger"

// These three conditions are logged rather than surfaced as errors: a
// single unparseable symbol or bad inline range should not abort an entire
// module's collection, matching the engine's fail-soft-per-symbol design.

func logDemangleWarning(mangled string) {
	logger.Logf(logger.Allow, "breakpad", "could not demangle %q, keeping mangled name", mangled)
}

func logFunctionCollectionWarning(rva uint32, reason string) {
	logger.Logf(logger.Allow, "breakpad", "dropped function at rva %x: %s", rva, reason)
}

func logMappingWarning(path string) {
	logger.Logf(logger.Allow, "breakpad", "no path mapping rule matched %q, keeping original", path)
}
