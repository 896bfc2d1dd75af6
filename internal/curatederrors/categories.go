package curatederrors

// The categories this engine's pipeline distinguishes. Is/Has compare
// against these values, not against formatted message text.
const (
	// ParseError: the input is not a recognised object file, or its debug
	// information could not be decoded.
	ParseError Category = "parse error: %v"

	// MismatchError: two inputs being merged claim different debug-ids.
	MismatchError Category = "debug-id mismatch: left %q, right %q"

	// MissingCfiError: check_cfi was requested and the module has no CFI text.
	MissingCfiError Category = "missing CFI data for module %q"

	// IoError: a read or write failure at a job boundary.
	IoError Category = "io error: %v"
)
