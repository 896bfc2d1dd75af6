package breakpad

import (
	"bytes"
	"fmt"
	"io"

	"github.com/symcollect/dump-syms/internal/curatederrors"
)

// Emit writes mod in breakpad text symbol format per §4.7: the MODULE line,
// an optional INFO CODE_ID line, FILE records for every promoted source
// path, INLINE_ORIGIN records, then FUNC/PUBLIC/INLINE/line records in
// ascending rva order, and finally the pre-rendered CFI block verbatim.
//
// File ids are promoted lazily as FUNC bodies are emitted (see
// LineTable.Emit), so the FILE header block must be written only after
// every symbol's lines have already been walked once to settle the final id
// set. Emit does this in two passes: render all symbol bodies into a buffer
// first, then flush FILE/INLINE_ORIGIN, then the buffered bodies, then CFI.
// Inline-origin ids are dense from the start and are written as they are.
func (mod *ModuleInfo) Emit(w io.Writer, checkCFI bool) error {
	if checkCFI && mod.CFI == "" {
		return curatederrors.Errorf(curatederrors.MissingCfiError, mod.FileName)
	}

	if _, err := fmt.Fprintf(w, "MODULE %s %s %s %s\n", mod.Platform.String(), mod.CPU, mod.DebugID, mod.FileName); err != nil {
		return err
	}
	if mod.CodeID != "" {
		if mod.PEFile != "" {
			if _, err := fmt.Fprintf(w, "INFO CODE_ID %s %s\n", mod.CodeID, mod.PEFile); err != nil {
				return err
			}
		} else {
			if _, err := fmt.Fprintf(w, "INFO CODE_ID %s\n", mod.CodeID); err != nil {
				return err
			}
		}
	}

	var body bytes.Buffer
	for _, sym := range mod.Symbols.Ascending() {
		if err := emitSymbol(&body, sym, mod.Files, mod.InlineOrigins); err != nil {
			return err
		}
	}

	for i, path := range mod.Files.FinalList() {
		if _, err := fmt.Fprintf(w, "FILE %d %s\n", i, path); err != nil {
			return err
		}
	}
	for i, name := range mod.InlineOrigins.FinalList() {
		if name == "" {
			name = "<name omitted>"
		}
		if _, err := fmt.Fprintf(w, "INLINE_ORIGIN %d %s\n", i, name); err != nil {
			return err
		}
	}

	if _, err := w.Write(body.Bytes()); err != nil {
		return err
	}

	if mod.CFI != "" {
		if _, err := io.WriteString(w, mod.CFI); err != nil {
			return err
		}
	}

	return nil
}

// emitSymbol writes one FUNC/PUBLIC record (and, for functions, its line and
// INLINE records) in the same pass that promotes its file ids.
func emitSymbol(w io.Writer, sym *Symbol, files *SourceFileIndex, origins *InlineOriginIndex) error {
	multiple := ""
	if sym.IsMultiple {
		multiple = "m "
	}

	if sym.IsPublic {
		_, err := fmt.Fprintf(w, "PUBLIC %s%x %x %s\n", multiple, sym.RVA, sym.ParamSize, sym.Name)
		return err
	}

	if _, err := fmt.Fprintf(w, "FUNC %s%x %x %x %s\n", multiple, sym.RVA, sym.Length, sym.ParamSize, sym.Name); err != nil {
		return err
	}
	if sym.Lines != nil {
		return sym.Lines.Emit(w, files)
	}
	return nil
}
