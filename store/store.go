// Package store lays emitted breakpad text out in the layered directory
// convention breakpad symbol servers expect, mirroring the teacher's
// paths.ResourcePath helper: a root directory, then one subdirectory per
// module basename, then one per debug-id, holding the final .sym file.
package store

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/symcollect/dump-syms/breakpad"
	"github.com/symcollect/dump-syms/internal/curatederrors"
)

// Store writes ModuleInfo values under root using the
// <root>/<basename>.<ext>/<debug_id>/<basename>.sym layout breakpad's
// symupload and minidump_stackwalk both expect.
type Store struct {
	root     string
	checkCFI bool
}

// New creates a Store rooted at root. checkCFI is passed through to every
// Emit call.
func New(root string, checkCFI bool) *Store {
	return &Store{root: root, checkCFI: checkCFI}
}

// Write renders mod to breakpad text and places it at its canonical path
// under the store root, creating any missing directories. It returns the
// final file path written.
func (s *Store) Write(mod *breakpad.ModuleInfo) (string, error) {
	dir := ModulePath(s.root, mod)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", curatederrors.Errorf(curatederrors.IoError, err)
	}

	path := filepath.Join(dir, symFileName(mod.FileName))

	var buf bytes.Buffer
	if err := mod.Emit(&buf, s.checkCFI); err != nil {
		return "", err
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", curatederrors.Errorf(curatederrors.IoError, err)
	}
	return path, nil
}

// ModulePath returns the directory a module's .sym file belongs in, without
// creating it: <root>/<basename>.<ext>/<debug_id>, where <basename>.<ext>
// is the module's own original file name, unmodified (spec §6's symbol
// store layout).
func ModulePath(root string, mod *breakpad.ModuleInfo) string {
	return filepath.Join(root, mod.FileName, mod.DebugID)
}

// symFileName strips the module's own extension and appends ".sym", per
// the store layout's "<basename>.sym" leaf file name.
func symFileName(moduleName string) string {
	ext := filepath.Ext(moduleName)
	return strings.TrimSuffix(moduleName, ext) + ".sym"
}
