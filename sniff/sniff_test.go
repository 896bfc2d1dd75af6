package sniff

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/symcollect/dump-syms/internal/testhelper"
)

func writeHeader(t *testing.T, bytes []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input")
	testhelper.Equate(t, os.WriteFile(path, bytes, 0o644), nil)
	return path
}

func TestFileClassifiesELF(t *testing.T) {
	path := writeHeader(t, append([]byte{0x7f, 'E', 'L', 'F'}, make([]byte, 12)...))
	got, err := File(path, "")
	testhelper.ExpectSuccess(t, err)
	testhelper.Equate(t, got, ELF)
}

func TestFileClassifiesMachOThinAndFat(t *testing.T) {
	thin := writeHeader(t, []byte{0xcf, 0xfa, 0xed, 0xfe, 0, 0, 0, 0})
	got, err := File(thin, "")
	testhelper.ExpectSuccess(t, err)
	testhelper.Equate(t, got, MachO)

	fat := writeHeader(t, []byte{0xca, 0xfe, 0xba, 0xbe, 0, 0, 0, 2})
	got, err = File(fat, "")
	testhelper.ExpectSuccess(t, err)
	testhelper.Equate(t, got, MachOFat)
}

func TestFileClassifiesPEStub(t *testing.T) {
	path := writeHeader(t, []byte{'M', 'Z', 0x90, 0x00})
	got, err := File(path, "")
	testhelper.ExpectSuccess(t, err)
	testhelper.Equate(t, got, PE)
}

func TestFileClassifiesUnknown(t *testing.T) {
	path := writeHeader(t, []byte("not a debug container"))
	got, err := File(path, "")
	testhelper.ExpectSuccess(t, err)
	testhelper.Equate(t, got, Unknown)
}

func TestFileHonoursHintOverSniffing(t *testing.T) {
	path := writeHeader(t, []byte{0x7f, 'E', 'L', 'F'})
	got, err := File(path, "pdb")
	testhelper.ExpectSuccess(t, err)
	testhelper.Equate(t, got, PDB)
}

func TestFileRejectsUnknownHint(t *testing.T) {
	path := writeHeader(t, []byte{0x7f, 'E', 'L', 'F'})
	_, err := File(path, "amiga-hunk")
	testhelper.ExpectFailure(t, err)
}
