// Package sniff identifies which debug-info container format an input file
// holds, the same mini-fingerprinting idiom the cartridge loader uses to
// tell cartridge formats apart without fully parsing them: read a handful
// of leading bytes and compare against a known magic.
package sniff

import (
	"bytes"
	"fmt"
	"os"

	"github.com/symcollect/dump-syms/internal/curatederrors"
)

// Format is one of the container formats this engine can adapt.
type Format int

const (
	Unknown Format = iota
	ELF
	MachO
	MachOFat
	PE
	PDB
)

func (f Format) String() string {
	switch f {
	case ELF:
		return "elf"
	case MachO:
		return "macho"
	case MachOFat:
		return "macho-fat"
	case PE:
		return "pe"
	case PDB:
		return "pdb"
	default:
		return "unknown"
	}
}

var (
	elfMagic      = []byte{0x7f, 'E', 'L', 'F'}
	machO32Magic  = []byte{0xfe, 0xed, 0xfa, 0xce}
	machO64Magic  = []byte{0xfe, 0xed, 0xfa, 0xcf}
	machO32MagicR = []byte{0xce, 0xfa, 0xed, 0xfe}
	machO64MagicR = []byte{0xcf, 0xfa, 0xed, 0xfe}
	fatMagic      = []byte{0xca, 0xfe, 0xba, 0xbe}
	fatMagicR     = []byte{0xbe, 0xba, 0xfe, 0xca}
	peStub        = []byte{'M', 'Z'}
	pdbMagic      = []byte("Microsoft C/C++ MSF 7.00\r\n\x1aDS\x00\x00\x00")
)

// File opens filename and reads just enough of its header to classify it,
// per hint: hint overrides sniffing entirely when non-empty (the CLI's
// -type escape hatch for ambiguous input).
func File(filename string, hint string) (Format, error) {
	if hint != "" {
		return fromHint(hint)
	}

	f, err := os.Open(filename)
	if err != nil {
		return Unknown, curatederrors.Errorf(curatederrors.IoError, err)
	}
	defer f.Close()

	header := make([]byte, 32)
	n, err := f.Read(header)
	if err != nil && n == 0 {
		return Unknown, curatederrors.Errorf(curatederrors.IoError, err)
	}
	header = header[:n]

	return classify(header), nil
}

func fromHint(hint string) (Format, error) {
	switch hint {
	case "elf":
		return ELF, nil
	case "macho":
		return MachO, nil
	case "pe":
		return PE, nil
	case "pdb":
		return PDB, nil
	}
	return Unknown, curatederrors.Errorf(curatederrors.ParseError, fmt.Sprintf("unrecognised file type hint %q", hint))
}

func classify(header []byte) Format {
	switch {
	case hasPrefix(header, elfMagic):
		return ELF
	case hasPrefix(header, fatMagic), hasPrefix(header, fatMagicR):
		return MachOFat
	case hasPrefix(header, machO32Magic), hasPrefix(header, machO64Magic),
		hasPrefix(header, machO32MagicR), hasPrefix(header, machO64MagicR):
		return MachO
	case hasPrefix(header, peStub):
		return PE
	case hasPrefix(header, pdbMagic):
		return PDB
	}
	return Unknown
}

func hasPrefix(b, magic []byte) bool {
	return len(b) >= len(magic) && bytes.Equal(b[:len(magic)], magic)
}
