package breakpad

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/symcollect/dump-syms/internal/curatederrors"
)

// ParsedModule is the result of parsing a breakpad text symbol stream back
// into structured form, for round-trip property testing (a module Emitted
// then Parsed should reproduce the same FILE/INLINE_ORIGIN/FUNC/PUBLIC/
// INLINE/line records, modulo the two-phase interning having already
// settled into one dense pass).
type ParsedModule struct {
	Platform string
	CPU      string
	DebugID  string
	FileName string
	CodeID   string
	PEFile   string

	Files         map[int]string
	InlineOrigins map[int]string
	Funcs         []*ParsedModuleFunc
	Publics       []*ParsedModulePublic
	CFILines      []string
}

// ParsedModuleFunc is one parsed FUNC record plus its line/INLINE children.
type ParsedModuleFunc struct {
	Multiple  bool
	RVA       uint32
	Length    uint32
	ParamSize uint32
	Name      string
	Lines     []ParsedModuleLine
	Inlines   []ParsedModuleInline
}

// ParsedModulePublic is one parsed PUBLIC record.
type ParsedModulePublic struct {
	Multiple  bool
	RVA       uint32
	ParamSize uint32
	Name      string
}

// ParsedModuleLine is one parsed leaf line record.
type ParsedModuleLine struct {
	RVA, Length, LineNumber, FileID uint32
}

// ParsedModuleInline is one parsed INLINE record.
type ParsedModuleInline struct {
	Depth, Line, FileID, OriginID uint32
	Ranges                        []InlineRange
}

// Parse reads a breakpad text symbol stream per §4.7's grammar in reverse.
// It is deliberately tolerant of unknown leading record types within the
// CFI block (anything not matched by the known keywords is kept verbatim
// in CFILines), since breakpad's STACK records are themselves emitted
// verbatim elsewhere and this parser's job is limited to round-tripping
// this engine's own output, not validating arbitrary third-party dumps.
func Parse(r io.Reader) (*ParsedModule, error) {
	pm := &ParsedModule{
		Files:         make(map[int]string),
		InlineOrigins: make(map[int]string),
	}

	var curFunc *ParsedModuleFunc

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		switch fields[0] {
		case "MODULE":
			if len(fields) < 5 {
				return nil, curatederrors.Errorf(curatederrors.ParseError, "malformed MODULE line")
			}
			pm.Platform = fields[1]
			pm.CPU = fields[2]
			pm.DebugID = fields[3]
			pm.FileName = strings.Join(fields[4:], " ")
			curFunc = nil

		case "INFO":
			if len(fields) >= 3 && fields[1] == "CODE_ID" {
				pm.CodeID = fields[2]
				if len(fields) >= 4 {
					pm.PEFile = fields[3]
				}
			}
			curFunc = nil

		case "FILE":
			if len(fields) < 3 {
				return nil, curatederrors.Errorf(curatederrors.ParseError, "malformed FILE line")
			}
			id, err := strconv.Atoi(fields[1])
			if err != nil {
				return nil, curatederrors.Errorf(curatederrors.ParseError, err)
			}
			pm.Files[id] = strings.Join(fields[2:], " ")
			curFunc = nil

		case "INLINE_ORIGIN":
			if len(fields) < 3 {
				return nil, curatederrors.Errorf(curatederrors.ParseError, "malformed INLINE_ORIGIN line")
			}
			id, err := strconv.Atoi(fields[1])
			if err != nil {
				return nil, curatederrors.Errorf(curatederrors.ParseError, err)
			}
			pm.InlineOrigins[id] = strings.Join(fields[2:], " ")
			curFunc = nil

		case "FUNC":
			f, err := parseFunc(fields)
			if err != nil {
				return nil, err
			}
			pm.Funcs = append(pm.Funcs, f)
			curFunc = f

		case "PUBLIC":
			p, err := parsePublic(fields)
			if err != nil {
				return nil, err
			}
			pm.Publics = append(pm.Publics, p)
			curFunc = nil

		case "INLINE":
			if curFunc == nil {
				return nil, curatederrors.Errorf(curatederrors.ParseError, "INLINE record outside of FUNC")
			}
			inl, err := parseInline(fields)
			if err != nil {
				return nil, err
			}
			curFunc.Inlines = append(curFunc.Inlines, inl)

		case "STACK", "MODULE_FLAGS":
			curFunc = nil
			pm.CFILines = append(pm.CFILines, line)

		default:
			if curFunc != nil && isHexLineRecord(fields) {
				ln, err := parseLeafLine(fields)
				if err != nil {
					return nil, err
				}
				curFunc.Lines = append(curFunc.Lines, ln)
				continue
			}
			pm.CFILines = append(pm.CFILines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, curatederrors.Errorf(curatederrors.IoError, err)
	}

	return pm, nil
}

func isHexLineRecord(fields []string) bool {
	if len(fields) != 4 {
		return false
	}
	_, err := strconv.ParseUint(fields[0], 16, 64)
	return err == nil
}

func parseFunc(fields []string) (*ParsedModuleFunc, error) {
	idx := 1
	multiple := false
	if idx < len(fields) && fields[idx] == "m" {
		multiple = true
		idx++
	}
	if len(fields) < idx+4 {
		return nil, curatederrors.Errorf(curatederrors.ParseError, "malformed FUNC line")
	}
	rva, err := strconv.ParseUint(fields[idx], 16, 32)
	if err != nil {
		return nil, curatederrors.Errorf(curatederrors.ParseError, err)
	}
	length, err := strconv.ParseUint(fields[idx+1], 16, 32)
	if err != nil {
		return nil, curatederrors.Errorf(curatederrors.ParseError, err)
	}
	paramSize, err := strconv.ParseUint(fields[idx+2], 16, 32)
	if err != nil {
		return nil, curatederrors.Errorf(curatederrors.ParseError, err)
	}
	return &ParsedModuleFunc{
		Multiple:  multiple,
		RVA:       uint32(rva),
		Length:    uint32(length),
		ParamSize: uint32(paramSize),
		Name:      strings.Join(fields[idx+3:], " "),
	}, nil
}

func parsePublic(fields []string) (*ParsedModulePublic, error) {
	idx := 1
	multiple := false
	if idx < len(fields) && fields[idx] == "m" {
		multiple = true
		idx++
	}
	if len(fields) < idx+3 {
		return nil, curatederrors.Errorf(curatederrors.ParseError, "malformed PUBLIC line")
	}
	rva, err := strconv.ParseUint(fields[idx], 16, 32)
	if err != nil {
		return nil, curatederrors.Errorf(curatederrors.ParseError, err)
	}
	paramSize, err := strconv.ParseUint(fields[idx+1], 16, 32)
	if err != nil {
		return nil, curatederrors.Errorf(curatederrors.ParseError, err)
	}
	return &ParsedModulePublic{
		Multiple:  multiple,
		RVA:       uint32(rva),
		ParamSize: uint32(paramSize),
		Name:      strings.Join(fields[idx+2:], " "),
	}, nil
}

func parseInline(fields []string) (ParsedModuleInline, error) {
	if len(fields) < 5 || (len(fields)-5)%2 != 0 {
		return ParsedModuleInline{}, curatederrors.Errorf(curatederrors.ParseError, "malformed INLINE line")
	}
	nums := make([]uint64, 4)
	var err error
	for i := 0; i < 4; i++ {
		nums[i], err = strconv.ParseUint(fields[i+1], 10, 32)
		if err != nil {
			return ParsedModuleInline{}, curatederrors.Errorf(curatederrors.ParseError, err)
		}
	}
	inl := ParsedModuleInline{
		Depth:    uint32(nums[0]),
		Line:     uint32(nums[1]),
		FileID:   uint32(nums[2]),
		OriginID: uint32(nums[3]),
	}
	for i := 5; i < len(fields); i += 2 {
		rva, err := strconv.ParseUint(fields[i], 16, 32)
		if err != nil {
			return ParsedModuleInline{}, curatederrors.Errorf(curatederrors.ParseError, err)
		}
		length, err := strconv.ParseUint(fields[i+1], 16, 32)
		if err != nil {
			return ParsedModuleInline{}, curatederrors.Errorf(curatederrors.ParseError, err)
		}
		inl.Ranges = append(inl.Ranges, InlineRange{RVA: uint32(rva), Length: uint32(length)})
	}
	return inl, nil
}

func parseLeafLine(fields []string) (ParsedModuleLine, error) {
	rva, err := strconv.ParseUint(fields[0], 16, 32)
	if err != nil {
		return ParsedModuleLine{}, curatederrors.Errorf(curatederrors.ParseError, err)
	}
	length, err := strconv.ParseUint(fields[1], 16, 32)
	if err != nil {
		return ParsedModuleLine{}, curatederrors.Errorf(curatederrors.ParseError, err)
	}
	lineNo, err := strconv.ParseUint(fields[2], 10, 32)
	if err != nil {
		return ParsedModuleLine{}, curatederrors.Errorf(curatederrors.ParseError, err)
	}
	fileID, err := strconv.ParseUint(fields[3], 10, 32)
	if err != nil {
		return ParsedModuleLine{}, curatederrors.Errorf(curatederrors.ParseError, err)
	}
	return ParsedModuleLine{RVA: uint32(rva), Length: uint32(length), LineNumber: uint32(lineNo), FileID: uint32(fileID)}, nil
}
