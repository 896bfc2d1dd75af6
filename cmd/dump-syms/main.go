// Command dump-syms reads native debug info (ELF, Mach-O, or Windows
// PDB/PE) and writes breakpad-format textual symbol files, optionally
// laid out in a symbol-store directory tree.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/symcollect/dump-syms/breakpad"
	"github.com/symcollect/dump-syms/dwarfsrc"
	"github.com/symcollect/dump-syms/internal/curatederrors"
	"github.com/symcollect/dump-syms/internal/demangle"
	"github.com/symcollect/dump-syms/internal/logger"
	"github.com/symcollect/dump-syms/machosrc"
	"github.com/symcollect/dump-syms/pathmap"
	"github.com/symcollect/dump-syms/pesrc"
	"github.com/symcollect/dump-syms/pool"
	"github.com/symcollect/dump-syms/sniff"
	"github.com/symcollect/dump-syms/store"
	"github.com/symcollect/dump-syms/symsrv"
)

// exit codes, named rather than bare numbers, in the teacher's style of
// giving every reqQuit argument a meaning at the call site.
const (
	exitOK        = 0
	exitUsage     = 1
	exitCollected = 2
)

func main() {
	os.Exit(run(os.Args[1:]))
}

type patternList []string

func (p *patternList) String() string     { return strings.Join(*p, ",") }
func (p *patternList) Set(v string) error { *p = append(*p, v); return nil }

func run(args []string) int {
	flgs := flag.NewFlagSet("dump-syms", flag.ContinueOnError)

	inlines := flgs.Bool("inlines", false, "emit INLINE records and translate mixed line tables")
	checkCFI := flgs.Bool("check-cfi", false, "fail emission if a module has no CFI data")
	keepMangled := flgs.Bool("keep-mangled", false, "do not demangle function/inline-origin names")
	arch := flgs.String("arch", "", "architecture slice to select out of a fat Mach-O")
	typeHint := flgs.String("type", "", "file type hint (elf, macho, pe, pdb) when sniffing is ambiguous")
	symbolServer := flgs.String("symbol-server", "", "SRV*cache*url[;SRV*...] chain to fetch companion PDBs from")
	numJobs := flgs.Int("num-jobs", runtime.NumCPU(), "number of worker jobs collecting input files concurrently")
	storeRoot := flgs.String("store", "", "symbol-store root directory; if empty, output goes to -output only")
	output := flgs.String("output", "-", "output file for non-store emission ('-' for stdout)")

	var mapFrom, mapTo patternList
	flgs.Var(&mapFrom, "map-from", "source-path regex to replace (repeatable, paired with -map-to)")
	flgs.Var(&mapTo, "map-to", "replacement for the paired -map-from (repeatable)")

	if err := flgs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	inputs := flgs.Args()
	if len(inputs) == 0 {
		fmt.Fprintln(os.Stderr, "dump-syms: no input files given")
		return exitUsage
	}
	if len(inputs) > 1 && *typeHint == "" {
		fmt.Fprintln(os.Stderr, "dump-syms: -type is required when multiple inputs are given")
		return exitUsage
	}

	mappings, err := buildMappings(mapFrom, mapTo)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dump-syms: %v\n", err)
		return exitUsage
	}
	mapper, err := pathmap.Compile(patternStrings(mapFrom), replacementStrings(mapTo))
	if err != nil {
		fmt.Fprintf(os.Stderr, "dump-syms: %v\n", err)
		return exitUsage
	}

	cfg := &breakpad.Config{
		EmitInlines:     *inlines,
		CheckCFI:        *checkCFI,
		KeepMangled:     *keepMangled,
		Arch:            *arch,
		FileTypeHint:    *typeHint,
		SymbolServerURL: *symbolServer,
		PathMappings:    mappings,
		NumWorkerJobs:   *numJobs,
	}

	logger.Logf(logger.Allow, "dump-syms", "collecting %d input(s) with %d worker(s)", len(inputs), cfg.NumWorkerJobs)

	collect := func(ctx context.Context, path string) (*breakpad.ModuleInfo, error) {
		return collectOne(ctx, path, cfg, mapper)
	}

	var emitErr error
	emit := func(ctx context.Context, mod *breakpad.ModuleInfo) error {
		if err := emitOne(mod, *storeRoot, *output, cfg.CheckCFI); err != nil {
			emitErr = err
			return err
		}
		return nil
	}

	p := pool.New(cfg.NumWorkerJobs, collect, emit)
	if err := p.Run(context.Background(), inputs); err != nil {
		if emitErr == nil {
			emitErr = err
		}
		fmt.Fprintf(os.Stderr, "dump-syms: %v\n", emitErr)
		return exitCollected
	}

	return exitOK
}

func patternStrings(pl patternList) []string     { return []string(pl) }
func replacementStrings(pl patternList) []string { return []string(pl) }

func buildMappings(from, to patternList) ([]breakpad.PathMapping, error) {
	if len(from) != len(to) {
		return nil, curatederrors.Errorf(curatederrors.ParseError, "-map-from and -map-to must be given the same number of times")
	}
	out := make([]breakpad.PathMapping, len(from))
	for i := range from {
		out[i] = breakpad.PathMapping{Pattern: from[i], Replacement: to[i]}
	}
	return out, nil
}

// collectOne sniffs path and dispatches to the matching adapter, producing
// a fully collected ModuleInfo: publics, functions, and (on Windows)
// exception-data placeholders and the Windows final stub.
func collectOne(ctx context.Context, path string, cfg *breakpad.Config, mapper breakpad.PathMapper) (*breakpad.ModuleInfo, error) {
	format, err := sniff.File(path, cfg.FileTypeHint)
	if err != nil {
		return nil, err
	}

	var demangler breakpad.Demangler
	if !cfg.KeepMangled {
		demangler = demangle.Demangler{}
	}

	switch format {
	case sniff.ELF:
		return collectELF(path, cfg, mapper, demangler)
	case sniff.MachO, sniff.MachOFat:
		return collectMachO(path, cfg, mapper, demangler)
	case sniff.PE:
		return collectPE(path, cfg, mapper, demangler)
	case sniff.PDB:
		return collectPDBOnly(path, cfg, mapper, demangler)
	default:
		return nil, curatederrors.Errorf(curatederrors.ParseError, fmt.Sprintf("unrecognised input %q", path))
	}
}

func collectELF(path string, cfg *breakpad.Config, mapper breakpad.PathMapper, demangler breakpad.Demangler) (*breakpad.ModuleInfo, error) {
	a, err := dwarfsrc.Open(path)
	if err != nil {
		return nil, err
	}
	defer a.Close()

	mod := breakpad.NewModuleInfo(breakpad.Linux, a.CPU(), a.DebugID(), filepath.Base(path), breakpad.DebugInfo, mapper)
	mod.CodeID = a.CodeID()

	fc := breakpad.NewFunctionCollector(mod, demangler, cfg.EmitInlines, nil)
	if err := a.CollectFunctions(fc, mod.Files); err != nil {
		return nil, err
	}

	pc := breakpad.NewPublicsCollector(mod, false)
	if err := a.CollectPublics(pc, mod); err != nil {
		return nil, err
	}

	return mod, nil
}

func collectMachO(path string, cfg *breakpad.Config, mapper breakpad.PathMapper, demangler breakpad.Demangler) (*breakpad.ModuleInfo, error) {
	a, err := machosrc.Open(path, cfg.Arch)
	if err != nil {
		return nil, err
	}
	defer a.Close()

	mod := breakpad.NewModuleInfo(breakpad.Mac, a.CPU(), a.DebugID(), filepath.Base(path), breakpad.DebugInfo, mapper)
	mod.CodeID = a.CodeID()

	fc := breakpad.NewFunctionCollector(mod, demangler, cfg.EmitInlines, nil)
	if err := a.CollectFunctions(fc, mod.Files); err != nil {
		return nil, err
	}

	pc := breakpad.NewPublicsCollector(mod, false)
	if err := a.CollectPublics(pc, mod); err != nil {
		return nil, err
	}

	return mod, nil
}

func collectPE(path string, cfg *breakpad.Config, mapper breakpad.PathMapper, demangler breakpad.Demangler) (*breakpad.ModuleInfo, error) {
	pdb, err := resolvePDBForPE(path, cfg)
	if err != nil {
		return nil, err
	}

	a, err := pesrc.Open(path, pdb)
	if err != nil {
		return nil, err
	}
	defer a.Close()

	mod := breakpad.NewModuleInfo(breakpad.Win, a.CPU(), a.DebugID(), filepath.Base(path), breakpad.DebugInfo, mapper)
	mod.CodeID = a.CodeID()
	mod.PEFile = a.PEFile()

	fc := breakpad.NewFunctionCollector(mod, demangler, cfg.EmitInlines, nil)
	if err := a.CollectFunctions(fc); err != nil {
		return nil, err
	}

	pc := breakpad.NewPublicsCollector(mod, true)
	if err := a.CollectPublics(pc, mod); err != nil {
		return nil, err
	}

	return mod, nil
}

// collectPDBOnly handles S6: a bare PDB with no sibling PE. There is no
// code-id and no CFI, by construction — the module is still emittable
// (unless -check-cfi was given, in which case MissingCfiError fires).
func collectPDBOnly(path string, cfg *breakpad.Config, mapper breakpad.PathMapper, demangler breakpad.Demangler) (*breakpad.ModuleInfo, error) {
	pdb, err := pesrc.OpenFallbackPDB(path)
	if err != nil {
		return nil, err
	}

	mod := breakpad.NewModuleInfo(breakpad.Win, "x86_64", pdb.DebugID(), filepath.Base(path), breakpad.DebugInfo, mapper)

	fc := breakpad.NewFunctionCollector(mod, demangler, cfg.EmitInlines, nil)
	for _, fn := range pdb.Functions() {
		fc.Collect(fn)
	}

	breakpad.WindowsPlaceholders(mod, pdb.ExceptionRanges())
	pc := breakpad.NewPublicsCollector(mod, true)
	for _, g := range pdb.Globals() {
		pc.Collect(g)
	}
	breakpad.WindowsFinalStub(mod)

	return mod, nil
}

// resolvePDBForPE looks for a sibling PDB (S7: same basename, .pdb
// extension, same directory) before falling back to a symbol-server fetch
// (only if configured) or, failing both, OpenFallbackPDB over the PE image
// itself (COFF symbols and .pdata ranges only).
func resolvePDBForPE(pePath string, cfg *breakpad.Config) (pesrc.PdbSource, error) {
	sibling := strings.TrimSuffix(pePath, filepath.Ext(pePath)) + ".pdb"
	if _, err := os.Stat(sibling); err == nil {
		return pesrc.OpenFallbackPDB(sibling)
	}

	if cfg.SymbolServerURL == "" {
		return pesrc.OpenFallbackPDB(pePath)
	}

	chain, err := symsrv.ParseChain(cfg.SymbolServerURL)
	if err != nil {
		return nil, err
	}
	debugID, pdbName, err := pesrc.ReadCodeViewDebugID(pePath)
	if err != nil || pdbName == "" {
		return pesrc.OpenFallbackPDB(pePath)
	}
	local, err := chain.Fetch(context.Background(), pdbName, debugID)
	if err != nil {
		logger.Logf(logger.Allow, "dump-syms", "symbol-server fetch failed for %s: %v", pdbName, err)
		return pesrc.OpenFallbackPDB(pePath)
	}
	return pesrc.OpenFallbackPDB(local)
}

func emitOne(mod *breakpad.ModuleInfo, storeRoot, output string, checkCFI bool) error {
	if storeRoot != "" {
		s := store.New(storeRoot, checkCFI)
		path, err := s.Write(mod)
		if err != nil {
			return err
		}
		logger.Logf(logger.Allow, "dump-syms", "wrote %s", path)
	}

	if output == "" {
		return nil
	}
	if output == "-" {
		return mod.Emit(os.Stdout, checkCFI)
	}

	f, err := os.Create(output)
	if err != nil {
		return curatederrors.Errorf(curatederrors.IoError, err)
	}
	defer f.Close()
	return mod.Emit(f, checkCFI)
}
