// Package symsrv fetches PDBs from a Microsoft-style symbol-server chain
// (a `SRV*cache*url[;SRV*...]` string, as found in `_NT_SYMBOL_PATH` or
// this engine's own `~/.dump_syms/config`). CAB-compressed companions are
// stored as served and are not expanded. It is an optional collaborator:
// nothing in the core engine calls it unless a symbol-server URL was
// configured, so a default run never touches the network.
package symsrv

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/symcollect/dump-syms/internal/curatederrors"
)

// Chain is a parsed `SRV*cache*url[;SRV*...]` symbol path: an ordered list
// of (cacheDir, serverURL) pairs tried in order until one request succeeds.
type Chain struct {
	tiers []tier
}

type tier struct {
	cacheDir string
	url      string
}

// ParseChain parses the `_NT_SYMBOL_PATH`-style syntax this engine accepts
// both from the `-symbol-server` flag and from `~/.dump_syms/config`.
func ParseChain(s string) (*Chain, error) {
	c := &Chain{}
	for _, segment := range strings.Split(s, ";") {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}
		parts := strings.Split(segment, "*")
		if len(parts) != 3 || parts[0] != "SRV" {
			return nil, curatederrors.Errorf(curatederrors.ParseError,
				fmt.Sprintf("malformed symbol-server entry %q, want SRV*cache*url", segment))
		}
		c.tiers = append(c.tiers, tier{cacheDir: parts[1], url: parts[2]})
	}
	if len(c.tiers) == 0 {
		return nil, curatederrors.Errorf(curatederrors.ParseError, "symbol-server path has no SRV entries")
	}
	return c, nil
}

// LoadConfigFile reads a `~/.dump_syms/config` file holding exactly one
// symbol-path line, returning the parsed Chain. A missing file is not an
// error: it just means no symbol server is configured.
func LoadConfigFile(path string) (*Chain, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, curatederrors.Errorf(curatederrors.IoError, err)
	}
	line := strings.TrimSpace(string(data))
	if line == "" {
		return nil, nil
	}
	return ParseChain(line)
}

// key is the well-known symbol-server path fragment for one PDB:
// <pdbName>/<debugID><age>/<pdbName>, all uppercase debug-id, no dashes.
func key(pdbName, debugID string) string {
	return fmt.Sprintf("%s/%s/%s", pdbName, strings.ToUpper(debugID), pdbName)
}

// Fetch resolves pdbName+debugID against the chain, trying each tier's
// local cache directory first and falling back to an HTTP GET against its
// URL, caching the result locally before returning its path. Returns the
// local filesystem path to the (possibly just-downloaded) PDB.
func (c *Chain) Fetch(ctx context.Context, pdbName, debugID string) (string, error) {
	rel := key(pdbName, debugID)

	for _, t := range c.tiers {
		local := filepath.Join(t.cacheDir, filepath.FromSlash(rel))
		if _, err := os.Stat(local); err == nil {
			return local, nil
		}
	}

	var lastErr error
	for _, t := range c.tiers {
		local := filepath.Join(t.cacheDir, filepath.FromSlash(rel))
		if err := download(ctx, t.url+"/"+rel, local); err != nil {
			lastErr = err
			continue
		}
		return local, nil
	}
	if lastErr == nil {
		lastErr = curatederrors.Errorf(curatederrors.IoError, fmt.Errorf("no symbol-server tier satisfied %s", rel))
	}
	return "", lastErr
}

func download(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return curatederrors.Errorf(curatederrors.IoError, err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return curatederrors.Errorf(curatederrors.IoError, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return curatederrors.Errorf(curatederrors.IoError, fmt.Errorf("symbol server returned %s for %s", resp.Status, url))
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return curatederrors.Errorf(curatederrors.IoError, err)
	}

	// When the server's Content-Type says the body is a cabinet, the body
	// is stored under the cabinet-style name (last character of the file
	// name replaced by '_'); it is neither expanded nor renamed back.
	finalDest := dest
	if resp.Header.Get("Content-Type") == "application/vnd.ms-cab-compressed" {
		finalDest = cabCompanionName(dest)
	}

	out, err := os.Create(finalDest)
	if err != nil {
		return curatederrors.Errorf(curatederrors.IoError, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return curatederrors.Errorf(curatederrors.IoError, err)
	}
	return nil
}

func cabCompanionName(dest string) string {
	ext := path.Ext(dest)
	if len(ext) == 0 {
		return dest + "_"
	}
	return strings.TrimSuffix(dest, ext) + ext[:len(ext)-1] + "_"
}
