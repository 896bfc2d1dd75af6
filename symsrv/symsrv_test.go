package symsrv

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestParseChainParsesMultipleTiers(t *testing.T) {
	c, err := ParseChain("SRV*c:\\symcache*https://example.com/syms;SRV*/tmp/cache*https://backup.example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(c.tiers) != 2 {
		t.Fatalf("expected 2 tiers, got %d", len(c.tiers))
	}
}

func TestParseChainRejectsMalformedEntry(t *testing.T) {
	if _, err := ParseChain("not-a-srv-entry"); err == nil {
		t.Fatal("expected an error")
	}
}

func TestLoadConfigFileMissingReturnsNilNotError(t *testing.T) {
	c, err := LoadConfigFile(filepath.Join(t.TempDir(), "does-not-exist"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c != nil {
		t.Fatal("expected nil chain for missing config")
	}
}

func TestFetchUsesLocalCacheBeforeNetwork(t *testing.T) {
	dir := t.TempDir()
	pdbName, debugID := "foo.pdb", "ABCDEF0123456789ABCDEF0123456789A"
	cached := filepath.Join(dir, key(pdbName, debugID))
	if err := os.MkdirAll(filepath.Dir(cached), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(cached, []byte("cached pdb bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	c := &Chain{tiers: []tier{{cacheDir: dir, url: "http://unreachable.invalid"}}}
	got, err := c.Fetch(context.Background(), pdbName, debugID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != cached {
		t.Fatalf("got %s, want %s", got, cached)
	}
}

func TestFetchDownloadsFromServerOnCacheMiss(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("downloaded pdb bytes"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	c := &Chain{tiers: []tier{{cacheDir: dir, url: srv.URL}}}

	got, err := c.Fetch(context.Background(), "foo.pdb", "ABCDEF0123456789ABCDEF0123456789A")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, statErr := os.Stat(got); statErr != nil {
		t.Fatalf("expected downloaded file at %s: %v", got, statErr)
	}
}

func TestCabCompanionNameReplacesLastExtensionChar(t *testing.T) {
	got := cabCompanionName("/cache/foo.pdb")
	want := "/cache/foo.pd_"
	if got != want {
		t.Fatalf("got %s, want %s", got, want)
	}
}
