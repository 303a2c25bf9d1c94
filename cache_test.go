package gladtex

// Notes:
// - Entries are only valid while their backing image exists, so most
//   tests create a real image file under a temp base path
// - Version handling covers both open modes: FailOnMismatch surfaces a
//   CacheFormatError, DiscardAndRebuild wipes the cache and the eqn*
//   images and starts empty

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeImage creates a fake image file under base so cache lookups see it.
func writeImage(t *testing.T, base, rel string) {
	t.Helper()
	path := filepath.Join(base, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("<svg/>"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func testEntry(rel string) CacheEntry {
	return CacheEntry{Path: rel, Dim: Dimensions{Height: 8, Width: 16, Depth: 2}}
}

func TestOpenCacheMissingFile(t *testing.T) {
	t.Parallel()

	c, err := OpenCache(CacheFileName, t.TempDir(), FailOnMismatch)
	if err != nil {
		t.Fatalf("OpenCache() error = %v", err)
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0", c.Len())
	}
}

func TestCachePutAndGet(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	writeImage(t, base, "eqn000.svg")
	c, err := OpenCache(CacheFileName, base, FailOnMismatch)
	if err != nil {
		t.Fatal(err)
	}

	if err := c.Put(`\frac{a}{b}`, false, testEntry("eqn000.svg")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	entry, err := c.Get(`\frac{a}{b}`, false)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if entry.Path != "eqn000.svg" {
		t.Errorf("Path = %q, want eqn000.svg", entry.Path)
	}
	if entry.Dim.Height != 8 || entry.Dim.Width != 16 || entry.Dim.Depth != 2 {
		t.Errorf("Dim = %+v, want {8 16 2}", entry.Dim)
	}

	// lookups normalize the formula
	if !c.Contains(`  \frac{a}{b}  `, false) {
		t.Error("Contains() should find the formula under its normalized form")
	}
	// display and inline variants are distinct
	if c.Contains(`\frac{a}{b}`, true) {
		t.Error("Contains() must not find the display variant")
	}
}

func TestCachePutValidation(t *testing.T) {
	t.Parallel()

	c, err := OpenCache(CacheFileName, t.TempDir(), FailOnMismatch)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		formula string
		entry   CacheEntry
	}{
		{
			name:    "absolute path",
			formula: "x",
			entry:   CacheEntry{Path: "/tmp/eqn000.svg", Dim: Dimensions{Height: 1, Width: 1}},
		},
		{
			name:    "empty formula",
			formula: "",
			entry:   testEntry("eqn000.svg"),
		},
		{
			name:    "empty path",
			formula: "x",
			entry:   CacheEntry{Dim: Dimensions{Height: 1, Width: 1}},
		},
		{
			name:    "zero dimensions",
			formula: "x",
			entry:   CacheEntry{Path: "eqn000.svg"},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			err := c.Put(tt.formula, false, tt.entry)
			if !errors.Is(err, ErrInvalidEntry) {
				t.Errorf("Put() error = %v, want ErrInvalidEntry", err)
			}
		})
	}
}

func TestCachePutNormalizesBackslashes(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	writeImage(t, base, filepath.Join("img", "eqn000.svg"))
	c, err := OpenCache(CacheFileName, base, FailOnMismatch)
	if err != nil {
		t.Fatal(err)
	}

	if err := c.Put("x", false, testEntry(`img\eqn000.svg`)); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	entry, err := c.Get("x", false)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if entry.Path != "img/eqn000.svg" {
		t.Errorf("Path = %q, want img/eqn000.svg", entry.Path)
	}
}

func TestCacheGetMissing(t *testing.T) {
	t.Parallel()

	c, err := OpenCache(CacheFileName, t.TempDir(), FailOnMismatch)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Get("never stored", false); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestCacheDropsEntryWithVanishedImage(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	writeImage(t, base, "eqn000.svg")
	c, err := OpenCache(CacheFileName, base, FailOnMismatch)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Put("x", false, testEntry("eqn000.svg")); err != nil {
		t.Fatal(err)
	}

	if err := os.Remove(filepath.Join(base, "eqn000.svg")); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Get("x", false); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after image removal error = %v, want ErrNotFound", err)
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0 after stale entry was dropped", c.Len())
	}
}

func TestCacheRemove(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	writeImage(t, base, "eqn000.svg")
	c, err := OpenCache(CacheFileName, base, FailOnMismatch)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Put("x", false, testEntry("eqn000.svg")); err != nil {
		t.Fatal(err)
	}

	if err := c.Remove("x", false); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0", c.Len())
	}
	if _, err := os.Stat(filepath.Join(base, "eqn000.svg")); !os.IsNotExist(err) {
		t.Error("Remove() should delete the backing image")
	}
	if err := c.Remove("x", false); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Remove() error = %v, want ErrNotFound", err)
	}
}

func TestCachePersistAndReopen(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	writeImage(t, base, "eqn000.svg")
	writeImage(t, base, "eqn001.svg")
	c, err := OpenCache(CacheFileName, base, FailOnMismatch)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Put("a + b", false, testEntry("eqn000.svg")); err != nil {
		t.Fatal(err)
	}
	if err := c.Put("a + b", true, testEntry("eqn001.svg")); err != nil {
		t.Fatal(err)
	}
	if err := c.Persist(); err != nil {
		t.Fatalf("Persist() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(base, CacheFileName))
	if err != nil {
		t.Fatalf("cache file not written: %v", err)
	}
	if !strings.Contains(string(data), `"GladTeX__cache__version":"3.0"`) {
		t.Errorf("cache file missing version field: %s", data)
	}

	reopened, err := OpenCache(CacheFileName, base, FailOnMismatch)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	if reopened.Len() != 2 {
		t.Fatalf("reopened Len() = %d, want 2", reopened.Len())
	}
	inline, err := reopened.Get("a + b", false)
	if err != nil {
		t.Fatal(err)
	}
	display, err := reopened.Get("a + b", true)
	if err != nil {
		t.Fatal(err)
	}
	if inline.Path != "eqn000.svg" || display.Path != "eqn001.svg" {
		t.Errorf("paths = %q/%q, want eqn000.svg/eqn001.svg", inline.Path, display.Path)
	}
}

func TestCachePersistSkipsEmpty(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	c, err := OpenCache(CacheFileName, base, FailOnMismatch)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Persist(); err != nil {
		t.Fatalf("Persist() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(base, CacheFileName)); !os.IsNotExist(err) {
		t.Error("Persist() of an empty cache must not create a file")
	}
}

func TestOpenCacheVersionMismatch(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	stale := `{"GladTeX__cache__version":"2.0","formulas":{}}`
	if err := os.WriteFile(filepath.Join(base, CacheFileName), []byte(stale), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := OpenCache(CacheFileName, base, FailOnMismatch)
	var cacheErr *CacheFormatError
	if !errors.As(err, &cacheErr) {
		t.Fatalf("OpenCache() error = %v, want *CacheFormatError", err)
	}
	if !strings.Contains(cacheErr.Msg, "2.0") {
		t.Errorf("Msg = %q, want the found version mentioned", cacheErr.Msg)
	}
}

func TestOpenCacheGarbage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
	}{
		{name: "not JSON", content: "definitely { not json"},
		{name: "version missing", content: `{"formulas":{}}`},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			base := t.TempDir()
			if err := os.WriteFile(filepath.Join(base, CacheFileName), []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}
			_, err := OpenCache(CacheFileName, base, FailOnMismatch)
			var cacheErr *CacheFormatError
			if !errors.As(err, &cacheErr) {
				t.Errorf("OpenCache() error = %v, want *CacheFormatError", err)
			}
		})
	}
}

func TestOpenCacheDiscardAndRebuild(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	stale := `{"GladTeX__cache__version":"2.0","formulas":{}}`
	if err := os.WriteFile(filepath.Join(base, CacheFileName), []byte(stale), 0o644); err != nil {
		t.Fatal(err)
	}
	writeImage(t, base, "eqn000.svg")
	writeImage(t, base, "eqn001.png")
	// unrelated files survive the rebuild
	if err := os.WriteFile(filepath.Join(base, "index.html"), []byte("<html/>"), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := OpenCache(CacheFileName, base, DiscardAndRebuild)
	if err != nil {
		t.Fatalf("OpenCache() error = %v", err)
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0", c.Len())
	}
	for _, gone := range []string{CacheFileName, "eqn000.svg", "eqn001.png"} {
		if _, err := os.Stat(filepath.Join(base, gone)); !os.IsNotExist(err) {
			t.Errorf("%s should have been removed", gone)
		}
	}
	if _, err := os.Stat(filepath.Join(base, "index.html")); err != nil {
		t.Error("unrelated files must survive the rebuild")
	}
}
