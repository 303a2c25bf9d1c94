package gladtex

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/alnah/go-gladtex/internal/fileutil"
)

// Cache file conventions.
const (
	// CacheFileName is the reserved basename of the cache file inside the
	// image directory. It is distinct from the eqn* image names.
	CacheFileName = "gladtex.cache"

	// cacheVersion is the on-disk format version. It must match exactly;
	// there is no forward or backward compatibility.
	cacheVersion = "3.0"

	// imageFilePrefix is the naming convention for generated images.
	// DiscardAndRebuild removes every file carrying it.
	imageFilePrefix = "eqn"
)

// OpenMode controls how OpenCache treats an unreadable or incompatible
// cache file.
type OpenMode int

const (
	// FailOnMismatch surfaces a CacheFormatError for any parse failure or
	// version mismatch.
	FailOnMismatch OpenMode = iota
	// DiscardAndRebuild deletes the cache file and all eqn* images in its
	// directory, then starts from an empty cache.
	DiscardAndRebuild
)

// cacheKey identifies a cached conversion: formulas are normalized, and
// display and inline variants of the same text are distinct entries.
type cacheKey struct {
	formula string
	display bool
}

// styleKey is the JSON map key for a maths style.
func styleKey(display bool) string {
	if display {
		return "display"
	}
	return "inline"
}

// cacheFile is the serialized document written to disk. The version field
// is first-class: a document without it is invalid.
type cacheFile struct {
	Version  string                           `json:"GladTeX__cache__version"`
	Formulas map[string]map[string]CacheEntry `json:"formulas"`
}

// ImageCache stores formulas which have been converted already and do not
// need to be converted again, both across runs and for recurring formulas
// within a document. Entry paths are relative to the cache's base
// directory, which simulates a different working directory so that
// parallel conversions never need to chdir.
//
// The cache is not safe for concurrent use; the converter serializes all
// access on its coordinating goroutine.
type ImageCache struct {
	path     string // cache file location, joined with basePath
	basePath string
	entries  map[cacheKey]CacheEntry
}

// OpenCache reads the cache file at path (relative to basePath) if it
// exists. The mode decides what happens when the file cannot be used: see
// FailOnMismatch and DiscardAndRebuild.
func OpenCache(path, basePath string, mode OpenMode) (*ImageCache, error) {
	if path == "" {
		path = CacheFileName
	}
	c := &ImageCache{
		path:     filepath.Join(basePath, path),
		basePath: basePath,
		entries:  make(map[cacheKey]CacheEntry),
	}
	if !fileutil.FileExists(c.path) {
		return c, nil
	}
	if err := c.read(); err != nil {
		if mode == FailOnMismatch {
			return nil, err
		}
		if rmErr := c.removeCacheAndImages(); rmErr != nil {
			return nil, rmErr
		}
	}
	return c, nil
}

// read loads the serialized cache document from disk.
func (c *ImageCache) read() error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return &CacheFormatError{Path: c.path, Msg: err.Error()}
	}
	var doc cacheFile
	if err := json.Unmarshal(data, &doc); err != nil {
		return &CacheFormatError{Path: c.path, Msg: err.Error()}
	}
	if doc.Version == "" {
		return &CacheFormatError{Path: c.path, Msg: "version field missing"}
	}
	if doc.Version != cacheVersion {
		return &CacheFormatError{
			Path: c.path,
			Msg:  fmt.Sprintf("cache has version %s, expected %s", doc.Version, cacheVersion),
		}
	}
	for formula, variants := range doc.Formulas {
		for style, entry := range variants {
			c.entries[cacheKey{formula, style == "display"}] = entry
		}
	}
	return nil
}

// removeCacheAndImages deletes the cache file and every generated eqn*
// image in its directory.
func (c *ImageCache) removeCacheAndImages() error {
	if err := os.Remove(c.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing stale cache: %w", err)
	}
	dir := filepath.Dir(c.path)
	files, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("listing image directory: %w", err)
	}
	for _, f := range files {
		if f.IsDir() || !strings.HasPrefix(f.Name(), imageFilePrefix) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, f.Name())); err != nil {
			return fmt.Errorf("removing stale image: %w", err)
		}
	}
	return nil
}

// Len returns the number of cached formulas.
func (c *ImageCache) Len() int {
	return len(c.entries)
}

// Contains reports whether the formula was already converted. The formula
// is normalized internally. A cached entry whose backing image no longer
// exists on disk counts as absent and is dropped from the cache.
func (c *ImageCache) Contains(formula string, display bool) bool {
	_, err := c.Get(formula, display)
	return err == nil
}

// Get retrieves the conversion result for a formula, or ErrNotFound.
// Like Contains, it drops entries whose image file vanished from disk.
func (c *ImageCache) Get(formula string, display bool) (CacheEntry, error) {
	key := cacheKey{NormalizeFormula(formula), display}
	entry, ok := c.entries[key]
	if !ok {
		return CacheEntry{}, fmt.Errorf("%w: %q (display=%v)", ErrNotFound, formula, display)
	}
	if !fileutil.FileExists(filepath.Join(c.basePath, entry.Path)) {
		// image was deleted behind our back, entry is stale
		delete(c.entries, key)
		return CacheEntry{}, fmt.Errorf("%w: %q (display=%v)", ErrNotFound, formula, display)
	}
	return entry, nil
}

// Put stores the conversion result for a formula, overwriting any prior
// entry for the same key. The entry path must be relative to the base
// directory; backslashes are normalized to forward slashes so that the
// persisted document is portable.
func (c *ImageCache) Put(formula string, display bool, entry CacheEntry) error {
	if filepath.IsAbs(entry.Path) || strings.HasPrefix(entry.Path, "/") {
		return fmt.Errorf("%w: image path may not be absolute: %s", ErrInvalidEntry, entry.Path)
	}
	if formula == "" || entry.Path == "" || entry.Dim.Zero() {
		return fmt.Errorf("%w: formula, path and dimensions may not be empty", ErrInvalidEntry)
	}
	entry.Path = strings.ReplaceAll(entry.Path, "\\", "/")
	c.entries[cacheKey{NormalizeFormula(formula), display}] = entry
	return nil
}

// Remove deletes the cached entry for a formula, along with its backing
// image file if it still exists. Returns ErrNotFound if the formula is not
// cached.
func (c *ImageCache) Remove(formula string, display bool) error {
	key := cacheKey{NormalizeFormula(formula), display}
	entry, ok := c.entries[key]
	if !ok {
		return fmt.Errorf("%w: %q (display=%v)", ErrNotFound, formula, display)
	}
	// best-effort: a missing image is not an error
	_ = os.Remove(filepath.Join(c.basePath, entry.Path))
	delete(c.entries, key)
	return nil
}

// Persist writes the cache to disk. The write is atomic (temp file plus
// rename), so a concurrent reader never observes a half-written document.
// An empty cache is not written at all, to avoid spurious files.
func (c *ImageCache) Persist() error {
	if len(c.entries) == 0 {
		return nil
	}
	doc := cacheFile{
		Version:  cacheVersion,
		Formulas: make(map[string]map[string]CacheEntry, len(c.entries)),
	}
	for key, entry := range c.entries {
		variants := doc.Formulas[key.formula]
		if variants == nil {
			variants = make(map[string]CacheEntry, 2)
			doc.Formulas[key.formula] = variants
		}
		variants[styleKey(key.display)] = entry
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("serializing cache: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(c.path), ".gladtex-cache-*")
	if err != nil {
		return fmt.Errorf("writing cache: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("writing cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("writing cache: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("writing cache: %w", err)
	}
	return nil
}
