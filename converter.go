package gladtex

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/alnah/go-gladtex/internal/fileutil"
)

// workerFactor sizes the conversion pool relative to the available CPUs.
// Workers spend most of their time waiting on the external toolchain, so
// the pool is oversubscribed.
const workerFactor = 2.5

// CachedConverter converts formulas to images, caching the results to
// reuse them for subsequent runs and for recurring formulas within the
// same document. Formulas already in the cache are not converted again;
// within one batch, each distinct (formula, style) pair is rendered
// exactly once.
//
// The base path is the directory of the output document; image paths in
// the cache and in results are relative to it.
type CachedConverter struct {
	cache    *ImageCache
	renderer Renderer
	builder  DocumentBuilder
	basePath string
	imgDir   string
	workers  int
	openMode OpenMode
}

// ConverterOption configures a CachedConverter.
type ConverterOption func(*CachedConverter)

// WithRenderer injects the renderer invoked by conversion workers.
// Defaults to a Tex2img producing SVG.
func WithRenderer(r Renderer) ConverterOption {
	return func(c *CachedConverter) { c.renderer = r }
}

// WithDocumentBuilder injects the builder that wraps a bare formula into
// the renderer's input format. Defaults to a zero LaTeXDocumentBuilder.
func WithDocumentBuilder(b DocumentBuilder) ConverterOption {
	return func(c *CachedConverter) { c.builder = b }
}

// WithImageDir places generated images (and the cache file) in a
// subdirectory of the base path.
func WithImageDir(dir string) ConverterOption {
	return func(c *CachedConverter) { c.imgDir = emptyPath(dir) }
}

// WithWorkers overrides the size of the conversion pool. n <= 0 keeps the
// automatic CPU-based size.
func WithWorkers(n int) ConverterOption {
	return func(c *CachedConverter) { c.workers = n }
}

// WithDiscardStaleCache rebuilds an unreadable or incompatible cache
// instead of failing, deleting the old cache file and all eqn* images.
func WithDiscardStaleCache() ConverterOption {
	return func(c *CachedConverter) { c.openMode = DiscardAndRebuild }
}

// NewCachedConverter opens (or creates) the conversion cache under
// basePath and returns a converter ready for ConvertAll. It fails with a
// CacheFormatError when an existing cache cannot be used and
// WithDiscardStaleCache was not given.
func NewCachedConverter(basePath string, opts ...ConverterOption) (*CachedConverter, error) {
	c := &CachedConverter{
		basePath: emptyPath(basePath),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.renderer == nil {
		c.renderer = NewTex2img(FormatSVG)
	}
	if c.builder == nil {
		c.builder = &LaTeXDocumentBuilder{}
	}
	cache, err := OpenCache(filepath.Join(c.imgDir, CacheFileName), c.basePath, c.openMode)
	if err != nil {
		return nil, err
	}
	c.cache = cache
	return c, nil
}

// emptyPath treats "." and path-separator-only values as "no directory".
func emptyPath(p string) string {
	if p == "" || strings.Trim(p, "/\\") == "." || strings.Trim(p, "/\\") == "" {
		return ""
	}
	return p
}

// conversionJob is one formula that actually needs rendering.
type conversionJob struct {
	formula Formula
	relPath string // allocated image path, relative to basePath
	ordinal int    // 1-based position among all formulas of the document
}

// jobResult is what a worker reports back to the coordinator.
type jobResult struct {
	job       conversionJob
	entry     CacheEntry
	err       error
	cancelled bool
}

// ConvertAll converts every formula not yet covered by the cache,
// concurrently. The first rendering failure is returned as a
// ConversionError; work already in flight still completes and successful
// results are folded into the cache before the error surfaces, so no
// completed work is lost. Jobs not yet started when the failure occurs
// are skipped.
//
// After ConvertAll returns nil, ResultFor answers for every input
// formula.
func (c *CachedConverter) ConvertAll(ctx context.Context, formulas []Formula) error {
	jobs := c.formulasToConvert(formulas)
	if len(jobs) == 0 {
		return nil
	}
	// create the image directory before fan-out; workers must never race
	// on directory creation
	if dir := filepath.Join(c.basePath, c.imgDir); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating image directory: %w", err)
		}
	}
	return c.convertConcurrently(ctx, jobs)
}

// formulasToConvert filters the input down to the formulas that need
// rendering and allocates a collision-free image file slot for each.
// Document order decides which occurrence of a recurring formula becomes
// the representative job.
func (c *CachedConverter) formulasToConvert(formulas []Formula) []conversionJob {
	ext := c.renderer.Ext()
	eqnPath := func(n int) string {
		return filepath.Join(c.imgDir, fmt.Sprintf("eqn%03d.%s", n, ext))
	}

	seen := make(map[cacheKey]struct{})
	var jobs []conversionJob
	slot := 0
	for i, f := range formulas {
		if c.cache.Contains(f.Text, f.Display) {
			continue
		}
		key := cacheKey{NormalizeFormula(f.Text), f.Display}
		if _, dup := seen[key]; dup {
			// already enqueued in this batch; the earlier occurrence's
			// result will serve this one
			continue
		}
		seen[key] = struct{}{}
		// find the next file name not taken by a previous run; slots
		// claimed in this batch are never revisited since the counter
		// only moves forward
		for fileutil.FileExists(filepath.Join(c.basePath, eqnPath(slot))) {
			slot++
		}
		jobs = append(jobs, conversionJob{formula: f, relPath: eqnPath(slot), ordinal: i + 1})
		slot++
	}
	return jobs
}

// convertConcurrently fans the jobs out to a bounded worker pool and folds
// the results into the cache in completion order. Only this goroutine
// touches the cache.
func (c *CachedConverter) convertConcurrently(ctx context.Context, jobs []conversionJob) error {
	// batchCtx only gates the *start* of pending jobs; the renderer gets
	// the caller's context so that in-flight work is never interrupted by
	// a sibling's failure
	batchCtx, stopPending := context.WithCancel(ctx)
	defer stopPending()

	workers := c.workers
	if workers <= 0 {
		workers = int(math.Round(workerFactor * float64(runtime.GOMAXPROCS(0))))
	}
	if workers > len(jobs) {
		workers = len(jobs)
	}

	jobCh := make(chan conversionJob)
	resCh := make(chan jobResult)
	for i := 0; i < workers; i++ {
		go func() {
			for job := range jobCh {
				resCh <- c.runJob(ctx, batchCtx, job)
			}
		}()
	}
	go func() {
		defer close(jobCh)
		for _, job := range jobs {
			jobCh <- job
		}
	}()

	var firstErr *ConversionError
	var fatal error
	for range jobs {
		res := <-resCh
		switch {
		case res.cancelled:
			// skipped before starting; nothing to fold
		case res.err != nil:
			if firstErr == nil {
				firstErr = newConversionError(res)
				stopPending()
			}
			// write back the cache with the entries valid so far
			if err := c.cache.Persist(); err != nil && fatal == nil {
				fatal = err
			}
		default:
			if err := c.cache.Put(res.job.formula.Text, res.job.formula.Display, res.entry); err != nil {
				if fatal == nil {
					fatal = err
				}
				continue
			}
			// persist immediately so an interruption loses at most the
			// formulas still in flight
			if err := c.cache.Persist(); err != nil && fatal == nil {
				fatal = err
			}
		}
	}

	if firstErr != nil {
		return firstErr
	}
	if fatal != nil {
		return fatal
	}
	return ctx.Err()
}

// runJob renders a single formula. renderCtx is the caller's context;
// batchCtx additionally cancels when an earlier job failed, in which case
// the job is skipped without invoking the renderer.
func (c *CachedConverter) runJob(renderCtx, batchCtx context.Context, job conversionJob) jobResult {
	if batchCtx.Err() != nil {
		return jobResult{job: job, err: batchCtx.Err(), cancelled: true}
	}
	doc, err := c.builder.BuildDocument(job.formula.Text, job.formula.Display)
	if err != nil {
		return jobResult{job: job, err: err}
	}
	base := strings.TrimSuffix(filepath.Join(c.basePath, job.relPath), "."+c.renderer.Ext())
	dim, err := c.renderer.Render(renderCtx, doc, base)
	if err != nil {
		return jobResult{job: job, err: err}
	}
	return jobResult{job: job, entry: CacheEntry{Path: job.relPath, Dim: dim}}
}

// newConversionError builds the user-facing error for the first failed
// job, with 1-based source coordinates when the input had any.
func newConversionError(res jobResult) *ConversionError {
	e := &ConversionError{
		Diagnostic: res.err.Error(),
		Formula:    res.job.formula.Text,
		Ordinal:    res.job.ordinal,
	}
	if p := res.job.formula.Pos; p != nil {
		e.Pos = &Position{Line: p.Line + 1, Col: p.Col + 1}
	}
	return e
}

// ResultFor retrieves the conversion result for a formula that was either
// cached before or converted by ConvertAll. ErrNotFound here means the
// formula was never processed, which is a bug in the caller.
func (c *CachedConverter) ResultFor(formula string, display bool) (Result, error) {
	entry, err := c.cache.Get(formula, display)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Formula: formula,
		Display: display,
		Path:    entry.Path,
		Dim:     entry.Dim,
	}, nil
}

// Cache exposes the underlying image cache, e.g. to remove a formula
// explicitly.
func (c *CachedConverter) Cache() *ImageCache {
	return c.cache
}
