package gladtex

import (
	"errors"
	"fmt"
)

// Sentinel errors for library operations.
var (
	// ErrNotFound is returned when a formula is not in the cache.
	ErrNotFound = errors.New("formula not found in cache")

	// ErrInvalidEntry indicates a programming error in a cache caller:
	// an absolute image path or an empty formula/path/dimension.
	ErrInvalidEntry = errors.New("invalid cache entry")

	// ErrRender wraps any failure of the external rendering toolchain.
	ErrRender = errors.New("rendering failed")

	// ErrToolNotFound indicates a required external program is missing.
	ErrToolNotFound = errors.New("external program not found")

	// ErrMarkdownConversion indicates Markdown to HTML conversion failed.
	ErrMarkdownConversion = errors.New("markdown conversion failed")

	// ErrPandocAST indicates a document is not a usable Pandoc AST.
	ErrPandocAST = errors.New("invalid pandoc AST")

	// Browser errors for the MathJax renderer.
	ErrBrowserConnect = errors.New("failed to connect to browser")
	ErrPageCreate     = errors.New("failed to create browser page")
	ErrPageLoad       = errors.New("failed to load page")
)

// ParseError reports a malformed source document. Line and Col count
// from 0, matching the parser's cursor.
type ParseError struct {
	Msg  string
	Line int
	Col  int
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at line %d, %d: %s", e.Line+1, e.Col+1, e.Msg)
}

// CacheFormatError reports an unreadable or incompatible cache file.
// It is only recoverable by discarding the cache.
type CacheFormatError struct {
	Path string
	Msg  string
}

func (e *CacheFormatError) Error() string {
	return fmt.Sprintf("cannot read cache %s: %s; delete the cache and the "+
		"generated images and rerun the program", e.Path, e.Msg)
}

// ConversionError reports the first formula that failed to render during a
// batch. Ordinal is the 1-based position of the formula among all formulas
// of the document; Pos, when set, is the 1-based source line/column.
type ConversionError struct {
	Diagnostic string
	Formula    string
	Ordinal    int
	Pos        *Position
}

func (e *ConversionError) Error() string {
	if e.Pos != nil {
		return fmt.Sprintf("LaTeX failed at formula line %d, %d, no. %d: %s",
			e.Pos.Line, e.Pos.Col, e.Ordinal, e.Diagnostic)
	}
	return fmt.Sprintf("LaTeX failed at formula no. %d: %s", e.Ordinal, e.Diagnostic)
}
