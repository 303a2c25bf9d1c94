package main

import (
	"errors"
	"os"

	gladtex "github.com/alnah/go-gladtex"
	"github.com/alnah/go-gladtex/internal/config"
)

// Exit codes for the gladtex CLI.
// Follows Unix conventions: 0=success, 1=general, 2=usage, and custom codes < 126.
const (
	ExitSuccess    = 0 // Successful conversion
	ExitGeneral    = 1 // General/unexpected error
	ExitUsage      = 2 // Invalid flags, config, or validation
	ExitIO         = 3 // File not found, permission denied
	ExitBrowser    = 4 // Browser/Chrome errors (MathJax renderer)
	ExitParse      = 5 // Input document could not be parsed
	ExitConversion = 6 // A formula failed to convert
	ExitCache      = 7 // Image cache unreadable or incompatible
)

// exitCodeFor returns the appropriate exit code for an error.
// It uses errors.Is/As to check wrapped errors, so callers must use
// fmt.Errorf("%w", err).
func exitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var parseErr *gladtex.ParseError
	var cacheErr *gladtex.CacheFormatError
	var convErr *gladtex.ConversionError
	switch {
	case errors.As(err, &convErr):
		return ExitConversion
	case errors.As(err, &parseErr), errors.Is(err, gladtex.ErrPandocAST):
		return ExitParse
	case errors.As(err, &cacheErr):
		return ExitCache
	}

	// Browser errors (exit 4)
	if errors.Is(err, gladtex.ErrBrowserConnect) ||
		errors.Is(err, gladtex.ErrPageCreate) ||
		errors.Is(err, gladtex.ErrPageLoad) {
		return ExitBrowser
	}

	// I/O errors (exit 3)
	if errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, os.ErrPermission) ||
		errors.Is(err, ErrReadInput) ||
		errors.Is(err, ErrWriteOutput) {
		return ExitIO
	}

	// Usage/config/validation errors (exit 2)
	if errors.Is(err, config.ErrConfigNotFound) ||
		errors.Is(err, config.ErrConfigParse) ||
		errors.Is(err, config.ErrInvalidOption) ||
		errors.Is(err, ErrFlagConflict) {
		return ExitUsage
	}

	return ExitGeneral
}
