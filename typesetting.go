package gladtex

import (
	"fmt"
	"strconv"
	"strings"
)

// DocumentBuilder wraps a bare formula into the source format expected by a
// Renderer. The scheduler treats the result as opaque.
type DocumentBuilder interface {
	BuildDocument(formula string, display bool) (string, error)
}

// Compile-time interface checks.
var (
	_ DocumentBuilder = (*LaTeXDocumentBuilder)(nil)
	_ DocumentBuilder = (*SnippetDocumentBuilder)(nil)
)

// defaultFontSize is the LaTeX font size in pt when none is configured.
const defaultFontSize = 12.0

// LaTeXDocumentBuilder serializes a formula into a standalone LaTeX
// document using the preview package, ready for the latex/dvisvgm
// toolchain. The zero value produces a transparent-background,
// black-on-white document at 12pt.
type LaTeXDocumentBuilder struct {
	// FontSize in pt; 0 means the 12pt default.
	FontSize float64
	// Background and Foreground are either dvips color names ("yellow")
	// or six-digit hex values ("FFCC00"). Empty means transparent
	// background and black text.
	Background string
	Foreground string
	// MathsEnv, when set, surrounds the formula with
	// \begin{...}\end{...} instead of \(..\) or \[..\].
	MathsEnv string
	// Preamble is extra LaTeX prepended verbatim to the preamble.
	Preamble string
	// Encoding selects the inputenc encoding; supported values are
	// "utf8" (default) and "latin1".
	Encoding string
}

// BuildDocument returns a complete LaTeX document with the formula
// embedded in the configured maths environment.
func (b *LaTeXDocumentBuilder) BuildDocument(formula string, display bool) (string, error) {
	encoding := b.Encoding
	if encoding == "" {
		encoding = "utf8"
	}
	if encoding != "utf8" && encoding != "latin1" {
		return "", fmt.Errorf("unsupported LaTeX document encoding %q", encoding)
	}
	fontSize := b.FontSize
	if fontSize == 0 {
		fontSize = defaultFontSize
	}

	opening, closing := "\\(", "\\)"
	if display {
		opening, closing = "\\[", "\\]"
	}
	if b.MathsEnv != "" {
		opening = fmt.Sprintf("\\begin{%s}", b.MathsEnv)
		closing = fmt.Sprintf("\\end{%s}", b.MathsEnv)
	}

	var preamble strings.Builder
	fmt.Fprintf(&preamble, "\\usepackage[%s]{inputenc}\n", encoding)
	preamble.WriteString("\\usepackage[T1]{fontenc}\n")
	preamble.WriteString("\\usepackage{amsmath, amssymb}\n")
	if b.Preamble != "" {
		preamble.WriteString(b.Preamble)
		preamble.WriteString("\n")
	}

	colorDefs, colorBody := b.formatColors()

	return fmt.Sprintf("\\documentclass[fontsize=%gpt, fleqn]{scrartcl}\n\n"+
		"%s"+
		"\\usepackage[dvipsnames]{xcolor}\n"+
		"%s"+
		"\\usepackage[active,textmath,displaymath,tightpage]{preview} %% must be last one, see doc\n\n"+
		"\\begin{document}\n"+
		"\\noindent%%\n"+
		"\\begin{preview}{%s%s%s}\\end{preview}\n"+
		"\\end{document}\n",
		fontSize, preamble.String(), colorDefs, opening,
		colorBody+strings.TrimSpace(formula), closing), nil
}

// formatColors returns preamble color definitions and the in-body color
// commands for the configured background/foreground.
func (b *LaTeXDocumentBuilder) formatColors() (defs, body string) {
	if b.Background != "" {
		name := b.Background
		if isHexColor(name) {
			defs += fmt.Sprintf("\\definecolor{background}{HTML}{%s}\n", strings.ToUpper(name))
			name = "background"
		}
		body += fmt.Sprintf("\\pagecolor{%s}", name)
	}
	if b.Foreground != "" {
		name := b.Foreground
		if isHexColor(name) {
			defs += fmt.Sprintf("\\definecolor{foreground}{HTML}{%s}\n", strings.ToUpper(name))
			name = "foreground"
		}
		body += fmt.Sprintf("\\color{%s}", name)
	}
	return defs, body
}

// isHexColor reports whether s is a six-digit hex color value.
func isHexColor(s string) bool {
	if len(s) != 6 {
		return false
	}
	_, err := strconv.ParseUint(s, 16, 32)
	return err == nil
}

// SnippetDocumentBuilder wraps a formula in bare \(..\) or \[..\]
// delimiters. This is the document format the MathJax renderer expects: a
// delimited TeX snippet, not a full LaTeX document.
type SnippetDocumentBuilder struct{}

// BuildDocument returns the delimited formula.
func (SnippetDocumentBuilder) BuildDocument(formula string, display bool) (string, error) {
	if display {
		return "\\[" + formula + "\\]", nil
	}
	return "\\(" + formula + "\\)", nil
}
