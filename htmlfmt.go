package gladtex

import (
	"fmt"
	"html"
	"io"
	"os"
	"regexp"
	"strings"
	"unicode"
)

// ExclusionFileName is the default file that receives the full LaTeX code
// of formulas too long for an alt attribute.
const ExclusionFileName = "excluded-descriptions.html"

// defaultMaxAltLength is the alt text length above which a formula is
// outsourced when exclusion is enabled.
const defaultMaxAltLength = 100

// exclusionFileHead opens the generated exclusion document.
const exclusionFileHead = `<!DOCTYPE HTML PUBLIC "-//W3C//DTD HTML 4.01//EN"
  "http://www.w3.org/TR/html4/strict.dtd">
<html>
<head>
  <meta http-equiv="content-type" content="text/html; charset=UTF-8"/>
  <title>Excluded Formulas</title>
</head><!-- DO NOT MODIFY THIS FILE, IT IS AUTOMATICALLY GENERATED -->
<body>
`

// altStripRe removes sizing commands that only add noise when a formula is
// read aloud as alt text.
var altStripRe = regexp.MustCompile(`\\(left|right|[bB]igg?[lr]?)\b`)

// HTMLImageFormatter creates the HTML markup for a converted formula. The
// image keeps the text baseline through a negative vertical-align offset
// and carries the formula as alt text, so screen reader users read the
// LaTeX source. Formulas too long for an alt attribute can be outsourced
// to a separate file the image links to.
type HTMLImageFormatter struct {
	urlPrefix     string
	inlineClass   string
	displayClass  string
	excludeLong   bool
	maxAltLength  int
	exclusionFile string

	excludedOrder []string
	excluded      map[string]string
}

// FormatterOption configures an HTMLImageFormatter.
type FormatterOption func(*HTMLImageFormatter)

// WithURLPrefix prepends a URL to every image path, e.g. when the images
// are served from a static host.
func WithURLPrefix(prefix string) FormatterOption {
	return func(f *HTMLImageFormatter) { f.urlPrefix = strings.TrimSuffix(prefix, "/") }
}

// WithCSSClasses overrides the class attributes for inline and display
// math images. Empty values keep the defaults "inlinemath" and
// "displaymath".
func WithCSSClasses(inline, display string) FormatterOption {
	return func(f *HTMLImageFormatter) {
		if inline != "" {
			f.inlineClass = inline
		}
		if display != "" {
			f.displayClass = display
		}
	}
}

// WithExcludeLongAlt outsources formulas longer than maxLen to the
// exclusion file. maxLen <= 0 keeps the default of 100 characters.
func WithExcludeLongAlt(maxLen int) FormatterOption {
	return func(f *HTMLImageFormatter) {
		f.excludeLong = true
		if maxLen > 0 {
			f.maxAltLength = maxLen
		}
	}
}

// WithExclusionFile overrides the link target (and output name) of the
// exclusion file.
func WithExclusionFile(name string) FormatterOption {
	return func(f *HTMLImageFormatter) { f.exclusionFile = name }
}

// NewHTMLImageFormatter returns a formatter with the default CSS classes
// and no exclusion of long formulas.
func NewHTMLImageFormatter(opts ...FormatterOption) *HTMLImageFormatter {
	f := &HTMLImageFormatter{
		inlineClass:   "inlinemath",
		displayClass:  "displaymath",
		maxAltLength:  defaultMaxAltLength,
		exclusionFile: ExclusionFileName,
		excluded:      make(map[string]string),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Format renders the img tag for one conversion result. When exclusion is
// active and the formula exceeds the maximum alt length, the alt text is
// shortened and the image links to the formula's paragraph in the
// exclusion file.
func (f *HTMLImageFormatter) Format(res Result) string {
	if f.excludeLong && len(res.Formula) > f.maxAltLength {
		return f.formatExcluded(res)
	}
	return f.img(res, res.Formula)
}

// img builds the actual img tag. The depth is a negative offset shifting
// the image below the baseline so that the mathematics lines up with the
// surrounding text.
func (f *HTMLImageFormatter) img(res Result, alt string) string {
	src := res.Path
	if f.urlPrefix != "" {
		src = f.urlPrefix + "/" + src
	}
	class := f.inlineClass
	if res.Display {
		class = f.displayClass
	}
	return fmt.Sprintf(
		`<img src="%s" style="vertical-align: %spx; margin: 0;" height="%s" width="%s" alt="%s" class="%s" />`,
		src, trimFloat(-res.Dim.Depth), trimFloat(res.Dim.Height), trimFloat(res.Dim.Width),
		html.EscapeString(ReadableAlt(alt)), class)
}

// formatExcluded shortens the alt text, records the full formula for the
// exclusion file and wraps the image in a link to it.
func (f *HTMLImageFormatter) formatExcluded(res Result) string {
	shortened := res.Formula[:f.maxAltLength] + "..."
	id := GenID(res.Formula)
	if _, ok := f.excluded[id]; !ok {
		f.excluded[id] = res.Formula
		f.excludedOrder = append(f.excludedOrder, id)
	}
	return fmt.Sprintf(`<a href="%s#%s">%s</a>`, f.exclusionFile, id, f.img(res, shortened))
}

// HasExcluded reports whether any formula was outsourced since creation.
func (f *HTMLImageFormatter) HasExcluded() bool {
	return len(f.excludedOrder) > 0
}

// WriteExclusionFile writes the outsourced formulas as a standalone HTML
// document to path. It is a no-op when nothing was excluded.
func (f *HTMLImageFormatter) WriteExclusionFile(path string) error {
	if !f.HasExcluded() {
		return nil
	}
	var b strings.Builder
	b.WriteString(exclusionFileHead)
	for _, id := range f.excludedOrder {
		fmt.Fprintf(&b, "<a id=\"%s\"><pre>%s</pre></a>\n", id, html.EscapeString(f.excluded[id]))
	}
	b.WriteString("\n</body>\n</html>\n")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("writing exclusion file: %w", err)
	}
	return nil
}

// WriteHTML writes the parsed document back with every formula replaced by
// its image markup. The converter must have processed all formulas of the
// chunk list beforehand.
func WriteHTML(w io.Writer, chunks []Chunk, conv *CachedConverter, f *HTMLImageFormatter) error {
	for _, chunk := range chunks {
		if !chunk.IsFormula() {
			if _, err := io.WriteString(w, chunk.Literal); err != nil {
				return err
			}
			continue
		}
		res, err := conv.ResultFor(chunk.Formula.Text, chunk.Formula.Display)
		if err != nil {
			return fmt.Errorf("formula %q: %w", chunk.Formula.Text, err)
		}
		if _, err := io.WriteString(w, f.Format(res)); err != nil {
			return err
		}
	}
	return nil
}

// GenID derives a stable HTML id from a formula. Braces, parentheses,
// backslashes and carets map to fixed replacements, other non-alphanumeric
// characters are dropped.
func GenID(formula string) string {
	mapped := map[rune]rune{
		'{': '_', '}': '_',
		'(': '-', ')': '-',
		'\\': '.', '^': ',',
	}
	var id []rune
	for _, c := range formula {
		switch {
		case mapped[c] != 0:
			id = append(id, mapped[c])
		case unicode.IsLetter(c) || unicode.IsDigit(c):
			id = append(id, c)
		}
	}
	return string(id)
}

// ReadableAlt strips bracket sizing commands from a formula so the alt
// text reads better in a screen reader. The rendering is unaffected, only
// the description changes.
func ReadableAlt(formula string) string {
	return altStripRe.ReplaceAllString(formula, "")
}

// trimFloat formats a dimension without a trailing ".0" so that integer
// values render as integers.
func trimFloat(v float64) string {
	v += 0 // turn IEEE negative zero into plain zero
	s := fmt.Sprintf("%.2f", v)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
