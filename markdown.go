package gladtex

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"strings"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	htmlrenderer "github.com/yuin/goldmark/renderer/html"
)

// MarkdownConverter converts Markdown documents with TeX math spans into
// HTML ready for the formula pipeline. Dollar-delimited math ($...$ and
// $$...$$) is lifted out before the Markdown conversion and reinserted as
// eq tags afterwards, so Markdown syntax inside a formula is never
// interpreted and the formula text survives verbatim.
type MarkdownConverter struct {
	md goldmark.Markdown
}

// NewMarkdownConverter creates a converter with GFM extensions and syntax
// highlighting.
func NewMarkdownConverter() *MarkdownConverter {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			extension.Footnote,
			highlighting.NewHighlighting(
				highlighting.WithFormatOptions(
					// CSS classes keep the HTML small and the colors
					// controllable from a stylesheet
					chromahtml.WithClasses(true),
				),
			),
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
		goldmark.WithRendererOptions(
			htmlrenderer.WithXHTML(),
		),
	)
	return &MarkdownConverter{md: md}
}

// mathSpan is one lifted formula and the placeholder that stands in for it
// during the Markdown conversion.
type mathSpan struct {
	placeholder string
	formula     string
	display     bool
}

// ToHTML converts Markdown to an HTML fragment in which every math span
// appears as an eq tag, ready for EqnParser. Goldmark has no context
// support, so cancellation runs through a goroutine and select.
func (c *MarkdownConverter) ToHTML(ctx context.Context, content string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	content, spans := extractMathSpans(content)

	type result struct {
		html string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		var buf bytes.Buffer
		if err := c.md.Convert([]byte(content), &buf); err != nil {
			done <- result{err: fmt.Errorf("%w: %v", ErrMarkdownConversion, err)}
			return
		}
		done <- result{html: buf.String()}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-done:
		if r.err != nil {
			return "", r.err
		}
		return reinsertMathSpans(r.html, spans), nil
	}
}

// extractMathSpans replaces every dollar-delimited math span with a
// plain-text placeholder goldmark passes through unchanged. Fenced code
// blocks and inline code spans keep their dollar signs, as does an escaped
// \$ and a single $ without a valid closer.
func extractMathSpans(content string) (string, []mathSpan) {
	var (
		out     strings.Builder
		spans   []mathSpan
		inFence bool
	)
	add := func(formula string, display bool) {
		// the trailing x keeps placeholders prefix-free, so replacing
		// span 1 can never land inside span 10's placeholder
		placeholder := fmt.Sprintf("gladtex-formula-%dx", len(spans))
		spans = append(spans, mathSpan{placeholder: placeholder, formula: formula, display: display})
		out.WriteString(placeholder)
	}

	i := 0
	lineStart := true
	for i < len(content) {
		if lineStart && isFenceLine(content[i:]) {
			// fence markers pass through whole, so their backticks never
			// reach the inline-code branch
			inFence = !inFence
			end := strings.IndexByte(content[i:], '\n')
			if end < 0 {
				out.WriteString(content[i:])
				break
			}
			out.WriteString(content[i : i+end+1])
			i += end + 1
			continue
		}
		lineStart = false

		ch := content[i]
		switch {
		case ch == '\n':
			lineStart = true
			out.WriteByte(ch)
			i++
		case inFence:
			out.WriteByte(ch)
			i++
		case ch == '\\' && i+1 < len(content) && content[i+1] == '$':
			out.WriteString(`\$`)
			i += 2
		case ch == '`':
			// inline code span, copied verbatim up to the closing
			// backtick; an unmatched backtick is literal text
			end := strings.IndexByte(content[i+1:], '`')
			if end < 0 {
				out.WriteByte(ch)
				i++
				break
			}
			out.WriteString(content[i : i+end+2])
			i += end + 2
		case ch == '$' && strings.HasPrefix(content[i:], "$$"):
			end := strings.Index(content[i+2:], "$$")
			if end < 0 {
				out.WriteString("$$")
				i += 2
				break
			}
			add(content[i+2:i+2+end], true)
			i += end + 4
		case ch == '$':
			formula, width, ok := scanInlineMath(content[i:])
			if !ok {
				out.WriteByte(ch)
				i++
				break
			}
			add(formula, false)
			i += width
		default:
			out.WriteByte(ch)
			i++
		}
	}
	return out.String(), spans
}

// scanInlineMath matches $...$ with Pandoc's rules: the opening dollar
// must be followed by a non-space, the closing one preceded by a
// non-space, and the span must not cross a blank line.
func scanInlineMath(s string) (formula string, width int, ok bool) {
	if len(s) < 3 || s[1] == ' ' || s[1] == '\t' || s[1] == '\n' {
		return "", 0, false
	}
	for j := 2; j < len(s); j++ {
		switch s[j] {
		case '$':
			if prev := s[j-1]; prev != ' ' && prev != '\t' && prev != '\\' {
				return s[1:j], j + 1, true
			}
		case '\n':
			if j+1 < len(s) && s[j+1] == '\n' {
				return "", 0, false
			}
		}
	}
	return "", 0, false
}

// isFenceLine reports whether the text starts with a code fence marker.
func isFenceLine(s string) bool {
	return strings.HasPrefix(s, "```") || strings.HasPrefix(s, "~~~")
}

// reinsertMathSpans swaps the placeholders in the converted HTML back for
// eq tags. Display math lifts the formula out of the paragraph goldmark
// wrapped it in; the entity escaping is undone later by EqnParser.
func reinsertMathSpans(htmlOut string, spans []mathSpan) string {
	for _, span := range spans {
		escaped := html.EscapeString(span.formula)
		var tag string
		if span.display {
			tag = `<eq env="displaymath">` + escaped + `</eq>`
		} else {
			tag = `<eq>` + escaped + `</eq>`
		}
		htmlOut = strings.Replace(htmlOut, span.placeholder, tag, 1)
	}
	return htmlOut
}
