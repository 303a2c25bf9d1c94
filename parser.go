package gladtex

import (
	"fmt"
	"html"
	"regexp"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
)

// headerRegion is how far into a document the parser looks for a declared
// character encoding.
const headerRegion = 2048

var (
	// eqMarkerRe finds the next formula-open marker. The character after
	// "eq" rules out tags that merely start with those letters.
	eqMarkerRe = regexp.MustCompile(`(?i)<\s*eq[\s/>]`)

	// eqOpenRe matches a complete opening tag at the start of the input.
	eqOpenRe = regexp.MustCompile(`(?is)^<\s*eq(\s[^<>]*?)?>`)

	// eqCloseRe matches a closing tag, tolerating stray whitespace.
	eqCloseRe = regexp.MustCompile(`(?is)<\s*/\s*eq\s*>`)

	// envAttrRe extracts the env attribute from an opening tag.
	envAttrRe = regexp.MustCompile(`(?is)env\s*=\s*(?:"([^"]*)"|'([^']*)')`)

	// charsetRe extracts a declared encoding from the document header,
	// covering both <meta charset=...> and content-type declarations.
	charsetRe = regexp.MustCompile(`(?i)charset\s*=\s*["']?([a-zA-Z0-9._-]+)`)
)

// EqnParser extracts <eq>...</eq> formula spans from an HTML-ish document.
// It deliberately parses only enough structure to find formulas and
// comments; everything else passes through verbatim as literal chunks, so
// that joining the chunks (with formulas re-serialized) reconstructs the
// document. Comments may contain <eq> markers without being parsed.
//
// The env attribute of the opening tag selects the maths style:
// env="displaymath" (case-insensitive) yields display style, anything else
// inline style.
type EqnParser struct {
	chunks   []Chunk
	encoding string
}

// NewEqnParser returns an empty parser. Call Feed or FeedString once, then
// read the results with Chunks or Formulas.
func NewEqnParser() *EqnParser {
	return &EqnParser{}
}

// Feed parses a raw byte document. The document header must declare its
// character encoding (e.g. <meta charset="utf-8"/>); the bytes are decoded
// with the declared encoding before parsing. A missing or unknown
// declaration is a ParseError.
func (p *EqnParser) Feed(doc []byte) error {
	header := doc
	if len(header) > headerRegion {
		header = header[:headerRegion]
	}
	m := charsetRe.FindSubmatch(header)
	if m == nil {
		return &ParseError{Msg: "no character encoding declared in document header"}
	}
	name := strings.ToLower(string(m[1]))
	enc, err := htmlindex.Get(name)
	if err != nil {
		return &ParseError{Msg: fmt.Sprintf("unsupported character encoding %q", name)}
	}
	decoded, err := enc.NewDecoder().Bytes(doc)
	if err != nil {
		return &ParseError{Msg: fmt.Sprintf("cannot decode document as %s: %v", name, err)}
	}
	p.encoding = name
	return p.FeedString(string(decoded))
}

// FeedString parses a text document.
func (p *EqnParser) FeedString(doc string) error {
	var literal strings.Builder
	flush := func() {
		if literal.Len() > 0 {
			p.chunks = append(p.chunks, Chunk{Literal: literal.String()})
			literal.Reset()
		}
	}

	line, col := 0, 0
	rest := doc
	for rest != "" {
		ci := strings.Index(rest, "<!--")
		oi := -1
		if loc := eqMarkerRe.FindStringIndex(rest); loc != nil {
			oi = loc[0]
		}

		switch {
		case ci < 0 && oi < 0:
			// nothing left to extract
			literal.WriteString(rest)
			rest = ""

		case oi < 0 || (ci >= 0 && ci < oi):
			// comment comes first: copy it verbatim, markers included
			cl, cc := advancePos(line, col, rest[:ci])
			end := strings.Index(rest[ci:], "-->")
			if end < 0 {
				return &ParseError{Msg: "unterminated comment", Line: cl, Col: cc}
			}
			consumed := rest[:ci+end+len("-->")]
			literal.WriteString(consumed)
			line, col = advancePos(line, col, consumed)
			rest = rest[len(consumed):]

		default:
			// formula span
			literal.WriteString(rest[:oi])
			line, col = advancePos(line, col, rest[:oi])
			rest = rest[oi:]
			openLine, openCol := line, col

			open := eqOpenRe.FindStringSubmatch(rest)
			if open == nil {
				return &ParseError{Msg: "malformed <eq> tag", Line: openLine, Col: openCol}
			}
			body := rest[len(open[0]):]
			closeLoc := eqCloseRe.FindStringIndex(body)
			nested := eqMarkerRe.FindStringIndex(body)
			if closeLoc == nil {
				return &ParseError{Msg: "unclosed <eq> tag", Line: openLine, Col: openCol}
			}
			if nested != nil && nested[0] < closeLoc[0] {
				nl, nc := advancePos(line, col, rest[:len(open[0])+nested[0]])
				return &ParseError{Msg: "invalid nesting of <eq> tags", Line: nl, Col: nc}
			}

			flush()
			p.chunks = append(p.chunks, Chunk{Formula: &Formula{
				Pos:     &Position{Line: openLine, Col: openCol},
				Display: isDisplayEnv(open[1]),
				Text:    html.UnescapeString(body[:closeLoc[0]]),
			}})
			consumed := rest[:len(open[0])+closeLoc[1]]
			line, col = advancePos(line, col, consumed)
			rest = rest[len(consumed):]
		}
	}
	flush()
	return nil
}

// Chunks returns the parsed document as an ordered sequence of literal and
// formula chunks.
func (p *EqnParser) Chunks() []Chunk {
	return p.chunks
}

// Formulas returns just the formula occurrences, in document order.
func (p *EqnParser) Formulas() []Formula {
	var formulas []Formula
	for _, c := range p.chunks {
		if c.IsFormula() {
			formulas = append(formulas, *c.Formula)
		}
	}
	return formulas
}

// Encoding returns the encoding declared by the document, or "" when the
// parser was fed an already-decoded string.
func (p *EqnParser) Encoding() string {
	return p.encoding
}

// isDisplayEnv reports whether the attribute list of an opening tag selects
// display-style maths.
func isDisplayEnv(attrs string) bool {
	m := envAttrRe.FindStringSubmatch(attrs)
	if m == nil {
		return false
	}
	val := m[1]
	if val == "" {
		val = m[2]
	}
	return strings.EqualFold(val, "displaymath")
}

// advancePos moves a 0-based line/column cursor across text. Columns are
// byte offsets into the line.
func advancePos(line, col int, text string) (int, int) {
	if i := strings.LastIndexByte(text, '\n'); i >= 0 {
		return line + strings.Count(text, "\n"), len(text) - i - 1
	}
	return line, col + len(text)
}
