package gladtex

import "fmt"

// Image format constants.
const (
	FormatSVG = "svg"
	FormatPNG = "png"
)

// Position is a location in a source document. Line and Col count from 0;
// user-facing messages add 1.
type Position struct {
	Line int
	Col  int
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line+1, p.Col+1)
}

// Formula is one formula occurrence as found in a source document.
// Pos is nil when the input format has no notion of source positions
// (e.g. a Pandoc AST).
type Formula struct {
	Pos     *Position
	Display bool   // display (block-level) vs inline maths
	Text    string // formula exactly as written
}

// Dimensions describe a rendered formula image for embedding into a
// document. Depth is the offset below the text baseline and may be
// negative. All values are in pixels.
type Dimensions struct {
	Height float64 `json:"height"`
	Width  float64 `json:"width"`
	Depth  float64 `json:"depth"`
}

// Zero reports whether no dimension is set.
func (d Dimensions) Zero() bool {
	return d.Height == 0 && d.Width == 0 && d.Depth == 0
}

// CacheEntry is the persisted conversion result for one formula.
type CacheEntry struct {
	// Path to the image, relative to the cache's base directory.
	// Never absolute.
	Path string `json:"path"`
	// Dim is the positioning information returned by the renderer.
	Dim Dimensions `json:"pos"`
}

// Chunk is one piece of a parsed document: either literal text that is
// passed through verbatim, or an extracted formula.
type Chunk struct {
	Formula *Formula // nil for literal chunks
	Literal string   // empty for formula chunks
}

// IsFormula reports whether the chunk is a formula span.
func (c Chunk) IsFormula() bool {
	return c.Formula != nil
}

// Result bundles everything an output formatter needs to embed one
// converted formula.
type Result struct {
	Formula string
	Display bool
	Path    string
	Dim     Dimensions
}
