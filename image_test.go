package gladtex

// Notes:
// - The toolchain itself is exercised by integration environments with a
//   TeX installation; unit tests cover the output parsing and the
//   dpi/extension helpers

import (
	"errors"
	"math"
	"strings"
	"testing"
)

const dvisvgmSample = `pre-processing DVI file (format version 2)
processing page 1
  width=12.9049pt, height=7.45984pt, depth=2.30414pt
  graphic size: 12.9049pt x 9.76398pt
  output written to eqn000.svg
1 of 1 page converted in 0.1 seconds
`

func TestParseDvisvgmOutput(t *testing.T) {
	t.Parallel()

	dim, err := parseDvisvgmOutput(dvisvgmSample)
	if err != nil {
		t.Fatalf("parseDvisvgmOutput() error = %v", err)
	}

	close := func(got, wantPt float64) bool {
		return math.Abs(got-wantPt*ptToPx) < 1e-6
	}
	if !close(dim.Depth, 2.30414) {
		t.Errorf("Depth = %v, want %v pt in px", dim.Depth, 2.30414)
	}
	if !close(dim.Width, 12.9049) {
		t.Errorf("Width = %v, want %v pt in px", dim.Width, 12.9049)
	}
	if !close(dim.Height, 9.76398) {
		t.Errorf("Height = %v, want %v pt in px", dim.Height, 9.76398)
	}
}

func TestParseDvisvgmOutputErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		out  string
	}{
		{name: "empty output", out: ""},
		{name: "depth line missing", out: "  graphic size: 1pt x 2pt\n"},
		{name: "size line missing", out: "  width=1pt, height=2pt, depth=3pt\n"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := parseDvisvgmOutput(tt.out)
			if !errors.Is(err, ErrRender) {
				t.Errorf("parseDvisvgmOutput() error = %v, want ErrRender", err)
			}
		})
	}
}

func TestDvipngOutputPattern(t *testing.T) {
	t.Parallel()

	out := "This is dvipng\n depth=2 height=10 width=56 \n"
	m := dvipngRe.FindStringSubmatch(out)
	if m == nil {
		t.Fatal("dvipng output not recognized")
	}
	if m[1] != "2" || m[2] != "10" || m[3] != "56" {
		t.Errorf("captured %v, want depth=2 height=10 width=56", m[1:])
	}

	neg := " depth=-1 height=7 width=12"
	if dvipngRe.FindStringSubmatch(neg) == nil {
		t.Error("negative depth not recognized")
	}
}

func TestParseLatexLog(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		logdata  string
		expected string
	}{
		{
			name:     "undefined control sequence",
			logdata:  "This is pdfTeX\n! Undefined control sequence.\nl.12 \\foo",
			expected: "Undefined control sequence.",
		},
		{
			name:     "input line number stripped",
			logdata:  "! Package inputenc Error: invalid character on input line 7.",
			expected: "Package inputenc Error: invalid character.",
		},
		{
			name:     "no error line",
			logdata:  "everything went fine",
			expected: "",
		},
		{
			name:     "empty log",
			logdata:  "",
			expected: "",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := parseLatexLog(tt.logdata)
			if got != tt.expected {
				t.Errorf("parseLatexLog() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestTex2imgExt(t *testing.T) {
	t.Parallel()

	if got := NewTex2img(FormatSVG).Ext(); got != "svg" {
		t.Errorf("Ext() = %q, want svg", got)
	}
	if got := NewTex2img(FormatPNG).Ext(); got != "png" {
		t.Errorf("Ext() = %q, want png", got)
	}
	if got := (&Tex2img{}).Ext(); got != "svg" {
		t.Errorf("zero value Ext() = %q, want svg", got)
	}
}

func TestFontSizeToDPI(t *testing.T) {
	t.Parallel()

	// dpi = px * 72.27 / 10 per the dvipng manual
	got := FontSizeToDPI(10)
	want := 10 * ptToPx * 72.27 / 10
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("FontSizeToDPI(10) = %v, want %v", got, want)
	}
	if FontSizeToDPI(12) <= FontSizeToDPI(10) {
		t.Error("larger font sizes must map to higher resolutions")
	}
}

func TestNewTex2imgDefaults(t *testing.T) {
	t.Parallel()

	r := NewTex2img(FormatSVG)
	if r.DPI != 100 {
		t.Errorf("DPI = %v, want 100", r.DPI)
	}
	if r.Background != "transparent" {
		t.Errorf("Background = %q, want transparent", r.Background)
	}
	if !strings.HasPrefix(r.Foreground, "rgb") {
		t.Errorf("Foreground = %q, want an rgb spec", r.Foreground)
	}
}
