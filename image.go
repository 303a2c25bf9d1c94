package gladtex

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/alnah/go-gladtex/internal/process"
)

// Renderer turns one formula's document source into an image file plus
// layout metadata. Render writes the image to outputBase+"."+Ext() and
// returns its dimensions. Implementations must fail, not hang, on an
// unresponsive toolchain.
type Renderer interface {
	Render(ctx context.Context, doc string, outputBase string) (Dimensions, error)
	Ext() string
}

// Compile-time interface checks.
var (
	_ Renderer = (*Tex2img)(nil)
	_ Renderer = (*MathJaxRenderer)(nil)
)

// defaultToolTimeout bounds each external tool invocation.
const defaultToolTimeout = 20 * time.Second

// Output parsing for the dvi converters.
var (
	dvipngRe       = regexp.MustCompile(`(?m)^ depth=(-?\d+) height=(\d+) width=(\d+)`)
	dvisvgmDepthRe = regexp.MustCompile(`(?m)^\s*width=.*?pt, height=.*?pt, depth=(.*?)pt`)
	dvisvgmSizeRe  = regexp.MustCompile(`(?m)^\s*graphic size: (.*?)pt x (.*?)pt`)
	latexLineNoRe  = regexp.MustCompile(`\s*on input line \d+`)
)

// ptToPx converts TeX points to pixels, assuming 96 dpi.
const ptToPx = 1.3333333

// Tex2img renders a LaTeX document to an image by driving the latex and
// dvisvgm/dvipng subprocesses. On error the methods return an ErrRender
// wrapping the helpful part of the tool output.
type Tex2img struct {
	// Format is FormatSVG (default, properly scalable) or FormatPNG.
	Format string
	// DPI sets the resolution of PNG output; it has no effect on SVG.
	DPI float64
	// Background and Foreground are dvipng color specs, e.g.
	// "transparent" or "rgb 1 1 1". PNG only; SVG colors come from the
	// LaTeX document itself.
	Background string
	Foreground string
	// KeepSources leaves the intermediate .tex file next to the image.
	KeepSources bool
	// Timeout bounds each subprocess call; 0 means 20 seconds.
	Timeout time.Duration
}

// NewTex2img returns a renderer for the given output format with
// transparent background and black text at 100 dpi.
func NewTex2img(format string) *Tex2img {
	return &Tex2img{
		Format:     format,
		DPI:        100,
		Background: "transparent",
		Foreground: "rgb 0 0 0",
	}
}

// Ext returns the file extension of produced images, without dot.
func (t *Tex2img) Ext() string {
	if t.Format == FormatPNG {
		return FormatPNG
	}
	return FormatSVG
}

// Render writes doc to outputBase+".tex", compiles it to a dvi and
// converts the dvi to the configured image format. Intermediate files are
// removed, even when a step fails, unless KeepSources is set.
func (t *Tex2img) Render(ctx context.Context, doc string, outputBase string) (Dimensions, error) {
	dir := filepath.Dir(outputBase)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Dimensions{}, fmt.Errorf("creating image directory: %w", err)
		}
	}

	texFn := outputBase + ".tex"
	dviFn := outputBase + ".dvi"
	outFn := outputBase + "." + t.Ext()
	if err := os.WriteFile(texFn, []byte(doc), 0o644); err != nil {
		return Dimensions{}, fmt.Errorf("writing LaTeX source: %w", err)
	}
	defer func() {
		if t.KeepSources {
			removeAll(outputBase+".aux", outputBase+".log", dviFn)
		} else {
			removeAll(texFn, outputBase+".aux", outputBase+".log", dviFn)
		}
	}()

	if _, err := t.run(ctx, dir, "latex", "-halt-on-error", filepath.Base(texFn)); err != nil {
		if msg := parseLatexLog(err.Error()); msg != "" {
			err = fmt.Errorf("%w: %s", ErrRender, msg)
		}
		return Dimensions{}, err
	}

	dim, err := t.createImage(ctx, dviFn, outFn)
	if err != nil {
		removeAll(outFn)
		return Dimensions{}, err
	}
	return dim, nil
}

// createImage converts the dvi into the final image and parses the
// positioning information from the tool output.
func (t *Tex2img) createImage(ctx context.Context, dviFn, outFn string) (Dimensions, error) {
	if t.Format == FormatPNG {
		out, err := t.run(ctx, "", "dvipng", "-q*", "-D", strconv.FormatFloat(t.DPI, 'f', -1, 64),
			"-bg", t.Background, "-fg", t.Foreground,
			"--height*", "--depth*", "--width*",
			"-o", outFn, dviFn)
		if err != nil {
			return Dimensions{}, err
		}
		m := dvipngRe.FindStringSubmatch(out)
		if m == nil {
			return Dimensions{}, fmt.Errorf("%w: could not parse dvipng output: %q", ErrRender, out)
		}
		depth, _ := strconv.ParseFloat(m[1], 64)
		height, _ := strconv.ParseFloat(m[2], 64)
		width, _ := strconv.ParseFloat(m[3], 64)
		return Dimensions{Height: height, Width: width, Depth: depth}, nil
	}

	out, err := t.run(ctx, "", "dvisvgm", "--exact", "--no-fonts", "--bbox=preview", "-o", outFn, dviFn)
	if err != nil {
		return Dimensions{}, err
	}
	return parseDvisvgmOutput(out)
}

// parseDvisvgmOutput extracts depth and graphic size from dvisvgm's
// diagnostic output and converts them from pt to px.
func parseDvisvgmOutput(out string) (Dimensions, error) {
	var dim Dimensions
	depth := dvisvgmDepthRe.FindStringSubmatch(out)
	size := dvisvgmSizeRe.FindStringSubmatch(out)
	if depth == nil || size == nil {
		return Dimensions{}, fmt.Errorf("%w: could not parse dvisvgm output: %q", ErrRender, out)
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(depth[1]), 64)
	if err != nil {
		return Dimensions{}, fmt.Errorf("%w: could not parse dvisvgm output: %q", ErrRender, out)
	}
	w, err1 := strconv.ParseFloat(strings.TrimSpace(size[1]), 64)
	h, err2 := strconv.ParseFloat(strings.TrimSpace(size[2]), 64)
	if err1 != nil || err2 != nil {
		return Dimensions{}, fmt.Errorf("%w: could not parse dvisvgm output: %q", ErrRender, out)
	}
	dim.Depth = d * ptToPx
	dim.Width = w * ptToPx
	dim.Height = h * ptToPx
	return dim, nil
}

// run executes one external tool with a bounded runtime. The whole process
// group is killed on timeout so that latex's children do not linger.
func (t *Tex2img) run(ctx context.Context, dir, name string, args ...string) (string, error) {
	timeout := t.Timeout
	if timeout == 0 {
		timeout = defaultToolTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.SysProcAttr = texSysProcAttr()
	cmd.Cancel = func() error {
		process.KillProcessGroup(cmd.Process.Pid)
		return nil
	}

	out, err := cmd.CombinedOutput()
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: %s timed out after %s", ErrRender, name, timeout)
		}
		if errors.Is(err, exec.ErrNotFound) {
			return "", fmt.Errorf("%w: %s; install a TeX distribution of your choice, "+
				"e.g. MikTeX or TeX Live", ErrToolNotFound, name)
		}
		return "", fmt.Errorf("%w: error while executing %s %s\n%s", ErrRender,
			name, strings.Join(args, " "), out)
	}
	return string(out), nil
}

// parseLatexLog returns the relevant part of LaTeX's error output: the
// first line starting with "! ", with the input line number stripped.
func parseLatexLog(logdata string) string {
	for _, line := range strings.Split(logdata, "\n") {
		if strings.HasPrefix(line, "! ") {
			return latexLineNoRe.ReplaceAllString(line[2:], "")
		}
	}
	return ""
}

// removeAll removes files best-effort, ignoring missing ones.
func removeAll(files ...string) {
	for _, f := range files {
		_ = os.Remove(f)
	}
}

// FontSizeToDPI calculates the PNG resolution for a font size in pt.
// According to the dvipng manual: dpi = px * 72.27 / 10.
func FontSizeToDPI(sizePt float64) float64 {
	sizePx := sizePt * ptToPx
	return sizePx * 72.27 / 10
}
