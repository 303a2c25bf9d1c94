package gladtex

import (
	"context"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/alnah/go-gladtex/internal/fileutil"
)

// mathJaxCDN is the default location of the MathJax SVG bundle.
const mathJaxCDN = "https://cdn.jsdelivr.net/npm/mathjax@3/es5/tex-svg.js"

// mathJaxTimeout bounds one page render, including the script download.
const mathJaxTimeout = 30 * time.Second

// MathJaxRenderer renders formulas to SVG with MathJax in headless Chrome
// via go-rod. It needs no TeX installation; rod downloads Chromium on
// first run if none is found. Pair it with a SnippetDocumentBuilder, the
// page embeds the delimited snippet as-is.
//
// The renderer is safe for concurrent use; the browser is shared and each
// render gets its own page.
type MathJaxRenderer struct {
	// ScriptURL overrides the MathJax bundle location, e.g. to render
	// offline from a local copy. Empty means the jsdelivr CDN.
	ScriptURL string
	// Timeout bounds a single render; 0 means 30 seconds.
	Timeout time.Duration

	mu      sync.Mutex
	browser *rod.Browser
}

// NewMathJaxRenderer returns a renderer using the MathJax CDN bundle.
func NewMathJaxRenderer() *MathJaxRenderer {
	return &MathJaxRenderer{}
}

// Ext returns "svg"; MathJax output is always vector.
func (m *MathJaxRenderer) Ext() string {
	return FormatSVG
}

// ensureBrowser lazily launches and connects to the browser.
func (m *MathJaxRenderer) ensureBrowser() (*rod.Browser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.browser != nil {
		return m.browser, nil
	}

	l := launcher.New()

	// Use pre-installed browser if specified (Docker/containerized environments)
	if bin := os.Getenv("ROD_BROWSER_BIN"); bin != "" {
		l = l.Bin(bin)
	}

	// NoSandbox required for CI and containerized environments
	if os.Getenv("CI") == "true" || os.Getenv("ROD_BROWSER_BIN") != "" {
		l = l.NoSandbox(true)
	}
	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBrowserConnect, err)
	}

	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBrowserConnect, err)
	}
	m.browser = browser
	return browser, nil
}

// Close releases browser resources.
func (m *MathJaxRenderer) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.browser != nil {
		err := m.browser.Close()
		m.browser = nil
		return err
	}
	return nil
}

// mathJaxPage wraps the snippet in a minimal page loading the typesetting
// script. The snippet is escaped; MathJax reads the text content.
func (m *MathJaxRenderer) mathJaxPage(doc string) string {
	url := m.ScriptURL
	if url == "" {
		url = mathJaxCDN
	}
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8"/>
<script id="MathJax-script" async src="%s"></script>
</head>
<body>%s</body>
</html>`, url, html.EscapeString(doc))
}

// extractJS waits for MathJax to finish typesetting and reports the SVG
// together with its pixel geometry. The baseline depth comes from the
// vertical-align style MathJax emits, in ex units, converted with the
// page's font metrics.
const extractJS = `async () => {
	await MathJax.startup.promise;
	const err = document.querySelector("mjx-container [data-mjx-error]");
	if (err) {
		return {error: err.getAttribute("data-mjx-error")};
	}
	const svg = document.querySelector("mjx-container svg");
	if (!svg) {
		return {error: "no SVG produced"};
	}
	const rect = svg.getBoundingClientRect();
	const m = /vertical-align:\s*(-?[\d.]+)ex/.exec(svg.getAttribute("style") || "");
	const exPx = parseFloat(getComputedStyle(document.body).fontSize) / 2;
	return {
		svg: svg.outerHTML,
		width: rect.width,
		height: rect.height,
		depth: m ? -parseFloat(m[1]) * exPx : 0,
	};
}`

// Render typesets doc in a fresh browser page and writes the resulting
// SVG to outputBase+".svg". A LaTeX error reported by MathJax surfaces as
// an ErrRender with the diagnostic.
func (m *MathJaxRenderer) Render(ctx context.Context, doc string, outputBase string) (Dimensions, error) {
	if err := ctx.Err(); err != nil {
		return Dimensions{}, err
	}

	browser, err := m.ensureBrowser()
	if err != nil {
		return Dimensions{}, err
	}

	tmpPath, cleanup, err := fileutil.WriteTempFile(m.mathJaxPage(doc), "html")
	if err != nil {
		return Dimensions{}, err
	}
	defer cleanup()

	page, err := browser.Page(proto.TargetCreateTarget{URL: "file://" + tmpPath})
	if err != nil {
		return Dimensions{}, fmt.Errorf("%w: %v", ErrPageCreate, err)
	}
	defer page.Close()

	timeout := m.Timeout
	if timeout == 0 {
		timeout = mathJaxTimeout
	}
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
		if timeout <= 0 {
			return Dimensions{}, context.DeadlineExceeded
		}
	}
	page = page.Timeout(timeout)

	if err := page.WaitLoad(); err != nil {
		return Dimensions{}, fmt.Errorf("%w: %v", ErrPageLoad, err)
	}

	obj, err := page.Eval(extractJS)
	if err != nil {
		return Dimensions{}, fmt.Errorf("%w: typesetting did not finish: %v", ErrRender, err)
	}
	if msg := obj.Value.Get("error").Str(); msg != "" {
		return Dimensions{}, fmt.Errorf("%w: %s", ErrRender, msg)
	}

	svg := obj.Value.Get("svg").Str()
	if svg == "" {
		return Dimensions{}, fmt.Errorf("%w: empty SVG", ErrRender)
	}

	outFn := outputBase + "." + m.Ext()
	if dir := filepath.Dir(outFn); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Dimensions{}, fmt.Errorf("creating image directory: %w", err)
		}
	}
	if err := os.WriteFile(outFn, []byte(svg), 0o644); err != nil {
		return Dimensions{}, fmt.Errorf("writing SVG: %w", err)
	}

	return Dimensions{
		Height: obj.Value.Get("height").Num(),
		Width:  obj.Value.Get("width").Num(),
		Depth:  obj.Value.Get("depth").Num(),
	}, nil
}
