package gladtex

// Notes:
// - Rendering needs a browser, which integration environments provide;
//   unit tests cover the generated page and the renderer defaults

import (
	"strings"
	"testing"
)

func TestMathJaxPage(t *testing.T) {
	t.Parallel()

	m := NewMathJaxRenderer()
	page := m.mathJaxPage(`\(a < b\)`)

	if !strings.Contains(page, mathJaxCDN) {
		t.Errorf("page missing the default script URL:\n%s", page)
	}
	if !strings.Contains(page, `\(a &lt; b\)`) {
		t.Errorf("snippet must be entity-escaped:\n%s", page)
	}
	if !strings.Contains(page, `<meta charset="utf-8"/>`) {
		t.Errorf("page missing charset declaration:\n%s", page)
	}
}

func TestMathJaxPageCustomScript(t *testing.T) {
	t.Parallel()

	m := &MathJaxRenderer{ScriptURL: "file:///opt/mathjax/tex-svg.js"}
	page := m.mathJaxPage(`\(x\)`)
	if !strings.Contains(page, `src="file:///opt/mathjax/tex-svg.js"`) {
		t.Errorf("page missing the overridden script URL:\n%s", page)
	}
	if strings.Contains(page, mathJaxCDN) {
		t.Errorf("page must not fall back to the CDN:\n%s", page)
	}
}

func TestMathJaxRendererExt(t *testing.T) {
	t.Parallel()

	if got := NewMathJaxRenderer().Ext(); got != "svg" {
		t.Errorf("Ext() = %q, want svg", got)
	}
}

func TestMathJaxRendererCloseWithoutBrowser(t *testing.T) {
	t.Parallel()

	if err := NewMathJaxRenderer().Close(); err != nil {
		t.Errorf("Close() error = %v, want nil when no browser was launched", err)
	}
}
