// Package gladtex converts LaTeX formulas embedded in HTML documents to
// images with positioning information, keeping the formula text as alt
// text for screen reader users.
//
// # Quick Start
//
// Parse a document, convert the formulas, and write the result back:
//
//	p := gladtex.NewEqnParser()
//	if err := p.Feed(input); err != nil {
//	    log.Fatal(err)
//	}
//
//	conv, err := gladtex.NewCachedConverter("out")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := conv.ConvertAll(ctx, p.Formulas()); err != nil {
//	    log.Fatal(err)
//	}
//
//	f := gladtex.NewHTMLImageFormatter()
//	if err := gladtex.WriteHTML(os.Stdout, p.Chunks(), conv, f); err != nil {
//	    log.Fatal(err)
//	}
//
// # Conversion Pipeline
//
// The conversion process follows these stages:
//
//  1. Formula extraction from <eq>...</eq> spans (EqnParser), from a
//     Pandoc JSON AST (PandocAST), or from Markdown dollar math
//     (MarkdownConverter)
//  2. Cache lookup, so only formulas never seen before are rendered
//     (CachedConverter with ImageCache)
//  3. Concurrent rendering via latex and dvisvgm/dvipng (Tex2img) or via
//     MathJax in headless Chrome (MathJaxRenderer)
//  4. HTML formatting with baseline-corrected img tags
//     (HTMLImageFormatter)
//
// # Configuration
//
// Use functional options to customize the converter:
//
//	conv, err := gladtex.NewCachedConverter("out",
//	    gladtex.WithImageDir("img"),
//	    gladtex.WithRenderer(gladtex.NewTex2img(gladtex.FormatPNG)),
//	    gladtex.WithWorkers(4),
//	    gladtex.WithDiscardStaleCache(),
//	)
//
// # Caching
//
// Conversion results live in a gladtex.cache file next to the images.
// Re-running a conversion only renders formulas that changed; recurring
// formulas within a document are rendered once. Delete the cache file and
// the eqn* images (or pass WithDiscardStaleCache) to start over.
//
// # Renderer Requirements
//
// The default Tex2img renderer needs a TeX distribution with latex and
// dvisvgm (or dvipng for PNG) on the PATH. The MathJaxRenderer instead
// needs Chrome/Chromium; the go-rod library automatically downloads a
// managed Chromium instance on first run. For containers and CI
// environments, set ROD_NO_SANDBOX=1 and consider ROD_BROWSER_BIN.
package gladtex
