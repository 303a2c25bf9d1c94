package main

import (
	"os"

	flag "github.com/spf13/pflag"
)

// commonFlags holds flags shared across commands.
type commonFlags struct {
	config  string
	quiet   bool
	verbose bool
}

// imageFlags holds image generation flags.
type imageFlags struct {
	directory   string
	png         bool
	dpi         float64
	fontSize    float64
	background  string
	foreground  string
	keepSources bool
}

// latexFlags holds LaTeX document assembly flags.
type latexFlags struct {
	preamble string
	mathsEnv string
	encoding string
}

// htmlFlags holds output markup flags.
type htmlFlags struct {
	url          string
	inlineClass  string
	displayClass string
	excludeLong  bool
}

// schedulerFlags holds conversion scheduling flags.
type schedulerFlags struct {
	workers      int
	timeout      string
	mathjax      bool
	discardStale bool
}

// cliFlags holds all flags of the gladtex command.
type cliFlags struct {
	common          commonFlags
	images          imageFlags
	latex           latexFlags
	html            htmlFlags
	scheduler       schedulerFlags
	output          string
	markdown        bool
	pandocFilter    bool
	machineReadable bool
	version         bool
}

// addCommonFlags adds common flags to a FlagSet.
func addCommonFlags(fs *flag.FlagSet, f *commonFlags) {
	fs.StringVar(&f.config, "config", "", "config file name or path")
	fs.BoolVarP(&f.quiet, "quiet", "q", false, "only show errors")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "show conversion progress")
}

// addImageFlags adds image generation flags to a FlagSet.
func addImageFlags(fs *flag.FlagSet, f *imageFlags) {
	fs.StringVarP(&f.directory, "img-directory", "d", "", "directory for generated images, relative to the output file")
	fs.BoolVar(&f.png, "png", false, "render PNG images instead of SVG")
	fs.Float64Var(&f.dpi, "dpi", 0, "PNG resolution (requires --png, excludes --fontsize)")
	fs.Float64VarP(&f.fontSize, "fontsize", "f", 0, "font size in pt, converted to an image resolution")
	fs.StringVarP(&f.background, "background-color", "b", "", "background color spec, e.g. transparent or \"rgb 1 1 1\"")
	fs.StringVarP(&f.foreground, "foreground-color", "c", "", "foreground color spec, e.g. \"rgb 0 0 0\"")
	fs.BoolVar(&f.keepSources, "keep-latex-source", false, "keep the intermediate .tex file next to each image")
}

// addLaTeXFlags adds LaTeX document flags to a FlagSet.
func addLaTeXFlags(fs *flag.FlagSet, f *latexFlags) {
	fs.StringVarP(&f.preamble, "preamble", "p", "", "additional LaTeX preamble, e.g. \\usepackage commands")
	fs.StringVarP(&f.mathsEnv, "latex-maths-env", "e", "", "maths environment for inline formulas, e.g. flalign*")
	fs.StringVarP(&f.encoding, "encoding", "E", "", "inputenc encoding for the generated LaTeX documents: utf8 or latin1")
}

// addHTMLFlags adds output markup flags to a FlagSet.
func addHTMLFlags(fs *flag.FlagSet, f *htmlFlags) {
	fs.StringVarP(&f.url, "url", "u", "", "URL prefix for image links")
	fs.StringVarP(&f.inlineClass, "inline-math-class", "i", "", "CSS class for inline math (default: inlinemath)")
	fs.StringVarP(&f.displayClass, "display-math-class", "l", "", "CSS class for display math (default: displaymath)")
	fs.BoolVar(&f.excludeLong, "exclude-long-formulas", false, "outsource overlong alt texts to "+excludedFileHelp)
}

// addSchedulerFlags adds conversion scheduling flags to a FlagSet.
func addSchedulerFlags(fs *flag.FlagSet, f *schedulerFlags) {
	fs.IntVarP(&f.workers, "workers", "w", 0, "parallel conversion workers (0 = auto)")
	fs.StringVarP(&f.timeout, "timeout", "t", "", "per-tool timeout (e.g. 30s, 2m)")
	fs.BoolVar(&f.mathjax, "mathjax", false, "render with MathJax in headless Chrome instead of latex")
	fs.BoolVarP(&f.discardStale, "discard-stale-cache", "n", false, "rebuild an unreadable or incompatible image cache")
}

// parseFlags parses all gladtex flags and returns the positional args.
func parseFlags(args []string) (*cliFlags, []string, error) {
	fs := flag.NewFlagSet("gladtex", flag.ContinueOnError)
	f := &cliFlags{}

	fs.StringVarP(&f.output, "output", "o", "", "output file (- for stdout; default: input name with .html)")
	fs.BoolVarP(&f.markdown, "markdown", "m", false, "treat the input as Markdown with $-delimited math")
	fs.BoolVarP(&f.pandocFilter, "pandoc-filter", "P", false, "read and write a Pandoc JSON AST")
	fs.BoolVar(&f.machineReadable, "machine-readable", false, "print LaTeX errors in a machine readable key: value format")
	fs.BoolVar(&f.version, "version", false, "print version and exit")

	addCommonFlags(fs, &f.common)
	addImageFlags(fs, &f.images)
	addLaTeXFlags(fs, &f.latex)
	addHTMLFlags(fs, &f.html)
	addSchedulerFlags(fs, &f.scheduler)

	fs.Usage = func() { printUsage(os.Stderr, fs) }

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}

	return f, fs.Args(), nil
}
