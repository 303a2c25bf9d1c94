package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	gladtex "github.com/alnah/go-gladtex"
	"github.com/alnah/go-gladtex/internal/config"
)

// Sentinel errors for CLI operations.
var (
	ErrReadInput    = errors.New("failed to read input document")
	ErrWriteOutput  = errors.New("failed to write output document")
	ErrFlagConflict = errors.New("conflicting flags")
)

// run executes one conversion: read, parse, convert, write back.
func run(ctx context.Context, args []string, env *Environment) error {
	flags, positional, err := parseFlags(args[1:])
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFlagConflict, err)
	}

	if flags.version {
		fmt.Fprintf(env.Stdout, "gladtex %s\n", Version)
		return nil
	}

	cfg, err := loadAndMergeConfig(flags)
	if err != nil {
		return err
	}
	if flags.markdown && flags.pandocFilter {
		return fmt.Errorf("%w: --markdown and --pandoc-filter cannot be combined", ErrFlagConflict)
	}

	data, basePath, outputPath, err := getInputOutput(positional, flags, env)
	if err != nil {
		return err
	}

	conv, closeRenderer, err := newConverter(basePath, cfg)
	if err != nil {
		return err
	}
	defer closeRenderer()

	formatter := newFormatter(cfg)

	if flags.pandocFilter {
		return runPandocFilter(ctx, data, outputPath, conv, formatter, env)
	}

	parser := gladtex.NewEqnParser()
	if flags.markdown {
		html, err := gladtex.NewMarkdownConverter().ToHTML(ctx, string(data))
		if err != nil {
			return err
		}
		if err := parser.FeedString(html); err != nil {
			return err
		}
	} else if err := parser.Feed(data); err != nil {
		return err
	}

	formulas := parser.Formulas()
	if flags.common.verbose && !flags.common.quiet {
		fmt.Fprintf(env.Stderr, "%d formulas found\n", len(formulas))
	}

	if err := conv.ConvertAll(ctx, formulas); err != nil {
		return reportConversionError(err, flags, env)
	}

	var out bytes.Buffer
	if err := gladtex.WriteHTML(&out, parser.Chunks(), conv, formatter); err != nil {
		return err
	}
	if err := writeOutput(outputPath, out.Bytes(), env); err != nil {
		return err
	}
	return formatter.WriteExclusionFile(filepath.Join(basePath, gladtex.ExclusionFileName))
}

// runPandocFilter converts the formulas of a Pandoc JSON AST and writes
// the rewritten AST back.
func runPandocFilter(ctx context.Context, data []byte, outputPath string,
	conv *gladtex.CachedConverter, formatter *gladtex.HTMLImageFormatter, env *Environment) error {

	ast, err := gladtex.ParsePandocAST(data)
	if err != nil {
		return err
	}
	formulas, err := ast.Formulas()
	if err != nil {
		return err
	}
	if err := conv.ConvertAll(ctx, formulas); err != nil {
		return err
	}
	if err := ast.ReplaceFormulas(conv, formatter); err != nil {
		return err
	}
	var out bytes.Buffer
	if err := ast.Encode(&out); err != nil {
		return err
	}
	return writeOutput(outputPath, out.Bytes(), env)
}

// loadAndMergeConfig loads the optional config file and overlays the CLI
// flags; a flag given on the command line wins over the file.
func loadAndMergeConfig(flags *cliFlags) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if flags.common.config != "" {
		loaded, err := config.LoadConfig(flags.common.config)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		cfg = loaded
	}
	mergeFlags(flags, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// mergeFlags applies CLI flags over the config.
func mergeFlags(f *cliFlags, cfg *config.Config) {
	if f.images.directory != "" {
		cfg.Images.Directory = f.images.directory
	}
	if f.images.png {
		cfg.Images.PNG = true
	}
	if f.images.dpi != 0 {
		cfg.Images.DPI = f.images.dpi
	}
	if f.images.fontSize != 0 {
		cfg.Images.FontSize = f.images.fontSize
	}
	if f.images.background != "" {
		cfg.Images.Background = f.images.background
	}
	if f.images.foreground != "" {
		cfg.Images.Foreground = f.images.foreground
	}
	if f.images.keepSources {
		cfg.Images.KeepLatexSource = true
	}
	if f.latex.preamble != "" {
		cfg.LaTeX.Preamble = f.latex.preamble
	}
	if f.latex.mathsEnv != "" {
		cfg.LaTeX.MathsEnv = f.latex.mathsEnv
	}
	if f.latex.encoding != "" {
		cfg.LaTeX.Encoding = f.latex.encoding
	}
	if f.html.url != "" {
		cfg.HTML.URL = f.html.url
	}
	if f.html.inlineClass != "" {
		cfg.HTML.InlineMathClass = f.html.inlineClass
	}
	if f.html.displayClass != "" {
		cfg.HTML.DisplayMathClass = f.html.displayClass
	}
	if f.html.excludeLong {
		cfg.HTML.ExcludeLongFormulas = true
	}
	if f.scheduler.workers != 0 {
		cfg.Convert.Workers = f.scheduler.workers
	}
	if f.scheduler.timeout != "" {
		cfg.Convert.Timeout = f.scheduler.timeout
	}
	if f.scheduler.mathjax {
		cfg.Convert.MathJax = true
	}
	if f.scheduler.discardStale {
		cfg.Convert.DiscardStaleCache = true
	}
}

// getInputOutput reads the input document and resolves the output path.
// Input and output default to stdin/stdout ("-"); a file input without -o
// writes next to the input with the extension replaced by .html.
func getInputOutput(positional []string, flags *cliFlags, env *Environment) (data []byte, basePath, outputPath string, err error) {
	input := "-"
	if len(positional) > 0 {
		input = positional[0]
	}

	if input == "-" {
		data, err = io.ReadAll(env.Stdin)
		if err != nil {
			return nil, "", "", fmt.Errorf("%w: stdin: %v", ErrReadInput, err)
		}
	} else {
		data, err = os.ReadFile(input) // #nosec G304 -- input path is user-provided
		if err != nil {
			return nil, "", "", fmt.Errorf("%w: %s: %v", ErrReadInput, input, err)
		}
	}

	outputPath = "-"
	switch {
	case flags.output != "":
		outputPath = flags.output
		basePath = filepath.Dir(outputPath)
	case input != "-":
		outputPath = strings.TrimSuffix(input, filepath.Ext(input)) + ".html"
		basePath = filepath.Dir(input)
	}
	if basePath == "." {
		basePath = ""
	}
	return data, basePath, outputPath, nil
}

// newConverter assembles the cached converter from the merged config.
// The returned close function releases renderer resources (the browser,
// when MathJax is active).
func newConverter(basePath string, cfg *config.Config) (*gladtex.CachedConverter, func(), error) {
	closeRenderer := func() {}

	var renderer gladtex.Renderer
	var builder gladtex.DocumentBuilder
	if cfg.Convert.MathJax {
		mj := gladtex.NewMathJaxRenderer()
		mj.Timeout = cfg.ToolTimeout()
		renderer = mj
		builder = &gladtex.SnippetDocumentBuilder{}
		closeRenderer = func() { _ = mj.Close() }
	} else {
		format := gladtex.FormatSVG
		if cfg.Images.PNG {
			format = gladtex.FormatPNG
		}
		t := gladtex.NewTex2img(format)
		if cfg.Images.DPI > 0 {
			t.DPI = cfg.Images.DPI
		} else if cfg.Images.FontSize > 0 {
			t.DPI = gladtex.FontSizeToDPI(cfg.Images.FontSize)
		}
		if cfg.Images.Background != "" {
			t.Background = cfg.Images.Background
		}
		if cfg.Images.Foreground != "" {
			t.Foreground = cfg.Images.Foreground
		}
		t.KeepSources = cfg.Images.KeepLatexSource
		t.Timeout = cfg.ToolTimeout()
		renderer = t
		builder = &gladtex.LaTeXDocumentBuilder{
			FontSize: cfg.Images.FontSize,
			MathsEnv: cfg.LaTeX.MathsEnv,
			Preamble: cfg.LaTeX.Preamble,
			Encoding: cfg.LaTeX.Encoding,
		}
	}

	opts := []gladtex.ConverterOption{
		gladtex.WithRenderer(renderer),
		gladtex.WithDocumentBuilder(builder),
		gladtex.WithImageDir(cfg.Images.Directory),
		gladtex.WithWorkers(cfg.Convert.Workers),
	}
	if cfg.Convert.DiscardStaleCache {
		opts = append(opts, gladtex.WithDiscardStaleCache())
	}

	conv, err := gladtex.NewCachedConverter(basePath, opts...)
	if err != nil {
		closeRenderer()
		return nil, nil, err
	}
	return conv, closeRenderer, nil
}

// newFormatter assembles the image formatter from the merged config.
func newFormatter(cfg *config.Config) *gladtex.HTMLImageFormatter {
	opts := []gladtex.FormatterOption{
		gladtex.WithCSSClasses(cfg.HTML.InlineMathClass, cfg.HTML.DisplayMathClass),
	}
	if cfg.HTML.URL != "" {
		opts = append(opts, gladtex.WithURLPrefix(cfg.HTML.URL))
	}
	if cfg.HTML.ExcludeLongFormulas {
		opts = append(opts, gladtex.WithExcludeLongAlt(0))
	}
	return gladtex.NewHTMLImageFormatter(opts...)
}

// writeOutput writes the converted document to the output path or stdout.
func writeOutput(outputPath string, data []byte, env *Environment) error {
	if outputPath == "-" {
		if _, err := env.Stdout.Write(data); err != nil {
			return fmt.Errorf("%w: stdout: %v", ErrWriteOutput, err)
		}
		return nil
	}
	if err := os.WriteFile(outputPath, data, 0o644); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrWriteOutput, outputPath, err)
	}
	return nil
}

// reportConversionError prints the first LaTeX failure in a helpful form.
// With --machine-readable the details come out as key: value lines for
// editor integrations.
func reportConversionError(err error, flags *cliFlags, env *Environment) error {
	var convErr *gladtex.ConversionError
	if !errors.As(err, &convErr) {
		return err
	}
	if flags.machineReadable {
		if convErr.Pos != nil {
			fmt.Fprintf(env.Stderr, "Line: %d, %d\n", convErr.Pos.Line, convErr.Pos.Col)
		}
		fmt.Fprintf(env.Stderr, "Number: %d\nFormula: %s\nMessage: %s\n",
			convErr.Ordinal, convErr.Formula, convErr.Diagnostic)
	}
	return err
}
