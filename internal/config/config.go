// Package config loads and validates the YAML configuration of the
// gladtex CLI.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alnah/go-gladtex/internal/fileutil"
	"github.com/alnah/go-gladtex/internal/yamlutil"
)

// Sentinel errors for config operations.
var (
	ErrConfigNotFound  = errors.New("config file not found")
	ErrEmptyConfigName = errors.New("config name cannot be empty")
	ErrConfigParse     = errors.New("failed to parse config")
	ErrInvalidOption   = errors.New("invalid config option")
)

// Config holds all configuration for formula conversion.
type Config struct {
	Images  ImagesConfig  `yaml:"images"`
	LaTeX   LaTeXConfig   `yaml:"latex"`
	HTML    HTMLConfig    `yaml:"html"`
	Convert ConvertConfig `yaml:"convert"`
}

// ImagesConfig defines how formula images are produced and stored.
type ImagesConfig struct {
	Directory       string  `yaml:"directory"`       // subdirectory for eqn* files (empty = next to output)
	PNG             bool    `yaml:"png"`             // render PNG instead of SVG
	DPI             float64 `yaml:"dpi"`             // PNG resolution, excludes fontSize
	FontSize        float64 `yaml:"fontSize"`        // font size in pt, converted to a DPI value
	Background      string  `yaml:"background"`      // dvipng color spec
	Foreground      string  `yaml:"foreground"`      // dvipng color spec
	KeepLatexSource bool    `yaml:"keepLatexSource"` // keep intermediate .tex files
}

// LaTeXConfig defines how the per-formula LaTeX document is assembled.
type LaTeXConfig struct {
	Preamble string `yaml:"preamble"` // extra preamble lines, e.g. \usepackage commands
	MathsEnv string `yaml:"mathsEnv"` // environment for inline math, e.g. flalign*
	Encoding string `yaml:"encoding"` // inputenc encoding for generated LaTeX documents
}

// HTMLConfig defines the generated image markup.
type HTMLConfig struct {
	URL                 string `yaml:"url"`                 // prefix for image links
	InlineMathClass     string `yaml:"inlineMathClass"`     // CSS class, default inlinemath
	DisplayMathClass    string `yaml:"displayMathClass"`    // CSS class, default displaymath
	ExcludeLongFormulas bool   `yaml:"excludeLongFormulas"` // outsource overlong alt texts
}

// ConvertConfig defines scheduler behavior.
type ConvertConfig struct {
	Workers           int    `yaml:"workers"`           // 0 = 2.5 x CPUs
	Timeout           string `yaml:"timeout"`           // per-tool timeout, e.g. 30s
	MathJax           bool   `yaml:"mathjax"`           // use the browser renderer instead of latex
	DiscardStaleCache bool   `yaml:"discardStaleCache"` // rebuild an unreadable cache
}

// Validate checks option combinations the converter cannot honor.
// Called automatically by LoadConfig, but available for consumers who
// construct Config manually.
func (c *Config) Validate() error {
	if c.Images.DPI < 0 {
		return fmt.Errorf("%w: images.dpi must not be negative, got %.2f", ErrInvalidOption, c.Images.DPI)
	}
	if c.Images.FontSize < 0 {
		return fmt.Errorf("%w: images.fontSize must not be negative, got %.2f", ErrInvalidOption, c.Images.FontSize)
	}
	if c.Images.DPI > 0 && c.Images.FontSize > 0 {
		return fmt.Errorf("%w: images.dpi and images.fontSize cannot be combined", ErrInvalidOption)
	}
	if c.Images.DPI > 0 && !c.Images.PNG {
		return fmt.Errorf("%w: images.dpi has no effect on SVG output, set images.png or use images.fontSize", ErrInvalidOption)
	}
	if c.Images.PNG && c.Convert.MathJax {
		return fmt.Errorf("%w: the MathJax renderer only produces SVG", ErrInvalidOption)
	}
	if c.Convert.Workers < 0 {
		return fmt.Errorf("%w: convert.workers must not be negative, got %d", ErrInvalidOption, c.Convert.Workers)
	}
	if c.Convert.Timeout != "" {
		if _, err := time.ParseDuration(c.Convert.Timeout); err != nil {
			return fmt.Errorf("%w: convert.timeout: %v", ErrInvalidOption, err)
		}
	}
	return nil
}

// ToolTimeout returns the parsed per-tool timeout, 0 when unset. Validate
// must have accepted the config first.
func (c *Config) ToolTimeout() time.Duration {
	if c.Convert.Timeout == "" {
		return 0
	}
	d, _ := time.ParseDuration(c.Convert.Timeout)
	return d
}

// DefaultConfig returns a neutral configuration: SVG images next to the
// output document, automatic worker count, no exclusion file.
func DefaultConfig() *Config {
	return &Config{}
}

// LoadConfig loads configuration from a file path or config name.
// If nameOrPath contains a path separator, it's treated as a file path.
// Otherwise, it's treated as a config name and searched in standard
// locations. Returns an error if the file is not found (no silent
// fallback).
func LoadConfig(nameOrPath string) (*Config, error) {
	if nameOrPath == "" {
		return nil, ErrEmptyConfigName
	}

	configPath := nameOrPath
	if !fileutil.IsFilePath(nameOrPath) {
		var err error
		configPath, err = resolveConfigPath(nameOrPath)
		if err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(configPath) // #nosec G304 -- config path is user-provided
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, configPath)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yamlutil.UnmarshalStrict(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigParse, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// resolveConfigPath searches for a config file by name in standard
// locations. Tries extensions in order: .yaml, .yml.
// Tries locations in order: current directory, then the user config
// directory under go-gladtex/.
func resolveConfigPath(name string) (string, error) {
	extensions := []string{".yaml", ".yml"}
	triedPaths := make([]string, 0, len(extensions)*2)

	for _, ext := range extensions {
		localPath := name + ext
		if fileutil.FileExists(localPath) {
			return localPath, nil
		}
		triedPaths = append(triedPaths, localPath)
	}

	userConfigDir, err := os.UserConfigDir()
	if err == nil {
		for _, ext := range extensions {
			userPath := filepath.Join(userConfigDir, "go-gladtex", name+ext)
			if fileutil.FileExists(userPath) {
				return userPath, nil
			}
			triedPaths = append(triedPaths, userPath)
		}
	}

	return "", fmt.Errorf("%w: tried %s", ErrConfigNotFound, strings.Join(triedPaths, ", "))
}
