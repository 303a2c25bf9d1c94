package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name:    "empty config valid",
			cfg:     Config{},
			wantErr: false,
		},
		{
			name: "png with dpi valid",
			cfg: Config{
				Images: ImagesConfig{PNG: true, DPI: 150},
			},
			wantErr: false,
		},
		{
			name: "font size valid",
			cfg: Config{
				Images: ImagesConfig{FontSize: 14},
			},
			wantErr: false,
		},
		{
			name: "negative dpi",
			cfg: Config{
				Images: ImagesConfig{PNG: true, DPI: -1},
			},
			wantErr: true,
		},
		{
			name: "negative font size",
			cfg: Config{
				Images: ImagesConfig{FontSize: -10},
			},
			wantErr: true,
		},
		{
			name: "dpi and font size combined",
			cfg: Config{
				Images: ImagesConfig{PNG: true, DPI: 150, FontSize: 12},
			},
			wantErr: true,
		},
		{
			name: "dpi without png",
			cfg: Config{
				Images: ImagesConfig{DPI: 150},
			},
			wantErr: true,
		},
		{
			name: "png with mathjax",
			cfg: Config{
				Images:  ImagesConfig{PNG: true},
				Convert: ConvertConfig{MathJax: true},
			},
			wantErr: true,
		},
		{
			name: "negative workers",
			cfg: Config{
				Convert: ConvertConfig{Workers: -1},
			},
			wantErr: true,
		},
		{
			name: "valid timeout",
			cfg: Config{
				Convert: ConvertConfig{Timeout: "45s"},
			},
			wantErr: false,
		},
		{
			name: "unparseable timeout",
			cfg: Config{
				Convert: ConvertConfig{Timeout: "soonish"},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidOption) {
					t.Errorf("Validate() error = %v, want ErrInvalidOption", err)
				}
			} else if err != nil {
				t.Errorf("Validate() error = %v, want nil", err)
			}
		})
	}
}

func TestToolTimeout(t *testing.T) {
	t.Parallel()

	cfg := Config{Convert: ConvertConfig{Timeout: "45s"}}
	if got := cfg.ToolTimeout(); got != 45*time.Second {
		t.Errorf("ToolTimeout() = %v, want 45s", got)
	}
	empty := Config{}
	if got := empty.ToolTimeout(); got != 0 {
		t.Errorf("ToolTimeout() = %v, want 0 for unset timeout", got)
	}
}

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	t.Run("empty name", func(t *testing.T) {
		t.Parallel()
		if _, err := LoadConfig(""); !errors.Is(err, ErrEmptyConfigName) {
			t.Errorf("LoadConfig() error = %v, want ErrEmptyConfigName", err)
		}
	})

	t.Run("missing file path", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "does-not-exist.yaml")
		if _, err := LoadConfig(path); !errors.Is(err, ErrConfigNotFound) {
			t.Errorf("LoadConfig() error = %v, want ErrConfigNotFound", err)
		}
	})

	t.Run("valid file", func(t *testing.T) {
		t.Parallel()
		content := `images:
  directory: img
  png: true
  dpi: 150
latex:
  preamble: \usepackage{mathtools}
html:
  url: https://static.example.com
convert:
  workers: 4
  timeout: 30s
`
		path := filepath.Join(t.TempDir(), "gladtex.yaml")
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		cfg, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("LoadConfig() error = %v", err)
		}
		if cfg.Images.Directory != "img" || !cfg.Images.PNG || cfg.Images.DPI != 150 {
			t.Errorf("Images = %+v, want directory img, png, 150 dpi", cfg.Images)
		}
		if cfg.LaTeX.Preamble != `\usepackage{mathtools}` {
			t.Errorf("Preamble = %q", cfg.LaTeX.Preamble)
		}
		if cfg.HTML.URL != "https://static.example.com" {
			t.Errorf("URL = %q", cfg.HTML.URL)
		}
		if cfg.Convert.Workers != 4 || cfg.Convert.Timeout != "30s" {
			t.Errorf("Convert = %+v, want 4 workers, 30s timeout", cfg.Convert)
		}
	})

	t.Run("unknown key rejected", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "gladtex.yaml")
		if err := os.WriteFile(path, []byte("bogus: true\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadConfig(path); !errors.Is(err, ErrConfigParse) {
			t.Errorf("LoadConfig() error = %v, want ErrConfigParse", err)
		}
	})

	t.Run("invalid option combination rejected", func(t *testing.T) {
		t.Parallel()
		content := "images:\n  dpi: 150\n"
		path := filepath.Join(t.TempDir(), "gladtex.yaml")
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadConfig(path); !errors.Is(err, ErrInvalidOption) {
			t.Errorf("LoadConfig() error = %v, want ErrInvalidOption", err)
		}
	})
}

func TestDefaultConfigIsValid(t *testing.T) {
	t.Parallel()

	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("Validate() error = %v, want nil for the default config", err)
	}
}
