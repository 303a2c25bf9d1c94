package yamlutil_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/alnah/go-gladtex/internal/yamlutil"
)

// imagesSection mirrors the shape of a config file section.
type imagesSection struct {
	Directory string  `yaml:"directory"`
	PNG       bool    `yaml:"png"`
	DPI       float64 `yaml:"dpi"`
}

func TestUnmarshalStrict(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    imagesSection
		wantErr bool
	}{
		{
			name:  "valid document",
			input: "directory: img\npng: true\ndpi: 150\n",
			want:  imagesSection{Directory: "img", PNG: true, DPI: 150},
		},
		{
			name:  "partial document keeps zero values",
			input: "png: true\n",
			want:  imagesSection{PNG: true},
		},
		{
			name:    "unknown field rejected",
			input:   "directory: img\nresolution: 150\n",
			wantErr: true,
		},
		{
			name:    "malformed YAML",
			input:   "directory: [unclosed\n",
			wantErr: true,
		},
		{
			name:    "type mismatch",
			input:   "dpi: not-a-number\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var got imagesSection
			err := yamlutil.UnmarshalStrict([]byte(tt.input), &got)
			if tt.wantErr {
				if err == nil {
					t.Fatal("UnmarshalStrict() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("UnmarshalStrict() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("UnmarshalStrict() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestUnmarshalStrictInputValidation(t *testing.T) {
	t.Parallel()

	t.Run("empty data", func(t *testing.T) {
		t.Parallel()
		var v imagesSection
		if err := yamlutil.UnmarshalStrict(nil, &v); !errors.Is(err, yamlutil.ErrNilData) {
			t.Errorf("UnmarshalStrict() error = %v, want ErrNilData", err)
		}
	})

	t.Run("nil destination", func(t *testing.T) {
		t.Parallel()
		if err := yamlutil.UnmarshalStrict([]byte("png: true"), nil); !errors.Is(err, yamlutil.ErrNilDestination) {
			t.Errorf("UnmarshalStrict() error = %v, want ErrNilDestination", err)
		}
	})

	t.Run("oversized input", func(t *testing.T) {
		t.Parallel()
		big := []byte("directory: " + strings.Repeat("a", yamlutil.MaxInputSize))
		var v imagesSection
		if err := yamlutil.UnmarshalStrict(big, &v); !errors.Is(err, yamlutil.ErrInputTooLarge) {
			t.Errorf("UnmarshalStrict() error = %v, want ErrInputTooLarge", err)
		}
	})
}
