// Package ocr turns scanned documents into plain text for oracle extraction.
package ocr

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/provider-cli/internal/config"
)

// ErrUnsupported is returned for file types an extractor cannot read.
var ErrUnsupported = eris.New("ocr: unsupported file type")

// Extractor extracts text from a document on disk.
type Extractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// Kind classifies a document path by extension.
type Kind int

const (
	KindUnknown Kind = iota
	KindPDF
	KindImage
	KindText
)

// KindOf returns the document kind for path.
func KindOf(path string) Kind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return KindPDF
	case ".png", ".jpg", ".jpeg":
		return KindImage
	case ".txt", ".text":
		return KindText
	default:
		return KindUnknown
	}
}

// NewExtractor creates the configured Extractor.
func NewExtractor(cfg config.OCRConfig) (Extractor, error) {
	switch cfg.Provider {
	case "local", "":
		return NewLocal(cfg.PdfToTextPath), nil
	case "mistral":
		if cfg.MistralKey == "" {
			return nil, eris.New("ocr: mistral provider requires mistral_api_key")
		}
		return NewMistral(cfg.MistralKey, cfg.MistralModel), nil
	default:
		return nil, eris.Errorf("ocr: unknown provider %q", cfg.Provider)
	}
}

// Truncate returns at most n runes of s. n <= 0 returns s unchanged.
func Truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

func readText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", eris.Wrapf(err, "ocr: read %s", path)
	}
	return string(data), nil
}
