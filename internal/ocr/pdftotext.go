package ocr

import (
	"bytes"
	"context"
	"os/exec"

	"github.com/rotisserie/eris"
)

// Local extracts text with the pdftotext CLI. Plain-text files are read
// directly; images need the Mistral provider.
type Local struct {
	binPath string
}

// NewLocal creates a Local extractor. An empty binPath uses "pdftotext".
func NewLocal(binPath string) *Local {
	if binPath == "" {
		binPath = "pdftotext"
	}
	return &Local{binPath: binPath}
}

// Extract implements Extractor.
func (l *Local) Extract(ctx context.Context, path string) (string, error) {
	switch KindOf(path) {
	case KindText:
		return readText(path)
	case KindPDF:
		cmd := exec.CommandContext(ctx, l.binPath, "-layout", path, "-")
		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
		if err := cmd.Run(); err != nil {
			return "", eris.Wrapf(err, "ocr: pdftotext %s: %s", path, stderr.String())
		}
		return stdout.String(), nil
	default:
		return "", eris.Wrapf(ErrUnsupported, "ocr: local extractor cannot read %s", path)
	}
}
