package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

const (
	mistralEndpoint     = "https://api.mistral.ai/v1/ocr"
	defaultMistralModel = "pixtral-large-latest"
)

// Mistral extracts text from PDFs and images with the Mistral OCR API.
type Mistral struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
}

// NewMistral creates a Mistral extractor. An empty model uses the default.
func NewMistral(apiKey, model string) *Mistral {
	if model == "" {
		model = defaultMistralModel
	}
	return &Mistral{
		apiKey:   apiKey,
		model:    model,
		endpoint: mistralEndpoint,
		client:   &http.Client{Timeout: 2 * time.Minute},
	}
}

type mistralRequest struct {
	Model    string          `json:"model"`
	Document mistralDocument `json:"document"`
}

type mistralDocument struct {
	Type        string `json:"type"`
	DocumentURL string `json:"document_url,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
}

type mistralResponse struct {
	Pages []struct {
		Index    int    `json:"index"`
		Markdown string `json:"markdown"`
	} `json:"pages"`
}

// Extract implements Extractor.
func (m *Mistral) Extract(ctx context.Context, path string) (string, error) {
	var doc mistralDocument
	switch KindOf(path) {
	case KindText:
		return readText(path)
	case KindPDF:
		data, err := dataURL(path, "application/pdf")
		if err != nil {
			return "", err
		}
		doc = mistralDocument{Type: "document_url", DocumentURL: data}
	case KindImage:
		mime := "image/png"
		if ext := strings.ToLower(filepath.Ext(path)); ext == ".jpg" || ext == ".jpeg" {
			mime = "image/jpeg"
		}
		data, err := dataURL(path, mime)
		if err != nil {
			return "", err
		}
		doc = mistralDocument{Type: "image_url", ImageURL: data}
	default:
		return "", eris.Wrapf(ErrUnsupported, "ocr: mistral cannot read %s", path)
	}

	body, err := json.Marshal(mistralRequest{Model: m.model, Document: doc})
	if err != nil {
		return "", eris.Wrap(err, "ocr: marshal mistral request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", eris.Wrap(err, "ocr: create mistral request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	resp, err := m.client.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "ocr: mistral call")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", eris.Wrap(err, "ocr: read mistral response")
	}
	if resp.StatusCode != http.StatusOK {
		return "", eris.Errorf("ocr: mistral returned %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed mistralResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", eris.Wrap(err, "ocr: decode mistral response")
	}

	pages := make([]string, 0, len(parsed.Pages))
	for _, p := range parsed.Pages {
		pages = append(pages, p.Markdown)
	}
	return strings.Join(pages, "\n\n"), nil
}

func dataURL(path, mime string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", eris.Wrapf(err, "ocr: read %s", path)
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}
