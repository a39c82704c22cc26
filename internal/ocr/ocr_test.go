package ocr

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/provider-cli/internal/config"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNewExtractor(t *testing.T) {
	ext, err := NewExtractor(config.OCRConfig{Provider: ""})
	require.NoError(t, err)
	assert.IsType(t, &Local{}, ext)

	_, err = NewExtractor(config.OCRConfig{Provider: "mistral"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires mistral_api_key")

	ext, err = NewExtractor(config.OCRConfig{Provider: "mistral", MistralKey: "k"})
	require.NoError(t, err)
	assert.IsType(t, &Mistral{}, ext)
	assert.Equal(t, defaultMistralModel, ext.(*Mistral).model)

	_, err = NewExtractor(config.OCRConfig{Provider: "paddle"})
	assert.Error(t, err)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindPDF, KindOf("a/B.PDF"))
	assert.Equal(t, KindImage, KindOf("scan.jpeg"))
	assert.Equal(t, KindText, KindOf("notes.txt"))
	assert.Equal(t, KindUnknown, KindOf("data.csv"))
}

func TestLocal_Text(t *testing.T) {
	path := writeFile(t, "roster.txt", "Dr. Jane Doe NPI 1234567890")
	got, err := NewLocal("").Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "Dr. Jane Doe NPI 1234567890", got)
}

func TestLocal_ImageUnsupported(t *testing.T) {
	path := writeFile(t, "scan.png", "png")
	_, err := NewLocal("").Extract(context.Background(), path)
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestLocal_MissingBinary(t *testing.T) {
	path := writeFile(t, "doc.pdf", "%PDF-1.4")
	_, err := NewLocal("/nonexistent/pdftotext").Extract(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ocr: pdftotext")
}

func TestMistral_Image(t *testing.T) {
	var got mistralRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"pages":[{"index":0,"markdown":"page one"},{"index":1,"markdown":"page two"}]}`))
	}))
	defer srv.Close()

	m := NewMistral("key", "")
	m.endpoint = srv.URL

	text, err := m.Extract(context.Background(), writeFile(t, "scan.jpg", "jpegbytes"))
	require.NoError(t, err)
	assert.Equal(t, "page one\n\npage two", text)
	assert.Equal(t, "image_url", got.Document.Type)
	assert.True(t, strings.HasPrefix(got.Document.ImageURL, "data:image/jpeg;base64,"))
}

func TestMistral_PDF(t *testing.T) {
	var got mistralRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"pages":[]}`))
	}))
	defer srv.Close()

	m := NewMistral("key", "custom")
	m.endpoint = srv.URL

	_, err := m.Extract(context.Background(), writeFile(t, "doc.pdf", "%PDF"))
	require.NoError(t, err)
	assert.Equal(t, "custom", got.Model)
	assert.Equal(t, "document_url", got.Document.Type)
	assert.True(t, strings.HasPrefix(got.Document.DocumentURL, "data:application/pdf;base64,"))
}

func TestMistral_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte("nope"))
	}))
	defer srv.Close()

	m := NewMistral("key", "")
	m.endpoint = srv.URL
	_, err := m.Extract(context.Background(), writeFile(t, "doc.pdf", "%PDF"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mistral returned 401")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abcdef", 3))
	assert.Equal(t, "héé", Truncate("hééllo", 3))
	assert.Equal(t, "ab", Truncate("ab", 3))
	assert.Equal(t, "ab", Truncate("ab", 0))
}
