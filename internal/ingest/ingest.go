// Package ingest turns a source artifact into provider records. Tabular
// sources go through column mapping and the normalizer; documents go through
// OCR and oracle extraction.
package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/provider-cli/internal/fetcher"
	"github.com/sells-group/provider-cli/internal/model"
	"github.com/sells-group/provider-cli/internal/normalize"
	"github.com/sells-group/provider-cli/internal/ocr"
	"github.com/sells-group/provider-cli/internal/oracle"
)

// DefaultMaxChars bounds the extracted text sent to the oracle.
const DefaultMaxChars = 3000

// KindFor infers the input kind from a file name.
func KindFor(name string) (model.InputKind, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".xlsx":
		return model.InputKindTabular, nil
	case ".pdf", ".png", ".jpg", ".jpeg", ".txt":
		return model.InputKindDocument, nil
	default:
		return "", eris.Errorf("ingest: unsupported file type %q", filepath.Ext(name))
	}
}

// Loader resolves a source and produces normalized records.
type Loader struct {
	resolver   *fetcher.Resolver
	normalizer *normalize.Normalizer
	mapper     *ColumnMapper
	extractor  ocr.Extractor
	oracle     oracle.Oracle
	maxChars   int
	maxRows    int
}

// Option configures a Loader.
type Option func(*Loader)

// WithMaxChars sets how many runes of extracted text reach the oracle.
func WithMaxChars(n int) Option {
	return func(l *Loader) {
		if n > 0 {
			l.maxChars = n
		}
	}
}

// WithMaxRows caps the rows read from a tabular source.
func WithMaxRows(n int) Option {
	return func(l *Loader) { l.maxRows = n }
}

// NewLoader creates a Loader.
func NewLoader(resolver *fetcher.Resolver, n *normalize.Normalizer, o oracle.Oracle, ex ocr.Extractor, opts ...Option) *Loader {
	l := &Loader{
		resolver:   resolver,
		normalizer: n,
		mapper:     NewColumnMapper(o),
		extractor:  ex,
		oracle:     o,
		maxChars:   DefaultMaxChars,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load resolves source and returns its records. Errors mean the source
// could not be read at all; an unparseable oracle answer yields no records.
func (l *Loader) Load(ctx context.Context, source string, kind model.InputKind) ([]model.ProviderRecord, error) {
	path, cleanup, err := l.resolver.Resolve(ctx, source)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: resolve source")
	}
	defer cleanup()

	switch kind {
	case model.InputKindTabular:
		return l.tabular(ctx, path)
	case model.InputKindDocument:
		return l.document(ctx, path)
	default:
		return nil, eris.Errorf("ingest: unknown input kind %q", kind)
	}
}

func (l *Loader) tabular(ctx context.Context, path string) ([]model.ProviderRecord, error) {
	table, err := ReadTable(path, l.maxRows)
	if err != nil {
		return nil, err
	}
	mapping := l.mapper.Map(ctx, table.Columns)
	zap.L().Debug("ingest: column mapping",
		zap.Strings("columns", table.Columns),
		zap.Any("mapping", mapping),
	)
	return l.normalizer.Tabular(table, mapping), nil
}

func (l *Loader) document(ctx context.Context, path string) ([]model.ProviderRecord, error) {
	text, err := l.extractor.Extract(ctx, path)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: extract text")
	}
	cands := Extract(ctx, l.oracle, ocr.Truncate(text, l.maxChars))
	return l.normalizer.Documents(cands), nil
}

// ReadTable reads a CSV or XLSX file into a normalize.Table.
func ReadTable(path string, maxRows int) (normalize.Table, error) {
	var (
		header []string
		rows   [][]string
		err    error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, openErr := os.Open(path)
		if openErr != nil {
			return normalize.Table{}, eris.Wrapf(openErr, "ingest: open %s", path)
		}
		defer f.Close() //nolint:errcheck
		header, rows, err = fetcher.ReadCSV(f, maxRows)
	case ".xlsx":
		header, rows, err = fetcher.ReadXLSX(path, maxRows)
	default:
		return normalize.Table{}, eris.Errorf("ingest: %s is not a tabular file", filepath.Base(path))
	}
	if err != nil {
		return normalize.Table{}, eris.Wrap(err, "ingest: read table")
	}
	return normalize.Table{Columns: header, Rows: rows}, nil
}
