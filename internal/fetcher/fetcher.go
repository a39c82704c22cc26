// Package fetcher resolves source references (local paths, HTTP(S) and FTP
// URLs) to local files and parses tabular files into rows.
package fetcher

import (
	"context"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

var (
	// ErrSourceMissing is returned when a local source does not exist.
	ErrSourceMissing = eris.New("fetcher: source not found")
	// ErrSourceNotAllowed is returned for local sources outside the
	// resolver's allowed roots.
	ErrSourceNotAllowed = eris.New("fetcher: local source not allowed")
)

// Fetcher downloads a remote URL to a local file.
type Fetcher interface {
	DownloadToFile(ctx context.Context, rawURL, dst string) (int64, error)
}

// Resolver maps a source reference to a readable local path.
type Resolver struct {
	HTTP   Fetcher
	FTP    Fetcher
	TmpDir string
	// LocalRoots, when non-empty, limits local sources to files under
	// these directories.
	LocalRoots []string
}

// NewResolver returns a Resolver using the given fetchers. An empty tmpDir
// uses the OS temp dir.
func NewResolver(httpF, ftpF Fetcher, tmpDir string) *Resolver {
	return &Resolver{HTTP: httpF, FTP: ftpF, TmpDir: tmpDir}
}

// RestrictLocal limits local sources to files under roots and returns r.
func (r *Resolver) RestrictLocal(roots ...string) *Resolver {
	r.LocalRoots = append(r.LocalRoots, roots...)
	return r
}

// IsRemote reports whether ref is an http(s) or ftp URL.
func IsRemote(ref string) bool {
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https", "ftp":
		return u.Host != ""
	default:
		return false
	}
}

// Within reports whether p names a file under root once both are made
// absolute and cleaned. It does not follow symlinks.
func Within(root, p string) bool {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return false
	}
	absPath, err := filepath.Abs(p)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absRoot, absPath)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

// allowedLocal checks p, with symlinks resolved, against LocalRoots.
func (r *Resolver) allowedLocal(p string) bool {
	if len(r.LocalRoots) == 0 {
		return true
	}
	resolved, err := filepath.EvalSymlinks(p)
	if err != nil {
		return false
	}
	for _, root := range r.LocalRoots {
		realRoot, err := filepath.EvalSymlinks(root)
		if err != nil {
			continue
		}
		if Within(realRoot, resolved) {
			return true
		}
	}
	return false
}

// Resolve returns a local path for ref. Remote sources are downloaded to a
// temp file that keeps the remote file extension; the returned cleanup func
// removes it and is never nil.
func (r *Resolver) Resolve(ctx context.Context, ref string) (string, func(), error) {
	noop := func() {}
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", noop, eris.Wrap(ErrSourceMissing, "fetcher: empty source reference")
	}

	u, err := url.Parse(ref)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		// Plain path (len 1 scheme catches Windows drive letters).
		if _, statErr := os.Stat(ref); statErr != nil {
			return "", noop, eris.Wrapf(ErrSourceMissing, "fetcher: %s", ref)
		}
		if !r.allowedLocal(ref) {
			return "", noop, eris.Wrapf(ErrSourceNotAllowed, "fetcher: %s", ref)
		}
		return ref, noop, nil
	}

	var f Fetcher
	switch strings.ToLower(u.Scheme) {
	case "file":
		return r.Resolve(ctx, u.Path)
	case "http", "https":
		f = r.HTTP
	case "ftp":
		f = r.FTP
	default:
		return "", noop, eris.Errorf("fetcher: unsupported scheme %q", u.Scheme)
	}
	if f == nil {
		return "", noop, eris.Errorf("fetcher: no fetcher configured for %s", u.Scheme)
	}

	tmp, err := os.CreateTemp(r.TmpDir, "source-*"+path.Ext(u.Path))
	if err != nil {
		return "", noop, eris.Wrap(err, "fetcher: create temp file")
	}
	dst := tmp.Name()
	_ = tmp.Close()
	cleanup := func() { _ = os.Remove(dst) }

	n, err := f.DownloadToFile(ctx, ref, dst)
	if err != nil {
		cleanup()
		return "", noop, eris.Wrapf(err, "fetcher: download %s", ref)
	}

	zap.L().Debug("fetcher: downloaded source",
		zap.String("source", ref),
		zap.String("path", filepath.Base(dst)),
		zap.Int64("bytes", n),
	)
	return dst, cleanup, nil
}
