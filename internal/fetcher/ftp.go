package fetcher

import (
	"context"
	"io"
	"net"
	"net/url"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// FTPFetcher downloads files over FTP. Credentials come from the URL's
// userinfo; without them the anonymous account is used.
type FTPFetcher struct {
	timeout time.Duration
}

// NewFTPFetcher creates an FTPFetcher.
func NewFTPFetcher(timeout time.Duration) *FTPFetcher {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &FTPFetcher{timeout: timeout}
}

type ftpTarget struct {
	host, path string
	user, pass string
}

func parseFTPURL(rawURL string) (ftpTarget, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ftpTarget{}, eris.Wrap(err, "fetcher: parse ftp url")
	}
	if u.Scheme != "ftp" {
		return ftpTarget{}, eris.Errorf("fetcher: expected ftp scheme, got %q", u.Scheme)
	}
	if u.Path == "" || u.Path == "/" {
		return ftpTarget{}, eris.New("fetcher: empty path in ftp url")
	}

	t := ftpTarget{host: u.Host, path: u.Path, user: "anonymous", pass: "anonymous@"}
	if _, _, splitErr := net.SplitHostPort(t.host); splitErr != nil {
		t.host = net.JoinHostPort(t.host, "21")
	}
	if u.User != nil {
		t.user = u.User.Username()
		if p, ok := u.User.Password(); ok {
			t.pass = p
		}
	}
	return t, nil
}

// ftpConnReader closes the transfer and the control connection together.
type ftpConnReader struct {
	resp *ftp.Response
	conn *ftp.ServerConn
}

func (r *ftpConnReader) Read(p []byte) (int, error) {
	return r.resp.Read(p)
}

func (r *ftpConnReader) Close() error {
	respErr := r.resp.Close()
	quitErr := r.conn.Quit()
	if respErr != nil {
		return eris.Wrap(respErr, "fetcher: close ftp response")
	}
	if quitErr != nil {
		return eris.Wrap(quitErr, "fetcher: quit ftp connection")
	}
	return nil
}

// Download retrieves the file at ftpURL. Closing the reader releases the
// connection.
func (f *FTPFetcher) Download(ctx context.Context, ftpURL string) (io.ReadCloser, error) {
	t, err := parseFTPURL(ftpURL)
	if err != nil {
		return nil, err
	}

	zap.L().Debug("fetcher: ftp connect", zap.String("host", t.host), zap.String("path", t.path))

	conn, err := ftp.Dial(t.host, ftp.DialWithTimeout(f.timeout), ftp.DialWithContext(ctx))
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: ftp dial")
	}
	if err := conn.Login(t.user, t.pass); err != nil {
		_ = conn.Quit()
		return nil, eris.Wrap(err, "fetcher: ftp login")
	}

	resp, err := conn.Retr(t.path)
	if err != nil {
		_ = conn.Quit()
		return nil, eris.Wrap(err, "fetcher: ftp retrieve")
	}
	return &ftpConnReader{resp: resp, conn: conn}, nil
}

// DownloadToFile implements Fetcher.
func (f *FTPFetcher) DownloadToFile(ctx context.Context, ftpURL, dst string) (int64, error) {
	rc, err := f.Download(ctx, ftpURL)
	if err != nil {
		return 0, err
	}
	defer rc.Close() //nolint:errcheck
	return writeFile(dst, rc)
}
