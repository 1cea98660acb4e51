// Package fetcher downloads ground-truth archives and observation payloads
// over HTTP or FTP, unpacks ZIP archives, and streams CSV and JSON rows.
package fetcher

import (
	"context"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Fetcher downloads a remote resource.
type Fetcher interface {
	Download(ctx context.Context, rawURL string) (io.ReadCloser, error)
}

// Resolver picks a Fetcher by URL scheme and materialises inputs locally.
type Resolver struct {
	HTTP Fetcher
	FTP  Fetcher
}

// NewResolver returns a resolver with default HTTP and FTP fetchers.
func NewResolver() *Resolver {
	return &Resolver{HTTP: NewHTTPFetcher(HTTPOptions{}), FTP: NewFTPFetcher(FTPOptions{})}
}

// Fetch returns local file paths for ref. A plain path is returned as is; an
// http(s) or ftp URL is downloaded into dir. ZIP archives are extracted and
// the extracted paths returned instead.
func (r *Resolver) Fetch(ctx context.Context, ref, dir string) ([]string, error) {
	local, err := r.materialise(ctx, ref, dir)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(filepath.Ext(local), ".zip") {
		return []string{local}, nil
	}
	dest := filepath.Join(dir, strings.TrimSuffix(filepath.Base(local), filepath.Ext(local)))
	files, err := ExtractZIP(local, dest)
	if err != nil {
		return nil, err
	}
	zap.L().Debug("fetcher: extracted archive", zap.String("archive", local), zap.Int("files", len(files)))
	return files, nil
}

func (r *Resolver) materialise(ctx context.Context, ref, dir string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		// plain or Windows-style path
		return ref, nil
	}

	var f Fetcher
	switch u.Scheme {
	case "http", "https":
		f = r.HTTP
	case "ftp":
		f = r.FTP
	case "file":
		return u.Path, nil
	default:
		return "", eris.Errorf("fetcher: unsupported scheme %q", u.Scheme)
	}

	name := path.Base(u.Path)
	if name == "" || name == "/" || name == "." {
		name = "download"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrap(err, "fetcher: create download dir")
	}
	dst := filepath.Join(dir, name)
	if _, err := DownloadToFile(ctx, f, ref, dst); err != nil {
		return "", err
	}
	return dst, nil
}

// DownloadToFile copies the body of rawURL into dst and returns bytes written.
func DownloadToFile(ctx context.Context, f Fetcher, rawURL, dst string) (int64, error) {
	body, err := f.Download(ctx, rawURL)
	if err != nil {
		return 0, err
	}
	defer body.Close() //nolint:errcheck

	out, err := os.Create(dst)
	if err != nil {
		return 0, eris.Wrap(err, "fetcher: create file")
	}
	defer out.Close() //nolint:errcheck

	n, err := io.Copy(out, body)
	if err != nil {
		return n, eris.Wrapf(err, "fetcher: write %s", dst)
	}
	return n, nil
}

// FindExt returns the first path with the given extension, case-insensitive.
func FindExt(paths []string, ext string) (string, bool) {
	for _, p := range paths {
		if strings.EqualFold(filepath.Ext(p), ext) {
			return p, true
		}
	}
	return "", false
}
