package fetcher

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// ExtractZIP unpacks every file of the archive into destDir and returns the
// extracted file paths in archive order.
func ExtractZIP(zipPath, destDir string) ([]string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: open zip")
	}
	defer r.Close() //nolint:errcheck

	var out []string
	for _, f := range r.File {
		p, err := extractEntry(f, destDir)
		if err != nil {
			return out, err
		}
		if p != "" {
			out = append(out, p)
		}
	}
	return out, nil
}

// extractEntry writes one entry, returning "" for directories. Entries that
// would escape destDir are rejected.
func extractEntry(f *zip.File, destDir string) (string, error) {
	dst := filepath.Join(destDir, f.Name)
	if !strings.HasPrefix(filepath.Clean(dst), filepath.Clean(destDir)+string(os.PathSeparator)) {
		return "", eris.Errorf("fetcher: zip entry %q escapes destination", f.Name)
	}
	if f.FileInfo().IsDir() {
		return "", eris.Wrap(os.MkdirAll(dst, 0o755), "fetcher: create zip directory")
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", eris.Wrap(err, "fetcher: create zip parent")
	}

	rc, err := f.Open()
	if err != nil {
		return "", eris.Wrapf(err, "fetcher: open zip entry %s", f.Name)
	}
	defer rc.Close() //nolint:errcheck

	out, err := os.Create(dst)
	if err != nil {
		return "", eris.Wrap(err, "fetcher: create extracted file")
	}
	defer out.Close() //nolint:errcheck

	if _, err := io.Copy(out, rc); err != nil {
		return "", eris.Wrapf(err, "fetcher: extract %s", f.Name)
	}
	return dst, nil
}
