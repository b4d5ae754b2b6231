// Package fetcher downloads elevation rasters from HTTP and FTP sources into
// a local cache.
package fetcher

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// Fetcher retrieves the body behind a URL.
type Fetcher interface {
	// Download returns the body. The caller closes it.
	Download(ctx context.Context, url string) (io.ReadCloser, error)
}

// DownloadToFile writes the body of url to path through a temporary file in
// the same directory, so a partial download never appears under path.
// Returns bytes written.
func DownloadToFile(ctx context.Context, f Fetcher, url, path string) (int64, error) {
	body, err := f.Download(ctx, url)
	if err != nil {
		return 0, err
	}
	defer body.Close() //nolint:errcheck

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, eris.Wrap(err, "fetcher: create directory")
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return 0, eris.Wrap(err, "fetcher: create file")
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	n, err := io.Copy(tmp, body)
	if err != nil {
		_ = tmp.Close()
		return n, eris.Wrap(err, "fetcher: write file")
	}
	if err := tmp.Close(); err != nil {
		return n, eris.Wrap(err, "fetcher: close file")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return n, eris.Wrap(err, "fetcher: move file into place")
	}
	return n, nil
}
