package fetcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Acquirer turns a raster location into a local file path, downloading
// remote sources into CacheDir once.
type Acquirer struct {
	HTTP     Fetcher
	FTP      Fetcher
	CacheDir string
}

// Acquire returns a readable local path for src. Local paths are returned as
// is after a stat. http(s) and ftp URLs are downloaded into the cache unless a
// cached copy already exists. Downloaded ZIP archives are unpacked to their
// first raster member.
func (a *Acquirer) Acquire(ctx context.Context, src string) (string, error) {
	u, err := url.Parse(src)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		if _, statErr := os.Stat(src); statErr != nil {
			return "", eris.Wrapf(statErr, "fetcher: raster %s", src)
		}
		return src, nil
	}

	var f Fetcher
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		f = a.HTTP
	case "ftp":
		f = a.FTP
	case "file":
		return a.Acquire(ctx, u.Path)
	default:
		return "", eris.Errorf("fetcher: unsupported scheme %q", u.Scheme)
	}
	if f == nil {
		return "", eris.Errorf("fetcher: no %s fetcher configured", u.Scheme)
	}

	dir := a.CacheDir
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "roadfeat")
	}
	local := filepath.Join(dir, cacheName(u))

	if !isCached(local) {
		n, err := DownloadToFile(ctx, f, src, local)
		if err != nil {
			return "", eris.Wrapf(err, "fetcher: download %s", src)
		}
		zap.L().Info("fetcher: raster downloaded",
			zap.String("url", src),
			zap.String("path", local),
			zap.Int64("bytes", n),
		)
	} else {
		zap.L().Debug("fetcher: using cached raster", zap.String("path", local))
	}

	if strings.EqualFold(filepath.Ext(local), ".zip") {
		out, err := ExtractRaster(local, strings.TrimSuffix(local, filepath.Ext(local)))
		if err != nil {
			return "", eris.Wrap(err, "fetcher: unpack raster")
		}
		return out, nil
	}
	return local, nil
}

// cacheName keeps the URL's file name readable and prefixes a short hash of
// the full URL so equal names from different hosts do not collide.
func cacheName(u *url.URL) string {
	sum := sha256.Sum256([]byte(u.String()))
	base := path.Base(u.Path)
	if base == "." || base == "/" || base == "" {
		base = "raster"
	}
	return hex.EncodeToString(sum[:])[:12] + "-" + base
}

func isCached(p string) bool {
	st, err := os.Stat(p)
	return err == nil && st.Mode().IsRegular() && st.Size() > 0
}
