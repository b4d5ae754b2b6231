package fetcher

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// rasterExts are the member extensions ExtractRaster accepts.
var rasterExts = map[string]bool{".tif": true, ".tiff": true, ".asc": true}

// IsRasterPath reports whether path has a raster file extension.
func IsRasterPath(path string) bool {
	return rasterExts[strings.ToLower(filepath.Ext(path))]
}

// ExtractRaster extracts the first raster member of a ZIP archive into destDir
// and returns its path. Archives of DEM tiles usually carry a single GeoTIFF
// next to metadata files.
func ExtractRaster(zipPath, destDir string) (string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return "", eris.Wrap(err, "zip: open archive")
	}
	defer r.Close() //nolint:errcheck

	for _, f := range r.File {
		if f.FileInfo().IsDir() || !IsRasterPath(f.Name) {
			continue
		}
		return extractEntry(f, destDir)
	}
	return "", eris.Errorf("zip: no raster member in %s", filepath.Base(zipPath))
}

// extractEntry writes one archive member under destDir, flattening its path.
func extractEntry(f *zip.File, destDir string) (string, error) {
	name := filepath.Base(filepath.Clean("/" + f.Name))
	if name == "/" || name == "." || name == ".." {
		return "", eris.Errorf("zip: illegal member name %q", f.Name)
	}
	destPath := filepath.Join(destDir, name)
	if !strings.HasPrefix(filepath.Clean(destPath), filepath.Clean(destDir)+string(os.PathSeparator)) {
		return "", eris.Errorf("zip: illegal path %q", f.Name)
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", eris.Wrap(err, "zip: create directory")
	}

	rc, err := f.Open()
	if err != nil {
		return "", eris.Wrap(err, "zip: open entry")
	}
	defer rc.Close() //nolint:errcheck

	out, err := os.Create(destPath)
	if err != nil {
		return "", eris.Wrap(err, "zip: create file")
	}
	if _, err := io.Copy(out, rc); err != nil {
		_ = out.Close()
		return "", eris.Wrap(err, "zip: write file")
	}
	if err := out.Close(); err != nil {
		return "", eris.Wrap(err, "zip: close file")
	}
	return destPath, nil
}
