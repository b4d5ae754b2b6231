package raster

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// DefaultCRS is assumed when a raster carries no reference system.
const DefaultCRS = "EPSG:4326"

// Load reads a GeoTIFF or ESRI ASCII grid from path. The SRTM sentinel and the
// file's declared nodata value are rewritten to NaN before returning.
func Load(path string) (*Grid, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, loadErr(path, err)
	}

	var (
		g      *Grid
		nodata []float64
	)
	switch detectFormat(path, data) {
	case formatGeoTIFF:
		g, nodata, err = decodeGeoTIFF(data)
	case formatASCII:
		g, nodata, err = decodeASCII(bytes.NewReader(data))
	default:
		err = eris.New("unrecognized raster format")
	}
	if err != nil {
		return nil, loadErr(path, err)
	}
	if g.Rows == 0 || g.Cols == 0 {
		return nil, loadErr(path, eris.New("no readable elevation band"))
	}
	if !g.Transform.Invertible() {
		return nil, loadErr(path, eris.New("degenerate geotransform"))
	}
	if g.CRS == "" {
		g.CRS = DefaultCRS
	}

	filled := g.FillNoData(append(nodata, SRTMNoData)...)
	zap.L().Debug("raster: loaded",
		zap.String("path", path),
		zap.Int("rows", g.Rows),
		zap.Int("cols", g.Cols),
		zap.String("crs", g.CRS),
		zap.Int("nodata_filled", filled),
	)
	return g, nil
}

type rasterFormat int

const (
	formatUnknown rasterFormat = iota
	formatGeoTIFF
	formatASCII
)

func detectFormat(path string, data []byte) rasterFormat {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tif", ".tiff":
		return formatGeoTIFF
	case ".asc":
		return formatASCII
	}
	if len(data) >= 4 && (bytes.Equal(data[:4], []byte("II*\x00")) || bytes.Equal(data[:4], []byte("MM\x00*"))) {
		return formatGeoTIFF
	}
	if bytes.HasPrefix(bytes.ToLower(bytes.TrimSpace(data)), []byte("ncols")) {
		return formatASCII
	}
	return formatUnknown
}
