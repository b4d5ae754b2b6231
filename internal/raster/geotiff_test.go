package raster

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tiffEntry struct {
	tag   uint16
	typ   uint16
	count uint32
	data  []byte
}

func shortEntry(tag uint16, vs ...uint16) tiffEntry {
	b := make([]byte, 2*len(vs))
	for i, v := range vs {
		binary.LittleEndian.PutUint16(b[i*2:], v)
	}
	return tiffEntry{tag: tag, typ: 3, count: uint32(len(vs)), data: b}
}

func doubleEntry(tag uint16, vs ...float64) tiffEntry {
	b := make([]byte, 8*len(vs))
	for i, v := range vs {
		binary.LittleEndian.PutUint64(b[i*8:], math.Float64bits(v))
	}
	return tiffEntry{tag: tag, typ: 12, count: uint32(len(vs)), data: b}
}

func asciiEntry(tag uint16, s string) tiffEntry {
	b := append([]byte(s), 0)
	return tiffEntry{tag: tag, typ: 2, count: uint32(len(b)), data: b}
}

func longEntry(tag uint16, v uint32) tiffEntry {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return tiffEntry{tag: tag, typ: 4, count: 1, data: b}
}

// buildTIFF assembles a little-endian single-strip TIFF around pixels.
func buildTIFF(t *testing.T, entries []tiffEntry, pixels []byte) []byte {
	t.Helper()
	entries = append(entries,
		longEntry(tagStripOffsets, 0),
		longEntry(tagStripByteCounts, uint32(len(pixels))),
	)
	sort.Slice(entries, func(i, j int) bool { return entries[i].tag < entries[j].tag })

	ifdSize := 2 + 12*len(entries) + 4
	dataStart := 8 + ifdSize
	var extra bytes.Buffer
	offsets := make([]uint32, len(entries))
	for i, e := range entries {
		if len(e.data) > 4 {
			offsets[i] = uint32(dataStart + extra.Len())
			extra.Write(e.data)
			if extra.Len()%2 == 1 {
				extra.WriteByte(0)
			}
		}
	}
	pixelOffset := uint32(dataStart + extra.Len())

	var buf bytes.Buffer
	buf.WriteString("II")
	_ = binary.Write(&buf, binary.LittleEndian, uint16(42))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(8))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(len(entries)))
	for i, e := range entries {
		_ = binary.Write(&buf, binary.LittleEndian, e.tag)
		_ = binary.Write(&buf, binary.LittleEndian, e.typ)
		_ = binary.Write(&buf, binary.LittleEndian, e.count)
		value := make([]byte, 4)
		switch {
		case e.tag == tagStripOffsets:
			binary.LittleEndian.PutUint32(value, pixelOffset)
		case len(e.data) > 4:
			binary.LittleEndian.PutUint32(value, offsets[i])
		default:
			copy(value, e.data)
		}
		buf.Write(value)
	}
	_ = binary.Write(&buf, binary.LittleEndian, uint32(0))
	buf.Write(extra.Bytes())
	buf.Write(pixels)
	return buf.Bytes()
}

func int16Pixels(vs ...int16) []byte {
	b := make([]byte, 2*len(vs))
	for i, v := range vs {
		binary.LittleEndian.PutUint16(b[i*2:], uint16(v))
	}
	return b
}

func float32Pixels(vs ...float32) []byte {
	b := make([]byte, 4*len(vs))
	for i, v := range vs {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
	}
	return b
}

func deflate(t *testing.T, b []byte) []byte {
	t.Helper()
	var out bytes.Buffer
	zw := zlib.NewWriter(&out)
	_, err := zw.Write(b)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return out.Bytes()
}

func baseEntries(width, height uint16, bits, format, compression uint16) []tiffEntry {
	return []tiffEntry{
		shortEntry(tagImageWidth, width),
		shortEntry(tagImageLength, height),
		shortEntry(tagBitsPerSample, bits),
		shortEntry(tagCompression, compression),
		shortEntry(tagSamplesPerPixel, 1),
		shortEntry(tagRowsPerStrip, height),
		shortEntry(tagSampleFormat, format),
		doubleEntry(tagModelPixelScale, 0.5, 0.5, 0),
		doubleEntry(tagModelTiepoint, 0, 0, 0, 120, 1, 0),
	}
}

func writeTemp(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestLoad_GeoTIFFInt16(t *testing.T) {
	entries := append(baseEntries(3, 2, 16, sampleInt, compressionNone),
		shortEntry(tagGeoKeyDirectory, 1, 1, 0, 1, keyGeographicType, 0, 1, 4326),
	)
	data := buildTIFF(t, entries, int16Pixels(10, 20, -32768, 40, -5, 60))

	g, err := Load(writeTemp(t, "dem.tif", data))
	require.NoError(t, err)

	assert.Equal(t, 2, g.Rows)
	assert.Equal(t, 3, g.Cols)
	assert.Equal(t, "EPSG:4326", g.CRS)
	assert.Equal(t, Transform{OriginX: 120, OriginY: 1, PixelWidth: 0.5, PixelHeight: -0.5}, g.Transform)
	assert.Equal(t, 10.0, g.At(0, 0))
	assert.True(t, math.IsNaN(g.At(0, 2)), "SRTM sentinel must become missing")
	assert.Equal(t, -5.0, g.At(1, 1))
	assert.Equal(t, 5, g.ValidCount())
}

func TestLoad_GeoTIFFFloatDeflateNoData(t *testing.T) {
	entries := append(baseEntries(2, 2, 32, sampleFloat, compressionDeflate),
		shortEntry(tagGeoKeyDirectory, 1, 1, 0, 1, keyProjectedType, 0, 1, 32651),
		asciiEntry(tagGDALNoData, "-9999"),
	)
	pixels := deflate(t, float32Pixels(1.5, -9999, 3.25, 4))
	g, err := Load(writeTemp(t, "dem.tif", buildTIFF(t, entries, pixels)))
	require.NoError(t, err)

	assert.Equal(t, "EPSG:32651", g.CRS)
	assert.InDelta(t, 1.5, g.At(0, 0), 1e-9)
	assert.True(t, math.IsNaN(g.At(0, 1)))
	assert.InDelta(t, 3.25, g.At(1, 0), 1e-9)
}

func TestLoad_GeoTIFFHorizontalPredictor(t *testing.T) {
	entries := append(baseEntries(4, 1, 16, sampleInt, compressionDeflate),
		shortEntry(tagPredictor, predictorHorizontal),
	)
	// 100, 102, 99, 110 differenced along the row.
	pixels := deflate(t, int16Pixels(100, 2, -3, 11))
	g, err := Load(writeTemp(t, "dem.tif", buildTIFF(t, entries, pixels)))
	require.NoError(t, err)

	assert.Equal(t, []float64{100, 102, 99, 110}, g.Data)
	assert.Equal(t, DefaultCRS, g.CRS)
}

func TestLoad_GeoTIFFPixelIsPoint(t *testing.T) {
	entries := append(baseEntries(1, 1, 16, sampleInt, compressionNone),
		shortEntry(tagGeoKeyDirectory, 1, 1, 0, 1, keyRasterType, 0, 1, rasterPixelIsPt),
	)
	g, err := Load(writeTemp(t, "dem.tif", buildTIFF(t, entries, int16Pixels(7))))
	require.NoError(t, err)
	assert.InDelta(t, 119.75, g.Transform.OriginX, 1e-12)
	assert.InDelta(t, 1.25, g.Transform.OriginY, 1e-12)
}

func TestLoad_GeoTIFFUnsupportedCompression(t *testing.T) {
	entries := baseEntries(1, 1, 16, sampleInt, 7)
	_, err := Load(writeTemp(t, "dem.tif", buildTIFF(t, entries, int16Pixels(1))))
	require.Error(t, err)
	assert.True(t, IsLoadError(err))
	assert.Contains(t, err.Error(), "unsupported compression")
}

func TestLoad_GeoTIFFNoGeoreference(t *testing.T) {
	entries := []tiffEntry{
		shortEntry(tagImageWidth, 1),
		shortEntry(tagImageLength, 1),
		shortEntry(tagBitsPerSample, 16),
	}
	_, err := Load(writeTemp(t, "dem.tif", buildTIFF(t, entries, int16Pixels(1))))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no georeferencing")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.tif"))
	require.Error(t, err)
	assert.True(t, IsLoadError(err))
	assert.ErrorIs(t, err, ErrRasterLoad)
}

func TestLoad_UnknownFormat(t *testing.T) {
	_, err := Load(writeTemp(t, "dem.bin", []byte("garbage bytes")))
	require.Error(t, err)
	assert.True(t, IsLoadError(err))
	assert.Contains(t, err.Error(), "unrecognized raster format")
}

func TestLoad_ASCII(t *testing.T) {
	src := `ncols 3
nrows 2
xllcorner 500000
yllcorner 1000
cellsize 30
NODATA_value -9999
1 2 3
4 -9999 6
`
	g, err := Load(writeTemp(t, "dem.asc", []byte(src)))
	require.NoError(t, err)

	assert.Equal(t, 2, g.Rows)
	assert.Equal(t, 3, g.Cols)
	assert.Equal(t, Transform{OriginX: 500000, OriginY: 1060, PixelWidth: 30, PixelHeight: -30}, g.Transform)
	assert.True(t, math.IsNaN(g.At(1, 1)))
	assert.Equal(t, 6.0, g.At(1, 2))
}

func TestLoad_ASCIIShortBody(t *testing.T) {
	src := "ncols 2\nnrows 2\nxllcenter 0\nyllcenter 0\ncellsize 1\n1 2 3\n"
	_, err := Load(writeTemp(t, "dem.asc", []byte(src)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected 4 cells")
}
