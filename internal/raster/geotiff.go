package raster

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/image/tiff/lzw"
)

// Baseline and GeoTIFF tag numbers read by the decoder.
const (
	tagImageWidth          = 256
	tagImageLength         = 257
	tagBitsPerSample       = 258
	tagCompression         = 259
	tagStripOffsets        = 273
	tagSamplesPerPixel     = 277
	tagRowsPerStrip        = 278
	tagStripByteCounts     = 279
	tagPlanarConfig        = 284
	tagPredictor           = 317
	tagTileWidth           = 322
	tagTileLength          = 323
	tagTileOffsets         = 324
	tagTileByteCounts      = 325
	tagSampleFormat        = 339
	tagModelPixelScale     = 33550
	tagModelTiepoint       = 33922
	tagModelTransformation = 34264
	tagGeoKeyDirectory     = 34735
	tagGDALNoData          = 42113
)

// GeoKey identifiers.
const (
	keyRasterType     = 1025
	keyGeographicType = 2048
	keyProjectedType  = 3072
	rasterPixelIsPt   = 2
	userDefinedKey    = 32767
)

const (
	compressionNone     = 1
	compressionLZW      = 5
	compressionDeflate  = 8
	compressionDeflate2 = 32946

	predictorNone       = 1
	predictorHorizontal = 2

	sampleUint  = 1
	sampleInt   = 2
	sampleFloat = 3
)

// fieldSize is the byte width of each TIFF field type.
var fieldSize = map[uint16]int{
	1: 1, 2: 1, 3: 2, 4: 4, 5: 8, 6: 1, 7: 1, 8: 2, 9: 4, 10: 8, 11: 4, 12: 8,
}

type ifdEntry struct {
	typ   uint16
	count int
	raw   []byte
}

type tiffDecoder struct {
	data    []byte
	order   binary.ByteOrder
	entries map[uint16]ifdEntry
}

// decodeGeoTIFF decodes the first band of the first image in a classic
// (non-Big) GeoTIFF.
func decodeGeoTIFF(data []byte) (*Grid, []float64, error) {
	d := &tiffDecoder{data: data}
	if err := d.parseHeader(); err != nil {
		return nil, nil, err
	}

	width, height := d.firstInt(tagImageWidth, 0), d.firstInt(tagImageLength, 0)
	if width <= 0 || height <= 0 {
		return nil, nil, eris.New("tiff: missing image dimensions")
	}

	layout, err := d.sampleLayout()
	if err != nil {
		return nil, nil, err
	}

	t, err := d.geoTransform()
	if err != nil {
		return nil, nil, err
	}
	crs, pixelIsPoint := d.geoKeys()
	if pixelIsPoint {
		t.OriginX -= t.PixelWidth / 2
		t.OriginY -= t.PixelHeight / 2
	}

	g := &Grid{
		Rows:      height,
		Cols:      width,
		Data:      make([]float64, width*height),
		Transform: t,
		CRS:       crs,
	}
	if _, tiled := d.entries[tagTileOffsets]; tiled {
		err = d.readTiles(g, layout)
	} else {
		err = d.readStrips(g, layout)
	}
	if err != nil {
		return nil, nil, err
	}

	var nodata []float64
	if e, ok := d.entries[tagGDALNoData]; ok {
		s := strings.TrimSpace(strings.TrimRight(string(e.raw), "\x00"))
		if v, perr := strconv.ParseFloat(s, 64); perr == nil {
			nodata = append(nodata, v)
		}
	}
	return g, nodata, nil
}

func (d *tiffDecoder) parseHeader() error {
	if len(d.data) < 8 {
		return eris.New("tiff: file too short")
	}
	switch string(d.data[:2]) {
	case "II":
		d.order = binary.LittleEndian
	case "MM":
		d.order = binary.BigEndian
	default:
		return eris.New("tiff: bad byte order mark")
	}
	if magic := d.order.Uint16(d.data[2:4]); magic != 42 {
		if magic == 43 {
			return eris.New("tiff: BigTIFF is not supported")
		}
		return eris.Errorf("tiff: bad magic %d", magic)
	}

	off := int(d.order.Uint32(d.data[4:8]))
	if off+2 > len(d.data) {
		return eris.New("tiff: IFD offset out of range")
	}
	n := int(d.order.Uint16(d.data[off : off+2]))
	d.entries = make(map[uint16]ifdEntry, n)
	for i := 0; i < n; i++ {
		p := off + 2 + i*12
		if p+12 > len(d.data) {
			return eris.New("tiff: truncated IFD")
		}
		tag := d.order.Uint16(d.data[p : p+2])
		typ := d.order.Uint16(d.data[p+2 : p+4])
		count := int(d.order.Uint32(d.data[p+4 : p+8]))
		size, known := fieldSize[typ]
		if !known {
			continue
		}
		length := size * count
		var raw []byte
		if length <= 4 {
			raw = d.data[p+8 : p+8+length]
		} else {
			vo := int(d.order.Uint32(d.data[p+8 : p+12]))
			if vo < 0 || vo+length > len(d.data) {
				return eris.Errorf("tiff: tag %d value out of range", tag)
			}
			raw = d.data[vo : vo+length]
		}
		d.entries[tag] = ifdEntry{typ: typ, count: count, raw: raw}
	}
	return nil
}

// ints decodes an integer-typed entry.
func (d *tiffDecoder) ints(tag uint16) []int {
	e, ok := d.entries[tag]
	if !ok {
		return nil
	}
	out := make([]int, e.count)
	for i := range out {
		switch e.typ {
		case 1, 7:
			out[i] = int(e.raw[i])
		case 6:
			out[i] = int(int8(e.raw[i]))
		case 3:
			out[i] = int(d.order.Uint16(e.raw[i*2:]))
		case 8:
			out[i] = int(int16(d.order.Uint16(e.raw[i*2:])))
		case 4:
			out[i] = int(d.order.Uint32(e.raw[i*4:]))
		case 9:
			out[i] = int(int32(d.order.Uint32(e.raw[i*4:])))
		}
	}
	return out
}

// floats decodes a floating-point (or integer) entry.
func (d *tiffDecoder) floats(tag uint16) []float64 {
	e, ok := d.entries[tag]
	if !ok {
		return nil
	}
	switch e.typ {
	case 11:
		out := make([]float64, e.count)
		for i := range out {
			out[i] = float64(math.Float32frombits(d.order.Uint32(e.raw[i*4:])))
		}
		return out
	case 12:
		out := make([]float64, e.count)
		for i := range out {
			out[i] = math.Float64frombits(d.order.Uint64(e.raw[i*8:]))
		}
		return out
	}
	ints := d.ints(tag)
	out := make([]float64, len(ints))
	for i, v := range ints {
		out[i] = float64(v)
	}
	return out
}

func (d *tiffDecoder) firstInt(tag uint16, def int) int {
	if v := d.ints(tag); len(v) > 0 {
		return v[0]
	}
	return def
}

// sampleLayout describes how band 1 samples are packed in each chunk.
type sampleLayout struct {
	bits        int
	format      int
	samples     int
	planar      int
	compression int
	predictor   int
}

func (l sampleLayout) bytesPerSample() int { return l.bits / 8 }

// pixelStride is the byte distance between consecutive band-1 samples.
func (l sampleLayout) pixelStride() int {
	if l.planar == 2 {
		return l.bytesPerSample()
	}
	return l.bytesPerSample() * l.samples
}

func (d *tiffDecoder) sampleLayout() (sampleLayout, error) {
	l := sampleLayout{
		bits:        d.firstInt(tagBitsPerSample, 1),
		format:      d.firstInt(tagSampleFormat, sampleUint),
		samples:     d.firstInt(tagSamplesPerPixel, 1),
		planar:      d.firstInt(tagPlanarConfig, 1),
		compression: d.firstInt(tagCompression, compressionNone),
		predictor:   d.firstInt(tagPredictor, predictorNone),
	}
	switch {
	case l.format == sampleFloat && (l.bits == 32 || l.bits == 64):
	case (l.format == sampleUint || l.format == sampleInt) && (l.bits == 8 || l.bits == 16 || l.bits == 32):
	default:
		return l, eris.Errorf("tiff: unsupported sample format %d with %d bits", l.format, l.bits)
	}
	switch l.compression {
	case compressionNone, compressionLZW, compressionDeflate, compressionDeflate2:
	default:
		return l, eris.Errorf("tiff: unsupported compression %d", l.compression)
	}
	if l.predictor != predictorNone && !(l.predictor == predictorHorizontal && l.format != sampleFloat) {
		return l, eris.Errorf("tiff: unsupported predictor %d", l.predictor)
	}
	if l.samples < 1 {
		l.samples = 1
	}
	return l, nil
}

// geoTransform builds the affine transform from ModelTransformation or from
// ModelTiepoint plus ModelPixelScale.
func (d *tiffDecoder) geoTransform() (Transform, error) {
	if m := d.floats(tagModelTransformation); len(m) >= 16 {
		if m[1] != 0 || m[4] != 0 {
			return Transform{}, eris.New("tiff: rotated geotransforms are not supported")
		}
		return Transform{OriginX: m[3], OriginY: m[7], PixelWidth: m[0], PixelHeight: m[5]}, nil
	}
	tie := d.floats(tagModelTiepoint)
	scale := d.floats(tagModelPixelScale)
	if len(tie) < 6 || len(scale) < 2 {
		return Transform{}, eris.New("tiff: no georeferencing tags")
	}
	return Transform{
		OriginX:     tie[3] - tie[0]*scale[0],
		OriginY:     tie[4] + tie[1]*scale[1],
		PixelWidth:  scale[0],
		PixelHeight: -scale[1],
	}, nil
}

// geoKeys reads the CRS and raster registration from the GeoKeyDirectory.
func (d *tiffDecoder) geoKeys() (crs string, pixelIsPoint bool) {
	keys := d.ints(tagGeoKeyDirectory)
	if len(keys) < 4 {
		return "", false
	}
	var projected, geographic int
	n := keys[3]
	for i := 0; i < n && 4+i*4+3 < len(keys); i++ {
		id, loc, value := keys[4+i*4], keys[4+i*4+1], keys[4+i*4+3]
		if loc != 0 {
			continue
		}
		switch id {
		case keyRasterType:
			pixelIsPoint = value == rasterPixelIsPt
		case keyProjectedType:
			projected = value
		case keyGeographicType:
			geographic = value
		}
	}
	switch {
	case projected > 0 && projected != userDefinedKey:
		crs = fmt.Sprintf("EPSG:%d", projected)
	case geographic > 0 && geographic != userDefinedKey:
		crs = fmt.Sprintf("EPSG:%d", geographic)
	}
	return crs, pixelIsPoint
}

func (d *tiffDecoder) chunk(offsets, counts []int, i int, l sampleLayout) ([]byte, error) {
	if i >= len(offsets) || i >= len(counts) {
		return nil, eris.Errorf("tiff: chunk %d missing", i)
	}
	off, n := offsets[i], counts[i]
	if off < 0 || n < 0 || off+n > len(d.data) {
		return nil, eris.Errorf("tiff: chunk %d out of range", i)
	}
	raw := d.data[off : off+n]
	switch l.compression {
	case compressionLZW:
		rc := lzw.NewReader(bytes.NewReader(raw), lzw.MSB, 8)
		defer rc.Close() //nolint:errcheck
		out, err := io.ReadAll(rc)
		if err != nil {
			return nil, eris.Wrapf(err, "tiff: lzw chunk %d", i)
		}
		return out, nil
	case compressionDeflate, compressionDeflate2:
		zr, err := zlib.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, eris.Wrapf(err, "tiff: deflate chunk %d", i)
		}
		defer zr.Close() //nolint:errcheck
		out, err := io.ReadAll(zr)
		if err != nil {
			return nil, eris.Wrapf(err, "tiff: deflate chunk %d", i)
		}
		return out, nil
	}
	return raw, nil
}

func (d *tiffDecoder) readStrips(g *Grid, l sampleLayout) error {
	offsets, counts := d.ints(tagStripOffsets), d.ints(tagStripByteCounts)
	rowsPerStrip := d.firstInt(tagRowsPerStrip, g.Rows)
	if rowsPerStrip <= 0 || rowsPerStrip > g.Rows {
		rowsPerStrip = g.Rows
	}
	rowBytes := g.Cols * l.pixelStride()
	strips := (g.Rows + rowsPerStrip - 1) / rowsPerStrip

	for s := 0; s < strips; s++ {
		buf, err := d.chunk(offsets, counts, s, l)
		if err != nil {
			return err
		}
		r0 := s * rowsPerStrip
		r1 := min(r0+rowsPerStrip, g.Rows)
		for r := r0; r < r1; r++ {
			start := (r - r0) * rowBytes
			if start+rowBytes > len(buf) {
				return eris.Errorf("tiff: strip %d truncated", s)
			}
			row := buf[start : start+rowBytes]
			l.undoPredictor(row, d.order)
			for c := 0; c < g.Cols; c++ {
				g.Data[r*g.Cols+c] = l.sample(row, c, d.order)
			}
		}
	}
	return nil
}

func (d *tiffDecoder) readTiles(g *Grid, l sampleLayout) error {
	offsets, counts := d.ints(tagTileOffsets), d.ints(tagTileByteCounts)
	tw, th := d.firstInt(tagTileWidth, 0), d.firstInt(tagTileLength, 0)
	if tw <= 0 || th <= 0 {
		return eris.New("tiff: missing tile dimensions")
	}
	across := (g.Cols + tw - 1) / tw
	down := (g.Rows + th - 1) / th
	rowBytes := tw * l.pixelStride()

	for ty := 0; ty < down; ty++ {
		for tx := 0; tx < across; tx++ {
			buf, err := d.chunk(offsets, counts, ty*across+tx, l)
			if err != nil {
				return err
			}
			for r := 0; r < th; r++ {
				gr := ty*th + r
				if gr >= g.Rows {
					break
				}
				start := r * rowBytes
				if start+rowBytes > len(buf) {
					return eris.Errorf("tiff: tile %d truncated", ty*across+tx)
				}
				row := buf[start : start+rowBytes]
				l.undoPredictor(row, d.order)
				for c := 0; c < tw; c++ {
					gc := tx*tw + c
					if gc >= g.Cols {
						break
					}
					g.Data[gr*g.Cols+gc] = l.sample(row, c, d.order)
				}
			}
		}
	}
	return nil
}

// undoPredictor reverses horizontal differencing in place for one row.
func (l sampleLayout) undoPredictor(row []byte, order binary.ByteOrder) {
	if l.predictor != predictorHorizontal {
		return
	}
	step := l.samples
	if l.planar == 2 {
		step = 1
	}
	switch l.bits {
	case 8:
		for i := step; i < len(row); i++ {
			row[i] += row[i-step]
		}
	case 16:
		for i := step * 2; i+2 <= len(row); i += 2 {
			v := order.Uint16(row[i:]) + order.Uint16(row[i-step*2:])
			order.PutUint16(row[i:], v)
		}
	case 32:
		for i := step * 4; i+4 <= len(row); i += 4 {
			v := order.Uint32(row[i:]) + order.Uint32(row[i-step*4:])
			order.PutUint32(row[i:], v)
		}
	}
}

// sample decodes the band-1 value of pixel col within row.
func (l sampleLayout) sample(row []byte, col int, order binary.ByteOrder) float64 {
	p := row[col*l.pixelStride():]
	switch l.format {
	case sampleFloat:
		if l.bits == 32 {
			return float64(math.Float32frombits(order.Uint32(p)))
		}
		return math.Float64frombits(order.Uint64(p))
	case sampleInt:
		switch l.bits {
		case 8:
			return float64(int8(p[0]))
		case 16:
			return float64(int16(order.Uint16(p)))
		default:
			return float64(int32(order.Uint32(p)))
		}
	default:
		switch l.bits {
		case 8:
			return float64(p[0])
		case 16:
			return float64(order.Uint16(p))
		default:
			return float64(order.Uint32(p))
		}
	}
}
