package raster

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// decodeASCII parses an ESRI ASCII grid. The header keys are case-insensitive;
// both corner and centre registration are accepted.
func decodeASCII(r io.Reader) (*Grid, []float64, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 1024*1024), 64*1024*1024)
	sc.Split(bufio.ScanWords)

	header := make(map[string]float64, 6)
	var first string
	for sc.Scan() {
		tok := sc.Text()
		key := strings.ToLower(tok)
		if _, err := strconv.ParseFloat(tok, 64); err == nil {
			first = tok
			break
		}
		if !sc.Scan() {
			return nil, nil, eris.Errorf("asc: header key %q has no value", tok)
		}
		v, err := strconv.ParseFloat(sc.Text(), 64)
		if err != nil {
			return nil, nil, eris.Wrapf(err, "asc: header %s", key)
		}
		header[key] = v
	}

	cols, rows := int(header["ncols"]), int(header["nrows"])
	if cols <= 0 || rows <= 0 {
		return nil, nil, eris.New("asc: missing ncols/nrows")
	}
	dx, okX := header["cellsize"]
	dy := dx
	if !okX {
		dx, okX = header["dx"]
		dy, _ = header["dy"]
	}
	if !okX || dx <= 0 || dy <= 0 {
		return nil, nil, eris.New("asc: missing cellsize")
	}

	var originX, originY float64
	if x, ok := header["xllcorner"]; ok {
		originX = x
	} else if x, ok := header["xllcenter"]; ok {
		originX = x - dx/2
	} else {
		return nil, nil, eris.New("asc: missing xllcorner")
	}
	if y, ok := header["yllcorner"]; ok {
		originY = y + float64(rows)*dy
	} else if y, ok := header["yllcenter"]; ok {
		originY = y - dy/2 + float64(rows)*dy
	} else {
		return nil, nil, eris.New("asc: missing yllcorner")
	}

	var nodata []float64
	if v, ok := header["nodata_value"]; ok {
		nodata = append(nodata, v)
	}

	g := &Grid{
		Rows:      rows,
		Cols:      cols,
		Data:      make([]float64, 0, rows*cols),
		Transform: Transform{OriginX: originX, OriginY: originY, PixelWidth: dx, PixelHeight: -dy},
	}

	if first != "" {
		v, _ := strconv.ParseFloat(first, 64)
		g.Data = append(g.Data, v)
	}
	for len(g.Data) < rows*cols && sc.Scan() {
		v, err := strconv.ParseFloat(sc.Text(), 64)
		if err != nil {
			return nil, nil, eris.Wrapf(err, "asc: cell %d", len(g.Data))
		}
		g.Data = append(g.Data, v)
	}
	if err := sc.Err(); err != nil {
		return nil, nil, eris.Wrap(err, "asc: scan")
	}
	if len(g.Data) != rows*cols {
		return nil, nil, eris.Errorf("asc: expected %d cells, read %d", rows*cols, len(g.Data))
	}
	return g, nodata, nil
}
