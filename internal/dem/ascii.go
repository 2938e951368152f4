// Package dem reads ESRI ASCII elevation rasters and samples them.
package dem

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// DefaultNoData is used when the header carries no NODATA_value.
const DefaultNoData = -9999

// Raster is an ESRI ASCII grid. Data[0] is the northernmost row.
type Raster struct {
	NCols, NRows     int
	XCorner, YCorner float64
	CellSize         float64
	NoData           float64
	Data             [][]float64
}

// Open reads an ESRI ASCII grid from path.
func Open(path string) (*Raster, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "dem: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	r, err := ReadASCII(f)
	if err != nil {
		return nil, eris.Wrapf(err, "dem: read %s", path)
	}
	return r, nil
}

// ReadASCII parses an ESRI ASCII grid. Both corner and centre
// registrations are accepted.
func ReadASCII(rd io.Reader) (*Raster, error) {
	sc := bufio.NewScanner(rd)
	sc.Buffer(make([]byte, 1024*1024), 64*1024*1024)
	sc.Split(bufio.ScanWords)

	r := &Raster{NoData: DefaultNoData}
	header := map[string]float64{}
	var first string
	for sc.Scan() {
		tok := sc.Text()
		key := strings.ToLower(tok)
		if !isHeaderKey(key) {
			first = tok
			break
		}
		if !sc.Scan() {
			return nil, eris.Errorf("dem: header %s has no value", tok)
		}
		v, err := strconv.ParseFloat(sc.Text(), 64)
		if err != nil {
			return nil, eris.Wrapf(err, "dem: header %s", tok)
		}
		header[key] = v
	}

	for _, k := range []string{"ncols", "nrows", "cellsize"} {
		if _, ok := header[k]; !ok {
			return nil, eris.Errorf("dem: missing header %s", k)
		}
	}
	r.NCols, r.NRows = int(header["ncols"]), int(header["nrows"])
	r.CellSize = header["cellsize"]
	if r.NCols <= 0 || r.NRows <= 0 || r.CellSize <= 0 {
		return nil, eris.Errorf("dem: invalid raster %dx%d cell size %v", r.NCols, r.NRows, r.CellSize)
	}
	if v, ok := header["nodata_value"]; ok {
		r.NoData = v
	}
	switch {
	case hasKeys(header, "xllcorner", "yllcorner"):
		r.XCorner, r.YCorner = header["xllcorner"], header["yllcorner"]
	case hasKeys(header, "xllcenter", "yllcenter"):
		r.XCorner, r.YCorner = header["xllcenter"]-r.CellSize/2, header["yllcenter"]-r.CellSize/2
	default:
		return nil, eris.New("dem: missing lower-left corner or centre")
	}

	r.Data = make([][]float64, r.NRows)
	pending := first
	for row := 0; row < r.NRows; row++ {
		r.Data[row] = make([]float64, r.NCols)
		for col := 0; col < r.NCols; col++ {
			tok := pending
			pending = ""
			if tok == "" {
				if !sc.Scan() {
					return nil, eris.Errorf("dem: expected %d values, got %d", r.NCols*r.NRows, row*r.NCols+col)
				}
				tok = sc.Text()
			}
			v, err := strconv.ParseFloat(tok, 64)
			if err != nil {
				return nil, eris.Wrapf(err, "dem: value at row %d col %d", row, col)
			}
			r.Data[row][col] = v
		}
	}
	if err := sc.Err(); err != nil {
		return nil, eris.Wrap(err, "dem: scan")
	}
	return r, nil
}

// WriteASCII writes r in ESRI ASCII format with corner registration.
func (r *Raster) WriteASCII(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "ncols %d\nnrows %d\nxllcorner %s\nyllcorner %s\ncellsize %s\nNODATA_value %s\n",
		r.NCols, r.NRows, ff(r.XCorner), ff(r.YCorner), ff(r.CellSize), ff(r.NoData))
	for _, row := range r.Data {
		for c, v := range row {
			if c > 0 {
				bw.WriteByte(' ') //nolint:errcheck
			}
			bw.WriteString(ff(v)) //nolint:errcheck
		}
		bw.WriteByte('\n') //nolint:errcheck
	}
	return eris.Wrap(bw.Flush(), "dem: write")
}

// Value returns the raster value at (col, row), false for no-data or out of
// bounds.
func (r *Raster) Value(col, row int) (float64, bool) {
	if col < 0 || row < 0 || col >= r.NCols || row >= r.NRows {
		return 0, false
	}
	v := r.Data[row][col]
	if v == r.NoData || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// Contains reports whether (x, y) lies inside the raster extent.
func (r *Raster) Contains(x, y float64) bool {
	return x >= r.XCorner && x <= r.XCorner+float64(r.NCols)*r.CellSize &&
		y >= r.YCorner && y <= r.YCorner+float64(r.NRows)*r.CellSize
}

// Nearest samples the cell containing (x, y).
func (r *Raster) Nearest(x, y float64) (float64, bool) {
	if !r.Contains(x, y) {
		return 0, false
	}
	col := int(math.Floor((x - r.XCorner) / r.CellSize))
	row := int(math.Floor((r.top() - y) / r.CellSize))
	return r.Value(clamp(col, r.NCols), clamp(row, r.NRows))
}

// Bilinear interpolates between the four cell centres around (x, y). Near
// the raster edge or next to no-data it falls back to the nearest cell.
func (r *Raster) Bilinear(x, y float64) (float64, bool) {
	if !r.Contains(x, y) {
		return 0, false
	}
	fx := (x-r.XCorner)/r.CellSize - 0.5
	fy := (r.top()-y)/r.CellSize - 0.5
	c0, r0 := int(math.Floor(fx)), int(math.Floor(fy))
	tx, ty := fx-float64(c0), fy-float64(r0)

	z00, ok00 := r.Value(c0, r0)
	z10, ok10 := r.Value(c0+1, r0)
	z01, ok01 := r.Value(c0, r0+1)
	z11, ok11 := r.Value(c0+1, r0+1)
	if !ok00 || !ok10 || !ok01 || !ok11 {
		return r.Nearest(x, y)
	}
	top := z00*(1-tx) + z10*tx
	bottom := z01*(1-tx) + z11*tx
	return top*(1-ty) + bottom*ty, true
}

func (r *Raster) top() float64 {
	return r.YCorner + float64(r.NRows)*r.CellSize
}

func isHeaderKey(k string) bool {
	switch k {
	case "ncols", "nrows", "xllcorner", "yllcorner", "xllcenter", "yllcenter", "cellsize", "nodata_value":
		return true
	}
	return false
}

func hasKeys(m map[string]float64, keys ...string) bool {
	for _, k := range keys {
		if _, ok := m[k]; !ok {
			return false
		}
	}
	return true
}

func clamp(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

func ff(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
