package grid

import "github.com/rotisserie/eris"

// ElevationFunc returns the elevation of the cell at a lattice index.
type ElevationFunc func(col, row int) float64

// NewRegular builds a fully populated cols x rows grid whose south-west
// centroid is (x0, y0). Cells are numbered column by column from the south,
// so the id of (col, row) is col*rows + row + 1.
func NewRegular(cols, rows int, cellSize, x0, y0 float64, elev ElevationFunc) (*Grid, error) {
	if cols <= 0 || rows <= 0 {
		return nil, eris.Errorf("grid: invalid dimensions %dx%d", cols, rows)
	}
	cells := make([]Cell, 0, cols*rows)
	for col := 0; col < cols; col++ {
		for row := 0; row < rows; row++ {
			c := Cell{
				ID: RegularID(col, row, rows),
				X:  x0 + float64(col)*cellSize,
				Y:  y0 + float64(row)*cellSize,
			}
			if elev != nil {
				c.Elevation = elev(col, row)
			}
			cells = append(cells, c)
		}
	}
	return New(cellSize, cells)
}

// RegularID returns the id NewRegular assigns to (col, row).
func RegularID(col, row, rows int) int64 {
	return int64(col*rows + row + 1)
}
