package levee

import (
	"github.com/sells-group/flo2d-schematizer/internal/grid"
	"github.com/sells-group/flo2d-schematizer/internal/model"
)

// Deduplicate removes levee sides that face another levee across the same
// cell edge. For each opposing pair the side with the higher crest stays; on
// equal crests the side of the lower cell id stays. The result does not
// depend on input order and is sorted by cell and direction. Records must be
// unique per (cell, direction).
func Deduplicate(g *grid.Grid, records []Record) []Record {
	cols, rows := g.Dims()
	size := cols * rows

	// slot[d][i] is the position in records of the side d of the cell at dense
	// index i, or -1.
	var slot [9][]int
	for d := 1; d <= 8; d++ {
		slot[d] = make([]int, size)
		for i := range slot[d] {
			slot[d][i] = -1
		}
	}
	for i, r := range records {
		if di, ok := g.DenseIndex(r.CellID); ok && r.Direction.Valid() {
			slot[r.Direction][di] = i
		}
	}

	drop := make([]bool, len(records))
	for _, pair := range model.OpposingPairs {
		d1, d2 := pair[0], pair[1]
		dx, dy := d1.Offset()
		for col := 0; col < cols; col++ {
			for row := 0; row < rows; row++ {
				a := slot[d1][row*cols+col]
				if a < 0 {
					continue
				}
				nc, nr := col+dx, row+dy
				if nc < 0 || nc >= cols || nr < 0 || nr >= rows {
					continue
				}
				b := slot[d2][nr*cols+nc]
				if b < 0 {
					continue
				}
				if keepFirst(records[a], records[b]) {
					drop[b] = true
				} else {
					drop[a] = true
				}
			}
		}
	}

	out := make([]Record, 0, len(records))
	for i, r := range records {
		if !drop[i] {
			out = append(out, r)
		}
	}
	sortRecords(out)
	return out
}

func keepFirst(a, b Record) bool {
	if a.Crest != b.Crest {
		return a.Crest > b.Crest
	}
	return a.CellID < b.CellID
}
