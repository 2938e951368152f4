package datfile

import (
	"io"
	"sort"

	"github.com/sells-group/flo2d-schematizer/internal/levee"
	"github.com/sells-group/flo2d-schematizer/internal/model"
)

// LeveeSide is a D line: one levee side of a cell.
type LeveeSide struct {
	Direction model.Direction
	Crest     float64
}

// LeveeCell groups the levee sides of one cell under an L line.
type LeveeCell struct {
	Cell  int64
	Sides []LeveeSide
}

// FailureSide is a W line: failure parameters of one levee side.
type FailureSide struct {
	Direction model.Direction
	FailElev  float64
	levee.FailureParams
}

// FailureCell groups failure sides of one cell under an F line.
type FailureCell struct {
	Cell  int64
	Sides []FailureSide
}

// Levee is the content of LEVEE.DAT.
type Levee struct {
	RaiseLev float64
	ILevFail int
	Cells    []LeveeCell
	Failures []FailureCell
}

// BuildLevee groups levee records and failures by cell in ascending cell and
// direction order. ILevFail is 1 when any failure exists.
func BuildLevee(records []levee.Record, failures []levee.Failure, raiseLev float64) *Levee {
	out := &Levee{RaiseLev: raiseLev}

	recs := append([]levee.Record(nil), records...)
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].CellID != recs[j].CellID {
			return recs[i].CellID < recs[j].CellID
		}
		return recs[i].Direction < recs[j].Direction
	})
	for _, r := range recs {
		if n := len(out.Cells); n == 0 || out.Cells[n-1].Cell != r.CellID {
			out.Cells = append(out.Cells, LeveeCell{Cell: r.CellID})
		}
		c := &out.Cells[len(out.Cells)-1]
		c.Sides = append(c.Sides, LeveeSide{Direction: r.Direction, Crest: r.Crest})
	}

	fails := append([]levee.Failure(nil), failures...)
	sort.Slice(fails, func(i, j int) bool {
		if fails[i].CellID != fails[j].CellID {
			return fails[i].CellID < fails[j].CellID
		}
		return fails[i].Direction < fails[j].Direction
	})
	for _, f := range fails {
		if n := len(out.Failures); n == 0 || out.Failures[n-1].Cell != f.CellID {
			out.Failures = append(out.Failures, FailureCell{Cell: f.CellID})
		}
		c := &out.Failures[len(out.Failures)-1]
		c.Sides = append(c.Sides, FailureSide{Direction: f.Direction, FailElev: f.FailElev, FailureParams: f.FailureParams})
	}
	if len(out.Failures) > 0 {
		out.ILevFail = 1
	}
	return out
}

// Write serializes LEVEE.DAT.
func (l *Levee) Write(w io.Writer) error {
	lw := newLineWriter(w)
	lw.put(F(l.RaiseLev), itoa(int64(l.ILevFail)))
	for _, c := range l.Cells {
		lw.put("L", itoa(c.Cell))
		for _, s := range c.Sides {
			lw.put("D", itoa(int64(s.Direction)), F(s.Crest))
		}
	}
	for _, c := range l.Failures {
		lw.put("F", itoa(c.Cell))
		for _, s := range c.Sides {
			lw.put("W", itoa(int64(s.Direction)), F(s.FailElev), F(s.FailTime), F(s.LevBase),
				F(s.FailWidthMax), F(s.FailRate), F(s.FailWidRate))
		}
	}
	return lw.flush("LEVEE.DAT")
}

// ParseLevee reads LEVEE.DAT.
func ParseLevee(r io.Reader) (*Levee, error) {
	s := newScanner(r, "LEVEE.DAT")
	f, ok := s.next()
	if !ok {
		return nil, s.errorf("missing RAISELEV ILEVFAIL header")
	}
	if len(f) != 2 {
		return nil, s.errorf("header needs RAISELEV and ILEVFAIL")
	}
	raise, err := s.float(f[0])
	if err != nil {
		return nil, err
	}
	ilev, err := s.int(f[1])
	if err != nil {
		return nil, err
	}
	out := &Levee{RaiseLev: raise, ILevFail: int(ilev)}

	for {
		f, ok := s.next()
		if !ok {
			break
		}
		switch f[0] {
		case "L", "F":
			if len(f) != 2 {
				return nil, s.errorf("%s line needs a cell", f[0])
			}
			cell, err := s.int(f[1])
			if err != nil {
				return nil, err
			}
			if f[0] == "L" {
				out.Cells = append(out.Cells, LeveeCell{Cell: cell})
			} else {
				out.Failures = append(out.Failures, FailureCell{Cell: cell})
			}
		case "D":
			if len(out.Cells) == 0 || len(f) != 3 {
				return nil, s.errorf("malformed D line")
			}
			d, err := parseDirection(s, f[1])
			if err != nil {
				return nil, err
			}
			crest, err := s.float(f[2])
			if err != nil {
				return nil, err
			}
			c := &out.Cells[len(out.Cells)-1]
			c.Sides = append(c.Sides, LeveeSide{Direction: d, Crest: crest})
		case "W":
			if len(out.Failures) == 0 || len(f) != 8 {
				return nil, s.errorf("malformed W line")
			}
			d, err := parseDirection(s, f[1])
			if err != nil {
				return nil, err
			}
			v, err := s.floats(f[2:])
			if err != nil {
				return nil, err
			}
			c := &out.Failures[len(out.Failures)-1]
			c.Sides = append(c.Sides, FailureSide{Direction: d, FailElev: v[0], FailureParams: levee.FailureParams{
				FailTime: v[1], LevBase: v[2], FailWidthMax: v[3], FailRate: v[4], FailWidRate: v[5],
			}})
		default:
			return nil, s.errorf("unexpected line starting with %q", f[0])
		}
	}
	return out, s.err()
}

func parseDirection(s *scanner, f string) (model.Direction, error) {
	n, err := s.int(f)
	if err != nil {
		return 0, err
	}
	d, err := model.ParseDirection(int(n))
	if err != nil {
		return 0, s.errorf("%v", err)
	}
	return d, nil
}
