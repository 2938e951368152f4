package datfile

import (
	"io"

	"github.com/sells-group/flo2d-schematizer/internal/fpxs"
	"github.com/sells-group/flo2d-schematizer/internal/model"
)

// FPSection is one X line of FPXSEC.DAT.
type FPSection struct {
	Iflo  model.Direction
	Cells []int64
}

// FPXSec is the content of FPXSEC.DAT.
type FPXSec struct {
	NXPRT    int
	Sections []FPSection
}

// BuildFPXSec maps schematized floodplain cross-sections in their given
// order.
func BuildFPXSec(sections []fpxs.Section, nxprt int) *FPXSec {
	out := &FPXSec{NXPRT: nxprt}
	for _, s := range sections {
		out.Sections = append(out.Sections, FPSection{Iflo: s.Iflo, Cells: append([]int64(nil), s.Cells...)})
	}
	return out
}

// Write serializes FPXSEC.DAT.
func (f *FPXSec) Write(w io.Writer) error {
	lw := newLineWriter(w)
	lw.put("P", itoa(int64(f.NXPRT)))
	for _, s := range f.Sections {
		fields := []string{"X", itoa(int64(s.Iflo)), itoa(int64(len(s.Cells)))}
		for _, c := range s.Cells {
			fields = append(fields, itoa(c))
		}
		lw.put(fields...)
	}
	return lw.flush("FPXSEC.DAT")
}

// ParseFPXSec reads FPXSEC.DAT. The cell count of every X line must match
// the cells listed on it.
func ParseFPXSec(r io.Reader) (*FPXSec, error) {
	s := newScanner(r, "FPXSEC.DAT")
	f, ok := s.next()
	if !ok || f[0] != "P" || len(f) != 2 {
		return nil, s.errorf("missing P NXPRT header")
	}
	nxprt, err := s.int(f[1])
	if err != nil {
		return nil, err
	}
	out := &FPXSec{NXPRT: int(nxprt)}
	for {
		f, ok := s.next()
		if !ok {
			break
		}
		if f[0] != "X" || len(f) < 3 {
			return nil, s.errorf("expected X iflo n cells...")
		}
		head, err := s.ints(f[1:3])
		if err != nil {
			return nil, err
		}
		iflo, err := model.ParseDirection(int(head[0]))
		if err != nil {
			return nil, s.errorf("%v", err)
		}
		cells, err := s.ints(f[3:])
		if err != nil {
			return nil, err
		}
		if int64(len(cells)) != head[1] {
			return nil, s.errorf("declares %d cells, lists %d", head[1], len(cells))
		}
		out.Sections = append(out.Sections, FPSection{Iflo: iflo, Cells: cells})
	}
	return out, s.err()
}
