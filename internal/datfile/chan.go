package datfile

import (
	"fmt"
	"io"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/flo2d-schematizer/internal/channel"
	"github.com/sells-group/flo2d-schematizer/internal/confluence"
	"github.com/sells-group/flo2d-schematizer/internal/xsec"
)

// Element is one channel element line of CHAN.DAT.
type Element struct {
	Type xsec.Type
	Grid int64
	FCN  float64
	XLen float64
	// Params holds the parametric row in signature order; empty for N.
	Params   []float64
	NXSecNum int
}

// Segment is one channel segment of CHAN.DAT.
type Segment struct {
	DepInitial float64
	FroudC     float64
	RoughAdj   float64
	// Isedn is nil when sediment transport is off.
	Isedn    *int
	WSE      *channel.WaterSurface
	Elements []Element
}

// ConfluencePair is a C line: tributary cell and receiving cell.
type ConfluencePair struct {
	Tributary int64
	Main      int64
}

// Chan is the content of CHAN.DAT.
type Chan struct {
	Segments    []Segment
	Confluences []ConfluencePair
	NoExchange  []int64
}

// NaturalXS is one XSEC.DAT block.
type NaturalXS struct {
	Number   int
	Name     string
	Stations []xsec.Station
}

// ChanInput is what BuildChan serializes.
type ChanInput struct {
	Channels      []*channel.Channel
	CrossSections *xsec.Catalog
	Confluences   []confluence.Confluence
	NoExchange    []int64
	// ISED is the sediment switch; when off isedn is left blank.
	ISED bool
}

// BuildChan maps schematized channels onto CHAN.DAT records. Natural
// cross-sections are numbered densely in the order they are met, segment by
// segment; the returned slice holds their XSEC.DAT blocks.
func BuildChan(in ChanInput) (*Chan, []NaturalXS, error) {
	if in.CrossSections == nil {
		return nil, nil, eris.New("datfile: no cross-section catalog")
	}
	channels := append([]*channel.Channel(nil), in.Channels...)
	sort.Slice(channels, func(i, j int) bool { return channels[i].SegmentID < channels[j].SegmentID })

	out := &Chan{NoExchange: append([]int64(nil), in.NoExchange...)}
	var naturals []NaturalXS
	for _, c := range channels {
		seg := Segment{DepInitial: c.DepInitial, FroudC: c.FroudC, RoughAdj: c.RoughAdj, WSE: c.WSE}
		if in.ISED {
			isedn := c.Isedn
			seg.Isedn = &isedn
		}
		for _, sx := range c.XS {
			user, ok := in.CrossSections.Get(sx.UserXSFID)
			if !ok {
				return nil, nil, eris.Errorf("datfile: segment %d cross-section %d refers to unknown user cross-section %d",
					c.SegmentID, sx.Order, sx.UserXSFID)
			}
			el := Element{Type: user.Type(), Grid: sx.LeftCell, FCN: sx.FCN, XLen: sx.XLen}
			if user.Type() == xsec.Natural {
				name := user.Name
				if sx.Interpolated {
					name = fmt.Sprintf("%s_%d", user.Name, sx.Order)
				}
				el.NXSecNum = len(naturals) + 1
				naturals = append(naturals, NaturalXS{Number: el.NXSecNum, Name: name, Stations: user.Stations()})
			} else {
				el.Params = user.ParametricValues()
			}
			seg.Elements = append(seg.Elements, el)
		}
		out.Segments = append(out.Segments, seg)
	}
	for _, cf := range in.Confluences {
		out.Confluences = append(out.Confluences, ConfluencePair{Tributary: cf.TributaryCell, Main: cf.MainCell})
	}
	return out, naturals, nil
}

// Write serializes CHAN.DAT.
func (c *Chan) Write(w io.Writer) error {
	lw := newLineWriter(w)
	for _, seg := range c.Segments {
		header := []string{F(seg.DepInitial), F(seg.FroudC), F(seg.RoughAdj)}
		if seg.Isedn != nil {
			header = append(header, itoa(int64(*seg.Isedn)))
		}
		lw.put(header...)
		if seg.WSE != nil {
			lw.put("W", itoa(seg.WSE.IStart), F(seg.WSE.WSELStart), itoa(seg.WSE.IEnd), F(seg.WSE.WSELEnd))
		}
		for _, el := range seg.Elements {
			fields := []string{string(el.Type), itoa(el.Grid), F(el.FCN), F(el.XLen)}
			if el.Type == xsec.Natural {
				fields = append(fields, itoa(int64(el.NXSecNum)))
			} else {
				for _, v := range el.Params {
					fields = append(fields, F(v))
				}
			}
			lw.put(fields...)
		}
	}
	for _, cf := range c.Confluences {
		lw.put("C", itoa(cf.Tributary), itoa(cf.Main))
	}
	for _, cell := range c.NoExchange {
		lw.put("E", itoa(cell))
	}
	return lw.flush("CHAN.DAT")
}

// ParseChan reads CHAN.DAT.
func ParseChan(r io.Reader) (*Chan, error) {
	s := newScanner(r, "CHAN.DAT")
	out := &Chan{}
	var seg *Segment
	for {
		f, ok := s.next()
		if !ok {
			break
		}
		switch tag := f[0]; tag {
		case "R", "T", "V", "N":
			if seg == nil {
				return nil, s.errorf("element before the first segment header")
			}
			el, err := parseElement(s, xsec.Type(tag), f[1:])
			if err != nil {
				return nil, err
			}
			seg.Elements = append(seg.Elements, el)
		case "W":
			if seg == nil || len(f) != 5 {
				return nil, s.errorf("malformed water surface line")
			}
			istart, err := s.int(f[1])
			if err != nil {
				return nil, err
			}
			iend, err := s.int(f[3])
			if err != nil {
				return nil, err
			}
			v, err := s.floats([]string{f[2], f[4]})
			if err != nil {
				return nil, err
			}
			seg.WSE = &channel.WaterSurface{IStart: istart, WSELStart: v[0], IEnd: iend, WSELEnd: v[1]}
		case "C":
			if len(f) != 3 {
				return nil, s.errorf("confluence line needs two cells")
			}
			cells, err := s.ints(f[1:])
			if err != nil {
				return nil, err
			}
			out.Confluences = append(out.Confluences, ConfluencePair{Tributary: cells[0], Main: cells[1]})
		case "E":
			cells, err := s.ints(f[1:])
			if err != nil {
				return nil, err
			}
			out.NoExchange = append(out.NoExchange, cells...)
		default:
			if len(f) != 3 && len(f) != 4 {
				return nil, s.errorf("unexpected line starting with %q", tag)
			}
			v, err := s.floats(f[:3])
			if err != nil {
				return nil, err
			}
			out.Segments = append(out.Segments, Segment{DepInitial: v[0], FroudC: v[1], RoughAdj: v[2]})
			seg = &out.Segments[len(out.Segments)-1]
			if len(f) == 4 {
				n, err := s.int(f[3])
				if err != nil {
					return nil, err
				}
				isedn := int(n)
				seg.Isedn = &isedn
			}
		}
	}
	return out, s.err()
}

func parseElement(s *scanner, t xsec.Type, f []string) (Element, error) {
	if len(f) < 3 {
		return Element{}, s.errorf("%s line needs grid, fcn and xlen", t)
	}
	cell, err := s.int(f[0])
	if err != nil {
		return Element{}, err
	}
	v, err := s.floats(f[1:3])
	if err != nil {
		return Element{}, err
	}
	el := Element{Type: t, Grid: cell, FCN: v[0], XLen: v[1]}
	rest := f[3:]
	if t == xsec.Natural {
		if len(rest) != 1 {
			return Element{}, s.errorf("N line needs one cross-section number")
		}
		n, err := s.int(rest[0])
		if err != nil {
			return Element{}, err
		}
		el.NXSecNum = int(n)
		return el, nil
	}
	if want := len(xsec.TypeSignature()[t]); len(rest) != want {
		return Element{}, s.errorf("%s line needs %d values, got %d", t, want, len(rest))
	}
	if el.Params, err = s.floats(rest); err != nil {
		return Element{}, err
	}
	return el, nil
}

// WriteXSec serializes XSEC.DAT.
func WriteXSec(w io.Writer, naturals []NaturalXS) error {
	lw := newLineWriter(w)
	for _, n := range naturals {
		lw.put("X", itoa(int64(n.Number)), n.Name)
		for _, st := range n.Stations {
			lw.put(F(st.X), F(st.Y))
		}
	}
	return lw.flush("XSEC.DAT")
}

// ParseXSec reads XSEC.DAT.
func ParseXSec(r io.Reader) ([]NaturalXS, error) {
	s := newScanner(r, "XSEC.DAT")
	var out []NaturalXS
	for {
		f, ok := s.next()
		if !ok {
			break
		}
		if f[0] == "X" {
			if len(f) < 3 {
				return nil, s.errorf("X line needs a number and a name")
			}
			n, err := s.int(f[1])
			if err != nil {
				return nil, err
			}
			out = append(out, NaturalXS{Number: int(n), Name: joinName(f[2:])})
			continue
		}
		if len(out) == 0 || len(f) != 2 {
			return nil, s.errorf("station line outside a cross-section")
		}
		v, err := s.floats(f)
		if err != nil {
			return nil, err
		}
		cur := &out[len(out)-1]
		cur.Stations = append(cur.Stations, xsec.Station{X: v[0], Y: v[1]})
	}
	return out, s.err()
}

func joinName(f []string) string {
	name := f[0]
	for _, p := range f[1:] {
		name += " " + p
	}
	return name
}

// BankPair is one CHANBANK.DAT line.
type BankPair struct {
	Left  int64
	Right int64
}

// BuildChanBank lists the bank cells of every schematic cross-section.
func BuildChanBank(channels []*channel.Channel) []BankPair {
	sorted := append([]*channel.Channel(nil), channels...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].SegmentID < sorted[j].SegmentID })
	var out []BankPair
	for _, c := range sorted {
		for _, sx := range c.XS {
			out = append(out, BankPair{Left: sx.LeftCell, Right: sx.RightCell})
		}
	}
	return out
}

// WriteChanBank serializes CHANBANK.DAT.
func WriteChanBank(w io.Writer, pairs []BankPair) error {
	lw := newLineWriter(w)
	for _, p := range pairs {
		lw.put(itoa(p.Left), itoa(p.Right))
	}
	return lw.flush("CHANBANK.DAT")
}

// ParseChanBank reads CHANBANK.DAT.
func ParseChanBank(r io.Reader) ([]BankPair, error) {
	s := newScanner(r, "CHANBANK.DAT")
	var out []BankPair
	for {
		f, ok := s.next()
		if !ok {
			break
		}
		if len(f) != 2 {
			return nil, s.errorf("expected left and right cell")
		}
		cells, err := s.ints(f)
		if err != nil {
			return nil, err
		}
		out = append(out, BankPair{Left: cells[0], Right: cells[1]})
	}
	return out, s.err()
}
