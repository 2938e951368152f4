package xsec

import (
	"sort"
	"strconv"

	"github.com/rotisserie/eris"
)

// Catalog is the set of user cross-sections of a project, with unique names.
type Catalog struct {
	byFID map[int64]*CrossSection
	names map[string]int64
}

// NewCatalog returns a catalog holding xs.
func NewCatalog(xs ...*CrossSection) (*Catalog, error) {
	c := &Catalog{byFID: map[int64]*CrossSection{}, names: map[string]int64{}}
	for _, x := range xs {
		if err := c.Add(x); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Add registers a cross-section. Unnamed sections get a generated name.
func (c *Catalog) Add(x *CrossSection) error {
	if _, dup := c.byFID[x.FID]; dup {
		return eris.Errorf("xsec: duplicate cross-section fid %d", x.FID)
	}
	if x.Name == "" {
		x.Name = c.freeName(x.FID)
	}
	if other, dup := c.names[x.Name]; dup {
		return eris.Errorf("xsec: name %q already used by fid %d", x.Name, other)
	}
	c.byFID[x.FID] = x
	c.names[x.Name] = x.FID
	return nil
}

// Get returns the cross-section with the given fid.
func (c *Catalog) Get(fid int64) (*CrossSection, bool) {
	x, ok := c.byFID[fid]
	return x, ok
}

// Len returns the number of cross-sections.
func (c *Catalog) Len() int { return len(c.byFID) }

// All returns the cross-sections ordered by fid.
func (c *Catalog) All() []*CrossSection {
	out := make([]*CrossSection, 0, len(c.byFID))
	for _, x := range c.byFID {
		out = append(out, x)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FID < out[j].FID })
	return out
}

// Clone returns a catalog holding deep copies of every cross-section.
func (c *Catalog) Clone() *Catalog {
	out := &Catalog{byFID: make(map[int64]*CrossSection, len(c.byFID)), names: make(map[string]int64, len(c.names))}
	for fid, x := range c.byFID {
		out.byFID[fid] = x.Clone()
	}
	for name, fid := range c.names {
		out.names[name] = fid
	}
	return out
}

// Rename changes the name of a cross-section. New names must be unique.
func (c *Catalog) Rename(fid int64, name string) error {
	x, ok := c.byFID[fid]
	if !ok {
		return eris.Errorf("xsec: unknown cross-section fid %d", fid)
	}
	if name == "" {
		return eris.New("xsec: name must not be empty")
	}
	if other, dup := c.names[name]; dup && other != fid {
		return eris.Errorf("xsec: name %q already used by fid %d", name, other)
	}
	delete(c.names, x.Name)
	x.Name = name
	c.names[name] = fid
	return nil
}

func (c *Catalog) freeName(fid int64) string {
	for n := fid; ; n++ {
		name := "XS" + strconv.FormatInt(n, 10)
		if _, used := c.names[name]; !used {
			return name
		}
	}
}
