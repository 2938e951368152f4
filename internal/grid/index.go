package grid

import (
	"sort"

	cgeom "github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"

	"github.com/sells-group/flo2d-schematizer/internal/geometry"
)

// SpatialIndex is a bounding-box index over user features.
type SpatialIndex struct {
	tree *rtree.Rtree
	size int
}

// indexEntry stores a feature box as the rtree geometry.
type indexEntry struct {
	cgeom.Geom
	fid int64
}

// NewSpatialIndex creates an empty index.
func NewSpatialIndex() *SpatialIndex {
	return &SpatialIndex{tree: rtree.NewTree(25, 50)}
}

// IndexPolylines builds an index over polylines keyed by feature id.
func IndexPolylines(features map[int64]geometry.Polyline) *SpatialIndex {
	ix := NewSpatialIndex()
	fids := make([]int64, 0, len(features))
	for fid := range features {
		fids = append(fids, fid)
	}
	sort.Slice(fids, func(i, j int) bool { return fids[i] < fids[j] })
	for _, fid := range fids {
		ix.Insert(fid, features[fid].Bounds())
	}
	return ix
}

// Insert adds a feature bounding box.
func (ix *SpatialIndex) Insert(fid int64, b geometry.BBox) {
	ix.tree.Insert(&indexEntry{Geom: toBounds(b), fid: fid})
	ix.size++
}

// Len returns the number of indexed features.
func (ix *SpatialIndex) Len() int { return ix.size }

// Intersects returns the ids of features whose boxes intersect b, ascending.
func (ix *SpatialIndex) Intersects(b geometry.BBox) []int64 {
	hits := ix.tree.SearchIntersect(toBounds(b))
	out := make([]int64, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.(*indexEntry).fid)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func toBounds(b geometry.BBox) *cgeom.Bounds {
	return &cgeom.Bounds{
		Min: cgeom.Point{X: b.MinX, Y: b.MinY},
		Max: cgeom.Point{X: b.MaxX, Y: b.MaxY},
	}
}
