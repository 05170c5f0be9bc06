package tiger

import (
	"sort"

	"github.com/sells-group/gridlink/internal/geo"
)

// Index answers point-in-subdivision queries. Candidates are narrowed by
// bounding box before the exact point-in-polygon test.
type Index struct {
	subs   []Subdivision
	bounds []geo.BBox
	order  []int // subdivision indices sorted by bounds.MinLon
}

// NewIndex builds an index over subs. The slice is retained, not copied.
func NewIndex(subs []Subdivision) *Index {
	idx := &Index{
		subs:   subs,
		bounds: make([]geo.BBox, len(subs)),
		order:  make([]int, len(subs)),
	}
	for i, s := range subs {
		if s.Geometry != nil && !s.Geometry.Empty() {
			idx.bounds[i] = geo.BoundsOf(s.Geometry)
		}
		idx.order[i] = i
	}
	sort.SliceStable(idx.order, func(a, b int) bool {
		return idx.bounds[idx.order[a]].MinLon < idx.bounds[idx.order[b]].MinLon
	})
	return idx
}

// Len returns the number of indexed subdivisions.
func (x *Index) Len() int { return len(x.subs) }

// Subdivisions returns the indexed subdivisions in input order.
func (x *Index) Subdivisions() []Subdivision { return x.subs }

// Locate returns the subdivision containing p, or nil. When subdivisions
// overlap the one earliest in input order wins.
func (x *Index) Locate(p geo.Point) *Subdivision {
	// Only entries with MinLon <= p.Lon can contain p.
	n := sort.Search(len(x.order), func(i int) bool {
		return x.bounds[x.order[i]].MinLon > p.Lon
	})
	best := -1
	for _, i := range x.order[:n] {
		if best >= 0 && i > best {
			continue
		}
		s := &x.subs[i]
		if s.Geometry == nil || !x.bounds[i].Contains(p) {
			continue
		}
		if geo.PointInGeometry(s.Geometry, p) {
			best = i
		}
	}
	if best < 0 {
		return nil
	}
	return &x.subs[best]
}
