package geo

import (
	"github.com/twpayne/go-geom"
)

// PointInRing reports whether (x, y) lies inside the closed ring described by
// flat XY coordinates, using the even-odd rule.
func PointInRing(flat []float64, stride int, x, y float64) bool {
	if stride < 2 {
		stride = 2
	}
	n := len(flat) / stride
	if n < 3 {
		return false
	}

	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := flat[i*stride], flat[i*stride+1]
		xj, yj := flat[j*stride], flat[j*stride+1]
		if (yi > y) != (yj > y) && x < (xj-xi)*(y-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}

// PointInPolygon reports whether p lies in the polygon's exterior ring and
// outside all of its holes.
func PointInPolygon(poly *geom.Polygon, p Point) bool {
	if poly == nil || poly.NumLinearRings() == 0 {
		return false
	}
	stride := poly.Stride()
	if !PointInRing(poly.LinearRing(0).FlatCoords(), stride, p.Lon, p.Lat) {
		return false
	}
	for i := 1; i < poly.NumLinearRings(); i++ {
		if PointInRing(poly.LinearRing(i).FlatCoords(), stride, p.Lon, p.Lat) {
			return false
		}
	}
	return true
}

// PointInGeometry handles Polygon and MultiPolygon geometries; anything else
// never contains a point.
func PointInGeometry(g geom.T, p Point) bool {
	switch t := g.(type) {
	case *geom.Polygon:
		return PointInPolygon(t, p)
	case *geom.MultiPolygon:
		for i := 0; i < t.NumPolygons(); i++ {
			if PointInPolygon(t.Polygon(i), p) {
				return true
			}
		}
	}
	return false
}

// BoundsOf returns the lat/lon box of a geometry.
func BoundsOf(g geom.T) BBox {
	b := g.Bounds()
	return BBox{MinLon: b.Min(0), MinLat: b.Min(1), MaxLon: b.Max(0), MaxLat: b.Max(1)}
}
