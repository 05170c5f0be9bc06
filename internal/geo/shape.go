package geo

import (
	"github.com/jonas-p/go-shp"
	"github.com/twpayne/go-geom"
)

// SRID is the spatial reference of every geometry gridlink produces.
const SRID = 4326

// FromShape converts a go-shp record to a go-geom geometry tagged with
// SRID 4326. Points become Points, polylines MultiLineStrings and polygons
// MultiPolygons. Polygon rings follow the shapefile convention: a clockwise
// ring starts a new polygon and each counter-clockwise ring is a hole of the
// polygon before it. Returns nil for nil, empty or unsupported shapes.
func FromShape(shape shp.Shape) geom.T {
	switch s := shape.(type) {
	case *shp.Point:
		if s == nil {
			return nil
		}
		return geom.NewPointFlat(geom.XY, []float64{s.X, s.Y}).SetSRID(SRID)
	case *shp.PolyLine:
		if s == nil {
			return nil
		}
		return lineParts(s.Parts, s.Points)
	case *shp.Polygon:
		if s == nil {
			return nil
		}
		return polygonParts(s.Parts, s.Points)
	}
	return nil
}

// parts splits shapefile points into flat XY slices, one per part.
func parts(starts []int32, points []shp.Point) [][]float64 {
	out := make([][]float64, 0, len(starts))
	for i, start := range starts {
		end := int32(len(points))
		if i+1 < len(starts) {
			end = starts[i+1]
		}
		if start < 0 || end > int32(len(points)) || start >= end {
			continue
		}
		flat := make([]float64, 0, 2*(end-start))
		for _, p := range points[start:end] {
			flat = append(flat, p.X, p.Y)
		}
		out = append(out, flat)
	}
	return out
}

func lineParts(starts []int32, points []shp.Point) geom.T {
	mls := geom.NewMultiLineString(geom.XY).SetSRID(SRID)
	for _, flat := range parts(starts, points) {
		if len(flat) < 4 {
			continue
		}
		if err := mls.Push(geom.NewLineStringFlat(geom.XY, flat)); err != nil {
			continue
		}
	}
	if mls.NumLineStrings() == 0 {
		return nil
	}
	return mls
}

func polygonParts(starts []int32, points []shp.Point) geom.T {
	mp := geom.NewMultiPolygon(geom.XY).SetSRID(SRID)
	var current *geom.Polygon
	flush := func() {
		if current != nil {
			_ = mp.Push(current)
		}
	}

	for _, flat := range parts(starts, points) {
		if len(flat) < 8 {
			continue
		}
		ring := geom.NewLinearRingFlat(geom.XY, flat)
		if current == nil || SignedArea(flat) <= 0 {
			flush()
			current = geom.NewPolygon(geom.XY)
		}
		if err := current.Push(ring); err != nil {
			continue
		}
	}
	flush()

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}

// SignedArea returns the shoelace area of a flat XY ring: positive for
// counter-clockwise rings, negative for clockwise ones.
func SignedArea(flat []float64) float64 {
	n := len(flat) / 2
	var sum float64
	for i := range n {
		j := (i + 1) % n
		sum += flat[2*i]*flat[2*j+1] - flat[2*j]*flat[2*i+1]
	}
	return sum / 2
}
