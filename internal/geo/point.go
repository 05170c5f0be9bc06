// Package geo provides the coordinate types, distance metrics, projections and
// polygon tests shared by the dataset, optimizer and rendering packages.
package geo

import (
	"math"
	"strings"

	"github.com/rotisserie/eris"
)

// EarthRadiusKM is the mean Earth radius used by the haversine metric.
const EarthRadiusKM = 6371.0088

// Point is a WGS84 coordinate in decimal degrees.
type Point struct {
	Lat float64 `json:"latitude"`
	Lon float64 `json:"longitude"`
}

// Valid reports whether the point has finite, in-range coordinates.
func (p Point) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lon, 0) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

// BBox is a latitude/longitude bounding box. Bounds are inclusive.
type BBox struct {
	MinLat float64 `json:"min_lat"`
	MaxLat float64 `json:"max_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLon float64 `json:"max_lon"`
}

// Contains reports whether p lies inside the box, edges included.
func (b BBox) Contains(p Point) bool {
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat &&
		p.Lon >= b.MinLon && p.Lon <= b.MaxLon
}

// Center returns the midpoint of the box.
func (b BBox) Center() Point {
	return Point{Lat: (b.MinLat + b.MaxLat) / 2, Lon: (b.MinLon + b.MaxLon) / 2}
}

// PennsylvaniaBBox is the rough state extent used to select renewable sites.
var PennsylvaniaBBox = BBox{MinLat: 39.7, MaxLat: 42.5, MinLon: -80.5, MaxLon: -74.7}

// PennsylvaniaCenter is the geographic centre of Pennsylvania.
var PennsylvaniaCenter = Point{Lat: 40.9699, Lon: -77.7278}

// Metric selects how distances between sites and substations are measured.
type Metric string

const (
	// Planar is the straight-line distance in degrees of latitude/longitude.
	Planar Metric = "planar"
	// Haversine is the great-circle distance in kilometres.
	Haversine Metric = "haversine"
)

// ParseMetric converts a config string into a Metric.
func ParseMetric(s string) (Metric, error) {
	switch Metric(strings.ToLower(strings.TrimSpace(s))) {
	case Planar, "":
		return Planar, nil
	case Haversine:
		return Haversine, nil
	default:
		return "", eris.Errorf("geo: unknown distance metric %q (valid: planar, haversine)", s)
	}
}

// Unit returns the distance unit the metric produces.
func (m Metric) Unit() string {
	if m == Haversine {
		return "km"
	}
	return "deg"
}

// Distance returns the distance between a and b under the metric.
func Distance(m Metric, a, b Point) float64 {
	if m == Haversine {
		return HaversineKM(a, b)
	}
	return PlanarDegrees(a, b)
}

// PlanarDegrees is the Euclidean distance between two points treating
// latitude and longitude as plane coordinates.
func PlanarDegrees(a, b Point) float64 {
	return math.Hypot(b.Lat-a.Lat, b.Lon-a.Lon)
}

// HaversineKM is the great-circle distance between two points in kilometres.
func HaversineKM(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := lat2 - lat1
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	if h > 1 {
		h = 1
	}
	return 2 * EarthRadiusKM * math.Asin(math.Sqrt(h))
}
