package geo

import "math"

// sphereRadiusM matches the spherical earth used by classic basemap tooling.
const sphereRadiusM = 6370997.0

// LambertConformal is a spherical Lambert conformal conic projection.
type LambertConformal struct {
	origin Point
	n      float64
	f      float64
	rho0   float64
}

// NewLambertConformal builds a projection centred on origin with the two
// standard parallels (degrees). Passing the same parallel twice gives the
// single-parallel tangent form.
func NewLambertConformal(origin Point, std1, std2 float64) *LambertConformal {
	phi1 := radians(std1)
	phi2 := radians(std2)

	var n float64
	if math.Abs(phi1-phi2) < 1e-10 {
		n = math.Sin(phi1)
	} else {
		n = math.Log(math.Cos(phi1)/math.Cos(phi2)) /
			math.Log(math.Tan(math.Pi/4+phi2/2)/math.Tan(math.Pi/4+phi1/2))
	}
	f := math.Cos(phi1) * math.Pow(math.Tan(math.Pi/4+phi1/2), n) / n
	rho0 := sphereRadiusM * f / math.Pow(math.Tan(math.Pi/4+radians(origin.Lat)/2), n)

	return &LambertConformal{origin: origin, n: n, f: f, rho0: rho0}
}

// Project returns planar coordinates in metres relative to the origin,
// x growing east and y growing north.
func (l *LambertConformal) Project(p Point) (x, y float64) {
	rho := sphereRadiusM * l.f / math.Pow(math.Tan(math.Pi/4+radians(p.Lat)/2), l.n)
	theta := l.n * radians(p.Lon-l.origin.Lon)
	return rho * math.Sin(theta), l.rho0 - rho*math.Cos(theta)
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }
