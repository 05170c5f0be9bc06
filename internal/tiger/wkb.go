package tiger

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"

	"github.com/sells-group/gridlink/internal/geo"
)

// EncodeGeometry marshals g as little-endian EWKB, tagging it with SRID 4326
// when it carries none.
func EncodeGeometry(g geom.T) ([]byte, error) {
	if g == nil {
		return nil, nil
	}
	if g.SRID() == 0 {
		switch t := g.(type) {
		case *geom.Point:
			t.SetSRID(geo.SRID)
		case *geom.LineString:
			t.SetSRID(geo.SRID)
		case *geom.MultiLineString:
			t.SetSRID(geo.SRID)
		case *geom.Polygon:
			t.SetSRID(geo.SRID)
		case *geom.MultiPolygon:
			t.SetSRID(geo.SRID)
		}
	}
	data, err := ewkb.Marshal(g, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "tiger: encode WKB")
	}
	return data, nil
}
