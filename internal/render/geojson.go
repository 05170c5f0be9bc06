package render

import (
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/gridlink/internal/geo"
	"github.com/sells-group/gridlink/internal/model"
)

func pointGeom(p geo.Point) *geom.Point {
	return geom.NewPointFlat(geom.XY, []float64{p.Lon, p.Lat})
}

func lineGeom(a, b geo.Point) *geom.LineString {
	return geom.NewLineStringFlat(geom.XY, []float64{a.Lon, a.Lat, b.Lon, b.Lat})
}

func newCollection(n int) *geojson.FeatureCollection {
	return &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, n)}
}

// PlanGeoJSON returns the plan's substations, sites and chosen connections
// as one FeatureCollection. Features carry a "kind" property.
func PlanGeoJSON(plan *model.Plan) *geojson.FeatureCollection {
	var conns int
	if plan.Solution != nil {
		conns = len(plan.Solution.Connections)
	}
	fc := newCollection(len(plan.Substations) + len(plan.Sites) + conns)

	for j, s := range plan.Substations {
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:       s.ID,
			Geometry: pointGeom(s.Location),
			Properties: map[string]interface{}{
				"kind":  "substation",
				"index": j,
				"name":  s.Name,
			},
		})
	}
	for i, s := range plan.Sites {
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:       s.ID,
			Geometry: pointGeom(s.Location),
			Properties: map[string]interface{}{
				"kind":        "site",
				"index":       i,
				"name":        s.Name,
				"capacity_mw": s.CapacityMW,
			},
		})
	}
	if plan.Solution == nil {
		return fc
	}

	cables := plan.Network.Cables
	for _, c := range plan.Solution.Connections {
		if c.Site < 0 || c.Site >= len(plan.Sites) || c.Substation < 0 || c.Substation >= len(plan.Substations) {
			continue
		}
		site := plan.Sites[c.Site]
		sub := plan.Substations[c.Substation]
		props := map[string]interface{}{
			"kind":          "connection",
			"site_id":       site.ID,
			"substation_id": sub.ID,
			"cable_index":   c.Cable,
			"distance":      c.Distance,
			"cost":          c.Cost,
			"color":         CableColor(c.Cable),
		}
		if c.Cable >= 0 && c.Cable < len(cables) {
			props["cable"] = cables[c.Cable].Name
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			Geometry:   lineGeom(site.Location, sub.Location),
			Properties: props,
		})
	}
	return fc
}

func markerCollection(markers []Marker) *geojson.FeatureCollection {
	fc := newCollection(len(markers))
	for _, m := range markers {
		fc.Features = append(fc.Features, &geojson.Feature{
			Geometry:   pointGeom(m.Location),
			Properties: map[string]interface{}{"label": m.Label},
		})
	}
	return fc
}

func linkCollection(links []Link) *geojson.FeatureCollection {
	fc := newCollection(len(links))
	for _, l := range links {
		fc.Features = append(fc.Features, &geojson.Feature{
			Geometry:   lineGeom(l.From, l.To),
			Properties: map[string]interface{}{"color": CableColor(l.Cable)},
		})
	}
	return fc
}
