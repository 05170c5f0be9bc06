package dataset

import (
	"github.com/sells-group/gridlink/internal/geo"
	"github.com/sells-group/gridlink/internal/metrics"
)

// Filter selects the records inside a study region. Empty fields match
// everything.
type Filter struct {
	State            string    // substation STATE
	Country          string    // plant country
	BBox             *geo.BBox // plant location, edges inclusive
	KnownVoltageOnly bool      // drop substations without MAX_VOLT
}

// FilterSubstations keeps substations whose STATE equals the filter's state
// exactly and, when KnownVoltageOnly is set, with a known MAX_VOLT. Order is
// preserved.
func FilterSubstations(subs []Substation, f Filter) []Substation {
	out := make([]Substation, 0, len(subs))
	for _, s := range subs {
		if f.State != "" && s.State != f.State {
			continue
		}
		if f.KnownVoltageOnly && s.MaxVolt == nil {
			continue
		}
		out = append(out, s)
	}
	metrics.RecordDatasetRows("substations", "filtered", len(subs)-len(out))
	return out
}

// FilterPlants keeps plants in the filter's country and bounding box.
// Order is preserved.
func FilterPlants(plants []Plant, f Filter) []Plant {
	out := make([]Plant, 0, len(plants))
	for _, p := range plants {
		if f.Country != "" && p.Country != f.Country {
			continue
		}
		if f.BBox != nil && !f.BBox.Contains(p.Location) {
			continue
		}
		out = append(out, p)
	}
	metrics.RecordDatasetRows("plants", "filtered", len(plants)-len(out))
	return out
}
