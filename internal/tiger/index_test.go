package tiger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/gridlink/internal/geo"
)

func square(minX, minY, maxX, maxY float64) *geom.MultiPolygon {
	poly := geom.NewPolygonFlat(geom.XY, []float64{minX, minY, minX, maxY, maxX, maxY, maxX, minY, minX, minY}, []int{10})
	mp := geom.NewMultiPolygon(geom.XY)
	_ = mp.Push(poly)
	return mp
}

func testIndex() *Index {
	return NewIndex([]Subdivision{
		{GEOID: "A", Name: "Alpha", Geometry: square(-78, 40, -77, 41)},
		{GEOID: "B", Name: "Beta", Geometry: square(-77, 40, -76, 41)},
		{GEOID: "C", Name: "Overlap", Geometry: square(-78, 40, -76, 41)},
		{GEOID: "N", Name: "Nil"},
	})
}

func TestIndex_Locate(t *testing.T) {
	idx := testIndex()
	assert.Equal(t, 4, idx.Len())

	tests := []struct {
		name string
		p    geo.Point
		want string
	}{
		{"alpha", geo.Point{Lat: 40.5, Lon: -77.5}, "A"},
		{"beta", geo.Point{Lat: 40.5, Lon: -76.5}, "B"},
		{"outside", geo.Point{Lat: 42, Lon: -77.5}, ""},
		{"west of everything", geo.Point{Lat: 40.5, Lon: -90}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := idx.Locate(tt.p)
			if tt.want == "" {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.GEOID)
		})
	}
}

func TestIndex_LocatePrefersInputOrder(t *testing.T) {
	idx := NewIndex([]Subdivision{
		{GEOID: "wide", Geometry: square(-80, 39, -75, 42)},
		{GEOID: "narrow", Geometry: square(-77.1, 40.4, -76.9, 40.6)},
	})
	got := idx.Locate(geo.Point{Lat: 40.5, Lon: -77})
	require.NotNil(t, got)
	assert.Equal(t, "wide", got.GEOID)
}

func TestIndex_Empty(t *testing.T) {
	idx := NewIndex(nil)
	assert.Nil(t, idx.Locate(geo.Point{Lat: 40, Lon: -77}))
}
