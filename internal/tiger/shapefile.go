package tiger

import (
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/gridlink/internal/geo"
)

// Subdivision is one county subdivision polygon.
type Subdivision struct {
	GEOID    string
	StateFP  string
	CountyFP string
	CousubFP string
	Name     string
	NameLSAD string
	ALand    int64 // m²
	AWater   int64 // m²
	Geometry *geom.MultiPolygon
}

// CountyGEOID is the 5-digit state+county code the subdivision belongs to.
func (s Subdivision) CountyGEOID() string {
	return s.StateFP + s.CountyFP
}

// ParseSubdivisions reads a COUSUB shapefile. Records without a usable
// polygon are skipped and counted.
func ParseSubdivisions(shpPath string) ([]Subdivision, int, error) {
	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, 0, eris.Wrapf(err, "tiger: open shapefile %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	fieldIdx := make(map[string]int, len(fields))
	for i, f := range fields {
		name := strings.TrimRight(f.String(), "\x00")
		fieldIdx[strings.ToLower(name)] = i
	}
	if _, ok := fieldIdx["geoid"]; !ok {
		return nil, 0, eris.Errorf("tiger: %s has no GEOID field", shpPath)
	}

	attr := func(name string) string {
		idx, ok := fieldIdx[name]
		if !ok {
			return ""
		}
		return strings.TrimSpace(strings.TrimRight(reader.Attribute(idx), "\x00"))
	}

	var out []Subdivision
	var skipped int
	for reader.Next() {
		_, shape := reader.Shape()
		mp, ok := geo.FromShape(shape).(*geom.MultiPolygon)
		if !ok || mp == nil {
			skipped++
			continue
		}
		out = append(out, Subdivision{
			GEOID:    attr("geoid"),
			StateFP:  attr("statefp"),
			CountyFP: attr("countyfp"),
			CousubFP: attr("cousubfp"),
			Name:     attr("name"),
			NameLSAD: attr("namelsad"),
			ALand:    parseArea(attr("aland")),
			AWater:   parseArea(attr("awater")),
			Geometry: mp,
		})
	}

	if skipped > 0 {
		zap.L().Debug("tiger: skipped shapefile records",
			zap.String("path", shpPath),
			zap.Int("skipped", skipped),
		)
	}
	return out, skipped, nil
}

func parseArea(s string) int64 {
	if s == "" {
		return 0
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return int64(f)
}
