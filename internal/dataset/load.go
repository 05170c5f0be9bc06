package dataset

import (
	"context"
	"math"
	"strconv"

	"go.uber.org/zap"

	"github.com/sells-group/gridlink/internal/geo"
	"github.com/sells-group/gridlink/internal/metrics"
)

var substationAliases = map[string][]string{
	"id":        {"id", "objectid"},
	"name":      {"name"},
	"state":     {"state"},
	"city":      {"city"},
	"county":    {"county"},
	"type":      {"type"},
	"status":    {"status"},
	"latitude":  latitudeAliases,
	"longitude": longitudeAliases,
	"max_volt":  {"max_volt"},
	"min_volt":  {"min_volt"},
}

var plantAliases = map[string][]string{
	"id":           {"id", "gppd_idnr"},
	"name":         {"name"},
	"country":      {"country", "country_long"},
	"latitude":     latitudeAliases,
	"longitude":    longitudeAliases,
	"capacity_mw":  {"capacity_mw", "capacity_m"},
	"primary_fuel": {"primary_fuel", "primary_fu"},
}

// LoadSubstations reads substations from src. Rows without parseable
// coordinates are skipped and counted; unknown voltages load as nil.
func LoadSubstations(ctx context.Context, src string, opts Options) ([]Substation, Stats, error) {
	var stats Stats
	t, err := readTable(ctx, src, opts)
	if err != nil {
		return nil, stats, err
	}
	cols, err := resolveColumns(t.header, substationAliases, "name", "latitude", "longitude")
	if err != nil {
		return nil, stats, err
	}

	out := make([]Substation, 0, len(t.rows))
	for i, row := range t.rows {
		stats.Read++
		loc, ok := parsePoint(cols, row)
		if !ok {
			stats.Skipped++
			continue
		}
		out = append(out, Substation{
			ID:       rowID(cols, row, i),
			Name:     cols.get(row, "name"),
			State:    cols.get(row, "state"),
			City:     cols.get(row, "city"),
			County:   cols.get(row, "county"),
			Type:     cols.get(row, "type"),
			Status:   cols.get(row, "status"),
			Location: loc,
			MaxVolt:  parseVoltage(cols.get(row, "max_volt")),
			MinVolt:  parseVoltage(cols.get(row, "min_volt")),
		})
	}
	stats.Kept = len(out)

	record("substations", src, stats)
	return out, stats, nil
}

// LoadPlants reads renewable plants from src. The capacity column is
// required. Rows whose coordinates or capacity do not parse, or whose
// capacity is negative, are skipped and counted.
func LoadPlants(ctx context.Context, src string, opts Options) ([]Plant, Stats, error) {
	var stats Stats
	t, err := readTable(ctx, src, opts)
	if err != nil {
		return nil, stats, err
	}
	cols, err := resolveColumns(t.header, plantAliases, "name", "latitude", "longitude", "capacity_mw")
	if err != nil {
		return nil, stats, err
	}

	out := make([]Plant, 0, len(t.rows))
	for i, row := range t.rows {
		stats.Read++
		loc, ok := parsePoint(cols, row)
		if !ok {
			stats.Skipped++
			continue
		}
		capacity, ok := parseFloat(cols.get(row, "capacity_mw"))
		if !ok || capacity < 0 || math.IsNaN(capacity) || math.IsInf(capacity, 0) {
			stats.Skipped++
			continue
		}
		out = append(out, Plant{
			ID:          rowID(cols, row, i),
			Name:        cols.get(row, "name"),
			Country:     cols.get(row, "country"),
			Location:    loc,
			CapacityMW:  capacity,
			PrimaryFuel: cols.get(row, "primary_fuel"),
		})
	}
	stats.Kept = len(out)

	record("plants", src, stats)
	return out, stats, nil
}

func parsePoint(cols columns, row []string) (geo.Point, bool) {
	lat, ok := parseFloat(cols.get(row, "latitude"))
	if !ok {
		return geo.Point{}, false
	}
	lon, ok := parseFloat(cols.get(row, "longitude"))
	if !ok {
		return geo.Point{}, false
	}
	p := geo.Point{Lat: lat, Lon: lon}
	return p, p.Valid()
}

// parseVoltage returns nil for blank, unparseable, non-positive or
// placeholder values.
func parseVoltage(s string) *float64 {
	v, ok := parseFloat(s)
	if !ok || v == UnknownVoltage || v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// rowID uses the id column when present, else the 1-based row number.
func rowID(cols columns, row []string, i int) string {
	if id := cols.get(row, "id"); id != "" {
		return id
	}
	return strconv.Itoa(i + 1)
}

func record(dataset, src string, stats Stats) {
	metrics.RecordDatasetRows(dataset, "kept", stats.Kept)
	metrics.RecordDatasetRows(dataset, "skipped", stats.Skipped)
	zap.L().Info("dataset loaded",
		zap.String("component", "dataset"),
		zap.String("dataset", dataset),
		zap.String("source", src),
		zap.Int("read", stats.Read),
		zap.Int("kept", stats.Kept),
		zap.Int("skipped", stats.Skipped),
	)
}
