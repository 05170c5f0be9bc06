package dataset

import (
	"archive/zip"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/gridlink/internal/geo"
)

const substationsCSV = `ID,NAME,CITY,STATE,COUNTY,TYPE,STATUS,LATITUDE,LONGITUDE,MAX_VOLT,MIN_VOLT
101,Hunterstown,Gettysburg,PA,Adams,SUBSTATION,IN SERVICE,39.8709,-77.1658,500,230
102,Keystone,Shelocta,PA,Armstrong,SUBSTATION,IN SERVICE,40.6584,-79.3411,-999999,-999999
103,Bad Coords,Nowhere,PA,,SUBSTATION,IN SERVICE,not-a-lat,-77.0,115,
104,Cleveland,Cleveland,OH,Cuyahoga,SUBSTATION,IN SERVICE,41.4993,-81.6944,345,138
`

const plantsCSV = `name,country,latitude,longitude,capacity_m,primary_fu
Wind One,United States of America,41.10,-78.20,50,Wind
Solar Two,United States of America,40.30,-76.90,120.5,Solar
No Capacity,United States of America,40.30,-76.90,,Solar
Offshore,Canada,42.00,-79.00,20,Wind
Jersey Solar,United States of America,40.10,-74.50,30,Solar
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadSubstations_CSV(t *testing.T) {
	path := writeFile(t, "pa_substations.csv", substationsCSV)

	subs, stats, err := LoadSubstations(context.Background(), path, Options{})
	require.NoError(t, err)
	assert.Equal(t, Stats{Read: 4, Kept: 3, Skipped: 1}, stats)
	require.Len(t, subs, 3)

	h := subs[0]
	assert.Equal(t, "101", h.ID)
	assert.Equal(t, "Hunterstown", h.Name)
	assert.Equal(t, "PA", h.State)
	assert.Equal(t, "Adams", h.County)
	assert.Equal(t, geo.Point{Lat: 39.8709, Lon: -77.1658}, h.Location)
	require.NotNil(t, h.MaxVolt)
	assert.Equal(t, 500.0, *h.MaxVolt)
	require.NotNil(t, h.MinVolt)
	assert.Equal(t, 230.0, *h.MinVolt)

	assert.Nil(t, subs[1].MaxVolt, "placeholder voltage loads as unknown")
	assert.Equal(t, "Cleveland", subs[2].Name)
}

func TestLoadPlants_TruncatedColumnNames(t *testing.T) {
	path := writeFile(t, "plants.csv", plantsCSV)

	plants, stats, err := LoadPlants(context.Background(), path, Options{})
	require.NoError(t, err)
	assert.Equal(t, Stats{Read: 5, Kept: 4, Skipped: 1}, stats)
	require.Len(t, plants, 4)

	assert.Equal(t, "Wind One", plants[0].Name)
	assert.Equal(t, "1", plants[0].ID)
	assert.Equal(t, 50.0, plants[0].CapacityMW)
	assert.Equal(t, "Wind", plants[0].PrimaryFuel)
	assert.Equal(t, 120.5, plants[1].CapacityMW)
	assert.Equal(t, "4", plants[2].ID, "ids follow source rows, including skipped ones")
}

func TestLoadPlants_MissingRequiredColumn(t *testing.T) {
	path := writeFile(t, "plants.csv", "name,capacity_mw\nA,10\n")

	_, _, err := LoadPlants(context.Background(), path, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required column(s) latitude, longitude")
}

func TestLoadPlants_MissingCapacityColumn(t *testing.T) {
	path := writeFile(t, "plants.csv", "name,latitude,longitude\nA,40,-77\nB,41,-76\n")

	plants, _, err := LoadPlants(context.Background(), path, Options{})
	require.Error(t, err)
	assert.Nil(t, plants)
	assert.Contains(t, err.Error(), "missing required column(s) capacity_mw")
}

func TestLoadPlants_NegativeCapacitySkipped(t *testing.T) {
	path := writeFile(t, "plants.csv", "name,lat,lon,capacity_mw\nA,40,-77,-5\nB,40,-77,\"1,250\"\n")

	plants, stats, err := LoadPlants(context.Background(), path, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Skipped)
	require.Len(t, plants, 1)
	assert.Equal(t, 1250.0, plants[0].CapacityMW)
}

func TestLoad_MissingFile(t *testing.T) {
	_, _, err := LoadSubstations(context.Background(), filepath.Join(t.TempDir(), "missing.csv"), Options{})
	require.Error(t, err)
}

func TestLoad_UnsupportedFormat(t *testing.T) {
	_, _, err := LoadSubstations(context.Background(), "substations.parquet", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported source format")
}

func TestLoadSubstations_Windows1252(t *testing.T) {
	path := writeFile(t, "subs.csv", "NAME,STATE,LATITUDE,LONGITUDE\nWilkes-Barr\xe9,PA,41.24,-75.88\n")

	subs, _, err := LoadSubstations(context.Background(), path, Options{Encoding: "windows-1252"})
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "Wilkes-Barré", subs[0].Name)
}

func TestLoadPlants_XLSX(t *testing.T) {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("plants")
	require.NoError(t, err)
	for _, r := range [][]string{
		{"name", "country_long", "latitude", "longitude", "capacity_mw", "primary_fuel"},
		{"Hydro Three", "United States of America", "41.5", "-75.5", "75", "Hydro"},
	} {
		row := sheet.AddRow()
		for _, v := range r {
			row.AddCell().SetString(v)
		}
	}
	path := filepath.Join(t.TempDir(), "plants.xlsx")
	require.NoError(t, f.Save(path))

	plants, stats, err := LoadPlants(context.Background(), path, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Kept)
	assert.Equal(t, "United States of America", plants[0].Country)
	assert.Equal(t, "Hydro", plants[0].PrimaryFuel)
}

func writeSubstationShapefile(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "substations.shp")
	w, err := shp.Create(path, shp.POINT)
	require.NoError(t, err)

	require.NoError(t, w.SetFields([]shp.Field{
		shp.StringField("NAME", 40),
		shp.StringField("STATE", 2),
		shp.FloatField("MAX_VOLT", 12, 1),
	}))
	rows := []struct {
		name, state string
		volt        float64
		x, y        float64
	}{
		{"Juniata", "PA", 500, -77.12, 40.56},
		{"Unknown Volt", "PA", -999999, -76.5, 40.1},
	}
	for i, r := range rows {
		w.Write(&shp.Point{X: r.x, Y: r.y})
		require.NoError(t, w.WriteAttribute(i, 0, r.name))
		require.NoError(t, w.WriteAttribute(i, 1, r.state))
		require.NoError(t, w.WriteAttribute(i, 2, r.volt))
	}
	w.Close()
	renameDBF(t, path)
	return path
}

func TestLoadSubstations_Shapefile(t *testing.T) {
	path := writeSubstationShapefile(t, t.TempDir())

	subs, stats, err := LoadSubstations(context.Background(), path, Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Kept)
	assert.Equal(t, "Juniata", subs[0].Name)
	assert.InDelta(t, 40.56, subs[0].Location.Lat, 1e-9)
	assert.InDelta(t, -77.12, subs[0].Location.Lon, 1e-9)
	require.NotNil(t, subs[0].MaxVolt)
	assert.InDelta(t, 500, *subs[0].MaxVolt, 1e-9)
	assert.Nil(t, subs[1].MaxVolt)
}

func TestLoadSubstations_ZippedShapefileOverHTTP(t *testing.T) {
	dir := t.TempDir()
	writeSubstationShapefile(t, dir)

	zipPath := filepath.Join(t.TempDir(), "substations.zip")
	zf, err := os.Create(zipPath)
	require.NoError(t, err)
	zw := zip.NewWriter(zf)
	for _, ext := range []string{".shp", ".shx", ".dbf"} {
		name := "substations" + ext
		data, readErr := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, readErr)
		w, createErr := zw.Create(name)
		require.NoError(t, createErr)
		_, err = w.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, zf.Close())

	body, err := os.ReadFile(zipPath)
	require.NoError(t, err)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	subs, _, err := LoadSubstations(context.Background(), srv.URL+"/hifld/substations.zip", Options{TempDir: t.TempDir()})
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, "Juniata", subs[0].Name)
}

func TestFilterSubstations(t *testing.T) {
	path := writeFile(t, "pa_substations.csv", substationsCSV)
	subs, _, err := LoadSubstations(context.Background(), path, Options{})
	require.NoError(t, err)

	pa := FilterSubstations(subs, Filter{State: "PA"})
	require.Len(t, pa, 2)
	assert.Equal(t, "Hunterstown", pa[0].Name)
	assert.Equal(t, "Keystone", pa[1].Name)

	known := FilterSubstations(subs, Filter{State: "PA", KnownVoltageOnly: true})
	require.Len(t, known, 1)
	assert.Equal(t, "Hunterstown", known[0].Name)

	assert.Len(t, FilterSubstations(subs, Filter{}), 3)
}

func TestFilterSubstations_StateMatchesExactly(t *testing.T) {
	subs := []Substation{{Name: "upper", State: "PA"}, {Name: "lower", State: "pa"}, {Name: "padded", State: "PA "}}

	kept := FilterSubstations(subs, Filter{State: "PA"})
	require.Len(t, kept, 1)
	assert.Equal(t, "upper", kept[0].Name)

	plants := []Plant{{Name: "us", Country: "United States of America"}, {Name: "lower", Country: "united states of america"}}
	assert.Len(t, FilterPlants(plants, Filter{Country: "United States of America"}), 1)
}

func TestFilterPlants(t *testing.T) {
	path := writeFile(t, "plants.csv", plantsCSV)
	plants, _, err := LoadPlants(context.Background(), path, Options{})
	require.NoError(t, err)

	bbox := geo.PennsylvaniaBBox
	kept := FilterPlants(plants, Filter{Country: "United States of America", BBox: &bbox})
	require.Len(t, kept, 2)
	assert.Equal(t, "Wind One", kept[0].Name)
	assert.Equal(t, "Solar Two", kept[1].Name)
}

func TestFilterPlants_BBoxEdgesInclusive(t *testing.T) {
	bbox := geo.PennsylvaniaBBox
	plants := []Plant{
		{Name: "sw", Location: geo.Point{Lat: 39.7, Lon: -80.5}},
		{Name: "ne", Location: geo.Point{Lat: 42.5, Lon: -74.7}},
		{Name: "out", Location: geo.Point{Lat: 42.5001, Lon: -75}},
	}
	kept := FilterPlants(plants, Filter{BBox: &bbox})
	require.Len(t, kept, 2)
	assert.Equal(t, "sw", kept[0].Name)
	assert.Equal(t, "ne", kept[1].Name)
}

func TestVoltageClass(t *testing.T) {
	v := func(f float64) *float64 { return &f }
	assert.Equal(t, VoltageUnknown, VoltageClass(nil))
	assert.Equal(t, VoltageDistribution, VoltageClass(v(34.5)))
	assert.Equal(t, VoltageSubTransmission, VoltageClass(v(69)))
	assert.Equal(t, VoltageTransmission, VoltageClass(v(230)))
	assert.Equal(t, VoltageExtraHigh, VoltageClass(v(500)))
	assert.Equal(t, VoltageExtraHigh, Substation{MaxVolt: v(345)}.Class())
}

// renameDBF moves the attribute file go-shp writes as "<name>dbf" to
// "<name>.dbf", where its reader looks for it.
func renameDBF(t *testing.T, shpPath string) {
	t.Helper()
	stem := strings.TrimSuffix(shpPath, ".shp")
	if _, err := os.Stat(stem + "dbf"); err != nil {
		return
	}
	require.NoError(t, os.Rename(stem+"dbf", stem+".dbf"))
}
