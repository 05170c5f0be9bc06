package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/gridlink/internal/config"
	"github.com/sells-group/gridlink/internal/geo"
	"github.com/sells-group/gridlink/internal/model"
	"github.com/sells-group/gridlink/internal/optimize"
)

func samplePlan() *model.Plan {
	return &model.Plan{
		ID:        "plan-1",
		CreatedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		Network: model.Network{
			Scenario:             "base",
			Cables:               optimize.DefaultCables(),
			SubstationCapacityMW: 1000,
			Metric:               geo.Planar,
		},
		Sites: []optimize.Site{
			{ID: "P1", Name: "Ridge Wind", Location: geo.Point{Lat: 40.5, Lon: -77.5}, CapacityMW: 40},
			{ID: "P2", Name: "Valley Solar", Location: geo.Point{Lat: 41.0, Lon: -76.0}, CapacityMW: 120},
		},
		Substations: []optimize.Node{
			{ID: "S1", Name: "Juniata", Location: geo.Point{Lat: 40.6, Lon: -77.4}},
		},
		Solution: &optimize.Solution{
			Status: optimize.StatusOptimal,
			Connections: []optimize.Connection{
				{Site: 0, Substation: 0, Cable: 0, Distance: 0.1414, Cost: 14142.14},
				{Site: 1, Substation: 0, Cable: 2, Distance: 1.4866, Cost: 445980},
			},
			TotalCost: 460122.14,
		},
		Summary: optimize.Summary{
			ByCable: []optimize.CableUsage{
				{Name: "small", Connections: 1, CapacityMW: 40, Cost: 14142.14},
				{Name: "medium"},
				{Name: "large", Connections: 1, CapacityMW: 120, Cost: 445980},
			},
		},
	}
}

func scenarioFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("plan", pflag.ContinueOnError)
	addScenarioFlags(fs)
	addOutputFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestScenarioFromFlags_Defaults(t *testing.T) {
	sc, err := scenarioFromFlags(scenarioFlags(t))
	require.NoError(t, err)
	assert.Empty(t, sc.Metric)
	assert.Nil(t, sc.SubstationCapacityMW)
	assert.Nil(t, sc.CandidatesPerSite)
}

func TestScenarioFromFlags_Overrides(t *testing.T) {
	sc, err := scenarioFromFlags(scenarioFlags(t, "--metric", "haversine", "--capacity", "750", "--candidates", "4"))
	require.NoError(t, err)
	assert.Equal(t, "haversine", sc.Metric)
	require.NotNil(t, sc.SubstationCapacityMW)
	assert.InDelta(t, 750.0, *sc.SubstationCapacityMW, 1e-9)
	require.NotNil(t, sc.CandidatesPerSite)
	assert.Equal(t, 4, *sc.CandidatesPerSite)
}

func TestScenarioFromFlags_FileThenFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`scenario:
  name: tight
  metric: planar
  substation_capacity_mw: 300
`), 0o644))

	sc, err := scenarioFromFlags(scenarioFlags(t, "--scenario", path, "--metric", "haversine"))
	require.NoError(t, err)
	assert.Equal(t, "tight", sc.Name)
	assert.Equal(t, "haversine", sc.Metric)
	require.NotNil(t, sc.SubstationCapacityMW)
	assert.InDelta(t, 300.0, *sc.SubstationCapacityMW, 1e-9)
}

func TestScenarioFromFlags_Invalid(t *testing.T) {
	_, err := scenarioFromFlags(scenarioFlags(t, "--metric", "manhattan"))
	assert.Error(t, err)

	_, err = scenarioFromFlags(scenarioFlags(t, "--capacity", "-5"))
	assert.Error(t, err)

	_, err = scenarioFromFlags(scenarioFlags(t, "--capacity", "0"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "substation_capacity_mw must be > 0")

	_, err = scenarioFromFlags(scenarioFlags(t, "--scenario", filepath.Join(t.TempDir(), "missing.yaml")))
	assert.Error(t, err)
}

func TestPrintPlan(t *testing.T) {
	var buf bytes.Buffer
	printPlan(&buf, samplePlan())
	out := buf.String()

	assert.Contains(t, out, "Plan plan-1: optimal, 2 plants, 1 substations, planar metric")
	assert.Contains(t, out, "Valley Solar")
	assert.Contains(t, out, "large cable: 1 connections, 120.0 MW, $445,980.00")
	assert.NotContains(t, out, "medium cable")
	assert.NotContains(t, out, "Search stopped early")
	assert.Contains(t, out, "Total connection cost: $460,122.14\n")
}

func TestPrintPlan_Feasible(t *testing.T) {
	p := samplePlan()
	p.Solution.Status = optimize.StatusFeasible
	p.Solution.StopReason = "node limit"
	p.Solution.LowerBound = 400000
	p.Solution.Gap = 0.1307

	var buf bytes.Buffer
	printPlan(&buf, p)
	assert.Contains(t, buf.String(), "Search stopped early (node limit); lower bound $400,000.00, gap 13.07%")
}

func TestPrintPlan_Infeasible(t *testing.T) {
	p := samplePlan()
	p.Solution = nil
	p.Error = "optimize: infeasible"

	var buf bytes.Buffer
	printPlan(&buf, p)
	out := buf.String()
	assert.Contains(t, out, "infeasible")
	assert.Contains(t, out, "No feasible connection plan: optimize: infeasible")
	assert.NotContains(t, out, "Total connection cost")
}

func TestWriteOutputs(t *testing.T) {
	dir := t.TempDir()
	out := outputPaths{
		Map:     filepath.Join(dir, "plan.html"),
		GeoJSON: filepath.Join(dir, "plan.geojson"),
		CSV:     filepath.Join(dir, "plan.csv"),
		XLSX:    filepath.Join(dir, "plan.xlsx"),
	}
	require.True(t, out.any())
	require.NoError(t, writeOutputs(samplePlan(), config.MapConfig{Zoom: 6.2, Height: 800}, out))

	html, err := os.ReadFile(out.Map)
	require.NoError(t, err)
	assert.Contains(t, string(html), "Optimized Energy Connections in Pennsylvania")

	data, err := os.ReadFile(out.GeoJSON)
	require.NoError(t, err)
	var fc struct {
		Type     string            `json:"type"`
		Features []json.RawMessage `json:"features"`
	}
	require.NoError(t, json.Unmarshal(data, &fc))
	assert.Len(t, fc.Features, 5)

	csvData, err := os.ReadFile(out.CSV)
	require.NoError(t, err)
	assert.Contains(t, string(csvData), "P2,Valley Solar,120,S1,Juniata,large")

	info, err := os.Stat(out.XLSX)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestWriteOutputs_None(t *testing.T) {
	assert.False(t, outputPaths{}.any())
	assert.NoError(t, writeOutputs(samplePlan(), config.MapConfig{}, outputPaths{}))
}

func TestWriteOutputs_BadPath(t *testing.T) {
	err := writeOutputs(samplePlan(), config.MapConfig{}, outputPaths{CSV: filepath.Join(t.TempDir(), "missing", "plan.csv")})
	assert.Error(t, err)
}
