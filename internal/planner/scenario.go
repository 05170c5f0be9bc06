package planner

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/gridlink/internal/geo"
	"github.com/sells-group/gridlink/internal/optimize"
)

// Scenario overrides the configured network for one plan. Nil and empty
// fields keep the configured value. It is read from YAML files and from
// the JSON body of plan requests.
type Scenario struct {
	Name                 string               `yaml:"name" json:"name,omitempty"`
	SubstationCapacityMW *float64             `yaml:"substation_capacity_mw" json:"substation_capacity_mw,omitempty"`
	Metric               string               `yaml:"metric" json:"metric,omitempty"`
	CandidatesPerSite    *int                 `yaml:"candidates_per_site" json:"candidates_per_site,omitempty"`
	Cables               []optimize.CableType `yaml:"cables" json:"cables,omitempty"`

	// CapacityOverrides maps substation IDs to their own capacity in MW.
	CapacityOverrides map[string]float64 `yaml:"capacity_overrides" json:"capacity_overrides,omitempty"`
}

type scenarioFile struct {
	Scenario Scenario `yaml:"scenario"`
}

// LoadScenario reads a scenario from a YAML file with a top-level
// "scenario" key.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "planner: read scenario %s", path)
	}
	sc, err := ParseScenario(data)
	if err != nil {
		return nil, eris.Wrapf(err, "planner: scenario %s", path)
	}
	return sc, nil
}

// ParseScenario decodes and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var f scenarioFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "planner: parse scenario")
	}
	if err := f.Scenario.Validate(); err != nil {
		return nil, err
	}
	return &f.Scenario, nil
}

// Validate rejects values the solver cannot use.
func (s *Scenario) Validate() error {
	if s.SubstationCapacityMW != nil && *s.SubstationCapacityMW <= 0 {
		return eris.New("planner: substation_capacity_mw must be > 0")
	}
	if s.CandidatesPerSite != nil && *s.CandidatesPerSite < 0 {
		return eris.New("planner: candidates_per_site must be >= 0")
	}
	if s.Metric != "" {
		if _, err := geo.ParseMetric(s.Metric); err != nil {
			return eris.Wrap(err, "planner: metric")
		}
	}
	for i, c := range s.Cables {
		if c.CapacityMW <= 0 || c.CostPerUnit < 0 {
			return eris.Errorf("planner: cable %d (%s) needs a positive capacity and a non-negative cost", i, c.Name)
		}
	}
	for id, mw := range s.CapacityOverrides {
		if mw < 0 {
			return eris.Errorf("planner: capacity override for substation %s must be >= 0", id)
		}
	}
	return nil
}
