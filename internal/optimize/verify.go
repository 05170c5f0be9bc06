package optimize

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/gridlink/internal/geo"
)

// Verify re-checks every constraint of the problem against the solution and
// that TotalCost is the sum of the connection costs.
func (sol *Solution) Verify(p *Problem) error {
	if sol == nil || p == nil {
		return eris.New("optimize: verify: nil solution or problem")
	}
	if sol.Status == StatusInfeasible {
		if len(sol.Connections) != 0 {
			return eris.New("optimize: verify: infeasible solution has connections")
		}
		return nil
	}
	if len(sol.Connections) != len(p.Sites) {
		return eris.Errorf("optimize: verify: %d connections for %d sites", len(sol.Connections), len(p.Sites))
	}

	metric, err := geo.ParseMetric(string(p.Metric))
	if err != nil {
		return eris.Wrap(err, "optimize: verify")
	}
	seen := make([]bool, len(p.Sites))
	load := make([]float64, len(p.Substations))
	var total float64
	for _, c := range sol.Connections {
		if c.Site < 0 || c.Site >= len(p.Sites) {
			return eris.Errorf("optimize: verify: unknown site %d", c.Site)
		}
		if seen[c.Site] {
			return eris.Errorf("optimize: verify: site %d connected twice", c.Site)
		}
		seen[c.Site] = true
		if c.Substation < 0 || c.Substation >= len(p.Substations) {
			return eris.Errorf("optimize: verify: site %d: unknown substation %d", c.Site, c.Substation)
		}
		if c.Cable < 0 || c.Cable >= len(p.Cables) {
			return eris.Errorf("optimize: verify: site %d: unknown cable %d", c.Site, c.Cable)
		}

		site := p.Sites[c.Site]
		cable := p.Cables[c.Cable]
		if cable.CapacityMW+tolerance(cable.CapacityMW) < site.CapacityMW {
			return eris.Errorf("optimize: verify: site %d: %.2f MW on %s cable rated %.2f MW",
				c.Site, site.CapacityMW, cable.Name, cable.CapacityMW)
		}
		if k, _ := CheapestCable(p.Cables, site.CapacityMW); p.Cables[k].CostPerUnit < cable.CostPerUnit {
			return eris.Errorf("optimize: verify: site %d: %s cable used where %s is cheaper",
				c.Site, cable.Name, p.Cables[k].Name)
		}

		d := geo.Distance(metric, site.Location, p.Substations[c.Substation].Location)
		if !closeTo(d, c.Distance) {
			return eris.Errorf("optimize: verify: site %d: distance %g, expected %g", c.Site, c.Distance, d)
		}
		if !closeTo(d*cable.CostPerUnit, c.Cost) {
			return eris.Errorf("optimize: verify: site %d: cost %g, expected %g", c.Site, c.Cost, d*cable.CostPerUnit)
		}
		load[c.Substation] += site.CapacityMW
		total += c.Cost
	}

	for j, l := range load {
		if capMW := p.Capacity(j); l > capMW+tolerance(capMW) {
			return eris.Errorf("optimize: verify: substation %d loaded %.2f MW over its %.2f MW capacity", j, l, capMW)
		}
	}
	if !closeTo(total, sol.TotalCost) {
		return eris.Errorf("optimize: verify: total cost %g, connections sum to %g", sol.TotalCost, total)
	}
	if sol.LowerBound > sol.TotalCost+tolerance(sol.TotalCost) {
		return eris.Errorf("optimize: verify: lower bound %g above total cost %g", sol.LowerBound, sol.TotalCost)
	}
	return nil
}

func closeTo(a, b float64) bool {
	return math.Abs(a-b) <= 1e-6*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}
