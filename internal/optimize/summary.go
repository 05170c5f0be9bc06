package optimize

import "sort"

// CableUsage totals the connections made with one cable type.
type CableUsage struct {
	Name        string  `json:"name"`
	Connections int     `json:"connections"`
	CapacityMW  float64 `json:"capacity_mw"`
	Cost        float64 `json:"cost"`
}

// SubstationLoad is the MW connected to one substation.
type SubstationLoad struct {
	Substation  int     `json:"substation"`
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Sites       int     `json:"sites"`
	LoadMW      float64 `json:"load_mw"`
	CapacityMW  float64 `json:"capacity_mw"`
	Utilization float64 `json:"utilization"`
}

// Summary condenses a solution for reports.
type Summary struct {
	Sites           int              `json:"sites"`
	SubstationsUsed int              `json:"substations_used"`
	TotalMW         float64          `json:"total_mw"`
	TotalCost       float64          `json:"total_cost"`
	ByCable         []CableUsage     `json:"by_cable"`
	Busiest         []SubstationLoad `json:"busiest"`
}

// Summarize reports usage per cable type in catalog order and the top
// substations by connected MW (all of them when top <= 0).
func Summarize(p *Problem, sol *Solution, top int) Summary {
	out := Summary{ByCable: make([]CableUsage, len(p.Cables))}
	for k, c := range p.Cables {
		out.ByCable[k].Name = c.Name
	}
	if sol == nil {
		return out
	}

	loads := make(map[int]*SubstationLoad)
	for _, c := range sol.Connections {
		mw := p.Sites[c.Site].CapacityMW
		out.Sites++
		out.TotalMW += mw
		out.TotalCost += c.Cost

		u := &out.ByCable[c.Cable]
		u.Connections++
		u.CapacityMW += mw
		u.Cost += c.Cost

		l, ok := loads[c.Substation]
		if !ok {
			n := p.Substations[c.Substation]
			l = &SubstationLoad{Substation: c.Substation, ID: n.ID, Name: n.Name, CapacityMW: p.Capacity(c.Substation)}
			loads[c.Substation] = l
		}
		l.Sites++
		l.LoadMW += mw
	}
	out.SubstationsUsed = len(loads)

	out.Busiest = make([]SubstationLoad, 0, len(loads))
	for _, l := range loads {
		if l.CapacityMW > 0 {
			l.Utilization = l.LoadMW / l.CapacityMW
		}
		out.Busiest = append(out.Busiest, *l)
	}
	sort.Slice(out.Busiest, func(a, b int) bool {
		if out.Busiest[a].LoadMW != out.Busiest[b].LoadMW {
			return out.Busiest[a].LoadMW > out.Busiest[b].LoadMW
		}
		return out.Busiest[a].Substation < out.Busiest[b].Substation
	})
	if top > 0 && len(out.Busiest) > top {
		out.Busiest = out.Busiest[:top]
	}
	return out
}
