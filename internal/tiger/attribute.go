package tiger

import (
	"context"
	"runtime"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/gridlink/internal/dataset"
	"github.com/sells-group/gridlink/internal/geo"
)

// Placement records the subdivision a facility falls in. GEOID is empty when
// the facility lies outside every indexed subdivision.
type Placement struct {
	Kind        string `json:"kind"` // "substation" or "plant"
	ID          string `json:"id"`
	Name        string `json:"name"`
	GEOID       string `json:"geoid,omitempty"`
	Subdivision string `json:"subdivision,omitempty"`
}

// Tally summarises the facilities located in one subdivision.
type Tally struct {
	GEOID       string  `json:"geoid"`
	Name        string  `json:"name"`
	Substations int     `json:"substations"`
	Plants      int     `json:"plants"`
	CapacityMW  float64 `json:"capacity_mw"`
}

// Attribution is the result of Attribute.
type Attribution struct {
	Substations []Placement `json:"substations"`
	Plants      []Placement `json:"plants"`
	Tallies     []Tally     `json:"tallies"` // busiest first
	Unmatched   int         `json:"unmatched"`
}

// AttributeOptions tunes Attribute.
type AttributeOptions struct {
	Concurrency int // default GOMAXPROCS
}

// Attribute tags every substation and plant with the subdivision containing
// it. Lookups run concurrently; output order matches input order.
func Attribute(ctx context.Context, idx *Index, subs []dataset.Substation, plants []dataset.Plant, opts AttributeOptions) (*Attribution, error) {
	if idx == nil {
		return nil, eris.New("tiger: attribute: nil index")
	}
	workers := opts.Concurrency
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	subHits := make([]*Subdivision, len(subs))
	plantHits := make([]*Subdivision, len(plants))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	locateAll := func(n int, at func(int) geo.Point, hits []*Subdivision) {
		chunk := max(1, (n+workers-1)/workers)
		for start := 0; start < n; start += chunk {
			end := min(start+chunk, n)
			g.Go(func() error {
				for i := start; i < end; i++ {
					if err := gCtx.Err(); err != nil {
						return eris.Wrap(err, "tiger: attribute")
					}
					hits[i] = idx.Locate(at(i))
				}
				return nil
			})
		}
	}
	locateAll(len(subs), func(i int) geo.Point { return subs[i].Location }, subHits)
	locateAll(len(plants), func(i int) geo.Point { return plants[i].Location }, plantHits)
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &Attribution{
		Substations: make([]Placement, len(subs)),
		Plants:      make([]Placement, len(plants)),
	}
	tallies := make(map[string]*Tally)
	tally := func(s *Subdivision) *Tally {
		t, ok := tallies[s.GEOID]
		if !ok {
			t = &Tally{GEOID: s.GEOID, Name: s.NameLSAD}
			if t.Name == "" {
				t.Name = s.Name
			}
			tallies[s.GEOID] = t
		}
		return t
	}

	for i, s := range subs {
		out.Substations[i] = placement("substation", s.ID, s.Name, subHits[i])
		if subHits[i] == nil {
			out.Unmatched++
			continue
		}
		tally(subHits[i]).Substations++
	}
	for i, p := range plants {
		out.Plants[i] = placement("plant", p.ID, p.Name, plantHits[i])
		if plantHits[i] == nil {
			out.Unmatched++
			continue
		}
		t := tally(plantHits[i])
		t.Plants++
		t.CapacityMW += p.CapacityMW
	}

	out.Tallies = make([]Tally, 0, len(tallies))
	for _, t := range tallies {
		out.Tallies = append(out.Tallies, *t)
	}
	sort.Slice(out.Tallies, func(a, b int) bool {
		ta, tb := out.Tallies[a], out.Tallies[b]
		if na, nb := ta.Substations+ta.Plants, tb.Substations+tb.Plants; na != nb {
			return na > nb
		}
		return ta.GEOID < tb.GEOID
	})

	zap.L().Debug("tiger: attributed facilities",
		zap.Int("substations", len(subs)),
		zap.Int("plants", len(plants)),
		zap.Int("subdivisions", len(out.Tallies)),
		zap.Int("unmatched", out.Unmatched),
	)
	return out, nil
}

func placement(kind, id, name string, s *Subdivision) Placement {
	p := Placement{Kind: kind, ID: id, Name: name}
	if s != nil {
		p.GEOID = s.GEOID
		p.Subdivision = s.NameLSAD
		if p.Subdivision == "" {
			p.Subdivision = s.Name
		}
	}
	return p
}
