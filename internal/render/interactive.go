package render

import (
	_ "embed"
	"html/template"
	"io"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/gridlink/internal/boundary"
	"github.com/sells-group/gridlink/internal/config"
	"github.com/sells-group/gridlink/internal/dataset"
	"github.com/sells-group/gridlink/internal/geo"
	"github.com/sells-group/gridlink/internal/model"
)

//go:embed templates/map.html.tmpl
var mapHTML string

var mapTemplate = template.Must(template.New("map").Parse(mapHTML))

// Marker is a point on the interactive map. Label is HTML shown on hover
// and must already be escaped.
type Marker struct {
	Location geo.Point
	Label    string
}

// Link is a connection line coloured by its cable index.
type Link struct {
	From  geo.Point
	To    geo.Point
	Cable int
}

// MapData is what the interactive map draws.
type MapData struct {
	Counties    []boundary.County
	Substations []Marker
	Plants      []Marker
	Links       []Link
	Cables      []string // legend names by cable index
}

// MapOptions controls the interactive map's framing and styling.
type MapOptions struct {
	Title          string
	Center         geo.Point
	Zoom           float64
	Height         int
	StyleURL       string
	MarkerSize     float64 // diameter in px
	MarkerOpacity  float64
	FilledCounties bool // light grey fill instead of a transparent outline
}

// PlanOptions frames a plan map from config.
func PlanOptions(cfg config.MapConfig) MapOptions {
	title := cfg.Title
	if title == "" {
		title = PlanTitle
	}
	return MapOptions{
		Title:         title,
		Center:        geo.Point{Lat: cfg.CenterLat, Lon: cfg.CenterLon},
		Zoom:          cfg.Zoom,
		Height:        cfg.Height,
		StyleURL:      cfg.StyleURL,
		MarkerSize:    10,
		MarkerOpacity: 1,
	}
}

// InfrastructureOptions frames the substation and plant overview map.
func InfrastructureOptions(cfg config.MapConfig) MapOptions {
	opts := PlanOptions(cfg)
	opts.Title = InfrastructureTitle
	opts.Zoom = cfg.Zoom + 0.3
	opts.MarkerSize = 5
	opts.MarkerOpacity = 0.7
	opts.FilledCounties = true
	return opts
}

// InfrastructureData builds map data for substations and plants without a plan.
func InfrastructureData(subs []dataset.Substation, plants []dataset.Plant, counties []boundary.County) MapData {
	d := MapData{
		Counties:    counties,
		Substations: make([]Marker, len(subs)),
		Plants:      make([]Marker, len(plants)),
	}
	for i, s := range subs {
		d.Substations[i] = Marker{Location: s.Location, Label: template.HTMLEscapeString(s.Name)}
	}
	for i, p := range plants {
		d.Plants[i] = Marker{Location: p.Location, Label: plantLabel(p)}
	}
	return d
}

// PlanData builds map data for a solved plan.
func PlanData(plan *model.Plan) MapData {
	d := MapData{
		Counties:    plan.Counties,
		Substations: make([]Marker, len(plan.Substations)),
		Plants:      make([]Marker, len(plan.Sites)),
	}
	for j, s := range plan.Substations {
		d.Substations[j] = Marker{Location: s.Location, Label: template.HTMLEscapeString(s.Name)}
	}
	for i, s := range plan.Sites {
		d.Plants[i] = Marker{Location: s.Location, Label: siteLabel(s.Name, s.CapacityMW)}
	}
	for _, c := range plan.Network.Cables {
		d.Cables = append(d.Cables, c.Name)
	}
	if plan.Solution != nil {
		for _, c := range plan.Solution.Connections {
			if c.Site < 0 || c.Site >= len(plan.Sites) || c.Substation < 0 || c.Substation >= len(plan.Substations) {
				continue
			}
			d.Links = append(d.Links, Link{
				From:  plan.Sites[c.Site].Location,
				To:    plan.Substations[c.Substation].Location,
				Cable: c.Cable,
			})
		}
	}
	return d
}

type legendEntry struct {
	Label string
	Color string
	Line  bool
}

type mapView struct {
	MapOptions
	Counties     *geojson.FeatureCollection
	Substations  *geojson.FeatureCollection
	Plants       *geojson.FeatureCollection
	Links        *geojson.FeatureCollection
	CountyFill   string
	CountyAlpha  float64
	CountyStroke float64
	Radius       float64
	Legend       []legendEntry
}

// InteractiveMap writes a self-contained MapLibre GL page.
func InteractiveMap(w io.Writer, data MapData, opts MapOptions) error {
	if opts.Height <= 0 {
		opts.Height = 800
	}
	if opts.MarkerSize <= 0 {
		opts.MarkerSize = 10
	}
	if opts.MarkerOpacity <= 0 {
		opts.MarkerOpacity = 1
	}

	v := mapView{
		MapOptions:   opts,
		Counties:     boundary.FeatureCollection(data.Counties),
		Substations:  markerCollection(data.Substations),
		Plants:       markerCollection(data.Plants),
		Links:        linkCollection(data.Links),
		CountyFill:   "#000000",
		CountyAlpha:  0,
		CountyStroke: 1,
		Radius:       opts.MarkerSize / 2,
		Legend: []legendEntry{
			{Label: "Substations", Color: "red"},
			{Label: "Renewable Energy Sites", Color: "green"},
		},
	}
	if opts.FilledCounties {
		v.CountyFill = "rgb(220, 220, 220)"
		v.CountyAlpha = 0.7
		v.CountyStroke = 0.5
	}
	if len(data.Links) > 0 {
		for k, name := range data.Cables {
			v.Legend = append(v.Legend, legendEntry{Label: name + " cable", Color: CableColor(k), Line: true})
		}
	}

	return eris.Wrap(mapTemplate.Execute(w, v), "render: interactive map")
}
