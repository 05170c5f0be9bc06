package render

import (
	"fmt"
	"html"
	"io"
	"math"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/gridlink/internal/boundary"
	"github.com/sells-group/gridlink/internal/dataset"
	"github.com/sells-group/gridlink/internal/geo"
)

// StaticData is what the static map draws.
type StaticData struct {
	Counties    []boundary.County
	Substations []dataset.Substation
	Plants      []dataset.Plant
	Cities      []geo.City
}

// StaticOptions frames the static map. The extent is WidthM by HeightM
// metres of a Lambert conformal projection centred on Center.
type StaticOptions struct {
	Title   string
	Center  geo.Point
	WidthM  float64
	HeightM float64
	Width   int // map area in px
	Height  int
}

// DefaultStaticOptions frames Pennsylvania in a 500 km by 300 km window.
func DefaultStaticOptions() StaticOptions {
	return StaticOptions{
		Title:   StaticTitle,
		Center:  geo.PennsylvaniaCenter,
		WidthM:  5e5,
		HeightM: 3e5,
		Width:   1000,
		Height:  600,
	}
}

const (
	marginLeft = 20
	marginTop  = 50
	sidePanel  = 300
	colorBarW  = 16
)

type canvas struct {
	sb   strings.Builder
	proj *geo.LambertConformal
	opts StaticOptions
}

func (c *canvas) xy(p geo.Point) (float64, float64) {
	x, y := c.proj.Project(p)
	px := marginLeft + (x+c.opts.WidthM/2)/c.opts.WidthM*float64(c.opts.Width)
	py := marginTop + (c.opts.HeightM/2-y)/c.opts.HeightM*float64(c.opts.Height)
	return px, py
}

func (c *canvas) printf(format string, args ...any) {
	fmt.Fprintf(&c.sb, format, args...)
}

// StaticMap writes an SVG of county outlines, substations coloured by
// MAX_VOLT, plants by primary fuel and labelled cities.
func StaticMap(w io.Writer, data StaticData, opts StaticOptions) error {
	def := DefaultStaticOptions()
	if opts.WidthM <= 0 || opts.HeightM <= 0 {
		opts.WidthM, opts.HeightM = def.WidthM, def.HeightM
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		opts.Width, opts.Height = def.Width, def.Height
	}
	if opts.Title == "" {
		opts.Title = def.Title
	}
	if opts.Center == (geo.Point{}) {
		opts.Center = def.Center
	}

	c := &canvas{
		proj: geo.NewLambertConformal(opts.Center, opts.Center.Lat, opts.Center.Lat),
		opts: opts,
	}
	totalW := marginLeft + opts.Width + sidePanel
	totalH := marginTop + opts.Height + 20

	c.printf(`<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d" font-family="DejaVu Sans, Arial, sans-serif">`+"\n",
		totalW, totalH, totalW, totalH)
	c.printf(`<rect width="100%%" height="100%%" fill="#ffffff"/>` + "\n")
	c.printf(`<text x="%d" y="30" font-size="16" text-anchor="middle">%s</text>`+"\n",
		marginLeft+opts.Width/2, html.EscapeString(opts.Title))
	c.printf(`<defs><clipPath id="frame"><rect x="%d" y="%d" width="%d" height="%d"/></clipPath></defs>`+"\n",
		marginLeft, marginTop, opts.Width, opts.Height)
	c.printf(`<g clip-path="url(#frame)">` + "\n")

	c.counties(data.Counties)
	lo, hi := voltageRange(data.Substations)
	c.substations(data.Substations, lo, hi)
	fuels := fuelOrder(data.Plants)
	c.plants(data.Plants, fuels)
	c.cities(data.Cities)

	c.printf("</g>\n")
	c.printf(`<rect x="%d" y="%d" width="%d" height="%d" fill="none" stroke="#000000"/>`+"\n",
		marginLeft, marginTop, opts.Width, opts.Height)
	c.colorBar(lo, hi)
	c.legend(fuels)
	c.printf("</svg>\n")

	_, err := io.WriteString(w, c.sb.String())
	return eris.Wrap(err, "render: static map")
}

func (c *canvas) counties(counties []boundary.County) {
	if len(counties) == 0 {
		return
	}
	c.printf(`<g fill="none" stroke="#000000" stroke-width="0.5">` + "\n")
	for _, county := range counties {
		var polys []*geom.Polygon
		switch g := county.Geometry.(type) {
		case *geom.Polygon:
			polys = append(polys, g)
		case *geom.MultiPolygon:
			for i := 0; i < g.NumPolygons(); i++ {
				polys = append(polys, g.Polygon(i))
			}
		}
		var d strings.Builder
		for _, p := range polys {
			for r := 0; r < p.NumLinearRings(); r++ {
				c.ringPath(&d, p.LinearRing(r).FlatCoords(), p.Stride())
			}
		}
		if d.Len() > 0 {
			c.printf(`<path d="%s"><title>%s</title></path>`+"\n", d.String(), html.EscapeString(county.Name))
		}
	}
	c.printf("</g>\n")
}

func (c *canvas) ringPath(d *strings.Builder, flat []float64, stride int) {
	for i := 0; i+1 < len(flat); i += stride {
		x, y := c.xy(geo.Point{Lon: flat[i], Lat: flat[i+1]})
		cmd := "L"
		if i == 0 {
			cmd = "M"
		}
		fmt.Fprintf(d, "%s%.1f %.1f ", cmd, x, y)
	}
	d.WriteString("Z ")
}

// voltageRange is the min and max known MAX_VOLT.
func voltageRange(subs []dataset.Substation) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, s := range subs {
		if s.MaxVolt == nil {
			continue
		}
		lo = math.Min(lo, *s.MaxVolt)
		hi = math.Max(hi, *s.MaxVolt)
	}
	if math.IsInf(lo, 1) {
		return 0, 0
	}
	return lo, hi
}

func (c *canvas) substations(subs []dataset.Substation, lo, hi float64) {
	const side = 5.0
	c.printf(`<g stroke="#000000" stroke-width="0.5">` + "\n")
	for _, s := range subs {
		x, y := c.xy(s.Location)
		fill := "#bbbbbb"
		if s.MaxVolt != nil {
			fill = Viridis(Normalize(*s.MaxVolt, lo, hi))
		}
		c.printf(`<rect x="%.1f" y="%.1f" width="%.1f" height="%.1f" fill="%s"><title>%s</title></rect>`+"\n",
			x-side/2, y-side/2, side, side, fill, html.EscapeString(substationTitle(s)))
	}
	c.printf("</g>\n")
}

// substationTitle is the hover text: name, MAX_VOLT and voltage class.
func substationTitle(s dataset.Substation) string {
	if s.MaxVolt == nil {
		return s.Name + " (unknown voltage)"
	}
	return fmt.Sprintf("%s (%s kV, %s)", s.Name, formatFloat(*s.MaxVolt), strings.ReplaceAll(s.Class(), "_", " "))
}

// fuelOrder lists primary fuels in order of first appearance.
func fuelOrder(plants []dataset.Plant) []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range plants {
		if !seen[p.PrimaryFuel] {
			seen[p.PrimaryFuel] = true
			out = append(out, p.PrimaryFuel)
		}
	}
	return out
}

func triangle(x, y, size float64) string {
	h := size * math.Sqrt(3) / 2
	return fmt.Sprintf("%.1f,%.1f %.1f,%.1f %.1f,%.1f",
		x, y-h*2/3, x-size/2, y+h/3, x+size/2, y+h/3)
}

func (c *canvas) plants(plants []dataset.Plant, fuels []string) {
	colors := make(map[string]string, len(fuels))
	for i, f := range fuels {
		colors[f] = Set1(i, len(fuels))
	}
	c.printf(`<g stroke="#000000" stroke-width="0.5">` + "\n")
	for _, p := range plants {
		x, y := c.xy(p.Location)
		c.printf(`<polygon points="%s" fill="%s"><title>%s</title></polygon>`+"\n",
			triangle(x, y, 8), colors[p.PrimaryFuel], html.EscapeString(p.Name))
	}
	c.printf("</g>\n")
}

func (c *canvas) cities(cities []geo.City) {
	for _, city := range cities {
		x, y := c.xy(city.Location)
		c.printf(`<circle cx="%.1f" cy="%.1f" r="2.5" fill="#000000"/>`+"\n", x, y)
		c.printf(`<text x="%.1f" y="%.1f" font-size="9" text-anchor="end">%s</text>`+"\n",
			x-2, y-2, html.EscapeString(city.Name))
	}
}

func (c *canvas) colorBar(lo, hi float64) {
	x := marginLeft + c.opts.Width + 20
	c.printf(`<defs><linearGradient id="viridis" x1="0" y1="1" x2="0" y2="0">`)
	for i := 0; i <= 10; i++ {
		t := float64(i) / 10
		c.printf(`<stop offset="%.1f" stop-color="%s"/>`, t, Viridis(t))
	}
	c.printf("</linearGradient></defs>\n")
	c.printf(`<rect x="%d" y="%d" width="%d" height="%d" fill="url(#viridis)" stroke="#000000" stroke-width="0.5"/>`+"\n",
		x, marginTop, colorBarW, c.opts.Height)
	for i := 0; i <= 4; i++ {
		t := float64(i) / 4
		y := float64(marginTop) + (1-t)*float64(c.opts.Height)
		c.printf(`<text x="%d" y="%.1f" font-size="10" dominant-baseline="middle">%s</text>`+"\n",
			x+colorBarW+4, y, formatTick(lo+t*(hi-lo)))
	}
	cy := marginTop + c.opts.Height/2
	c.printf(`<text x="%d" y="%d" font-size="11" text-anchor="middle" transform="rotate(-90 %d %d)">Substation MAX_VOLT</text>`+"\n",
		x+colorBarW+48, cy, x+colorBarW+48, cy)
}

func formatTick(v float64) string {
	if v == math.Trunc(v) {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.1f", v)
}

func (c *canvas) legend(fuels []string) {
	x := float64(marginLeft + c.opts.Width + 110)
	y := float64(marginTop + c.opts.Height/2 - (len(fuels)+1)*9)

	c.printf(`<g font-size="11" stroke-width="0.5">` + "\n")
	c.printf(`<rect x="%.1f" y="%.1f" width="6" height="6" fill="%s" stroke="#000000"/>`+"\n", x, y-3, Viridis(0.5))
	c.printf(`<text x="%.1f" y="%.1f" dominant-baseline="middle">Substations</text>`+"\n", x+14, y)
	for i, f := range fuels {
		y += 18
		c.printf(`<polygon points="%s" fill="%s" stroke="#000000"/>`+"\n", triangle(x+3, y, 8), Set1(i, len(fuels)))
		c.printf(`<text x="%.1f" y="%.1f" dominant-baseline="middle">%s Energy</text>`+"\n", x+14, y, html.EscapeString(f))
	}
	c.printf("</g>\n")
}
