// Package render draws infrastructure and connection plan maps and exports
// plan connections as GeoJSON, CSV and XLSX.
package render

import (
	"html"
	"strconv"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/gridlink/internal/dataset"
)

// Map titles.
const (
	PlanTitle           = "Optimized Energy Connections in Pennsylvania"
	InfrastructureTitle = "Energy Infrastructure in Pennsylvania"
	StaticTitle         = "Substations, Renewable Energy Sites in Pennsylvania"
)

// cableColors are cycled by cable index.
var cableColors = []string{"blue", "yellow", "purple"}

// CableColor returns the line colour of a cable index.
func CableColor(cable int) string {
	if cable < 0 {
		cable = -cable
	}
	return cableColors[cable%len(cableColors)]
}

var costPrinter = message.NewPrinter(language.English)

// FormatCost renders a cost as dollars with thousands separators and two
// decimals, e.g. $1,234,567.89.
func FormatCost(v float64) string {
	if v < 0 {
		return "-" + FormatCost(-v)
	}
	return costPrinter.Sprintf("$%.2f", v)
}

// plantLabel is the hover text of a plant on the infrastructure map.
func plantLabel(p dataset.Plant) string {
	if p.PrimaryFuel == "" {
		return html.EscapeString(p.Name)
	}
	return html.EscapeString(p.Name) + "<br>" + html.EscapeString(p.PrimaryFuel)
}

// siteLabel is the hover text of a site on a plan map.
func siteLabel(name string, capacityMW float64) string {
	return html.EscapeString(name) + " (" + strconv.FormatFloat(capacityMW, 'f', -1, 64) + " MW)"
}
