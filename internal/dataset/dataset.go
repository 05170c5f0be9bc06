// Package dataset loads the substation and renewable plant inventories from
// CSV, XLSX or shapefile sources and filters them to a study region.
package dataset

import (
	"github.com/sells-group/gridlink/internal/geo"
)

// UnknownVoltage is the HIFLD placeholder for a missing MAX_VOLT or MIN_VOLT.
const UnknownVoltage = -999999

// Substation is a grid node that plants can connect to.
type Substation struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	State    string    `json:"state"`
	City     string    `json:"city,omitempty"`
	County   string    `json:"county,omitempty"`
	Type     string    `json:"type,omitempty"`
	Status   string    `json:"status,omitempty"`
	Location geo.Point `json:"location"`
	MaxVolt  *float64  `json:"max_volt,omitempty"` // kV; nil when unknown
	MinVolt  *float64  `json:"min_volt,omitempty"`
}

// Plant is a renewable generation site.
type Plant struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Country     string    `json:"country"`
	Location    geo.Point `json:"location"`
	CapacityMW  float64   `json:"capacity_mw"`
	PrimaryFuel string    `json:"primary_fuel,omitempty"`
}

// Stats counts what happened to the rows of one source.
type Stats struct {
	Read    int `json:"read"`
	Kept    int `json:"kept"`
	Skipped int `json:"skipped"`
}
