// Package tiger downloads Census TIGER/Line boundary shapefiles, parses county
// subdivisions and attributes substations and plants to them.
package tiger

import (
	"fmt"
	"sort"
	"strings"
)

// DefaultBaseURL is the Census Bureau TIGER/Line download root.
const DefaultBaseURL = "https://www2.census.gov/geo/tiger"

// Product describes a TIGER/Line boundary product.
type Product struct {
	Name     string // e.g. "COUSUB"
	Table    string // file suffix, e.g. "cousub"
	National bool   // true = tl_<year>_us_<table>.zip, false = one file per state
}

// Products lists the boundary products gridlink can read.
var Products = []Product{
	{Name: "COUSUB", Table: "cousub"},
	{Name: "PLACE", Table: "place"},
	{Name: "COUNTY", Table: "county", National: true},
}

// FIPSCodes maps state abbreviation to 2-digit FIPS code for all 50 states + DC.
var FIPSCodes = map[string]string{
	"AL": "01", "AK": "02", "AZ": "04", "AR": "05", "CA": "06",
	"CO": "08", "CT": "09", "DE": "10", "DC": "11", "FL": "12",
	"GA": "13", "HI": "15", "ID": "16", "IL": "17", "IN": "18",
	"IA": "19", "KS": "20", "KY": "21", "LA": "22", "ME": "23",
	"MD": "24", "MA": "25", "MI": "26", "MN": "27", "MS": "28",
	"MO": "29", "MT": "30", "NE": "31", "NV": "32", "NH": "33",
	"NJ": "34", "NM": "35", "NY": "36", "NC": "37", "ND": "38",
	"OH": "39", "OK": "40", "OR": "41", "PA": "42", "RI": "44",
	"SC": "45", "SD": "46", "TN": "47", "TX": "48", "UT": "49",
	"VT": "50", "VA": "51", "WA": "53", "WV": "54", "WI": "55",
	"WY": "56",
}

var abbrByFIPS map[string]string

func init() {
	abbrByFIPS = make(map[string]string, len(FIPSCodes))
	for abbr, fips := range FIPSCodes {
		abbrByFIPS[fips] = abbr
	}
}

// AbbrFromFIPS returns the state abbreviation for a FIPS code.
func AbbrFromFIPS(fips string) (string, bool) {
	abbr, ok := abbrByFIPS[fips]
	return abbr, ok
}

// StateFIPS resolves either a 2-digit FIPS code or a state abbreviation.
func StateFIPS(state string) (string, bool) {
	s := strings.ToUpper(strings.TrimSpace(state))
	if fips, ok := FIPSCodes[s]; ok {
		return fips, true
	}
	if len(s) == 1 {
		s = "0" + s
	}
	if _, ok := abbrByFIPS[s]; ok {
		return s, true
	}
	return "", false
}

// AllStateFIPS returns a sorted list of all state FIPS codes.
func AllStateFIPS() []string {
	codes := make([]string, 0, len(FIPSCodes))
	for _, fips := range FIPSCodes {
		codes = append(codes, fips)
	}
	sort.Strings(codes)
	return codes
}

// ProductByName looks up a product by name, ignoring case.
func ProductByName(name string) (Product, bool) {
	for _, p := range Products {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return Product{}, false
}

// DownloadURL builds the download URL for a TIGER/Line shapefile, e.g.
// <base>/TIGER2019/COUSUB/tl_2019_42_cousub.zip. An empty base uses
// DefaultBaseURL.
func DownloadURL(base string, year int, stateFIPS string, product Product) string {
	if base == "" {
		base = DefaultBaseURL
	}
	base = strings.TrimRight(base, "/")
	area := stateFIPS
	if product.National {
		area = "us"
	}
	return fmt.Sprintf("%s/TIGER%d/%s/tl_%d_%s_%s.zip", base, year, product.Name, year, area, product.Table)
}

// FileStem returns the archive name without extension, e.g. tl_2019_42_cousub.
func FileStem(year int, stateFIPS string, product Product) string {
	area := stateFIPS
	if product.National {
		area = "us"
	}
	return fmt.Sprintf("tl_%d_%s_%s", year, area, product.Table)
}
