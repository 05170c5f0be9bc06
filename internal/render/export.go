package render

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/gridlink/internal/model"
)

// ConnectionHeader is the column layout of CSV and XLSX exports.
var ConnectionHeader = []string{
	"site_id", "site_name", "capacity_mw",
	"substation_id", "substation_name",
	"cable", "distance", "cost",
}

type connectionRecord struct {
	siteID, siteName      string
	capacityMW            float64
	substationID, subName string
	cable                 string
	distance, cost        float64
}

func connectionRecords(plan *model.Plan) []connectionRecord {
	if plan.Solution == nil {
		return nil
	}
	out := make([]connectionRecord, 0, len(plan.Solution.Connections))
	for _, c := range plan.Solution.Connections {
		if c.Site < 0 || c.Site >= len(plan.Sites) || c.Substation < 0 || c.Substation >= len(plan.Substations) {
			continue
		}
		rec := connectionRecord{
			siteID:       plan.Sites[c.Site].ID,
			siteName:     plan.Sites[c.Site].Name,
			capacityMW:   plan.Sites[c.Site].CapacityMW,
			substationID: plan.Substations[c.Substation].ID,
			subName:      plan.Substations[c.Substation].Name,
			distance:     c.Distance,
			cost:         c.Cost,
		}
		if c.Cable >= 0 && c.Cable < len(plan.Network.Cables) {
			rec.cable = plan.Network.Cables[c.Cable].Name
		}
		out = append(out, rec)
	}
	return out
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// WriteConnectionsCSV writes one row per chosen connection.
func WriteConnectionsCSV(w io.Writer, plan *model.Plan) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ConnectionHeader); err != nil {
		return eris.Wrap(err, "render: write csv header")
	}
	for _, r := range connectionRecords(plan) {
		row := []string{
			r.siteID, r.siteName, formatFloat(r.capacityMW),
			r.substationID, r.subName,
			r.cable, formatFloat(r.distance), formatFloat(r.cost),
		}
		if err := cw.Write(row); err != nil {
			return eris.Wrap(err, "render: write csv row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "render: flush csv")
}

// ConnectionsWorkbook builds a workbook with a Connections sheet and a
// Summary sheet of plan totals and cable usage.
func ConnectionsWorkbook(plan *model.Plan) (*xlsx.File, error) {
	f := xlsx.NewFile()

	conns, err := f.AddSheet("Connections")
	if err != nil {
		return nil, eris.Wrap(err, "render: add connections sheet")
	}
	header := conns.AddRow()
	for _, h := range ConnectionHeader {
		header.AddCell().SetString(h)
	}
	for _, r := range connectionRecords(plan) {
		row := conns.AddRow()
		row.AddCell().SetString(r.siteID)
		row.AddCell().SetString(r.siteName)
		row.AddCell().SetFloat(r.capacityMW)
		row.AddCell().SetString(r.substationID)
		row.AddCell().SetString(r.subName)
		row.AddCell().SetString(r.cable)
		row.AddCell().SetFloat(r.distance)
		row.AddCell().SetFloat(r.cost)
	}

	summary, err := f.AddSheet("Summary")
	if err != nil {
		return nil, eris.Wrap(err, "render: add summary sheet")
	}
	kv := func(k, v string) {
		row := summary.AddRow()
		row.AddCell().SetString(k)
		row.AddCell().SetString(v)
	}
	kv("field", "value")
	kv("plan_id", plan.ID)
	kv("scenario", plan.Network.Scenario)
	kv("status", string(plan.Status()))
	kv("metric", string(plan.Network.Metric))
	kv("total_cost", formatFloat(plan.TotalCost()))
	kv("sites", strconv.Itoa(len(plan.Sites)))
	kv("substations_used", strconv.Itoa(plan.Summary.SubstationsUsed))
	kv("total_mw", formatFloat(plan.Summary.TotalMW))
	for _, c := range plan.Summary.ByCable {
		kv("cable_"+c.Name+"_connections", strconv.Itoa(c.Connections))
		kv("cable_"+c.Name+"_cost", formatFloat(c.Cost))
	}
	if plan.Error != "" {
		kv("error", plan.Error)
	}
	return f, nil
}

// WriteConnectionsXLSX saves the plan's workbook to path.
func WriteConnectionsXLSX(path string, plan *model.Plan) error {
	f, err := ConnectionsWorkbook(plan)
	if err != nil {
		return err
	}
	return eris.Wrapf(f.Save(path), "render: save xlsx %s", path)
}
