package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sells-group/gridlink/internal/model"
	"github.com/sells-group/gridlink/internal/optimize"
	"github.com/sells-group/gridlink/internal/planner"
	"github.com/sells-group/gridlink/internal/render"
	"github.com/sells-group/gridlink/internal/store"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Solve the connection plan for the configured region",
	Long: `Connects every renewable plant in the region to a substation with the cheapest
cable that carries its capacity, keeping each substation under its MW limit.

Network settings come from the config file; --scenario and the override flags
adjust them for this run. The plan is stored unless --no-store is given.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("plan"); err != nil {
			return err
		}
		sc, err := scenarioFromFlags(cmd.Flags())
		if err != nil {
			return err
		}

		noStore, _ := cmd.Flags().GetBool("no-store")
		out := outputFlags(cmd.Flags())

		var st store.Store
		if !noStore {
			st, err = openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
		}

		p := planner.New(cfg, st, nil, nil)
		plan, planErr := p.Plan(ctx, planner.Request{
			Scenario: *sc,
			Counties: out.Map != "",
			Persist:  !noStore,
		})
		if planErr != nil && (plan == nil || !optimize.IsInfeasible(planErr)) {
			return eris.Wrap(planErr, "plan")
		}

		if err := writeOutputs(plan, cfg.Map, out); err != nil {
			return err
		}
		printPlan(os.Stdout, plan)
		if planErr != nil {
			return eris.Wrap(planErr, "plan")
		}
		return nil
	},
}

func addScenarioFlags(fs *pflag.FlagSet) {
	fs.String("scenario", "", "YAML scenario file with network overrides")
	fs.String("metric", "", "distance metric override (planar or haversine)")
	fs.Float64("capacity", 0, "substation capacity override in MW")
	fs.Int("candidates", 0, "consider only the k nearest substations per plant (0 = all)")
}

func addOutputFlags(fs *pflag.FlagSet) {
	fs.String("map", "", "write an interactive HTML map of the plan")
	fs.String("geojson", "", "write the plan as GeoJSON")
	fs.String("csv", "", "write the chosen connections as CSV")
	fs.String("xlsx", "", "write the chosen connections and a summary as XLSX")
}

// scenarioFromFlags loads --scenario and applies the flags the user set.
func scenarioFromFlags(fs *pflag.FlagSet) (*planner.Scenario, error) {
	sc := &planner.Scenario{}
	if path, _ := fs.GetString("scenario"); path != "" {
		loaded, err := planner.LoadScenario(path)
		if err != nil {
			return nil, err
		}
		sc = loaded
	}
	if fs.Changed("metric") {
		sc.Metric, _ = fs.GetString("metric")
	}
	if fs.Changed("capacity") {
		v, _ := fs.GetFloat64("capacity")
		sc.SubstationCapacityMW = &v
	}
	if fs.Changed("candidates") {
		k, _ := fs.GetInt("candidates")
		sc.CandidatesPerSite = &k
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return sc, nil
}

func outputFlags(fs *pflag.FlagSet) outputPaths {
	var out outputPaths
	out.Map, _ = fs.GetString("map")
	out.GeoJSON, _ = fs.GetString("geojson")
	out.CSV, _ = fs.GetString("csv")
	out.XLSX, _ = fs.GetString("xlsx")
	return out
}

// printPlan writes the chosen connections and the total cost line.
func printPlan(out io.Writer, plan *model.Plan) {
	_, _ = fmt.Fprintf(out, "Plan %s: %s, %d plants, %d substations, %s metric\n",
		plan.ID, plan.Status(), len(plan.Sites), len(plan.Substations), plan.Network.Metric)

	if plan.Solution == nil {
		_, _ = fmt.Fprintf(out, "No feasible connection plan: %s\n", plan.Error)
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "PLANT\tMW\tSUBSTATION\tCABLE\tDISTANCE\tCOST")
	for _, c := range plan.Solution.Connections {
		site, sub, cable := "?", "?", "?"
		var mw float64
		if c.Site >= 0 && c.Site < len(plan.Sites) {
			site, mw = plan.Sites[c.Site].Name, plan.Sites[c.Site].CapacityMW
		}
		if c.Substation >= 0 && c.Substation < len(plan.Substations) {
			sub = plan.Substations[c.Substation].Name
		}
		if c.Cable >= 0 && c.Cable < len(plan.Network.Cables) {
			cable = plan.Network.Cables[c.Cable].Name
		}
		_, _ = fmt.Fprintf(w, "%s\t%.1f\t%s\t%s\t%.4f %s\t%s\n",
			site, mw, sub, cable, c.Distance, plan.Network.Metric.Unit(), render.FormatCost(c.Cost))
	}
	_ = w.Flush()

	for _, u := range plan.Summary.ByCable {
		if u.Connections == 0 {
			continue
		}
		_, _ = fmt.Fprintf(out, "  %s cable: %d connections, %.1f MW, %s\n",
			u.Name, u.Connections, u.CapacityMW, render.FormatCost(u.Cost))
	}
	if plan.Solution.Status != optimize.StatusOptimal {
		_, _ = fmt.Fprintf(out, "Search stopped early (%s); lower bound %s, gap %.2f%%\n",
			plan.Solution.StopReason, render.FormatCost(plan.Solution.LowerBound), plan.Solution.Gap*100)
	}
	_, _ = fmt.Fprintf(out, "Total connection cost: %s\n", render.FormatCost(plan.Solution.TotalCost))
}

func init() {
	addScenarioFlags(planCmd.Flags())
	addOutputFlags(planCmd.Flags())
	planCmd.Flags().Bool("no-store", false, "do not persist the plan")
	rootCmd.AddCommand(planCmd)
}
