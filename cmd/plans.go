package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/gridlink/internal/model"
	"github.com/sells-group/gridlink/internal/render"
	"github.com/sells-group/gridlink/internal/store"
)

var plansCmd = &cobra.Command{
	Use:   "plans",
	Short: "Inspect stored connection plans",
}

// -- plans list --

var plansListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored plans, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		limit, _ := cmd.Flags().GetInt("limit")
		plans, err := st.ListPlans(ctx, limit)
		if err != nil {
			return eris.Wrap(err, "plans list")
		}
		if len(plans) == 0 {
			fmt.Fprintln(os.Stderr, "No plans found.")
			return nil
		}

		formatPlansList(os.Stdout, plans)
		return nil
	},
}

// -- plans show --

var plansShowCmd = &cobra.Command{
	Use:   "show <plan-id>",
	Short: "Show a stored plan as JSON, or export it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		plan, err := st.GetPlan(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "plans show")
		}

		out := outputFlags(cmd.Flags())
		if out.any() {
			return writeOutputs(plan, cfg.Map, out)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(plan)
	},
}

func init() {
	plansListCmd.Flags().Int("limit", store.DefaultListLimit, "max number of plans to display")
	addOutputFlags(plansShowCmd.Flags())

	plansCmd.AddCommand(plansListCmd)
	plansCmd.AddCommand(plansShowCmd)
	rootCmd.AddCommand(plansCmd)
}

// formatPlansList writes a tabular list of plan summaries to out.
func formatPlansList(out io.Writer, plans []model.PlanSummary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tCREATED\tSCENARIO\tSTATUS\tMETRIC\tPLANTS\tSUBSTATIONS\tTOTAL_COST")
	for _, p := range plans {
		scenario := p.Scenario
		if scenario == "" {
			scenario = "-"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			p.ID,
			p.CreatedAt.Format("2006-01-02 15:04"),
			scenario,
			p.Status,
			p.Metric,
			p.Sites,
			p.Substations,
			render.FormatCost(p.TotalCost),
		)
	}
	_ = w.Flush()
}
