package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/gridlink/internal/db"
	"github.com/sells-group/gridlink/internal/planner"
	"github.com/sells-group/gridlink/internal/tiger"
)

var tigerCmd = &cobra.Command{
	Use:   "tiger",
	Short: "Census TIGER/Line county subdivisions",
	Long: `Downloads Census TIGER/Line county subdivision (COUSUB) shapefiles, attributes
substations and plants to the subdivision containing them, and loads the
subdivisions into Postgres.`,
}

// stateShapefile is one downloaded and parsed COUSUB file.
type stateShapefile struct {
	Stem         string
	StateFIPS    string
	Subdivisions []tiger.Subdivision
	Skipped      int
}

// fetchSubdivisions downloads and parses the COUSUB file of every state.
func fetchSubdivisions(ctx context.Context, year int, states []string) ([]stateShapefile, error) {
	product, _ := tiger.ProductByName("COUSUB")
	resolver := planner.NewResolver(cfg.Fetch)

	out := make([]stateShapefile, 0, len(states))
	for _, state := range states {
		fips, ok := tiger.StateFIPS(state)
		if !ok {
			return nil, eris.Errorf("tiger: unknown state %q", state)
		}
		stem := tiger.FileStem(year, fips, product)
		url := tiger.DownloadURL(cfg.Tiger.BaseURL, year, fips, product)
		shpPath, err := tiger.Download(ctx, resolver, url, filepath.Join(cfg.Tiger.TempDir, stem))
		if err != nil {
			return nil, err
		}
		subs, skipped, err := tiger.ParseSubdivisions(shpPath)
		if err != nil {
			return nil, err
		}
		zap.L().Info("parsed county subdivisions",
			zap.String("file", stem),
			zap.Int("subdivisions", len(subs)),
			zap.Int("skipped", skipped),
		)
		out = append(out, stateShapefile{Stem: stem, StateFIPS: fips, Subdivisions: subs, Skipped: skipped})
	}
	return out, nil
}

// tigerTarget reads --year and --states, falling back to config.
func tigerTarget(cmd *cobra.Command) (int, []string) {
	year, _ := cmd.Flags().GetInt("year")
	if year == 0 {
		year = cfg.Tiger.Year
	}
	statesStr, _ := cmd.Flags().GetString("states")
	states := splitAndTrim(statesStr)
	if len(states) == 0 {
		states = []string{cfg.Tiger.StateFIPS}
	}
	return year, states
}

// -- tiger fetch --

var tigerFetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download and parse county subdivision shapefiles",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		year, states := tigerTarget(cmd)
		files, err := fetchSubdivisions(ctx, year, states)
		if err != nil {
			return err
		}
		for _, f := range files {
			fmt.Printf("%s: %d county subdivisions (%d skipped)\n", f.Stem, len(f.Subdivisions), f.Skipped)
		}
		return nil
	},
}

// -- tiger locate --

var tigerLocateCmd = &cobra.Command{
	Use:   "locate",
	Short: "Attribute substations and plants to county subdivisions",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("plan"); err != nil {
			return err
		}
		year, states := tigerTarget(cmd)
		files, err := fetchSubdivisions(ctx, year, states)
		if err != nil {
			return err
		}
		var subs []tiger.Subdivision
		for _, f := range files {
			subs = append(subs, f.Subdivisions...)
		}

		in, err := planner.New(cfg, nil, nil, nil).LoadInputs(ctx, planner.InputOptions{})
		if err != nil {
			return err
		}
		concurrency, _ := cmd.Flags().GetInt("concurrency")
		attr, err := tiger.Attribute(ctx, tiger.NewIndex(subs), in.Substations, in.Plants,
			tiger.AttributeOptions{Concurrency: concurrency})
		if err != nil {
			return err
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(attr)
		}
		top, _ := cmd.Flags().GetInt("top")
		formatTallies(os.Stdout, attr, top)
		return nil
	},
}

// -- tiger load --

var tigerLoadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load county subdivisions into Postgres",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if cfg.Store.Driver != "postgres" {
			return eris.New("tiger load: requires the postgres store driver")
		}
		year, states := tigerTarget(cmd)
		files, err := fetchSubdivisions(ctx, year, states)
		if err != nil {
			return err
		}

		pool, err := db.Connect(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := tiger.EnsureSchema(ctx, pool); err != nil {
			return err
		}

		for _, f := range files {
			n, err := tiger.Load(ctx, pool, f.Subdivisions, year)
			if err != nil {
				return eris.Wrapf(err, "tiger load: %s", f.Stem)
			}
			fmt.Printf("%s: loaded %d county subdivisions into %s\n", f.Stem, n, tiger.SubdivisionTable)
		}
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{tigerFetchCmd, tigerLocateCmd, tigerLoadCmd} {
		c.Flags().Int("year", 0, "TIGER/Line vintage (default from config)")
		c.Flags().String("states", "", "comma-separated state abbreviations or FIPS codes (default from config)")
	}
	tigerLocateCmd.Flags().Int("top", 20, "number of subdivisions to list")
	tigerLocateCmd.Flags().Int("concurrency", 0, "lookup workers (default GOMAXPROCS)")
	tigerLocateCmd.Flags().Bool("json", false, "print every placement as JSON")

	tigerCmd.AddCommand(tigerFetchCmd)
	tigerCmd.AddCommand(tigerLocateCmd)
	tigerCmd.AddCommand(tigerLoadCmd)
	rootCmd.AddCommand(tigerCmd)
}

// formatTallies prints the busiest subdivisions and the unmatched count.
func formatTallies(out io.Writer, attr *tiger.Attribution, top int) {
	tallies := attr.Tallies
	if top > 0 && len(tallies) > top {
		tallies = tallies[:top]
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "GEOID\tSUBDIVISION\tSUBSTATIONS\tPLANTS\tPLANT_MW")
	for _, t := range tallies {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%.1f\n", t.GEOID, t.Name, t.Substations, t.Plants, t.CapacityMW)
	}
	_ = w.Flush()
	_, _ = fmt.Fprintf(out, "%d substations, %d plants, %d outside every subdivision\n",
		len(attr.Substations), len(attr.Plants), attr.Unmatched)
}
