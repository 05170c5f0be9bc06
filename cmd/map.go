package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/gridlink/internal/geo"
	"github.com/sells-group/gridlink/internal/planner"
	"github.com/sells-group/gridlink/internal/render"
)

var mapCmd = &cobra.Command{
	Use:   "map",
	Short: "Draw substations and renewable plants without optimising",
	Long: `Writes an interactive HTML map of every substation and renewable plant in the
region over its county outlines. With --static the map is an SVG in a Lambert
conformal projection, substations coloured by MAX_VOLT and plants by fuel.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("plan"); err != nil {
			return err
		}
		static, _ := cmd.Flags().GetBool("static")
		knownVoltage, _ := cmd.Flags().GetBool("known-voltage")
		out, _ := cmd.Flags().GetString("out")
		if out == "" {
			out = "pa_energy_infrastructure.html"
			if static {
				out = "pa_substations.svg"
			}
		}

		p := planner.New(cfg, nil, nil, nil)
		in, err := p.LoadInputs(ctx, planner.InputOptions{
			Counties:         true,
			KnownVoltageOnly: static && knownVoltage,
		})
		if err != nil {
			return err
		}

		err = writeFile(out, func(f *os.File) error {
			if static {
				opts := render.DefaultStaticOptions()
				opts.Center = geo.Point{Lat: cfg.Map.CenterLat, Lon: cfg.Map.CenterLon}
				return render.StaticMap(f, render.StaticData{
					Counties:    in.Counties,
					Substations: in.Substations,
					Plants:      in.Plants,
					Cities:      geo.MajorCities,
				}, opts)
			}
			data := render.InfrastructureData(in.Substations, in.Plants, in.Counties)
			return render.InteractiveMap(f, data, render.InfrastructureOptions(cfg.Map))
		})
		if err != nil {
			return err
		}

		zap.L().Info("wrote infrastructure map",
			zap.String("path", out),
			zap.Bool("static", static),
			zap.Int("substations", len(in.Substations)),
			zap.Int("plants", len(in.Plants)),
		)
		fmt.Printf("Map of %d substations and %d plants written to %s\n", len(in.Substations), len(in.Plants), out)
		return nil
	},
}

func init() {
	mapCmd.Flags().String("out", "", "output file (default pa_energy_infrastructure.html, or pa_substations.svg with --static)")
	mapCmd.Flags().Bool("static", false, "write a static SVG map instead of HTML")
	mapCmd.Flags().Bool("known-voltage", true, "static map: drop substations without a MAX_VOLT")
	rootCmd.AddCommand(mapCmd)
}
