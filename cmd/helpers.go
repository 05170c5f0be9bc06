package main

import (
	"context"
	"encoding/json"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/gridlink/internal/config"
	"github.com/sells-group/gridlink/internal/model"
	"github.com/sells-group/gridlink/internal/render"
	"github.com/sells-group/gridlink/internal/store"
)

// openStore opens the configured store and applies its schema.
func openStore(ctx context.Context) (store.Store, error) {
	if err := cfg.Validate("store"); err != nil {
		return nil, err
	}
	st, err := store.New(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

// outputPaths are the optional files a plan is exported to.
type outputPaths struct {
	Map     string
	GeoJSON string
	CSV     string
	XLSX    string
}

func (o outputPaths) any() bool {
	return o.Map != "" || o.GeoJSON != "" || o.CSV != "" || o.XLSX != ""
}

// writeOutputs exports plan to every requested path.
func writeOutputs(plan *model.Plan, mapCfg config.MapConfig, out outputPaths) error {
	log := zap.L().With(zap.String("plan_id", plan.ID))

	if out.Map != "" {
		if err := writeFile(out.Map, func(f *os.File) error {
			return render.InteractiveMap(f, render.PlanData(plan), render.PlanOptions(mapCfg))
		}); err != nil {
			return err
		}
		log.Info("wrote plan map", zap.String("path", out.Map))
	}
	if out.GeoJSON != "" {
		if err := writeFile(out.GeoJSON, func(f *os.File) error {
			enc := json.NewEncoder(f)
			enc.SetIndent("", "  ")
			return eris.Wrap(enc.Encode(render.PlanGeoJSON(plan)), "encode geojson")
		}); err != nil {
			return err
		}
		log.Info("wrote plan geojson", zap.String("path", out.GeoJSON))
	}
	if out.CSV != "" {
		if err := writeFile(out.CSV, func(f *os.File) error {
			return render.WriteConnectionsCSV(f, plan)
		}); err != nil {
			return err
		}
		log.Info("wrote connections csv", zap.String("path", out.CSV))
	}
	if out.XLSX != "" {
		if err := render.WriteConnectionsXLSX(out.XLSX, plan); err != nil {
			return err
		}
		log.Info("wrote connections xlsx", zap.String("path", out.XLSX))
	}
	return nil
}

// writeFile creates path and hands it to fn, closing it afterwards.
func writeFile(path string, fn func(f *os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "create %s", path)
	}
	if err := fn(f); err != nil {
		f.Close() //nolint:errcheck
		return err
	}
	return eris.Wrapf(f.Close(), "close %s", path)
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
