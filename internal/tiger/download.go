package tiger

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/gridlink/internal/fetcher"
)

// Download fetches a TIGER/Line ZIP into destDir, extracts it and returns the
// path of the .shp member. An archive already present in destDir is reused.
func Download(ctx context.Context, resolver *fetcher.Resolver, url, destDir string) (string, error) {
	log := zap.L().With(
		zap.String("component", "tiger.download"),
		zap.String("url", url),
	)
	if resolver == nil {
		return "", eris.New("tiger: nil resolver")
	}

	log.Info("fetching TIGER shapefile")
	shpPath, err := resolver.Locate(ctx, url, destDir, ".shp")
	if err != nil {
		return "", eris.Wrap(err, "tiger: download shapefile")
	}
	log.Debug("shapefile ready", zap.String("path", shpPath))
	return shpPath, nil
}
