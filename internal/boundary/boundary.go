// Package boundary fetches county outlines from a GeoJSON FeatureCollection
// and re-encodes them for the map layers.
package boundary

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/sells-group/gridlink/internal/fetcher"
	"github.com/sells-group/gridlink/internal/resilience"
)

// DefaultCountiesURL is the US counties FeatureCollection keyed by 5-digit FIPS.
const DefaultCountiesURL = "https://raw.githubusercontent.com/plotly/datasets/master/geojson-counties-fips.json"

// County is one county outline.
type County struct {
	GeoID    string `json:"geo_id"` // e.g. 0500000US42001
	FIPS     string `json:"fips"`   // e.g. 42001
	State    string `json:"state"`  // 2-digit state FIPS
	Name     string `json:"name"`
	Geometry geom.T `json:"-"`
}

// Client downloads county boundaries through a circuit breaker with retries
// and keeps a per-state copy on disk.
type Client struct {
	resolver *fetcher.Resolver
	breaker  *resilience.Breaker
	retry    resilience.RetryConfig
	cacheDir string
}

// NewClient creates a Client. An empty cacheDir disables the disk cache.
func NewClient(resolver *fetcher.Resolver, breaker *resilience.Breaker, retry resilience.RetryConfig, cacheDir string) *Client {
	if breaker == nil {
		breaker = resilience.NewBreaker("boundary", resilience.DefaultBreakerConfig())
	}
	if resolver == nil {
		resolver = fetcher.NewResolver(fetcher.HTTPOptions{}, fetcher.FTPOptions{})
	}
	retry.OnRetry = resilience.RetryLogger("boundary", "fetch_counties")
	return &Client{resolver: resolver, breaker: breaker, retry: retry, cacheDir: cacheDir}
}

// cachePath keys the cached outlines by state and by a name-based UUID of
// src, so a new boundary URL never reads another source's counties.
func (c *Client) cachePath(src, stateFIPS string) string {
	if c.cacheDir == "" {
		return ""
	}
	key := uuid.NewSHA1(uuid.NameSpaceURL, []byte(src)).String()[:8]
	return filepath.Join(c.cacheDir, fmt.Sprintf("counties_%s_%s.geojson", stateFIPS, key))
}

// FetchCounties returns the counties of stateFIPS from the FeatureCollection
// at src. An empty stateFIPS keeps every county.
func (c *Client) FetchCounties(ctx context.Context, src, stateFIPS string) ([]County, error) {
	log := zap.L().With(zap.String("component", "boundary"), zap.String("state_fips", stateFIPS))

	cache := c.cachePath(src, stateFIPS)
	if cache != "" {
		if f, err := os.Open(cache); err == nil {
			defer f.Close() //nolint:errcheck
			counties, parseErr := ParseCounties(f, stateFIPS)
			if parseErr == nil {
				log.Debug("boundary: using cached counties", zap.String("path", cache))
				return counties, nil
			}
			log.Warn("boundary: ignoring unreadable cache", zap.String("path", cache), zap.Error(parseErr))
		}
	}

	data, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) ([]byte, error) {
		return resilience.Call(ctx, c.breaker, func(ctx context.Context) ([]byte, error) {
			rc, openErr := c.resolver.Open(ctx, src)
			if openErr != nil {
				return nil, openErr
			}
			defer rc.Close() //nolint:errcheck
			body, readErr := io.ReadAll(rc)
			if readErr != nil {
				return nil, resilience.NewTransientError(eris.Wrap(readErr, "boundary: read body"), 0)
			}
			return body, nil
		})
	})
	if err != nil {
		return nil, eris.Wrapf(err, "boundary: fetch %s", src)
	}

	counties, err := ParseCounties(bytes.NewReader(data), stateFIPS)
	if err != nil {
		return nil, err
	}
	log.Info("boundary: counties loaded", zap.Int("counties", len(counties)))

	if cache != "" {
		if err := writeCache(cache, counties); err != nil {
			log.Warn("boundary: cache write failed", zap.Error(err))
		}
	}
	return counties, nil
}

func writeCache(path string, counties []County) error {
	data, err := MarshalFeatureCollection(counties)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrap(err, "boundary: create cache dir")
	}
	return eris.Wrap(os.WriteFile(path, data, 0o644), "boundary: write cache")
}

// ParseCounties decodes a FeatureCollection and keeps the features whose
// STATE property equals stateFIPS. Features without geometry are dropped.
func ParseCounties(r io.Reader, stateFIPS string) ([]County, error) {
	fc, err := fetcher.DecodeJSONObject[geojson.FeatureCollection](r)
	if err != nil {
		return nil, eris.Wrap(err, "boundary: decode feature collection")
	}

	var counties []County
	for _, f := range fc.Features {
		if f == nil || f.Geometry == nil {
			continue
		}
		state := property(f.Properties, "STATE")
		if stateFIPS != "" && state != stateFIPS {
			continue
		}
		geoID := property(f.Properties, "GEO_ID")
		fips := FIPSFromGeoID(geoID)
		if fips == "" {
			fips = f.ID
		}
		counties = append(counties, County{
			GeoID:    geoID,
			FIPS:     fips,
			State:    state,
			Name:     property(f.Properties, "NAME"),
			Geometry: f.Geometry,
		})
	}
	return counties, nil
}

// FIPSFromGeoID returns the part of a census GEO_ID after "US", e.g.
// "0500000US42001" becomes "42001". Returns "" when there is no "US".
func FIPSFromGeoID(geoID string) string {
	_, after, ok := strings.Cut(geoID, "US")
	if !ok {
		return ""
	}
	return after
}

func property(props map[string]interface{}, key string) string {
	v, ok := props[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// FeatureCollection converts counties to GeoJSON features keyed by FIPS.
func FeatureCollection(counties []County) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(counties))}
	for _, c := range counties {
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:       c.FIPS,
			Geometry: c.Geometry,
			Properties: map[string]interface{}{
				"GEO_ID": c.GeoID,
				"STATE":  c.State,
				"NAME":   c.Name,
				"FIPS":   c.FIPS,
			},
		})
	}
	return fc
}

// MarshalFeatureCollection encodes counties as a GeoJSON document.
func MarshalFeatureCollection(counties []County) ([]byte, error) {
	data, err := json.Marshal(FeatureCollection(counties))
	if err != nil {
		return nil, eris.Wrap(err, "boundary: encode feature collection")
	}
	return data, nil
}
