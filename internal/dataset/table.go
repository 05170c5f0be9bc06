package dataset

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"

	"github.com/sells-group/gridlink/internal/fetcher"
)

// table is a header plus string rows, whatever the source format.
type table struct {
	header []string
	rows   [][]string
}

// Options controls how sources are opened and decoded.
type Options struct {
	Resolver *fetcher.Resolver // nil uses a default resolver
	TempDir  string            // download and extraction directory
	Encoding string            // CSV charset, empty = UTF-8
	Sheet    string            // XLSX sheet name, empty = first sheet
}

func (o Options) resolver() *fetcher.Resolver {
	if o.Resolver != nil {
		return o.Resolver
	}
	return fetcher.NewResolver(fetcher.HTTPOptions{}, fetcher.FTPOptions{})
}

func (o Options) tempDir() string {
	if o.TempDir != "" {
		return o.TempDir
	}
	return filepath.Join("/tmp", "gridlink")
}

// sourceExt returns the lower-case extension of a path or URL, ignoring any
// query string.
func sourceExt(src string) string {
	if i := strings.IndexAny(src, "?#"); i >= 0 {
		src = src[:i]
	}
	return strings.ToLower(filepath.Ext(src))
}

// readTable reads src into a table, picking the parser from the extension.
// A .zip source is extracted and its first shapefile, CSV or workbook used.
func readTable(ctx context.Context, src string, opts Options) (*table, error) {
	r := opts.resolver()

	switch ext := sourceExt(src); ext {
	case ".csv", ".txt", "":
		rc, err := r.Open(ctx, src)
		if err != nil {
			return nil, err
		}
		defer rc.Close() //nolint:errcheck
		header, rows, err := fetcher.ReadCSV(ctx, rc, fetcher.CSVOptions{
			Encoding:   opts.Encoding,
			LazyQuotes: true,
			TrimSpace:  true,
		})
		if err != nil {
			return nil, eris.Wrapf(err, "dataset: read %s", src)
		}
		return &table{header: header, rows: rows}, nil

	case ".xlsx":
		local, err := r.Fetch(ctx, src, opts.tempDir())
		if err != nil {
			return nil, err
		}
		header, rows, err := fetcher.ReadXLSX(local, fetcher.XLSXOptions{SheetName: opts.Sheet})
		if err != nil {
			return nil, eris.Wrapf(err, "dataset: read %s", src)
		}
		return &table{header: header, rows: rows}, nil

	case ".shp":
		local, err := r.Fetch(ctx, src, opts.tempDir())
		if err != nil {
			return nil, err
		}
		return readShapefile(local)

	case ".zip":
		local, err := r.Fetch(ctx, src, opts.tempDir())
		if err != nil {
			return nil, err
		}
		files, err := fetcher.ExtractZIP(local, strings.TrimSuffix(local, filepath.Ext(local)))
		if err != nil {
			return nil, eris.Wrapf(err, "dataset: extract %s", src)
		}
		for _, want := range []string{".shp", ".csv", ".xlsx"} {
			if member, findErr := fetcher.FindByExt(files, want); findErr == nil {
				return readTable(ctx, member, opts)
			}
		}
		return nil, eris.Errorf("dataset: %s holds no .shp, .csv or .xlsx file", src)

	default:
		return nil, eris.Errorf("dataset: unsupported source format %q", ext)
	}
}

// readShapefile flattens a shapefile's attribute table. Point records gain
// "longitude" and "latitude" columns from their geometry when the attribute
// table does not already carry coordinates.
func readShapefile(path string) (*table, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	header := make([]string, 0, len(fields)+2)
	for _, f := range fields {
		header = append(header, strings.TrimRight(f.String(), "\x00"))
	}
	_, hasLat := findColumn(header, latitudeAliases)
	_, hasLon := findColumn(header, longitudeAliases)
	addCoords := !hasLat || !hasLon
	if addCoords {
		header = append(header, "longitude", "latitude")
	}

	var rows [][]string
	for reader.Next() {
		_, shape := reader.Shape()
		row := make([]string, 0, len(header))
		for i := range fields {
			row = append(row, strings.TrimSpace(strings.TrimRight(reader.Attribute(i), "\x00")))
		}
		if addCoords {
			lon, lat := "", ""
			if p, ok := shape.(*shp.Point); ok && p != nil {
				lon = strconv.FormatFloat(p.X, 'f', -1, 64)
				lat = strconv.FormatFloat(p.Y, 'f', -1, 64)
			}
			row = append(row, lon, lat)
		}
		rows = append(rows, row)
	}
	return &table{header: header, rows: rows}, nil
}

var (
	latitudeAliases  = []string{"latitude", "lat", "y"}
	longitudeAliases = []string{"longitude", "lon", "lng", "long", "x"}
)

// findColumn returns the index of the first header matching any alias,
// compared case-insensitively after trimming.
func findColumn(header []string, aliases []string) (int, bool) {
	for _, alias := range aliases {
		for i, h := range header {
			if strings.EqualFold(strings.TrimSpace(h), alias) {
				return i, true
			}
		}
	}
	return -1, false
}

// columns maps canonical names to header positions.
type columns map[string]int

func resolveColumns(header []string, aliases map[string][]string, required ...string) (columns, error) {
	cols := make(columns, len(aliases))
	for name, list := range aliases {
		if i, ok := findColumn(header, list); ok {
			cols[name] = i
		}
	}
	var missing []string
	for _, name := range required {
		if _, ok := cols[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, eris.Errorf("dataset: missing required column(s) %s", strings.Join(missing, ", "))
	}
	return cols, nil
}

// get returns the trimmed cell for a canonical column, or "" when the column
// is absent or the row is short.
func (c columns) get(row []string, name string) string {
	i, ok := c[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func parseFloat(s string) (float64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
