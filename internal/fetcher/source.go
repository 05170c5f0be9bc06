package fetcher

import (
	"context"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Resolver opens dataset sources given as local paths or http(s)/ftp URLs.
type Resolver struct {
	HTTP Fetcher
	FTP  Fetcher
}

// NewResolver creates a Resolver backed by an HTTPFetcher and an FTPFetcher.
func NewResolver(httpOpts HTTPOptions, ftpOpts FTPOptions) *Resolver {
	return &Resolver{
		HTTP: NewHTTPFetcher(httpOpts),
		FTP:  NewFTPFetcher(ftpOpts),
	}
}

// IsRemote reports whether src is an http, https or ftp URL.
func IsRemote(src string) bool {
	u, err := url.Parse(src)
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https", "ftp":
		return true
	}
	return false
}

func (r *Resolver) fetcherFor(src string) (Fetcher, error) {
	u, err := url.Parse(src)
	if err != nil {
		return nil, eris.Wrapf(err, "source: parse %q", src)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		if r.HTTP == nil {
			return nil, eris.New("source: no http fetcher configured")
		}
		return r.HTTP, nil
	case "ftp":
		if r.FTP == nil {
			return nil, eris.New("source: no ftp fetcher configured")
		}
		return r.FTP, nil
	}
	return nil, eris.Errorf("source: unsupported scheme %q", u.Scheme)
}

// Open returns a reader for src. Local paths are opened directly.
func (r *Resolver) Open(ctx context.Context, src string) (io.ReadCloser, error) {
	if !IsRemote(src) {
		f, err := os.Open(src)
		if err != nil {
			return nil, eris.Wrap(err, "source: open local file")
		}
		return f, nil
	}

	fetcher, err := r.fetcherFor(src)
	if err != nil {
		return nil, err
	}
	rc, err := fetcher.Download(ctx, src)
	if err != nil {
		return nil, eris.Wrapf(err, "source: download %s", src)
	}
	return rc, nil
}

// Fetch materialises src as a file on disk and returns its path. Remote
// sources are downloaded into dir under their base name; an existing
// non-empty file with that name is reused, after an ETag check when the
// server supplied one.
func (r *Resolver) Fetch(ctx context.Context, src, dir string) (string, error) {
	if !IsRemote(src) {
		if _, err := os.Stat(src); err != nil {
			return "", eris.Wrap(err, "source: stat local file")
		}
		return src, nil
	}

	u, err := url.Parse(src)
	if err != nil {
		return "", eris.Wrapf(err, "source: parse %q", src)
	}
	name := path.Base(u.Path)
	if name == "" || name == "/" || name == "." {
		return "", eris.Errorf("source: cannot derive file name from %q", src)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrap(err, "source: create cache dir")
	}
	dest := filepath.Join(dir, name)
	fetcher, err := r.fetcherFor(src)
	if err != nil {
		return "", err
	}
	cf, conditional := fetcher.(ConditionalFetcher)

	if info, err := os.Stat(dest); err == nil && info.Size() > 0 {
		etag := readETag(dest)
		if !conditional || etag == "" {
			zap.L().Debug("source: using cached download", zap.String("path", dest))
			return dest, nil
		}
		return revalidate(ctx, cf, src, dest, etag)
	}

	var n int64
	if conditional {
		n, err = downloadTagged(ctx, cf, src, dest)
	} else {
		n, err = fetcher.DownloadToFile(ctx, src, dest)
	}
	if err != nil {
		return "", eris.Wrapf(err, "source: download %s", src)
	}
	zap.L().Info("source: downloaded",
		zap.String("url", src),
		zap.String("path", dest),
		zap.Int64("bytes", n),
	)
	return dest, nil
}

// etagPath is the sidecar holding the ETag of a cached download.
func etagPath(dest string) string { return dest + ".etag" }

func readETag(dest string) string {
	data, err := os.ReadFile(etagPath(dest))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func writeETag(dest, etag string) {
	if etag == "" {
		_ = os.Remove(etagPath(dest))
		return
	}
	if err := os.WriteFile(etagPath(dest), []byte(etag), 0o644); err != nil {
		zap.L().Warn("source: write etag", zap.String("path", dest), zap.Error(err))
	}
}

// downloadTagged downloads src into dest and records its ETag.
func downloadTagged(ctx context.Context, cf ConditionalFetcher, src, dest string) (int64, error) {
	body, etag, changed, err := cf.DownloadIfChanged(ctx, src, "")
	if err != nil {
		return 0, err
	}
	if !changed {
		return 0, eris.New("source: not modified without a cached copy")
	}
	defer body.Close() //nolint:errcheck
	n, err := writeFile(dest, body)
	if err != nil {
		return n, err
	}
	writeETag(dest, etag)
	return n, nil
}

// revalidate refreshes a cached download whose ETag no longer matches. A
// failed check keeps the cached copy.
func revalidate(ctx context.Context, cf ConditionalFetcher, src, dest, etag string) (string, error) {
	log := zap.L().With(zap.String("url", src), zap.String("path", dest))
	body, newTag, changed, err := cf.DownloadIfChanged(ctx, src, etag)
	if err != nil {
		log.Warn("source: revalidation failed, using cached download", zap.Error(err))
		return dest, nil
	}
	if !changed {
		log.Debug("source: cached download is current")
		return dest, nil
	}
	defer body.Close() //nolint:errcheck
	n, err := writeFile(dest, body)
	if err != nil {
		return "", eris.Wrapf(err, "source: refresh %s", src)
	}
	writeETag(dest, newTag)
	log.Info("source: refreshed changed download", zap.Int64("bytes", n))
	return dest, nil
}

// Locate fetches src and, when it is a .zip archive, extracts it next to the
// archive and returns the first member with extension ext. Non-archive
// sources are returned as fetched.
func (r *Resolver) Locate(ctx context.Context, src, dir, ext string) (string, error) {
	local, err := r.Fetch(ctx, src, dir)
	if err != nil {
		return "", err
	}
	if !strings.EqualFold(filepath.Ext(local), ".zip") {
		return local, nil
	}

	extractDir := strings.TrimSuffix(local, filepath.Ext(local))
	files, err := ExtractZIP(local, extractDir)
	if err != nil {
		return "", err
	}
	return FindByExt(files, ext)
}
