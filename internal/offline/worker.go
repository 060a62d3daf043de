// Package offline serves the web shell cache-first so the app keeps loading
// when the asset origin is unreachable.
//
// The cache is keyed by a fixed version name; shipping new assets means
// bumping the version. Nothing is ever invalidated automatically.
package offline

import (
	"context"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"readingflow/internal/metrics"
)

// DefaultVersion names the cache generation
const DefaultVersion = "leituraflow-v1"

// FallbackPath is served when an asset is neither cached nor fetchable
const FallbackPath = "/index.html"

// DefaultManifest lists the assets cached at install time
var DefaultManifest = []string{
	"/",
	"/index.html",
	"/style.css",
	"/script.js",
	"/manifest.json",
}

// Worker answers asset requests from its cache, then the origin, then the
// cached offline shell
type Worker struct {
	Version  string
	Manifest []string
	Cache    CacheProvider
	Fetcher  Fetcher

	// CacheOnFetch stores assets fetched after install as well
	CacheOnFetch bool

	logger *zap.Logger
}

// NewWorker creates a worker with the default manifest
func NewWorker(version string, cache CacheProvider, fetcher Fetcher, logger *zap.Logger) *Worker {
	if version == "" {
		version = DefaultVersion
	}
	return &Worker{
		Version:      version,
		Manifest:     DefaultManifest,
		Cache:        cache,
		Fetcher:      fetcher,
		CacheOnFetch: true,
		logger:       logger,
	}
}

// Install pre-populates the cache with the manifest. Assets that fail to
// fetch or store are logged and skipped. Returns how many were cached.
func (w *Worker) Install(ctx context.Context) int {
	cached := 0
	for _, p := range w.Manifest {
		entry, err := w.Fetcher.Fetch(ctx, p)
		if err != nil {
			w.logger.Warn("Asset could not be cached", zap.String("path", p), zap.Error(err))
			metrics.CacheFetchErrors.Inc()
			continue
		}
		if err := w.Cache.Put(ctx, p, entry); err != nil {
			w.logger.Warn("Asset could not be stored", zap.String("path", p), zap.Error(err))
			continue
		}
		cached++
	}

	w.logger.Info("Offline cache installed",
		zap.String("version", w.Version),
		zap.Int("cached", cached),
		zap.Int("manifest", len(w.Manifest)),
	)
	return cached
}

// ServeHTTP serves cache-first with network and offline-shell fallbacks
func (w *Worker) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		rw.Header().Set("Allow", "GET, HEAD")
		http.Error(rw, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	key := RequestKey(r)

	entry, ok, err := w.Cache.Match(ctx, r)
	if err != nil {
		w.logger.Warn("Cache lookup failed", zap.String("path", key), zap.Error(err))
	}
	if ok {
		metrics.CacheRequests.WithLabelValues("hit").Inc()
		w.write(rw, r, entry)
		return
	}

	entry, err = w.Fetcher.Fetch(ctx, key)
	if err == nil {
		metrics.CacheRequests.WithLabelValues("miss").Inc()
		if w.CacheOnFetch {
			if err := w.Cache.Put(ctx, key, entry); err != nil {
				w.logger.Warn("Failed to cache fetched asset", zap.String("path", key), zap.Error(err))
			}
		}
		w.write(rw, r, entry)
		return
	}

	metrics.CacheFetchErrors.Inc()
	w.logger.Debug("Fetch failed, trying offline shell", zap.String("path", key), zap.Error(err))

	fallback, ok, ferr := w.Cache.Get(ctx, FallbackPath)
	if ferr == nil && ok {
		metrics.CacheRequests.WithLabelValues("fallback").Inc()
		w.write(rw, r, fallback)
		return
	}

	metrics.CacheRequests.WithLabelValues("unavailable").Inc()
	http.Error(rw, "Gateway Timeout", http.StatusGatewayTimeout)
}

func (w *Worker) write(rw http.ResponseWriter, r *http.Request, entry *Entry) {
	for k, values := range entry.Header {
		for _, v := range values {
			rw.Header().Add(k, v)
		}
	}
	rw.Header().Set("Content-Length", strconv.Itoa(len(entry.Body)))
	rw.Header().Set("X-Cache-Version", w.Version)

	status := entry.Status
	if status == 0 {
		status = http.StatusOK
	}
	rw.WriteHeader(status)

	if r.Method == http.MethodHead {
		return
	}
	if _, err := rw.Write(entry.Body); err != nil {
		w.logger.Debug("Failed to write response", zap.Error(err))
	}
}
