package metrics

import (
	"net/http"
	"strings"
	"sync"
)

var (
	skipMu    sync.RWMutex
	skipPaths = map[string]struct{}{"/metrics": {}}

	normMu sync.RWMutex
	// RPC routes are a fixed set; anything else collapses to one label.
	pathNormalizer = func(r *http.Request) string {
		if strings.HasPrefix(r.URL.Path, "/rpc/") || r.URL.Path == "/types" {
			return r.URL.Path
		}
		return "other"
	}
)

// AddMetricsSkipPaths extends the skip list. "/metrics" is always skipped.
func AddMetricsSkipPaths(paths ...string) {
	skipMu.Lock()
	defer skipMu.Unlock()
	for _, p := range paths {
		if p = strings.TrimSpace(p); p != "" {
			skipPaths[p] = struct{}{}
		}
	}
}

// SetPathNormalizer replaces the method label source for HTTP requests and
// returns the previous one.
func SetPathNormalizer(fn func(*http.Request) string) func(*http.Request) string {
	normMu.Lock()
	defer normMu.Unlock()
	prev := pathNormalizer
	if fn != nil {
		pathNormalizer = fn
	}
	return prev
}

func isSkipPath(r *http.Request) bool {
	skipMu.RLock()
	defer skipMu.RUnlock()
	_, ok := skipPaths[r.URL.Path]
	return ok
}

func normalizePath(r *http.Request) string {
	normMu.RLock()
	fn := pathNormalizer
	normMu.RUnlock()
	return fn(r)
}
