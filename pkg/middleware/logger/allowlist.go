package logger

import (
	"net/http"
	"strings"
)

// Only reference-shaped calls are logged with bodies; specifications can carry
// secrets in properties or config.
var bodyLogPaths = map[string]struct{}{
	"/rpc/Get":    {},
	"/rpc/Delete": {},
	"/rpc/Ping":   {},
}

// Only log small JSON request bodies on allowlisted routes.
func shouldLogBody(r *http.Request, body []byte) bool {
	if r.Method != http.MethodPost {
		return false
	}
	if len(body) == 0 || len(body) > 1<<16 { // 64 KiB cap
		return false
	}
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		return false
	}
	_, ok := bodyLogPaths[r.URL.Path]
	return ok
}
