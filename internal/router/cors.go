package router

import (
	"net/http"
	"slices"
	"strings"

	"RefineAPI/internal/config"
)

// corsPolicy is parsed once from config and shared by every route.
type corsPolicy struct {
	origins     []string
	wildcard    bool
	credentials bool
}

func newCORSPolicy(cfg config.CORSConfig) corsPolicy {
	p := corsPolicy{credentials: cfg.AllowCredentials}
	for _, o := range strings.Split(cfg.AllowOrigin, ",") {
		if o = strings.TrimSpace(o); o != "" {
			p.origins = append(p.origins, o)
		}
	}
	p.wildcard = len(p.origins) == 0 || slices.Contains(p.origins, "*")
	return p
}

// allowOrigin returns the Access-Control-Allow-Origin value for requestOrigin
// and whether the answer depends on it.
func (p corsPolicy) allowOrigin(requestOrigin string) (string, bool) {
	switch {
	case p.wildcard && p.credentials && requestOrigin != "":
		return requestOrigin, true
	case p.wildcard:
		return "*", false
	case slices.Contains(p.origins, requestOrigin):
		return requestOrigin, true
	}
	return "", true
}

// wrap answers preflight requests itself, so they never reach auth.
func (p corsPolicy) wrap(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hdr := w.Header()
		origin, vary := p.allowOrigin(r.Header.Get("Origin"))
		if origin != "" {
			hdr.Set("Access-Control-Allow-Origin", origin)
		}
		if vary {
			hdr.Add("Vary", "Origin")
		}
		if p.credentials {
			hdr.Set("Access-Control-Allow-Credentials", "true")
		}
		hdr.Set("Access-Control-Expose-Headers", requestIDHeader)

		if r.Method == http.MethodOptions {
			hdr.Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			hdr.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+requestIDHeader)
			hdr.Set("Access-Control-Max-Age", "86400")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h(w, r)
	}
}
