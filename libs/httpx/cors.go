package httpx

import (
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"
)

// CORSPolicy defines the CORS headers to emit for matching origins. An empty
// AllowedOrigins disables CORS handling; "*" allows any origin.
type CORSPolicy struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	AllowCredentials bool
	MaxAge           time.Duration
}

type corsHandler struct {
	next        http.Handler
	origins     []string
	anyOrigin   bool
	credentials bool
	methods     string
	headers     string
	maxAge      string
}

func WithCORS(cfg CORSPolicy) Middleware {
	origins := normalizeList(cfg.AllowedOrigins)
	if len(origins) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	maxAge := ""
	if secs := int(cfg.MaxAge.Seconds()); secs > 0 {
		maxAge = strconv.Itoa(secs)
	}
	return func(next http.Handler) http.Handler {
		return &corsHandler{
			next:        next,
			origins:     origins,
			anyOrigin:   slices.Contains(origins, "*"),
			credentials: cfg.AllowCredentials,
			methods:     strings.Join(normalizeList(cfg.AllowedMethods), ", "),
			headers:     strings.Join(normalizeList(cfg.AllowedHeaders), ", "),
			maxAge:      maxAge,
		}
	}
}

func (c *corsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	allowOrigin, ok := c.allow(origin)
	if !ok {
		c.next.ServeHTTP(w, r)
		return
	}

	h := w.Header()
	h.Set("Access-Control-Allow-Origin", allowOrigin)
	h.Add("Vary", "Origin")
	if c.credentials {
		h.Set("Access-Control-Allow-Credentials", "true")
	}

	preflight := r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""
	if !preflight {
		c.next.ServeHTTP(w, r)
		return
	}
	if c.methods != "" {
		h.Set("Access-Control-Allow-Methods", c.methods)
	}
	if c.headers != "" {
		h.Set("Access-Control-Allow-Headers", c.headers)
	}
	if c.maxAge != "" {
		h.Set("Access-Control-Max-Age", c.maxAge)
	}
	h.Add("Vary", "Access-Control-Request-Method")
	h.Add("Vary", "Access-Control-Request-Headers")
	w.WriteHeader(http.StatusNoContent)
}

// allow returns the Access-Control-Allow-Origin value for origin. A wildcard
// is echoed as the concrete origin when credentials are allowed, since
// browsers reject "*" together with credentials.
func (c *corsHandler) allow(origin string) (string, bool) {
	if origin == "" {
		return "", false
	}
	if c.anyOrigin {
		if c.credentials {
			return origin, true
		}
		return "*", true
	}
	if slices.ContainsFunc(c.origins, func(o string) bool { return strings.EqualFold(o, origin) }) {
		return origin, true
	}
	return "", false
}

func normalizeList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
