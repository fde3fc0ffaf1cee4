package httpmiddleware

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSConfig configures the CORS middleware.
type CORSConfig struct {
	// AllowOrigins lists origins allowed to call the API. Empty or "*"
	// allows any origin.
	AllowOrigins []string
	// AllowMethods defaults to "POST, OPTIONS".
	AllowMethods []string
	// AllowHeaders defaults to "Content-Type".
	AllowHeaders []string
	// MaxAge is the preflight cache lifetime in seconds. Zero omits the header.
	MaxAge int
}

// CORS answers preflight requests with 204 and decorates actual requests
// with Access-Control-Allow-Origin. Origins are matched case-insensitively
// and echoed in their configured case.
func CORS(cfg CORSConfig) Middleware {
	allowAll := len(cfg.AllowOrigins) == 0
	allowed := make(map[string]string, len(cfg.AllowOrigins))
	for _, o := range cfg.AllowOrigins {
		if o == "*" {
			allowAll = true
			break
		}
		allowed[strings.ToLower(o)] = o
	}

	methods := "POST, OPTIONS"
	if len(cfg.AllowMethods) > 0 {
		methods = strings.Join(cfg.AllowMethods, ", ")
	}
	headers := "Content-Type"
	if len(cfg.AllowHeaders) > 0 {
		headers = strings.Join(cfg.AllowHeaders, ", ")
	}
	var maxAge string
	if cfg.MaxAge > 0 {
		maxAge = strconv.Itoa(cfg.MaxAge)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			if !allowAll {
				h.Add("Vary", "Origin")
			}

			origin := r.Header.Get("Origin")
			allowOrigin := ""
			switch {
			case allowAll:
				allowOrigin = "*"
			case origin != "":
				allowOrigin = allowed[strings.ToLower(origin)]
			}

			preflight := r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""
			if preflight {
				h.Add("Vary", "Access-Control-Request-Method")
				h.Add("Vary", "Access-Control-Request-Headers")
			}

			if allowOrigin != "" {
				h.Set("Access-Control-Allow-Origin", allowOrigin)
				h.Set("Access-Control-Allow-Methods", methods)
				h.Set("Access-Control-Allow-Headers", headers)
				if preflight && maxAge != "" {
					h.Set("Access-Control-Max-Age", maxAge)
				}
			}

			if preflight {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
