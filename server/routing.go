package server

import (
	"net/http"
	"strings"
)

// setupHTTPRoutes configures all HTTP handlers. Longer patterns win in
// net/http, so the catch-all prefixes at the bottom only see what the
// explicit routes above them did not claim.
func (s *Server) setupHTTPRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/recorder/status", s.corsMiddleware(s.handleStatusAll))
	mux.HandleFunc("/api/recorder/status/", s.corsMiddleware(s.handleStatusOne))
	mux.HandleFunc("/api/recorder/start", s.corsMiddleware(s.handleStart))
	mux.HandleFunc("/api/recorder/stop/", s.corsMiddleware(s.handleStop))
	mux.HandleFunc("/api/recorder/", s.corsMiddleware(s.handleRemove))
	mux.HandleFunc("/api/", s.corsMiddleware(s.handleRoot))
}

// corsMiddleware adds CORS headers using configured allowed origins. The
// reverse proxy in front normally makes this moot, but a dev frontend talks
// to the API directly.
func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		if origin != "" && s.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}

		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		// Handle preflight requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

// originAllowed matches an Origin header against server.allowed_origins;
// entries match exactly or as a prefix followed by a port
func (s *Server) originAllowed(origin string) bool {
	for _, allowed := range s.cfg.Server.AllowedOrigins {
		if origin == allowed || strings.HasPrefix(origin, allowed+":") {
			return true
		}
	}
	return false
}
