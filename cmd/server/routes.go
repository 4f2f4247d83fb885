package main

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// routes registers all HTTP routes and middleware
func (s *Server) routes() http.Handler {
	router := mux.NewRouter()
	router.Use(s.loggingMiddleware)

	router.HandleFunc("/health", s.handleHealth).Methods("GET")
	gatherer := s.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods("GET")

	api := router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/concerts", s.handleListConcerts).Methods("GET")
	api.HandleFunc("/concerts", s.handleCreateConcert).Methods("POST")
	api.HandleFunc("/concerts/{id}", s.handleGetConcert).Methods("GET")
	api.HandleFunc("/concerts/{id}", s.handleUpdateConcert).Methods("PUT")
	api.HandleFunc("/concerts/{id}", s.handleDeleteConcert).Methods("DELETE")
	api.HandleFunc("/concerts/{id}/songs", s.handleAddSong).Methods("POST")
	api.HandleFunc("/concerts/{id}/setlist", s.handleReorderSetlist).Methods("PUT")
	api.HandleFunc("/concerts/{id}/detections", s.handleStartDetection).Methods("POST")

	api.HandleFunc("/songs/{id}", s.handleDeleteSong).Methods("DELETE")
	api.HandleFunc("/songs/{id}/link", s.handleSetSongLink).Methods("PUT")

	api.HandleFunc("/detection", s.handleGetDetection).Methods("GET")
	api.HandleFunc("/detection", s.handleCancelDetection).Methods("DELETE")
	api.HandleFunc("/detection/reset", s.handleResetDetection).Methods("POST")

	api.HandleFunc("/catalog", s.handleListTracks).Methods("GET")
	api.HandleFunc("/catalog", s.handleAddTrack).Methods("POST")
	api.HandleFunc("/catalog/{id}", s.handleDeleteTrack).Methods("DELETE")

	// outside the router so preflight requests never reach method matching
	return corsMiddleware(s.config.Origins)(router)
}

// corsMiddleware adds CORS headers to responses
func corsMiddleware(allowedOrigins []string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			allowed := false
			if len(allowedOrigins) == 0 || (len(allowedOrigins) == 1 && allowedOrigins[0] == "*") {
				w.Header().Set("Access-Control-Allow-Origin", "*")
				allowed = true
			} else {
				for _, allowedOrigin := range allowedOrigins {
					if allowedOrigin == origin {
						w.Header().Set("Access-Control-Allow-Origin", origin)
						w.Header().Add("Vary", "Origin")
						allowed = true
						break
					}
				}
			}

			if allowed {
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
				w.Header().Set("Access-Control-Max-Age", "3600")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// loggingMiddleware logs all HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		start := s.now()

		next.ServeHTTP(wrapped, r)

		s.log.Infof("%s %s from %s -> %d (%s)", r.Method, r.URL.Path, getClientIP(r),
			wrapped.statusCode, s.now().Sub(start).Round(time.Millisecond))
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// getClientIP extracts the client IP from the request
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// may hold a proxy chain, the first entry is the client
		ips := strings.Split(xff, ",")
		return strings.TrimSpace(ips[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}
