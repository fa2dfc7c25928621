package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/yangwenmai/reelcast/internal/output"
	"github.com/yangwenmai/reelcast/internal/store"
)

// maxRequestBody is the maximum allowed request body size (1 MB).
const maxRequestBody int64 = 1 << 20

// Server holds the HTTP handlers and dependencies.
type Server struct {
	store      store.RunRepository
	sink       output.Sink
	corsOrigin string
	mux        *http.ServeMux
}

// Option configures a Server.
type Option func(*Server)

// WithCORSOrigin sets the allowed CORS origin. Defaults to "*".
func WithCORSOrigin(origin string) Option {
	return func(s *Server) {
		if origin != "" {
			s.corsOrigin = origin
		}
	}
}

// WithSink enables downloading published voice clips.
func WithSink(sink output.Sink) Option {
	return func(s *Server) { s.sink = sink }
}

// New creates a new API server.
func New(s store.RunRepository, opts ...Option) *Server {
	srv := &Server{store: s, corsOrigin: "*", mux: http.NewServeMux()}
	for _, o := range opts {
		o(srv)
	}
	srv.routes()
	return srv
}

// Handler returns the root http.Handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return corsMiddleware(s.corsOrigin, limitBody(s.mux))
}

func (s *Server) routes() {
	s.mux.Handle("POST /api/runs", jsonContent(http.HandlerFunc(s.handleCreateRun)))
	s.mux.Handle("GET /api/runs", jsonContent(http.HandlerFunc(s.handleListRuns)))
	s.mux.Handle("GET /api/runs/{id}", jsonContent(http.HandlerFunc(s.handleGetRun)))
	s.mux.Handle("POST /api/runs/{id}/retry", jsonContent(http.HandlerFunc(s.handleRetry)))
	s.mux.Handle("PUT /api/runs/{id}/artifacts/{type}", jsonContent(http.HandlerFunc(s.handleEditArtifact)))
	s.mux.Handle("GET /api/stats", jsonContent(http.HandlerFunc(s.handleStats)))
	// The clip handler sets its own content type.
	s.mux.HandleFunc("GET /api/runs/{id}/voice", s.handleVoice)
}

// ---------------------------------------------------------------------------
// Middleware
// ---------------------------------------------------------------------------

func corsMiddleware(origin string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// limitBody restricts the request body to maxRequestBody bytes.
func limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
		next.ServeHTTP(w, r)
	})
}

func jsonContent(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// ---------------------------------------------------------------------------
// Response helpers
// ---------------------------------------------------------------------------

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func splitComma(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
