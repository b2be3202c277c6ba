// ABOUTME: HTTP server struct, constructor, and route wiring for the validation API.
// ABOUTME: Holds the store, config, embedded standard defaults, and the rate limiter.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/openaid-dev/aidcheck/internal/config"
	"github.com/openaid-dev/aidcheck/internal/defaults"
	"github.com/openaid-dev/aidcheck/internal/store"
)

// Server holds the dependencies for the HTTP layer.
type Server struct {
	store       *store.Store
	cfg         *config.Config
	defaults    *defaults.Store
	rateLimiter *ipRateLimiter
}

// NewServer creates a Server. The embedded standard data is loaded once and
// shared across requests.
func NewServer(s *store.Store, cfg *config.Config) *Server {
	evictTTL := cfg.RateLimitEvictTTL
	if evictTTL == 0 {
		evictTTL = 15 * time.Minute
	}
	// 30 requests per minute, burst of 10 — validation runs are not cheap.
	rl := newIPRateLimiter(rate.Limit(30.0/60), 10, evictTTL)
	return &Server{
		store:       s,
		cfg:         cfg,
		defaults:    defaults.NewStore(),
		rateLimiter: rl,
	}
}

// Handler builds and returns the http.Handler.
func (srv *Server) Handler() http.Handler {
	var db *pgxpool.Pool
	if srv.store != nil {
		db = srv.store.Pool()
	}
	r := chi.NewRouter()

	// Security headers first so they appear on every response including errors.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			next.ServeHTTP(w, r)
		})
	})

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	// Body limit protects against OOM from oversized uploads; the validate
	// handler additionally turns the limit breach into a clean 413.
	r.Use(middleware.RequestSize(srv.maxDocumentBytes()))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", healthzHandler(db))
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.With(srv.rateLimit()).Post("/validate", srv.validateHandler)

		r.Get("/reports", srv.listReportsHandler)
		r.Get("/reports/{id}", srv.getReportHandler)

		r.Get("/rulesets/standard", srv.standardRulesetHandler)
		r.Get("/rulesets/schema", srv.rulesetSchemaHandler)
		r.With(srv.rateLimit()).Post("/rulesets/check", srv.checkRulesetHandler)
	})

	return r
}

func (srv *Server) maxDocumentBytes() int64 {
	if srv.cfg != nil && srv.cfg.MaxDocumentBytes > 0 {
		return srv.cfg.MaxDocumentBytes
	}
	return 50 << 20
}

// writeJSON writes v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("writeJSON: encode failed", "error", err)
	}
}

// errorBody is the JSON shape of every non-2xx response.
type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// healthResponse is the JSON body for /healthz.
type healthResponse struct {
	Status string `json:"status"`
	DB     string `json:"db,omitempty"`
}

// healthzHandler returns 200 {"status":"ok"} when the DB is reachable,
// or 503 {"status":"degraded","db":"unavailable"} when it is not.
func healthzHandler(db *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "ok"}
		statusCode := http.StatusOK

		if db == nil {
			resp.Status = "degraded"
			resp.DB = "unavailable"
			statusCode = http.StatusServiceUnavailable
		} else if err := db.Ping(r.Context()); err != nil {
			slog.WarnContext(r.Context(), "healthz: db ping failed", "error", err)
			resp.Status = "degraded"
			resp.DB = "unavailable"
			statusCode = http.StatusServiceUnavailable
		}

		writeJSON(w, statusCode, resp)
	}
}
