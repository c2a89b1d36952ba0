// Package server exposes an spfresh index over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hupe1980/spfresh"
	"github.com/hupe1980/spfresh/blobstore"
)

// ErrNoStore is returned by snapshot requests when no store is configured.
var ErrNoStore = errors.New("no snapshot store configured")

// Options configures a Server.
type Options struct {
	// Store receives snapshots. Snapshot requests fail without one.
	Store blobstore.BlobStore
	// Gatherer is served at /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
	Logger   *spfresh.Logger

	RequestTimeout time.Duration
	MaxBodyBytes   int64
	CORSOrigins    []string

	// JWTSecret enables bearer token auth on the /api routes.
	JWTSecret string
	JWTIssuer string
}

// Server serves one index.
type Server struct {
	idx    *spfresh.Index
	opts   Options
	logger *spfresh.Logger
	router chi.Router
}

// New creates a server for idx.
func New(idx *spfresh.Index, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = spfresh.NoopLogger()
	}
	if opts.JWTIssuer == "" {
		opts.JWTIssuer = DefaultIssuer
	}
	s := &Server{idx: idx, opts: opts, logger: opts.Logger}
	s.router = s.routes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	if s.opts.RequestTimeout > 0 {
		r.Use(middleware.Timeout(s.opts.RequestTimeout))
	}
	if s.opts.MaxBodyBytes > 0 {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes)
				next.ServeHTTP(w, r)
			})
		})
	}
	if len(s.opts.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.opts.CORSOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
			MaxAge:         300,
		}))
	}

	r.Get("/health", s.handleHealth)
	if s.opts.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		if s.opts.JWTSecret != "" {
			r.Use(jwtMiddleware(s.opts.JWTSecret, s.opts.JWTIssuer))
		}
		r.Get("/stats", s.handleStats)
		r.Post("/vectors", s.handleAdd)
		r.Post("/build", s.handleBuild)
		r.Post("/search", s.handleSearch)
		r.Post("/snapshot", s.handleSnapshot)
	})
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.DebugContext(r.Context(), "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"elapsed", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// Snapshot saves the index to the configured store.
func (s *Server) Snapshot(ctx context.Context) error {
	if s.opts.Store == nil {
		return ErrNoStore
	}
	return s.idx.SaveTo(ctx, s.opts.Store)
}

// RunSnapshots saves the index every interval until ctx is done. Saves of
// an index that is not ready yet are skipped.
func (s *Server) RunSnapshots(ctx context.Context, interval time.Duration) {
	if interval <= 0 || s.opts.Store == nil {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.idx.IsReady() {
				continue
			}
			if err := s.Snapshot(ctx); err != nil && ctx.Err() == nil {
				s.logger.WarnContext(ctx, "periodic snapshot failed", "error", err)
			}
		}
	}
}

type apiResponse struct {
	Status string `json:"status"`
	Data   any    `json:"data,omitempty"`
	Error  string `json:"error,omitempty"`
}

// respondSuccess writes data in a success envelope. The body is encoded
// before the header is written so an unencodable payload turns into a 500.
func (s *Server) respondSuccess(w http.ResponseWriter, r *http.Request, data any) {
	body, err := json.Marshal(apiResponse{Status: "success", Data: data})
	if err != nil {
		s.logger.ErrorContext(r.Context(), "failed to encode response",
			"path", r.URL.Path,
			"error", err,
		)
		respondError(w, "failed to encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(append(body, '\n'))
}

func respondError(w http.ResponseWriter, message string, code int) {
	respond(w, code, apiResponse{Status: "error", Error: message})
}

func respond(w http.ResponseWriter, code int, body apiResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

// httpStatus maps an index error onto an HTTP status code.
func httpStatus(err error) int {
	switch spfresh.StatusOf(err) {
	case spfresh.StatusInvalidParameter:
		return http.StatusBadRequest
	case spfresh.StatusNotReady:
		return http.StatusConflict
	default:
		if errors.Is(err, context.DeadlineExceeded) {
			return http.StatusGatewayTimeout
		}
		return http.StatusInternalServerError
	}
}

func respondIndexError(w http.ResponseWriter, err error) {
	respondError(w, err.Error(), httpStatus(err))
}
