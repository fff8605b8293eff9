// Package http serves the case register API. Every case route is scoped by
// the owner id in the X-Owner-ID header; each owner gets its own cached
// repository view so refreshes and writes follow the repository rules.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"casebook/internal/cache"
	"casebook/internal/log"
	"casebook/internal/repository"
	"casebook/internal/store"
)

// CaseBackend is what the server needs from case persistence.
type CaseBackend interface {
	store.CaseStore
	store.HospitalLister
	Ping(ctx context.Context) error
}

// Options tune the server. Zero values pick the defaults.
type Options struct {
	ListLimit       int
	CacheSize       int
	CacheTTL        time.Duration
	WritesPerMinute int
	// Logger supplies the handler; nil means slog.Default. It should not
	// already carry a component attribute.
	Logger *slog.Logger
}

type Server struct {
	http.Server
	backend   CaseBackend
	listLimit int
	logger    *log.Logger

	views        *cache.LRUCache[*repository.Repository]
	cacheManager *cache.Manager
	rateLimiter  *rateLimiter
	security     *securityMetrics
	appMetrics   *appMetrics

	shutdownOnce sync.Once
}

// appMetrics counts application events for /metrics.
type appMetrics struct {
	casesCreated    int64
	casesUpdated    int64
	casesDeleted    int64
	refreshFailures int64
	uptime          time.Time
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, b CaseBackend, opts Options) *Server {
	if opts.CacheSize <= 0 {
		opts.CacheSize = 256
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 10 * time.Minute
	}
	handler := opts.Logger
	if handler == nil {
		handler = slog.Default()
	}
	logger := log.New(log.Config{Component: log.ComponentHTTP, Handler: handler.Handler()})

	s := &Server{
		backend:      b,
		listLimit:    store.ClampLimit(opts.ListLimit),
		logger:       logger,
		views:        cache.NewLRUCache[*repository.Repository](opts.CacheSize, opts.CacheTTL),
		cacheManager: cache.NewManager(),
		rateLimiter:  newRateLimiter(opts.WritesPerMinute),
		security:     &securityMetrics{},
		appMetrics:   &appMetrics{uptime: time.Now()},
	}
	s.cacheManager.Register(s.views)
	s.cacheManager.StartCleanup(opts.CacheTTL)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.HandleFunc("GET /hospitals", s.handleHospitals)

	mux.HandleFunc("GET /cases", s.withOwner(s.handleListCases))
	mux.HandleFunc("POST /cases", s.withOwner(s.handleCreateCase))
	mux.HandleFunc("PATCH /cases/{id}", s.withOwner(s.handleUpdateCase))
	mux.HandleFunc("DELETE /cases/{id}", s.withOwner(s.handleDeleteCase))
	mux.HandleFunc("GET /summary/monthly", s.withOwner(s.handleMonthlySummary))
	mux.HandleFunc("GET /summary/annual", s.withOwner(s.handleAnnualSummary))
	mux.HandleFunc("GET /stats", s.withOwner(s.handleStats))
	mux.HandleFunc("GET /reports/export.xlsx", s.withOwner(s.handleExport))

	var h http.Handler = mux
	h = log.RequestIDMiddleware(func(r *http.Request) string { return r.Header.Get(RequestIDHeader) })(h)
	h = log.Middleware(logger)(h)
	h = s.withSecurityHeaders(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// view returns the cached repository of owner, creating it on first use.
func (s *Server) view(owner string) *repository.Repository {
	return s.views.GetOrCreate(owner, func() *repository.Repository {
		r := repository.New(s.backend,
			repository.WithLimit(s.listLimit),
			repository.WithLogger(s.logger.WithComponent(log.ComponentCases)))
		r.SetOwner(owner)
		return r
	})
}

// withOwner rejects requests without an owner id with 401.
func (s *Server) withOwner(next func(http.ResponseWriter, *http.Request, string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner := ownerFromRequest(r)
		if owner == "" {
			atomic.AddInt64(&s.security.missingOwner, 1)
			UnauthorizedError("missing " + OwnerHeader + " header").Write(w)
			return
		}
		ctx := log.NewContext(r.Context(), log.FromContext(r.Context()).ForOwner(owner))
		next(w, r.WithContext(ctx), owner)
	}
}

// withSecurityHeaders adds security headers, rate limiting, and request logging to responses
func (s *Server) withSecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := extractClientIP(r)

		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = generateRequestID()
			r.Header.Set(RequestIDHeader, requestID)
		}
		ctx := r.Context()

		sl := log.NewStructuredLogger(s.logger.With(log.FieldRequestID, requestID))
		sl.LogHTTPStart(ctx, r, clientIP)

		if detectSuspiciousRequest(r, s.security) {
			s.logger.WarnContext(ctx, "Suspicious request",
				log.FieldRequestID, requestID,
				log.FieldClientIP, clientIP,
				log.FieldPath, r.URL.Path)
		}

		w.Header().Set(RequestIDHeader, requestID)
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Cache-Control", "no-store")

		if r.Method != http.MethodGet && r.Method != http.MethodHead && !s.rateLimiter.allow(clientIP, s.security) {
			s.logger.WarnContext(ctx, "Rate limit exceeded",
				log.FieldClientIP, clientIP,
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path)
			ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded").Header("Retry-After", "60").Write(w)
			return
		}

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		sl.LogHTTPEnd(ctx, r, rw.statusCode, time.Since(start).Milliseconds(), clientIP)
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
