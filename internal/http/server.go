// Package http serves the ledger as a JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"keeptrack/internal/auth"
	"keeptrack/internal/cache"
	"keeptrack/internal/core"
	"keeptrack/internal/ledger"
	"keeptrack/internal/log"
	"keeptrack/internal/stats"
)

const (
	dashboardCacheSize = 256
	dashboardCacheTTL  = 5 * time.Minute
	readyCheckTimeout  = 5 * time.Second
)

// Authenticator is the identity provider the API signs users in with.
type Authenticator interface {
	SignUp(ctx context.Context, email, password string) (auth.Session, error)
	SignIn(ctx context.Context, email, password string) (auth.Session, error)
	SignOut(ctx context.Context, token string) error
	Verify(token string) (string, error)
}

// ReadyCheck reports whether a dependency can serve requests.
type ReadyCheck func(ctx context.Context) error

type Deps struct {
	Sessions *ledger.Sessions
	// Auth may be nil, in which case every request acts for the offline owner.
	Auth         Authenticator
	AllowOffline bool
	Checks       map[string]ReadyCheck
	Logger       *log.Logger
	// RateLimit caps mutating requests per client and minute. Zero means 60.
	RateLimit int
	Now       func() time.Time
}

type Server struct {
	http.Server
	sessions     *ledger.Sessions
	auth         Authenticator
	allowOffline bool
	checks       map[string]ReadyCheck
	logger       *log.Logger
	now          func() time.Time
	started      time.Time

	rateLimiter    *rateLimiter
	security       *securityMetrics
	dashboardCache *cache.LRUCache[stats.Dashboard]

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Deps) *Server {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	s := &Server{
		sessions:       deps.Sessions,
		auth:           deps.Auth,
		allowOffline:   deps.AllowOffline || deps.Auth == nil,
		checks:         deps.Checks,
		logger:         log.Or(deps.Logger).WithComponent(log.ComponentHTTP),
		now:            now,
		started:        now(),
		rateLimiter:    newRateLimiter(deps.RateLimit, time.Minute),
		security:       &securityMetrics{},
		dashboardCache: cache.NewLRUCache[stats.Dashboard](dashboardCacheSize, dashboardCacheTTL).WithClock(now),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("POST /auth/signup", s.handleSignUp)
	mux.HandleFunc("POST /auth/signin", s.handleSignIn)
	mux.HandleFunc("POST /auth/signout", s.handleSignOut)

	mux.Handle("GET /transactions", s.withLedger(s.handleListTransactions))
	mux.Handle("POST /transactions", s.withLedger(s.handleCreateTransaction))
	mux.Handle("GET /transactions/recent", s.withLedger(s.handleRecentTransactions))
	mux.Handle("GET /transactions/{id}", s.withLedger(s.handleGetTransaction))
	mux.Handle("PATCH /transactions/{id}", s.withLedger(s.handleUpdateTransaction))
	mux.Handle("DELETE /transactions/{id}", s.withLedger(s.handleDeleteTransaction))

	mux.Handle("GET /budgets", s.withLedger(s.handleListBudgets))
	mux.Handle("PUT /budgets", s.withLedger(s.handleUpsertBudget))
	mux.Handle("DELETE /budgets/{id}", s.withLedger(s.handleDeleteBudget))

	mux.Handle("GET /dashboard", s.withLedger(s.handleDashboard))
	mux.Handle("GET /stats/totals", s.withLedger(s.handleTotals))
	mux.Handle("GET /stats/monthly", s.withLedger(s.handleMonthlySeries))
	mux.Handle("GET /stats/balance", s.withLedger(s.handleBalanceSeries))
	mux.Handle("GET /stats/breakdown", s.withLedger(s.handleBreakdown))

	mux.Handle("GET /export/{format}", s.withLedger(s.handleExport))

	mux.Handle("GET /settings/currency", s.withLedger(s.handleGetCurrency))
	mux.Handle("PUT /settings/currency", s.withLedger(s.handleSetCurrency))
	mux.HandleFunc("GET /categories", s.handleCategories)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.withSecurity(mux),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Caches lists the server caches that need periodic cleanup.
func (s *Server) Caches() []cache.Cleaner {
	return []cache.Cleaner{s.dashboardCache}
}

// Shutdown gracefully shuts down the server and its cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// withSecurity sets security headers, tags the request with an ID and a
// request scoped logger, flags suspicious traffic and rate limits writes.
func (s *Server) withSecurity(next http.Handler) http.Handler {
	logged := log.RequestMiddleware(s.logger, func(r *http.Request) string {
		return r.Header.Get(requestIDHeader)
	}, extractClientIP)(next)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := requestID(r)
		r.Header.Set(requestIDHeader, id)
		clientIP := extractClientIP(r)

		h := w.Header()
		h.Set(requestIDHeader, id)
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Cache-Control", "no-store")

		if detectSuspiciousRequest(r, s.security) {
			s.logger.WithComponent(log.ComponentSecurity).WarnContext(r.Context(), "Suspicious request",
				log.FieldRequestID, id,
				log.FieldClientIP, clientIP,
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path,
				log.FieldUserAgent, r.UserAgent())
		}

		if r.Method != http.MethodGet && r.Method != http.MethodHead && !s.rateLimiter.allow(clientIP, s.security) {
			s.logger.WithComponent(log.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
				log.FieldRequestID, id,
				log.FieldClientIP, clientIP,
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeMessage(w, r, http.StatusTooManyRequests, "rate limit exceeded, try again later")
			return
		}

		logged.ServeHTTP(w, r)
	})
}

// ledgerHandler serves a request on behalf of the caller's ledger.
type ledgerHandler func(w http.ResponseWriter, r *http.Request, store *ledger.Store)

// withLedger resolves the caller from the bearer token and hands the
// handler that identity's store. Without a token the request runs for the
// offline owner when that is allowed.
func (s *Server) withLedger(next ledgerHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner, ok := s.resolveOwner(w, r)
		if !ok {
			return
		}

		ctx := r.Context()
		logger := log.FromContext(ctx).WithOwner(owner)
		ctx = log.NewContext(ctx, logger)

		store, err := s.sessions.Get(ctx, owner)
		if err != nil {
			logger.ErrorOp(ctx, "Opening ledger failed", log.OpLoad, err)
			writeMessage(w, r, http.StatusServiceUnavailable, "ledger unavailable")
			return
		}
		next(w, r.WithContext(ctx), store)
	})
}

func (s *Server) resolveOwner(w http.ResponseWriter, r *http.Request) (string, bool) {
	token := bearerToken(r)
	if token == "" || s.auth == nil {
		if !s.allowOffline {
			s.unauthorized(w, r, "authentication required")
			return "", false
		}
		return core.Offline, true
	}
	owner, err := s.auth.Verify(token)
	if err != nil {
		s.unauthorized(w, r, err.Error())
		return "", false
	}
	return owner, true
}

func (s *Server) unauthorized(w http.ResponseWriter, r *http.Request, msg string) {
	atomic.AddInt64(&s.security.unauthorized, 1)
	w.Header().Set("WWW-Authenticate", `Bearer realm="keeptrack"`)
	writeMessage(w, r, http.StatusUnauthorized, msg)
}

func (s *Server) today() core.Date {
	return core.DateOf(s.now())
}
