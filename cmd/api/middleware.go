// cmd/api/middleware.go
package main

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/aoideee/bookreviews/internal/auth"
)

// recoverPanic turns a panic in any downstream handler into a 500 and closes
// the connection.
func (app *applicationDependencies) recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				w.Header().Set("Connection", "close")
				app.serverErrorResponse(w, r, fmt.Errorf("panic: %v", err))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// clientLimiters hands out one token bucket per client IP. Buckets idle for
// longer than clientIdleTTL are dropped, at most once per sweepInterval, by
// the request that finds the last sweep stale.
type clientLimiters struct {
	mu        sync.Mutex
	rps       rate.Limit
	burst     int
	buckets   map[string]*clientBucket
	lastSweep time.Time
}

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

const (
	clientIdleTTL = 3 * time.Minute
	sweepInterval = time.Minute
)

func newClientLimiters(rps float64, burst int) *clientLimiters {
	return &clientLimiters{
		rps:     rate.Limit(rps),
		burst:   burst,
		buckets: make(map[string]*clientBucket),
	}
}

// allow consumes one token from ip's bucket.
func (cl *clientLimiters) allow(ip string, now time.Time) bool {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	if now.Sub(cl.lastSweep) >= sweepInterval {
		cl.sweepLocked(now)
	}

	b, ok := cl.buckets[ip]
	if !ok {
		b = &clientBucket{limiter: rate.NewLimiter(cl.rps, cl.burst)}
		cl.buckets[ip] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

// sweepLocked must be called with mu held.
func (cl *clientLimiters) sweepLocked(now time.Time) {
	cl.lastSweep = now
	for ip, b := range cl.buckets {
		if now.Sub(b.lastSeen) > clientIdleTTL {
			delete(cl.buckets, ip)
		}
	}
}

// rateLimit throttles each client IP with its own token bucket of the
// configured rate and burst.
func (app *applicationDependencies) rateLimit(next http.Handler) http.Handler {
	if !app.config.limiter.enabled {
		return next
	}

	limiters := newClientLimiters(app.config.limiter.rps, app.config.limiter.burst)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			app.serverErrorResponse(w, r, err)
			return
		}

		if !limiters.allow(ip, time.Now()) {
			app.rateLimitExceededResponse(w, r)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// authenticate resolves the request's authorization state. No Authorization
// header means anonymous. A header that is not a valid bearer token also
// leaves the request anonymous, but marks it so protected routes can say the
// token was rejected; public routes such as login must keep working for a
// client still sending an expired token. A valid token puts its claims in the
// request context.
func (app *applicationDependencies) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Vary", "Authorization")

		authorizationHeader := r.Header.Get("Authorization")
		if authorizationHeader == "" {
			next.ServeHTTP(w, r)
			return
		}

		headerParts := strings.SplitN(authorizationHeader, " ", 2)
		if len(headerParts) != 2 || !strings.EqualFold(headerParts[0], "Bearer") {
			next.ServeHTTP(w, app.contextSetTokenRejected(r))
			return
		}

		claims, err := app.tokens.Verify(strings.TrimSpace(headerParts[1]))
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrInvalidToken):
				next.ServeHTTP(w, app.contextSetTokenRejected(r))
			default:
				app.serverErrorResponse(w, r, err)
			}
			return
		}

		next.ServeHTTP(w, app.contextSetUser(r, claims))
	})
}

// requireAuthenticatedUser rejects anonymous requests before the wrapped
// handler touches the database.
func (app *applicationDependencies) requireAuthenticatedUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if app.contextGetUser(r) == nil {
			if app.contextTokenRejected(r) {
				app.invalidAuthenticationTokenResponse(w, r)
				return
			}
			app.authenticationRequiredResponse(w, r)
			return
		}
		next.ServeHTTP(w, r)
	}
}

// secureHeaders sets the browser hardening headers on every response. The
// API only ever serves JSON, so nothing may be framed, sniffed or loaded.
func (app *applicationDependencies) secureHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "deny")

		next.ServeHTTP(w, r)
	})
}

// enableCORS lets browsers on the configured trusted origins call the API,
// including preflight requests for authenticated writes.
func (app *applicationDependencies) enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Vary", "Origin")
		w.Header().Add("Vary", "Access-Control-Request-Method")

		origin := r.Header.Get("Origin")

		if origin != "" {
			for _, trusted := range app.config.cors.trustedOrigins {
				if origin != trusted {
					continue
				}
				w.Header().Set("Access-Control-Allow-Origin", origin)

				if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
					w.Header().Set("Access-Control-Allow-Methods", "OPTIONS, GET, POST, PUT, DELETE")
					w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
					w.WriteHeader(http.StatusOK)
					return
				}
				break
			}
		}

		next.ServeHTTP(w, r)
	})
}

// statusRecorder remembers the status code written through it.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(status int) {
	sr.status = status
	sr.ResponseWriter.WriteHeader(status)
}

// logRequest writes one access log line per request.
func (app *applicationDependencies) logRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		app.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
			"remote_addr", r.RemoteAddr,
		)
	})
}
