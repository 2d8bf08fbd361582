package handlers

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/shrimpsizemoose/trekker/logger"
	"golang.org/x/time/rate"

	"github.com/shrimpsizemoose/semla/internal/app"
	"github.com/shrimpsizemoose/semla/internal/apperrors"
	"github.com/shrimpsizemoose/semla/internal/metrics"
)

type ctxKey int

const userIDKey ctxKey = iota

func withUserID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

// UserIDFrom returns the user id put in place by RequireSession.
func UserIDFrom(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDKey).(int64)
	return id, ok
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) Status() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}

// Instrument records request durations labelled by route pattern.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		path := r.Pattern
		if path == "" {
			path = "unmatched"
		}
		metrics.APIRequestDuration.WithLabelValues(
			path,
			r.Method,
			strconv.Itoa(rec.Status()),
		).Observe(time.Since(start).Seconds())
	})
}

// RequireSession lets through requests carrying a live session. Pages are
// redirected to the login form, API calls get a 401.
func RequireSession(guard *app.Guard, page bool) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			userID, err := guard.UserID(r)
			if err != nil {
				if !errors.Is(err, apperrors.ErrUnauthenticated) {
					logger.Error.Printf("Session lookup failed: %v", err)
				}
				if page {
					http.Redirect(w, r, "/login.html", http.StatusFound)
					return
				}
				fail(w, r, apperrors.Unauthenticated())
				return
			}
			next(w, r.WithContext(withUserID(r.Context(), userID)))
		}
	}
}

// RequireAdmin guards the operator surface with HTTP Basic credentials.
func RequireAdmin(gate *app.AdminGate) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if !gate.Allow(r) {
				w.Header().Set("WWW-Authenticate", `Basic realm="`+gate.Realm+`"`)
				http.Error(w, "Authentication required", http.StatusUnauthorized)
				return
			}
			next(w, r)
		}
	}
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter counts failed requests per client. Successful requests do not use up
// the budget.
type RateLimiter struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	limit     rate.Limit
	burst     int
	expiry    time.Duration
	lastSweep time.Time
	message   string
}

func NewRateLimiter(max int, window time.Duration, message string) *RateLimiter {
	return &RateLimiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Every(window / time.Duration(max)),
		burst:    max,
		expiry:   window,
		message:  message,
	}
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (rl *RateLimiter) visitor(key string, now time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	// a visitor idle for a whole window has a full bucket again
	if now.Sub(rl.lastSweep) > rl.expiry {
		for k, v := range rl.visitors {
			if now.Sub(v.lastSeen) > rl.expiry {
				delete(rl.visitors, k)
			}
		}
		rl.lastSweep = now
	}

	v, ok := rl.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter
}

func (rl *RateLimiter) Wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now()
		limiter := rl.visitor(clientKey(r), now)

		if limiter.TokensAt(now) < 1 {
			metrics.RateLimitedTotal.WithLabelValues(r.URL.Path).Inc()
			w.Header().Set("Retry-After", strconv.Itoa(int(rl.expiry.Seconds())))
			writeError(w, http.StatusTooManyRequests, rl.message)
			return
		}

		rec := &statusRecorder{ResponseWriter: w}
		next(rec, r)

		if rec.Status() >= http.StatusBadRequest {
			limiter.AllowN(time.Now(), 1)
		}
	}
}
