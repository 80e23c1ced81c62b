package ratelimit

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/adampresley/proofingdesk/cmd/proofing/internal/httpio"
	"github.com/adampresley/proofingdesk/pkg/models"
	"github.com/adampresley/proofingdesk/pkg/viewmodels"
	"golang.org/x/time/rate"
)

const ReasonTooManyRequests = "too many requests, try again in a minute"

/*
Limiter hands out one token bucket per key. Client routes key it by tenant
and remote address so guessing codes against one studio is slowed down
without affecting the others.
*/
type Limiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	idle     time.Duration
	now      func() time.Time
	visitors map[string]*visitor
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type LimiterConfig struct {
	/*
		PerMinute is the sustained number of requests allowed per key.
	*/
	PerMinute int
	Burst     int
	/*
		Idle is how long a key is kept after its last request.
	*/
	Idle time.Duration
	Now  func() time.Time
}

func New(config LimiterConfig) *Limiter {
	if config.PerMinute <= 0 {
		config.PerMinute = 60
	}

	if config.Burst <= 0 {
		config.Burst = config.PerMinute
	}

	if config.Idle <= 0 {
		config.Idle = 10 * time.Minute
	}

	if config.Now == nil {
		config.Now = time.Now
	}

	return &Limiter{
		limit:    rate.Limit(float64(config.PerMinute) / 60.0),
		burst:    config.Burst,
		idle:     config.Idle,
		now:      config.Now,
		visitors: map[string]*visitor{},
	}
}

func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	v, ok := l.visitors[key]

	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[key] = v
	}

	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

/*
Prune forgets keys that have been idle for longer than the idle window and
returns how many were removed.
*/
func (l *Limiter) Prune() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	cutoff := l.now().Add(-l.idle)

	for key, v := range l.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(l.visitors, key)
			removed++
		}
	}

	return removed
}

func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := ClientKey(r)

		if !l.Allow(key) {
			slog.Warn("client rate limit exceeded", "key", key, "path", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			httpio.WriteJSON(w, http.StatusTooManyRequests, viewmodels.ErrorResponse{
				Error:   string(models.KindTransient),
				Message: ReasonTooManyRequests,
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

/*
ClientKey is the tenant slug from the path plus the caller's address.
*/
func ClientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}

	return strings.ToLower(r.PathValue("tenant")) + "|" + host
}
