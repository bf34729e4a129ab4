package router

import (
	"math"
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ovaphlow/pitchfork/service-blog-go/pkg/utilities"
)

const msgTooManyLogins = "Too many login attempts. Try again later."

// maxTrackedClients bounds the limiter map; past it the map is reset.
const maxTrackedClients = 10000

// LoginLimiter throttles login attempts per client address.
type LoginLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
	logger   *zap.SugaredLogger
}

func NewLoginLimiter(perSecond float64, burst int, logger *zap.SugaredLogger) *LoginLimiter {
	return &LoginLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(perSecond),
		burst:    burst,
		logger:   logger,
	}
}

// LoginLimiterFromEnv reads LOGIN_RATE_PER_SEC (default 1) and LOGIN_BURST
// (default 5).
func LoginLimiterFromEnv(logger *zap.SugaredLogger) *LoginLimiter {
	perSecond := 1.0
	if v, err := strconv.ParseFloat(os.Getenv("LOGIN_RATE_PER_SEC"), 64); err == nil && v > 0 {
		perSecond = v
	}
	burst := 5
	if v, err := strconv.Atoi(os.Getenv("LOGIN_BURST")); err == nil && v > 0 {
		burst = v
	}
	return NewLoginLimiter(perSecond, burst, logger)
}

func (l *LoginLimiter) limiter(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.limiters[key]
	if !ok {
		if len(l.limiters) >= maxTrackedClients {
			l.limiters = make(map[string]*rate.Limiter)
		}
		lim = rate.NewLimiter(l.rate, l.burst)
		l.limiters[key] = lim
	}
	return lim
}

// retryAfter is the whole number of seconds until one more token accrues.
func (l *LoginLimiter) retryAfter() int {
	if l.rate <= 0 {
		return 1
	}
	return max(1, int(math.Ceil(1/float64(l.rate))))
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Wrap rejects requests over the per-client budget with 429.
func (l *LoginLimiter) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := clientKey(r)
		if !l.limiter(key).Allow() {
			l.logger.Warnw("login rate limit exceeded", "client", key, "path", r.URL.Path)
			w.Header().Set("Retry-After", strconv.Itoa(l.retryAfter()))
			utilities.WriteMessage(w, http.StatusTooManyRequests, msgTooManyLogins)
			return
		}
		next.ServeHTTP(w, r)
	})
}
