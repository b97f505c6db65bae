package stub

import (
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/tripsuite/booking-contract-tests/client"
)

type windowCount struct {
	count   int
	expires time.Time
}

// fixedWindowLimiter counts requests per service and client in windows aligned to the
// epoch, keyed rate:<service>:<client>:<window number>. A count above the limit is
// rejected for the rest of the window.
type fixedWindowLimiter struct {
	now    func() time.Time
	counts map[string]windowCount
	lock   sync.Mutex
}

func newFixedWindowLimiter(now func() time.Time) *fixedWindowLimiter {
	return &fixedWindowLimiter{now: now, counts: make(map[string]windowCount)}
}

func (l *fixedWindowLimiter) allow(service, clientID string, limit int, window time.Duration) bool {
	seconds := int64(window / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	now := l.now()
	bucket := now.Unix() / seconds
	key := fmt.Sprintf("rate:%s:%s:%d", service, clientID, bucket)

	l.lock.Lock()
	defer l.lock.Unlock()
	for k, c := range l.counts {
		if !now.Before(c.expires) {
			delete(l.counts, k)
		}
	}
	c, ok := l.counts[key]
	if !ok {
		c.expires = time.Unix((bucket+1)*seconds, 0)
	}
	c.count++
	l.counts[key] = c
	return c.count <= limit
}

// limitRule is the rate limit of one route.
type limitRule struct {
	service string
	limit   int
	window  time.Duration
	// anonymous clients are keyed by remote address instead of being rejected
	allowAnonymous bool
}

func (s *Stub) rateLimit(rule limitRule) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !s.checkRateLimit(w, r, rule) {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// checkRateLimit writes the rejection and returns false if the request is over the limit.
func (s *Stub) checkRateLimit(w http.ResponseWriter, r *http.Request, rule limitRule) bool {
	clientID := r.Header.Get(client.ClientIDHeader)
	if clientID == "" {
		if !rule.allowAnonymous {
			writeDetail(w, http.StatusBadRequest, "X-Client-ID header missing")
			return false
		}
		clientID = remoteHost(r)
	}
	if !s.limiter.allow(rule.service, clientID, rule.limit, rule.window) {
		writeDetail(w, http.StatusTooManyRequests, "Rate limit exceeded")
		return false
	}
	return true
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
