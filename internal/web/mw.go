package web

import (
	"bytes"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// ipRateLimiter keeps one token bucket per client IP.
type ipRateLimiter struct {
	mu  sync.Mutex
	ips map[string]*rate.Limiter
	r   rate.Limit
	b   int
}

func newIPRateLimiter(r rate.Limit, b int) *ipRateLimiter {
	return &ipRateLimiter{ips: make(map[string]*rate.Limiter), r: r, b: b}
}

func (l *ipRateLimiter) get(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.ips[ip]
	if !ok {
		lim = rate.NewLimiter(l.r, l.b)
		l.ips[ip] = lim
	}
	return lim
}

// RateLimit rejects clients that exceed r requests per second (burst b).
func RateLimit(r rate.Limit, b int, next http.Handler) http.Handler {
	limiter := newIPRateLimiter(r, b)
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ip, _, err := net.SplitHostPort(req.RemoteAddr)
		if err != nil {
			ip = req.RemoteAddr
		}
		if !limiter.get(ip).Allow() {
			http.Error(w, "too many requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, req)
	})
}

type cachedResponse struct {
	status int
	header http.Header
	body   []byte
}

type captureWriter struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (w *captureWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// CacheGET serves successful GET responses from an in-memory cache for ttl.
// Used on the live plannings view so page refreshes do not turn into extra
// calls against the remote service.
func CacheGET(store *cache.Cache, ttl time.Duration, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			next.ServeHTTP(w, req)
			return
		}
		key := req.URL.RequestURI()
		if v, ok := store.Get(key); ok {
			resp := v.(cachedResponse)
			for k, vals := range resp.header {
				w.Header()[k] = vals
			}
			w.WriteHeader(resp.status)
			_, _ = w.Write(resp.body)
			return
		}

		cw := &captureWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(cw, req)

		if cw.status >= 200 && cw.status < 300 {
			store.Set(key, cachedResponse{
				status: cw.status,
				header: cw.Header().Clone(),
				body:   cw.body.Bytes(),
			}, ttl)
		}
	})
}
