package deliver

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Rate limits requests per client ip with a token bucket.
type Rate struct {
	Next   http.Handler
	Limit  rate.Limit
	Burst  int
	Logger Logger
	// TrustedProxies may set X-Forwarded-For.
	TrustedProxies []*net.IPNet

	mu       sync.Mutex
	visitors map[string]*visitor
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateHandler function creates a Rate in front of next and purges idle
// visitors until ctx is done.
func NewRateHandler(ctx context.Context, next http.Handler, config RateConfig, log Logger) *Rate {
	if log == nil {
		log = DefaultLoggerNull
	}
	burst := config.Burst
	if burst < 1 {
		burst = int(config.Limit) + 1
	}
	r := &Rate{
		Next:           next,
		Limit:          rate.Limit(config.Limit),
		Burst:          burst,
		Logger:         log,
		TrustedProxies: newTrustedProxies(config.TrustedProxies, log),
		visitors:       make(map[string]*visitor),
	}
	go r.cleanupVisitors(ctx, DefaultRateCleanupInterval, DefaultRateVisitorTTL)
	return r
}

// ServeHTTP method answers 429 if the client exceeds the rate.
func (r *Rate) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	ip := GetRealClientIP(req, r.TrustedProxies)
	if !r.GetVisitor(ip).Allow() {
		r.Logger.Warning("rate: " + ip)
		http.Error(w, http.StatusText(StatusTooManyRequests), StatusTooManyRequests)
		return
	}
	r.Next.ServeHTTP(w, req)
}

// GetVisitor method returns the limiter of ip, creating it if needed.
func (r *Rate) GetVisitor(ip string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, exists := r.visitors[ip]
	if !exists {
		v = &visitor{limiter: rate.NewLimiter(r.Limit, r.Burst)}
		r.visitors[ip] = v
	}
	v.lastSeen = time.Now()
	return v.limiter
}

func (r *Rate) cleanupVisitors(ctx context.Context, interval, ttl time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			r.mu.Lock()
			for ip, v := range r.visitors {
				if now.Sub(v.lastSeen) > ttl {
					delete(r.visitors, ip)
				}
			}
			r.mu.Unlock()
		}
	}
}

func newTrustedProxies(proxies []string, log Logger) []*net.IPNet {
	ipnets := make([]*net.IPNet, 0, len(proxies))
	for _, proxy := range proxies {
		cidr := strings.TrimSpace(proxy)
		if strings.IndexByte(cidr, '/') == -1 {
			if strings.IndexByte(cidr, ':') == -1 {
				cidr += "/32"
			} else {
				cidr += "/128"
			}
		}
		_, ipnet, err := net.ParseCIDR(cidr)
		if err != nil {
			log.Warning(fmt.Errorf(ErrRateTrustedProxyFormat, proxy, err))
			continue
		}
		ipnets = append(ipnets, ipnet)
	}
	return ipnets
}

// GetRealClientIP function returns the remote ip of r. If the remote ip is
// one of trusted, it returns the right-most X-Forwarded-For address that is
// not trusted.
func GetRealClientIP(r *http.Request, trusted []*net.IPNet) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}
	if !isTrustedProxy(ip, trusted) {
		return ip
	}
	hops := strings.Split(strings.Join(r.Header.Values(HeaderXForwardedFor), ","), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		if net.ParseIP(hop) == nil {
			return ip
		}
		ip = hop
		if !isTrustedProxy(hop, trusted) {
			break
		}
	}
	return ip
}

func isTrustedProxy(ip string, trusted []*net.IPNet) bool {
	addr := net.ParseIP(ip)
	if addr == nil {
		return false
	}
	for _, ipnet := range trusted {
		if ipnet.Contains(addr) {
			return true
		}
	}
	return false
}
