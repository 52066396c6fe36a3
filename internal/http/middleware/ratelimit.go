package middleware

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/httprate"
	"github.com/straye-as/production-api/internal/config"
	"github.com/straye-as/production-api/internal/domain"
	"go.uber.org/zap"
)

// RateLimiter throttles requests per operator, or per client IP for anonymous callers.
// Shop-floor terminals often share one NAT address, so operators get their own budget.
type RateLimiter struct {
	enabled    bool
	logger     *zap.Logger
	perIP      func(http.Handler) http.Handler
	perOp      func(http.Handler) http.Handler
	exemptIPs  map[string]struct{}
	exemptPath pathSet
}

// pathSet matches exact paths and "/prefix/*" patterns
type pathSet struct {
	exact    map[string]struct{}
	prefixes []string
}

func newPathSet(patterns []string) pathSet {
	ps := pathSet{exact: make(map[string]struct{}, len(patterns))}
	for _, p := range patterns {
		if prefix, ok := strings.CutSuffix(p, "*"); ok && strings.HasSuffix(prefix, "/") {
			ps.prefixes = append(ps.prefixes, prefix)
			continue
		}
		ps.exact[p] = struct{}{}
	}
	return ps
}

func (ps pathSet) match(path string) bool {
	if _, ok := ps.exact[path]; ok {
		return true
	}
	for _, prefix := range ps.prefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// NewRateLimiter builds both limiters. An operator rate of zero reuses the IP rate.
func NewRateLimiter(cfg *config.RateLimitConfig, logger *zap.Logger) *RateLimiter {
	opRate := cfg.RequestsPerMinuteOperator
	if opRate <= 0 {
		opRate = cfg.RequestsPerMinute
	}

	rl := &RateLimiter{
		enabled:    cfg.Enabled,
		logger:     logger,
		exemptIPs:  make(map[string]struct{}, len(cfg.WhitelistIPs)),
		exemptPath: newPathSet(cfg.WhitelistPaths),
	}
	for _, ip := range cfg.WhitelistIPs {
		rl.exemptIPs[ip] = struct{}{}
	}

	rl.perIP = httprate.Limit(cfg.RequestsPerMinute, time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) { return "ip:" + clientIP(r), nil }),
		httprate.WithLimitHandler(rl.reject),
	)
	rl.perOp = httprate.Limit(opRate, time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			id, _ := OperatorFromContext(r.Context())
			return "operator:" + id, nil
		}),
		httprate.WithLimitHandler(rl.reject),
	)

	if cfg.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("ip_rpm", cfg.RequestsPerMinute),
			zap.Int("operator_rpm", opRate),
			zap.Int("exempt_ips", len(cfg.WhitelistIPs)),
			zap.Strings("exempt_paths", cfg.WhitelistPaths),
		)
	}
	return rl
}

// Limit must run after Operator so the operator key is known
func (rl *RateLimiter) Limit(next http.Handler) http.Handler {
	if !rl.enabled {
		return next
	}

	byIP, byOp := rl.perIP(next), rl.perOp(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.exempt(r) {
			next.ServeHTTP(w, r)
			return
		}
		if _, ok := OperatorFromContext(r.Context()); ok {
			byOp.ServeHTTP(w, r)
			return
		}
		byIP.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) exempt(r *http.Request) bool {
	if rl.exemptPath.match(r.URL.Path) {
		return true
	}
	_, ok := rl.exemptIPs[clientIP(r)]
	return ok
}

// clientIP trusts the first X-Forwarded-For hop, then X-Real-IP, then the socket address
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func (rl *RateLimiter) reject(w http.ResponseWriter, r *http.Request) {
	operator, _ := OperatorFromContext(r.Context())
	rl.logger.Warn("rate limit exceeded",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("client_ip", clientIP(r)),
		zap.String("operator_id", operator),
	)

	w.Header().Set("Retry-After", "60")
	writeProblem(w, domain.NewAPIError(http.StatusTooManyRequests, "rate limit exceeded, retry in 60 seconds"))
}
