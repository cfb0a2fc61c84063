package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/Loxess-crl/carrito-compras/api/responses"
	pkgerrors "github.com/Loxess-crl/carrito-compras/pkg/errors"
	"github.com/Loxess-crl/carrito-compras/pkg/logger"
)

// RateLimiterStore is the counter surface backing the rate limiter.
type RateLimiterStore interface {
	IncrWithTTL(context.Context, string, time.Duration) (int64, error)
}

// AuthRateLimitPolicy throttles an auth surface on two dimensions: the
// client IP and a hash of the submitted email. The email dimension
// keeps a credential-stuffing run against one account throttled even
// when it rotates through source addresses.
type AuthRateLimitPolicy struct {
	name       string
	window     time.Duration
	ipLimit    int
	emailLimit int
}

func NewAuthRateLimitPolicy(name string, window time.Duration, ipLimit, emailLimit int) AuthRateLimitPolicy {
	return AuthRateLimitPolicy{
		name:       strings.ToLower(strings.TrimSpace(name)),
		window:     window,
		ipLimit:    ipLimit,
		emailLimit: emailLimit,
	}
}

func (p AuthRateLimitPolicy) enabled() bool {
	return p.window > 0 && (p.ipLimit > 0 || p.emailLimit > 0)
}

func (p AuthRateLimitPolicy) surface() string {
	if p.name == "" {
		return "auth"
	}
	return p.name
}

// AuthRateLimit enforces the policy's counters. A store failure is a
// dependency error; requests are not let through unlimited when Redis
// is down.
func AuthRateLimit(policy AuthRateLimitPolicy, store RateLimiterStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.enabled() || store == nil {
			return next
		}

		limiter := &authLimiter{policy: policy, store: store, logg: logg}
		return http.HandlerFunc(limiter.handle(next))
	}
}

type authLimiter struct {
	policy AuthRateLimitPolicy
	store  RateLimiterStore
	logg   *logger.Logger
}

func (l *authLimiter) handle(next http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if l.policy.ipLimit > 0 {
			ip := clientIP(r)
			if ip != "" {
				key := fmt.Sprintf("rl:ip:%s:%s", l.policy.surface(), ip)
				if done := l.check(ctx, w, key, l.policy.ipLimit, "ip", ip); done {
					return
				}
			}
		}

		if l.policy.emailLimit > 0 {
			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, nil, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request"))
				return
			}
			// The handler still needs the body after the counter peeked
			// at it.
			r.Body = io.NopCloser(bytes.NewReader(body))

			if hash := emailHash(body); hash != "" {
				key := fmt.Sprintf("rl:email:%s:%s", l.policy.surface(), hash)
				if done := l.check(ctx, w, key, l.policy.emailLimit, "email", hash); done {
					return
				}
			}
		}

		next.ServeHTTP(w, r)
	}
}

// check increments the counter and writes the response when the
// request must not proceed. Returns true when a response was written.
func (l *authLimiter) check(ctx context.Context, w http.ResponseWriter, key string, limit int, scope, subject string) bool {
	count, err := l.store.IncrWithTTL(ctx, key, l.policy.window)
	if err != nil {
		responses.WriteError(ctx, nil, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
		return true
	}
	if count <= int64(limit) {
		return false
	}

	if l.logg != nil {
		fields := map[string]any{
			"scope":          scope,
			"policy":         l.policy.surface(),
			"attempts":       count,
			"limit":          limit,
			"window_seconds": int(l.policy.window.Seconds()),
		}
		if scope == "ip" {
			fields["ip"] = subject
		} else {
			fields["email_hash"] = subject
		}
		l.logg.Warn(l.logg.WithFields(ctx, fields), "auth.rate_limit.blocked")
	}
	responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded"))
	return true
}

func clientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if header := r.Header.Get("X-Forwarded-For"); header != "" {
		for _, part := range strings.Split(header, ",") {
			if ip := strings.TrimSpace(part); ip != "" {
				return ip
			}
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}

// emailHash extracts the email field from a JSON body and returns its
// SHA-256 hex digest. The raw address never reaches Redis or the logs.
func emailHash(payload []byte) string {
	var body struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return ""
	}
	email := strings.ToLower(strings.TrimSpace(body.Email))
	if email == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(email))
	return hex.EncodeToString(sum[:])
}
