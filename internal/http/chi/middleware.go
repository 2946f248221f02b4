package chi

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/taskhub/webhook-gateway/auth"
	"github.com/taskhub/webhook-gateway/errs"
)

// APIKeyHeader carries the caller credential on every command request
const APIKeyHeader = "X-API-Key"

type contextKey string

const identityKey contextKey = "identity"

// identityFrom returns the authenticated key stored by the auth middleware
func identityFrom(ctx context.Context) (auth.Key, bool) {
	key, ok := ctx.Value(identityKey).(auth.Key)
	return key, ok
}

// bodyGuard caps the request body and bounds the request wall clock
func (g *gateway) bodyGuard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, g.cfg.BodyLimit)

		if g.cfg.RequestTimeout > 0 {
			ctx, cancel := context.WithTimeout(r.Context(), g.cfg.RequestTimeout)
			defer cancel()
			r = r.WithContext(ctx)
		}
		next.ServeHTTP(w, r)
	})
}

// authenticate checks the API key and tracks failures per client address.
// A blocked client is refused before the key is even inspected.
func (g *gateway) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		client := clientAddr(r)

		if g.deps.Lockout.Blocked(client) {
			g.reject(w, r, "auth", errs.CodeForbidden, "too many failed authentication attempts")
			return
		}

		key, ok := g.deps.Keys.Lookup(r.Header.Get(APIKeyHeader))
		if !ok {
			if g.deps.Lockout.RecordFailure(client) {
				g.logger.Warn("client locked out after repeated auth failures", "client", client)
			}
			g.reject(w, r, "auth", errs.CodeForbidden, "invalid API key")
			return
		}
		g.deps.Lockout.RecordSuccess(client)

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey, key)))
	})
}

// requireHTTPS refuses plaintext requests unless the deployment opted out
func (g *gateway) requireHTTPS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.cfg.RequireHTTPS && r.TLS == nil && !strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
			g.reject(w, r, "https", errs.CodeForbidden, "HTTPS is required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// rateLimit applies the per-client sliding window
func (g *gateway) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, retryAfter := g.deps.Limiter.Allow(clientAddr(r))
		if !allowed {
			seconds := int(retryAfter.Seconds())
			if seconds < 1 {
				seconds = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(seconds))
			g.reject(w, r, "rate_limit", errs.CodeRateLimitExceeded, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientAddr extracts the client identity used for lockout and rate limiting
func clientAddr(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
