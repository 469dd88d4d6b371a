package httpx

import (
	"bytes"
	"encoding/json"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/tabtoken/pkg/authn"
	"github.com/aussiebroadwan/tabtoken/pkg/slogx"
	"golang.org/x/time/rate"
)

// RateLimitConfig defines the rate limiting parameters.
type RateLimitConfig struct {
	// RequestsPerWindow is the number of requests allowed in the time window
	RequestsPerWindow int
	// Window is the time window for rate limiting
	Window time.Duration
	// Burst allows for temporary bursts above the rate limit
	Burst int
}

// Default profiles. The app overrides them from RATELIMIT_{ISSUE,INTROSPECT,PUBLIC}_*.
var (
	// IssueLimit guards token minting and refresh, per caller and tenant.
	IssueLimit = RateLimitConfig{
		RequestsPerWindow: 60,
		Window:            time.Minute,
		Burst:             20,
	}

	// IntrospectLimit guards token introspection, per caller.
	IntrospectLimit = RateLimitConfig{
		RequestsPerWindow: 600,
		Window:            time.Minute,
		Burst:             100,
	}

	// PublicLimit guards unauthenticated endpoints (health, docs), per IP.
	PublicLimit = RateLimitConfig{
		RequestsPerWindow: 1000,
		Window:            time.Minute,
		Burst:             1000,
	}
)

// ParseRateLimitFromEnv reads RATELIMIT_{prefix}_REQUESTS,
// RATELIMIT_{prefix}_WINDOW_SEC and RATELIMIT_{prefix}_BURST on top of def.
// Missing or non-positive values keep the default.
func ParseRateLimitFromEnv(prefix string, def RateLimitConfig) RateLimitConfig {
	config := def

	if n := positiveEnv("RATELIMIT_" + prefix + "_REQUESTS"); n > 0 {
		config.RequestsPerWindow = n
	}
	if n := positiveEnv("RATELIMIT_" + prefix + "_WINDOW_SEC"); n > 0 {
		config.Window = time.Duration(n) * time.Second
	}
	if n := positiveEnv("RATELIMIT_" + prefix + "_BURST"); n > 0 {
		config.Burst = n
	}
	return config
}

func positiveEnv(key string) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil || n <= 0 {
		return 0
	}
	return n
}

// KeyExtractor returns the bucket a request counts against. An empty key
// exempts the request.
type KeyExtractor func(*http.Request) string

// IPKeyExtractor extracts the client IP address from the request.
// It handles X-Forwarded-For and X-Real-IP headers for proxied requests.
func IPKeyExtractor(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// CallerKeyExtractor keys on the identity BasicAuthMiddleware attached, so
// it must run after that middleware.
func CallerKeyExtractor(r *http.Request) string {
	if id, ok := authn.IdentityFromContext(r.Context()); ok {
		return id.ClientID
	}
	return ""
}

// fieldPeekLimit bounds how much of a body FieldKeyExtractor buffers.
const fieldPeekLimit = 64 << 10

// FieldKeyExtractor keys on a request parameter, read from the query string
// or from a JSON or urlencoded body. The body is restored for the next
// handler and r.Form is left untouched.
func FieldKeyExtractor(fieldName string) KeyExtractor {
	return func(r *http.Request) string {
		if v := r.URL.Query().Get(fieldName); v != "" {
			return v
		}
		if r.Body == nil || r.Body == http.NoBody {
			return ""
		}

		data, _ := io.ReadAll(io.LimitReader(r.Body, fieldPeekLimit))
		r.Body = struct {
			io.Reader
			io.Closer
		}{io.MultiReader(bytes.NewReader(data), r.Body), r.Body}

		mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
		switch mediaType {
		case "application/json":
			var body map[string]any
			if err := json.Unmarshal(data, &body); err != nil {
				return ""
			}
			s, _ := body[fieldName].(string)
			return strings.TrimSpace(s)
		case "", "application/x-www-form-urlencoded":
			values, err := url.ParseQuery(string(data))
			if err != nil {
				return ""
			}
			return strings.TrimSpace(values.Get(fieldName))
		}
		return ""
	}
}

// CompositeKeyExtractor joins the non-empty keys of extractors with sep.
func CompositeKeyExtractor(sep string, extractors ...KeyExtractor) KeyExtractor {
	return func(r *http.Request) string {
		var parts []string
		for _, extractor := range extractors {
			if key := extractor(r); key != "" {
				parts = append(parts, key)
			}
		}
		return strings.Join(parts, sep)
	}
}

type rateLimiter struct {
	limiters sync.Map // map[string]*rate.Limiter
	rate     rate.Limit
	burst    int

	mu          sync.Mutex
	lastCleanup time.Time
}

func (rl *rateLimiter) getLimiter(key string) *rate.Limiter {
	if limiter, ok := rl.limiters.Load(key); ok {
		return limiter.(*rate.Limiter)
	}

	actual, _ := rl.limiters.LoadOrStore(key, rate.NewLimiter(rl.rate, rl.burst))
	rl.maybeCleanup()
	return actual.(*rate.Limiter)
}

// maybeCleanup drops limiters whose bucket is full again, at most once every
// five minutes.
func (rl *rateLimiter) maybeCleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if time.Since(rl.lastCleanup) < 5*time.Minute {
		return
	}
	rl.lastCleanup = time.Now()

	rl.limiters.Range(func(key, value any) bool {
		if value.(*rate.Limiter).Tokens() >= float64(rl.burst) {
			rl.limiters.Delete(key)
		}
		return true
	})
}

// RateLimitMiddleware creates a rate limiting middleware with the given configuration.
// The keyExtractor determines how requests are grouped for rate limiting.
func RateLimitMiddleware(config RateLimitConfig, keyExtractor KeyExtractor) Middleware {
	rl := &rateLimiter{
		rate:        rate.Limit(float64(config.RequestsPerWindow) / config.Window.Seconds()),
		burst:       config.Burst,
		lastCleanup: time.Now(),
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log := slogx.FromContext(r.Context())

			key := keyExtractor(r)
			if key == "" {
				log.Warn("rate limit: unable to extract key, allowing request")
				next.ServeHTTP(w, r)
				return
			}

			limiter := rl.getLimiter(key)
			if !limiter.Allow() {
				reservation := limiter.Reserve()
				delay := reservation.Delay()
				reservation.Cancel()

				retryAfter := max(int(delay.Seconds()), 1)

				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(config.RequestsPerWindow))
				w.Header().Set("X-RateLimit-Window", config.Window.String())

				log.Warn("rate limit exceeded",
					"key", key,
					"endpoint", r.URL.Path,
					"retry_after", retryAfter,
				)

				WriteError(w, http.StatusTooManyRequests,
					"rate_limit_exceeded", "Too many requests. Please try again later.")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitByIP limits by client IP only.
func RateLimitByIP(config RateLimitConfig) Middleware {
	return RateLimitMiddleware(config, IPKeyExtractor)
}

// RateLimitByCaller limits by authenticated caller, falling back to IP.
func RateLimitByCaller(config RateLimitConfig) Middleware {
	return RateLimitMiddleware(config, func(r *http.Request) string {
		if k := CallerKeyExtractor(r); k != "" {
			return k
		}
		return IPKeyExtractor(r)
	})
}

// RateLimitByCallerAndField limits by caller plus a request field, e.g. the
// tenant client_id a token is being minted for. Put LimitBody in front of it.
func RateLimitByCallerAndField(config RateLimitConfig, fieldName string) Middleware {
	return RateLimitMiddleware(config, CompositeKeyExtractor(":",
		CallerKeyExtractor,
		IPKeyExtractor,
		FieldKeyExtractor(fieldName),
	))
}
