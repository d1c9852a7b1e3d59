package httpx

import (
	"crypto/subtle"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ariefcatur/go-shop-checkout/internal/auth"
	"github.com/ariefcatur/go-shop-checkout/internal/logging"
	"github.com/ariefcatur/go-shop-checkout/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	headerAccessKey     = "X-ACCESS-KEY"
	headerSecretKey     = "X-SECRET-KEY"
	headerCallbackToken = "x-callback-token"
)

// Observe puts a request logger into the context and records access logs
// and HTTP metrics labelled by route pattern.
func Observe(base *zap.Logger, m *metrics.Metrics) func(http.Handler) http.Handler {
	if base == nil {
		base = zap.NewNop()
	}
	prop := otel.GetTextMapPropagator()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := prop.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			fields := []zap.Field{zap.String("request_id", middleware.GetReqID(ctx))}
			if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
				fields = append(fields, zap.String("trace_id", sc.TraceID().String()))
			}
			log := base.With(fields...)
			ctx = logging.ContextWithLogger(ctx, log)

			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := "unmatched"
			if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
				route = rc.RoutePattern()
			}
			d := time.Since(start)
			m.ObserveHTTP(r.Method, route, status, d)
			log.Info("http request",
				zap.String("method", r.Method),
				zap.String("route", route),
				zap.Int("status", status),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", d))
		})
	}
}

// APIKeyGate requires the static credential pair on every request.
func APIKeyGate(accessKey, secretKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ak, sk := r.Header.Get(headerAccessKey), r.Header.Get(headerSecretKey)
			if ak == "" || sk == "" {
				fail(w, http.StatusUnauthorized, "API credentials required", nil)
				return
			}
			// dua-duanya dibandingkan supaya waktu respon tidak bocor
			akOK := subtle.ConstantTimeCompare([]byte(ak), []byte(accessKey))
			skOK := subtle.ConstantTimeCompare([]byte(sk), []byte(secretKey))
			if akOK&skOK != 1 {
				fail(w, http.StatusUnauthorized, "Invalid API credentials", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireUser resolves the bearer token and stores the principal in the context.
func RequireUser(svc *auth.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			token, found := strings.CutPrefix(h, "Bearer ")
			if !found || strings.TrimSpace(token) == "" {
				fail(w, http.StatusUnauthorized, "Unauthenticated", nil)
				return
			}
			p, err := svc.Authenticate(r.Context(), strings.TrimSpace(token))
			if err != nil {
				writeDomainError(w, r, err)
				return
			}
			ctx := auth.WithPrincipal(r.Context(), p)
			ctx = logging.ContextWithLogger(ctx, logging.FromContext(ctx).With(zap.Int64("user_id", p.UserID)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CallbackToken checks the gateway's verification token. An empty token
// disables the check.
func CallbackToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(headerCallbackToken)
			if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				logging.FromContext(r.Context()).Warn("webhook callback token rejected")
				fail(w, http.StatusUnauthorized, "Invalid callback token", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimiter keeps one token bucket per client IP.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rps      rate.Limit
	burst    int
	stop     chan struct{}
	once     sync.Once
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewRateLimiter(rps float64, burst int) *RateLimiter {
	rl := &RateLimiter{
		visitors: map[string]*visitor{},
		rps:      rate.Limit(rps),
		burst:    burst,
		stop:     make(chan struct{}),
	}
	go rl.cleanup()
	return rl
}

// Close stops the cleanup loop.
func (rl *RateLimiter) Close() { rl.once.Do(func() { close(rl.stop) }) }

func (rl *RateLimiter) limiter(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	v, exists := rl.visitors[ip]
	if !exists {
		v = &visitor{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.visitors[ip] = v
	}
	v.lastSeen = time.Now()
	return v.limiter
}

func (rl *RateLimiter) cleanup() {
	t := time.NewTicker(time.Minute)
	defer t.Stop()
	for {
		select {
		case <-rl.stop:
			return
		case <-t.C:
			rl.mu.Lock()
			for ip, v := range rl.visitors {
				if time.Since(v.lastSeen) > 3*time.Minute {
					delete(rl.visitors, ip)
				}
			}
			rl.mu.Unlock()
		}
	}
}

func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// RemoteAddr sudah diganti middleware.RealIP kalau ada proxy
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = strings.Trim(r.RemoteAddr, "[]")
		}
		if !rl.limiter(ip).Allow() {
			w.Header().Set("Retry-After", "1")
			fail(w, http.StatusTooManyRequests, "Too many requests", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
