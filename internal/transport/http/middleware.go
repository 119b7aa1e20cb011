package http

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/your-org/edge-gateway/internal/domain"
	"github.com/your-org/edge-gateway/internal/service/auth"
	"github.com/your-org/edge-gateway/internal/service/metrics"
	"github.com/your-org/edge-gateway/pkg/errors"
	"github.com/your-org/edge-gateway/pkg/httputil"
	"github.com/your-org/edge-gateway/pkg/logger"
)

type ctxKey int

const principalKey ctxKey = iota

// PrincipalFromContext returns the authenticated principal, if any.
func PrincipalFromContext(ctx context.Context) (*domain.Principal, bool) {
	p, ok := ctx.Value(principalKey).(*domain.Principal)
	return p, ok
}

// withPrincipal stores the principal in the request context.
func withPrincipal(ctx context.Context, p *domain.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// authMiddleware enforces bearer authentication. Requests to public
// path prefixes pass through without a token for GET and HEAD only;
// OPTIONS preflight requests always pass through.
type authMiddleware struct {
	service     *auth.Service
	publicPaths []string
	errWriter   *httputil.ErrorResponseWriter
}

func newAuthMiddleware(service *auth.Service, publicPaths []string) *authMiddleware {
	return &authMiddleware{
		service:     service,
		publicPaths: publicPaths,
		errWriter:   httputil.DefaultErrorResponseWriter(),
	}
}

func (m *authMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		if m.isPublic(r) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := bearerToken(r)
		if err != nil {
			m.errWriter.WriteGatewayError(w, r, err)
			return
		}

		principal, err := m.service.DecodePrincipal(r.Context(), token)
		if err != nil {
			logger.WithContext(r.Context()).Debug("authentication failed",
				logger.String("path", r.URL.Path),
				logger.Err(err),
			)
			m.errWriter.WriteGatewayError(w, r, err)
			return
		}

		ctx := withPrincipal(r.Context(), principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// isPublic reports whether the request matches a public path prefix.
// Only safe methods bypass authentication.
func (m *authMiddleware) isPublic(r *http.Request) bool {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		return false
	}
	for _, prefix := range m.publicPaths {
		if strings.HasPrefix(r.URL.Path, prefix) {
			return true
		}
	}
	return false
}

// bearerToken extracts the token from the Authorization header.
func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", errors.NewGatewayError(errors.CodeUnauthorized, "missing bearer token", errors.ErrTokenMissing)
	}

	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", errors.NewGatewayError(errors.CodeUnauthorized, "authorization header is not a bearer token", errors.ErrTokenMissing)
	}

	token := strings.TrimSpace(header[len(prefix):])
	if token == "" {
		return "", errors.NewGatewayError(errors.CodeUnauthorized, "missing bearer token", errors.ErrTokenMissing)
	}
	return token, nil
}

// metricsMiddleware records request counts and latency.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		metrics.DefaultMetrics.HTTPRequestsTotal.
			WithLabelValues(r.Method, strconv.Itoa(ww.Status())).Inc()
		metrics.DefaultMetrics.HTTPRequestDuration.
			WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
	})
}
