package auth

import (
	"context"

	"github.com/golang-jwt/jwt/v5"

	"github.com/your-org/edge-gateway/internal/config"
	"github.com/your-org/edge-gateway/internal/domain"
	"github.com/your-org/edge-gateway/internal/service/cache"
	"github.com/your-org/edge-gateway/internal/service/metrics"
	"github.com/your-org/edge-gateway/pkg/errors"
	"github.com/your-org/edge-gateway/pkg/logger"
)

// Service verifies bearer tokens against dynamically resolved providers.
type Service struct {
	resolver *Resolver
	decoders *DecoderCache
}

// NewService creates the token verification service.
func NewService(ctx context.Context, store cache.Store, cfg config.Config) *Service {
	return &Service{
		resolver: NewResolver(store, cfg.ControlPlane, cfg.Auth),
		decoders: NewDecoderCache(ctx, cfg.Auth.ClockSkew, cfg.Auth.JWKSRefreshInterval),
	}
}

// NewServiceWith wires a service from pre-built parts.
func NewServiceWith(resolver *Resolver, decoders *DecoderCache) *Service {
	return &Service{resolver: resolver, decoders: decoders}
}

// Decode verifies the token: issuer extraction, provider resolution,
// decoder lookup, then signature and claim validation. A validation
// failure caused by a stale key set retries once through discovery,
// overwriting the cached provider entry. Signature and claim failures
// after a successful key lookup are terminal.
func (s *Service) Decode(ctx context.Context, tokenString string) (*domain.Claims, error) {
	issuer, err := extractIssuer(tokenString)
	if err != nil {
		metrics.DefaultMetrics.TokenValidationsTotal.WithLabelValues("unknown", "malformed").Inc()
		return nil, err
	}

	info, err := s.resolver.Resolve(ctx, issuer)
	if err != nil {
		metrics.DefaultMetrics.TokenValidationsTotal.WithLabelValues(issuer, "resolution_failed").Inc()
		return nil, err
	}

	claims, err := s.decodeWith(ctx, info, tokenString)
	if err == nil {
		metrics.DefaultMetrics.TokenValidationsTotal.WithLabelValues(issuer, "success").Inc()
		return claims, nil
	}

	if !isResolutionClass(err) {
		metrics.DefaultMetrics.TokenValidationsTotal.WithLabelValues(issuer, "invalid").Inc()
		return nil, err
	}

	// The cached provider entry may be stale, e.g. the provider rotated
	// its key endpoint under a long TTL. Re-resolve via discovery,
	// overwrite the cache, and retry once.
	logger.Warn("token validation failed on primary provider info, retrying via discovery",
		logger.String("issuer", issuer),
		logger.Err(err),
	)

	healed, healErr := s.resolver.ResolveViaDiscovery(ctx, issuer)
	if healErr != nil {
		metrics.DefaultMetrics.TokenValidationsTotal.WithLabelValues(issuer, "resolution_failed").Inc()
		return nil, errors.NewGatewayError(errors.CodeResolutionFailed,
			"provider re-resolution failed", errors.ErrResolutionFailed)
	}

	s.decoders.Evict(info.JWKSURI)

	claims, err = s.decodeWith(ctx, healed, tokenString)
	if err != nil {
		metrics.DefaultMetrics.TokenValidationsTotal.WithLabelValues(issuer, "invalid").Inc()
		if isResolutionClass(err) {
			return nil, errors.NewGatewayError(errors.CodeResolutionFailed,
				"token verification exhausted all providers", err)
		}
		return nil, err
	}

	metrics.DefaultMetrics.TokenValidationsTotal.WithLabelValues(issuer, "success").Inc()
	return claims, nil
}

// DecodePrincipal decodes the token and extracts its principal.
func (s *Service) DecodePrincipal(ctx context.Context, tokenString string) (*domain.Principal, error) {
	claims, err := s.Decode(ctx, tokenString)
	if err != nil {
		return nil, err
	}
	return ExtractPrincipal(claims)
}

// EvictDecoders drops all cached decoders. Used on configuration
// change signals; correctness is unaffected, only rebuild cost.
func (s *Service) EvictDecoders() {
	s.decoders.Clear()
}

func (s *Service) decodeWith(ctx context.Context, info domain.ProviderInfo, tokenString string) (*domain.Claims, error) {
	decoder, err := s.decoders.GetOrBuild(ctx, info)
	if err != nil {
		return nil, err
	}
	return decoder.Decode(ctx, tokenString)
}

// isResolutionClass reports whether the failure concerns obtaining a
// usable signing key rather than the token itself.
func isResolutionClass(err error) bool {
	return errors.Is(err, errors.ErrJWKSFetchFailed) ||
		errors.Is(err, errors.ErrJWKSParseError) ||
		errors.Is(err, errors.ErrKeyNotFound)
}

// extractIssuer reads the issuer claim from the unverified payload.
func extractIssuer(tokenString string) (string, error) {
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	token, _, err := parser.ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return "", errors.NewGatewayError(errors.CodeTokenMalformed, "token is not parseable", errors.ErrTokenMalformed)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.NewGatewayError(errors.CodeTokenMalformed, "invalid claims format", errors.ErrTokenMalformed)
	}

	issuer, _ := claims["iss"].(string)
	if issuer == "" {
		return "", errors.NewGatewayError(errors.CodeMissingIssuer, "token has no issuer claim", errors.ErrMissingIssuer)
	}

	return issuer, nil
}
