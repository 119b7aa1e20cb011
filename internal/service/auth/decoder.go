package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"golang.org/x/sync/singleflight"

	"github.com/your-org/edge-gateway/internal/domain"
	"github.com/your-org/edge-gateway/internal/service/metrics"
	"github.com/your-org/edge-gateway/pkg/errors"
	"github.com/your-org/edge-gateway/pkg/logger"
)

// Decoder validates tokens against one signing key set. Built once per
// JWKS URI and shared across requests; immutable after construction.
type Decoder struct {
	jwksURI   string
	keys      *jwk.Cache
	clockSkew time.Duration
	audience  string
}

// Decode verifies the token's signature and claims. Key set fetch
// failures and unknown key IDs surface as resolution-class errors so
// the caller can retry through discovery; signature and claim failures
// are terminal.
func (d *Decoder) Decode(ctx context.Context, tokenString string) (*domain.Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithLeeway(d.clockSkew),
		jwt.WithExpirationRequired(),
	}
	if d.audience != "" {
		options = append(options, jwt.WithAudience(d.audience))
	}

	parser := jwt.NewParser(options...)

	token, err := parser.Parse(tokenString, d.keyFor(ctx))
	if err != nil {
		switch {
		case errors.Is(err, errors.ErrJWKSFetchFailed),
			errors.Is(err, errors.ErrJWKSParseError),
			errors.Is(err, errors.ErrKeyNotFound):
			return nil, err
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, errors.NewGatewayError(errors.CodeTokenExpired, "token has expired", errors.ErrTokenExpired)
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, errors.NewGatewayError(errors.CodeTokenMalformed, "malformed token", errors.ErrTokenMalformed)
		default:
			return nil, errors.NewGatewayError(errors.CodeTokenInvalid, "token validation failed",
				fmt.Errorf("%w: %w", errors.ErrTokenInvalid, err))
		}
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.NewGatewayError(errors.CodeTokenInvalid, "invalid claims format", errors.ErrTokenInvalid)
	}

	return claimsFromMap(mapClaims), nil
}

// keyFor returns the keyfunc resolving the signing key by kid.
func (d *Decoder) keyFor(ctx context.Context) jwt.Keyfunc {
	return func(t *jwt.Token) (interface{}, error) {
		kid, _ := t.Header["kid"].(string)

		keySet, err := d.keys.Get(ctx, d.jwksURI)
		if err != nil {
			return nil, errors.Wrap(errors.ErrJWKSFetchFailed, err.Error())
		}

		var key jwk.Key
		if kid != "" {
			var found bool
			key, found = keySet.LookupKeyID(kid)
			if !found {
				return nil, errors.Wrap(errors.ErrKeyNotFound,
					fmt.Sprintf("key %s not found at %s", kid, d.jwksURI))
			}
		} else {
			// No kid: a single-key set is unambiguous
			if keySet.Len() != 1 {
				return nil, errors.Wrap(errors.ErrKeyNotFound, "token has no kid and key set is ambiguous")
			}
			key, _ = keySet.Key(0)
		}

		var raw interface{}
		if err := key.Raw(&raw); err != nil {
			return nil, errors.Wrap(errors.ErrJWKSParseError, err.Error())
		}
		return raw, nil
	}
}

// claimsFromMap converts parsed claims into the domain form.
func claimsFromMap(mc jwt.MapClaims) *domain.Claims {
	claims := &domain.Claims{Raw: map[string]any(mc)}

	if iss, err := mc.GetIssuer(); err == nil {
		claims.Issuer = iss
	}
	if sub, err := mc.GetSubject(); err == nil {
		claims.Subject = sub
	}
	if aud, err := mc.GetAudience(); err == nil {
		claims.Audience = []string(aud)
	}
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		claims.ExpiresAt = exp.Time
	}
	if iat, err := mc.GetIssuedAt(); err == nil && iat != nil {
		claims.IssuedAt = iat.Time
	}
	if nbf, err := mc.GetNotBefore(); err == nil && nbf != nil {
		claims.NotBefore = nbf.Time
	}

	return claims
}

// DecoderCache builds and shares decoders keyed by JWKS URI.
// Concurrent first-time requests for the same URI converge on a single
// build.
type DecoderCache struct {
	mu       sync.RWMutex
	decoders map[string]*Decoder
	group    singleflight.Group

	ctx             context.Context
	clockSkew       time.Duration
	refreshInterval time.Duration
}

// NewDecoderCache creates a decoder cache. The context bounds the
// lifetime of background JWKS refreshes.
func NewDecoderCache(ctx context.Context, clockSkew, refreshInterval time.Duration) *DecoderCache {
	return &DecoderCache{
		decoders:        make(map[string]*Decoder),
		ctx:             ctx,
		clockSkew:       clockSkew,
		refreshInterval: refreshInterval,
	}
}

// GetOrBuild returns the decoder for the provider's JWKS URI, building
// it on first use. The initial key set fetch happens during the build,
// so an unreachable JWKS endpoint fails here rather than per-request.
func (c *DecoderCache) GetOrBuild(ctx context.Context, info domain.ProviderInfo) (*Decoder, error) {
	c.mu.RLock()
	decoder, ok := c.decoders[info.JWKSURI]
	c.mu.RUnlock()
	if ok {
		return decoder, nil
	}

	result, err, _ := c.group.Do(info.JWKSURI, func() (interface{}, error) {
		// Re-check under the group: a concurrent build may have won
		c.mu.RLock()
		existing, ok := c.decoders[info.JWKSURI]
		c.mu.RUnlock()
		if ok {
			return existing, nil
		}

		built, err := c.build(info)
		if err != nil {
			metrics.DefaultMetrics.DecoderBuildsTotal.WithLabelValues("failure").Inc()
			return nil, err
		}
		metrics.DefaultMetrics.DecoderBuildsTotal.WithLabelValues("success").Inc()

		c.mu.Lock()
		c.decoders[info.JWKSURI] = built
		c.mu.Unlock()

		return built, nil
	})
	if err != nil {
		return nil, err
	}

	return result.(*Decoder), nil
}

func (c *DecoderCache) build(info domain.ProviderInfo) (*Decoder, error) {
	keys := jwk.NewCache(c.ctx)
	if err := keys.Register(info.JWKSURI, jwk.WithMinRefreshInterval(c.refreshInterval)); err != nil {
		return nil, errors.Wrap(errors.ErrJWKSFetchFailed, err.Error())
	}

	fetchCtx, cancel := context.WithTimeout(c.ctx, 10*time.Second)
	defer cancel()
	if _, err := keys.Refresh(fetchCtx, info.JWKSURI); err != nil {
		return nil, errors.Wrap(errors.ErrJWKSFetchFailed, err.Error())
	}

	logger.Info("token decoder built",
		logger.String("jwks_uri", info.JWKSURI),
		logger.Bool("audience_check", info.Audience != ""),
	)

	return &Decoder{
		jwksURI:   info.JWKSURI,
		keys:      keys,
		clockSkew: c.clockSkew,
		audience:  info.Audience,
	}, nil
}

// Evict drops the decoder for a JWKS URI, forcing a rebuild with a
// fresh key set on next use.
func (c *DecoderCache) Evict(jwksURI string) {
	c.mu.Lock()
	delete(c.decoders, jwksURI)
	c.mu.Unlock()
}

// Clear drops all decoders.
func (c *DecoderCache) Clear() {
	c.mu.Lock()
	c.decoders = make(map[string]*Decoder)
	c.mu.Unlock()
}

// Len returns the number of cached decoders.
func (c *DecoderCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.decoders)
}
