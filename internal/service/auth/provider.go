// Package auth implements dynamic token verification: per-issuer provider
// resolution, decoder caching and principal extraction.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/your-org/edge-gateway/internal/config"
	"github.com/your-org/edge-gateway/internal/domain"
	"github.com/your-org/edge-gateway/internal/service/cache"
	"github.com/your-org/edge-gateway/internal/service/metrics"
	"github.com/your-org/edge-gateway/pkg/errors"
	"github.com/your-org/edge-gateway/pkg/logger"
)

// providerKeyPrefix namespaces provider entries in the distributed cache.
const providerKeyPrefix = "oidc:provider:"

// Resolver resolves provider info for an issuer through an ordered
// fallback chain: distributed cache, control-plane lookup, OIDC
// discovery, static fallback. The first success short-circuits.
type Resolver struct {
	store   cache.Store
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[*lookupResponse]

	controlPlaneURL string
	providerTTL     time.Duration
	fallback        config.FallbackProviderConfig

	// audience per issuer, recorded from lookup responses. Local
	// best-effort accelerator only; the distributed cache stays
	// authoritative.
	audMu     sync.RWMutex
	audiences map[string]string
}

// lookupResponse is the control-plane lookup body.
type lookupResponse struct {
	JWKSURI  string `json:"jwksUri"`
	Audience string `json:"audience"`
}

// NewResolver creates a provider resolver.
func NewResolver(store cache.Store, cpCfg config.ControlPlaneConfig, authCfg config.AuthConfig) *Resolver {
	settings := gobreaker.Settings{
		Name:        "control-plane-lookup",
		MaxRequests: cpCfg.Breaker.MaxRequests,
		Interval:    cpCfg.Breaker.Interval,
		Timeout:     cpCfg.Breaker.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cpCfg.Breaker.MinRequests {
				return false
			}
			failureRate := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRate >= cpCfg.Breaker.FailureRate
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		},
	}

	return &Resolver{
		store:           store,
		client:          &http.Client{Timeout: cpCfg.Timeout},
		breaker:         gobreaker.NewCircuitBreaker[*lookupResponse](settings),
		controlPlaneURL: cpCfg.URL,
		providerTTL:     authCfg.ProviderCacheTTL,
		fallback:        authCfg.Fallback,
		audiences:       make(map[string]string),
	}
}

// Resolve returns provider info for the issuer. It walks the fallback
// chain and fails with ErrResolutionFailed only when every level is
// exhausted.
func (r *Resolver) Resolve(ctx context.Context, issuer string) (domain.ProviderInfo, error) {
	if info, ok := r.fromCache(ctx, issuer); ok {
		metrics.DefaultMetrics.ProviderResolutionsTotal.WithLabelValues("cache", "success").Inc()
		return info, nil
	}

	if info, err := r.fromLookup(ctx, issuer); err == nil {
		metrics.DefaultMetrics.ProviderResolutionsTotal.WithLabelValues("lookup", "success").Inc()
		return info, nil
	} else {
		metrics.DefaultMetrics.ProviderResolutionsTotal.WithLabelValues("lookup", "failure").Inc()
		logger.Debug("provider lookup failed, falling back to discovery",
			logger.String("issuer", issuer),
			logger.Err(err),
		)
	}

	if info, err := r.fromDiscovery(ctx, issuer); err == nil {
		metrics.DefaultMetrics.ProviderResolutionsTotal.WithLabelValues("discovery", "success").Inc()
		return info, nil
	} else {
		metrics.DefaultMetrics.ProviderResolutionsTotal.WithLabelValues("discovery", "failure").Inc()
		logger.Debug("provider discovery failed, falling back to static config",
			logger.String("issuer", issuer),
			logger.Err(err),
		)
	}

	if r.fallback.Enabled && r.fallback.JWKSURI != "" {
		metrics.DefaultMetrics.ProviderResolutionsTotal.WithLabelValues("fallback", "success").Inc()
		return domain.ProviderInfo{
			Issuer:   issuer,
			JWKSURI:  r.fallback.JWKSURI,
			Audience: r.fallback.Audience,
		}, nil
	}

	metrics.DefaultMetrics.ProviderResolutionsTotal.WithLabelValues("fallback", "failure").Inc()
	return domain.ProviderInfo{}, errors.NewGatewayError(errors.CodeResolutionFailed,
		fmt.Sprintf("no provider info for issuer %s", issuer), errors.ErrResolutionFailed)
}

// ResolveViaDiscovery re-resolves the issuer through its discovery
// document and overwrites the distributed cache entry. Used by the
// self-healing retry after a primary validation failure.
func (r *Resolver) ResolveViaDiscovery(ctx context.Context, issuer string) (domain.ProviderInfo, error) {
	info, err := r.fromDiscovery(ctx, issuer)
	if err != nil {
		return domain.ProviderInfo{}, err
	}

	logger.Warn("provider info re-resolved via discovery after validation failure, overwriting cache",
		logger.String("issuer", issuer),
		logger.String("jwks_uri", info.JWKSURI),
	)
	return info, nil
}

// fromCache reads the distributed cache entry for the issuer.
func (r *Resolver) fromCache(ctx context.Context, issuer string) (domain.ProviderInfo, bool) {
	data, ok := r.store.Get(ctx, providerKeyPrefix+issuer)
	if !ok {
		return domain.ProviderInfo{}, false
	}

	var info domain.ProviderInfo
	if err := json.Unmarshal(data, &info); err != nil {
		logger.Debug("cached provider info unreadable, treating as miss",
			logger.String("issuer", issuer),
			logger.Err(err),
		)
		return domain.ProviderInfo{}, false
	}
	if !info.Valid() {
		return domain.ProviderInfo{}, false
	}

	info.Issuer = issuer
	if info.Audience == "" {
		info.Audience = r.audienceFor(issuer)
	}
	return info, true
}

// fromLookup calls the control-plane lookup endpoint through the
// circuit breaker and primes the distributed cache on success.
func (r *Resolver) fromLookup(ctx context.Context, issuer string) (domain.ProviderInfo, error) {
	if r.controlPlaneURL == "" {
		return domain.ProviderInfo{}, fmt.Errorf("control plane not configured")
	}

	resp, err := r.breaker.Execute(func() (*lookupResponse, error) {
		return r.doLookup(ctx, issuer)
	})
	if err != nil {
		return domain.ProviderInfo{}, err
	}
	if resp.JWKSURI == "" {
		return domain.ProviderInfo{}, fmt.Errorf("lookup returned empty jwksUri for issuer %s", issuer)
	}

	info := domain.ProviderInfo{
		Issuer:   issuer,
		JWKSURI:  resp.JWKSURI,
		Audience: resp.Audience,
	}

	r.primeCache(ctx, info)
	if resp.Audience != "" {
		r.recordAudience(issuer, resp.Audience)
	}

	return info, nil
}

func (r *Resolver) doLookup(ctx context.Context, issuer string) (*lookupResponse, error) {
	endpoint := fmt.Sprintf("%s/internal/oidc/by-issuer?issuer=%s",
		r.controlPlaneURL, url.QueryEscape(issuer))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("provider lookup failed: HTTP %d", resp.StatusCode)
	}

	var body lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("provider lookup body unreadable: %w", err)
	}
	return &body, nil
}

// fromDiscovery fetches the issuer's OIDC discovery document and primes
// the distributed cache with the extracted JWKS URI.
func (r *Resolver) fromDiscovery(ctx context.Context, issuer string) (domain.ProviderInfo, error) {
	wellKnownURL := issuer + "/.well-known/openid-configuration"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, wellKnownURL, nil)
	if err != nil {
		return domain.ProviderInfo{}, err
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return domain.ProviderInfo{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.ProviderInfo{}, fmt.Errorf("OIDC discovery failed: HTTP %d", resp.StatusCode)
	}

	var doc struct {
		JWKSURI string `json:"jwks_uri"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return domain.ProviderInfo{}, err
	}
	if doc.JWKSURI == "" {
		return domain.ProviderInfo{}, fmt.Errorf("jwks_uri not found in discovery document")
	}

	info := domain.ProviderInfo{
		Issuer:   issuer,
		JWKSURI:  doc.JWKSURI,
		Audience: r.audienceFor(issuer),
	}

	r.primeCache(ctx, info)
	return info, nil
}

// primeCache writes the provider info to the distributed cache.
func (r *Resolver) primeCache(ctx context.Context, info domain.ProviderInfo) {
	data, err := json.Marshal(info)
	if err != nil {
		return
	}
	r.store.Set(ctx, providerKeyPrefix+info.Issuer, data, r.providerTTL)
}

func (r *Resolver) recordAudience(issuer, audience string) {
	r.audMu.Lock()
	r.audiences[issuer] = audience
	r.audMu.Unlock()
}

func (r *Resolver) audienceFor(issuer string) string {
	r.audMu.RLock()
	defer r.audMu.RUnlock()
	return r.audiences[issuer]
}
