package http

import (
	"net"
	"net/http"
	stdhttputil "net/http/httputil"
	"net/url"
	"sync"
	"time"

	"github.com/your-org/edge-gateway/internal/config"
	"github.com/your-org/edge-gateway/internal/route"
	"github.com/your-org/edge-gateway/internal/service/metrics"
	"github.com/your-org/edge-gateway/pkg/errors"
	"github.com/your-org/edge-gateway/pkg/httputil"
	"github.com/your-org/edge-gateway/pkg/logger"
)

// ReverseProxy forwards collection requests to the backend selected by
// the route table. Path and method are passed through untouched.
type ReverseProxy struct {
	registry  *route.Registry
	cfg       config.BackendConfig
	transport *http.Transport
	errWriter *httputil.ErrorResponseWriter

	mu      sync.RWMutex
	proxies map[string]*stdhttputil.ReverseProxy
}

// NewReverseProxy creates the registry-driven reverse proxy.
func NewReverseProxy(registry *route.Registry, cfg config.BackendConfig) *ReverseProxy {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: cfg.Timeout,
	}

	return &ReverseProxy{
		registry:  registry,
		cfg:       cfg,
		transport: transport,
		errWriter: httputil.DefaultErrorResponseWriter(),
		proxies:   make(map[string]*stdhttputil.ReverseProxy),
	}
}

// ServeHTTP resolves the request path against the route table and
// forwards to the route's backend.
func (rp *ReverseProxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	matched, ok := rp.registry.Match(r.URL.Path)
	if !ok {
		rp.errWriter.WriteGatewayError(w, r, errors.ErrRouteNotFound)
		return
	}

	proxy, err := rp.proxyFor(matched.BackendURL)
	if err != nil {
		logger.WithContext(r.Context()).Error("backend URL unusable",
			logger.String("backend", matched.BackendURL),
			logger.Err(err),
		)
		metrics.DefaultMetrics.ProxyErrorsTotal.WithLabelValues("bad_backend_url").Inc()
		rp.errWriter.WriteGatewayError(w, r, errors.ErrServiceUnavailable)
		return
	}

	proxy.ServeHTTP(w, r)
}

// proxyFor returns the shared proxy for a backend base URL, creating
// it on first use.
func (rp *ReverseProxy) proxyFor(backendURL string) (*stdhttputil.ReverseProxy, error) {
	rp.mu.RLock()
	proxy, ok := rp.proxies[backendURL]
	rp.mu.RUnlock()
	if ok {
		return proxy, nil
	}

	target, err := url.Parse(backendURL)
	if err != nil {
		return nil, err
	}

	rp.mu.Lock()
	defer rp.mu.Unlock()
	if proxy, ok := rp.proxies[backendURL]; ok {
		return proxy, nil
	}

	proxy = stdhttputil.NewSingleHostReverseProxy(target)
	proxy.Transport = rp.transport
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logger.WithContext(r.Context()).Error("proxy error",
			logger.String("backend", backendURL),
			logger.String("path", r.URL.Path),
			logger.Err(err),
		)
		metrics.DefaultMetrics.ProxyErrorsTotal.WithLabelValues("upstream_error").Inc()
		rp.errWriter.WriteGatewayError(w, r, errors.ErrServiceUnavailable)
	}

	rp.proxies[backendURL] = proxy
	return proxy, nil
}
