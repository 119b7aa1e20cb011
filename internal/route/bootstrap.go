package route

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/your-org/edge-gateway/internal/config"
	"github.com/your-org/edge-gateway/internal/domain"
	"github.com/your-org/edge-gateway/internal/service/metrics"
	"github.com/your-org/edge-gateway/pkg/logger"
)

// Bootstrapper seeds and refreshes the route table from the control
// plane's collection listing.
type Bootstrapper struct {
	registry   *Registry
	client     *http.Client
	baseURL    string
	backendURL string
}

// NewBootstrapper creates a route bootstrapper.
func NewBootstrapper(registry *Registry, cpCfg config.ControlPlaneConfig, backendCfg config.BackendConfig) *Bootstrapper {
	return &Bootstrapper{
		registry:   registry,
		client:     &http.Client{Timeout: cpCfg.Timeout},
		baseURL:    cpCfg.URL,
		backendURL: backendCfg.URL,
	}
}

// Refresh fetches all collections and replaces the route table.
// A failed refresh leaves the current table untouched.
func (b *Bootstrapper) Refresh(ctx context.Context) error {
	if b.baseURL == "" {
		return fmt.Errorf("control plane not configured, cannot refresh routes")
	}

	endpoint := b.baseURL + "/internal/gateway/routes"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}

	resp, err := b.client.Do(req)
	if err != nil {
		metrics.DefaultMetrics.RouteRefreshesTotal.WithLabelValues("failure").Inc()
		return fmt.Errorf("route refresh request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.DefaultMetrics.RouteRefreshesTotal.WithLabelValues("failure").Inc()
		return fmt.Errorf("route refresh failed: HTTP %d", resp.StatusCode)
	}

	var collections []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&collections); err != nil {
		metrics.DefaultMetrics.RouteRefreshesTotal.WithLabelValues("failure").Inc()
		return fmt.Errorf("route refresh body unreadable: %w", err)
	}

	routes := make([]domain.RouteDefinition, 0, len(collections))
	for _, c := range collections {
		if c.ID == "" || c.Name == "" {
			logger.Warn("skipping collection with missing fields",
				logger.String("id", c.ID),
				logger.String("name", c.Name),
			)
			continue
		}
		routes = append(routes, domain.NewRouteDefinition(c.ID, c.Name, b.backendURL))
	}

	b.registry.ReplaceAll(routes)
	metrics.DefaultMetrics.RouteRefreshesTotal.WithLabelValues("success").Inc()
	return nil
}
