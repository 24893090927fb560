// Package catalog provides university catalogs: the remote catalog
// provider and a YAML-seeded static provider for local development.
package catalog

import (
	"context"

	"github.com/terra-clan/campus-gateway/internal/models"
)

// Provider returns the catalog for a filter query. Filtering is the
// provider's job; callers use the list as returned.
type Provider interface {
	ListUniversities(ctx context.Context, q models.CatalogQuery) ([]models.University, error)
	HealthCheck(ctx context.Context) error
}

// UpstreamClient is the subset of pkg/client used by RemoteProvider
type UpstreamClient interface {
	ListUniversities(ctx context.Context, q models.CatalogQuery) ([]models.University, error)
	Ping(ctx context.Context) error
}

// RemoteProvider delegates to the remote catalog provider
type RemoteProvider struct {
	client UpstreamClient
}

// NewRemoteProvider creates a provider backed by the upstream client
func NewRemoteProvider(client UpstreamClient) *RemoteProvider {
	return &RemoteProvider{client: client}
}

// ListUniversities fetches the already-filtered catalog
func (p *RemoteProvider) ListUniversities(ctx context.Context, q models.CatalogQuery) ([]models.University, error) {
	return p.client.ListUniversities(ctx, q)
}

// HealthCheck pings the remote provider
func (p *RemoteProvider) HealthCheck(ctx context.Context) error {
	return p.client.Ping(ctx)
}
