// Package provisioner provides compute provisioning backends for the cluster
// lifecycle: a local simulator for development and tests, and an HTTP client
// for a remote provisioning agent.
package provisioner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"kadali/internal/domain"
)

var _ domain.Provisioner = (*Local)(nil)

// Local simulates cluster provisioning in-process. Provision waits for the
// configured startup delay and then reports the cluster ready with a
// synthetic UI URL.
type Local struct {
	startupDelay time.Duration
	logger       *slog.Logger

	mu       sync.Mutex
	failNext error
}

// NewLocal creates a Local provisioner with the given simulated startup delay.
func NewLocal(startupDelay time.Duration, logger *slog.Logger) *Local {
	return &Local{
		startupDelay: startupDelay,
		logger:       logger.With("component", "provisioner.local"),
	}
}

// FailNext makes the next Provision call fail with err. Test hook.
func (p *Local) FailNext(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failNext = err
}

// Provision simulates cluster startup and returns the UI URL once ready.
func (p *Local) Provision(ctx context.Context, c *domain.Cluster) (string, error) {
	p.mu.Lock()
	failErr := p.failNext
	p.failNext = nil
	p.mu.Unlock()

	select {
	case <-time.After(p.startupDelay):
	case <-ctx.Done():
		return "", fmt.Errorf("provision %s: %w", c.ClusterID, ctx.Err())
	}

	if failErr != nil {
		return "", failErr
	}

	uiURL := fmt.Sprintf("http://localhost:4040/%s", c.ClusterID)
	p.logger.Info("cluster provisioned",
		"tenant_id", c.TenantID,
		"cluster_id", c.ClusterID,
		"ui_url", uiURL)
	return uiURL, nil
}

// Release frees the simulated resources. Always succeeds.
func (p *Local) Release(_ context.Context, tenantID, clusterID string) error {
	p.logger.Info("cluster released", "tenant_id", tenantID, "cluster_id", clusterID)
	return nil
}
