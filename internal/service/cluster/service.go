// Package cluster implements the cluster registry: lifecycle state
// management, asynchronous provisioning handoff, and the idle reaper.
package cluster

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"kadali/internal/domain"
)

// Service owns cluster records and their lifecycle state machine. Status
// transitions go through compare-and-set repository calls, so racing callers
// (user terminate, reaper sweep, provisioning callback) resolve to exactly
// one winner and release side effects fire exactly once.
type Service struct {
	repo   domain.ClusterRepository
	prov   domain.Provisioner
	logger *slog.Logger

	// provisionCancels maps cluster ID → CancelFunc for in-flight provisioning.
	provisionCancels sync.Map
}

// NewService creates a cluster Service.
func NewService(repo domain.ClusterRepository, prov domain.Provisioner, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		prov:   prov,
		logger: logger.With("component", "cluster"),
	}
}

// Create validates the request, stores a CREATING record, and hands
// provisioning to a background goroutine. The CREATING record is returned
// immediately; callers poll Get until the status settles.
func (s *Service) Create(ctx context.Context, tenantID string, req domain.CreateClusterRequest) (*domain.Cluster, error) {
	if err := domain.ValidateCreateClusterRequest(req); err != nil {
		return nil, err
	}

	cluster, err := s.repo.Create(ctx, &domain.Cluster{
		TenantID:             tenantID,
		Name:                 req.Name,
		Type:                 req.Type,
		Status:               domain.ClusterStatusCreating,
		DriverMemory:         req.DriverMemory,
		DriverCores:          req.DriverCores,
		ExecutorMemory:       req.ExecutorMemory,
		ExecutorCores:        req.ExecutorCores,
		ExecutorCount:        req.ExecutorCount,
		AutoTerminateMinutes: req.AutoTerminateMinutes,
	})
	if err != nil {
		return nil, fmt.Errorf("create cluster: %w", err)
	}

	go s.runProvision(cluster)

	s.logger.Info("cluster create accepted",
		"tenant_id", tenantID,
		"cluster_id", cluster.ClusterID,
		"type", cluster.Type)
	return cluster, nil
}

// runProvision drives a single cluster from CREATING to RUNNING or ERROR on a
// background goroutine. If the cluster was terminated while provisioning was
// in flight, the RUNNING transition loses and any allocated resources are
// released here.
func (s *Service) runProvision(cluster *domain.Cluster) {
	ctx, cancel := context.WithCancel(context.Background())
	s.provisionCancels.Store(cluster.ClusterID, cancel)
	defer s.provisionCancels.Delete(cluster.ClusterID)
	defer cancel()

	uiURL, err := s.prov.Provision(ctx, cluster)
	if err != nil {
		won, markErr := s.repo.MarkError(context.Background(), cluster.ClusterID, err.Error())
		if markErr != nil {
			s.logger.Error("record provisioning failure",
				"cluster_id", cluster.ClusterID, "error", markErr)
			return
		}
		if !won {
			// terminated while provisioning; nothing was allocated
			s.logger.Info("provisioning aborted",
				"cluster_id", cluster.ClusterID, "error", err)
			return
		}
		s.logger.Warn("cluster provisioning failed",
			"tenant_id", cluster.TenantID,
			"cluster_id", cluster.ClusterID,
			"error", err)
		return
	}

	won, err := s.repo.MarkRunning(context.Background(), cluster.ClusterID, uiURL)
	if err != nil {
		s.logger.Error("record cluster running",
			"cluster_id", cluster.ClusterID, "error", err)
		return
	}
	if !won {
		// terminate won the race after resources came up; release them
		if relErr := s.prov.Release(context.Background(), cluster.TenantID, cluster.ClusterID); relErr != nil {
			s.logger.Error("release after lost running transition",
				"cluster_id", cluster.ClusterID, "error", relErr)
		}
		return
	}

	s.logger.Info("cluster running",
		"tenant_id", cluster.TenantID,
		"cluster_id", cluster.ClusterID,
		"ui_url", uiURL)
}

// Get returns the cluster, scoped to the tenant.
func (s *Service) Get(ctx context.Context, tenantID, clusterID string) (*domain.Cluster, error) {
	return s.repo.Get(ctx, tenantID, clusterID)
}

// List returns the tenant's clusters, newest first.
func (s *Service) List(ctx context.Context, tenantID string) ([]domain.Cluster, error) {
	return s.repo.List(ctx, tenantID)
}

// Terminate moves the cluster to TERMINATED and releases its resources.
// Already-TERMINATED clusters are a no-op; ERROR clusters must go through
// Reset instead.
func (s *Service) Terminate(ctx context.Context, tenantID, clusterID string) error {
	cluster, err := s.repo.Get(ctx, tenantID, clusterID)
	if err != nil {
		return err
	}

	switch cluster.Status {
	case domain.ClusterStatusTerminated:
		return nil
	case domain.ClusterStatusError:
		return domain.ErrInvalidState("cluster %s is in ERROR state and cannot be terminated; reset it instead", clusterID)
	}

	// The release decision keys on the status MarkTerminated saw, not the
	// snapshot read above: provisioning may flip CREATING to RUNNING in
	// between, and those resources must still be released.
	prev, won, err := s.repo.MarkTerminated(ctx, clusterID)
	if err != nil {
		return fmt.Errorf("terminate cluster: %w", err)
	}
	if !won {
		if prev == domain.ClusterStatusTerminated {
			return nil
		}
		return domain.ErrInvalidState("cluster %s is in %s state and cannot be terminated", clusterID, prev)
	}

	// abort in-flight provisioning, if any
	if cancelRaw, ok := s.provisionCancels.Load(clusterID); ok {
		if cancelFn, ok := cancelRaw.(context.CancelFunc); ok {
			cancelFn()
		}
	}

	if prev == domain.ClusterStatusRunning {
		if err := s.prov.Release(ctx, tenantID, clusterID); err != nil {
			s.logger.Error("release cluster resources",
				"tenant_id", tenantID,
				"cluster_id", clusterID,
				"error", err)
		}
	}

	s.logger.Info("cluster terminated", "tenant_id", tenantID, "cluster_id", clusterID)
	return nil
}

// RecordActivity stamps lastActivityAt. Terminal clusters are a no-op.
func (s *Service) RecordActivity(ctx context.Context, tenantID, clusterID string) error {
	cluster, err := s.repo.Get(ctx, tenantID, clusterID)
	if err != nil {
		return err
	}
	if cluster.Status.Terminal() {
		return nil
	}
	return s.repo.TouchActivity(ctx, clusterID, time.Now().UTC())
}

// Reset acknowledges a failed cluster, moving ERROR to TERMINATED. No
// resources were ever allocated, so there is nothing to release.
func (s *Service) Reset(ctx context.Context, tenantID, clusterID string) error {
	cluster, err := s.repo.Get(ctx, tenantID, clusterID)
	if err != nil {
		return err
	}
	if cluster.Status != domain.ClusterStatusError {
		return domain.ErrInvalidState("cluster %s is in %s state; only ERROR clusters can be reset", clusterID, cluster.Status)
	}

	won, err := s.repo.ResetError(ctx, clusterID)
	if err != nil {
		return fmt.Errorf("reset cluster: %w", err)
	}
	if !won {
		// a concurrent reset got there first
		return nil
	}

	s.logger.Info("cluster error reset", "tenant_id", tenantID, "cluster_id", clusterID)
	return nil
}
