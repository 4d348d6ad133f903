// Package catalog manages per-tenant database and dataset metadata.
package catalog

import (
	"context"
	"fmt"
	"log/slog"

	"kadali/internal/domain"
)

// Service owns the data catalog: database names and dataset entries.
type Service struct {
	repo   domain.DatasetRepository
	logger *slog.Logger
}

// NewService creates a catalog Service.
func NewService(repo domain.DatasetRepository, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger.With("component", "catalog"),
	}
}

// CreateDatabase registers a database name for the tenant. Idempotent.
func (s *Service) CreateDatabase(ctx context.Context, tenantID, name string) error {
	if name == "" {
		return domain.ErrValidation("databaseName is required")
	}
	if err := s.repo.CreateDatabase(ctx, tenantID, name); err != nil {
		return fmt.Errorf("create database: %w", err)
	}
	s.logger.Info("database created", "tenant_id", tenantID, "database", name)
	return nil
}

// ListDatabases returns the tenant's database names.
func (s *Service) ListDatabases(ctx context.Context, tenantID string) ([]string, error) {
	return s.repo.ListDatabases(ctx, tenantID)
}

// RegisterDataset adds a dataset entry to the catalog, creating its database
// entry if needed.
func (s *Service) RegisterDataset(ctx context.Context, tenantID string, req domain.RegisterDatasetRequest) (*domain.Dataset, error) {
	if err := domain.ValidateRegisterDatasetRequest(req); err != nil {
		return nil, err
	}

	if err := s.repo.CreateDatabase(ctx, tenantID, req.DatabaseName); err != nil {
		return nil, fmt.Errorf("ensure database: %w", err)
	}

	dataset, err := s.repo.Create(ctx, &domain.Dataset{
		TenantID:     tenantID,
		DatabaseName: req.DatabaseName,
		TableName:    req.TableName,
		Location:     req.Location,
		Format:       req.Format,
		Description:  req.Description,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("dataset registered",
		"tenant_id", tenantID,
		"database", dataset.DatabaseName,
		"table", dataset.TableName,
		"format", dataset.Format)
	return dataset, nil
}

// ListDatasets returns the tenant's datasets, optionally filtered by database.
func (s *Service) ListDatasets(ctx context.Context, tenantID, database string) ([]domain.Dataset, error) {
	if database == "" {
		return s.repo.List(ctx, tenantID)
	}
	return s.repo.ListByDatabase(ctx, tenantID, database)
}

// GetDataset returns one dataset by database and table name.
func (s *Service) GetDataset(ctx context.Context, tenantID, database, table string) (*domain.Dataset, error) {
	return s.repo.Get(ctx, tenantID, database, table)
}

// DeleteDataset removes a dataset entry from the catalog.
func (s *Service) DeleteDataset(ctx context.Context, tenantID, database, table string) error {
	if err := s.repo.Delete(ctx, tenantID, database, table); err != nil {
		return err
	}
	s.logger.Info("dataset deleted", "tenant_id", tenantID, "database", database, "table", table)
	return nil
}
