// Package query implements the query session manager: asynchronous SQL
// submission, polling, cancellation, and result truncation.
package query

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"kadali/internal/domain"
)

// DefaultRowLimit applies when a submission does not specify a limit.
const DefaultRowLimit = 1000

// Service owns query session records. Execution runs on a background
// goroutine per query; terminal status transitions are compare-and-set, so a
// cancel racing the engine's completion resolves to exactly one terminal
// state and the loser's payload is discarded.
type Service struct {
	repo         domain.QueryRepository
	engine       domain.ExecutionEngine
	defaultLimit int
	logger       *slog.Logger

	// jobCancels maps query ID → CancelFunc for in-flight executions.
	jobCancels sync.Map
}

// NewService creates a query Service. defaultLimit applies to submissions
// without an explicit row limit; zero or negative falls back to
// DefaultRowLimit.
func NewService(repo domain.QueryRepository, engine domain.ExecutionEngine, defaultLimit int, logger *slog.Logger) *Service {
	if defaultLimit <= 0 {
		defaultLimit = DefaultRowLimit
	}
	return &Service{
		repo:         repo,
		engine:       engine,
		defaultLimit: defaultLimit,
		logger:       logger.With("component", "query"),
	}
}

// Submit validates the request, stores a PENDING record, and hands execution
// to a background goroutine. The PENDING record is returned immediately;
// callers poll Get until the status is terminal.
func (s *Service) Submit(ctx context.Context, tenantID, sqlText string, limit int) (*domain.Query, error) {
	if limit == 0 {
		limit = s.defaultLimit
	}
	if err := domain.ValidateSubmitQuery(sqlText, limit); err != nil {
		return nil, err
	}

	q, err := s.repo.Create(ctx, &domain.Query{
		TenantID: tenantID,
		SQL:      sqlText,
		Limit:    limit,
		Status:   domain.QueryStatusPending,
	})
	if err != nil {
		return nil, fmt.Errorf("create query: %w", err)
	}

	go s.runQuery(q.QueryID, tenantID, sqlText, limit)

	s.logger.Info("query submitted", "tenant_id", tenantID, "query_id", q.QueryID, "limit", limit)
	return q, nil
}

// runQuery drives a single query to a terminal state on a background
// goroutine. Every terminal write is compare-and-set; a cancel that lands
// first makes the corresponding write here a no-op.
func (s *Service) runQuery(queryID, tenantID, sqlText string, limit int) {
	ctx, cancel := context.WithCancel(context.Background())
	s.jobCancels.Store(queryID, cancel)
	defer s.jobCancels.Delete(queryID)
	defer cancel()

	won, err := s.repo.MarkRunning(ctx, queryID)
	if err != nil {
		s.logger.Error("mark query running", "query_id", queryID, "error", err)
		return
	}
	if !won {
		// cancelled before execution started
		return
	}

	result, err := s.engine.Execute(ctx, tenantID, sqlText, limit)
	if err != nil {
		if ctx.Err() == context.Canceled {
			// Cancel already wrote CANCELLED; this is belt and braces for
			// an engine abort without a preceding Cancel call.
			_, _ = s.repo.MarkCancelled(context.Background(), queryID)
			return
		}
		if _, markErr := s.repo.MarkFailed(context.Background(), queryID, err.Error()); markErr != nil {
			s.logger.Error("mark query failed", "query_id", queryID, "error", markErr)
		}
		s.logger.Warn("query execution failed", "tenant_id", tenantID, "query_id", queryID, "error", err)
		return
	}

	rows := result.Rows
	if len(rows) > limit {
		rows = rows[:limit]
	}

	won, err = s.repo.MarkCompleted(context.Background(), queryID, result.Columns, rows)
	if err != nil {
		s.logger.Error("mark query completed", "query_id", queryID, "error", err)
		return
	}
	if !won {
		// cancel landed first; discard the result
		s.logger.Info("query result discarded after cancel", "query_id", queryID)
		return
	}

	s.logger.Info("query completed", "tenant_id", tenantID, "query_id", queryID, "rows", len(rows))
}

// Get returns the current query snapshot, scoped to the tenant.
func (s *Service) Get(ctx context.Context, tenantID, queryID string) (*domain.Query, error) {
	return s.repo.Get(ctx, tenantID, queryID)
}

// Cancel aborts a PENDING or RUNNING query. Terminal queries are a no-op.
// The abort signal to the engine is fire-and-forget; the record is CANCELLED
// once this returns, whether or not the engine has acknowledged.
func (s *Service) Cancel(ctx context.Context, tenantID, queryID string) error {
	q, err := s.repo.Get(ctx, tenantID, queryID)
	if err != nil {
		return err
	}
	if q.Status.Terminal() {
		return nil
	}

	won, err := s.repo.MarkCancelled(ctx, queryID)
	if err != nil {
		return fmt.Errorf("cancel query: %w", err)
	}
	if !won {
		// the engine's terminal write got there first
		return nil
	}

	if cancelRaw, ok := s.jobCancels.Load(queryID); ok {
		if cancelFn, ok := cancelRaw.(context.CancelFunc); ok {
			cancelFn()
		}
	}

	s.logger.Info("query cancelled", "tenant_id", tenantID, "query_id", queryID)
	return nil
}
