package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"kadali/internal/domain"
)

var _ domain.QueryRepository = (*QueryRepo)(nil)

// QueryRepo stores asynchronous query session state in SQLite.
//
// Terminal transitions (COMPLETED/FAILED/CANCELLED) are guarded UPDATEs that
// only fire from a non-terminal state, so whichever writer lands first wins
// and the loser's payload is discarded.
type QueryRepo struct {
	write *sql.DB
	read  *sql.DB
}

// NewQueryRepo creates a new QueryRepo over a write/read pool pair.
func NewQueryRepo(writeDB, readDB *sql.DB) *QueryRepo {
	return &QueryRepo{write: writeDB, read: readDB}
}

// Create inserts a new query record in PENDING state.
func (r *QueryRepo) Create(ctx context.Context, q *domain.Query) (*domain.Query, error) {
	if q == nil {
		return nil, domain.ErrValidation("query is required")
	}
	if q.QueryID == "" {
		q.QueryID = domain.NewQueryID()
	}
	if q.Status == "" {
		q.Status = domain.QueryStatusPending
	}

	_, err := r.write.ExecContext(ctx, `
		INSERT INTO queries (query_id, tenant_id, sql_text, row_limit, status)
		VALUES (?, ?, ?, ?, ?)
	`, q.QueryID, q.TenantID, q.SQL, q.Limit, string(q.Status))
	if err != nil {
		return nil, mapDBError(err)
	}

	return r.Get(ctx, q.TenantID, q.QueryID)
}

// Get returns a query by id, scoped to the owning tenant.
func (r *QueryRepo) Get(ctx context.Context, tenantID, queryID string) (*domain.Query, error) {
	var (
		q                     domain.Query
		status                string
		columnsJSON, rowsJSON sql.NullString
		errorMessage          sql.NullString
		endTime               sql.NullTime
	)

	err := r.read.QueryRowContext(ctx, `
		SELECT query_id, tenant_id, sql_text, row_limit, status, columns_json, rows_json,
		       row_count, error_message, start_time, end_time, updated_at
		FROM queries WHERE query_id = ? AND tenant_id = ?
	`, queryID, tenantID).Scan(
		&q.QueryID,
		&q.TenantID,
		&q.SQL,
		&q.Limit,
		&status,
		&columnsJSON,
		&rowsJSON,
		&q.RowCount,
		&errorMessage,
		&q.StartTime,
		&endTime,
		&q.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound("query %q not found", queryID)
		}
		return nil, mapDBError(err)
	}

	q.Status = domain.QueryStatus(status)
	q.ErrorMessage = nullableString(errorMessage)
	q.EndTime = nullableTime(endTime)
	if columnsJSON.Valid && columnsJSON.String != "" {
		if err := json.Unmarshal([]byte(columnsJSON.String), &q.Columns); err != nil {
			return nil, fmt.Errorf("unmarshal columns: %w", err)
		}
	}
	if rowsJSON.Valid && rowsJSON.String != "" {
		if err := json.Unmarshal([]byte(rowsJSON.String), &q.Rows); err != nil {
			return nil, fmt.Errorf("unmarshal rows: %w", err)
		}
	}

	return &q, nil
}

// MarkRunning applies PENDING → RUNNING.
func (r *QueryRepo) MarkRunning(ctx context.Context, queryID string) (bool, error) {
	return r.transition(ctx, `
		UPDATE queries
		SET status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE query_id = ? AND status = ?
	`, string(domain.QueryStatusRunning), queryID, string(domain.QueryStatusPending))
}

// MarkCompleted stores the result payload and applies the first terminal
// transition from PENDING|RUNNING → COMPLETED.
func (r *QueryRepo) MarkCompleted(ctx context.Context, queryID string, columns []string, rows []map[string]interface{}) (bool, error) {
	columnsJSON, err := json.Marshal(columns)
	if err != nil {
		return false, fmt.Errorf("marshal columns: %w", err)
	}
	rowsJSON, err := json.Marshal(rows)
	if err != nil {
		return false, fmt.Errorf("marshal rows: %w", err)
	}

	return r.transition(ctx, `
		UPDATE queries
		SET status = ?, columns_json = ?, rows_json = ?, row_count = ?, error_message = NULL,
		    end_time = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP
		WHERE query_id = ? AND status IN (?, ?)
	`, string(domain.QueryStatusCompleted), string(columnsJSON), string(rowsJSON), len(rows),
		queryID, string(domain.QueryStatusPending), string(domain.QueryStatusRunning))
}

// MarkFailed applies PENDING|RUNNING → FAILED with an error message.
func (r *QueryRepo) MarkFailed(ctx context.Context, queryID, message string) (bool, error) {
	return r.transition(ctx, `
		UPDATE queries
		SET status = ?, error_message = ?, end_time = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP
		WHERE query_id = ? AND status IN (?, ?)
	`, string(domain.QueryStatusFailed), message,
		queryID, string(domain.QueryStatusPending), string(domain.QueryStatusRunning))
}

// MarkCancelled applies PENDING|RUNNING → CANCELLED. Only FAILED carries an
// error message; cancellation leaves error_message untouched.
func (r *QueryRepo) MarkCancelled(ctx context.Context, queryID string) (bool, error) {
	return r.transition(ctx, `
		UPDATE queries
		SET status = ?, end_time = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP
		WHERE query_id = ? AND status IN (?, ?)
	`, string(domain.QueryStatusCancelled),
		queryID, string(domain.QueryStatusPending), string(domain.QueryStatusRunning))
}

func (r *QueryRepo) transition(ctx context.Context, stmt string, args ...interface{}) (bool, error) {
	res, err := r.write.ExecContext(ctx, stmt, args...)
	if err != nil {
		return false, mapDBError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
