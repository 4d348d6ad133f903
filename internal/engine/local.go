// Package engine provides SQL execution backends for asynchronous query
// sessions: an embedded DuckDB engine for local use and an HTTP client for a
// remote execution agent.
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"kadali/internal/domain"
)

var _ domain.ExecutionEngine = (*LocalEngine)(nil)

// LocalEngine executes SQL against an embedded DuckDB instance. All tenants
// share the one instance; isolation happens at the orchestration layer.
type LocalEngine struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewLocalEngine creates a LocalEngine over the given DuckDB handle.
func NewLocalEngine(db *sql.DB, logger *slog.Logger) *LocalEngine {
	return &LocalEngine{
		db:     db,
		logger: logger.With("component", "engine.local"),
	}
}

// Execute runs the SQL and collects at most limit rows. Scanning stops at the
// limit rather than draining the cursor, so oversized results stay cheap.
func (e *LocalEngine) Execute(ctx context.Context, tenantID, sqlText string, limit int) (*domain.QueryResultData, error) {
	start := time.Now()

	rows, err := e.db.QueryContext(ctx, sqlText)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	result, err := collectRows(rows, limit)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("query executed",
		"tenant_id", tenantID,
		"rows", len(result.Rows),
		"duration_ms", time.Since(start).Milliseconds())

	return result, nil
}

// collectRows scans up to limit rows into column-name-keyed maps.
func collectRows(rows *sql.Rows, limit int) (*domain.QueryResultData, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	out := &domain.QueryResultData{
		Columns: columns,
		Rows:    make([]map[string]interface{}, 0, limit),
	}

	values := make([]interface{}, len(columns))
	ptrs := make([]interface{}, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}

	for len(out.Rows) < limit && rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		row := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			row[col] = normalizeValue(values[i])
		}
		out.Rows = append(out.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return out, nil
}

// normalizeValue converts driver-specific types into JSON-friendly ones.
func normalizeValue(v interface{}) interface{} {
	switch val := v.(type) {
	case []byte:
		return string(val)
	case time.Time:
		return val.UTC().Format(time.RFC3339)
	default:
		return v
	}
}
