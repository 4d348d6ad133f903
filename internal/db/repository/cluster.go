package repository

import (
	"context"
	"database/sql"
	"time"

	"kadali/internal/domain"
)

var _ domain.ClusterRepository = (*ClusterRepo)(nil)

// ClusterRepo stores cluster lifecycle state in SQLite.
//
// All status transitions are guarded UPDATEs on the single-connection write
// pool: the WHERE clause names the states the transition may leave, and the
// affected-row count tells the caller whether it won the race. Terminal
// states are therefore never exited, no matter how calls interleave.
// Reads go through the read pool.
type ClusterRepo struct {
	write *sql.DB
	read  *sql.DB
}

// NewClusterRepo creates a new ClusterRepo over a write/read pool pair.
func NewClusterRepo(writeDB, readDB *sql.DB) *ClusterRepo {
	return &ClusterRepo{write: writeDB, read: readDB}
}

const clusterColumns = `
	cluster_id, tenant_id, name, cluster_type, status,
	driver_memory, driver_cores, executor_memory, executor_cores, executor_count,
	auto_terminate_minutes, ui_url, error_message,
	created_at, started_at, last_activity_at, updated_at
`

// Create inserts a new cluster record in CREATING state.
func (r *ClusterRepo) Create(ctx context.Context, c *domain.Cluster) (*domain.Cluster, error) {
	if c == nil {
		return nil, domain.ErrValidation("cluster is required")
	}
	if c.ClusterID == "" {
		c.ClusterID = domain.NewClusterID()
	}
	if c.Status == "" {
		c.Status = domain.ClusterStatusCreating
	}

	// created_at is bound from Go for sub-second precision: List orders by
	// it, and CURRENT_TIMESTAMP only resolves to whole seconds.
	now := time.Now().UTC()
	_, err := r.write.ExecContext(ctx, `
		INSERT INTO clusters (
			cluster_id, tenant_id, name, cluster_type, status,
			driver_memory, driver_cores, executor_memory, executor_cores, executor_count,
			auto_terminate_minutes, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ClusterID, c.TenantID, c.Name, string(c.Type), string(c.Status),
		c.DriverMemory, c.DriverCores, c.ExecutorMemory, c.ExecutorCores, c.ExecutorCount,
		c.AutoTerminateMinutes, now, now)
	if err != nil {
		return nil, mapDBError(err)
	}

	return r.Get(ctx, c.TenantID, c.ClusterID)
}

// Get returns a cluster by id, scoped to the owning tenant.
func (r *ClusterRepo) Get(ctx context.Context, tenantID, clusterID string) (*domain.Cluster, error) {
	row := r.read.QueryRowContext(ctx, `
		SELECT `+clusterColumns+`
		FROM clusters WHERE cluster_id = ? AND tenant_id = ?
	`, clusterID, tenantID)

	c, err := scanCluster(row)
	if err != nil {
		if _, ok := err.(*domain.NotFoundError); ok {
			return nil, domain.ErrNotFound("cluster %q not found", clusterID)
		}
		return nil, err
	}
	return c, nil
}

// List returns all of the tenant's clusters, newest first.
func (r *ClusterRepo) List(ctx context.Context, tenantID string) ([]domain.Cluster, error) {
	rows, err := r.read.QueryContext(ctx, `
		SELECT `+clusterColumns+`
		FROM clusters WHERE tenant_id = ?
		ORDER BY created_at DESC, cluster_id DESC
	`, tenantID)
	if err != nil {
		return nil, mapDBError(err)
	}
	defer rows.Close() //nolint:errcheck

	return collectClusters(rows)
}

// ListRunning returns RUNNING clusters across all tenants.
func (r *ClusterRepo) ListRunning(ctx context.Context) ([]domain.Cluster, error) {
	rows, err := r.read.QueryContext(ctx, `
		SELECT `+clusterColumns+`
		FROM clusters WHERE status = ?
	`, string(domain.ClusterStatusRunning))
	if err != nil {
		return nil, mapDBError(err)
	}
	defer rows.Close() //nolint:errcheck

	return collectClusters(rows)
}

// MarkRunning applies CREATING → RUNNING and stamps started_at exactly once.
func (r *ClusterRepo) MarkRunning(ctx context.Context, clusterID, uiURL string) (bool, error) {
	return r.transition(ctx, `
		UPDATE clusters
		SET status = ?, ui_url = ?, started_at = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP
		WHERE cluster_id = ? AND status = ?
	`, string(domain.ClusterStatusRunning), uiURL, clusterID, string(domain.ClusterStatusCreating))
}

// MarkError applies CREATING → ERROR with the provisioning failure message.
func (r *ClusterRepo) MarkError(ctx context.Context, clusterID, message string) (bool, error) {
	return r.transition(ctx, `
		UPDATE clusters
		SET status = ?, error_message = ?, updated_at = CURRENT_TIMESTAMP
		WHERE cluster_id = ? AND status = ?
	`, string(domain.ClusterStatusError), message, clusterID, string(domain.ClusterStatusCreating))
}

// MarkTerminated applies CREATING|RUNNING → TERMINATED and reports the status
// the cluster held just before the transition, so callers can key release
// side effects on whether resources were actually allocated. The read and the
// update run in one transaction on the single-connection write pool, which
// serializes them against every other writer.
func (r *ClusterRepo) MarkTerminated(ctx context.Context, clusterID string) (domain.ClusterStatus, bool, error) {
	tx, err := r.write.BeginTx(ctx, nil)
	if err != nil {
		return "", false, mapDBError(err)
	}
	defer tx.Rollback() //nolint:errcheck

	var status string
	err = tx.QueryRowContext(ctx, `
		SELECT status FROM clusters WHERE cluster_id = ?
	`, clusterID).Scan(&status)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", false, domain.ErrNotFound("cluster %q not found", clusterID)
		}
		return "", false, mapDBError(err)
	}

	prev := domain.ClusterStatus(status)
	if prev != domain.ClusterStatusCreating && prev != domain.ClusterStatusRunning {
		return prev, false, nil
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE clusters
		SET status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE cluster_id = ?
	`, string(domain.ClusterStatusTerminated), clusterID)
	if err != nil {
		return prev, false, mapDBError(err)
	}
	if err := tx.Commit(); err != nil {
		return prev, false, mapDBError(err)
	}
	return prev, true, nil
}

// ResetError applies ERROR → TERMINATED.
func (r *ClusterRepo) ResetError(ctx context.Context, clusterID string) (bool, error) {
	return r.transition(ctx, `
		UPDATE clusters
		SET status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE cluster_id = ? AND status = ?
	`, string(domain.ClusterStatusTerminated), clusterID, string(domain.ClusterStatusError))
}

// TouchActivity updates last_activity_at; terminal clusters are left alone.
func (r *ClusterRepo) TouchActivity(ctx context.Context, clusterID string, at time.Time) error {
	_, err := r.write.ExecContext(ctx, `
		UPDATE clusters
		SET last_activity_at = ?, updated_at = CURRENT_TIMESTAMP
		WHERE cluster_id = ? AND status IN (?, ?)
	`, at.UTC(), clusterID,
		string(domain.ClusterStatusCreating), string(domain.ClusterStatusRunning))
	return mapDBError(err)
}

func (r *ClusterRepo) transition(ctx context.Context, stmt string, args ...interface{}) (bool, error) {
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

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCluster(row rowScanner) (*domain.Cluster, error) {
	var (
		c                         domain.Cluster
		clusterType, status       string
		uiURL, errorMessage       sql.NullString
		startedAt, lastActivityAt sql.NullTime
	)

	err := row.Scan(
		&c.ClusterID,
		&c.TenantID,
		&c.Name,
		&clusterType,
		&status,
		&c.DriverMemory,
		&c.DriverCores,
		&c.ExecutorMemory,
		&c.ExecutorCores,
		&c.ExecutorCount,
		&c.AutoTerminateMinutes,
		&uiURL,
		&errorMessage,
		&c.CreatedAt,
		&startedAt,
		&lastActivityAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, mapDBError(err)
	}

	c.Type = domain.ClusterType(clusterType)
	c.Status = domain.ClusterStatus(status)
	c.UIURL = nullableString(uiURL)
	c.ErrorMessage = nullableString(errorMessage)
	c.StartedAt = nullableTime(startedAt)
	c.LastActivityAt = nullableTime(lastActivityAt)

	return &c, nil
}

func collectClusters(rows *sql.Rows) ([]domain.Cluster, error) {
	var out []domain.Cluster
	for rows.Next() {
		c, err := scanCluster(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, mapDBError(err)
	}
	return out, nil
}
