package domain

import (
	"context"
	"time"
)

// ClusterRepository persists cluster records. Status transitions are
// compare-and-set: the Mark* methods report whether the transition was
// applied, so racing callers can key side effects to exactly one winner.
type ClusterRepository interface {
	Create(ctx context.Context, c *Cluster) (*Cluster, error)
	// Get returns the cluster only when it belongs to tenantID.
	Get(ctx context.Context, tenantID, clusterID string) (*Cluster, error)
	// List returns all of the tenant's clusters ordered by createdAt descending.
	List(ctx context.Context, tenantID string) ([]Cluster, error)
	// ListRunning returns RUNNING clusters across all tenants (reaper sweep).
	ListRunning(ctx context.Context) ([]Cluster, error)

	// MarkRunning applies CREATING → RUNNING, setting started_at once.
	MarkRunning(ctx context.Context, clusterID, uiURL string) (bool, error)
	// MarkError applies CREATING → ERROR with a provisioning failure message.
	MarkError(ctx context.Context, clusterID, message string) (bool, error)
	// MarkTerminated applies CREATING|RUNNING → TERMINATED and reports the
	// status held just before the transition, so the winner can key release
	// side effects on whether resources were allocated.
	MarkTerminated(ctx context.Context, clusterID string) (prev ClusterStatus, won bool, err error)
	// ResetError applies ERROR → TERMINATED (operator acknowledgement).
	ResetError(ctx context.Context, clusterID string) (bool, error)

	// TouchActivity updates last_activity_at; no-op once terminal.
	TouchActivity(ctx context.Context, clusterID string, at time.Time) error
}

// QueryRepository persists asynchronous query session state. As with
// clusters, terminal transitions are compare-and-set and first-writer-wins.
type QueryRepository interface {
	Create(ctx context.Context, q *Query) (*Query, error)
	Get(ctx context.Context, tenantID, queryID string) (*Query, error)

	// MarkRunning applies PENDING → RUNNING.
	MarkRunning(ctx context.Context, queryID string) (bool, error)
	// MarkCompleted applies PENDING|RUNNING → COMPLETED with the result payload.
	MarkCompleted(ctx context.Context, queryID string, columns []string, rows []map[string]interface{}) (bool, error)
	// MarkFailed applies PENDING|RUNNING → FAILED with an error message.
	MarkFailed(ctx context.Context, queryID, message string) (bool, error)
	// MarkCancelled applies PENDING|RUNNING → CANCELLED.
	MarkCancelled(ctx context.Context, queryID string) (bool, error)
}

// DatasetRepository persists catalog metadata: per-tenant databases and
// dataset entries.
type DatasetRepository interface {
	CreateDatabase(ctx context.Context, tenantID, name string) error
	ListDatabases(ctx context.Context, tenantID string) ([]string, error)

	Create(ctx context.Context, d *Dataset) (*Dataset, error)
	List(ctx context.Context, tenantID string) ([]Dataset, error)
	ListByDatabase(ctx context.Context, tenantID, database string) ([]Dataset, error)
	Get(ctx context.Context, tenantID, database, table string) (*Dataset, error)
	Delete(ctx context.Context, tenantID, database, table string) error
}

// Provisioner allocates and releases compute resources for clusters.
// Provision blocks until the cluster is ready (or fails) and returns the
// cluster UI URL; callers run it on a background goroutine.
type Provisioner interface {
	Provision(ctx context.Context, c *Cluster) (uiURL string, err error)
	Release(ctx context.Context, tenantID, clusterID string) error
}

// ExecutionEngine runs SQL and reports columns and rows. Implementations
// push the row limit down where they can; callers truncate regardless.
// Cancellation is signalled through the context.
type ExecutionEngine interface {
	Execute(ctx context.Context, tenantID, sqlText string, limit int) (*QueryResultData, error)
}
