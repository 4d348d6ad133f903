package repository

import (
	"context"
	"database/sql"

	"kadali/internal/domain"
)

var _ domain.DatasetRepository = (*DatasetRepo)(nil)

// DatasetRepo stores catalog metadata (databases and datasets) in SQLite.
type DatasetRepo struct {
	write *sql.DB
	read  *sql.DB
}

// NewDatasetRepo creates a new DatasetRepo over a write/read pool pair.
func NewDatasetRepo(writeDB, readDB *sql.DB) *DatasetRepo {
	return &DatasetRepo{write: writeDB, read: readDB}
}

// CreateDatabase records a database for the tenant. Idempotent.
func (r *DatasetRepo) CreateDatabase(ctx context.Context, tenantID, name string) error {
	if name == "" {
		return domain.ErrValidation("databaseName is required")
	}
	_, err := r.write.ExecContext(ctx, `
		INSERT OR IGNORE INTO databases (tenant_id, name) VALUES (?, ?)
	`, tenantID, name)
	return mapDBError(err)
}

// ListDatabases returns the tenant's database names in creation order.
func (r *DatasetRepo) ListDatabases(ctx context.Context, tenantID string) ([]string, error) {
	rows, err := r.read.QueryContext(ctx, `
		SELECT name FROM databases WHERE tenant_id = ? ORDER BY created_at, name
	`, tenantID)
	if err != nil {
		return nil, mapDBError(err)
	}
	defer rows.Close() //nolint:errcheck

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

const datasetColumns = `
	dataset_id, tenant_id, database_name, table_name, location, format,
	row_count, size_bytes, description, created_at, updated_at, last_accessed_at
`

// Create inserts a new dataset record.
func (r *DatasetRepo) Create(ctx context.Context, d *domain.Dataset) (*domain.Dataset, error) {
	if d == nil {
		return nil, domain.ErrValidation("dataset is required")
	}
	if d.DatasetID == "" {
		d.DatasetID = domain.NewDatasetID()
	}
	if d.Format == "" {
		d.Format = "delta"
	}

	_, err := r.write.ExecContext(ctx, `
		INSERT INTO datasets (dataset_id, tenant_id, database_name, table_name, location, format, row_count, size_bytes, description)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, d.DatasetID, d.TenantID, d.DatabaseName, d.TableName, d.Location, d.Format, d.RowCount, d.SizeBytes, d.Description)
	if err != nil {
		return nil, mapDBError(err)
	}

	return r.Get(ctx, d.TenantID, d.DatabaseName, d.TableName)
}

// List returns all of the tenant's datasets.
func (r *DatasetRepo) List(ctx context.Context, tenantID string) ([]domain.Dataset, error) {
	rows, err := r.read.QueryContext(ctx, `
		SELECT `+datasetColumns+`
		FROM datasets WHERE tenant_id = ?
		ORDER BY database_name, table_name
	`, tenantID)
	if err != nil {
		return nil, mapDBError(err)
	}
	defer rows.Close() //nolint:errcheck

	return collectDatasets(rows)
}

// ListByDatabase returns the tenant's datasets within one database.
func (r *DatasetRepo) ListByDatabase(ctx context.Context, tenantID, database string) ([]domain.Dataset, error) {
	rows, err := r.read.QueryContext(ctx, `
		SELECT `+datasetColumns+`
		FROM datasets WHERE tenant_id = ? AND database_name = ?
		ORDER BY table_name
	`, tenantID, database)
	if err != nil {
		return nil, mapDBError(err)
	}
	defer rows.Close() //nolint:errcheck

	return collectDatasets(rows)
}

// Get returns one dataset by database and table name.
func (r *DatasetRepo) Get(ctx context.Context, tenantID, database, table string) (*domain.Dataset, error) {
	row := r.read.QueryRowContext(ctx, `
		SELECT `+datasetColumns+`
		FROM datasets WHERE tenant_id = ? AND database_name = ? AND table_name = ?
	`, tenantID, database, table)

	d, err := scanDataset(row)
	if err != nil {
		if _, ok := err.(*domain.NotFoundError); ok {
			return nil, domain.ErrNotFound("dataset %s.%s not found", database, table)
		}
		return nil, err
	}
	return d, nil
}

// Delete removes a dataset record.
func (r *DatasetRepo) Delete(ctx context.Context, tenantID, database, table string) error {
	res, err := r.write.ExecContext(ctx, `
		DELETE FROM datasets WHERE tenant_id = ? AND database_name = ? AND table_name = ?
	`, tenantID, database, table)
	if err != nil {
		return mapDBError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound("dataset %s.%s not found", database, table)
	}
	return nil
}

func scanDataset(row rowScanner) (*domain.Dataset, error) {
	var (
		d              domain.Dataset
		lastAccessedAt sql.NullTime
	)

	err := row.Scan(
		&d.DatasetID,
		&d.TenantID,
		&d.DatabaseName,
		&d.TableName,
		&d.Location,
		&d.Format,
		&d.RowCount,
		&d.SizeBytes,
		&d.Description,
		&d.CreatedAt,
		&d.UpdatedAt,
		&lastAccessedAt,
	)
	if err != nil {
		return nil, mapDBError(err)
	}

	d.LastAccessedAt = nullableTime(lastAccessedAt)
	return &d, nil
}

func collectDatasets(rows *sql.Rows) ([]domain.Dataset, error) {
	var out []domain.Dataset
	for rows.Next() {
		d, err := scanDataset(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, mapDBError(err)
	}
	return out, nil
}
