package domain

import "time"

// Dataset is a catalog entry describing a lakehouse table.
type Dataset struct {
	DatasetID      string
	TenantID       string
	DatabaseName   string
	TableName      string
	Location       string
	Format         string
	RowCount       int64
	SizeBytes      int64
	Description    string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	LastAccessedAt *time.Time
}

// RegisterDatasetRequest holds parameters for registering a dataset.
type RegisterDatasetRequest struct {
	DatabaseName string
	TableName    string
	Location     string
	Format       string
	Description  string
}

// ValidateRegisterDatasetRequest validates the register request.
func ValidateRegisterDatasetRequest(r RegisterDatasetRequest) error {
	if r.DatabaseName == "" {
		return ErrValidation("databaseName is required")
	}
	if r.TableName == "" {
		return ErrValidation("tableName is required")
	}
	if r.Location == "" {
		return ErrValidation("location is required")
	}
	return nil
}
