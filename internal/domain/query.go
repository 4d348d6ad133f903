package domain

import (
	"strings"
	"time"
)

// QueryStatus represents the lifecycle state of an asynchronous SQL query.
type QueryStatus string

// Query lifecycle statuses. COMPLETED, FAILED, and CANCELLED are terminal
// and mutually exclusive; whichever transition lands first wins.
const (
	QueryStatusPending   QueryStatus = "PENDING"
	QueryStatusRunning   QueryStatus = "RUNNING"
	QueryStatusCompleted QueryStatus = "COMPLETED"
	QueryStatusFailed    QueryStatus = "FAILED"
	QueryStatusCancelled QueryStatus = "CANCELLED"
)

// Terminal reports whether the status is terminal.
func (s QueryStatus) Terminal() bool {
	return s == QueryStatusCompleted || s == QueryStatusFailed || s == QueryStatusCancelled
}

// Query stores state for a single asynchronous SQL execution request.
type Query struct {
	QueryID      string
	TenantID     string
	SQL          string
	Limit        int
	Status       QueryStatus
	Columns      []string
	Rows         []map[string]interface{}
	RowCount     int
	ErrorMessage *string
	StartTime    time.Time
	EndTime      *time.Time
	UpdatedAt    time.Time
}

// QueryResultData is the payload an execution engine reports on completion.
type QueryResultData struct {
	Columns []string
	Rows    []map[string]interface{}
}

// ValidateSubmitQuery validates query submission input.
func ValidateSubmitQuery(sqlText string, limit int) error {
	if strings.TrimSpace(sqlText) == "" {
		return ErrValidation("sql is required")
	}
	if limit <= 0 {
		return ErrValidation("limit must be > 0, got %d", limit)
	}
	return nil
}
