package domain

import (
	"regexp"
	"time"
)

// ClusterStatus represents the lifecycle state of a compute cluster.
type ClusterStatus string

// Cluster lifecycle statuses. TERMINATED and ERROR are terminal and are
// never exited except through the explicit error-reset path.
const (
	ClusterStatusCreating   ClusterStatus = "CREATING"
	ClusterStatusRunning    ClusterStatus = "RUNNING"
	ClusterStatusTerminated ClusterStatus = "TERMINATED"
	ClusterStatusError      ClusterStatus = "ERROR"
)

// Terminal reports whether the status is one no further transition leaves.
func (s ClusterStatus) Terminal() bool {
	return s == ClusterStatusTerminated || s == ClusterStatusError
}

// ClusterType classifies the workload a cluster is sized for.
type ClusterType string

// Cluster workload types.
const (
	ClusterTypeInteractive ClusterType = "INTERACTIVE"
	ClusterTypeJob         ClusterType = "JOB"
	ClusterTypeML          ClusterType = "ML"
)

// Cluster represents a provisioned compute resource group. A cluster belongs
// to exactly one tenant for its entire lifetime.
type Cluster struct {
	ClusterID            string
	TenantID             string
	Name                 string
	Type                 ClusterType
	Status               ClusterStatus
	DriverMemory         string
	DriverCores          int
	ExecutorMemory       string
	ExecutorCores        int
	ExecutorCount        int
	AutoTerminateMinutes int // 0 disables the per-cluster idle override
	UIURL                *string
	ErrorMessage         *string
	CreatedAt            time.Time
	StartedAt            *time.Time
	LastActivityAt       *time.Time
	UpdatedAt            time.Time
}

// IdleSince returns the instant the cluster was last considered active:
// the later of StartedAt and LastActivityAt. The zero time is returned for
// clusters that never started.
func (c *Cluster) IdleSince() time.Time {
	var t time.Time
	if c.StartedAt != nil {
		t = *c.StartedAt
	}
	if c.LastActivityAt != nil && c.LastActivityAt.After(t) {
		t = *c.LastActivityAt
	}
	return t
}

// CreateClusterRequest holds parameters for creating a cluster.
type CreateClusterRequest struct {
	Name                 string
	Type                 ClusterType
	DriverMemory         string
	DriverCores          int
	ExecutorMemory       string
	ExecutorCores        int
	ExecutorCount        int
	AutoTerminateMinutes int
}

// memoryPattern matches sizing strings like "2g" or "512m".
var memoryPattern = regexp.MustCompile(`^[0-9]+[gm]$`)

// ValidateCreateClusterRequest validates the create request.
func ValidateCreateClusterRequest(r CreateClusterRequest) error {
	if r.Name == "" {
		return ErrValidation("name is required")
	}
	switch r.Type {
	case ClusterTypeInteractive, ClusterTypeJob, ClusterTypeML:
		// valid
	case "":
		return ErrValidation("type is required (INTERACTIVE, JOB, or ML)")
	default:
		return ErrValidation("type must be INTERACTIVE, JOB, or ML, got %q", r.Type)
	}
	if !memoryPattern.MatchString(r.DriverMemory) {
		return ErrValidation("driverMemory must match <integer>[g|m], got %q", r.DriverMemory)
	}
	if !memoryPattern.MatchString(r.ExecutorMemory) {
		return ErrValidation("executorMemory must match <integer>[g|m], got %q", r.ExecutorMemory)
	}
	if r.DriverCores < 1 {
		return ErrValidation("driverCores must be >= 1, got %d", r.DriverCores)
	}
	if r.ExecutorCores < 1 {
		return ErrValidation("executorCores must be >= 1, got %d", r.ExecutorCores)
	}
	if r.ExecutorCount < 0 {
		return ErrValidation("executorCount must be >= 0, got %d", r.ExecutorCount)
	}
	if r.AutoTerminateMinutes < 0 {
		return ErrValidation("autoTerminateMinutes must be >= 0, got %d", r.AutoTerminateMinutes)
	}
	return nil
}
