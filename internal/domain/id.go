package domain

import (
	"strings"

	"github.com/google/uuid"
)

// shortID returns the dashboard-facing id format: a type prefix followed by
// the first eight hex characters of a random UUID, e.g. "cluster-1a2b3c4d".
func shortID(prefix string) string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return prefix + "-" + raw[:8]
}

// NewClusterID generates a public cluster identifier.
func NewClusterID() string { return shortID("cluster") }

// NewQueryID generates a public query identifier.
func NewQueryID() string { return shortID("query") }

// NewDatasetID generates a public dataset identifier.
func NewDatasetID() string { return shortID("ds") }
