package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kadali/internal/db"
	"kadali/internal/domain"
)

func newTestCluster(tenantID, name string) *domain.Cluster {
	return &domain.Cluster{
		TenantID:       tenantID,
		Name:           name,
		Type:           domain.ClusterTypeInteractive,
		DriverMemory:   "2g",
		DriverCores:    2,
		ExecutorMemory: "4g",
		ExecutorCores:  2,
		ExecutorCount:  3,
	}
}

func TestClusterRepo_CreateAndGet(t *testing.T) {
	writeDB, readDB := db.OpenTestSQLite(t)
	repo := NewClusterRepo(writeDB, readDB)
	ctx := context.Background()

	created, err := repo.Create(ctx, newTestCluster("acme", "etl-cluster"))
	require.NoError(t, err)
	require.NotEmpty(t, created.ClusterID)
	assert.Contains(t, created.ClusterID, "cluster-")
	assert.Equal(t, domain.ClusterStatusCreating, created.Status)
	assert.Nil(t, created.StartedAt)
	assert.Nil(t, created.UIURL)

	got, err := repo.Get(ctx, "acme", created.ClusterID)
	require.NoError(t, err)
	assert.Equal(t, created.ClusterID, got.ClusterID)
	assert.Equal(t, "etl-cluster", got.Name)
	assert.Equal(t, domain.ClusterTypeInteractive, got.Type)
}

func TestClusterRepo_GetTenantScoping(t *testing.T) {
	writeDB, readDB := db.OpenTestSQLite(t)
	repo := NewClusterRepo(writeDB, readDB)
	ctx := context.Background()

	created, err := repo.Create(ctx, newTestCluster("acme", "etl-cluster"))
	require.NoError(t, err)

	_, err = repo.Get(ctx, "other-tenant", created.ClusterID)
	require.Error(t, err)
	var nfe *domain.NotFoundError
	assert.ErrorAs(t, err, &nfe)
}

func TestClusterRepo_ListOrder(t *testing.T) {
	writeDB, readDB := db.OpenTestSQLite(t)
	repo := NewClusterRepo(writeDB, readDB)
	ctx := context.Background()

	// created_at is bound from Go with nanosecond precision, so rapid
	// same-second creates still list newest first
	var ids []string
	for i := 0; i < 5; i++ {
		c, err := repo.Create(ctx, newTestCluster("acme", fmt.Sprintf("c%d", i)))
		require.NoError(t, err)
		ids = append(ids, c.ClusterID)
	}
	_, err := repo.Create(ctx, newTestCluster("other", "elsewhere"))
	require.NoError(t, err)

	clusters, err := repo.List(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, clusters, 5)
	for i, c := range clusters {
		assert.Equal(t, ids[len(ids)-1-i], c.ClusterID, "position %d", i)
	}
}

func TestClusterRepo_Transitions(t *testing.T) {
	writeDB, readDB := db.OpenTestSQLite(t)
	repo := NewClusterRepo(writeDB, readDB)
	ctx := context.Background()

	t.Run("creating to running stamps started_at and ui_url", func(t *testing.T) {
		c, err := repo.Create(ctx, newTestCluster("acme", "run-me"))
		require.NoError(t, err)

		won, err := repo.MarkRunning(ctx, c.ClusterID, "http://spark-ui/"+c.ClusterID)
		require.NoError(t, err)
		assert.True(t, won)

		got, err := repo.Get(ctx, "acme", c.ClusterID)
		require.NoError(t, err)
		assert.Equal(t, domain.ClusterStatusRunning, got.Status)
		require.NotNil(t, got.StartedAt)
		require.NotNil(t, got.UIURL)
		assert.Equal(t, "http://spark-ui/"+c.ClusterID, *got.UIURL)
	})

	t.Run("second mark running loses", func(t *testing.T) {
		c, err := repo.Create(ctx, newTestCluster("acme", "once"))
		require.NoError(t, err)

		won, err := repo.MarkRunning(ctx, c.ClusterID, "http://a")
		require.NoError(t, err)
		assert.True(t, won)

		won, err = repo.MarkRunning(ctx, c.ClusterID, "http://b")
		require.NoError(t, err)
		assert.False(t, won)

		got, err := repo.Get(ctx, "acme", c.ClusterID)
		require.NoError(t, err)
		assert.Equal(t, "http://a", *got.UIURL)
	})

	t.Run("creating to error records message", func(t *testing.T) {
		c, err := repo.Create(ctx, newTestCluster("acme", "doomed"))
		require.NoError(t, err)

		won, err := repo.MarkError(ctx, c.ClusterID, "no capacity")
		require.NoError(t, err)
		assert.True(t, won)

		got, err := repo.Get(ctx, "acme", c.ClusterID)
		require.NoError(t, err)
		assert.Equal(t, domain.ClusterStatusError, got.Status)
		require.NotNil(t, got.ErrorMessage)
		assert.Equal(t, "no capacity", *got.ErrorMessage)
	})

	t.Run("terminate reports the pre-transition status", func(t *testing.T) {
		creating, err := repo.Create(ctx, newTestCluster("acme", "t1"))
		require.NoError(t, err)
		prev, won, err := repo.MarkTerminated(ctx, creating.ClusterID)
		require.NoError(t, err)
		assert.True(t, won)
		assert.Equal(t, domain.ClusterStatusCreating, prev)

		running, err := repo.Create(ctx, newTestCluster("acme", "t2"))
		require.NoError(t, err)
		_, err = repo.MarkRunning(ctx, running.ClusterID, "http://u")
		require.NoError(t, err)
		prev, won, err = repo.MarkTerminated(ctx, running.ClusterID)
		require.NoError(t, err)
		assert.True(t, won)
		assert.Equal(t, domain.ClusterStatusRunning, prev)
	})

	t.Run("terminate is idempotent at the storage layer", func(t *testing.T) {
		c, err := repo.Create(ctx, newTestCluster("acme", "t3"))
		require.NoError(t, err)
		_, won, err := repo.MarkTerminated(ctx, c.ClusterID)
		require.NoError(t, err)
		assert.True(t, won)

		prev, won, err := repo.MarkTerminated(ctx, c.ClusterID)
		require.NoError(t, err)
		assert.False(t, won)
		assert.Equal(t, domain.ClusterStatusTerminated, prev)

		got, err := repo.Get(ctx, "acme", c.ClusterID)
		require.NoError(t, err)
		assert.Equal(t, domain.ClusterStatusTerminated, got.Status)
	})

	t.Run("error clusters cannot be terminated directly", func(t *testing.T) {
		c, err := repo.Create(ctx, newTestCluster("acme", "t4"))
		require.NoError(t, err)
		_, err = repo.MarkError(ctx, c.ClusterID, "boom")
		require.NoError(t, err)

		prev, won, err := repo.MarkTerminated(ctx, c.ClusterID)
		require.NoError(t, err)
		assert.False(t, won)
		assert.Equal(t, domain.ClusterStatusError, prev)
	})

	t.Run("reset moves error to terminated", func(t *testing.T) {
		c, err := repo.Create(ctx, newTestCluster("acme", "t5"))
		require.NoError(t, err)
		_, err = repo.MarkError(ctx, c.ClusterID, "boom")
		require.NoError(t, err)

		won, err := repo.ResetError(ctx, c.ClusterID)
		require.NoError(t, err)
		assert.True(t, won)

		got, err := repo.Get(ctx, "acme", c.ClusterID)
		require.NoError(t, err)
		assert.Equal(t, domain.ClusterStatusTerminated, got.Status)
	})

	t.Run("reset does nothing for non-error states", func(t *testing.T) {
		c, err := repo.Create(ctx, newTestCluster("acme", "t6"))
		require.NoError(t, err)

		won, err := repo.ResetError(ctx, c.ClusterID)
		require.NoError(t, err)
		assert.False(t, won)
	})
}

func TestClusterRepo_TouchActivity(t *testing.T) {
	writeDB, readDB := db.OpenTestSQLite(t)
	repo := NewClusterRepo(writeDB, readDB)
	ctx := context.Background()

	c, err := repo.Create(ctx, newTestCluster("acme", "busy"))
	require.NoError(t, err)
	_, err = repo.MarkRunning(ctx, c.ClusterID, "http://u")
	require.NoError(t, err)

	at := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, repo.TouchActivity(ctx, c.ClusterID, at))

	got, err := repo.Get(ctx, "acme", c.ClusterID)
	require.NoError(t, err)
	require.NotNil(t, got.LastActivityAt)
	assert.WithinDuration(t, at, *got.LastActivityAt, time.Second)

	t.Run("terminal clusters keep their last activity", func(t *testing.T) {
		_, _, err := repo.MarkTerminated(ctx, c.ClusterID)
		require.NoError(t, err)

		require.NoError(t, repo.TouchActivity(ctx, c.ClusterID, at.Add(time.Hour)))

		got, err := repo.Get(ctx, "acme", c.ClusterID)
		require.NoError(t, err)
		require.NotNil(t, got.LastActivityAt)
		assert.WithinDuration(t, at, *got.LastActivityAt, time.Second)
	})
}

func TestClusterRepo_ListRunning(t *testing.T) {
	writeDB, readDB := db.OpenTestSQLite(t)
	repo := NewClusterRepo(writeDB, readDB)
	ctx := context.Background()

	running, err := repo.Create(ctx, newTestCluster("acme", "up"))
	require.NoError(t, err)
	_, err = repo.MarkRunning(ctx, running.ClusterID, "http://u")
	require.NoError(t, err)

	otherTenant, err := repo.Create(ctx, newTestCluster("globex", "also-up"))
	require.NoError(t, err)
	_, err = repo.MarkRunning(ctx, otherTenant.ClusterID, "http://v")
	require.NoError(t, err)

	_, err = repo.Create(ctx, newTestCluster("acme", "still-creating"))
	require.NoError(t, err)

	got, err := repo.ListRunning(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)

	ids := []string{got[0].ClusterID, got[1].ClusterID}
	assert.Contains(t, ids, running.ClusterID)
	assert.Contains(t, ids, otherTenant.ClusterID)
}
