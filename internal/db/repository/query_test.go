package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kadali/internal/db"
	"kadali/internal/domain"
)

func TestQueryRepo_CreateAndGet(t *testing.T) {
	writeDB, readDB := db.OpenTestSQLite(t)
	repo := NewQueryRepo(writeDB, readDB)
	ctx := context.Background()

	created, err := repo.Create(ctx, &domain.Query{
		TenantID: "acme",
		SQL:      "SELECT 1",
		Limit:    100,
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.QueryID)
	assert.Contains(t, created.QueryID, "query-")
	assert.Equal(t, domain.QueryStatusPending, created.Status)
	assert.Zero(t, created.RowCount)
	assert.Nil(t, created.EndTime)

	got, err := repo.Get(ctx, "acme", created.QueryID)
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", got.SQL)
	assert.Equal(t, 100, got.Limit)

	_, err = repo.Get(ctx, "globex", created.QueryID)
	var nfe *domain.NotFoundError
	assert.ErrorAs(t, err, &nfe)
}

func TestQueryRepo_TerminalTransitions(t *testing.T) {
	writeDB, readDB := db.OpenTestSQLite(t)
	repo := NewQueryRepo(writeDB, readDB)
	ctx := context.Background()

	submit := func(t *testing.T) *domain.Query {
		t.Helper()
		q, err := repo.Create(ctx, &domain.Query{TenantID: "acme", SQL: "SELECT 1", Limit: 10})
		require.NoError(t, err)
		return q
	}

	t.Run("completed stores columns and rows", func(t *testing.T) {
		q := submit(t)
		won, err := repo.MarkRunning(ctx, q.QueryID)
		require.NoError(t, err)
		assert.True(t, won)

		rows := []map[string]interface{}{
			{"id": float64(1), "name": "a"},
			{"id": float64(2), "name": "b"},
		}
		won, err = repo.MarkCompleted(ctx, q.QueryID, []string{"id", "name"}, rows)
		require.NoError(t, err)
		assert.True(t, won)

		got, err := repo.Get(ctx, "acme", q.QueryID)
		require.NoError(t, err)
		assert.Equal(t, domain.QueryStatusCompleted, got.Status)
		assert.Equal(t, []string{"id", "name"}, got.Columns)
		assert.Equal(t, rows, got.Rows)
		assert.Equal(t, 2, got.RowCount)
		require.NotNil(t, got.EndTime)
		assert.Nil(t, got.ErrorMessage)
	})

	t.Run("failed records message", func(t *testing.T) {
		q := submit(t)
		won, err := repo.MarkFailed(ctx, q.QueryID, "syntax error near FROM")
		require.NoError(t, err)
		assert.True(t, won)

		got, err := repo.Get(ctx, "acme", q.QueryID)
		require.NoError(t, err)
		assert.Equal(t, domain.QueryStatusFailed, got.Status)
		require.NotNil(t, got.ErrorMessage)
		assert.Equal(t, "syntax error near FROM", *got.ErrorMessage)
	})

	t.Run("cancel wins over a later completion", func(t *testing.T) {
		q := submit(t)
		won, err := repo.MarkCancelled(ctx, q.QueryID)
		require.NoError(t, err)
		assert.True(t, won)

		won, err = repo.MarkCompleted(ctx, q.QueryID, []string{"id"}, []map[string]interface{}{{"id": float64(1)}})
		require.NoError(t, err)
		assert.False(t, won)

		got, err := repo.Get(ctx, "acme", q.QueryID)
		require.NoError(t, err)
		assert.Equal(t, domain.QueryStatusCancelled, got.Status)
		assert.Nil(t, got.Rows)
		require.NotNil(t, got.EndTime)
		// only FAILED carries an error message
		assert.Nil(t, got.ErrorMessage)
	})

	t.Run("completion wins over a later cancel", func(t *testing.T) {
		q := submit(t)
		won, err := repo.MarkCompleted(ctx, q.QueryID, []string{"id"}, []map[string]interface{}{{"id": float64(7)}})
		require.NoError(t, err)
		assert.True(t, won)

		won, err = repo.MarkCancelled(ctx, q.QueryID)
		require.NoError(t, err)
		assert.False(t, won)

		got, err := repo.Get(ctx, "acme", q.QueryID)
		require.NoError(t, err)
		assert.Equal(t, domain.QueryStatusCompleted, got.Status)
		assert.Equal(t, 1, got.RowCount)
	})

	t.Run("mark running only fires from pending", func(t *testing.T) {
		q := submit(t)
		won, err := repo.MarkRunning(ctx, q.QueryID)
		require.NoError(t, err)
		assert.True(t, won)

		won, err = repo.MarkRunning(ctx, q.QueryID)
		require.NoError(t, err)
		assert.False(t, won)
	})
}
