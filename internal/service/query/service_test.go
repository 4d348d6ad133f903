package query

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kadali/internal/db"
	"kadali/internal/db/repository"
	"kadali/internal/domain"
)

// fakeEngine gives tests full control over execution timing and outcome.
type fakeEngine struct {
	mu       sync.Mutex
	result   *domain.QueryResultData
	err      error
	gate     chan struct{} // when non-nil, Execute waits for it to close
	honorCtx bool
}

func (f *fakeEngine) Execute(ctx context.Context, _, _ string, _ int) (*domain.QueryResultData, error) {
	f.mu.Lock()
	gate := f.gate
	result := f.result
	err := f.err
	honorCtx := f.honorCtx
	f.mu.Unlock()

	if gate != nil {
		if honorCtx {
			select {
			case <-gate:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		} else {
			select {
			case <-gate:
			case <-time.After(5 * time.Second):
				return nil, errors.New("test gate never opened")
			}
		}
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

func rowsOf(n int) []map[string]interface{} {
	rows := make([]map[string]interface{}, 0, n)
	for i := 1; i <= n; i++ {
		rows = append(rows, map[string]interface{}{"id": float64(i), "name": fmt.Sprintf("row-%d", i)})
	}
	return rows
}

func newTestService(t *testing.T) (*Service, *fakeEngine) {
	t.Helper()
	writeDB, readDB := db.OpenTestSQLite(t)
	eng := &fakeEngine{result: &domain.QueryResultData{Columns: []string{"id", "name"}, Rows: rowsOf(1)}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(repository.NewQueryRepo(writeDB, readDB), eng, 0, logger), eng
}

func waitForTerminal(t *testing.T, svc *Service, tenantID, queryID string) *domain.Query {
	t.Helper()
	var got *domain.Query
	require.Eventually(t, func() bool {
		q, err := svc.Get(context.Background(), tenantID, queryID)
		if err != nil {
			return false
		}
		got = q
		return q.Status.Terminal()
	}, 5*time.Second, 10*time.Millisecond)
	return got
}

func TestService_SubmitAndComplete(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	submitted, err := svc.Submit(ctx, "acme", "SELECT 1", 10)
	require.NoError(t, err)
	assert.Equal(t, domain.QueryStatusPending, submitted.Status)
	assert.Nil(t, submitted.EndTime)

	done := waitForTerminal(t, svc, "acme", submitted.QueryID)
	assert.Equal(t, domain.QueryStatusCompleted, done.Status)
	assert.Equal(t, []string{"id", "name"}, done.Columns)
	assert.Equal(t, 1, done.RowCount)
	require.NotNil(t, done.EndTime)
	assert.Nil(t, done.ErrorMessage)
}

func TestService_SubmitValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	var ve *domain.ValidationError

	_, err := svc.Submit(ctx, "acme", "   ", 10)
	assert.ErrorAs(t, err, &ve)

	_, err = svc.Submit(ctx, "acme", "SELECT 1", -5)
	assert.ErrorAs(t, err, &ve)
}

func TestService_DefaultLimit(t *testing.T) {
	svc, _ := newTestService(t)

	submitted, err := svc.Submit(context.Background(), "acme", "SELECT 1", 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultRowLimit, submitted.Limit)
}

func TestService_ResultTruncation(t *testing.T) {
	svc, eng := newTestService(t)
	eng.result = &domain.QueryResultData{Columns: []string{"id", "name"}, Rows: rowsOf(20)}

	submitted, err := svc.Submit(context.Background(), "acme", "SELECT * FROM big", 5)
	require.NoError(t, err)

	done := waitForTerminal(t, svc, "acme", submitted.QueryID)
	assert.Equal(t, domain.QueryStatusCompleted, done.Status)
	assert.Equal(t, 5, done.RowCount)
	require.Len(t, done.Rows, 5)
	assert.Equal(t, float64(1), done.Rows[0]["id"])
	assert.Equal(t, float64(5), done.Rows[4]["id"])
}

func TestService_ExecutionFailure(t *testing.T) {
	svc, eng := newTestService(t)
	eng.err = errors.New("table missing_table does not exist")

	submitted, err := svc.Submit(context.Background(), "acme", "SELECT * FROM missing_table", 10)
	require.NoError(t, err)

	done := waitForTerminal(t, svc, "acme", submitted.QueryID)
	assert.Equal(t, domain.QueryStatusFailed, done.Status)
	require.NotNil(t, done.ErrorMessage)
	assert.Equal(t, "table missing_table does not exist", *done.ErrorMessage)
	require.NotNil(t, done.EndTime)
}

func TestService_CancelBeforeCompletion(t *testing.T) {
	svc, eng := newTestService(t)
	ctx := context.Background()

	gate := make(chan struct{})
	eng.gate = gate
	eng.result = &domain.QueryResultData{Columns: []string{"id"}, Rows: rowsOf(3)}

	submitted, err := svc.Submit(ctx, "acme", "SELECT pg_sleep(60)", 10)
	require.NoError(t, err)

	// wait until execution is actually in flight
	require.Eventually(t, func() bool {
		q, err := svc.Get(ctx, "acme", submitted.QueryID)
		return err == nil && q.Status == domain.QueryStatusRunning
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, svc.Cancel(ctx, "acme", submitted.QueryID))

	got, err := svc.Get(ctx, "acme", submitted.QueryID)
	require.NoError(t, err)
	assert.Equal(t, domain.QueryStatusCancelled, got.Status)
	assert.Nil(t, got.ErrorMessage)

	// engine finishes late with a full result; the completion must be discarded
	close(gate)
	time.Sleep(50 * time.Millisecond)

	got, err = svc.Get(ctx, "acme", submitted.QueryID)
	require.NoError(t, err)
	assert.Equal(t, domain.QueryStatusCancelled, got.Status)
	assert.Nil(t, got.Rows)
	assert.Zero(t, got.RowCount)
	assert.Nil(t, got.ErrorMessage)
}

func TestService_CancelAbortsEngine(t *testing.T) {
	svc, eng := newTestService(t)
	ctx := context.Background()

	eng.gate = make(chan struct{})
	eng.honorCtx = true

	submitted, err := svc.Submit(ctx, "acme", "SELECT pg_sleep(60)", 10)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		q, err := svc.Get(ctx, "acme", submitted.QueryID)
		return err == nil && q.Status == domain.QueryStatusRunning
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, svc.Cancel(ctx, "acme", submitted.QueryID))

	// the engine observes the context cancellation and unwinds
	done := waitForTerminal(t, svc, "acme", submitted.QueryID)
	assert.Equal(t, domain.QueryStatusCancelled, done.Status)
}

func TestService_CancelTerminalIsNoOp(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	submitted, err := svc.Submit(ctx, "acme", "SELECT 1", 10)
	require.NoError(t, err)
	waitForTerminal(t, svc, "acme", submitted.QueryID)

	require.NoError(t, svc.Cancel(ctx, "acme", submitted.QueryID))

	got, err := svc.Get(ctx, "acme", submitted.QueryID)
	require.NoError(t, err)
	assert.Equal(t, domain.QueryStatusCompleted, got.Status)
	assert.Equal(t, 1, got.RowCount)
}

func TestService_TenantIsolation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	submitted, err := svc.Submit(ctx, "acme", "SELECT 1", 10)
	require.NoError(t, err)

	var nfe *domain.NotFoundError

	_, err = svc.Get(ctx, "globex", submitted.QueryID)
	assert.ErrorAs(t, err, &nfe)

	err = svc.Cancel(ctx, "globex", submitted.QueryID)
	assert.ErrorAs(t, err, &nfe)
}
