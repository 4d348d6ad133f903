package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemoteEngine_Execute(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/execute", r.URL.Path)
		require.Equal(t, "acme", r.Header.Get("X-Tenant-ID"))
		require.Equal(t, "secret", r.Header.Get("X-Agent-Token"))

		var req executeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "SELECT id FROM t", req.SQL)
		assert.Equal(t, 50, req.Limit)

		_ = json.NewEncoder(w).Encode(executeResponse{
			Columns: []string{"id"},
			Rows:    []map[string]interface{}{{"id": float64(1)}, {"id": float64(2)}},
		})
	}))
	defer srv.Close()

	eng := NewRemoteEngine(srv.URL, "secret")
	result, err := eng.Execute(context.Background(), "acme", "SELECT id FROM t", 50)
	require.NoError(t, err)
	assert.Equal(t, []string{"id"}, result.Columns)
	require.Len(t, result.Rows, 2)
	assert.Equal(t, float64(2), result.Rows[1]["id"])
}

func TestRemoteEngine_ExecuteErrors(t *testing.T) {
	t.Run("agent error payload", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_ = json.NewEncoder(w).Encode(executeResponse{Error: "table t does not exist"})
		}))
		defer srv.Close()

		eng := NewRemoteEngine(srv.URL, "")
		_, err := eng.Execute(context.Background(), "acme", "SELECT * FROM t", 10)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "table t does not exist")
	})

	t.Run("non-200 status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "agent overloaded", http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		eng := NewRemoteEngine(srv.URL, "")
		_, err := eng.Execute(context.Background(), "acme", "SELECT 1", 10)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "status 503")
	})
}

func TestRemoteEngine_Ping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	eng := NewRemoteEngine(srv.URL, "")
	require.NoError(t, eng.Ping(context.Background()))

	bad := NewRemoteEngine(srv.URL+"/missing", "")
	assert.Error(t, bad.Ping(context.Background()))
}
