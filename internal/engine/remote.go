package engine

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"kadali/internal/domain"
)

var _ domain.ExecutionEngine = (*RemoteEngine)(nil)

// RemoteEngine sends SQL to a remote execution agent over HTTP. The agent
// applies the row limit server-side; the response is used as-is.
type RemoteEngine struct {
	baseURL   string
	authToken string
	client    *http.Client
}

// NewRemoteEngine creates a RemoteEngine for the given agent base URL.
func NewRemoteEngine(baseURL, authToken string) *RemoteEngine {
	return &RemoteEngine{
		baseURL:   strings.TrimRight(baseURL, "/"),
		authToken: authToken,
		client: &http.Client{
			Timeout: 5 * time.Minute,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
			},
		},
	}
}

type executeRequest struct {
	SQL   string `json:"sql"`
	Limit int    `json:"limit"`
}

type executeResponse struct {
	Columns []string                 `json:"columns"`
	Rows    []map[string]interface{} `json:"rows"`
	Error   string                   `json:"error,omitempty"`
}

// Execute posts the query to the agent and decodes the result payload.
func (e *RemoteEngine) Execute(ctx context.Context, tenantID, sqlText string, limit int) (*domain.QueryResultData, error) {
	body, err := json.Marshal(executeRequest{SQL: sqlText, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("marshal execute request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/v1/execute", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create execute request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-ID", tenantID)
	if e.authToken != "" {
		req.Header.Set("X-Agent-Token", e.authToken)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("remote engine returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out executeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode execute response: %w", err)
	}
	if out.Error != "" {
		return nil, fmt.Errorf("remote execution failed: %s", out.Error)
	}

	return &domain.QueryResultData{Columns: out.Columns, Rows: out.Rows}, nil
}

// Ping performs a health check against the agent.
func (e *RemoteEngine) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("create health request: %w", err)
	}
	if e.authToken != "" {
		req.Header.Set("X-Agent-Token", e.authToken)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}
