package provisioner

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

var _ domain.Provisioner = (*Remote)(nil)

// Remote provisions clusters through an HTTP provisioning agent. The agent
// owns the actual compute backend; this client blocks until the agent reports
// the cluster ready.
type Remote struct {
	baseURL   string
	authToken string
	client    *http.Client
}

// NewRemote creates a Remote provisioner for the given agent base URL.
func NewRemote(baseURL, authToken string) *Remote {
	return &Remote{
		baseURL:   strings.TrimRight(baseURL, "/"),
		authToken: authToken,
		client: &http.Client{
			Timeout: 10 * time.Minute,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
			},
		},
	}
}

type provisionRequest struct {
	ClusterID      string `json:"clusterId"`
	Name           string `json:"name"`
	Type           string `json:"type"`
	DriverMemory   string `json:"driverMemory"`
	DriverCores    int    `json:"driverCores"`
	ExecutorMemory string `json:"executorMemory"`
	ExecutorCores  int    `json:"executorCores"`
	ExecutorCount  int    `json:"executorCount"`
}

type provisionResponse struct {
	UIURL string `json:"uiUrl"`
	Error string `json:"error,omitempty"`
}

// Provision asks the agent to allocate the cluster and waits for readiness.
func (p *Remote) Provision(ctx context.Context, c *domain.Cluster) (string, error) {
	body, err := json.Marshal(provisionRequest{
		ClusterID:      c.ClusterID,
		Name:           c.Name,
		Type:           string(c.Type),
		DriverMemory:   c.DriverMemory,
		DriverCores:    c.DriverCores,
		ExecutorMemory: c.ExecutorMemory,
		ExecutorCores:  c.ExecutorCores,
		ExecutorCount:  c.ExecutorCount,
	})
	if err != nil {
		return "", fmt.Errorf("marshal provision request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/clusters", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create provision request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-ID", c.TenantID)
	if p.authToken != "" {
		req.Header.Set("X-Agent-Token", p.authToken)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("provision request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("provisioning agent returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out provisionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode provision response: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("provisioning failed: %s", out.Error)
	}
	return out.UIURL, nil
}

// Release asks the agent to tear the cluster down.
func (p *Remote) Release(ctx context.Context, tenantID, clusterID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, p.baseURL+"/v1/clusters/"+clusterID, nil)
	if err != nil {
		return fmt.Errorf("create release request: %w", err)
	}
	req.Header.Set("X-Tenant-ID", tenantID)
	if p.authToken != "" {
		req.Header.Set("X-Agent-Token", p.authToken)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("release request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent, http.StatusNotFound:
		// already-gone clusters count as released
		return nil
	default:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("provisioning agent returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
}
