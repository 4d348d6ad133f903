package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

const defaultServer = "http://localhost:8080"

// apiClient sends tenant-scoped requests to the orchestration API.
type apiClient struct {
	baseURL  string
	tenantID string
	http     *http.Client
}

// newAPIClient builds an apiClient from flags or env vars.
func newAPIClient(cmd *cobra.Command) *apiClient {
	server, _ := cmd.Flags().GetString("server")
	tenant, _ := cmd.Flags().GetString("tenant")

	if server == "" {
		server = os.Getenv("KADALI_SERVER")
	}
	if tenant == "" {
		tenant = os.Getenv("KADALI_TENANT")
	}
	if server == "" {
		server = defaultServer
	}

	return &apiClient{
		baseURL:  strings.TrimRight(server, "/"),
		tenantID: tenant,
		http:     &http.Client{Timeout: 30 * time.Second},
	}
}

// do sends a request with an optional JSON body and decodes the response into
// out when provided.
func (c *apiClient) do(method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
		reader = &buf
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tenantID != "" {
		req.Header.Set("X-Tenant-ID", c.tenantID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		var errResp struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Message != "" {
			return fmt.Errorf("server error %d: %s", errResp.Code, errResp.Message)
		}
		return fmt.Errorf("server error %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	if out != nil && len(respBody) > 0 {
		return json.Unmarshal(respBody, out)
	}
	return nil
}

// printJSON pretty-prints v to stdout.
func printJSON(v interface{}) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}
