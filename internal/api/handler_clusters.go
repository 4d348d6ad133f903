package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"kadali/internal/domain"
	"kadali/internal/middleware"
)

// clusterResponse is the wire shape the dashboard consumes.
type clusterResponse struct {
	ClusterID            string     `json:"clusterId"`
	Name                 string     `json:"name"`
	Type                 string     `json:"type"`
	Status               string     `json:"status"`
	DriverMemory         string     `json:"driverMemory"`
	DriverCores          int        `json:"driverCores"`
	ExecutorMemory       string     `json:"executorMemory"`
	ExecutorCores        int        `json:"executorCores"`
	ExecutorCount        int        `json:"executorCount"`
	AutoTerminateMinutes int        `json:"autoTerminateMinutes,omitempty"`
	UIURL                *string    `json:"uiUrl,omitempty"`
	ErrorMessage         *string    `json:"errorMessage,omitempty"`
	CreatedAt            time.Time  `json:"createdAt"`
	StartedAt            *time.Time `json:"startedAt,omitempty"`
	LastActivityAt       *time.Time `json:"lastActivityAt,omitempty"`
}

type createClusterRequest struct {
	Name                 string `json:"name"`
	Type                 string `json:"type"`
	DriverMemory         string `json:"driverMemory"`
	DriverCores          int    `json:"driverCores"`
	ExecutorMemory       string `json:"executorMemory"`
	ExecutorCores        int    `json:"executorCores"`
	ExecutorCount        int    `json:"executorCount"`
	AutoTerminateMinutes int    `json:"autoTerminateMinutes"`
}

func clusterToAPI(c *domain.Cluster) clusterResponse {
	return clusterResponse{
		ClusterID:            c.ClusterID,
		Name:                 c.Name,
		Type:                 string(c.Type),
		Status:               string(c.Status),
		DriverMemory:         c.DriverMemory,
		DriverCores:          c.DriverCores,
		ExecutorMemory:       c.ExecutorMemory,
		ExecutorCores:        c.ExecutorCores,
		ExecutorCount:        c.ExecutorCount,
		AutoTerminateMinutes: c.AutoTerminateMinutes,
		UIURL:                c.UIURL,
		ErrorMessage:         c.ErrorMessage,
		CreatedAt:            c.CreatedAt,
		StartedAt:            c.StartedAt,
		LastActivityAt:       c.LastActivityAt,
	}
}

func (h *Handler) listClusters(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.TenantFromContext(r.Context())

	clusters, err := h.clusters.List(r.Context(), tenantID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	out := make([]clusterResponse, len(clusters))
	for i := range clusters {
		out[i] = clusterToAPI(&clusters[i])
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) createCluster(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.TenantFromContext(r.Context())

	var req createClusterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, domain.ErrValidation("invalid request body: %v", err))
		return
	}

	created, err := h.clusters.Create(r.Context(), tenantID, domain.CreateClusterRequest{
		Name:                 req.Name,
		Type:                 domain.ClusterType(req.Type),
		DriverMemory:         req.DriverMemory,
		DriverCores:          req.DriverCores,
		ExecutorMemory:       req.ExecutorMemory,
		ExecutorCores:        req.ExecutorCores,
		ExecutorCount:        req.ExecutorCount,
		AutoTerminateMinutes: req.AutoTerminateMinutes,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, clusterToAPI(created))
}

func (h *Handler) getCluster(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.TenantFromContext(r.Context())

	c, err := h.clusters.Get(r.Context(), tenantID, chi.URLParam(r, "clusterId"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, clusterToAPI(c))
}

func (h *Handler) terminateCluster(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.TenantFromContext(r.Context())

	if err := h.clusters.Terminate(r.Context(), tenantID, chi.URLParam(r, "clusterId")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) recordClusterActivity(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.TenantFromContext(r.Context())

	if err := h.clusters.RecordActivity(r.Context(), tenantID, chi.URLParam(r, "clusterId")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) resetCluster(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.TenantFromContext(r.Context())

	if err := h.clusters.Reset(r.Context(), tenantID, chi.URLParam(r, "clusterId")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
