package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"kadali/internal/domain"
	"kadali/internal/middleware"
)

// queryResponse is the wire shape the dashboard consumes. Result rows ride in
// the "data" field as column-name-keyed objects.
type queryResponse struct {
	QueryID      string                   `json:"queryId"`
	SQL          string                   `json:"sql"`
	Status       string                   `json:"status"`
	Columns      []string                 `json:"columns,omitempty"`
	Data         []map[string]interface{} `json:"data,omitempty"`
	RowCount     int                      `json:"rowCount"`
	ErrorMessage *string                  `json:"errorMessage,omitempty"`
	StartTime    time.Time                `json:"startTime"`
	EndTime      *time.Time               `json:"endTime,omitempty"`
}

type submitQueryRequest struct {
	SQL   string `json:"sql"`
	Limit int    `json:"limit"`
}

type datasetResponse struct {
	DatasetID    string    `json:"datasetId"`
	DatabaseName string    `json:"databaseName"`
	TableName    string    `json:"tableName"`
	Location     string    `json:"location"`
	Format       string    `json:"format"`
	RowCount     int64     `json:"rowCount"`
	SizeBytes    int64     `json:"sizeBytes"`
	Description  string    `json:"description,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

type registerDatasetRequest struct {
	DatabaseName string `json:"databaseName"`
	TableName    string `json:"tableName"`
	Location     string `json:"location"`
	Format       string `json:"format"`
	Description  string `json:"description"`
}

func queryToAPI(q *domain.Query) queryResponse {
	return queryResponse{
		QueryID:      q.QueryID,
		SQL:          q.SQL,
		Status:       string(q.Status),
		Columns:      q.Columns,
		Data:         q.Rows,
		RowCount:     q.RowCount,
		ErrorMessage: q.ErrorMessage,
		StartTime:    q.StartTime,
		EndTime:      q.EndTime,
	}
}

func datasetToAPI(d *domain.Dataset) datasetResponse {
	return datasetResponse{
		DatasetID:    d.DatasetID,
		DatabaseName: d.DatabaseName,
		TableName:    d.TableName,
		Location:     d.Location,
		Format:       d.Format,
		RowCount:     d.RowCount,
		SizeBytes:    d.SizeBytes,
		Description:  d.Description,
		CreatedAt:    d.CreatedAt,
	}
}

// === Databases ===

func (h *Handler) listDatabases(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.TenantFromContext(r.Context())

	names, err := h.catalog.ListDatabases(r.Context(), tenantID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, names)
}

func (h *Handler) createDatabase(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.TenantFromContext(r.Context())
	name := r.URL.Query().Get("databaseName")

	if err := h.catalog.CreateDatabase(r.Context(), tenantID, name); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// === Datasets ===

func (h *Handler) listDatasets(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.TenantFromContext(r.Context())
	database := r.URL.Query().Get("database")

	datasets, err := h.catalog.ListDatasets(r.Context(), tenantID, database)
	if err != nil {
		h.writeError(w, err)
		return
	}

	out := make([]datasetResponse, len(datasets))
	for i := range datasets {
		out[i] = datasetToAPI(&datasets[i])
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) registerDataset(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.TenantFromContext(r.Context())

	var req registerDatasetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, domain.ErrValidation("invalid request body: %v", err))
		return
	}

	ds, err := h.catalog.RegisterDataset(r.Context(), tenantID, domain.RegisterDatasetRequest{
		DatabaseName: req.DatabaseName,
		TableName:    req.TableName,
		Location:     req.Location,
		Format:       req.Format,
		Description:  req.Description,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, datasetToAPI(ds))
}

func (h *Handler) getDataset(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.TenantFromContext(r.Context())

	ds, err := h.catalog.GetDataset(r.Context(), tenantID, chi.URLParam(r, "database"), chi.URLParam(r, "table"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, datasetToAPI(ds))
}

func (h *Handler) deleteDataset(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.TenantFromContext(r.Context())

	if err := h.catalog.DeleteDataset(r.Context(), tenantID, chi.URLParam(r, "database"), chi.URLParam(r, "table")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// === Queries ===

func (h *Handler) submitQuery(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.TenantFromContext(r.Context())

	var req submitQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, domain.ErrValidation("invalid request body: %v", err))
		return
	}

	q, err := h.queries.Submit(r.Context(), tenantID, req.SQL, req.Limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, queryToAPI(q))
}

func (h *Handler) getQuery(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.TenantFromContext(r.Context())

	q, err := h.queries.Get(r.Context(), tenantID, chi.URLParam(r, "queryId"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, queryToAPI(q))
}

func (h *Handler) cancelQuery(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.TenantFromContext(r.Context())

	if err := h.queries.Cancel(r.Context(), tenantID, chi.URLParam(r, "queryId")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
