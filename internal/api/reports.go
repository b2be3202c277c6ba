// ABOUTME: Handlers for GET /api/v1/reports and GET /api/v1/reports/{id}.
// ABOUTME: Listing uses keyset pagination driven by before_created/before_id.
package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/openaid-dev/aidcheck/internal/store"
)

// listReportsResponse is the JSON body for GET /api/v1/reports.
type listReportsResponse struct {
	Reports []store.ValidationReport `json:"reports"`
	// NextBeforeCreated/NextBeforeID are the cursor values for the next page;
	// absent when this page is the last.
	NextBeforeCreated *time.Time `json:"next_before_created,omitempty"`
	NextBeforeID      *uuid.UUID `json:"next_before_id,omitempty"`
}

func (srv *Server) listReportsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := store.ListReportsParams{
		Status:  q.Get("status"),
		Version: q.Get("version"),
	}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		params.Limit = int32(n)
	}

	if c := q.Get("before_created"); c != "" {
		ts, err := time.Parse(time.RFC3339Nano, c)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid before_created")
			return
		}
		id, err := uuid.Parse(q.Get("before_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "before_id is required with before_created")
			return
		}
		params.BeforeCreated = &ts
		params.BeforeID = &id
	}

	reports, err := srv.store.ListReports(r.Context(), params)
	if err != nil {
		slog.ErrorContext(r.Context(), "list reports", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	resp := listReportsResponse{Reports: reports}
	limit := params.Limit
	if limit == 0 {
		limit = 50
	}
	if int32(len(reports)) == limit {
		last := reports[len(reports)-1]
		resp.NextBeforeCreated = &last.CreatedAt
		resp.NextBeforeID = &last.ID
	}
	writeJSON(w, http.StatusOK, resp)
}

func (srv *Server) getReportHandler(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid report id")
		return
	}

	rep, err := srv.store.GetReport(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "report not found")
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "get report", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, rep)
}
