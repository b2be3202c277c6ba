// ABOUTME: Handler for POST /api/v1/validate: synchronous and asynchronous
// ABOUTME: dataset validation with report persistence.
package api

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/openaid-dev/aidcheck/internal/dataset"
	"github.com/openaid-dev/aidcheck/internal/store"
	"github.com/openaid-dev/aidcheck/internal/version"
	"github.com/openaid-dev/aidcheck/internal/worker"
)

// validateResponse is the JSON body for a synchronous validation run.
type validateResponse struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Report json.RawMessage `json:"report,omitempty"`
}

// validateHandler handles POST /api/v1/validate.
//
// The request body is the raw XML dataset. Query parameters:
//
//	version — standard version to validate against; defaults to the
//	          document's @version attribute, then the configured default
//	name    — optional display name stored with the report
//	async   — "true" enqueues a background job and returns 202
func (srv *Server) validateHandler(w http.ResponseWriter, r *http.Request) {
	outcome := "rejected"
	defer func() { validationsTotal.WithLabelValues(outcome).Inc() }()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "document exceeds the size limit")
			return
		}
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	if len(body) == 0 {
		writeError(w, http.StatusBadRequest, "request body is empty")
		return
	}

	doc := string(body)
	ds, err := dataset.New(doc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "document is not well-formed XML")
		return
	}

	ver := r.URL.Query().Get("version")
	if ver == "" {
		ver = ds.VersionAttr()
	}
	if ver == "" && srv.cfg != nil {
		ver = srv.cfg.DefaultStandardVersion
	}
	if _, err := version.Parse(ver); err != nil {
		writeError(w, http.StatusBadRequest, "unrecognised standard version")
		return
	}

	var name *string
	if n := r.URL.Query().Get("name"); n != "" {
		name = &n
	}

	sum := sha256.Sum256(body)
	params := store.CreateReportParams{
		Status:          store.ReportPending,
		DocumentName:    name,
		DocumentXML:     doc,
		DocumentSHA256:  hex.EncodeToString(sum[:]),
		DocumentBytes:   int32(len(body)),
		StandardVersion: ver,
	}

	if r.URL.Query().Get("async") == "true" {
		outcome = srv.validateAsync(w, r, params)
		return
	}

	rep, failure := worker.RunValidation(doc, ver, srv.defaults)
	if failure != "" {
		writeError(w, http.StatusUnprocessableEntity, failure)
		return
	}

	records, err := json.Marshal(rep.Records())
	if err != nil {
		slog.ErrorContext(r.Context(), "encode records", "error", err)
		outcome = "error"
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	params.Status = store.ReportComplete
	id, err := srv.store.CreateReport(r.Context(), params)
	if err != nil {
		slog.ErrorContext(r.Context(), "create report", "error", err)
		outcome = "error"
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	errs, warns := rep.Counts()
	if err := srv.store.CompleteReport(r.Context(), id,
		!rep.ContainsErrors(), int32(errs), int32(warns), records); err != nil {
		slog.ErrorContext(r.Context(), "complete report", "error", err)
		outcome = "error"
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	full, err := json.Marshal(rep)
	if err != nil {
		slog.ErrorContext(r.Context(), "encode report", "error", err)
		outcome = "error"
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if rep.ContainsErrors() {
		outcome = "invalid"
	} else {
		outcome = "valid"
	}
	writeJSON(w, http.StatusOK, validateResponse{
		ID:     id.String(),
		Status: store.ReportComplete,
		Report: full,
	})
}

// validateAsync persists a pending report and enqueues a validation job.
// It reports the metric outcome for the request.
func (srv *Server) validateAsync(w http.ResponseWriter, r *http.Request, params store.CreateReportParams) string {
	id, err := srv.store.CreateReport(r.Context(), params)
	if err != nil {
		slog.ErrorContext(r.Context(), "create report", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return "error"
	}

	payload, err := json.Marshal(worker.ValidatePayload{ReportID: id})
	if err != nil {
		slog.ErrorContext(r.Context(), "encode payload", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return "error"
	}
	if _, err := srv.store.EnqueueJob(r.Context(),
		worker.QueueValidateDocument, 0, payload, 3, nil); err != nil {
		slog.ErrorContext(r.Context(), "enqueue job", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return "error"
	}

	writeJSON(w, http.StatusAccepted, validateResponse{
		ID:     id.String(),
		Status: store.ReportPending,
	})
	return "accepted"
}
