// ABOUTME: Handlers for the ruleset endpoints: the embedded standard ruleset,
// ABOUTME: the ruleset meta-schema, and syntax checking of user-supplied rulesets.
package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/openaid-dev/aidcheck/internal/ruleset"
)

// standardRulesetHandler serves the embedded standard ruleset definition.
func (srv *Server) standardRulesetHandler(w http.ResponseWriter, r *http.Request) {
	raw, err := srv.defaults.StandardRulesetJSON()
	if err != nil {
		slog.ErrorContext(r.Context(), "standard ruleset", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(raw) //nolint:errcheck
}

// rulesetSchemaHandler serves the JSON meta-schema that ruleset definitions
// are validated against.
func (srv *Server) rulesetSchemaHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write(ruleset.MetaSchemaJSON()) //nolint:errcheck
}

// checkRulesetResponse is the JSON body for POST /api/v1/rulesets/check.
type checkRulesetResponse struct {
	Valid bool   `json:"valid"`
	Rules int    `json:"rules,omitempty"`
	Error string `json:"error,omitempty"`
}

// checkRulesetHandler parses the request body as a ruleset definition and
// reports whether it is well-formed, schema-valid, and fully constructable.
// Definition problems are a 200 with valid=false — they are the expected
// outcome of this endpoint, not a request error.
func (srv *Server) checkRulesetHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "ruleset exceeds the size limit")
			return
		}
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	if len(body) == 0 {
		writeError(w, http.StatusBadRequest, "request body is empty")
		return
	}

	rs, err := ruleset.New(string(body), ruleset.DefaultMeta())
	if err != nil {
		writeJSON(w, http.StatusOK, checkRulesetResponse{Valid: false, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, checkRulesetResponse{Valid: true, Rules: rs.Len()})
}
