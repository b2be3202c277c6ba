// ABOUTME: Router-level tests: security headers, healthz degradation, metrics
// ABOUTME: exposure, and validate request rejection paths that need no database.
package api_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSecurityHeaders(t *testing.T) {
	t.Parallel()
	h := newTestHandler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	want := map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Referrer-Policy":        "strict-origin-when-cross-origin",
	}
	for k, v := range want {
		if got := rec.Header().Get(k); got != v {
			t.Errorf("%s = %q, want %q", k, got, v)
		}
	}
}

func TestHealthz_NoDatabase(t *testing.T) {
	t.Parallel()
	h := newTestHandler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503 when no DB is attached", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "degraded") {
		t.Errorf("body = %q, want degraded status", rec.Body.String())
	}
}

func TestMetrics_CountsValidations(t *testing.T) {
	t.Parallel()
	h := newTestHandler()

	// A rejected validate request increments the counter, which makes the
	// metric family appear in the scrape output.
	req := httptest.NewRequest(http.MethodPost, "/api/v1/validate", strings.NewReader("not xml"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("validate status = %d, want 400", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "aidcheck_validations_total") {
		t.Errorf("metrics output missing aidcheck_validations_total")
	}
}

func TestValidate_RejectsBeforeStorage(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		target string
		body   string
		status int
	}{
		{
			name:   "empty body",
			target: "/api/v1/validate",
			body:   "",
			status: http.StatusBadRequest,
		},
		{
			name:   "not xml",
			target: "/api/v1/validate",
			body:   "this is not a document",
			status: http.StatusBadRequest,
		},
		{
			name:   "unrecognised version",
			target: "/api/v1/validate?version=banana",
			body:   "<iati-activities/>",
			status: http.StatusBadRequest,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			h := newTestHandler()

			req := httptest.NewRequest(http.MethodPost, tc.target, strings.NewReader(tc.body))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tc.status {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tc.status, rec.Body.String())
			}
		})
	}
}
