// ABOUTME: Handler for the validate_document queue: loads a stored dataset,
// ABOUTME: runs full validation against the defaults for its version, persists the outcome.
package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/openaid-dev/aidcheck/internal/dataset"
	"github.com/openaid-dev/aidcheck/internal/defaults"
	"github.com/openaid-dev/aidcheck/internal/report"
	"github.com/openaid-dev/aidcheck/internal/schema"
	"github.com/openaid-dev/aidcheck/internal/store"
	"github.com/openaid-dev/aidcheck/internal/validate"
	"github.com/openaid-dev/aidcheck/internal/version"
)

// QueueValidateDocument is the queue name for asynchronous validation jobs.
const QueueValidateDocument = "validate_document"

// ValidatePayload is the job payload for QueueValidateDocument.
type ValidatePayload struct {
	ReportID uuid.UUID `json:"report_id"`
}

// ValidateDocumentHandler returns the Handler for QueueValidateDocument.
// Documents that cannot be validated at all (unparseable XML, unknown
// standard version) mark the report failed without retrying; storage errors
// propagate and trigger the retry path.
func ValidateDocumentHandler(st *store.Store, def *defaults.Store) Handler {
	return func(ctx context.Context, payload json.RawMessage) error {
		var p ValidatePayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}

		r, err := st.GetReport(ctx, p.ReportID)
		if err != nil {
			return fmt.Errorf("load report: %w", err)
		}
		if err := st.StartReport(ctx, p.ReportID); err != nil {
			return err
		}

		doc, err := st.GetReportDocument(ctx, p.ReportID)
		if err != nil {
			return fmt.Errorf("load document: %w", err)
		}

		rep, failure := RunValidation(doc, r.StandardVersion, def)
		if failure != "" {
			return st.FailReport(ctx, p.ReportID, failure)
		}

		records, err := json.Marshal(rep.Records())
		if err != nil {
			return fmt.Errorf("encode records: %w", err)
		}
		errs, warns := rep.Counts()
		return st.CompleteReport(ctx, p.ReportID,
			!rep.ContainsErrors(), int32(errs), int32(warns), records)
	}
}

// RunValidation parses doc and validates it against the embedded defaults
// for ver, choosing the activity or organisation schema by root element.
// The second return value is a non-empty failure reason when no report
// could be produced at all.
func RunValidation(doc, ver string, def *defaults.Store) (*report.Report, string) {
	v, err := version.Parse(ver)
	if err != nil {
		return nil, fmt.Sprintf("unknown standard version %q", ver)
	}

	ds, err := dataset.New(doc)
	if err != nil {
		return nil, "document is not well-formed XML"
	}

	var sch *schema.Schema
	if ds.RootName() == schema.OrganisationRoot {
		sch, err = def.OrganisationSchema(v, true)
	} else {
		sch, err = def.ActivitySchema(v, true)
	}
	if err != nil {
		return nil, err.Error()
	}
	return validate.FullValidation(ds, sch), ""
}
