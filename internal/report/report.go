// ABOUTME: Validation report collector: ordered error/warning records keyed by stable names.
// ABOUTME: Records carry human-readable info plus enough context to pinpoint the offending entry.
package report

import "encoding/json"

// Severity distinguishes records that make a document invalid from advisory
// ones.
type Severity string

// Record severities.
const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Record is a single validation finding. Name is a stable identifier such as
// "err-rule-sum-conformance-fail"; Info is the human-readable description.
type Record struct {
	Name      string   `json:"name"`
	Severity  Severity `json:"severity"`
	Info      string   `json:"info"`
	RuleType  string   `json:"rule_type,omitempty"`
	XPathBase string   `json:"xpath_base,omitempty"`
	Path      string   `json:"path,omitempty"`
}

// Report is an ordered collection of Records, appended during a validation
// run and read afterwards.
type Report struct {
	records []Record
}

// New returns an empty Report.
func New() *Report { return &Report{} }

// Append adds a record. Severity defaults to error when unset.
func (r *Report) Append(rec Record) {
	if rec.Severity == "" {
		rec.Severity = SeverityError
	}
	r.records = append(r.records, rec)
}

// Records returns all records in append order.
func (r *Report) Records() []Record {
	out := make([]Record, len(r.records))
	copy(out, r.records)
	return out
}

// ByName returns the records with the given name, in append order.
func (r *Report) ByName(name string) []Record {
	var out []Record
	for _, rec := range r.records {
		if rec.Name == name {
			out = append(out, rec)
		}
	}
	return out
}

// ContainsErrors reports whether any record has error severity.
func (r *Report) ContainsErrors() bool {
	for _, rec := range r.records {
		if rec.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Counts returns the number of error and warning records.
func (r *Report) Counts() (errors, warnings int) {
	for _, rec := range r.records {
		if rec.Severity == SeverityError {
			errors++
		} else {
			warnings++
		}
	}
	return errors, warnings
}

// MarshalJSON encodes the report as its record list plus a summary.
func (r *Report) MarshalJSON() ([]byte, error) {
	errs, warns := r.Counts()
	return json.Marshal(struct {
		Valid    bool     `json:"valid"`
		Errors   int      `json:"errors"`
		Warnings int      `json:"warnings"`
		Records  []Record `json:"records"`
	}{
		Valid:    errs == 0,
		Errors:   errs,
		Warnings: warns,
		Records:  append([]Record{}, r.records...),
	})
}
