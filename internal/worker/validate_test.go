// ABOUTME: Tests for RunValidation, the shared entry point used by the job
// ABOUTME: handler, the sync API path, and the validate subcommand.
package worker_test

import (
	"strings"
	"testing"

	"github.com/openaid-dev/aidcheck/internal/defaults"
	"github.com/openaid-dev/aidcheck/internal/worker"
)

const validDoc = `<iati-activities version="2.02">
	<iati-activity>
		<iati-identifier>AA-AAA-123456789-ABC123</iati-identifier>
		<reporting-org ref="AA-AAA-123456789"/>
		<activity-date type="1" iso-date="2016-01-01"/>
		<activity-date type="2" iso-date="2016-02-01"/>
		<activity-date type="3" iso-date="2017-06-30"/>
		<activity-date type="4" iso-date="2017-07-31"/>
		<sector code="11110"/>
		<recipient-country code="KE" percentage="100"/>
	</iati-activity>
</iati-activities>`

func TestRunValidation_Valid(t *testing.T) {
	t.Parallel()
	rep, failure := worker.RunValidation(validDoc, "2.02", defaults.NewStore())
	if failure != "" {
		t.Fatalf("failure = %q", failure)
	}
	if rep.ContainsErrors() {
		t.Errorf("valid document produced errors: %+v", rep.Records())
	}
}

func TestRunValidation_RuleFailureStillProducesReport(t *testing.T) {
	t.Parallel()
	doc := strings.Replace(validDoc, `<sector code="11110"/>`, ``, 1)
	rep, failure := worker.RunValidation(doc, "2.02", defaults.NewStore())
	if failure != "" {
		t.Fatalf("failure = %q", failure)
	}
	if !rep.ContainsErrors() {
		t.Error("document missing sector should produce errors")
	}
}

func TestRunValidation_Failures(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		doc  string
		ver  string
		want string
	}{
		{"unknown version", validDoc, "banana", "unknown standard version"},
		{"not xml", "<unterminated", "2.02", "not well-formed"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, failure := worker.RunValidation(tc.doc, tc.ver, defaults.NewStore())
			if !strings.Contains(failure, tc.want) {
				t.Errorf("failure = %q, want it to contain %q", failure, tc.want)
			}
		})
	}
}

func TestRunValidation_OrganisationRoot(t *testing.T) {
	t.Parallel()
	doc := `<iati-organisations version="2.02">
		<iati-organisation>
			<organisation-identifier>AA-AAA-123456789</organisation-identifier>
		</iati-organisation>
	</iati-organisations>`
	rep, failure := worker.RunValidation(doc, "2.02", defaults.NewStore())
	if failure != "" {
		t.Fatalf("failure = %q", failure)
	}
	if rep.ContainsErrors() {
		t.Errorf("organisation document produced errors: %+v", rep.Records())
	}
}
