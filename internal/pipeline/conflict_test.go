package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/health-atlas/atlas-cli/internal/model"
)

func TestNormalizeValue_CaseAndWhitespace(t *testing.T) {
	assert.Equal(t,
		normalizeValue(model.FieldFullName, "  JANE   DOE "),
		normalizeValue(model.FieldFullName, "Jane Doe"))
}

func TestNormalizeValue_Diacritics(t *testing.T) {
	assert.Equal(t,
		normalizeValue(model.FieldFullName, "José García"),
		normalizeValue(model.FieldFullName, "Jose Garcia"))
}

func TestNormalizeValue_AddressAbbreviations(t *testing.T) {
	cases := [][2]string{
		{"1 Main St", "1 Main Street"},
		{"42 Oak Ave, Ste 3", "42 Oak Avenue Suite 3"},
		{"900 N Harbor Blvd", "900 North Harbor Boulevard"},
	}
	for _, c := range cases {
		assert.Equal(t,
			normalizeValue(model.FieldAddress, c[0]),
			normalizeValue(model.FieldAddress, c[1]),
			"%q vs %q", c[0], c[1])
	}
}

func TestNormalizeValue_ZipTruncatesToFive(t *testing.T) {
	assert.Equal(t,
		normalizeValue(model.FieldZipCode, "95814-2222"),
		normalizeValue(model.FieldZipCode, "95814"))
}

func TestNormalizeValue_PhoneDigitsOnly(t *testing.T) {
	assert.Equal(t,
		normalizeValue(model.FieldPhone, "(916) 442-7100"),
		normalizeValue(model.FieldPhone, "1-916-442-7100"))
}

func TestDetectConflicts_NoneWhenSourcesAgree(t *testing.T) {
	p := fullProvider()
	ev := cleanEvidence(p)
	assert.Empty(t, DetectConflicts(p, ev))
}

func TestDetectConflicts_RecordsMismatch(t *testing.T) {
	p := fullProvider()
	ev := cleanEvidence(p)
	ev.Identity.Identity.NPI = "9999999999"

	conflicts := DetectConflicts(p, ev)
	require.Len(t, conflicts, 1)
	assert.Equal(t, model.FieldNPI, conflicts[0].Field)
	assert.Equal(t, p.NPI, conflicts[0].InputValue)
	assert.Equal(t, "9999999999", conflicts[0].SourceValue)
	assert.Equal(t, model.SourceIdentityRegistry, conflicts[0].Source)
}

func TestDetectConflicts_EmptyValuesNeverConflict(t *testing.T) {
	p := fullProvider()
	p.Phone = ""
	ev := cleanEvidence(p)
	ev.Identity.Identity.Phone = "555-0100"

	assert.Empty(t, DetectConflicts(p, ev))
}

func TestDetectConflicts_FailedSourcesSkipped(t *testing.T) {
	p := fullProvider()
	ev := cleanEvidence(p)
	ev.Identity.Identity.NPI = "9999999999"
	ev.Identity.Status = model.StatusTimeout

	assert.Empty(t, DetectConflicts(p, ev))
}

func TestDetectConflicts_OrderStable(t *testing.T) {
	p := fullProvider()
	ev := cleanEvidence(p)
	ev.Identity.Identity.FullName = "Janet Doe"
	ev.Identity.Identity.NPI = "9999999999"
	ev.License.License.Number = "B-99999"

	first := DetectConflicts(p, ev)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, DetectConflicts(p, ev))
	}

	// Identity registry conflicts precede license board conflicts.
	require.NotEmpty(t, first)
	assert.Equal(t, model.SourceIdentityRegistry, first[0].Source)
	assert.Equal(t, model.SourceLicenseBoard, first[len(first)-1].Source)
}
