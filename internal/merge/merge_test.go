package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"loan-intake-go/internal/models"
)

func fptr(v float64) *float64 { return &v }
func sptr(v string) *string   { return &v }

func TestMergeDoesNotClobber(t *testing.T) {
	existing := models.EmptyApplication()
	existing.LoanAmount = fptr(500000)
	existing.BorrowerName = sptr("Jane Smith")

	incoming := models.EmptyApplication()
	incoming.LoanAmount = fptr(999999)
	incoming.BorrowerName = sptr("J. Smith")
	incoming.PropertyAddress = sptr("123 Main St")

	merged := Merge(existing, incoming)

	// Existing values survive, only gaps are filled
	assert.Equal(t, 500000.0, *merged.LoanAmount)
	assert.Equal(t, "Jane Smith", *merged.BorrowerName)
	assert.Equal(t, "123 Main St", *merged.PropertyAddress)
}

func TestMergeIdempotent(t *testing.T) {
	incoming := models.EmptyApplication()
	incoming.LoanAmount = fptr(350000)
	incoming.Employment = sptr("Self-employed")
	incoming.ConfidenceNotes = map[string]string{"loan_amount": "stated in email"}

	once := Merge(models.EmptyApplication(), incoming)
	twice := Merge(once, incoming)

	assert.Equal(t, once, twice)
}

func TestMergeConfidenceNotesUnion(t *testing.T) {
	existing := models.EmptyApplication()
	existing.ConfidenceNotes = map[string]string{
		"loan_amount":  "from email body",
		"borrower_dob": "partially legible",
	}

	incoming := models.EmptyApplication()
	incoming.ConfidenceNotes = map[string]string{
		"borrower_dob": "confirmed from ID",
		"mid_fico":     "estimated",
	}

	merged := Merge(existing, incoming)

	assert.Equal(t, "from email body", merged.ConfidenceNotes["loan_amount"])
	assert.Equal(t, "confirmed from ID", merged.ConfidenceNotes["borrower_dob"])
	assert.Equal(t, "estimated", merged.ConfidenceNotes["mid_fico"])
	assert.Len(t, merged.ConfidenceNotes, 3)

	// Union builds a fresh map, the inputs are untouched
	assert.Equal(t, "partially legible", existing.ConfidenceNotes["borrower_dob"])
}

func TestMergeRecomputesMissingFields(t *testing.T) {
	existing := models.EmptyApplication()
	merged := Merge(existing, models.EmptyApplication())
	assert.Equal(t, RequiredFields, merged.MissingFields)

	incoming := models.EmptyApplication()
	incoming.LoanAmount = fptr(400000)
	incoming.BorrowerName = sptr("Bob")
	// A stale missing_fields list from the oracle must be ignored
	incoming.MissingFields = []string{"bogus_field"}

	merged = Merge(existing, incoming)
	assert.Equal(t, []string{
		"property_value",
		"interest_rate",
		"term_months",
		"property_address",
		"employment",
		"employment_income",
		"mid_fico",
		"liquid_assets",
	}, merged.MissingFields)
}

func TestMergeNonRequiredFields(t *testing.T) {
	incoming := models.EmptyApplication()
	incoming.RentalIncome = fptr(2400)
	incoming.PropertyType = sptr("SFR")
	incoming.CLTV = fptr(62.5)

	merged := Merge(models.EmptyApplication(), incoming)

	assert.Equal(t, 2400.0, *merged.RentalIncome)
	assert.Equal(t, "SFR", *merged.PropertyType)
	assert.Equal(t, 62.5, *merged.CLTV)
	// Optional fields never appear in missing_fields
	assert.NotContains(t, merged.MissingFields, "rental_income")
	assert.NotContains(t, merged.MissingFields, "cltv")
}

func TestHasRequiredFields(t *testing.T) {
	app := models.EmptyApplication()
	assert.False(t, HasRequiredFields(app))

	app.BorrowerName = sptr("Jane Smith")
	app.LoanAmount = fptr(500000)
	assert.False(t, HasRequiredFields(app))

	app.PropertyAddress = sptr("123 Main St")
	assert.True(t, HasRequiredFields(app))

	// The remaining required fields do not gate review readiness
	assert.NotEmpty(t, Merge(app, models.EmptyApplication()).MissingFields)
}
