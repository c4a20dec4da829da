// Package merge folds partial extraction results into a deal's application
// record. The policy is first-writer-wins: a field already holding a value is
// never overwritten, so re-applying the same extraction is a no-op.
package merge

import "loan-intake-go/internal/models"

// RequiredFields are the application fields whose presence determines
// readiness for officer review. missing_fields is always recomputed from
// this list, in this order.
var RequiredFields = []string{
	"loan_amount",
	"property_value",
	"interest_rate",
	"term_months",
	"property_address",
	"borrower_name",
	"employment",
	"employment_income",
	"mid_fico",
	"liquid_assets",
}

// Merge combines incoming extraction output into existing. Field values only
// move from incoming into the result where the existing value is null.
// confidence_notes are unioned with incoming entries winning per key;
// incoming missing_fields are ignored and the list is recomputed at the end.
func Merge(existing, incoming models.LoanApplication) models.LoanApplication {
	merged := existing

	mergeNum(&merged.LoanAmount, incoming.LoanAmount)
	mergeNum(&merged.PropertyValue, incoming.PropertyValue)
	mergeNum(&merged.InterestRate, incoming.InterestRate)
	mergeNum(&merged.ProtectiveEquity, incoming.ProtectiveEquity)
	mergeNum(&merged.TermMonths, incoming.TermMonths)
	mergeNum(&merged.CLTV, incoming.CLTV)

	mergeStr(&merged.PropertyAddress, incoming.PropertyAddress)
	mergeStr(&merged.PropertySqft, incoming.PropertySqft)
	mergeStr(&merged.PropertyType, incoming.PropertyType)
	mergeStr(&merged.Bedrooms, incoming.Bedrooms)
	mergeStr(&merged.Bathrooms, incoming.Bathrooms)
	mergeStr(&merged.LotSize, incoming.LotSize)
	mergeStr(&merged.YearBuilt, incoming.YearBuilt)

	mergeNum(&merged.FirstTDBalance, incoming.FirstTDBalance)
	mergeNum(&merged.FirstTDMonthlyPayment, incoming.FirstTDMonthlyPayment)
	mergeNum(&merged.FirstTDInterestRate, incoming.FirstTDInterestRate)
	mergeNum(&merged.MonthlyHOAFees, incoming.MonthlyHOAFees)

	mergeStr(&merged.BorrowerName, incoming.BorrowerName)
	mergeStr(&merged.BorrowerSSN, incoming.BorrowerSSN)
	mergeStr(&merged.BorrowerDOB, incoming.BorrowerDOB)
	mergeStr(&merged.BorrowerPhone, incoming.BorrowerPhone)
	mergeStr(&merged.BorrowerAddress, incoming.BorrowerAddress)
	mergeStr(&merged.Employment, incoming.Employment)
	mergeNum(&merged.EmploymentIncome, incoming.EmploymentIncome)
	mergeNum(&merged.LiquidAssets, incoming.LiquidAssets)
	mergeNum(&merged.RentalIncome, incoming.RentalIncome)
	mergeNum(&merged.MidFICO, incoming.MidFICO)

	merged.ConfidenceNotes = unionNotes(existing.ConfidenceNotes, incoming.ConfidenceNotes)
	merged.MissingFields = missingFields(merged)

	return merged
}

// HasRequiredFields reports whether the application is complete enough to
// surface for officer review: borrower name, loan amount and property
// address must all be present.
func HasRequiredFields(app models.LoanApplication) bool {
	return app.BorrowerName != nil && app.LoanAmount != nil && app.PropertyAddress != nil
}

func mergeStr(dst **string, src *string) {
	if *dst == nil && src != nil {
		*dst = src
	}
}

func mergeNum(dst **float64, src *float64) {
	if *dst == nil && src != nil {
		*dst = src
	}
}

func unionNotes(existing, incoming map[string]string) map[string]string {
	notes := make(map[string]string, len(existing)+len(incoming))
	for k, v := range existing {
		notes[k] = v
	}
	for k, v := range incoming {
		notes[k] = v
	}
	return notes
}

func missingFields(app models.LoanApplication) []string {
	missing := []string{}
	for _, name := range RequiredFields {
		if !fieldSet(app, name) {
			missing = append(missing, name)
		}
	}
	return missing
}

func fieldSet(app models.LoanApplication, name string) bool {
	switch name {
	case "loan_amount":
		return app.LoanAmount != nil
	case "property_value":
		return app.PropertyValue != nil
	case "interest_rate":
		return app.InterestRate != nil
	case "term_months":
		return app.TermMonths != nil
	case "property_address":
		return app.PropertyAddress != nil
	case "borrower_name":
		return app.BorrowerName != nil
	case "employment":
		return app.Employment != nil
	case "employment_income":
		return app.EmploymentIncome != nil
	case "mid_fico":
		return app.MidFICO != nil
	case "liquid_assets":
		return app.LiquidAssets != nil
	}
	return false
}
