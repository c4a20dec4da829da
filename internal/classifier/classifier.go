// Package classifier maps an attachment's filename and MIME type to a
// document category. Rules are ordered and the first match wins.
package classifier

import (
	"regexp"
	"strings"

	"loan-intake-go/internal/models"
)

var (
	idWordRe = regexp.MustCompile(`\bid\b`)
	dlWordRe = regexp.MustCompile(`\bdl\b`)
)

// Classify determines the document type from the lower-cased filename.
// mimeType is accepted for future rules but is not currently discriminating.
// Unmatched input always falls through to "other".
func Classify(fileName, mimeType string) models.DocumentType {
	_ = mimeType
	lower := strings.ToLower(fileName)

	switch {
	case strings.Contains(lower, "w2") || strings.Contains(lower, "w-2"):
		return models.DocTypeW2
	case strings.Contains(lower, "paystub") || strings.Contains(lower, "pay_stub") || strings.Contains(lower, "pay stub"):
		return models.DocTypePaystub
	case strings.Contains(lower, "bank") || strings.Contains(lower, "statement"):
		return models.DocTypeBankStatement
	case strings.Contains(lower, "tax") || strings.Contains(lower, "1040") || strings.Contains(lower, "1099"):
		return models.DocTypeTaxReturn
	case strings.Contains(lower, "mortgage") || strings.Contains(lower, "deed"):
		return models.DocTypeMortgageStatement
	}

	// SSN card detection runs before the generic ID rule so a
	// "social_security_card" filename is not misread as an ID.
	if strings.Contains(lower, "ssn") || strings.Contains(lower, "social security") ||
		strings.Contains(lower, "social_security") || strings.Contains(lower, "social") {
		return models.DocTypeSSNCard
	}

	// "id" and "dl" must match as whole words; substrings like "paid" or
	// "void" must not classify as an ID.
	if idWordRe.MatchString(lower) || dlWordRe.MatchString(lower) ||
		strings.Contains(lower, "license") || strings.Contains(lower, "licence") ||
		strings.Contains(lower, "passport") || strings.Contains(lower, "driver") {
		return models.DocTypeID
	}

	return models.DocTypeOther
}
