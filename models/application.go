package models

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ApplicationType identifies what a student is paying for.
type ApplicationType string

const (
	Enrolment       ApplicationType = "ENROLMENT"
	FormFillup      ApplicationType = "FORM_FILLUP"
	Examination     ApplicationType = "EXAMINATION"
	Transcript      ApplicationType = "TRANSCRIPT"
	Certificate     ApplicationType = "CERTIFICATE"
	Marksheet       ApplicationType = "MARKSHEET"
	Attestation     ApplicationType = "ATTESTATION"
	DigitalDelivery ApplicationType = "DIGITAL_DELIVERY"
	InfoCorrection  ApplicationType = "INFO_CORRECTION"
	ReEvaluation    ApplicationType = "RE_EVALUATION"
	DuplicateAdmit  ApplicationType = "DUPLICATE_ADMIT"
)

// ApplicationTypes lists every known type in display order.
var ApplicationTypes = []ApplicationType{
	Enrolment, FormFillup, Examination, Transcript, Certificate, Marksheet,
	Attestation, DigitalDelivery, InfoCorrection, ReEvaluation, DuplicateAdmit,
}

// typeAliases maps historical spellings onto their canonical type.
var typeAliases = map[string]ApplicationType{
	"ENROLLMENT": Enrolment,
}

// ParseApplicationType normalizes s into an ApplicationType. Unknown values are
// kept as-is so callers can still apply their own defaults.
func ParseApplicationType(s string) ApplicationType {
	norm := strings.ToUpper(strings.TrimSpace(s))
	norm = strings.NewReplacer("-", "_", " ", "_").Replace(norm)
	if alias, ok := typeAliases[norm]; ok {
		return alias
	}
	return ApplicationType(norm)
}

// Valid reports whether t is one of the known application types.
func (t ApplicationType) Valid() bool {
	for _, known := range ApplicationTypes {
		if t == known {
			return true
		}
	}
	return false
}

func (t ApplicationType) String() string {
	return string(t)
}

// PaymentDetail is one itemized billing row attached to an application.
type PaymentDetail struct {
	PaymentHeadID string `json:"payment_head_id"`
	Quantity      int    `json:"quantity"`
}

// ApplicationRecord is the backend view of a submitted application.
type ApplicationRecord struct {
	ID             string          `json:"id"`
	Type           ApplicationType `json:"type"`
	Amount         decimal.Decimal `json:"amount"`
	Status         string          `json:"status,omitempty"`
	PaymentDetails []PaymentDetail `json:"payment_details,omitempty"`
}
