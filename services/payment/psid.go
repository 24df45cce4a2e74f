package payment

import "student-portal/models"

// DefaultPSID is used for any application type missing from the table.
const DefaultPSID = "1"

var psidTable = map[models.ApplicationType]string{
	models.Enrolment:       "1",
	models.FormFillup:      "2",
	models.Examination:     "3",
	models.Transcript:      "DUEXTRNS",
	models.Certificate:     "DUEXCERT",
	models.Marksheet:       "DUEXMRKS",
	models.Attestation:     "DUEXMATT",
	models.DigitalDelivery: "DUEXMATT",
	models.InfoCorrection:  "DUEXMINC",
	models.ReEvaluation:    "DUEXMREV",
	models.DuplicateAdmit:  "DUEXMDA",
}

// PSIDOf returns the gateway product identifier for t.
func PSIDOf(t models.ApplicationType) string {
	if psid, ok := psidTable[models.ParseApplicationType(string(t))]; ok {
		return psid
	}
	return DefaultPSID
}
