package payment

import (
	"fmt"

	"student-portal/errors"
	"student-portal/models"

	"github.com/leekchan/accounting"
	"github.com/shopspring/decimal"
)

// MoneyFormatter renders amounts for people.
type MoneyFormatter struct {
	ac *accounting.Accounting
}

func NewMoneyFormatter(symbol string) *MoneyFormatter {
	return &MoneyFormatter{ac: accounting.DefaultAccounting(symbol, 2)}
}

func (f *MoneyFormatter) Format(d decimal.Decimal) string {
	return f.ac.FormatMoneyDecimal(d)
}

// Instructions builds the manual payment fallback for an application.
func (f *MoneyFormatter) Instructions(applicationID string, appType models.ApplicationType, amount decimal.Decimal) models.ManualInstructions {
	psid := PSIDOf(appType)
	ref := fmt.Sprintf("%s-%s", appType, applicationID)
	formatted := f.Format(amount)
	return models.ManualInstructions{
		ApplicationID:   applicationID,
		Type:            appType,
		Amount:          amount,
		FormattedAmount: formatted,
		PSID:            psid,
		Reference:       ref,
		Steps: []string{
			"Visit any branch of the university's designated bank.",
			fmt.Sprintf("Deposit %s against service code %s.", formatted, psid),
			fmt.Sprintf("Write application ID %s and reference %s on the deposit slip.", applicationID, ref),
			"Keep the slip and use Check Payment Status once the bank confirms the deposit.",
		},
	}
}

// Failure is an initialization error the student can still act on: it
// carries manual payment instructions alongside the cause.
type Failure struct {
	Err          error
	Instructions models.ManualInstructions
}

func (f *Failure) Error() string { return f.Err.Error() }

func (f *Failure) Unwrap() error { return f.Err }

// InstructionsOf returns the manual instructions attached to err, if any.
func InstructionsOf(err error) (*models.ManualInstructions, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return &f.Instructions, true
	}
	return nil, false
}
