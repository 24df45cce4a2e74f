package services

import (
	"fmt"
	"io"

	"student-portal/models"

	"github.com/xuri/excelize/v2"
)

const attemptsSheet = "Attempts"

var attemptColumns = []string{
	"Attempt ID", "Application ID", "Type", "Amount", "Gateway", "PSID",
	"State", "Status", "Transaction ID", "Error", "Created At", "Updated At",
}

// WriteAttemptsWorkbook exports attempts as an xlsx workbook.
func WriteAttemptsWorkbook(w io.Writer, attempts []models.PaymentAttempt) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", attemptsSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	header := make([]interface{}, len(attemptColumns))
	for i, c := range attemptColumns {
		header[i] = c
	}
	if err := f.SetSheetRow(attemptsSheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, a := range attempts {
		amount, _ := a.Amount.Float64()
		row := []interface{}{
			a.ID, a.ApplicationID, a.Type.String(), amount, a.GatewayID, a.PSID,
			string(a.State), string(a.Status), a.TransactionID, a.ErrorMessage,
			a.CreatedAt.UTC().Format("2006-01-02 15:04:05"), a.UpdatedAt.UTC().Format("2006-01-02 15:04:05"),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(attemptsSheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := f.SetPanes(attemptsSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("failed to freeze header: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// ReadAttemptsWorkbook reads back the rows of an exported workbook, header
// excluded. Blank rows are skipped.
func ReadAttemptsWorkbook(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheets found in workbook")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("no data in sheet")
	}

	var out [][]string
	for _, row := range rows[1:] {
		if len(row) == 0 {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}
