package services

import (
	"fmt"
	"io"
	"time"

	"student-portal/models"

	"github.com/jung-kurt/gofpdf"
)

// WriteInstructionsPDF renders the manual payment slip for an application.
func WriteInstructionsPDF(w io.Writer, instr models.ManualInstructions, issued time.Time) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Manual Payment Instructions", false)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(0, 10, "Manual Payment Instructions")
	pdf.Ln(14)

	pdf.SetFont("Arial", "", 12)
	rows := [][2]string{
		{"Application ID", instr.ApplicationID},
		{"Application type", instr.Type.String()},
		{"Amount", instr.FormattedAmount},
		{"Service code (PSID)", instr.PSID},
		{"Reference", instr.Reference},
		{"Issued", issued.Format("02 Jan 2006 15:04")},
	}
	for _, r := range rows {
		pdf.SetFont("Arial", "B", 12)
		pdf.CellFormat(60, 8, r[0], "1", 0, "L", false, 0, "")
		pdf.SetFont("Arial", "", 12)
		pdf.CellFormat(110, 8, r[1], "1", 1, "L", false, 0, "")
	}
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 13)
	pdf.Cell(0, 8, "Steps")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 12)
	for i, step := range instr.Steps {
		pdf.MultiCell(0, 7, fmt.Sprintf("%d. %s", i+1, step), "", "L", false)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("error generating instructions PDF: %w", err)
	}
	return nil
}
