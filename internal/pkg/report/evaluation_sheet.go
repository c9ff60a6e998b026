package report

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// SheetObjective is one row of the objectives table.
type SheetObjective struct {
	Code            string
	Description     string
	Target          string
	Weight          float64
	SelfScore       *float64
	SupervisorScore *float64
}

// SheetReview is a stage review printed under the table.
type SheetReview struct {
	Stage   string
	Score   float64
	Comment string
}

// EvaluationSheet holds everything printed on an exported evaluation.
type EvaluationSheet struct {
	EmployeeName string
	EmployeeCode string
	CycleName    string
	Status       string

	Objectives   []SheetObjective
	TotalScore   float64
	AverageScore float64
	IEScore      float64
	Rank         string
	FinalScore   *float64

	Reviews          []SheetReview
	EmployeeFeedback string
	GeneratedAt      time.Time
}

// RenderEvaluationSheet lays out the sheet as an A4 PDF.
func RenderEvaluationSheet(sheet EvaluationSheet) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Performance Evaluation", true)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, "Performance Evaluation")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 7, fmt.Sprintf("Employee: %s (%s)", sheet.EmployeeName, sheet.EmployeeCode))
	pdf.Ln(6)
	pdf.Cell(0, 7, fmt.Sprintf("Review cycle: %s", sheet.CycleName))
	pdf.Ln(6)
	pdf.Cell(0, 7, fmt.Sprintf("Status: %s", sheet.Status))
	pdf.Ln(10)

	widths := []float64{14, 62, 40, 18, 22, 26}
	headers := []string{"Code", "Objective", "Target", "Weight", "Self", "Supervisor"}
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(230, 236, 245)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 8, h, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	for _, o := range sheet.Objectives {
		pdf.CellFormat(widths[0], 7, o.Code, "1", 0, "C", false, 0, "")
		pdf.CellFormat(widths[1], 7, truncate(o.Description, 38), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[2], 7, truncate(o.Target, 24), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[3], 7, fmt.Sprintf("%.0f", o.Weight), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[4], 7, formatScore(o.SelfScore), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[5], 7, formatScore(o.SupervisorScore), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 11)
	pdf.Cell(0, 7, fmt.Sprintf("Total: %.2f   Average: %.2f   IE: %.2f   Rank: %s",
		sheet.TotalScore, sheet.AverageScore, sheet.IEScore, sheet.Rank))
	pdf.Ln(7)
	if sheet.FinalScore != nil {
		pdf.Cell(0, 7, fmt.Sprintf("Final score: %.2f", *sheet.FinalScore))
		pdf.Ln(7)
	}

	if len(sheet.Reviews) > 0 {
		pdf.Ln(3)
		pdf.SetFont("Helvetica", "B", 11)
		pdf.Cell(0, 7, "Reviews")
		pdf.Ln(7)
		pdf.SetFont("Helvetica", "", 10)
		for _, r := range sheet.Reviews {
			pdf.MultiCell(0, 6, fmt.Sprintf("%s (%.2f): %s", r.Stage, r.Score, r.Comment), "", "L", false)
		}
	}

	if sheet.EmployeeFeedback != "" {
		pdf.Ln(3)
		pdf.SetFont("Helvetica", "B", 11)
		pdf.Cell(0, 7, "Employee feedback")
		pdf.Ln(7)
		pdf.SetFont("Helvetica", "", 10)
		pdf.MultiCell(0, 6, sheet.EmployeeFeedback, "", "L", false)
	}

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "I", 8)
	pdf.Cell(0, 6, "Generated "+sheet.GeneratedAt.Format(time.RFC3339))

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render evaluation sheet: %w", err)
	}
	return buf.Bytes(), nil
}

func formatScore(s *float64) string {
	if s == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *s)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n || n <= 3 {
		return s
	}
	return string(r[:n-3]) + "..."
}
