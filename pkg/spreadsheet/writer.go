package spreadsheet

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/empbudget/budgetgrid/pkg/budget"
	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

const sheetName = "Budget"

// Write renders records in the given format. Columns follow budget.Columns.
func Write(w io.Writer, format Format, records []budget.View) error {
	switch format {
	case XLSX:
		return WriteXLSX(w, records)
	case CSV:
		return WriteCSV(w, records)
	case PDF:
		return WritePDF(w, records)
	}
	return fmt.Errorf("%w: cannot export %s", ErrUnsupportedFormat, format)
}

func textRow(v budget.View) []string {
	return []string{
		strconv.Itoa(int(v.BudgetPlanId)),
		v.ProjectName,
		v.EmployeeName,
		v.Month,
		v.StatusName,
		v.BudgetAllocated.String(),
		v.HoursPlanned.String(),
		v.Comments,
		v.Cost.String(),
	}
}

func WriteCSV(w io.Writer, records []budget.View) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(budget.Titles()); err != nil {
		log.Errorf("Error writing to csv: %v", err)
		return err
	}
	for _, v := range records {
		if err := writer.Write(textRow(v)); err != nil {
			log.Errorf("Error writing to csv: %v", err)
			return err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		log.Errorf("Error writing to csv: %v", err)
		return err
	}
	return nil
}

// WriteXLSX writes a single sheet workbook with a bold, frozen header row and a
// frozen id column. Amounts are stored as numbers.
func WriteXLSX(w io.Writer, records []budget.View) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return err
	}

	header := make([]any, 0, budget.ColumnCount)
	for _, title := range budget.Titles() {
		header = append(header, title)
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return err
	}
	for i, v := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{
			int(v.BudgetPlanId),
			v.ProjectName,
			v.EmployeeName,
			v.Month,
			v.StatusName,
			v.BudgetAllocated.InexactFloat64(),
			v.HoursPlanned.InexactFloat64(),
			v.Comments,
			v.Cost.InexactFloat64(),
		}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return err
		}
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"DBE5F1"}},
	})
	if err != nil {
		return err
	}
	lastHeader, err := excelize.CoordinatesToCellName(budget.ColumnCount, 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheetName, "A1", lastHeader, headerStyle); err != nil {
		return err
	}

	for _, c := range budget.Columns {
		name, err := excelize.ColumnNumberToName(c.Index + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheetName, name, name, c.Width/7); err != nil {
			return err
		}
	}

	if err := f.SetPanes(sheetName, &excelize.Panes{
		Freeze:      true,
		XSplit:      1,
		YSplit:      1,
		TopLeftCell: "B2",
		ActivePane:  "bottomRight",
	}); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		log.Errorf("Error writing workbook: %v", err)
		return err
	}
	return nil
}

// pdfColumnWidths are in millimetres on a landscape A4 page.
var pdfColumnWidths = []float64{20, 38, 38, 18, 26, 30, 24, 58, 25}

// WritePDF renders a tabular report with a totals line.
func WritePDF(w io.Writer, records []budget.View) error {
	pdf := gofpdf.New("L", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(10, 10, 10)
	pdf.SetAutoPageBreak(true, 15)

	header := func() {
		pdf.SetFont("Arial", "B", 9)
		pdf.SetFillColor(219, 229, 241)
		pdf.SetTextColor(0, 0, 0)
		for i, title := range budget.Titles() {
			pdf.CellFormat(pdfColumnWidths[i], 8, tr(title), "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 8)
	}
	pdf.SetHeaderFunc(header)
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Arial", "I", 8)
		pdf.SetTextColor(128, 128, 128)
		pdf.CellFormat(0, 8, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "R", false, 0, "")
	})
	pdf.AddPage()

	var totalBudget, totalHours, totalCost decimal.Decimal
	for _, v := range records {
		for i, value := range textRow(v) {
			align := "L"
			if i == budget.ColumnId || i == budget.ColumnBudgetAllocated || i == budget.ColumnHoursPlanned || i == budget.ColumnCost {
				align = "R"
			}
			if i == budget.ColumnComments {
				value = truncate(pdf, tr(value), pdfColumnWidths[i]-2)
			} else {
				value = tr(value)
			}
			pdf.CellFormat(pdfColumnWidths[i], 7, value, "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
		totalBudget = totalBudget.Add(v.BudgetAllocated)
		totalHours = totalHours.Add(v.HoursPlanned)
		totalCost = totalCost.Add(v.Cost)
	}

	pdf.SetFont("Arial", "B", 8)
	labelWidth := 0.0
	for _, width := range pdfColumnWidths[:budget.ColumnBudgetAllocated] {
		labelWidth += width
	}
	pdf.CellFormat(labelWidth, 7, fmt.Sprintf("Total (%d records)", len(records)), "1", 0, "R", false, 0, "")
	pdf.CellFormat(pdfColumnWidths[budget.ColumnBudgetAllocated], 7, totalBudget.StringFixed(2), "1", 0, "R", false, 0, "")
	pdf.CellFormat(pdfColumnWidths[budget.ColumnHoursPlanned], 7, totalHours.StringFixed(2), "1", 0, "R", false, 0, "")
	pdf.CellFormat(pdfColumnWidths[budget.ColumnComments], 7, "", "1", 0, "L", false, 0, "")
	pdf.CellFormat(pdfColumnWidths[budget.ColumnCost], 7, totalCost.StringFixed(2), "1", 1, "R", false, 0, "")

	if err := pdf.Output(w); err != nil {
		log.Errorf("Error writing pdf: %v", err)
		return err
	}
	return nil
}

func truncate(pdf *gofpdf.Fpdf, s string, width float64) string {
	if pdf.GetStringWidth(s) <= width {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 && pdf.GetStringWidth(string(runes)+"...") > width {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "..."
}
