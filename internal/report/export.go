package report

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"
)

const (
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	ContentTypePDF  = "application/pdf"
)

// BuildPDF renders a one-page sales summary.
func BuildPDF(summary Summary) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Sales Summary")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("From: %s", summary.Range.BeginISO))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("To: %s", summary.Range.EndISO))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 10)
	header := []string{"Location", "Total EUR", "Card EUR", "Cash EUR", "Other EUR", "Count"}
	widths := []float64{40, 28, 28, 28, 28, 20}
	for i, title := range header {
		pdf.CellFormat(widths[i], 6, title, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 10)
	row := func(name string, a Amounts) {
		pdf.CellFormat(widths[0], 6, name, "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], 6, fmt.Sprintf("%.2f", a.TotalEUR), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[2], 6, fmt.Sprintf("%.2f", a.CardEUR), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[3], 6, fmt.Sprintf("%.2f", a.CashEUR), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[4], 6, fmt.Sprintf("%.2f", a.OtherEUR), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[5], 6, fmt.Sprintf("%d", a.Count), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}
	for _, location := range summary.PerLocation {
		row(location.LocationID, location.Amounts)
	}
	pdf.SetFont("Arial", "B", 10)
	row("Combined", summary.Combined)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildXLSX renders the summary into a single sheet workbook.
func BuildXLSX(summary Summary) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "summary"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	_ = f.SetCellValue(sheet, "A1", "Sales Summary")
	_ = f.SetCellValue(sheet, "A2", "From")
	_ = f.SetCellValue(sheet, "B2", summary.Range.BeginISO)
	_ = f.SetCellValue(sheet, "A3", "To")
	_ = f.SetCellValue(sheet, "B3", summary.Range.EndISO)

	header := []string{"Location", "Total EUR", "Card EUR", "Cash EUR", "Other EUR", "Count"}
	for i, title := range header {
		cell, _ := excelize.CoordinatesToCellName(i+1, 5)
		_ = f.SetCellValue(sheet, cell, title)
	}

	row := 6
	write := func(name string, a Amounts) {
		_ = f.SetCellValue(sheet, fmt.Sprintf("A%d", row), name)
		_ = f.SetCellValue(sheet, fmt.Sprintf("B%d", row), a.TotalEUR)
		_ = f.SetCellValue(sheet, fmt.Sprintf("C%d", row), a.CardEUR)
		_ = f.SetCellValue(sheet, fmt.Sprintf("D%d", row), a.CashEUR)
		_ = f.SetCellValue(sheet, fmt.Sprintf("E%d", row), a.OtherEUR)
		_ = f.SetCellValue(sheet, fmt.Sprintf("F%d", row), a.Count)
		row++
	}
	for _, location := range summary.PerLocation {
		write(location.LocationID, location.Amounts)
	}
	write("Combined", summary.Combined)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
