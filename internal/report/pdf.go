package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"github.com/go-pdf/fpdf"
)

// RenderPDF renders an already-written CSV report as a landscape PDF placed
// next to it (same name, .pdf extension). Column widths are sized from the
// widest cell of each column.
func RenderPDF(csvPath, title, notes string) error {
	records, err := readCSV(csvPath)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	widths := make([]int, len(records[0]))
	for _, record := range records {
		for i, cell := range record {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.AddPage()
	pageWidth, _ := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	contentWidth := pageWidth - left - right

	pdf.SetFont("Times", "B", 14)
	if title == "" {
		title = "Trades"
	}
	pdf.CellFormat(contentWidth, 0, title, "", 0, "C", false, 0, "")
	pdf.Ln(10)
	if notes != "" {
		pdf.SetFont("Times", "B", 10)
		pdf.CellFormat(contentWidth, 0, notes, "", 0, "L", false, 0, "")
		pdf.Ln(10)
	}

	pdf.SetFont("Courier", "", 7)
	pdf.Ln(1)
	_, lineHeight := pdf.GetFontSize()
	for _, record := range records {
		for i, cell := range record {
			width := lineHeight * float64(widths[i]) * 0.75
			if width == 0 {
				continue
			}
			pdf.CellFormat(width, lineHeight, cell, "1", 0, "R", false, 0, "")
		}
		pdf.Ln(lineHeight)
	}

	pdf.Ln(10)
	pdf.SetFont("Times", "", 10)
	pdf.CellFormat(contentWidth, 0, "- end of report -", "", 0, "C", false, 0, "")

	out := strings.TrimSuffix(csvPath, ".csv") + ".pdf"
	if err := pdf.OutputFileAndClose(out); err != nil {
		return fmt.Errorf("writing PDF report %q: %w", out, err)
	}
	return nil
}

func readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening report %q: %w", path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading report %q: %w", path, err)
	}
	return records, nil
}
