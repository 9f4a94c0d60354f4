package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

const pdfUsableWidth = 277.0 // landscape A4 minus margins

// RenderPDF lays the table out on landscape A4. Column widths follow the
// table's weights and the header row repeats on every page.
func RenderPDF(t Table) ([]byte, error) {
	if err := t.validate(); err != nil {
		return nil, err
	}

	widths := columnWidths(t)
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.SetAutoPageBreak(true, 20)

	header := func() {
		pdf.SetFont("Arial", "B", 9)
		pdf.SetFillColor(230, 230, 230)
		for i, column := range t.Columns {
			pdf.CellFormat(widths[i], 8, column, "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
	}
	pdf.SetHeaderFuncMode(func() {
		if t.Title != "" {
			pdf.SetFont("Arial", "B", 13)
			pdf.CellFormat(0, 9, t.Title, "", 1, "C", false, 0, "")
			pdf.Ln(2)
		}
		header()
	}, true)
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Arial", "I", 7)
		pdf.CellFormat(0, 8, fmt.Sprintf("Generated %s - page %d",
			time.Now().Format("2006-01-02 15:04"), pdf.PageNo()), "", 0, "R", false, 0, "")
	})

	pdf.AddPage()
	pdf.SetFont("Arial", "", 8)
	for _, row := range t.Rows {
		for i, cell := range row {
			pdf.CellFormat(widths[i], 7, cell, "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func columnWidths(t Table) []float64 {
	widths := make([]float64, len(t.Columns))
	if t.Widths == nil {
		equal := pdfUsableWidth / float64(len(t.Columns))
		for i := range widths {
			widths[i] = equal
		}
		return widths
	}
	var total float64
	for _, w := range t.Widths {
		total += w
	}
	for i, w := range t.Widths {
		widths[i] = pdfUsableWidth * w / total
	}
	return widths
}
