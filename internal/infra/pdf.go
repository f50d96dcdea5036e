package infra

// pdf.go — cash session summary (arqueo) as a thermal-receipt-sized PDF using
// go-pdf/fpdf. Layout:
//   - Title and session id
//   - Label / amount rows from filasResumen
//   - Bold estimated cash and difference

import (
	"fmt"
	"io"

	"posledger/internal/dto"

	"github.com/go-pdf/fpdf"
)

// ResumenCajaPDF renders the summary and writes it to w.
func ResumenCajaPDF(w io.Writer, r *dto.ResumenCajaResponse) error {
	filas := filasResumen(r)

	// 80mm wide roll; height grows with the number of rows.
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           fpdf.SizeType{Wd: 80, Ht: float64(40 + 6*len(filas))},
	})
	pdf.SetMargins(4, 4, 4)
	pdf.SetAutoPageBreak(false, 4)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 8 // total margins = 8mm

	// ── Header ───────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(contentW, 7, tr("Arqueo de caja"), "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 6)
	pdf.CellFormat(contentW, 4, r.SesionCajaID, "", 1, "C", false, 0, "")
	pdf.Ln(2)
	pdf.Line(4, pdf.GetY(), pageW-4, pdf.GetY())
	pdf.Ln(2)

	// ── Rows ─────────────────────────────────────────────────────────────────
	col1 := contentW * 0.55
	col2 := contentW * 0.45
	for _, f := range filas[1:] {
		style := ""
		if f[0] == "Efectivo estimado" || f[0] == "Diferencia" {
			style = "B"
		}
		pdf.SetFont("Helvetica", style, 8)
		pdf.CellFormat(col1, 5, tr(f[0]+":"), "", 0, "L", false, 0, "")
		pdf.CellFormat(col2, 5, tr(f[1]), "", 1, "R", false, 0, "")
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("pdf: write: %w", err)
	}
	return nil
}
