package infra

// planilla.go — cash session summary export (CSV, XLSX, PDF).
// All formats render the same label/value rows built by filasResumen.

import (
	"encoding/csv"
	"fmt"
	"io"

	"posledger/internal/dto"
	"posledger/internal/model"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

var etiquetasMetodo = map[string]string{
	model.MetodoEfectivo:        "Ventas efectivo",
	model.MetodoTransferencia:   "Ventas transferencia",
	model.MetodoTarjeta:         "Ventas tarjeta",
	model.MetodoCuentaCorriente: "Ventas cuenta corriente",
}

// filasResumen flattens a cash summary into ordered label/value pairs.
func filasResumen(r *dto.ResumenCajaResponse) [][2]string {
	filas := [][2]string{
		{"Sesión", r.SesionCajaID},
		{"Estado", r.Estado},
		{"Apertura", r.OpenedAt},
		{"Cierre", deref(r.ClosedAt)},
		{"Monto inicial", money(r.MontoInicial)},
		{"Ingresos", money(r.Ingresos)},
		{"Egresos", money(r.Egresos)},
	}
	for _, m := range model.MetodosPago {
		filas = append(filas, [2]string{etiquetasMetodo[m], money(r.VentasPorMetodo[m])})
	}
	filas = append(filas,
		[2]string{"Ventas en caja", money(r.VentasEfectivo)},
		[2]string{"Efectivo estimado", money(r.EfectivoEstimado)},
	)
	if r.MontoCierre != nil {
		filas = append(filas, [2]string{"Monto de cierre", money(*r.MontoCierre)})
	}
	if r.Diferencia != nil {
		filas = append(filas, [2]string{"Diferencia", money(*r.Diferencia)})
	}
	if r.Desvio != nil {
		filas = append(filas, [2]string{"Desvío", fmt.Sprintf("%s%% (%s)", r.Desvio.Porcentaje.StringFixed(2), r.Desvio.Clasificacion)})
	}
	return filas
}

// ResumenCajaCSV writes the summary as a two-column CSV.
func ResumenCajaCSV(w io.Writer, r *dto.ResumenCajaResponse) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"concepto", "valor"}); err != nil {
		return err
	}
	for _, f := range filasResumen(r) {
		if err := cw.Write(f[:]); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ResumenCajaXLSX writes the summary as a single-sheet workbook.
func ResumenCajaXLSX(w io.Writer, r *dto.ResumenCajaResponse) error {
	const sheet = "Resumen"
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	if err := f.SetSheetRow(sheet, "A1", &[]interface{}{"Concepto", "Valor"}); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", "B1", bold); err != nil {
		return err
	}
	for i, fila := range filasResumen(r) {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &[]interface{}{fila[0], fila[1]}); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(sheet, "A", "A", 26); err != nil {
		return err
	}
	if err := f.SetColWidth(sheet, "B", "B", 40); err != nil {
		return err
	}
	return f.Write(w)
}

func money(d decimal.Decimal) string { return d.StringFixed(2) }

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
