package service

import "github.com/shopspring/decimal"

var cien = decimal.NewFromInt(100)

// LineaPrecio is one priced line ready for totals.
type LineaPrecio struct {
	Cantidad       int
	PrecioUnitario decimal.Decimal
	TasaIVA        decimal.Decimal // percentage
}

// Totales are the server-side sale totals. All figures are rounded to cents.
type Totales struct {
	Subtotal  decimal.Decimal
	TotalIVA  decimal.Decimal
	Descuento decimal.Decimal
	Total     decimal.Decimal
	// Lineas holds each line's q × p × (1 + t/100).
	Lineas []decimal.Decimal
}

// CalcularTotales computes subtotal = Σ q×p, iva = Σ q×p×t/100 and
// total = subtotal + iva − descuento. Rounding happens once per aggregate so
// line rounding never drifts the header.
func CalcularTotales(lineas []LineaPrecio, descuento decimal.Decimal) (Totales, error) {
	if descuento.IsNegative() {
		return Totales{}, invalido("descuento", "no puede ser negativo")
	}

	subtotal := decimal.Zero
	iva := decimal.Zero
	out := Totales{Lineas: make([]decimal.Decimal, len(lineas))}
	for i, l := range lineas {
		neto := l.PrecioUnitario.Mul(decimal.NewFromInt(int64(l.Cantidad)))
		imp := neto.Mul(l.TasaIVA).Div(cien)
		subtotal = subtotal.Add(neto)
		iva = iva.Add(imp)
		out.Lineas[i] = neto.Add(imp).Round(2)
	}

	out.Subtotal = subtotal.Round(2)
	out.TotalIVA = iva.Round(2)
	out.Descuento = descuento.Round(2)
	bruto := out.Subtotal.Add(out.TotalIVA)
	if out.Descuento.GreaterThan(bruto) {
		return Totales{}, invalido("descuento", "supera el total de la venta")
	}
	out.Total = bruto.Sub(out.Descuento)
	return out, nil
}
