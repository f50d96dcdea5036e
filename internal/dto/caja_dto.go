package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type AbrirCajaRequest struct {
	MontoInicial decimal.Decimal `json:"monto_inicial"`
	Notas        string          `json:"notas" validate:"max=500"`
}

type MovimientoManualRequest struct {
	Tipo  string          `json:"tipo"  validate:"required,oneof=ingreso egreso"`
	Monto decimal.Decimal `json:"monto"`
	Notas string          `json:"notas" validate:"max=120"`
}

type CerrarCajaRequest struct {
	MontoCierre decimal.Decimal `json:"monto_cierre"`
	Notas       string          `json:"notas" validate:"max=500"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type SesionCajaResponse struct {
	ID           string           `json:"id"`
	UsuarioID    string           `json:"usuario_id"`
	MontoInicial decimal.Decimal  `json:"monto_inicial"`
	MontoCierre  *decimal.Decimal `json:"monto_cierre"`
	Estado       string           `json:"estado"`
	Notas        string           `json:"notas"`
	OpenedAt     string           `json:"opened_at"`
	ClosedAt     *string          `json:"closed_at"`
}

// SnapshotCaja is the derived view of an open drawer.
// EfectivoEstimado = MontoInicial + Ingresos - Egresos + VentasEfectivo.
type SnapshotCaja struct {
	MontoInicial     decimal.Decimal            `json:"monto_inicial"`
	Ingresos         decimal.Decimal            `json:"ingresos"`
	Egresos          decimal.Decimal            `json:"egresos"`
	VentasEfectivo   decimal.Decimal            `json:"ventas_efectivo"`
	EfectivoEstimado decimal.Decimal            `json:"efectivo_estimado"`
	VentasPorMetodo  map[string]decimal.Decimal `json:"ventas_por_metodo"`
}

type EstadoCajaResponse struct {
	Abierta  bool                `json:"abierta"`
	Sesion   *SesionCajaResponse `json:"sesion,omitempty"`
	Snapshot *SnapshotCaja       `json:"snapshot,omitempty"`
}

type MovimientoCajaResponse struct {
	ID           string          `json:"id"`
	SesionCajaID string          `json:"sesion_caja_id"`
	Tipo         string          `json:"tipo"`
	Monto        decimal.Decimal `json:"monto"`
	Notas        string          `json:"notas"`
	VentaID      *string         `json:"venta_id"`
	CreatedAt    string          `json:"created_at"`
}

type DesvioResponse struct {
	Monto         decimal.Decimal `json:"monto"`
	Porcentaje    decimal.Decimal `json:"porcentaje"`
	Clasificacion string          `json:"clasificacion"` // normal | advertencia | critico
}

type ResumenCajaResponse struct {
	SesionCajaID     string                     `json:"sesion_caja_id"`
	Estado           string                     `json:"estado"`
	OpenedAt         string                     `json:"opened_at"`
	ClosedAt         *string                    `json:"closed_at"`
	MontoInicial     decimal.Decimal            `json:"monto_inicial"`
	Ingresos         decimal.Decimal            `json:"ingresos"`
	Egresos          decimal.Decimal            `json:"egresos"`
	VentasPorMetodo  map[string]decimal.Decimal `json:"ventas_por_metodo"`
	VentasEfectivo   decimal.Decimal            `json:"ventas_efectivo"`
	EfectivoEstimado decimal.Decimal            `json:"efectivo_estimado"`
	MontoCierre      *decimal.Decimal           `json:"monto_cierre"`
	Diferencia       *decimal.Decimal           `json:"diferencia"`
	Desvio           *DesvioResponse            `json:"desvio"`
	Notas            string                     `json:"notas"`
}

type HistorialCajaResponse struct {
	Data  []SesionCajaResponse `json:"data"`
	Total int64                `json:"total"`
	Page  int                  `json:"page"`
	Limit int                  `json:"limit"`
}
