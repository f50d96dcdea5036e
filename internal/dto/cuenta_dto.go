package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type MovimientoCuentaRequest struct {
	Tipo    string          `json:"tipo"     validate:"required,oneof=DEBIT CREDIT"`
	Monto   decimal.Decimal `json:"monto"`
	Notas   string          `json:"notas"    validate:"max=255"`
	VentaID *string         `json:"venta_id" validate:"omitempty,uuid"`
}

type PagoCuentaRequest struct {
	Monto decimal.Decimal `json:"monto"`
	Notas string          `json:"notas" validate:"max=255"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type MovimientoCuentaResponse struct {
	ID            string          `json:"id"`
	ClienteID     string          `json:"cliente_id"`
	ClienteNombre string          `json:"cliente_nombre,omitempty"`
	VentaID       *string         `json:"venta_id"`
	Tipo          string          `json:"tipo"`
	Monto         decimal.Decimal `json:"monto"`
	Notas         string          `json:"notas"`
	CreatedAt     string          `json:"created_at"`
	// SaldoAcumulado is the balance right after this entry, replayed in
	// chronological order. Only set in statements.
	SaldoAcumulado *decimal.Decimal `json:"saldo_acumulado,omitempty"`
}

type EstadoCuentaResponse struct {
	Cliente     ClienteResponse            `json:"cliente"`
	Saldo       decimal.Decimal            `json:"saldo"`
	Orden       string                     `json:"orden"`
	Movimientos []MovimientoCuentaResponse `json:"movimientos"`
}

type SaldoClienteResponse struct {
	Cliente       ClienteResponse  `json:"cliente"`
	Saldo         decimal.Decimal  `json:"saldo"`
	LimiteCredito decimal.Decimal  `json:"limite_credito"`
	Disponible    *decimal.Decimal `json:"disponible"` // nil when the customer has no limit
}

type ResumenCuentaRow struct {
	ClienteID string          `json:"cliente_id"`
	Cliente   string          `json:"cliente"`
	Activo    bool            `json:"activo"`
	Saldo     decimal.Decimal `json:"saldo"`
}

type ResumenCuentasResponse struct {
	Rows  []ResumenCuentaRow `json:"rows"`
	Total decimal.Decimal    `json:"total"`
}
