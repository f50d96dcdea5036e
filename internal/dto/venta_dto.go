package dto

import "github.com/shopspring/decimal"

// ─── Filter / List ──────────────────────────────────────────────────────────

// VentaFilter is bound from query string of GET /v1/ventas.
type VentaFilter struct {
	Desde      string `form:"desde"` // YYYY-MM-DD; empty = today
	Hasta      string `form:"hasta"` // YYYY-MM-DD; empty = Desde
	MetodoPago string `form:"metodo_pago"`
	ClienteID  string `form:"cliente_id"`
	Page       int    `form:"page,default=1"`
	Limit      int    `form:"limit,default=50"`
}

type VentaListResponse struct {
	Data  []VentaResponse `json:"data"`
	Total int64           `json:"total"`
	Page  int             `json:"page"`
	Limit int             `json:"limit"`
}

// ─── Request DTOs ────────────────────────────────────────────────────────────

// ItemVentaRequest is one cart line. PrecioUnitario and TasaIVA override the
// catalog values when present; otherwise the product's current values are
// snapshotted at commit time.
type ItemVentaRequest struct {
	ProductoID     string           `json:"producto_id"     validate:"required,uuid"`
	Cantidad       int              `json:"cantidad"`
	PrecioUnitario *decimal.Decimal `json:"precio_unitario"`
	TasaIVA        *decimal.Decimal `json:"tasa_iva"`
}

type RegistrarVentaRequest struct {
	Items        []ItemVentaRequest `json:"items"          validate:"dive"`
	MetodoPago   string             `json:"metodo_pago"    validate:"required,oneof=efectivo transferencia tarjeta cuenta_corriente"`
	ClienteID    *string            `json:"cliente_id"     validate:"omitempty,uuid"`
	Descuento    decimal.Decimal    `json:"descuento"`
	PuntoDeVenta string             `json:"punto_de_venta" validate:"max=20"`
	// IdempotencyKey may also arrive in the Idempotency-Key header.
	IdempotencyKey *string `json:"idempotency_key" validate:"omitempty,max=100"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type ItemVentaResponse struct {
	ProductoID     string          `json:"producto_id"`
	Producto       string          `json:"producto"`
	Cantidad       int             `json:"cantidad"`
	PrecioUnitario decimal.Decimal `json:"precio_unitario"`
	TasaIVA        decimal.Decimal `json:"tasa_iva"`
	Total          decimal.Decimal `json:"total"`
}

type VentaResponse struct {
	ID           string              `json:"id"`
	Fecha        string              `json:"fecha"`
	UsuarioID    string              `json:"usuario_id"`
	ClienteID    *string             `json:"cliente_id"`
	SesionCajaID *string             `json:"sesion_caja_id"`
	MetodoPago   string              `json:"metodo_pago"`
	Items        []ItemVentaResponse `json:"items"`
	Subtotal     decimal.Decimal     `json:"subtotal"`
	TotalIVA     decimal.Decimal     `json:"total_iva"`
	Descuento    decimal.Decimal     `json:"descuento"`
	Total        decimal.Decimal     `json:"total"`
	PuntoDeVenta string              `json:"punto_de_venta"`
	// Repetida is true when the response replays a sale already committed
	// under the same idempotency key.
	Repetida bool `json:"repetida"`
}
