package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	MetodoEfectivo        = "efectivo"
	MetodoTransferencia   = "transferencia"
	MetodoTarjeta         = "tarjeta"
	MetodoCuentaCorriente = "cuenta_corriente"
)

// MetodosPago lists every accepted payment method in display order.
var MetodosPago = []string{MetodoEfectivo, MetodoTransferencia, MetodoTarjeta, MetodoCuentaCorriente}

// Venta is an immutable committed sale. Corrections are new documents, never edits.
type Venta struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Fecha        time.Time       `gorm:"not null;index"`
	UsuarioID    uuid.UUID       `gorm:"type:uuid;not null"`
	ClienteID    *uuid.UUID      `gorm:"type:uuid;index"`
	SesionCajaID *uuid.UUID      `gorm:"type:uuid;index"`
	MetodoPago   string          `gorm:"type:varchar(20);not null"`
	Subtotal     decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	TotalIVA     decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Descuento    decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	Total        decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	PuntoDeVenta string          `gorm:"type:varchar(20);not null"`
	// IdempotencyKey deduplicates client retries of the same commit.
	IdempotencyKey *string `gorm:"type:varchar(100);uniqueIndex"`
	CreatedAt      time.Time

	Items   []VentaItem `gorm:"foreignKey:VentaID"`
	Cliente *Cliente    `gorm:"foreignKey:ClienteID"`
}

func (Venta) TableName() string { return "ventas" }

// VentaItem snapshots price and tax rate at sale time.
// Total = Cantidad × PrecioUnitario × (1 + TasaIVA/100).
type VentaItem struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey"`
	VentaID        uuid.UUID       `gorm:"type:uuid;index;not null"`
	ProductoID     uuid.UUID       `gorm:"type:uuid;index;not null"`
	Cantidad       int             `gorm:"not null"`
	PrecioUnitario decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	TasaIVA        decimal.Decimal `gorm:"type:decimal(5,2);not null"`
	Total          decimal.Decimal `gorm:"type:decimal(12,2);not null"`

	Producto *Producto `gorm:"foreignKey:ProductoID"`
}

func (VentaItem) TableName() string { return "venta_items" }
