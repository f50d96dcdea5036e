package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	SesionAbierta = "abierta"
	SesionCerrada = "cerrada"
)

const (
	MovimientoIngreso = "ingreso"
	MovimientoEgreso  = "egreso"
	MovimientoVenta   = "venta"
)

// SesionCaja represents the lifecycle of the cash drawer.
// Estado: "abierta" | "cerrada". At most one row is "abierta" at any time,
// enforced by the partial unique index uni_sesiones_caja_abierta.
// A closed session is immutable.
type SesionCaja struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey"`
	UsuarioID    uuid.UUID       `gorm:"type:uuid;not null"`
	CerradaPor   *uuid.UUID      `gorm:"type:uuid"`
	MontoInicial decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	// MontoCierre is the physical count declared by the operator at close.
	MontoCierre *decimal.Decimal `gorm:"type:decimal(12,2)"`
	// MontoEsperado and Diferencia are the reconciliation figures computed at close.
	MontoEsperado *decimal.Decimal `gorm:"type:decimal(12,2)"`
	Diferencia    *decimal.Decimal `gorm:"type:decimal(12,2)"`
	// ClasificacionDesvio: "normal" | "advertencia" | "critico"
	ClasificacionDesvio *string `gorm:"type:varchar(20)"`
	Estado              string  `gorm:"type:varchar(20);not null;default:'abierta'"`
	Notas               string
	OpenedAt            time.Time `gorm:"not null;index"`
	ClosedAt            *time.Time

	Movimientos []MovimientoCaja `gorm:"foreignKey:SesionCajaID"`
}

func (SesionCaja) TableName() string { return "sesiones_caja" }

// MovimientoCaja is an immutable event in the drawer ledger.
// Tipo: "ingreso" | "egreso" | "venta". Monto is never negative; the sign is
// given by Tipo. "venta" movements are only created by the sale commit and
// reference exactly one Venta (unique venta_id).
type MovimientoCaja struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey"`
	SesionCajaID uuid.UUID       `gorm:"type:uuid;index;not null"`
	Tipo         string          `gorm:"type:varchar(20);not null"`
	Monto        decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Notas        string
	VentaID      *uuid.UUID `gorm:"type:uuid;uniqueIndex"`
	UsuarioID    *uuid.UUID `gorm:"type:uuid"`
	CreatedAt    time.Time
}

func (MovimientoCaja) TableName() string { return "movimientos_caja" }
