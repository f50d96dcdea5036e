package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	// CuentaDebito increases what the customer owes (a sale on account).
	CuentaDebito = "DEBIT"
	// CuentaCredito decreases it (a payment).
	CuentaCredito = "CREDIT"
)

// MovimientoCuenta is an append-only entry of a customer's running account.
// The balance is always derived: SUM(DEBIT) - SUM(CREDIT).
type MovimientoCuenta struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey"`
	ClienteID uuid.UUID       `gorm:"type:uuid;not null;index:idx_movimientos_cuenta_cliente_fecha,priority:1"`
	VentaID   *uuid.UUID      `gorm:"type:uuid;index"`
	Tipo      string          `gorm:"type:varchar(10);not null"`
	Monto     decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Notas     string
	UsuarioID *uuid.UUID `gorm:"type:uuid"`
	CreatedAt time.Time  `gorm:"not null;index:idx_movimientos_cuenta_cliente_fecha,priority:2"`

	Cliente *Cliente `gorm:"foreignKey:ClienteID"`
}

func (MovimientoCuenta) TableName() string { return "movimientos_cuenta" }
