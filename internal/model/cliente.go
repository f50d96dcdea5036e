package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Cliente is a customer that may buy on account (cuenta corriente).
// Customers are never physically removed: deactivation sets Activo=false so
// historical ledger entries and sales keep their reference.
type Cliente struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Nombre    string    `gorm:"index;not null"`
	Documento *string   `gorm:"index"`
	Telefono  *string
	Direccion *string
	Email     *string
	Notas     *string
	Activo    bool `gorm:"not null;default:true"`
	// LimiteCredito = 0 means no limit.
	LimiteCredito decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	PermiteExceso bool            `gorm:"not null;default:false"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (Cliente) TableName() string { return "clientes" }
