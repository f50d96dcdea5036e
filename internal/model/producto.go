package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Producto is the authoritative quantity-on-hand record of the stock ledger.
// Stock is never negative at a committed state (CHECK constraint + conditional
// decrements). StockMinimo is a reorder threshold and is informational only.
type Producto struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey"`
	CodigoBarras *string         `gorm:"uniqueIndex"`
	Nombre       string          `gorm:"index;not null"`
	CategoriaID  *uuid.UUID      `gorm:"type:uuid;index"`
	Costo        decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0"`
	Precio       decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	// TasaIVA is a percentage, e.g. 21 for 21%.
	TasaIVA     decimal.Decimal `gorm:"type:decimal(5,2);not null;default:21"`
	Stock       int             `gorm:"not null;default:0;check:chk_productos_stock,stock >= 0"`
	StockMinimo int             `gorm:"not null;default:0"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Categoria *Categoria `gorm:"foreignKey:CategoriaID"`
}

func (Producto) TableName() string { return "productos" }
