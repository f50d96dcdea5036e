package model

import (
	"time"

	"github.com/google/uuid"
)

// Categoria classifies products. Categories are maintained by the catalog
// service; the core only reads them.
type Categoria struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Nombre    string    `gorm:"uniqueIndex;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName overrides GORM's default singular → plural logic for Spanish names.
func (Categoria) TableName() string { return "categorias" }
