// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"posledger/internal/infra"
	"posledger/internal/model"
)

// NewDB returns a migrated in-memory SQLite database private to the test.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", uuid.NewString())
	db, err := infra.NewDatabase(dsn)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// D parses a decimal literal, failing loudly on typos.
func D(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func CrearProducto(t testing.TB, db *gorm.DB, nombre, precio, iva string, stock int) *model.Producto {
	t.Helper()
	p := &model.Producto{
		Nombre:  nombre,
		Precio:  D(precio),
		TasaIVA: D(iva),
		Stock:   stock,
	}
	require.NoError(t, db.Create(p).Error)
	return p
}

func CrearCliente(t testing.TB, db *gorm.DB, nombre string) *model.Cliente {
	t.Helper()
	c := &model.Cliente{Nombre: nombre, Activo: true}
	require.NoError(t, db.Create(c).Error)
	return c
}

// Stock reads the current on-hand quantity straight from the table.
func Stock(t testing.TB, db *gorm.DB, id uuid.UUID) int {
	t.Helper()
	var p model.Producto
	require.NoError(t, db.First(&p, "id = ?", id).Error)
	return p.Stock
}
