package service

import (
	"context"
	"testing"

	"posledger/internal/dto"
	"posledger/internal/model"
	"posledger/internal/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReservarYDescontar(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := testutil.CrearProducto(t, f.db, "A", "1", "0", 5)
	b := testutil.CrearProducto(t, f.db, "B", "1", "0", 2)

	require.NoError(t, f.inventario.ReservarYDescontar(ctx, []LineaStock{
		{ProductoID: a.ID, Cantidad: 2},
		{ProductoID: b.ID, Cantidad: 2},
		{ProductoID: a.ID, Cantidad: 1},
	}, "consumo interno"))
	assert.Equal(t, 2, testutil.Stock(t, f.db, a.ID))
	assert.Equal(t, 0, testutil.Stock(t, f.db, b.ID))

	err := f.inventario.ReservarYDescontar(ctx, []LineaStock{
		{ProductoID: a.ID, Cantidad: 1},
		{ProductoID: b.ID, Cantidad: 1},
	}, "consumo interno")
	var stockErr *StockInsuficienteError
	require.ErrorAs(t, err, &stockErr)
	require.Len(t, stockErr.Items, 1)
	assert.Equal(t, b.ID, stockErr.Items[0].ProductoID)
	assert.Equal(t, 2, testutil.Stock(t, f.db, a.ID), "all-or-nothing")

	assert.ErrorIs(t, f.inventario.ReservarYDescontar(ctx, nil, ""), ErrCarritoVacio)
}

func TestAjustarStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := testutil.CrearProducto(t, f.db, "Harina", "1", "0", 3)

	res, err := f.inventario.AjustarStock(ctx, p.ID, dto.AjusteStockRequest{Delta: 7, Motivo: "recepción"})
	require.NoError(t, err)
	assert.Equal(t, 10, res.Stock)

	_, err = f.inventario.AjustarStock(ctx, p.ID, dto.AjusteStockRequest{Delta: -11, Motivo: "rotura"})
	var stockErr *StockInsuficienteError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 10, stockErr.Items[0].Disponible)
	assert.Equal(t, 11, stockErr.Items[0].Requerido)

	_, err = f.inventario.AjustarStock(ctx, uuid.New(), dto.AjusteStockRequest{Delta: 1, Motivo: "recepción"})
	assert.ErrorIs(t, err, ErrProductoInexistente)

	list, err := f.inventario.ListarMovimientos(ctx, dto.MovimientoStockFilter{ProductoID: p.ID.String(), Tipo: model.StockAjuste})
	require.NoError(t, err)
	require.Len(t, list.Data, 1)
	assert.Equal(t, 3, list.Data[0].StockAnterior)
	assert.Equal(t, 10, list.Data[0].StockNuevo)
	assert.Equal(t, "Harina", list.Data[0].Producto)
}

func TestObtenerAlertas(t *testing.T) {
	f := newFixture(t)
	bajo := &model.Producto{Nombre: "Bajo", Precio: d("1"), TasaIVA: d("0"), Stock: 2, StockMinimo: 5}
	ok := &model.Producto{Nombre: "Ok", Precio: d("1"), TasaIVA: d("0"), Stock: 20, StockMinimo: 5}
	require.NoError(t, f.db.Create(bajo).Error)
	require.NoError(t, f.db.Create(ok).Error)

	alertas, err := f.inventario.ObtenerAlertas(context.Background())
	require.NoError(t, err)
	require.Len(t, alertas, 1)
	assert.Equal(t, "Bajo", alertas[0].Nombre)
}

func TestStockNuncaNegativo(t *testing.T) {
	f := newFixture(t)
	p := testutil.CrearProducto(t, f.db, "X", "1", "0", 1)

	err := f.db.Model(&model.Producto{}).Where("id = ?", p.ID).Update("stock", -1).Error
	assert.Error(t, err, "check constraint rejects negative stock")
}
