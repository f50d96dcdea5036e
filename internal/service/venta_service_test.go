package service

import (
	"context"
	"sync"
	"testing"

	"posledger/internal/dto"
	"posledger/internal/model"
	"posledger/internal/testutil"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ventaReq(metodo string, items ...dto.ItemVentaRequest) dto.RegistrarVentaRequest {
	return dto.RegistrarVentaRequest{Items: items, MetodoPago: metodo}
}

func item(p *model.Producto, q int) dto.ItemVentaRequest {
	return dto.ItemVentaRequest{ProductoID: p.ID.String(), Cantidad: q}
}

func TestRegistrarVenta_EfectivoConCajaAbierta(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := testutil.CrearProducto(t, f.db, "Yerba 1kg", "50", "21", 10)

	_, err := f.caja.Abrir(ctx, f.operador, dto.AbrirCajaRequest{MontoInicial: d("1000")})
	require.NoError(t, err)

	venta, err := f.ventas.RegistrarVenta(ctx, f.operador, ventaReq(model.MetodoEfectivo, item(p, 2)))
	require.NoError(t, err)

	assert.True(t, d("100").Equal(venta.Subtotal))
	assert.True(t, d("21").Equal(venta.TotalIVA))
	assert.True(t, d("121.00").Equal(venta.Total), venta.Total.String())
	require.Len(t, venta.Items, 1)
	assert.Equal(t, "Yerba 1kg", venta.Items[0].Producto)
	assert.NotNil(t, venta.SesionCajaID)
	assert.Equal(t, 8, testutil.Stock(t, f.db, p.ID))

	estado, err := f.caja.Estado(ctx)
	require.NoError(t, err)
	require.True(t, estado.Abierta)
	assert.True(t, d("121").Equal(estado.Snapshot.VentasEfectivo))
	assert.True(t, d("1121").Equal(estado.Snapshot.EfectivoEstimado), estado.Snapshot.EfectivoEstimado.String())
	assert.True(t, d("121").Equal(estado.Snapshot.VentasPorMetodo[model.MetodoEfectivo]))

	var movs []model.MovimientoCaja
	require.NoError(t, f.db.Where("venta_id = ?", venta.ID).Find(&movs).Error)
	require.Len(t, movs, 1)
	assert.Equal(t, model.MovimientoVenta, movs[0].Tipo)
	assert.True(t, d("121").Equal(movs[0].Monto))

	var stockMovs []model.MovimientoStock
	require.NoError(t, f.db.Where("venta_id = ?", venta.ID).Find(&stockMovs).Error)
	require.Len(t, stockMovs, 1)
	assert.Equal(t, -2, stockMovs[0].Cantidad)
	assert.Equal(t, 10, stockMovs[0].StockAnterior)
	assert.Equal(t, 8, stockMovs[0].StockNuevo)

	assert.Equal(t, 1, f.notifier.count())
}

func TestRegistrarVenta_EfectivoSinCaja(t *testing.T) {
	f := newFixture(t)
	p := testutil.CrearProducto(t, f.db, "Azúcar", "10", "0", 5)

	venta, err := f.ventas.RegistrarVenta(context.Background(), f.operador, ventaReq(model.MetodoEfectivo, item(p, 1)))
	require.NoError(t, err)
	assert.Nil(t, venta.SesionCajaID)

	var n int64
	require.NoError(t, f.db.Model(&model.MovimientoCaja{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestRegistrarVenta_RequiereCajaAbierta(t *testing.T) {
	f := newFixture(t, func(c *VentaConfig) { c.RequiereSesionAbierta = true })
	p := testutil.CrearProducto(t, f.db, "Azúcar", "10", "0", 5)

	_, err := f.ventas.RegistrarVenta(context.Background(), f.operador, ventaReq(model.MetodoEfectivo, item(p, 1)))
	require.ErrorIs(t, err, ErrSinSesionAbierta)
	assert.Equal(t, 5, testutil.Stock(t, f.db, p.ID))
}

func TestRegistrarVenta_StockInsuficienteDetallado(t *testing.T) {
	f := newFixture(t)
	a := testutil.CrearProducto(t, f.db, "Fideos", "3", "21", 1)
	b := testutil.CrearProducto(t, f.db, "Arroz", "4", "21", 5)
	desconocido := uuid.New()

	req := ventaReq(model.MetodoEfectivo,
		item(b, 2),
		item(a, 3),
		dto.ItemVentaRequest{ProductoID: desconocido.String(), Cantidad: 1},
	)
	_, err := f.ventas.RegistrarVenta(context.Background(), f.operador, req)

	var stockErr *StockInsuficienteError
	require.ErrorAs(t, err, &stockErr)
	require.Len(t, stockErr.Items, 2)
	assert.Equal(t, a.ID, stockErr.Items[0].ProductoID)
	assert.Equal(t, "Fideos", stockErr.Items[0].Nombre)
	assert.Equal(t, 1, stockErr.Items[0].Disponible)
	assert.Equal(t, 3, stockErr.Items[0].Requerido)
	assert.Equal(t, desconocido, stockErr.Items[1].ProductoID)
	assert.Equal(t, 0, stockErr.Items[1].Disponible)

	// Nothing committed, including the line that had enough stock.
	assert.Equal(t, 5, testutil.Stock(t, f.db, b.ID))
	assert.Equal(t, 1, testutil.Stock(t, f.db, a.ID))
	var n int64
	require.NoError(t, f.db.Model(&model.Venta{}).Count(&n).Error)
	assert.Zero(t, n)
	require.NoError(t, f.db.Model(&model.MovimientoStock{}).Count(&n).Error)
	assert.Zero(t, n)
	assert.Zero(t, f.notifier.count())
}

func TestRegistrarVenta_AgregaCantidadesPorProducto(t *testing.T) {
	f := newFixture(t)
	p := testutil.CrearProducto(t, f.db, "Galletitas", "2", "0", 3)

	_, err := f.ventas.RegistrarVenta(context.Background(), f.operador,
		ventaReq(model.MetodoTarjeta, item(p, 2), item(p, 2)))

	var stockErr *StockInsuficienteError
	require.ErrorAs(t, err, &stockErr)
	require.Len(t, stockErr.Items, 1)
	assert.Equal(t, 4, stockErr.Items[0].Requerido)
	assert.Equal(t, 3, stockErr.Items[0].Disponible)
}

func TestRegistrarVenta_CuentaCorrienteRegistraDebito(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := testutil.CrearProducto(t, f.db, "Aceite", "50", "21", 10)
	c := testutil.CrearCliente(t, f.db, "Juan Pérez")

	_, err := f.caja.Abrir(ctx, f.operador, dto.AbrirCajaRequest{MontoInicial: d("100")})
	require.NoError(t, err)

	req := ventaReq(model.MetodoCuentaCorriente, item(p, 2))
	req.ClienteID = strPtr(c.ID.String())
	venta, err := f.ventas.RegistrarVenta(ctx, f.operador, req)
	require.NoError(t, err)

	var entries []model.MovimientoCuenta
	require.NoError(t, f.db.Where("cliente_id = ?", c.ID).Find(&entries).Error)
	require.Len(t, entries, 1)
	assert.Equal(t, model.CuentaDebito, entries[0].Tipo)
	assert.True(t, venta.Total.Equal(entries[0].Monto))
	require.NotNil(t, entries[0].VentaID)
	assert.Equal(t, venta.ID, entries[0].VentaID.String())

	saldo, err := f.cuentas.Saldo(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, d("121").Equal(saldo.Saldo), saldo.Saldo.String())

	// Not a cash sale: the drawer does not move.
	estado, err := f.caja.Estado(ctx)
	require.NoError(t, err)
	assert.True(t, d("100").Equal(estado.Snapshot.EfectivoEstimado))
	assert.True(t, d("121").Equal(estado.Snapshot.VentasPorMetodo[model.MetodoCuentaCorriente]))
}

func TestRegistrarVenta_Validaciones(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := testutil.CrearProducto(t, f.db, "Leche", "1", "0", 10)

	_, err := f.ventas.RegistrarVenta(ctx, f.operador, ventaReq(model.MetodoEfectivo))
	assert.ErrorIs(t, err, ErrCarritoVacio)

	_, err = f.ventas.RegistrarVenta(ctx, f.operador, ventaReq(model.MetodoCuentaCorriente, item(p, 1)))
	assert.ErrorIs(t, err, ErrClienteRequerido)

	var ve *ValidationError
	_, err = f.ventas.RegistrarVenta(ctx, f.operador, ventaReq("cheque", item(p, 1)))
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "metodo_pago", ve.Field)

	_, err = f.ventas.RegistrarVenta(ctx, f.operador, ventaReq(model.MetodoEfectivo, item(p, 0)))
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "cantidad", ve.Field)

	req := ventaReq(model.MetodoEfectivo, item(p, 1))
	req.Descuento = d("5")
	_, err = f.ventas.RegistrarVenta(ctx, f.operador, req)
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "descuento", ve.Field)

	assert.Equal(t, 10, testutil.Stock(t, f.db, p.ID))
}

func TestRegistrarVenta_ClienteInexistenteOInactivo(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := testutil.CrearProducto(t, f.db, "Pan", "2", "0", 10)

	req := ventaReq(model.MetodoCuentaCorriente, item(p, 1))
	req.ClienteID = strPtr(uuid.NewString())
	_, err := f.ventas.RegistrarVenta(ctx, f.operador, req)
	assert.ErrorIs(t, err, ErrClienteInexistente)

	c := testutil.CrearCliente(t, f.db, "Inactivo")
	require.NoError(t, f.clientes.Desactivar(ctx, c.ID))
	req.ClienteID = strPtr(c.ID.String())
	_, err = f.ventas.RegistrarVenta(ctx, f.operador, req)
	assert.ErrorIs(t, err, ErrClienteInactivo)

	assert.Equal(t, 10, testutil.Stock(t, f.db, p.ID))
}

func TestRegistrarVenta_LimiteDeCredito(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := testutil.CrearProducto(t, f.db, "Vino", "50", "21", 10)
	c := &model.Cliente{Nombre: "Con límite", Activo: true, LimiteCredito: d("200")}
	require.NoError(t, f.db.Create(c).Error)

	req := ventaReq(model.MetodoCuentaCorriente, item(p, 2))
	req.ClienteID = strPtr(c.ID.String())
	_, err := f.ventas.RegistrarVenta(ctx, f.operador, req) // saldo 121
	require.NoError(t, err)

	_, err = f.ventas.RegistrarVenta(ctx, f.operador, req) // 242 > 200
	require.ErrorIs(t, err, ErrLimiteCredito)
	assert.Equal(t, 8, testutil.Stock(t, f.db, p.ID))

	require.NoError(t, f.db.Model(c).Update("permite_exceso", true).Error)
	_, err = f.ventas.RegistrarVenta(ctx, f.operador, req)
	require.NoError(t, err)
	assert.Equal(t, 6, testutil.Stock(t, f.db, p.ID))
}

func TestRegistrarVenta_PrecioInformadoPorCliente(t *testing.T) {
	f := newFixture(t)
	p := testutil.CrearProducto(t, f.db, "Queso", "100", "21", 10)

	precio, tasa := d("80"), d("10.5")
	venta, err := f.ventas.RegistrarVenta(context.Background(), f.operador, ventaReq(model.MetodoTransferencia,
		dto.ItemVentaRequest{ProductoID: p.ID.String(), Cantidad: 1, PrecioUnitario: &precio, TasaIVA: &tasa}))
	require.NoError(t, err)

	assert.True(t, d("80").Equal(venta.Items[0].PrecioUnitario))
	assert.True(t, d("88.4").Equal(venta.Total), venta.Total.String())
}

func TestRegistrarVenta_PrecioInformadoSeRedondeaALaEscalaDeColumna(t *testing.T) {
	f := newFixture(t)
	p := testutil.CrearProducto(t, f.db, "Jamón", "100", "21", 10)

	precio, tasa := d("10.005"), d("21.005")
	venta, err := f.ventas.RegistrarVenta(context.Background(), f.operador, ventaReq(model.MetodoTarjeta,
		dto.ItemVentaRequest{ProductoID: p.ID.String(), Cantidad: 3, PrecioUnitario: &precio, TasaIVA: &tasa}))
	require.NoError(t, err)

	var items []model.VentaItem
	require.NoError(t, f.db.Where("venta_id = ?", venta.ID).Find(&items).Error)
	require.Len(t, items, 1)
	assert.True(t, d("10.01").Equal(items[0].PrecioUnitario), items[0].PrecioUnitario.String())
	assert.True(t, d("21.01").Equal(items[0].TasaIVA), items[0].TasaIVA.String())

	tot, err := CalcularTotales([]LineaPrecio{{Cantidad: items[0].Cantidad, PrecioUnitario: items[0].PrecioUnitario, TasaIVA: items[0].TasaIVA}}, decimal.Zero)
	require.NoError(t, err)
	assert.True(t, tot.Total.Equal(venta.Total), "%s != %s", tot.Total, venta.Total)
}

func TestRegistrarVenta_EfectivoTotalCeroNoMueveCaja(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := testutil.CrearProducto(t, f.db, "Muestra", "100", "21", 5)

	_, err := f.caja.Abrir(ctx, f.operador, dto.AbrirCajaRequest{MontoInicial: d("500")})
	require.NoError(t, err)

	req := ventaReq(model.MetodoEfectivo, item(p, 1))
	req.Descuento = d("121")
	venta, err := f.ventas.RegistrarVenta(ctx, f.operador, req)
	require.NoError(t, err)
	assert.True(t, venta.Total.IsZero(), venta.Total.String())
	assert.NotNil(t, venta.SesionCajaID)
	assert.Equal(t, 4, testutil.Stock(t, f.db, p.ID))

	var n int64
	require.NoError(t, f.db.Model(&model.MovimientoCaja{}).Count(&n).Error)
	assert.Zero(t, n)

	estado, err := f.caja.Estado(ctx)
	require.NoError(t, err)
	assert.True(t, d("500").Equal(estado.Snapshot.EfectivoEstimado), estado.Snapshot.EfectivoEstimado.String())
}

func TestRegistrarVenta_Idempotente(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := testutil.CrearProducto(t, f.db, "Café", "10", "0", 10)

	req := ventaReq(model.MetodoEfectivo, item(p, 3))
	req.IdempotencyKey = strPtr("pos-0001-42")

	first, err := f.ventas.RegistrarVenta(ctx, f.operador, req)
	require.NoError(t, err)
	assert.False(t, first.Repetida)

	again, err := f.ventas.RegistrarVenta(ctx, f.operador, req)
	require.NoError(t, err)
	assert.True(t, again.Repetida)
	assert.Equal(t, first.ID, again.ID)
	assert.True(t, first.Total.Equal(again.Total))

	assert.Equal(t, 7, testutil.Stock(t, f.db, p.ID))
	var n int64
	require.NoError(t, f.db.Model(&model.Venta{}).Count(&n).Error)
	assert.EqualValues(t, 1, n)
}

func TestRegistrarVenta_UltimaUnidadConcurrente(t *testing.T) {
	f := newFixture(t)
	p := testutil.CrearProducto(t, f.db, "Última", "5", "0", 1)

	const n = 8
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		ok     int
		faltan int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.ventas.RegistrarVenta(context.Background(), f.operador, ventaReq(model.MetodoEfectivo, item(p, 1)))
			mu.Lock()
			defer mu.Unlock()
			var stockErr *StockInsuficienteError
			switch {
			case err == nil:
				ok++
			case assert.ErrorAs(t, err, &stockErr):
				faltan++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, faltan)
	assert.Equal(t, 0, testutil.Stock(t, f.db, p.ID))
}

func TestRegistrarVenta_ConservacionDeStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := testutil.CrearProducto(t, f.db, "A", "1", "0", 20)
	b := testutil.CrearProducto(t, f.db, "B", "2", "0", 7)

	plan := [][2]int{{3, 1}, {5, 2}, {1, 4}, {20, 0}, {2, 1}}
	for _, q := range plan {
		var items []dto.ItemVentaRequest
		if q[0] > 0 {
			items = append(items, item(a, q[0]))
		}
		if q[1] > 0 {
			items = append(items, item(b, q[1]))
		}
		_, _ = f.ventas.RegistrarVenta(ctx, f.operador, ventaReq(model.MetodoEfectivo, items...))
	}

	for _, p := range []*model.Producto{a, b} {
		var vendido int64
		require.NoError(t, f.db.Model(&model.VentaItem{}).
			Select("COALESCE(SUM(cantidad), 0)").Where("producto_id = ?", p.ID).Scan(&vendido).Error)
		assert.Equal(t, p.Stock-int(vendido), testutil.Stock(t, f.db, p.ID), p.Nombre)
		assert.GreaterOrEqual(t, testutil.Stock(t, f.db, p.ID), 0)
	}
}

func TestObtenerVentaYListado(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := testutil.CrearProducto(t, f.db, "Té", "3", "21", 10)

	venta, err := f.ventas.RegistrarVenta(ctx, f.operador, ventaReq(model.MetodoTarjeta, item(p, 1)))
	require.NoError(t, err)

	id := uuid.MustParse(venta.ID)
	got, err := f.ventas.ObtenerVenta(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Té", got.Items[0].Producto)
	assert.True(t, venta.Total.Equal(got.Total))

	_, err = f.ventas.ObtenerVenta(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrVentaInexistente)

	list, err := f.ventas.ListVentas(ctx, dto.VentaFilter{MetodoPago: model.MetodoTarjeta, Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 1, list.Total)

	_, err = f.ventas.ListVentas(ctx, dto.VentaFilter{Desde: "14/10/2026"})
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)
}
