package service

import (
	"context"
	"strings"
	"time"

	"posledger/internal/dto"
	"posledger/internal/model"
	"posledger/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// VentaNotifier receives committed sales for async follow-up work.
// Failures never affect the committed sale.
type VentaNotifier interface {
	NotificarVenta(ctx context.Context, ventaID uuid.UUID, productoIDs []uuid.UUID) error
}

// VentaConfig carries the commit policies read from configuration.
type VentaConfig struct {
	PuntoDeVenta          string
	RequiereSesionAbierta bool
	MaxReintentos         int
}

type VentaService interface {
	RegistrarVenta(ctx context.Context, usuarioID uuid.UUID, req dto.RegistrarVentaRequest) (*dto.VentaResponse, error)
	ObtenerVenta(ctx context.Context, id uuid.UUID) (*dto.VentaResponse, error)
	ListVentas(ctx context.Context, filter dto.VentaFilter) (*dto.VentaListResponse, error)
}

type ventaService struct {
	repo       repository.VentaRepository
	productos  repository.ProductoRepository
	clientes   repository.ClienteRepository
	inventario InventarioService
	caja       CajaService
	cuentas    CuentaService
	notifier   VentaNotifier
	cfg        VentaConfig
}

func NewVentaService(
	repo repository.VentaRepository,
	productos repository.ProductoRepository,
	clientes repository.ClienteRepository,
	inventario InventarioService,
	caja CajaService,
	cuentas CuentaService,
	notifier VentaNotifier,
	cfg VentaConfig,
) VentaService {
	return &ventaService{
		repo:       repo,
		productos:  productos,
		clientes:   clientes,
		inventario: inventario,
		caja:       caja,
		cuentas:    cuentas,
		notifier:   notifier,
		cfg:        cfg,
	}
}

// itemPedido is a validated cart line.
type itemPedido struct {
	productoID uuid.UUID
	cantidad   int
	precio     *decimal.Decimal
	tasa       *decimal.Decimal
}

// ── RegistrarVenta ────────────────────────────────────────────────────────────
// Commit protocol, all inside one transaction:
//   1. Validate the request (no side effects yet)
//   2. Resolve idempotency key against committed sales
//   3. BEGIN TX: lock customer / session, check-and-decrement stock,
//      snapshot prices, recompute totals, persist venta+items,
//      DEBIT for cuenta corriente, "venta" cash movement for efectivo
//   4. COMMIT
//   5. (async) notify the stock alert worker

func (s *ventaService) RegistrarVenta(ctx context.Context, usuarioID uuid.UUID, req dto.RegistrarVentaRequest) (*dto.VentaResponse, error) {
	items, clienteID, err := validarVenta(req)
	if err != nil {
		return nil, err
	}

	var key *string
	if req.IdempotencyKey != nil {
		if k := strings.TrimSpace(*req.IdempotencyKey); k != "" {
			key = &k
			if prev, err := s.repetida(ctx, k); prev != nil || err != nil {
				return prev, err
			}
		}
	}

	puntoDeVenta := strings.TrimSpace(req.PuntoDeVenta)
	if puntoDeVenta == "" {
		puntoDeVenta = s.cfg.PuntoDeVenta
	}

	var (
		venta   model.Venta
		nombres map[uuid.UUID]string
	)
	txErr := runTx(ctx, s.repo.DB(), s.cfg.MaxReintentos, func(tx *gorm.DB) error {
		venta = model.Venta{
			ID:             uuid.New(),
			Fecha:          time.Now().UTC(),
			UsuarioID:      usuarioID,
			ClienteID:      clienteID,
			MetodoPago:     req.MetodoPago,
			PuntoDeVenta:   puntoDeVenta,
			IdempotencyKey: key,
		}

		cliente, err := s.clienteTx(tx, clienteID, req.MetodoPago == model.MetodoCuentaCorriente)
		if err != nil {
			return err
		}

		sesion, err := s.caja.SesionAbiertaTx(tx)
		if err != nil {
			return err
		}
		if sesion == nil && s.cfg.RequiereSesionAbierta {
			return ErrSinSesionAbierta
		}
		if sesion != nil {
			venta.SesionCajaID = &sesion.ID
		}

		lineas := make([]LineaStock, len(items))
		for i, it := range items {
			lineas[i] = LineaStock{ProductoID: it.productoID, Cantidad: it.cantidad}
		}
		if err := s.inventario.ReservarYDescontarTx(tx, lineas, &venta.ID, "Venta "+puntoDeVenta); err != nil {
			return err
		}

		// Every product exists past this point: unknown ids fail the stock check.
		nombres, err = s.snapshotItems(tx, &venta, items, req.Descuento)
		if err != nil {
			return err
		}

		if cliente != nil && venta.MetodoPago == model.MetodoCuentaCorriente {
			if err := s.verificarLimite(tx, cliente, venta.Total); err != nil {
				return err
			}
		}

		if err := s.repo.CreateTx(tx, &venta); err != nil {
			return err
		}

		switch {
		case venta.MetodoPago == model.MetodoCuentaCorriente:
			ventaID := venta.ID
			if err := s.cuentas.RegistrarTx(tx, &model.MovimientoCuenta{
				ClienteID: *clienteID,
				VentaID:   &ventaID,
				Tipo:      model.CuentaDebito,
				Monto:     venta.Total,
				Notas:     "Venta a cuenta corriente",
				UsuarioID: &usuarioID,
			}); err != nil {
				return err
			}
		case venta.MetodoPago == model.MetodoEfectivo && sesion != nil && venta.Total.IsPositive():
			if err := s.caja.RegistrarVentaTx(tx, sesion, &venta); err != nil {
				return err
			}
		}
		return nil
	})
	if txErr != nil {
		// A concurrent retry with the same key won the race.
		if key != nil && repository.IsUniqueViolation(txErr) {
			if prev, err := s.repetida(ctx, *key); prev != nil || err != nil {
				return prev, err
			}
		}
		return nil, txErr
	}

	metricVentas.WithLabelValues(venta.MetodoPago).Inc()
	log.Info().
		Str("venta_id", venta.ID.String()).
		Str("metodo_pago", venta.MetodoPago).
		Str("total", venta.Total.String()).
		Int("items", len(venta.Items)).
		Msg("venta registrada")

	if s.notifier != nil {
		ids := make([]uuid.UUID, 0, len(venta.Items))
		for _, it := range venta.Items {
			ids = append(ids, it.ProductoID)
		}
		if err := s.notifier.NotificarVenta(ctx, venta.ID, ids); err != nil {
			log.Warn().Err(err).Str("venta_id", venta.ID.String()).Msg("no se pudo encolar venta_registrada")
		}
	}

	resp := ventaResponse(&venta, nombres)
	return &resp, nil
}

func (s *ventaService) repetida(ctx context.Context, key string) (*dto.VentaResponse, error) {
	prev, err := s.repo.FindByIdempotencyKey(ctx, key)
	if repository.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	resp := ventaResponse(prev, nil)
	resp.Repetida = true
	return &resp, nil
}

// clienteTx loads the referenced customer. Credit sales lock the row so
// concurrent sales of the same customer see each other's DEBIT.
func (s *ventaService) clienteTx(tx *gorm.DB, clienteID *uuid.UUID, credito bool) (*model.Cliente, error) {
	if clienteID == nil {
		return nil, nil
	}
	cliente, err := s.clientes.FindByIDTx(tx, *clienteID, credito)
	if repository.IsNotFound(err) {
		return nil, ErrClienteInexistente
	}
	if err != nil {
		return nil, err
	}
	if !cliente.Activo {
		return nil, ErrClienteInactivo
	}
	return cliente, nil
}

func (s *ventaService) verificarLimite(tx *gorm.DB, cliente *model.Cliente, total decimal.Decimal) error {
	if !cliente.LimiteCredito.IsPositive() || cliente.PermiteExceso {
		return nil
	}
	saldo, err := s.cuentas.SaldoTx(tx, cliente.ID)
	if err != nil {
		return err
	}
	if saldo.Add(total).GreaterThan(cliente.LimiteCredito) {
		return ErrLimiteCredito
	}
	return nil
}

// snapshotItems freezes price and tax rate per line and fills the totals.
func (s *ventaService) snapshotItems(tx *gorm.DB, venta *model.Venta, items []itemPedido, descuento decimal.Decimal) (map[uuid.UUID]string, error) {
	ids := make([]uuid.UUID, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.productoID)
	}
	productos, err := s.productos.FindByIDsTx(tx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]model.Producto, len(productos))
	nombres := make(map[uuid.UUID]string, len(productos))
	for _, p := range productos {
		byID[p.ID] = p
		nombres[p.ID] = p.Nombre
	}

	precios := make([]LineaPrecio, len(items))
	for i, it := range items {
		p, ok := byID[it.productoID]
		if !ok {
			return nil, ErrProductoInexistente
		}
		precio, tasa := p.Precio, p.TasaIVA
		// Overrides are kept at column scale so the stored lines reproduce the total.
		if it.precio != nil {
			precio = it.precio.Round(2)
		}
		if it.tasa != nil {
			tasa = it.tasa.Round(2)
		}
		precios[i] = LineaPrecio{Cantidad: it.cantidad, PrecioUnitario: precio, TasaIVA: tasa}
	}

	tot, err := CalcularTotales(precios, descuento)
	if err != nil {
		return nil, err
	}
	if venta.MetodoPago == model.MetodoCuentaCorriente && !tot.Total.IsPositive() {
		return nil, invalido("total", "una venta a cuenta corriente debe tener total positivo")
	}

	venta.Items = make([]model.VentaItem, len(items))
	for i, it := range items {
		venta.Items[i] = model.VentaItem{
			VentaID:        venta.ID,
			ProductoID:     it.productoID,
			Cantidad:       it.cantidad,
			PrecioUnitario: precios[i].PrecioUnitario,
			TasaIVA:        precios[i].TasaIVA,
			Total:          tot.Lineas[i],
		}
	}
	venta.Subtotal = tot.Subtotal
	venta.TotalIVA = tot.TotalIVA
	venta.Descuento = tot.Descuento
	venta.Total = tot.Total
	return nombres, nil
}

// validarVenta rejects malformed carts before any storage access.
func validarVenta(req dto.RegistrarVentaRequest) ([]itemPedido, *uuid.UUID, error) {
	if len(req.Items) == 0 {
		return nil, nil, ErrCarritoVacio
	}
	if !metodoValido(req.MetodoPago) {
		return nil, nil, invalido("metodo_pago", "método de pago desconocido")
	}
	if req.Descuento.IsNegative() {
		return nil, nil, invalido("descuento", "no puede ser negativo")
	}

	items := make([]itemPedido, 0, len(req.Items))
	for _, it := range req.Items {
		id, err := uuid.Parse(it.ProductoID)
		if err != nil {
			return nil, nil, invalido("producto_id", "no es un UUID válido")
		}
		if it.Cantidad < 1 {
			return nil, nil, invalido("cantidad", "debe ser mayor o igual a 1")
		}
		if it.PrecioUnitario != nil && it.PrecioUnitario.IsNegative() {
			return nil, nil, invalido("precio_unitario", "no puede ser negativo")
		}
		if it.TasaIVA != nil && (it.TasaIVA.IsNegative() || it.TasaIVA.GreaterThan(cien)) {
			return nil, nil, invalido("tasa_iva", "debe estar entre 0 y 100")
		}
		items = append(items, itemPedido{productoID: id, cantidad: it.Cantidad, precio: it.PrecioUnitario, tasa: it.TasaIVA})
	}

	var clienteID *uuid.UUID
	if req.ClienteID != nil && strings.TrimSpace(*req.ClienteID) != "" {
		id, err := uuid.Parse(strings.TrimSpace(*req.ClienteID))
		if err != nil {
			return nil, nil, invalido("cliente_id", "no es un UUID válido")
		}
		clienteID = &id
	}
	if req.MetodoPago == model.MetodoCuentaCorriente && clienteID == nil {
		return nil, nil, ErrClienteRequerido
	}
	return items, clienteID, nil
}

func metodoValido(m string) bool {
	for _, v := range model.MetodosPago {
		if v == m {
			return true
		}
	}
	return false
}

// ── ObtenerVenta / ListVentas ─────────────────────────────────────────────────

func (s *ventaService) ObtenerVenta(ctx context.Context, id uuid.UUID) (*dto.VentaResponse, error) {
	v, err := s.repo.FindByID(ctx, id)
	if repository.IsNotFound(err) {
		return nil, ErrVentaInexistente
	}
	if err != nil {
		return nil, err
	}
	resp := ventaResponse(v, nil)
	return &resp, nil
}

func (s *ventaService) ListVentas(ctx context.Context, filter dto.VentaFilter) (*dto.VentaListResponse, error) {
	desde, hasta, err := rangoFechas(filter.Desde, filter.Hasta)
	if err != nil {
		return nil, err
	}
	f := repository.VentaFilter{
		Desde:      desde,
		Hasta:      hasta,
		MetodoPago: filter.MetodoPago,
		Page:       filter.Page,
		Limit:      filter.Limit,
	}
	if filter.ClienteID != "" {
		id, err := uuid.Parse(filter.ClienteID)
		if err != nil {
			return nil, invalido("cliente_id", "no es un UUID válido")
		}
		f.ClienteID = &id
	}

	ventas, total, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, err
	}
	out := &dto.VentaListResponse{
		Data:  make([]dto.VentaResponse, 0, len(ventas)),
		Total: total,
		Page:  max(filter.Page, 1),
		Limit: filter.Limit,
	}
	for i := range ventas {
		out.Data = append(out.Data, ventaResponse(&ventas[i], nil))
	}
	return out, nil
}

// rangoFechas turns YYYY-MM-DD bounds into a UTC [desde, hasta+1d) window.
// Empty desde means today; empty hasta means desde.
func rangoFechas(desdeStr, hastaStr string) (time.Time, time.Time, error) {
	const layout = "2006-01-02"
	desde := time.Now().UTC().Truncate(24 * time.Hour)
	if desdeStr != "" {
		t, err := time.Parse(layout, desdeStr)
		if err != nil {
			return time.Time{}, time.Time{}, invalido("desde", "formato esperado YYYY-MM-DD")
		}
		desde = t
	}
	hasta := desde
	if hastaStr != "" {
		t, err := time.Parse(layout, hastaStr)
		if err != nil {
			return time.Time{}, time.Time{}, invalido("hasta", "formato esperado YYYY-MM-DD")
		}
		hasta = t
	}
	if hasta.Before(desde) {
		return time.Time{}, time.Time{}, invalido("hasta", "es anterior a desde")
	}
	return desde, hasta.AddDate(0, 0, 1), nil
}

func ventaResponse(v *model.Venta, nombres map[uuid.UUID]string) dto.VentaResponse {
	resp := dto.VentaResponse{
		ID:           v.ID.String(),
		Fecha:        v.Fecha.Format(time.RFC3339),
		UsuarioID:    v.UsuarioID.String(),
		ClienteID:    uuidPtrString(v.ClienteID),
		SesionCajaID: uuidPtrString(v.SesionCajaID),
		MetodoPago:   v.MetodoPago,
		Items:        make([]dto.ItemVentaResponse, 0, len(v.Items)),
		Subtotal:     v.Subtotal,
		TotalIVA:     v.TotalIVA,
		Descuento:    v.Descuento,
		Total:        v.Total,
		PuntoDeVenta: v.PuntoDeVenta,
	}
	for _, it := range v.Items {
		nombre := nombres[it.ProductoID]
		if nombre == "" && it.Producto != nil {
			nombre = it.Producto.Nombre
		}
		resp.Items = append(resp.Items, dto.ItemVentaResponse{
			ProductoID:     it.ProductoID.String(),
			Producto:       nombre,
			Cantidad:       it.Cantidad,
			PrecioUnitario: it.PrecioUnitario,
			TasaIVA:        it.TasaIVA,
			Total:          it.Total,
		})
	}
	return resp
}
