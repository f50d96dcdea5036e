package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"posledger/internal/dto"
	"posledger/internal/model"
	"posledger/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LineaStock is a requested quantity of one product.
type LineaStock struct {
	ProductoID uuid.UUID
	Cantidad   int
}

// InventarioService is the stock ledger: the authoritative quantity on hand.
type InventarioService interface {
	// ReservarYDescontar checks and decrements every line atomically in its
	// own transaction.
	ReservarYDescontar(ctx context.Context, lineas []LineaStock, motivo string) error
	// ReservarYDescontarTx is the same protocol bound to the caller's
	// transaction. On error nothing has been decremented once tx rolls back.
	ReservarYDescontarTx(tx *gorm.DB, lineas []LineaStock, ventaID *uuid.UUID, motivo string) error
	AjustarStock(ctx context.Context, productoID uuid.UUID, req dto.AjusteStockRequest) (*dto.ProductoStockResponse, error)
	ObtenerAlertas(ctx context.Context) ([]dto.AlertaStockResponse, error)
	ListarMovimientos(ctx context.Context, filter dto.MovimientoStockFilter) (*dto.MovimientoStockListResponse, error)
}

type inventarioService struct {
	repo       repository.ProductoRepository
	movRepo    repository.MovimientoStockRepository
	maxRetries int
}

func NewInventarioService(repo repository.ProductoRepository, movRepo repository.MovimientoStockRepository, maxRetries int) InventarioService {
	return &inventarioService{repo: repo, movRepo: movRepo, maxRetries: maxRetries}
}

func (s *inventarioService) ReservarYDescontar(ctx context.Context, lineas []LineaStock, motivo string) error {
	return runTx(ctx, s.repo.DB(), s.maxRetries, func(tx *gorm.DB) error {
		return s.ReservarYDescontarTx(tx, lineas, nil, motivo)
	})
}

func (s *inventarioService) ReservarYDescontarTx(tx *gorm.DB, lineas []LineaStock, ventaID *uuid.UUID, motivo string) error {
	orden, requerido, err := agruparLineas(lineas)
	if err != nil {
		return err
	}

	// Decrement in id order so two commits touching the same products always
	// lock rows in the same sequence.
	ids := append([]uuid.UUID(nil), orden...)
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	faltan := map[uuid.UUID]bool{}
	for _, id := range ids {
		ok, err := s.repo.DescontarStockTx(tx, id, requerido[id])
		if err != nil {
			return err
		}
		if !ok {
			faltan[id] = true
		}
	}

	if len(faltan) > 0 {
		return s.faltantes(tx, orden, requerido, faltan)
	}

	nuevo, err := s.repo.StockTx(tx, orden)
	if err != nil {
		return err
	}
	for _, id := range orden {
		q := requerido[id]
		mov := &model.MovimientoStock{
			ProductoID:    id,
			Tipo:          model.StockVenta,
			Cantidad:      -q,
			StockAnterior: nuevo[id] + q,
			StockNuevo:    nuevo[id],
			Motivo:        motivo,
			VentaID:       ventaID,
		}
		if err := s.movRepo.CreateTx(tx, mov); err != nil {
			return err
		}
	}
	return nil
}

// faltantes builds the itemized rejection, preserving request order.
func (s *inventarioService) faltantes(tx *gorm.DB, orden []uuid.UUID, requerido map[uuid.UUID]int, faltan map[uuid.UUID]bool) error {
	ids := make([]uuid.UUID, 0, len(faltan))
	for _, id := range orden {
		if faltan[id] {
			ids = append(ids, id)
		}
	}
	productos, err := s.repo.FindByIDsTx(tx, ids)
	if err != nil {
		return err
	}
	byID := make(map[uuid.UUID]model.Producto, len(productos))
	for _, p := range productos {
		byID[p.ID] = p
	}

	out := &StockInsuficienteError{}
	for _, id := range ids {
		p, known := byID[id]
		f := FaltanteStock{ProductoID: id, Requerido: requerido[id]}
		if known {
			f.Nombre = p.Nombre
			f.Disponible = p.Stock
		}
		out.Items = append(out.Items, f)
	}
	metricStockInsuficiente.Inc()
	return out
}

// agruparLineas sums quantities per product keeping first-appearance order.
func agruparLineas(lineas []LineaStock) ([]uuid.UUID, map[uuid.UUID]int, error) {
	if len(lineas) == 0 {
		return nil, nil, ErrCarritoVacio
	}
	orden := make([]uuid.UUID, 0, len(lineas))
	requerido := make(map[uuid.UUID]int, len(lineas))
	for _, l := range lineas {
		if l.Cantidad < 1 {
			return nil, nil, invalido("cantidad", "debe ser mayor o igual a 1")
		}
		if _, seen := requerido[l.ProductoID]; !seen {
			orden = append(orden, l.ProductoID)
		}
		requerido[l.ProductoID] += l.Cantidad
	}
	return orden, requerido, nil
}

// ── AjustarStock ──────────────────────────────────────────────────────────────

func (s *inventarioService) AjustarStock(ctx context.Context, productoID uuid.UUID, req dto.AjusteStockRequest) (*dto.ProductoStockResponse, error) {
	if req.Delta == 0 {
		return nil, invalido("delta", "no puede ser cero")
	}
	motivo := strings.TrimSpace(req.Motivo)
	if motivo == "" {
		return nil, invalido("motivo", "es obligatorio")
	}

	var prod model.Producto
	err := runTx(ctx, s.repo.DB(), s.maxRetries, func(tx *gorm.DB) error {
		ok, err := s.repo.AjustarStockTx(tx, productoID, req.Delta)
		if err != nil {
			return err
		}
		ps, err := s.repo.FindByIDsTx(tx, []uuid.UUID{productoID})
		if err != nil {
			return err
		}
		if len(ps) == 0 {
			return ErrProductoInexistente
		}
		prod = ps[0]
		if !ok {
			return &StockInsuficienteError{Items: []FaltanteStock{{
				ProductoID: prod.ID,
				Nombre:     prod.Nombre,
				Disponible: prod.Stock,
				Requerido:  -req.Delta,
			}}}
		}
		return s.movRepo.CreateTx(tx, &model.MovimientoStock{
			ProductoID:    prod.ID,
			Tipo:          model.StockAjuste,
			Cantidad:      req.Delta,
			StockAnterior: prod.Stock - req.Delta,
			StockNuevo:    prod.Stock,
			Motivo:        motivo,
		})
	})
	if err != nil {
		return nil, err
	}
	return &dto.ProductoStockResponse{
		ID:          prod.ID.String(),
		Nombre:      prod.Nombre,
		Stock:       prod.Stock,
		StockMinimo: prod.StockMinimo,
	}, nil
}

// ── ObtenerAlertas ────────────────────────────────────────────────────────────

func (s *inventarioService) ObtenerAlertas(ctx context.Context) ([]dto.AlertaStockResponse, error) {
	productos, err := s.repo.ListBajoMinimo(ctx)
	if err != nil {
		return nil, err
	}
	return alertasDesde(productos), nil
}

func alertasDesde(productos []model.Producto) []dto.AlertaStockResponse {
	alertas := make([]dto.AlertaStockResponse, 0, len(productos))
	for _, p := range productos {
		alertas = append(alertas, dto.AlertaStockResponse{
			ProductoID:  p.ID.String(),
			Nombre:      p.Nombre,
			Stock:       p.Stock,
			StockMinimo: p.StockMinimo,
		})
	}
	return alertas
}

// ── ListarMovimientos ─────────────────────────────────────────────────────────

func (s *inventarioService) ListarMovimientos(ctx context.Context, filter dto.MovimientoStockFilter) (*dto.MovimientoStockListResponse, error) {
	f := repository.MovimientoStockFilter{Tipo: filter.Tipo, Page: filter.Page, Limit: filter.Limit}
	if filter.ProductoID != "" {
		id, err := uuid.Parse(filter.ProductoID)
		if err != nil {
			return nil, invalido("producto_id", "no es un UUID válido")
		}
		f.ProductoID = &id
	}

	movs, total, err := s.movRepo.List(ctx, f)
	if err != nil {
		return nil, err
	}

	out := &dto.MovimientoStockListResponse{
		Data:  make([]dto.MovimientoStockResponse, 0, len(movs)),
		Total: total,
		Page:  max(filter.Page, 1),
		Limit: filter.Limit,
	}
	for _, m := range movs {
		r := dto.MovimientoStockResponse{
			ID:            m.ID.String(),
			ProductoID:    m.ProductoID.String(),
			Tipo:          m.Tipo,
			Cantidad:      m.Cantidad,
			StockAnterior: m.StockAnterior,
			StockNuevo:    m.StockNuevo,
			Motivo:        m.Motivo,
			VentaID:       uuidPtrString(m.VentaID),
			CreatedAt:     m.CreatedAt.Format(time.RFC3339),
		}
		if m.Producto != nil {
			r.Producto = m.Producto.Nombre
		}
		out.Data = append(out.Data, r)
	}
	return out, nil
}

func uuidPtrString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}
