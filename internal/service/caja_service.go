package service

import (
	"context"
	"errors"
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

const (
	DesvioNormal      = "normal"
	DesvioAdvertencia = "advertencia"
	DesvioCritico     = "critico"
)

type CajaService interface {
	Abrir(ctx context.Context, usuarioID uuid.UUID, req dto.AbrirCajaRequest) (*dto.SesionCajaResponse, error)
	Estado(ctx context.Context) (*dto.EstadoCajaResponse, error)
	RegistrarMovimiento(ctx context.Context, usuarioID uuid.UUID, req dto.MovimientoManualRequest) (*dto.MovimientoCajaResponse, error)
	Cerrar(ctx context.Context, usuarioID uuid.UUID, req dto.CerrarCajaRequest) (*dto.ResumenCajaResponse, error)
	// Resumen reports the given session, else the open one, else the latest.
	Resumen(ctx context.Context, sesionID *uuid.UUID) (*dto.ResumenCajaResponse, error)
	Historial(ctx context.Context, page, limit int) (*dto.HistorialCajaResponse, error)
	ListarMovimientos(ctx context.Context, sesionID uuid.UUID) ([]dto.MovimientoCajaResponse, error)

	// SesionAbiertaTx share-locks and returns the open session, or nil when the
	// drawer is closed. Called by VentaService inside the sale transaction.
	SesionAbiertaTx(tx *gorm.DB) (*model.SesionCaja, error)
	// RegistrarVentaTx appends the single "venta" movement of a cash sale.
	RegistrarVentaTx(tx *gorm.DB, sesion *model.SesionCaja, venta *model.Venta) error
}

type cajaService struct {
	repo       repository.CajaRepository
	maxRetries int
}

func NewCajaService(repo repository.CajaRepository, maxRetries int) CajaService {
	return &cajaService{repo: repo, maxRetries: maxRetries}
}

// ── Abrir ─────────────────────────────────────────────────────────────────────

func (s *cajaService) Abrir(ctx context.Context, usuarioID uuid.UUID, req dto.AbrirCajaRequest) (*dto.SesionCajaResponse, error) {
	if req.MontoInicial.IsNegative() {
		return nil, ErrMontoInvalido
	}

	// Fast path; the partial unique index settles concurrent opens.
	if _, err := s.repo.FindSesionAbierta(ctx); err == nil {
		return nil, ErrSesionYaAbierta
	} else if !repository.IsNotFound(err) {
		return nil, err
	}

	sesion := &model.SesionCaja{
		UsuarioID:    usuarioID,
		MontoInicial: req.MontoInicial.Round(2),
		Estado:       model.SesionAbierta,
		Notas:        strings.TrimSpace(req.Notas),
		OpenedAt:     time.Now().UTC(),
	}
	if err := s.repo.CreateSesion(ctx, sesion); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, ErrSesionYaAbierta
		}
		return nil, err
	}

	log.Info().
		Str("sesion_caja_id", sesion.ID.String()).
		Str("usuario_id", usuarioID.String()).
		Str("monto_inicial", sesion.MontoInicial.String()).
		Msg("caja abierta")

	resp := sesionResponse(sesion)
	return &resp, nil
}

// ── Estado ────────────────────────────────────────────────────────────────────

func (s *cajaService) Estado(ctx context.Context) (*dto.EstadoCajaResponse, error) {
	out := &dto.EstadoCajaResponse{}
	err := runReadTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		sesion, err := s.repo.FindSesionAbiertaTx(tx, repository.LockNone)
		if repository.IsNotFound(err) {
			return nil
		}
		if err != nil {
			return err
		}
		snap, err := s.snapshotTx(tx, sesion, time.Now().UTC())
		if err != nil {
			return err
		}
		resp := sesionResponse(sesion)
		out.Abierta = true
		out.Sesion = &resp
		out.Snapshot = snap
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// snapshotTx derives cash figures from the movement ledger; nothing is cached.
func (s *cajaService) snapshotTx(tx *gorm.DB, sesion *model.SesionCaja, hasta time.Time) (*dto.SnapshotCaja, error) {
	tot, err := s.repo.TotalesTx(tx, sesion.ID)
	if err != nil {
		return nil, err
	}
	porMetodo, err := s.repo.VentasPorMetodoTx(tx, sesion.OpenedAt, hasta)
	if err != nil {
		return nil, err
	}
	return &dto.SnapshotCaja{
		MontoInicial:     sesion.MontoInicial,
		Ingresos:         tot.Ingresos,
		Egresos:          tot.Egresos,
		VentasEfectivo:   tot.VentasEfectivo,
		EfectivoEstimado: efectivoEstimado(sesion.MontoInicial, tot),
		VentasPorMetodo:  porMetodo,
	}, nil
}

// efectivoEstimado = inicial + ingresos − egresos + ventas en efectivo.
func efectivoEstimado(inicial decimal.Decimal, t repository.TotalesCaja) decimal.Decimal {
	return inicial.Add(t.Ingresos).Sub(t.Egresos).Add(t.VentasEfectivo).Round(2)
}

// ── RegistrarMovimiento ───────────────────────────────────────────────────────
// Ingreso / egreso manual. Movements are immutable — no Update/Delete.

func (s *cajaService) RegistrarMovimiento(ctx context.Context, usuarioID uuid.UUID, req dto.MovimientoManualRequest) (*dto.MovimientoCajaResponse, error) {
	if req.Tipo != model.MovimientoIngreso && req.Tipo != model.MovimientoEgreso {
		return nil, invalido("tipo", "debe ser ingreso o egreso")
	}
	monto := req.Monto.Round(2)
	if !monto.IsPositive() {
		return nil, ErrMontoInvalido
	}

	mov := &model.MovimientoCaja{
		Tipo:      req.Tipo,
		Monto:     monto,
		Notas:     strings.TrimSpace(req.Notas),
		UsuarioID: &usuarioID,
	}
	err := runTx(ctx, s.repo.DB(), s.maxRetries, func(tx *gorm.DB) error {
		sesion, err := s.repo.FindSesionAbiertaTx(tx, repository.LockShare)
		if repository.IsNotFound(err) {
			return ErrSinSesionAbierta
		}
		if err != nil {
			return err
		}
		mov.SesionCajaID = sesion.ID
		return s.repo.CreateMovimientoTx(tx, mov)
	})
	if err != nil {
		return nil, err
	}

	resp := movimientoResponse(mov)
	return &resp, nil
}

// ── Cerrar ────────────────────────────────────────────────────────────────────

func (s *cajaService) Cerrar(ctx context.Context, usuarioID uuid.UUID, req dto.CerrarCajaRequest) (*dto.ResumenCajaResponse, error) {
	if req.MontoCierre.IsNegative() {
		return nil, ErrMontoInvalido
	}

	var resumen *dto.ResumenCajaResponse
	err := runTx(ctx, s.repo.DB(), s.maxRetries, func(tx *gorm.DB) error {
		sesion, err := s.repo.FindSesionAbiertaTx(tx, repository.LockUpdate)
		if repository.IsNotFound(err) {
			return ErrSinSesionAbierta
		}
		if err != nil {
			return err
		}

		tot, err := s.repo.TotalesTx(tx, sesion.ID)
		if err != nil {
			return err
		}
		esperado := efectivoEstimado(sesion.MontoInicial, tot)
		cierre := req.MontoCierre.Round(2)
		diferencia := cierre.Sub(esperado)
		clasificacion := clasificarDesvio(esperado, diferencia)
		now := time.Now().UTC()

		sesion.MontoCierre = &cierre
		sesion.MontoEsperado = &esperado
		sesion.Diferencia = &diferencia
		sesion.ClasificacionDesvio = &clasificacion
		sesion.CerradaPor = &usuarioID
		sesion.ClosedAt = &now
		if notas := strings.TrimSpace(req.Notas); notas != "" {
			sesion.Notas = notas
		}

		ok, err := s.repo.CerrarSesionTx(tx, sesion)
		if err != nil {
			return err
		}
		if !ok {
			return ErrSinSesionAbierta
		}
		sesion.Estado = model.SesionCerrada

		resumen, err = s.resumenTx(tx, sesion)
		return err
	})
	if err != nil {
		return nil, err
	}

	ev := log.Info()
	if resumen.Desvio != nil && resumen.Desvio.Clasificacion == DesvioCritico {
		ev = log.Warn()
	}
	ev.Str("sesion_caja_id", resumen.SesionCajaID).
		Str("efectivo_estimado", resumen.EfectivoEstimado.String()).
		Str("monto_cierre", req.MontoCierre.String()).
		Str("diferencia", resumen.Diferencia.String()).
		Msg("caja cerrada")

	return resumen, nil
}

// clasificarDesvio returns "normal" | "advertencia" | "critico"
// normal: |desvio| <= 1%, advertencia: <= 5%, critico: > 5%.
// Any difference against an expected amount of zero is critico.
func clasificarDesvio(esperado, diferencia decimal.Decimal) string {
	if esperado.IsZero() {
		if diferencia.IsZero() {
			return DesvioNormal
		}
		return DesvioCritico
	}
	abs := porcentajeDesvio(esperado, diferencia).Abs()
	switch {
	case abs.LessThanOrEqual(decimal.NewFromInt(1)):
		return DesvioNormal
	case abs.LessThanOrEqual(decimal.NewFromInt(5)):
		return DesvioAdvertencia
	default:
		return DesvioCritico
	}
}

func porcentajeDesvio(esperado, diferencia decimal.Decimal) decimal.Decimal {
	if esperado.IsZero() {
		return decimal.Zero
	}
	return diferencia.Div(esperado).Mul(cien).Round(2)
}

// ── Resumen / Historial ───────────────────────────────────────────────────────

func (s *cajaService) Resumen(ctx context.Context, sesionID *uuid.UUID) (*dto.ResumenCajaResponse, error) {
	var resumen *dto.ResumenCajaResponse
	err := runReadTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		sesion, err := s.elegirSesionTx(tx, sesionID)
		if err != nil {
			return err
		}
		resumen, err = s.resumenTx(tx, sesion)
		return err
	})
	if err != nil {
		return nil, err
	}
	return resumen, nil
}

func (s *cajaService) elegirSesionTx(tx *gorm.DB, sesionID *uuid.UUID) (*model.SesionCaja, error) {
	if sesionID != nil {
		sesion, err := s.repo.FindSesionByIDTx(tx, *sesionID)
		if repository.IsNotFound(err) {
			return nil, ErrSesionInexistente
		}
		return sesion, err
	}
	sesion, err := s.repo.FindSesionAbiertaTx(tx, repository.LockNone)
	if err == nil {
		return sesion, nil
	}
	if !repository.IsNotFound(err) {
		return nil, err
	}
	sesion, err = s.repo.FindUltimaSesionTx(tx)
	if repository.IsNotFound(err) {
		return nil, ErrSinSesionAbierta
	}
	return sesion, err
}

func (s *cajaService) resumenTx(tx *gorm.DB, sesion *model.SesionCaja) (*dto.ResumenCajaResponse, error) {
	hasta := time.Now().UTC()
	if sesion.ClosedAt != nil {
		hasta = *sesion.ClosedAt
	}
	snap, err := s.snapshotTx(tx, sesion, hasta)
	if err != nil {
		return nil, err
	}

	r := &dto.ResumenCajaResponse{
		SesionCajaID:     sesion.ID.String(),
		Estado:           sesion.Estado,
		OpenedAt:         sesion.OpenedAt.Format(time.RFC3339),
		ClosedAt:         timePtrString(sesion.ClosedAt),
		MontoInicial:     snap.MontoInicial,
		Ingresos:         snap.Ingresos,
		Egresos:          snap.Egresos,
		VentasPorMetodo:  snap.VentasPorMetodo,
		VentasEfectivo:   snap.VentasEfectivo,
		EfectivoEstimado: snap.EfectivoEstimado,
		MontoCierre:      sesion.MontoCierre,
		Notas:            sesion.Notas,
	}
	if sesion.MontoCierre != nil {
		diferencia := sesion.MontoCierre.Sub(snap.EfectivoEstimado)
		clasificacion := clasificarDesvio(snap.EfectivoEstimado, diferencia)
		if sesion.ClasificacionDesvio != nil {
			clasificacion = *sesion.ClasificacionDesvio
		}
		r.Diferencia = &diferencia
		r.Desvio = &dto.DesvioResponse{
			Monto:         diferencia,
			Porcentaje:    porcentajeDesvio(snap.EfectivoEstimado, diferencia),
			Clasificacion: clasificacion,
		}
	}
	return r, nil
}

func (s *cajaService) Historial(ctx context.Context, page, limit int) (*dto.HistorialCajaResponse, error) {
	sesiones, total, err := s.repo.ListCerradas(ctx, page, limit)
	if err != nil {
		return nil, err
	}
	out := &dto.HistorialCajaResponse{
		Data:  make([]dto.SesionCajaResponse, 0, len(sesiones)),
		Total: total,
		Page:  max(page, 1),
		Limit: limit,
	}
	for i := range sesiones {
		out.Data = append(out.Data, sesionResponse(&sesiones[i]))
	}
	return out, nil
}

func (s *cajaService) ListarMovimientos(ctx context.Context, sesionID uuid.UUID) ([]dto.MovimientoCajaResponse, error) {
	movs, err := s.repo.ListMovimientos(ctx, sesionID)
	if err != nil {
		return nil, err
	}
	out := make([]dto.MovimientoCajaResponse, 0, len(movs))
	for i := range movs {
		out = append(out, movimientoResponse(&movs[i]))
	}
	return out, nil
}

// ── Sale integration ──────────────────────────────────────────────────────────

func (s *cajaService) SesionAbiertaTx(tx *gorm.DB) (*model.SesionCaja, error) {
	sesion, err := s.repo.FindSesionAbiertaTx(tx, repository.LockShare)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return sesion, err
}

func (s *cajaService) RegistrarVentaTx(tx *gorm.DB, sesion *model.SesionCaja, venta *model.Venta) error {
	ventaID := venta.ID
	return s.repo.CreateMovimientoTx(tx, &model.MovimientoCaja{
		SesionCajaID: sesion.ID,
		Tipo:         model.MovimientoVenta,
		Monto:        venta.Total,
		Notas:        "Venta " + venta.PuntoDeVenta,
		VentaID:      &ventaID,
		UsuarioID:    &venta.UsuarioID,
	})
}

// ── Mapping ───────────────────────────────────────────────────────────────────

func sesionResponse(s *model.SesionCaja) dto.SesionCajaResponse {
	return dto.SesionCajaResponse{
		ID:           s.ID.String(),
		UsuarioID:    s.UsuarioID.String(),
		MontoInicial: s.MontoInicial,
		MontoCierre:  s.MontoCierre,
		Estado:       s.Estado,
		Notas:        s.Notas,
		OpenedAt:     s.OpenedAt.Format(time.RFC3339),
		ClosedAt:     timePtrString(s.ClosedAt),
	}
}

func movimientoResponse(m *model.MovimientoCaja) dto.MovimientoCajaResponse {
	return dto.MovimientoCajaResponse{
		ID:           m.ID.String(),
		SesionCajaID: m.SesionCajaID.String(),
		Tipo:         m.Tipo,
		Monto:        m.Monto,
		Notas:        m.Notas,
		VentaID:      uuidPtrString(m.VentaID),
		CreatedAt:    m.CreatedAt.Format(time.RFC3339),
	}
}

func timePtrString(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}
