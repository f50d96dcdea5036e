package repository

import (
	"context"
	"time"

	"posledger/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TotalesCaja aggregates the movements of one session.
type TotalesCaja struct {
	Ingresos       decimal.Decimal
	Egresos        decimal.Decimal
	VentasEfectivo decimal.Decimal
}

type CajaRepository interface {
	CreateSesion(ctx context.Context, s *model.SesionCaja) error
	FindSesionAbierta(ctx context.Context) (*model.SesionCaja, error)
	ListCerradas(ctx context.Context, page, limit int) ([]model.SesionCaja, int64, error)
	ListMovimientos(ctx context.Context, sesionCajaID uuid.UUID) ([]model.MovimientoCaja, error)

	// Used inside transactions — callers must pass the tx instance
	// FindSesionAbiertaTx reads the open row under the given lock strength
	// (LockNone, LockShare, LockUpdate) where the dialect supports it.
	FindSesionAbiertaTx(tx *gorm.DB, lock string) (*model.SesionCaja, error)
	FindSesionByIDTx(tx *gorm.DB, id uuid.UUID) (*model.SesionCaja, error)
	FindUltimaSesionTx(tx *gorm.DB) (*model.SesionCaja, error)
	CreateMovimientoTx(tx *gorm.DB, m *model.MovimientoCaja) error
	// CerrarSesionTx flips estado only if the row is still open; false means
	// someone else closed it first.
	CerrarSesionTx(tx *gorm.DB, s *model.SesionCaja) (bool, error)
	TotalesTx(tx *gorm.DB, sesionCajaID uuid.UUID) (TotalesCaja, error)
	VentasPorMetodoTx(tx *gorm.DB, desde, hasta time.Time) (map[string]decimal.Decimal, error)

	// DB exposes the underlying *gorm.DB so services can open transactions.
	DB() *gorm.DB
}

type cajaRepo struct{ db *gorm.DB }

func NewCajaRepository(db *gorm.DB) CajaRepository { return &cajaRepo{db: db} }

func (r *cajaRepo) DB() *gorm.DB { return r.db }

func (r *cajaRepo) CreateSesion(ctx context.Context, s *model.SesionCaja) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *cajaRepo) FindSesionAbierta(ctx context.Context) (*model.SesionCaja, error) {
	var s model.SesionCaja
	err := r.db.WithContext(ctx).Where("estado = ?", model.SesionAbierta).First(&s).Error
	return &s, err
}

func (r *cajaRepo) ListCerradas(ctx context.Context, page, limit int) ([]model.SesionCaja, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.SesionCaja{}).Where("estado = ?", model.SesionCerrada)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	page, limit = paginate(page, limit, 20)

	var sesiones []model.SesionCaja
	err := q.Order("closed_at DESC").Offset((page - 1) * limit).Limit(limit).Find(&sesiones).Error
	return sesiones, total, err
}

func (r *cajaRepo) ListMovimientos(ctx context.Context, sesionCajaID uuid.UUID) ([]model.MovimientoCaja, error) {
	var movs []model.MovimientoCaja
	err := r.db.WithContext(ctx).Where("sesion_caja_id = ?", sesionCajaID).Order("created_at ASC").Find(&movs).Error
	return movs, err
}

func (r *cajaRepo) FindSesionAbiertaTx(tx *gorm.DB, lock string) (*model.SesionCaja, error) {
	var s model.SesionCaja
	err := withLock(tx, lock).Where("estado = ?", model.SesionAbierta).First(&s).Error
	return &s, err
}

func (r *cajaRepo) FindSesionByIDTx(tx *gorm.DB, id uuid.UUID) (*model.SesionCaja, error) {
	var s model.SesionCaja
	err := tx.First(&s, "id = ?", id).Error
	return &s, err
}

func (r *cajaRepo) FindUltimaSesionTx(tx *gorm.DB) (*model.SesionCaja, error) {
	var s model.SesionCaja
	err := tx.Order("opened_at DESC").First(&s).Error
	return &s, err
}

func (r *cajaRepo) CreateMovimientoTx(tx *gorm.DB, m *model.MovimientoCaja) error {
	return tx.Create(m).Error
}

func (r *cajaRepo) CerrarSesionTx(tx *gorm.DB, s *model.SesionCaja) (bool, error) {
	res := tx.Model(&model.SesionCaja{}).
		Where("id = ? AND estado = ?", s.ID, model.SesionAbierta).
		Updates(map[string]interface{}{
			"estado":               model.SesionCerrada,
			"monto_cierre":         s.MontoCierre,
			"monto_esperado":       s.MontoEsperado,
			"diferencia":           s.Diferencia,
			"clasificacion_desvio": s.ClasificacionDesvio,
			"cerrada_por":          s.CerradaPor,
			"closed_at":            s.ClosedAt,
			"notas":                s.Notas,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *cajaRepo) TotalesTx(tx *gorm.DB, sesionCajaID uuid.UUID) (TotalesCaja, error) {
	var rows []struct {
		Tipo  string
		Total decimal.Decimal
	}
	// SUM over decimal columns comes back as REAL on SQLite, so totals are
	// re-rounded to cents after scanning.
	err := tx.Model(&model.MovimientoCaja{}).
		Select("tipo, COALESCE(SUM(monto), 0) AS total").
		Where("sesion_caja_id = ?", sesionCajaID).
		Group("tipo").
		Scan(&rows).Error
	if err != nil {
		return TotalesCaja{}, err
	}

	t := TotalesCaja{Ingresos: decimal.Zero, Egresos: decimal.Zero, VentasEfectivo: decimal.Zero}
	for _, row := range rows {
		v := row.Total.Round(2)
		switch row.Tipo {
		case model.MovimientoIngreso:
			t.Ingresos = v
		case model.MovimientoEgreso:
			t.Egresos = v
		case model.MovimientoVenta:
			t.VentasEfectivo = v
		}
	}
	return t, nil
}

func (r *cajaRepo) VentasPorMetodoTx(tx *gorm.DB, desde, hasta time.Time) (map[string]decimal.Decimal, error) {
	var rows []struct {
		MetodoPago string
		Total      decimal.Decimal
	}
	err := tx.Model(&model.Venta{}).
		Select("metodo_pago, COALESCE(SUM(total), 0) AS total").
		Where("fecha >= ? AND fecha <= ?", desde, hasta).
		Group("metodo_pago").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make(map[string]decimal.Decimal, len(model.MetodosPago))
	for _, m := range model.MetodosPago {
		out[m] = decimal.Zero
	}
	for _, row := range rows {
		out[row.MetodoPago] = row.Total.Round(2)
	}
	return out, nil
}

// Row lock strengths. Sales share-lock the open session so they run in
// parallel; closing takes the exclusive lock and waits for them.
const (
	LockNone   = ""
	LockShare  = "SHARE"
	LockUpdate = "UPDATE"
)

// withLock adds FOR SHARE / FOR UPDATE on dialects that support row locks.
func withLock(tx *gorm.DB, lock string) *gorm.DB {
	if lock == LockNone || tx.Dialector.Name() != "postgres" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: lock})
}
