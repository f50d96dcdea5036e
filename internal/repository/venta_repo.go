package repository

import (
	"context"
	"time"

	"posledger/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// VentaFilter restricts ListVentas to a half-open [Desde, Hasta) window.
type VentaFilter struct {
	Desde      time.Time
	Hasta      time.Time
	MetodoPago string
	ClienteID  *uuid.UUID
	Page       int
	Limit      int
}

type VentaRepository interface {
	// CreateTx inserts the sale header together with its items.
	CreateTx(tx *gorm.DB, v *model.Venta) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Venta, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*model.Venta, error)
	List(ctx context.Context, filter VentaFilter) ([]model.Venta, int64, error)
	DB() *gorm.DB // exposes the DB for transaction creation in service layer
}

type ventaRepo struct{ db *gorm.DB }

func NewVentaRepository(db *gorm.DB) VentaRepository { return &ventaRepo{db: db} }

func (r *ventaRepo) DB() *gorm.DB { return r.db }

func (r *ventaRepo) CreateTx(tx *gorm.DB, v *model.Venta) error {
	return tx.Create(v).Error
}

func (r *ventaRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Venta, error) {
	var v model.Venta
	err := r.db.WithContext(ctx).Preload("Items.Producto").First(&v, "id = ?", id).Error
	return &v, err
}

func (r *ventaRepo) FindByIdempotencyKey(ctx context.Context, key string) (*model.Venta, error) {
	var v model.Venta
	err := r.db.WithContext(ctx).Preload("Items.Producto").Where("idempotency_key = ?", key).First(&v).Error
	return &v, err
}

func (r *ventaRepo) List(ctx context.Context, filter VentaFilter) ([]model.Venta, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.Venta{}).
		Where("fecha >= ? AND fecha < ?", filter.Desde, filter.Hasta)
	if filter.MetodoPago != "" {
		q = q.Where("metodo_pago = ?", filter.MetodoPago)
	}
	if filter.ClienteID != nil {
		q = q.Where("cliente_id = ?", *filter.ClienteID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	page, limit := paginate(filter.Page, filter.Limit, 50)

	var ventas []model.Venta
	err := q.Preload("Items.Producto").
		Order("fecha DESC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&ventas).Error
	return ventas, total, err
}
