package repository

import (
	"context"
	"strings"

	"posledger/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ClienteFilter struct {
	Q     string
	Todos bool
	Page  int
	Limit int
}

type ClienteRepository interface {
	Create(ctx context.Context, c *model.Cliente) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Cliente, error)
	List(ctx context.Context, filter ClienteFilter) ([]model.Cliente, int64, error)
	Update(ctx context.Context, c *model.Cliente) error
	Desactivar(ctx context.Context, id uuid.UUID) error

	// FindByIDTx reads the customer inside tx; forUpdate locks the row so
	// concurrent credit sales of the same customer serialize on it.
	FindByIDTx(tx *gorm.DB, id uuid.UUID, forUpdate bool) (*model.Cliente, error)
}

type clienteRepo struct{ db *gorm.DB }

func NewClienteRepository(db *gorm.DB) ClienteRepository { return &clienteRepo{db: db} }

func (r *clienteRepo) Create(ctx context.Context, c *model.Cliente) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *clienteRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Cliente, error) {
	var c model.Cliente
	err := r.db.WithContext(ctx).First(&c, "id = ?", id).Error
	return &c, err
}

func (r *clienteRepo) List(ctx context.Context, filter ClienteFilter) ([]model.Cliente, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.Cliente{})
	if !filter.Todos {
		q = q.Where("activo = ?", true)
	}
	if s := strings.TrimSpace(filter.Q); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		q = q.Where("LOWER(nombre) LIKE ? OR LOWER(COALESCE(documento, '')) LIKE ? OR LOWER(COALESCE(telefono, '')) LIKE ?", like, like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	page, limit := paginate(filter.Page, filter.Limit, 100)

	var clientes []model.Cliente
	err := q.Order("nombre ASC").Offset((page - 1) * limit).Limit(limit).Find(&clientes).Error
	return clientes, total, err
}

func (r *clienteRepo) Update(ctx context.Context, c *model.Cliente) error {
	return r.db.WithContext(ctx).Save(c).Error
}

func (r *clienteRepo) Desactivar(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Model(&model.Cliente{}).Where("id = ?", id).Update("activo", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *clienteRepo) FindByIDTx(tx *gorm.DB, id uuid.UUID, forUpdate bool) (*model.Cliente, error) {
	q := tx
	if forUpdate {
		q = withLock(tx, LockUpdate)
	}
	var c model.Cliente
	err := q.First(&c, "id = ?", id).Error
	return &c, err
}
