package repository

import (
	"context"

	"posledger/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProductoRepository is the stock ledger's data access contract. Quantity
// changes are single conditional UPDATEs so concurrent commits never read a
// stale stock value.
type ProductoRepository interface {
	Create(ctx context.Context, p *model.Producto) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Producto, error)
	ListBajoMinimo(ctx context.Context) ([]model.Producto, error)
	ListBajoMinimoPorIDs(ctx context.Context, ids []uuid.UUID) ([]model.Producto, error)

	// Used inside transactions — callers must pass the tx instance
	FindByIDsTx(tx *gorm.DB, ids []uuid.UUID) ([]model.Producto, error)
	// DescontarStockTx decrements stock by q only when at least q units are
	// on hand. It reports false when the guard did not match (short or unknown).
	DescontarStockTx(tx *gorm.DB, id uuid.UUID, q int) (bool, error)
	// AjustarStockTx applies a signed delta unless the result would be negative.
	AjustarStockTx(tx *gorm.DB, id uuid.UUID, delta int) (bool, error)
	StockTx(tx *gorm.DB, ids []uuid.UUID) (map[uuid.UUID]int, error)

	// DB exposes the underlying *gorm.DB so services can open transactions.
	DB() *gorm.DB
}

type productoRepo struct{ db *gorm.DB }

func NewProductoRepository(db *gorm.DB) ProductoRepository { return &productoRepo{db: db} }

func (r *productoRepo) DB() *gorm.DB { return r.db }

func (r *productoRepo) Create(ctx context.Context, p *model.Producto) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *productoRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Producto, error) {
	var p model.Producto
	err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error
	return &p, err
}

func (r *productoRepo) ListBajoMinimo(ctx context.Context) ([]model.Producto, error) {
	var productos []model.Producto
	err := r.db.WithContext(ctx).
		Where("stock <= stock_minimo").
		Order("nombre ASC").
		Find(&productos).Error
	return productos, err
}

func (r *productoRepo) ListBajoMinimoPorIDs(ctx context.Context, ids []uuid.UUID) ([]model.Producto, error) {
	var productos []model.Producto
	if len(ids) == 0 {
		return productos, nil
	}
	err := r.db.WithContext(ctx).
		Where("id IN ? AND stock <= stock_minimo", ids).
		Order("nombre ASC").
		Find(&productos).Error
	return productos, err
}

func (r *productoRepo) FindByIDsTx(tx *gorm.DB, ids []uuid.UUID) ([]model.Producto, error) {
	var productos []model.Producto
	if len(ids) == 0 {
		return productos, nil
	}
	err := tx.Where("id IN ?", ids).Find(&productos).Error
	return productos, err
}

func (r *productoRepo) DescontarStockTx(tx *gorm.DB, id uuid.UUID, q int) (bool, error) {
	res := tx.Model(&model.Producto{}).
		Where("id = ? AND stock >= ?", id, q).
		Update("stock", gorm.Expr("stock - ?", q))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *productoRepo) AjustarStockTx(tx *gorm.DB, id uuid.UUID, delta int) (bool, error) {
	res := tx.Model(&model.Producto{}).
		Where("id = ? AND stock + ? >= 0", id, delta).
		Update("stock", gorm.Expr("stock + ?", delta))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *productoRepo) StockTx(tx *gorm.DB, ids []uuid.UUID) (map[uuid.UUID]int, error) {
	out := make(map[uuid.UUID]int, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []struct {
		ID    uuid.UUID
		Stock int
	}
	if err := tx.Model(&model.Producto{}).Select("id, stock").Where("id IN ?", ids).Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row.Stock
	}
	return out, nil
}
