package repository

import (
	"context"

	"posledger/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const saldoExpr = "COALESCE(SUM(CASE WHEN m.tipo = 'DEBIT' THEN m.monto ELSE -m.monto END), 0)"

// SaldoCliente is one row of the accounts summary.
type SaldoCliente struct {
	ClienteID uuid.UUID
	Nombre    string
	Activo    bool
	Saldo     decimal.Decimal
}

// CuentaRepository persists the append-only customer ledger. There is no
// update or delete: corrections are new entries.
type CuentaRepository interface {
	CreateTx(tx *gorm.DB, m *model.MovimientoCuenta) error
	SaldoTx(tx *gorm.DB, clienteID uuid.UUID) (decimal.Decimal, error)
	// ListByClienteTx returns entries in chronological order.
	ListByClienteTx(tx *gorm.DB, clienteID uuid.UUID) ([]model.MovimientoCuenta, error)
	// SaldosPorCliente aggregates every customer that has at least one entry.
	SaldosPorCliente(ctx context.Context) ([]SaldoCliente, error)

	DB() *gorm.DB
}

type cuentaRepo struct{ db *gorm.DB }

func NewCuentaRepository(db *gorm.DB) CuentaRepository { return &cuentaRepo{db: db} }

func (r *cuentaRepo) DB() *gorm.DB { return r.db }

func (r *cuentaRepo) CreateTx(tx *gorm.DB, m *model.MovimientoCuenta) error {
	return tx.Omit("Cliente").Create(m).Error
}

func (r *cuentaRepo) SaldoTx(tx *gorm.DB, clienteID uuid.UUID) (decimal.Decimal, error) {
	var row struct{ Saldo decimal.Decimal }
	err := tx.Table("movimientos_cuenta AS m").
		Select(saldoExpr+" AS saldo").
		Where("m.cliente_id = ?", clienteID).
		Scan(&row).Error
	if err != nil {
		return decimal.Zero, err
	}
	return row.Saldo.Round(2), nil
}

func (r *cuentaRepo) ListByClienteTx(tx *gorm.DB, clienteID uuid.UUID) ([]model.MovimientoCuenta, error) {
	var movs []model.MovimientoCuenta
	err := tx.Where("cliente_id = ?", clienteID).
		Order("created_at ASC").Order("id ASC").
		Find(&movs).Error
	return movs, err
}

func (r *cuentaRepo) SaldosPorCliente(ctx context.Context) ([]SaldoCliente, error) {
	var rows []SaldoCliente
	err := r.db.WithContext(ctx).Table("movimientos_cuenta AS m").
		Select("c.id AS cliente_id, c.nombre AS nombre, c.activo AS activo, " + saldoExpr + " AS saldo").
		Joins("JOIN clientes c ON c.id = m.cliente_id").
		Group("c.id, c.nombre, c.activo").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for i := range rows {
		rows[i].Saldo = rows[i].Saldo.Round(2)
	}
	return rows, nil
}
