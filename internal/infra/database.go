package infra

import (
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"posledger/internal/model"
)

// NewDatabase establishes a GORM connection and runs Migrate.
// DSNs starting with "file:" or "sqlite:" open an embedded SQLite database
// (single connection, used for local demos and package tests); anything else
// is handed to the pgx-backed postgres driver.
func NewDatabase(dsn string) (*gorm.DB, error) {
	dialector, embedded := dialectorFor(dsn)

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if embedded {
		// SQLite serializes writers; one connection keeps in-memory databases
		// alive and turns concurrent transactions into a queue.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(5)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func dialectorFor(dsn string) (gorm.Dialector, bool) {
	switch {
	case strings.HasPrefix(dsn, "sqlite:"):
		return sqlite.Open(strings.TrimPrefix(dsn, "sqlite:")), true
	case strings.HasPrefix(dsn, "file:"):
		return sqlite.Open(dsn), true
	default:
		return postgres.Open(dsn), false
	}
}

// Migrate creates / updates all tables, then applies the idempotent SQL
// patches that GORM cannot express through struct tags.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Categoria{},
		&model.Producto{},
		&model.MovimientoStock{},
		&model.Cliente{},
		&model.SesionCaja{},
		&model.MovimientoCaja{},
		&model.Venta{},
		&model.VentaItem{},
		&model.MovimientoCuenta{},
	); err != nil {
		return fmt.Errorf("AutoMigrate: %w", err)
	}
	return applySchemaPatches(db)
}

// applySchemaPatches runs DDL that must hold regardless of dialect. Each
// statement uses IF NOT EXISTS so re-running on a patched DB is a no-op.
func applySchemaPatches(db *gorm.DB) error {
	patches := []string{
		// At most one open drawer session at any time.
		`CREATE UNIQUE INDEX IF NOT EXISTS uni_sesiones_caja_abierta
		    ON sesiones_caja (estado) WHERE estado = 'abierta'`,
		`CREATE INDEX IF NOT EXISTS idx_ventas_sesion_metodo
		    ON ventas (sesion_caja_id, metodo_pago)`,
	}

	for _, sql := range patches {
		if err := db.Exec(sql).Error; err != nil {
			return fmt.Errorf("patch %q: %w", sql[:min(len(sql), 60)], err)
		}
	}
	return nil
}

// IsPostgres reports whether db talks to PostgreSQL. Isolation levels and
// row locks are only requested there.
func IsPostgres(db *gorm.DB) bool {
	return db.Dialector.Name() == "postgres"
}
