package service

import (
	"context"
	"database/sql"
	"errors"

	"posledger/internal/infra"
	"posledger/internal/repository"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// runTx executes fn inside a GORM transaction. A transaction aborted by a
// serialization failure or deadlock is replayed as a whole up to maxRetries
// times; when the budget runs out ErrConflictoConcurrencia is returned.
func runTx(ctx context.Context, db *gorm.DB, maxRetries int, fn func(tx *gorm.DB) error) error {
	if maxRetries < 0 {
		maxRetries = 0
	}
	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err = db.WithContext(ctx).Transaction(fn)
		if err == nil || !repository.IsSerializationFailure(err) {
			return err
		}
		metricConflictos.Inc()
		log.Warn().Err(err).Int("attempt", attempt+1).Msg("transacción abortada por concurrencia, reintentando")
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return errors.Join(ErrConflictoConcurrencia, err)
}

// runReadTx runs fn in a read-only snapshot so several queries observe the
// same committed state.
func runReadTx(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	var opts *sql.TxOptions
	if infra.IsPostgres(db) {
		opts = &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	}
	return db.WithContext(ctx).Transaction(fn, opts)
}
