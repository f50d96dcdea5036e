package worker

// stock_alert_worker.go
// Processes venta_registrada jobs: products of the sale whose stock fell to
// or below stock_minimo are published to the alertas:stock list.

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"posledger/internal/repository"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	AlertasStockKey = "alertas:stock"
	alertasMax      = 500
)

// AlertaStock is one published low-stock notice.
type AlertaStock struct {
	ProductoID  uuid.UUID `json:"producto_id"`
	Nombre      string    `json:"nombre"`
	Stock       int       `json:"stock"`
	StockMinimo int       `json:"stock_minimo"`
	VentaID     uuid.UUID `json:"venta_id"`
	CreatedAt   string    `json:"created_at"`
}

// AlertSink receives low-stock notices.
type AlertSink interface {
	Publicar(ctx context.Context, alertas []AlertaStock) error
}

// RedisAlertSink keeps the latest alerts in a capped Redis list.
type RedisAlertSink struct {
	rdb redis.Cmdable
}

func NewRedisAlertSink(rdb redis.Cmdable) *RedisAlertSink {
	return &RedisAlertSink{rdb: rdb}
}

func (s *RedisAlertSink) Publicar(ctx context.Context, alertas []AlertaStock) error {
	if len(alertas) == 0 {
		return nil
	}
	values := make([]interface{}, 0, len(alertas))
	for _, a := range alertas {
		data, err := json.Marshal(a)
		if err != nil {
			return err
		}
		values = append(values, data)
	}
	pipe := s.rdb.TxPipeline()
	pipe.LPush(ctx, AlertasStockKey, values...)
	pipe.LTrim(ctx, AlertasStockKey, 0, alertasMax-1)
	_, err := pipe.Exec(ctx)
	return err
}

// StockAlertWorker checks the products of a committed sale against their
// reorder threshold.
type StockAlertWorker struct {
	productos repository.ProductoRepository
	sink      AlertSink
}

func NewStockAlertWorker(productos repository.ProductoRepository, sink AlertSink) *StockAlertWorker {
	return &StockAlertWorker{productos: productos, sink: sink}
}

// Process is a Handler for JobVentaRegistrada.
func (w *StockAlertWorker) Process(ctx context.Context, raw json.RawMessage) error {
	var payload VentaRegistradaPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("stock_alert_worker: invalid payload: %w", err)
	}

	productos, err := w.productos.ListBajoMinimoPorIDs(ctx, payload.ProductoIDs)
	if err != nil {
		return err
	}
	if len(productos) == 0 {
		return nil
	}

	now := time.Now().UTC().Format(time.RFC3339)
	alertas := make([]AlertaStock, 0, len(productos))
	for _, p := range productos {
		alertas = append(alertas, AlertaStock{
			ProductoID:  p.ID,
			Nombre:      p.Nombre,
			Stock:       p.Stock,
			StockMinimo: p.StockMinimo,
			VentaID:     payload.VentaID,
			CreatedAt:   now,
		})
	}
	if err := w.sink.Publicar(ctx, alertas); err != nil {
		return err
	}
	log.Info().
		Str("venta_id", payload.VentaID.String()).
		Int("productos", len(alertas)).
		Msg("stock_alert_worker: alertas de stock publicadas")
	return nil
}
