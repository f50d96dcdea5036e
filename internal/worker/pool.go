package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	QueueVentas = "jobs:ventas"

	JobVentaRegistrada = "venta_registrada"

	// MaxAttempts is how many times a job handler runs before the job is
	// moved to the dead letter queue.
	MaxAttempts = 3
)

// Job is the generic envelope for all async tasks.
type Job struct {
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload"`
	Attempts int             `json:"attempts"`
}

// VentaRegistradaPayload is enqueued after every committed sale.
type VentaRegistradaPayload struct {
	VentaID     uuid.UUID   `json:"venta_id"`
	ProductoIDs []uuid.UUID `json:"producto_ids"`
}

// Handler processes one job payload. A returned error schedules a retry.
type Handler func(ctx context.Context, payload json.RawMessage) error

// Dispatcher enqueues async jobs into Redis lists.
// The worker pool dequeues them via BRPOP.
type Dispatcher struct {
	rdb redis.Cmdable
}

func NewDispatcher(rdb redis.Cmdable) *Dispatcher {
	return &Dispatcher{rdb: rdb}
}

// NotificarVenta pushes a venta_registrada job to Redis.
func (d *Dispatcher) NotificarVenta(ctx context.Context, ventaID uuid.UUID, productoIDs []uuid.UUID) error {
	return d.enqueue(ctx, QueueVentas, JobVentaRegistrada, VentaRegistradaPayload{
		VentaID:     ventaID,
		ProductoIDs: productoIDs,
	})
}

func (d *Dispatcher) enqueue(ctx context.Context, queue, jobType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(Job{Type: jobType, Payload: data})
	if err != nil {
		return err
	}
	return d.rdb.LPush(ctx, queue, encoded).Err()
}

// Pool consumes QueueVentas with a fixed number of goroutines.
type Pool struct {
	rdb      *redis.Client
	handlers map[string]Handler
}

func NewPool(rdb *redis.Client) *Pool {
	return &Pool{rdb: rdb, handlers: map[string]Handler{}}
}

// Register binds a handler to a job type. Call before Start.
func (p *Pool) Register(jobType string, h Handler) {
	p.handlers[jobType] = h
}

// Start launches numWorkers goroutines consuming the queue.
// Each goroutine blocks on BRPOP — zero CPU when idle.
func (p *Pool) Start(ctx context.Context, numWorkers int) {
	for i := 0; i < numWorkers; i++ {
		go p.run(ctx, i)
	}
	log.Info().Msgf("worker pool started with %d workers", numWorkers)
}

func (p *Pool) run(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			log.Info().Msgf("worker %d shutting down", id)
			return
		default:
			// Blocking pop — waits up to 5s then loops to check ctx
			result, err := p.rdb.BRPop(ctx, 5*time.Second, QueueVentas).Result()
			if err != nil {
				if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
					log.Error().Err(err).Int("worker", id).Msg("brpop failed")
					time.Sleep(time.Second)
				}
				continue // timeout or context cancelled
			}
			if len(result) < 2 {
				continue
			}
			p.process(ctx, result[0], result[1])
		}
	}
}

// outcome is what must happen to a job after one handler run.
type outcome struct {
	requeue []byte
	dlq     *DLQEntry
}

func (p *Pool) process(ctx context.Context, queue, raw string) {
	out := p.handle(ctx, queue, raw)
	switch {
	case out.requeue != nil:
		if err := p.rdb.LPush(ctx, queue, out.requeue).Err(); err != nil {
			log.Error().Err(err).Str("queue", queue).Msg("failed to requeue job")
		}
	case out.dlq != nil:
		SendToDLQ(ctx, p.rdb, *out.dlq)
	}
}

// handle runs the job once and decides between done, retry and DLQ.
func (p *Pool) handle(ctx context.Context, queue, raw string) outcome {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		log.Error().Str("queue", queue).Err(err).Msg("failed to unmarshal job")
		return outcome{dlq: newDLQEntry(queue, "", json.RawMessage(`null`), "invalid envelope: "+err.Error(), 0)}
	}

	h, ok := p.handlers[job.Type]
	if !ok {
		return outcome{dlq: newDLQEntry(queue, job.Type, job.Payload, "no handler registered", job.Attempts)}
	}

	log.Debug().Str("type", job.Type).Str("queue", queue).Int("attempt", job.Attempts+1).Msg("processing job")
	err := h(ctx, job.Payload)
	if err == nil {
		return outcome{}
	}

	job.Attempts++
	if job.Attempts >= MaxAttempts {
		return outcome{dlq: newDLQEntry(queue, job.Type, job.Payload, err.Error(), job.Attempts)}
	}
	log.Warn().Err(err).Str("type", job.Type).Int("attempts", job.Attempts).Msg("job failed, retrying")
	encoded, mErr := json.Marshal(job)
	if mErr != nil {
		return outcome{dlq: newDLQEntry(queue, job.Type, job.Payload, mErr.Error(), job.Attempts)}
	}
	return outcome{requeue: encoded}
}
