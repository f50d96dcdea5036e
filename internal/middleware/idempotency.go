package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"posledger/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	IdempotencyHeader = "Idempotency-Key"
	ReplayHeader      = "Idempotent-Replayed"

	maxIdempotentBody = 1 << 20
)

// RegistroIdempotente is what the store keeps per key: the request body hash
// and, once the request finished, the response to replay.
type RegistroIdempotente struct {
	Hash        string `json:"hash"`
	EnCurso     bool   `json:"en_curso"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

// IdempotencyStore persists idempotency records. Reservar must be atomic:
// exactly one caller wins a fresh key.
type IdempotencyStore interface {
	Obtener(ctx context.Context, key string) (*RegistroIdempotente, error)
	Reservar(ctx context.Context, key, hash string, ttl time.Duration) (bool, error)
	Guardar(ctx context.Context, key string, reg *RegistroIdempotente, ttl time.Duration) error
	Liberar(ctx context.Context, key string) error
}

// Idempotency replays the stored response of a successful mutation when the
// same Idempotency-Key arrives again with the same body, and rejects a reused
// key carrying a different body. Requests without the header pass through.
// Only 2xx responses are remembered so a failed attempt can be retried.
func Idempotency(store IdempotencyStore, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyHeader)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > 100 {
			c.AbortWithStatusJSON(http.StatusBadRequest, apierror.WithCode(apierror.CodeIdempotencia, "Idempotency-Key demasiado larga"))
			return
		}

		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxIdempotentBody+1))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, apierror.New("No se pudo leer el cuerpo"))
			return
		}
		if len(body) > maxIdempotentBody {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, apierror.WithCode(apierror.CodeCuerpoDemasiado, "El cuerpo supera 1 MiB"))
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		hash := hashBody(body)
		scope := "idem:" + c.Request.Method + ":" + c.Request.URL.Path + ":" + key
		ctx := c.Request.Context()

		prev, err := store.Obtener(ctx, scope)
		if err != nil {
			// Store down: the request still runs, only without replay protection.
			log.Warn().Err(err).Str("request_id", c.GetString(RequestIDKey)).Msg("idempotency store unavailable")
			c.Next()
			return
		}
		if prev != nil {
			responderPrevio(c, prev, hash)
			return
		}

		ok, err := store.Reservar(ctx, scope, hash, ttl)
		if err != nil {
			log.Warn().Err(err).Str("request_id", c.GetString(RequestIDKey)).Msg("idempotency store unavailable")
			c.Next()
			return
		}
		if !ok {
			c.AbortWithStatusJSON(http.StatusConflict, apierror.WithCode(apierror.CodeIdempotencia, "Hay una solicitud en curso con esa Idempotency-Key"))
			return
		}

		// The reservation is released on every path that does not store a
		// response, including a panic unwinding towards Recovery.
		guardado := false
		defer func() {
			if guardado {
				return
			}
			if err := store.Liberar(context.WithoutCancel(ctx), scope); err != nil {
				log.Warn().Err(err).Str("request_id", c.GetString(RequestIDKey)).Msg("idempotency reservation not released")
			}
		}()

		rec := &captureWriter{ResponseWriter: c.Writer}
		c.Writer = rec
		c.Next()

		status := rec.Status()
		if status < 200 || status >= 300 {
			return
		}
		reg := &RegistroIdempotente{
			Hash:        hash,
			Status:      status,
			ContentType: rec.Header().Get("Content-Type"),
			Body:        rec.buf.Bytes(),
		}
		if err := store.Guardar(context.WithoutCancel(ctx), scope, reg, ttl); err != nil {
			log.Warn().Err(err).Str("request_id", c.GetString(RequestIDKey)).Msg("idempotency record not stored")
			return
		}
		guardado = true
	}
}

func responderPrevio(c *gin.Context, prev *RegistroIdempotente, hash string) {
	switch {
	case prev.Hash != hash:
		c.AbortWithStatusJSON(http.StatusConflict, apierror.WithCode(apierror.CodeIdempotencia, "La Idempotency-Key ya se usó con otro cuerpo"))
	case prev.EnCurso:
		c.AbortWithStatusJSON(http.StatusConflict, apierror.WithCode(apierror.CodeIdempotencia, "Hay una solicitud en curso con esa Idempotency-Key"))
	default:
		c.Header(ReplayHeader, "true")
		c.Data(prev.Status, prev.ContentType, prev.Body)
		c.Abort()
	}
}

func hashBody(b []byte) string {
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:])
}

// captureWriter tees the response body so it can be stored after the handler ran.
type captureWriter struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *captureWriter) WriteString(s string) (int, error) {
	w.buf.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// ── Redis store ───────────────────────────────────────────────────────────────

type RedisIdempotencyStore struct {
	rdb redis.Cmdable
}

func NewRedisIdempotencyStore(rdb redis.Cmdable) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{rdb: rdb}
}

func (s *RedisIdempotencyStore) Obtener(ctx context.Context, key string) (*RegistroIdempotente, error) {
	raw, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var reg RegistroIdempotente
	if err := json.Unmarshal(raw, &reg); err != nil {
		return nil, err
	}
	return &reg, nil
}

func (s *RedisIdempotencyStore) Reservar(ctx context.Context, key, hash string, ttl time.Duration) (bool, error) {
	raw, err := json.Marshal(RegistroIdempotente{Hash: hash, EnCurso: true})
	if err != nil {
		return false, err
	}
	return s.rdb.SetNX(ctx, key, raw, ttl).Result()
}

func (s *RedisIdempotencyStore) Guardar(ctx context.Context, key string, reg *RegistroIdempotente, ttl time.Duration) error {
	raw, err := json.Marshal(reg)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, key, raw, ttl).Err()
}

func (s *RedisIdempotencyStore) Liberar(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, key).Err()
}

// ── In-memory store (single instance, tests) ─────────────────────────────────

type memEntry struct {
	reg    RegistroIdempotente
	expira time.Time
}

type MemoryIdempotencyStore struct {
	mu      sync.Mutex
	entries map[string]memEntry
	now     func() time.Time
}

func NewMemoryIdempotencyStore() *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{entries: make(map[string]memEntry), now: time.Now}
}

func (s *MemoryIdempotencyStore) Obtener(_ context.Context, key string) (*RegistroIdempotente, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return nil, nil
	}
	if s.now().After(e.expira) {
		delete(s.entries, key)
		return nil, nil
	}
	reg := e.reg
	return &reg, nil
}

func (s *MemoryIdempotencyStore) Reservar(_ context.Context, key, hash string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[key]; ok && !s.now().After(e.expira) {
		return false, nil
	}
	s.entries[key] = memEntry{reg: RegistroIdempotente{Hash: hash, EnCurso: true}, expira: s.now().Add(ttl)}
	return true, nil
}

func (s *MemoryIdempotencyStore) Guardar(_ context.Context, key string, reg *RegistroIdempotente, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = memEntry{reg: *reg, expira: s.now().Add(ttl)}
	return nil
}

func (s *MemoryIdempotencyStore) Liberar(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}
