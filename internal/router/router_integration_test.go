//go:build integration

package router

// End-to-end tests against real Postgres + Redis via testcontainers.
// Run with: go test -tags integration ./internal/router/... -v

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"posledger/internal/config"
	"posledger/internal/dto"
	"posledger/internal/infra"
	"posledger/internal/middleware"
	"posledger/internal/model"
	"posledger/internal/repository"
	"posledger/internal/testutil"
	"posledger/internal/worker"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcRedis "github.com/testcontainers/testcontainers-go/modules/redis"
)

type integrationEnv struct {
	*testEnv
	cfg *config.Config
}

func setupIntegration(t *testing.T) *integrationEnv {
	t.Helper()
	bg := context.Background()

	pgC, err := tcPostgres.Run(bg, "postgres:16-alpine",
		tcPostgres.WithDatabase("posledger_test"),
		tcPostgres.WithUsername("posledger"),
		tcPostgres.WithPassword("posledger"),
		testcontainers.WithWaitStrategy(tcPostgres.BasicWaitStrategies()...),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(bg) })

	pgURL, err := pgC.ConnectionString(bg, "sslmode=disable")
	require.NoError(t, err)

	rdC, err := tcRedis.Run(bg, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdC.Terminate(bg) })

	rdURL, err := rdC.ConnectionString(bg)
	require.NoError(t, err)

	cfg := &config.Config{
		Env:                 "test",
		JWTSecret:           testSecret,
		DatabaseURL:         pgURL,
		RedisURL:            rdURL,
		WorkerPoolSize:      1,
		TerminalID:          "0001",
		CommitMaxRetries:    3,
		IdempotencyTTLHours: 1,
		LowStockAlerts:      true,
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	require.NoError(t, err)
	require.True(t, infra.IsPostgres(db))

	rdb, err := infra.NewRedis(cfg.RedisURL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })

	ctx, cancel := context.WithCancel(bg)
	t.Cleanup(cancel)

	pool := worker.NewPool(rdb)
	alertas := worker.NewStockAlertWorker(repository.NewProductoRepository(db), worker.NewRedisAlertSink(rdb))
	pool.Register(worker.JobVentaRegistrada, alertas.Process)
	pool.Start(ctx, cfg.WorkerPoolSize)

	return &integrationEnv{
		testEnv: &testEnv{
			engine:     New(ctx, cfg, db, rdb),
			db:         db,
			cajero:     token(t, middleware.RolCajero),
			supervisor: token(t, middleware.RolSupervisor),
		},
		cfg: cfg,
	}
}

func TestE2E_VentaConcurrenteUltimaUnidad(t *testing.T) {
	env := setupIntegration(t)
	prod := testutil.CrearProducto(t, env.db, "Ultima", "10.00", "21", 1)

	const n = 8
	codes := make([]int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			w := env.do(t, http.MethodPost, "/v1/ventas", map[string]any{
				"items":       []map[string]any{{"producto_id": prod.ID, "cantidad": 1}},
				"metodo_pago": "tarjeta",
			}, env.cajero)
			codes[i] = w.Code
		}(i)
	}
	wg.Wait()

	created := 0
	for _, c := range codes {
		if c == http.StatusCreated {
			created++
		} else {
			assert.Equal(t, http.StatusConflict, c)
		}
	}
	assert.Equal(t, 1, created)
	assert.Equal(t, 0, testutil.Stock(t, env.db, prod.ID))
}

func TestE2E_AperturaConcurrente(t *testing.T) {
	env := setupIntegration(t)

	const n = 5
	codes := make([]int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			codes[i] = env.do(t, http.MethodPost, "/v1/caja/abrir", map[string]any{"monto_inicial": "100"}, env.cajero).Code
		}(i)
	}
	wg.Wait()

	abiertas := 0
	for _, c := range codes {
		if c == http.StatusCreated {
			abiertas++
		}
	}
	assert.Equal(t, 1, abiertas)

	var count int64
	require.NoError(t, env.db.Model(&model.SesionCaja{}).Where("estado = ?", model.SesionAbierta).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestE2E_AlertaDeStockBajo(t *testing.T) {
	env := setupIntegration(t)
	prod := testutil.CrearProducto(t, env.db, "Leche", "10.00", "21", 3)
	require.NoError(t, env.db.Model(prod).Update("stock_minimo", 2).Error)

	w := env.do(t, http.MethodPost, "/v1/ventas", map[string]any{
		"items":       []map[string]any{{"producto_id": prod.ID, "cantidad": 2}},
		"metodo_pago": "efectivo",
	}, env.cajero)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	rdb, err := infra.NewRedis(env.cfg.RedisURL)
	require.NoError(t, err)
	defer rdb.Close()

	require.Eventually(t, func() bool {
		n, err := rdb.LLen(context.Background(), worker.AlertasStockKey).Result()
		return err == nil && n == 1
	}, 15*time.Second, 200*time.Millisecond)
}

func TestE2E_IdempotenciaEnRedis(t *testing.T) {
	env := setupIntegration(t)
	body := map[string]any{"monto_inicial": "250"}

	w := env.do(t, http.MethodPost, "/v1/caja/abrir", body, env.cajero, middleware.IdempotencyHeader, "apertura-1")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var primera dto.SesionCajaResponse
	decode(t, w, &primera)

	w = env.do(t, http.MethodPost, "/v1/caja/abrir", body, env.cajero, middleware.IdempotencyHeader, "apertura-1")
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "true", w.Header().Get(middleware.ReplayHeader))
	var segunda dto.SesionCajaResponse
	decode(t, w, &segunda)
	assert.Equal(t, primera.ID, segunda.ID)

	w = env.do(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
}
