package router

import (
	"context"
	"time"

	"posledger/internal/config"
	"posledger/internal/handler"
	"posledger/internal/middleware"
	"posledger/internal/repository"
	"posledger/internal/service"
	"posledger/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
// rdb may be nil: sale notifications are then skipped and idempotency
// records live in process memory. ctx bounds background housekeeping.
func New(ctx context.Context, cfg *config.Config, db *gorm.DB, rdb *redis.Client) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute, time.Minute)
	go limiter.RunPurge(ctx)

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.Metrics())
	r.Use(middleware.CORS())
	r.Use(middleware.ErrorHandler())
	r.Use(limiter.Middleware())

	// ── Infrastructure ───────────────────────────────────────────────────────
	var (
		notifier  service.VentaNotifier
		idemStore middleware.IdempotencyStore = middleware.NewMemoryIdempotencyStore()
		health                                = handler.Health(db, nil)
	)
	if rdb != nil {
		if cfg.LowStockAlerts {
			notifier = worker.NewDispatcher(rdb)
		}
		idemStore = middleware.NewRedisIdempotencyStore(rdb)
		health = handler.Health(db, rdb)
	}
	idem := middleware.Idempotency(idemStore, time.Duration(cfg.IdempotencyTTLHours)*time.Hour)

	// ── Repositories ─────────────────────────────────────────────────────────
	productoRepo := repository.NewProductoRepository(db)
	movimientoStockRepo := repository.NewMovimientoStockRepository(db)
	cajaRepo := repository.NewCajaRepository(db)
	ventaRepo := repository.NewVentaRepository(db)
	clienteRepo := repository.NewClienteRepository(db)
	cuentaRepo := repository.NewCuentaRepository(db)

	// ── Services ─────────────────────────────────────────────────────────────
	inventarioSvc := service.NewInventarioService(productoRepo, movimientoStockRepo, cfg.CommitMaxRetries)
	cajaSvc := service.NewCajaService(cajaRepo, cfg.CommitMaxRetries)
	clienteSvc := service.NewClienteService(clienteRepo)
	cuentaSvc := service.NewCuentaService(cuentaRepo, clienteRepo, cfg.CommitMaxRetries)
	ventaSvc := service.NewVentaService(ventaRepo, productoRepo, clienteRepo, inventarioSvc, cajaSvc, cuentaSvc, notifier, service.VentaConfig{
		PuntoDeVenta:          cfg.TerminalID,
		RequiereSesionAbierta: cfg.SalesRequireOpenSession,
		MaxReintentos:         cfg.CommitMaxRetries,
	})

	// ── Handlers ─────────────────────────────────────────────────────────────
	cajaH := handler.NewCajaHandler(cajaSvc)
	ventasH := handler.NewVentasHandler(ventaSvc)
	cuentasH := handler.NewCuentasHandler(cuentaSvc)
	clientesH := handler.NewClientesHandler(clienteSvc)
	inventarioH := handler.NewInventarioHandler(inventarioSvc)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	todos := middleware.RequireRole(middleware.RolCajero, middleware.RolSupervisor, middleware.RolAdministrador)
	supervisores := middleware.RequireRole(middleware.RolSupervisor, middleware.RolAdministrador)
	admin := middleware.RequireRole(middleware.RolAdministrador)

	// Protected routes
	v1 := r.Group("/v1", middleware.JWTAuth(cfg.JWTSecret))
	{
		caja := v1.Group("/caja")
		{
			caja.POST("/abrir", todos, idem, cajaH.Abrir)
			caja.GET("/estado", todos, cajaH.Estado)
			caja.POST("/movimiento", todos, idem, cajaH.RegistrarMovimiento)
			caja.POST("/cerrar", todos, idem, cajaH.Cerrar)
			caja.GET("/resumen", todos, cajaH.Resumen)
			caja.GET("/resumen/exportar", supervisores, cajaH.Exportar)
			caja.GET("/historial", supervisores, cajaH.Historial)
			caja.GET("/:id/movimientos", supervisores, cajaH.Movimientos)
		}

		// Sales carry their own idempotency key, persisted with the sale.
		v1.POST("/ventas", todos, ventasH.RegistrarVenta)
		v1.GET("/ventas", todos, ventasH.ListarVentas)
		v1.GET("/ventas/:id", todos, ventasH.ObtenerVenta)

		cuentas := v1.Group("/cuentas")
		{
			cuentas.GET("/resumen", supervisores, cuentasH.Resumen)
			cuentas.POST("/:cliente_id/movimientos", supervisores, idem, cuentasH.RegistrarMovimiento)
			cuentas.POST("/:cliente_id/pagos", todos, idem, cuentasH.RegistrarPago)
			cuentas.GET("/:cliente_id/estado", todos, cuentasH.EstadoDeCuenta)
			cuentas.GET("/:cliente_id/saldo", todos, cuentasH.Saldo)
		}

		clientes := v1.Group("/clientes")
		{
			clientes.GET("", todos, clientesH.Listar)
			clientes.GET("/:id", todos, clientesH.ObtenerPorID)
			clientes.POST("", supervisores, clientesH.Crear)
			clientes.PUT("/:id", supervisores, clientesH.Actualizar)
			clientes.DELETE("/:id", admin, clientesH.Desactivar)
		}

		inv := v1.Group("/inventario", supervisores)
		{
			inv.PATCH("/productos/:id/stock", inventarioH.AjustarStock)
			inv.GET("/alertas", inventarioH.ObtenerAlertas)
			inv.GET("/movimientos", inventarioH.ListarMovimientos)
		}
	}

	return r
}
