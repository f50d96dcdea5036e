package service

import (
	"context"
	"sync"
	"testing"

	"posledger/internal/repository"
	"posledger/internal/testutil"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// recordingNotifier captures post-commit notifications.
type recordingNotifier struct {
	mu     sync.Mutex
	ventas []uuid.UUID
}

func (n *recordingNotifier) NotificarVenta(_ context.Context, ventaID uuid.UUID, _ []uuid.UUID) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ventas = append(n.ventas, ventaID)
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.ventas)
}

type fixture struct {
	db         *gorm.DB
	inventario InventarioService
	caja       CajaService
	cuentas    CuentaService
	clientes   ClienteService
	ventas     VentaService
	notifier   *recordingNotifier
	operador   uuid.UUID
}

// newFixture wires every service over the real gorm repositories on a
// private in-memory database.
func newFixture(t *testing.T, opts ...func(*VentaConfig)) *fixture {
	t.Helper()
	db := testutil.NewDB(t)

	cfg := VentaConfig{PuntoDeVenta: "0001", MaxReintentos: 3}
	for _, o := range opts {
		o(&cfg)
	}

	productoRepo := repository.NewProductoRepository(db)
	clienteRepo := repository.NewClienteRepository(db)

	f := &fixture{db: db, notifier: &recordingNotifier{}, operador: uuid.New()}
	f.inventario = NewInventarioService(productoRepo, repository.NewMovimientoStockRepository(db), cfg.MaxReintentos)
	f.caja = NewCajaService(repository.NewCajaRepository(db), cfg.MaxReintentos)
	f.cuentas = NewCuentaService(repository.NewCuentaRepository(db), clienteRepo, cfg.MaxReintentos)
	f.clientes = NewClienteService(clienteRepo)
	f.ventas = NewVentaService(
		repository.NewVentaRepository(db),
		productoRepo,
		clienteRepo,
		f.inventario,
		f.caja,
		f.cuentas,
		f.notifier,
		cfg,
	)
	return f
}

func strPtr(s string) *string { return &s }
