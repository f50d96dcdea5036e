package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"posledger/internal/dto"
	"posledger/internal/model"
	"posledger/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const notasPagoPorDefecto = "Pago CC"

// CuentaService is the customer account ledger. Balances are always derived
// from the entries: SUM(DEBIT) − SUM(CREDIT).
type CuentaService interface {
	Registrar(ctx context.Context, clienteID uuid.UUID, usuarioID *uuid.UUID, req dto.MovimientoCuentaRequest) (*dto.MovimientoCuentaResponse, error)
	// RegistrarPago posts a CREDIT entry.
	RegistrarPago(ctx context.Context, clienteID uuid.UUID, usuarioID *uuid.UUID, req dto.PagoCuentaRequest) (*dto.MovimientoCuentaResponse, error)
	// EstadoDeCuenta returns the balance and the entries, each carrying the
	// running balance. orden is "asc" (default) or "desc".
	EstadoDeCuenta(ctx context.Context, clienteID uuid.UUID, orden string) (*dto.EstadoCuentaResponse, error)
	Saldo(ctx context.Context, clienteID uuid.UUID) (*dto.SaldoClienteResponse, error)
	Resumen(ctx context.Context) (*dto.ResumenCuentasResponse, error)

	// SaldoTx and RegistrarTx are used by VentaService inside the sale transaction.
	SaldoTx(tx *gorm.DB, clienteID uuid.UUID) (decimal.Decimal, error)
	RegistrarTx(tx *gorm.DB, m *model.MovimientoCuenta) error
}

type cuentaService struct {
	repo       repository.CuentaRepository
	clientes   repository.ClienteRepository
	maxRetries int
}

func NewCuentaService(repo repository.CuentaRepository, clientes repository.ClienteRepository, maxRetries int) CuentaService {
	return &cuentaService{repo: repo, clientes: clientes, maxRetries: maxRetries}
}

// ── Registrar ─────────────────────────────────────────────────────────────────

func (s *cuentaService) Registrar(ctx context.Context, clienteID uuid.UUID, usuarioID *uuid.UUID, req dto.MovimientoCuentaRequest) (*dto.MovimientoCuentaResponse, error) {
	if req.Tipo != model.CuentaDebito && req.Tipo != model.CuentaCredito {
		return nil, invalido("tipo", "debe ser DEBIT o CREDIT")
	}
	monto := req.Monto.Round(2)
	if !monto.IsPositive() {
		return nil, ErrMontoInvalido
	}
	mov := &model.MovimientoCuenta{
		ClienteID: clienteID,
		Tipo:      req.Tipo,
		Monto:     monto,
		Notas:     strings.TrimSpace(req.Notas),
		UsuarioID: usuarioID,
	}
	if req.VentaID != nil && *req.VentaID != "" {
		id, err := uuid.Parse(*req.VentaID)
		if err != nil {
			return nil, invalido("venta_id", "no es un UUID válido")
		}
		mov.VentaID = &id
	}

	var cliente *model.Cliente
	err := runTx(ctx, s.repo.DB(), s.maxRetries, func(tx *gorm.DB) error {
		var err error
		cliente, err = s.clientes.FindByIDTx(tx, clienteID, false)
		if repository.IsNotFound(err) {
			return ErrClienteInexistente
		}
		if err != nil {
			return err
		}
		return s.repo.CreateTx(tx, mov)
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("cliente_id", clienteID.String()).
		Str("tipo", mov.Tipo).
		Str("monto", mov.Monto.String()).
		Msg("movimiento de cuenta registrado")

	resp := movimientoCuentaResponse(mov)
	resp.ClienteNombre = cliente.Nombre
	return &resp, nil
}

func (s *cuentaService) RegistrarPago(ctx context.Context, clienteID uuid.UUID, usuarioID *uuid.UUID, req dto.PagoCuentaRequest) (*dto.MovimientoCuentaResponse, error) {
	notas := strings.TrimSpace(req.Notas)
	if notas == "" {
		notas = notasPagoPorDefecto
	}
	return s.Registrar(ctx, clienteID, usuarioID, dto.MovimientoCuentaRequest{
		Tipo:  model.CuentaCredito,
		Monto: req.Monto,
		Notas: notas,
	})
}

// ── EstadoDeCuenta / Saldo ────────────────────────────────────────────────────

func (s *cuentaService) EstadoDeCuenta(ctx context.Context, clienteID uuid.UUID, orden string) (*dto.EstadoCuentaResponse, error) {
	switch orden {
	case "":
		orden = "asc"
	case "asc", "desc":
	default:
		return nil, invalido("orden", "debe ser asc o desc")
	}

	var (
		cliente *model.Cliente
		saldo   decimal.Decimal
		movs    []model.MovimientoCuenta
	)
	err := runReadTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		var err error
		cliente, err = s.clientes.FindByIDTx(tx, clienteID, false)
		if repository.IsNotFound(err) {
			return ErrClienteInexistente
		}
		if err != nil {
			return err
		}
		if saldo, err = s.repo.SaldoTx(tx, clienteID); err != nil {
			return err
		}
		movs, err = s.repo.ListByClienteTx(tx, clienteID)
		return err
	})
	if err != nil {
		return nil, err
	}

	entries := make([]dto.MovimientoCuentaResponse, 0, len(movs))
	acumulado := decimal.Zero
	for i := range movs {
		acumulado = acumulado.Add(signo(&movs[i]))
		r := movimientoCuentaResponse(&movs[i])
		a := acumulado
		r.SaldoAcumulado = &a
		entries = append(entries, r)
	}
	if orden == "desc" {
		for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
			entries[i], entries[j] = entries[j], entries[i]
		}
	}

	return &dto.EstadoCuentaResponse{
		Cliente:     clienteResponse(cliente),
		Saldo:       saldo,
		Orden:       orden,
		Movimientos: entries,
	}, nil
}

func (s *cuentaService) Saldo(ctx context.Context, clienteID uuid.UUID) (*dto.SaldoClienteResponse, error) {
	var (
		cliente *model.Cliente
		saldo   decimal.Decimal
	)
	err := runReadTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		var err error
		cliente, err = s.clientes.FindByIDTx(tx, clienteID, false)
		if repository.IsNotFound(err) {
			return ErrClienteInexistente
		}
		if err != nil {
			return err
		}
		saldo, err = s.repo.SaldoTx(tx, clienteID)
		return err
	})
	if err != nil {
		return nil, err
	}

	out := &dto.SaldoClienteResponse{
		Cliente:       clienteResponse(cliente),
		Saldo:         saldo,
		LimiteCredito: cliente.LimiteCredito,
	}
	if cliente.LimiteCredito.IsPositive() {
		disp := cliente.LimiteCredito.Sub(saldo)
		out.Disponible = &disp
	}
	return out, nil
}

// ── Resumen ───────────────────────────────────────────────────────────────────
// Customers with at least one entry and a non-zero balance, highest debt
// first. Inactive customers are kept so outstanding debt stays visible.

func (s *cuentaService) Resumen(ctx context.Context) (*dto.ResumenCuentasResponse, error) {
	saldos, err := s.repo.SaldosPorCliente(ctx)
	if err != nil {
		return nil, err
	}

	out := &dto.ResumenCuentasResponse{Rows: []dto.ResumenCuentaRow{}, Total: decimal.Zero}
	for _, sc := range saldos {
		if sc.Saldo.IsZero() {
			continue
		}
		out.Rows = append(out.Rows, dto.ResumenCuentaRow{
			ClienteID: sc.ClienteID.String(),
			Cliente:   sc.Nombre,
			Activo:    sc.Activo,
			Saldo:     sc.Saldo,
		})
		out.Total = out.Total.Add(sc.Saldo)
	}
	sort.SliceStable(out.Rows, func(i, j int) bool {
		if c := out.Rows[i].Saldo.Cmp(out.Rows[j].Saldo); c != 0 {
			return c > 0
		}
		return out.Rows[i].Cliente < out.Rows[j].Cliente
	})
	return out, nil
}

// ── Sale integration ──────────────────────────────────────────────────────────

func (s *cuentaService) SaldoTx(tx *gorm.DB, clienteID uuid.UUID) (decimal.Decimal, error) {
	return s.repo.SaldoTx(tx, clienteID)
}

func (s *cuentaService) RegistrarTx(tx *gorm.DB, m *model.MovimientoCuenta) error {
	m.Monto = m.Monto.Round(2)
	if !m.Monto.IsPositive() {
		return ErrMontoInvalido
	}
	return s.repo.CreateTx(tx, m)
}

// ── Mapping ───────────────────────────────────────────────────────────────────

func signo(m *model.MovimientoCuenta) decimal.Decimal {
	if m.Tipo == model.CuentaCredito {
		return m.Monto.Neg()
	}
	return m.Monto
}

func movimientoCuentaResponse(m *model.MovimientoCuenta) dto.MovimientoCuentaResponse {
	return dto.MovimientoCuentaResponse{
		ID:        m.ID.String(),
		ClienteID: m.ClienteID.String(),
		VentaID:   uuidPtrString(m.VentaID),
		Tipo:      m.Tipo,
		Monto:     m.Monto,
		Notas:     m.Notas,
		CreatedAt: m.CreatedAt.Format(time.RFC3339),
	}
}
