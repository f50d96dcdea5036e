package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Domain errors. Handlers map them to HTTP status codes; every one of them
// is returned before any side effect is committed.
var (
	ErrCarritoVacio          = errors.New("La venta debe tener al menos un item")
	ErrClienteRequerido      = errors.New("Las ventas a cuenta corriente requieren un cliente")
	ErrClienteInexistente    = errors.New("Cliente inexistente")
	ErrClienteInactivo       = errors.New("El cliente está inactivo")
	ErrLimiteCredito         = errors.New("La venta supera el límite de crédito del cliente")
	ErrSesionYaAbierta       = errors.New("Ya hay una caja abierta.")
	ErrSinSesionAbierta      = errors.New("No hay caja abierta.")
	ErrSesionInexistente     = errors.New("Sesión de caja inexistente")
	ErrMontoInvalido         = errors.New("Monto inválido")
	ErrProductoInexistente   = errors.New("Producto inexistente")
	ErrVentaInexistente      = errors.New("Venta inexistente")
	ErrConflictoConcurrencia = errors.New("Conflicto de concurrencia, reintente la operación")
)

// ValidationError reports a malformed request field. It carries the field
// name so the envelope can point at it.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func invalido(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// FaltanteStock is one line the stock ledger could not cover.
type FaltanteStock struct {
	ProductoID uuid.UUID
	Nombre     string
	Disponible int
	Requerido  int
}

// StockInsuficienteError lists every short line of a rejected request.
type StockInsuficienteError struct {
	Items []FaltanteStock
}

func (e *StockInsuficienteError) Error() string {
	parts := make([]string, 0, len(e.Items))
	for _, it := range e.Items {
		nombre := it.Nombre
		if nombre == "" {
			nombre = it.ProductoID.String()
		}
		parts = append(parts, fmt.Sprintf("%s (disponible %d, requerido %d)", nombre, it.Disponible, it.Requerido))
	}
	return "Stock insuficiente: " + strings.Join(parts, ", ")
}
