package service

import (
	"context"
	"strings"

	"posledger/internal/dto"
	"posledger/internal/model"
	"posledger/internal/repository"

	"github.com/google/uuid"
)

// ClienteService keeps the customers the account ledger refers to.
// Deactivation is the only removal; entries are never touched.
type ClienteService interface {
	Crear(ctx context.Context, req dto.ClienteRequest) (*dto.ClienteResponse, error)
	Obtener(ctx context.Context, id uuid.UUID) (*dto.ClienteResponse, error)
	Listar(ctx context.Context, filter dto.ClienteFilter) ([]dto.ClienteResponse, int64, error)
	Actualizar(ctx context.Context, id uuid.UUID, req dto.ClienteRequest) (*dto.ClienteResponse, error)
	Desactivar(ctx context.Context, id uuid.UUID) error
}

type clienteService struct {
	repo repository.ClienteRepository
}

func NewClienteService(repo repository.ClienteRepository) ClienteService {
	return &clienteService{repo: repo}
}

func (s *clienteService) Crear(ctx context.Context, req dto.ClienteRequest) (*dto.ClienteResponse, error) {
	c := &model.Cliente{Activo: true}
	if err := aplicarCliente(c, req); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	resp := clienteResponse(c)
	return &resp, nil
}

func (s *clienteService) Obtener(ctx context.Context, id uuid.UUID) (*dto.ClienteResponse, error) {
	c, err := s.repo.FindByID(ctx, id)
	if repository.IsNotFound(err) {
		return nil, ErrClienteInexistente
	}
	if err != nil {
		return nil, err
	}
	resp := clienteResponse(c)
	return &resp, nil
}

func (s *clienteService) Listar(ctx context.Context, filter dto.ClienteFilter) ([]dto.ClienteResponse, int64, error) {
	clientes, total, err := s.repo.List(ctx, repository.ClienteFilter{
		Q: filter.Q, Todos: filter.Todos, Page: filter.Page, Limit: filter.Limit,
	})
	if err != nil {
		return nil, 0, err
	}
	out := make([]dto.ClienteResponse, 0, len(clientes))
	for i := range clientes {
		out = append(out, clienteResponse(&clientes[i]))
	}
	return out, total, nil
}

func (s *clienteService) Actualizar(ctx context.Context, id uuid.UUID, req dto.ClienteRequest) (*dto.ClienteResponse, error) {
	c, err := s.repo.FindByID(ctx, id)
	if repository.IsNotFound(err) {
		return nil, ErrClienteInexistente
	}
	if err != nil {
		return nil, err
	}
	if err := aplicarCliente(c, req); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, c); err != nil {
		return nil, err
	}
	resp := clienteResponse(c)
	return &resp, nil
}

func (s *clienteService) Desactivar(ctx context.Context, id uuid.UUID) error {
	err := s.repo.Desactivar(ctx, id)
	if repository.IsNotFound(err) {
		return ErrClienteInexistente
	}
	return err
}

func aplicarCliente(c *model.Cliente, req dto.ClienteRequest) error {
	nombre := strings.TrimSpace(req.Nombre)
	if nombre == "" {
		return invalido("nombre", "es obligatorio")
	}
	if req.LimiteCredito.IsNegative() {
		return invalido("limite_credito", "no puede ser negativo")
	}
	c.Nombre = nombre
	c.Documento = req.Documento
	c.Telefono = req.Telefono
	c.Direccion = req.Direccion
	c.Email = req.Email
	c.Notas = req.Notas
	c.LimiteCredito = req.LimiteCredito.Round(2)
	c.PermiteExceso = req.PermiteExceso
	return nil
}

func clienteResponse(c *model.Cliente) dto.ClienteResponse {
	return dto.ClienteResponse{
		ID:            c.ID.String(),
		Nombre:        c.Nombre,
		Documento:     c.Documento,
		Telefono:      c.Telefono,
		Direccion:     c.Direccion,
		Email:         c.Email,
		Notas:         c.Notas,
		Activo:        c.Activo,
		LimiteCredito: c.LimiteCredito,
		PermiteExceso: c.PermiteExceso,
	}
}
