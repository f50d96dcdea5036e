package dto

import "github.com/shopspring/decimal"

type ClienteRequest struct {
	Nombre        string          `json:"nombre"         validate:"required,min=1,max=200"`
	Documento     *string         `json:"documento"      validate:"omitempty,max=64"`
	Telefono      *string         `json:"telefono"       validate:"omitempty,max=64"`
	Direccion     *string         `json:"direccion"      validate:"omitempty,max=255"`
	Email         *string         `json:"email"          validate:"omitempty,email"`
	Notas         *string         `json:"notas"`
	LimiteCredito decimal.Decimal `json:"limite_credito" validate:"min=0"`
	PermiteExceso bool            `json:"permite_exceso"`
}

// ClienteFilter is bound from query string of GET /v1/clientes.
type ClienteFilter struct {
	Q     string `form:"q"`
	Todos bool   `form:"todos"` // include inactive customers
	Page  int    `form:"page,default=1"`
	Limit int    `form:"limit,default=100"`
}

type ClienteResponse struct {
	ID            string          `json:"id"`
	Nombre        string          `json:"nombre"`
	Documento     *string         `json:"documento"`
	Telefono      *string         `json:"telefono"`
	Direccion     *string         `json:"direccion"`
	Email         *string         `json:"email"`
	Notas         *string         `json:"notas"`
	Activo        bool            `json:"activo"`
	LimiteCredito decimal.Decimal `json:"limite_credito"`
	PermiteExceso bool            `json:"permite_exceso"`
}
