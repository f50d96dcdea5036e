// Package apierror provides standardized error response structures for the API.
// All errors returned to clients go through this package to ensure consistency
// and to prevent leaking internal details (stack traces, DB errors, etc.).
package apierror

// Stable machine-readable codes carried in the envelope.
const (
	CodeValidacion          = "validacion"
	CodeStockInsuficiente   = "stock_insuficiente"
	CodeClienteRequerido    = "cliente_requerido"
	CodeSesionYaAbierta     = "sesion_ya_abierta"
	CodeSinSesionAbierta    = "sin_sesion_abierta"
	CodeMontoInvalido       = "monto_invalido"
	CodeNoEncontrado        = "no_encontrado"
	CodeConflicto           = "conflicto"
	CodeLimiteCredito       = "limite_credito"
	CodeClienteInactivo     = "cliente_inactivo"
	CodeIdempotencia        = "idempotencia"
	CodeNoAutorizado        = "no_autorizado"
	CodeProhibido           = "prohibido"
	CodeDemasiadasSolicitud = "demasiadas_solicitudes"
	CodeCuerpoDemasiado     = "cuerpo_demasiado_grande"
	CodeInterno             = "interno"
)

// APIError is the canonical error envelope for all 4xx/5xx HTTP responses.
type APIError struct {
	Code   string `json:"code,omitempty"`
	Detail string `json:"detail"`
}

func New(msg string) *APIError {
	return &APIError{Detail: msg}
}

func WithCode(code, msg string) *APIError {
	return &APIError{Code: code, Detail: msg}
}

// Validation wraps multiple field errors.
type ValidationError struct {
	Code   string            `json:"code"`
	Detail string            `json:"detail"`
	Fields map[string]string `json:"fields"`
}

func NewValidation(fields map[string]string) *ValidationError {
	return &ValidationError{Code: CodeValidacion, Detail: "Error de validacion", Fields: fields}
}

// FaltanteItem is one short line of a rejected sale.
type FaltanteItem struct {
	ProductoID string `json:"producto_id"`
	Nombre     string `json:"nombre"`
	Disponible int    `json:"disponible"`
	Requerido  int    `json:"requerido"`
}

// StockError lists every line that could not be covered, not just the first.
type StockError struct {
	Code   string         `json:"code"`
	Detail string         `json:"detail"`
	Items  []FaltanteItem `json:"items"`
}

func NewStock(items []FaltanteItem) *StockError {
	return &StockError{Code: CodeStockInsuficiente, Detail: "Stock insuficiente", Items: items}
}
