package handler

import (
	"net/http"

	"posledger/internal/dto"
	"posledger/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type CuentasHandler struct{ svc service.CuentaService }

func NewCuentasHandler(svc service.CuentaService) *CuentasHandler { return &CuentasHandler{svc: svc} }

// RegistrarMovimiento godoc
// @Summary Registra un débito o crédito en la cuenta corriente
// @Tags cuentas
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param cliente_id path string true "ID del cliente"
// @Param body body dto.MovimientoCuentaRequest true "Movimiento"
// @Success 201 {object} dto.MovimientoCuentaResponse
// @Failure 404 {object} apierror.APIError
// @Failure 422 {object} apierror.APIError
// @Router /v1/cuentas/{cliente_id}/movimientos [post]
func (h *CuentasHandler) RegistrarMovimiento(c *gin.Context) {
	clienteID, ok := uuidParam(c, "cliente_id")
	if !ok {
		return
	}
	var req dto.MovimientoCuentaRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Registrar(c.Request.Context(), clienteID, operadorPtr(c), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// RegistrarPago godoc
// @Summary Registra un pago (crédito) del cliente
// @Tags cuentas
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param cliente_id path string true "ID del cliente"
// @Param body body dto.PagoCuentaRequest true "Pago"
// @Success 201 {object} dto.MovimientoCuentaResponse
// @Router /v1/cuentas/{cliente_id}/pagos [post]
func (h *CuentasHandler) RegistrarPago(c *gin.Context) {
	clienteID, ok := uuidParam(c, "cliente_id")
	if !ok {
		return
	}
	var req dto.PagoCuentaRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.RegistrarPago(c.Request.Context(), clienteID, operadorPtr(c), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// EstadoDeCuenta godoc
// @Summary Estado de cuenta con saldo acumulado por movimiento
// @Tags cuentas
// @Produce json
// @Security BearerAuth
// @Param cliente_id path string true "ID del cliente"
// @Param orden query string false "asc | desc (default asc)"
// @Success 200 {object} dto.EstadoCuentaResponse
// @Router /v1/cuentas/{cliente_id}/estado [get]
func (h *CuentasHandler) EstadoDeCuenta(c *gin.Context) {
	clienteID, ok := uuidParam(c, "cliente_id")
	if !ok {
		return
	}
	resp, err := h.svc.EstadoDeCuenta(c.Request.Context(), clienteID, c.Query("orden"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *CuentasHandler) Saldo(c *gin.Context) {
	clienteID, ok := uuidParam(c, "cliente_id")
	if !ok {
		return
	}
	resp, err := h.svc.Saldo(c.Request.Context(), clienteID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Resumen lists every customer with a non-zero balance, largest first.
func (h *CuentasHandler) Resumen(c *gin.Context) {
	resp, err := h.svc.Resumen(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func operadorPtr(c *gin.Context) *uuid.UUID {
	id := operador(c)
	if id == uuid.Nil {
		return nil
	}
	return &id
}
