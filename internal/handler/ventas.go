package handler

import (
	"net/http"
	"strings"

	"posledger/internal/apierror"
	"posledger/internal/dto"
	"posledger/internal/middleware"
	"posledger/internal/service"

	"github.com/gin-gonic/gin"
)

type VentasHandler struct{ svc service.VentaService }

func NewVentasHandler(svc service.VentaService) *VentasHandler { return &VentasHandler{svc: svc} }

// RegistrarVenta godoc
// @Summary      Registrar una nueva venta
// @Description  Valida, descuenta stock, registra el movimiento de caja o el débito en cuenta corriente en una sola transacción.
// @Tags         ventas
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        Idempotency-Key header string false "Clave de idempotencia"
// @Param        body body dto.RegistrarVentaRequest true "Detalle de la venta"
// @Success      201  {object} dto.VentaResponse
// @Success      200  {object} dto.VentaResponse "Venta repetida"
// @Failure      409  {object} apierror.StockError
// @Failure      422  {object} apierror.ValidationError
// @Router       /v1/ventas [post]
func (h *VentasHandler) RegistrarVenta(c *gin.Context) {
	var req dto.RegistrarVentaRequest
	if !bindAndValidate(c, &req) {
		return
	}
	if key := strings.TrimSpace(c.GetHeader(middleware.IdempotencyHeader)); key != "" && req.IdempotencyKey == nil {
		req.IdempotencyKey = &key
	}

	resp, err := h.svc.RegistrarVenta(c.Request.Context(), operador(c), req)
	if err != nil {
		writeError(c, err)
		return
	}
	if resp.Repetida {
		c.JSON(http.StatusOK, resp)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *VentasHandler) ObtenerVenta(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.ObtenerVenta(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ListarVentas godoc
// @Summary      Listar ventas
// @Description  Retorna lista paginada de ventas filtrada por rango de fechas, método de pago y cliente.
// @Tags         ventas
// @Produce      json
// @Security     BearerAuth
// @Param        desde       query string false "Fecha YYYY-MM-DD (default: hoy)"
// @Param        hasta       query string false "Fecha YYYY-MM-DD (default: desde)"
// @Param        metodo_pago query string false "efectivo | transferencia | tarjeta | cuenta_corriente"
// @Param        cliente_id  query string false "UUID del cliente"
// @Param        page        query int    false "Página (default 1)"
// @Param        limit       query int    false "Registros por página (default 50)"
// @Success      200    {object} dto.VentaListResponse
// @Failure      400    {object} apierror.APIError
// @Router       /v1/ventas [get]
func (h *VentasHandler) ListarVentas(c *gin.Context) {
	var filter dto.VentaFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
		return
	}
	resp, err := h.svc.ListVentas(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
