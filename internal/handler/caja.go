package handler

import (
	"fmt"
	"io"
	"net/http"

	"posledger/internal/apierror"
	"posledger/internal/dto"
	"posledger/internal/infra"
	"posledger/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type CajaHandler struct{ svc service.CajaService }

func NewCajaHandler(svc service.CajaService) *CajaHandler { return &CajaHandler{svc: svc} }

// Abrir godoc
// @Summary Abre una nueva sesion de caja
// @Tags caja
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.AbrirCajaRequest true "Datos de apertura"
// @Success 201 {object} dto.SesionCajaResponse
// @Failure 409 {object} apierror.APIError
// @Router /v1/caja/abrir [post]
func (h *CajaHandler) Abrir(c *gin.Context) {
	var req dto.AbrirCajaRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Abrir(c.Request.Context(), operador(c), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Estado godoc
// @Summary Estado de la caja y efectivo estimado
// @Tags caja
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.EstadoCajaResponse
// @Router /v1/caja/estado [get]
func (h *CajaHandler) Estado(c *gin.Context) {
	resp, err := h.svc.Estado(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// RegistrarMovimiento godoc
// @Summary Registra un ingreso o egreso manual en caja
// @Tags caja
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.MovimientoManualRequest true "Movimiento manual"
// @Success 201 {object} dto.MovimientoCajaResponse
// @Failure 409 {object} apierror.APIError
// @Failure 422 {object} apierror.APIError
// @Router /v1/caja/movimiento [post]
func (h *CajaHandler) RegistrarMovimiento(c *gin.Context) {
	var req dto.MovimientoManualRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.RegistrarMovimiento(c.Request.Context(), operador(c), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Cerrar godoc
// @Summary Cierra la caja con el monto contado
// @Tags caja
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.CerrarCajaRequest true "Monto contado"
// @Success 200 {object} dto.ResumenCajaResponse
// @Failure 409 {object} apierror.APIError
// @Router /v1/caja/cerrar [post]
func (h *CajaHandler) Cerrar(c *gin.Context) {
	var req dto.CerrarCajaRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Cerrar(c.Request.Context(), operador(c), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Resumen returns the summary of ?sesion_id, else the open session, else the latest one.
func (h *CajaHandler) Resumen(c *gin.Context) {
	sesionID, ok := sesionQuery(c)
	if !ok {
		return
	}
	resp, err := h.svc.Resumen(c.Request.Context(), sesionID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

type exportador struct {
	contentType string
	extension   string
	write       func(io.Writer, *dto.ResumenCajaResponse) error
}

var exportadores = map[string]exportador{
	"csv":  {"text/csv; charset=utf-8", "csv", infra.ResumenCajaCSV},
	"xlsx": {"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "xlsx", infra.ResumenCajaXLSX},
	"pdf":  {"application/pdf", "pdf", infra.ResumenCajaPDF},
}

// Exportar godoc
// @Summary Descarga el resumen de caja
// @Tags caja
// @Produce octet-stream
// @Security BearerAuth
// @Param formato query string false "csv | xlsx | pdf (default csv)"
// @Param sesion_id query string false "ID de sesion"
// @Router /v1/caja/resumen/exportar [get]
func (h *CajaHandler) Exportar(c *gin.Context) {
	exp, ok := exportadores[c.DefaultQuery("formato", "csv")]
	if !ok {
		c.JSON(http.StatusBadRequest, apierror.New("Formato invalido, use csv, xlsx o pdf"))
		return
	}
	sesionID, ok := sesionQuery(c)
	if !ok {
		return
	}
	resp, err := h.svc.Resumen(c.Request.Context(), sesionID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header("Content-Type", exp.contentType)
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="caja_%s.%s"`, resp.SesionCajaID, exp.extension))
	c.Status(http.StatusOK)
	if err := exp.write(c.Writer, resp); err != nil {
		_ = c.Error(err)
	}
}

// Historial returns a paginated list of closed cash sessions.
func (h *CajaHandler) Historial(c *gin.Context) {
	page, limit := paginacion(c, 20)
	resp, err := h.svc.Historial(c.Request.Context(), page, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *CajaHandler) Movimientos(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.ListarMovimientos(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func sesionQuery(c *gin.Context) (*uuid.UUID, bool) {
	raw := c.Query("sesion_id")
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("sesion_id invalido"))
		return nil, false
	}
	return &id, true
}
