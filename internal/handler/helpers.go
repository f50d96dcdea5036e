package handler

import (
	"errors"
	"net/http"
	"reflect"
	"strconv"

	"posledger/internal/apierror"
	"posledger/internal/middleware"
	"posledger/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

func init() {
	// Register decimal.Decimal as a numeric type so that validator tags like
	// min=0, gt=0, required work without panicking ("Bad field type decimal.Decimal").
	validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if v, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := v.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
}

// bindAndValidate binds JSON body and runs go-playground/validator tags.
// Returns false and writes the error response if validation fails;
// the caller should return immediately without writing another response.
func bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("JSON invalido: "+err.Error()))
		return false
	}
	if err := validate.Struct(req); err != nil {
		fields := make(map[string]string)
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				fields[fe.Field()] = fe.Tag()
			}
		}
		c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(fields))
		return false
	}
	return true
}

// statusByErr maps domain sentinels to their HTTP status and envelope code.
var statusByErr = []struct {
	err    error
	status int
	code   string
}{
	{service.ErrCarritoVacio, http.StatusUnprocessableEntity, apierror.CodeValidacion},
	{service.ErrClienteRequerido, http.StatusUnprocessableEntity, apierror.CodeClienteRequerido},
	{service.ErrMontoInvalido, http.StatusUnprocessableEntity, apierror.CodeMontoInvalido},
	{service.ErrSesionYaAbierta, http.StatusConflict, apierror.CodeSesionYaAbierta},
	{service.ErrSinSesionAbierta, http.StatusConflict, apierror.CodeSinSesionAbierta},
	{service.ErrLimiteCredito, http.StatusConflict, apierror.CodeLimiteCredito},
	{service.ErrClienteInactivo, http.StatusConflict, apierror.CodeClienteInactivo},
	{service.ErrConflictoConcurrencia, http.StatusConflict, apierror.CodeConflicto},
	{service.ErrClienteInexistente, http.StatusNotFound, apierror.CodeNoEncontrado},
	{service.ErrSesionInexistente, http.StatusNotFound, apierror.CodeNoEncontrado},
	{service.ErrProductoInexistente, http.StatusNotFound, apierror.CodeNoEncontrado},
	{service.ErrVentaInexistente, http.StatusNotFound, apierror.CodeNoEncontrado},
}

// writeError answers a service error. Errors nobody mapped go to the
// ErrorHandler middleware, which logs them and answers a generic 500.
func writeError(c *gin.Context, err error) {
	var verr *service.ValidationError
	if errors.As(err, &verr) {
		fields := map[string]string{}
		if verr.Field != "" {
			fields[verr.Field] = verr.Reason
		}
		c.JSON(http.StatusUnprocessableEntity, &apierror.ValidationError{
			Code:   apierror.CodeValidacion,
			Detail: verr.Error(),
			Fields: fields,
		})
		return
	}

	var serr *service.StockInsuficienteError
	if errors.As(err, &serr) {
		items := make([]apierror.FaltanteItem, 0, len(serr.Items))
		for _, it := range serr.Items {
			items = append(items, apierror.FaltanteItem{
				ProductoID: it.ProductoID.String(),
				Nombre:     it.Nombre,
				Disponible: it.Disponible,
				Requerido:  it.Requerido,
			})
		}
		c.JSON(http.StatusConflict, apierror.NewStock(items))
		return
	}

	for _, m := range statusByErr {
		if errors.Is(err, m.err) {
			c.JSON(m.status, apierror.WithCode(m.code, m.err.Error()))
			return
		}
	}

	_ = c.Error(err)
}

// uuidParam parses a path parameter, answering 400 when malformed.
func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("ID invalido"))
		return uuid.Nil, false
	}
	return id, true
}

// operador returns the user id carried by the JWT, uuid.Nil when absent.
func operador(c *gin.Context) uuid.UUID {
	claims := middleware.GetClaims(c)
	if claims == nil {
		return uuid.Nil
	}
	id, _ := uuid.Parse(claims.UserID)
	return id
}

func paginacion(c *gin.Context, defLimit int) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defLimit)))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = defLimit
	}
	return page, limit
}
