package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"posledger/internal/apierror"
	"posledger/internal/config"
	"posledger/internal/dto"
	"posledger/internal/middleware"
	"posledger/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testSecret = "test-secret-key"

type testEnv struct {
	engine     *gin.Engine
	db         *gorm.DB
	cajero     string
	supervisor string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Env:                 "test",
		JWTSecret:           testSecret,
		TerminalID:          "0001",
		CommitMaxRetries:    3,
		IdempotencyTTLHours: 1,
		RateLimitPerMinute:  0,
	}
	db := testutil.NewDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	return &testEnv{
		engine:     New(ctx, cfg, db, nil),
		db:         db,
		cajero:     token(t, middleware.RolCajero),
		supervisor: token(t, middleware.RolSupervisor),
	}
}

func token(t *testing.T, rol string) string {
	t.Helper()
	tok, err := middleware.FirmarToken(testSecret, uuid.NewString(), rol, rol, time.Hour)
	require.NoError(t, err)
	return tok
}

func (e *testEnv) do(t *testing.T, method, path string, body any, tok string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, dest any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), dest), w.Body.String())
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, testutil.D(want).Equal(got), "want %s, got %s", want, got)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/health", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	decode(t, w, &body)
	assert.Equal(t, "connected", body["db"])
	assert.Equal(t, "disabled", body["redis"])
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
}

func TestAuth(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/v1/caja/estado", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodGet, "/v1/caja/estado", nil, "no-es-un-token")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodGet, "/v1/caja/historial", nil, env.cajero)
	require.Equal(t, http.StatusForbidden, w.Code)
	var apiErr apierror.APIError
	decode(t, w, &apiErr)
	assert.Equal(t, apierror.CodeProhibido, apiErr.Code)

	w = env.do(t, http.MethodGet, "/v1/caja/historial", nil, env.supervisor)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCicloDeCajaConVentaEnEfectivo(t *testing.T) {
	env := newTestEnv(t)
	prod := testutil.CrearProducto(t, env.db, "Gaseosa", "100.00", "21", 10)

	w := env.do(t, http.MethodPost, "/v1/caja/abrir", map[string]any{"monto_inicial": "1000"}, env.cajero)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var sesion dto.SesionCajaResponse
	decode(t, w, &sesion)
	assert.Equal(t, "abierta", sesion.Estado)

	w = env.do(t, http.MethodPost, "/v1/caja/abrir", map[string]any{"monto_inicial": "5"}, env.cajero)
	require.Equal(t, http.StatusConflict, w.Code)
	var apiErr apierror.APIError
	decode(t, w, &apiErr)
	assert.Equal(t, apierror.CodeSesionYaAbierta, apiErr.Code)

	w = env.do(t, http.MethodPost, "/v1/ventas", map[string]any{
		"items":       []map[string]any{{"producto_id": prod.ID, "cantidad": 1}},
		"metodo_pago": "efectivo",
	}, env.cajero)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var venta dto.VentaResponse
	decode(t, w, &venta)
	assertDecimal(t, "121", venta.Total)
	require.NotNil(t, venta.SesionCajaID)
	assert.Equal(t, sesion.ID, *venta.SesionCajaID)
	assert.Equal(t, 9, testutil.Stock(t, env.db, prod.ID))

	w = env.do(t, http.MethodPost, "/v1/caja/movimiento", map[string]any{"tipo": "egreso", "monto": "21", "notas": "flete"}, env.cajero)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = env.do(t, http.MethodGet, "/v1/caja/estado", nil, env.cajero)
	require.Equal(t, http.StatusOK, w.Code)
	var estado dto.EstadoCajaResponse
	decode(t, w, &estado)
	require.True(t, estado.Abierta)
	require.NotNil(t, estado.Snapshot)
	assertDecimal(t, "121", estado.Snapshot.VentasEfectivo)
	assertDecimal(t, "1100", estado.Snapshot.EfectivoEstimado)

	w = env.do(t, http.MethodPost, "/v1/caja/cerrar", map[string]any{"monto_cierre": "1095"}, env.cajero)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resumen dto.ResumenCajaResponse
	decode(t, w, &resumen)
	assert.Equal(t, "cerrada", resumen.Estado)
	require.NotNil(t, resumen.Diferencia)
	assertDecimal(t, "-5", *resumen.Diferencia)

	w = env.do(t, http.MethodGet, "/v1/caja/estado", nil, env.cajero)
	decode(t, w, &estado)
	assert.False(t, estado.Abierta)

	w = env.do(t, http.MethodGet, "/v1/caja/resumen/exportar?formato=csv&sesion_id="+sesion.ID, nil, env.supervisor)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, w.Header().Get("Content-Disposition"), sesion.ID)
	assert.True(t, strings.HasPrefix(w.Body.String(), "concepto,valor"))

	w = env.do(t, http.MethodGet, "/v1/caja/resumen/exportar?formato=doc", nil, env.supervisor)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMovimientoSinCajaAbierta(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodPost, "/v1/caja/movimiento", map[string]any{"tipo": "ingreso", "monto": "10"}, env.cajero)
	require.Equal(t, http.StatusConflict, w.Code)
	var apiErr apierror.APIError
	decode(t, w, &apiErr)
	assert.Equal(t, apierror.CodeSinSesionAbierta, apiErr.Code)

	w = env.do(t, http.MethodPost, "/v1/caja/movimiento", map[string]any{"tipo": "retiro", "monto": "10"}, env.cajero)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestVentaStockInsuficiente(t *testing.T) {
	env := newTestEnv(t)
	a := testutil.CrearProducto(t, env.db, "Yerba", "10.00", "21", 1)
	b := testutil.CrearProducto(t, env.db, "Azucar", "10.00", "21", 5)

	w := env.do(t, http.MethodPost, "/v1/ventas", map[string]any{
		"items": []map[string]any{
			{"producto_id": a.ID, "cantidad": 2},
			{"producto_id": b.ID, "cantidad": 1},
		},
		"metodo_pago": "tarjeta",
	}, env.cajero)
	require.Equal(t, http.StatusConflict, w.Code, w.Body.String())
	var stockErr apierror.StockError
	decode(t, w, &stockErr)
	assert.Equal(t, apierror.CodeStockInsuficiente, stockErr.Code)
	require.Len(t, stockErr.Items, 1)
	assert.Equal(t, a.ID.String(), stockErr.Items[0].ProductoID)
	assert.Equal(t, 1, stockErr.Items[0].Disponible)
	assert.Equal(t, 2, stockErr.Items[0].Requerido)
	assert.Equal(t, 5, testutil.Stock(t, env.db, b.ID))
}

func TestVentaValidaciones(t *testing.T) {
	env := newTestEnv(t)
	prod := testutil.CrearProducto(t, env.db, "Agua", "10.00", "21", 5)

	w := env.do(t, http.MethodPost, "/v1/ventas", map[string]any{
		"items":       []map[string]any{{"producto_id": prod.ID, "cantidad": 1}},
		"metodo_pago": "cuenta_corriente",
	}, env.cajero)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var apiErr apierror.APIError
	decode(t, w, &apiErr)
	assert.Equal(t, apierror.CodeClienteRequerido, apiErr.Code)

	w = env.do(t, http.MethodPost, "/v1/ventas", map[string]any{"items": []any{}, "metodo_pago": "efectivo"}, env.cajero)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = env.do(t, http.MethodPost, "/v1/ventas", map[string]any{
		"items":       []map[string]any{{"producto_id": prod.ID, "cantidad": 1}},
		"metodo_pago": "efectivo",
		"cliente_id":  uuid.NewString(),
	}, env.cajero)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodPost, "/v1/ventas", "{", env.cajero)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 5, testutil.Stock(t, env.db, prod.ID))
}

func TestVentaIdempotencyKeyHeader(t *testing.T) {
	env := newTestEnv(t)
	prod := testutil.CrearProducto(t, env.db, "Fideos", "50.00", "0", 5)
	body := map[string]any{
		"items":       []map[string]any{{"producto_id": prod.ID, "cantidad": 2}},
		"metodo_pago": "transferencia",
	}

	w := env.do(t, http.MethodPost, "/v1/ventas", body, env.cajero, middleware.IdempotencyHeader, "venta-1")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var primera dto.VentaResponse
	decode(t, w, &primera)

	w = env.do(t, http.MethodPost, "/v1/ventas", body, env.cajero, middleware.IdempotencyHeader, "venta-1")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var segunda dto.VentaResponse
	decode(t, w, &segunda)
	assert.Equal(t, primera.ID, segunda.ID)
	assert.True(t, segunda.Repetida)
	assert.Equal(t, 3, testutil.Stock(t, env.db, prod.ID))

	w = env.do(t, http.MethodGet, "/v1/ventas/"+primera.ID, nil, env.cajero)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/v1/ventas/"+uuid.NewString(), nil, env.cajero)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodGet, "/v1/ventas/no-uuid", nil, env.cajero)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCuentaCorrientePorHTTP(t *testing.T) {
	env := newTestEnv(t)
	prod := testutil.CrearProducto(t, env.db, "Queso", "100.00", "0", 10)

	w := env.do(t, http.MethodPost, "/v1/clientes", map[string]any{"nombre": "Almacen Sur"}, env.supervisor)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var cliente dto.ClienteResponse
	decode(t, w, &cliente)

	w = env.do(t, http.MethodPost, "/v1/ventas", map[string]any{
		"items":       []map[string]any{{"producto_id": prod.ID, "cantidad": 3}},
		"metodo_pago": "cuenta_corriente",
		"cliente_id":  cliente.ID,
	}, env.cajero)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	pago := map[string]any{"monto": "120"}
	w = env.do(t, http.MethodPost, "/v1/cuentas/"+cliente.ID+"/pagos", pago, env.cajero, middleware.IdempotencyHeader, "pago-1")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	primero := w.Body.String()

	w = env.do(t, http.MethodPost, "/v1/cuentas/"+cliente.ID+"/pagos", pago, env.cajero, middleware.IdempotencyHeader, "pago-1")
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "true", w.Header().Get(middleware.ReplayHeader))
	assert.JSONEq(t, primero, w.Body.String())

	w = env.do(t, http.MethodPost, "/v1/cuentas/"+cliente.ID+"/pagos", map[string]any{"monto": "1"}, env.cajero, middleware.IdempotencyHeader, "pago-1")
	require.Equal(t, http.StatusConflict, w.Code)
	var apiErr apierror.APIError
	decode(t, w, &apiErr)
	assert.Equal(t, apierror.CodeIdempotencia, apiErr.Code)

	w = env.do(t, http.MethodGet, "/v1/cuentas/"+cliente.ID+"/estado?orden=desc", nil, env.cajero)
	require.Equal(t, http.StatusOK, w.Code)
	var estado dto.EstadoCuentaResponse
	decode(t, w, &estado)
	assertDecimal(t, "180", estado.Saldo)
	require.Len(t, estado.Movimientos, 2)
	assert.Equal(t, "CREDIT", estado.Movimientos[0].Tipo)
	require.NotNil(t, estado.Movimientos[0].SaldoAcumulado)
	assertDecimal(t, "180", *estado.Movimientos[0].SaldoAcumulado)

	w = env.do(t, http.MethodGet, "/v1/cuentas/"+cliente.ID+"/estado?orden=mal", nil, env.cajero)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = env.do(t, http.MethodGet, "/v1/cuentas/resumen", nil, env.supervisor)
	require.Equal(t, http.StatusOK, w.Code)
	var resumen dto.ResumenCuentasResponse
	decode(t, w, &resumen)
	require.Len(t, resumen.Rows, 1)
	assert.Equal(t, cliente.ID, resumen.Rows[0].ClienteID)

	w = env.do(t, http.MethodPost, "/v1/cuentas/"+cliente.ID+"/pagos", map[string]any{"monto": "0"}, env.cajero)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	decode(t, w, &apiErr)
	assert.Equal(t, apierror.CodeMontoInvalido, apiErr.Code)

	w = env.do(t, http.MethodPost, "/v1/cuentas/"+uuid.NewString()+"/pagos", map[string]any{"monto": "5"}, env.cajero)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAjusteDeStockPorHTTP(t *testing.T) {
	env := newTestEnv(t)
	prod := testutil.CrearProducto(t, env.db, "Harina", "10.00", "21", 2)
	path := "/v1/inventario/productos/" + prod.ID.String() + "/stock"

	w := env.do(t, http.MethodPatch, path, map[string]any{"delta": 3, "motivo": "recuento"}, env.cajero)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodPatch, path, map[string]any{"delta": 3, "motivo": "recuento"}, env.supervisor)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 5, testutil.Stock(t, env.db, prod.ID))

	w = env.do(t, http.MethodPatch, path, map[string]any{"delta": -9, "motivo": "rotura"}, env.supervisor)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(t, http.MethodGet, "/v1/inventario/movimientos?producto_id="+prod.ID.String(), nil, env.supervisor)
	require.Equal(t, http.StatusOK, w.Code)
	var movs dto.MovimientoStockListResponse
	decode(t, w, &movs)
	assert.EqualValues(t, 1, movs.Total)
}
