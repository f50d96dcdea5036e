package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func authEngine(secret string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/caja", JWTAuth(secret), RequireRole(RolSupervisor), func(c *gin.Context) {
		c.String(http.StatusOK, GetClaims(c).UserID)
	})
	return r
}

func get(r *gin.Engine, tok string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/caja", nil)
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTAuth(t *testing.T) {
	r := authEngine("s3cret")

	tok, err := FirmarToken("s3cret", "u-1", "ana", RolSupervisor, time.Hour)
	require.NoError(t, err)
	w := get(r, tok)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u-1", w.Body.String())

	assert.Equal(t, http.StatusUnauthorized, get(r, "").Code)

	otro, err := FirmarToken("otra-clave", "u-1", "ana", RolSupervisor, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, get(r, otro).Code)

	vencido, err := FirmarToken("s3cret", "u-1", "ana", RolSupervisor, -time.Minute)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, get(r, vencido).Code)
}

func TestRequireRole(t *testing.T) {
	r := authEngine("s3cret")
	tok, err := FirmarToken("s3cret", "u-2", "beto", RolCajero, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, get(r, tok).Code)
}

func TestGetClaims_WithoutAuth(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Nil(t, GetClaims(c))
}
