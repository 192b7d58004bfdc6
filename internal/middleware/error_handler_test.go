package middleware

import (
	"errors"
	"net/http"
	"testing"

	"ecoloimp/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

var errNoEncontradoPrueba = errors.New("equipo no encontrado")

func clasificarPrueba(err error) (int, *apierror.APIError) {
	if errors.Is(err, errNoEncontradoPrueba) {
		return http.StatusNotFound, apierror.WithKind(apierror.KindNotFound, err.Error())
	}
	return http.StatusInternalServerError, apierror.WithKind(apierror.KindInternal, "Error interno del servidor")
}

func erroresRouter(clasificar Clasificador) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), Recovery(), ErrorHandler(clasificar))
	r.GET("/v1/sin-respuesta", func(c *gin.Context) {
		_ = c.Error(errNoEncontradoPrueba)
	})
	r.GET("/v1/ya-respondido", func(c *gin.Context) {
		_ = c.Error(errors.New("pq: connection reset"))
		c.JSON(http.StatusConflict, apierror.WithKind(apierror.KindConflict, "version desactualizada"))
	})
	r.GET("/v1/panico", func(c *gin.Context) { panic("nil map") })
	return r
}

func TestErrorHandler_ClasificaErroresSinRespuesta(t *testing.T) {
	w := hacer(erroresRouter(clasificarPrueba), http.MethodGet, "/v1/sin-respuesta", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, apierror.KindNotFound, kindDe(t, w))
}

func TestErrorHandler_RespetaLaRespuestaDelHandler(t *testing.T) {
	w := hacer(erroresRouter(clasificarPrueba), http.MethodGet, "/v1/ya-respondido", "", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, apierror.KindConflict, kindDe(t, w))
	assert.NotContains(t, w.Body.String(), "pq:")
}

func TestErrorHandler_SinClasificadorResponde500(t *testing.T) {
	w := hacer(erroresRouter(nil), http.MethodGet, "/v1/sin-respuesta", "", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, apierror.KindInternal, kindDe(t, w))
}

func TestRecovery_PanicoNoExponeDetalles(t *testing.T) {
	w := hacer(erroresRouter(clasificarPrueba), http.MethodGet, "/v1/panico", "", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, apierror.KindInternal, kindDe(t, w))
	assert.NotContains(t, w.Body.String(), "nil map")
}
