package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"ecoloimp/internal/apierror"
	"ecoloimp/internal/contadores"
	"ecoloimp/internal/dto"
	"ecoloimp/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodificar(t *testing.T, w *httptest.ResponseRecorder) apierror.APIError {
	t.Helper()
	var e apierror.APIError
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &e))
	return e
}

func postConteo(body string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/conteos", func(c *gin.Context) {
		var req dto.RegistrarConteoRequest
		if !bindAndValidate(c, &req) {
			return
		}
		c.Status(http.StatusNoContent)
	})
	req := httptest.NewRequest(http.MethodPost, "/conteos", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestBindAndValidate_ContadorNoNumerico(t *testing.T) {
	w := postConteo(`{"equipo_id":"6f1c1c1e-3b9f-4d55-9a43-2d1c2b6c9a10","contador_impresiones":"mil"}`)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	e := decodificar(t, w)
	assert.Equal(t, apierror.KindInvalidCounterValue, e.Kind)
	assert.Contains(t, e.Fields, "contador_impresiones")
}

func TestBindAndValidate_ContadorDecimal(t *testing.T) {
	w := postConteo(`{"equipo_id":"6f1c1c1e-3b9f-4d55-9a43-2d1c2b6c9a10","contador_impresiones":10.5}`)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, apierror.KindInvalidCounterValue, decodificar(t, w).Kind)
}

func TestBindAndValidate_CamposConNombreJSON(t *testing.T) {
	w := postConteo(`{"equipo_id":"no-es-uuid","contador_impresiones":10}`)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	e := decodificar(t, w)
	assert.Equal(t, apierror.KindValidation, e.Kind)
	assert.Equal(t, "uuid", e.Fields["equipo_id"])
}

func TestBindAndValidate_JSONMalformado(t *testing.T) {
	w := postConteo(`{"equipo_id":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBindAndValidate_Valido(t *testing.T) {
	w := postConteo(`{"equipo_id":"6f1c1c1e-3b9f-4d55-9a43-2d1c2b6c9a10","contador_impresiones":5400}`)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestResponderError(t *testing.T) {
	cases := []struct {
		err    error
		status int
		kind   apierror.Kind
	}{
		{&contadores.ErrContadorInvalido{Campo: "contador_copias", Motivo: "no puede ser negativo"}, http.StatusUnprocessableEntity, apierror.KindInvalidCounterValue},
		{service.ErrCredenciales, http.StatusUnauthorized, apierror.KindAuthenticationRequired},
		{service.ErrNoAutorizado, http.StatusForbidden, apierror.KindAuthorizationDenied},
		{fmt.Errorf("%w: equipo", service.ErrNoEncontrado), http.StatusNotFound, apierror.KindNotFound},
		{service.ErrConflicto, http.StatusConflict, apierror.KindConflict},
		{service.ErrTransicionInvalida, http.StatusConflict, apierror.KindConflict},
		{fmt.Errorf("%w: desde", service.ErrDatosInvalidos), http.StatusUnprocessableEntity, apierror.KindValidation},
		{service.ErrPersistencia, http.StatusInternalServerError, apierror.KindPersistenceFailure},
		{errors.New("pq: connection reset"), http.StatusInternalServerError, apierror.KindInternal},
	}
	gin.SetMode(gin.TestMode)
	for _, tc := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

		responderError(c, tc.err)

		assert.Equal(t, tc.status, w.Code, tc.err.Error())
		assert.Len(t, c.Errors, 1, "attached for ErrorHandler")
		e := decodificar(t, w)
		assert.Equal(t, tc.kind, e.Kind, tc.err.Error())
		assert.NotContains(t, e.Detail, "pq:")
	}
}

func TestDestinoSeguro(t *testing.T) {
	assert.Equal(t, "/panel", destinoSeguro(""))
	assert.Equal(t, "/panel", destinoSeguro("https://evil.example"))
	assert.Equal(t, "/panel", destinoSeguro("//evil.example"))
	assert.Equal(t, "/panel", destinoSeguro(`/\evil.example`))
	assert.Equal(t, "/v1/me/permisos", destinoSeguro("/v1/me/permisos"))
}
