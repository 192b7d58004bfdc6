package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"ecoloimp/internal/apierror"
	"ecoloimp/internal/config"
	"ecoloimp/internal/dto"
	"ecoloimp/internal/infra"
	"ecoloimp/internal/middleware"
	"ecoloimp/internal/model"
	"ecoloimp/internal/rbac"
	"ecoloimp/internal/repository"
	"ecoloimp/internal/service"
	"ecoloimp/internal/testutil"
	"ecoloimp/internal/worker"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type app struct {
	t       *testing.T
	engine  *gin.Engine
	db      *gorm.DB
	mr      *miniredis.Miniredis
	equipo  *model.Equipo
	cliente *model.Cliente
	tecnico *model.Usuario
}

func testCfg(t *testing.T) *config.Config {
	return &config.Config{
		Env:                     "test",
		JWTSecret:               "test_jwt_secret_32_chars_minimum!",
		JWTExpirationHours:      8,
		JWTRefreshHours:         24,
		RateLimitPerMinute:      1000,
		LoginRateLimitPerMinute: 5,
		MaxCounterValue:         9_999_999,
		MaxDailyDeltaThreshold:  10_000,
		MantenimientoPlazoDias:  7,
		TarifaImpresion:         "0.35",
		TarifaCopia:             "0.25",
		TarifaEscaneo:           "0.05",
		ReportesDir:             t.TempDir(),
	}
}

func nuevaApp(t *testing.T) *app {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := testutil.NewDB(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	permRepo := repository.NewPermisoRepository(db)
	resolver := rbac.NewResolver(permRepo, time.Minute)
	require.NoError(t, service.NewPermisoService(permRepo, repository.NewUsuarioRepository(db), resolver).Sincronizar(context.Background()))

	reg := prometheus.NewRegistry()
	metrics := infra.NewMetrics(reg)
	engine := New(testCfg(t), Deps{
		DB:         db,
		Redis:      rdb,
		Resolver:   resolver,
		Metrics:    metrics,
		Gatherer:   reg,
		Dispatcher: worker.NewDispatcher(rdb, metrics),
		Limiter:    middleware.NewMemoryStore(),
		SMTP:       infra.NewCircuitBreaker(infra.DefaultCBConfig()),
	})

	tecnico := testutil.Usuario(t, db, "tecnico1", "tecnico")
	testutil.Usuario(t, db, "admin1", "admin")
	testutil.Usuario(t, db, "root", "superadmin")
	cliente := testutil.Cliente(t, db, "Grupo Ecologico SA")
	return &app{
		t:       t,
		engine:  engine,
		db:      db,
		mr:      mr,
		cliente: cliente,
		tecnico: tecnico,
		equipo:  testutil.Equipo(t, db, cliente.ID, "XRX-0001", 5000),
	}
}

func (a *app) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	a.t.Helper()
	var rd *bytes.Reader
	switch b := body.(type) {
	case nil:
		rd = bytes.NewReader(nil)
	case string:
		rd = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(a.t, err)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	return w
}

func (a *app) login(username string) string {
	a.t.Helper()
	w := a.do(http.MethodPost, "/v1/auth/login", "", dto.LoginRequest{Username: username, Password: "password123"})
	require.Equal(a.t, http.StatusOK, w.Code, w.Body.String())
	var resp dto.LoginResponse
	require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.AccessToken
}

func kind(t *testing.T, w *httptest.ResponseRecorder) apierror.Kind {
	t.Helper()
	var e apierror.APIError
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &e))
	return e.Kind
}

// ── Auth ──────────────────────────────────────────────────────────────────────

func TestLogin_Exitoso(t *testing.T) {
	a := nuevaApp(t)

	w := a.do(http.MethodPost, "/v1/auth/login", "", dto.LoginRequest{Username: "admin1", Password: "password123"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.LoginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, "bearer", resp.TokenType)
	assert.Equal(t, "admin", resp.User.Rol)
}

func TestLogin_CredencialesInvalidas(t *testing.T) {
	a := nuevaApp(t)

	w := a.do(http.MethodPost, "/v1/auth/login", "", dto.LoginRequest{Username: "admin1", Password: "incorrecta"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, apierror.KindAuthenticationRequired, kind(t, w))

	w = a.do(http.MethodPost, "/v1/auth/login", "", dto.LoginRequest{Username: "noexiste", Password: "password123"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogin_LimiteDeIntentos(t *testing.T) {
	a := nuevaApp(t)
	for i := 0; i < 5; i++ {
		a.do(http.MethodPost, "/v1/auth/login", "", dto.LoginRequest{Username: "admin1", Password: "incorrecta"})
	}
	w := a.do(http.MethodPost, "/v1/auth/login", "", dto.LoginRequest{Username: "admin1", Password: "password123"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestRefresh(t *testing.T) {
	a := nuevaApp(t)
	w := a.do(http.MethodPost, "/v1/auth/login", "", dto.LoginRequest{Username: "tecnico1", Password: "password123"})
	require.Equal(t, http.StatusOK, w.Code)
	var login dto.LoginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &login))

	w = a.do(http.MethodPost, "/v1/auth/refresh", "", dto.RefreshRequest{RefreshToken: login.RefreshToken})
	assert.Equal(t, http.StatusOK, w.Code)

	// an access token is not a refresh token
	w = a.do(http.MethodPost, "/v1/auth/refresh", "", dto.RefreshRequest{RefreshToken: login.AccessToken})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// and a refresh token does not open protected routes
	w = a.do(http.MethodGet, "/v1/me/permisos", login.RefreshToken, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestToken_UsuarioDesactivadoPierdeAcceso(t *testing.T) {
	a := nuevaApp(t)
	tec := a.login("tecnico1")
	root := a.login("root")

	w := a.do(http.MethodDelete, "/v1/usuarios/"+a.tecnico.ID.String(), root, nil)
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	w = a.do(http.MethodPost, "/v1/conteos", tec, map[string]interface{}{
		"equipo_id": a.equipo.ID.String(), "contador_impresiones": 5100,
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, apierror.KindAuthenticationRequired, kind(t, w))
	assert.Zero(t, testutil.ContarConteos(t, a.db, a.equipo.ID))
}

func TestToken_RolDegradadoAplicaSinNuevoLogin(t *testing.T) {
	a := nuevaApp(t)
	otro := testutil.Usuario(t, a.db, "root2", "superadmin")
	tokOtro := a.login("root2")
	root := a.login("root")

	inexistente := "/v1/conteos/" + otro.ID.String()
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodDelete, inexistente, tokOtro, nil).Code)

	w := a.do(http.MethodPut, "/v1/usuarios/"+otro.ID.String(), root, map[string]string{"rol": "tecnico"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = a.do(http.MethodDelete, inexistente, tokOtro, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

// ── Conteos ───────────────────────────────────────────────────────────────────

func TestConteo_RegistrarYConsultar(t *testing.T) {
	a := nuevaApp(t)
	tec := a.login("tecnico1")

	w := a.do(http.MethodPost, "/v1/conteos", tec, map[string]interface{}{
		"equipo_id":            a.equipo.ID.String(),
		"contador_impresiones": 5400,
		"contador_escaneos":    10,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var c dto.ConteoResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &c))
	assert.Equal(t, int64(400), c.DiferenciaImpresiones)

	w = a.do(http.MethodGet, "/v1/equipos/"+a.equipo.ID.String()+"/ultimo-conteo", tec, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var ultimo dto.ConteoResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ultimo))
	assert.Equal(t, c.ID, ultimo.ID)

	w = a.do(http.MethodGet, "/v1/equipos/"+a.equipo.ID.String(), tec, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var eq dto.EquipoResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &eq))
	assert.Equal(t, int64(5400), eq.UltimoContadorImpresiones)
}

func TestConteo_ContadorInvalido(t *testing.T) {
	a := nuevaApp(t)
	tec := a.login("tecnico1")

	w := a.do(http.MethodPost, "/v1/conteos", tec, `{"equipo_id":"`+a.equipo.ID.String()+`","contador_impresiones":-1}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, apierror.KindInvalidCounterValue, kind(t, w))

	w = a.do(http.MethodPost, "/v1/conteos", tec, `{"equipo_id":"`+a.equipo.ID.String()+`","contador_impresiones":"abc"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, apierror.KindInvalidCounterValue, kind(t, w))

	assert.Zero(t, testutil.ContarConteos(t, a.db, a.equipo.ID))
}

func TestConteo_SaltoGrandeEncolaAlerta(t *testing.T) {
	a := nuevaApp(t)
	tec := a.login("tecnico1")

	w := a.do(http.MethodPost, "/v1/conteos", tec, map[string]interface{}{
		"equipo_id":            a.equipo.ID.String(),
		"contador_impresiones": 50_000,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	largo, err := a.mr.List(worker.QueueAlertas)
	require.NoError(t, err)
	assert.Len(t, largo, 1)
}

func TestConteo_PermisosPorRol(t *testing.T) {
	a := nuevaApp(t)
	tec := a.login("tecnico1")
	admin := a.login("admin1")
	root := a.login("root")

	w := a.do(http.MethodPost, "/v1/conteos", admin, map[string]interface{}{
		"equipo_id": a.equipo.ID.String(), "contador_impresiones": 5100,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var c dto.ConteoResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &c))

	w = a.do(http.MethodDelete, "/v1/conteos/"+c.ID, tec, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, apierror.KindAuthorizationDenied, kind(t, w))

	w = a.do(http.MethodDelete, "/v1/conteos/"+c.ID, admin, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = a.do(http.MethodDelete, "/v1/conteos/"+c.ID, root, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, int64(5000), testutil.RecargarEquipo(t, a.db, a.equipo.ID).UltimoContadorImpresiones)
}

func TestConteo_RevocarPermisoAlRol(t *testing.T) {
	a := nuevaApp(t)
	tec := a.login("tecnico1")
	root := a.login("root")

	w := a.do(http.MethodPut, "/v1/roles/tecnico/permisos", root, dto.AsignarPermisosRolRequest{
		Permisos: []string{"ver_conteos_propios"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = a.do(http.MethodPost, "/v1/conteos", tec, map[string]interface{}{
		"equipo_id": a.equipo.ID.String(), "contador_impresiones": 5100,
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Zero(t, testutil.ContarConteos(t, a.db, a.equipo.ID))
}

// ── Permisos ──────────────────────────────────────────────────────────────────

func TestMisPermisos(t *testing.T) {
	a := nuevaApp(t)

	w := a.do(http.MethodGet, "/v1/me/permisos", a.login("root"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var mp dto.MisPermisosResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &mp))
	assert.Equal(t, rbac.RangoMaximo, mp.Rango)
	assert.Len(t, mp.Permisos, len(rbac.Catalogo()))
}

func TestGestionarPermisos_SoloSuperadmin(t *testing.T) {
	a := nuevaApp(t)

	w := a.do(http.MethodPut, "/v1/roles/tecnico/permisos", a.login("admin1"), dto.AsignarPermisosRolRequest{Permisos: []string{}})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

// ── Reportes y admin ──────────────────────────────────────────────────────────

func TestReporteConsumo_PDF(t *testing.T) {
	a := nuevaApp(t)
	testutil.Conteo(t, a.db, a.equipo.ID, a.tecnico.ID, time.Date(2026, 5, 3, 10, 0, 0, 0, time.UTC), 5400, 5000)
	admin := a.login("admin1")

	w := a.do(http.MethodGet, "/v1/reportes/consumo?desde=2026-05-01&hasta=2026-05-31", admin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = a.do(http.MethodGet, "/v1/reportes/consumo.pdf?desde=2026-05-01&hasta=2026-05-31", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")))

	w = a.do(http.MethodGet, "/v1/reportes/consumo?desde=2026-05-01&hasta=2026-05-31", a.login("tecnico1"), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestDLQ_Admin(t *testing.T) {
	a := nuevaApp(t)
	root := a.login("root")

	w := a.do(http.MethodGet, "/v1/admin/dlq?cola="+url.QueryEscape(worker.QueueEmail), root, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = a.do(http.MethodGet, "/v1/admin/dlq?cola=otra", root, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(http.MethodGet, "/v1/admin/dlq", a.login("tecnico1"), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestHealthYMetrics(t *testing.T) {
	a := nuevaApp(t)

	w := a.do(http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "connected", body["db"])
	assert.Equal(t, "closed", body["smtp"])

	w = a.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ecoloimp_http_requests_total")
}

// ── Pages ─────────────────────────────────────────────────────────────────────

func TestPaginas_LoginYPanel(t *testing.T) {
	a := nuevaApp(t)

	req := httptest.NewRequest(http.MethodGet, "/panel", nil)
	req.Header.Set("Accept", "text/html")
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/login?next=%2Fpanel", w.Header().Get("Location"))

	form := url.Values{"username": {"tecnico1"}, "password": {"password123"}, "next": {"/panel"}}
	req = httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w = httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/panel", w.Header().Get("Location"))

	var sesion *http.Cookie
	for _, ck := range w.Result().Cookies() {
		if ck.Name == middleware.CookieAcceso {
			sesion = ck
		}
	}
	require.NotNil(t, sesion)

	req = httptest.NewRequest(http.MethodGet, "/panel", nil)
	req.Header.Set("Accept", "text/html")
	req.AddCookie(sesion)
	w = httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "crear_conteos")
}

func TestPaginas_LoginFallidoMuestraFlash(t *testing.T) {
	a := nuevaApp(t)

	form := url.Values{"username": {"tecnico1"}, "password": {"mala"}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/login?next=%2Fpanel", w.Header().Get("Location"))

	req = httptest.NewRequest(http.MethodGet, "/login", nil)
	for _, ck := range w.Result().Cookies() {
		req.AddCookie(ck)
	}
	w = httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Usuario o contrase")
}
