package router

import (
	"net/http"
	"time"

	"ecoloimp/internal/config"
	"ecoloimp/internal/contadores"
	"ecoloimp/internal/handler"
	"ecoloimp/internal/infra"
	"ecoloimp/internal/middleware"
	"ecoloimp/internal/rbac"
	"ecoloimp/internal/repository"
	"ecoloimp/internal/service"
	"ecoloimp/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Deps are the long-lived collaborators built by the composition root.
type Deps struct {
	DB         *gorm.DB
	Redis      *redis.Client // nil disables queued alerts and e-mailed reports
	Resolver   *rbac.Resolver
	Metrics    *infra.Metrics
	Gatherer   prometheus.Gatherer
	Dispatcher *worker.Dispatcher
	Limiter    middleware.ContadorStore
	SMTP       *infra.CircuitBreaker
}

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
func New(cfg *config.Config, d Deps) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.SetHTMLTemplate(handler.Plantillas())

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS(cfg.Origins()))
	r.Use(middleware.ErrorHandler(handler.Clasificar))
	if d.Metrics != nil {
		r.Use(middleware.Metrics(d.Metrics))
	}
	if d.Limiter != nil {
		r.Use(middleware.RateLimiter(d.Limiter, "api", cfg.RateLimitPerMinute, time.Minute))
	}

	// ── Repositories ─────────────────────────────────────────────────────────
	usuarioRepo := repository.NewUsuarioRepository(d.DB)
	permisoRepo := repository.NewPermisoRepository(d.DB)
	clienteRepo := repository.NewClienteRepository(d.DB)
	equipoRepo := repository.NewEquipoRepository(d.DB)
	conteoRepo := repository.NewConteoRepository(d.DB)
	visitaRepo := repository.NewVisitaRepository(d.DB)
	d.Resolver.UsarIdentidades(usuarioRepo)

	// ── Services ─────────────────────────────────────────────────────────────
	limites := contadores.Limites{MaxContador: cfg.MaxCounterValue, MaxDiferencia: cfg.MaxDailyDeltaThreshold}
	impresion, copia, escaneo := cfg.Tarifas()

	authSvc := service.NewAuthService(usuarioRepo, cfg)
	usuarioSvc := service.NewUsuarioService(usuarioRepo, d.Resolver)
	permisoSvc := service.NewPermisoService(permisoRepo, usuarioRepo, d.Resolver)
	clienteSvc := service.NewClienteService(clienteRepo)
	equipoSvc := service.NewEquipoService(equipoRepo, clienteRepo, usuarioRepo, conteoRepo, d.Resolver, limites)
	var (
		alertas service.Alertador
		correo  service.EmailEncolador
	)
	if d.Dispatcher != nil {
		alertas = d.Dispatcher
		if d.Redis != nil {
			correo = d.Dispatcher
		}
	}
	conteoSvc := service.NewConteoService(equipoRepo, conteoRepo, visitaRepo, d.Resolver, alertas, d.Metrics, service.ConteoConfig{
		Limites:            limites,
		PlazoMantenimiento: time.Duration(cfg.MantenimientoPlazoDias) * 24 * time.Hour,
	})
	visitaSvc := service.NewVisitaService(visitaRepo, clienteRepo, usuarioRepo, d.Resolver)
	reporteSvc := service.NewReporteService(conteoRepo, equipoRepo, service.Tarifas{
		Impresion: impresion,
		Copia:     copia,
		Escaneo:   escaneo,
	}, correo, cfg.ReportesDir)

	// ── Handlers ─────────────────────────────────────────────────────────────
	authH := handler.NewAuthHandler(authSvc)
	paginasH := handler.NewPaginasHandler(authSvc, permisoSvc, cfg.Env == "production")
	usuariosH := handler.NewUsuariosHandler(usuarioSvc)
	permisosH := handler.NewPermisosHandler(permisoSvc)
	clientesH := handler.NewClientesHandler(clienteSvc)
	equiposH := handler.NewEquiposHandler(equipoSvc, conteoSvc)
	conteosH := handler.NewConteosHandler(conteoSvc)
	visitasH := handler.NewVisitasHandler(visitaSvc)
	reportesH := handler.NewReportesHandler(reporteSvc)

	g := middleware.NewGuards(d.Resolver, d.Metrics)
	jwtMW := middleware.JWTAuth(cfg.JWTSecret, d.Resolver)
	autenticado := g.RequireRole(rbac.CualquierAutenticado)
	permiso := func(nombres ...string) gin.HandlerFunc { return g.RequirePermiso(middleware.Cualquiera, nombres...) }
	todos := func(nombres ...string) gin.HandlerFunc { return g.RequirePermiso(middleware.Todos, nombres...) }

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(d.DB, d.Redis, d.SMTP))
	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	var loginLimit gin.HandlerFunc = func(c *gin.Context) { c.Next() }
	if d.Limiter != nil {
		loginLimit = middleware.LoginRateLimiter(d.Limiter, cfg.LoginRateLimitPerMinute)
	}

	// Pages
	r.GET("/", func(c *gin.Context) { c.Redirect(http.StatusSeeOther, "/panel") })
	r.GET("/login", paginasH.LoginForm)
	r.POST("/login", loginLimit, paginasH.Login)
	r.POST("/logout", paginasH.Logout)
	r.GET("/panel", jwtMW, autenticado, paginasH.Panel)

	// Auth (public)
	auth := r.Group("/v1/auth")
	{
		auth.POST("/login", loginLimit, authH.Login)
		auth.POST("/refresh", authH.Refresh)
	}

	v1 := r.Group("/v1", jwtMW)
	{
		v1.GET("/me/permisos", autenticado, permisosH.MisPermisos)

		usuarios := v1.Group("/usuarios")
		{
			usuarios.GET("", permiso("gestionar_usuarios", "ver_usuarios"), usuariosH.Listar)
			usuarios.GET("/:id", permiso("gestionar_usuarios", "ver_usuarios"), usuariosH.Obtener)
			usuarios.POST("", permiso("gestionar_usuarios"), usuariosH.Crear)
			usuarios.PUT("/:id", permiso("gestionar_usuarios"), usuariosH.Actualizar)
			usuarios.DELETE("/:id", permiso("gestionar_usuarios"), usuariosH.Desactivar)
			usuarios.PATCH("/:id/reactivar", permiso("gestionar_usuarios"), usuariosH.Reactivar)

			usuarios.GET("/:id/permisos", permiso("gestionar_permisos"), permisosH.DeUsuario)
			usuarios.POST("/:id/permisos", permiso("gestionar_permisos"), permisosH.Otorgar)
			usuarios.DELETE("/:id/permisos/:permiso", permiso("gestionar_permisos"), permisosH.Revocar)
		}

		v1.GET("/permisos", permiso("ver_usuarios", "gestionar_permisos"), permisosH.Catalogo)

		roles := v1.Group("/roles")
		{
			roles.GET("", autenticado, permisosH.Roles)
			roles.GET("/:rol/permisos", permiso("gestionar_permisos"), permisosH.PermisosDeRol)
			roles.PUT("/:rol/permisos", permiso("gestionar_permisos"), permisosH.AsignarARol)
		}

		clientes := v1.Group("/clientes")
		{
			clientes.GET("", permiso("gestionar_clientes", "ver_clientes"), clientesH.Listar)
			clientes.GET("/:id", permiso("gestionar_clientes", "ver_clientes"), clientesH.Obtener)
			clientes.GET("/:id/sucursales", permiso("gestionar_clientes", "ver_clientes"), clientesH.ListarSucursales)
			clientes.POST("", permiso("gestionar_clientes"), clientesH.Crear)
			clientes.PUT("/:id", permiso("gestionar_clientes"), clientesH.Actualizar)
			clientes.DELETE("/:id", permiso("gestionar_clientes"), clientesH.Desactivar)
			clientes.PATCH("/:id/reactivar", permiso("gestionar_clientes"), clientesH.Reactivar)
			clientes.POST("/:id/sucursales", permiso("gestionar_clientes"), clientesH.CrearSucursal)
		}

		// Read scope (all vs assigned) is decided by the service.
		lecturaEquipos := permiso("gestionar_equipos", "ver_equipos", "ver_equipos_asignados")
		equipos := v1.Group("/equipos")
		{
			equipos.GET("", lecturaEquipos, equiposH.Listar)
			equipos.GET("/:id", lecturaEquipos, equiposH.Obtener)
			equipos.GET("/:id/conteos", lecturaEquipos, equiposH.Historial)
			equipos.GET("/:id/ultimo-conteo", lecturaEquipos, equiposH.UltimoConteo)
			equipos.GET("/:id/promedio", lecturaEquipos, equiposH.PromedioMensual)
			equipos.POST("", permiso("gestionar_equipos"), equiposH.Crear)
			equipos.PUT("/:id", permiso("gestionar_equipos"), equiposH.Actualizar)
			equipos.PATCH("/:id/estado", permiso("gestionar_equipos", "registrar_mantenimiento"), equiposH.CambiarEstado)
		}

		conteos := v1.Group("/conteos")
		{
			conteos.POST("", permiso("crear_conteos"), conteosH.Registrar)
			conteos.GET("", permiso("ver_conteos", "ver_conteos_propios"), conteosH.Listar)
			conteos.GET("/:id", permiso("ver_conteos", "ver_conteos_propios"), conteosH.Obtener)
			conteos.DELETE("/:id", permiso("eliminar_conteos"), conteosH.Eliminar)
		}

		visitas := v1.Group("/visitas")
		{
			visitas.GET("", permiso("ver_visitas", "registrar_visitas"), visitasH.Listar)
			visitas.GET("/:id", permiso("ver_visitas", "registrar_visitas"), visitasH.Obtener)
			visitas.POST("", permiso("crear_visitas", "gestionar_visitas"), visitasH.Programar)
			visitas.POST("/:id/iniciar", permiso("registrar_visitas", "gestionar_visitas"), visitasH.Iniciar)
			visitas.POST("/:id/completar", permiso("registrar_visitas", "gestionar_visitas"), visitasH.Completar)
			visitas.POST("/:id/cancelar", permiso("eliminar_visitas", "gestionar_visitas"), visitasH.Cancelar)
		}

		reportes := v1.Group("/reportes")
		{
			reportes.GET("/consumo", permiso("ver_reportes"), reportesH.Consumo)
			reportes.GET("/consumo.pdf", todos("ver_reportes", "exportar_conteos"), reportesH.ConsumoPDF)
			reportes.POST("/consumo/enviar", todos("ver_reportes", "exportar_conteos"), reportesH.Enviar)
		}

		if d.Redis != nil {
			dlqH := handler.NewDLQHandler(d.Redis)
			v1.GET("/admin/dlq", permiso("configurar_sistema"), dlqH.Listar)
			v1.POST("/admin/dlq/reencolar", permiso("configurar_sistema"), dlqH.Reencolar)
		}
	}

	return r
}
