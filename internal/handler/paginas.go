package handler

import (
	"embed"
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"strings"

	"ecoloimp/internal/dto"
	"ecoloimp/internal/middleware"
	"ecoloimp/internal/service"

	"github.com/gin-gonic/gin"
)

//go:embed templates/*.html
var plantillasFS embed.FS

// Plantillas parses the embedded pages for gin's HTML renderer.
func Plantillas() *template.Template {
	return template.Must(template.ParseFS(plantillasFS, "templates/*.html"))
}

// PaginasHandler serves the minimal server-rendered pages: the login form
// and the permission panel. Page callers authenticate with a cookie.
type PaginasHandler struct {
	auth     service.AuthService
	permisos service.PermisoService
	secure   bool
}

func NewPaginasHandler(auth service.AuthService, permisos service.PermisoService, secure bool) *PaginasHandler {
	return &PaginasHandler{auth: auth, permisos: permisos, secure: secure}
}

func (h *PaginasHandler) LoginForm(c *gin.Context) {
	c.HTML(http.StatusOK, "login.html", gin.H{
		"Flash": middleware.TomarFlash(c),
		"Next":  destinoSeguro(c.Query("next")),
	})
}

func (h *PaginasHandler) Login(c *gin.Context) {
	next := destinoSeguro(c.PostForm("next"))
	resp, err := h.auth.Login(c.Request.Context(), dto.LoginRequest{
		Username: strings.TrimSpace(c.PostForm("username")),
		Password: c.PostForm("password"),
	})
	if err != nil {
		msg := "No se pudo iniciar sesion, intente nuevamente"
		if errors.Is(err, service.ErrCredenciales) {
			msg = "Usuario o contraseña incorrectos"
		}
		middleware.SetFlash(c, msg)
		c.Redirect(http.StatusSeeOther, "/login?next="+url.QueryEscape(next))
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.CookieAcceso, resp.AccessToken, resp.ExpiresIn, "/", "", h.secure, true)
	c.Redirect(http.StatusSeeOther, next)
}

func (h *PaginasHandler) Logout(c *gin.Context) {
	c.SetCookie(middleware.CookieAcceso, "", -1, "/", "", h.secure, true)
	middleware.SetFlash(c, "Sesion cerrada")
	c.Redirect(http.StatusSeeOther, "/login")
}

func (h *PaginasHandler) Panel(c *gin.Context) {
	claims := middleware.GetClaims(c)
	c.HTML(http.StatusOK, "panel.html", gin.H{
		"Flash":    middleware.TomarFlash(c),
		"Permisos": h.permisos.MisPermisos(c.Request.Context(), claims, claims.Username),
	})
}

// destinoSeguro keeps redirects on this host.
func destinoSeguro(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/panel"
	}
	return next
}
