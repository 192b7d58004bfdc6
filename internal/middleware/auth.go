package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"ecoloimp/internal/apierror"
	"ecoloimp/internal/infra"
	"ecoloimp/internal/rbac"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	ClaimsKey = "claims"

	// CookieAcceso carries the access token for page (HTML) callers.
	CookieAcceso = "access_token"
	// CookieFlash carries a one-shot message for the next rendered page.
	CookieFlash = "flash"
)

// JWTClaims are the custom claims embedded in every access token.
// They implement rbac.Principal.
type JWTClaims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Rol      string `json:"rol"`
	Tipo     string `json:"tipo"`
	jwt.RegisteredClaims
}

func (c *JWTClaims) UsuarioID() uuid.UUID {
	id, _ := uuid.Parse(c.UserID)
	return id
}

func (c *JWTClaims) RolActual() rbac.Rol { return rbac.Rol(c.Rol) }

// Modo selects how RequirePermiso combines several permission names.
type Modo bool

const (
	Todos      Modo = true
	Cualquiera Modo = false
)

// Guards builds role and permission guards over one resolver. metrics may be nil.
type Guards struct {
	resolver *rbac.Resolver
	metrics  *infra.Metrics
}

func NewGuards(resolver *rbac.Resolver, metrics *infra.Metrics) *Guards {
	return &Guards{resolver: resolver, metrics: metrics}
}

// Identidades resolves the stored identity behind a token. *rbac.Resolver
// implements it.
type Identidades interface {
	Identidad(ctx context.Context, id uuid.UUID) (rbac.Identidad, error)
}

// JWTAuth validates the Bearer token (API callers) or the access_token
// cookie (page callers) on every protected route. The role in the claims is
// replaced by the stored one, and deactivated or deleted users are rejected
// even while their token is still valid. A nil identidades trusts the token.
func JWTAuth(secret string, identidades Identidades) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := ""
		if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
			tokenStr = strings.TrimPrefix(header, "Bearer ")
		} else if ck, err := c.Cookie(CookieAcceso); err == nil {
			tokenStr = ck
		}
		if tokenStr == "" {
			denegar(c, nil, http.StatusUnauthorized, "Autenticacion requerida")
			return
		}

		claims := &JWTClaims{}
		token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid || claims.Tipo == "refresh" || claims.UsuarioID() == uuid.Nil {
			denegar(c, nil, http.StatusUnauthorized, "Token invalido o expirado")
			return
		}

		if identidades != nil {
			id, err := identidades.Identidad(c.Request.Context(), claims.UsuarioID())
			switch {
			case errors.Is(err, rbac.ErrUsuarioDesconocido), err == nil && !id.Activo:
				denegar(c, nil, http.StatusUnauthorized, "Usuario inactivo o inexistente")
				return
			case err != nil:
				log.Error().Err(err).Str("usuario_id", claims.UserID).Msg("auth: no se pudo cargar el usuario")
				c.AbortWithStatusJSON(http.StatusServiceUnavailable,
					apierror.WithKind(apierror.KindPersistenceFailure, "No se pudo verificar la sesion, intente nuevamente"))
				return
			}
			claims.Rol = string(id.Rol)
		}

		c.Set(ClaimsKey, claims)
		c.Next()
	}
}

// RequireRole rejects requests whose role is not in the allowed list.
// rbac.CualquierAutenticado admits every authenticated caller.
func (g *Guards) RequireRole(roles ...rbac.Rol) gin.HandlerFunc {
	allowed := make(map[rbac.Rol]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			denegar(c, g.metrics, http.StatusUnauthorized, "Autenticacion requerida")
			return
		}
		if !allowed[rbac.CualquierAutenticado] && !allowed[claims.RolActual()] {
			denegar(c, g.metrics, http.StatusForbidden, "No tiene el rol requerido para esta accion")
			return
		}
		c.Next()
	}
}

// RequirePermiso admits callers holding the permissions per modo.
func (g *Guards) RequirePermiso(modo Modo, nombres ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			denegar(c, g.metrics, http.StatusUnauthorized, "Autenticacion requerida")
			return
		}
		if !g.resolver.TienePermisos(c.Request.Context(), claims, nombres, bool(modo)) {
			log.Debug().
				Str("usuario_id", claims.UserID).
				Strs("permisos", nombres).
				Str("path", c.Request.URL.Path).
				Msg("acceso denegado")
			denegar(c, g.metrics, http.StatusForbidden, "No tiene permisos para realizar esta accion")
			return
		}
		c.Next()
	}
}

// PrefiereJSON reports whether the caller expects a JSON answer rather than
// a page: API paths, XHR requests and Accept headers without text/html.
func PrefiereJSON(c *gin.Context) bool {
	if strings.HasPrefix(c.Request.URL.Path, "/v1/") {
		return true
	}
	if c.GetHeader("X-Requested-With") == "XMLHttpRequest" {
		return true
	}
	accept := c.GetHeader("Accept")
	if strings.Contains(accept, "application/json") {
		return true
	}
	return !strings.Contains(accept, "text/html")
}

// denegar aborts with 401/403. Page callers are redirected with a flash
// message: to the login form for 401, to the panel for 403.
func denegar(c *gin.Context, m *infra.Metrics, status int, msg string) {
	kind := apierror.KindAuthorizationDenied
	if status == http.StatusUnauthorized {
		kind = apierror.KindAuthenticationRequired
	}
	if m != nil {
		m.AccesosDenegados.WithLabelValues(string(kind)).Inc()
	}

	if PrefiereJSON(c) {
		c.AbortWithStatusJSON(status, apierror.WithKind(kind, msg))
		return
	}

	SetFlash(c, msg)
	destino := "/panel"
	if status == http.StatusUnauthorized {
		destino = "/login?next=" + url.QueryEscape(c.Request.URL.RequestURI())
	}
	c.Redirect(http.StatusSeeOther, destino)
	c.Abort()
}

// SetFlash stores msg for the next page render.
func SetFlash(c *gin.Context, msg string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieFlash, url.QueryEscape(msg), 60, "/", "", false, true)
}

// TomarFlash returns and clears the pending flash message.
func TomarFlash(c *gin.Context) string {
	v, err := c.Cookie(CookieFlash)
	if err != nil || v == "" {
		return ""
	}
	c.SetCookie(CookieFlash, "", -1, "/", "", false, true)
	msg, err := url.QueryUnescape(v)
	if err != nil {
		return ""
	}
	return msg
}

// GetClaims is a helper to retrieve typed claims from the Gin context.
func GetClaims(c *gin.Context) *JWTClaims {
	v, ok := c.Get(ClaimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*JWTClaims)
	return claims
}
