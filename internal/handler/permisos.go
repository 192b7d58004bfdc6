package handler

import (
	"net/http"

	"ecoloimp/internal/dto"
	"ecoloimp/internal/middleware"
	"ecoloimp/internal/rbac"
	"ecoloimp/internal/service"

	"github.com/gin-gonic/gin"
)

type PermisosHandler struct{ svc service.PermisoService }

func NewPermisosHandler(svc service.PermisoService) *PermisosHandler {
	return &PermisosHandler{svc: svc}
}

// Catalogo lists every permission grouped by category.
func (h *PermisosHandler) Catalogo(c *gin.Context) {
	resp, err := h.svc.ListarCatalogo(c.Request.Context())
	if err != nil {
		responderError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Roles returns the fixed role registry.
func (h *PermisosHandler) Roles(c *gin.Context) {
	c.JSON(http.StatusOK, rbac.Roles())
}

func (h *PermisosHandler) PermisosDeRol(c *gin.Context) {
	resp, err := h.svc.PermisosDeRol(c.Request.Context(), c.Param("rol"))
	if err != nil {
		responderError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// AsignarARol replaces the permission set of a role.
func (h *PermisosHandler) AsignarARol(c *gin.Context) {
	var req dto.AsignarPermisosRolRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.AsignarARol(c.Request.Context(), c.Param("rol"), req.Permisos)
	if err != nil {
		responderError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *PermisosHandler) DeUsuario(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.PermisosEfectivos(c.Request.Context(), id)
	if err != nil {
		responderError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *PermisosHandler) Otorgar(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.OtorgarPermisoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	if err := h.svc.Otorgar(c.Request.Context(), middleware.GetClaims(c), id, req); err != nil {
		responderError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *PermisosHandler) Revocar(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Revocar(c.Request.Context(), id, c.Param("permiso")); err != nil {
		responderError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// MisPermisos answers "what can I do?" for the caller.
func (h *PermisosHandler) MisPermisos(c *gin.Context) {
	claims := middleware.GetClaims(c)
	c.JSON(http.StatusOK, h.svc.MisPermisos(c.Request.Context(), claims, claims.Username))
}
