package handler

import (
	"net/http"
	"strconv"

	"ecoloimp/internal/apierror"
	"ecoloimp/internal/dto"
	"ecoloimp/internal/middleware"
	"ecoloimp/internal/service"

	"github.com/gin-gonic/gin"
)

type EquiposHandler struct {
	svc     service.EquipoService
	conteos service.ConteoService
}

func NewEquiposHandler(svc service.EquipoService, conteos service.ConteoService) *EquiposHandler {
	return &EquiposHandler{svc: svc, conteos: conteos}
}

func (h *EquiposHandler) Crear(c *gin.Context) {
	var req dto.CrearEquipoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Crear(c.Request.Context(), req)
	if err != nil {
		responderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *EquiposHandler) Listar(c *gin.Context) {
	var filter dto.EquipoFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, apierror.WithKind(apierror.KindValidation, err.Error()))
		return
	}
	resp, err := h.svc.Listar(c.Request.Context(), middleware.GetClaims(c), filter)
	if err != nil {
		responderError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *EquiposHandler) Obtener(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.Obtener(c.Request.Context(), middleware.GetClaims(c), id)
	if err != nil {
		responderError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *EquiposHandler) Actualizar(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.ActualizarEquipoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Actualizar(c.Request.Context(), id, req)
	if err != nil {
		responderError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *EquiposHandler) CambiarEstado(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.CambiarEstadoEquipoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.CambiarEstado(c.Request.Context(), id, req)
	if err != nil {
		responderError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Historial pages through the readings of one equipment, newest first.
func (h *EquiposHandler) Historial(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	resp, err := h.svc.Historial(c.Request.Context(), middleware.GetClaims(c), id, page, limit)
	if err != nil {
		responderError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// UltimoConteo returns the latest reading, used by the field form to show
// the previous counters.
func (h *EquiposHandler) UltimoConteo(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if _, err := h.svc.Obtener(c.Request.Context(), middleware.GetClaims(c), id); err != nil {
		responderError(c, err)
		return
	}
	resp, err := h.conteos.UltimoDeEquipo(c.Request.Context(), id)
	if err != nil {
		responderError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// PromedioMensual accepts ?meses= (default 6).
func (h *EquiposHandler) PromedioMensual(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	meses, err := strconv.Atoi(c.DefaultQuery("meses", "6"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.WithKind(apierror.KindValidation, "meses invalido"))
		return
	}
	resp, err := h.svc.PromedioMensual(c.Request.Context(), middleware.GetClaims(c), id, meses)
	if err != nil {
		responderError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
