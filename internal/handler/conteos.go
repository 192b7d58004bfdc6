package handler

import (
	"net/http"

	"ecoloimp/internal/apierror"
	"ecoloimp/internal/dto"
	"ecoloimp/internal/middleware"
	"ecoloimp/internal/service"

	"github.com/gin-gonic/gin"
)

type ConteosHandler struct{ svc service.ConteoService }

func NewConteosHandler(svc service.ConteoService) *ConteosHandler {
	return &ConteosHandler{svc: svc}
}

// Registrar stores a meter reading. Counter errors answer 422 with kind
// InvalidCounterValue and nothing is persisted.
func (h *ConteosHandler) Registrar(c *gin.Context) {
	var req dto.RegistrarConteoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Registrar(c.Request.Context(), middleware.GetClaims(c), req)
	if err != nil {
		responderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *ConteosHandler) Listar(c *gin.Context) {
	var filter dto.ConteoFilter
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

func (h *ConteosHandler) Obtener(c *gin.Context) {
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

func (h *ConteosHandler) Eliminar(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Eliminar(c.Request.Context(), middleware.GetClaims(c), id); err != nil {
		responderError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
