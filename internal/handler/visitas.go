package handler

import (
	"net/http"

	"ecoloimp/internal/apierror"
	"ecoloimp/internal/dto"
	"ecoloimp/internal/middleware"
	"ecoloimp/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type VisitasHandler struct{ svc service.VisitaService }

func NewVisitasHandler(svc service.VisitaService) *VisitasHandler {
	return &VisitasHandler{svc: svc}
}

func (h *VisitasHandler) Programar(c *gin.Context) {
	var req dto.ProgramarVisitaRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Programar(c.Request.Context(), middleware.GetClaims(c), req)
	if err != nil {
		responderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *VisitasHandler) Listar(c *gin.Context) {
	var filter dto.VisitaFilter
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

func (h *VisitasHandler) Obtener(c *gin.Context) {
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

func (h *VisitasHandler) Iniciar(c *gin.Context) {
	h.cambiar(c, func(c *gin.Context, id uuid.UUID, _ dto.CerrarVisitaRequest) (*dto.VisitaResponse, error) {
		return h.svc.Iniciar(c.Request.Context(), middleware.GetClaims(c), id)
	})
}

func (h *VisitasHandler) Completar(c *gin.Context) {
	h.cambiar(c, func(c *gin.Context, id uuid.UUID, req dto.CerrarVisitaRequest) (*dto.VisitaResponse, error) {
		return h.svc.Completar(c.Request.Context(), middleware.GetClaims(c), id, req)
	})
}

func (h *VisitasHandler) Cancelar(c *gin.Context) {
	h.cambiar(c, func(c *gin.Context, id uuid.UUID, req dto.CerrarVisitaRequest) (*dto.VisitaResponse, error) {
		return h.svc.Cancelar(c.Request.Context(), middleware.GetClaims(c), id, req)
	})
}

// cambiar handles the state-change endpoints; the body is optional.
func (h *VisitasHandler) cambiar(c *gin.Context, fn func(*gin.Context, uuid.UUID, dto.CerrarVisitaRequest) (*dto.VisitaResponse, error)) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.CerrarVisitaRequest
	if c.Request.ContentLength > 0 && !bindAndValidate(c, &req) {
		return
	}
	resp, err := fn(c, id, req)
	if err != nil {
		responderError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
