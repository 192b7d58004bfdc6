package handler

import (
	"bytes"
	"fmt"
	"net/http"

	"ecoloimp/internal/apierror"
	"ecoloimp/internal/dto"
	"ecoloimp/internal/service"

	"github.com/gin-gonic/gin"
)

type ReportesHandler struct{ svc service.ReporteService }

func NewReportesHandler(svc service.ReporteService) *ReportesHandler {
	return &ReportesHandler{svc: svc}
}

// Consumo returns summed deltas per equipment plus the billing estimate.
func (h *ReportesHandler) Consumo(c *gin.Context) {
	var filter dto.ReporteConsumoFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, apierror.WithKind(apierror.KindValidation, "desde y hasta son obligatorios (YYYY-MM-DD)"))
		return
	}
	resp, err := h.svc.Consumo(c.Request.Context(), filter)
	if err != nil {
		responderError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ConsumoPDF renders the same report as a PDF download. The document is
// built in memory so a failure can still answer with JSON.
func (h *ReportesHandler) ConsumoPDF(c *gin.Context) {
	var filter dto.ReporteConsumoFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, apierror.WithKind(apierror.KindValidation, "desde y hasta son obligatorios (YYYY-MM-DD)"))
		return
	}
	var buf bytes.Buffer
	if err := h.svc.ConsumoPDF(c.Request.Context(), filter, &buf); err != nil {
		responderError(c, err)
		return
	}
	nombre := fmt.Sprintf("consumo_%s_%s.pdf", filter.Desde, filter.Hasta)
	c.Header("Content-Disposition", `attachment; filename="`+nombre+`"`)
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}

// Enviar queues the PDF report for e-mail delivery.
func (h *ReportesHandler) Enviar(c *gin.Context) {
	var req dto.EnviarReporteRequest
	if !bindAndValidate(c, &req) {
		return
	}
	filter := dto.ReporteConsumoFilter{ClienteID: req.ClienteID, Desde: req.Desde, Hasta: req.Hasta}
	if err := h.svc.EnviarConsumo(c.Request.Context(), filter, req.Destinatario); err != nil {
		responderError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"encolado": true, "destinatario": req.Destinatario})
}
