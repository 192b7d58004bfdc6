package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

type ReporteConsumoFilter struct {
	ClienteID string `form:"cliente_id"`
	Desde     string `form:"desde" binding:"required"` // YYYY-MM-DD
	Hasta     string `form:"hasta" binding:"required"` // YYYY-MM-DD
}

type TarifasResponse struct {
	Impresion decimal.Decimal `json:"impresion"`
	Copia     decimal.Decimal `json:"copia"`
	Escaneo   decimal.Decimal `json:"escaneo"`
}

type ConsumoEquipoResponse struct {
	EquipoID      string          `json:"equipo_id"`
	NumeroSerie   string          `json:"numero_serie"`
	Marca         string          `json:"marca"`
	Modelo        string          `json:"modelo"`
	ClienteNombre string          `json:"cliente_nombre"`
	Conteos       int             `json:"conteos"`
	Impresiones   int64           `json:"impresiones"`
	Escaneos      int64           `json:"escaneos"`
	Copias        int64           `json:"copias"`
	EnRevision    int             `json:"en_revision"`
	Importe       decimal.Decimal `json:"importe"`
}

type ReporteConsumoResponse struct {
	Desde            time.Time               `json:"desde"`
	Hasta            time.Time               `json:"hasta"`
	Tarifas          TarifasResponse         `json:"tarifas"`
	Equipos          []ConsumoEquipoResponse `json:"equipos"`
	TotalImpresiones int64                   `json:"total_impresiones"`
	TotalEscaneos    int64                   `json:"total_escaneos"`
	TotalCopias      int64                   `json:"total_copias"`
	TotalImporte     decimal.Decimal         `json:"total_importe"`
}

type EnviarReporteRequest struct {
	ClienteID    string `json:"cliente_id"   validate:"omitempty,uuid"`
	Desde        string `json:"desde"        validate:"required,datetime=2006-01-02"`
	Hasta        string `json:"hasta"        validate:"required,datetime=2006-01-02"`
	Destinatario string `json:"destinatario" validate:"required,email"`
}
