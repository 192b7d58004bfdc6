package dto

import "time"

// RegistrarConteoRequest carries a meter reading. Counters are validated
// against the configured bounds in the service, not here, so the error kind
// stays InvalidCounterValue.
type RegistrarConteoRequest struct {
	EquipoID            string     `json:"equipo_id"            validate:"required,uuid"`
	VisitaID            *string    `json:"visita_id"            validate:"omitempty,uuid"`
	FechaConteo         *time.Time `json:"fecha_conteo"`
	ContadorImpresiones *int64     `json:"contador_impresiones"`
	ContadorEscaneos    int64      `json:"contador_escaneos"`
	ContadorCopias      int64      `json:"contador_copias"`
	EstadoEquipo        string     `json:"estado_equipo"        validate:"omitempty,oneof=operativo con_fallas fuera_de_servicio"`
	Observaciones       *string    `json:"observaciones"        validate:"omitempty,max=2000"`
}

type ConteoFilter struct {
	EquipoID     string `form:"equipo_id"`
	TecnicoID    string `form:"tecnico_id"`
	Desde        string `form:"desde"` // YYYY-MM-DD
	Hasta        string `form:"hasta"` // YYYY-MM-DD
	SoloRevision bool   `form:"solo_revision"`
	Page         int    `form:"page"`
	Limit        int    `form:"limit"`
}

type ConteoResponse struct {
	ID                          string    `json:"id"`
	EquipoID                    string    `json:"equipo_id"`
	NumeroSerie                 string    `json:"numero_serie,omitempty"`
	TecnicoID                   string    `json:"tecnico_id"`
	TecnicoNombre               string    `json:"tecnico_nombre,omitempty"`
	VisitaID                    *string   `json:"visita_id"`
	FechaConteo                 time.Time `json:"fecha_conteo"`
	ContadorImpresiones         int64     `json:"contador_impresiones"`
	ContadorEscaneos            int64     `json:"contador_escaneos"`
	ContadorCopias              int64     `json:"contador_copias"`
	ContadorAnteriorImpresiones int64     `json:"contador_anterior_impresiones"`
	ContadorAnteriorEscaneos    int64     `json:"contador_anterior_escaneos"`
	ContadorAnteriorCopias      int64     `json:"contador_anterior_copias"`
	DiferenciaImpresiones       int64     `json:"diferencia_impresiones"`
	DiferenciaEscaneos          int64     `json:"diferencia_escaneos"`
	DiferenciaCopias            int64     `json:"diferencia_copias"`
	EstadoEquipo                string    `json:"estado_equipo"`
	RequiereMantenimiento       bool      `json:"requiere_mantenimiento"`
	RequiereRevision            bool      `json:"requiere_revision"`
	ContadorReiniciado          bool      `json:"contador_reiniciado"`
	Observaciones               *string   `json:"observaciones"`
}

type ConteoListResponse struct {
	Data       []ConteoResponse `json:"data"`
	Total      int64            `json:"total"`
	Page       int              `json:"page"`
	Limit      int              `json:"limit"`
	TotalPages int              `json:"total_pages"`
}
