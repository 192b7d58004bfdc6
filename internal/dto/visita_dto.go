package dto

import "time"

type ProgramarVisitaRequest struct {
	ClienteID       string    `json:"cliente_id"       validate:"required,uuid"`
	SucursalID      *string   `json:"sucursal_id"      validate:"omitempty,uuid"`
	TecnicoID       string    `json:"tecnico_id"       validate:"required,uuid"`
	FechaProgramada time.Time `json:"fecha_programada" validate:"required"`
	Tipo            string    `json:"tipo"             validate:"omitempty,oneof=conteo mantenimiento instalacion"`
	Motivo          *string   `json:"motivo"           validate:"omitempty,max=500"`
}

type CerrarVisitaRequest struct {
	Observaciones *string `json:"observaciones" validate:"omitempty,max=2000"`
}

type VisitaFilter struct {
	TecnicoID string `form:"tecnico_id"`
	ClienteID string `form:"cliente_id"`
	Estado    string `form:"estado"`
	Desde     string `form:"desde"`
	Hasta     string `form:"hasta"`
}

type VisitaResponse struct {
	ID              string     `json:"id"`
	ClienteID       string     `json:"cliente_id"`
	ClienteNombre   string     `json:"cliente_nombre,omitempty"`
	SucursalID      *string    `json:"sucursal_id"`
	TecnicoID       string     `json:"tecnico_id"`
	TecnicoNombre   string     `json:"tecnico_nombre,omitempty"`
	FechaProgramada time.Time  `json:"fecha_programada"`
	Tipo            string     `json:"tipo"`
	Estado          string     `json:"estado"`
	Motivo          *string    `json:"motivo"`
	Observaciones   *string    `json:"observaciones"`
	FechaInicio     *time.Time `json:"fecha_inicio"`
	FechaFin        *time.Time `json:"fecha_fin"`
}
