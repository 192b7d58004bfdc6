package dto

import "time"

type CrearEquipoRequest struct {
	NumeroSerie       string     `json:"numero_serie"        validate:"required,min=3,max=100"`
	Marca             string     `json:"marca"               validate:"required,max=100"`
	Modelo            string     `json:"modelo"              validate:"required,max=100"`
	Tipo              string     `json:"tipo"                validate:"omitempty,oneof=impresora multifuncional copiadora"`
	ClienteID         string     `json:"cliente_id"          validate:"required,uuid"`
	SucursalID        *string    `json:"sucursal_id"         validate:"omitempty,uuid"`
	TecnicoAsignadoID *string    `json:"tecnico_asignado_id" validate:"omitempty,uuid"`
	Ubicacion         *string    `json:"ubicacion"           validate:"omitempty,max=200"`
	FechaInstalacion  *time.Time `json:"fecha_instalacion"`

	ContadorInicialImpresiones int64 `json:"contador_inicial_impresiones" validate:"min=0"`
	ContadorInicialEscaneos    int64 `json:"contador_inicial_escaneos"    validate:"min=0"`
	ContadorInicialCopias      int64 `json:"contador_inicial_copias"      validate:"min=0"`
}

type ActualizarEquipoRequest struct {
	Marca             *string `json:"marca"               validate:"omitempty,max=100"`
	Modelo            *string `json:"modelo"              validate:"omitempty,max=100"`
	Tipo              *string `json:"tipo"                validate:"omitempty,oneof=impresora multifuncional copiadora"`
	SucursalID        *string `json:"sucursal_id"         validate:"omitempty,uuid"`
	TecnicoAsignadoID *string `json:"tecnico_asignado_id" validate:"omitempty,uuid"`
	Ubicacion         *string `json:"ubicacion"           validate:"omitempty,max=200"`
}

type CambiarEstadoEquipoRequest struct {
	Estado                    string     `json:"estado" validate:"required,oneof=activo inactivo mantenimiento baja"`
	FechaProximoMantenimiento *time.Time `json:"fecha_proximo_mantenimiento"`
}

type EquipoFilter struct {
	ClienteID  string `form:"cliente_id"`
	SucursalID string `form:"sucursal_id"`
	Estado     string `form:"estado"`
	Busqueda   string `form:"q"`
	Page       int    `form:"page"`
	Limit      int    `form:"limit"`
}

type EquipoResponse struct {
	ID                        string     `json:"id"`
	NumeroSerie               string     `json:"numero_serie"`
	Marca                     string     `json:"marca"`
	Modelo                    string     `json:"modelo"`
	Tipo                      string     `json:"tipo"`
	ClienteID                 string     `json:"cliente_id"`
	ClienteNombre             string     `json:"cliente_nombre,omitempty"`
	SucursalID                *string    `json:"sucursal_id"`
	TecnicoAsignadoID         *string    `json:"tecnico_asignado_id"`
	Ubicacion                 *string    `json:"ubicacion"`
	Estado                    string     `json:"estado"`
	UltimoContadorImpresiones int64      `json:"ultimo_contador_impresiones"`
	UltimoContadorEscaneos    int64      `json:"ultimo_contador_escaneos"`
	UltimoContadorCopias      int64      `json:"ultimo_contador_copias"`
	FechaUltimoConteo         *time.Time `json:"fecha_ultimo_conteo"`
	FechaProximoMantenimiento *time.Time `json:"fecha_proximo_mantenimiento"`
	NecesitaMantenimiento     bool       `json:"necesita_mantenimiento"`
}

type EquipoListResponse struct {
	Data       []EquipoResponse `json:"data"`
	Total      int64            `json:"total"`
	Page       int              `json:"page"`
	Limit      int              `json:"limit"`
	TotalPages int              `json:"total_pages"`
}

type PromedioMensualResponse struct {
	EquipoID    string  `json:"equipo_id"`
	Meses       int     `json:"meses"`
	Conteos     int     `json:"conteos"`
	Impresiones float64 `json:"impresiones"`
	Escaneos    float64 `json:"escaneos"`
	Copias      float64 `json:"copias"`
}
