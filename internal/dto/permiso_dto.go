package dto

type PermisoResponse struct {
	ID          string `json:"id"`
	Nombre      string `json:"nombre"`
	Descripcion string `json:"descripcion"`
	Categoria   string `json:"categoria"`
}

type CategoriaPermisosResponse struct {
	Categoria string            `json:"categoria"`
	Permisos  []PermisoResponse `json:"permisos"`
}

type AsignarPermisosRolRequest struct {
	Permisos []string `json:"permisos" validate:"dive,required"`
}

type PermisosRolResponse struct {
	Rol      string   `json:"rol"`
	Permisos []string `json:"permisos"`
	Todos    bool     `json:"todos"` // top rank: holds every permission
}

type OtorgarPermisoRequest struct {
	Permiso string  `json:"permiso" validate:"required"`
	Notas   *string `json:"notas"   validate:"omitempty,max=500"`
}

type PermisoEfectivoResponse struct {
	Nombre    string `json:"nombre"`
	Categoria string `json:"categoria"`
	EsDirecto bool   `json:"es_directo"`
}

type PermisosUsuarioResponse struct {
	UsuarioID string                    `json:"usuario_id"`
	Rol       string                    `json:"rol"`
	Permisos  []PermisoEfectivoResponse `json:"permisos"`
}

type MisPermisosResponse struct {
	UsuarioID string   `json:"usuario_id"`
	Username  string   `json:"username"`
	Rol       string   `json:"rol"`
	Rango     int      `json:"rango"`
	Permisos  []string `json:"permisos"`
}
