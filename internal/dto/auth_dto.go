package dto

// ─── Request DTOs ────────────────────────────────────────────────────────────

type LoginRequest struct {
	Username string `json:"username" validate:"required,min=1"`
	Password string `json:"password" validate:"required,min=4"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type CrearUsuarioRequest struct {
	Username string  `json:"username" validate:"required,min=3,max=150"`
	Nombre   string  `json:"nombre"   validate:"required,min=2,max=100"`
	Apellido string  `json:"apellido" validate:"omitempty,max=100"`
	Email    *string `json:"email"    validate:"omitempty,email"`
	Telefono *string `json:"telefono" validate:"omitempty,max=30"`
	Password string  `json:"password" validate:"required,min=8"`
	Rol      string  `json:"rol"      validate:"required,oneof=tecnico admin superadmin"`

	PerfilTecnico *PerfilTecnicoRequest `json:"perfil_tecnico"`
}

type PerfilTecnicoRequest struct {
	Especialidad       *string `json:"especialidad"        validate:"omitempty,max=100"`
	NivelExperiencia   *string `json:"nivel_experiencia"   validate:"omitempty,oneof=junior intermedio senior"`
	TelefonoEmergencia *string `json:"telefono_emergencia" validate:"omitempty,max=30"`
}

type ActualizarUsuarioRequest struct {
	Nombre   string  `json:"nombre"   validate:"omitempty,min=2,max=100"`
	Apellido *string `json:"apellido" validate:"omitempty,max=100"`
	Email    *string `json:"email"    validate:"omitempty,email"`
	Telefono *string `json:"telefono" validate:"omitempty,max=30"`
	Rol      string  `json:"rol"      validate:"omitempty,oneof=tecnico admin superadmin"`
	Password string  `json:"password" validate:"omitempty,min=8"`

	PerfilTecnico *PerfilTecnicoRequest `json:"perfil_tecnico"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type PerfilTecnicoResponse struct {
	Especialidad       *string `json:"especialidad"`
	NivelExperiencia   *string `json:"nivel_experiencia"`
	TelefonoEmergencia *string `json:"telefono_emergencia"`
}

type UsuarioResponse struct {
	ID            string                 `json:"id"`
	Username      string                 `json:"username"`
	Nombre        string                 `json:"nombre"`
	Apellido      string                 `json:"apellido"`
	Email         *string                `json:"email"`
	Telefono      *string                `json:"telefono,omitempty"`
	Rol           string                 `json:"rol"`
	Activo        bool                   `json:"activo"`
	PerfilTecnico *PerfilTecnicoResponse `json:"perfil_tecnico,omitempty"`
}

type LoginResponse struct {
	AccessToken  string          `json:"access_token"`
	RefreshToken string          `json:"refresh_token"`
	TokenType    string          `json:"token_type"`
	ExpiresIn    int             `json:"expires_in"` // seconds
	User         UsuarioResponse `json:"user"`
}
