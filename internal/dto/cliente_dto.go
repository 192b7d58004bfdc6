package dto

type CrearClienteRequest struct {
	Nombre    string  `json:"nombre"    validate:"required,min=2,max=200"`
	RFC       *string `json:"rfc"       validate:"omitempty,min=12,max=13"`
	Contacto  *string `json:"contacto"  validate:"omitempty,max=150"`
	Telefono  *string `json:"telefono"  validate:"omitempty,max=30"`
	Email     *string `json:"email"     validate:"omitempty,email"`
	Direccion *string `json:"direccion"`
}

type ActualizarClienteRequest = CrearClienteRequest

type ClienteResponse struct {
	ID         string             `json:"id"`
	Nombre     string             `json:"nombre"`
	RFC        *string            `json:"rfc"`
	Contacto   *string            `json:"contacto"`
	Telefono   *string            `json:"telefono"`
	Email      *string            `json:"email"`
	Direccion  *string            `json:"direccion"`
	Activo     bool               `json:"activo"`
	Sucursales []SucursalResponse `json:"sucursales,omitempty"`
}

type CrearSucursalRequest struct {
	Nombre    string  `json:"nombre"    validate:"required,min=2,max=200"`
	Direccion *string `json:"direccion"`
	Ciudad    *string `json:"ciudad"    validate:"omitempty,max=100"`
	Telefono  *string `json:"telefono"  validate:"omitempty,max=30"`
}

type SucursalResponse struct {
	ID        string  `json:"id"`
	ClienteID string  `json:"cliente_id"`
	Nombre    string  `json:"nombre"`
	Direccion *string `json:"direccion"`
	Ciudad    *string `json:"ciudad"`
	Telefono  *string `json:"telefono"`
	Activa    bool    `json:"activa"`
}
