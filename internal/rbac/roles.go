// Package rbac holds the role registry, the permission catalog and the
// resolver that answers "may this principal do X?".
package rbac

import "github.com/google/uuid"

// Rol is the closed set of roles a Usuario can carry.
type Rol string

const (
	RolTecnico    Rol = "tecnico"
	RolAdmin      Rol = "admin"
	RolSuperAdmin Rol = "superadmin"

	// CualquierAutenticado is accepted by RequireRole to mean "any logged-in user".
	CualquierAutenticado Rol = "*"
)

// RangoMaximo is the rank that bypasses every permission check.
const RangoMaximo = 3

type definicionRol struct {
	Rango       int
	Nombre      string
	Descripcion string
}

var registro = map[Rol]definicionRol{
	RolSuperAdmin: {Rango: 3, Nombre: "Super Administrador", Descripcion: "Acceso completo al sistema"},
	RolAdmin:      {Rango: 2, Nombre: "Administrador", Descripcion: "Gestión de clientes, equipos, usuarios y conteos"},
	RolTecnico:    {Rango: 1, Nombre: "Técnico", Descripcion: "Registro de conteos y visitas en campo"},
}

// Principal is anything the guards can authorize: a loaded Usuario or the
// claims of a verified token.
type Principal interface {
	UsuarioID() uuid.UUID
	RolActual() Rol
}

// Rango returns the numeric rank of r, 0 for unknown roles.
func Rango(r Rol) int {
	return registro[r].Rango
}

// EsRangoMaximo reports whether r bypasses permission checks.
func EsRangoMaximo(r Rol) bool {
	return Rango(r) >= RangoMaximo
}

// RolValido reports whether r is a registered role.
func RolValido(r Rol) bool {
	_, ok := registro[r]
	return ok
}

// InfoRol describes a role for listing endpoints.
type InfoRol struct {
	Rol         Rol    `json:"rol"`
	Rango       int    `json:"rango"`
	Nombre      string `json:"nombre"`
	Descripcion string `json:"descripcion"`
}

// Roles lists the registry ordered by descending rank.
func Roles() []InfoRol {
	out := make([]InfoRol, 0, len(registro))
	for _, r := range []Rol{RolSuperAdmin, RolAdmin, RolTecnico} {
		d := registro[r]
		out = append(out, InfoRol{Rol: r, Rango: d.Rango, Nombre: d.Nombre, Descripcion: d.Descripcion})
	}
	return out
}

// PermisosPorDefecto returns the permission names that r receives when the
// catalog is synchronised.
func PermisosPorDefecto(r Rol) []string {
	var out []string
	for _, p := range catalogo {
		for _, pr := range p.Roles {
			if pr == r {
				out = append(out, p.Nombre)
				break
			}
		}
	}
	return out
}
