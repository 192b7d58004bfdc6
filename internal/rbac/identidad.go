package rbac

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrUsuarioDesconocido is returned by a FuenteIdentidades when the id has
// no stored user.
var ErrUsuarioDesconocido = errors.New("rbac: usuario desconocido")

// Identidad is the stored role and state of a user. Guards authorize against
// it instead of whatever role a token was issued with.
type Identidad struct {
	ID     uuid.UUID
	Rol    Rol
	Activo bool
}

func (i Identidad) UsuarioID() uuid.UUID { return i.ID }
func (i Identidad) RolActual() Rol       { return i.Rol }

// FuenteIdentidades loads the stored identity of a user. The user
// repository implements it.
type FuenteIdentidades interface {
	Identidad(ctx context.Context, id uuid.UUID) (Identidad, error)
}

// UsarIdentidades plugs the user store the resolver reads identities from.
// It must be called before the resolver is shared.
func (r *Resolver) UsarIdentidades(f FuenteIdentidades) {
	r.fuente = f
}

// Identidad returns the stored identity of id, cached like the permission
// sets and dropped by InvalidarUsuario. Without a source every id is
// unknown.
func (r *Resolver) Identidad(ctx context.Context, id uuid.UUID) (Identidad, error) {
	if r.fuente == nil {
		return Identidad{}, ErrUsuarioDesconocido
	}
	if r.identidades != nil {
		if i, ok := r.identidades.Get(id); ok {
			return i, nil
		}
	}
	i, err := r.fuente.Identidad(ctx, id)
	if err != nil {
		return Identidad{}, err
	}
	if r.identidades != nil {
		r.identidades.Add(id, i)
	}
	return i, nil
}
