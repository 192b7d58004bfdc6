package rbac

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog/log"
)

// Store is the persistence the resolver reads from. The permission
// repository implements it.
type Store interface {
	PermisosDeRol(ctx context.Context, rol Rol) ([]string, error)
	PermisosDirectos(ctx context.Context, usuarioID uuid.UUID) ([]string, error)
	NombresCatalogo(ctx context.Context) ([]string, error)
}

type conjunto map[string]struct{}

func nuevoConjunto(nombres []string) conjunto {
	c := make(conjunto, len(nombres))
	for _, n := range nombres {
		c[n] = struct{}{}
	}
	return c
}

func (c conjunto) tiene(n string) bool {
	_, ok := c[n]
	return ok
}

// Resolver answers permission questions for a Principal. A failing store is
// logged and reported as "not permitted"; the resolver never returns errors.
type Resolver struct {
	store    Store
	porRol   *lru.LRU[Rol, conjunto]
	porUsuar *lru.LRU[uuid.UUID, conjunto]

	fuente      FuenteIdentidades
	identidades *lru.LRU[uuid.UUID, Identidad]
}

// NewResolver builds a resolver. ttl <= 0 disables caching.
func NewResolver(store Store, ttl time.Duration) *Resolver {
	r := &Resolver{store: store}
	if ttl > 0 {
		r.porRol = lru.NewLRU[Rol, conjunto](16, nil, ttl)
		r.porUsuar = lru.NewLRU[uuid.UUID, conjunto](1024, nil, ttl)
		r.identidades = lru.NewLRU[uuid.UUID, Identidad](1024, nil, ttl)
	}
	return r
}

// TienePermiso reports whether p holds nombre, either through a direct grant
// or through its role. The top rank always holds every permission.
func (r *Resolver) TienePermiso(ctx context.Context, p Principal, nombre string) bool {
	if p == nil {
		return false
	}
	if EsRangoMaximo(p.RolActual()) {
		return true
	}
	if r.directos(ctx, p.UsuarioID()).tiene(nombre) {
		return true
	}
	return r.deRol(ctx, p.RolActual()).tiene(nombre)
}

// TienePermisos checks several permissions at once. With requireAll every
// name must be held; otherwise one is enough. An empty list is vacuously
// true for requireAll and false otherwise.
func (r *Resolver) TienePermisos(ctx context.Context, p Principal, nombres []string, requireAll bool) bool {
	if len(nombres) == 0 {
		return requireAll
	}
	for _, n := range nombres {
		ok := r.TienePermiso(ctx, p, n)
		if requireAll && !ok {
			return false
		}
		if !requireAll && ok {
			return true
		}
	}
	return requireAll
}

// PermisosDe returns the sorted effective permission names of p.
func (r *Resolver) PermisosDe(ctx context.Context, p Principal) []string {
	if p == nil {
		return nil
	}
	if EsRangoMaximo(p.RolActual()) {
		nombres, err := r.store.NombresCatalogo(ctx)
		if err != nil {
			log.Error().Err(err).Msg("rbac: no se pudo leer el catalogo de permisos")
			nombres = nil
			for _, d := range catalogo {
				nombres = append(nombres, d.Nombre)
			}
		}
		sort.Strings(nombres)
		return nombres
	}

	union := make(conjunto)
	for n := range r.deRol(ctx, p.RolActual()) {
		union[n] = struct{}{}
	}
	for n := range r.directos(ctx, p.UsuarioID()) {
		union[n] = struct{}{}
	}
	out := make([]string, 0, len(union))
	for n := range union {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// InvalidarRol drops the cached permission set of rol.
func (r *Resolver) InvalidarRol(rol Rol) {
	if r.porRol != nil {
		r.porRol.Remove(rol)
	}
}

// InvalidarUsuario drops the cached direct grants and identity of id.
func (r *Resolver) InvalidarUsuario(id uuid.UUID) {
	if r.porUsuar != nil {
		r.porUsuar.Remove(id)
	}
	if r.identidades != nil {
		r.identidades.Remove(id)
	}
}

func (r *Resolver) deRol(ctx context.Context, rol Rol) conjunto {
	if r.porRol != nil {
		if c, ok := r.porRol.Get(rol); ok {
			return c
		}
	}
	nombres, err := r.store.PermisosDeRol(ctx, rol)
	if err != nil {
		log.Error().Err(err).Str("rol", string(rol)).Msg("rbac: error leyendo permisos del rol")
		return conjunto{}
	}
	c := nuevoConjunto(nombres)
	if r.porRol != nil {
		r.porRol.Add(rol, c)
	}
	return c
}

func (r *Resolver) directos(ctx context.Context, id uuid.UUID) conjunto {
	if r.porUsuar != nil {
		if c, ok := r.porUsuar.Get(id); ok {
			return c
		}
	}
	nombres, err := r.store.PermisosDirectos(ctx, id)
	if err != nil {
		log.Error().Err(err).Str("usuario_id", id.String()).Msg("rbac: error leyendo permisos directos")
		return conjunto{}
	}
	c := nuevoConjunto(nombres)
	if r.porUsuar != nil {
		r.porUsuar.Add(id, c)
	}
	return c
}
