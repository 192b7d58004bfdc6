package rbac

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ── Stubs ─────────────────────────────────────────────────────────────────────

type stubStore struct {
	porRol   map[Rol][]string
	directos map[uuid.UUID][]string
	catalogo []string
	err      error
	lecturas int
}

func (s *stubStore) PermisosDeRol(_ context.Context, rol Rol) ([]string, error) {
	s.lecturas++
	if s.err != nil {
		return nil, s.err
	}
	return s.porRol[rol], nil
}

func (s *stubStore) PermisosDirectos(_ context.Context, id uuid.UUID) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.directos[id], nil
}

func (s *stubStore) NombresCatalogo(_ context.Context) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.catalogo, nil
}

type usuarioPrueba struct {
	id  uuid.UUID
	rol Rol
}

func (u usuarioPrueba) UsuarioID() uuid.UUID { return u.id }
func (u usuarioPrueba) RolActual() Rol       { return u.rol }

func nuevoStore() *stubStore {
	return &stubStore{
		porRol: map[Rol][]string{
			RolTecnico: {"ver_conteos_propios", "crear_conteos"},
			RolAdmin:   {"ver_conteos", "crear_conteos", "gestionar_equipos"},
		},
		directos: map[uuid.UUID][]string{},
		catalogo: []string{"crear_conteos", "ver_conteos", "gestionar_equipos"},
	}
}

// ── Registry ──────────────────────────────────────────────────────────────────

func TestRango_OrdenDeRoles(t *testing.T) {
	assert.Greater(t, Rango(RolSuperAdmin), Rango(RolAdmin))
	assert.Greater(t, Rango(RolAdmin), Rango(RolTecnico))
	assert.Equal(t, 0, Rango("recepcion"))
	assert.True(t, EsRangoMaximo(RolSuperAdmin))
	assert.False(t, EsRangoMaximo(RolAdmin))
}

func TestPermisosPorDefecto_Tecnico(t *testing.T) {
	perms := PermisosPorDefecto(RolTecnico)
	assert.Contains(t, perms, "crear_conteos")
	assert.Contains(t, perms, "ver_conteos_propios")
	assert.NotContains(t, perms, "eliminar_conteos")
	assert.NotContains(t, perms, "ver_conteos")
}

func TestCatalogo_RolesValidos(t *testing.T) {
	for _, p := range Catalogo() {
		require.NotEmpty(t, p.Roles, p.Nombre)
		for _, r := range p.Roles {
			assert.True(t, RolValido(r), "%s: rol %q no registrado", p.Nombre, r)
		}
	}
}

// ── Resolver ──────────────────────────────────────────────────────────────────

func TestTienePermiso_SuperAdminTodoIncluyendoNuevos(t *testing.T) {
	store := nuevoStore()
	r := NewResolver(store, time.Minute)
	super := usuarioPrueba{id: uuid.New(), rol: RolSuperAdmin}

	for _, n := range store.catalogo {
		assert.True(t, r.TienePermiso(context.Background(), super, n))
	}

	// Permission created after the user exists.
	store.catalogo = append(store.catalogo, "auditar_flota")
	assert.True(t, r.TienePermiso(context.Background(), super, "auditar_flota"))
	assert.Contains(t, r.PermisosDe(context.Background(), super), "auditar_flota")
}

func TestTienePermiso_OtorgamientoDirectoPrevaleceSobreRol(t *testing.T) {
	store := nuevoStore()
	tec := usuarioPrueba{id: uuid.New(), rol: RolTecnico}
	store.directos[tec.id] = []string{"exportar_conteos"}
	r := NewResolver(store, 0)

	assert.True(t, r.TienePermiso(context.Background(), tec, "exportar_conteos"))
	assert.False(t, r.TienePermiso(context.Background(), tec, "eliminar_conteos"))
}

func TestTienePermisos_TodosVsAlguno(t *testing.T) {
	r := NewResolver(nuevoStore(), 0)
	tec := usuarioPrueba{id: uuid.New(), rol: RolTecnico}
	ctx := context.Background()

	cases := []struct {
		nombres    []string
		requireAll bool
		want       bool
	}{
		{[]string{"crear_conteos", "ver_conteos_propios"}, true, true},
		{[]string{"crear_conteos", "ver_conteos"}, true, false},
		{[]string{"crear_conteos", "ver_conteos"}, false, true},
		{[]string{"ver_conteos", "eliminar_conteos"}, false, false},
		{nil, true, true},
		{nil, false, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, r.TienePermisos(ctx, tec, tc.nombres, tc.requireAll), "%v all=%v", tc.nombres, tc.requireAll)
	}
}

func TestTienePermiso_TecnicoSinCrearConteos(t *testing.T) {
	store := nuevoStore()
	store.porRol[RolTecnico] = []string{"ver_conteos_propios"}
	r := NewResolver(store, 0)

	tec := usuarioPrueba{id: uuid.New(), rol: RolTecnico}
	assert.False(t, r.TienePermiso(context.Background(), tec, "crear_conteos"))
}

func TestTienePermiso_ErrorDeStoreNiega(t *testing.T) {
	store := nuevoStore()
	store.err = errors.New("db caida")
	r := NewResolver(store, time.Minute)

	admin := usuarioPrueba{id: uuid.New(), rol: RolAdmin}
	assert.False(t, r.TienePermiso(context.Background(), admin, "ver_conteos"))

	// Errors are not cached.
	store.err = nil
	assert.True(t, r.TienePermiso(context.Background(), admin, "ver_conteos"))
}

func TestTienePermiso_PrincipalNilNiega(t *testing.T) {
	r := NewResolver(nuevoStore(), 0)
	assert.False(t, r.TienePermiso(context.Background(), nil, "ver_conteos"))
}

func TestResolver_CacheEInvalidacion(t *testing.T) {
	store := nuevoStore()
	r := NewResolver(store, time.Minute)
	admin := usuarioPrueba{id: uuid.New(), rol: RolAdmin}
	ctx := context.Background()

	assert.False(t, r.TienePermiso(ctx, admin, "exportar_conteos"))
	assert.False(t, r.TienePermiso(ctx, admin, "exportar_conteos"))
	assert.Equal(t, 1, store.lecturas)

	store.porRol[RolAdmin] = append(store.porRol[RolAdmin], "exportar_conteos")
	assert.False(t, r.TienePermiso(ctx, admin, "exportar_conteos"), "cached value still served")

	r.InvalidarRol(RolAdmin)
	assert.True(t, r.TienePermiso(ctx, admin, "exportar_conteos"))
}

func TestPermisosDe_Union(t *testing.T) {
	store := nuevoStore()
	tec := usuarioPrueba{id: uuid.New(), rol: RolTecnico}
	store.directos[tec.id] = []string{"exportar_conteos", "crear_conteos"}
	r := NewResolver(store, 0)

	assert.Equal(t,
		[]string{"crear_conteos", "exportar_conteos", "ver_conteos_propios"},
		r.PermisosDe(context.Background(), tec))
}

type fuentePrueba struct {
	usuarios map[uuid.UUID]Identidad
	lecturas int
}

func (f *fuentePrueba) Identidad(_ context.Context, id uuid.UUID) (Identidad, error) {
	f.lecturas++
	i, ok := f.usuarios[id]
	if !ok {
		return Identidad{}, ErrUsuarioDesconocido
	}
	return i, nil
}

func TestIdentidad_CacheEInvalidacionPorUsuario(t *testing.T) {
	id := uuid.New()
	fuente := &fuentePrueba{usuarios: map[uuid.UUID]Identidad{
		id: {ID: id, Rol: RolSuperAdmin, Activo: true},
	}}
	r := NewResolver(nuevoStore(), time.Minute)
	r.UsarIdentidades(fuente)
	ctx := context.Background()

	i, err := r.Identidad(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, RolSuperAdmin, i.RolActual())
	_, _ = r.Identidad(ctx, id)
	assert.Equal(t, 1, fuente.lecturas)

	fuente.usuarios[id] = Identidad{ID: id, Rol: RolAdmin, Activo: false}
	r.InvalidarUsuario(id)

	i, err = r.Identidad(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, RolAdmin, i.Rol)
	assert.False(t, i.Activo)
	assert.False(t, r.TienePermiso(ctx, i, "configurar_sistema"))
}

func TestIdentidad_Desconocida(t *testing.T) {
	r := NewResolver(nuevoStore(), time.Minute)

	_, err := r.Identidad(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrUsuarioDesconocido, "sin fuente")

	r.UsarIdentidades(&fuentePrueba{})
	_, err = r.Identidad(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrUsuarioDesconocido)
}
