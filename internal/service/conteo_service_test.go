package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"ecoloimp/internal/contadores"
	"ecoloimp/internal/dto"
	"ecoloimp/internal/infra"
	"ecoloimp/internal/model"
	"ecoloimp/internal/rbac"
	"ecoloimp/internal/repository"
	"ecoloimp/internal/testutil"
	"ecoloimp/internal/worker"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// ── Helpers ───────────────────────────────────────────────────────────────────

type alertasStub struct {
	enviadas []worker.Alerta
	err      error
}

func (a *alertasStub) EncolarAlerta(_ context.Context, al worker.Alerta) error {
	if a.err != nil {
		return a.err
	}
	a.enviadas = append(a.enviadas, al)
	return nil
}

// equipoRepoFallido injects failures into an otherwise real repository.
type equipoRepoFallido struct {
	repository.EquipoRepository
	fallarMantenimiento bool
	versionVieja        bool
}

func (r *equipoRepoFallido) MarcarMantenimientoTx(tx *gorm.DB, id uuid.UUID, proximo time.Time) error {
	if r.fallarMantenimiento {
		return errors.New("disco lleno")
	}
	return r.EquipoRepository.MarcarMantenimientoTx(tx, id, proximo)
}

func (r *equipoRepoFallido) FindByIDForUpdateTx(tx *gorm.DB, id uuid.UUID) (*model.Equipo, error) {
	e, err := r.EquipoRepository.FindByIDForUpdateTx(tx, id)
	if err == nil && r.versionVieja {
		e.Version--
	}
	return e, err
}

type entorno struct {
	db       *gorm.DB
	resolver *rbac.Resolver
	permisos PermisoService
	alertas  *alertasStub
	equipos  repository.EquipoRepository
	conteos  repository.ConteoRepository
	visitas  repository.VisitaRepository
	tecnico  *model.Usuario
	admin    *model.Usuario
	super    *model.Usuario
	cliente  *model.Cliente
	equipo   *model.Equipo
}

// nuevoEntorno builds a synced catalog, one user per role and one equipment
// whose last print counter is 5000.
func nuevoEntorno(t *testing.T) *entorno {
	t.Helper()
	db := testutil.NewDB(t)
	permRepo := repository.NewPermisoRepository(db)
	usuarios := repository.NewUsuarioRepository(db)
	resolver := rbac.NewResolver(permRepo, time.Minute)
	permisos := NewPermisoService(permRepo, usuarios, resolver)
	require.NoError(t, permisos.Sincronizar(context.Background()))

	cliente := testutil.Cliente(t, db, "Grupo Ecologico SA")
	return &entorno{
		db:       db,
		resolver: resolver,
		permisos: permisos,
		alertas:  &alertasStub{},
		equipos:  repository.NewEquipoRepository(db),
		conteos:  repository.NewConteoRepository(db),
		visitas:  repository.NewVisitaRepository(db),
		tecnico:  testutil.Usuario(t, db, "tecnico1", string(rbac.RolTecnico)),
		admin:    testutil.Usuario(t, db, "admin1", string(rbac.RolAdmin)),
		super:    testutil.Usuario(t, db, "root", string(rbac.RolSuperAdmin)),
		cliente:  cliente,
		equipo:   testutil.Equipo(t, db, cliente.ID, "XRX-0001", 5000),
	}
}

func (e *entorno) conteoSvc(equipos repository.EquipoRepository) *conteoService {
	if equipos == nil {
		equipos = e.equipos
	}
	svc := NewConteoService(equipos, e.conteos, e.visitas, e.resolver, e.alertas, infra.NewTestMetrics(), ConteoConfig{
		Limites:            contadores.LimitesPorDefecto(),
		PlazoMantenimiento: 7 * 24 * time.Hour,
	})
	return svc.(*conteoService)
}

func lectura(equipoID uuid.UUID, impresiones int64) dto.RegistrarConteoRequest {
	return dto.RegistrarConteoRequest{EquipoID: equipoID.String(), ContadorImpresiones: &impresiones}
}

// ── Scenarios ─────────────────────────────────────────────────────────────────

func TestRegistrar_DiferenciaNormal(t *testing.T) {
	e := nuevoEntorno(t)
	svc := e.conteoSvc(nil)

	resp, err := svc.Registrar(context.Background(), e.tecnico, lectura(e.equipo.ID, 5400))
	require.NoError(t, err)

	assert.Equal(t, int64(400), resp.DiferenciaImpresiones)
	assert.Equal(t, int64(5000), resp.ContadorAnteriorImpresiones)
	assert.False(t, resp.RequiereRevision)
	assert.False(t, resp.ContadorReiniciado)

	eq := testutil.RecargarEquipo(t, e.db, e.equipo.ID)
	assert.Equal(t, int64(5400), eq.UltimoContadorImpresiones)
	assert.NotNil(t, eq.FechaUltimoConteo)
	assert.Equal(t, e.equipo.Version+1, eq.Version)
	assert.Empty(t, e.alertas.enviadas)
}

func TestRegistrar_ReinicioDeContador(t *testing.T) {
	e := nuevoEntorno(t)
	require.NoError(t, e.db.Model(&model.Equipo{}).Where("id = ?", e.equipo.ID).
		Update("ultimo_contador_impresiones", 99000).Error)

	resp, err := e.conteoSvc(nil).Registrar(context.Background(), e.tecnico, lectura(e.equipo.ID, 50))
	require.NoError(t, err)

	assert.Equal(t, int64(50), resp.DiferenciaImpresiones)
	assert.True(t, resp.ContadorReiniciado)
	assert.Equal(t, int64(50), testutil.RecargarEquipo(t, e.db, e.equipo.ID).UltimoContadorImpresiones)
}

func TestRegistrar_SinPermisoNoPersiste(t *testing.T) {
	e := nuevoEntorno(t)
	ctx := context.Background()
	_, err := e.permisos.AsignarARol(ctx, string(rbac.RolTecnico), []string{"ver_conteos_propios"})
	require.NoError(t, err)

	_, err = e.conteoSvc(nil).Registrar(ctx, e.tecnico, lectura(e.equipo.ID, 5400))
	assert.ErrorIs(t, err, ErrNoAutorizado)
	assert.Zero(t, testutil.ContarConteos(t, e.db, e.equipo.ID))
	assert.Equal(t, int64(5000), testutil.RecargarEquipo(t, e.db, e.equipo.ID).UltimoContadorImpresiones)
}

func TestRegistrar_ContadorNegativo(t *testing.T) {
	e := nuevoEntorno(t)

	_, err := e.conteoSvc(nil).Registrar(context.Background(), e.tecnico, lectura(e.equipo.ID, -1))

	var cErr *contadores.ErrContadorInvalido
	require.ErrorAs(t, err, &cErr)
	assert.Equal(t, contadores.CampoImpresiones, cErr.Campo)
	assert.Zero(t, testutil.ContarConteos(t, e.db, e.equipo.ID))
}

func TestRegistrar_ContadorSobreElMaximo(t *testing.T) {
	e := nuevoEntorno(t)
	req := lectura(e.equipo.ID, 5400)
	req.ContadorCopias = 10_000_000

	_, err := e.conteoSvc(nil).Registrar(context.Background(), e.tecnico, req)

	var cErr *contadores.ErrContadorInvalido
	require.ErrorAs(t, err, &cErr)
	assert.Equal(t, contadores.CampoCopias, cErr.Campo)
	assert.Zero(t, testutil.ContarConteos(t, e.db, e.equipo.ID))
	eq := testutil.RecargarEquipo(t, e.db, e.equipo.ID)
	assert.Equal(t, int64(5000), eq.UltimoContadorImpresiones)
	assert.Equal(t, e.equipo.Version, eq.Version)
}

func TestRegistrar_ContadorAusente(t *testing.T) {
	e := nuevoEntorno(t)
	req := dto.RegistrarConteoRequest{EquipoID: e.equipo.ID.String()}

	_, err := e.conteoSvc(nil).Registrar(context.Background(), e.tecnico, req)

	var cErr *contadores.ErrContadorInvalido
	assert.ErrorAs(t, err, &cErr)
}

func TestRegistrar_AtomicidadContadorAnterior(t *testing.T) {
	e := nuevoEntorno(t)
	svc := e.conteoSvc(nil)
	ctx := context.Background()

	for _, v := range []int64{5100, 5350, 5900} {
		antes := testutil.RecargarEquipo(t, e.db, e.equipo.ID).UltimoContadorImpresiones
		resp, err := svc.Registrar(ctx, e.tecnico, lectura(e.equipo.ID, v))
		require.NoError(t, err)
		assert.Equal(t, antes, resp.ContadorAnteriorImpresiones)
		assert.Equal(t, v, testutil.RecargarEquipo(t, e.db, e.equipo.ID).UltimoContadorImpresiones)
	}
	assert.Equal(t, int64(3), testutil.ContarConteos(t, e.db, e.equipo.ID))
}

func TestRegistrar_SaltoGrandeMarcaRevisionYAlerta(t *testing.T) {
	e := nuevoEntorno(t)

	resp, err := e.conteoSvc(nil).Registrar(context.Background(), e.tecnico, lectura(e.equipo.ID, 25_000))
	require.NoError(t, err)

	assert.True(t, resp.RequiereRevision)
	assert.Equal(t, int64(20_000), resp.DiferenciaImpresiones)
	require.Len(t, e.alertas.enviadas, 1)
	assert.Equal(t, worker.AlertaRevision, e.alertas.enviadas[0].Tipo)
	assert.Equal(t, "XRX-0001", e.alertas.enviadas[0].NumeroSerie)
}

func TestRegistrar_PrimerConteoNoSeMarca(t *testing.T) {
	e := nuevoEntorno(t)
	nuevo := testutil.Equipo(t, e.db, e.cliente.ID, "HP-0002", 0)

	resp, err := e.conteoSvc(nil).Registrar(context.Background(), e.tecnico, lectura(nuevo.ID, 250_000))
	require.NoError(t, err)
	assert.False(t, resp.RequiereRevision)
	assert.Equal(t, int64(250_000), resp.DiferenciaImpresiones)
}

func TestRegistrar_FallaDeAlertaNoRevierte(t *testing.T) {
	e := nuevoEntorno(t)
	e.alertas.err = errors.New("redis caido")

	_, err := e.conteoSvc(nil).Registrar(context.Background(), e.tecnico, lectura(e.equipo.ID, 30_000))
	require.NoError(t, err)
	assert.Equal(t, int64(1), testutil.ContarConteos(t, e.db, e.equipo.ID))
}

func TestRegistrar_EquipoConFallasPasaAMantenimiento(t *testing.T) {
	e := nuevoEntorno(t)
	svc := e.conteoSvc(nil)
	fijo := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fijo }

	req := lectura(e.equipo.ID, 5100)
	req.EstadoEquipo = "con_fallas"
	resp, err := svc.Registrar(context.Background(), e.tecnico, req)
	require.NoError(t, err)
	assert.True(t, resp.RequiereMantenimiento)

	eq := testutil.RecargarEquipo(t, e.db, e.equipo.ID)
	assert.Equal(t, model.EquipoMantenimiento, eq.Estado)
	require.NotNil(t, eq.FechaProximoMantenimiento)
	assert.True(t, eq.FechaProximoMantenimiento.Equal(fijo.Add(7*24*time.Hour)))
	require.Len(t, e.alertas.enviadas, 1)
	assert.Equal(t, worker.AlertaMantenimiento, e.alertas.enviadas[0].Tipo)
}

func TestRegistrar_EquipoDeBaja(t *testing.T) {
	e := nuevoEntorno(t)
	require.NoError(t, e.equipos.CambiarEstado(context.Background(), e.equipo.ID, model.EquipoBaja, nil))

	_, err := e.conteoSvc(nil).Registrar(context.Background(), e.tecnico, lectura(e.equipo.ID, 5100))
	assert.ErrorIs(t, err, ErrConflicto)
	assert.Zero(t, testutil.ContarConteos(t, e.db, e.equipo.ID))
}

func TestRegistrar_EquipoInexistente(t *testing.T) {
	e := nuevoEntorno(t)
	_, err := e.conteoSvc(nil).Registrar(context.Background(), e.tecnico, lectura(uuid.New(), 10))
	assert.ErrorIs(t, err, ErrNoEncontrado)
}

func TestRegistrar_FallaDePersistenciaRevierte(t *testing.T) {
	e := nuevoEntorno(t)
	svc := e.conteoSvc(&equipoRepoFallido{EquipoRepository: e.equipos, fallarMantenimiento: true})

	req := lectura(e.equipo.ID, 5100)
	req.EstadoEquipo = "fuera_de_servicio"
	_, err := svc.Registrar(context.Background(), e.tecnico, req)

	assert.ErrorIs(t, err, ErrPersistencia)
	assert.Zero(t, testutil.ContarConteos(t, e.db, e.equipo.ID))
	eq := testutil.RecargarEquipo(t, e.db, e.equipo.ID)
	assert.Equal(t, int64(5000), eq.UltimoContadorImpresiones)
	assert.Equal(t, model.EquipoActivo, eq.Estado)
	assert.Empty(t, e.alertas.enviadas)
}

func TestRegistrar_VersionDesactualizadaEsConflicto(t *testing.T) {
	e := nuevoEntorno(t)
	svc := e.conteoSvc(&equipoRepoFallido{EquipoRepository: e.equipos, versionVieja: true})

	_, err := svc.Registrar(context.Background(), e.tecnico, lectura(e.equipo.ID, 5100))

	assert.ErrorIs(t, err, ErrConflicto)
	assert.Zero(t, testutil.ContarConteos(t, e.db, e.equipo.ID))
}

func TestRegistrar_VisitaDeOtroCliente(t *testing.T) {
	e := nuevoEntorno(t)
	otro := testutil.Cliente(t, e.db, "Otro Cliente")
	v := &model.Visita{ClienteID: otro.ID, TecnicoID: e.tecnico.ID, FechaProgramada: time.Now(), Tipo: "conteo", Estado: model.VisitaProgramada}
	require.NoError(t, e.visitas.Create(context.Background(), v))

	req := lectura(e.equipo.ID, 5100)
	vid := v.ID.String()
	req.VisitaID = &vid
	_, err := e.conteoSvc(nil).Registrar(context.Background(), e.tecnico, req)
	assert.ErrorIs(t, err, ErrDatosInvalidos)
}

func TestRegistrar_FechaFuturaRechazada(t *testing.T) {
	e := nuevoEntorno(t)
	svc := e.conteoSvc(nil)
	ctx := context.Background()
	ahora := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return ahora }

	futura := lectura(e.equipo.ID, 5100)
	f := ahora.AddDate(1, 0, 0)
	futura.FechaConteo = &f
	_, err := svc.Registrar(ctx, e.tecnico, futura)
	assert.ErrorIs(t, err, ErrDatosInvalidos)
	assert.Zero(t, testutil.ContarConteos(t, e.db, e.equipo.ID))

	// an undated reading after the rejected one is the latest and deleting
	// it puts the equipment back where it started
	r, err := svc.Registrar(ctx, e.tecnico, lectura(e.equipo.ID, 5200))
	require.NoError(t, err)
	require.NoError(t, svc.Eliminar(ctx, e.super, uuid.MustParse(r.ID)))

	eq := testutil.RecargarEquipo(t, e.db, e.equipo.ID)
	assert.Equal(t, int64(5000), eq.UltimoContadorImpresiones)
	assert.Nil(t, eq.FechaUltimoConteo)
	assert.Zero(t, testutil.ContarConteos(t, e.db, e.equipo.ID))
}

func TestRegistrar_FechaAnteriorAlUltimoConteo(t *testing.T) {
	e := nuevoEntorno(t)
	svc := e.conteoSvc(nil)
	f1 := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return f1.Add(48 * time.Hour) }

	registrarEn(t, svc, e.tecnico, e.equipo.ID, 5400, f1)
	antes := testutil.RecargarEquipo(t, e.db, e.equipo.ID)

	atrasada := lectura(e.equipo.ID, 5500)
	f0 := f1.Add(-time.Hour)
	atrasada.FechaConteo = &f0
	_, err := svc.Registrar(context.Background(), e.tecnico, atrasada)
	assert.ErrorIs(t, err, ErrDatosInvalidos)

	eq := testutil.RecargarEquipo(t, e.db, e.equipo.ID)
	assert.Equal(t, int64(5400), eq.UltimoContadorImpresiones)
	assert.Equal(t, antes.Version, eq.Version)
	assert.Equal(t, int64(1), testutil.ContarConteos(t, e.db, e.equipo.ID))
}

// ── Consultas ─────────────────────────────────────────────────────────────────

func TestListar_TecnicoSoloVeLosPropios(t *testing.T) {
	e := nuevoEntorno(t)
	otro := testutil.Usuario(t, e.db, "tecnico2", string(rbac.RolTecnico))
	base := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	testutil.Conteo(t, e.db, e.equipo.ID, e.tecnico.ID, base, 5100, 5000)
	testutil.Conteo(t, e.db, e.equipo.ID, otro.ID, base.Add(time.Hour), 5200, 5100)
	svc := e.conteoSvc(nil)

	propios, err := svc.Listar(context.Background(), e.tecnico, dto.ConteoFilter{TecnicoID: otro.ID.String()})
	require.NoError(t, err)
	require.Len(t, propios.Data, 1)
	assert.Equal(t, e.tecnico.ID.String(), propios.Data[0].TecnicoID)

	todos, err := svc.Listar(context.Background(), e.admin, dto.ConteoFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), todos.Total)
}

func TestObtener_TecnicoNoVeConteoAjeno(t *testing.T) {
	e := nuevoEntorno(t)
	otro := testutil.Usuario(t, e.db, "tecnico2", string(rbac.RolTecnico))
	c := testutil.Conteo(t, e.db, e.equipo.ID, otro.ID, time.Now(), 5100, 5000)

	_, err := e.conteoSvc(nil).Obtener(context.Background(), e.tecnico, c.ID)
	assert.ErrorIs(t, err, ErrNoAutorizado)
}

// ── Eliminar ──────────────────────────────────────────────────────────────────

// registrarEn records a reading dated at fecha.
func registrarEn(t *testing.T, svc *conteoService, actor rbac.Principal, equipoID uuid.UUID, v int64, fecha time.Time) *dto.ConteoResponse {
	t.Helper()
	req := lectura(equipoID, v)
	req.FechaConteo = &fecha
	resp, err := svc.Registrar(context.Background(), actor, req)
	require.NoError(t, err)
	return resp
}

func TestEliminar_UltimoRestauraContadores(t *testing.T) {
	e := nuevoEntorno(t)
	svc := e.conteoSvc(nil)
	ctx := context.Background()
	f1 := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	f2 := f1.Add(24 * time.Hour)
	svc.now = func() time.Time { return f2.Add(time.Hour) }

	registrarEn(t, svc, e.tecnico, e.equipo.ID, 5400, f1)
	r2 := registrarEn(t, svc, e.tecnico, e.equipo.ID, 6000, f2)

	require.NoError(t, svc.Eliminar(ctx, e.super, uuid.MustParse(r2.ID)))

	eq := testutil.RecargarEquipo(t, e.db, e.equipo.ID)
	assert.Equal(t, int64(5400), eq.UltimoContadorImpresiones)
	require.NotNil(t, eq.FechaUltimoConteo)
	assert.True(t, eq.FechaUltimoConteo.Equal(f1))
	assert.Equal(t, int64(1), testutil.ContarConteos(t, e.db, e.equipo.ID))
}

func TestEliminar_ConteoAntiguoNoTocaEquipo(t *testing.T) {
	e := nuevoEntorno(t)
	svc := e.conteoSvc(nil)
	f1 := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	f2 := f1.Add(24 * time.Hour)
	svc.now = func() time.Time { return f2.Add(time.Hour) }

	r1 := registrarEn(t, svc, e.tecnico, e.equipo.ID, 5400, f1)
	registrarEn(t, svc, e.tecnico, e.equipo.ID, 6000, f2)
	antes := testutil.RecargarEquipo(t, e.db, e.equipo.ID)

	require.NoError(t, svc.Eliminar(context.Background(), e.super, uuid.MustParse(r1.ID)))

	eq := testutil.RecargarEquipo(t, e.db, e.equipo.ID)
	assert.Equal(t, int64(6000), eq.UltimoContadorImpresiones)
	require.NotNil(t, eq.FechaUltimoConteo)
	assert.True(t, eq.FechaUltimoConteo.Equal(f2))
	assert.Equal(t, antes.Version, eq.Version)
	assert.Equal(t, int64(1), testutil.ContarConteos(t, e.db, e.equipo.ID))
}

func TestEliminar_UnicoConteoVuelveAlValorAnterior(t *testing.T) {
	e := nuevoEntorno(t)
	svc := e.conteoSvc(nil)
	ctx := context.Background()

	r, err := svc.Registrar(ctx, e.tecnico, lectura(e.equipo.ID, 5400))
	require.NoError(t, err)
	require.NoError(t, svc.Eliminar(ctx, e.super, uuid.MustParse(r.ID)))

	eq := testutil.RecargarEquipo(t, e.db, e.equipo.ID)
	assert.Equal(t, int64(5000), eq.UltimoContadorImpresiones)
	assert.Nil(t, eq.FechaUltimoConteo)
}

func TestEliminar_RequierePermiso(t *testing.T) {
	e := nuevoEntorno(t)
	c := testutil.Conteo(t, e.db, e.equipo.ID, e.tecnico.ID, time.Now(), 5100, 5000)

	err := e.conteoSvc(nil).Eliminar(context.Background(), e.admin, c.ID)
	assert.ErrorIs(t, err, ErrNoAutorizado)
	assert.Equal(t, int64(1), testutil.ContarConteos(t, e.db, e.equipo.ID))
}
