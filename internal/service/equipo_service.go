package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"ecoloimp/internal/contadores"
	"ecoloimp/internal/dto"
	"ecoloimp/internal/model"
	"ecoloimp/internal/rbac"
	"ecoloimp/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type EquipoService interface {
	Crear(ctx context.Context, req dto.CrearEquipoRequest) (*dto.EquipoResponse, error)
	Listar(ctx context.Context, actor rbac.Principal, filter dto.EquipoFilter) (*dto.EquipoListResponse, error)
	Obtener(ctx context.Context, actor rbac.Principal, id uuid.UUID) (*dto.EquipoResponse, error)
	Actualizar(ctx context.Context, id uuid.UUID, req dto.ActualizarEquipoRequest) (*dto.EquipoResponse, error)
	CambiarEstado(ctx context.Context, id uuid.UUID, req dto.CambiarEstadoEquipoRequest) (*dto.EquipoResponse, error)
	Historial(ctx context.Context, actor rbac.Principal, id uuid.UUID, page, limit int) (*dto.ConteoListResponse, error)
	PromedioMensual(ctx context.Context, actor rbac.Principal, id uuid.UUID, meses int) (*dto.PromedioMensualResponse, error)
}

type equipoService struct {
	repo     repository.EquipoRepository
	clientes repository.ClienteRepository
	usuarios repository.UsuarioRepository
	conteos  repository.ConteoRepository
	permisos Autorizador
	limites  contadores.Limites
	now      func() time.Time
}

func NewEquipoService(
	repo repository.EquipoRepository,
	clientes repository.ClienteRepository,
	usuarios repository.UsuarioRepository,
	conteos repository.ConteoRepository,
	permisos Autorizador,
	limites contadores.Limites,
) EquipoService {
	if limites.MaxContador == 0 {
		limites = contadores.LimitesPorDefecto()
	}
	return &equipoService{
		repo:     repo,
		clientes: clientes,
		usuarios: usuarios,
		conteos:  conteos,
		permisos: permisos,
		limites:  limites,
		now:      time.Now,
	}
}

func (s *equipoService) Crear(ctx context.Context, req dto.CrearEquipoRequest) (*dto.EquipoResponse, error) {
	if err := s.limites.Validar(contadores.Lectura{
		Impresiones: req.ContadorInicialImpresiones,
		Escaneos:    req.ContadorInicialEscaneos,
		Copias:      req.ContadorInicialCopias,
	}); err != nil {
		return nil, err
	}

	clienteID, err := uuid.Parse(req.ClienteID)
	if err != nil {
		return nil, fmt.Errorf("%w: cliente_id", ErrDatosInvalidos)
	}
	if err := s.validarCliente(ctx, clienteID); err != nil {
		return nil, err
	}
	sucursalID, err := s.validarSucursal(ctx, clienteID, req.SucursalID)
	if err != nil {
		return nil, err
	}
	tecnicoID, err := s.validarTecnico(ctx, req.TecnicoAsignadoID)
	if err != nil {
		return nil, err
	}

	tipo := req.Tipo
	if tipo == "" {
		tipo = "multifuncional"
	}
	e := &model.Equipo{
		NumeroSerie:               strings.ToUpper(strings.TrimSpace(req.NumeroSerie)),
		Marca:                     req.Marca,
		Modelo:                    req.Modelo,
		Tipo:                      tipo,
		ClienteID:                 clienteID,
		SucursalID:                sucursalID,
		TecnicoAsignadoID:         tecnicoID,
		Ubicacion:                 req.Ubicacion,
		Estado:                    model.EquipoActivo,
		UltimoContadorImpresiones: req.ContadorInicialImpresiones,
		UltimoContadorEscaneos:    req.ContadorInicialEscaneos,
		UltimoContadorCopias:      req.ContadorInicialCopias,
		FechaInstalacion:          req.FechaInstalacion,
	}
	if err := s.repo.Create(ctx, e); err != nil {
		if esViolacionUnica(err) {
			return nil, fmt.Errorf("%w: numero de serie %s ya registrado", ErrConflicto, e.NumeroSerie)
		}
		return nil, err
	}
	log.Info().Str("equipo_id", e.ID.String()).Str("numero_serie", e.NumeroSerie).Msg("equipo creado")
	return s.toResponse(e), nil
}

// alcance returns the technician the caller is restricted to, nil when the
// caller may see every equipment.
func (s *equipoService) alcance(ctx context.Context, actor rbac.Principal) (*uuid.UUID, error) {
	if s.permisos.TienePermiso(ctx, actor, "ver_equipos") || s.permisos.TienePermiso(ctx, actor, "gestionar_equipos") {
		return nil, nil
	}
	if s.permisos.TienePermiso(ctx, actor, "ver_equipos_asignados") {
		id := actor.UsuarioID()
		return &id, nil
	}
	return nil, ErrNoAutorizado
}

func (s *equipoService) Listar(ctx context.Context, actor rbac.Principal, filter dto.EquipoFilter) (*dto.EquipoListResponse, error) {
	tecnico, err := s.alcance(ctx, actor)
	if err != nil {
		return nil, err
	}
	if filter.Estado != "" && !model.EstadoEquipoValido(filter.Estado) {
		return nil, fmt.Errorf("%w: estado %q", ErrDatosInvalidos, filter.Estado)
	}
	f := repository.EquipoFilter{
		TecnicoAsignadoID: tecnico,
		Estado:            filter.Estado,
		Busqueda:          strings.TrimSpace(filter.Busqueda),
		Page:              filter.Page,
		Limit:             filter.Limit,
	}
	if filter.ClienteID != "" {
		id, err := uuid.Parse(filter.ClienteID)
		if err != nil {
			return nil, fmt.Errorf("%w: cliente_id", ErrDatosInvalidos)
		}
		f.ClienteID = &id
	}
	if filter.SucursalID != "" {
		id, err := uuid.Parse(filter.SucursalID)
		if err != nil {
			return nil, fmt.Errorf("%w: sucursal_id", ErrDatosInvalidos)
		}
		f.SucursalID = &id
	}

	es, total, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, err
	}
	page, limit := normalizarPagina(filter.Page, filter.Limit)
	resp := &dto.EquipoListResponse{
		Data:       make([]dto.EquipoResponse, len(es)),
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: int(math.Ceil(float64(total) / float64(limit))),
	}
	for i := range es {
		resp.Data[i] = *s.toResponse(&es[i])
	}
	return resp, nil
}

func (s *equipoService) Obtener(ctx context.Context, actor rbac.Principal, id uuid.UUID) (*dto.EquipoResponse, error) {
	e, err := s.obtenerVisible(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return s.toResponse(e), nil
}

func (s *equipoService) obtenerVisible(ctx context.Context, actor rbac.Principal, id uuid.UUID) (*model.Equipo, error) {
	tecnico, err := s.alcance(ctx, actor)
	if err != nil {
		return nil, err
	}
	e, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if esNoEncontrado(err) {
			return nil, ErrNoEncontrado
		}
		return nil, err
	}
	if tecnico != nil && (e.TecnicoAsignadoID == nil || *e.TecnicoAsignadoID != *tecnico) {
		return nil, ErrNoEncontrado
	}
	return e, nil
}

func (s *equipoService) Actualizar(ctx context.Context, id uuid.UUID, req dto.ActualizarEquipoRequest) (*dto.EquipoResponse, error) {
	e, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if esNoEncontrado(err) {
			return nil, ErrNoEncontrado
		}
		return nil, err
	}
	if req.Marca != nil {
		e.Marca = *req.Marca
	}
	if req.Modelo != nil {
		e.Modelo = *req.Modelo
	}
	if req.Tipo != nil {
		e.Tipo = *req.Tipo
	}
	if req.Ubicacion != nil {
		e.Ubicacion = req.Ubicacion
	}
	if req.SucursalID != nil {
		suc, err := s.validarSucursal(ctx, e.ClienteID, req.SucursalID)
		if err != nil {
			return nil, err
		}
		e.SucursalID = suc
	}
	if req.TecnicoAsignadoID != nil {
		tec, err := s.validarTecnico(ctx, req.TecnicoAsignadoID)
		if err != nil {
			return nil, err
		}
		e.TecnicoAsignadoID = tec
	}
	if err := s.repo.Update(ctx, e); err != nil {
		return nil, err
	}
	return s.toResponse(e), nil
}

// CambiarEstado moves an equipment between states. "baja" is terminal.
func (s *equipoService) CambiarEstado(ctx context.Context, id uuid.UUID, req dto.CambiarEstadoEquipoRequest) (*dto.EquipoResponse, error) {
	if !model.EstadoEquipoValido(req.Estado) {
		return nil, fmt.Errorf("%w: estado %q", ErrDatosInvalidos, req.Estado)
	}
	e, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if esNoEncontrado(err) {
			return nil, ErrNoEncontrado
		}
		return nil, err
	}
	if e.Estado == model.EquipoBaja && req.Estado != model.EquipoBaja {
		return nil, fmt.Errorf("%w: un equipo dado de baja no puede reactivarse", ErrTransicionInvalida)
	}
	if e.Estado == model.EquipoMantenimiento && req.Estado == model.EquipoActivo {
		// leaving maintenance never keeps a past due date
		proximo := req.FechaProximoMantenimiento
		if proximo != nil && !proximo.After(s.now()) {
			return nil, fmt.Errorf("%w: fecha_proximo_mantenimiento debe ser futura", ErrDatosInvalidos)
		}
		if err := s.repo.FinalizarMantenimiento(ctx, id, proximo); err != nil {
			return nil, err
		}
		e.FechaProximoMantenimiento = proximo
	} else {
		if err := s.repo.CambiarEstado(ctx, id, req.Estado, req.FechaProximoMantenimiento); err != nil {
			return nil, err
		}
		if req.FechaProximoMantenimiento != nil {
			e.FechaProximoMantenimiento = req.FechaProximoMantenimiento
		}
	}
	e.Estado = req.Estado
	log.Info().Str("equipo_id", id.String()).Str("estado", req.Estado).Msg("estado de equipo actualizado")
	return s.toResponse(e), nil
}

func (s *equipoService) Historial(ctx context.Context, actor rbac.Principal, id uuid.UUID, page, limit int) (*dto.ConteoListResponse, error) {
	if _, err := s.obtenerVisible(ctx, actor, id); err != nil {
		return nil, err
	}
	cs, total, err := s.conteos.List(ctx, repository.ConteoFilter{EquipoID: &id, Page: page, Limit: limit})
	if err != nil {
		return nil, err
	}
	page, limit = normalizarPagina(page, limit)
	resp := &dto.ConteoListResponse{
		Data:       make([]dto.ConteoResponse, len(cs)),
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: int(math.Ceil(float64(total) / float64(limit))),
	}
	for i := range cs {
		resp.Data[i] = *conteoToResponse(&cs[i])
	}
	return resp, nil
}

// PromedioMensual averages the usage of the last meses months. Months with no
// readings count as zero usage.
func (s *equipoService) PromedioMensual(ctx context.Context, actor rbac.Principal, id uuid.UUID, meses int) (*dto.PromedioMensualResponse, error) {
	if meses < 1 || meses > 36 {
		return nil, fmt.Errorf("%w: meses debe estar entre 1 y 36", ErrDatosInvalidos)
	}
	if _, err := s.obtenerVisible(ctx, actor, id); err != nil {
		return nil, err
	}
	desde := s.now().UTC().AddDate(0, -meses, 0)
	cs, err := s.conteos.ListPorEquipoDesde(ctx, id, desde)
	if err != nil {
		return nil, err
	}
	var imp, esc, cop int64
	for _, c := range cs {
		imp += c.DiferenciaImpresiones
		esc += c.DiferenciaEscaneos
		cop += c.DiferenciaCopias
	}
	m := float64(meses)
	return &dto.PromedioMensualResponse{
		EquipoID:    id.String(),
		Meses:       meses,
		Conteos:     len(cs),
		Impresiones: redondear(float64(imp) / m),
		Escaneos:    redondear(float64(esc) / m),
		Copias:      redondear(float64(cop) / m),
	}, nil
}

// NecesitaMantenimiento reports whether e is in maintenance or its scheduled
// maintenance date has passed.
func NecesitaMantenimiento(e *model.Equipo, now time.Time) bool {
	if e.Estado == model.EquipoMantenimiento {
		return true
	}
	return e.Estado == model.EquipoActivo && e.FechaProximoMantenimiento != nil && !e.FechaProximoMantenimiento.After(now)
}

func (s *equipoService) validarCliente(ctx context.Context, id uuid.UUID) error {
	c, err := s.clientes.FindByID(ctx, id)
	if err != nil {
		if esNoEncontrado(err) {
			return fmt.Errorf("%w: cliente", ErrNoEncontrado)
		}
		return err
	}
	if !c.Activo {
		return fmt.Errorf("%w: el cliente esta inactivo", ErrConflicto)
	}
	return nil
}

func (s *equipoService) validarSucursal(ctx context.Context, clienteID uuid.UUID, raw *string) (*uuid.UUID, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(*raw)
	if err != nil {
		return nil, fmt.Errorf("%w: sucursal_id", ErrDatosInvalidos)
	}
	suc, err := s.clientes.FindSucursal(ctx, id)
	if err != nil {
		if esNoEncontrado(err) {
			return nil, fmt.Errorf("%w: sucursal", ErrNoEncontrado)
		}
		return nil, err
	}
	if suc.ClienteID != clienteID {
		return nil, fmt.Errorf("%w: la sucursal pertenece a otro cliente", ErrDatosInvalidos)
	}
	return &id, nil
}

func (s *equipoService) validarTecnico(ctx context.Context, raw *string) (*uuid.UUID, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(*raw)
	if err != nil {
		return nil, fmt.Errorf("%w: tecnico_asignado_id", ErrDatosInvalidos)
	}
	u, err := s.usuarios.FindByID(ctx, id)
	if err != nil {
		if esNoEncontrado(err) {
			return nil, fmt.Errorf("%w: tecnico", ErrNoEncontrado)
		}
		return nil, err
	}
	if u.RolActual() != rbac.RolTecnico || !u.Activo {
		return nil, fmt.Errorf("%w: el usuario asignado no es un tecnico activo", ErrDatosInvalidos)
	}
	return &id, nil
}

func (s *equipoService) toResponse(e *model.Equipo) *dto.EquipoResponse {
	r := &dto.EquipoResponse{
		ID:                        e.ID.String(),
		NumeroSerie:               e.NumeroSerie,
		Marca:                     e.Marca,
		Modelo:                    e.Modelo,
		Tipo:                      e.Tipo,
		ClienteID:                 e.ClienteID.String(),
		Ubicacion:                 e.Ubicacion,
		Estado:                    e.Estado,
		UltimoContadorImpresiones: e.UltimoContadorImpresiones,
		UltimoContadorEscaneos:    e.UltimoContadorEscaneos,
		UltimoContadorCopias:      e.UltimoContadorCopias,
		FechaUltimoConteo:         e.FechaUltimoConteo,
		FechaProximoMantenimiento: e.FechaProximoMantenimiento,
		NecesitaMantenimiento:     NecesitaMantenimiento(e, s.now()),
	}
	if e.Cliente != nil {
		r.ClienteNombre = e.Cliente.Nombre
	}
	if e.SucursalID != nil {
		v := e.SucursalID.String()
		r.SucursalID = &v
	}
	if e.TecnicoAsignadoID != nil {
		v := e.TecnicoAsignadoID.String()
		r.TecnicoAsignadoID = &v
	}
	return r
}

func redondear(v float64) float64 {
	return math.Round(v*100) / 100
}
