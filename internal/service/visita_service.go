package service

import (
	"context"
	"fmt"
	"time"

	"ecoloimp/internal/dto"
	"ecoloimp/internal/model"
	"ecoloimp/internal/rbac"
	"ecoloimp/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type VisitaService interface {
	Programar(ctx context.Context, actor rbac.Principal, req dto.ProgramarVisitaRequest) (*dto.VisitaResponse, error)
	Listar(ctx context.Context, actor rbac.Principal, filter dto.VisitaFilter) ([]dto.VisitaResponse, error)
	Obtener(ctx context.Context, actor rbac.Principal, id uuid.UUID) (*dto.VisitaResponse, error)
	Iniciar(ctx context.Context, actor rbac.Principal, id uuid.UUID) (*dto.VisitaResponse, error)
	Completar(ctx context.Context, actor rbac.Principal, id uuid.UUID, req dto.CerrarVisitaRequest) (*dto.VisitaResponse, error)
	Cancelar(ctx context.Context, actor rbac.Principal, id uuid.UUID, req dto.CerrarVisitaRequest) (*dto.VisitaResponse, error)
}

// transiciones lists the allowed target states per state.
var transiciones = map[string][]string{
	model.VisitaProgramada: {model.VisitaEnProceso, model.VisitaCancelada},
	model.VisitaEnProceso:  {model.VisitaCompletada, model.VisitaCancelada},
}

// TransicionValida reports whether a visit may move from desde to hacia.
func TransicionValida(desde, hacia string) bool {
	for _, e := range transiciones[desde] {
		if e == hacia {
			return true
		}
	}
	return false
}

type visitaService struct {
	repo     repository.VisitaRepository
	clientes repository.ClienteRepository
	usuarios repository.UsuarioRepository
	permisos Autorizador
	now      func() time.Time
}

func NewVisitaService(
	repo repository.VisitaRepository,
	clientes repository.ClienteRepository,
	usuarios repository.UsuarioRepository,
	permisos Autorizador,
) VisitaService {
	return &visitaService{repo: repo, clientes: clientes, usuarios: usuarios, permisos: permisos, now: time.Now}
}

func (s *visitaService) Programar(ctx context.Context, actor rbac.Principal, req dto.ProgramarVisitaRequest) (*dto.VisitaResponse, error) {
	clienteID, err := uuid.Parse(req.ClienteID)
	if err != nil {
		return nil, fmt.Errorf("%w: cliente_id", ErrDatosInvalidos)
	}
	tecnicoID, err := uuid.Parse(req.TecnicoID)
	if err != nil {
		return nil, fmt.Errorf("%w: tecnico_id", ErrDatosInvalidos)
	}

	c, err := s.clientes.FindByID(ctx, clienteID)
	if err != nil {
		if esNoEncontrado(err) {
			return nil, fmt.Errorf("%w: cliente", ErrNoEncontrado)
		}
		return nil, err
	}
	if !c.Activo {
		return nil, fmt.Errorf("%w: el cliente esta inactivo", ErrConflicto)
	}

	var sucursalID *uuid.UUID
	if req.SucursalID != nil && *req.SucursalID != "" {
		id, err := uuid.Parse(*req.SucursalID)
		if err != nil {
			return nil, fmt.Errorf("%w: sucursal_id", ErrDatosInvalidos)
		}
		suc, err := s.clientes.FindSucursal(ctx, id)
		if err != nil || suc.ClienteID != clienteID {
			return nil, fmt.Errorf("%w: la sucursal no pertenece al cliente", ErrDatosInvalidos)
		}
		sucursalID = &id
	}

	tec, err := s.usuarios.FindByID(ctx, tecnicoID)
	if err != nil {
		if esNoEncontrado(err) {
			return nil, fmt.Errorf("%w: tecnico", ErrNoEncontrado)
		}
		return nil, err
	}
	if tec.RolActual() != rbac.RolTecnico || !tec.Activo {
		return nil, fmt.Errorf("%w: el usuario no es un tecnico activo", ErrDatosInvalidos)
	}

	tipo := req.Tipo
	if tipo == "" {
		tipo = "conteo"
	}
	actorID := actor.UsuarioID()
	v := &model.Visita{
		ClienteID:       clienteID,
		SucursalID:      sucursalID,
		TecnicoID:       tecnicoID,
		FechaProgramada: req.FechaProgramada.UTC(),
		Tipo:            tipo,
		Estado:          model.VisitaProgramada,
		Motivo:          req.Motivo,
		CreadoPor:       &actorID,
	}
	if err := s.repo.Create(ctx, v); err != nil {
		return nil, err
	}
	v.Cliente, v.Tecnico = c, tec
	log.Info().Str("visita_id", v.ID.String()).Str("tecnico_id", tecnicoID.String()).Msg("visita programada")
	return visitaToResponse(v), nil
}

func (s *visitaService) Listar(ctx context.Context, actor rbac.Principal, filter dto.VisitaFilter) ([]dto.VisitaResponse, error) {
	var f repository.VisitaFilter
	if s.permisos.TienePermiso(ctx, actor, "ver_visitas") {
		if filter.TecnicoID != "" {
			id, err := uuid.Parse(filter.TecnicoID)
			if err != nil {
				return nil, fmt.Errorf("%w: tecnico_id", ErrDatosInvalidos)
			}
			f.TecnicoID = &id
		}
	} else {
		id := actor.UsuarioID()
		f.TecnicoID = &id
	}
	if filter.ClienteID != "" {
		id, err := uuid.Parse(filter.ClienteID)
		if err != nil {
			return nil, fmt.Errorf("%w: cliente_id", ErrDatosInvalidos)
		}
		f.ClienteID = &id
	}
	f.Estado = filter.Estado
	desde, hasta, err := parseRango(filter.Desde, filter.Hasta)
	if err != nil {
		return nil, err
	}
	f.Desde, f.Hasta = desde, hasta

	vs, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, err
	}
	resp := make([]dto.VisitaResponse, len(vs))
	for i := range vs {
		resp[i] = *visitaToResponse(&vs[i])
	}
	return resp, nil
}

func (s *visitaService) Obtener(ctx context.Context, actor rbac.Principal, id uuid.UUID) (*dto.VisitaResponse, error) {
	v, err := s.visible(ctx, actor, id, "ver_visitas")
	if err != nil {
		return nil, err
	}
	return visitaToResponse(v), nil
}

// visible loads a visit the actor may act on: the assigned technician, or
// anyone holding permiso.
func (s *visitaService) visible(ctx context.Context, actor rbac.Principal, id uuid.UUID, permiso string) (*model.Visita, error) {
	v, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if esNoEncontrado(err) {
			return nil, ErrNoEncontrado
		}
		return nil, err
	}
	if v.TecnicoID != actor.UsuarioID() && !s.permisos.TienePermiso(ctx, actor, permiso) {
		return nil, ErrNoAutorizado
	}
	return v, nil
}

func (s *visitaService) Iniciar(ctx context.Context, actor rbac.Principal, id uuid.UUID) (*dto.VisitaResponse, error) {
	return s.transicionar(ctx, actor, id, model.VisitaEnProceso, "gestionar_visitas", func(v *model.Visita, now time.Time) {
		v.FechaInicio = &now
	})
}

func (s *visitaService) Completar(ctx context.Context, actor rbac.Principal, id uuid.UUID, req dto.CerrarVisitaRequest) (*dto.VisitaResponse, error) {
	return s.transicionar(ctx, actor, id, model.VisitaCompletada, "gestionar_visitas", func(v *model.Visita, now time.Time) {
		v.FechaFin = &now
		if req.Observaciones != nil {
			v.Observaciones = req.Observaciones
		}
	})
}

func (s *visitaService) Cancelar(ctx context.Context, actor rbac.Principal, id uuid.UUID, req dto.CerrarVisitaRequest) (*dto.VisitaResponse, error) {
	return s.transicionar(ctx, actor, id, model.VisitaCancelada, "eliminar_visitas", func(v *model.Visita, now time.Time) {
		v.FechaFin = &now
		if req.Observaciones != nil {
			v.Observaciones = req.Observaciones
		}
	})
}

func (s *visitaService) transicionar(ctx context.Context, actor rbac.Principal, id uuid.UUID, hacia, permiso string, aplicar func(*model.Visita, time.Time)) (*dto.VisitaResponse, error) {
	v, err := s.visible(ctx, actor, id, permiso)
	if err != nil {
		return nil, err
	}
	if !TransicionValida(v.Estado, hacia) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrTransicionInvalida, v.Estado, hacia)
	}
	desde := v.Estado
	v.Estado = hacia
	aplicar(v, s.now().UTC())
	if err := s.repo.Update(ctx, v); err != nil {
		return nil, err
	}
	log.Info().Str("visita_id", id.String()).Str("desde", desde).Str("hacia", hacia).Msg("visita actualizada")
	return visitaToResponse(v), nil
}

func visitaToResponse(v *model.Visita) *dto.VisitaResponse {
	r := &dto.VisitaResponse{
		ID:              v.ID.String(),
		ClienteID:       v.ClienteID.String(),
		TecnicoID:       v.TecnicoID.String(),
		FechaProgramada: v.FechaProgramada,
		Tipo:            v.Tipo,
		Estado:          v.Estado,
		Motivo:          v.Motivo,
		Observaciones:   v.Observaciones,
		FechaInicio:     v.FechaInicio,
		FechaFin:        v.FechaFin,
	}
	if v.SucursalID != nil {
		s := v.SucursalID.String()
		r.SucursalID = &s
	}
	if v.Cliente != nil {
		r.ClienteNombre = v.Cliente.Nombre
	}
	if v.Tecnico != nil {
		r.TecnicoNombre = v.Tecnico.NombreCompleto()
	}
	return r
}
