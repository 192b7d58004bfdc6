package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"ecoloimp/internal/dto"
	"ecoloimp/internal/model"
	"ecoloimp/internal/rbac"
	"ecoloimp/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

type PermisoService interface {
	Sincronizar(ctx context.Context) error
	ListarCatalogo(ctx context.Context) ([]dto.CategoriaPermisosResponse, error)
	PermisosDeRol(ctx context.Context, rol string) (*dto.PermisosRolResponse, error)
	AsignarARol(ctx context.Context, rol string, nombres []string) (*dto.PermisosRolResponse, error)
	Otorgar(ctx context.Context, actor rbac.Principal, usuarioID uuid.UUID, req dto.OtorgarPermisoRequest) error
	Revocar(ctx context.Context, usuarioID uuid.UUID, nombre string) error
	PermisosEfectivos(ctx context.Context, usuarioID uuid.UUID) (*dto.PermisosUsuarioResponse, error)
	MisPermisos(ctx context.Context, p rbac.Principal, username string) *dto.MisPermisosResponse
}

type permisoService struct {
	repo     repository.PermisoRepository
	usuarios repository.UsuarioRepository
	resolver *rbac.Resolver
}

func NewPermisoService(repo repository.PermisoRepository, usuarios repository.UsuarioRepository, resolver *rbac.Resolver) PermisoService {
	return &permisoService{repo: repo, usuarios: usuarios, resolver: resolver}
}

// Sincronizar upserts the compiled-in catalog. A role's default grants are
// written only while the role has no grants at all, so later edits made by
// an administrator survive restarts.
func (s *permisoService) Sincronizar(ctx context.Context) error {
	ids := make(map[string]uuid.UUID)
	err := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		for _, d := range rbac.Catalogo() {
			p := &model.Permiso{Nombre: d.Nombre, Descripcion: d.Descripcion, Categoria: d.Categoria}
			if err := s.repo.UpsertPermisoTx(tx, p); err != nil {
				return fmt.Errorf("permiso %s: %w", d.Nombre, err)
			}
			ids[d.Nombre] = p.ID
		}
		for _, info := range rbac.Roles() {
			actuales, err := s.repo.PermisosDeRolTx(tx, string(info.Rol))
			if err != nil {
				return err
			}
			if len(actuales) > 0 {
				continue
			}
			for _, nombre := range rbac.PermisosPorDefecto(info.Rol) {
				if err := s.repo.AgregarARolTx(tx, string(info.Rol), ids[nombre]); err != nil {
					return fmt.Errorf("rol %s / %s: %w", info.Rol, nombre, err)
				}
			}
			log.Info().Str("rol", string(info.Rol)).Msg("permisos: valores por defecto aplicados")
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, info := range rbac.Roles() {
		s.resolver.InvalidarRol(info.Rol)
	}
	log.Info().Int("permisos", len(ids)).Msg("permisos: catalogo sincronizado")
	return nil
}

func (s *permisoService) ListarCatalogo(ctx context.Context) ([]dto.CategoriaPermisosResponse, error) {
	ps, err := s.repo.ListCatalogo(ctx)
	if err != nil {
		return nil, err
	}
	var out []dto.CategoriaPermisosResponse
	idx := make(map[string]int)
	for _, p := range ps {
		i, ok := idx[p.Categoria]
		if !ok {
			i = len(out)
			idx[p.Categoria] = i
			out = append(out, dto.CategoriaPermisosResponse{Categoria: p.Categoria})
		}
		out[i].Permisos = append(out[i].Permisos, permisoToResponse(&p))
	}
	return out, nil
}

func (s *permisoService) PermisosDeRol(ctx context.Context, rol string) (*dto.PermisosRolResponse, error) {
	r := rbac.Rol(rol)
	if !rbac.RolValido(r) {
		return nil, ErrNoEncontrado
	}
	resp := &dto.PermisosRolResponse{Rol: rol, Todos: rbac.EsRangoMaximo(r)}
	err := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		ps, err := s.repo.PermisosDeRolTx(tx, rol)
		if err != nil {
			return err
		}
		resp.Permisos = make([]string, len(ps))
		for i, p := range ps {
			resp.Permisos[i] = p.Nombre
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// AsignarARol replaces the grants of rol with nombres. The top rank already
// holds everything, so the call is accepted and nothing is written.
func (s *permisoService) AsignarARol(ctx context.Context, rol string, nombres []string) (*dto.PermisosRolResponse, error) {
	r := rbac.Rol(rol)
	if !rbac.RolValido(r) {
		return nil, ErrNoEncontrado
	}
	if rbac.EsRangoMaximo(r) {
		return s.PermisosDeRol(ctx, rol)
	}

	deseados := make(map[uuid.UUID]string, len(nombres))
	for _, n := range nombres {
		p, err := s.repo.FindByNombre(ctx, n)
		if err != nil {
			if esNoEncontrado(err) {
				return nil, fmt.Errorf("%w: permiso %q no existe", ErrDatosInvalidos, n)
			}
			return nil, err
		}
		deseados[p.ID] = p.Nombre
	}

	var agregados, quitados int
	err := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		actuales, err := s.repo.PermisosDeRolTx(tx, rol)
		if err != nil {
			return err
		}
		var quitar []uuid.UUID
		tiene := make(map[uuid.UUID]bool, len(actuales))
		for _, p := range actuales {
			tiene[p.ID] = true
			if _, ok := deseados[p.ID]; !ok {
				quitar = append(quitar, p.ID)
			}
		}
		if err := s.repo.QuitarDeRolTx(tx, rol, quitar); err != nil {
			return err
		}
		quitados = len(quitar)
		for id := range deseados {
			if tiene[id] {
				continue
			}
			if err := s.repo.AgregarARolTx(tx, rol, id); err != nil {
				return err
			}
			agregados++
		}
		return nil
	})
	if err != nil {
		log.Error().Err(err).Str("rol", rol).Msg("permisos: asignacion revertida")
		return nil, ErrPersistencia
	}
	s.resolver.InvalidarRol(r)

	log.Info().Str("rol", rol).Int("agregados", agregados).Int("quitados", quitados).Msg("permisos de rol actualizados")
	return s.PermisosDeRol(ctx, rol)
}

func (s *permisoService) Otorgar(ctx context.Context, actor rbac.Principal, usuarioID uuid.UUID, req dto.OtorgarPermisoRequest) error {
	if _, err := s.usuarios.FindByID(ctx, usuarioID); err != nil {
		if esNoEncontrado(err) {
			return fmt.Errorf("%w: usuario", ErrNoEncontrado)
		}
		return err
	}
	p, err := s.repo.FindByNombre(ctx, req.Permiso)
	if err != nil {
		if esNoEncontrado(err) {
			return fmt.Errorf("%w: permiso %q no existe", ErrDatosInvalidos, req.Permiso)
		}
		return err
	}

	var asignadoPor *uuid.UUID
	if actor != nil {
		id := actor.UsuarioID()
		asignadoPor = &id
	}
	if err := s.repo.Otorgar(ctx, &model.UsuarioPermiso{
		UsuarioID:   usuarioID,
		PermisoID:   p.ID,
		AsignadoPor: asignadoPor,
		AsignadoEn:  time.Now().UTC(),
		Notas:       req.Notas,
	}); err != nil {
		return err
	}
	s.resolver.InvalidarUsuario(usuarioID)
	log.Info().Str("usuario_id", usuarioID.String()).Str("permiso", p.Nombre).Msg("permiso directo otorgado")
	return nil
}

func (s *permisoService) Revocar(ctx context.Context, usuarioID uuid.UUID, nombre string) error {
	p, err := s.repo.FindByNombre(ctx, nombre)
	if err != nil {
		if esNoEncontrado(err) {
			return ErrNoEncontrado
		}
		return err
	}
	ok, err := s.repo.Revocar(ctx, usuarioID, p.ID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNoEncontrado
	}
	s.resolver.InvalidarUsuario(usuarioID)
	return nil
}

func (s *permisoService) PermisosEfectivos(ctx context.Context, usuarioID uuid.UUID) (*dto.PermisosUsuarioResponse, error) {
	user, err := s.usuarios.FindByID(ctx, usuarioID)
	if err != nil {
		if esNoEncontrado(err) {
			return nil, ErrNoEncontrado
		}
		return nil, err
	}
	directos, err := s.repo.DirectosConDetalle(ctx, usuarioID)
	if err != nil {
		return nil, err
	}
	catalogo, err := s.repo.ListCatalogo(ctx)
	if err != nil {
		return nil, err
	}

	esDirecto := make(map[string]bool, len(directos))
	for _, d := range directos {
		esDirecto[d.Nombre] = true
	}
	categoria := make(map[string]string, len(catalogo))
	for _, p := range catalogo {
		categoria[p.Nombre] = p.Categoria
	}

	nombres := s.resolver.PermisosDe(ctx, user)
	resp := &dto.PermisosUsuarioResponse{
		UsuarioID: user.ID.String(),
		Rol:       user.Rol,
		Permisos:  make([]dto.PermisoEfectivoResponse, len(nombres)),
	}
	for i, n := range nombres {
		resp.Permisos[i] = dto.PermisoEfectivoResponse{Nombre: n, Categoria: categoria[n], EsDirecto: esDirecto[n]}
	}
	return resp, nil
}

func (s *permisoService) MisPermisos(ctx context.Context, p rbac.Principal, username string) *dto.MisPermisosResponse {
	permisos := s.resolver.PermisosDe(ctx, p)
	sort.Strings(permisos)
	return &dto.MisPermisosResponse{
		UsuarioID: p.UsuarioID().String(),
		Username:  username,
		Rol:       string(p.RolActual()),
		Rango:     rbac.Rango(p.RolActual()),
		Permisos:  permisos,
	}
}

func permisoToResponse(p *model.Permiso) dto.PermisoResponse {
	return dto.PermisoResponse{
		ID:          p.ID.String(),
		Nombre:      p.Nombre,
		Descripcion: p.Descripcion,
		Categoria:   p.Categoria,
	}
}
