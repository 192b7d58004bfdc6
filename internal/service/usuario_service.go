package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ecoloimp/internal/dto"
	"ecoloimp/internal/model"
	"ecoloimp/internal/rbac"
	"ecoloimp/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const bcryptCost = 12

type UsuarioService interface {
	Crear(ctx context.Context, actor rbac.Principal, req dto.CrearUsuarioRequest) (*dto.UsuarioResponse, error)
	Listar(ctx context.Context, rol string, incluirInactivos bool) ([]dto.UsuarioResponse, error)
	Obtener(ctx context.Context, id uuid.UUID) (*dto.UsuarioResponse, error)
	Actualizar(ctx context.Context, actor rbac.Principal, id uuid.UUID, req dto.ActualizarUsuarioRequest) (*dto.UsuarioResponse, error)
	Desactivar(ctx context.Context, actor rbac.Principal, id uuid.UUID) error
	Reactivar(ctx context.Context, actor rbac.Principal, id uuid.UUID) error
}

// Invalidador drops cached permission sets.
type Invalidador interface {
	InvalidarRol(rol rbac.Rol)
	InvalidarUsuario(id uuid.UUID)
}

type usuarioService struct {
	repo  repository.UsuarioRepository
	cache Invalidador
}

func NewUsuarioService(repo repository.UsuarioRepository, cache Invalidador) UsuarioService {
	return &usuarioService{repo: repo, cache: cache}
}

// puedeAsignar reports whether actor may hand out rol: nobody grants a rank
// above their own.
func puedeAsignar(actor rbac.Principal, rol rbac.Rol) error {
	if !rbac.RolValido(rol) {
		return fmt.Errorf("%w: rol %q desconocido", ErrDatosInvalidos, rol)
	}
	if actor == nil || rbac.Rango(rol) > rbac.Rango(actor.RolActual()) {
		return fmt.Errorf("%w: no puede asignar el rol %s", ErrNoAutorizado, rol)
	}
	return nil
}

func (s *usuarioService) Crear(ctx context.Context, actor rbac.Principal, req dto.CrearUsuarioRequest) (*dto.UsuarioResponse, error) {
	rol := rbac.Rol(req.Rol)
	if err := puedeAsignar(actor, rol); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		return nil, err
	}

	actorID := actor.UsuarioID()
	user := &model.Usuario{
		Username:       strings.TrimSpace(req.Username),
		Nombre:         req.Nombre,
		Apellido:       req.Apellido,
		Email:          req.Email,
		Telefono:       req.Telefono,
		PasswordHash:   string(hash),
		Rol:            string(rol),
		Activo:         true,
		CreadoPor:      &actorID,
		ActualizadoPor: &actorID,
	}

	err = runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		if err := s.repo.CreateTx(tx, user); err != nil {
			return err
		}
		if rol == rbac.RolTecnico {
			perfil := perfilDesdeRequest(user.ID, req.PerfilTecnico)
			if err := s.repo.UpsertPerfilTecnicoTx(tx, perfil); err != nil {
				return err
			}
			user.PerfilTecnico = perfil
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || esViolacionUnica(err) {
			return nil, fmt.Errorf("%w: username o email ya registrado", ErrConflicto)
		}
		return nil, err
	}

	log.Info().Str("usuario_id", user.ID.String()).Str("rol", user.Rol).
		Str("creado_por", actorID.String()).Msg("usuario creado")
	resp := usuarioToResponse(user)
	return &resp, nil
}

func (s *usuarioService) Listar(ctx context.Context, rol string, incluirInactivos bool) ([]dto.UsuarioResponse, error) {
	if rol != "" && !rbac.RolValido(rbac.Rol(rol)) {
		return nil, fmt.Errorf("%w: rol %q desconocido", ErrDatosInvalidos, rol)
	}
	users, err := s.repo.List(ctx, repository.UsuarioFilter{Rol: rol, IncluirInactivos: incluirInactivos})
	if err != nil {
		return nil, err
	}
	resp := make([]dto.UsuarioResponse, len(users))
	for i := range users {
		resp[i] = usuarioToResponse(&users[i])
	}
	return resp, nil
}

func (s *usuarioService) Obtener(ctx context.Context, id uuid.UUID) (*dto.UsuarioResponse, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if esNoEncontrado(err) {
			return nil, ErrNoEncontrado
		}
		return nil, err
	}
	resp := usuarioToResponse(user)
	return &resp, nil
}

func (s *usuarioService) Actualizar(ctx context.Context, actor rbac.Principal, id uuid.UUID, req dto.ActualizarUsuarioRequest) (*dto.UsuarioResponse, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if esNoEncontrado(err) {
			return nil, ErrNoEncontrado
		}
		return nil, err
	}
	// Editing someone above your own rank is not allowed either.
	if err := puedeAsignar(actor, user.RolActual()); err != nil {
		return nil, err
	}

	if req.Nombre != "" {
		user.Nombre = req.Nombre
	}
	if req.Apellido != nil {
		user.Apellido = *req.Apellido
	}
	if req.Email != nil {
		user.Email = req.Email
	}
	if req.Telefono != nil {
		user.Telefono = req.Telefono
	}
	if req.Rol != "" && req.Rol != user.Rol {
		if err := puedeAsignar(actor, rbac.Rol(req.Rol)); err != nil {
			return nil, err
		}
		user.Rol = req.Rol
	}
	if req.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = string(hash)
	}
	actorID := actor.UsuarioID()
	user.ActualizadoPor = &actorID

	err = runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		if err := s.repo.UpdateTx(tx, user); err != nil {
			return err
		}
		if user.RolActual() == rbac.RolTecnico && (req.PerfilTecnico != nil || user.PerfilTecnico == nil) {
			perfil := perfilDesdeRequest(user.ID, req.PerfilTecnico)
			if err := s.repo.UpsertPerfilTecnicoTx(tx, perfil); err != nil {
				return err
			}
			user.PerfilTecnico = perfil
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || esViolacionUnica(err) {
			return nil, fmt.Errorf("%w: email ya registrado", ErrConflicto)
		}
		return nil, err
	}
	if s.cache != nil {
		s.cache.InvalidarUsuario(user.ID)
	}
	resp := usuarioToResponse(user)
	return &resp, nil
}

func (s *usuarioService) Desactivar(ctx context.Context, actor rbac.Principal, id uuid.UUID) error {
	if actor != nil && actor.UsuarioID() == id {
		return fmt.Errorf("%w: no puede desactivar su propio usuario", ErrConflicto)
	}
	return s.setActivo(ctx, actor, id, false)
}

func (s *usuarioService) Reactivar(ctx context.Context, actor rbac.Principal, id uuid.UUID) error {
	return s.setActivo(ctx, actor, id, true)
}

func (s *usuarioService) setActivo(ctx context.Context, actor rbac.Principal, id uuid.UUID, activo bool) error {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if esNoEncontrado(err) {
			return ErrNoEncontrado
		}
		return err
	}
	if err := puedeAsignar(actor, user.RolActual()); err != nil {
		return err
	}
	actorID := actor.UsuarioID()
	if err := s.repo.SetActivo(ctx, id, activo, &actorID); err != nil {
		if esNoEncontrado(err) {
			return ErrNoEncontrado
		}
		return err
	}
	if s.cache != nil {
		s.cache.InvalidarUsuario(id)
	}
	log.Info().Str("usuario_id", id.String()).Bool("activo", activo).Str("actor", actorID.String()).Msg("usuario actualizado")
	return nil
}

func perfilDesdeRequest(usuarioID uuid.UUID, req *dto.PerfilTecnicoRequest) *model.PerfilTecnico {
	p := &model.PerfilTecnico{UsuarioID: usuarioID}
	if req != nil {
		p.Especialidad = req.Especialidad
		p.NivelExperiencia = req.NivelExperiencia
		p.TelefonoEmergencia = req.TelefonoEmergencia
	}
	return p
}

// esViolacionUnica recognises unique-constraint errors from drivers that do
// not translate them to gorm.ErrDuplicatedKey.
func esViolacionUnica(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}

func usuarioToResponse(u *model.Usuario) dto.UsuarioResponse {
	r := dto.UsuarioResponse{
		ID:       u.ID.String(),
		Username: u.Username,
		Nombre:   u.Nombre,
		Apellido: u.Apellido,
		Email:    u.Email,
		Telefono: u.Telefono,
		Rol:      u.Rol,
		Activo:   u.Activo,
	}
	if u.PerfilTecnico != nil {
		r.PerfilTecnico = &dto.PerfilTecnicoResponse{
			Especialidad:       u.PerfilTecnico.Especialidad,
			NivelExperiencia:   u.PerfilTecnico.NivelExperiencia,
			TelefonoEmergencia: u.PerfilTecnico.TelefonoEmergencia,
		}
	}
	return r
}
