package service

import (
	"context"
	"fmt"
	"strings"

	"ecoloimp/internal/dto"
	"ecoloimp/internal/model"
	"ecoloimp/internal/repository"

	"github.com/google/uuid"
)

type ClienteService interface {
	Crear(ctx context.Context, req dto.CrearClienteRequest) (*dto.ClienteResponse, error)
	Listar(ctx context.Context, incluirInactivos bool, busqueda string) ([]dto.ClienteResponse, error)
	Obtener(ctx context.Context, id uuid.UUID) (*dto.ClienteResponse, error)
	Actualizar(ctx context.Context, id uuid.UUID, req dto.ActualizarClienteRequest) (*dto.ClienteResponse, error)
	Desactivar(ctx context.Context, id uuid.UUID) error
	Reactivar(ctx context.Context, id uuid.UUID) error
	CrearSucursal(ctx context.Context, clienteID uuid.UUID, req dto.CrearSucursalRequest) (*dto.SucursalResponse, error)
	ListarSucursales(ctx context.Context, clienteID uuid.UUID) ([]dto.SucursalResponse, error)
}

type clienteService struct {
	repo repository.ClienteRepository
}

func NewClienteService(repo repository.ClienteRepository) ClienteService {
	return &clienteService{repo: repo}
}

func (s *clienteService) Crear(ctx context.Context, req dto.CrearClienteRequest) (*dto.ClienteResponse, error) {
	c := &model.Cliente{Activo: true}
	aplicarCliente(c, req)
	if err := s.repo.Create(ctx, c); err != nil {
		if esViolacionUnica(err) {
			return nil, fmt.Errorf("%w: RFC ya registrado", ErrConflicto)
		}
		return nil, err
	}
	return clienteToResponse(c), nil
}

func (s *clienteService) Listar(ctx context.Context, incluirInactivos bool, busqueda string) ([]dto.ClienteResponse, error) {
	cs, err := s.repo.List(ctx, incluirInactivos, strings.TrimSpace(busqueda))
	if err != nil {
		return nil, err
	}
	resp := make([]dto.ClienteResponse, len(cs))
	for i := range cs {
		resp[i] = *clienteToResponse(&cs[i])
	}
	return resp, nil
}

func (s *clienteService) Obtener(ctx context.Context, id uuid.UUID) (*dto.ClienteResponse, error) {
	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if esNoEncontrado(err) {
			return nil, ErrNoEncontrado
		}
		return nil, err
	}
	return clienteToResponse(c), nil
}

func (s *clienteService) Actualizar(ctx context.Context, id uuid.UUID, req dto.ActualizarClienteRequest) (*dto.ClienteResponse, error) {
	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if esNoEncontrado(err) {
			return nil, ErrNoEncontrado
		}
		return nil, err
	}
	aplicarCliente(c, req)
	if err := s.repo.Update(ctx, c); err != nil {
		if esViolacionUnica(err) {
			return nil, fmt.Errorf("%w: RFC ya registrado", ErrConflicto)
		}
		return nil, err
	}
	return clienteToResponse(c), nil
}

func (s *clienteService) Desactivar(ctx context.Context, id uuid.UUID) error {
	return s.setActivo(ctx, id, false)
}

func (s *clienteService) Reactivar(ctx context.Context, id uuid.UUID) error {
	return s.setActivo(ctx, id, true)
}

func (s *clienteService) setActivo(ctx context.Context, id uuid.UUID, activo bool) error {
	if err := s.repo.SetActivo(ctx, id, activo); err != nil {
		if esNoEncontrado(err) {
			return ErrNoEncontrado
		}
		return err
	}
	return nil
}

func (s *clienteService) CrearSucursal(ctx context.Context, clienteID uuid.UUID, req dto.CrearSucursalRequest) (*dto.SucursalResponse, error) {
	c, err := s.repo.FindByID(ctx, clienteID)
	if err != nil {
		if esNoEncontrado(err) {
			return nil, ErrNoEncontrado
		}
		return nil, err
	}
	if !c.Activo {
		return nil, fmt.Errorf("%w: el cliente esta inactivo", ErrConflicto)
	}
	suc := &model.Sucursal{
		ClienteID: clienteID,
		Nombre:    req.Nombre,
		Direccion: req.Direccion,
		Ciudad:    req.Ciudad,
		Telefono:  req.Telefono,
		Activa:    true,
	}
	if err := s.repo.CreateSucursal(ctx, suc); err != nil {
		return nil, err
	}
	r := sucursalToResponse(suc)
	return &r, nil
}

func (s *clienteService) ListarSucursales(ctx context.Context, clienteID uuid.UUID) ([]dto.SucursalResponse, error) {
	ss, err := s.repo.ListSucursales(ctx, clienteID)
	if err != nil {
		return nil, err
	}
	resp := make([]dto.SucursalResponse, len(ss))
	for i := range ss {
		resp[i] = sucursalToResponse(&ss[i])
	}
	return resp, nil
}

func aplicarCliente(c *model.Cliente, req dto.CrearClienteRequest) {
	c.Nombre = strings.TrimSpace(req.Nombre)
	if req.RFC != nil {
		rfc := strings.ToUpper(strings.TrimSpace(*req.RFC))
		c.RFC = &rfc
	}
	c.Contacto = req.Contacto
	c.Telefono = req.Telefono
	c.Email = req.Email
	c.Direccion = req.Direccion
}

func clienteToResponse(c *model.Cliente) *dto.ClienteResponse {
	r := &dto.ClienteResponse{
		ID:        c.ID.String(),
		Nombre:    c.Nombre,
		RFC:       c.RFC,
		Contacto:  c.Contacto,
		Telefono:  c.Telefono,
		Email:     c.Email,
		Direccion: c.Direccion,
		Activo:    c.Activo,
	}
	for i := range c.Sucursales {
		r.Sucursales = append(r.Sucursales, sucursalToResponse(&c.Sucursales[i]))
	}
	return r
}

func sucursalToResponse(s *model.Sucursal) dto.SucursalResponse {
	return dto.SucursalResponse{
		ID:        s.ID.String(),
		ClienteID: s.ClienteID.String(),
		Nombre:    s.Nombre,
		Direccion: s.Direccion,
		Ciudad:    s.Ciudad,
		Telefono:  s.Telefono,
		Activa:    s.Activa,
	}
}
