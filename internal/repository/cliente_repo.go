package repository

import (
	"context"

	"ecoloimp/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ClienteRepository interface {
	Create(ctx context.Context, c *model.Cliente) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Cliente, error)
	List(ctx context.Context, incluirInactivos bool, busqueda string) ([]model.Cliente, error)
	Update(ctx context.Context, c *model.Cliente) error
	SetActivo(ctx context.Context, id uuid.UUID, activo bool) error

	CreateSucursal(ctx context.Context, s *model.Sucursal) error
	FindSucursal(ctx context.Context, id uuid.UUID) (*model.Sucursal, error)
	ListSucursales(ctx context.Context, clienteID uuid.UUID) ([]model.Sucursal, error)
}

type clienteRepo struct{ db *gorm.DB }

func NewClienteRepository(db *gorm.DB) ClienteRepository { return &clienteRepo{db: db} }

func (r *clienteRepo) Create(ctx context.Context, c *model.Cliente) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *clienteRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Cliente, error) {
	var c model.Cliente
	err := r.db.WithContext(ctx).
		Preload("Sucursales", "activa = ?", true).
		First(&c, "id = ?", id).Error
	return &c, err
}

func (r *clienteRepo) List(ctx context.Context, incluirInactivos bool, busqueda string) ([]model.Cliente, error) {
	q := r.db.WithContext(ctx).Order("nombre")
	if !incluirInactivos {
		q = q.Where("activo = ?", true)
	}
	if busqueda != "" {
		like := "%" + busqueda + "%"
		q = q.Where("LOWER(nombre) LIKE LOWER(?) OR rfc LIKE ?", like, like)
	}
	var cs []model.Cliente
	err := q.Find(&cs).Error
	return cs, err
}

func (r *clienteRepo) Update(ctx context.Context, c *model.Cliente) error {
	return r.db.WithContext(ctx).Omit("Sucursales").Save(c).Error
}

func (r *clienteRepo) SetActivo(ctx context.Context, id uuid.UUID, activo bool) error {
	res := r.db.WithContext(ctx).Model(&model.Cliente{}).Where("id = ?", id).Update("activo", activo)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *clienteRepo) CreateSucursal(ctx context.Context, s *model.Sucursal) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *clienteRepo) FindSucursal(ctx context.Context, id uuid.UUID) (*model.Sucursal, error) {
	var s model.Sucursal
	err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error
	return &s, err
}

func (r *clienteRepo) ListSucursales(ctx context.Context, clienteID uuid.UUID) ([]model.Sucursal, error) {
	var ss []model.Sucursal
	err := r.db.WithContext(ctx).Where("cliente_id = ?", clienteID).Order("nombre").Find(&ss).Error
	return ss, err
}
