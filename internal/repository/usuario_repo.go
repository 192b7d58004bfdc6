package repository

import (
	"context"
	"errors"
	"time"

	"ecoloimp/internal/model"
	"ecoloimp/internal/rbac"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UsuarioFilter narrows ListarUsuarios.
type UsuarioFilter struct {
	Rol              string
	IncluirInactivos bool
}

type UsuarioRepository interface {
	Create(ctx context.Context, u *model.Usuario) error
	CreateTx(tx *gorm.DB, u *model.Usuario) error
	FindByUsername(ctx context.Context, username string) (*model.Usuario, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.Usuario, error)
	List(ctx context.Context, filter UsuarioFilter) ([]model.Usuario, error)
	Update(ctx context.Context, u *model.Usuario) error
	UpdateTx(tx *gorm.DB, u *model.Usuario) error
	SetActivo(ctx context.Context, id uuid.UUID, activo bool, actor *uuid.UUID) error
	UpsertPerfilTecnicoTx(tx *gorm.DB, p *model.PerfilTecnico) error
	RegistrarAcceso(ctx context.Context, id uuid.UUID, at time.Time) error
	Identidad(ctx context.Context, id uuid.UUID) (rbac.Identidad, error)
	DB() *gorm.DB
}

type usuarioRepo struct{ db *gorm.DB }

func NewUsuarioRepository(db *gorm.DB) UsuarioRepository { return &usuarioRepo{db: db} }

func (r *usuarioRepo) DB() *gorm.DB { return r.db }

func (r *usuarioRepo) Create(ctx context.Context, u *model.Usuario) error {
	return r.db.WithContext(ctx).Create(u).Error
}

func (r *usuarioRepo) CreateTx(tx *gorm.DB, u *model.Usuario) error {
	return tx.Omit("PerfilTecnico").Create(u).Error
}

func (r *usuarioRepo) FindByUsername(ctx context.Context, username string) (*model.Usuario, error) {
	var u model.Usuario
	// Accept login by username OR email (case-insensitive email match)
	err := r.db.WithContext(ctx).
		Where("(username = ? OR LOWER(email) = LOWER(?)) AND activo = ?", username, username, true).
		First(&u).Error
	return &u, err
}

func (r *usuarioRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Usuario, error) {
	var u model.Usuario
	err := r.db.WithContext(ctx).Preload("PerfilTecnico").First(&u, "id = ?", id).Error
	return &u, err
}

func (r *usuarioRepo) List(ctx context.Context, filter UsuarioFilter) ([]model.Usuario, error) {
	q := r.db.WithContext(ctx).Preload("PerfilTecnico").Order("nombre, apellido")
	if !filter.IncluirInactivos {
		q = q.Where("activo = ?", true)
	}
	if filter.Rol != "" {
		q = q.Where("rol = ?", filter.Rol)
	}
	var users []model.Usuario
	err := q.Find(&users).Error
	return users, err
}

func (r *usuarioRepo) Update(ctx context.Context, u *model.Usuario) error {
	return r.db.WithContext(ctx).Omit("PerfilTecnico").Save(u).Error
}

func (r *usuarioRepo) UpdateTx(tx *gorm.DB, u *model.Usuario) error {
	return tx.Omit("PerfilTecnico").Save(u).Error
}

func (r *usuarioRepo) SetActivo(ctx context.Context, id uuid.UUID, activo bool, actor *uuid.UUID) error {
	res := r.db.WithContext(ctx).Model(&model.Usuario{}).Where("id = ?", id).
		Updates(map[string]interface{}{"activo": activo, "actualizado_por": actor})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *usuarioRepo) UpsertPerfilTecnicoTx(tx *gorm.DB, p *model.PerfilTecnico) error {
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "usuario_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"especialidad", "nivel_experiencia", "telefono_emergencia", "updated_at"}),
	}).Create(p).Error
}

func (r *usuarioRepo) RegistrarAcceso(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).Model(&model.Usuario{}).Where("id = ?", id).
		UpdateColumn("ultimo_acceso", at).Error
}

// Identidad loads only the columns the guards need.
func (r *usuarioRepo) Identidad(ctx context.Context, id uuid.UUID) (rbac.Identidad, error) {
	var u model.Usuario
	err := r.db.WithContext(ctx).Select("id", "rol", "activo").First(&u, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return rbac.Identidad{}, rbac.ErrUsuarioDesconocido
	}
	if err != nil {
		return rbac.Identidad{}, err
	}
	return rbac.Identidad{ID: u.ID, Rol: u.RolActual(), Activo: u.Activo}, nil
}
