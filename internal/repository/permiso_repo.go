package repository

import (
	"context"
	"errors"

	"ecoloimp/internal/model"
	"ecoloimp/internal/rbac"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PermisoDirecto is a direct grant joined with its permission.
type PermisoDirecto struct {
	Nombre      string
	Categoria   string
	AsignadoPor *uuid.UUID
	Notas       *string
}

// PermisoRepository persists the permission catalog and both kinds of grant.
// It satisfies rbac.Store.
type PermisoRepository interface {
	rbac.Store

	UpsertPermisoTx(tx *gorm.DB, p *model.Permiso) error
	FindByNombre(ctx context.Context, nombre string) (*model.Permiso, error)
	ListCatalogo(ctx context.Context) ([]model.Permiso, error)

	AgregarARolTx(tx *gorm.DB, rol string, permisoID uuid.UUID) error
	QuitarDeRolTx(tx *gorm.DB, rol string, permisoIDs []uuid.UUID) error
	PermisosDeRolTx(tx *gorm.DB, rol string) ([]model.Permiso, error)
	ContarRolPermisos(ctx context.Context) (int64, error)

	Otorgar(ctx context.Context, up *model.UsuarioPermiso) error
	Revocar(ctx context.Context, usuarioID, permisoID uuid.UUID) (bool, error)
	DirectosConDetalle(ctx context.Context, usuarioID uuid.UUID) ([]PermisoDirecto, error)

	DB() *gorm.DB
}

type permisoRepo struct{ db *gorm.DB }

func NewPermisoRepository(db *gorm.DB) PermisoRepository { return &permisoRepo{db: db} }

func (r *permisoRepo) DB() *gorm.DB { return r.db }

// ── rbac.Store ────────────────────────────────────────────────────────────────

func (r *permisoRepo) PermisosDeRol(ctx context.Context, rol rbac.Rol) ([]string, error) {
	var nombres []string
	err := r.db.WithContext(ctx).Table("rol_permisos").
		Select("permisos.nombre").
		Joins("JOIN permisos ON permisos.id = rol_permisos.permiso_id").
		Where("rol_permisos.rol = ?", string(rol)).
		Pluck("permisos.nombre", &nombres).Error
	return nombres, err
}

func (r *permisoRepo) PermisosDirectos(ctx context.Context, usuarioID uuid.UUID) ([]string, error) {
	var nombres []string
	err := r.db.WithContext(ctx).Table("usuario_permisos").
		Select("permisos.nombre").
		Joins("JOIN permisos ON permisos.id = usuario_permisos.permiso_id").
		Where("usuario_permisos.usuario_id = ?", usuarioID).
		Pluck("permisos.nombre", &nombres).Error
	return nombres, err
}

func (r *permisoRepo) NombresCatalogo(ctx context.Context) ([]string, error) {
	var nombres []string
	err := r.db.WithContext(ctx).Model(&model.Permiso{}).Order("nombre").Pluck("nombre", &nombres).Error
	return nombres, err
}

// ── Catalog ───────────────────────────────────────────────────────────────────

// UpsertPermisoTx inserts p or refreshes description and category of the
// existing row with the same name. p.ID is set to the stored row's ID.
func (r *permisoRepo) UpsertPermisoTx(tx *gorm.DB, p *model.Permiso) error {
	var existente model.Permiso
	err := tx.Where("nombre = ?", p.Nombre).First(&existente).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return tx.Create(p).Error
	}
	if err != nil {
		return err
	}
	p.ID = existente.ID
	return tx.Model(&existente).Updates(map[string]interface{}{
		"descripcion": p.Descripcion,
		"categoria":   p.Categoria,
	}).Error
}

func (r *permisoRepo) FindByNombre(ctx context.Context, nombre string) (*model.Permiso, error) {
	var p model.Permiso
	err := r.db.WithContext(ctx).Where("nombre = ?", nombre).First(&p).Error
	return &p, err
}

func (r *permisoRepo) ListCatalogo(ctx context.Context) ([]model.Permiso, error) {
	var ps []model.Permiso
	err := r.db.WithContext(ctx).Order("categoria, nombre").Find(&ps).Error
	return ps, err
}

// ── Role grants ───────────────────────────────────────────────────────────────

func (r *permisoRepo) AgregarARolTx(tx *gorm.DB, rol string, permisoID uuid.UUID) error {
	return tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.RolPermiso{Rol: rol, PermisoID: permisoID}).Error
}

func (r *permisoRepo) QuitarDeRolTx(tx *gorm.DB, rol string, permisoIDs []uuid.UUID) error {
	if len(permisoIDs) == 0 {
		return nil
	}
	return tx.Where("rol = ? AND permiso_id IN ?", rol, permisoIDs).Delete(&model.RolPermiso{}).Error
}

func (r *permisoRepo) PermisosDeRolTx(tx *gorm.DB, rol string) ([]model.Permiso, error) {
	var ps []model.Permiso
	err := tx.Model(&model.Permiso{}).
		Joins("JOIN rol_permisos ON rol_permisos.permiso_id = permisos.id").
		Where("rol_permisos.rol = ?", rol).
		Order("permisos.nombre").
		Find(&ps).Error
	return ps, err
}

func (r *permisoRepo) ContarRolPermisos(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.RolPermiso{}).Count(&n).Error
	return n, err
}

// ── Direct grants ─────────────────────────────────────────────────────────────

func (r *permisoRepo) Otorgar(ctx context.Context, up *model.UsuarioPermiso) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "usuario_id"}, {Name: "permiso_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"asignado_por", "asignado_en", "notas"}),
	}).Create(up).Error
}

func (r *permisoRepo) Revocar(ctx context.Context, usuarioID, permisoID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("usuario_id = ? AND permiso_id = ?", usuarioID, permisoID).
		Delete(&model.UsuarioPermiso{})
	return res.RowsAffected > 0, res.Error
}

func (r *permisoRepo) DirectosConDetalle(ctx context.Context, usuarioID uuid.UUID) ([]PermisoDirecto, error) {
	var out []PermisoDirecto
	err := r.db.WithContext(ctx).Table("usuario_permisos").
		Select("permisos.nombre AS nombre, permisos.categoria AS categoria, usuario_permisos.asignado_por AS asignado_por, usuario_permisos.notas AS notas").
		Joins("JOIN permisos ON permisos.id = usuario_permisos.permiso_id").
		Where("usuario_permisos.usuario_id = ?", usuarioID).
		Order("permisos.nombre").
		Scan(&out).Error
	return out, err
}
