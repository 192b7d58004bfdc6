package repository

import (
	"context"
	"errors"
	"time"

	"ecoloimp/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrVersionConflicto is returned when an equipment row changed between the
// read and the counter update.
var ErrVersionConflicto = errors.New("el equipo fue modificado por otra operacion")

// EquipoFilter defines filters for listing equipment.
type EquipoFilter struct {
	ClienteID         *uuid.UUID
	SucursalID        *uuid.UUID
	TecnicoAsignadoID *uuid.UUID
	Estado            string
	Busqueda          string
	Page              int
	Limit             int
}

// Contadores is the counter triple written back to an Equipo.
type Contadores struct {
	Impresiones int64
	Escaneos    int64
	Copias      int64
	Fecha       *time.Time
}

type EquipoRepository interface {
	Create(ctx context.Context, e *model.Equipo) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Equipo, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Equipo, error)
	FindByIDForUpdateTx(tx *gorm.DB, id uuid.UUID) (*model.Equipo, error)
	List(ctx context.Context, filter EquipoFilter) ([]model.Equipo, int64, error)
	Update(ctx context.Context, e *model.Equipo) error
	CambiarEstado(ctx context.Context, id uuid.UUID, estado string, proximoMantenimiento *time.Time) error
	FinalizarMantenimiento(ctx context.Context, id uuid.UUID, proximo *time.Time) error
	ActualizarContadoresTx(tx *gorm.DB, id uuid.UUID, versionEsperada int, c Contadores) error
	MarcarMantenimientoTx(tx *gorm.DB, id uuid.UUID, proximo time.Time) error
	ListMantenimientoVencido(ctx context.Context, al time.Time) ([]model.Equipo, error)
	DB() *gorm.DB
}

type equipoRepo struct{ db *gorm.DB }

func NewEquipoRepository(db *gorm.DB) EquipoRepository { return &equipoRepo{db: db} }

func (r *equipoRepo) DB() *gorm.DB { return r.db }

func (r *equipoRepo) Create(ctx context.Context, e *model.Equipo) error {
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *equipoRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Equipo, error) {
	var e model.Equipo
	err := r.db.WithContext(ctx).Preload("Cliente").First(&e, "id = ?", id).Error
	return &e, err
}

func (r *equipoRepo) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Equipo, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var es []model.Equipo
	err := r.db.WithContext(ctx).Preload("Cliente").Where("id IN ?", ids).Order("numero_serie").Find(&es).Error
	return es, err
}

// FindByIDForUpdateTx reads the row with SELECT … FOR UPDATE on Postgres so
// concurrent readings of the same equipment serialize on the row lock.
func (r *equipoRepo) FindByIDForUpdateTx(tx *gorm.DB, id uuid.UUID) (*model.Equipo, error) {
	q := tx
	if tx.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var e model.Equipo
	err := q.First(&e, "id = ?", id).Error
	return &e, err
}

func (r *equipoRepo) List(ctx context.Context, filter EquipoFilter) ([]model.Equipo, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.Equipo{})
	if filter.ClienteID != nil {
		q = q.Where("cliente_id = ?", *filter.ClienteID)
	}
	if filter.SucursalID != nil {
		q = q.Where("sucursal_id = ?", *filter.SucursalID)
	}
	if filter.TecnicoAsignadoID != nil {
		q = q.Where("tecnico_asignado_id = ?", *filter.TecnicoAsignadoID)
	}
	if filter.Estado != "" {
		q = q.Where("estado = ?", filter.Estado)
	}
	if filter.Busqueda != "" {
		like := "%" + filter.Busqueda + "%"
		q = q.Where("numero_serie LIKE ? OR LOWER(marca) LIKE LOWER(?) OR LOWER(modelo) LIKE LOWER(?)", like, like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page, limit := paginar(filter.Page, filter.Limit)
	var es []model.Equipo
	err := q.Preload("Cliente").Order("numero_serie").
		Offset((page - 1) * limit).Limit(limit).
		Find(&es).Error
	return es, total, err
}

func (r *equipoRepo) Update(ctx context.Context, e *model.Equipo) error {
	// Counters and version are owned by the reading flow.
	return r.db.WithContext(ctx).Model(e).
		Omit("Cliente", "Sucursal", "UltimoContadorImpresiones", "UltimoContadorEscaneos",
			"UltimoContadorCopias", "FechaUltimoConteo", "Version").
		Save(e).Error
}

func (r *equipoRepo) CambiarEstado(ctx context.Context, id uuid.UUID, estado string, proximoMantenimiento *time.Time) error {
	updates := map[string]interface{}{"estado": estado}
	if proximoMantenimiento != nil {
		updates["fecha_proximo_mantenimiento"] = *proximoMantenimiento
	}
	res := r.db.WithContext(ctx).Model(&model.Equipo{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// FinalizarMantenimiento puts the equipment back to activo and replaces the
// next maintenance date; a nil proximo clears it.
func (r *equipoRepo) FinalizarMantenimiento(ctx context.Context, id uuid.UUID, proximo *time.Time) error {
	res := r.db.WithContext(ctx).Model(&model.Equipo{}).Where("id = ?", id).Updates(map[string]interface{}{
		"estado":                      model.EquipoActivo,
		"fecha_proximo_mantenimiento": proximo,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ActualizarContadoresTx writes the new last counters only if the row still
// carries versionEsperada, bumping the version.
func (r *equipoRepo) ActualizarContadoresTx(tx *gorm.DB, id uuid.UUID, versionEsperada int, c Contadores) error {
	res := tx.Model(&model.Equipo{}).
		Where("id = ? AND version = ?", id, versionEsperada).
		Updates(map[string]interface{}{
			"ultimo_contador_impresiones": c.Impresiones,
			"ultimo_contador_escaneos":    c.Escaneos,
			"ultimo_contador_copias":      c.Copias,
			"fecha_ultimo_conteo":         c.Fecha,
			"version":                     gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrVersionConflicto
	}
	return nil
}

func (r *equipoRepo) MarcarMantenimientoTx(tx *gorm.DB, id uuid.UUID, proximo time.Time) error {
	return tx.Model(&model.Equipo{}).Where("id = ?", id).Updates(map[string]interface{}{
		"estado":                      model.EquipoMantenimiento,
		"fecha_proximo_mantenimiento": proximo,
	}).Error
}

// ListMantenimientoVencido returns active equipment whose next maintenance
// date is at or before al.
func (r *equipoRepo) ListMantenimientoVencido(ctx context.Context, al time.Time) ([]model.Equipo, error) {
	var es []model.Equipo
	err := r.db.WithContext(ctx).Preload("Cliente").
		Where("estado = ? AND fecha_proximo_mantenimiento IS NOT NULL AND fecha_proximo_mantenimiento <= ?", model.EquipoActivo, al).
		Order("fecha_proximo_mantenimiento").
		Find(&es).Error
	return es, err
}

func paginar(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 500 {
		limit = 50
	}
	return page, limit
}
