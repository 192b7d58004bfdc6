package repository

import (
	"context"
	"errors"
	"time"

	"ecoloimp/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ConteoFilter defines filters for listing readings. TecnicoID restricts the
// list to a single technician's readings.
type ConteoFilter struct {
	EquipoID     *uuid.UUID
	TecnicoID    *uuid.UUID
	Desde        *time.Time
	Hasta        *time.Time
	SoloRevision bool
	Page         int
	Limit        int
}

// FilaConsumo is one row of the per-equipment consumption aggregate.
type FilaConsumo struct {
	EquipoID    uuid.UUID
	Conteos     int
	Impresiones int64
	Escaneos    int64
	Copias      int64
	EnRevision  int
}

type ConteoRepository interface {
	CreateTx(tx *gorm.DB, c *model.Conteo) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Conteo, error)
	FindByIDTx(tx *gorm.DB, id uuid.UUID) (*model.Conteo, error)
	List(ctx context.Context, filter ConteoFilter) ([]model.Conteo, int64, error)
	UltimoDeEquipo(ctx context.Context, equipoID uuid.UUID) (*model.Conteo, error)
	UltimoDeEquipoTx(tx *gorm.DB, equipoID uuid.UUID, excluir uuid.UUID) (*model.Conteo, error)
	DeleteTx(tx *gorm.DB, id uuid.UUID) error
	ListPorEquipoDesde(ctx context.Context, equipoID uuid.UUID, desde time.Time) ([]model.Conteo, error)
	ConsumoPorEquipo(ctx context.Context, clienteID *uuid.UUID, desde, hasta time.Time) ([]FilaConsumo, error)
}

type conteoRepo struct{ db *gorm.DB }

func NewConteoRepository(db *gorm.DB) ConteoRepository { return &conteoRepo{db: db} }

func (r *conteoRepo) CreateTx(tx *gorm.DB, c *model.Conteo) error {
	return tx.Omit("Equipo", "Tecnico").Create(c).Error
}

func (r *conteoRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Conteo, error) {
	var c model.Conteo
	err := r.db.WithContext(ctx).Preload("Equipo").Preload("Tecnico").First(&c, "id = ?", id).Error
	return &c, err
}

func (r *conteoRepo) FindByIDTx(tx *gorm.DB, id uuid.UUID) (*model.Conteo, error) {
	var c model.Conteo
	err := tx.First(&c, "id = ?", id).Error
	return &c, err
}

func (r *conteoRepo) List(ctx context.Context, filter ConteoFilter) ([]model.Conteo, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.Conteo{})
	if filter.EquipoID != nil {
		q = q.Where("equipo_id = ?", *filter.EquipoID)
	}
	if filter.TecnicoID != nil {
		q = q.Where("tecnico_id = ?", *filter.TecnicoID)
	}
	if filter.Desde != nil {
		q = q.Where("fecha_conteo >= ?", *filter.Desde)
	}
	if filter.Hasta != nil {
		q = q.Where("fecha_conteo < ?", *filter.Hasta)
	}
	if filter.SoloRevision {
		q = q.Where("requiere_revision = ?", true)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page, limit := paginar(filter.Page, filter.Limit)
	var cs []model.Conteo
	err := q.Preload("Equipo").Preload("Tecnico").
		Order("fecha_conteo DESC, created_at DESC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&cs).Error
	return cs, total, err
}

func (r *conteoRepo) UltimoDeEquipo(ctx context.Context, equipoID uuid.UUID) (*model.Conteo, error) {
	var c model.Conteo
	err := r.db.WithContext(ctx).Where("equipo_id = ?", equipoID).
		Order("fecha_conteo DESC, created_at DESC").
		First(&c).Error
	return &c, err
}

// UltimoDeEquipoTx returns the most recent reading of equipoID other than
// excluir, or nil when there is none.
func (r *conteoRepo) UltimoDeEquipoTx(tx *gorm.DB, equipoID uuid.UUID, excluir uuid.UUID) (*model.Conteo, error) {
	var c model.Conteo
	err := tx.Where("equipo_id = ? AND id <> ?", equipoID, excluir).
		Order("fecha_conteo DESC, created_at DESC").
		First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *conteoRepo) DeleteTx(tx *gorm.DB, id uuid.UUID) error {
	res := tx.Where("id = ?", id).Delete(&model.Conteo{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *conteoRepo) ListPorEquipoDesde(ctx context.Context, equipoID uuid.UUID, desde time.Time) ([]model.Conteo, error) {
	var cs []model.Conteo
	err := r.db.WithContext(ctx).
		Where("equipo_id = ? AND fecha_conteo >= ?", equipoID, desde).
		Order("fecha_conteo").
		Find(&cs).Error
	return cs, err
}

// ConsumoPorEquipo sums the deltas of every reading in [desde, hasta).
func (r *conteoRepo) ConsumoPorEquipo(ctx context.Context, clienteID *uuid.UUID, desde, hasta time.Time) ([]FilaConsumo, error) {
	q := r.db.WithContext(ctx).Table("conteos").
		Select(`conteos.equipo_id AS equipo_id,
			COUNT(*) AS conteos,
			COALESCE(SUM(conteos.diferencia_impresiones), 0) AS impresiones,
			COALESCE(SUM(conteos.diferencia_escaneos), 0) AS escaneos,
			COALESCE(SUM(conteos.diferencia_copias), 0) AS copias,
			SUM(CASE WHEN conteos.requiere_revision THEN 1 ELSE 0 END) AS en_revision`).
		Where("conteos.fecha_conteo >= ? AND conteos.fecha_conteo < ?", desde, hasta)
	if clienteID != nil {
		q = q.Joins("JOIN equipos ON equipos.id = conteos.equipo_id").
			Where("equipos.cliente_id = ?", *clienteID)
	}
	var filas []FilaConsumo
	err := q.Group("conteos.equipo_id").Scan(&filas).Error
	return filas, err
}
