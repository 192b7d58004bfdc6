package repository

import (
	"context"
	"time"

	"ecoloimp/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type VisitaFilter struct {
	TecnicoID *uuid.UUID
	ClienteID *uuid.UUID
	Estado    string
	Desde     *time.Time
	Hasta     *time.Time
}

type VisitaRepository interface {
	Create(ctx context.Context, v *model.Visita) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Visita, error)
	FindByIDTx(tx *gorm.DB, id uuid.UUID) (*model.Visita, error)
	List(ctx context.Context, filter VisitaFilter) ([]model.Visita, error)
	Update(ctx context.Context, v *model.Visita) error
}

type visitaRepo struct{ db *gorm.DB }

func NewVisitaRepository(db *gorm.DB) VisitaRepository { return &visitaRepo{db: db} }

func (r *visitaRepo) Create(ctx context.Context, v *model.Visita) error {
	return r.db.WithContext(ctx).Omit("Cliente", "Tecnico").Create(v).Error
}

func (r *visitaRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Visita, error) {
	var v model.Visita
	err := r.db.WithContext(ctx).Preload("Cliente").Preload("Tecnico").First(&v, "id = ?", id).Error
	return &v, err
}

func (r *visitaRepo) FindByIDTx(tx *gorm.DB, id uuid.UUID) (*model.Visita, error) {
	var v model.Visita
	err := tx.First(&v, "id = ?", id).Error
	return &v, err
}

func (r *visitaRepo) List(ctx context.Context, filter VisitaFilter) ([]model.Visita, error) {
	q := r.db.WithContext(ctx).Preload("Cliente").Preload("Tecnico")
	if filter.TecnicoID != nil {
		q = q.Where("tecnico_id = ?", *filter.TecnicoID)
	}
	if filter.ClienteID != nil {
		q = q.Where("cliente_id = ?", *filter.ClienteID)
	}
	if filter.Estado != "" {
		q = q.Where("estado = ?", filter.Estado)
	}
	if filter.Desde != nil {
		q = q.Where("fecha_programada >= ?", *filter.Desde)
	}
	if filter.Hasta != nil {
		q = q.Where("fecha_programada < ?", *filter.Hasta)
	}
	var vs []model.Visita
	err := q.Order("fecha_programada").Find(&vs).Error
	return vs, err
}

func (r *visitaRepo) Update(ctx context.Context, v *model.Visita) error {
	return r.db.WithContext(ctx).Omit("Cliente", "Tecnico").Save(v).Error
}
