package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Estados de una visita tecnica.
const (
	VisitaProgramada = "programada"
	VisitaEnProceso  = "en_proceso"
	VisitaCompletada = "completada"
	VisitaCancelada  = "cancelada"
)

// Visita is a scheduled technician visit to a customer site.
// Tipo: "conteo" | "mantenimiento" | "instalacion"
type Visita struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey"`
	ClienteID       uuid.UUID  `gorm:"type:uuid;not null;index"`
	SucursalID      *uuid.UUID `gorm:"type:uuid"`
	TecnicoID       uuid.UUID  `gorm:"type:uuid;not null;index"`
	FechaProgramada time.Time  `gorm:"not null;index"`
	Tipo            string     `gorm:"type:varchar(20);not null;default:'conteo'"`
	Estado          string     `gorm:"type:varchar(20);not null;default:'programada'"`
	Motivo          *string
	Observaciones   *string
	FechaInicio     *time.Time
	FechaFin        *time.Time
	CreadoPor       *uuid.UUID `gorm:"type:uuid"`
	CreatedAt       time.Time
	UpdatedAt       time.Time

	Cliente *Cliente `gorm:"foreignKey:ClienteID"`
	Tecnico *Usuario `gorm:"foreignKey:TecnicoID"`
}

func (Visita) TableName() string { return "visitas" }

func (v *Visita) BeforeCreate(_ *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}
