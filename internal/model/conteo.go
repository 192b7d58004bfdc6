package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Conteo is an immutable meter reading. It keeps both the submitted counters
// and the equipment counters they were diffed against.
type Conteo struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey"`
	EquipoID    uuid.UUID  `gorm:"type:uuid;not null;index"`
	TecnicoID   uuid.UUID  `gorm:"type:uuid;not null;index"`
	VisitaID    *uuid.UUID `gorm:"type:uuid;index"`
	FechaConteo time.Time  `gorm:"not null;index"`

	ContadorImpresiones int64 `gorm:"not null"`
	ContadorEscaneos    int64 `gorm:"not null;default:0"`
	ContadorCopias      int64 `gorm:"not null;default:0"`

	ContadorAnteriorImpresiones int64 `gorm:"not null;default:0"`
	ContadorAnteriorEscaneos    int64 `gorm:"not null;default:0"`
	ContadorAnteriorCopias      int64 `gorm:"not null;default:0"`

	DiferenciaImpresiones int64 `gorm:"not null;default:0"`
	DiferenciaEscaneos    int64 `gorm:"not null;default:0"`
	DiferenciaCopias      int64 `gorm:"not null;default:0"`

	EstadoEquipo          string `gorm:"type:varchar(20);not null;default:'operativo'"`
	RequiereMantenimiento bool   `gorm:"not null;default:false"`
	RequiereRevision      bool   `gorm:"not null;default:false"`
	ContadorReiniciado    bool   `gorm:"not null;default:false"`
	Observaciones         *string
	CreatedAt             time.Time

	Equipo  *Equipo  `gorm:"foreignKey:EquipoID"`
	Tecnico *Usuario `gorm:"foreignKey:TecnicoID"`
}

func (Conteo) TableName() string { return "conteos" }

func (c *Conteo) BeforeCreate(_ *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
