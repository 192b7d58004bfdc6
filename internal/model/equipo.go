package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Estados de un equipo.
const (
	EquipoActivo        = "activo"
	EquipoInactivo      = "inactivo"
	EquipoMantenimiento = "mantenimiento"
	EquipoBaja          = "baja"
)

// Equipo is a printer / copier installed at a customer site. It carries the
// last accepted counters so the next reading can be diffed against them.
// Version is bumped on every counter update (optimistic concurrency).
type Equipo struct {
	ID                        uuid.UUID  `gorm:"type:uuid;primaryKey"`
	NumeroSerie               string     `gorm:"uniqueIndex;not null"`
	Marca                     string     `gorm:"not null"`
	Modelo                    string     `gorm:"not null"`
	Tipo                      string     `gorm:"type:varchar(20);not null;default:'multifuncional'"` // impresora | multifuncional | copiadora
	ClienteID                 uuid.UUID  `gorm:"type:uuid;not null;index"`
	SucursalID                *uuid.UUID `gorm:"type:uuid;index"`
	TecnicoAsignadoID         *uuid.UUID `gorm:"type:uuid;index"`
	Ubicacion                 *string
	Estado                    string `gorm:"type:varchar(20);not null;default:'activo'"`
	UltimoContadorImpresiones int64  `gorm:"not null;default:0"`
	UltimoContadorEscaneos    int64  `gorm:"not null;default:0"`
	UltimoContadorCopias      int64  `gorm:"not null;default:0"`
	FechaUltimoConteo         *time.Time
	FechaInstalacion          *time.Time
	FechaProximoMantenimiento *time.Time
	Version                   int `gorm:"not null;default:1"`
	CreatedAt                 time.Time
	UpdatedAt                 time.Time

	Cliente  *Cliente  `gorm:"foreignKey:ClienteID"`
	Sucursal *Sucursal `gorm:"foreignKey:SucursalID"`
}

func (e *Equipo) BeforeCreate(_ *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Version == 0 {
		e.Version = 1
	}
	return nil
}

// EstadoEquipoValido reports whether s is a known Equipo status.
func EstadoEquipoValido(s string) bool {
	switch s {
	case EquipoActivo, EquipoInactivo, EquipoMantenimiento, EquipoBaja:
		return true
	}
	return false
}
