package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Permiso is one named capability of the catalog.
type Permiso struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	Nombre      string    `gorm:"uniqueIndex;not null"`
	Descripcion string
	Categoria   string `gorm:"type:varchar(50);not null;default:'general'"`
	CreatedAt   time.Time
}

func (p *Permiso) BeforeCreate(_ *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// RolPermiso grants a permission to every user of a role.
type RolPermiso struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Rol       string    `gorm:"type:varchar(20);not null;uniqueIndex:idx_rol_permiso"`
	PermisoID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_rol_permiso"`
	CreatedAt time.Time

	Permiso *Permiso `gorm:"foreignKey:PermisoID"`
}

func (RolPermiso) TableName() string { return "rol_permisos" }

func (rp *RolPermiso) BeforeCreate(_ *gorm.DB) error {
	if rp.ID == uuid.Nil {
		rp.ID = uuid.New()
	}
	return nil
}

// UsuarioPermiso is a direct grant that applies on top of the user's role.
type UsuarioPermiso struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey"`
	UsuarioID   uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_usuario_permiso"`
	PermisoID   uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_usuario_permiso"`
	AsignadoPor *uuid.UUID `gorm:"type:uuid"`
	AsignadoEn  time.Time  `gorm:"not null"`
	Notas       *string

	Permiso *Permiso `gorm:"foreignKey:PermisoID"`
}

func (UsuarioPermiso) TableName() string { return "usuario_permisos" }

func (up *UsuarioPermiso) BeforeCreate(_ *gorm.DB) error {
	if up.ID == uuid.Nil {
		up.ID = uuid.New()
	}
	if up.AsignadoEn.IsZero() {
		up.AsignadoEn = time.Now()
	}
	return nil
}
