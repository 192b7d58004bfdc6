package model

import (
	"time"

	"ecoloimp/internal/rbac"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Usuario stores every system user. Rol: "tecnico" | "admin" | "superadmin".
// Technician-only data lives in PerfilTecnico.
type Usuario struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	Username       string    `gorm:"uniqueIndex;not null"`
	Nombre         string    `gorm:"not null"`
	Apellido       string
	Email          *string `gorm:"uniqueIndex"`
	Telefono       *string
	PasswordHash   string `gorm:"not null"`
	Rol            string `gorm:"type:varchar(20);not null"`
	Activo         bool   `gorm:"not null;default:true"`
	UltimoAcceso   *time.Time
	CreadoPor      *uuid.UUID `gorm:"type:uuid"`
	ActualizadoPor *uuid.UUID `gorm:"type:uuid"`
	CreatedAt      time.Time
	UpdatedAt      time.Time

	PerfilTecnico *PerfilTecnico `gorm:"foreignKey:UsuarioID"`
}

func (u *Usuario) BeforeCreate(_ *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

func (u *Usuario) UsuarioID() uuid.UUID { return u.ID }
func (u *Usuario) RolActual() rbac.Rol  { return rbac.Rol(u.Rol) }

// NombreCompleto joins nombre and apellido.
func (u *Usuario) NombreCompleto() string {
	if u.Apellido == "" {
		return u.Nombre
	}
	return u.Nombre + " " + u.Apellido
}

// PerfilTecnico extends a tecnico Usuario with field-work data.
type PerfilTecnico struct {
	UsuarioID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	Especialidad       *string
	NivelExperiencia   *string `gorm:"type:varchar(20)"` // junior | intermedio | senior
	TelefonoEmergencia *string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (PerfilTecnico) TableName() string { return "tecnico_perfiles" }
