// Package testutil builds throwaway databases and fixtures for package tests.
package testutil

import (
	"testing"
	"time"

	"ecoloimp/internal/model"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB opens a private in-memory SQLite database with the full schema.
// A single connection keeps every statement on the same memory database.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&model.Usuario{}, &model.PerfilTecnico{},
		&model.Permiso{}, &model.RolPermiso{}, &model.UsuarioPermiso{},
		&model.Cliente{}, &model.Sucursal{},
		&model.Equipo{}, &model.Conteo{}, &model.Visita{},
	))
	return db
}

// Usuario inserts an active user with password "password123".
func Usuario(t *testing.T, db *gorm.DB, username, rol string) *model.Usuario {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)
	u := &model.Usuario{
		Username:     username,
		Nombre:       "Usuario",
		Apellido:     username,
		PasswordHash: string(hash),
		Rol:          rol,
		Activo:       true,
	}
	require.NoError(t, db.Omit("PerfilTecnico").Create(u).Error)
	return u
}

func Cliente(t *testing.T, db *gorm.DB, nombre string) *model.Cliente {
	t.Helper()
	c := &model.Cliente{Nombre: nombre, Activo: true}
	require.NoError(t, db.Omit("Sucursales").Create(c).Error)
	return c
}

// Equipo inserts an active equipment of clienteID whose last print counter
// is impresiones.
func Equipo(t *testing.T, db *gorm.DB, clienteID uuid.UUID, serie string, impresiones int64) *model.Equipo {
	t.Helper()
	e := &model.Equipo{
		NumeroSerie:               serie,
		Marca:                     "Xerox",
		Modelo:                    "WorkCentre 5335",
		Tipo:                      "multifuncional",
		ClienteID:                 clienteID,
		Estado:                    model.EquipoActivo,
		UltimoContadorImpresiones: impresiones,
	}
	require.NoError(t, db.Omit("Cliente", "Sucursal").Create(e).Error)
	return e
}

// Conteo inserts a reading directly, bypassing the delta engine.
func Conteo(t *testing.T, db *gorm.DB, equipoID, tecnicoID uuid.UUID, fecha time.Time, actual, anterior int64) *model.Conteo {
	t.Helper()
	c := &model.Conteo{
		EquipoID:                    equipoID,
		TecnicoID:                   tecnicoID,
		FechaConteo:                 fecha.UTC(),
		ContadorImpresiones:         actual,
		ContadorAnteriorImpresiones: anterior,
		DiferenciaImpresiones:       actual - anterior,
		EstadoEquipo:                "operativo",
	}
	require.NoError(t, db.Omit("Equipo", "Tecnico").Create(c).Error)
	return c
}

// RecargarEquipo reads the equipment row back.
func RecargarEquipo(t *testing.T, db *gorm.DB, id uuid.UUID) *model.Equipo {
	t.Helper()
	var e model.Equipo
	require.NoError(t, db.First(&e, "id = ?", id).Error)
	return &e
}

// ContarConteos counts readings of one equipment.
func ContarConteos(t *testing.T, db *gorm.DB, equipoID uuid.UUID) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&model.Conteo{}).Where("equipo_id = ?", equipoID).Count(&n).Error)
	return n
}

// RecargarUsuario reads the user row back.
func RecargarUsuario(t *testing.T, db *gorm.DB, id uuid.UUID) *model.Usuario {
	t.Helper()
	var u model.Usuario
	require.NoError(t, db.First(&u, "id = ?", id).Error)
	return &u
}
