// cmd/seedpermisos/main.go syncs the permission catalog and creates or
// updates the superadmin account.
// Uso: SEED_USERNAME=root SEED_PASSWORD=... go run ./cmd/seedpermisos
package main

import (
	"context"
	"os"
	"time"

	"ecoloimp/internal/config"
	"ecoloimp/internal/infra"
	"ecoloimp/internal/rbac"
	"ecoloimp/internal/repository"
	"ecoloimp/internal/service"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	username := envOr("SEED_USERNAME", "superadmin")
	password := os.Getenv("SEED_PASSWORD")
	if len(password) < 8 {
		log.Fatal().Msg("SEED_PASSWORD must have at least 8 characters")
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL, true)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	ctx := context.Background()

	usuarios := repository.NewUsuarioRepository(db)
	permisos := repository.NewPermisoRepository(db)
	resolver := rbac.NewResolver(permisos, time.Second)
	if err := service.NewPermisoService(permisos, usuarios, resolver).Sincronizar(ctx); err != nil {
		log.Fatal().Err(err).Msg("sync catalog")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), 12)
	if err != nil {
		log.Fatal().Err(err).Msg("bcrypt")
	}

	result := db.WithContext(ctx).Exec(`
		INSERT INTO usuarios (id, username, nombre, apellido, password_hash, rol, activo)
		VALUES (?, ?, ?, ?, ?, ?, true)
		ON CONFLICT (username) DO UPDATE
		SET password_hash = EXCLUDED.password_hash,
		    rol = EXCLUDED.rol,
		    activo = true
	`, uuid.NewString(), username, envOr("SEED_NOMBRE", "Super"), envOr("SEED_APELLIDO", "Administrador"), string(hash), string(rbac.RolSuperAdmin))
	if result.Error != nil {
		log.Fatal().Err(result.Error).Msg("upsert superadmin")
	}
	log.Info().Str("username", username).Int("permisos", len(rbac.Catalogo())).Msg("catalogo sincronizado y superadmin listo")
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
