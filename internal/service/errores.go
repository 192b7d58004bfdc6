package service

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// Sentinel errors; handlers map them to HTTP status and apierror kinds.
var (
	ErrNoEncontrado       = errors.New("recurso no encontrado")
	ErrConflicto          = errors.New("conflicto con el estado actual")
	ErrNoAutorizado       = errors.New("permisos insuficientes")
	ErrDatosInvalidos     = errors.New("datos invalidos")
	ErrTransicionInvalida = errors.New("transicion de estado invalida")
	ErrPersistencia       = errors.New("no se pudo guardar la operacion, intente nuevamente")
	ErrCredenciales       = errors.New("credenciales invalidas")
)

// runTx runs fn inside a transaction. With a nil db (unit tests with stub
// repositories) fn runs with a nil tx.
func runTx(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	if db == nil {
		return fn(nil)
	}
	return db.WithContext(ctx).Transaction(fn)
}

func esNoEncontrado(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
