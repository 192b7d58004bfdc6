// Package contadores computes per-counter deltas for meter readings and
// validates submitted counter values.
package contadores

import (
	"fmt"
)

// Valores por defecto del sistema de conteo.
const (
	MaxContadorPorDefecto         int64 = 9_999_999
	MaxDiferenciaDiariaPorDefecto int64 = 10_000
)

// Nombres de los contadores, usados como campo en los errores de validacion.
const (
	CampoImpresiones = "contador_impresiones"
	CampoEscaneos    = "contador_escaneos"
	CampoCopias      = "contador_copias"
)

// Lectura is the triple of counters read from a device.
type Lectura struct {
	Impresiones int64
	Escaneos    int64
	Copias      int64
}

// Limites bounds what a reading may contain and when it is flagged.
type Limites struct {
	MaxContador   int64
	MaxDiferencia int64
}

// LimitesPorDefecto returns the production bounds.
func LimitesPorDefecto() Limites {
	return Limites{MaxContador: MaxContadorPorDefecto, MaxDiferencia: MaxDiferenciaDiariaPorDefecto}
}

// ErrContadorInvalido is returned when a counter is negative or above the
// configured maximum.
type ErrContadorInvalido struct {
	Campo  string
	Valor  int64
	Motivo string
}

func (e *ErrContadorInvalido) Error() string {
	return fmt.Sprintf("%s: %s (valor %d)", e.Campo, e.Motivo, e.Valor)
}

func (l Limites) validarUno(campo string, v int64) error {
	if v < 0 {
		return &ErrContadorInvalido{Campo: campo, Valor: v, Motivo: "no puede ser negativo"}
	}
	if v > l.MaxContador {
		return &ErrContadorInvalido{Campo: campo, Valor: v, Motivo: fmt.Sprintf("excede el maximo permitido (%d)", l.MaxContador)}
	}
	return nil
}

// Validar checks every counter of a reading, reporting the first offender.
func (l Limites) Validar(a Lectura) error {
	for _, c := range []struct {
		campo string
		valor int64
	}{
		{CampoImpresiones, a.Impresiones},
		{CampoEscaneos, a.Escaneos},
		{CampoCopias, a.Copias},
	} {
		if err := l.validarUno(c.campo, c.valor); err != nil {
			return err
		}
	}
	return nil
}

// Diferencia is the outcome for a single counter.
type Diferencia struct {
	Valor    int64
	Reinicio bool
	Anomalia bool
}

// Resultado is the outcome for a full reading.
type Resultado struct {
	Impresiones Diferencia
	Escaneos    Diferencia
	Copias      Diferencia
}

// RequiereRevision reports whether any counter jumped past the threshold.
func (r Resultado) RequiereRevision() bool {
	return r.Impresiones.Anomalia || r.Escaneos.Anomalia || r.Copias.Anomalia
}

// HuboReinicio reports whether any counter was treated as a device reset.
func (r Resultado) HuboReinicio() bool {
	return r.Impresiones.Reinicio || r.Escaneos.Reinicio || r.Copias.Reinicio
}

// Diferencias returns the three deltas as a Lectura.
func (r Resultado) Diferencias() Lectura {
	return Lectura{Impresiones: r.Impresiones.Valor, Escaneos: r.Escaneos.Valor, Copias: r.Copias.Valor}
}

// DiferenciaDe computes the delta of one counter. A drop to a positive value
// is a device reset: the new reading itself is the delta. A drop to zero
// yields zero.
func DiferenciaDe(actual, anterior, umbral int64) Diferencia {
	var d Diferencia
	switch {
	case actual < anterior && actual > 0:
		d.Valor = actual
		d.Reinicio = true
	case actual > anterior:
		d.Valor = actual - anterior
	}
	d.Anomalia = d.Valor > umbral && anterior > 0
	return d
}

// Calcular computes the deltas of actual against anterior.
func (l Limites) Calcular(actual, anterior Lectura) Resultado {
	return Resultado{
		Impresiones: DiferenciaDe(actual.Impresiones, anterior.Impresiones, l.MaxDiferencia),
		Escaneos:    DiferenciaDe(actual.Escaneos, anterior.Escaneos, l.MaxDiferencia),
		Copias:      DiferenciaDe(actual.Copias, anterior.Copias, l.MaxDiferencia),
	}
}
