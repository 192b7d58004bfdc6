package contadores

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiferenciaDe(t *testing.T) {
	cases := []struct {
		name             string
		actual, anterior int64
		want             int64
		reinicio         bool
		anomalia         bool
	}{
		{"incremento normal", 5400, 5000, 400, false, false},
		{"sin cambio", 5000, 5000, 0, false, false},
		{"primer conteo", 1200, 0, 1200, false, false},
		{"primer conteo grande no se marca", 500_000, 0, 500_000, false, false},
		{"reinicio del equipo", 50, 99_000, 50, true, false},
		{"caida a cero", 0, 99_000, 0, false, false},
		{"justo en el umbral", 20_000, 10_000, 10_000, false, false},
		{"sobre el umbral", 20_001, 10_000, 10_001, false, true},
		{"reinicio sobre el umbral", 15_000, 40_000, 15_000, true, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := DiferenciaDe(tc.actual, tc.anterior, MaxDiferenciaDiariaPorDefecto)
			assert.Equal(t, tc.want, d.Valor)
			assert.Equal(t, tc.reinicio, d.Reinicio)
			assert.Equal(t, tc.anomalia, d.Anomalia)
			assert.GreaterOrEqual(t, d.Valor, int64(0))
		})
	}
}

func TestCalcular_LecturaCompleta(t *testing.T) {
	l := LimitesPorDefecto()
	r := l.Calcular(
		Lectura{Impresiones: 5400, Escaneos: 30, Copias: 80_000},
		Lectura{Impresiones: 5000, Escaneos: 200, Copias: 60_000},
	)

	assert.Equal(t, Lectura{Impresiones: 400, Escaneos: 30, Copias: 20_000}, r.Diferencias())
	assert.True(t, r.Escaneos.Reinicio)
	assert.True(t, r.HuboReinicio())
	assert.True(t, r.Copias.Anomalia)
	assert.True(t, r.RequiereRevision())
}

func TestCalcular_UmbralConfigurable(t *testing.T) {
	l := Limites{MaxContador: 1000, MaxDiferencia: 10}
	r := l.Calcular(Lectura{Impresiones: 25}, Lectura{Impresiones: 10})
	assert.True(t, r.RequiereRevision())
}

func TestValidar(t *testing.T) {
	l := LimitesPorDefecto()

	require.NoError(t, l.Validar(Lectura{}))
	require.NoError(t, l.Validar(Lectura{Impresiones: MaxContadorPorDefecto}))

	cases := []struct {
		name  string
		in    Lectura
		campo string
	}{
		{"impresiones negativas", Lectura{Impresiones: -1}, CampoImpresiones},
		{"impresiones sobre el maximo", Lectura{Impresiones: 10_000_000}, CampoImpresiones},
		{"escaneos negativos", Lectura{Escaneos: -5}, CampoEscaneos},
		{"copias sobre el maximo", Lectura{Copias: MaxContadorPorDefecto + 1}, CampoCopias},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := l.Validar(tc.in)
			var inv *ErrContadorInvalido
			require.True(t, errors.As(err, &inv))
			assert.Equal(t, tc.campo, inv.Campo)
		})
	}
}

func TestEstadoEquipo(t *testing.T) {
	assert.True(t, EstadoOperativo.Valido())
	assert.False(t, EstadoEquipo("roto").Valido())

	assert.False(t, EstadoOperativo.RequiereMantenimiento())
	assert.True(t, EstadoConFallas.RequiereMantenimiento())
	assert.True(t, EstadoFueraDeServicio.RequiereMantenimiento())
}
