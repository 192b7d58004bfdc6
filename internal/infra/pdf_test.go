package infra

import (
	"bytes"
	"testing"
	"time"

	"ecoloimp/internal/dto"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReporteConsumoPDF(t *testing.T) {
	rep := &dto.ReporteConsumoResponse{
		Desde: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Hasta: time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC),
		Tarifas: dto.TarifasResponse{
			Impresion: decimal.RequireFromString("0.35"),
			Copia:     decimal.RequireFromString("0.30"),
			Escaneo:   decimal.RequireFromString("0.05"),
		},
		Equipos: []dto.ConsumoEquipoResponse{{
			NumeroSerie: "XRX-001", Marca: "Xerox", Modelo: "B405", ClienteNombre: "Papelería Núñez",
			Conteos: 2, Impresiones: 400, EnRevision: 1, Importe: decimal.RequireFromString("140"),
		}},
		TotalImpresiones: 400,
		TotalImporte:     decimal.RequireFromString("140"),
	}

	var buf bytes.Buffer
	require.NoError(t, WriteReporteConsumoPDF(&buf, rep))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF")))
}

func TestTruncar(t *testing.T) {
	assert.Equal(t, "abc", truncar("abc", 5))
	assert.Equal(t, "abcd…", truncar("abcdefgh", 5))
}
