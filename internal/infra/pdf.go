package infra

// pdf.go: consumption report rendered with go-pdf/fpdf:
//   - header with the period and generation date
//   - one row per equipment (serie, cliente, deltas, importe)
//   - rows with readings under review are marked with "*"
//   - totals line and tariff footer

import (
	"fmt"
	"io"
	"time"

	"ecoloimp/internal/dto"

	"github.com/go-pdf/fpdf"
)

// WriteReporteConsumoPDF renders rep as a landscape A4 PDF into w.
func WriteReporteConsumoPDF(w io.Writer, rep *dto.ReporteConsumoResponse) error {
	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.SetAutoPageBreak(true, 12)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 20

	// ── Header ───────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(contentW, 8, "Ecoloimp - Reporte de consumo", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(contentW, 5, fmt.Sprintf("Periodo: %s al %s",
		rep.Desde.Format("02/01/2006"), rep.Hasta.Format("02/01/2006")), "", 1, "L", false, 0, "")
	pdf.CellFormat(contentW, 5, "Generado: "+time.Now().Format("02/01/2006 15:04"), "", 1, "L", false, 0, "")
	pdf.Ln(3)

	// ── Table ────────────────────────────────────────────────────────────────
	cols := []struct {
		titulo string
		ancho  float64
		align  string
	}{
		{"Serie", 0.14, "L"},
		{"Equipo", 0.18, "L"},
		{"Cliente", 0.22, "L"},
		{"Conteos", 0.07, "C"},
		{"Impresiones", 0.10, "R"},
		{"Copias", 0.09, "R"},
		{"Escaneos", 0.09, "R"},
		{"Importe", 0.11, "R"},
	}
	pdf.SetFont("Helvetica", "B", 8)
	pdf.SetFillColor(230, 236, 230)
	for i, c := range cols {
		ln := 0
		if i == len(cols)-1 {
			ln = 1
		}
		pdf.CellFormat(contentW*c.ancho, 6, c.titulo, "1", ln, "C", true, 0, "")
	}

	pdf.SetFont("Helvetica", "", 8)
	for _, e := range rep.Equipos {
		serie := e.NumeroSerie
		if e.EnRevision > 0 {
			serie += " *"
		}
		valores := []string{
			serie,
			truncar(e.Marca+" "+e.Modelo, 30),
			truncar(e.ClienteNombre, 38),
			fmt.Sprintf("%d", e.Conteos),
			fmt.Sprintf("%d", e.Impresiones),
			fmt.Sprintf("%d", e.Copias),
			fmt.Sprintf("%d", e.Escaneos),
			"$" + e.Importe.StringFixed(2),
		}
		for i, c := range cols {
			ln := 0
			if i == len(cols)-1 {
				ln = 1
			}
			pdf.CellFormat(contentW*c.ancho, 5, tr(valores[i]), "1", ln, c.align, false, 0, "")
		}
	}

	// ── Totals ───────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 8)
	pre := contentW * (cols[0].ancho + cols[1].ancho + cols[2].ancho + cols[3].ancho)
	pdf.CellFormat(pre, 6, "TOTAL", "1", 0, "R", false, 0, "")
	pdf.CellFormat(contentW*cols[4].ancho, 6, fmt.Sprintf("%d", rep.TotalImpresiones), "1", 0, "R", false, 0, "")
	pdf.CellFormat(contentW*cols[5].ancho, 6, fmt.Sprintf("%d", rep.TotalCopias), "1", 0, "R", false, 0, "")
	pdf.CellFormat(contentW*cols[6].ancho, 6, fmt.Sprintf("%d", rep.TotalEscaneos), "1", 0, "R", false, 0, "")
	pdf.CellFormat(contentW*cols[7].ancho, 6, "$"+rep.TotalImporte.StringFixed(2), "1", 1, "R", false, 0, "")

	// ── Footer ───────────────────────────────────────────────────────────────
	pdf.Ln(3)
	pdf.SetFont("Helvetica", "I", 7)
	pdf.CellFormat(contentW, 4, fmt.Sprintf("Tarifas por pagina: impresion $%s, copia $%s, escaneo $%s",
		rep.Tarifas.Impresion.StringFixed(2), rep.Tarifas.Copia.StringFixed(2), rep.Tarifas.Escaneo.StringFixed(2)),
		"", 1, "L", false, 0, "")
	pdf.CellFormat(contentW, 4, "* El equipo tiene conteos marcados para revision en el periodo.", "", 1, "L", false, 0, "")

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("pdf: write report: %w", err)
	}
	return nil
}

func truncar(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
