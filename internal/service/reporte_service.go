package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"ecoloimp/internal/dto"
	"ecoloimp/internal/infra"
	"ecoloimp/internal/repository"
	"ecoloimp/internal/worker"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Tarifas are the per-page prices used for the billing estimate.
type Tarifas struct {
	Impresion decimal.Decimal
	Copia     decimal.Decimal
	Escaneo   decimal.Decimal
}

// EmailEncolador queues outgoing e-mails. *worker.Dispatcher implements it.
type EmailEncolador interface {
	EnqueueEmail(ctx context.Context, payload worker.EmailJobPayload) error
}

type ReporteService interface {
	Consumo(ctx context.Context, filter dto.ReporteConsumoFilter) (*dto.ReporteConsumoResponse, error)
	ConsumoPDF(ctx context.Context, filter dto.ReporteConsumoFilter, w io.Writer) error
	EnviarConsumo(ctx context.Context, filter dto.ReporteConsumoFilter, destinatario string) error
}

type reporteService struct {
	conteos repository.ConteoRepository
	equipos repository.EquipoRepository
	tarifas Tarifas
	correo  EmailEncolador
	dir     string
}

func NewReporteService(
	conteos repository.ConteoRepository,
	equipos repository.EquipoRepository,
	tarifas Tarifas,
	correo EmailEncolador,
	dir string,
) ReporteService {
	return &reporteService{conteos: conteos, equipos: equipos, tarifas: tarifas, correo: correo, dir: dir}
}

// Consumo sums the deltas of every reading in [desde, hasta] per equipment
// and prices them with the configured tariffs.
func (s *reporteService) Consumo(ctx context.Context, filter dto.ReporteConsumoFilter) (*dto.ReporteConsumoResponse, error) {
	desde, hasta, err := parseRango(filter.Desde, filter.Hasta)
	if err != nil {
		return nil, err
	}
	if desde == nil || hasta == nil {
		return nil, fmt.Errorf("%w: desde y hasta son obligatorios", ErrDatosInvalidos)
	}
	var clienteID *uuid.UUID
	if filter.ClienteID != "" {
		id, err := uuid.Parse(filter.ClienteID)
		if err != nil {
			return nil, fmt.Errorf("%w: cliente_id", ErrDatosInvalidos)
		}
		clienteID = &id
	}

	filas, err := s.conteos.ConsumoPorEquipo(ctx, clienteID, *desde, *hasta)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, len(filas))
	porEquipo := make(map[uuid.UUID]repository.FilaConsumo, len(filas))
	for i, f := range filas {
		ids[i] = f.EquipoID
		porEquipo[f.EquipoID] = f
	}
	equipos, err := s.equipos.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	rep := &dto.ReporteConsumoResponse{
		Desde: *desde,
		// hasta is exclusive internally; report the inclusive day
		Hasta: hasta.AddDate(0, 0, -1),
		Tarifas: dto.TarifasResponse{
			Impresion: s.tarifas.Impresion,
			Copia:     s.tarifas.Copia,
			Escaneo:   s.tarifas.Escaneo,
		},
		Equipos:      make([]dto.ConsumoEquipoResponse, 0, len(equipos)),
		TotalImporte: decimal.Zero,
	}
	for _, e := range equipos {
		f := porEquipo[e.ID]
		importe := s.importe(f.Impresiones, f.Copias, f.Escaneos)
		fila := dto.ConsumoEquipoResponse{
			EquipoID:    e.ID.String(),
			NumeroSerie: e.NumeroSerie,
			Marca:       e.Marca,
			Modelo:      e.Modelo,
			Conteos:     f.Conteos,
			Impresiones: f.Impresiones,
			Escaneos:    f.Escaneos,
			Copias:      f.Copias,
			EnRevision:  f.EnRevision,
			Importe:     importe,
		}
		if e.Cliente != nil {
			fila.ClienteNombre = e.Cliente.Nombre
		}
		rep.Equipos = append(rep.Equipos, fila)
		rep.TotalImpresiones += f.Impresiones
		rep.TotalEscaneos += f.Escaneos
		rep.TotalCopias += f.Copias
		rep.TotalImporte = rep.TotalImporte.Add(importe)
	}
	return rep, nil
}

func (s *reporteService) importe(impresiones, copias, escaneos int64) decimal.Decimal {
	return s.tarifas.Impresion.Mul(decimal.NewFromInt(impresiones)).
		Add(s.tarifas.Copia.Mul(decimal.NewFromInt(copias))).
		Add(s.tarifas.Escaneo.Mul(decimal.NewFromInt(escaneos))).
		Round(2)
}

func (s *reporteService) ConsumoPDF(ctx context.Context, filter dto.ReporteConsumoFilter, w io.Writer) error {
	rep, err := s.Consumo(ctx, filter)
	if err != nil {
		return err
	}
	return infra.WriteReporteConsumoPDF(w, rep)
}

// EnviarConsumo renders the report to disk and queues an e-mail with the PDF
// attached. The file is left for the e-mail worker to pick up.
func (s *reporteService) EnviarConsumo(ctx context.Context, filter dto.ReporteConsumoFilter, destinatario string) error {
	if s.correo == nil {
		return fmt.Errorf("%w: envio de correo no disponible", ErrConflicto)
	}
	rep, err := s.Consumo(ctx, filter)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("reporte: crear directorio: %w", err)
	}
	path := filepath.Join(s.dir, fmt.Sprintf("consumo_%s_%s.pdf", rep.Desde.Format("20060102"), uuid.NewString()[:8]))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("reporte: crear archivo: %w", err)
	}
	if err := infra.WriteReporteConsumoPDF(f, rep); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	body := fmt.Sprintf("Reporte de consumo del %s al %s.\nEquipos: %d\nImporte estimado: $%s\n",
		rep.Desde.Format("02/01/2006"), rep.Hasta.Format("02/01/2006"), len(rep.Equipos), rep.TotalImporte.StringFixed(2))
	if err := s.correo.EnqueueEmail(ctx, worker.EmailJobPayload{
		ToEmail: destinatario,
		Subject: "[Ecoloimp] Reporte de consumo",
		Body:    body,
		Adjunto: path,
	}); err != nil {
		return err
	}
	log.Info().Str("to", destinatario).Str("archivo", path).Msg("reporte de consumo encolado")
	return nil
}
