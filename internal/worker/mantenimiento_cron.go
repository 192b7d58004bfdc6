package worker

// mantenimiento_cron.go: periodic jobs on robfig/cron:
//   - daily scan of equipment whose maintenance date has passed: the
//     equipment moves to "mantenimiento" and an alert is enqueued
//   - purge of expired in-memory rate limit windows

import (
	"context"
	"fmt"
	"time"

	"ecoloimp/internal/model"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// EquipoStore is what the maintenance scan needs from the equipment repository.
type EquipoStore interface {
	ListMantenimientoVencido(ctx context.Context, al time.Time) ([]model.Equipo, error)
	CambiarEstado(ctx context.Context, id uuid.UUID, estado string, proximoMantenimiento *time.Time) error
}

// AlertaEncolador enqueues alert jobs.
type AlertaEncolador interface {
	EncolarAlerta(ctx context.Context, a Alerta) error
}

// Purgador drops expired rate-limit windows.
type Purgador interface {
	Purgar(now time.Time) int
}

type Scheduler struct {
	cron     *cron.Cron
	equipos  EquipoStore
	alertas  AlertaEncolador
	purgador Purgador
	now      func() time.Time
}

func NewScheduler(equipos EquipoStore, alertas AlertaEncolador, purgador Purgador) *Scheduler {
	return &Scheduler{
		cron:     cron.New(),
		equipos:  equipos,
		alertas:  alertas,
		purgador: purgador,
		now:      time.Now,
	}
}

// Start registers the jobs and starts the cron loop. mantenimientoSpec is a
// standard 5-field cron expression.
func (s *Scheduler) Start(ctx context.Context, mantenimientoSpec string) error {
	if _, err := s.cron.AddFunc(mantenimientoSpec, func() {
		n, err := s.RevisarMantenimiento(ctx)
		if err != nil {
			log.Error().Err(err).Msg("cron: revision de mantenimiento fallida")
			return
		}
		log.Info().Int("equipos", n).Msg("cron: revision de mantenimiento completada")
	}); err != nil {
		return fmt.Errorf("cron: schedule mantenimiento %q: %w", mantenimientoSpec, err)
	}

	if s.purgador != nil {
		if _, err := s.cron.AddFunc("@every 5m", func() {
			if n := s.purgador.Purgar(s.now()); n > 0 {
				log.Debug().Int("entries_purged", n).Msg("cron: rate limiter purged")
			}
		}); err != nil {
			return fmt.Errorf("cron: schedule purge: %w", err)
		}
	}

	s.cron.Start()
	return nil
}

// Stop halts the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// RevisarMantenimiento moves every overdue active equipment into
// maintenance and enqueues one alert per equipment. It returns how many
// equipment rows were updated.
func (s *Scheduler) RevisarMantenimiento(ctx context.Context) (int, error) {
	ahora := s.now()
	vencidos, err := s.equipos.ListMantenimientoVencido(ctx, ahora)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, e := range vencidos {
		if err := s.equipos.CambiarEstado(ctx, e.ID, model.EquipoMantenimiento, nil); err != nil {
			log.Error().Err(err).Str("equipo_id", e.ID.String()).Msg("cron: no se pudo marcar mantenimiento")
			continue
		}
		n++
		if s.alertas == nil {
			continue
		}
		detalle := "El mantenimiento programado del equipo esta vencido."
		if e.FechaProximoMantenimiento != nil {
			detalle = fmt.Sprintf("Mantenimiento programado para %s.", e.FechaProximoMantenimiento.Format("02/01/2006"))
		}
		if e.Cliente != nil {
			detalle += " Cliente: " + e.Cliente.Nombre
		}
		if err := s.alertas.EncolarAlerta(ctx, Alerta{
			Tipo:        AlertaMantenimientoVencido,
			EquipoID:    e.ID.String(),
			NumeroSerie: e.NumeroSerie,
			Detalle:     detalle,
			Fecha:       ahora,
		}); err != nil {
			log.Warn().Err(err).Str("equipo_id", e.ID.String()).Msg("cron: alerta no encolada")
		}
	}
	return n, nil
}
