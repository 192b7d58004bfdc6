package worker

// alerta_worker.go
// Turns alert jobs (reading under review, equipment needing maintenance)
// into emails for the configured recipients.

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Tipos de alerta.
const (
	AlertaRevision             = "revision"
	AlertaMantenimiento        = "mantenimiento"
	AlertaMantenimientoVencido = "mantenimiento_vencido"
)

// Alerta is the payload of an alert job.
type Alerta struct {
	Tipo        string    `json:"tipo"`
	EquipoID    string    `json:"equipo_id"`
	NumeroSerie string    `json:"numero_serie"`
	ConteoID    string    `json:"conteo_id,omitempty"`
	Detalle     string    `json:"detalle"`
	Fecha       time.Time `json:"fecha"`
}

// Asunto returns the email subject for a.
func (a Alerta) Asunto() string {
	switch a.Tipo {
	case AlertaRevision:
		return fmt.Sprintf("[Ecoloimp] Conteo en revision - equipo %s", a.NumeroSerie)
	case AlertaMantenimiento:
		return fmt.Sprintf("[Ecoloimp] Equipo %s requiere mantenimiento", a.NumeroSerie)
	case AlertaMantenimientoVencido:
		return fmt.Sprintf("[Ecoloimp] Mantenimiento vencido - equipo %s", a.NumeroSerie)
	}
	return "[Ecoloimp] Alerta " + a.NumeroSerie
}

// Sender is the subset of infra.Mailer the workers use.
type Sender interface {
	Configurado() bool
	Send(to []string, subject, body, adjunto string) error
}

// AlertaWorker emails alerts to a fixed list of recipients.
type AlertaWorker struct {
	sender        Sender
	destinatarios []string
}

// NewAlertaWorker builds the worker; destinatarios is a comma separated list.
func NewAlertaWorker(sender Sender, destinatarios string) *AlertaWorker {
	var dest []string
	for _, d := range strings.Split(destinatarios, ",") {
		if d = strings.TrimSpace(d); d != "" {
			dest = append(dest, d)
		}
	}
	return &AlertaWorker{sender: sender, destinatarios: dest}
}

func (w *AlertaWorker) Process(_ context.Context, raw json.RawMessage) error {
	var a Alerta
	if err := json.Unmarshal(raw, &a); err != nil {
		// Malformed payloads are not retried.
		log.Error().Err(err).Msg("alerta_worker: invalid payload")
		return nil
	}
	if len(w.destinatarios) == 0 || w.sender == nil || !w.sender.Configurado() {
		log.Warn().Str("tipo", a.Tipo).Str("equipo", a.NumeroSerie).Msg("alerta_worker: sin destinatarios o SMTP, alerta solo registrada")
		return nil
	}

	body := fmt.Sprintf("Equipo: %s\nFecha: %s\n\n%s\n", a.NumeroSerie, a.Fecha.Format("02/01/2006 15:04"), a.Detalle)
	if err := w.sender.Send(w.destinatarios, a.Asunto(), body, ""); err != nil {
		return fmt.Errorf("alerta_worker: send: %w", err)
	}
	log.Info().Str("tipo", a.Tipo).Str("equipo", a.NumeroSerie).Msg("alerta_worker: alerta enviada")
	return nil
}
