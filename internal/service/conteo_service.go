package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"ecoloimp/internal/contadores"
	"ecoloimp/internal/dto"
	"ecoloimp/internal/infra"
	"ecoloimp/internal/model"
	"ecoloimp/internal/rbac"
	"ecoloimp/internal/repository"
	"ecoloimp/internal/worker"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Autorizador is the part of rbac.Resolver the services consult.
type Autorizador interface {
	TienePermiso(ctx context.Context, p rbac.Principal, nombre string) bool
}

// Alertador enqueues alert jobs. *worker.Dispatcher implements it.
type Alertador interface {
	EncolarAlerta(ctx context.Context, a worker.Alerta) error
}

// ConteoConfig carries the tunables of the reading flow.
type ConteoConfig struct {
	Limites            contadores.Limites
	PlazoMantenimiento time.Duration
}

type ConteoService interface {
	Registrar(ctx context.Context, actor rbac.Principal, req dto.RegistrarConteoRequest) (*dto.ConteoResponse, error)
	Listar(ctx context.Context, actor rbac.Principal, filter dto.ConteoFilter) (*dto.ConteoListResponse, error)
	Obtener(ctx context.Context, actor rbac.Principal, id uuid.UUID) (*dto.ConteoResponse, error)
	UltimoDeEquipo(ctx context.Context, equipoID uuid.UUID) (*dto.ConteoResponse, error)
	Eliminar(ctx context.Context, actor rbac.Principal, id uuid.UUID) error
}

type conteoService struct {
	equipos  repository.EquipoRepository
	conteos  repository.ConteoRepository
	visitas  repository.VisitaRepository
	permisos Autorizador
	alertas  Alertador
	metrics  *infra.Metrics
	cfg      ConteoConfig
	now      func() time.Time
}

func NewConteoService(
	equipos repository.EquipoRepository,
	conteos repository.ConteoRepository,
	visitas repository.VisitaRepository,
	permisos Autorizador,
	alertas Alertador,
	metrics *infra.Metrics,
	cfg ConteoConfig,
) ConteoService {
	if cfg.Limites.MaxContador == 0 {
		cfg.Limites = contadores.LimitesPorDefecto()
	}
	return &conteoService{
		equipos:  equipos,
		conteos:  conteos,
		visitas:  visitas,
		permisos: permisos,
		alertas:  alertas,
		metrics:  metrics,
		cfg:      cfg,
		now:      time.Now,
	}
}

// ── Registrar ─────────────────────────────────────────────────────────────────
//   1. Permission crear_conteos
//   2. Validate counters and date (nothing is read or written on failure)
//   3. BEGIN TX: lock equipo, reject dates before its last reading, check
//      visita, diff against the stored counters, insert conteo, write
//      counters back guarded by version, mark maintenance
//   4. COMMIT
//   5. (async) alerts for flagged readings / maintenance

func (s *conteoService) Registrar(ctx context.Context, actor rbac.Principal, req dto.RegistrarConteoRequest) (*dto.ConteoResponse, error) {
	if !s.permisos.TienePermiso(ctx, actor, "crear_conteos") {
		s.rechazado("no_autorizado")
		return nil, ErrNoAutorizado
	}

	equipoID, err := uuid.Parse(req.EquipoID)
	if err != nil {
		return nil, fmt.Errorf("%w: equipo_id", ErrDatosInvalidos)
	}
	var visitaID *uuid.UUID
	if req.VisitaID != nil && *req.VisitaID != "" {
		vid, err := uuid.Parse(*req.VisitaID)
		if err != nil {
			return nil, fmt.Errorf("%w: visita_id", ErrDatosInvalidos)
		}
		visitaID = &vid
	}

	if req.ContadorImpresiones == nil {
		s.rechazado("contador_invalido")
		return nil, &contadores.ErrContadorInvalido{Campo: contadores.CampoImpresiones, Motivo: "es obligatorio"}
	}
	lectura := contadores.Lectura{
		Impresiones: *req.ContadorImpresiones,
		Escaneos:    req.ContadorEscaneos,
		Copias:      req.ContadorCopias,
	}
	if err := s.cfg.Limites.Validar(lectura); err != nil {
		s.rechazado("contador_invalido")
		return nil, err
	}

	estado := contadores.EstadoOperativo
	if req.EstadoEquipo != "" {
		estado = contadores.EstadoEquipo(req.EstadoEquipo)
	}
	if !estado.Valido() {
		return nil, fmt.Errorf("%w: estado_equipo %q", ErrDatosInvalidos, req.EstadoEquipo)
	}

	ahora := s.now().UTC()
	fecha := ahora
	if req.FechaConteo != nil {
		fecha = req.FechaConteo.UTC()
		if fecha.After(ahora) {
			return nil, fmt.Errorf("%w: fecha_conteo no puede ser futura", ErrDatosInvalidos)
		}
	}

	var (
		conteo    *model.Conteo
		equipo    *model.Equipo
		resultado contadores.Resultado
	)
	err = runTx(ctx, s.equipos.DB(), func(tx *gorm.DB) error {
		e, err := s.equipos.FindByIDForUpdateTx(tx, equipoID)
		if err != nil {
			if esNoEncontrado(err) {
				return fmt.Errorf("%w: equipo", ErrNoEncontrado)
			}
			return err
		}
		if e.Estado == model.EquipoBaja || e.Estado == model.EquipoInactivo {
			return fmt.Errorf("%w: el equipo esta en estado %s", ErrConflicto, e.Estado)
		}
		equipo = e
		// fecha_conteo never goes backwards per equipment; Eliminar relies on it
		if e.FechaUltimoConteo != nil && fecha.Before(*e.FechaUltimoConteo) {
			return fmt.Errorf("%w: fecha_conteo anterior al ultimo conteo del equipo (%s)",
				ErrDatosInvalidos, e.FechaUltimoConteo.UTC().Format(time.RFC3339))
		}

		if visitaID != nil {
			v, err := s.visitas.FindByIDTx(tx, *visitaID)
			if err != nil {
				if esNoEncontrado(err) {
					return fmt.Errorf("%w: visita", ErrNoEncontrado)
				}
				return err
			}
			if v.ClienteID != e.ClienteID {
				return fmt.Errorf("%w: la visita pertenece a otro cliente", ErrDatosInvalidos)
			}
			if v.Estado != model.VisitaProgramada && v.Estado != model.VisitaEnProceso {
				return fmt.Errorf("%w: la visita esta %s", ErrConflicto, v.Estado)
			}
		}

		anterior := contadores.Lectura{
			Impresiones: e.UltimoContadorImpresiones,
			Escaneos:    e.UltimoContadorEscaneos,
			Copias:      e.UltimoContadorCopias,
		}
		resultado = s.cfg.Limites.Calcular(lectura, anterior)
		dif := resultado.Diferencias()

		conteo = &model.Conteo{
			EquipoID:                    e.ID,
			TecnicoID:                   actor.UsuarioID(),
			VisitaID:                    visitaID,
			FechaConteo:                 fecha,
			ContadorImpresiones:         lectura.Impresiones,
			ContadorEscaneos:            lectura.Escaneos,
			ContadorCopias:              lectura.Copias,
			ContadorAnteriorImpresiones: anterior.Impresiones,
			ContadorAnteriorEscaneos:    anterior.Escaneos,
			ContadorAnteriorCopias:      anterior.Copias,
			DiferenciaImpresiones:       dif.Impresiones,
			DiferenciaEscaneos:          dif.Escaneos,
			DiferenciaCopias:            dif.Copias,
			EstadoEquipo:                string(estado),
			RequiereMantenimiento:       estado.RequiereMantenimiento(),
			RequiereRevision:            resultado.RequiereRevision(),
			ContadorReiniciado:          resultado.HuboReinicio(),
			Observaciones:               req.Observaciones,
		}
		if err := s.conteos.CreateTx(tx, conteo); err != nil {
			return err
		}

		if err := s.equipos.ActualizarContadoresTx(tx, e.ID, e.Version, repository.Contadores{
			Impresiones: lectura.Impresiones,
			Escaneos:    lectura.Escaneos,
			Copias:      lectura.Copias,
			Fecha:       &fecha,
		}); err != nil {
			if errors.Is(err, repository.ErrVersionConflicto) {
				return fmt.Errorf("%w: %v", ErrConflicto, err)
			}
			return err
		}

		if conteo.RequiereMantenimiento {
			if err := s.equipos.MarcarMantenimientoTx(tx, e.ID, fecha.Add(s.cfg.PlazoMantenimiento)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, s.errorDeRegistro(err, req.EquipoID)
	}

	s.registrado(resultado)
	conteo.Equipo = equipo
	s.alertar(ctx, conteo, equipo)

	log.Info().
		Str("conteo_id", conteo.ID.String()).
		Str("equipo_id", equipo.ID.String()).
		Int64("diferencia_impresiones", conteo.DiferenciaImpresiones).
		Bool("requiere_revision", conteo.RequiereRevision).
		Msg("conteo registrado")

	return conteoToResponse(conteo), nil
}

// errorDeRegistro passes domain errors through and hides everything else
// behind ErrPersistencia after logging the cause.
func (s *conteoService) errorDeRegistro(err error, equipoID string) error {
	for _, domain := range []error{ErrNoEncontrado, ErrConflicto, ErrDatosInvalidos} {
		if errors.Is(err, domain) {
			if domain == ErrConflicto {
				s.rechazado("conflicto")
			}
			return err
		}
	}
	log.Error().Err(err).Str("equipo_id", equipoID).Msg("conteo: transaccion revertida")
	s.rechazado("persistencia")
	return ErrPersistencia
}

func (s *conteoService) rechazado(motivo string) {
	if s.metrics != nil {
		s.metrics.ConteosRechazados.WithLabelValues(motivo).Inc()
	}
}

func (s *conteoService) registrado(r contadores.Resultado) {
	if s.metrics == nil {
		return
	}
	s.metrics.ConteosRegistrados.Inc()
	if r.RequiereRevision() {
		s.metrics.ConteosEnRevision.Inc()
	}
	if r.HuboReinicio() {
		s.metrics.ContadoresReiniciados.Inc()
	}
}

// alertar is best effort: the reading is already committed.
func (s *conteoService) alertar(ctx context.Context, c *model.Conteo, e *model.Equipo) {
	if s.alertas == nil {
		return
	}
	var pendientes []worker.Alerta
	if c.RequiereRevision {
		pendientes = append(pendientes, worker.Alerta{
			Tipo: worker.AlertaRevision,
			Detalle: fmt.Sprintf("Diferencias: impresiones %d, escaneos %d, copias %d (umbral %d).",
				c.DiferenciaImpresiones, c.DiferenciaEscaneos, c.DiferenciaCopias, s.cfg.Limites.MaxDiferencia),
		})
	}
	if c.RequiereMantenimiento {
		pendientes = append(pendientes, worker.Alerta{
			Tipo:    worker.AlertaMantenimiento,
			Detalle: "Estado reportado por el tecnico: " + c.EstadoEquipo,
		})
	}
	for _, a := range pendientes {
		a.EquipoID = e.ID.String()
		a.NumeroSerie = e.NumeroSerie
		a.ConteoID = c.ID.String()
		a.Fecha = c.FechaConteo
		if err := s.alertas.EncolarAlerta(ctx, a); err != nil {
			log.Warn().Err(err).Str("tipo", a.Tipo).Str("conteo_id", a.ConteoID).Msg("conteo: alerta no encolada")
		}
	}
}

// ── Consultas ─────────────────────────────────────────────────────────────────

func (s *conteoService) Listar(ctx context.Context, actor rbac.Principal, filter dto.ConteoFilter) (*dto.ConteoListResponse, error) {
	f := repository.ConteoFilter{SoloRevision: filter.SoloRevision, Page: filter.Page, Limit: filter.Limit}

	switch {
	case s.permisos.TienePermiso(ctx, actor, "ver_conteos"):
		if filter.TecnicoID != "" {
			id, err := uuid.Parse(filter.TecnicoID)
			if err != nil {
				return nil, fmt.Errorf("%w: tecnico_id", ErrDatosInvalidos)
			}
			f.TecnicoID = &id
		}
	case s.permisos.TienePermiso(ctx, actor, "ver_conteos_propios"):
		id := actor.UsuarioID()
		f.TecnicoID = &id
	default:
		return nil, ErrNoAutorizado
	}

	if filter.EquipoID != "" {
		id, err := uuid.Parse(filter.EquipoID)
		if err != nil {
			return nil, fmt.Errorf("%w: equipo_id", ErrDatosInvalidos)
		}
		f.EquipoID = &id
	}
	desde, hasta, err := parseRango(filter.Desde, filter.Hasta)
	if err != nil {
		return nil, err
	}
	f.Desde, f.Hasta = desde, hasta

	cs, total, err := s.conteos.List(ctx, f)
	if err != nil {
		return nil, err
	}

	page, limit := normalizarPagina(filter.Page, filter.Limit)
	resp := &dto.ConteoListResponse{
		Data:       make([]dto.ConteoResponse, len(cs)),
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: int(math.Ceil(float64(total) / float64(limit))),
	}
	for i := range cs {
		resp.Data[i] = *conteoToResponse(&cs[i])
	}
	return resp, nil
}

func (s *conteoService) Obtener(ctx context.Context, actor rbac.Principal, id uuid.UUID) (*dto.ConteoResponse, error) {
	verTodos := s.permisos.TienePermiso(ctx, actor, "ver_conteos")
	if !verTodos && !s.permisos.TienePermiso(ctx, actor, "ver_conteos_propios") {
		return nil, ErrNoAutorizado
	}
	c, err := s.conteos.FindByID(ctx, id)
	if err != nil {
		if esNoEncontrado(err) {
			return nil, ErrNoEncontrado
		}
		return nil, err
	}
	if !verTodos && c.TecnicoID != actor.UsuarioID() {
		return nil, ErrNoAutorizado
	}
	return conteoToResponse(c), nil
}

func (s *conteoService) UltimoDeEquipo(ctx context.Context, equipoID uuid.UUID) (*dto.ConteoResponse, error) {
	c, err := s.conteos.UltimoDeEquipo(ctx, equipoID)
	if err != nil {
		if esNoEncontrado(err) {
			return nil, ErrNoEncontrado
		}
		return nil, err
	}
	return conteoToResponse(c), nil
}

// ── Eliminar ──────────────────────────────────────────────────────────────────
// Deleting the most recent reading rolls the equipment counters back to the
// previous reading (or to the values the deleted reading was diffed against
// when it was the only one). Older readings are removed without touching the
// equipment.

func (s *conteoService) Eliminar(ctx context.Context, actor rbac.Principal, id uuid.UUID) error {
	if !s.permisos.TienePermiso(ctx, actor, "eliminar_conteos") {
		return ErrNoAutorizado
	}

	err := runTx(ctx, s.equipos.DB(), func(tx *gorm.DB) error {
		c, err := s.conteos.FindByIDTx(tx, id)
		if err != nil {
			if esNoEncontrado(err) {
				return ErrNoEncontrado
			}
			return err
		}
		e, err := s.equipos.FindByIDForUpdateTx(tx, c.EquipoID)
		if err != nil {
			return err
		}

		ultimo, err := s.conteos.UltimoDeEquipoTx(tx, c.EquipoID, uuid.Nil)
		if err != nil {
			return err
		}
		if ultimo != nil && ultimo.ID == c.ID {
			restaurar := repository.Contadores{
				Impresiones: c.ContadorAnteriorImpresiones,
				Escaneos:    c.ContadorAnteriorEscaneos,
				Copias:      c.ContadorAnteriorCopias,
			}
			previo, err := s.conteos.UltimoDeEquipoTx(tx, c.EquipoID, c.ID)
			if err != nil {
				return err
			}
			if previo != nil {
				fecha := previo.FechaConteo
				restaurar = repository.Contadores{
					Impresiones: previo.ContadorImpresiones,
					Escaneos:    previo.ContadorEscaneos,
					Copias:      previo.ContadorCopias,
					Fecha:       &fecha,
				}
			}
			if err := s.equipos.ActualizarContadoresTx(tx, e.ID, e.Version, restaurar); err != nil {
				if errors.Is(err, repository.ErrVersionConflicto) {
					return fmt.Errorf("%w: %v", ErrConflicto, err)
				}
				return err
			}
		}
		return s.conteos.DeleteTx(tx, c.ID)
	})
	if err != nil {
		if errors.Is(err, ErrNoEncontrado) || errors.Is(err, ErrConflicto) {
			return err
		}
		log.Error().Err(err).Str("conteo_id", id.String()).Msg("conteo: eliminacion revertida")
		return ErrPersistencia
	}
	log.Info().Str("conteo_id", id.String()).Str("actor", actor.UsuarioID().String()).Msg("conteo eliminado")
	return nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

const formatoFecha = "2006-01-02"

// parseRango parses YYYY-MM-DD bounds; hasta is inclusive so it is moved to
// the start of the following day.
func parseRango(desdeStr, hastaStr string) (*time.Time, *time.Time, error) {
	var desde, hasta *time.Time
	if desdeStr != "" {
		d, err := time.Parse(formatoFecha, desdeStr)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: desde debe tener formato YYYY-MM-DD", ErrDatosInvalidos)
		}
		desde = &d
	}
	if hastaStr != "" {
		h, err := time.Parse(formatoFecha, hastaStr)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: hasta debe tener formato YYYY-MM-DD", ErrDatosInvalidos)
		}
		h = h.AddDate(0, 0, 1)
		hasta = &h
	}
	if desde != nil && hasta != nil && !desde.Before(*hasta) {
		return nil, nil, fmt.Errorf("%w: desde posterior a hasta", ErrDatosInvalidos)
	}
	return desde, hasta, nil
}

func normalizarPagina(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 500 {
		limit = 50
	}
	return page, limit
}

func conteoToResponse(c *model.Conteo) *dto.ConteoResponse {
	r := &dto.ConteoResponse{
		ID:                          c.ID.String(),
		EquipoID:                    c.EquipoID.String(),
		TecnicoID:                   c.TecnicoID.String(),
		FechaConteo:                 c.FechaConteo,
		ContadorImpresiones:         c.ContadorImpresiones,
		ContadorEscaneos:            c.ContadorEscaneos,
		ContadorCopias:              c.ContadorCopias,
		ContadorAnteriorImpresiones: c.ContadorAnteriorImpresiones,
		ContadorAnteriorEscaneos:    c.ContadorAnteriorEscaneos,
		ContadorAnteriorCopias:      c.ContadorAnteriorCopias,
		DiferenciaImpresiones:       c.DiferenciaImpresiones,
		DiferenciaEscaneos:          c.DiferenciaEscaneos,
		DiferenciaCopias:            c.DiferenciaCopias,
		EstadoEquipo:                c.EstadoEquipo,
		RequiereMantenimiento:       c.RequiereMantenimiento,
		RequiereRevision:            c.RequiereRevision,
		ContadorReiniciado:          c.ContadorReiniciado,
		Observaciones:               c.Observaciones,
	}
	if c.VisitaID != nil {
		v := c.VisitaID.String()
		r.VisitaID = &v
	}
	if c.Equipo != nil {
		r.NumeroSerie = c.Equipo.NumeroSerie
	}
	if c.Tecnico != nil {
		r.TecnicoNombre = c.Tecnico.NombreCompleto()
	}
	return r
}
