package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ecoloimp/internal/infra"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	QueueAlertas = "jobs:alertas"
	QueueEmail   = "jobs:email"

	JobAlerta = "alerta"
	JobEmail  = "email"

	maxIntentos = 3
)

// Job is the generic envelope for all async tasks.
type Job struct {
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload"`
	Attempts int             `json:"attempts"`
}

// Dispatcher enqueues async jobs into Redis lists.
// The worker pool dequeues them via BRPOP.
type Dispatcher struct {
	rdb     *redis.Client
	metrics *infra.Metrics
}

func NewDispatcher(rdb *redis.Client, metrics *infra.Metrics) *Dispatcher {
	return &Dispatcher{rdb: rdb, metrics: metrics}
}

// EncolarAlerta pushes an alert job to Redis.
func (d *Dispatcher) EncolarAlerta(ctx context.Context, a Alerta) error {
	if err := d.enqueue(ctx, QueueAlertas, JobAlerta, a); err != nil {
		return err
	}
	if d.metrics != nil {
		d.metrics.AlertasEncoladas.WithLabelValues(a.Tipo).Inc()
	}
	return nil
}

// EnqueueEmail pushes an email job to Redis.
func (d *Dispatcher) EnqueueEmail(ctx context.Context, payload EmailJobPayload) error {
	return d.enqueue(ctx, QueueEmail, JobEmail, payload)
}

func (d *Dispatcher) enqueue(ctx context.Context, queue, jobType string, payload interface{}) error {
	if d == nil || d.rdb == nil {
		return fmt.Errorf("dispatcher: redis no configurado")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return pushJob(ctx, d.rdb, queue, Job{Type: jobType, Payload: data})
}

func pushJob(ctx context.Context, rdb *redis.Client, queue string, job Job) error {
	encoded, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return rdb.LPush(ctx, queue, encoded).Err()
}

// JobProcessor handles one job payload; a returned error triggers a retry.
type JobProcessor interface {
	Process(ctx context.Context, payload json.RawMessage) error
}

// WorkerHandlers routes job types to their processors.
type WorkerHandlers struct {
	Alertas JobProcessor
	Email   JobProcessor
}

// StartWorkerPool launches numWorkers goroutines consuming both queues.
// Each goroutine blocks on BRPOP and is idle between jobs.
func StartWorkerPool(ctx context.Context, rdb *redis.Client, handlers *WorkerHandlers, numWorkers int) {
	for i := 0; i < numWorkers; i++ {
		go runWorker(ctx, rdb, handlers, i)
	}
	log.Info().Msgf("worker pool started with %d workers", numWorkers)
}

func runWorker(ctx context.Context, rdb *redis.Client, handlers *WorkerHandlers, id int) {
	queues := []string{QueueAlertas, QueueEmail}
	for {
		select {
		case <-ctx.Done():
			log.Info().Msgf("worker %d shutting down", id)
			return
		default:
			// Blocking pop: waits up to 5s then loops to check ctx
			result, err := rdb.BRPop(ctx, 5*time.Second, queues...).Result()
			if err != nil {
				continue // timeout or context cancelled
			}
			if len(result) < 2 {
				continue
			}
			processJob(ctx, rdb, handlers, result[0], result[1])
		}
	}
}

func processJob(ctx context.Context, rdb *redis.Client, handlers *WorkerHandlers, queue, raw string) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		log.Error().Str("queue", queue).Err(err).Msg("failed to unmarshal job")
		return
	}

	var p JobProcessor
	switch job.Type {
	case JobAlerta:
		p = handlers.Alertas
	case JobEmail:
		p = handlers.Email
	}
	if p == nil {
		SendToDLQ(ctx, rdb, queue, job.Type, job.Payload, "tipo de job sin procesador", job.Attempts)
		return
	}

	if err := p.Process(ctx, job.Payload); err != nil {
		job.Attempts++
		if job.Attempts >= maxIntentos {
			SendToDLQ(ctx, rdb, queue, job.Type, job.Payload, err.Error(), job.Attempts)
			return
		}
		log.Warn().Err(err).Str("type", job.Type).Int("attempts", job.Attempts).Msg("job failed, requeueing")
		if err := pushJob(ctx, rdb, queue, job); err != nil {
			log.Error().Err(err).Str("queue", queue).Msg("failed to requeue job")
		}
	}
}
