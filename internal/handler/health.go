package handler

import (
	"context"
	"net/http"
	"time"

	"ecoloimp/internal/apierror"
	"ecoloimp/internal/infra"
	"ecoloimp/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Health returns a JSON health check response.
// Checks DB and Redis connectivity; never exposes credentials or internals.
// An open SMTP breaker or parked jobs are reported but do not fail the check.
func Health(db *gorm.DB, rdb *redis.Client, smtpCB *infra.CircuitBreaker) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		dbStatus := "connected"
		sqlDB, err := db.DB()
		if err != nil || sqlDB.PingContext(ctx) != nil {
			dbStatus = "error"
		}

		redisStatus := "connected"
		dlq := gin.H{}
		if rdb == nil || rdb.Ping(ctx).Err() != nil {
			redisStatus = "error"
		} else {
			for _, q := range []string{worker.QueueAlertas, worker.QueueEmail} {
				n, _ := worker.DLQLength(ctx, rdb, q)
				dlq[q] = n
			}
		}

		status := http.StatusOK
		if dbStatus != "connected" || redisStatus != "connected" {
			status = http.StatusServiceUnavailable
		}

		body := gin.H{
			"ok":    status == http.StatusOK,
			"db":    dbStatus,
			"redis": redisStatus,
			"dlq":   dlq,
		}
		if smtpCB != nil {
			body["smtp"] = smtpCB.State().String()
		}
		c.JSON(status, body)
	}
}

// ── Dead letter queues ────────────────────────────────────────────────────────

type DLQHandler struct{ rdb *redis.Client }

func NewDLQHandler(rdb *redis.Client) *DLQHandler { return &DLQHandler{rdb: rdb} }

func colaValida(q string) bool {
	return q == worker.QueueAlertas || q == worker.QueueEmail
}

// Listar shows parked jobs of ?cola= (jobs:alertas or jobs:email).
func (h *DLQHandler) Listar(c *gin.Context) {
	q := c.DefaultQuery("cola", worker.QueueAlertas)
	if !colaValida(q) {
		c.JSON(http.StatusBadRequest, apierror.WithKind(apierror.KindValidation, "cola desconocida"))
		return
	}
	entries, err := worker.ListarDLQ(c.Request.Context(), h.rdb, q, 100)
	if err != nil {
		responderError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

// Reencolar moves every parked job of ?cola= back to its queue.
func (h *DLQHandler) Reencolar(c *gin.Context) {
	q := c.DefaultQuery("cola", worker.QueueAlertas)
	if !colaValida(q) {
		c.JSON(http.StatusBadRequest, apierror.WithKind(apierror.KindValidation, "cola desconocida"))
		return
	}
	n, err := worker.Reencolar(c.Request.Context(), h.rdb, q)
	if err != nil {
		responderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reencolados": n})
}
