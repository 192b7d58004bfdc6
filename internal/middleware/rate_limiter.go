package middleware

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"ecoloimp/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// ContadorStore counts hits per key inside a fixed window. Incrementar
// returns the count after this hit and when the window ends.
type ContadorStore interface {
	Incrementar(ctx context.Context, key string, window time.Duration) (int64, time.Time, error)
}

// ── In-memory store ───────────────────────────────────────────────────────────

type ventana struct {
	count int64
	fin   time.Time
}

// MemoryStore keeps windows in a map guarded by a mutex. Expired windows are
// dropped by Purgar, which the scheduler calls periodically.
type MemoryStore struct {
	mu       sync.Mutex
	ventanas map[string]*ventana
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{ventanas: make(map[string]*ventana), now: time.Now}
}

func (s *MemoryStore) Incrementar(_ context.Context, key string, window time.Duration) (int64, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	v, ok := s.ventanas[key]
	if !ok || !now.Before(v.fin) {
		v = &ventana{fin: now.Add(window)}
		s.ventanas[key] = v
	}
	v.count++
	return v.count, v.fin, nil
}

// Purgar removes windows that ended before now and returns how many.
func (s *MemoryStore) Purgar(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for k, v := range s.ventanas {
		if !now.Before(v.fin) {
			delete(s.ventanas, k)
			n++
		}
	}
	return n
}

// Len returns the number of live windows.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ventanas)
}

// ── Redis store ───────────────────────────────────────────────────────────────

// RedisStore shares windows across instances: INCR plus PEXPIRE on the first
// hit of a window.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisStore(rdb *redis.Client, prefix string) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func (s *RedisStore) Incrementar(ctx context.Context, key string, window time.Duration) (int64, time.Time, error) {
	k := s.prefix + key
	pipe := s.rdb.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pttl := pipe.PTTL(ctx, k)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, time.Time{}, err
	}

	ttl := pttl.Val()
	if incr.Val() == 1 || ttl < 0 {
		if err := s.rdb.PExpire(ctx, k, window).Err(); err != nil {
			return 0, time.Time{}, err
		}
		ttl = window
	}
	return incr.Val(), time.Now().Add(ttl), nil
}

// ── Middleware ────────────────────────────────────────────────────────────────

// RateLimiter allows limit requests per window per client IP. scope separates
// limiters sharing a store (e.g. "api", "login"). A failing store lets the
// request through.
func RateLimiter(store ContadorStore, scope string, limit int, window time.Duration) gin.HandlerFunc {
	msg := "Demasiadas solicitudes. Intente nuevamente en un momento."
	if scope == "login" {
		msg = "Demasiados intentos de login. Intente en 1 minuto."
	}
	return func(c *gin.Context) {
		count, fin, err := store.Incrementar(c.Request.Context(), scope+":"+c.ClientIP(), window)
		if err != nil {
			log.Warn().Err(err).Str("scope", scope).Msg("rate limiter: store no disponible")
			c.Next()
			return
		}
		if count > int64(limit) {
			segundos := int(time.Until(fin).Seconds()) + 1
			c.Header("Retry-After", strconv.Itoa(segundos))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, apierror.WithKind(apierror.KindRateLimited, msg))
			return
		}
		c.Next()
	}
}

// LoginRateLimiter limits login attempts per IP per minute.
func LoginRateLimiter(store ContadorStore, porMinuto int) gin.HandlerFunc {
	return RateLimiter(store, "login", porMinuto, time.Minute)
}
