package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const (
	redisRetryAfter  = 30 * time.Second
	redisDialTimeout = 2 * time.Second
)

// Manager counts generations per user in Redis when configured, and in process memory
// otherwise or while Redis is unreachable.
type Manager struct {
	cfg    SettingsConfig
	nowFn  func() time.Time
	memory Limiter

	mu        sync.Mutex
	client    *redis.Client
	shared    *RedisLimiter
	downUntil time.Time
}

// NewManager builds a Manager for a fixed settings snapshot.
func NewManager(cfg SettingsConfig, nowFn func() time.Time) *Manager {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Manager{
		cfg:    cfg,
		nowFn:  nowFn,
		memory: NewMemoryLimiter(cfg.Window),
	}
}

// Settings returns the limits the manager enforces.
func (m *Manager) Settings() SettingsConfig {
	if m == nil {
		return SettingsConfig{Window: DefaultWindow}
	}
	return m.cfg
}

// Backend names the store the next check would use.
func (m *Manager) Backend() string {
	if m == nil || !m.cfg.RedisEnabled || m.redisSuspended(m.nowFn()) {
		return "memory"
	}
	return "redis"
}

// Close releases the Redis client when one was opened.
func (m *Manager) Close() error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client == nil {
		return nil
	}
	errClose := m.client.Close()
	m.client = nil
	m.shared = nil
	return errClose
}

// Allow counts one request against key. A non-positive limit is unlimited.
func (m *Manager) Allow(ctx context.Context, key string, limit int) (Result, error) {
	if m == nil || limit <= 0 || key == "" {
		return Result{Allowed: true}, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	now := m.nowFn()

	if m.cfg.RedisEnabled && !m.redisSuspended(now) {
		shared, errConnect := m.redis(ctx)
		if errConnect == nil {
			result, errAllow := shared.Allow(ctx, key, limit, now)
			if errAllow == nil {
				return result, nil
			}
			m.suspendRedis(errAllow, now)
		} else {
			m.suspendRedis(errConnect, now)
		}
	}
	return m.memory.Allow(ctx, key, limit, now)
}

func (m *Manager) redis(ctx context.Context) (*RedisLimiter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shared != nil {
		return m.shared, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     m.cfg.RedisAddr,
		Password: m.cfg.RedisPassword,
		DB:       m.cfg.RedisDB,
	})
	ctxPing, cancel := context.WithTimeout(ctx, redisDialTimeout)
	defer cancel()
	if errPing := client.Ping(ctxPing).Err(); errPing != nil {
		_ = client.Close()
		return nil, errPing
	}
	m.client = client
	m.shared = NewRedisLimiter(client, m.cfg.RedisPrefix, m.cfg.Window)
	log.WithField("addr", m.cfg.RedisAddr).Info("rate limit: using redis")
	return m.shared, nil
}

func (m *Manager) redisSuspended(now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return now.Before(m.downUntil)
}

// suspendRedis routes checks to memory for redisRetryAfter. Counts are per-process
// until Redis comes back.
func (m *Manager) suspendRedis(err error, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if now.Before(m.downUntil) {
		return
	}
	m.downUntil = now.Add(redisRetryAfter)
	if m.client != nil {
		_ = m.client.Close()
		m.client = nil
		m.shared = nil
	}
	log.WithError(err).Warn("rate limit: redis unavailable, falling back to memory")
}
