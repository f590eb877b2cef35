package status

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/orchestra-mcp/realtime/config"
	"github.com/orchestra-mcp/realtime/src/types"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const redisWriteTimeout = 2 * time.Second

// redisUpdate is one state change mirrored to Redis. InstanceID lets
// subscribers tell several client processes apart.
type redisUpdate struct {
	InstanceID string    `json:"instance_id"`
	Kind       string    `json:"kind"`
	Generation string    `json:"generation,omitempty"`
	Scope      string    `json:"scope,omitempty"`
	Payload    any       `json:"payload"`
	At         time.Time `json:"at"`
}

// field is the hash field the update overwrites.
func (u redisUpdate) field() string {
	if u.Scope != "" {
		return u.Kind + ":" + u.Scope
	}
	return u.Kind
}

// RedisStore mirrors state updates into a Redis hash and publishes each one
// on a channel. Writes are queued and performed by a background worker.
type RedisStore struct {
	client     *redis.Client
	prefix     string
	instanceID string
	logger     zerolog.Logger
	updates    chan redisUpdate

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.RWMutex
	active bool
}

// NewRedisStore creates a store backed by the given Redis server.
func NewRedisStore(cfg config.RedisConfig, logger zerolog.Logger) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithCancel(context.Background())

	return &RedisStore{
		client:     client,
		prefix:     cfg.Prefix,
		instanceID: uuid.New().String(),
		logger:     logger.With().Str("component", "redis-status").Logger(),
		updates:    make(chan redisUpdate, 256),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start checks connectivity and begins draining queued updates.
func (r *RedisStore) Start() error {
	if err := r.client.Ping(r.ctx).Err(); err != nil {
		return err
	}

	r.mu.Lock()
	r.active = true
	r.mu.Unlock()

	r.wg.Add(1)
	go r.run()

	r.logger.Info().
		Str("instance_id", r.instanceID).
		Str("key", r.stateKey()).
		Msg("redis status mirror started")
	return nil
}

// Stop halts the worker and closes the Redis connection.
func (r *RedisStore) Stop() error {
	r.mu.Lock()
	r.active = false
	r.mu.Unlock()

	r.cancel()
	r.wg.Wait()
	return r.client.Close()
}

// Available reports whether the mirror is running.
func (r *RedisStore) Available() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

func (r *RedisStore) SetConnectionState(generation string, s types.ConnectionState) {
	r.enqueue(redisUpdate{Kind: "connection", Generation: generation, Payload: s})
}

func (r *RedisStore) SetError(generation string, err *types.Error) {
	r.enqueue(redisUpdate{Kind: "error", Generation: generation, Payload: err})
}

func (r *RedisStore) ClearError(generation string) {
	r.enqueue(redisUpdate{Kind: "error", Generation: generation, Payload: nil})
}

func (r *RedisStore) SetReconnectState(s types.ReconnectState) {
	r.enqueue(redisUpdate{Kind: "reconnect", Payload: s})
}

func (r *RedisStore) SetSessionStatus(scope string, s SessionStatus) {
	r.enqueue(redisUpdate{Kind: "session", Scope: scope, Payload: s})
}

func (r *RedisStore) stateKey() string   { return r.prefix + "state" }
func (r *RedisStore) updatesKey() string { return r.prefix + "updates" }

func (r *RedisStore) enqueue(u redisUpdate) {
	if !r.Available() {
		return
	}
	u.InstanceID = r.instanceID
	u.At = time.Now()

	select {
	case r.updates <- u:
	default:
		r.logger.Warn().Str("kind", u.Kind).Msg("update buffer full, dropping")
	}
}

// run writes queued updates until the store is stopped.
func (r *RedisStore) run() {
	defer r.wg.Done()

	for {
		select {
		case u := <-r.updates:
			if err := r.write(u); err != nil {
				r.logger.Error().Err(err).Str("kind", u.Kind).Msg("redis status write failed")
			}
		case <-r.ctx.Done():
			return
		}
	}
}

func (r *RedisStore) write(u redisUpdate) error {
	data, err := json.Marshal(u)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(r.ctx, redisWriteTimeout)
	defer cancel()

	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, r.stateKey(), u.field(), data)
	pipe.Publish(ctx, r.updatesKey(), data)
	_, err = pipe.Exec(ctx)
	return err
}
