package messaging

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"relay-service/internal/config"
	"relay-service/internal/logger"
	"relay-service/internal/types"

	"github.com/redis/go-redis/v9"
)

// StatusHash is both the Redis hash holding the status fields and the
// channel announcing which field changed.
const StatusHash = "relay-service"

type RedisClient struct {
	client *redis.Client
	logger *logger.Logger

	mu        sync.Mutex
	published map[string]string
}

func NewRedisClient(cfg config.RedisConfig, l *logger.Logger) *RedisClient {
	return &RedisClient{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Address,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
		logger: l,
	}
}

func (r *RedisClient) Name() string { return "redis" }

func (r *RedisClient) Connect(ctx context.Context) error {
	r.logger.Infof("Attempting to connect to Redis at %s", r.client.Options().Addr)

	if err := r.client.Ping(ctx).Err(); err != nil {
		r.logger.Infof("Redis connection failed: %v", err)
		return fmt.Errorf("Redis connection failed: %w", err)
	}
	r.logger.Infof("Successfully connected to Redis")
	return nil
}

// statusFields flattens a status into hash fields.
func statusFields(st types.Status) map[string]string {
	fields := map[string]string{
		"state":      string(st.State),
		"controller": st.Controller(),
		"connected":  strconv.FormatBool(st.Connected),
		"error":      st.LastError,
	}
	for i, on := range st.Relays {
		fields["relay:"+strconv.Itoa(i+1)] = onOff(on)
	}
	return fields
}

// changedFields returns, sorted, the fields of next that differ from prev.
func changedFields(prev, next map[string]string) []string {
	var out []string
	for k, v := range next {
		if old, ok := prev[k]; !ok || old != v {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// PublishStatus writes the changed fields and announces each one on the
// channel, all in one pipeline.
func (r *RedisClient) PublishStatus(ctx context.Context, st types.Status) error {
	fields := statusFields(st)

	r.mu.Lock()
	changed := changedFields(r.published, fields)
	r.mu.Unlock()
	if len(changed) == 0 {
		return nil
	}

	pipe := r.client.Pipeline()
	for _, f := range changed {
		pipe.HSet(ctx, StatusHash, f, fields[f])
	}
	pipe.HSet(ctx, StatusHash, "state:timestamp", st.Since.Format(time.RFC3339))
	for _, f := range changed {
		pipe.Publish(ctx, StatusHash, f)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}

	r.mu.Lock()
	r.published = fields
	r.mu.Unlock()
	r.logger.Debugf("Published %v", changed)
	return nil
}

func (r *RedisClient) Close() error {
	r.logger.Infof("Closing Redis client")
	return r.client.Close()
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
