// Package handoff publishes completed leads to a Redis stream for the sales team.
package handoff

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ashureev/willow-sdr/internal/domain"
	"github.com/redis/go-redis/v9"
)

// DefaultStream is the stream leads are appended to when none is configured.
const DefaultStream = "willow:leads"

// RedisConfig holds configuration for the Redis connection.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Stream   string
}

// RedisPublisher appends completed leads to a Redis stream with XADD.
type RedisPublisher struct {
	rdb    *redis.Client
	stream string
}

// NewRedisPublisher connects and verifies the server is reachable.
func NewRedisPublisher(cfg RedisConfig) (*RedisPublisher, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	stream := cfg.Stream
	if stream == "" {
		stream = DefaultStream
	}
	return &RedisPublisher{rdb: rdb, stream: stream}, nil
}

// DeliverLead appends lead to the stream and satisfies the dialogue lead sink.
func (p *RedisPublisher) DeliverLead(ctx context.Context, lead domain.StoredLead) error {
	values, err := streamValues(lead)
	if err != nil {
		return err
	}
	if err := p.rdb.XAdd(ctx, &redis.XAddArgs{Stream: p.stream, Values: values}).Err(); err != nil {
		return fmt.Errorf("xadd failed: %w", err)
	}
	return nil
}

// Ping checks if Redis is reachable.
func (p *RedisPublisher) Ping(ctx context.Context) error {
	return p.rdb.Ping(ctx).Err()
}

// Close closes the connection pool.
func (p *RedisPublisher) Close() error {
	return p.rdb.Close()
}

func streamValues(lead domain.StoredLead) (map[string]any, error) {
	payload, err := json.Marshal(lead)
	if err != nil {
		return nil, fmt.Errorf("marshal lead: %w", err)
	}
	return map[string]any{
		"lead_id":    lead.ID,
		"session_id": lead.SessionID,
		"summary":    lead.Lead.SummaryText(),
		"payload":    string(payload),
	}, nil
}
