package transport

import (
	"context"
	"fmt"
	"time"

	"github.com/landyrev/simple-nmea-simulator/simulator"
	"github.com/redis/go-redis/v9"
)

// DefaultRedisChannel is used when no channel is configured.
const DefaultRedisChannel = "nmea"

// RedisPublisher defines the Redis operations used by RedisSink
type RedisPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Close() error
}

// RedisSink publishes each batch as one CRLF separated message on a Redis
// pub/sub channel.
type RedisSink struct {
	client  RedisPublisher
	channel string
}

// NewRedisSink connects to the Redis server at addr.
func NewRedisSink(addr, channel string) (*RedisSink, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisSinkWithClient(client, channel), nil
}

// NewRedisSinkWithClient creates a sink with a custom RedisPublisher (useful for testing)
func NewRedisSinkWithClient(client RedisPublisher, channel string) *RedisSink {
	if channel == "" {
		channel = DefaultRedisChannel
	}
	return &RedisSink{client: client, channel: channel}
}

// Send publishes the whole batch as a single message.
func (r *RedisSink) Send(ctx context.Context, batch simulator.Batch) error {
	if err := r.client.Publish(ctx, r.channel, Lines(batch)).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", r.channel, err)
	}
	return nil
}

// Close closes the Redis connection.
func (r *RedisSink) Close() error {
	return r.client.Close()
}
