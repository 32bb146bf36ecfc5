package refresh

import (
	"context"
	"encoding/json"
	"fmt"

	"sales_pipeline_backend/internal/leads/ports"
	"sales_pipeline_backend/platform/logger"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisChannel carries lead-changed messages between API processes.
const DefaultRedisChannel = "leads.changed"

// RedisPublisher publishes notifications on a Redis pub/sub channel so every
// API process can refresh its own viewers.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	if channel == "" {
		channel = DefaultRedisChannel
	}
	return &RedisPublisher{client: client, channel: channel}
}

func (p *RedisPublisher) Name() string { return "redis" }

func (p *RedisPublisher) Publish(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode refresh message: %w", err)
	}
	return p.client.Publish(ctx, p.channel, body).Err()
}

// Relay subscribes to the channel and hands every message to the local
// notifier until ctx is cancelled.
type Relay struct {
	client  *redis.Client
	channel string
	local   ports.RefreshNotifier
	log     *logger.Logger
}

func NewRelay(client *redis.Client, channel string, local ports.RefreshNotifier, log *logger.Logger) *Relay {
	if channel == "" {
		channel = DefaultRedisChannel
	}
	return &Relay{client: client, channel: channel, local: local, log: log}
}

// Run blocks until ctx is done. The subscription is confirmed before Run
// starts consuming, so messages published after ready is closed are seen.
func (r *Relay) Run(ctx context.Context, ready chan<- struct{}) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer func() { _ = sub.Close() }()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}
	if ready != nil {
		close(ready)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var msg Message
			if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
				r.log.Warn("refresh: dropping malformed message", "channel", r.channel, "error", err)
				continue
			}
			r.local.NotifyLeadChanged(ctx, msg.TenantID, msg.LeadID)
		}
	}
}
