package sse

import (
	"context"
	"encoding/json"

	"CityWatch/pkg/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	TargetUser  = "user"
	TargetGroup = "group"
	TargetAll   = "all"
)

// Envelope 在实例之间转发的事件
type Envelope struct {
	Target string `json:"target"`
	Key    string `json:"key,omitempty"`
	Event  Event  `json:"event"`
}

type Broker interface {
	Publish(ctx context.Context, env Envelope) error
	// Subscribe 非阻塞，ctx 结束时停止投递
	Subscribe(ctx context.Context, deliver func(Envelope)) error
	Close() error
}

// RedisBroker 基于 Redis Pub/Sub
type RedisBroker struct {
	client  *redis.Client
	channel string
	pubsub  *redis.PubSub
}

func NewRedisBroker(client *redis.Client, channel string) *RedisBroker {
	if channel == "" {
		channel = "citywatch:sse"
	}
	return &RedisBroker{client: client, channel: channel}
}

func (b *RedisBroker) Publish(ctx context.Context, env Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.channel, payload).Err()
}

func (b *RedisBroker) Subscribe(ctx context.Context, deliver func(Envelope)) error {
	b.pubsub = b.client.Subscribe(ctx, b.channel)
	// 等待订阅确认，保证之后的 Publish 不会丢失
	if _, err := b.pubsub.Receive(ctx); err != nil {
		_ = b.pubsub.Close()
		return err
	}
	ch := b.pubsub.Channel()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var env Envelope
				if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
					logger.Warn("drop malformed sse envelope", zap.Error(err))
					continue
				}
				deliver(env)
			}
		}
	}()
	return nil
}

func (b *RedisBroker) Close() error {
	if b.pubsub != nil {
		return b.pubsub.Close()
	}
	return nil
}
