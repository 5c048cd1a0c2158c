package wshub

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultChannel is the Redis pub/sub channel shared by all instances.
const DefaultChannel = "parley:notifications"

// RedisBridge delivers events to local connections and republishes them on
// Redis so other instances reach connections they hold. Frames published by
// this instance are ignored when they come back on the subscription.
type RedisBridge struct {
	hub     *Hub
	rdb     *redis.Client
	channel string
	origin  string
	log     *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

type envelope struct {
	Origin string          `json:"origin"`
	Key    string          `json:"key"`
	Frame  json.RawMessage `json:"frame"`
}

// NewRedisBridge wires hub to rdb on channel (DefaultChannel when empty).
func NewRedisBridge(hub *Hub, rdb *redis.Client, channel string, logger *zap.Logger) *RedisBridge {
	if channel == "" {
		channel = DefaultChannel
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &RedisBridge{
		hub:     hub,
		rdb:     rdb,
		channel: channel,
		origin:  uuid.NewString(),
		log:     logger,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
}

// Notify delivers locally, then publishes in the background.
func (b *RedisBridge) Notify(_ context.Context, event string, payload any, routingKey string) {
	frame, err := encodeFrame(event, payload)
	if err != nil {
		b.log.Warn("notify: encode frame failed", zap.String("event", event), zap.Error(err))
		return
	}
	b.hub.Deliver(routingKey, frame)

	data, err := json.Marshal(envelope{Origin: b.origin, Key: routingKey, Frame: frame})
	if err != nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(b.ctx, 5*time.Second)
		defer cancel()
		if err := b.rdb.Publish(ctx, b.channel, data).Err(); err != nil {
			b.log.Warn("notify: redis publish failed", zap.String("user_id", routingKey), zap.Error(err))
		}
	}()
}

// Start subscribes and delivers frames from other instances until Stop.
func (b *RedisBridge) Start() {
	pubsub := b.rdb.Subscribe(b.ctx, b.channel)
	go func() {
		defer close(b.done)
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case msg, ok := <-ch:
				if !ok {
					return
				}
				b.handle(msg.Payload)
			case <-b.ctx.Done():
				return
			}
		}
	}()
}

func (b *RedisBridge) handle(payload string) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		b.log.Warn("notify: bad redis envelope", zap.Error(err))
		return
	}
	if env.Origin == b.origin || env.Key == "" {
		return
	}
	b.hub.Deliver(env.Key, env.Frame)
}

// Stop ends the subscription and waits for the subscriber to exit.
func (b *RedisBridge) Stop() {
	b.cancel()
	select {
	case <-b.done:
	case <-time.After(5 * time.Second):
	}
}
