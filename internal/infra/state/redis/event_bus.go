// Package redisstate 提供基于 Redis 的跨实例协调：房间锁和房间事件的发布订阅。
package redisstate

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"party-rooms/internal/dto"
)

// EventBus 通过 Redis 频道 <prefix>room:<id>:events 在实例之间转发房间事件。
type EventBus struct {
	client    *redis.Client
	keyPrefix string
}

func NewEventBus(client *redis.Client, keyPrefix string) *EventBus {
	if client == nil {
		panic("redis client cannot be nil for EventBus")
	}
	return &EventBus{client: client, keyPrefix: normalizePrefix(keyPrefix)}
}

// Channel 返回房间的事件频道名
func (b *EventBus) Channel(roomID uint) string {
	return fmt.Sprintf("%sroom:%d:events", b.keyPrefix, roomID)
}

func (b *EventBus) pattern() string {
	return b.keyPrefix + "room:*:events"
}

// roomIDFromChannel 从频道名解析房间 ID
func (b *EventBus) roomIDFromChannel(channel string) (uint, bool) {
	trimmed := strings.TrimPrefix(channel, b.keyPrefix+"room:")
	trimmed = strings.TrimSuffix(trimmed, ":events")
	id, err := strconv.ParseUint(trimmed, 10, 64)
	if err != nil {
		return 0, false
	}
	return uint(id), true
}

// wireEvent 是在 Redis 上传输的事件，Payload 保持原始 JSON。
type wireEvent struct {
	Type    string          `json:"type"`
	RoomID  uint            `json:"roomId"`
	Payload json.RawMessage `json:"payload,omitempty"`
	At      time.Time       `json:"at"`
}

// Publish 将事件发布到房间频道
func (b *EventBus) Publish(ctx context.Context, event dto.RoomEvent) error {
	channel := b.Channel(event.RoomID)
	payloadBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("redis: failed to marshal %s event for room %d: %w", event.Type, event.RoomID, err)
	}
	if err := b.client.Publish(ctx, channel, payloadBytes).Err(); err != nil {
		logrus.WithFields(logrus.Fields{
			"channel":      channel,
			"payload_size": len(payloadBytes),
			"room_id":      event.RoomID,
		}).WithError(err).Error("Redis Publish failed")
		return fmt.Errorf("redis: failed to publish to channel %s: %w", channel, err)
	}
	return nil
}

// Subscribe 订阅所有房间频道，阻塞直到 ctx 结束。
func (b *EventBus) Subscribe(ctx context.Context, deliver func(dto.RoomEvent)) error {
	pubsub := b.client.PSubscribe(ctx, b.pattern())
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("redis: failed to subscribe to %s: %w", b.pattern(), err)
	}
	logrus.WithField("pattern", b.pattern()).Info("Subscribed to room event channels")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			roomID, ok := b.roomIDFromChannel(msg.Channel)
			if !ok {
				logrus.WithField("channel", msg.Channel).Warn("Ignoring message on unexpected channel")
				continue
			}
			var wire wireEvent
			if err := json.Unmarshal([]byte(msg.Payload), &wire); err != nil {
				logrus.WithError(err).WithField("channel", msg.Channel).Warn("Failed to decode room event")
				continue
			}
			event := dto.RoomEvent{Type: wire.Type, RoomID: roomID, At: wire.At}
			if len(wire.Payload) > 0 {
				event.Payload = wire.Payload
			}
			deliver(event)
		}
	}
}
