package redisstate

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"

	"party-rooms/internal/dto"
)

// unreachableClient 指向一个没有 Redis 的地址，命令会很快失败
func unreachableClient() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
}

func TestEventBus_ChannelNames(t *testing.T) {
	client := unreachableClient()
	defer client.Close()
	bus := NewEventBus(client, "party:")

	assert.Equal(t, "party:room:42:events", bus.Channel(42))
	assert.Equal(t, "party:room:*:events", bus.pattern())

	roomID, ok := bus.roomIDFromChannel("party:room:42:events")
	assert.True(t, ok)
	assert.Equal(t, uint(42), roomID)

	_, ok = bus.roomIDFromChannel("party:room:abc:events")
	assert.False(t, ok)
}

func TestEventBus_DefaultPrefix(t *testing.T) {
	client := unreachableClient()
	defer client.Close()

	assert.Equal(t, "rooms:room:1:events", NewEventBus(client, "").Channel(1))
	assert.Equal(t, "rooms:lock:room:1", NewRoomLocker(client, "", 0).lockKey("room:1"))
}

func TestEventBus_PublishFailsWithoutRedis(t *testing.T) {
	client := unreachableClient()
	defer client.Close()
	bus := NewEventBus(client, "party:")

	err := bus.Publish(context.Background(), dto.NewRoomEvent(dto.EventPing, 1, dto.PingPayload{UserID: 1}))
	assert.Error(t, err)
}

func TestRoomLocker_FailsWithoutRedis(t *testing.T) {
	client := unreachableClient()
	defer client.Close()
	locker := NewRoomLocker(client, "party:", time.Second)

	unlock, err := locker.Lock(context.Background(), "room:1")
	assert.Error(t, err)
	assert.Nil(t, unlock)
}

func TestConstructorsRejectNilClient(t *testing.T) {
	assert.Panics(t, func() { NewEventBus(nil, "") })
	assert.Panics(t, func() { NewRoomLocker(nil, "", 0) })
}
