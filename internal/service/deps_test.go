package service_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"party-rooms/internal/service"
)

func TestLocalRoomLocker_SerializesSameKey(t *testing.T) {
	locker := service.NewLocalRoomLocker()
	ctx := context.Background()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locker.Lock(ctx, "room:1")
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInside)
}

func TestLocalRoomLocker_DifferentKeysDoNotBlock(t *testing.T) {
	locker := service.NewLocalRoomLocker()
	ctx := context.Background()

	unlockA, err := locker.Lock(ctx, "room:1")
	require.NoError(t, err)
	defer unlockA()

	unlockB, err := locker.Lock(ctx, "room:2")
	require.NoError(t, err)
	unlockB()
}

func TestLocalRoomLocker_ContextCancel(t *testing.T) {
	locker := service.NewLocalRoomLocker()
	unlock, err := locker.Lock(context.Background(), "game:1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(ctx, "game:1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// unlock 可以重复调用，之后锁可以再次获取
	unlock()
	unlock()
	again, err := locker.Lock(context.Background(), "game:1")
	require.NoError(t, err)
	again()
}
