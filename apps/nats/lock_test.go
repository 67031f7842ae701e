package nats

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLocalLocker(t *testing.T) {
	l := NewLocalLocker()
	assert.True(t, l.TryLock("outbox"))
	assert.False(t, l.TryLock("outbox"))
	assert.True(t, l.TryLock("other"))

	l.Unlock("outbox")
	assert.True(t, l.TryLock("outbox"))
}

func TestLocalLockerExcludesConcurrentHolders(t *testing.T) {
	l := NewLocalLocker()
	var winners int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.TryLock("job") {
				atomic.AddInt32(&winners, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), winners)
}

func TestNewLockerWithoutJetStream(t *testing.T) {
	mu.Lock()
	previous := js
	js = nil
	mu.Unlock()
	t.Cleanup(func() {
		mu.Lock()
		js = previous
		mu.Unlock()
	})

	_, ok := NewLocker("hr_jobs", time.Minute).(*LocalLocker)
	assert.True(t, ok)
}

func TestPublishWhileDisconnected(t *testing.T) {
	mu.Lock()
	previous := conn
	conn = nil
	mu.Unlock()
	t.Cleanup(func() {
		mu.Lock()
		conn = previous
		mu.Unlock()
	})

	assert.ErrorIs(t, Publish("hr.events.all", []byte("{}")), ErrNotConnected)
	_, err := Subscribe("hr.events.>", nil)
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.False(t, IsConnected())
}
