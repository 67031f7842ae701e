package nats

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/getevo/evo/v2/lib/log"
	"github.com/nats-io/nats.go"
)

// Locker serialises a named background job across instances
type Locker interface {
	TryLock(name string) bool
	Unlock(name string)
}

// KVLocker keeps locks in a JetStream key-value bucket. Entries expire with
// the bucket TTL, so a crashed owner releases its lock eventually.
type KVLocker struct {
	kv         nats.KeyValue
	instanceID string
}

func NewKVLocker(js nats.JetStreamContext, bucket string, ttl time.Duration) (*KVLocker, error) {
	if js == nil {
		return nil, fmt.Errorf("JetStream context is nil")
	}

	kv, err := js.CreateKeyValue(&nats.KeyValueConfig{
		Bucket:      bucket,
		Description: "hrdesk background job locks",
		TTL:         ttl,
	})
	if err != nil {
		kv, err = js.KeyValue(bucket)
		if err != nil {
			return nil, fmt.Errorf("failed to create/bind %s KV bucket: %w", bucket, err)
		}
	}

	return &KVLocker{kv: kv, instanceID: instanceID()}, nil
}

func (l *KVLocker) TryLock(name string) bool {
	if _, err := l.kv.Create(name, []byte(l.instanceID)); err == nil {
		return true
	}
	// already ours: refresh the TTL
	entry, err := l.kv.Get(name)
	if err != nil || string(entry.Value()) != l.instanceID {
		return false
	}
	_, err = l.kv.Update(name, []byte(l.instanceID), entry.Revision())
	return err == nil
}

func (l *KVLocker) Unlock(name string) {
	entry, err := l.kv.Get(name)
	if err != nil || string(entry.Value()) != l.instanceID {
		return
	}
	if err := l.kv.Delete(name, nats.LastRevision(entry.Revision())); err != nil {
		log.Warning("Failed to release lock %s: %v", name, err)
	}
}

// LocalLocker is used when JetStream is unavailable; it only excludes
// goroutines of the same process.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: map[string]bool{}}
}

func (l *LocalLocker) TryLock(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[name] {
		return false
	}
	l.held[name] = true
	return true
}

func (l *LocalLocker) Unlock(name string) {
	l.mu.Lock()
	delete(l.held, name)
	l.mu.Unlock()
}

// NewLocker prefers the JetStream bucket and degrades to a process-local lock
func NewLocker(bucket string, ttl time.Duration) Locker {
	if js := GetJetStream(); js != nil {
		locker, err := NewKVLocker(js, bucket, ttl)
		if err == nil {
			log.Info("using NATS KV lock bucket %s (instance %s)", bucket, locker.instanceID)
			return locker
		}
		log.Warning("NATS KV lock unavailable: %v", err)
	}
	return NewLocalLocker()
}

func instanceID() string {
	hostname, _ := os.Hostname()
	return fmt.Sprintf("%s-%d", hostname, os.Getpid())
}
