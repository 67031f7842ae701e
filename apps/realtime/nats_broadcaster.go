package realtime

import (
	"context"
	"encoding/json"
	"strings"
	"sync/atomic"
	"time"

	"github.com/getevo/evo/v2/lib/log"
	appnats "github.com/iesreza/hrdesk-backend/apps/nats"
	"github.com/nats-io/nats.go"
)

const subjectPrefix = "hr.events."

// NATSBroadcaster publishes through NATS so that clients of every instance
// receive the event. Each instance feeds its own hub from the subscription.
type NATSBroadcaster struct {
	hub       *Hub
	publish   func(subject string, data []byte) error
	subscribe func(subject string, handler nats.MsgHandler) (*nats.Subscription, error)
	sub       atomic.Pointer[nats.Subscription]
}

func NewNATSBroadcaster(hub *Hub) *NATSBroadcaster {
	return &NATSBroadcaster{
		hub:       hub,
		publish:   appnats.Publish,
		subscribe: appnats.Subscribe,
	}
}

// Subject maps a group onto a NATS subject token
func Subject(group string) string {
	if group == "" {
		return subjectPrefix + "all"
	}
	token := strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t':
			return '_'
		}
		return r
	}, group)
	return subjectPrefix + "group." + token
}

// Broadcast delivers locally when NATS is unreachable
func (b *NATSBroadcaster) Broadcast(ctx context.Context, event Event) error {
	if event.At.IsZero() {
		event.At = time.Now()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if b.sub.Load() == nil {
		b.hub.Deliver(event)
		return nil
	}
	if err := b.publish(Subject(event.Group), data); err != nil {
		log.Warning("realtime publish failed, delivering locally: %v", err)
		b.hub.Deliver(event)
	}
	return nil
}

// Start subscribes to every event subject. Without a connection the
// broadcaster stays in local mode.
func (b *NATSBroadcaster) Start() error {
	sub, err := b.subscribe(subjectPrefix+">", func(msg *nats.Msg) {
		var event Event
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			log.Warning("realtime: dropping malformed event on %s: %v", msg.Subject, err)
			return
		}
		b.hub.Deliver(event)
	})
	if err != nil {
		return err
	}
	b.sub.Store(sub)
	return nil
}

func (b *NATSBroadcaster) Stop() {
	if sub := b.sub.Swap(nil); sub != nil {
		_ = sub.Unsubscribe()
	}
}
