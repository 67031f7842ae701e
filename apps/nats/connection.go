package nats

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/getevo/evo/v2/lib/log"
	"github.com/nats-io/nats.go"
)

var (
	mu   sync.RWMutex
	conn *nats.Conn
	js   nats.JetStreamContext
)

var ErrNotConnected = errors.New("nats not connected")

type NATSConfig struct {
	URL            string
	Name           string
	MaxReconnects  int
	ReconnectWait  time.Duration
	PingInterval   time.Duration
	MaxPingsOut    int
	AllowReconnect bool
	DrainTimeout   time.Duration
}

func (c NATSConfig) options() []nats.Option {
	opts := []nats.Option{
		nats.Name(c.Name),
		nats.MaxReconnects(c.MaxReconnects),
		nats.ReconnectWait(c.ReconnectWait),
		nats.PingInterval(c.PingInterval),
		nats.MaxPingsOutstanding(c.MaxPingsOut),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warning("NATS disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			log.Info("NATS connection closed (last error: %v)", nc.LastError())
		}),
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			if sub != nil {
				log.Error("NATS error on %s: %v", sub.Subject, err)
				return
			}
			log.Error("NATS async error: %v", err)
		}),
	}
	if !c.AllowReconnect {
		opts = append(opts, nats.NoReconnect())
	}
	return opts
}

// Connect opens the shared connection. JetStream is optional; without it the
// outbox dispatcher locks locally.
func Connect(config NATSConfig) error {
	nc, err := nats.Connect(config.URL, config.options()...)
	if err != nil {
		return fmt.Errorf("connect to NATS at %s: %w", config.URL, err)
	}
	stream, err := nc.JetStream()
	if err != nil {
		log.Warning("JetStream unavailable, outbox dispatch uses a local lock: %v", err)
		stream = nil
	}

	mu.Lock()
	conn, js = nc, stream
	mu.Unlock()

	log.Info("Connected to NATS %s at %s (version %s)", nc.ConnectedServerName(), nc.ConnectedUrl(), nc.ConnectedServerVersion())
	return nil
}

func GetConnection() *nats.Conn {
	mu.RLock()
	defer mu.RUnlock()
	return conn
}

func GetJetStream() nats.JetStreamContext {
	mu.RLock()
	defer mu.RUnlock()
	return js
}

func IsConnected() bool {
	nc := GetConnection()
	return nc != nil && nc.IsConnected()
}

// Close drains subscriptions, forcing the close after drainTimeout
func Close(drainTimeout time.Duration) error {
	mu.Lock()
	nc := conn
	conn, js = nil, nil
	mu.Unlock()

	if nc == nil {
		return nil
	}
	if err := nc.Drain(); err != nil {
		nc.Close()
		return fmt.Errorf("drain NATS connection: %w", err)
	}
	deadline := time.Now().Add(drainTimeout)
	for nc.IsDraining() && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	if !nc.IsClosed() {
		log.Warning("NATS drain timed out after %v, closing", drainTimeout)
		nc.Close()
	}
	return nil
}

func Publish(subject string, data []byte) error {
	nc := GetConnection()
	if nc == nil || !nc.IsConnected() {
		return ErrNotConnected
	}
	return nc.Publish(subject, data)
}

func Subscribe(subject string, handler nats.MsgHandler) (*nats.Subscription, error) {
	nc := GetConnection()
	if nc == nil || !nc.IsConnected() {
		return nil, ErrNotConnected
	}
	return nc.Subscribe(subject, handler)
}
